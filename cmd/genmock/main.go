// Command genmock writes a synthetic individual-vehicle count file in the
// counter's CSV export format, for local runs of the importer. It reads the
// generated file back through the ingest and domain packages and prints the
// resulting bin statistics.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/mock \
//	  -record 166905 -directions ew -counter 40972 -speed-limit 35 \
//	  -days 2 -per-hour 40
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/traffic-count-etl/internal/domain"
	"github.com/couchcryptid/traffic-count-etl/internal/ingest"
	"github.com/jonboulle/clockwork"
)

// classWeights approximates the class mix of an urban collector road.
var classWeights = []struct {
	code   int
	weight int
}{
	{1, 1}, {2, 70}, {3, 18}, {4, 1}, {5, 4}, {6, 1}, {8, 1}, {9, 2}, {14, 2},
}

// hourShape scales the hourly rate: a quiet night, two peaks and a daytime plateau.
var hourShape = [24]float64{
	0.05, 0.03, 0.02, 0.02, 0.05, 0.2, 0.6, 1.4, 1.6, 1.0, 0.8, 0.9,
	1.0, 0.9, 0.9, 1.1, 1.5, 1.7, 1.2, 0.8, 0.6, 0.4, 0.2, 0.1,
}

type options struct {
	outDir     string
	tech       string
	recordNum  int
	directions string
	counterID  int
	speedLimit string
	days       int
	perHour    int
	seed       uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var o options
	flag.StringVar(&o.outDir, "out-dir", "", "root directory to write vehicles/<file> into")
	flag.StringVar(&o.tech, "tech", "rc", "technician initials")
	flag.IntVar(&o.recordNum, "record", 166905, "record number")
	flag.StringVar(&o.directions, "directions", "ew", "direction code, e.g. ew, ns, n")
	flag.IntVar(&o.counterID, "counter", 40972, "counter id")
	flag.StringVar(&o.speedLimit, "speed-limit", "35", "posted speed limit or na")
	flag.IntVar(&o.days, "days", 2, "number of days counted")
	flag.IntVar(&o.perHour, "per-hour", 40, "average vehicles per hour per lane")
	flag.Uint64Var(&o.seed, "seed", 1, "random seed")
	flag.Parse()

	if o.outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}

	// Set a fixed clock so the count always starts on the same day.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2023, time.May, 8, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	name := fmt.Sprintf("%s-%d-%s-%d-%s.txt", o.tech, o.recordNum, o.directions, o.counterID, o.speedLimit)
	meta, err := ingest.ParseMetadata(name)
	if err != nil {
		return err
	}

	path := filepath.Join(o.outDir, ingest.VehiclesDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	vehicles := generate(o, meta)
	if err := writeCount(path, o.recordNum, vehicles); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Printf("wrote %d vehicles: %s", len(vehicles), path)

	return printStats(path, meta)
}

// generate draws vehicles for every lane and hour of the count.
func generate(o options, meta domain.Metadata) []domain.CountedVehicle {
	rng := rand.New(rand.NewPCG(o.seed, uint64(o.recordNum)))
	start := domain.Now().Truncate(24 * time.Hour)
	lanes := len(meta.Directions.Channels())

	totalWeight := 0
	for _, cw := range classWeights {
		totalWeight += cw.weight
	}

	var out []domain.CountedVehicle //nolint:prealloc // size is random
	for day := range o.days {
		for hour := range 24 {
			hourStart := start.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
			for lane := 1; lane <= lanes; lane++ {
				n := int(float64(o.perHour) * hourShape[hour] * (0.8 + 0.4*rng.Float64()))
				for range n {
					out = append(out, domain.CountedVehicle{
						ObservedAt: hourStart.Add(time.Duration(rng.Int64N(int64(time.Hour)))).Truncate(time.Second),
						Channel:    uint8(lane),
						Class:      pickClass(rng, totalWeight),
						Speed:      max(math.Round((35+rng.NormFloat64()*6)*10)/10, 1),
					})
				}
			}
		}
	}
	return out
}

func pickClass(rng *rand.Rand, totalWeight int) int {
	r := rng.IntN(totalWeight)
	for _, cw := range classWeights {
		if r < cw.weight {
			return cw.code
		}
		r -= cw.weight
	}
	return 2
}

// writeCount writes the counter's three metadata rows, the column header and
// one row per vehicle.
func writeCount(path string, recordNum int, vehicles []domain.CountedVehicle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	start := domain.Now()
	rows := [][]string{
		{"Number of Records", strconv.Itoa(len(vehicles))},
		{"Start Date", start.Format("1/2/2006")},
		{"Site Code", fmt.Sprintf("%012d", recordNum)},
		{"Veh. No.", "Date", "Time", "Channel", "Class", "Speed"},
	}
	for i, v := range vehicles {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			v.ObservedAt.Format("1/2/2006"),
			v.ObservedAt.Format("3:04:05 PM"),
			strconv.Itoa(int(v.Channel)),
			strconv.Itoa(v.Class),
			strconv.FormatFloat(v.Speed, 'f', 1, 64),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

// printStats reads the file back and reports what the importer will produce.
func printStats(path string, meta domain.Metadata) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	vehicles, rowErrs, err := ingest.ReadVehicles(f, time.UTC)
	if err != nil {
		return err
	}
	agg := domain.Aggregate(meta, vehicles)
	volumes := domain.HourlyVolumes(agg)

	fmt.Println()
	fmt.Println("=== Generated Count ===")
	fmt.Printf("  Vehicles read:       %d\n", len(vehicles))
	fmt.Printf("  Row errors:          %d\n", len(rowErrs))
	fmt.Printf("  Skipped by binning:  %d\n", len(agg.Errors))
	fmt.Printf("  15-minute bins:      %d\n", len(agg.Keys()))
	fmt.Println()
	fmt.Println("  Daily volumes:")
	for _, v := range volumes {
		fmt.Printf("    %s %-6s %6d\n", v.Date.Format("2006-01-02"), v.Direction, v.Total)
	}
	return nil
}
