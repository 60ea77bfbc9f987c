// Command checkcount imports a directory of count files into memory and
// prints a data-quality report per count: skipped observations, rule
// warnings and files that could not be imported at all.
//
// Usage:
//
//	go run ./cmd/checkcount -data-dir data/counts [-workers 4] [-tz America/New_York] [-json report.json]
//
// The exit code is 1 when any count has warnings or fails to import.
package main

import (
	"cmp"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/traffic-count-etl/internal/adapter/memstore"
	"github.com/couchcryptid/traffic-count-etl/internal/check"
	"github.com/couchcryptid/traffic-count-etl/internal/ingest"
	"github.com/couchcryptid/traffic-count-etl/internal/observability"
	"github.com/couchcryptid/traffic-count-etl/internal/pipeline"
)

// countReport tracks pass/fail for one count file.
type countReport struct {
	name   string
	errors []string
}

func (c *countReport) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *countReport) passed() bool { return len(c.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory containing vehicles/ and 15minutebicycle/ count files")
	workers := flag.Int("workers", 4, "count files imported concurrently")
	tz := flag.String("tz", "UTC", "time zone the counters recorded in")
	jsonPath := flag.String("json", "", "optional path to write the import log as JSON")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir, *workers, *tz, *jsonPath); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string, workers int, tz, jsonPath string) int {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: time zone %q: %v\n", tz, err)
		return 1
	}

	logger := slog.New(slog.DiscardHandler)
	metrics := observability.NewMetrics()
	store := memstore.New()
	checker := check.New(store, nil, logger, metrics)
	p := pipeline.New(ingest.NewSource(dataDir, loc, logger), store, checker, store, logger, metrics, workers)

	fmt.Println("=== Traffic Count Data Quality Report ===")
	fmt.Println()

	ctx := context.Background()
	summary, err := p.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	reports := buildReports(summary)

	allPassed := true
	for _, r := range reports {
		status := "\033[32mPASS\033[0m"
		if !r.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d findings)\033[0m", len(r.errors))
			allPassed = false
		}
		fmt.Printf("  %-52s %s\n", r.name, status)
	}

	fmt.Println()
	fmt.Printf("Counts: %d files, %d failed, %d log entries, %s\n",
		len(summary.Results), len(summary.Failed()), summary.WarningCount(), summary.Duration.Round(time.Millisecond))

	for _, r := range reports {
		if r.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", r.name)
		for i, e := range r.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if jsonPath != "" {
		entries, err := store.AllWarnings(ctx)
		if err == nil {
			err = writeJSON(jsonPath, entries)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: write %s: %v\n", jsonPath, err)
			return 1
		}
		fmt.Printf("\nWrote import log to %s\n", jsonPath)
	}

	if allPassed {
		fmt.Println("\nAll counts passed.")
		return 0
	}
	fmt.Println("\nData quality check FAILED.")
	return 1
}

// buildReports turns each import result into a report, ordered by location.
func buildReports(summary pipeline.Summary) []*countReport {
	results := slices.Clone(summary.Results)
	slices.SortFunc(results, func(a, b pipeline.Result) int {
		return cmp.Compare(a.Location, b.Location)
	})

	reports := make([]*countReport, 0, len(results))
	for _, res := range results {
		r := &countReport{name: filepath.Base(res.Location)}
		if res.RecordNum > 0 {
			r.name = fmt.Sprintf("%s (#%d)", r.name, res.RecordNum)
		}
		if res.Err != nil {
			r.errorf("%s: %v", res.Outcome, res.Err)
		}
		for _, w := range res.Warnings {
			r.errorf("%s %s: %s", w.Level, w.Rule, w.Message)
		}
		reports = append(reports, r)
	}
	return reports
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
