package domain

// CountBatch is everything persisted for one count. Loading a batch replaces
// whatever was stored for the count before.
type CountBatch struct {
	Header        CountHeader     `json:"header"`
	ClassCounts   []ClassCountRow `json:"class_counts,omitempty"`
	SpeedCounts   []SpeedCountRow `json:"speed_counts,omitempty"`
	VolumeCounts  []VolumeCount   `json:"volume_counts,omitempty"`
	BicycleCounts []BicycleCount  `json:"bicycle_counts,omitempty"`
}

// NewCountBatch flattens an aggregation into its class, speed and hourly
// volume rows.
func NewCountBatch(header CountHeader, agg *Aggregation) CountBatch {
	return CountBatch{
		Header:       header,
		ClassCounts:  agg.ClassRows(),
		SpeedCounts:  agg.SpeedRows(),
		VolumeCounts: HourlyVolumes(agg),
	}
}

// NewBicycleBatch wraps pre-binned bicycle totals.
func NewBicycleBatch(header CountHeader, counts []BicycleCount) CountBatch {
	return CountBatch{Header: header, BicycleCounts: counts}
}

// RecordNum returns the record number of the batch's count.
func (b CountBatch) RecordNum() int {
	return b.Header.RecordNum
}
