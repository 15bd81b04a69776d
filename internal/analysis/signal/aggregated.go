package signal

import "github.com/skalibog/volbreak/pkg/models"

// Aggregated считает сигнал на бакетах и переносит его на исходные свечи
type Aggregated struct {
	params Params
}

func NewAggregated(p Params) *Aggregated {
	return &Aggregated{params: p}
}

func (a *Aggregated) Name() string { return "volume_breakout_aggregated" }

func (a *Aggregated) Generate(bars []models.Bar) []Condition {
	buckets := Aggregate(bars, a.params.BucketWidth)

	volumes := make([]float64, len(buckets))
	closes := make([]float64, len(buckets))
	index := make(map[int64]int, len(buckets))
	for i, b := range buckets {
		volumes[i] = b.Volume
		closes[i] = b.Close
		index[b.Start.UnixNano()] = i
	}
	bucketConds := conditions(volumes, closes, a.params)

	out := make([]Condition, len(bars))
	for i, bar := range bars {
		j, ok := index[Floor(bar.Timestamp, a.params.BucketWidth).UnixNano()]
		if !ok {
			continue
		}
		out[i] = bucketConds[j]
	}
	return out
}
