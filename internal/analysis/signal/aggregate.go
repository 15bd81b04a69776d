package signal

import (
	"time"

	"github.com/skalibog/volbreak/pkg/models"
)

// Bucket агрегированный интервал: сумма объема и последняя цена закрытия
type Bucket struct {
	Start  time.Time
	Close  float64
	Volume float64
	First  int // индекс первой свечи бакета
	Last   int // индекс последней свечи бакета
}

// Floor возвращает начало бакета ширины width, содержащего ts
func Floor(ts time.Time, width time.Duration) time.Time {
	return ts.Truncate(width)
}

// Aggregate группирует упорядоченные свечи в бакеты ширины width.
// Пустые интервалы не порождают бакетов.
func Aggregate(bars []models.Bar, width time.Duration) []Bucket {
	var buckets []Bucket

	for i, bar := range bars {
		start := Floor(bar.Timestamp, width)
		if n := len(buckets); n > 0 && buckets[n-1].Start.Equal(start) {
			b := &buckets[n-1]
			b.Close = bar.Close
			b.Volume += bar.Volume
			b.Last = i
			continue
		}

		buckets = append(buckets, Bucket{
			Start:  start,
			Close:  bar.Close,
			Volume: bar.Volume,
			First:  i,
			Last:   i,
		})
	}

	return buckets
}
