// Package equity воспроизводит размеченные сделки в кривую капитала с учетом комиссий.
package equity

import (
	"github.com/skalibog/volbreak/internal/commission"
	"github.com/skalibog/volbreak/pkg/models"
)

// Curve результат воспроизведения
type Curve struct {
	Points          []models.EquityPoint
	Legs            []models.Leg
	TotalCommission float64
}

// Builder строит кривую капитала
type Builder struct {
	initialCapital float64
	schedule       commission.Schedule
}

func NewBuilder(initialCapital float64, schedule commission.Schedule) *Builder {
	return &Builder{initialCapital: initialCapital, schedule: schedule}
}

// Build проходит по размеченным свечам. Весь капитал входит в позицию за вычетом комиссии,
// пока позиция открыта, капитал оценивается по текущей цене закрытия.
func (b *Builder) Build(bars []models.AnnotatedBar) Curve {
	if len(bars) == 0 {
		return Curve{Points: []models.EquityPoint{{Equity: b.initialCapital}}}
	}

	points := make([]models.EquityPoint, 0, len(bars)+1)
	points = append(points, models.EquityPoint{
		Timestamp: bars[0].Timestamp,
		Equity:    b.initialCapital,
	})

	var legs []models.Leg
	capital := b.initialCapital
	shares := 0.0
	holding := false
	total := 0.0

	for i, bar := range bars {
		switch {
		case bar.BuySignal && !holding:
			fee := b.schedule.Fee(capital)
			shares = (capital - fee) / bar.Close
			legs = append(legs, models.Leg{
				Time:       bar.Timestamp,
				BarIndex:   i,
				Side:       models.Buy,
				Price:      bar.Close,
				Shares:     shares,
				Notional:   capital,
				Commission: fee,
			})
			capital = 0
			total += fee
			holding = true

		case bar.SellSignal && holding:
			value := shares * bar.Close
			fee := b.schedule.Fee(value)
			legs = append(legs, models.Leg{
				Time:       bar.Timestamp,
				BarIndex:   i,
				Side:       models.Sell,
				Price:      bar.Close,
				Shares:     shares,
				Notional:   value,
				Commission: fee,
			})
			capital = value - fee
			total += fee
			shares = 0
			holding = false
		}

		equity := capital
		if holding {
			equity = shares * bar.Close
		}
		points = append(points, models.EquityPoint{
			Timestamp:            bar.Timestamp,
			Equity:               equity,
			CumulativeCommission: total,
		})
	}

	// итоговая сумма повторяется по всей серии, кроме начальной точки
	for i := 1; i < len(points); i++ {
		points[i].TotalCommission = total
	}

	return Curve{Points: points, Legs: legs, TotalCommission: total}
}
