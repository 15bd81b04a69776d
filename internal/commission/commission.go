// Package commission содержит модель комиссии брокера за одну ногу сделки.
package commission

import "github.com/skalibog/volbreak/internal/config"

// Commission возвращает комиссию за ногу сделки: tradeValue*rate, ограниченную [minFee, maxFee].
// minFee <= maxFee обеспечивает вызывающая сторона.
func Commission(tradeValue, rate, minFee, maxFee float64) float64 {
	fee := tradeValue * rate
	return max(minFee, min(fee, maxFee))
}

// Schedule тарифная сетка
type Schedule struct {
	Rate   float64
	MinFee float64
	MaxFee float64
}

// FromConfig создает тарифную сетку из конфигурации
func FromConfig(cfg config.CommissionConfig) Schedule {
	return Schedule{Rate: cfg.Rate, MinFee: cfg.MinFee, MaxFee: cfg.MaxFee}
}

// Fee комиссия за ногу сделки с номиналом tradeValue
func (s Schedule) Fee(tradeValue float64) float64 {
	return Commission(tradeValue, s.Rate, s.MinFee, s.MaxFee)
}
