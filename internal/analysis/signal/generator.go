// Package signal строит условие покупки по всплеску объема и восходящей тенденции.
package signal

import (
	"time"

	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/pkg/models"
)

// Condition условие покупки для одной свечи до учета состояния позиции
type Condition struct {
	VolumeThreshold float64
	ThresholdReady  bool
	HighVolume      bool
	Uptrend         bool
	Buy             bool
}

// Generator генерирует условия покупки для каждой свечи
type Generator interface {
	Name() string
	Generate(bars []models.Bar) []Condition
}

// Params параметры расчета сигнала
type Params struct {
	VolumeMultiplier float64
	TrendWindow      int
	VolumeWindow     int
	MinPeriods       int
	BucketWidth      time.Duration
}

// ParamsFromConfig извлекает параметры сигнала из конфигурации стратегии
func ParamsFromConfig(cfg config.StrategyConfig) Params {
	return Params{
		VolumeMultiplier: cfg.VolumeMultiplier,
		TrendWindow:      cfg.TrendWindow,
		VolumeWindow:     cfg.VolumeWindow,
		MinPeriods:       cfg.MinPeriods,
		BucketWidth:      cfg.BucketWidth,
	}
}

// New создает генератор по варианту из конфигурации
func New(cfg config.StrategyConfig) Generator {
	p := ParamsFromConfig(cfg)
	if cfg.Variant == config.VariantDirect {
		return NewDirect(p)
	}
	return NewAggregated(p)
}

// conditions считает условия по рядам объема и цены закрытия
func conditions(volumes, closes []float64, p Params) []Condition {
	mean, ready := RollingMean(volumes, p.VolumeWindow, p.MinPeriods)
	uptrend := Uptrend(closes, p.TrendWindow)

	out := make([]Condition, len(volumes))
	for i := range volumes {
		c := Condition{
			ThresholdReady: ready[i],
			Uptrend:        uptrend[i],
		}
		if ready[i] {
			c.VolumeThreshold = mean[i] * p.VolumeMultiplier
			c.HighVolume = volumes[i] > c.VolumeThreshold
		}
		c.Buy = c.HighVolume && c.Uptrend
		out[i] = c
	}
	return out
}
