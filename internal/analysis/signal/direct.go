package signal

import "github.com/skalibog/volbreak/pkg/models"

// Direct считает сигнал на исходном разрешении свечей
type Direct struct {
	params Params
}

func NewDirect(p Params) *Direct {
	return &Direct{params: p}
}

func (d *Direct) Name() string { return "volume_breakout_direct" }

func (d *Direct) Generate(bars []models.Bar) []Condition {
	volumes := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
		closes[i] = b.Close
	}
	return conditions(volumes, closes, d.params)
}
