// Package position реализует автомат единственной длинной позиции.
package position

import (
	"fmt"
	"time"

	"github.com/skalibog/volbreak/internal/analysis/signal"
	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/pkg/logger"
	"github.com/skalibog/volbreak/pkg/models"
	"go.uber.org/zap"
)

// Params правила входа и выхода
type Params struct {
	StopLoss    float64 // отрицательный порог доходности
	TakeProfit  float64
	ExitPeriods int
	Cutoff      config.Clock
	Location    *time.Location // nil - пояс меток времени
}

// ParamsFromConfig извлекает правила из конфигурации стратегии
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Params{}, err
	}
	return Params{
		StopLoss:    cfg.Strategy.StopLoss,
		TakeProfit:  cfg.Strategy.TakeProfit,
		ExitPeriods: cfg.Strategy.ExitPeriods,
		Cutoff:      cfg.Strategy.Cutoff,
		Location:    loc,
	}, nil
}

// Machine проходит по свечам строго по порядку и ведет одну позицию
type Machine struct {
	params Params
}

func NewMachine(p Params) *Machine {
	return &Machine{params: p}
}

// state состояние, переносимое от свечи к свече
type state struct {
	position   models.PositionState
	entryPrice float64
	entryTime  time.Time
	entryIndex int
}

func (s *state) reset() {
	*s = state{}
}

// Run размечает свечи входами и выходами и возвращает завершенные сделки.
// Незакрытая в конце ряда позиция сделкой не считается.
func (m *Machine) Run(bars []models.Bar, conds []signal.Condition) ([]models.AnnotatedBar, []models.Trade, error) {
	if len(bars) != len(conds) {
		return nil, nil, fmt.Errorf("число свечей (%d) не совпадает с числом сигналов (%d)", len(bars), len(conds))
	}

	out := make([]models.AnnotatedBar, len(bars))
	var trades []models.Trade
	var st state

	for i, bar := range bars {
		c := conds[i]
		ab := models.AnnotatedBar{
			Bar:             bar,
			VolumeThreshold: c.VolumeThreshold,
			ThresholdReady:  c.ThresholdReady,
			HighVolume:      c.HighVolume,
			Uptrend:         c.Uptrend,
			BuyCondition:    c.Buy,
		}

		switch st.position {
		case models.Flat:
			if c.Buy && m.beforeCutoff(bar.Timestamp) {
				st = state{
					position:   models.Long,
					entryPrice: bar.Close,
					entryTime:  bar.Timestamp,
					entryIndex: i,
				}
				ab.BuySignal = true
				ab.Position = models.Long
				ab.EntryPrice = bar.Close

				logger.Debug("Открыта позиция",
					zap.Time("time", bar.Timestamp),
					zap.Float64("price", bar.Close))
			}

		case models.Long:
			ret := (bar.Close - st.entryPrice) / st.entryPrice
			reason := m.exitReason(ret, i-st.entryIndex, bar.Timestamp)
			ab.EntryPrice = st.entryPrice

			if reason == models.NoExit {
				ab.Position = models.Long
				break
			}

			ab.SellSignal = true
			ab.Position = models.Flat
			ab.ExitPrice = bar.Close
			ab.ExitReason = reason

			trades = append(trades, models.Trade{
				EntryTime:  st.entryTime,
				ExitTime:   bar.Timestamp,
				EntryPrice: st.entryPrice,
				ExitPrice:  bar.Close,
				Return:     ret,
				ExitReason: reason,
				EntryIndex: st.entryIndex,
				ExitIndex:  i,
				BarsHeld:   i - st.entryIndex,
			})

			logger.Debug("Закрыта позиция",
				zap.Time("time", bar.Timestamp),
				zap.Float64("price", bar.Close),
				zap.Float64("return", ret),
				zap.String("reason", string(reason)))

			st.reset()
		}

		out[i] = ab
	}

	return out, trades, nil
}

// exitReason проверяет правила выхода в порядке приоритета
func (m *Machine) exitReason(ret float64, barsHeld int, ts time.Time) models.ExitReason {
	switch {
	case ret <= m.params.StopLoss:
		return models.StopLoss
	case ret >= m.params.TakeProfit:
		return models.TakeProfit
	case barsHeld >= m.params.ExitPeriods:
		return models.TimeExit
	case !m.beforeCutoff(ts):
		return models.EndOfDay
	}
	return models.NoExit
}

// beforeCutoff true, если локальное время свечи строго раньше времени принудительного закрытия
func (m *Machine) beforeCutoff(ts time.Time) bool {
	if m.params.Location != nil {
		ts = ts.In(m.params.Location)
	}
	return ts.Hour()*60+ts.Minute() < m.params.Cutoff.Minutes()
}
