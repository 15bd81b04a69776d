// Package engine собирает конвейер бэктеста: сигналы, позиция, капитал, метрики.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/skalibog/volbreak/internal/analysis/features"
	"github.com/skalibog/volbreak/internal/analysis/signal"
	"github.com/skalibog/volbreak/internal/commission"
	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/internal/engine/equity"
	"github.com/skalibog/volbreak/internal/engine/performance"
	"github.com/skalibog/volbreak/internal/engine/position"
	"github.com/skalibog/volbreak/pkg/logger"
	"github.com/skalibog/volbreak/pkg/models"
	"go.uber.org/zap"
)

var (
	ErrEmptySeries     = errors.New("пустой ряд свечей")
	ErrUnorderedSeries = errors.New("метки времени свечей не возрастают строго")
	ErrInvalidBar      = errors.New("некорректная свеча")
)

// ValidateBars проверяет входной ряд до начала симуляции
func ValidateBars(bars []models.Bar) error {
	if len(bars) == 0 {
		return ErrEmptySeries
	}

	for i, b := range bars {
		if b.Timestamp.IsZero() {
			return fmt.Errorf("%w: свеча %d без метки времени", ErrInvalidBar, i)
		}
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			return fmt.Errorf("%w: свеча %d (%s) с ценой закрытия %v", ErrInvalidBar, i, b.Timestamp.Format(time.RFC3339), b.Close)
		}
		if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
			return fmt.Errorf("%w: свеча %d (%s) с объемом %v", ErrInvalidBar, i, b.Timestamp.Format(time.RFC3339), b.Volume)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%w: свеча %d (%s) не позже свечи %d (%s)", ErrUnorderedSeries,
				i, b.Timestamp.Format(time.RFC3339), i-1, bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Engine прогоняет один набор параметров
type Engine struct {
	cfg       config.Config
	generator signal.Generator
	machine   *position.Machine
	builder   *equity.Builder
	opts      performance.Options
}

// New создает движок по проверенной конфигурации
func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params, err := position.ParamsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       *cfg,
		generator: signal.New(cfg.Strategy),
		machine:   position.NewMachine(params),
		builder:   equity.NewBuilder(cfg.Backtest.InitialCapital, commission.FromConfig(cfg.Commission)),
		opts: performance.Options{
			TradingPeriodsPerYear: cfg.Backtest.TradingPeriodsPerYear,
			FlatTradeCost:         cfg.Backtest.FlatTradeCost,
		},
	}, nil
}

// Run выполняет полный прогон по упорядоченному ряду свечей
func (e *Engine) Run(ctx context.Context, bars []models.Bar) (*models.Run, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()

	conds := e.generator.Generate(bars)
	annotated, trades, err := e.machine.Run(bars, conds)
	if err != nil {
		return nil, fmt.Errorf("ошибка автомата позиции: %w", err)
	}

	curve := e.builder.Build(annotated)
	attachLegs(trades, curve.Legs)

	run := &models.Run{
		ID:        uuid.NewString(),
		Symbol:    e.cfg.Backtest.Symbol,
		Strategy:  e.generator.Name(),
		StartedAt: started,
		Params:    strategyParams(e.cfg),
		Bars:      annotated,
		Equity:    curve.Points,
		Trades:    trades,
		Legs:      curve.Legs,
		Metrics:   performance.Calculate(curve.Points, annotated, e.opts),
		ExitStats: performance.ExitBreakdown(trades),
	}

	if e.cfg.Backtest.Features {
		run.Features = features.Label(bars)
	}

	logger.Info("Прогон завершен",
		zap.String("run_id", run.ID),
		zap.String("strategy", run.Strategy),
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(trades)),
		zap.Float64("total_return", run.Metrics.TotalReturn),
		zap.Float64("sharpe", run.Metrics.SharpeRatio),
		zap.Float64("commissions", run.Metrics.TotalCommissions),
		zap.Duration("elapsed", time.Since(started)))

	return run, nil
}

// attachLegs переносит комиссии ног из кривой капитала в сделки
func attachLegs(trades []models.Trade, legs []models.Leg) {
	buys := make(map[int]models.Leg)
	sells := make(map[int]models.Leg)
	for _, l := range legs {
		if l.Side == models.Buy {
			buys[l.BarIndex] = l
		} else {
			sells[l.BarIndex] = l
		}
	}

	for i := range trades {
		if l, ok := buys[trades[i].EntryIndex]; ok {
			trades[i].Shares = l.Shares
			trades[i].EntryCommission = l.Commission
		}
		if l, ok := sells[trades[i].ExitIndex]; ok {
			trades[i].ExitCommission = l.Commission
		}
	}
}

func strategyParams(cfg config.Config) map[string]float64 {
	s := cfg.Strategy
	return map[string]float64{
		"volume_multiplier": s.VolumeMultiplier,
		"trend_window":      float64(s.TrendWindow),
		"exit_periods":      float64(s.ExitPeriods),
		"stop_loss":         s.StopLoss,
		"take_profit":       s.TakeProfit,
		"volume_window":     float64(s.VolumeWindow),
		"min_periods":       float64(s.MinPeriods),
		"bucket_minutes":    s.BucketWidth.Minutes(),
		"initial_capital":   cfg.Backtest.InitialCapital,
		"commission_rate":   cfg.Commission.Rate,
	}
}
