package engine

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/samber/lo"
	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/pkg/logger"
	"github.com/skalibog/volbreak/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Grid сетка значений для перебора. Пустое измерение берет значение из базовой конфигурации.
type Grid struct {
	VolumeMultipliers []float64
	ExitPeriods       []int
	StopLosses        []float64
	TakeProfits       []float64
	Parallelism       int
}

// GridFromConfig строит сетку из секции sweep
func GridFromConfig(cfg config.SweepConfig) Grid {
	return Grid{
		VolumeMultipliers: cfg.VolumeMultipliers,
		ExitPeriods:       cfg.ExitPeriods,
		StopLosses:        cfg.StopLosses,
		TakeProfits:       cfg.TakeProfits,
		Parallelism:       cfg.Parallelism,
	}
}

// SweepResult итог одного сочетания параметров
type SweepResult struct {
	RunID    string
	Strategy config.StrategyConfig
	Metrics  models.Metrics
}

// Combinations раскрывает сетку в список конфигураций стратегии
func (g Grid) Combinations(base config.StrategyConfig) []config.StrategyConfig {
	vm := orDefault(g.VolumeMultipliers, base.VolumeMultiplier)
	ep := orDefault(g.ExitPeriods, base.ExitPeriods)
	sl := orDefault(g.StopLosses, base.StopLoss)
	tp := orDefault(g.TakeProfits, base.TakeProfit)

	return lo.CrossJoinBy4(vm, ep, sl, tp, func(v float64, e int, s float64, t float64) config.StrategyConfig {
		c := base
		c.VolumeMultiplier = v
		c.ExitPeriods = e
		c.StopLoss = s
		c.TakeProfit = t
		return c
	})
}

func orDefault[T comparable](values []T, fallback T) []T {
	values = lo.Uniq(values)
	if len(values) == 0 {
		return []T{fallback}
	}
	return values
}

// Sweep прогоняет все сочетания сетки над одним и тем же рядом свечей.
// Свечи только читаются, каждый прогон имеет собственное состояние.
// Результаты отсортированы по коэффициенту Шарпа по убыванию.
func (e *Engine) Sweep(ctx context.Context, bars []models.Bar, grid Grid) ([]SweepResult, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	combos := grid.Combinations(e.cfg.Strategy)
	results := make([]*SweepResult, len(combos))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(grid.Parallelism, 1))

	logger.Info("Запуск перебора параметров",
		zap.Int("combinations", len(combos)),
		zap.Int("parallelism", max(grid.Parallelism, 1)))

	for i, strategy := range combos {
		i, strategy := i, strategy
		g.Go(func() error {
			cfg := e.cfg
			cfg.Strategy = strategy
			// разметка индикаторами при переборе не нужна
			cfg.Backtest.Features = false

			eng, err := New(&cfg)
			if errors.Is(err, config.ErrInvalidConfig) {
				logger.Warn("Пропуск сочетания параметров", zap.Any("strategy", strategy), zap.Error(err))
				return nil
			}
			if err != nil {
				return err
			}

			run, err := eng.Run(ctx, bars)
			if err != nil {
				return err
			}

			results[i] = &SweepResult{RunID: run.ID, Strategy: strategy, Metrics: run.Metrics}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := lo.FilterMap(results, func(r *SweepResult, _ int) (SweepResult, bool) {
		if r == nil {
			return SweepResult{}, false
		}
		return *r, true
	})
	slices.SortStableFunc(out, func(a, b SweepResult) int {
		return cmp.Compare(b.Metrics.SharpeRatio, a.Metrics.SharpeRatio)
	})
	return out, nil
}
