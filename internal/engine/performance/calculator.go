// Package performance считает метрики доходности и риска по кривой капитала.
package performance

import (
	"math"

	"github.com/samber/lo"
	"github.com/skalibog/volbreak/pkg/models"
	"gonum.org/v1/gonum/stat"
)

const daysPerYear = 365.25

// Options параметры расчета
type Options struct {
	// TradingPeriodsPerYear множитель годовой волатильности (252 независимо от размера свечи)
	TradingPeriodsPerYear float64
	// FlatTradeCost приближенная стоимость сделки для статистики по сделкам
	FlatTradeCost float64
}

// DefaultOptions значения по умолчанию
func DefaultOptions() Options {
	return Options{TradingPeriodsPerYear: 252, FlatTradeCost: 0.001}
}

// Calculate считает метрики по завершенной кривой капитала и размеченным свечам.
// Точка 0 кривой - начальный капитал.
func Calculate(points []models.EquityPoint, bars []models.AnnotatedBar, opts Options) models.Metrics {
	if len(points) == 0 {
		return models.Metrics{}
	}

	initial := points[0].Equity
	final := points[len(points)-1].Equity
	commissions := points[len(points)-1].TotalCommission

	m := models.Metrics{
		InitialCapital:   initial,
		FinalCapital:     final,
		TotalCommissions: commissions,
	}

	m.TotalReturn = (final - initial) / initial
	m.GrossTotalReturn = m.TotalReturn + commissions/initial
	m.CommissionImpact = commissions / initial

	m.PeriodDays = int(points[len(points)-1].Timestamp.Sub(points[0].Timestamp).Hours() / 24)
	m.PeriodYears = float64(m.PeriodDays) / daysPerYear
	if m.PeriodYears > 0 {
		m.AnnualizedReturn = annualize(final/initial, m.PeriodYears)
		m.GrossAnnualizedReturn = annualize((initial+commissions+(final-initial))/initial, m.PeriodYears)
	}

	m.Volatility = Volatility(points, opts.TradingPeriodsPerYear)
	if m.Volatility > 0 {
		m.SharpeRatio = m.AnnualizedReturn / m.Volatility
	}

	m.MaxDrawdown = MaxDrawdown(points)
	if m.MaxDrawdown != 0 {
		m.CalmarRatio = m.AnnualizedReturn / math.Abs(m.MaxDrawdown)
	}

	pairs := MatchTrades(bars, opts.FlatTradeCost)
	fillTradeStats(&m, pairs)

	return m
}

// annualize переводит итоговый множитель капитала в годовую доходность.
// Неположительный множитель означает полную потерю капитала.
func annualize(growth, years float64) float64 {
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, 1/years) - 1
}

// Returns поточечные относительные изменения капитала, первое значение 0
func Returns(points []models.EquityPoint) []float64 {
	out := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Equity
		if prev == 0 {
			continue
		}
		out[i] = (points[i].Equity - prev) / prev
	}
	return out
}

// Volatility выборочное стандартное отклонение доходностей, умноженное на sqrt(periodsPerYear)
func Volatility(points []models.EquityPoint, periodsPerYear float64) float64 {
	returns := Returns(points)
	if len(returns) < 2 {
		return 0
	}
	sd := stat.StdDev(returns, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(periodsPerYear)
}

// MaxDrawdown минимальное относительное отклонение капитала от накопленного максимума (<= 0)
func MaxDrawdown(points []models.EquityPoint) float64 {
	if len(points) == 0 {
		return 0
	}

	peak := points[0].Equity
	worst := 0.0
	for _, p := range points {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (p.Equity - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

func fillTradeStats(m *models.Metrics, pairs []TradePair) {
	m.TotalTrades = len(pairs)
	if len(pairs) == 0 {
		return
	}

	net := lo.Map(pairs, func(p TradePair, _ int) float64 { return p.NetReturn })
	gross := lo.Map(pairs, func(p TradePair, _ int) float64 { return p.GrossReturn })

	wins := lo.Filter(net, func(r float64, _ int) bool { return r > 0 })
	losses := lo.Filter(net, func(r float64, _ int) bool { return r < 0 })
	grossWins := lo.Filter(gross, func(r float64, _ int) bool { return r > 0 })

	n := float64(len(pairs))
	m.WinRate = float64(len(wins)) / n
	m.GrossWinRate = float64(len(grossWins)) / n
	m.AvgWin = mean(wins)
	m.GrossAvgWin = mean(grossWins)
	m.AvgLoss = math.Abs(mean(losses))

	switch {
	case len(losses) > 0 && m.AvgLoss > 0:
		m.ProfitFactor = (m.AvgWin * float64(len(wins))) / (m.AvgLoss * float64(len(losses)))
	case len(wins) > 0:
		m.ProfitFactor = math.Inf(1)
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return lo.Sum(xs) / float64(len(xs))
}
