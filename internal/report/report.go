// Package report оформляет результаты прогона для терминала.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/internal/engine"
	"github.com/skalibog/volbreak/pkg/models"
)

// Стили отчета
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Width(26)
)

// Level оценка метрики
type Level int

const (
	Bad Level = iota
	Neutral
	Good
)

// Rating словесная оценка метрики
type Rating struct {
	Label string
	Level Level
}

func (r Rating) render() string {
	style := lipgloss.NewStyle().Foreground(warningColor)
	switch r.Level {
	case Good:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case Bad:
		style = lipgloss.NewStyle().Foreground(errorColor)
	}
	return style.Render(r.Label)
}

// RateSharpe оценивает коэффициент Шарпа
func RateSharpe(v float64, cfg config.ReportConfig) Rating {
	switch {
	case v > cfg.SharpeExcellent:
		return Rating{"отлично", Good}
	case v > cfg.SharpeGood:
		return Rating{"хорошо", Neutral}
	default:
		return Rating{"низкий", Bad}
	}
}

// RateDrawdown оценивает максимальную просадку (отрицательное значение)
func RateDrawdown(v float64, cfg config.ReportConfig) Rating {
	dd := math.Abs(v)
	switch {
	case dd < cfg.DrawdownLow:
		return Rating{"низкая", Good}
	case dd < cfg.DrawdownModerate:
		return Rating{"умеренная", Neutral}
	default:
		return Rating{"высокая", Bad}
	}
}

// RateWinRate оценивает долю прибыльных сделок
func RateWinRate(v float64, cfg config.ReportConfig) Rating {
	switch {
	case v > cfg.WinRateHigh:
		return Rating{"высокая", Good}
	case v > cfg.WinRateGood:
		return Rating{"хорошая", Neutral}
	default:
		return Rating{"низкая", Bad}
	}
}

// Render строит отчет по прогону
func Render(run *models.Run, cfg config.ReportConfig) string {
	m := run.Metrics

	title := titleStyle.Render(fmt.Sprintf("Пробой объема: %s (%s)", run.Symbol, run.Strategy))

	results := section("РЕЗУЛЬТАТЫ",
		row("Начальный капитал", Money(m.InitialCapital)),
		row("Итоговый капитал", Money(m.FinalCapital)),
		row("Доходность", Percent(m.TotalReturn)),
		row("Доходность без комиссий", Percent(m.GrossTotalReturn)),
		row("Годовая доходность", Percent(m.AnnualizedReturn)),
		row("Годовая без комиссий", Percent(m.GrossAnnualizedReturn)),
		row("Волатильность", Percent(m.Volatility)),
		row("Коэффициент Шарпа", fmt.Sprintf("%.2f  %s", m.SharpeRatio, RateSharpe(m.SharpeRatio, cfg).render())),
		row("Макс. просадка", fmt.Sprintf("%s  %s", Percent(m.MaxDrawdown), RateDrawdown(m.MaxDrawdown, cfg).render())),
		row("Коэффициент Кальмара", fmt.Sprintf("%.2f", m.CalmarRatio)),
		row("Период", fmt.Sprintf("%d дн. (%.2f лет)", m.PeriodDays, m.PeriodYears)),
	)

	trades := section("СДЕЛКИ",
		row("Всего сделок", fmt.Sprintf("%d", m.TotalTrades)),
		row("Доля прибыльных", fmt.Sprintf("%s  %s", Percent(m.WinRate), RateWinRate(m.WinRate, cfg).render())),
		row("Доля прибыльных (gross)", Percent(m.GrossWinRate)),
		row("Средняя прибыль", Percent(m.AvgWin)),
		row("Средняя прибыль (gross)", Percent(m.GrossAvgWin)),
		row("Средний убыток", Percent(m.AvgLoss)),
		row("Профит-фактор", Ratio(m.ProfitFactor)),
		row("Комиссии", Money(m.TotalCommissions)),
		row("Влияние комиссий", Percent(m.CommissionImpact)),
	)

	parts := []string{title, results, trades}

	if len(run.ExitStats) > 0 {
		lines := make([]string, 0, len(run.ExitStats))
		for _, s := range run.ExitStats {
			lines = append(lines, row(string(s.Reason),
				fmt.Sprintf("%3d  ср. %s  приб. %s", s.Count, Percent(s.AvgReturn), Percent(s.WinRate))))
		}
		parts = append(parts, section("ПРИЧИНЫ ВЫХОДА", lines...))
	}

	if len(run.Params) > 0 {
		names := make([]string, 0, len(run.Params))
		for name := range run.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		lines := make([]string, 0, len(names))
		for _, name := range names {
			lines = append(lines, row(name, decimal.NewFromFloat(run.Params[name]).String()))
		}
		parts = append(parts, section("ПАРАМЕТРЫ", lines...))
	}

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// RenderSweep строит таблицу лучших сочетаний перебора
func RenderSweep(results []engine.SweepResult, top int) string {
	if top <= 0 || top > len(results) {
		top = len(results)
	}

	lines := []string{fmt.Sprintf("%-4s %8s %6s %8s %8s %10s %8s %7s",
		"#", "vol_mult", "exit", "stop", "take", "return", "sharpe", "trades")}
	for i, r := range results[:top] {
		s := r.Strategy
		lines = append(lines, fmt.Sprintf("%-4d %8.2f %6d %8.4f %8.4f %10s %8.2f %7d",
			i+1, s.VolumeMultiplier, s.ExitPeriods, s.StopLoss, s.TakeProfit,
			Percent(r.Metrics.TotalReturn), r.Metrics.SharpeRatio, r.Metrics.TotalTrades))
	}

	title := titleStyle.Render(fmt.Sprintf("Перебор параметров: %d сочетаний", len(results)))
	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, section("ЛУЧШИЕ ПО ШАРПУ", lines...)))
}

func section(name string, lines ...string) string {
	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Render(name),
			strings.Join(lines, "\n"),
		),
	)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// Money денежная сумма с двумя знаками
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Percent доля в процентах с двумя знаками
func Percent(v float64) string {
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}

// Ratio отношение с двумя знаками, бесконечность обозначается "inf"
func Ratio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
