package performance

import (
	"math"
	"testing"
	"time"

	"github.com/skalibog/volbreak/pkg/models"
)

var t0 = time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)

func mkPoints(values []float64, step time.Duration, commission float64) []models.EquityPoint {
	points := make([]models.EquityPoint, len(values))
	for i, v := range values {
		ts := t0
		if i > 0 {
			ts = t0.Add(time.Duration(i-1) * step)
		}
		points[i] = models.EquityPoint{Timestamp: ts, Equity: v}
		if i > 0 {
			points[i].TotalCommission = commission
		}
	}
	return points
}

func TestCalculate_FlatSeries(t *testing.T) {
	points := mkPoints([]float64{10000, 10000, 10000, 10000}, 5*time.Minute, 0)
	m := Calculate(points, make([]models.AnnotatedBar, 3), DefaultOptions())

	if m.TotalTrades != 0 || m.TotalReturn != 0 || m.SharpeRatio != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if m.Volatility != 0 || m.MaxDrawdown != 0 || m.CalmarRatio != 0 || m.ProfitFactor != 0 {
		t.Fatalf("degenerate ratios must be 0: %+v", m)
	}
	if m.AnnualizedReturn != 0 || m.PeriodYears != 0 {
		t.Fatalf("zero-length period must not annualize: %+v", m)
	}
}

func TestCalculate_CommissionIdentity(t *testing.T) {
	points := mkPoints([]float64{10000, 10100, 9900, 10200, 10150}, 24*time.Hour, 12.5)
	m := Calculate(points, nil, DefaultOptions())

	if math.Abs((m.GrossTotalReturn-m.TotalReturn)-m.CommissionImpact) > 1e-12 {
		t.Errorf("gross - net = %v, impact = %v", m.GrossTotalReturn-m.TotalReturn, m.CommissionImpact)
	}
	if m.CommissionImpact != 12.5/10000 || m.TotalCommissions != 12.5 {
		t.Errorf("commission impact = %v", m.CommissionImpact)
	}
	if math.Abs(m.TotalReturn-0.015) > 1e-12 {
		t.Errorf("total return = %v", m.TotalReturn)
	}
}

func TestCalculate_Annualization(t *testing.T) {
	// 731 день между первой и последней точкой
	points := []models.EquityPoint{
		{Timestamp: t0, Equity: 1000},
		{Timestamp: t0, Equity: 1000},
		{Timestamp: t0.Add(731 * 24 * time.Hour), Equity: 1210, TotalCommission: 10},
	}
	m := Calculate(points, nil, DefaultOptions())

	if m.PeriodDays != 731 {
		t.Fatalf("period days = %d", m.PeriodDays)
	}
	years := 731 / 365.25
	want := math.Pow(1.21, 1/years) - 1
	if math.Abs(m.AnnualizedReturn-want) > 1e-12 {
		t.Errorf("annualized = %v, want %v", m.AnnualizedReturn, want)
	}
	wantGross := math.Pow(1.22, 1/years) - 1
	if math.Abs(m.GrossAnnualizedReturn-wantGross) > 1e-12 {
		t.Errorf("gross annualized = %v, want %v", m.GrossAnnualizedReturn, wantGross)
	}
	if m.Volatility <= 0 || math.Abs(m.SharpeRatio-m.AnnualizedReturn/m.Volatility) > 1e-12 {
		t.Errorf("sharpe = %v, vol = %v", m.SharpeRatio, m.Volatility)
	}
}

func TestCalculate_TotalLossAnnualizesToMinusOne(t *testing.T) {
	points := []models.EquityPoint{
		{Timestamp: t0, Equity: 1000},
		{Timestamp: t0.Add(400 * 24 * time.Hour), Equity: -50},
	}
	m := Calculate(points, nil, DefaultOptions())
	if m.AnnualizedReturn != -1 || math.IsNaN(m.SharpeRatio) {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"monotonic", []float64{100, 100, 101, 105, 105}, 0},
		{"single dip", []float64{100, 120, 90, 130}, -0.25},
		{"deepest of two", []float64{100, 90, 100, 200, 150}, -0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(mkPoints(tt.values, time.Minute, 0))
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("max drawdown = %v, want %v", got, tt.want)
			}
			if got > 0 {
				t.Errorf("drawdown must be <= 0")
			}
		})
	}
}

func TestVolatility_SampleStdDev(t *testing.T) {
	points := mkPoints([]float64{100, 110, 99}, time.Minute, 0)
	// доходности: 0, 0.1, -0.1 -> среднее 0, выборочная дисперсия 0.01
	got := Volatility(points, 252)
	want := 0.1 * math.Sqrt(252)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("volatility = %v, want %v", got, want)
	}
}

func TestCalculate_TradeStats(t *testing.T) {
	bars := make([]models.AnnotatedBar, 8)
	closes := []float64{100, 102, 100, 99, 50, 51, 10, 10}
	for i, c := range closes {
		bars[i].Close = c
		bars[i].Timestamp = t0.Add(time.Duration(i) * time.Minute)
	}
	// +2%, -1%, +2%
	bars[0].BuySignal, bars[1].SellSignal = true, true
	bars[2].BuySignal, bars[3].SellSignal = true, true
	bars[4].BuySignal, bars[5].SellSignal = true, true

	points := mkPoints([]float64{1, 1, 1}, time.Minute, 0)
	m := Calculate(points, bars, DefaultOptions())

	if m.TotalTrades != 3 {
		t.Fatalf("total trades = %d", m.TotalTrades)
	}
	if math.Abs(m.WinRate-2.0/3) > 1e-12 || math.Abs(m.GrossWinRate-2.0/3) > 1e-12 {
		t.Errorf("win rate = %v gross = %v", m.WinRate, m.GrossWinRate)
	}
	if math.Abs(m.AvgWin-0.019) > 1e-12 || math.Abs(m.AvgLoss-0.011) > 1e-12 {
		t.Errorf("avg win = %v avg loss = %v", m.AvgWin, m.AvgLoss)
	}
	if math.Abs(m.GrossAvgWin-0.02) > 1e-12 {
		t.Errorf("gross avg win = %v", m.GrossAvgWin)
	}
	wantPF := (0.019 * 2) / (0.011 * 1)
	if math.Abs(m.ProfitFactor-wantPF) > 1e-9 {
		t.Errorf("profit factor = %v, want %v", m.ProfitFactor, wantPF)
	}
}

func TestCalculate_ProfitFactorSentinels(t *testing.T) {
	bars := make([]models.AnnotatedBar, 2)
	bars[0].Close, bars[1].Close = 100, 110
	bars[0].BuySignal, bars[1].SellSignal = true, true

	points := mkPoints([]float64{1, 1}, time.Minute, 0)
	m := Calculate(points, bars, DefaultOptions())
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Errorf("profit factor with only winners = %v, want +Inf", m.ProfitFactor)
	}

	m = Calculate(points, nil, DefaultOptions())
	if m.ProfitFactor != 0 || m.WinRate != 0 || m.AvgWin != 0 || m.AvgLoss != 0 {
		t.Errorf("no trades must give zero stats: %+v", m)
	}
}
