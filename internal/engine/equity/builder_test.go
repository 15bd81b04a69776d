package equity

import (
	"math"
	"testing"
	"time"

	"github.com/skalibog/volbreak/internal/commission"
	"github.com/skalibog/volbreak/pkg/models"
)

var ibkr = commission.Schedule{Rate: 0.0005, MinFee: 1.25, MaxFee: 100}

func mkBars(closes []float64) []models.AnnotatedBar {
	start := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	bars := make([]models.AnnotatedBar, len(closes))
	for i, c := range closes {
		bars[i].Timestamp = start.Add(time.Duration(i) * 5 * time.Minute)
		bars[i].Close = c
	}
	return bars
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBuild_ReferenceTrade(t *testing.T) {
	bars := mkBars([]float64{100, 105, 110, 111})
	bars[0].BuySignal = true
	bars[2].SellSignal = true

	curve := NewBuilder(10000, ibkr).Build(bars)

	if len(curve.Points) != len(bars)+1 {
		t.Fatalf("expected %d points, got %d", len(bars)+1, len(curve.Points))
	}
	if curve.Points[0].Equity != 10000 {
		t.Fatalf("first point must equal initial capital, got %v", curve.Points[0].Equity)
	}

	if len(curve.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(curve.Legs))
	}
	entry, exit := curve.Legs[0], curve.Legs[1]
	if !near(entry.Commission, 5) || !near(entry.Shares, 99.95) {
		t.Errorf("entry leg = %+v", entry)
	}
	if !near(exit.Notional, 10994.5) || !near(exit.Commission, 5.49725) {
		t.Errorf("exit leg = %+v", exit)
	}

	// во время позиции капитал = акции * цена
	if !near(curve.Points[1].Equity, 99.95*100) || !near(curve.Points[2].Equity, 99.95*105) {
		t.Errorf("marked-to-market equity wrong: %v %v", curve.Points[1].Equity, curve.Points[2].Equity)
	}
	final := curve.Points[len(curve.Points)-1].Equity
	if !near(final, 10989.00275) {
		t.Errorf("final capital = %v, want 10989.00275", final)
	}
	if !near(curve.TotalCommission, 10.49725) {
		t.Errorf("total commission = %v", curve.TotalCommission)
	}
}

func TestBuild_CommissionFields(t *testing.T) {
	bars := mkBars([]float64{100, 105, 110, 111})
	bars[1].BuySignal = true
	bars[2].SellSignal = true

	curve := NewBuilder(10000, ibkr).Build(bars)
	p := curve.Points

	if p[0].CumulativeCommission != 0 || p[0].TotalCommission != 0 {
		t.Errorf("leading point must carry no commission: %+v", p[0])
	}
	if p[1].CumulativeCommission != 0 {
		t.Errorf("running total before first leg = %v", p[1].CumulativeCommission)
	}
	if !near(p[2].CumulativeCommission, 5) {
		t.Errorf("running total after entry = %v", p[2].CumulativeCommission)
	}
	for i := 1; i < len(p); i++ {
		if p[i].TotalCommission != curve.TotalCommission {
			t.Errorf("point %d: total commission %v, want %v", i, p[i].TotalCommission, curve.TotalCommission)
		}
	}
	if p[len(p)-1].CumulativeCommission != curve.TotalCommission {
		t.Errorf("running total must end at the final total")
	}
}

func TestBuild_NoTrades(t *testing.T) {
	curve := NewBuilder(5000, ibkr).Build(mkBars([]float64{10, 11, 9}))
	for i, p := range curve.Points {
		if p.Equity != 5000 || math.IsNaN(p.Equity) {
			t.Fatalf("point %d: equity %v", i, p.Equity)
		}
	}
	if curve.TotalCommission != 0 || len(curve.Legs) != 0 {
		t.Errorf("unexpected commission activity: %+v", curve)
	}
}

func TestBuild_OpenPositionAtEnd(t *testing.T) {
	bars := mkBars([]float64{100, 90})
	bars[0].BuySignal = true

	curve := NewBuilder(10000, ibkr).Build(bars)
	final := curve.Points[len(curve.Points)-1].Equity
	if !near(final, 99.95*90) {
		t.Errorf("open position must be marked to market, got %v", final)
	}
	if !near(curve.TotalCommission, 5) {
		t.Errorf("entry leg commission must count, got %v", curve.TotalCommission)
	}
}
