package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/pkg/models"
)

func fileConfig(t *testing.T, source, path string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Source = source
	cfg.Data.Path = path
	cfg.Storage.OutputDir = t.TempDir()
	return &cfg
}

func TestFileStorage_ReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ko.csv")
	data := "Date,Px,Vol,Extra\n" +
		"2023-01-03 09:30:00,62.10,1200,x\n" +
		"2023-01-03 09:35:00,62.25,800,x\n" +
		"2023-01-03 09:40:00,62.05,1500,x\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := fileConfig(t, config.SourceCSV, path)
	cfg.Data.TimestampColumn = "date"
	cfg.Data.CloseColumn = "PX"
	cfg.Data.VolumeColumn = "vol"
	cfg.Strategy.Timezone = "America/New_York"

	s, err := NewFileStorage(cfg)
	if err != nil {
		t.Fatal(err)
	}

	bars, err := s.GetBars(context.Background(), Query{})
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}

	ny, _ := time.LoadLocation("America/New_York")
	want := time.Date(2023, 1, 3, 9, 30, 0, 0, ny)
	if !bars[0].Timestamp.Equal(want) || bars[0].Close != 62.10 || bars[0].Volume != 1200 {
		t.Errorf("first bar = %+v", bars[0])
	}

	// выборка по периоду включает обе границы
	q := Query{From: want.Add(5 * time.Minute), To: want.Add(10 * time.Minute)}
	bars, err = s.GetBars(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 || bars[0].Close != 62.25 {
		t.Errorf("filtered bars = %+v", bars)
	}
}

func TestFileStorage_ReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing column", "timestamp,close\n2023-01-03 09:30:00,1\n"},
		{"bad close", "timestamp,close,volume\n2023-01-03 09:30:00,abc,1\n"},
		{"bad timestamp", "timestamp,close,volume\nyesterday,1,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bars.csv")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			s, err := NewFileStorage(fileConfig(t, config.SourceCSV, path))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := s.GetBars(context.Background(), Query{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 6, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		in     string
		layout string
	}{
		{"2024-05-06T14:30:00Z", ""},
		{"2024-05-06 14:30:00", ""},
		{"1715005800", ""},
		{"1715005800000", ""},
		{"06/05/2024 14:30", "02/01/2006 15:04"},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in, tt.layout, time.UTC)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if !got.Equal(ts) {
			t.Errorf("%q = %v, want %v", tt.in, got, ts)
		}
	}
}

func TestFileStorage_ReadJSONAndParquet(t *testing.T) {
	t0 := time.Date(2024, 5, 6, 14, 30, 0, 0, time.UTC)
	rows := []barRow{
		{Timestamp: t0.UnixMilli(), Close: 10, Volume: 5},
		{Timestamp: t0.Add(5 * time.Minute).UnixMilli(), Close: 11, Volume: 7},
	}
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "bars.json")
	data, _ := json.Marshal(rows)
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		t.Fatal(err)
	}
	parquetPath := filepath.Join(dir, "bars.parquet")
	if err := parquet.WriteFile(parquetPath, rows); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct{ source, path string }{
		{config.SourceJSON, jsonPath},
		{config.SourceParquet, parquetPath},
	} {
		s, err := NewFileStorage(fileConfig(t, tc.source, tc.path))
		if err != nil {
			t.Fatal(err)
		}
		bars, err := s.GetBars(context.Background(), Query{})
		if err != nil {
			t.Fatalf("%s: %v", tc.source, err)
		}
		if len(bars) != 2 || !bars[1].Timestamp.Equal(t0.Add(5*time.Minute)) || bars[1].Close != 11 || bars[1].Volume != 7 {
			t.Errorf("%s: bars = %+v", tc.source, bars)
		}
	}
}

func sampleRun() *models.Run {
	t0 := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	bars := []models.AnnotatedBar{
		{Bar: models.Bar{Timestamp: t0, Close: 100, Volume: 10}, BuySignal: true, Position: models.Long, EntryPrice: 100},
		{Bar: models.Bar{Timestamp: t0.Add(5 * time.Minute), Close: 102, Volume: 12}, SellSignal: true,
			EntryPrice: 100, ExitPrice: 102, ExitReason: models.TakeProfit},
	}
	return &models.Run{
		ID:        "run-1",
		Symbol:    "KO",
		Strategy:  "volume_breakout_direct",
		StartedAt: t0,
		Params:    map[string]float64{"volume_multiplier": 1.5},
		Bars:      bars,
		Equity: []models.EquityPoint{
			{Timestamp: t0, Equity: 10000},
			{Timestamp: t0, Equity: 9995, CumulativeCommission: 5, TotalCommission: 10.0975},
			{Timestamp: t0.Add(5 * time.Minute), Equity: 10184.8025, CumulativeCommission: 10.0975, TotalCommission: 10.0975},
		},
		Trades: []models.Trade{{
			EntryTime: t0, ExitTime: t0.Add(5 * time.Minute), EntryPrice: 100, ExitPrice: 102, Return: 0.02,
			ExitReason: models.TakeProfit, ExitIndex: 1, BarsHeld: 1, Shares: 99.95, EntryCommission: 5, ExitCommission: 5.0975,
		}},
		Metrics: models.Metrics{InitialCapital: 10000, FinalCapital: 10184.8025, TotalTrades: 1, WinRate: 1, ProfitFactor: math.Inf(1)},
		ExitStats: []models.ExitStat{{Reason: models.TakeProfit, Count: 1, AvgReturn: 0.02, WinRate: 1}},
		Features:  []models.Features{{Timestamp: t0, RSI: 55, RSISign: 1}},
	}
}

func TestFileStorage_SaveRunCSV(t *testing.T) {
	cfg := fileConfig(t, config.SourceCSV, "unused.csv")
	s, err := NewFileStorage(cfg)
	if err != nil {
		t.Fatal(err)
	}

	run := sampleRun()
	if err := s.SaveRun(context.Background(), run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	for _, name := range []string{"bars", "equity", "trades", "features"} {
		if _, err := os.Stat(filepath.Join(cfg.Storage.OutputDir, "run-1_"+name+".csv")); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	f, err := os.Open(filepath.Join(cfg.Storage.OutputDir, "run-1_equity.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 || strings.Join(records[0], ",") != strings.Join(equityHeader, ",") {
		t.Fatalf("equity csv = %v", records)
	}
	if records[3][1] != "10184.8025" || records[1][0] != "2024-05-06T10:00:00Z" {
		t.Errorf("last equity row = %v", records[3])
	}

	data, err := os.ReadFile(filepath.Join(cfg.Storage.OutputDir, "run-1_metrics.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc metricsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("metrics json: %v", err)
	}
	if doc.RunID != "run-1" || doc.Metrics.TotalTrades != 1 || !math.IsInf(float64(doc.Metrics.ProfitFactor), 1) {
		t.Errorf("metrics doc = %+v", doc)
	}
	if len(doc.ExitStats) != 1 || doc.ExitStats[0].Reason != "take_profit" {
		t.Errorf("exit stats = %+v", doc.ExitStats)
	}
}

func TestFileStorage_SaveRunParquet(t *testing.T) {
	cfg := fileConfig(t, config.SourceCSV, "unused.csv")
	cfg.Storage.Format = config.SourceParquet
	s, err := NewFileStorage(cfg)
	if err != nil {
		t.Fatal(err)
	}

	run := sampleRun()
	run.Features = nil
	if err := s.SaveRun(context.Background(), run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	trades, err := parquet.ReadFile[tradeRow](filepath.Join(cfg.Storage.OutputDir, "run-1_trades.parquet"))
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].ExitReason != "take_profit" || trades[0].ExitCommission != 5.0975 {
		t.Errorf("trades = %+v", trades)
	}

	if _, err := os.Stat(filepath.Join(cfg.Storage.OutputDir, "run-1_features.parquet")); !os.IsNotExist(err) {
		t.Errorf("features file must not exist without features: %v", err)
	}
}
