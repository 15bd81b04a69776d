package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/pkg/logger"
	"github.com/skalibog/volbreak/pkg/models"
	"go.uber.org/zap"
)

// Измерения InfluxDB
const (
	measurementBars    = "bars"
	measurementEquity  = "equity"
	measurementTrades  = "trades"
	measurementMetrics = "metrics"
)

// InfluxDBStorage читает свечи и сохраняет прогоны в InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(ctx context.Context, cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// GetBars получает свечи символа за период в порядке возрастания времени
func (s *InfluxDBStorage) GetBars(ctx context.Context, q Query) ([]models.Bar, error) {
	result, err := s.queryAPI.Query(ctx, barsQuery(s.bucket, q))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}
	defer result.Close()

	var bars []models.Bar
	for result.Next() {
		record := result.Record()

		closePrice, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		bars = append(bars, models.Bar{
			Timestamp: record.Time(),
			Close:     closePrice,
			Volume:    volume,
		})
	}

	// Проверяем на ошибки при обработке результатов
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	logger.Debug("Загружены свечи из InfluxDB", zap.String("symbol", q.Symbol), zap.Int("count", len(bars)))
	return bars, nil
}

// barsQuery формирует Flux-запрос свечей
func barsQuery(bucket string, q Query) string {
	start := "0"
	if !q.From.IsZero() {
		start = q.From.UTC().Format(time.RFC3339)
	}
	stop := "now()"
	if !q.To.IsZero() {
		// верхняя граница range исключается, а выборка включает q.To
		stop = q.To.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano)
	}

	return fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.interval == "%s")
			|> filter(fn: (r) => r._field == "close" or r._field == "volume")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"])
	`, bucket, start, stop, measurementBars, q.Symbol, q.Interval)
}

// SaveBars сохраняет свечи, чтобы их можно было использовать как источник
func (s *InfluxDBStorage) SaveBars(ctx context.Context, symbol, interval string, bars []models.Bar) error {
	points := make([]*write.Point, len(bars))
	for i, b := range bars {
		points[i] = influxdb2.NewPoint(
			measurementBars,
			map[string]string{
				"symbol":   symbol,
				"interval": interval,
			},
			map[string]interface{}{
				"close":  b.Close,
				"volume": b.Volume,
			},
			b.Timestamp,
		)
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей: %w", err)
	}
	return nil
}

// SaveRun сохраняет кривую капитала, сделки и метрики прогона
func (s *InfluxDBStorage) SaveRun(ctx context.Context, run *models.Run) error {
	points := runPoints(run)
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи прогона %s: %w", run.ID, err)
	}

	logger.Info("Прогон записан в InfluxDB",
		zap.String("run_id", run.ID),
		zap.String("bucket", s.bucket),
		zap.Int("points", len(points)))
	return nil
}

// runPoints строит точки прогона. Начальная точка кривой капитала совпадает по времени
// с первой свечой, поэтому она не пишется в equity, а начальный капитал есть в metrics.
func runPoints(run *models.Run) []*write.Point {
	tags := func(extra ...string) map[string]string {
		t := map[string]string{
			"run_id": run.ID,
			"symbol": run.Symbol,
		}
		for i := 0; i+1 < len(extra); i += 2 {
			t[extra[i]] = extra[i+1]
		}
		return t
	}

	var points []*write.Point
	for i, p := range run.Equity {
		if i == 0 {
			continue
		}
		points = append(points, influxdb2.NewPoint(
			measurementEquity,
			tags(),
			map[string]interface{}{
				"equity":                p.Equity,
				"cumulative_commission": p.CumulativeCommission,
				"total_commission":      p.TotalCommission,
			},
			p.Timestamp,
		))
	}

	for _, t := range run.Trades {
		points = append(points, influxdb2.NewPoint(
			measurementTrades,
			tags("exit_reason", string(t.ExitReason)),
			map[string]interface{}{
				"entry_time":       t.EntryTime.UnixMilli(),
				"entry_price":      t.EntryPrice,
				"exit_price":       t.ExitPrice,
				"return":           t.Return,
				"bars_held":        t.BarsHeld,
				"shares":           t.Shares,
				"entry_commission": t.EntryCommission,
				"exit_commission":  t.ExitCommission,
			},
			t.ExitTime,
		))
	}

	m := run.Metrics
	fields := map[string]interface{}{
		"total_trades": m.TotalTrades,
		"period_days":  m.PeriodDays,
	}
	for name, v := range map[string]float64{
		"initial_capital":         m.InitialCapital,
		"final_capital":           m.FinalCapital,
		"total_return":            m.TotalReturn,
		"gross_total_return":      m.GrossTotalReturn,
		"annualized_return":       m.AnnualizedReturn,
		"gross_annualized_return": m.GrossAnnualizedReturn,
		"volatility":              m.Volatility,
		"sharpe_ratio":            m.SharpeRatio,
		"max_drawdown":            m.MaxDrawdown,
		"calmar_ratio":            m.CalmarRatio,
		"win_rate":                m.WinRate,
		"gross_win_rate":          m.GrossWinRate,
		"avg_win":                 m.AvgWin,
		"gross_avg_win":           m.GrossAvgWin,
		"avg_loss":                m.AvgLoss,
		"profit_factor":           m.ProfitFactor,
		"total_commissions":       m.TotalCommissions,
		"commission_impact":       m.CommissionImpact,
		"period_years":            m.PeriodYears,
	} {
		// line protocol не допускает бесконечностей
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			fields[name] = v
		}
	}
	for name, v := range run.Params {
		fields["param_"+name] = v
	}

	points = append(points, influxdb2.NewPoint(measurementMetrics, tags("strategy", run.Strategy), fields, run.StartedAt))
	return points
}
