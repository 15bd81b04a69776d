package storage

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skalibog/volbreak/pkg/models"
)

// Строки выгрузки. Метки времени хранятся в миллисекундах Unix.

type barRow struct {
	Timestamp int64   `json:"timestamp" parquet:"timestamp"`
	Close     float64 `json:"close" parquet:"close"`
	Volume    float64 `json:"volume" parquet:"volume"`
}

type annotatedRow struct {
	Timestamp       int64   `json:"timestamp" parquet:"timestamp"`
	Close           float64 `json:"close" parquet:"close"`
	Volume          float64 `json:"volume" parquet:"volume"`
	VolumeThreshold float64 `json:"volume_threshold" parquet:"volume_threshold"`
	HighVolume      bool    `json:"high_volume" parquet:"high_volume"`
	Uptrend         bool    `json:"uptrend" parquet:"uptrend"`
	BuyCondition    bool    `json:"buy_condition" parquet:"buy_condition"`
	BuySignal       bool    `json:"buy_signal" parquet:"buy_signal"`
	SellSignal      bool    `json:"sell_signal" parquet:"sell_signal"`
	Position        string  `json:"position" parquet:"position"`
	EntryPrice      float64 `json:"entry_price" parquet:"entry_price"`
	ExitPrice       float64 `json:"exit_price" parquet:"exit_price"`
	ExitReason      string  `json:"exit_reason" parquet:"exit_reason"`
}

type equityRow struct {
	Timestamp            int64   `json:"timestamp" parquet:"timestamp"`
	Equity               float64 `json:"equity" parquet:"equity"`
	CumulativeCommission float64 `json:"cumulative_commission" parquet:"cumulative_commission"`
	TotalCommission      float64 `json:"total_commission" parquet:"total_commission"`
}

type tradeRow struct {
	EntryTime       int64   `json:"entry_time" parquet:"entry_time"`
	ExitTime        int64   `json:"exit_time" parquet:"exit_time"`
	EntryPrice      float64 `json:"entry_price" parquet:"entry_price"`
	ExitPrice       float64 `json:"exit_price" parquet:"exit_price"`
	Return          float64 `json:"return" parquet:"return"`
	ExitReason      string  `json:"exit_reason" parquet:"exit_reason"`
	BarsHeld        int64   `json:"bars_held" parquet:"bars_held"`
	Shares          float64 `json:"shares" parquet:"shares"`
	EntryCommission float64 `json:"entry_commission" parquet:"entry_commission"`
	ExitCommission  float64 `json:"exit_commission" parquet:"exit_commission"`
}

type featureRow struct {
	Timestamp int64   `json:"timestamp" parquet:"timestamp"`
	RSI       float64 `json:"rsi" parquet:"rsi"`
	MACD      float64 `json:"macd" parquet:"macd"`
	EMA       float64 `json:"ema" parquet:"ema"`
	SMA       float64 `json:"sma" parquet:"sma"`
	MOM       float64 `json:"mom" parquet:"mom"`
	RSISign   int64   `json:"rsi_sign" parquet:"rsi_sign"`
	MACDSign  int64   `json:"macd_sign" parquet:"macd_sign"`
	EMASign   int64   `json:"ema_sign" parquet:"ema_sign"`
	SMASign   int64   `json:"sma_sign" parquet:"sma_sign"`
	MOMSign   int64   `json:"mom_sign" parquet:"mom_sign"`
}

// metricsDoc сводка прогона для <run-id>_metrics.json
type metricsDoc struct {
	RunID     string             `json:"run_id"`
	Symbol    string             `json:"symbol"`
	Strategy  string             `json:"strategy"`
	StartedAt time.Time          `json:"started_at"`
	Params    map[string]float64 `json:"params"`
	Metrics   metricsRow         `json:"metrics"`
	ExitStats []exitStatRow      `json:"exit_stats"`
}

type metricsRow struct {
	InitialCapital        float64   `json:"initial_capital"`
	FinalCapital          float64   `json:"final_capital"`
	TotalReturn           float64   `json:"total_return"`
	GrossTotalReturn      float64   `json:"gross_total_return"`
	AnnualizedReturn      float64   `json:"annualized_return"`
	GrossAnnualizedReturn float64   `json:"gross_annualized_return"`
	Volatility            float64   `json:"volatility"`
	SharpeRatio           float64   `json:"sharpe_ratio"`
	MaxDrawdown           float64   `json:"max_drawdown"`
	CalmarRatio           float64   `json:"calmar_ratio"`
	TotalTrades           int       `json:"total_trades"`
	WinRate               float64   `json:"win_rate"`
	GrossWinRate          float64   `json:"gross_win_rate"`
	AvgWin                float64   `json:"avg_win"`
	GrossAvgWin           float64   `json:"gross_avg_win"`
	AvgLoss               float64   `json:"avg_loss"`
	ProfitFactor          jsonFloat `json:"profit_factor"`
	TotalCommissions      float64   `json:"total_commissions"`
	CommissionImpact      float64   `json:"commission_impact"`
	PeriodDays            int       `json:"period_days"`
	PeriodYears           float64   `json:"period_years"`
}

type exitStatRow struct {
	Reason    string  `json:"reason"`
	Count     int     `json:"count"`
	AvgReturn float64 `json:"avg_return"`
	WinRate   float64 `json:"win_rate"`
}

// jsonFloat кодирует бесконечность строкой "inf", которую не допускает encoding/json
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(v):
		return []byte(`null`), nil
	}
	return json.Marshal(v)
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"inf"`:
		*f = jsonFloat(math.Inf(1))
		return nil
	case `"-inf"`:
		*f = jsonFloat(math.Inf(-1))
		return nil
	case `null`:
		*f = jsonFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

func toAnnotatedRow(b models.AnnotatedBar) annotatedRow {
	return annotatedRow{
		Timestamp:       b.Timestamp.UnixMilli(),
		Close:           b.Close,
		Volume:          b.Volume,
		VolumeThreshold: b.VolumeThreshold,
		HighVolume:      b.HighVolume,
		Uptrend:         b.Uptrend,
		BuyCondition:    b.BuyCondition,
		BuySignal:       b.BuySignal,
		SellSignal:      b.SellSignal,
		Position:        b.Position.String(),
		EntryPrice:      b.EntryPrice,
		ExitPrice:       b.ExitPrice,
		ExitReason:      string(b.ExitReason),
	}
}

func toEquityRow(p models.EquityPoint) equityRow {
	return equityRow{
		Timestamp:            p.Timestamp.UnixMilli(),
		Equity:               p.Equity,
		CumulativeCommission: p.CumulativeCommission,
		TotalCommission:      p.TotalCommission,
	}
}

func toTradeRow(t models.Trade) tradeRow {
	return tradeRow{
		EntryTime:       t.EntryTime.UnixMilli(),
		ExitTime:        t.ExitTime.UnixMilli(),
		EntryPrice:      t.EntryPrice,
		ExitPrice:       t.ExitPrice,
		Return:          t.Return,
		ExitReason:      string(t.ExitReason),
		BarsHeld:        int64(t.BarsHeld),
		Shares:          t.Shares,
		EntryCommission: t.EntryCommission,
		ExitCommission:  t.ExitCommission,
	}
}

func toFeatureRow(f models.Features) featureRow {
	return featureRow{
		Timestamp: f.Timestamp.UnixMilli(),
		RSI:       f.RSI,
		MACD:      f.MACD,
		EMA:       f.EMA,
		SMA:       f.SMA,
		MOM:       f.MOM,
		RSISign:   int64(f.RSISign),
		MACDSign:  int64(f.MACDSign),
		EMASign:   int64(f.EMASign),
		SMASign:   int64(f.SMASign),
		MOMSign:   int64(f.MOMSign),
	}
}

func toMetricsDoc(run *models.Run) metricsDoc {
	m := run.Metrics
	doc := metricsDoc{
		RunID:     run.ID,
		Symbol:    run.Symbol,
		Strategy:  run.Strategy,
		StartedAt: run.StartedAt,
		Params:    run.Params,
		Metrics: metricsRow{
			InitialCapital:        m.InitialCapital,
			FinalCapital:          m.FinalCapital,
			TotalReturn:           m.TotalReturn,
			GrossTotalReturn:      m.GrossTotalReturn,
			AnnualizedReturn:      m.AnnualizedReturn,
			GrossAnnualizedReturn: m.GrossAnnualizedReturn,
			Volatility:            m.Volatility,
			SharpeRatio:           m.SharpeRatio,
			MaxDrawdown:           m.MaxDrawdown,
			CalmarRatio:           m.CalmarRatio,
			TotalTrades:           m.TotalTrades,
			WinRate:               m.WinRate,
			GrossWinRate:          m.GrossWinRate,
			AvgWin:                m.AvgWin,
			GrossAvgWin:           m.GrossAvgWin,
			AvgLoss:               m.AvgLoss,
			ProfitFactor:          jsonFloat(m.ProfitFactor),
			TotalCommissions:      m.TotalCommissions,
			CommissionImpact:      m.CommissionImpact,
			PeriodDays:            m.PeriodDays,
			PeriodYears:           m.PeriodYears,
		},
	}
	for _, s := range run.ExitStats {
		doc.ExitStats = append(doc.ExitStats, exitStatRow{
			Reason:    string(s.Reason),
			Count:     s.Count,
			AvgReturn: s.AvgReturn,
			WinRate:   s.WinRate,
		})
	}
	return doc
}

// CSV-представления строк

func msTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// money денежная сумма, округленная до сотых долей цента
func money(f float64) string {
	return decimal.NewFromFloat(f).Round(4).String()
}

var (
	annotatedHeader = []string{"timestamp", "close", "volume", "volume_threshold", "high_volume", "uptrend",
		"buy_condition", "buy_signal", "sell_signal", "position", "entry_price", "exit_price", "exit_reason"}
	equityHeader  = []string{"timestamp", "equity", "cumulative_commission", "total_commission"}
	tradeHeader   = []string{"entry_time", "exit_time", "entry_price", "exit_price", "return", "exit_reason", "bars_held", "shares", "entry_commission", "exit_commission"}
	featureHeader = []string{"timestamp", "rsi", "macd", "ema", "sma", "mom", "rsi_sign", "macd_sign", "ema_sign", "sma_sign", "mom_sign"}
)

func (r annotatedRow) record() []string {
	return []string{
		msTime(r.Timestamp), num(r.Close), num(r.Volume), num(r.VolumeThreshold),
		strconv.FormatBool(r.HighVolume), strconv.FormatBool(r.Uptrend), strconv.FormatBool(r.BuyCondition),
		strconv.FormatBool(r.BuySignal), strconv.FormatBool(r.SellSignal),
		r.Position, num(r.EntryPrice), num(r.ExitPrice), r.ExitReason,
	}
}

func (r equityRow) record() []string {
	return []string{msTime(r.Timestamp), money(r.Equity), money(r.CumulativeCommission), money(r.TotalCommission)}
}

func (r tradeRow) record() []string {
	return []string{
		msTime(r.EntryTime), msTime(r.ExitTime), num(r.EntryPrice), num(r.ExitPrice), num(r.Return),
		r.ExitReason, strconv.FormatInt(r.BarsHeld, 10), num(r.Shares), money(r.EntryCommission), money(r.ExitCommission),
	}
}

func (r featureRow) record() []string {
	return []string{
		msTime(r.Timestamp), num(r.RSI), num(r.MACD), num(r.EMA), num(r.SMA), num(r.MOM),
		strconv.FormatInt(r.RSISign, 10), strconv.FormatInt(r.MACDSign, 10), strconv.FormatInt(r.EMASign, 10),
		strconv.FormatInt(r.SMASign, 10), strconv.FormatInt(r.MOMSign, 10),
	}
}
