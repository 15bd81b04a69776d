package models

import (
	"time"
)

// Bar представляет одну свечу фиксированного интервала
type Bar struct {
	Timestamp time.Time
	Close     float64
	Volume    float64
}

// PositionState состояние позиции на баре
type PositionState int

const (
	Flat PositionState = iota
	Long
)

func (s PositionState) String() string {
	return [...]string{"FLAT", "LONG"}[s]
}

// ExitReason причина закрытия позиции
type ExitReason string

const (
	NoExit     ExitReason = ""
	StopLoss   ExitReason = "stop_loss"
	TakeProfit ExitReason = "take_profit"
	TimeExit   ExitReason = "time_exit"
	EndOfDay   ExitReason = "end_of_day"
)

// ExitReasons в порядке приоритета проверки
var ExitReasons = []ExitReason{StopLoss, TakeProfit, TimeExit, EndOfDay}

// AnnotatedBar свеча с сигналами и состоянием позиции
type AnnotatedBar struct {
	Bar

	// Поля сигнала (для агрегированного варианта берутся из бакета)
	VolumeThreshold float64
	ThresholdReady  bool
	HighVolume      bool
	Uptrend         bool
	BuyCondition    bool

	// Поля, записываемые автоматом позиции
	BuySignal  bool
	SellSignal bool
	Position   PositionState
	EntryPrice float64
	ExitPrice  float64
	ExitReason ExitReason
}

// Trade завершенная сделка
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Return     float64
	ExitReason ExitReason
	EntryIndex int
	ExitIndex  int
	BarsHeld   int

	// Заполняются по данным кривой капитала
	Shares          float64
	EntryCommission float64
	ExitCommission  float64
}

// Side сторона ноги сделки
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Leg одна нога сделки со своей комиссией
type Leg struct {
	Time       time.Time
	BarIndex   int
	Side       Side
	Price      float64
	Shares     float64
	Notional   float64
	Commission float64
}

// EquityPoint точка кривой капитала
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
	// CumulativeCommission накопленная сумма комиссий на момент точки
	CumulativeCommission float64
	// TotalCommission итоговая сумма комиссий, повторенная по всей серии (0 в начальной точке)
	TotalCommission float64
}

// Metrics сводная статистика прогона
type Metrics struct {
	InitialCapital        float64
	FinalCapital          float64
	TotalReturn           float64
	GrossTotalReturn      float64
	AnnualizedReturn      float64
	GrossAnnualizedReturn float64
	Volatility            float64
	SharpeRatio           float64
	MaxDrawdown           float64
	CalmarRatio           float64
	TotalTrades           int
	WinRate               float64
	GrossWinRate          float64
	AvgWin                float64
	GrossAvgWin           float64
	AvgLoss               float64
	ProfitFactor          float64
	TotalCommissions      float64
	CommissionImpact      float64
	PeriodDays            int
	PeriodYears           float64
}

// ExitStat статистика сделок по причине выхода
type ExitStat struct {
	Reason    ExitReason
	Count     int
	AvgReturn float64
	WinRate   float64
}

// Features индикаторы свечи для вспомогательной разметки
type Features struct {
	Timestamp time.Time
	RSI       float64
	MACD      float64
	EMA       float64
	SMA       float64
	MOM       float64

	// Дискретизированные признаки (+1/-1)
	MACDSign int
	SMASign  int
	EMASign  int
	MOMSign  int
	RSISign  int
}

// Run результат одного прогона бэктеста
type Run struct {
	ID        string
	Symbol    string
	Strategy  string
	StartedAt time.Time
	Params    map[string]float64
	Bars      []AnnotatedBar
	Equity    []EquityPoint
	Trades    []Trade
	Legs      []Leg
	Metrics   Metrics
	ExitStats []ExitStat
	Features  []Features
}
