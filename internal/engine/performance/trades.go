package performance

import (
	"time"

	"github.com/samber/lo"
	"github.com/skalibog/volbreak/pkg/models"
)

// TradePair пара вход/выход, найденная по сигналам свечей
type TradePair struct {
	BuyIndex    int
	SellIndex   int
	EntryTime   time.Time
	ExitTime    time.Time
	EntryPrice  float64
	ExitPrice   float64
	GrossReturn float64
	// NetReturn = GrossReturn - flatCost: приближение, отличное от точного учета комиссий в кривой капитала
	NetReturn  float64
	ExitReason models.ExitReason
}

// MatchTrades сопоставляет каждую свечу покупки с первой последующей свечой продажи (FIFO, один к одному).
// Продажи без предшествующей несопоставленной покупки пропускаются.
func MatchTrades(bars []models.AnnotatedBar, flatCost float64) []TradePair {
	var pending []int
	var pairs []TradePair

	for i, b := range bars {
		if b.SellSignal && len(pending) > 0 {
			buy := pending[0]
			pending = pending[1:]

			entry := bars[buy].Close
			gross := (b.Close - entry) / entry
			pairs = append(pairs, TradePair{
				BuyIndex:    buy,
				SellIndex:   i,
				EntryTime:   bars[buy].Timestamp,
				ExitTime:    b.Timestamp,
				EntryPrice:  entry,
				ExitPrice:   b.Close,
				GrossReturn: gross,
				NetReturn:   gross - flatCost,
				ExitReason:  b.ExitReason,
			})
		}
		// покупка на той же свече сопоставляется только со следующими продажами
		if b.BuySignal {
			pending = append(pending, i)
		}
	}

	return pairs
}

// ExitBreakdown группирует сделки по причине выхода: число, средняя доходность, доля прибыльных
func ExitBreakdown(trades []models.Trade) []models.ExitStat {
	groups := lo.GroupBy(trades, func(t models.Trade) models.ExitReason { return t.ExitReason })

	var stats []models.ExitStat
	for _, reason := range models.ExitReasons {
		group, ok := groups[reason]
		if !ok {
			continue
		}
		returns := lo.Map(group, func(t models.Trade, _ int) float64 { return t.Return })
		winners := lo.CountBy(returns, func(r float64) bool { return r > 0 })

		stats = append(stats, models.ExitStat{
			Reason:    reason,
			Count:     len(group),
			AvgReturn: mean(returns),
			WinRate:   float64(winners) / float64(len(group)),
		})
	}
	return stats
}
