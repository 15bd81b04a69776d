// Package features размечает свечи техническими индикаторами.
// Разметка вспомогательная и не участвует в сигнале на покупку.
package features

import (
	"github.com/markcheno/go-talib"
	"github.com/skalibog/volbreak/pkg/models"
)

// Периоды индикаторов
const (
	RSIPeriod  = 7
	MACDFast   = 5
	MACDSlow   = 13
	MACDSignal = 9
	EMAPeriod  = 10
	SMAPeriod  = 10
	MOMPeriod  = 10

	rsiOverbought = 70
	rsiOversold   = 30
)

// Lookback число начальных свечей, на которых хотя бы один индикатор не определен
func Lookback() int {
	return max(RSIPeriod, (MACDSlow-1)+(MACDSignal-1), EMAPeriod-1, SMAPeriod-1, MOMPeriod)
}

// Label рассчитывает индикаторы и их знаки.
// Возвращаются только свечи, на которых определены все индикаторы.
func Label(bars []models.Bar) []models.Features {
	start := Lookback()
	if len(bars) <= start {
		return nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	rsi := talib.Rsi(closes, RSIPeriod)
	macd, _, _ := talib.Macd(closes, MACDFast, MACDSlow, MACDSignal)
	ema := talib.Ema(closes, EMAPeriod)
	sma := talib.Sma(closes, SMAPeriod)
	mom := talib.Mom(closes, MOMPeriod)

	out := make([]models.Features, 0, len(bars)-start)
	for i := start; i < len(bars); i++ {
		f := models.Features{
			Timestamp: bars[i].Timestamp,
			RSI:       rsi[i],
			MACD:      macd[i],
			EMA:       ema[i],
			SMA:       sma[i],
			MOM:       mom[i],
		}

		// у первой размеченной свечи нет предыдущего значения, наклон считается отрицательным
		hasPrev := i > start
		f.MACDSign = sign(hasPrev && macd[i]-macd[i-1] > 0)
		f.SMASign = sign(closes[i] > sma[i])
		f.EMASign = sign(closes[i] > ema[i])
		f.MOMSign = sign(mom[i] > 0)
		f.RSISign = rsiSign(rsi[i], hasPrev && rsi[i]-rsi[i-1] > 0)

		out = append(out, f)
	}
	return out
}

// rsiSign: перекупленность -1, перепроданность +1, внутри коридора - знак наклона
func rsiSign(rsi float64, rising bool) int {
	switch {
	case rsi > rsiOverbought:
		return -1
	case rsi < rsiOversold:
		return 1
	default:
		return sign(rising)
	}
}

func sign(positive bool) int {
	if positive {
		return 1
	}
	return -1
}
