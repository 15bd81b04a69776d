package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/pkg/logger"
	"github.com/skalibog/volbreak/pkg/models"
	"go.uber.org/zap"
)

// Максимальное число свечей в одном запросе к Binance
const klinesLimit = 1000

// kline общее представление свечи спотового и фьючерсного API
type kline struct {
	OpenTime int64
	Close    string
	Volume   string
}

type fetchFunc func(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]kline, error)

// BinanceClient клиент для загрузки исторических свечей с Binance
type BinanceClient struct {
	futures *futures.Client
	spot    *binance.Client
	fetch   fetchFunc
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	futuresClient := futures.NewClient(cfg.APIKey, cfg.APISecret)
	spotClient := binance.NewClient(cfg.APIKey, cfg.APISecret)

	if cfg.Testnet {
		futures.UseTestnet = true
		// Для спот-клиента нужно изменить базовый URL
		spotClient.BaseURL = "https://testnet.binance.vision"
	}

	c := &BinanceClient{
		futures: futuresClient,
		spot:    spotClient,
	}
	if cfg.Futures {
		c.fetch = c.futuresKlines
	} else {
		c.fetch = c.spotKlines
	}
	return c, nil
}

// GetBars загружает свечи за период [from, to] постранично.
// Нулевой from означает последние klinesLimit свечей, нулевой to - до текущего момента.
func (c *BinanceClient) GetBars(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Bar, error) {
	var start, end int64
	if !from.IsZero() {
		start = from.UnixMilli()
	}
	if !to.IsZero() {
		end = to.UnixMilli()
	}

	var bars []models.Bar
	for {
		klines, err := c.fetch(ctx, symbol, interval, start, end, klinesLimit)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения свечей %s: %w", symbol, err)
		}

		for _, k := range klines {
			bar, err := klineToBar(k)
			if err != nil {
				return nil, err
			}
			bars = append(bars, bar)
		}

		logger.Debug("Получена страница свечей",
			zap.String("symbol", symbol),
			zap.String("interval", interval),
			zap.Int("count", len(klines)))

		if start == 0 || len(klines) < klinesLimit {
			break
		}
		start = klines[len(klines)-1].OpenTime + 1
		if end != 0 && start > end {
			break
		}
	}

	return bars, nil
}

// klineToBar переводит строковые поля свечи в числа через decimal без потери точности разбора
func klineToBar(k kline) (models.Bar, error) {
	closePrice, err := decimal.NewFromString(k.Close)
	if err != nil {
		return models.Bar{}, fmt.Errorf("ошибка разбора цены закрытия %q: %w", k.Close, err)
	}
	volume, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return models.Bar{}, fmt.Errorf("ошибка разбора объема %q: %w", k.Volume, err)
	}

	return models.Bar{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Close:     closePrice.InexactFloat64(),
		Volume:    volume.InexactFloat64(),
	}, nil
}

func (c *BinanceClient) spotKlines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]kline, error) {
	svc := c.spot.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit)
	if start != 0 {
		svc = svc.StartTime(start)
	}
	if end != 0 {
		svc = svc.EndTime(end)
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]kline, len(klines))
	for i, k := range klines {
		out[i] = kline{OpenTime: k.OpenTime, Close: k.Close, Volume: k.Volume}
	}
	return out, nil
}

func (c *BinanceClient) futuresKlines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]kline, error) {
	svc := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit)
	if start != 0 {
		svc = svc.StartTime(start)
	}
	if end != 0 {
		svc = svc.EndTime(end)
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]kline, len(klines))
	for i, k := range klines {
		out[i] = kline{OpenTime: k.OpenTime, Close: k.Close, Volume: k.Volume}
	}
	return out, nil
}
