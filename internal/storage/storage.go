// Package storage загружает свечи и сохраняет результаты прогонов.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/internal/exchange"
	"github.com/skalibog/volbreak/pkg/models"
)

// Query параметры выборки свечей. Нулевые границы не ограничивают выборку.
type Query struct {
	Symbol   string
	Interval string
	From     time.Time
	To       time.Time
}

// Source источник свечей
type Source interface {
	GetBars(ctx context.Context, q Query) ([]models.Bar, error)
	Close()
}

// Sink хранилище результатов прогонов
type Sink interface {
	SaveRun(ctx context.Context, run *models.Run) error
	Close()
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// QueryFromConfig строит выборку из секций data и backtest
func QueryFromConfig(cfg *config.Config) (Query, error) {
	loc, err := location(cfg)
	if err != nil {
		return Query{}, err
	}

	q := Query{Symbol: cfg.Backtest.Symbol, Interval: cfg.Data.Interval}
	if q.From, err = parseDate(cfg.Data.From, loc); err != nil {
		return Query{}, err
	}
	if q.To, err = parseDate(cfg.Data.To, loc); err != nil {
		return Query{}, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return Query{}, fmt.Errorf("конец периода %s раньше начала %s", cfg.Data.To, cfg.Data.From)
	}
	return q, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("ошибка разбора даты %q", s)
}

// location пояс для меток времени без явного смещения, по умолчанию UTC
func location(cfg *config.Config) (*time.Location, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return time.UTC, nil
	}
	return loc, nil
}

// Contains проверяет попадание метки времени в границы выборки
func (q Query) Contains(ts time.Time) bool {
	if !q.From.IsZero() && ts.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && ts.After(q.To) {
		return false
	}
	return true
}

// NewSource создает источник свечей по data.source
func NewSource(ctx context.Context, cfg *config.Config) (Source, error) {
	switch cfg.Data.Source {
	case config.SourceCSV, config.SourceJSON, config.SourceParquet:
		return NewFileStorage(cfg)
	case config.SourceInfluxDB:
		return NewInfluxDBStorage(ctx, cfg.Storage)
	case config.SourceBinance:
		client, err := exchange.NewBinanceClient(cfg.Binance)
		if err != nil {
			return nil, err
		}
		return binanceSource{client: client}, nil
	default:
		return nil, fmt.Errorf("неизвестный источник данных %q", cfg.Data.Source)
	}
}

// NewSink создает хранилище результатов по storage.type
func NewSink(ctx context.Context, cfg *config.Config) (Sink, error) {
	switch cfg.Storage.Type {
	case config.StorageFile:
		return NewFileStorage(cfg)
	case config.StorageInfluxDB:
		return NewInfluxDBStorage(ctx, cfg.Storage)
	case config.StorageNone:
		return discardSink{}, nil
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища %q", cfg.Storage.Type)
	}
}

type binanceSource struct {
	client *exchange.BinanceClient
}

func (s binanceSource) GetBars(ctx context.Context, q Query) ([]models.Bar, error) {
	return s.client.GetBars(ctx, q.Symbol, q.Interval, q.From, q.To)
}

func (binanceSource) Close() {}

type discardSink struct{}

func (discardSink) SaveRun(context.Context, *models.Run) error { return nil }

func (discardSink) Close() {}
