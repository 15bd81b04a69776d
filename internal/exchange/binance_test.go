package exchange

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKlineToBar(t *testing.T) {
	bar, err := klineToBar(kline{OpenTime: 1714989600000, Close: "61234.56000000", Volume: "12.345"})
	if err != nil {
		t.Fatal(err)
	}
	if !bar.Timestamp.Equal(time.UnixMilli(1714989600000)) || bar.Close != 61234.56 || bar.Volume != 12.345 {
		t.Errorf("bar = %+v", bar)
	}

	if _, err := klineToBar(kline{Close: "n/a", Volume: "1"}); err == nil {
		t.Error("expected close parse error")
	}
	if _, err := klineToBar(kline{Close: "1", Volume: ""}); err == nil {
		t.Error("expected volume parse error")
	}
}

// fakeExchange отдает свечи по 5 минут начиная с base
type fakeExchange struct {
	base  int64
	total int
	calls []int64
}

func (f *fakeExchange) fetch(_ context.Context, _, _ string, start, end int64, limit int) ([]kline, error) {
	f.calls = append(f.calls, start)
	step := int64(5 * time.Minute / time.Millisecond)

	var out []kline
	for i := 0; i < f.total && len(out) < limit; i++ {
		ts := f.base + int64(i)*step
		if ts < start || (end != 0 && ts > end) {
			continue
		}
		out = append(out, kline{OpenTime: ts, Close: fmt.Sprintf("%d.5", 100+i), Volume: "10"})
	}
	return out, nil
}

func TestGetBars_Paginates(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeExchange{base: from.UnixMilli(), total: 2*klinesLimit + 10}
	c := &BinanceClient{fetch: fake.fetch}

	bars, err := c.GetBars(context.Background(), "BTCUSDT", "5m", from, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != fake.total {
		t.Fatalf("expected %d bars, got %d", fake.total, len(bars))
	}
	if len(fake.calls) != 3 {
		t.Errorf("expected 3 pages, got %d", len(fake.calls))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			t.Fatalf("bars not strictly increasing at %d", i)
		}
	}
}

func TestGetBars_SinglePageWithoutStart(t *testing.T) {
	fake := &fakeExchange{base: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), total: 2 * klinesLimit}
	c := &BinanceClient{fetch: fake.fetch}

	bars, err := c.GetBars(context.Background(), "BTCUSDT", "5m", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != klinesLimit || len(fake.calls) != 1 {
		t.Errorf("bars %d, calls %d", len(bars), len(fake.calls))
	}
}

func TestGetBars_PropagatesError(t *testing.T) {
	boom := errors.New("rate limited")
	c := &BinanceClient{fetch: func(context.Context, string, string, int64, int64, int) ([]kline, error) {
		return nil, boom
	}}
	if _, err := c.GetBars(context.Background(), "BTCUSDT", "5m", time.Now(), time.Time{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
