package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/samber/lo"
	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/pkg/logger"
	"github.com/skalibog/volbreak/pkg/models"
	"go.uber.org/zap"
)

// FileStorage читает свечи из файла и выгружает прогоны в каталог
type FileStorage struct {
	data      config.DataConfig
	loc       *time.Location
	outputDir string
	format    string
}

// NewFileStorage создает файловое хранилище
func NewFileStorage(cfg *config.Config) (*FileStorage, error) {
	loc, err := location(cfg)
	if err != nil {
		return nil, err
	}
	return &FileStorage{
		data:      cfg.Data,
		loc:       loc,
		outputDir: cfg.Storage.OutputDir,
		format:    strings.ToLower(cfg.Storage.Format),
	}, nil
}

// Close ничего не делает, файлы закрываются сразу после операций
func (s *FileStorage) Close() {}

// GetBars читает свечи из data.path в формате data.source и отбирает попавшие в период
func (s *FileStorage) GetBars(ctx context.Context, q Query) ([]models.Bar, error) {
	var (
		bars []models.Bar
		err  error
	)

	switch s.data.Source {
	case config.SourceCSV:
		bars, err = s.readCSV(s.data.Path)
	case config.SourceJSON:
		bars, err = readJSON(s.data.Path)
	case config.SourceParquet:
		bars, err = readParquet(s.data.Path)
	default:
		return nil, fmt.Errorf("неподдерживаемый формат файла %q", s.data.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения свечей из %s: %w", s.data.Path, err)
	}

	total := len(bars)
	bars = lo.Filter(bars, func(b models.Bar, _ int) bool { return q.Contains(b.Timestamp) })

	logger.Debug("Загружены свечи",
		zap.String("path", s.data.Path),
		zap.Int("total", total),
		zap.Int("selected", len(bars)))
	return bars, nil
}

func (s *FileStorage) readCSV(path string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения заголовка: %w", err)
	}
	ts, cl, vol, err := s.columns(header)
	if err != nil {
		return nil, err
	}

	var bars []models.Bar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}

		t, err := parseTimestamp(rec[ts], s.data.TimestampLayout, s.loc)
		if err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}
		closePrice, err := strconv.ParseFloat(strings.TrimSpace(rec[cl]), 64)
		if err != nil {
			return nil, fmt.Errorf("строка %d: ошибка разбора цены закрытия: %w", line, err)
		}
		volume, err := strconv.ParseFloat(strings.TrimSpace(rec[vol]), 64)
		if err != nil {
			return nil, fmt.Errorf("строка %d: ошибка разбора объема: %w", line, err)
		}

		bars = append(bars, models.Bar{Timestamp: t, Close: closePrice, Volume: volume})
	}
	return bars, nil
}

// columns находит индексы колонок по именам из конфигурации без учета регистра
func (s *FileStorage) columns(header []string) (ts, cl, vol int, err error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	find := func(name string) (int, error) {
		i, ok := index[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("колонка %q не найдена в заголовке %v", name, header)
		}
		return i, nil
	}

	if ts, err = find(s.data.TimestampColumn); err != nil {
		return
	}
	if cl, err = find(s.data.CloseColumn); err != nil {
		return
	}
	vol, err = find(s.data.VolumeColumn)
	return
}

// parseTimestamp разбирает метку времени по заданному шаблону, известным шаблонам
// или как число секунд/миллисекунд Unix
func parseTimestamp(s, layout string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if layout != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("ошибка разбора метки времени %q: %w", s, err)
		}
		return t, nil
	}

	for _, l := range dateLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, nil
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// значения больше 1e11 считаются миллисекундами
		if n > 1e11 {
			return time.UnixMilli(n).In(loc), nil
		}
		return time.Unix(n, 0).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("ошибка разбора метки времени %q", s)
}

func readJSON(path string) ([]models.Bar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []barRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return lo.Map(rows, fromBarRow), nil
}

func readParquet(path string) ([]models.Bar, error) {
	rows, err := parquet.ReadFile[barRow](path)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, fromBarRow), nil
}

func fromBarRow(r barRow, _ int) models.Bar {
	return models.Bar{Timestamp: time.UnixMilli(r.Timestamp).UTC(), Close: r.Close, Volume: r.Volume}
}

// SaveRun выгружает свечи, кривую капитала, сделки и метрики прогона
func (s *FileStorage) SaveRun(ctx context.Context, run *models.Run) error {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("ошибка создания каталога %s: %w", s.outputDir, err)
	}

	var paths []string
	add := func(path string, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return ctx.Err()
	}

	if err := add(writeTable(s.outputDir, run.ID, s.format, table[annotatedRow]{
		name: "bars", header: annotatedHeader, rows: lo.Map(run.Bars, func(b models.AnnotatedBar, _ int) annotatedRow { return toAnnotatedRow(b) }),
	})); err != nil {
		return err
	}
	if err := add(writeTable(s.outputDir, run.ID, s.format, table[equityRow]{
		name: "equity", header: equityHeader, rows: lo.Map(run.Equity, func(p models.EquityPoint, _ int) equityRow { return toEquityRow(p) }),
	})); err != nil {
		return err
	}
	if err := add(writeTable(s.outputDir, run.ID, s.format, table[tradeRow]{
		name: "trades", header: tradeHeader, rows: lo.Map(run.Trades, func(t models.Trade, _ int) tradeRow { return toTradeRow(t) }),
	})); err != nil {
		return err
	}
	if len(run.Features) > 0 {
		if err := add(writeTable(s.outputDir, run.ID, s.format, table[featureRow]{
			name: "features", header: featureHeader, rows: lo.Map(run.Features, func(f models.Features, _ int) featureRow { return toFeatureRow(f) }),
		})); err != nil {
			return err
		}
	}

	metricsPath := filepath.Join(s.outputDir, run.ID+"_metrics.json")
	if err := writeJSON(metricsPath, toMetricsDoc(run)); err != nil {
		return fmt.Errorf("ошибка записи метрик: %w", err)
	}
	paths = append(paths, metricsPath)

	logger.Info("Результаты прогона сохранены",
		zap.String("run_id", run.ID),
		zap.String("format", s.format),
		zap.Strings("files", paths))
	return nil
}

type recorder interface {
	record() []string
}

// table набор строк одной выгрузки
type table[T recorder] struct {
	name   string
	header []string
	rows   []T
}

func writeTable[T recorder](dir, runID, format string, t table[T]) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", runID, t.name, format))

	var err error
	switch format {
	case config.SourceCSV:
		err = writeCSV(path, t.header, lo.Map(t.rows, func(r T, _ int) []string { return r.record() }))
	case config.SourceJSON:
		err = writeJSON(path, t.rows)
	case config.SourceParquet:
		err = parquet.WriteFile(path, t.rows)
	default:
		err = fmt.Errorf("неизвестный формат выгрузки %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	return path, nil
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}
