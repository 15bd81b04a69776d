package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/skalibog/volbreak/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig возвращается при нарушении ограничений конфигурации
var ErrInvalidConfig = errors.New("некорректная конфигурация")

// Варианты генератора сигналов
const (
	VariantAggregated = "aggregated"
	VariantDirect     = "direct"
)

// Источники свечей
const (
	SourceCSV      = "csv"
	SourceJSON     = "json"
	SourceParquet  = "parquet"
	SourceInfluxDB = "influxdb"
	SourceBinance  = "binance"
)

// Типы хранилища результатов
const (
	StorageFile     = "file"
	StorageInfluxDB = "influxdb"
	StorageNone     = "none"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Strategy   StrategyConfig   `yaml:"strategy"`
	Commission CommissionConfig `yaml:"commission"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Data       DataConfig       `yaml:"data"`
	Storage    StorageConfig    `yaml:"storage"`
	Binance    BinanceConfig    `yaml:"binance"`
	Log        LogConfig        `yaml:"log"`
	Report     ReportConfig     `yaml:"report"`
	Sweep      SweepConfig      `yaml:"sweep"`
}

// StrategyConfig параметры стратегии пробоя объема
type StrategyConfig struct {
	Variant          string        `yaml:"variant"`
	VolumeMultiplier float64       `yaml:"volume_multiplier"`
	TrendWindow      int           `yaml:"trend_window"`
	ExitPeriods      int           `yaml:"exit_periods"`
	StopLoss         float64       `yaml:"stop_loss"`
	TakeProfit       float64       `yaml:"take_profit"`
	VolumeWindow     int           `yaml:"volume_window"`
	MinPeriods       int           `yaml:"min_periods"`
	BucketWidth      time.Duration `yaml:"bucket_width"`
	Cutoff           Clock         `yaml:"cutoff"`
	Timezone         string        `yaml:"timezone"`
}

// CommissionConfig тарифы брокера
type CommissionConfig struct {
	Rate   float64 `yaml:"rate"`
	MinFee float64 `yaml:"min_fee"`
	MaxFee float64 `yaml:"max_fee"`
}

// BacktestConfig параметры прогона
type BacktestConfig struct {
	Symbol                string  `yaml:"symbol"`
	InitialCapital        float64 `yaml:"initial_capital"`
	TradingPeriodsPerYear float64 `yaml:"trading_periods_per_year"`
	FlatTradeCost         float64 `yaml:"flat_trade_cost"`
	Features              bool    `yaml:"features"`
}

// DataConfig источник свечей
type DataConfig struct {
	Source          string `yaml:"source"`
	Path            string `yaml:"path"`
	TimestampColumn string `yaml:"timestamp_column"`
	CloseColumn     string `yaml:"close_column"`
	VolumeColumn    string `yaml:"volume_column"`
	TimestampLayout string `yaml:"timestamp_layout"`
	Interval        string `yaml:"interval"`
	From            string `yaml:"from"`
	To              string `yaml:"to"`
}

// StorageConfig настройки хранения результатов
type StorageConfig struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
	OutputDir    string `yaml:"output_dir"`
	Format       string `yaml:"format"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
	Futures   bool   `yaml:"futures"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
}

// ReportConfig пороги интерпретации метрик
type ReportConfig struct {
	SharpeExcellent  float64 `yaml:"sharpe_excellent"`
	SharpeGood       float64 `yaml:"sharpe_good"`
	DrawdownLow      float64 `yaml:"drawdown_low"`
	DrawdownModerate float64 `yaml:"drawdown_moderate"`
	WinRateHigh      float64 `yaml:"win_rate_high"`
	WinRateGood      float64 `yaml:"win_rate_good"`
}

// SweepConfig сетка перебора параметров
type SweepConfig struct {
	VolumeMultipliers []float64 `yaml:"volume_multipliers"`
	ExitPeriods       []int     `yaml:"exit_periods"`
	StopLosses        []float64 `yaml:"stop_losses"`
	TakeProfits       []float64 `yaml:"take_profits"`
	Parallelism       int       `yaml:"parallelism"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		Strategy: StrategyConfig{
			Variant:          VariantAggregated,
			VolumeMultiplier: 1.5,
			TrendWindow:      2,
			ExitPeriods:      12,
			StopLoss:         -0.0025,
			TakeProfit:       0.015,
			VolumeWindow:     20,
			MinPeriods:       10,
			BucketWidth:      15 * time.Minute,
			Cutoff:           Clock{Hour: 16, Minute: 55},
		},
		Commission: CommissionConfig{
			Rate:   0.0005,
			MinFee: 1.25,
			MaxFee: 100,
		},
		Backtest: BacktestConfig{
			Symbol:                "KO",
			InitialCapital:        10000,
			TradingPeriodsPerYear: 252,
			FlatTradeCost:         0.001,
		},
		Data: DataConfig{
			Source:          SourceCSV,
			Path:            "data.csv",
			TimestampColumn: "timestamp",
			CloseColumn:     "close",
			VolumeColumn:    "volume",
			Interval:        "5m",
		},
		Storage: StorageConfig{
			Type:      StorageFile,
			OutputDir: "results",
			Format:    SourceCSV,
		},
		Log: LogConfig{Level: "info"},
		Report: ReportConfig{
			SharpeExcellent:  1.5,
			SharpeGood:       1.0,
			DrawdownLow:      0.10,
			DrawdownModerate: 0.20,
			WinRateHigh:      0.6,
			WinRateGood:      0.5,
		},
		Sweep: SweepConfig{Parallelism: 4},
	}
}

// Load загружает конфигурацию из файла поверх значений по умолчанию
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug("Загружена конфигурация", zap.String("path", path), zap.Any("config", config))
	return config, nil
}

// Parse разбирает YAML и проверяет результат
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	var problems []string
	s := c.Strategy

	if s.Variant != VariantAggregated && s.Variant != VariantDirect {
		problems = append(problems, fmt.Sprintf("неизвестный вариант стратегии %q", s.Variant))
	}
	if s.VolumeMultiplier <= 0 {
		problems = append(problems, "volume_multiplier должен быть положительным")
	}
	if s.TrendWindow <= 0 {
		problems = append(problems, "trend_window должен быть положительным")
	}
	if s.ExitPeriods <= 0 {
		problems = append(problems, "exit_periods должен быть положительным")
	}
	if s.VolumeWindow <= 0 {
		problems = append(problems, "volume_window должен быть положительным")
	}
	if s.MinPeriods <= 0 || s.MinPeriods > s.VolumeWindow {
		problems = append(problems, "min_periods должен быть в диапазоне [1, volume_window]")
	}
	if s.Variant == VariantAggregated && s.BucketWidth <= 0 {
		problems = append(problems, "bucket_width должен быть положительным")
	}
	if !s.Cutoff.Valid() {
		problems = append(problems, fmt.Sprintf("некорректное время закрытия %s", s.Cutoff))
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}

	cm := c.Commission
	if cm.Rate < 0 || cm.MinFee < 0 || cm.MaxFee < 0 {
		problems = append(problems, "параметры комиссии не могут быть отрицательными")
	}
	if cm.MinFee > cm.MaxFee {
		problems = append(problems, "min_fee больше max_fee")
	}

	if c.Backtest.InitialCapital <= 0 {
		problems = append(problems, "initial_capital должен быть положительным")
	}
	if c.Backtest.TradingPeriodsPerYear <= 0 {
		problems = append(problems, "trading_periods_per_year должен быть положительным")
	}

	switch c.Data.Source {
	case SourceCSV, SourceJSON, SourceParquet:
		if c.Data.Path == "" {
			problems = append(problems, "для файлового источника нужен data.path")
		}
	case SourceInfluxDB, SourceBinance:
	default:
		problems = append(problems, fmt.Sprintf("неизвестный источник данных %q", c.Data.Source))
	}

	switch c.Storage.Type {
	case StorageFile:
		if f := c.Storage.Format; f != SourceCSV && f != SourceJSON && f != SourceParquet {
			problems = append(problems, fmt.Sprintf("неизвестный формат выгрузки %q", f))
		}
	case StorageInfluxDB, StorageNone:
	default:
		problems = append(problems, fmt.Sprintf("неизвестный тип хранилища %q", c.Storage.Type))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Location возвращает часовой пояс для правила закрытия дня, nil - пояс самих меток времени
func (c *Config) Location() (*time.Location, error) {
	if c.Strategy.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Strategy.Timezone)
	if err != nil {
		return nil, fmt.Errorf("неизвестный часовой пояс %q: %w", c.Strategy.Timezone, err)
	}
	return loc, nil
}
