package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skalibog/volbreak/internal/config"
	"github.com/skalibog/volbreak/internal/engine"
	"github.com/skalibog/volbreak/internal/report"
	"github.com/skalibog/volbreak/internal/storage"
	"github.com/skalibog/volbreak/pkg/logger"
	"github.com/skalibog/volbreak/pkg/models"
	"go.uber.org/zap"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	sweep := flag.Bool("sweep", false, "перебор параметров из секции sweep вместо одного прогона")
	top := flag.Int("top", 10, "число лучших сочетаний в отчете перебора")
	importBars := flag.Bool("import", false, "записать загруженные свечи в InfluxDB и завершить работу")
	flag.Parse()

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.String("path", *configPath), zap.Error(err))
	}

	if err := logger.Init(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, JSONFile: cfg.Log.JSONFile}); err != nil {
		logger.Fatal("Ошибка инициализации логгера", zap.Error(err))
	}
	defer logger.GetLogger().Sync()

	// Контекст отменяется по сигналу завершения
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *sweep, *top, *importBars); err != nil {
		logger.Error("Ошибка выполнения", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, sweep bool, top int, importBars bool) error {
	query, err := storage.QueryFromConfig(cfg)
	if err != nil {
		return err
	}

	// Загружаем свечи
	source, err := storage.NewSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации источника данных: %w", err)
	}
	bars, err := source.GetBars(ctx, query)
	source.Close()
	if err != nil {
		return fmt.Errorf("ошибка загрузки свечей: %w", err)
	}
	logger.Info("Свечи загружены",
		zap.String("source", cfg.Data.Source),
		zap.String("symbol", query.Symbol),
		zap.Int("count", len(bars)))

	if importBars {
		return importToInflux(ctx, cfg, query, bars)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	if sweep {
		results, err := eng.Sweep(ctx, bars, engine.GridFromConfig(cfg.Sweep))
		if err != nil {
			return fmt.Errorf("ошибка перебора параметров: %w", err)
		}
		fmt.Println(report.RenderSweep(results, top))
		return nil
	}

	result, err := eng.Run(ctx, bars)
	if err != nil {
		return fmt.Errorf("ошибка прогона: %w", err)
	}
	fmt.Println(report.Render(result, cfg.Report))

	// Сохраняем результаты
	sink, err := storage.NewSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}
	defer sink.Close()

	return sink.SaveRun(ctx, result)
}

func importToInflux(ctx context.Context, cfg *config.Config, query storage.Query, bars []models.Bar) error {
	store, err := storage.NewInfluxDBStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}
	defer store.Close()

	if err := store.SaveBars(ctx, query.Symbol, query.Interval, bars); err != nil {
		return err
	}
	logger.Info("Свечи записаны в InfluxDB", zap.String("symbol", query.Symbol), zap.Int("count", len(bars)))
	return nil
}
