package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"post-purge/internal/app"
	"post-purge/internal/delivery/http"
	"post-purge/internal/pkg/config"
	"post-purge/internal/pkg/logger"
)

func main() {
	// Создаем контекст приложения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	// Инициализируем логгер
	isDevelopment := os.Getenv("APP_ENV") != "production"
	l, err := logger.NewLogger(isDevelopment, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer l.Sync()

	log := l.Named("main")

	// Инициализируем слои приложения
	application, err := app.New(ctx, cfg, l)
	if err != nil {
		log.Fatal("Failed to build application", zap.Error(err))
	}
	defer application.Close()

	purger := application.Purger

	// Проверяем учетные данные один раз при старте
	initCtx, initCancel := context.WithTimeout(ctx, cfg.APITimeout)
	account, err := purger.Initialize(initCtx)
	initCancel()
	if err != nil {
		log.Fatal("Failed to initialize", zap.Error(err))
	}

	handler := http.NewHandler(purger, cfg.StatusStreamInterval, l.Named("handler"))

	// Создаем и запускаем HTTP-сервер
	server := http.NewServer(handler, l.Named("server"), cfg.ServerPort)

	// Запускаем сервер в отдельной горутине
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Application started",
		zap.String("handle", account.Handle),
		zap.Int("items_per_batch", cfg.ItemsPerBatch),
		zap.Int("inter_batch_delay_minutes", cfg.InterBatchDelayMinutes))

	// Обрабатываем сигналы остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Ждем сигнал остановки
	<-quit
	log.Info("Shutting down application...")

	// Даем 30 секунд на завершение запросов и запись журнала
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	// Запрещаем новые запуски, отменяем активный и ждем записи журнала
	if err := purger.Shutdown(shutdownCtx); err != nil {
		log.Error("Run did not finish before shutdown", zap.Error(err))
	}

	// Останавливаем сервер
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	log.Info("Application stopped")
}
