package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-list/internal/config"
	"github.com/BuzzLyutic/task-list/internal/handler"
	"github.com/BuzzLyutic/task-list/internal/live"
	"github.com/BuzzLyutic/task-list/internal/metrics"
	"github.com/BuzzLyutic/task-list/internal/service"
	"github.com/BuzzLyutic/task-list/internal/storage"
	"github.com/BuzzLyutic/task-list/internal/theme"
)

func main() {
	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Загрузка конфигурации
	cfg := config.Load()

	// Открываем хранилище
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := storage.Open(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	defer st.Close()
	logger.Info("Storage ready", zap.String("backend", cfg.StorageBackend))

	taskService := service.NewTaskService(st, logger,
		service.WithKey(cfg.TasksKey),
		service.WithTimeout(cfg.StorageTimeout),
	)
	themes := theme.NewManager(st, logger, cfg.ThemeKey, cfg.StorageTimeout)

	hub := live.NewHub(logger, cfg.AllowedOrigin)
	collector := metrics.NewCollector()
	taskService.Subscribe(hub.Observe)
	taskService.Subscribe(collector.Observe)

	taskService.LoadTasks()
	logger.Info("Tasks loaded", zap.Int("count", taskService.GetStats().Total))

	r := handler.NewRouter(handler.Routes{
		Tasks:   handler.NewTaskHandler(taskService, logger),
		Theme:   handler.NewThemeHandler(themes, cfg.SystemTheme, logger),
		Live:    hub.ServeWS,
		Metrics: collector.Handler(),
	})

	srv := http.Server{ // Создаем сервер
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout не ставим: /ws держит соединение открытым
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	hub.Close()

	// Финальное сохранение на случай, если последняя запись не прошла
	taskService.SaveTasks()
	logger.Info("Server stopped successfully!")
}
