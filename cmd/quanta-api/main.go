// Quanta API — HTTP gateway сервиса исполнения квантовых схем.
//
// Gateway:
//   - Принимает QASM3-схемы и создаёт задачи (PENDING)
//   - Публикует события task.submitted в очередь воркеров
//   - Отдаёт статусы, результаты и страницы задач
//   - Отменяет и удаляет задачи (cancel-then-delete)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Quanta/internal/api"
	"github.com/shaiso/Quanta/internal/mq"
	"github.com/shaiso/Quanta/internal/repo"
	"github.com/shaiso/Quanta/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting quanta-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	taskRepo := repo.NewTaskRepo(pool)

	// RabbitMQ: без брокера gateway работает, но доставка задач
	// воркерам ложится на их polling fallback.
	var publisher api.Publisher
	queueConnected := func() bool { return false }

	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, tasks will be picked up by worker polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
		queueConnected = mqConn.IsConnected
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Tasks:          taskRepo,
		Publisher:      publisher,
		Logger:         logger,
		DBPing:         pool.Ping,
		QueueConnected: queueConnected,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// HTTP сервер с graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("quanta-api stopped")
}
