// Quanta Worker — исполнитель задач симуляции квантовых схем.
//
// Worker:
//   - Получает задачи из очереди tasks.submitted и через polling
//   - Захватывает lease на инстанс и исполняет workflow с повторами
//   - Реагирует на сигналы отмены через fanout exchange
//   - Отдаёт /healthz и /metrics на отдельном порту
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Quanta/internal/activity"
	"github.com/shaiso/Quanta/internal/mq"
	"github.com/shaiso/Quanta/internal/repo"
	"github.com/shaiso/Quanta/internal/sim"
	"github.com/shaiso/Quanta/internal/telemetry"
	"github.com/shaiso/Quanta/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting quanta-worker")

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

	// RabbitMQ: без брокера воркер живёт на polling fallback
	var mqConn *mq.Connection
	conn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, falling back to polling", "error", err)
	} else {
		defer conn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		mqConn = conn
	}

	// Backend — встроенный statevector-симулятор
	backend := sim.New(sim.Config{})
	runner := activity.NewRunner(backend, logger, activity.ConfigFromEnv())

	wrk := worker.New(worker.Config{
		Tasks:    repo.NewTaskRepo(pool),
		History:  repo.NewHistoryRepo(pool),
		Leases:   repo.NewLeaseRepo(pool),
		Activity: runner,
		Conn:     mqConn,
		Logger:   logger,
	})

	if err := wrk.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Health и metrics endpoint
	addr := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		addr = ":" + v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("health endpoint listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	wrk.Stop()
	server.Close()

	logger.Info("quanta-worker stopped")
}
