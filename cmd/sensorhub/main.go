// SensorHub — сервис сбора телеметрии датчиков температуры и влажности.
//
// Сервис:
//   - Раз в секунду опрашивает датчики ростера
//   - Держит последний снапшот в памяти
//   - Сохраняет показания в PostgreSQL и чистит их по сроку хранения
//   - Рассылает снапшот зрителям через локальный сокет
//   - Опционально зеркалирует снапшоты в RabbitMQ
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/sensorhub/internal/acquisition"
	"github.com/shaiso/sensorhub/internal/api"
	"github.com/shaiso/sensorhub/internal/config"
	"github.com/shaiso/sensorhub/internal/mq"
	"github.com/shaiso/sensorhub/internal/repo"
	"github.com/shaiso/sensorhub/internal/retention"
	"github.com/shaiso/sensorhub/internal/sensor"
	"github.com/shaiso/sensorhub/internal/store"
	"github.com/shaiso/sensorhub/internal/supervisor"
	"github.com/shaiso/sensorhub/internal/telemetry"
	"github.com/shaiso/sensorhub/internal/viewer"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting sensorhub")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	roster, err := cfg.Roster()
	if err != nil {
		logger.Error("invalid sensor roster", "error", err)
		os.Exit(1)
	}

	// DB pool — фатальная ошибка инициализации
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := repo.Migrate(ctx, pool); err != nil {
		pool.Close()
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	sensors := repo.NewSensorRepo(pool)
	if err := sensors.RegisterRoster(ctx, roster.Sensors()); err != nil {
		pool.Close()
		logger.Error("failed to register sensors", "error", err)
		os.Exit(1)
	}
	if err := sensors.RestoreNames(ctx, roster); err != nil {
		logger.Warn("failed to restore sensor names", "error", err)
	}
	logger.Info("database connected", "sensors", roster.Len())

	readings := repo.NewReadingRepo(pool)

	// Точка подключения зрителей — фатальная ошибка инициализации
	ln, err := viewer.Listen(cfg.SocketNetwork, cfg.SocketPath)
	if err != nil {
		pool.Close()
		logger.Error("failed to open viewer endpoint", "error", err)
		os.Exit(1)
	}

	st := store.New()

	server, err := viewer.NewServer(viewer.Config{
		Listener: ln,
		Capacity: cfg.MaxViewers,
		Store:    st,
		Roster:   roster,
		Catalog:  sensors,
		Logger:   logger,
	})
	if err != nil {
		ln.Close()
		pool.Close()
		logger.Error("failed to create viewer server", "error", err)
		os.Exit(1)
	}

	// RabbitMQ — опционально
	var (
		mirror       *mq.Mirror
		loopMirror   acquisition.Mirror
		mirrorRunner supervisor.Runner
	)
	if cfg.RabbitMQURL != "" {
		mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running without snapshot mirror", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			logger.Debug(mq.TopologyInfo())

			mirror, err = mq.NewMirror(mq.MirrorConfig{
				Publisher: mq.NewPublisher(mqConn, logger),
				Logger:    logger,
			})
			if err != nil {
				logger.Error("failed to create snapshot mirror", "error", err)
				os.Exit(1)
			}
			loopMirror, mirrorRunner = mirror, mirror
		}
	}

	loop, err := acquisition.New(acquisition.Config{
		Roster:        roster,
		Source:        sensor.NewSimulator(sensor.SimulatorConfig{}),
		Store:         st,
		Sink:          readings,
		Broadcaster:   server,
		Mirror:        loopMirror,
		Interval:      cfg.SampleInterval,
		SampleTimeout: cfg.SampleTimeout,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to create acquisition loop", "error", err)
		os.Exit(1)
	}

	sweeper, err := retention.New(retention.Config{
		Pruner:    readings,
		Schedule:  cfg.PruneSchedule,
		Retention: cfg.Retention,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create retention sweeper", "error", err)
		os.Exit(1)
	}

	startedAt := time.Now()
	sup, err := supervisor.New(supervisor.Config{
		Multiplexer: server,
		Acquisition: loop,
		Sweeper:     sweeper,
		Mirror:      mirrorRunner,
		Storage:     pool,
		Status: func() []any {
			snap, _ := st.Read()
			return []any{
				"uptime", time.Since(startedAt).Round(time.Second),
				"viewers", server.Viewers(),
				"tick", snap.Tick,
				"stale", snap.StaleCount(),
			}
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create supervisor", "error", err)
		os.Exit(1)
	}

	if err := sup.Start(ctx); err != nil {
		logger.Error("failed to start supervisor", "error", err)
		os.Exit(1)
	}

	// HTTP API: /healthz, /metrics, /api/v1/sensors
	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Store:     st,
		Roster:    roster,
		History:   readings,
		Viewers:   server.Viewers,
		StartedAt: startedAt,
		Logger:    logger,
	}).RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "socket", cfg.SocketNetwork+":"+cfg.SocketPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownHTTP(httpServer, 5*time.Second, logger)

	// Остановка по порядку уже запущена отменой ctx; Stop дожидается её
	sup.Stop()
	logger.Info("sensorhub stopped")
}

// shutdownHTTP останавливает HTTP-сервер, ожидая активные запросы не дольше timeout.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}
}
