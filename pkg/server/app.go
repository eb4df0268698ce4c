package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	pkgch "IndexPulse/pkg/clickhouse"
	"IndexPulse/pkg/config"
	xhttp "IndexPulse/pkg/http"
	pkgkafka "IndexPulse/pkg/kafka"
	applogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle: the HTTP API, the
// optional Kafka bar-ingestion consumer, the optional training-job
// queue, and graceful shutdown of infrastructure clients.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	handler  xhttp.Handler
	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	chClient *pkgch.Client
	jobQueue *queue.RedisQueue

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. Consumer,
// handler, and job queue may be nil when their subsystems are disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	jobQueue *queue.RedisQueue,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		handler:  handler,
		consumer: consumer,
		kh:       kh,
		chClient: chClient,
		jobQueue: jobQueue,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
		} else {
			a.l.Info("job queue started")
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
