package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	metricshandler "github.com/aliskhannn/notify-scheduler/internal/api/handlers/metrics"
	notifhandler "github.com/aliskhannn/notify-scheduler/internal/api/handlers/notification"
	"github.com/aliskhannn/notify-scheduler/internal/api/router"
	"github.com/aliskhannn/notify-scheduler/internal/api/server"
	"github.com/aliskhannn/notify-scheduler/internal/config"
	"github.com/aliskhannn/notify-scheduler/internal/metrics"
	"github.com/aliskhannn/notify-scheduler/internal/model"
	deliveryhandler "github.com/aliskhannn/notify-scheduler/internal/rabbitmq/handlers/delivery"
	"github.com/aliskhannn/notify-scheduler/internal/rabbitmq/queue"
	"github.com/aliskhannn/notify-scheduler/internal/reconciler"
	notifrepo "github.com/aliskhannn/notify-scheduler/internal/repository/notification"
	notifsvc "github.com/aliskhannn/notify-scheduler/internal/service/notification"
	"github.com/aliskhannn/notify-scheduler/internal/timewindow"
	"github.com/aliskhannn/notify-scheduler/internal/worker"
	"github.com/aliskhannn/notify-scheduler/pkg/email"
	"github.com/aliskhannn/notify-scheduler/pkg/push"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.NewDeliveryQueue(ch, cfg.Delivery.WaitTick)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create delivery queue")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo := notifrepo.NewRepository(db)

	dbNum, err := strconv.Atoi(cfg.Redis.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse redis database")
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, dbNum)
	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	smtpPort, err := strconv.Atoi(cfg.Email.SMTPPort)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse email smtp port")
	}

	senders := map[model.Channel]notifsvc.Sender{
		model.ChannelPush:  push.NewClient(cfg.Push.GatewayURL, cfg.Push.Token, cfg.Push.Timeout),
		model.ChannelEmail: email.NewClient(cfg.Email.SMTPHost, smtpPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.From),
	}

	aggregator := metrics.New(cfg.Metrics.Capacity, cfg.Metrics.MaxWindow)
	resolver := timewindow.NewResolver(cfg.Delivery.StartHour, cfg.Delivery.EndHour)

	service := notifsvc.NewService(repo, q, rdb, senders, aggregator, resolver, notifsvc.Options{
		MaxAttempts: cfg.Delivery.MaxAttempts,
		RetryDelay:  cfg.Delivery.RetryDelay,
		Identity:    "api@" + hostname,
		SweepGrace:  cfg.Reconciler.Grace,
		SweepLease:  cfg.Reconciler.ProcessingLease,
		SweepBatch:  cfg.Reconciler.Batch,
	})

	taskHandler := deliveryhandler.NewHandler(service, q)

	for _, channel := range model.Channels {
		pool := worker.NewPool(channel, hostname, q, taskHandler, service)
		go pool.Run(ctx, cfg.Retry, cfg.Workers.Count)
	}

	sweeper, err := reconciler.New(service, cfg.Retry, cfg.Reconciler.Interval, cfg.Reconciler.Interval)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create reconciler")
	}
	sweeper.Start()

	r := router.New(
		notifhandler.NewHandler(service, val, resolver, cfg),
		metricshandler.NewHandler(aggregator),
	)
	s := server.New(cfg.Server, r)

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	sweeper.Stop()

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}

	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}
}
