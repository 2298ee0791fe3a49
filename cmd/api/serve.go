package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"CommunityHub/internal/config"
	"CommunityHub/internal/handler"
	"CommunityHub/internal/middleware"
	"CommunityHub/internal/payment"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"
	"CommunityHub/internal/repository/redis"
	"CommunityHub/internal/router"
	"CommunityHub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the membership outbox relayer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			migrate, _ := cmd.Flags().GetBool("migrate")
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "run AutoMigrate before serving")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := pkg.NewLogger(cfg.Log.Level, cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync() // nolint: errcheck

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := mysql.Open(cfg.DB.DSN)
	if err != nil {
		return err
	}
	if migrate {
		if err := mysql.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close() // nolint: errcheck

	processor, err := payment.NewStripeProcessor(payment.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := pkg.NewMetrics(reg)

	issuer := pkg.NewTokenIssuer(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	tokens := redis.NewTokenRepository(rdb)

	userSvc := service.NewUserService(db, tokens, issuer, log)
	communitySvc := service.NewCommunityService(db)
	membershipSvc := service.NewMembershipService(db, processor, cfg.Stripe.Currency, log.Named("membership"), metrics)
	postSvc := service.NewPostService(db)
	likeSvc := service.NewPostLikeService(db, rdb, log)
	commentSvc := service.NewCommentService(db)
	journalSvc := service.NewJournalService(db)

	sender, closeSender, err := buildSender(cfg, db, log)
	if err != nil {
		return err
	}
	defer closeSender()
	relayer := service.NewOutboxRelayer(db, sender, log.Named("outbox"), metrics,
		service.WithInterval(cfg.Outbox.Interval),
		service.WithBatchSize(cfg.Outbox.BatchSize),
		service.WithMaxRetry(cfg.Outbox.MaxRetry),
	)
	relayerDone := make(chan struct{})
	go func() {
		defer close(relayerDone)
		relayer.Run(ctx)
	}()

	engine := router.InitRouter(router.Deps{
		Log:        log,
		Metrics:    metrics,
		Gatherer:   reg,
		Auth:       middleware.NewAuth(issuer, tokens, log),
		User:       handler.NewUserHandler(userSvc, log),
		Community:  handler.NewCommunityHandler(communitySvc, membershipSvc, log),
		Membership: handler.NewMembershipHandler(membershipSvc, log),
		Webhook:    handler.NewWebhookHandler(processor, membershipSvc, redis.NewEventRepository(rdb), log.Named("webhook"), metrics),
		Post:       handler.NewPostHandler(postSvc, log),
		PostLike:   handler.NewPostLikeHandler(likeSvc, log),
		Comment:    handler.NewCommentHandler(commentSvc, log),
		Journal:    handler.NewJournalHandler(journalSvc, log),
	})

	srv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: engine}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.ListenAddr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			<-relayerDone
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	stop()
	<-relayerDone
	return nil
}

// buildSender kafka 与邮件均可选，都没配置时只写日志
func buildSender(cfg *config.Config, db *gorm.DB, log *zap.Logger) (service.Sender, func(), error) {
	var sinks []service.Sink
	closeFn := func() {}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() {
			if err := producer.Close(); err != nil {
				log.Warn("close kafka producer", zap.Error(err))
			}
		}
		sinks = append(sinks, service.Sink{Name: "kafka", Send: service.KafkaSender(producer)})
	} else {
		sinks = append(sinks, service.Sink{Name: "log", Send: service.LogSender(log.Named("outbox"))})
	}

	smtp := pkg.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}
	if smtp.Enabled() {
		sinks = append(sinks, service.Sink{Name: "mail", Send: service.MailSender(pkg.NewMailer(smtp), db)})
	}
	return service.MultiSender(db, sinks...), closeFn, nil
}
