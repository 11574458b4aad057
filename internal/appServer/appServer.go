package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshuakessell/club-ops-deploy-sub008/config"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/broadcast"
	repository "github.com/joshuakessell/club-ops-deploy-sub008/internal/database/postgres"
	redisstore "github.com/joshuakessell/club-ops-deploy-sub008/internal/database/redis"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/transport"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/worker"

	"github.com/joshuakessell/club-ops-deploy-sub008/pkg/kafka"
	"github.com/joshuakessell/club-ops-deploy-sub008/pkg/postgres"
	"github.com/joshuakessell/club-ops-deploy-sub008/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis backs staff sessions, step-up state and the broadcast bridge
	redisClient := redis.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()

	authStore := redisstore.NewAuthStore(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The hub is constructed here and handed down explicitly; nothing in
	// the tree reaches for a package-level broadcaster.
	hub := broadcast.NewHub()
	bridge := broadcast.NewRedisBridge(hub, redisClient, "clubops:broadcast")
	go func() {
		if err := bridge.Run(ctx); err != nil && err != context.Canceled {
			logrus.Errorf("Broadcast bridge stopped: %v", err)
		}
	}()

	var audit kafka.Producer
	if cfg.Audit.Enabled {
		audit = kafka.NewProducer(cfg.Audit.Brokers, cfg.Audit.Topic)
		logrus.Info("Kafka audit producer initialized")
	} else {
		audit = kafka.NewNoopProducer()
		logrus.Warn("Audit trail disabled, using no-op producer")
	}
	defer audit.Close()

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	customerRepo := repository.NewCustomerRepository(db)

	// Initialize services
	sessionService := service.NewSessionService(sessionRepo, bridge)
	waitlistService := service.NewWaitlistService(waitlistRepo, resourceRepo, bridge, audit)
	resourceService := service.NewResourceService(resourceRepo, bridge)
	reauthService := service.NewReauthService(authStore, cfg.Auth.ChallengeTTL, cfg.Auth.ReauthTTL, cfg.Auth.StepUpPinHash)
	customerService := service.NewCustomerService(customerRepo, audit)

	// Initialize grant sweeper
	sweeper := worker.NewGrantSweeper(authStore, cfg.Worker.SweepInterval, time.Hour)
	go sweeper.Start(ctx)

	// Initialize handlers
	handlers := transport.Handlers{
		Session:  transport.NewSessionHandler(sessionService),
		Waitlist: transport.NewWaitlistHandler(waitlistService),
		Resource: transport.NewResourceHandler(resourceService),
		Admin:    transport.NewAdminHandler(customerService, reauthService),
		WS:       transport.NewWSHandler(hub, authStore, cfg.Kiosk.Secret),
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(handlers, authStore, reauthService, cfg.Kiosk.Secret)); err != nil {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
