package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-payments/internal/api"
	"ms-payments/internal/auth"
	"ms-payments/internal/config"
	"ms-payments/internal/izipay"
	"ms-payments/internal/kafka"
	"ms-payments/internal/logger"
	"ms-payments/internal/mailer"
	"ms-payments/internal/payment"
	paymentdb "ms-payments/internal/payment/db"
	"ms-payments/internal/tickets"
	ticketsdb "ms-payments/internal/tickets/db"
)

func connectPostgres(cfg *config.Config, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		log.Warn("REDIS", "Redis disabled, projection cache and token revocation are off")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis connection failed, continuing without cache: %v", err))
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting payment service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg, log)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		topics := []string{cfg.Kafka.Topics.PaymentFulfilled, cfg.Kafka.Topics.PaymentDeclined}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, outcome events are off")
	}

	var ticketMailer tickets.Mailer
	if cfg.EmailEnabled() {
		ticketMailer = mailer.New(mailer.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
		}, log)
	} else {
		log.Warn("MAILER", "Email disabled, issued tickets will not be delivered")
	}

	catalog := ticketsdb.New(bunDB)
	ticketService := tickets.New(catalog, ticketMailer, log, cfg.App.BaseURL)

	gateway := izipay.NewClient(izipay.ClientConfig{
		Endpoint:    cfg.Izipay.Endpoint,
		SiteID:      cfg.Izipay.SiteID,
		APIPassword: cfg.Izipay.APIPassword,
		PublicKey:   cfg.Izipay.PublicKey,
		JSURL:       cfg.Izipay.JSURL,
	}, log)
	signer := &izipay.Signer{
		APIPassword: cfg.Izipay.APIPassword,
		SHAKey:      cfg.Izipay.SHAKey,
	}

	var publisher payment.Publisher
	if producer != nil {
		publisher = producer
	}
	paymentService := payment.New(
		paymentdb.New(bunDB),
		catalog,
		ticketService,
		gateway,
		publisher,
		payment.Topics{
			Fulfilled: cfg.Kafka.Topics.PaymentFulfilled,
			Declined:  cfg.Kafka.Topics.PaymentDeclined,
		},
		log,
	)

	handler := api.NewHandler(paymentService, ticketService, signer,
		api.NewProjectionCache(redisClient, log), log)
	adminAuth := auth.NewVerifier(cfg.App.AdminJWTSecret, redisClient, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.App.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public routes ---
	r.Post("/webhook/izipay", handler.Webhook)
	r.Get("/tickets/verify/{code}", handler.VerifyTicket)
	r.Route("/api/events", func(r chi.Router) {
		r.Post("/{slug}/checkout", handler.Checkout)
		r.Post("/checkout/finalize", handler.Finalize)
		r.Get("/checkout/status", handler.Status)
	})
	log.Info("ROUTER", "Checkout and webhook routes registered")

	// --- Admin routes ---
	r.Group(func(r chi.Router) {
		r.Use(adminAuth.Middleware)
		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/issues", handler.AdminIssue)
			r.Delete("/issues/{issueId}", handler.AdminCancelIssue)
			r.Post("/tickets/{code}/scan", handler.AdminScan)
		})
	})
	log.Info("ROUTER", "Admin routes registered under /api/admin")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Payment service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Payment service shutdown complete")
	}
}
