package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	certificatehandler "ecocert/internal/certificate/handler"
	"ecocert/internal/certificate/render"
	certificateservice "ecocert/internal/certificate/service"
	certificatestore "ecocert/internal/certificate/store/certificate"
	certificationhandler "ecocert/internal/certification/handler"
	certificationmetrics "ecocert/internal/certification/metrics"
	certificationservice "ecocert/internal/certification/service"
	documentstore "ecocert/internal/certification/store/document"
	formstore "ecocert/internal/certification/store/form"
	historystore "ecocert/internal/certification/store/history"
	rejectionstore "ecocert/internal/certification/store/rejection"
	requeststore "ecocert/internal/certification/store/request"
	"ecocert/internal/docstore"
	httpapi "ecocert/internal/http"
	"ecocert/internal/jwt_token"
	"ecocert/internal/notification"
	"ecocert/internal/notification/publisher"
	kafkastore "ecocert/internal/notification/store/kafka"
	memorystore "ecocert/internal/notification/store/memory"
	partyhandler "ecocert/internal/party/handler"
	partyservice "ecocert/internal/party/service"
	accountstore "ecocert/internal/party/store/account"
	companystore "ecocert/internal/party/store/company"
	employeestore "ecocert/internal/party/store/employee"
	paymenthandler "ecocert/internal/payment/handler"
	paymentservice "ecocert/internal/payment/service"
	paymentstore "ecocert/internal/payment/store/payment"
	"ecocert/internal/platform/config"
	"ecocert/internal/platform/httpserver"
	"ecocert/internal/platform/kafka"
	"ecocert/internal/platform/logger"
	"ecocert/internal/platform/metrics"
	platformredis "ecocert/internal/platform/redis"
	reporthandler "ecocert/internal/report/handler"
	reportservice "ecocert/internal/report/service"
	reportstore "ecocert/internal/report/store/report"
)

const (
	jwtIssuer   = "ecocert"
	jwtAudience = "ecocert-api"
	tokenTTL    = 24 * time.Hour
)

// Composite store interfaces: every consumer sees its own narrow slice of
// one concrete store, so memory and postgres wiring stay symmetric.
type requestStorage interface {
	certificationservice.RequestStore
	reportservice.RequestCounter
}

type certificateStorage interface {
	certificateservice.Store
	reportservice.CertificateReader
}

type paymentStorage interface {
	paymentservice.Store
	reportservice.PaymentReader
}

type historyStorage interface {
	certificationservice.HistoryStore
	reportservice.HistoryCounter
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	httpMetrics := metrics.New()
	workflowMetrics := certificationmetrics.New()

	// Storage: PostgreSQL when configured, in-memory otherwise.
	var (
		requests     requestStorage
		history      historyStorage
		rejections   certificationservice.ReportStore
		documents    certificationservice.DocumentStore
		forms        certificationservice.FormStore
		certificates certificateStorage
		payments     paymentStorage
		reports      reportservice.Store
		accounts     partyservice.AccountStore
		companies    partyservice.CompanyStore
		employees    partyservice.EmployeeStore
		storeTx   certificationservice.StoreTx
		db           *sql.DB
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		requests = requeststore.NewPostgres(db)
		history = historystore.NewPostgres(db)
		rejections = rejectionstore.NewPostgres(db)
		documents = documentstore.NewPostgres(db)
		forms = formstore.NewPostgres(db)
		certificates = certificatestore.NewPostgres(db)
		payments = paymentstore.NewPostgres(db)
		reports = reportstore.NewPostgres(db)
		accounts = accountstore.NewPostgres(db)
		companies = companystore.NewPostgres(db)
		employees = employeestore.NewPostgres(db)
		storeTx = newStorePostgresTx(db)
		log.Info("using postgres storage")
	} else {
		requests = requeststore.NewInMemory()
		history = historystore.NewInMemory()
		rejections = rejectionstore.NewInMemory()
		documents = documentstore.NewInMemory()
		forms = formstore.NewInMemory()
		certificates = certificatestore.NewInMemory()
		payments = paymentstore.NewInMemory()
		reports = reportstore.NewInMemory()
		accounts = accountstore.NewInMemoryStore()
		companies = companystore.NewInMemoryStore()
		employees = employeestore.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Workflow event sink: Kafka when brokers are configured.
	var eventStore notification.Store = memorystore.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, 3); err != nil {
			cancel()
			log.Error("failed to ensure workflow topic", "error", err)
			os.Exit(1)
		}
		cancel()

		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		eventStore = kafkastore.New(producer)
		log.Info("workflow events publishing to kafka", "topic", cfg.Kafka.Topic)
	}
	events := publisher.NewPublisher(eventStore,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	)
	defer events.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Services.
	party := partyservice.New(accounts, companies, employees,
		partyservice.WithLogger(log),
	)

	paymentOpts := []paymentservice.Option{
		paymentservice.WithLogger(log),
		paymentservice.WithNotifier(events),
	}
	if storeTx != nil {
		paymentOpts = append(paymentOpts, paymentservice.WithStoreTx(storeTx))
	}
	paymentSvc := paymentservice.New(payments, requests, history, paymentOpts...)

	certOpts := []certificateservice.Option{
		certificateservice.WithLogger(log),
		certificateservice.WithNotifier(events),
	}
	if cfg.PaymentGatedIssuance {
		certOpts = append(certOpts, certificateservice.WithPaymentGate(paymentSvc))
		log.Info("certificate issuance is payment gated")
	}
	if redisClient != nil {
		certOpts = append(certOpts, certificateservice.WithRenderCache(redisClient, config.RenderCacheTTL))
	}
	certSvc := certificateservice.New(certificates, render.NewHTMLRenderer(), cfg.CertificateValidity, certOpts...)

	workflowOpts := []certificationservice.Option{
		certificationservice.WithLogger(log),
		certificationservice.WithNotifier(events),
		certificationservice.WithMetrics(workflowMetrics),
	}
	if storeTx != nil {
		workflowOpts = append(workflowOpts, certificationservice.WithStoreTx(storeTx))
	}
	if redisClient != nil {
		workflowOpts = append(workflowOpts, certificationservice.WithFileStore(docstore.NewRedis(redisClient.Client)))
		log.Info("using redis document storage")
	}
	workflow := certificationservice.NewWorkflowService(requests, history, rejections, documents, forms,
		certificateservice.NewWorkflowIssuer(certSvc), workflowOpts...)

	reportSvc := reportservice.New(reports, requests, certificates, payments, history,
		reportservice.WithLogger(log),
	)

	// HTTP surface.
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	router := httpapi.NewRouter(
		partyhandler.New(party, jwtService, tokenTTL, log, httpMetrics),
		certificationhandler.New(workflow, party, log, httpMetrics, validator),
		paymenthandler.New(paymentSvc, log, httpMetrics, validator),
		certificatehandler.New(certSvc, log, httpMetrics, validator),
		reporthandler.New(reportSvc, log, httpMetrics, validator),
	)
	if db != nil {
		router.WithHealthCheck("postgres", dbHealth{db})
	}
	if redisClient != nil {
		router.WithHealthCheck("redis", redisClient)
	}

	srv := httpserver.New(cfg.Addr, router.Build())

	go func() {
		log.Info("ecocert listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
