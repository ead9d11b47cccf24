// Command dispatcherd is the dispatch-core process entrypoint: it loads
// configuration, wires every package in this module together, and runs
// the Operator API alongside the Dispatcher supervisor and the
// janitor/compactor/reconciler/invariant/retry-drainer background loops
// until it receives a termination signal.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/admission"
	"github.com/dialfleet/dispatch-core/campaign"
	"github.com/dialfleet/dispatch-core/carrier"
	"github.com/dialfleet/dispatch-core/dconfig"
	"github.com/dialfleet/dispatch-core/dispatcher"
	"github.com/dialfleet/dispatch-core/durable"
	"github.com/dialfleet/dispatch-core/httpapi"
	"github.com/dialfleet/dispatch-core/invariant"
	"github.com/dialfleet/dispatch-core/janitor"
	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/mysql"
	"github.com/dialfleet/dispatch-core/rediscore"
	"github.com/dialfleet/dispatch-core/retry"
	"github.com/dialfleet/dispatch-core/signalbus"
	"github.com/dialfleet/dispatch-core/xcrypt" // package crypter
)

func main() {
	setupLogger()

	var cfg dconfig.Dispatch
	if err := dconfig.Read(&cfg); err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logrus.Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := rediscore.New(ctx, rediscore.DefaultOptions(cfg.Redis.Addr))
	if err != nil {
		logrus.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	logrus.Info("redis connected")

	mysqlClient, err := mysql.NewMysqlClient(cfg.MySQL.DSN)
	if err != nil {
		logrus.Fatalf("failed to connect to mysql: %v", err)
	}
	defer mysqlClient.Close()
	logrus.Info("mysql connected")

	phoneCrypter := phoneCrypterFromEnv()

	store := leasestore.NewRedisStore(redisClient)
	durableStore := durable.NewStore(mysqlClient, phoneCrypter)

	campaignRepo := durable.NewCampaignRepository(durableStore)
	contactStore := durable.NewContactStore(durableStore)
	callLogStore := durable.NewCallLogStore(durableStore)
	retryRecorder := durable.NewRetryRecorder(durableStore)
	lister := durable.NewCampaignLister(durableStore)

	lifecycle := campaign.NewMachine(campaignRepo, store, logrus.NewEntry(logrus.StandardLogger()))

	var auditLogger retry.AttemptRecorder
	if path := os.Getenv("RETRY_AUDIT_LOG_PATH"); path != "" {
		auditLogger = retry.NewAuditLogger(path, 50, 5, 28)
	}

	retryQueue := retry.NewQueue(redisClient, store)
	retryScheduler := retry.NewScheduler(retryQueue, store, retry.ChainRecorders(retryRecorder, auditLogger)).
		WithContactRetryState(contactStore)
	retryDrainer := retry.NewDrainer(redisClient, retryQueue, lister, logrus.NewEntry(logrus.StandardLogger()))

	admissionCtrl := admission.NewController(store, cfg)

	signalBus := signalbus.NewBus(redisClient, voiceCrypterFromEnv(), logrus.NewEntry(logrus.StandardLogger()))

	carrierBaseURL := os.Getenv("CARRIER_BASE_URL")
	if carrierBaseURL == "" {
		carrierBaseURL = "http://localhost:9000"
	}
	carrierClient := carrier.NewHTTPClient(carrierBaseURL)
	densityTracker := carrier.NewDensityTracker(store, time.Minute, 0.5, 10, 2*time.Minute)
	_ = densityTracker // observed by the onWebhook edge (out of this module's scope, spec §6); wired here so its deployment home is explicit

	j := janitor.NewJanitor(redisClient, store, lister, 2*cfg.ReservationTTL(), logrus.NewEntry(logrus.StandardLogger()))
	compactor := janitor.NewCompactor(redisClient, store, lister, logrus.NewEntry(logrus.StandardLogger()))
	reconciler := janitor.NewReconciler(redisClient, store, lister, contactStore, lifecycle, lifecycle, logrus.NewEntry(logrus.StandardLogger()))

	registry := prometheus.NewRegistry()
	invariant.MustRegister(registry)
	var invariantSink invariant.Sink
	if path := os.Getenv("INVARIANT_SINK_PATH"); path != "" {
		invariantSink = invariant.NewFileSink(path)
	}
	invariantMonitor := invariant.NewMonitor(store, lister, invariantSink, logrus.NewEntry(logrus.StandardLogger()))

	// Cold start: a crashed worker can leave durable contacts stuck at
	// "calling" with no Redis lease behind them; resolve that before any
	// background loop or dispatcher starts polling (spec §4.5, §7).
	logrus.Info("running cold-start reconciliation pass")
	reconciler.RunOnce(ctx)

	go j.Run(ctx, cfg.JanitorInterval())
	go compactor.Run(ctx, cfg.CompactorInterval())
	go reconciler.Run(ctx, cfg.ReconcilerInterval())
	go invariantMonitor.Run(ctx, cfg.InvariantInterval())
	go retryDrainer.Run(ctx, 5*time.Second)

	excludeVoicemailByCampaign := func(campaignID string) (string, bool) {
		c, err := campaignRepo.FindCampaign(ctx, campaignID)
		if err != nil {
			logrus.WithError(err).WithField("campaign_id", campaignID).Warn("dispatcher build: find campaign failed, using defaults")
			return "", false
		}
		return c.PhonePoolRef, c.ExcludeVoicemail
	}

	buildDispatcher := func(campaignID string) *dispatcher.Dispatcher {
		fromNumber, excludeVoicemail := excludeVoicemailByCampaign(campaignID)
		return dispatcher.New(campaignID, dispatcher.Config{
			Store:            store,
			Admission:        admissionCtrl,
			Carrier:          carrierClient,
			Contacts:         contactStore,
			SignalBus:        signalBus,
			RetryScheduler:   retryScheduler,
			CallLog:          callLogStore,
			Dispatch:         cfg,
			FromNumber:       fromNumber,
			ExcludeVoicemail: excludeVoicemail,
		})
	}

	supervisor := newDispatcherSupervisor(redisClient, lister, buildDispatcher, 45*time.Second, logrus.NewEntry(logrus.StandardLogger()))
	go supervisor.Run(ctx, 5*time.Second)

	apiServer := httpapi.NewServer(lifecycle, campaignRepo, store, j, contactStore, httpapi.Config{
		ColdStartTTLSec:    int64(cfg.ColdstartBlockSec),
		DialIdempotencyTTL: int64(cfg.DialIdempotencyTTLSec),
	}, logrus.NewEntry(logrus.StandardLogger()))

	mux := apiServer.Router()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logrus.Infof("operator api listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("operator api failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("operator api forced shutdown")
	}

	logrus.Info("dispatcherd shutdown complete")
}

func setupLogger() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
}

// phoneCrypterFromEnv builds the contacts.phone_number encrypter from
// PHONE_AES_KEY/PHONE_AES_IV. Both unset is a valid local/dev
// configuration (phone numbers stored in plaintext against sqlmock-free
// local MySQL); production deployments must set both.
func phoneCrypterFromEnv() crypter.Crypter {
	key := os.Getenv("PHONE_AES_KEY")
	iv := os.Getenv("PHONE_AES_IV")
	if key == "" || iv == "" {
		return nil
	}
	c, err := crypter.NewAes(key, iv)
	if err != nil {
		logrus.Fatalf("invalid PHONE_AES_KEY/PHONE_AES_IV: %v", err)
	}
	return c
}

// voiceCrypterFromEnv builds the signal-bus frame encrypter from
// SIGNAL_AES_KEY/SIGNAL_AES_IV; nil falls back to signalbus's own
// no-op crypter (see package doc: signal events carry no PII).
func voiceCrypterFromEnv() crypter.Crypter {
	key := os.Getenv("SIGNAL_AES_KEY")
	iv := os.Getenv("SIGNAL_AES_IV")
	if key == "" || iv == "" {
		return nil
	}
	c, err := crypter.NewAes(key, iv)
	if err != nil {
		logrus.Fatalf("invalid SIGNAL_AES_KEY/SIGNAL_AES_IV: %v", err)
	}
	return c
}
