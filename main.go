package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Elactrac/dotnation-sub005/config"
	"github.com/Elactrac/dotnation-sub005/donation"
	"github.com/Elactrac/dotnation-sub005/feed"
	"github.com/Elactrac/dotnation-sub005/logging"
	"github.com/Elactrac/dotnation-sub005/monitor"
	"github.com/Elactrac/dotnation-sub005/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.ServiceVersion, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting contract event monitor",
		zap.String("sidecar_url", cfg.SidecarURL),
		zap.String("namespace", cfg.Namespace),
		zap.Int("max_history", cfg.MaxHistorySize),
		zap.Duration("poll_interval", cfg.PollInterval))

	sidecar := feed.NewSidecarFeed(feed.SidecarConfig{
		BaseURL:          cfg.SidecarURL,
		PollInterval:     cfg.PollInterval,
		RequestTimeout:   cfg.RequestTimeout,
		RetryMax:         cfg.RetryMax,
		RetryWaitMin:     cfg.RetryWaitMin,
		RetryWaitMax:     cfg.RetryWaitMax,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerReset:     cfg.BreakerReset,
	}, logger)

	mon := monitor.New(sidecar,
		monitor.WithLogger(logger),
		monitor.WithNamespace(cfg.Namespace),
		monitor.WithHistorySize(cfg.MaxHistorySize),
		monitor.WithDecoder(donation.Decoder{}),
	)

	removeActivity := mon.AddEventListener(monitor.KindContractEmitted, logDonationActivity(logger))
	defer removeActivity()

	sub := startWithRetry(mon, cfg.StartRetries, cfg.StartRetryWait, logger)
	if sub == nil {
		logger.Fatal("could not establish ledger feed subscription",
			zap.Int("attempts", cfg.StartRetries))
	}

	api := server.NewAPIServer(mon, cfg.APIPort, logger)
	api.Start()

	observer := server.NewMetricsObserver(mon, 10*time.Second)

	var flowctl *server.FlowctlController
	if cfg.EnableFlowctl {
		logger.Info("flowctl integration enabled")
		flowctl = server.NewFlowctlController(mon, cfg.APIPort, logger)
		if err := flowctl.Register(); err != nil {
			logger.Warn("flowctl registration failed, continuing without control plane",
				zap.Error(err))
			flowctl = nil
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	if flowctl != nil {
		flowctl.Stop()
	}
	observer.Stop()
	if err := api.Stop(); err != nil {
		logger.Error("error stopping API server", zap.Error(err))
	}
	mon.Stop()
	logger.Info("contract event monitor stopped")
}

// startWithRetry attempts Start until it yields a subscription or the
// retry budget runs out. The sidecar is often still syncing when the
// daemon boots.
func startWithRetry(mon *monitor.Monitor, retries int, wait time.Duration, logger *zap.Logger) *monitor.Subscription {
	for attempt := 1; ; attempt++ {
		sub := mon.Start(func(ev monitor.Event) {
			logger.Debug("event observed",
				zap.String("event_id", ev.ID),
				zap.String("kind", ev.Kind),
				zap.Uint64("block", ev.Block))
		})
		if sub != nil {
			return sub
		}
		if attempt >= retries {
			return nil
		}
		logger.Warn("monitor start failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait))
		time.Sleep(wait)
	}
}

// logDonationActivity decodes contract events into domain events and
// logs the ones the platform operators watch for.
func logDonationActivity(logger *zap.Logger) func(monitor.Event) {
	return func(ev monitor.Event) {
		if len(ev.Payload) < 2 {
			return
		}
		typed, err := donation.Parse(ev.Payload[1], ev.Payload[2:])
		if err != nil || typed == nil {
			// Decode faults are counted and logged by the monitor.
			return
		}
		switch de := typed.(type) {
		case *donation.CampaignCreated:
			logger.Info("campaign created",
				zap.Uint32("campaign_id", de.CampaignID),
				zap.String("owner", de.Owner),
				zap.String("goal", de.Goal),
				zap.Uint64("deadline", de.Deadline))
		case *donation.DonationReceived:
			logger.Info("donation received",
				zap.Uint32("campaign_id", de.CampaignID),
				zap.String("donor", de.Donor),
				zap.String("amount", de.Amount))
		case *donation.FundsWithdrawn:
			logger.Info("funds withdrawn",
				zap.Uint32("campaign_id", de.CampaignID),
				zap.String("beneficiary", de.Beneficiary),
				zap.String("amount", de.Amount))
		case *donation.RefundProcessed:
			logger.Info("refund processed",
				zap.Uint32("campaign_id", de.CampaignID),
				zap.String("donor", de.Donor),
				zap.String("amount", de.Amount))
		case *donation.CampaignStateChanged:
			logger.Info("campaign state changed",
				zap.Uint32("campaign_id", de.CampaignID),
				zap.String("state", de.State))
		case *donation.DonationNftMinted:
			logger.Info("donation NFT minted",
				zap.Uint32("token_id", de.TokenID),
				zap.Uint32("campaign_id", de.CampaignID),
				zap.String("owner", de.Owner))
		case *donation.NftTransfer:
			logger.Info("donation NFT transferred",
				zap.Uint32("token_id", de.TokenID),
				zap.String("from", de.From),
				zap.String("to", de.To))
		}
	}
}
