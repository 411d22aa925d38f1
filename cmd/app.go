package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/config"
	"github.com/Toskysun/sdu-seat/internal/domain/booking"
	"github.com/Toskysun/sdu-seat/internal/engine"
	"github.com/Toskysun/sdu-seat/internal/inventory"
	"github.com/Toskysun/sdu-seat/internal/libapi"
	"github.com/Toskysun/sdu-seat/internal/logging"
	"github.com/Toskysun/sdu-seat/internal/notify"
	"github.com/Toskysun/sdu-seat/internal/session"
	"github.com/Toskysun/sdu-seat/internal/store"
)

// app wires the components for one process. Assembly lives here so the
// run/book/seats/cancel commands share one construction path.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	client   *libapi.Client
	guard    *session.Guard
	fetcher  *inventory.Fetcher
	engine   *engine.Engine
	orch     *engine.Orchestrator
	history  *store.Store // nil when disabled
	notifier booking.Notifier
}

func buildApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(flagJSONLog, flagVerbose)
	if err != nil {
		return nil, err
	}

	client := libapi.New(log, libapi.WithRetries(cfg.Retry))

	var wechat libapi.WeChatSession
	if cfg.WeChatSession != nil {
		wechat = libapi.WeChatSession{
			UserObj:    cfg.WeChatSession.UserObj,
			User:       cfg.WeChatSession.User,
			School:     cfg.WeChatSession.School,
			Dinepo:     cfg.WeChatSession.Dinepo,
			ConnectSid: cfg.WeChatSession.ConnectSid,
		}
	}
	auth := libapi.NewAuth(client, cfg.UserID, wechat, log)

	guardOpts := []session.GuardOption{}
	if cfg.SessionCachePath != "" {
		cache, err := session.NewCache(cfg.SessionCachePath, cfg.UserID, cfg.DeviceID)
		if err != nil {
			return nil, err
		}
		guardOpts = append(guardOpts, session.WithCache(cache))
	}
	guard := session.NewGuard(auth, log, guardOpts...)

	var notifier booking.Notifier = booking.NopNotifier{}
	if email := cfg.Email(); email != nil {
		notifier = notify.NewMailer(notify.Config{
			SMTPHost:  email.SMTPHost,
			SMTPPort:  email.SMTPPort,
			Username:  email.Username,
			Password:  email.Password,
			Recipient: email.RecipientEmail,
			SSL:       email.SSLEnable,
		}, log)
	}

	fetcher := inventory.New(client, cfg.Area, cfg.Seats, cfg.Window(), log)
	eng := engine.New(client, guard, notifier, cfg.Only, log)
	orch := engine.NewOrchestrator(guard, fetcher, eng, notifier, cfg.Retry, cfg.RetrySleep(), cfg.Only, log)

	var history *store.Store
	if cfg.HistoryPath != "" {
		history, err = store.Open(cfg.HistoryPath)
		if err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:      cfg,
		log:      log,
		client:   client,
		guard:    guard,
		fetcher:  fetcher,
		engine:   eng,
		orch:     orch,
		history:  history,
		notifier: notifier,
	}, nil
}

func (a *app) Close() {
	if a.history != nil {
		a.history.Close()
	}
	_ = a.log.Sync()
}

// runOnce executes one complete daily run, bracketing it with history
// rows when the store is enabled.
func (a *app) runOnce(ctx context.Context) engine.RunReport {
	date := a.cfg.TargetDate(time.Now())

	var runID string
	if a.history != nil {
		// drop any previous run's recorder first so a failed StartRun
		// cannot attribute this run's attempts to yesterday's row
		a.engine.SetRecorder(nil)
		id, err := a.history.StartRun(ctx, date)
		if err != nil {
			a.log.Warn("history run row failed", zap.Error(err))
		} else {
			runID = id
			a.engine.SetRecorder(a.history.RecorderFor(runID))
		}
	}

	report := a.orch.Run(ctx, date)

	if a.history != nil && runID != "" {
		if err := a.history.FinishRun(ctx, runID, report.Status.String(), report.Booked(), len(report.Outcomes)); err != nil {
			a.log.Warn("history finish failed", zap.Error(err))
		}
	}
	a.log.Info("run finished",
		zap.String("date", date),
		zap.Stringer("status", report.Status),
		zap.Int("booked", report.Booked()),
		zap.Int("periods", len(report.Outcomes)),
		zap.Int("passes", report.Passes))
	return report
}
