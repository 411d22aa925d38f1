package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/scheduler"
	"github.com/Toskysun/sdu-seat/internal/session"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Wait for the daily release instant and book, repeating every day",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if a.cfg.BookOnce {
				a.log.Info("bookOnce set, booking immediately")
				a.runOnce(ctx)
				return nil
			}

			sched := scheduler.New(a.cfg.TriggerClock(), preRefreshLead(a), a.log)
			sched.Trigger = func(ctx context.Context) { a.runOnce(ctx) }
			if a.cfg.EnableEarlyLogin {
				sched.PreRefresh = func(ctx context.Context) { a.preRefresh(ctx) }
			}

			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			a.log.Info("shutting down")
			return nil
		},
	}
}

func preRefreshLead(a *app) time.Duration {
	if !a.cfg.EnableEarlyLogin {
		return 0
	}
	return time.Duration(a.cfg.EarlyLoginMinutes) * time.Minute
}

// preRefresh warms the run: a bounded loop of forced logins until one
// sticks, a first inventory fetch handed to the orchestrator, and the
// optional keep-alive prober for the gap until the trigger. Failure here
// is never fatal; the trigger retries login itself.
func (a *app) preRefresh(ctx context.Context) {
	max := a.cfg.MaxLoginAttempts
	a.log.Info("pre-refresh starting", zap.Int("maxLoginAttempts", max))

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		if ctx.Err() != nil {
			return
		}
		a.guard.Invalidate()
		if _, lastErr = a.guard.EnsureValid(ctx); lastErr != nil {
			a.log.Warn("pre-refresh login failed",
				zap.Int("attempt", attempt), zap.Int("max", max), zap.Error(lastErr))
			continue
		}
		inv, err := a.fetcher.Fetch(ctx, a.cfg.TargetDate(time.Now()))
		if err != nil {
			lastErr = err
			a.log.Warn("pre-refresh inventory fetch failed", zap.Error(err))
			continue
		}
		a.orch.WarmInventory(inv)
		a.log.Info("pre-refresh done, run starts warm", zap.Int("periods", len(inv)))

		if a.cfg.KeepAliveSeconds > 0 {
			ka := session.NewKeepAlive(a.guard, time.Duration(a.cfg.KeepAliveSeconds)*time.Second, a.log)
			go ka.Run(ctx)
		}
		return
	}

	a.log.Warn("pre-refresh exhausted login attempts, will retry at trigger time", zap.Error(lastErr))
	a.notifier.Notify(
		"图书馆座位预约系统登录失败通知",
		fmt.Sprintf("提前登录失败！\n尝试次数：%d\n\n最后错误：%v\n\n系统将在预约时间重新尝试登录。", max, lastErr),
	)
}
