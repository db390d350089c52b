package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Ticker выполняет один проход планировщика.
type Ticker interface {
	Tick(ctx context.Context)
}

// delayedEvery срабатывает в момент first, затем каждые interval после предыдущего запуска.
type delayedEvery struct {
	first    time.Time
	interval time.Duration
}

func (s delayedEvery) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return t.Add(s.interval)
}

// cronLogger направляет журнал cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)...)
}

// newCron готовит расписание: первый проход через delay, далее раз в interval.
// Пересекающиеся проходы пропускаются, паника прохода перехватывается.
func newCron(ctx context.Context, t Ticker, delay, interval time.Duration, loc *time.Location, log *slog.Logger) *cron.Cron {
	l := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	c.Schedule(delayedEvery{first: time.Now().Add(delay), interval: interval}, cron.FuncJob(func() {
		t.Tick(ctx)
	}))
	return c
}
