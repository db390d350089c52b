// Package scheduler выполняет периодический проход по подпискам:
// напоминает о скором окончании и снимает истёкшие уровни.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-bot/internal/cache"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/month"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/notify"
	"github.com/magabrotheeeer/subscription-bot/internal/services/lifecycle"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

// Названия проходов в порядке выполнения.
const (
	PassMonthlySoon  = "monthly_soon"
	PassMonthlyToday = "monthly_today"
	PassAnnualSoon   = "annual_soon"
	PassAnnualToday  = "annual_today"
)

// Значения по умолчанию.
const (
	DefaultRemindDaysBefore = 3
	DefaultMarkTTL          = 48 * time.Hour
)

// Store — доступ планировщика к подписчикам.
type Store interface {
	FindAnnualEndingOn(ctx context.Context, date time.Time) ([]int64, error)
	FindMonthlyEndingOn(ctx context.Context, date time.Time) ([]int64, error)
	FindAnnualOverdue(ctx context.Context, today time.Time) ([]int64, error)
	FindMonthlyOverdue(ctx context.Context, today time.Time) ([]int64, error)
	UpdateSubscriber(ctx context.Context, chatID int64,
		fn func(models.Subscriber) (models.Subscriber, error)) (models.Subscriber, bool, error)
}

// Marks — метки отправленных напоминаний.
type Marks interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Invalidator сбрасывает кэшированный снимок подписчика.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// Options настраивает планировщик.
type Options struct {
	Location         *time.Location
	RemindDaysBefore int
	MarkTTL          time.Duration
	Now              func() time.Time
	Snapshots        Invalidator
}

// Service выполняет проходы планировщика.
type Service struct {
	store   Store
	sink    notify.Sink
	marks   Marks
	engine  *lifecycle.Engine
	catalog texts.Catalog
	metrics *metrics.Metrics
	log     *slog.Logger

	snapshots  Invalidator
	loc        *time.Location
	remindDays int
	markTTL    time.Duration
	now        func() time.Time
}

// New создаёт планировщик. marks может быть nil: тогда напоминания не дедуплицируются.
func New(
	store Store,
	sink notify.Sink,
	marks Marks,
	engine *lifecycle.Engine,
	catalog texts.Catalog,
	m *metrics.Metrics,
	log *slog.Logger,
	opts Options,
) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RemindDaysBefore <= 0 {
		opts.RemindDaysBefore = DefaultRemindDaysBefore
	}
	if opts.MarkTTL <= 0 {
		opts.MarkTTL = DefaultMarkTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:      store,
		sink:       sink,
		marks:      marks,
		engine:     engine,
		catalog:    catalog,
		metrics:    m,
		log:        log,
		snapshots:  opts.Snapshots,
		loc:        opts.Location,
		remindDays: opts.RemindDaysBefore,
		markTTL:    opts.MarkTTL,
		now:        opts.Now,
	}
}

// Today — текущая календарная дата в часовом поясе планировщика.
func (s *Service) Today() time.Time {
	return month.Date(s.now(), s.loc)
}

// Tick выполняет четыре прохода. Сбой одного прохода не мешает следующим.
func (s *Service) Tick(ctx context.Context) {
	start := time.Now()
	today := s.Today()
	log := s.log.With(
		slog.String("tick_id", uuid.NewString()),
		slog.String("today", today.Format(time.DateOnly)),
	)
	log.Info("scheduler tick started")

	passes := []struct {
		name string
		run  func(ctx context.Context, log *slog.Logger, today time.Time) error
	}{
		{PassMonthlySoon, s.monthlySoon},
		{PassMonthlyToday, s.monthlyToday},
		{PassAnnualSoon, s.annualSoon},
		{PassAnnualToday, s.annualToday},
	}
	for _, p := range passes {
		s.runPass(ctx, log.With(slog.String("pass", p.name)), p.name, today, p.run)
	}

	if s.metrics != nil {
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
	log.Info("scheduler tick finished", slog.Duration("took", time.Since(start)))
}

func (s *Service) runPass(
	ctx context.Context,
	log *slog.Logger,
	name string,
	today time.Time,
	run func(ctx context.Context, log *slog.Logger, today time.Time) error,
) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("scheduler pass panicked", slog.Any("panic", r))
			s.passFailed(name)
		}
	}()
	if err := run(ctx, log, today); err != nil {
		log.Error("scheduler pass failed", sl.Err(err))
		s.passFailed(name)
	}
}

func (s *Service) monthlySoon(ctx context.Context, log *slog.Logger, today time.Time) error {
	const op = "scheduler.monthlySoon"
	date := month.AddDays(today, s.remindDays)
	ids, err := s.store.FindMonthlyEndingOn(ctx, date)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("monthly reminders due", slog.Int("count", len(ids)))
	for _, chatID := range ids {
		s.remind(ctx, log, models.Notification{
			ChatID:   chatID,
			Kind:     models.ReminderMonthlySoon,
			Text:     s.catalog.MonthlySoon(s.remindDays),
			Keyboard: s.catalog.BuyMonth(),
		}, date)
	}
	return nil
}

func (s *Service) annualSoon(ctx context.Context, log *slog.Logger, today time.Time) error {
	const op = "scheduler.annualSoon"
	date := month.AddDays(today, s.remindDays)
	ids, err := s.store.FindAnnualEndingOn(ctx, date)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("annual reminders due", slog.Int("count", len(ids)))
	for _, chatID := range ids {
		s.remind(ctx, log, models.Notification{
			ChatID:   chatID,
			Kind:     models.ReminderAnnualSoon,
			Text:     s.catalog.AnnualSoon(s.remindDays),
			Keyboard: texts.BuyYear(),
		}, date)
	}
	return nil
}

func (s *Service) monthlyToday(ctx context.Context, log *slog.Logger, today time.Time) error {
	const op = "scheduler.monthlyToday"
	ids, err := s.collect(ctx, today, s.store.FindMonthlyEndingOn, s.store.FindMonthlyOverdue)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("monthly expirations due", slog.Int("count", len(ids)))

	for _, chatID := range ids {
		var annualReached bool
		_, changed, err := s.store.UpdateSubscriber(ctx, chatID, func(sub models.Subscriber) (models.Subscriber, error) {
			annualReached = sub.Annual.ReachedBy(today)
			next, _ := s.engine.ExpireMonthly(sub, today)
			return next, nil
		})
		if err != nil {
			log.Error("failed to expire monthly", sl.ChatID(chatID), sl.Err(err))
			continue
		}
		if !changed {
			continue
		}
		s.expired(ctx, log, chatID, models.ReminderMonthlyExpired)
		// Годовой проход этого же тика закроет подписку и сам уведомит пользователя.
		if annualReached {
			continue
		}
		s.deliver(ctx, log, models.Notification{
			ChatID:   chatID,
			Kind:     models.ReminderMonthlyExpired,
			Text:     s.catalog.MonthlyExpired(),
			Keyboard: s.catalog.BuyMonth(),
		})
	}
	return nil
}

func (s *Service) annualToday(ctx context.Context, log *slog.Logger, today time.Time) error {
	const op = "scheduler.annualToday"
	ids, err := s.collect(ctx, today, s.store.FindAnnualEndingOn, s.store.FindAnnualOverdue)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("annual expirations due", slog.Int("count", len(ids)))

	for _, chatID := range ids {
		_, changed, err := s.store.UpdateSubscriber(ctx, chatID, func(sub models.Subscriber) (models.Subscriber, error) {
			next, _ := s.engine.ExpireAnnual(sub, today)
			return next, nil
		})
		if err != nil {
			log.Error("failed to expire annual", sl.ChatID(chatID), sl.Err(err))
			continue
		}
		if !changed {
			continue
		}
		s.expired(ctx, log, chatID, models.ReminderAnnualExpired)
		s.deliver(ctx, log, models.Notification{
			ChatID:   chatID,
			Kind:     models.ReminderAnnualExpired,
			Text:     s.catalog.AnnualExpired(),
			Keyboard: texts.BuyYear(),
		})
	}
	return nil
}

type finder func(ctx context.Context, date time.Time) ([]int64, error)

// collect объединяет сегодняшние и просроченные записи без повторов.
func (s *Service) collect(ctx context.Context, today time.Time, endingOn, overdue finder) ([]int64, error) {
	due, err := endingOn(ctx, today)
	if err != nil {
		return nil, err
	}
	late, err := overdue(ctx, today)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(due)+len(late))
	ids := make([]int64, 0, len(due)+len(late))
	for _, id := range append(due, late...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// MarkKey — ключ метки напоминания.
func MarkKey(chatID int64, kind models.ReminderKind, date time.Time) string {
	return strconv.FormatInt(chatID, 10) + ":" + string(kind) + ":" + date.Format(time.DateOnly)
}

// remind отправляет напоминание не чаще одного раза на (chat, kind, date).
func (s *Service) remind(ctx context.Context, log *slog.Logger, n models.Notification, date time.Time) {
	if s.marks == nil {
		s.deliver(ctx, log, n)
		return
	}

	key := MarkKey(n.ChatID, n.Kind, date)
	ok, err := s.marks.Acquire(ctx, key, s.markTTL)
	if err != nil {
		// Недоступные метки не блокируют отправку.
		log.Warn("reminder mark unavailable", sl.ChatID(n.ChatID), sl.Err(err))
	} else if !ok {
		log.Debug("reminder already sent", sl.ChatID(n.ChatID), slog.String("kind", string(n.Kind)))
		return
	}

	if !s.deliver(ctx, log, n) && err == nil {
		if err := s.marks.Release(ctx, key); err != nil {
			log.Warn("failed to release reminder mark", sl.ChatID(n.ChatID), sl.Err(err))
		}
	}
}

func (s *Service) deliver(ctx context.Context, log *slog.Logger, n models.Notification) bool {
	if err := s.sink.Send(ctx, n); err != nil {
		log.Warn("failed to deliver notification",
			sl.ChatID(n.ChatID), slog.String("kind", string(n.Kind)), sl.Err(err))
		if s.metrics != nil {
			s.metrics.DeliveryFailures.WithLabelValues(string(n.Kind)).Inc()
		}
		return false
	}
	if s.metrics != nil {
		s.metrics.RemindersSent.WithLabelValues(string(n.Kind)).Inc()
	}
	return true
}

func (s *Service) expired(ctx context.Context, log *slog.Logger, chatID int64, kind models.ReminderKind) {
	if s.metrics != nil {
		s.metrics.Expirations.WithLabelValues(string(kind)).Inc()
	}
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Invalidate(ctx, cache.SubscriberKey(chatID)); err != nil {
		log.Warn("failed to invalidate cache", sl.ChatID(chatID), sl.Err(err))
	}
}

func (s *Service) passFailed(name string) {
	if s.metrics != nil {
		s.metrics.PassFailures.WithLabelValues(name).Inc()
	}
}
