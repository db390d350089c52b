// Package subscription обрабатывает действия пользователя с подпиской:
// оплату тарифов, отмену и просмотр состояния.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/cache"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/month"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/notify"
	"github.com/magabrotheeeer/subscription-bot/internal/services/lifecycle"
	"github.com/magabrotheeeer/subscription-bot/internal/storage/repository"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

// DefaultStatusTTL — время жизни снимка подписчика в кэше.
const DefaultStatusTTL = time.Hour

// Store определяет операции хранилища, нужные сервису.
type Store interface {
	UpsertSubscriber(ctx context.Context, sub models.Subscriber) error
	GetSubscriber(ctx context.Context, chatID int64) (*models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, chatID int64,
		fn func(models.Subscriber) (models.Subscriber, error)) (models.Subscriber, bool, error)
	ListActiveSubscribers(ctx context.Context) ([]*models.Subscriber, error)
}

// Cache описывает кэш снимков подписчиков.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Options настраивает сервис.
type Options struct {
	Location  *time.Location
	StatusTTL time.Duration
	Now       func() time.Time
}

// Service реализует сценарии пользователя поверх хранилища и движка состояний.
type Service struct {
	store   Store
	cache   Cache
	sink    notify.Sink
	engine  *lifecycle.Engine
	catalog texts.Catalog
	metrics *metrics.Metrics
	log     *slog.Logger

	loc       *time.Location
	statusTTL time.Duration
	now       func() time.Time
}

// New создаёт сервис подписок.
func New(
	store Store,
	cache Cache,
	sink notify.Sink,
	engine *lifecycle.Engine,
	catalog texts.Catalog,
	m *metrics.Metrics,
	log *slog.Logger,
	opts Options,
) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = DefaultStatusTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		cache:     cache,
		sink:      sink,
		engine:    engine,
		catalog:   catalog,
		metrics:   m,
		log:       log,
		loc:       opts.Location,
		statusTTL: opts.StatusTTL,
		now:       opts.Now,
	}
}

func (s *Service) today() time.Time {
	return month.Date(s.now(), s.loc)
}

// Register сохраняет профиль пользователя при каждом обращении.
// Кэш сбрасывается, только если сохранённый в нём профиль устарел.
func (s *Service) Register(ctx context.Context, sub models.Subscriber) error {
	const op = "subscription.Register"
	if err := s.store.UpsertSubscriber(ctx, sub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var cached models.Subscriber
	found, err := s.cache.Get(ctx, cache.SubscriberKey(sub.ChatID), &cached)
	if err != nil || (found && !sameProfile(cached, sub)) {
		s.invalidate(ctx, sub.ChatID)
	}
	return nil
}

// sameProfile сравнивает поля, которые перезаписывает Register.
func sameProfile(a, b models.Subscriber) bool {
	return a.Username == b.Username &&
		a.FirstName == b.FirstName &&
		a.LastName == b.LastName &&
		a.IsAdmin == b.IsAdmin
}

// HandlePayment применяет подтверждённую оплату и отправляет подтверждение.
// Оплата месяца без действующего года отклоняется: пользователь получает
// предложение купить год, а ошибка оборачивает lifecycle.ErrNoActiveAnnual.
func (s *Service) HandlePayment(ctx context.Context, chatID int64, plan models.Plan) (models.Subscriber, error) {
	const op = "subscription.HandlePayment"
	log := s.log.With(slog.String("op", op), sl.ChatID(chatID), slog.String("plan", string(plan)))
	today := s.today()

	updated, _, err := s.store.UpdateSubscriber(ctx, chatID, func(sub models.Subscriber) (models.Subscriber, error) {
		var next models.Subscriber
		switch plan {
		case models.PlanAnnual:
			next = s.engine.ActivateAnnual(sub, today)
		case models.PlanMonthly:
			extended, err := s.engine.ExtendMonthly(sub, today)
			if err != nil {
				return sub, err
			}
			next = extended
		default:
			return sub, fmt.Errorf("unknown plan %q", plan)
		}
		if err := lifecycle.CheckInvariants(next); err != nil {
			return sub, err
		}
		return next, nil
	})
	if errors.Is(err, lifecycle.ErrNoActiveAnnual) {
		s.countPayment(plan, "rejected")
		log.Info("monthly payment without active annual")
		s.notify(ctx, log, models.Notification{
			ChatID:   chatID,
			Kind:     models.NoticeNeedAnnual,
			Text:     s.catalog.NeedAnnual(),
			Keyboard: texts.BuyYear(),
		})
		return updated, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		s.countPayment(plan, "failed")
		return models.Subscriber{}, fmt.Errorf("%s: %w", op, err)
	}

	s.countPayment(plan, "applied")
	s.invalidate(ctx, chatID)
	log.Info("payment applied")

	yearEnd, _ := updated.Annual.End()
	monthEnd, _ := updated.Monthly.End()
	n := models.Notification{ChatID: chatID, Keyboard: texts.BackToMenu()}
	if plan == models.PlanAnnual {
		n.Kind = models.NoticeActivated
		n.Text = s.catalog.Activated(yearEnd, monthEnd)
	} else {
		n.Kind = models.NoticeMonthlyPaid
		n.Text = s.catalog.MonthlyPaid(monthEnd)
	}
	s.notify(ctx, log, n)
	return updated, nil
}

// Cancel отменяет оба уровня подписки и подтверждает отмену.
func (s *Service) Cancel(ctx context.Context, chatID int64) (models.Subscriber, error) {
	const op = "subscription.Cancel"
	log := s.log.With(slog.String("op", op), sl.ChatID(chatID))
	today := s.today()

	updated, _, err := s.store.UpdateSubscriber(ctx, chatID, func(sub models.Subscriber) (models.Subscriber, error) {
		return s.engine.Cancel(sub, today), nil
	})
	if err != nil {
		return models.Subscriber{}, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, chatID)
	log.Info("subscription cancelled")

	s.notify(ctx, log, models.Notification{
		ChatID:   chatID,
		Kind:     models.NoticeCancelled,
		Text:     texts.Cancelled,
		Keyboard: texts.BackToMenu(),
	})
	return updated, nil
}

// Subscriber возвращает снимок подписчика, сначала из кэша.
// Неизвестный пользователь возвращается как подписчик без прав.
func (s *Service) Subscriber(ctx context.Context, chatID int64) (models.Subscriber, error) {
	const op = "subscription.Subscriber"
	key := cache.SubscriberKey(chatID)

	var cached models.Subscriber
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read subscriber from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return cached, nil
	}

	sub, err := s.store.GetSubscriber(ctx, chatID)
	if errors.Is(err, repository.ErrSubscriberNotFound) {
		return models.Subscriber{ChatID: chatID, Tag: models.DefaultTag}, nil
	}
	if err != nil {
		return models.Subscriber{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, key, sub, s.statusTTL); err != nil {
		s.log.Warn("failed to cache subscriber", slog.String("key", key), sl.Err(err))
	}
	return *sub, nil
}

// Status возвращает текст «Моя подписка».
func (s *Service) Status(ctx context.Context, chatID int64) (string, error) {
	const op = "subscription.Status"
	sub, err := s.Subscriber(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return s.catalog.Status(sub), nil
}

// HasActiveAnnual сообщает, можно ли пользователю оплатить месяц.
// Читает хранилище напрямую: кэш может отставать от планировщика.
func (s *Service) HasActiveAnnual(ctx context.Context, chatID int64) (bool, error) {
	const op = "subscription.HasActiveAnnual"
	sub, err := s.store.GetSubscriber(ctx, chatID)
	if errors.Is(err, repository.ErrSubscriberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	end, ok := sub.Annual.End()
	return ok && sub.Annual.IsActive() && !end.Before(s.today()), nil
}

// ActiveSummary возвращает список активных годовых подписок для администратора.
func (s *Service) ActiveSummary(ctx context.Context) (string, error) {
	const op = "subscription.ActiveSummary"
	subs, err := s.store.ListActiveSubscribers(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return texts.ActiveList(subs), nil
}

func (s *Service) invalidate(ctx context.Context, chatID int64) {
	key := cache.SubscriberKey(chatID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", key), sl.Err(err))
	}
}

func (s *Service) notify(ctx context.Context, log *slog.Logger, n models.Notification) {
	if err := s.sink.Send(ctx, n); err != nil {
		log.Warn("failed to deliver notification", slog.String("kind", string(n.Kind)), sl.Err(err))
	}
}

func (s *Service) countPayment(plan models.Plan, result string) {
	if s.metrics != nil {
		s.metrics.Payments.WithLabelValues(string(plan), result).Inc()
	}
}
