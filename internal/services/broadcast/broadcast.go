// Package broadcast хранит черновики рассылок администраторов и рассылает их всем пользователям.
//
// Сессия администратора проходит состояния Idle → Collecting → Idle:
// Start открывает пустой черновик, AddMedia и SetCaption наполняют его,
// FinalizeAndBroadcast забирает черновик и отправляет его каждому получателю.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// DefaultSendDelay — пауза между получателями.
const DefaultSendDelay = 30 * time.Millisecond

// Recipients возвращает всех получателей рассылки.
type Recipients interface {
	AllChatIDs(ctx context.Context) ([]int64, error)
}

// MediaSender отправляет содержимое рассылки одному получателю.
type MediaSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMedia(ctx context.Context, chatID int64, item models.MediaItem, caption string) error
	SendMediaGroup(ctx context.Context, chatID int64, items []models.MediaItem, caption string) error
}

// Report итог рассылки.
type Report struct {
	Recipients int
	Delivered  int
	Failed     int
}

type session struct {
	media   []models.MediaItem
	caption string
}

// Service менеджер сессий рассылки.
type Service struct {
	mu       sync.Mutex
	sessions map[int64]*session

	recipients Recipients
	sender     MediaSender
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// New создаёт менеджер. sendDelay ≤ 0 заменяется DefaultSendDelay.
func New(recipients Recipients, sender MediaSender, log *slog.Logger, m *metrics.Metrics, sendDelay time.Duration) *Service {
	if sendDelay <= 0 {
		sendDelay = DefaultSendDelay
	}
	return &Service{
		sessions:   make(map[int64]*session),
		recipients: recipients,
		sender:     sender,
		limiter:    rate.NewLimiter(rate.Every(sendDelay), 1),
		metrics:    m,
		log:        log,
	}
}

// Start открывает пустой черновик. Незавершённый черновик того же администратора отбрасывается.
func (s *Service) Start(adminID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[adminID] = &session{}
}

// IsCollecting сообщает, открыт ли черновик у администратора.
func (s *Service) IsCollecting(adminID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[adminID]
	return ok
}

// AddMedia добавляет вложение в конец черновика. Без открытого черновика ничего не делает.
func (s *Service) AddMedia(adminID int64, item models.MediaItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[adminID]
	if !ok {
		return false
	}
	sess.media = append(sess.media, item)
	return true
}

// SetCaption задаёт текст рассылки. Без открытого черновика ничего не делает.
func (s *Service) SetCaption(adminID int64, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[adminID]
	if !ok {
		return false
	}
	sess.caption = text
	return true
}

// Abandon отбрасывает черновик.
func (s *Service) Abandon(adminID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, adminID)
}

func (s *Service) take(adminID int64) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[adminID]
	if ok {
		delete(s.sessions, adminID)
	}
	return sess, ok
}

// FinalizeAndBroadcast забирает черновик и рассылает его всем пользователям.
// Без черновика ничего не отправляет. Ошибка отправки одному получателю
// логируется и не прерывает рассылку; отмена ctx прерывает её.
func (s *Service) FinalizeAndBroadcast(ctx context.Context, adminID int64) (Report, error) {
	const op = "broadcast.FinalizeAndBroadcast"
	log := s.log.With(slog.String("op", op), slog.Int64("admin_id", adminID))

	sess, ok := s.take(adminID)
	if !ok {
		return Report{}, nil
	}

	send := s.sendFunc(sess)
	if send == nil {
		log.Info("empty broadcast draft dropped")
		return Report{}, nil
	}

	chatIDs, err := s.recipients.AllChatIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%s: %w", op, err)
	}

	report := Report{Recipients: len(chatIDs)}
	for _, chatID := range chatIDs {
		if err := s.limiter.Wait(ctx); err != nil {
			log.Warn("broadcast interrupted", sl.Err(err), slog.Int("delivered", report.Delivered))
			return report, fmt.Errorf("%s: %w", op, err)
		}
		if err := send(ctx, chatID); err != nil {
			report.Failed++
			s.count("failed")
			log.Warn("broadcast send failed", sl.ChatID(chatID), sl.Err(err))
			continue
		}
		report.Delivered++
		s.count("delivered")
	}

	log.Info("broadcast finished",
		slog.Int("recipients", report.Recipients),
		slog.Int("delivered", report.Delivered),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) sendFunc(sess *session) func(ctx context.Context, chatID int64) error {
	media := sess.media
	caption := sess.caption
	switch {
	case len(media) == 1:
		return func(ctx context.Context, chatID int64) error {
			return s.sender.SendMedia(ctx, chatID, media[0], caption)
		}
	case len(media) > 1:
		return func(ctx context.Context, chatID int64) error {
			return s.sender.SendMediaGroup(ctx, chatID, media, caption)
		}
	case strings.TrimSpace(caption) != "":
		return func(ctx context.Context, chatID int64) error {
			return s.sender.SendText(ctx, chatID, caption)
		}
	default:
		return nil
	}
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.BroadcastSends.WithLabelValues(result).Inc()
	}
}
