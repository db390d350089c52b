package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

const subscriberColumns = `chat_id, username, first_name, last_name, is_admin, tag,
	annual_active, annual_end, monthly_active, monthly_end, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (models.Subscriber, error) {
	var (
		s                           models.Subscriber
		annualActive, monthlyActive bool
		annualEnd, monthlyEnd       sql.NullTime
	)
	if err := row.Scan(&s.ChatID, &s.Username, &s.FirstName, &s.LastName, &s.IsAdmin, &s.Tag,
		&annualActive, &annualEnd, &monthlyActive, &monthlyEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return models.Subscriber{}, err
	}

	var err error
	if s.Annual, err = models.EntitlementFromColumns(annualActive, nullDate(annualEnd)); err != nil {
		return models.Subscriber{}, err
	}
	if s.Monthly, err = models.EntitlementFromColumns(monthlyActive, nullDate(monthlyEnd)); err != nil {
		return models.Subscriber{}, err
	}
	return s, nil
}

func nullDate(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	d := time.Date(t.Time.Year(), t.Time.Month(), t.Time.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func sameEntitlements(a, b models.Subscriber) bool {
	return sameEntitlement(a.Annual, b.Annual) && sameEntitlement(a.Monthly, b.Monthly)
}

func sameEntitlement(a, b models.Entitlement) bool {
	if a.State() != b.State() {
		return false
	}
	aEnd, _ := a.End()
	bEnd, _ := b.End()
	return aEnd.Equal(bEnd)
}

// UpsertSubscriber сохраняет профиль пользователя. Существующая запись
// обновляет только профильные поля, состояние подписки не трогается.
func (s *Storage) UpsertSubscriber(ctx context.Context, sub models.Subscriber) error {
	const op = "storage.UpsertSubscriber"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tag := sub.Tag
	if tag == "" {
		tag = models.DefaultTag
	}
	query := `INSERT INTO subscribers (chat_id, username, first_name, last_name, is_admin, tag)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (chat_id) DO UPDATE SET
			      username = EXCLUDED.username,
			      first_name = EXCLUDED.first_name,
			      last_name = EXCLUDED.last_name,
			      is_admin = EXCLUDED.is_admin,
			      updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query,
		sub.ChatID, sub.Username, sub.FirstName, sub.LastName, sub.IsAdmin, tag); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscriber возвращает подписчика по chat_id.
func (s *Storage) GetSubscriber(ctx context.Context, chatID int64) (*models.Subscriber, error) {
	const op = "storage.GetSubscriber"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE chat_id = $1`
	sub, err := scanSubscriber(s.DB.QueryRowContext(ctx, query, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// UpdateSubscriber читает подписчика под блокировкой строки, применяет fn
// и сохраняет состояние подписки в той же транзакции.
// Ошибка fn откатывает транзакцию и возвращается как есть.
// changed сообщает, изменилось ли состояние; без изменений запись не выполняется.
func (s *Storage) UpdateSubscriber(
	ctx context.Context,
	chatID int64,
	fn func(models.Subscriber) (models.Subscriber, error),
) (updated models.Subscriber, changed bool, err error) {
	const op = "storage.UpdateSubscriber"
	select {
	case <-ctx.Done():
		return models.Subscriber{}, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Subscriber{}, false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE chat_id = $1 FOR UPDATE`
	current, err := scanSubscriber(tx.QueryRowContext(ctx, query, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Subscriber{}, false, fmt.Errorf("%s: %w", op, ErrSubscriberNotFound)
	}
	if err != nil {
		return models.Subscriber{}, false, fmt.Errorf("%s: %w", op, err)
	}

	next, err := fn(current)
	if err != nil {
		return current, false, err
	}

	if sameEntitlements(current, next) {
		if err = tx.Commit(); err != nil {
			return models.Subscriber{}, false, fmt.Errorf("%s: %w", op, err)
		}
		return current, false, nil
	}

	annualActive, annualEnd := next.Annual.Columns()
	monthlyActive, monthlyEnd := next.Monthly.Columns()
	update := `UPDATE subscribers
			   SET annual_active = $2, annual_end = $3::date,
			       monthly_active = $4, monthly_end = $5::date,
			       updated_at = now()
			   WHERE chat_id = $1
			   RETURNING updated_at`
	if err = tx.QueryRowContext(ctx, update, chatID,
		annualActive, annualEnd, monthlyActive, monthlyEnd).Scan(&next.UpdatedAt); err != nil {
		return models.Subscriber{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return models.Subscriber{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return next, true, nil
}

// FindAnnualEndingOn возвращает chat_id подписчиков с активным годом,
// который заканчивается ровно в день date.
func (s *Storage) FindAnnualEndingOn(ctx context.Context, date time.Time) ([]int64, error) {
	const op = "storage.FindAnnualEndingOn"
	query := `SELECT chat_id FROM subscribers
			  WHERE annual_active AND annual_end = $1::date
			  ORDER BY chat_id`
	return s.queryChatIDs(ctx, op, query, date)
}

// FindMonthlyEndingOn возвращает chat_id подписчиков с активным годом и активным месяцем,
// который заканчивается ровно в день date.
func (s *Storage) FindMonthlyEndingOn(ctx context.Context, date time.Time) ([]int64, error) {
	const op = "storage.FindMonthlyEndingOn"
	query := `SELECT chat_id FROM subscribers
			  WHERE annual_active AND monthly_active AND monthly_end = $1::date
			  ORDER BY chat_id`
	return s.queryChatIDs(ctx, op, query, date)
}

// FindAnnualOverdue возвращает подписчиков, чей активный год закончился раньше today.
// Такие записи появляются, если планировщик пропустил день.
func (s *Storage) FindAnnualOverdue(ctx context.Context, today time.Time) ([]int64, error) {
	const op = "storage.FindAnnualOverdue"
	query := `SELECT chat_id FROM subscribers
			  WHERE annual_active AND annual_end < $1::date
			  ORDER BY chat_id`
	return s.queryChatIDs(ctx, op, query, today)
}

// FindMonthlyOverdue возвращает подписчиков, чей активный месяц закончился раньше today.
func (s *Storage) FindMonthlyOverdue(ctx context.Context, today time.Time) ([]int64, error) {
	const op = "storage.FindMonthlyOverdue"
	query := `SELECT chat_id FROM subscribers
			  WHERE annual_active AND monthly_active AND monthly_end < $1::date
			  ORDER BY chat_id`
	return s.queryChatIDs(ctx, op, query, today)
}

// AllChatIDs возвращает всех известных пользователей — получателей рассылки.
func (s *Storage) AllChatIDs(ctx context.Context) ([]int64, error) {
	const op = "storage.AllChatIDs"
	return s.queryChatIDs(ctx, op, `SELECT chat_id FROM subscribers ORDER BY chat_id`)
}

// ListActiveSubscribers возвращает подписчиков с действующим годом.
func (s *Storage) ListActiveSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	const op = "storage.ListActiveSubscribers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriberColumns + ` FROM subscribers
			  WHERE annual_active
			  ORDER BY annual_end, chat_id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) queryChatIDs(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
