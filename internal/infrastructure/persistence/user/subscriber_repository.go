package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/infrastructure/persistence/database"
)

// SQLSubscriberRepository persists newsletter subscribers.
type SQLSubscriberRepository struct {
	db *database.DB
}

var _ user.SubscriberRepository = (*SQLSubscriberRepository)(nil)

func NewSQLSubscriberRepository(db *database.DB) *SQLSubscriberRepository {
	return &SQLSubscriberRepository{db: db}
}

// Create stores a subscriber; a duplicate address yields user.ErrDuplicateSubscriber.
func (r *SQLSubscriberRepository) Create(ctx context.Context, s *user.Subscriber) error {
	const query = `
		INSERT INTO newsletter_subscribers (id, email, session_id, referral_source, referral_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecLogged(ctx, "newsletter_subscribers:create",
		query,
		s.ID,
		strings.ToLower(s.Email),
		s.SessionID,
		s.ReferralSource,
		s.ReferralCode,
		database.FormatTime(s.CreatedAt),
	)
	if err != nil && isUniqueViolation(err) {
		return user.ErrDuplicateSubscriber
	}
	return err
}

// FindByEmail returns nil, nil when the address is not subscribed.
func (r *SQLSubscriberRepository) FindByEmail(ctx context.Context, email string) (*user.Subscriber, error) {
	const query = `
		SELECT id, email, session_id, referral_source, referral_code, created_at
		FROM newsletter_subscribers
		WHERE email = ?`

	var s user.Subscriber
	var sessionID, source, code sql.NullString
	var createdAtStr string
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(email)).
		Scan(&s.ID, &s.Email, &sessionID, &source, &code, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	s.SessionID = sessionID.String
	s.ReferralSource = source.String
	s.ReferralCode = code.String
	if s.CreatedAt, err = database.ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &s, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}
