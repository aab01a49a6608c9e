package user

import (
	"context"
	"database/sql"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/infrastructure/persistence/database"
)

// SQLCheckoutAttemptRepository persists checkout attempts.
type SQLCheckoutAttemptRepository struct {
	db *database.DB
}

var _ user.CheckoutAttemptRepository = (*SQLCheckoutAttemptRepository)(nil)

func NewSQLCheckoutAttemptRepository(db *database.DB) *SQLCheckoutAttemptRepository {
	return &SQLCheckoutAttemptRepository{db: db}
}

func (r *SQLCheckoutAttemptRepository) Create(ctx context.Context, a *user.CheckoutAttempt) error {
	const query = `
		INSERT INTO checkout_attempts (id, session_id, attempt, signup_channel, state, destination, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecLogged(ctx, "checkout_attempts:create",
		query,
		a.ID,
		a.SessionID,
		a.Attempt,
		a.SignupChannel,
		a.State,
		a.Destination,
		a.Message,
		a.Duration.Milliseconds(),
		database.FormatTime(a.CreatedAt),
	)
	return err
}

// FindBySessionID returns a session's attempts in attempt order.
func (r *SQLCheckoutAttemptRepository) FindBySessionID(ctx context.Context, sessionID string) ([]*user.CheckoutAttempt, error) {
	const query = `
		SELECT id, session_id, attempt, signup_channel, state, destination, message, duration_ms, created_at
		FROM checkout_attempts
		WHERE session_id = ?
		ORDER BY attempt ASC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*user.CheckoutAttempt
	for rows.Next() {
		var a user.CheckoutAttempt
		var channel, destination, message sql.NullString
		var durationMs int64
		var createdAtStr string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Attempt, &channel, &a.State, &destination, &message, &durationMs, &createdAtStr); err != nil {
			return nil, err
		}
		a.SignupChannel = channel.String
		a.Destination = destination.String
		a.Message = message.String
		a.Duration = time.Duration(durationMs) * time.Millisecond
		if a.CreatedAt, err = database.ParseTime(createdAtStr); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
