// Package user provides the concrete SQL-based implementations of
// the user domain repositories (Visit, CheckoutAttempt, Subscriber).
package user

import (
	"context"
	"database/sql"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/infrastructure/persistence/database"
)

// SQLVisitRepository is the SQL-based implementation of the VisitRepository.
type SQLVisitRepository struct {
	db *database.DB
}

var _ user.VisitRepository = (*SQLVisitRepository)(nil)

// NewSQLVisitRepository creates a new instance of the repository.
func NewSQLVisitRepository(db *database.DB) *SQLVisitRepository {
	return &SQLVisitRepository{db: db}
}

// Create saves a new Visit to the database.
func (r *SQLVisitRepository) Create(ctx context.Context, visit *user.Visit) error {
	const query = `
		INSERT INTO visits (id, session_id, referral_source, referral_code, native_language, landing_path, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecLogged(ctx, "visits:create",
		query,
		visit.ID,
		visit.SessionID,
		visit.ReferralSource,
		visit.ReferralCode,
		visit.NativeLanguage,
		visit.LandingPath,
		visit.UserAgent,
		database.FormatTime(visit.CreatedAt),
	)
	return err
}

// FindBySessionID retrieves all Visits of a session, newest first.
func (r *SQLVisitRepository) FindBySessionID(ctx context.Context, sessionID string) ([]*user.Visit, error) {
	const query = `
		SELECT id, session_id, referral_source, referral_code, native_language, landing_path, user_agent, created_at
		FROM visits
		WHERE session_id = ?
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*user.Visit
	for rows.Next() {
		visit, err := r.scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, visit)
	}

	return visits, rows.Err()
}

// CountBySource aggregates visits per referral source since the given time.
func (r *SQLVisitRepository) CountBySource(ctx context.Context, since time.Time) ([]user.SourceCount, error) {
	const query = `
		SELECT referral_source, COUNT(*)
		FROM visits
		WHERE created_at >= ?
		GROUP BY referral_source
		ORDER BY COUNT(*) DESC, referral_source`

	rows, err := r.db.QueryContext(ctx, query, database.FormatTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []user.SourceCount
	for rows.Next() {
		var c user.SourceCount
		if err := rows.Scan(&c.Source, &c.Visits); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// scanVisit is a helper function to scan from sql.Rows into a Visit struct.
func (r *SQLVisitRepository) scanVisit(rows *sql.Rows) (*user.Visit, error) {
	var visit user.Visit
	var referralCode, nativeLanguage, landingPath, userAgent sql.NullString
	var createdAtStr string

	err := rows.Scan(
		&visit.ID,
		&visit.SessionID,
		&visit.ReferralSource,
		&referralCode,
		&nativeLanguage,
		&landingPath,
		&userAgent,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	if referralCode.Valid {
		visit.ReferralCode = &referralCode.String
	}
	if nativeLanguage.Valid {
		visit.NativeLanguage = &nativeLanguage.String
	}
	visit.LandingPath = landingPath.String
	visit.UserAgent = userAgent.String

	visit.CreatedAt, err = database.ParseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &visit, nil
}
