// Package repository is the append-only history store. Visit and booking
// attempt rows are only ever inserted; visit counts and last-seen times are
// derived by query, never stored as running counters. Reads are bounded so
// per-request cost stays constant as the store grows.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"stayguard/internal/models"
)

type Repository struct {
	db *sqlx.DB
}

func New(dsn string, maxConns, maxIdleConns int) (*Repository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	return &Repository{db: db}, nil
}

// AppendVisit records one visit event. Concurrent appends are independent
// writes; nothing is ever updated in place.
func (r *Repository) AppendVisit(ctx context.Context, v models.VisitRecord) error {
	query := `
		INSERT INTO visits
		(visitor_id, fingerprint_hash, ip, user_agent, country, timezone, device_type, browser, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		v.VisitorID, v.FingerprintHash, v.IP, v.UserAgent,
		v.Country, v.Timezone, v.DeviceType, v.Browser, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append visit: %w", err)
	}
	return nil
}

// VisitStats derives the visit count and last-seen time for a visitor.
func (r *Repository) VisitStats(ctx context.Context, visitorID string) (int, *time.Time, error) {
	var stats struct {
		Count    int          `db:"count"`
		LastSeen sql.NullTime `db:"last_seen"`
	}

	query := `SELECT COUNT(*) AS count, MAX(created_at) AS last_seen FROM visits WHERE visitor_id = $1`
	if err := r.db.GetContext(ctx, &stats, query, visitorID); err != nil {
		return 0, nil, fmt.Errorf("failed to get visit stats: %w", err)
	}

	if !stats.LastSeen.Valid {
		return stats.Count, nil, nil
	}
	last := stats.LastSeen.Time
	return stats.Count, &last, nil
}

// FindByFingerprint returns the most recent visit whose stored hash starts
// with the supplied hash, restricted to the given window.
func (r *Repository) FindByFingerprint(ctx context.Context, hash string, since time.Time) (*models.VisitRecord, error) {
	var rec models.VisitRecord

	query := `
		SELECT * FROM visits
		WHERE fingerprint_hash LIKE $1 || '%' AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &rec, query, hash, since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find visit by fingerprint: %w", err)
	}
	return &rec, nil
}

// RecentCandidates returns the bounded fuzzy-match candidate set: one row
// per visitor, pre-filtered by country and device class to keep the
// comparison cost constant.
func (r *Repository) RecentCandidates(ctx context.Context, since time.Time, country, deviceType string, limit int) ([]models.VisitRecord, error) {
	query := `
		SELECT DISTINCT ON (visitor_id) *
		FROM visits
		WHERE created_at >= $1
		  AND ($2 = '' OR country = $2)
		  AND ($3 = '' OR device_type = $3)
		ORDER BY visitor_id, created_at DESC
		LIMIT $4
	`

	var records []models.VisitRecord
	if err := r.db.SelectContext(ctx, &records, query, since, country, deviceType, limit); err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	return records, nil
}

// AppendBookingAttempt records one attempt for the velocity window.
func (r *Repository) AppendBookingAttempt(ctx context.Context, a models.BookingAttempt) error {
	query := `
		INSERT INTO booking_attempts (fingerprint_hash, ip, email, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, a.FingerprintHash, a.IP, a.Email, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append booking attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns the bounded recent-bookings window.
func (r *Repository) RecentAttempts(ctx context.Context, since time.Time, limit int) ([]models.BookingAttempt, error) {
	query := `
		SELECT fingerprint_hash, ip, email, created_at
		FROM booking_attempts
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var attempts []models.BookingAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to load recent attempts: %w", err)
	}
	return attempts, nil
}

// SaveAssessment stores the review-tooling row for one assessment.
func (r *Repository) SaveAssessment(ctx context.Context, row models.AssessmentRow) error {
	query := `
		INSERT INTO assessments
		(visitor_id, ip, email_domain, risk_score, risk_level, blocked, review, flags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		row.VisitorID, row.IP, row.EmailDomain, row.RiskScore,
		row.RiskLevel, row.Blocked, row.Review, row.Flags, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// RecentAssessments lists stored assessments with pagination.
func (r *Repository) RecentAssessments(ctx context.Context, limit, offset int) ([]models.AssessmentRow, error) {
	query := `
		SELECT * FROM assessments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var rows []models.AssessmentRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return rows, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}
