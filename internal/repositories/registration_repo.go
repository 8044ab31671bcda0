package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/voltgrid/identity/internal/database"
	"github.com/voltgrid/identity/internal/models"
)

// RegistrationRepository handles registration row data access. Lifecycle
// transitions are conditional updates on (status, token, resend_count) so
// concurrent callers race safely: the loser sees zero rows affected.
type RegistrationRepository struct {
	db *database.DB
}

func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// rowScanner interface for scanning rows (single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const registrationColumns = `id, email, username, password_hash, verification_token, status,
	resend_count, last_sent_at, invitation_id, first_name, last_name, phone,
	expires_at, verified_at, created_at, updated_at`

func scanRegistrationRow(scanner rowScanner) (*models.Registration, error) {
	var reg models.Registration
	var invitationID *string
	var verifiedAt *time.Time

	err := scanner.Scan(
		&reg.ID, &reg.Email, &reg.Username, &reg.PasswordHash, &reg.VerificationToken,
		&reg.Status, &reg.ResendCount, &reg.LastSentAt, &invitationID,
		&reg.FirstName, &reg.LastName, &reg.Phone,
		&reg.ExpiresAt, &verifiedAt, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	reg.InvitationID = invitationID
	reg.VerifiedAt = verifiedAt
	return &reg, nil
}

func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) (*models.Registration, error) {
	query := `
		INSERT INTO registrations (id, email, username, password_hash, verification_token,
			status, resend_count, last_sent_at, invitation_id, first_name, last_name, phone,
			expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + registrationColumns

	return scanRegistrationRow(r.db.Pool.QueryRow(ctx, query,
		reg.ID, reg.Email, reg.Username, reg.PasswordHash, reg.VerificationToken,
		reg.Status, reg.ResendCount, reg.LastSentAt, reg.InvitationID,
		reg.FirstName, reg.LastName, reg.Phone,
		reg.ExpiresAt, reg.CreatedAt, reg.UpdatedAt,
	))
}

func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return scanRegistrationRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetPendingByEmail returns the pending registration for an email, if any
func (r *RegistrationRepository) GetPendingByEmail(ctx context.Context, email string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE email = $1 AND status = 'pending'`
	return scanRegistrationRow(r.db.Pool.QueryRow(ctx, query, email))
}

// GetActiveByUsername returns a non-terminal registration holding the username
func (r *RegistrationRepository) GetActiveByUsername(ctx context.Context, username string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE username = $1 AND status IN ('pending', 'verified')`
	return scanRegistrationRow(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *RegistrationRepository) GetByToken(ctx context.Context, token string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE verification_token = $1`
	return scanRegistrationRow(r.db.Pool.QueryRow(ctx, query, token))
}

// RotateToken replaces the verification token and extends expiry for a
// resend. The update is conditional on the current resend count so two
// concurrent resends cannot both increment past the cap; the loser gets
// ErrConflict.
func (r *RegistrationRepository) RotateToken(ctx context.Context, id string, expectedResendCount int, newToken string, expiresAt, sentAt time.Time) error {
	query := `
		UPDATE registrations
		SET verification_token = $1, expires_at = $2, last_sent_at = $3,
			resend_count = resend_count + 1, updated_at = $3
		WHERE id = $4 AND status = 'pending' AND resend_count = $5
	`

	result, err := r.db.Pool.Exec(ctx, query, newToken, expiresAt, sentAt, id, expectedResendCount)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

// MarkExpired flips a pending registration to expired. Losing the race to
// another flip is fine; the row ends up expired either way.
func (r *RegistrationRepository) MarkExpired(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE registrations SET status = 'expired', updated_at = $1
		WHERE id = $2 AND status = 'pending'
	`

	_, err := r.db.Pool.Exec(ctx, query, now, id)
	return database.MapPostgresError(err)
}

// CompleteVerification atomically transitions the registration to verified
// and creates the user row. The registration update is conditional on status
// and token, so a verify racing a resend fails with ErrInvalidToken instead
// of verifying against a rotated-out token.
func (r *RegistrationRepository) CompleteVerification(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error) {
	var created *models.User

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		updateQuery := `
			UPDATE registrations SET status = 'verified', verified_at = $1, updated_at = $1
			WHERE id = $2 AND status = 'pending' AND verification_token = $3
		`

		result, err := tx.Exec(ctx, updateQuery, verifiedAt, id, token)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrInvalidToken
		}

		insertQuery := `
			INSERT INTO users (id, idp_subject_id, email, username, role, status,
				company_id, network_id, station_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, idp_subject_id, email, username, role, status,
				company_id, network_id, station_id, created_at, updated_at
		`

		created, err = scanUserRow(tx.QueryRow(ctx, insertQuery,
			user.ID, user.IdPSubjectID, user.Email, user.Username, user.Role, user.Status,
			user.CompanyID, user.NetworkID, user.StationID, user.CreatedAt, user.UpdatedAt,
		))
		return err
	})

	if err != nil {
		return nil, err
	}
	return created, nil
}

// Cancel transitions a pending registration to cancelled. Cancelling a row
// that is already terminal is a no-op success; only a missing row is an error.
func (r *RegistrationRepository) Cancel(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE registrations SET status = 'cancelled', updated_at = $1
		WHERE id = $2 AND status = 'pending'
	`

	result, err := r.db.Pool.Exec(ctx, query, now, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM registrations WHERE id = $1)`, id).Scan(&exists); err != nil {
			return database.MapPostgresError(err)
		}
		if !exists {
			return models.ErrNotFound
		}
	}
	return nil
}

// SweepExpired flips all overdue pending registrations to expired
func (r *RegistrationRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE registrations SET status = 'expired', updated_at = $1
		WHERE status = 'pending' AND expires_at < $1
	`

	result, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired registrations: %w", err)
	}
	return result.RowsAffected(), nil
}

// PurgeTerminal removes expired/cancelled rows older than the cutoff.
// Verified rows are kept; they document how each user came to exist.
func (r *RegistrationRepository) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM registrations
		WHERE status IN ('expired', 'cancelled') AND updated_at < $1
	`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge terminal registrations: %w", err)
	}
	return result.RowsAffected(), nil
}
