package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/voltgrid/identity/internal/database"
	"github.com/voltgrid/identity/internal/models"
)

type InvitationRepository struct {
	db *database.DB
}

func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `id, code_hash, email, role, invited_by, status,
	expires_at, accepted_at, created_at`

func scanInvitationRow(scanner rowScanner) (*models.Invitation, error) {
	var inv models.Invitation
	var acceptedAt *time.Time

	err := scanner.Scan(
		&inv.ID, &inv.CodeHash, &inv.Email, &inv.Role, &inv.InvitedBy,
		&inv.Status, &inv.ExpiresAt, &acceptedAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	inv.AcceptedAt = acceptedAt
	return &inv, nil
}

func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	query := `
		INSERT INTO invitations (id, code_hash, email, role, invited_by, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + invitationColumns

	return scanInvitationRow(r.db.Pool.QueryRow(ctx, query,
		inv.ID, inv.CodeHash, inv.Email, inv.Role, inv.InvitedBy,
		inv.Status, inv.ExpiresAt, inv.CreatedAt,
	))
}

func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	return scanInvitationRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *InvitationRepository) GetByCodeHash(ctx context.Context, codeHash string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE code_hash = $1`
	return scanInvitationRow(r.db.Pool.QueryRow(ctx, query, codeHash))
}

// MarkAccepted transitions a pending invitation to accepted. Conditional on
// status so a code cannot be consumed twice.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, id string, acceptedAt time.Time) error {
	query := `
		UPDATE invitations SET status = 'accepted', accepted_at = $1
		WHERE id = $2 AND status = 'pending'
	`

	result, err := r.db.Pool.Exec(ctx, query, acceptedAt, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

// SweepExpired flips overdue pending invitations to expired
func (r *InvitationRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE invitations SET status = 'expired'
		WHERE status = 'pending' AND expires_at < $1
	`

	result, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired invitations: %w", err)
	}
	return result.RowsAffected(), nil
}
