package repositories

import (
	"context"
	"time"

	"github.com/voltgrid/identity/internal/database"
	"github.com/voltgrid/identity/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, idp_subject_id, email, username, role, status,
	company_id, network_id, station_id, created_at, updated_at`

// scanUserRow handles nullable scope fields and populates a User model
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var companyID, networkID, stationID *string

	err := scanner.Scan(
		&user.ID, &user.IdPSubjectID, &user.Email, &user.Username,
		&user.Role, &user.Status,
		&companyID, &networkID, &stationID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.CompanyID = companyID
	user.NetworkID = networkID
	user.StationID = stationID
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) GetByIdPSubject(ctx context.Context, subjectID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE idp_subject_id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, subjectID))
}

// UpdateStatus changes account status (suspend, reactivate, soft delete)
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	query := `
		UPDATE users SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, status, time.Now(), id))
}
