package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-report-api/internal/models"
)

// ProfileRepository reads and writes the profiles side table.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a profile repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// AdminByID returns the is_admin flag of the profile keyed by id.
// sql.ErrNoRows is returned unwrapped when no profile exists.
func (r *ProfileRepository) AdminByID(ctx context.Context, id string) (bool, error) {
	const query = `SELECT is_admin FROM profiles WHERE id = $1 LIMIT 1`
	var isAdmin bool
	if err := r.db.GetContext(ctx, &isAdmin, query, id); err != nil {
		return false, err
	}
	return isAdmin, nil
}

// AdminByEmail returns the is_admin flag of the profile matching email.
func (r *ProfileRepository) AdminByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT is_admin FROM profiles WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var isAdmin bool
	if err := r.db.GetContext(ctx, &isAdmin, query, email); err != nil {
		return false, err
	}
	return isAdmin, nil
}

// Create inserts a non-admin profile, leaving an existing row untouched.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	profile.Email = strings.ToLower(profile.Email)
	const query = `INSERT INTO profiles (id, email, is_admin, created_at) VALUES (:id, :email, :is_admin, :created_at) ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}
