package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/sumire/portal/internal/domain"
)

const userColumns = `id, email, name, password_hash, profile_image_url, location, birthdate,
	is_new_social_user, onboarding_answers, onboarding_completed, created_at, updated_at`

// userRow maps a users row; onboarding_answers is nullable jsonb.
type userRow struct {
	domain.User
	OnboardingAnswers sql.NullString `db:"onboarding_answers"`
}

func (r userRow) toDomain() *domain.User {
	u := r.User
	if r.OnboardingAnswers.Valid {
		u.OnboardingAnswers = json.RawMessage(r.OnboardingAnswers.String)
	}
	return &u
}

// UserRepository handles user data access operations.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID retrieves a user by their ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// FindByEmail retrieves a user by e-mail, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user by email %s: %w", email, err)
	}
	return row.toDomain(), nil
}

// Create inserts a credentials user. E-mails are stored lowercased; an
// existing e-mail yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	var row userRow
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, is_new_social_user)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		user.ID, strings.ToLower(user.Email), user.Name, user.PasswordHash, user.IsNewSocialUser,
	).StructScan(&row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email %s", domain.ErrConflict, user.Email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return row.toDomain(), nil
}

// UpsertSocial creates or refreshes the local mirror of a federated user,
// keyed by e-mail. The new-social-user flag always follows the backend's
// latest verdict. Returns the created or updated user.
func (r *UserRepository) UpsertSocial(ctx context.Context, user domain.User) (*domain.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}

	var row userRow
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (id, email, name, profile_image_url, is_new_social_user)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email)
		 DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		               profile_image_url = COALESCE(users.profile_image_url, EXCLUDED.profile_image_url),
		               is_new_social_user = EXCLUDED.is_new_social_user,
		               updated_at = NOW()
		 RETURNING `+userColumns,
		id, strings.ToLower(user.Email), user.Name, user.ProfileImageURL, user.IsNewSocialUser,
	).StructScan(&row)
	if err != nil {
		return nil, fmt.Errorf("upsert social user: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateDetails sets the provided basic details and clears the
// new-social-user flag. Nil fields are left untouched.
func (r *UserRepository) UpdateDetails(ctx context.Context, id string, details domain.BasicDetails) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET location = COALESCE($2, location),
		     birthdate = COALESCE($3, birthdate),
		     profile_image_url = COALESCE($4, profile_image_url),
		     is_new_social_user = FALSE,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, details.Location, details.Birthdate, details.ProfileImageURL)
	if err != nil {
		return fmt.Errorf("update details for %s: %w", id, err)
	}
	return expectOne(res, id)
}

// SaveOnboarding stores the onboarding answers and marks onboarding complete.
func (r *UserRepository) SaveOnboarding(ctx context.Context, id string, answers json.RawMessage) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET onboarding_answers = $2::jsonb,
		     onboarding_completed = TRUE,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, string(answers))
	if err != nil {
		return fmt.Errorf("save onboarding for %s: %w", id, err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
