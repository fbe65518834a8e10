package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/tecnm-sys/apiserver/types"
)

// Constraint names from the users migration. users_email_key is a unique
// index on lower(email).
const (
	ConstraintUsersEmail = "users_email_key"
)

const userColumns = `id, username, email, password, role, nombre_completo, telefono,
	institucion, avatar, is_active, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Password,
		&user.Role,
		&user.FullName,
		&user.Phone,
		&user.Institution,
		&user.Avatar,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks up a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// List returns every user, newest first.
func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// EmailInUse reports whether another user than excludeID owns email, ignoring
// case. Pass 0 to check against every user.
func (r *UserRepository) EmailInUse(ctx context.Context, email string, excludeID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UsernameInUse reports whether another user than excludeID owns username.
func (r *UserRepository) UsernameInUse(ctx context.Context, username string, excludeID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts user. A duplicate email yields a *ConflictError.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Active = true

	const query = `
		INSERT INTO users (username, email, password, role, nombre_completo, telefono,
			institucion, avatar, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.Password,
		string(user.Role),
		user.FullName,
		user.Phone,
		user.Institution,
		user.Avatar,
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}

// UpdatePassword replaces the stored credential of user id.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int, password string) error {
	const query = `UPDATE users SET password = $1, updated_at = $2 WHERE id = $3`
	return r.execAffectingOne(ctx, query, password, time.Now(), id)
}

// UpdateRole sets the role of the user owning email.
func (r *UserRepository) UpdateRole(ctx context.Context, email string, role types.Role) error {
	const query = `UPDATE users SET role = $1, updated_at = $2 WHERE lower(email) = lower($3)`
	return r.execAffectingOne(ctx, query, string(role), time.Now(), email)
}

// UpdateProfile applies the non-nil fields of patch and returns the stored user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int, patch types.ProfilePatch) (types.User, error) {
	builder := psql.Update("users")
	if patch.Username != nil {
		builder = builder.Set("username", *patch.Username)
	}
	if patch.Email != nil {
		builder = builder.Set("email", *patch.Email)
	}
	if patch.FullName != nil {
		builder = builder.Set("nombre_completo", *patch.FullName)
	}
	if patch.Phone != nil {
		builder = builder.Set("telefono", *patch.Phone)
	}
	if patch.Institution != nil {
		builder = builder.Set("institucion", *patch.Institution)
	}
	if patch.Avatar != nil {
		builder = builder.Set("avatar", *patch.Avatar)
	}

	query, args, err := builder.
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + userColumns).
		ToSql()
	if err != nil {
		return types.User{}, err
	}

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}

func (r *UserRepository) execAffectingOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
