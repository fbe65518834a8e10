package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/tecnm-sys/apiserver/types"
)

const careerColumns = `id, user_id, nombre, numero_carrera, cantidad_alumnos, duracion_semestres,
	modalidad, turno, descripcion, activa, poblacion_esperada, poblacion_real, logo,
	fecha_registro, created_at, updated_at`

// CareerRepository handles persistence for careers.
type CareerRepository struct {
	db *sql.DB
}

func NewCareerRepository(db *sql.DB) *CareerRepository {
	return &CareerRepository{db: db}
}

func scanCareer(row rowScanner) (types.Career, error) {
	var career types.Career
	err := row.Scan(
		&career.ID,
		&career.UserID,
		&career.Name,
		&career.Number,
		&career.Students,
		&career.Semesters,
		&career.Modality,
		&career.Shift,
		&career.Description,
		&career.Active,
		&career.ExpectedPopulation,
		&career.ActualPopulation,
		&career.Logo,
		&career.RegisteredAt,
		&career.CreatedAt,
		&career.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Career{}, ErrNotFound
		}
		return types.Career{}, err
	}
	return career, nil
}

func (r *CareerRepository) queryCareers(ctx context.Context, query string, args ...any) ([]types.Career, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	careers := make([]types.Career, 0)
	for rows.Next() {
		career, err := scanCareer(rows)
		if err != nil {
			return nil, err
		}
		careers = append(careers, career)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return careers, nil
}

// List returns a page of all careers and the total count.
func (r *CareerRepository) List(ctx context.Context, offset, limit int) ([]types.Career, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM careers`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + careerColumns + ` FROM careers ORDER BY created_at DESC, id DESC OFFSET $1 LIMIT $2`
	careers, err := r.queryCareers(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return careers, total, nil
}

func (r *CareerRepository) ListByUser(ctx context.Context, userID int) ([]types.Career, error) {
	query := `SELECT ` + careerColumns + ` FROM careers WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return r.queryCareers(ctx, query, userID)
}

func (r *CareerRepository) ListActive(ctx context.Context) ([]types.Career, error) {
	query := `SELECT ` + careerColumns + ` FROM careers WHERE activa = TRUE ORDER BY nombre`
	return r.queryCareers(ctx, query)
}

func (r *CareerRepository) Get(ctx context.Context, id int) (types.Career, error) {
	query := `SELECT ` + careerColumns + ` FROM careers WHERE id = $1`
	return scanCareer(r.db.QueryRowContext(ctx, query, id))
}

func (r *CareerRepository) Create(ctx context.Context, career types.Career) (types.Career, error) {
	now := time.Now()
	career.CreatedAt = now
	career.UpdatedAt = now
	if career.RegisteredAt.IsZero() {
		career.RegisteredAt = now
	}

	const query = `
		INSERT INTO careers (user_id, nombre, numero_carrera, cantidad_alumnos, duracion_semestres,
			modalidad, turno, descripcion, activa, poblacion_esperada, poblacion_real, logo,
			fecha_registro, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		career.UserID,
		career.Name,
		career.Number,
		career.Students,
		career.Semesters,
		career.Modality,
		career.Shift,
		career.Description,
		career.Active,
		career.ExpectedPopulation,
		career.ActualPopulation,
		career.Logo,
		career.RegisteredAt,
		career.CreatedAt,
		career.UpdatedAt,
	).Scan(&career.ID); err != nil {
		return types.Career{}, translateError(err)
	}
	return career, nil
}

// Update overwrites the editable fields of career and returns the stored row.
func (r *CareerRepository) Update(ctx context.Context, career types.Career) (types.Career, error) {
	query, args, err := psql.Update("careers").
		SetMap(map[string]any{
			"nombre":             career.Name,
			"numero_carrera":     career.Number,
			"cantidad_alumnos":   career.Students,
			"duracion_semestres": career.Semesters,
			"modalidad":          career.Modality,
			"turno":              career.Shift,
			"descripcion":        career.Description,
			"activa":             career.Active,
			"poblacion_esperada": career.ExpectedPopulation,
			"poblacion_real":     career.ActualPopulation,
			"logo":               career.Logo,
			"updated_at":         time.Now(),
		}).
		Where(sq.Eq{"id": career.ID}).
		Suffix("RETURNING " + careerColumns).
		ToSql()
	if err != nil {
		return types.Career{}, err
	}
	return scanCareer(r.db.QueryRowContext(ctx, query, args...))
}

func (r *CareerRepository) UpdateMetrics(ctx context.Context, id int, metrics types.CareerMetrics) (types.Career, error) {
	query := `
		UPDATE careers
		SET poblacion_esperada = $1, poblacion_real = $2, updated_at = $3
		WHERE id = $4
		RETURNING ` + careerColumns
	return scanCareer(r.db.QueryRowContext(ctx, query, metrics.ExpectedPopulation, metrics.ActualPopulation, time.Now(), id))
}

// Delete removes the career and its institution links.
func (r *CareerRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM institution_careers WHERE career_id = $1`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM careers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
