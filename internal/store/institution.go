package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/tecnm-sys/apiserver/types"
)

const (
	ConstraintInstitutionsCCT = "institutions_clave_cct_key"
)

const institutionColumns = `id, user_id, nombre, clave_cct, telefono, extension, correo,
	nombre_representante, puesto_representante, direccion, logo, estado, created_at, updated_at`

// InstitutionRepository handles persistence for institutions and their career links.
type InstitutionRepository struct {
	db *sql.DB
}

func NewInstitutionRepository(db *sql.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

func scanInstitution(row rowScanner) (types.Institution, error) {
	var inst types.Institution
	err := row.Scan(
		&inst.ID,
		&inst.UserID,
		&inst.Name,
		&inst.CCT,
		&inst.Phone,
		&inst.Extension,
		&inst.Email,
		&inst.Representative,
		&inst.Position,
		&inst.Address,
		&inst.Logo,
		&inst.Status,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Institution{}, ErrNotFound
		}
		return types.Institution{}, err
	}
	return inst, nil
}

// List returns a page of all institutions and the total count.
func (r *InstitutionRepository) List(ctx context.Context, offset, limit int) ([]types.Institution, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM institutions`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + institutionColumns + ` FROM institutions ORDER BY created_at DESC, id DESC OFFSET $1 LIMIT $2`
	institutions, err := r.queryInstitutions(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return institutions, total, nil
}

func (r *InstitutionRepository) ListByUser(ctx context.Context, userID int) ([]types.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return r.queryInstitutions(ctx, query, userID)
}

func (r *InstitutionRepository) Get(ctx context.Context, id int) (types.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`
	inst, err := scanInstitution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Institution{}, err
	}

	names, err := r.careerNames(ctx, []int{inst.ID})
	if err != nil {
		return types.Institution{}, err
	}
	inst.CareerNames = namesOrEmpty(names[inst.ID])
	return inst, nil
}

// CCTInUse reports whether an institution other than excludeID owns cct.
func (r *InstitutionRepository) CCTInUse(ctx context.Context, cct string, excludeID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM institutions WHERE clave_cct = $1 AND id <> $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, cct, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts inst and links it to inst.CareerIDs in one transaction.
func (r *InstitutionRepository) Create(ctx context.Context, inst types.Institution) (types.Institution, error) {
	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Institution{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO institutions (user_id, nombre, clave_cct, telefono, extension, correo,
			nombre_representante, puesto_representante, direccion, logo, estado, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		inst.UserID,
		inst.Name,
		inst.CCT,
		inst.Phone,
		inst.Extension,
		inst.Email,
		inst.Representative,
		inst.Position,
		inst.Address,
		inst.Logo,
		inst.Status,
		inst.CreatedAt,
		inst.UpdatedAt,
	).Scan(&inst.ID); err != nil {
		return types.Institution{}, translateError(err)
	}

	if err := insertCareerLinks(ctx, tx, inst.ID, inst.CareerIDs); err != nil {
		return types.Institution{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Institution{}, err
	}
	return inst, nil
}

// Update overwrites the editable fields of inst. When replaceLinks is set the
// career links are replaced by inst.CareerIDs.
func (r *InstitutionRepository) Update(ctx context.Context, inst types.Institution, replaceLinks bool) (types.Institution, error) {
	query, args, err := psql.Update("institutions").
		SetMap(map[string]any{
			"nombre":               inst.Name,
			"clave_cct":            inst.CCT,
			"telefono":             inst.Phone,
			"extension":            inst.Extension,
			"correo":               inst.Email,
			"nombre_representante": inst.Representative,
			"puesto_representante": inst.Position,
			"direccion":            inst.Address,
			"logo":                 inst.Logo,
			"estado":               inst.Status,
			"updated_at":           time.Now(),
		}).
		Where(sq.Eq{"id": inst.ID}).
		Suffix("RETURNING " + institutionColumns).
		ToSql()
	if err != nil {
		return types.Institution{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Institution{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updated, err := scanInstitution(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return types.Institution{}, translateError(err)
	}

	if replaceLinks {
		if _, err := tx.ExecContext(ctx, `DELETE FROM institution_careers WHERE institution_id = $1`, inst.ID); err != nil {
			return types.Institution{}, err
		}
		if err := insertCareerLinks(ctx, tx, inst.ID, inst.CareerIDs); err != nil {
			return types.Institution{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return types.Institution{}, err
	}
	return updated, nil
}

// Delete removes the institution and its career links.
func (r *InstitutionRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM institution_careers WHERE institution_id = $1`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM institutions WHERE id = $1`, id)
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

func (r *InstitutionRepository) queryInstitutions(ctx context.Context, query string, args ...any) ([]types.Institution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	institutions := make([]types.Institution, 0)
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		institutions = append(institutions, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(institutions) == 0 {
		return institutions, nil
	}

	ids := make([]int, len(institutions))
	for i, inst := range institutions {
		ids[i] = inst.ID
	}
	names, err := r.careerNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range institutions {
		institutions[i].CareerNames = namesOrEmpty(names[institutions[i].ID])
	}
	return institutions, nil
}

// careerNames loads the linked career names keyed by institution id.
func (r *InstitutionRepository) careerNames(ctx context.Context, institutionIDs []int) (map[int][]string, error) {
	const query = `
		SELECT ic.institution_id, c.nombre
		FROM institution_careers ic
		JOIN careers c ON c.id = ic.career_id
		WHERE ic.institution_id = ANY($1)
		ORDER BY ic.institution_id, c.nombre`
	ids := make([]int64, len(institutionIDs))
	for i, id := range institutionIDs {
		ids[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[int][]string, len(institutionIDs))
	for rows.Next() {
		var (
			id   int
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = append(names[id], name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func insertCareerLinks(ctx context.Context, tx *sql.Tx, institutionID int, careerIDs []int) error {
	if len(careerIDs) == 0 {
		return nil
	}
	builder := psql.Insert("institution_careers").Columns("institution_id", "career_id")
	for _, careerID := range careerIDs {
		builder = builder.Values(institutionID, careerID)
	}
	query, args, err := builder.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return translateError(err)
}

func namesOrEmpty(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
