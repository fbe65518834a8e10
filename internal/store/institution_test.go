package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tecnm-sys/apiserver/types"
)

var institutionRowColumns = []string{
	"id", "user_id", "nombre", "clave_cct", "telefono", "extension", "correo",
	"nombre_representante", "puesto_representante", "direccion", "logo", "estado", "created_at", "updated_at",
}

func institutionRow(rows *sqlmock.Rows, id, userID int, cct string) *sqlmock.Rows {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(id, userID, "Instituto Tecnológico", cct, "", "", "", "", "", "", nil, "active", now, now)
}

func TestInstitutionRepositoryGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM institutions WHERE id = \$1`).
		WithArgs(5).
		WillReturnRows(institutionRow(sqlmock.NewRows(institutionRowColumns), 5, 1, "31DIT0001A"))
	mock.ExpectQuery(`FROM institution_careers ic\s+JOIN careers c`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"institution_id", "nombre"}).
			AddRow(5, "Arquitectura").
			AddRow(5, "Ingeniería Civil"))

	inst, err := repo.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "31DIT0001A", inst.CCT)
	assert.Equal(t, []string{"Arquitectura", "Ingeniería Civil"}, inst.CareerNames)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryListByUserWithoutCareers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	rows := sqlmock.NewRows(institutionRowColumns)
	institutionRow(rows, 2, 9, "A")
	institutionRow(rows, 1, 9, "B")
	mock.ExpectQuery(`FROM institutions WHERE user_id = \$1`).
		WithArgs(9).
		WillReturnRows(rows)
	mock.ExpectQuery(`FROM institution_careers`).
		WillReturnRows(sqlmock.NewRows([]string{"institution_id", "nombre"}).AddRow(1, "Sistemas"))

	institutions, err := repo.ListByUser(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, institutions, 2)
	assert.Equal(t, []string{}, institutions[0].CareerNames)
	assert.Equal(t, []string{"Sistemas"}, institutions[1].CareerNames)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryCreateLinksCareers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO institutions .+ RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectExec(`INSERT INTO institution_careers \(institution_id,career_id\) VALUES \(\$1,\$2\),\(\$3,\$4\) ON CONFLICT DO NOTHING`).
		WithArgs(12, 3, 12, 4).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	inst, err := repo.Create(context.Background(), types.Institution{
		UserID:    1,
		Name:      "IT Durango",
		CCT:       "10DIT0001X",
		Status:    types.DefaultInstitutionStatus,
		CareerIDs: []int{3, 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, inst.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryCreateDuplicateCCT(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO institutions`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintInstitutionsCCT})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), types.Institution{CCT: "10DIT0001X"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryCreateUnknownCareer(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO institutions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectExec(`INSERT INTO institution_careers`).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), types.Institution{CCT: "X", CareerIDs: []int{999}})
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryUpdateReplacesLinks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE institutions SET .+ RETURNING`).
		WillReturnRows(institutionRow(sqlmock.NewRows(institutionRowColumns), 5, 1, "NEW"))
	mock.ExpectExec(`DELETE FROM institution_careers WHERE institution_id = \$1`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO institution_careers`).
		WithArgs(5, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inst, err := repo.Update(context.Background(), types.Institution{ID: 5, CCT: "NEW", CareerIDs: []int{7}}, true)
	require.NoError(t, err)
	assert.Equal(t, "NEW", inst.CCT)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryUpdateKeepsLinks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE institutions SET`).
		WillReturnRows(institutionRow(sqlmock.NewRows(institutionRowColumns), 5, 1, "SAME"))
	mock.ExpectCommit()

	_, err := repo.Update(context.Background(), types.Institution{ID: 5, CCT: "SAME"}, false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryDeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM institution_careers WHERE institution_id = \$1`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM institutions WHERE id = \$1`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete(context.Background(), 5), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
