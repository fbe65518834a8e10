package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tecnm-sys/apiserver/types"
)

func newInstitutionFixture() (*InstitutionService, *fakeInstitutionRepo) {
	careers := newFakeCareerRepo(
		types.Career{ID: 1, UserID: 1, Name: "Arquitectura"},
		types.Career{ID: 2, UserID: 1, Name: "Ingeniería Civil"},
	)
	repo := newFakeInstitutionRepo(careers,
		types.Institution{ID: 1, UserID: 1, Name: "IT Durango", CCT: "10DIT0001X", Status: "active", CareerIDs: []int{1}},
	)
	return NewInstitutionService(repo), repo
}

func TestInstitutionCreate(t *testing.T) {
	svc, _ := newInstitutionFixture()

	created, err := svc.Create(context.Background(), owner, types.Institution{
		Name:      "IT Chihuahua",
		CCT:       " 08dit0002y ",
		CareerIDs: []int{2, 1, 2, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, "08DIT0002Y", created.CCT)
	assert.Equal(t, types.DefaultInstitutionStatus, created.Status)
	assert.Equal(t, 1, created.UserID)
	assert.Equal(t, []string{"Arquitectura", "Ingeniería Civil"}, created.CareerNames)
}

func TestInstitutionCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		inst    types.Institution
		kind    error
		message string
	}{
		{name: "missing cct", inst: types.Institution{Name: "X"}, kind: ErrValidation, message: msgInstitutionRequired},
		{name: "duplicate cct", inst: types.Institution{Name: "X", CCT: "10dit0001x"}, kind: ErrConflict, message: msgCCTInUse},
		{name: "unknown career", inst: types.Institution{Name: "X", CCT: "NEW", CareerIDs: []int{99}}, kind: ErrValidation, message: msgCareerLinkInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newInstitutionFixture()
			_, err := svc.Create(context.Background(), owner, tt.inst)
			assertKind(t, err, tt.kind, tt.message)
		})
	}
}

func TestInstitutionUpdateLinks(t *testing.T) {
	svc, repo := newInstitutionFixture()
	ctx := context.Background()

	kept, err := svc.Update(ctx, owner, types.Institution{ID: 1, Name: "IT Durango", CCT: "10DIT0001X"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Arquitectura"}, kept.CareerNames)

	replaced, err := svc.Update(ctx, owner, types.Institution{ID: 1, Name: "IT Durango", CCT: "10DIT0001X", CareerIDs: []int{2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ingeniería Civil"}, replaced.CareerNames)

	cleared, err := svc.Update(ctx, owner, types.Institution{ID: 1, Name: "IT Durango", CCT: "10DIT0001X", CareerIDs: []int{}})
	require.NoError(t, err)
	assert.Empty(t, cleared.CareerNames)
	assert.Equal(t, 1, repo.institutions[1].UserID)
}

func TestInstitutionAccess(t *testing.T) {
	svc, repo := newInstitutionFixture()
	ctx := context.Background()

	_, err := svc.Get(ctx, stranger, 1)
	assertKind(t, err, ErrForbidden, msgAccessDenied)

	_, err = svc.Update(ctx, stranger, types.Institution{ID: 1, Name: "X", CCT: "Y"})
	assertKind(t, err, ErrForbidden, msgAccessDenied)

	_, err = svc.Get(ctx, owner, 50)
	assertKind(t, err, ErrNotFound, msgInstitutionNotFound)

	mine, err := svc.Mine(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, mine)

	require.NoError(t, svc.Delete(ctx, admin, 1))
	assert.Empty(t, repo.institutions)
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []int{1, 3, 5}, uniqueIDs([]int{5, 3, 3, -1, 0, 1, 5}))
	assert.Equal(t, []int{}, uniqueIDs([]int{}))
}
