package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tecnm-sys/apiserver/internal/store"
	"github.com/tecnm-sys/apiserver/types"
)

// InstitutionRepository defines persistence operations for institutions.
type InstitutionRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Institution, int, error)
	ListByUser(ctx context.Context, userID int) ([]types.Institution, error)
	Get(ctx context.Context, id int) (types.Institution, error)
	CCTInUse(ctx context.Context, cct string, excludeID int) (bool, error)
	Create(ctx context.Context, inst types.Institution) (types.Institution, error)
	Update(ctx context.Context, inst types.Institution, replaceLinks bool) (types.Institution, error)
	Delete(ctx context.Context, id int) error
}

// InstitutionService encapsulates institution use-cases.
type InstitutionService struct {
	repo InstitutionRepository
}

func NewInstitutionService(repo InstitutionRepository) *InstitutionService {
	return &InstitutionService{repo: repo}
}

func (s *InstitutionService) List(ctx context.Context, offset, limit int) ([]types.Institution, int, error) {
	offset, limit = clampPage(offset, limit)
	return s.repo.List(ctx, offset, limit)
}

// Mine returns the institutions owned by actor.
func (s *InstitutionService) Mine(ctx context.Context, actor Actor) ([]types.Institution, error) {
	return s.repo.ListByUser(ctx, actor.UserID)
}

func (s *InstitutionService) Get(ctx context.Context, actor Actor, id int) (types.Institution, error) {
	inst, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Institution{}, newError(ErrNotFound, msgInstitutionNotFound)
		}
		return types.Institution{}, fmt.Errorf("load institution: %w", err)
	}
	if !actor.CanAccess(inst.UserID) {
		return types.Institution{}, newError(ErrForbidden, msgAccessDenied)
	}
	return inst, nil
}

// Create stores inst owned by actor and links inst.CareerIDs.
func (s *InstitutionService) Create(ctx context.Context, actor Actor, inst types.Institution) (types.Institution, error) {
	inst = normalizeInstitution(inst)
	if err := s.validate(ctx, inst, 0); err != nil {
		return types.Institution{}, err
	}
	inst.ID = 0
	inst.UserID = actor.UserID

	created, err := s.repo.Create(ctx, inst)
	if err != nil {
		return types.Institution{}, mapInstitutionWriteError(err)
	}
	return s.repo.Get(ctx, created.ID)
}

// Update overwrites an accessible institution. A nil CareerIDs keeps the
// current career links; any other value replaces them.
func (s *InstitutionService) Update(ctx context.Context, actor Actor, inst types.Institution) (types.Institution, error) {
	current, err := s.Get(ctx, actor, inst.ID)
	if err != nil {
		return types.Institution{}, err
	}

	replaceLinks := inst.CareerIDs != nil
	inst = normalizeInstitution(inst)
	if err := s.validate(ctx, inst, inst.ID); err != nil {
		return types.Institution{}, err
	}
	inst.UserID = current.UserID

	if _, err := s.repo.Update(ctx, inst, replaceLinks); err != nil {
		return types.Institution{}, mapInstitutionWriteError(err)
	}
	return s.repo.Get(ctx, inst.ID)
}

func (s *InstitutionService) Delete(ctx context.Context, actor Actor, id int) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, msgInstitutionNotFound)
		}
		return fmt.Errorf("delete institution: %w", err)
	}
	return nil
}

func (s *InstitutionService) validate(ctx context.Context, inst types.Institution, excludeID int) error {
	if inst.Name == "" || inst.CCT == "" {
		return newError(ErrValidation, msgInstitutionRequired)
	}
	taken, err := s.repo.CCTInUse(ctx, inst.CCT, excludeID)
	if err != nil {
		return fmt.Errorf("check clave cct: %w", err)
	}
	if taken {
		return newError(ErrConflict, msgCCTInUse)
	}
	return nil
}

func mapInstitutionWriteError(err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return newError(ErrConflict, msgCCTInUse)
	case errors.Is(err, store.ErrInvalidReference):
		return newError(ErrValidation, msgCareerLinkInvalid)
	case errors.Is(err, store.ErrNotFound):
		return newError(ErrNotFound, msgInstitutionNotFound)
	}
	return fmt.Errorf("write institution: %w", err)
}

func normalizeInstitution(inst types.Institution) types.Institution {
	inst.Name = strings.TrimSpace(inst.Name)
	inst.CCT = strings.ToUpper(strings.TrimSpace(inst.CCT))
	inst.Email = strings.TrimSpace(inst.Email)
	inst.Status = strings.TrimSpace(inst.Status)
	if inst.Status == "" {
		inst.Status = types.DefaultInstitutionStatus
	}
	if inst.CareerIDs != nil {
		inst.CareerIDs = uniqueIDs(inst.CareerIDs)
	}
	return inst
}

// uniqueIDs returns the positive ids of ids, sorted and deduplicated.
func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < 1 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
