package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tecnm-sys/apiserver/internal/store"
	"github.com/tecnm-sys/apiserver/types"
)

// CareerRepository defines persistence operations for careers.
type CareerRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Career, int, error)
	ListByUser(ctx context.Context, userID int) ([]types.Career, error)
	ListActive(ctx context.Context) ([]types.Career, error)
	Get(ctx context.Context, id int) (types.Career, error)
	Create(ctx context.Context, career types.Career) (types.Career, error)
	Update(ctx context.Context, career types.Career) (types.Career, error)
	UpdateMetrics(ctx context.Context, id int, metrics types.CareerMetrics) (types.Career, error)
	Delete(ctx context.Context, id int) error
}

// CareerService encapsulates career use-cases.
type CareerService struct {
	repo CareerRepository
}

func NewCareerService(repo CareerRepository) *CareerService {
	return &CareerService{repo: repo}
}

func (s *CareerService) List(ctx context.Context, offset, limit int) ([]types.Career, int, error) {
	offset, limit = clampPage(offset, limit)
	return s.repo.List(ctx, offset, limit)
}

// Mine returns the careers owned by actor.
func (s *CareerService) Mine(ctx context.Context, actor Actor) ([]types.Career, error) {
	return s.repo.ListByUser(ctx, actor.UserID)
}

// Available returns every active career.
func (s *CareerService) Available(ctx context.Context) ([]types.Career, error) {
	return s.repo.ListActive(ctx)
}

func (s *CareerService) Get(ctx context.Context, actor Actor, id int) (types.Career, error) {
	career, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Career{}, newError(ErrNotFound, msgCareerNotFound)
		}
		return types.Career{}, fmt.Errorf("load career: %w", err)
	}
	if !actor.CanAccess(career.UserID) {
		return types.Career{}, newError(ErrForbidden, msgAccessDenied)
	}
	return career, nil
}

// Create stores career owned by actor.
func (s *CareerService) Create(ctx context.Context, actor Actor, career types.Career) (types.Career, error) {
	career = withCareerDefaults(career)
	if err := validateCareer(career); err != nil {
		return types.Career{}, err
	}
	career.ID = 0
	career.UserID = actor.UserID
	return s.repo.Create(ctx, career)
}

// Update overwrites the editable fields of an accessible career.
func (s *CareerService) Update(ctx context.Context, actor Actor, career types.Career) (types.Career, error) {
	current, err := s.Get(ctx, actor, career.ID)
	if err != nil {
		return types.Career{}, err
	}

	career = withCareerDefaults(career)
	if err := validateCareer(career); err != nil {
		return types.Career{}, err
	}
	career.UserID = current.UserID
	career.RegisteredAt = current.RegisteredAt

	updated, err := s.repo.Update(ctx, career)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Career{}, newError(ErrNotFound, msgCareerNotFound)
		}
		return types.Career{}, fmt.Errorf("update career: %w", err)
	}
	return updated, nil
}

// UpdateMetrics replaces the population metrics of an accessible career.
func (s *CareerService) UpdateMetrics(ctx context.Context, actor Actor, id int, metrics types.CareerMetrics) (types.Career, error) {
	if metrics.ExpectedPopulation < 0 || metrics.ActualPopulation < 0 {
		return types.Career{}, newError(ErrValidation, msgMetricsInvalid)
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return types.Career{}, err
	}

	updated, err := s.repo.UpdateMetrics(ctx, id, metrics)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Career{}, newError(ErrNotFound, msgCareerNotFound)
		}
		return types.Career{}, fmt.Errorf("update career metrics: %w", err)
	}
	return updated, nil
}

func (s *CareerService) Delete(ctx context.Context, actor Actor, id int) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, msgCareerNotFound)
		}
		return fmt.Errorf("delete career: %w", err)
	}
	return nil
}

func withCareerDefaults(career types.Career) types.Career {
	career.Name = strings.TrimSpace(career.Name)
	career.Number = strings.TrimSpace(career.Number)
	career.Modality = strings.TrimSpace(career.Modality)
	career.Shift = strings.TrimSpace(career.Shift)
	if career.Semesters == 0 {
		career.Semesters = types.DefaultCareerSemesters
	}
	if career.Modality == "" {
		career.Modality = types.DefaultCareerModality
	}
	if career.Shift == "" {
		career.Shift = types.DefaultCareerShift
	}
	return career
}

func validateCareer(career types.Career) error {
	if career.Name == "" || career.Number == "" {
		return newError(ErrValidation, msgCareerRequired)
	}
	if career.Students < 0 || career.Semesters < 0 || career.ExpectedPopulation < 0 || career.ActualPopulation < 0 {
		return newError(ErrValidation, msgMetricsInvalid)
	}
	return nil
}
