package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type ReferenceItemRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code"`
}

// ImportResult summarizes a CSV import run.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ReferenceService manages the lookup entities backing the DMT form
// selectors (work centers, customers, failure codes, ...).
type ReferenceService interface {
	List(ctx context.Context, kind model.ReferenceKind) ([]model.ReferenceItem, error)
	Create(ctx context.Context, actor Actor, kind model.ReferenceKind, req ReferenceItemRequest) (*model.ReferenceItem, error)
	Update(ctx context.Context, actor Actor, kind model.ReferenceKind, id string, req ReferenceItemRequest) (*model.ReferenceItem, error)
	Delete(ctx context.Context, actor Actor, kind model.ReferenceKind, id string) error
	ImportCSV(ctx context.Context, actor Actor, kind model.ReferenceKind, r io.Reader) (*ImportResult, error)
}

type referenceService struct {
	repo      repository.ReferenceRepository
	auditRepo repository.AuditRepository
}

func NewReferenceService(repo repository.ReferenceRepository, auditRepo repository.AuditRepository) ReferenceService {
	return &referenceService{repo: repo, auditRepo: auditRepo}
}

func (s *referenceService) List(ctx context.Context, kind model.ReferenceKind) ([]model.ReferenceItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown reference kind %q", ErrNotFound, kind)
	}
	return s.repo.ListActive(ctx, kind)
}

func (s *referenceService) Create(ctx context.Context, actor Actor, kind model.ReferenceKind, req ReferenceItemRequest) (*model.ReferenceItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown reference kind %q", ErrNotFound, kind)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Missing: []string{"name"}}
	}

	if _, err := s.repo.GetByName(ctx, kind, name); err == nil {
		return nil, fmt.Errorf("%s %q already exists", kind, name)
	}

	item := &model.ReferenceItem{
		Kind:     kind,
		Name:     name,
		Code:     strings.TrimSpace(req.Code),
		IsActive: true,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}

	s.audit(ctx, actor, model.ActionCreate, item.ID.String(), string(kind)+": "+name)

	return item, nil
}

func (s *referenceService) Update(ctx context.Context, actor Actor, kind model.ReferenceKind, id string, req ReferenceItemRequest) (*model.ReferenceItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Missing: []string{"name"}}
	}

	item.Name = name
	item.Code = strings.TrimSpace(req.Code)
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", kind, err)
	}

	s.audit(ctx, actor, model.ActionUpdate, item.ID.String(), string(kind)+": "+name)

	return item, nil
}

func (s *referenceService) Delete(ctx context.Context, actor Actor, kind model.ReferenceKind, id string) error {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, kind, item.ID.String()); err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}

	s.audit(ctx, actor, model.ActionDelete, item.ID.String(), string(kind)+": "+item.Name)

	return nil
}

// ImportCSV loads lookup entries from a CSV stream. The first column is
// the name, an optional second column the code; a header row named
// "name" is skipped. Duplicates are counted, not treated as failures.
func (s *referenceService) ImportCSV(ctx context.Context, actor Actor, kind model.ReferenceKind, r io.Reader) (*ImportResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown reference kind %q", ErrNotFound, kind)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	result := &ImportResult{}
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if len(row) == 0 {
			continue
		}

		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		if line == 1 && strings.EqualFold(name, "name") {
			continue
		}

		code := ""
		if len(row) > 1 {
			code = strings.TrimSpace(row[1])
		}

		if _, err := s.repo.GetByName(ctx, kind, name); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("database error: %w", err)
		}

		item := &model.ReferenceItem{Kind: kind, Name: name, Code: code, IsActive: true}
		if err := s.repo.Create(ctx, item); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		result.Imported++
	}

	s.audit(ctx, actor, model.ActionCreate, string(kind),
		fmt.Sprintf("CSV import: %d imported, %d skipped", result.Imported, result.Skipped))

	return result, nil
}

func (s *referenceService) load(ctx context.Context, kind model.ReferenceKind, id string) (*model.ReferenceItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown reference kind %q", ErrNotFound, kind)
	}
	item, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return item, nil
}

func (s *referenceService) audit(ctx context.Context, actor Actor, action, entityID, changes string) {
	entry := &model.AuditLog{
		EntityType: model.EntityReferenceItem,
		EntityID:   entityID,
		Action:     action,
		Changes:    changes,
	}
	if parsed, err := uuid.Parse(actor.ID); err == nil {
		entry.UserID = &parsed
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		log.Printf("WARN: failed to write audit log (%s %s): %v", action, entityID, err)
	}
}
