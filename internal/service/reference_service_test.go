package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeReferenceRepo struct {
	items map[string]*model.ReferenceItem
}

func newFakeReferenceRepo() *fakeReferenceRepo {
	return &fakeReferenceRepo{items: make(map[string]*model.ReferenceItem)}
}

func (f *fakeReferenceRepo) Create(ctx context.Context, item *model.ReferenceItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	clone := *item
	f.items[item.ID.String()] = &clone
	return nil
}

func (f *fakeReferenceRepo) GetByID(ctx context.Context, kind model.ReferenceKind, id string) (*model.ReferenceItem, error) {
	item, ok := f.items[id]
	if !ok || item.Kind != kind || !item.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *item
	return &clone, nil
}

func (f *fakeReferenceRepo) GetByName(ctx context.Context, kind model.ReferenceKind, name string) (*model.ReferenceItem, error) {
	for _, item := range f.items {
		if item.Kind == kind && item.Name == name && item.IsActive {
			clone := *item
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReferenceRepo) ListActive(ctx context.Context, kind model.ReferenceKind) ([]model.ReferenceItem, error) {
	var out []model.ReferenceItem
	for _, item := range f.items {
		if item.Kind == kind && item.IsActive {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeReferenceRepo) CountActive(ctx context.Context, kind model.ReferenceKind) (int64, error) {
	items, _ := f.ListActive(ctx, kind)
	return int64(len(items)), nil
}

func (f *fakeReferenceRepo) Update(ctx context.Context, item *model.ReferenceItem) error {
	clone := *item
	f.items[item.ID.String()] = &clone
	return nil
}

func (f *fakeReferenceRepo) SoftDelete(ctx context.Context, kind model.ReferenceKind, id string) error {
	if item, ok := f.items[id]; ok && item.Kind == kind {
		item.IsActive = false
	}
	return nil
}

func newReferenceTestService() (ReferenceService, *fakeReferenceRepo) {
	repo := newFakeReferenceRepo()
	return NewReferenceService(repo, &fakeAuditRepo{}), repo
}

func refActor() Actor {
	return Actor{ID: uuid.NewString(), Role: model.RoleAdmin}
}

func TestReferenceCreateAndList(t *testing.T) {
	svc, _ := newReferenceTestService()
	ctx := context.Background()

	item, err := svc.Create(ctx, refActor(), model.KindWorkCenter, ReferenceItemRequest{Name: "  WC-100  ", Code: "100"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Name != "WC-100" {
		t.Errorf("Name = %q, want trimmed WC-100", item.Name)
	}

	// Same name under a different kind is a separate entry.
	if _, err := svc.Create(ctx, refActor(), model.KindCustomer, ReferenceItemRequest{Name: "WC-100"}); err != nil {
		t.Fatalf("Create under other kind: %v", err)
	}

	// Duplicate within a kind is rejected.
	if _, err := svc.Create(ctx, refActor(), model.KindWorkCenter, ReferenceItemRequest{Name: "WC-100"}); err == nil {
		t.Error("duplicate Create succeeded")
	}

	items, err := svc.List(ctx, model.KindWorkCenter)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("List = %d items, want 1", len(items))
	}
}

func TestReferenceUnknownKind(t *testing.T) {
	svc, _ := newReferenceTestService()
	ctx := context.Background()

	if _, err := svc.List(ctx, "colors"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List unknown kind: error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Create(ctx, refActor(), "colors", ReferenceItemRequest{Name: "red"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Create unknown kind: error = %v, want ErrNotFound", err)
	}
}

func TestReferenceCreateRequiresName(t *testing.T) {
	svc, _ := newReferenceTestService()

	_, err := svc.Create(context.Background(), refActor(), model.KindCustomer, ReferenceItemRequest{Name: "   "})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Create blank name: error = %v, want ValidationError", err)
	}
}

func TestReferenceDelete(t *testing.T) {
	svc, _ := newReferenceTestService()
	ctx := context.Background()

	item, err := svc.Create(ctx, refActor(), model.KindFailureCode, ReferenceItemRequest{Name: "F-17"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, refActor(), model.KindFailureCode, item.ID.String()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	items, _ := svc.List(ctx, model.KindFailureCode)
	if len(items) != 0 {
		t.Errorf("List after delete = %d items, want 0", len(items))
	}

	if err := svc.Delete(ctx, refActor(), model.KindFailureCode, item.ID.String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete twice: error = %v, want ErrNotFound", err)
	}
}

func TestImportCSV(t *testing.T) {
	svc, _ := newReferenceTestService()
	ctx := context.Background()

	// Pre-existing entry to exercise duplicate skipping.
	if _, err := svc.Create(ctx, refActor(), model.KindEmployee, ReferenceItemRequest{Name: "J. Smith"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	csvData := strings.Join([]string{
		"name,code",
		"J. Smith,E100",
		"A. Jones,E101",
		"  ",
		"B. Chen",
	}, "\n")

	result, err := svc.ImportCSV(ctx, refActor(), model.KindEmployee, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("Imported = %d, want 2", result.Imported)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}

	items, _ := svc.List(ctx, model.KindEmployee)
	if len(items) != 3 {
		t.Errorf("List after import = %d items, want 3", len(items))
	}
}

func TestImportCSVUnknownKind(t *testing.T) {
	svc, _ := newReferenceTestService()

	_, err := svc.ImportCSV(context.Background(), refActor(), "colors", strings.NewReader("red\n"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ImportCSV unknown kind: error = %v, want ErrNotFound", err)
	}
}
