package repository

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
)

// ReferenceRepository defines data access for the lookup entities used
// by the DMT form selectors.
type ReferenceRepository interface {
	Create(ctx context.Context, item *model.ReferenceItem) error
	GetByID(ctx context.Context, kind model.ReferenceKind, id string) (*model.ReferenceItem, error)
	GetByName(ctx context.Context, kind model.ReferenceKind, name string) (*model.ReferenceItem, error)
	ListActive(ctx context.Context, kind model.ReferenceKind) ([]model.ReferenceItem, error)
	CountActive(ctx context.Context, kind model.ReferenceKind) (int64, error)
	Update(ctx context.Context, item *model.ReferenceItem) error
	SoftDelete(ctx context.Context, kind model.ReferenceKind, id string) error
}

type referenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) Create(ctx context.Context, item *model.ReferenceItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *referenceRepository) GetByID(ctx context.Context, kind model.ReferenceKind, id string) (*model.ReferenceItem, error) {
	var item model.ReferenceItem
	if err := GetDB(ctx, r.db).First(&item, "id = ? AND kind = ? AND is_active = ?", id, kind, true).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *referenceRepository) GetByName(ctx context.Context, kind model.ReferenceKind, name string) (*model.ReferenceItem, error) {
	var item model.ReferenceItem
	if err := GetDB(ctx, r.db).First(&item, "kind = ? AND name = ? AND is_active = ?", kind, name, true).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *referenceRepository) ListActive(ctx context.Context, kind model.ReferenceKind) ([]model.ReferenceItem, error) {
	var items []model.ReferenceItem
	err := GetDB(ctx, r.db).
		Where("kind = ? AND is_active = ?", kind, true).
		Order("name").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *referenceRepository) CountActive(ctx context.Context, kind model.ReferenceKind) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ReferenceItem{}).
		Where("kind = ? AND is_active = ?", kind, true).
		Count(&count).Error
	return count, err
}

func (r *referenceRepository) Update(ctx context.Context, item *model.ReferenceItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *referenceRepository) SoftDelete(ctx context.Context, kind model.ReferenceKind, id string) error {
	return GetDB(ctx, r.db).Model(&model.ReferenceItem{}).
		Where("id = ? AND kind = ?", id, kind).
		Update("is_active", false).Error
}
