package repository

import (
	"backend/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

// DMTFilter narrows record listings. Visibility follows the role rules:
// when ViewAll is false only records created by or assigned to UserID
// are returned; session drafts are always restricted to their creator.
type DMTFilter struct {
	UserID  string
	ViewAll bool
	Search  string
	Days    int // 0 means no date cutoff
	Page    int
	Limit   int // 0 means no pagination (export)
}

// DMTRepository defines data access for DMT records and the report
// number counter.
type DMTRepository interface {
	Create(ctx context.Context, record *model.DMTRecord) error
	GetByID(ctx context.Context, id string) (*model.DMTRecord, error)
	List(ctx context.Context, filter DMTFilter) ([]model.DMTRecord, int64, error)
	Update(ctx context.Context, record *model.DMTRecord) error
	SoftDelete(ctx context.Context, id string) error
	NextReportNumber(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status model.Status) (int64, error)
	CountByStage(ctx context.Context, stage model.WorkflowStage) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

type dmtRepository struct {
	db *gorm.DB
}

// NewDMTRepository returns a new instance of DMTRepository
func NewDMTRepository(db *gorm.DB) DMTRepository {
	return &dmtRepository{db: db}
}

func (r *dmtRepository) Create(ctx context.Context, record *model.DMTRecord) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *dmtRepository) GetByID(ctx context.Context, id string) (*model.DMTRecord, error) {
	var record model.DMTRecord
	if err := GetDB(ctx, r.db).First(&record, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *dmtRepository) List(ctx context.Context, filter DMTFilter) ([]model.DMTRecord, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.DMTRecord{}).Where("is_active = ?", true)
	if filter.ViewAll {
		// Full visibility over uploaded records; session drafts stay private.
		query = query.Where("is_session = ? OR created_by = ?", false, filter.UserID)
	} else {
		query = query.Where(
			"(is_session = ? AND (created_by = ? OR assigned_to = ?)) OR (is_session = ? AND created_by = ?)",
			false, filter.UserID, filter.UserID, true, filter.UserID,
		)
	}

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where(
			"CAST(report_number AS TEXT) LIKE ? OR part_num LIKE ? OR shop_order LIKE ? OR status LIKE ?",
			like, like, like, like,
		)
	}

	if filter.Days > 0 {
		cutoff := time.Now().AddDate(0, 0, -filter.Days)
		query = query.Where("created_at >= ?", cutoff)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("report_number DESC")
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.Limit).Limit(filter.Limit)
	}

	var records []model.DMTRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *dmtRepository) Update(ctx context.Context, record *model.DMTRecord) error {
	return GetDB(ctx, r.db).Save(record).Error
}

func (r *dmtRepository) SoftDelete(ctx context.Context, id string) error {
	return GetDB(ctx, r.db).Model(&model.DMTRecord{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

// NextReportNumber mints the next sequential report number. The
// increment and read happen in one statement so concurrent creates can
// never observe the same value.
func (r *dmtRepository) NextReportNumber(ctx context.Context) (int, error) {
	var number int
	err := GetDB(ctx, r.db).
		Raw("UPDATE report_counters SET next_number = next_number + 1 WHERE id = 1 RETURNING next_number - 1").
		Scan(&number).Error
	if err != nil {
		return 0, err
	}
	if number == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return number, nil
}

func (r *dmtRepository) CountByStatus(ctx context.Context, status model.Status) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.DMTRecord{}).
		Where("status = ? AND is_active = ?", status, true).
		Count(&count).Error
	return count, err
}

func (r *dmtRepository) CountByStage(ctx context.Context, stage model.WorkflowStage) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.DMTRecord{}).
		Where("workflow_status = ? AND is_active = ?", stage, true).
		Count(&count).Error
	return count, err
}

func (r *dmtRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.DMTRecord{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}
