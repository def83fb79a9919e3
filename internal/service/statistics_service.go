package service

import (
	"context"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/shopspring/decimal"
)

// DashboardStats is the aggregate snapshot served to the DMT dashboard.
type DashboardStats struct {
	TotalRecords   int64             `json:"total_records"`
	OpenRecords    int64             `json:"open_records"`
	ClosedRecords  int64             `json:"closed_records"`
	ByStage        map[string]int64  `json:"by_stage"`
	ReferenceStats map[string]int64  `json:"reference_stats"`
	TotalScrapCost string            `json:"total_scrap_cost"`
	RecentRecords  []model.DMTRecord `json:"recent_records"`
}

type StatisticsService interface {
	GetDashboardStats(ctx context.Context, actor Actor) (*DashboardStats, error)
}

type statisticsService struct {
	dmtRepo repository.DMTRepository
	refRepo repository.ReferenceRepository
}

func NewStatisticsService(dmtRepo repository.DMTRepository, refRepo repository.ReferenceRepository) StatisticsService {
	return &statisticsService{dmtRepo: dmtRepo, refRepo: refRepo}
}

var dashboardStages = []model.WorkflowStage{
	model.StageDraft,
	model.StageSupervisorReview,
	model.StageManagerReview,
	model.StageEngineerReview,
	model.StageCompleted,
}

// recentRecordCount caps the record list shown on the dashboard.
const recentRecordCount = 10

// GetDashboardStats aggregates record counts, lookup-table sizes, the
// scrap cost total over every record the actor can see, and the actor's
// ten most recent visible records.
func (s *statisticsService) GetDashboardStats(ctx context.Context, actor Actor) (*DashboardStats, error) {
	stats := &DashboardStats{
		ByStage:        make(map[string]int64, len(dashboardStages)),
		ReferenceStats: make(map[string]int64, len(model.ReferenceKinds)),
	}

	var err error
	if stats.TotalRecords, err = s.dmtRepo.CountActive(ctx); err != nil {
		return nil, err
	}
	if stats.OpenRecords, err = s.dmtRepo.CountByStatus(ctx, model.StatusOpen); err != nil {
		return nil, err
	}
	if stats.ClosedRecords, err = s.dmtRepo.CountByStatus(ctx, model.StatusClosed); err != nil {
		return nil, err
	}

	for _, stage := range dashboardStages {
		count, err := s.dmtRepo.CountByStage(ctx, stage)
		if err != nil {
			return nil, err
		}
		stats.ByStage[string(stage)] = count
	}

	for _, kind := range model.ReferenceKinds {
		count, err := s.refRepo.CountActive(ctx, kind)
		if err != nil {
			return nil, err
		}
		stats.ReferenceStats[string(kind)] = count
	}

	visible, _, err := s.dmtRepo.List(ctx, repository.DMTFilter{
		UserID:  actor.ID,
		ViewAll: workflow.SeesAllRecords(actor.Role),
	})
	if err != nil {
		return nil, err
	}
	stats.TotalScrapCost = totalScrapCost(visible).StringFixed(2)
	if len(visible) > recentRecordCount {
		visible = visible[:recentRecordCount]
	}
	stats.RecentRecords = visible

	return stats, nil
}

// totalScrapCost sums the cost columns over records, tolerating the
// free-text values the form accepts: anything that does not parse as a
// number contributes zero.
func totalScrapCost(records []model.DMTRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if v, err := decimal.NewFromString(r.MaterialScrapCost); err == nil {
			total = total.Add(v)
		}
		if v, err := decimal.NewFromString(r.OthersCost); err == nil {
			total = total.Add(v)
		}
	}
	return total
}
