package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor identifies the user performing an operation.
type Actor struct {
	ID   string
	Role model.Role
}

// --- DTOs ---

// DMTFields is the flat business payload of a record, shared by create
// and update requests. Field names match the original paper form.
type DMTFields struct {
	WorkCenter         string `json:"work_center"`
	PartNum            string `json:"part_num"`
	Operation          string `json:"operation"`
	EmployeeName       string `json:"employee_name"`
	Qty                string `json:"qty"`
	Customer           string `json:"customer"`
	ShopOrder          string `json:"shop_order"`
	SerialNumber       string `json:"serial_number"`
	InspItem           string `json:"inspection_item"`
	Date               string `json:"date"`
	PreparedBy         string `json:"prepared_by"`
	Description        string `json:"description"`
	CarType            string `json:"car_type"`
	CarCycle           string `json:"car_cycle"`
	CarSecondCycleDate string `json:"car_second_cycle_date"`
	ProcessDescription string `json:"process_description"`
	Analysis           string `json:"analysis"`
	AnalysisBy         string `json:"analysis_by"`
	Disposition        string `json:"disposition"`
	DispositionDate    string `json:"disposition_date"`
	Engineer           string `json:"engineer"`
	FailureCode        string `json:"failure_code"`
	ReworkHours        string `json:"rework_hours"`
	ResponsibleDept    string `json:"responsible_dept"`
	MaterialScrapCost  string `json:"material_scrap_cost"`
	OthersCost         string `json:"others_cost"`
	EngineeringRemarks string `json:"engineering_remarks"`
	RepairProcess      string `json:"repair_process"`
}

type CreateDMTRequest struct {
	DMTFields
	AssignedTo    string `json:"assigned_to"`
	SaveAsSession bool   `json:"save_as_session"`
}

// UpdateDMTRequest carries a full record save. AssignedTo is a pointer
// so callers can distinguish "leave the assignee alone" (absent) from
// "clear the assignee" (explicit empty string).
type UpdateDMTRequest struct {
	DMTFields
	AssignedTo    *string `json:"assigned_to"`
	SaveAsSession bool    `json:"save_as_session"`
}

type ListDMTRequest struct {
	Search string
	Page   int
	Limit  int
}

// --- Interface ---

type DMTService interface {
	CreateDMT(ctx context.Context, actor Actor, req CreateDMTRequest) (*model.DMTRecord, error)
	GetDMT(ctx context.Context, actor Actor, id string) (*model.DMTRecord, error)
	ListDMTs(ctx context.Context, actor Actor, req ListDMTRequest) ([]model.DMTRecord, int64, error)
	UpdateDMT(ctx context.Context, actor Actor, id string, req UpdateDMTRequest) (*model.DMTRecord, error)
	DeleteDMT(ctx context.Context, actor Actor, id string) error
	AdvanceWorkflow(ctx context.Context, actor Actor, id string) (*model.DMTRecord, error)
	CloseDMT(ctx context.Context, actor Actor, id string) (*model.DMTRecord, error)
	ReopenDMT(ctx context.Context, actor Actor, id string) (*model.DMTRecord, error)
	Permissions(ctx context.Context, actor Actor, id string) (workflow.PermissionSet, error)
	ExportDMTs(ctx context.Context, actor Actor, days int) ([]model.DMTRecord, error)
}

type dmtService struct {
	dmtRepo   repository.DMTRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	hub       *ws.Hub
}

func NewDMTService(
	dmtRepo repository.DMTRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) DMTService {
	return &dmtService{
		dmtRepo:   dmtRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		hub:       hub,
	}
}

// requiredDMTFields lists the business fields that must be present on a
// non-session save, in reporting order. Process analysis fields are
// filled later in the workflow and are not required.
var requiredDMTFields = []string{
	"work_center", "part_num", "operation", "employee_name", "qty",
	"customer", "shop_order", "serial_number", "inspection_item", "date",
	"prepared_by", "description", "car_type", "car_cycle",
	"car_second_cycle_date", "disposition", "disposition_date", "engineer",
	"failure_code", "rework_hours", "responsible_dept",
	"material_scrap_cost", "others_cost", "engineering_remarks",
	"repair_process",
}

func (f DMTFields) byName() map[string]string {
	return map[string]string{
		"work_center":           f.WorkCenter,
		"part_num":              f.PartNum,
		"operation":             f.Operation,
		"employee_name":         f.EmployeeName,
		"qty":                   f.Qty,
		"customer":              f.Customer,
		"shop_order":            f.ShopOrder,
		"serial_number":         f.SerialNumber,
		"inspection_item":       f.InspItem,
		"date":                  f.Date,
		"prepared_by":           f.PreparedBy,
		"description":           f.Description,
		"car_type":              f.CarType,
		"car_cycle":             f.CarCycle,
		"car_second_cycle_date": f.CarSecondCycleDate,
		"disposition":           f.Disposition,
		"disposition_date":      f.DispositionDate,
		"engineer":              f.Engineer,
		"failure_code":          f.FailureCode,
		"rework_hours":          f.ReworkHours,
		"responsible_dept":      f.ResponsibleDept,
		"material_scrap_cost":   f.MaterialScrapCost,
		"others_cost":           f.OthersCost,
		"engineering_remarks":   f.EngineeringRemarks,
		"repair_process":        f.RepairProcess,
	}
}

func validateRequiredFields(f DMTFields) error {
	values := f.byName()
	var missing []string
	for _, name := range requiredDMTFields {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func applyFields(record *model.DMTRecord, f DMTFields) {
	record.WorkCenter = f.WorkCenter
	record.PartNum = f.PartNum
	record.Operation = f.Operation
	record.EmployeeName = f.EmployeeName
	record.Qty = f.Qty
	record.Customer = f.Customer
	record.ShopOrder = f.ShopOrder
	record.SerialNumber = f.SerialNumber
	record.InspItem = f.InspItem
	record.Date = f.Date
	record.PreparedBy = f.PreparedBy
	record.Description = f.Description
	record.CarType = f.CarType
	record.CarCycle = f.CarCycle
	record.CarSecondCycleDate = f.CarSecondCycleDate
	record.ProcessDescription = f.ProcessDescription
	record.Analysis = f.Analysis
	record.AnalysisBy = f.AnalysisBy
	record.Disposition = f.Disposition
	record.DispositionDate = f.DispositionDate
	record.Engineer = f.Engineer
	record.FailureCode = f.FailureCode
	record.ReworkHours = f.ReworkHours
	record.ResponsibleDept = f.ResponsibleDept
	record.MaterialScrapCost = f.MaterialScrapCost
	record.OthersCost = f.OthersCost
	record.EngineeringRemarks = f.EngineeringRemarks
	record.RepairProcess = f.RepairProcess
}

// checkAssignable verifies the assignment eligibility boundary: the
// target must be an active user whose role ranks at least as high as the
// actor's own.
func (s *dmtService) checkAssignable(ctx context.Context, actor Actor, targetID string) error {
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: assignee can only be a user with an equal or higher role", ErrForbidden)
		}
		return fmt.Errorf("database error: %w", err)
	}
	if !target.IsActive || !actor.Role.CanAssignTo(target.Role) {
		return fmt.Errorf("%w: assignee can only be a user with an equal or higher role", ErrForbidden)
	}
	return nil
}

// newRecordID mints the short uppercase token used as the record id.
func newRecordID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func (s *dmtService) CreateDMT(ctx context.Context, actor Actor, req CreateDMTRequest) (*model.DMTRecord, error) {
	if !req.SaveAsSession {
		if err := validateRequiredFields(req.DMTFields); err != nil {
			return nil, err
		}
	}

	if req.AssignedTo != "" {
		if err := s.checkAssignable(ctx, actor, req.AssignedTo); err != nil {
			return nil, err
		}
	}

	record := &model.DMTRecord{
		ID:             newRecordID(),
		Status:         model.StatusOpen,
		WorkflowStatus: model.StageDraft,
		CreatedBy:      actor.ID,
		AssignedTo:     req.AssignedTo,
		IsSession:      req.SaveAsSession,
		IsActive:       true,
	}
	applyFields(record, req.DMTFields)

	// Counter increment and insert commit together: a failed insert must
	// not burn a report number.
	counterFailed := false
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, err := s.dmtRepo.NextReportNumber(txCtx)
		if err != nil {
			counterFailed = true
			return err
		}
		record.ReportNumber = number
		if err := s.dmtRepo.Create(txCtx, record); err != nil {
			return fmt.Errorf("failed to create DMT record: %w", err)
		}
		return nil
	})
	if counterFailed {
		// Availability over strict uniqueness: a counter failure must not
		// block record creation.
		record.ReportNumber = model.ReportCounterSeed + int(time.Now().Unix()%10000)
		log.Printf("WARN: report counter unavailable, using time-derived number %d: %v", record.ReportNumber, err)
		if err := s.dmtRepo.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to create DMT record: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	s.audit(ctx, actor, model.ActionCreate, record.ID, "")
	s.publishEvent("dmt_created", record)

	return record, nil
}

func (s *dmtService) GetDMT(ctx context.Context, actor Actor, id string) (*model.DMTRecord, error) {
	return s.loadRecord(ctx, id)
}

func (s *dmtService) ListDMTs(ctx context.Context, actor Actor, req ListDMTRequest) ([]model.DMTRecord, int64, error) {
	filter := repository.DMTFilter{
		UserID:  actor.ID,
		ViewAll: workflow.SeesAllRecords(actor.Role),
		Search:  req.Search,
		Page:    req.Page,
		Limit:   req.Limit,
	}
	return s.dmtRepo.List(ctx, filter)
}

func (s *dmtService) UpdateDMT(ctx context.Context, actor Actor, id string, req UpdateDMTRequest) (*model.DMTRecord, error) {
	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.AssignedTo != nil && *req.AssignedTo != "" && *req.AssignedTo != record.AssignedTo {
		if err := s.checkAssignable(ctx, actor, *req.AssignedTo); err != nil {
			return nil, err
		}
	}

	if !req.SaveAsSession {
		if err := validateRequiredFields(req.DMTFields); err != nil {
			return nil, err
		}
	}

	applyFields(record, req.DMTFields)
	if req.AssignedTo != nil {
		record.AssignedTo = *req.AssignedTo
	}
	record.IsSession = req.SaveAsSession

	if err := s.dmtRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update DMT record: %w", err)
	}

	s.audit(ctx, actor, model.ActionUpdate, record.ID, "")
	s.publishEvent("dmt_updated", record)

	return record, nil
}

func (s *dmtService) DeleteDMT(ctx context.Context, actor Actor, id string) error {
	if !workflow.CanDelete(actor.Role) {
		return fmt.Errorf("%w: only Admins, Inspectors, and Supervisors can delete DMT records", ErrForbidden)
	}

	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return err
	}

	if err := s.dmtRepo.SoftDelete(ctx, record.ID); err != nil {
		return fmt.Errorf("failed to delete DMT record: %w", err)
	}

	s.audit(ctx, actor, model.ActionDelete, record.ID, "")
	s.publishEvent("dmt_deleted", record)

	return nil
}

func (s *dmtService) AdvanceWorkflow(ctx context.Context, actor Actor, id string) (*model.DMTRecord, error) {
	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Status == model.StatusClosed {
		return nil, fmt.Errorf("%w: cannot advance a closed record", ErrInvalidState)
	}

	next, stamp, ok := workflow.NextStage(record.WorkflowStatus)
	if !ok {
		return nil, fmt.Errorf("%w: no transition from %s", ErrInvalidState, record.WorkflowStatus)
	}

	previous := record.WorkflowStatus
	now := time.Now()
	record.WorkflowStatus = next
	switch stamp {
	case workflow.StampSupervisor:
		record.SupervisorCompletedAt = &now
	case workflow.StampManager:
		record.ManagerCompletedAt = &now
	case workflow.StampEngineer:
		record.EngineerCompletedAt = &now
	}

	if err := s.dmtRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to advance workflow: %w", err)
	}

	s.audit(ctx, actor, model.ActionWorkflowAdvance, record.ID,
		fmt.Sprintf("Advanced from %s to %s", previous, next))
	s.publishEvent("dmt_workflow_advanced", record)

	return record, nil
}

func (s *dmtService) CloseDMT(ctx context.Context, actor Actor, id string) (*model.DMTRecord, error) {
	if !workflow.CanClose(actor.Role) {
		return nil, fmt.Errorf("%w: only Engineers, Inspectors, and Admins can close DMT records", ErrForbidden)
	}

	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	record.Status = model.StatusClosed
	if err := s.dmtRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to close DMT record: %w", err)
	}

	s.audit(ctx, actor, model.ActionClose, record.ID, "")
	s.publishEvent("dmt_closed", record)

	return record, nil
}

func (s *dmtService) ReopenDMT(ctx context.Context, actor Actor, id string) (*model.DMTRecord, error) {
	if !workflow.CanReopen(actor.Role) {
		return nil, fmt.Errorf("%w: only Admins and Inspectors can reopen DMT records", ErrForbidden)
	}

	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	// Reopening flips the status axis only; the workflow stage and the
	// completion stamps are left exactly as they were.
	record.Status = model.StatusOpen
	if err := s.dmtRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to reopen DMT record: %w", err)
	}

	s.audit(ctx, actor, model.ActionReopen, record.ID, "")
	s.publishEvent("dmt_reopened", record)

	return record, nil
}

func (s *dmtService) Permissions(ctx context.Context, actor Actor, id string) (workflow.PermissionSet, error) {
	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return workflow.PermissionSet{}, err
	}
	return workflow.ResolvePermissions(actor.Role, record.WorkflowStatus, record.Status), nil
}

func (s *dmtService) ExportDMTs(ctx context.Context, actor Actor, days int) ([]model.DMTRecord, error) {
	filter := repository.DMTFilter{
		UserID:  actor.ID,
		ViewAll: workflow.SeesAllRecords(actor.Role),
		Days:    days,
	}
	records, _, err := s.dmtRepo.List(ctx, filter)
	return records, err
}

// --- Helpers ---

func (s *dmtService) loadRecord(ctx context.Context, id string) (*model.DMTRecord, error) {
	record, err := s.dmtRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: DMT record %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return record, nil
}

// audit appends a trail entry for a completed mutation. Audit writes
// are best-effort: a failure is logged and never propagated, and never
// rolls back the primary operation.
func (s *dmtService) audit(ctx context.Context, actor Actor, action, entityID, changes string) {
	entry := &model.AuditLog{
		EntityType: model.EntityDMTRecord,
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

type dmtEvent struct {
	Event          string              `json:"event"`
	ID             string              `json:"id"`
	ReportNumber   int                 `json:"report_number"`
	Status         model.Status        `json:"status"`
	WorkflowStatus model.WorkflowStage `json:"workflow_status"`
}

func (s *dmtService) publishEvent(event string, record *model.DMTRecord) {
	payload, err := json.Marshal(dmtEvent{
		Event:          event,
		ID:             record.ID,
		ReportNumber:   record.ReportNumber,
		Status:         record.Status,
		WorkflowStatus: record.WorkflowStatus,
	})
	if err != nil {
		return
	}
	s.hub.Publish(payload)
}
