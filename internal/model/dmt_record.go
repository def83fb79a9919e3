package model

import (
	"time"
)

// Status is the open/closed axis of a DMT record, orthogonal to the
// workflow stage. A closed record is frozen for everyone except the
// override roles until it is reopened.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// WorkflowStage is the position of a record in the linear approval
// pipeline.
type WorkflowStage string

const (
	StageDraft            WorkflowStage = "draft"
	StageSupervisorReview WorkflowStage = "supervisor_review"
	StageManagerReview    WorkflowStage = "manager_review"
	StageEngineerReview   WorkflowStage = "engineer_review"
	StageCompleted        WorkflowStage = "completed"
)

// DMTRecord is a Defective Material Tag report. The business payload is
// stored as flat text columns; the application treats it as opaque
// beyond required-field validation.
type DMTRecord struct {
	ID           string `gorm:"type:varchar(8);primaryKey" json:"id"`
	ReportNumber int    `gorm:"uniqueIndex;not null" json:"report_number"`

	// General information
	WorkCenter   string `gorm:"type:text" json:"work_center"`
	PartNum      string `gorm:"type:text" json:"part_num"`
	Operation    string `gorm:"type:text" json:"operation"`
	EmployeeName string `gorm:"type:text" json:"employee_name"`
	Qty          string `gorm:"type:text" json:"qty"`
	Customer     string `gorm:"type:text" json:"customer"`
	ShopOrder    string `gorm:"type:text" json:"shop_order"`
	SerialNumber string `gorm:"type:text" json:"serial_number"`
	InspItem     string `gorm:"type:text" json:"inspection_item"`
	Date         string `gorm:"type:text" json:"date"`
	PreparedBy   string `gorm:"type:text" json:"prepared_by"`

	// Defect description
	Description        string `gorm:"type:text" json:"description"`
	CarType            string `gorm:"type:text" json:"car_type"`
	CarCycle           string `gorm:"type:text" json:"car_cycle"`
	CarSecondCycleDate string `gorm:"type:text" json:"car_second_cycle_date"`

	// Process analysis
	ProcessDescription string `gorm:"type:text" json:"process_description"`
	Analysis           string `gorm:"type:text" json:"analysis"`
	AnalysisBy         string `gorm:"type:text" json:"analysis_by"`

	// Engineering
	Disposition        string `gorm:"type:text" json:"disposition"`
	DispositionDate    string `gorm:"type:text" json:"disposition_date"`
	Engineer           string `gorm:"type:text" json:"engineer"`
	FailureCode        string `gorm:"type:text" json:"failure_code"`
	ReworkHours        string `gorm:"type:text" json:"rework_hours"`
	ResponsibleDept    string `gorm:"type:text" json:"responsible_dept"`
	MaterialScrapCost  string `gorm:"type:text" json:"material_scrap_cost"`
	OthersCost         string `gorm:"type:text" json:"others_cost"`
	EngineeringRemarks string `gorm:"type:text" json:"engineering_remarks"`
	RepairProcess      string `gorm:"type:text" json:"repair_process"`

	Status         Status        `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	WorkflowStatus WorkflowStage `gorm:"type:varchar(30);not null;default:'draft';index" json:"workflow_status"`

	CreatedBy  string `gorm:"type:varchar(64);not null;index" json:"created_by"`
	AssignedTo string `gorm:"type:varchar(64);index" json:"assigned_to"`

	// Stage completion stamps — set once when the workflow leaves the
	// corresponding stage, never cleared by reopening.
	SupervisorCompletedAt *time.Time `json:"supervisor_completed_at"`
	ManagerCompletedAt    *time.Time `json:"manager_completed_at"`
	EngineerCompletedAt   *time.Time `json:"engineer_completed_at"`

	IsSession bool `gorm:"not null;default:false" json:"is_session"`
	IsActive  bool `gorm:"not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
