package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/model"
)

// Export holds a rendered export file ready to be served as an
// attachment.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// exportRow is the flattened, export-facing view of a record. The
// is_active flag is internal bookkeeping and is stripped from exports.
type exportRow struct {
	ID                    string `json:"id"`
	ReportNumber          int    `json:"report_number"`
	WorkCenter            string `json:"work_center"`
	PartNum               string `json:"part_num"`
	Operation             string `json:"operation"`
	EmployeeName          string `json:"employee_name"`
	Qty                   string `json:"qty"`
	Customer              string `json:"customer"`
	ShopOrder             string `json:"shop_order"`
	SerialNumber          string `json:"serial_number"`
	InspItem              string `json:"inspection_item"`
	Date                  string `json:"date"`
	PreparedBy            string `json:"prepared_by"`
	Description           string `json:"description"`
	Disposition           string `json:"disposition"`
	FailureCode           string `json:"failure_code"`
	MaterialScrapCost     string `json:"material_scrap_cost"`
	OthersCost            string `json:"others_cost"`
	Status                string `json:"status"`
	WorkflowStatus        string `json:"workflow_status"`
	CreatedBy             string `json:"created_by"`
	AssignedTo            string `json:"assigned_to"`
	SupervisorCompletedAt string `json:"supervisor_completed_at"`
	ManagerCompletedAt    string `json:"manager_completed_at"`
	EngineerCompletedAt   string `json:"engineer_completed_at"`
	CreatedAt             string `json:"created_at"`
}

var exportHeader = []string{
	"id", "report_number", "work_center", "part_num", "operation",
	"employee_name", "qty", "customer", "shop_order", "serial_number",
	"inspection_item", "date", "prepared_by", "description", "disposition",
	"failure_code", "material_scrap_cost", "others_cost", "status",
	"workflow_status", "created_by", "assigned_to",
	"supervisor_completed_at", "manager_completed_at",
	"engineer_completed_at", "created_at",
}

func toExportRow(r model.DMTRecord) exportRow {
	stamp := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(time.RFC3339)
	}
	return exportRow{
		ID:                    r.ID,
		ReportNumber:          r.ReportNumber,
		WorkCenter:            r.WorkCenter,
		PartNum:               r.PartNum,
		Operation:             r.Operation,
		EmployeeName:          r.EmployeeName,
		Qty:                   r.Qty,
		Customer:              r.Customer,
		ShopOrder:             r.ShopOrder,
		SerialNumber:          r.SerialNumber,
		InspItem:              r.InspItem,
		Date:                  r.Date,
		PreparedBy:            r.PreparedBy,
		Description:           r.Description,
		Disposition:           r.Disposition,
		FailureCode:           r.FailureCode,
		MaterialScrapCost:     r.MaterialScrapCost,
		OthersCost:            r.OthersCost,
		Status:                string(r.Status),
		WorkflowStatus:        string(r.WorkflowStatus),
		CreatedBy:             r.CreatedBy,
		AssignedTo:            r.AssignedTo,
		SupervisorCompletedAt: stamp(r.SupervisorCompletedAt),
		ManagerCompletedAt:    stamp(r.ManagerCompletedAt),
		EngineerCompletedAt:   stamp(r.EngineerCompletedAt),
		CreatedAt:             r.CreatedAt.Format(time.RFC3339),
	}
}

// ExportJSON renders records as a pretty-printed JSON attachment.
func ExportJSON(records []model.DMTRecord) (*Export, error) {
	rows := make([]exportRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toExportRow(r))
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}

	return &Export{
		Filename:    exportFilename("json"),
		ContentType: "application/json",
		Data:        data,
	}, nil
}

// ExportCSV renders records as a CSV attachment with a header row.
func ExportCSV(records []model.DMTRecord) (*Export, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		row := toExportRow(r)
		fields := []string{
			row.ID, fmt.Sprintf("%d", row.ReportNumber), row.WorkCenter,
			row.PartNum, row.Operation, row.EmployeeName, row.Qty,
			row.Customer, row.ShopOrder, row.SerialNumber, row.InspItem,
			row.Date, row.PreparedBy, row.Description, row.Disposition,
			row.FailureCode, row.MaterialScrapCost, row.OthersCost,
			row.Status, row.WorkflowStatus, row.CreatedBy, row.AssignedTo,
			row.SupervisorCompletedAt, row.ManagerCompletedAt,
			row.EngineerCompletedAt, row.CreatedAt,
		}
		if err := w.Write(fields); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return &Export{
		Filename:    exportFilename("csv"),
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}

func exportFilename(ext string) string {
	return fmt.Sprintf("dmt_records_%s.%s", time.Now().Format("20060102_150405"), ext)
}
