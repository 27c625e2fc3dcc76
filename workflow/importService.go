package workflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type RejectedRow struct {
	RowNumber int               `json:"row_number"`
	Data      map[string]string `json:"data"`
	Reason    string            `json:"reason"`
}

type FlaggedJobCard struct {
	JobCardId int      `json:"jobcard_id"`
	Flags     []string `json:"flags"`
}

type ImportReport struct {
	TotalRows     int              `json:"total_rows"`
	AcceptedCount int              `json:"accepted_count"`
	RejectedCount int              `json:"rejected_count"`
	FlaggedCount  int              `json:"flagged_count"`
	Rejected      []RejectedRow    `json:"rejected"`
	Flagged       []FlaggedJobCard `json:"flagged"`
}

var importRequiredColumns = []string{
	"ec_number", "entry_date", "machine_code", "wo_number",
	"activity_desc", "qty", "actual_hours", "status",
}

// ImportService bulk-creates job cards from an Excel/CSV sheet uploaded by a
// supervisor. Every accepted row goes through the validation engine, same as
// a card keyed in by hand.
type ImportService struct {
	engine *ValidationEngine
}

func NewImportService(engine *ValidationEngine) *ImportService {
	return &ImportService{engine: engine}
}

func (s *ImportService) ImportJobCards(ctx context.Context, content []byte, filename string, supervisorId int) (*ImportReport, error) {
	// Best-effort: one running import per supervisor. Correctness does not
	// depend on Redis; the engine serializes its own writes per card.
	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("import:supervisor:%d", supervisorId)
		if lock, err := locker.Obtain(ctx, lockKey, time.Minute, nil); err == nil {
			defer lock.Release(ctx)
		}
	}

	header, rows, err := ParseImportFile(filename, content)
	if err != nil {
		return &ImportReport{
			TotalRows:     0,
			RejectedCount: 1,
			Rejected: []RejectedRow{{
				RowNumber: 0,
				Data:      map[string]string{},
				Reason:    fmt.Sprintf("File parsing error: %v", err),
			}},
		}, nil
	}

	if missing := missingColumns(header); len(missing) > 0 {
		return &ImportReport{
			TotalRows:     0,
			RejectedCount: 1,
			Rejected: []RejectedRow{{
				RowNumber: 0,
				Data:      map[string]string{},
				Reason:    "Missing required columns: " + strings.Join(missing, ", "),
			}},
		}, nil
	}

	lookups, err := loadImportLookups(ctx)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{
		TotalRows: len(rows),
		Rejected:  []RejectedRow{},
		Flagged:   []FlaggedJobCard{},
	}

	db := config.GetDB()
	for i, row := range rows {
		rowNum := i + 2 // sheet row number (1-indexed plus header)
		data := rowToMap(header, row)

		jobCard, reason := mapImportRow(data, supervisorId, lookups)
		if reason != "" {
			report.Rejected = append(report.Rejected, RejectedRow{RowNumber: rowNum, Data: data, Reason: reason})
			report.RejectedCount++
			continue
		}

		if err := db.WithContext(ctx).Create(jobCard).Error; err != nil {
			report.Rejected = append(report.Rejected, RejectedRow{
				RowNumber: rowNum, Data: data, Reason: fmt.Sprintf("Processing error: %v", err),
			})
			report.RejectedCount++
			continue
		}

		flags, err := s.engine.RunForCard(ctx, jobCard)
		if err != nil {
			return nil, err
		}
		report.AcceptedCount++

		if len(flags) > 0 {
			flagTypes := make([]string, 0, len(flags))
			for _, flag := range flags {
				flagTypes = append(flagTypes, string(flag.FlagType))
			}
			report.Flagged = append(report.Flagged, FlaggedJobCard{JobCardId: jobCard.ID, Flags: flagTypes})
			report.FlaggedCount++
		}
	}

	return report, nil
}

// ParseImportFile returns the header row and data rows of an .xlsx or .csv
// upload. The first sheet is used for Excel files.
func ParseImportFile(filename string, content []byte) ([]string, [][]string, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		f, err := excelize.OpenReader(bytes.NewReader(content))
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, errors.New("workbook has no sheets")
		}
		all, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, nil, err
		}
		if len(all) == 0 {
			return nil, nil, errors.New("sheet is empty")
		}
		return normalizeHeader(all[0]), all[1:], nil

	case strings.HasSuffix(lower, ".csv"):
		reader := csv.NewReader(bytes.NewReader(content))
		reader.FieldsPerRecord = -1
		all, err := reader.ReadAll()
		if err != nil {
			return nil, nil, err
		}
		if len(all) == 0 {
			return nil, nil, errors.New("file is empty")
		}
		return normalizeHeader(all[0]), all[1:], nil

	default:
		return nil, nil, fmt.Errorf("unsupported file type: %s (use .xlsx or .csv)", filename)
	}
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = strings.ToLower(strings.TrimSpace(col))
	}
	return out
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range importRequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func rowToMap(header []string, row []string) map[string]string {
	data := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(row) {
			data[col] = strings.TrimSpace(row[i])
		} else {
			data[col] = ""
		}
	}
	return data
}

type importLookups struct {
	employees     map[string]int // ec_number -> id
	machines      map[string]int // machine_code -> id
	workOrders    map[string]int // wo_number -> id
	activityCodes map[string]int // code -> id
}

const activityCodeMapCacheKey = "importActivityCodeMap"

func loadImportLookups(ctx context.Context) (*importLookups, error) {
	db := config.GetDB()
	lookups := &importLookups{
		employees:     map[string]int{},
		machines:      map[string]int{},
		workOrders:    map[string]int{},
		activityCodes: map[string]int{},
	}

	var employees []*models.Employee
	if err := db.WithContext(ctx).Select("id", "ec_number").Find(&employees).Error; err != nil {
		return nil, err
	}
	for _, employee := range employees {
		lookups.employees[employee.EcNumber] = employee.ID
	}

	var machines []*models.Machine
	if err := db.WithContext(ctx).Select("id", "machine_code").Find(&machines).Error; err != nil {
		return nil, err
	}
	for _, machine := range machines {
		lookups.machines[machine.MachineCode] = machine.ID
	}

	var workOrders []*models.WorkOrder
	if err := db.WithContext(ctx).Select("id", "wo_number").Find(&workOrders).Error; err != nil {
		return nil, err
	}
	for _, workOrder := range workOrders {
		lookups.workOrders[workOrder.WoNumber] = workOrder.ID
	}

	// activity codes change rarely; cache the code map in redis
	exists, err := config.GetRedisObject(activityCodeMapCacheKey, &lookups.activityCodes)
	if err != nil {
		return nil, err
	}
	if !exists {
		var activityCodes []*models.ActivityCode
		if err := db.WithContext(ctx).Select("id", "code").Find(&activityCodes).Error; err != nil {
			return nil, err
		}
		for _, activityCode := range activityCodes {
			lookups.activityCodes[activityCode.Code] = activityCode.ID
		}
		if err := config.SetRedisObject(activityCodeMapCacheKey, &lookups.activityCodes, 10*time.Minute); err != nil {
			return nil, err
		}
	}

	return lookups, nil
}

// mapImportRow turns one sheet row into a JobCard, or a rejection reason.
func mapImportRow(data map[string]string, supervisorId int, lookups *importLookups) (*models.JobCard, string) {
	employeeId, ok := lookups.employees[data["ec_number"]]
	if !ok {
		return nil, fmt.Sprintf("Unknown ec_number: %s", data["ec_number"])
	}
	machineId, ok := lookups.machines[data["machine_code"]]
	if !ok {
		return nil, fmt.Sprintf("Unknown machine_code: %s", data["machine_code"])
	}
	workOrderId, ok := lookups.workOrders[data["wo_number"]]
	if !ok {
		return nil, fmt.Sprintf("Unknown wo_number: %s", data["wo_number"])
	}

	var activityCodeId *int
	if code := data["activity_code"]; code != "" {
		id, ok := lookups.activityCodes[code]
		if !ok {
			return nil, fmt.Sprintf("Unknown activity_code: %s", code)
		}
		activityCodeId = &id
	}

	entryDate, err := parseImportDate(data["entry_date"])
	if err != nil {
		return nil, fmt.Sprintf("Invalid entry_date: %s", data["entry_date"])
	}

	qty, err := parseImportNumber(data["qty"])
	if err != nil || qty < 0 {
		return nil, fmt.Sprintf("Invalid qty: %s", data["qty"])
	}
	actualHours, err := parseImportNumber(data["actual_hours"])
	if err != nil || actualHours <= 0 {
		return nil, fmt.Sprintf("Invalid actual_hours: %s", data["actual_hours"])
	}

	status := models.JobCardStatus(strings.ToUpper(data["status"]))
	if status != models.JobCardStatusIncomplete && status != models.JobCardStatusComplete {
		return nil, fmt.Sprintf("Invalid status: %s (must be C or IC)", data["status"])
	}

	var shift *int
	if raw := data["shift"]; raw != "" {
		n, err := parseImportNumber(raw)
		if err != nil || n < 1 || n > 3 {
			return nil, fmt.Sprintf("Invalid shift: %s", raw)
		}
		v := int(n)
		shift = &v
	}

	return &models.JobCard{
		EmployeeId:     &employeeId,
		SupervisorId:   &supervisorId,
		MachineId:      &machineId,
		WorkOrderId:    &workOrderId,
		ActivityCodeId: activityCodeId,
		ActivityDesc:   data["activity_desc"],
		Qty:            qty,
		ActualHours:    actualHours,
		Status:         status,
		EntryDate:      entryDate,
		Source:         models.SourceSupervisor,
		Shift:          shift,
		IsAwc:          activityCodeId == nil,
		ApprovalStatus: models.ApprovalStatusPending,
	}, ""
}

func parseImportDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", raw)
}

// Sheet cells come in as text; parse through decimal so values like "1,5"
// fail loudly instead of truncating.
func parseImportNumber(raw string) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
