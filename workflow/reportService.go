package workflow

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/xuri/excelize/v2"
)

// BuildEfficiencyReport renders the stored EfficiencyPeriod rows for one
// period into an xlsx workbook for payroll.
func BuildEfficiencyReport(ctx context.Context, periodStart, periodEnd time.Time) (*bytes.Buffer, error) {
	periods, err := models.ListEfficiencyPeriods(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	names, teams, err := employeeLabels(ctx, periods)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Efficiency"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"EC Number", "Name", "Team", "Period Start", "Period End",
		"Time Eff %", "Task Eff %", "Qty Eff %", "AWC %",
		"Std Hours", "Actual Hours",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "K1", headerStyle); err != nil {
		return nil, err
	}

	for i, period := range periods {
		row := i + 2
		values := []interface{}{
			names[period.EmployeeId].ec,
			names[period.EmployeeId].name,
			teams[period.EmployeeId],
			period.PeriodStart.Format("2006-01-02"),
			period.PeriodEnd.Format("2006-01-02"),
			period.TimeEfficiency,
			period.TaskEfficiency,
			period.QuantityEfficiency,
			period.AwcPct * 100,
			period.StandardHoursAllowed,
			period.ActualHours,
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ReportFilename names the download after the period.
func ReportFilename(periodStart, periodEnd time.Time) string {
	return fmt.Sprintf("efficiency_%s_%s.xlsx",
		periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02"))
}

type employeeLabel struct {
	ec   string
	name string
}

func employeeLabels(ctx context.Context, periods []*models.EfficiencyPeriod) (map[int]employeeLabel, map[int]string, error) {
	names := make(map[int]employeeLabel)
	teams := make(map[int]string)
	if len(periods) == 0 {
		return names, teams, nil
	}

	var ids []int
	for _, period := range periods {
		ids = append(ids, period.EmployeeId)
	}

	db := config.GetDB()
	var employees []*models.Employee
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&employees).Error; err != nil {
		return nil, nil, err
	}
	for _, employee := range employees {
		names[employee.ID] = employeeLabel{ec: employee.EcNumber, name: employee.Name}
		if employee.Team != nil {
			teams[employee.ID] = *employee.Team
		}
	}
	return names, teams, nil
}
