package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
)

// EfficiencyPeriod holds the persisted per-employee summary. The composite
// unique index enforces at-most-one row per (employee, period) key; the
// engine's upsert additionally self-heals rows that predate the constraint.
type EfficiencyPeriod struct {
	ID                   int       `gorm:"primary_key" json:"id"`
	EmployeeId           int       `gorm:"not null;uniqueIndex:ux_eff_period_key" json:"employee_id"`
	PeriodStart          time.Time `gorm:"type:date;not null;uniqueIndex:ux_eff_period_key" json:"period_start"`
	PeriodEnd            time.Time `gorm:"type:date;not null;uniqueIndex:ux_eff_period_key" json:"period_end"`
	TimeEfficiency       float64   `json:"time_efficiency"`
	TaskEfficiency       float64   `json:"task_efficiency"`
	QuantityEfficiency   float64   `json:"quantity_efficiency"`
	AwcPct               float64   `json:"awc_pct"`
	StandardHoursAllowed float64   `json:"standard_hours_allowed"`
	ActualHours          float64   `json:"actual_hours"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func ListEfficiencyPeriods(ctx context.Context, start, end time.Time) ([]*EfficiencyPeriod, error) {
	db := config.GetDB()
	var results []*EfficiencyPeriod
	if err := db.WithContext(ctx).
		Where("period_start = ? AND period_end = ?", start, end).
		Order("employee_id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
