package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/utils"
)

// Epsilon floors every denominator so degenerate inputs (zero hours, unset
// standards) produce finite numbers instead of NaN/Inf.
const Epsilon = 1e-6

// EfficiencySnapshot is what the engine returns and what it persists (one
// EfficiencyPeriod row per (employee, period) key). EmployeeId is nil for
// team averages.
type EfficiencySnapshot struct {
	EmployeeId           *int    `json:"employee_id"`
	PeriodStart          string  `json:"period_start"`
	PeriodEnd            string  `json:"period_end"`
	TimeEfficiency       float64 `json:"time_efficiency"`
	TaskEfficiency       float64 `json:"task_efficiency"`
	QuantityEfficiency   float64 `json:"quantity_efficiency"`
	AwcPct               float64 `json:"awc_pct"`
	StandardHoursAllowed float64 `json:"standard_hours_allowed"`
	ActualHours          float64 `json:"actual_hours"`
	Team                 *string `json:"team,omitempty"`
}

type EfficiencyEngine struct {
	store Store
}

func NewEfficiencyEngine(store Store) *EfficiencyEngine {
	return &EfficiencyEngine{store: store}
}

// ComputeEmployeeEfficiency derives the period metrics from the employee's job
// cards (flags are ignored here) and upserts the EfficiencyPeriod row.
//
//   - productive hours: actual_hours of cards with an activity code
//   - awc hours: actual_hours of cards without one
//   - standard_hours_allowed: sum(qty * std_hours_per_unit), unset standard = 0
//   - time_efficiency: standard_hours_allowed / productive_hours * 100
//   - task_efficiency: TASK_BASED card count over max(count, 1) * 100
//   - quantity_efficiency: mean over QUANTITY_BASED cards of
//     qty / (std_qty_per_hour * actual_hours), * 100
func (e *EfficiencyEngine) ComputeEmployeeEfficiency(ctx context.Context, employeeId int, periodStart, periodEnd time.Time) (*EfficiencySnapshot, error) {
	ctx, span := tracer.Start(ctx, "efficiency.ComputeEmployeeEfficiency")
	defer span.End()

	rows, err := e.store.CardsWithActivityForEmployee(ctx, employeeId, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	var productiveHours, awcHours, standardHoursAllowed float64
	var tasksCompleted int
	var qtyEffSum float64
	var qtyEffCount int

	for _, row := range rows {
		hours := row.Card.ActualHours
		qty := row.Card.Qty

		if row.Card.ActivityCodeId == nil || row.Activity == nil {
			awcHours += hours
			continue
		}

		productiveHours += hours
		standardHoursAllowed += utils.DereferencePtr(row.Activity.StdHoursPerUnit) * qty

		switch row.Activity.EfficiencyType {
		case models.EfficiencyTypeTaskBased:
			tasksCompleted++
		case models.EfficiencyTypeQuantityBased:
			denom := utils.DereferencePtr(row.Activity.StdQtyPerHour) * maxFloat(hours, 0)
			qtyEffSum += qty / maxFloat(denom, Epsilon)
			qtyEffCount++
		}
	}

	// No external task plan exists; the completed count doubles as the
	// baseline, so task efficiency is 100% whenever any task card exists.
	tasksPlanned := maxInt(tasksCompleted, 1)

	totalHours := productiveHours + awcHours
	awcPct := 0.0
	if totalHours > 0 {
		awcPct = awcHours / maxFloat(totalHours, Epsilon)
	}

	timeEfficiency := standardHoursAllowed / maxFloat(productiveHours, Epsilon) * 100.0
	taskEfficiency := float64(tasksCompleted) / float64(tasksPlanned) * 100.0
	quantityEfficiency := qtyEffSum / float64(maxInt(qtyEffCount, 1)) * 100.0

	// An earlier revision substituted the team average here when awc_pct
	// exceeded 0.5; the individual's numbers are always returned and stored
	// now. ComputeTeamAverage remains available to callers that want it.
	snapshot := &EfficiencySnapshot{
		EmployeeId:           &employeeId,
		PeriodStart:          periodStart.Format("2006-01-02"),
		PeriodEnd:            periodEnd.Format("2006-01-02"),
		TimeEfficiency:       utils.RoundTo(timeEfficiency, 2),
		TaskEfficiency:       utils.RoundTo(taskEfficiency, 2),
		QuantityEfficiency:   utils.RoundTo(quantityEfficiency, 2),
		AwcPct:               utils.RoundTo(awcPct, 4),
		StandardHoursAllowed: utils.RoundTo(standardHoursAllowed, 2),
		ActualHours:          utils.RoundTo(productiveHours, 2),
	}

	err = e.store.UpsertEfficiencyPeriod(ctx, &models.EfficiencyPeriod{
		EmployeeId:           employeeId,
		PeriodStart:          periodStart,
		PeriodEnd:            periodEnd,
		TimeEfficiency:       snapshot.TimeEfficiency,
		TaskEfficiency:       snapshot.TaskEfficiency,
		QuantityEfficiency:   snapshot.QuantityEfficiency,
		AwcPct:               snapshot.AwcPct,
		StandardHoursAllowed: snapshot.StandardHoursAllowed,
		ActualHours:          snapshot.ActualHours,
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// ComputeTeamAverage averages the already-persisted EfficiencyPeriod rows of a
// team for the same period, excluding members whose awc_pct exceeds 0.5.
// Returns a zeroed snapshot when the team is unset or nothing qualifies.
// Read-only: team averages are never persisted.
func (e *EfficiencyEngine) ComputeTeamAverage(ctx context.Context, team string, periodStart, periodEnd time.Time) (*EfficiencySnapshot, error) {
	zero := func(teamTag *string) *EfficiencySnapshot {
		return &EfficiencySnapshot{
			PeriodStart: periodStart.Format("2006-01-02"),
			PeriodEnd:   periodEnd.Format("2006-01-02"),
			Team:        teamTag,
		}
	}

	if team == "" {
		return zero(nil), nil
	}

	memberIds, err := e.store.TeamMemberIDs(ctx, team)
	if err != nil {
		return nil, err
	}
	if len(memberIds) == 0 {
		return zero(&team), nil
	}

	periods, err := e.store.EfficiencyPeriodsBelowAwc(ctx, memberIds, periodStart, periodEnd, 0.5)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return zero(&team), nil
	}

	n := float64(len(periods))
	var timeEff, taskEff, qtyEff, awc, stdHours, actualHours float64
	for _, p := range periods {
		timeEff += p.TimeEfficiency
		taskEff += p.TaskEfficiency
		qtyEff += p.QuantityEfficiency
		awc += p.AwcPct
		stdHours += p.StandardHoursAllowed
		actualHours += p.ActualHours
	}

	return &EfficiencySnapshot{
		PeriodStart:          periodStart.Format("2006-01-02"),
		PeriodEnd:            periodEnd.Format("2006-01-02"),
		TimeEfficiency:       utils.RoundTo(timeEff/n, 2),
		TaskEfficiency:       utils.RoundTo(taskEff/n, 2),
		QuantityEfficiency:   utils.RoundTo(qtyEff/n, 2),
		AwcPct:               utils.RoundTo(awc/n, 4),
		StandardHoursAllowed: utils.RoundTo(stdHours, 2),
		ActualHours:          utils.RoundTo(actualHours, 2),
		Team:                 &team,
	}, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
