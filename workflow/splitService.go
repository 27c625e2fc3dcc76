package workflow

import (
	"context"
	"sort"

	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/utils"
)

// Allocation is an employee's share of a split work order. Returned in memory
// only, never persisted: every call recomputes from the current unresolved
// SPLIT_CANDIDATE flags.
type Allocation struct {
	EmployeeId  int     `json:"employee_id"`
	ActualHours float64 `json:"actual_hours"`
	CreditHours float64 `json:"credit_hours"`
	CreditPct   float64 `json:"credit_pct"`
}

type SplitService struct {
	store Store
}

func NewSplitService(store Store) *SplitService {
	return &SplitService{store: store}
}

// ComputeSplits distributes standard-hour credit for a work order among the
// employees whose cards carry unresolved SPLIT_CANDIDATE flags.
//
// Cards without an activity code cannot be standard-credited and are dropped.
// Per activity group, each card's credit is the group's standard hours scaled
// by its share of the group's actual hours; groups with no actual hours
// distribute nothing. credit_pct is the employee's share of actual hours
// across the whole work order, not per group.
func (s *SplitService) ComputeSplits(ctx context.Context, workOrderId int) ([]Allocation, error) {
	flaggedCards, err := s.store.SplitCandidateCards(ctx, workOrderId)
	if err != nil {
		return nil, err
	}
	if len(flaggedCards) == 0 {
		return []Allocation{}, nil
	}

	var activityIds []int
	groups := make(map[int][]*models.JobCard)
	for _, card := range flaggedCards {
		if card.ActivityCodeId == nil {
			continue
		}
		if _, seen := groups[*card.ActivityCodeId]; !seen {
			activityIds = append(activityIds, *card.ActivityCodeId)
		}
		groups[*card.ActivityCodeId] = append(groups[*card.ActivityCodeId], card)
	}

	activities, err := s.store.ActivityCodesByIDs(ctx, activityIds)
	if err != nil {
		return nil, err
	}

	employeeActualSum := make(map[int]float64)
	employeeCreditSum := make(map[int]float64)
	var employeeOrder []int

	for _, activityId := range activityIds {
		cards := groups[activityId]

		var totalActual float64
		for _, card := range cards {
			totalActual += card.ActualHours
		}
		if totalActual <= 0 {
			continue
		}

		stdPerUnit := 0.0
		if activity := activities[activityId]; activity != nil {
			stdPerUnit = utils.DereferencePtr(activity.StdHoursPerUnit)
		}
		var totalStd float64
		for _, card := range cards {
			totalStd += card.Qty * stdPerUnit
		}

		for _, card := range cards {
			if card.EmployeeId == nil {
				continue
			}
			empId := *card.EmployeeId
			if _, seen := employeeActualSum[empId]; !seen {
				employeeOrder = append(employeeOrder, empId)
			}
			employeeActualSum[empId] += card.ActualHours
			employeeCreditSum[empId] += totalStd * (card.ActualHours / totalActual)
		}
	}

	var grandTotalActual float64
	for _, actual := range employeeActualSum {
		grandTotalActual += actual
	}
	if grandTotalActual == 0 {
		grandTotalActual = 1.0
	}

	allocations := make([]Allocation, 0, len(employeeOrder))
	for _, empId := range employeeOrder {
		allocations = append(allocations, Allocation{
			EmployeeId:  empId,
			ActualHours: utils.RoundTo(employeeActualSum[empId], 4),
			CreditHours: utils.RoundTo(employeeCreditSum[empId], 4),
			CreditPct:   utils.RoundTo(employeeActualSum[empId]/grandTotalActual, 6),
		})
	}

	sort.SliceStable(allocations, func(i, j int) bool {
		return allocations[i].CreditHours > allocations[j].CreditHours
	})
	return allocations, nil
}
