package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/mmdatafocus/efficiency_backend/models"
)

// NOTE: These tests are intentionally DB-free. The memStore mirrors the gorm
// store's query semantics (NULL-aware triple matching, unresolved-only flag
// replacement) so the engines can be exercised without MySQL.
//
// Full DB integration tests should run in an environment with MySQL available.

type memStore struct {
	mu         sync.Mutex
	workOrders map[int]*models.WorkOrder
	cards      map[int]*models.JobCard
	activities map[int]*models.ActivityCode
	employees  map[int]*models.Employee
	flags      []*models.ValidationFlag
	periods    []*models.EfficiencyPeriod
	nextFlagId int
}

func newMemStore() *memStore {
	return &memStore{
		workOrders: map[int]*models.WorkOrder{},
		cards:      map[int]*models.JobCard{},
		activities: map[int]*models.ActivityCode{},
		employees:  map[int]*models.Employee{},
		nextFlagId: 1,
	}
}

var _ Store = (*memStore)(nil)

func (m *memStore) addWorkOrder(wo *models.WorkOrder) { m.workOrders[wo.ID] = wo }
func (m *memStore) addCard(card *models.JobCard)      { m.cards[card.ID] = card }
func (m *memStore) addActivity(a *models.ActivityCode) {
	m.activities[a.ID] = a
}
func (m *memStore) addEmployee(e *models.Employee) { m.employees[e.ID] = e }

func (m *memStore) WorkOrderByID(ctx context.Context, id int) (*models.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workOrders[id], nil
}

func (m *memStore) WorkOrderIDsInMonth(ctx context.Context, msdMonth string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int
	for _, wo := range m.workOrders {
		if wo.MsdMonth == msdMonth {
			ids = append(ids, wo.ID)
		}
	}
	return ids, nil
}

func sameNullableInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memStore) CardsSharingTriple(ctx context.Context, card *models.JobCard, workOrderIDs []int) ([]*models.JobCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inMonth := make(map[int]bool, len(workOrderIDs))
	for _, id := range workOrderIDs {
		inMonth[id] = true
	}
	var out []*models.JobCard
	for _, other := range m.cards {
		if other.ID == card.ID {
			continue
		}
		if other.WorkOrderId == nil || !inMonth[*other.WorkOrderId] {
			continue
		}
		if sameNullableInt(other.MachineId, card.MachineId) &&
			sameNullableInt(other.WorkOrderId, card.WorkOrderId) &&
			sameNullableInt(other.ActivityCodeId, card.ActivityCodeId) {
			out = append(out, other)
		}
	}
	sortCardsById(out)
	return out, nil
}

func (m *memStore) CompletedCardsByOtherEmployees(ctx context.Context, card *models.JobCard) ([]*models.JobCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JobCard
	for _, other := range m.cards {
		if other.ID == card.ID || other.Status != models.JobCardStatusComplete {
			continue
		}
		if other.EmployeeId == nil {
			continue
		}
		if card.EmployeeId != nil && *other.EmployeeId == *card.EmployeeId {
			continue
		}
		if sameNullableInt(other.WorkOrderId, card.WorkOrderId) &&
			sameNullableInt(other.ActivityCodeId, card.ActivityCodeId) {
			out = append(out, other)
		}
	}
	sortCardsById(out)
	return out, nil
}

func (m *memStore) CardsForWorkOrder(ctx context.Context, workOrderId int) ([]*models.JobCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JobCard
	for _, card := range m.cards {
		if card.WorkOrderId != nil && *card.WorkOrderId == workOrderId {
			out = append(out, card)
		}
	}
	sortCardsById(out)
	return out, nil
}

func (m *memStore) ReplaceUnresolvedFlags(ctx context.Context, primaryCardId int, flags []*models.ValidationFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.flags[:0]
	for _, flag := range m.flags {
		if flag.JobCardId == primaryCardId && !flag.Resolved {
			continue
		}
		kept = append(kept, flag)
	}
	m.flags = kept
	for _, flag := range flags {
		stored := *flag
		stored.ID = m.nextFlagId
		m.nextFlagId++
		m.flags = append(m.flags, &stored)
	}
	return nil
}

func (m *memStore) CardsWithActivityForEmployee(ctx context.Context, employeeId int, start, end time.Time) ([]JobCardWithActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cards []*models.JobCard
	for _, card := range m.cards {
		if card.EmployeeId == nil || *card.EmployeeId != employeeId {
			continue
		}
		if card.EntryDate.Before(start) || card.EntryDate.After(end) {
			continue
		}
		cards = append(cards, card)
	}
	sortCardsById(cards)

	rows := make([]JobCardWithActivity, 0, len(cards))
	for _, card := range cards {
		row := JobCardWithActivity{Card: card}
		if card.ActivityCodeId != nil {
			row.Activity = m.activities[*card.ActivityCodeId]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *memStore) UpsertEfficiencyPeriod(ctx context.Context, rec *models.EfficiencyPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.periods {
		if existing.EmployeeId == rec.EmployeeId &&
			existing.PeriodStart.Equal(rec.PeriodStart) &&
			existing.PeriodEnd.Equal(rec.PeriodEnd) {
			updated := *rec
			updated.ID = existing.ID
			m.periods[i] = &updated
			return nil
		}
	}
	stored := *rec
	stored.ID = len(m.periods) + 1
	m.periods = append(m.periods, &stored)
	return nil
}

func (m *memStore) TeamMemberIDs(ctx context.Context, team string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int
	for _, employee := range m.employees {
		if employee.Team != nil && *employee.Team == team {
			ids = append(ids, employee.ID)
		}
	}
	return ids, nil
}

func (m *memStore) EfficiencyPeriodsBelowAwc(ctx context.Context, employeeIds []int, start, end time.Time, maxAwc float64) ([]*models.EfficiencyPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member := make(map[int]bool, len(employeeIds))
	for _, id := range employeeIds {
		member[id] = true
	}
	var out []*models.EfficiencyPeriod
	for _, period := range m.periods {
		if !member[period.EmployeeId] {
			continue
		}
		if !period.PeriodStart.Equal(start) || !period.PeriodEnd.Equal(end) {
			continue
		}
		if period.AwcPct > maxAwc {
			continue
		}
		out = append(out, period)
	}
	return out, nil
}

func (m *memStore) SplitCandidateCards(ctx context.Context, workOrderId int) ([]*models.JobCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	flagged := make(map[int]bool)
	for _, flag := range m.flags {
		if flag.FlagType == models.FlagTypeSplitCandidate && !flag.Resolved {
			flagged[flag.JobCardId] = true
		}
	}
	var out []*models.JobCard
	for _, card := range m.cards {
		if !flagged[card.ID] {
			continue
		}
		if card.WorkOrderId != nil && *card.WorkOrderId == workOrderId {
			out = append(out, card)
		}
	}
	sortCardsById(out)
	return out, nil
}

func (m *memStore) ActivityCodesByIDs(ctx context.Context, ids []int) (map[int]*models.ActivityCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]*models.ActivityCode)
	for _, id := range ids {
		if activity, ok := m.activities[id]; ok {
			out[id] = activity
		}
	}
	return out, nil
}

func sortCardsById(cards []*models.JobCard) {
	for i := 1; i < len(cards); i++ {
		for j := i; j > 0 && cards[j-1].ID > cards[j].ID; j-- {
			cards[j-1], cards[j] = cards[j], cards[j-1]
		}
	}
}

// flag accessors used by tests

func (m *memStore) unresolvedFlagsFor(cardId int) []*models.ValidationFlag {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ValidationFlag
	for _, flag := range m.flags {
		if flag.JobCardId == cardId && !flag.Resolved {
			out = append(out, flag)
		}
	}
	return out
}

func (m *memStore) addFlag(flag *models.ValidationFlag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *flag
	stored.ID = m.nextFlagId
	m.nextFlagId++
	m.flags = append(m.flags, &stored)
}

func (m *memStore) periodFor(employeeId int) *models.EfficiencyPeriod {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, period := range m.periods {
		if period.EmployeeId == employeeId {
			return period
		}
	}
	return nil
}

func date(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
