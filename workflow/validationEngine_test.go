package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/utils"
)

func flagTypes(flags []*models.ValidationFlag) []string {
	out := make([]string, 0, len(flags))
	for _, flag := range flags {
		out = append(out, string(flag.FlagType))
	}
	return out
}

func hasFlagType(flags []*models.ValidationFlag, ft models.FlagType) bool {
	for _, flag := range flags {
		if flag.FlagType == ft {
			return true
		}
	}
	return false
}

func baseCard(id int) *models.JobCard {
	return &models.JobCard{
		ID:             id,
		EmployeeId:     utils.NewInt(1),
		MachineId:      utils.NewInt(1),
		WorkOrderId:    utils.NewInt(1),
		ActivityCodeId: utils.NewInt(1),
		Qty:            5,
		ActualHours:    4,
		Status:         models.JobCardStatusComplete,
		EntryDate:      date(2024, time.November, 1),
	}
}

func storeWithNovemberOrder() *memStore {
	store := newMemStore()
	store.addWorkOrder(&models.WorkOrder{ID: 1, WoNumber: "WO-1", MachineId: 1, PlannedQty: 100, MsdMonth: "2024-11"})
	return store
}

func TestMsdWindowBoundaries(t *testing.T) {
	// msd_month 2024-11 gives the window 2024-10-25 .. 2024-11-10, inclusive
	cases := []struct {
		entryDate time.Time
		flagged   bool
	}{
		{date(2024, time.October, 24), true},
		{date(2024, time.October, 25), false},
		{date(2024, time.November, 10), false},
		{date(2024, time.November, 11), true},
	}

	for _, tc := range cases {
		store := storeWithNovemberOrder()
		card := baseCard(10)
		card.EntryDate = tc.entryDate
		store.addCard(card)

		engine := NewValidationEngineWithRules(store, []Rule{{Name: "msd_window", Run: msdWindowRule}})
		flags, err := engine.RunForCard(context.Background(), card)
		if err != nil {
			t.Fatalf("entry %s: unexpected error: %v", tc.entryDate.Format("2006-01-02"), err)
		}
		if got := hasFlagType(flags, models.FlagTypeOutsideMsd); got != tc.flagged {
			t.Fatalf("entry %s: OUTSIDE_MSD flagged=%v, want %v", tc.entryDate.Format("2006-01-02"), got, tc.flagged)
		}
	}
}

func TestMsdWindowMissingWorkOrderSkips(t *testing.T) {
	store := newMemStore()
	card := baseCard(10)
	*card.WorkOrderId = 99 // nothing there
	store.addCard(card)

	engine := NewValidationEngine(store)
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// rules depending on the work order skip; AWC still evaluates
	for _, flag := range flags {
		if flag.FlagType == models.FlagTypeOutsideMsd || flag.FlagType == models.FlagTypeQtyMismatch || flag.FlagType == models.FlagTypeDuplication {
			t.Fatalf("rule should have skipped on missing work order, got %s", flag.FlagType)
		}
	}
}

func TestMsdWindowMalformedMonthAborts(t *testing.T) {
	store := newMemStore()
	store.addWorkOrder(&models.WorkOrder{ID: 1, WoNumber: "WO-1", MachineId: 1, PlannedQty: 100, MsdMonth: "garbage"})
	card := baseCard(10)
	store.addCard(card)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "msd_window", Run: msdWindowRule}})
	if _, err := engine.RunForCard(context.Background(), card); err == nil {
		t.Fatal("expected error for malformed msd_month")
	}
}

func TestDuplicationDetectsSharedTriple(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	dup := baseCard(11)
	dup.EmployeeId = utils.NewInt(2)
	store.addCard(card)
	store.addCard(dup)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "duplication", Run: duplicationRule}})
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 1 || flags[0].FlagType != models.FlagTypeDuplication {
		t.Fatalf("expected one DUPLICATION flag, got %v", flagTypes(flags))
	}
	if !strings.Contains(flags[0].Details, "JobCard ID 11") {
		t.Fatalf("details should name the duplicate card: %s", flags[0].Details)
	}
	if !strings.Contains(flags[0].Details, "Found 1 duplicate(s) in MSD month 2024-11") {
		t.Fatalf("unexpected details: %s", flags[0].Details)
	}
}

func TestDuplicationDifferentActivityIsClean(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	other := baseCard(11)
	other.ActivityCodeId = utils.NewInt(2)
	store.addCard(card)
	store.addCard(other)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "duplication", Run: duplicationRule}})
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 0 {
		t.Fatalf("expected no flags, got %v", flagTypes(flags))
	}
}

func TestDuplicationEvidenceCapsAtThree(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	store.addCard(card)
	for id := 11; id <= 15; id++ {
		dup := baseCard(id)
		store.addCard(dup)
	}

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "duplication", Run: duplicationRule}})
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("expected one flag, got %d", len(flags))
	}
	if !strings.Contains(flags[0].Details, "and 2 more") {
		t.Fatalf("expected overflow note in details: %s", flags[0].Details)
	}
}

func TestAwcFiresWithoutActivityCode(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	card.ActivityCodeId = nil
	store.addCard(card)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "awc", Run: awcRule}})
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 1 || flags[0].FlagType != models.FlagTypeAwc {
		t.Fatalf("expected one AWC flag, got %v", flagTypes(flags))
	}
	if !strings.Contains(flags[0].Details, "4 hours") {
		t.Fatalf("details should carry the hours: %s", flags[0].Details)
	}
}

func TestQtyMismatchCardExceedsPlanned(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	card.Qty = 150 // planned 100
	store.addCard(card)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "qty_mismatch", Run: qtyMismatchRule}})
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the single card also pushes the total past the 10% tolerance
	if len(flags) != 2 {
		t.Fatalf("expected both checks to fire, got %v", flagTypes(flags))
	}
}

func TestQtyMismatchTotalWithinTolerance(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	card.Qty = 60
	other := baseCard(11)
	other.Qty = 49 // total 109 <= 110
	store.addCard(card)
	store.addCard(other)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "qty_mismatch", Run: qtyMismatchRule}})
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 0 {
		t.Fatalf("expected no flags within tolerance, got %v", flagTypes(flags))
	}
}

func TestQtyMismatchTotalBeyondTolerance(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	card.Qty = 60
	other := baseCard(11)
	other.Qty = 51 // total 111 > 110
	store.addCard(card)
	store.addCard(other)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "qty_mismatch", Run: qtyMismatchRule}})
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 1 || !strings.Contains(flags[0].Details, "by more than 10%") {
		t.Fatalf("expected the total-quantity flag, got %v", flagTypes(flags))
	}
}

func TestSplitCandidateFlagsBothSides(t *testing.T) {
	store := storeWithNovemberOrder()
	incomplete := baseCard(10)
	incomplete.Status = models.JobCardStatusIncomplete
	completed := baseCard(11)
	completed.EmployeeId = utils.NewInt(2)
	store.addCard(incomplete)
	store.addCard(completed)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "split_candidate", Run: splitCandidateRule}})
	flags, err := engine.RunForCard(context.Background(), incomplete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("expected primary + sibling flags, got %v", flagTypes(flags))
	}
	if flags[0].JobCardId != 10 || !strings.Contains(flags[0].Details, "Status=IC") {
		t.Fatalf("primary flag wrong: %+v", flags[0])
	}
	if flags[1].JobCardId != 11 || !strings.Contains(flags[1].Details, "Status=C") {
		t.Fatalf("sibling flag wrong: %+v", flags[1])
	}
}

func TestSplitCandidateUnassignedCardMatchesAnyEmployee(t *testing.T) {
	store := storeWithNovemberOrder()
	incomplete := baseCard(10)
	incomplete.Status = models.JobCardStatusIncomplete
	incomplete.EmployeeId = nil
	completed := baseCard(11)
	completed.EmployeeId = utils.NewInt(2)
	store.addCard(incomplete)
	store.addCard(completed)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "split_candidate", Run: splitCandidateRule}})
	flags, err := engine.RunForCard(context.Background(), incomplete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("unassigned incomplete card must flag every completed sibling, got %v", flagTypes(flags))
	}
	if flags[0].JobCardId != 10 || flags[1].JobCardId != 11 {
		t.Fatalf("flags on wrong cards: %+v", flags)
	}
}

func TestSplitCandidateSameEmployeeIsClean(t *testing.T) {
	store := storeWithNovemberOrder()
	incomplete := baseCard(10)
	incomplete.Status = models.JobCardStatusIncomplete
	completed := baseCard(11) // same employee
	store.addCard(incomplete)
	store.addCard(completed)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "split_candidate", Run: splitCandidateRule}})
	flags, err := engine.RunForCard(context.Background(), incomplete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 0 {
		t.Fatalf("same employee must not trigger a split, got %v", flagTypes(flags))
	}
}

func TestRunForCard_IdempotentOnPrimary(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	card.ActivityCodeId = nil // AWC on every run
	store.addCard(card)

	engine := NewValidationEngine(store)
	for i := 0; i < 3; i++ {
		if _, err := engine.RunForCard(context.Background(), card); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	flags := store.unresolvedFlagsFor(10)
	if len(flags) != 1 {
		t.Fatalf("primary card flags must not accumulate: got %d", len(flags))
	}
}

func TestRunForCard_ResolvedFlagsSurviveRerun(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	store.addCard(card)
	store.addFlag(&models.ValidationFlag{JobCardId: 10, FlagType: models.FlagTypeAwc, Details: "old", Resolved: true})

	engine := NewValidationEngine(store)
	if _, err := engine.RunForCard(context.Background(), card); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	found := false
	for _, flag := range store.flags {
		if flag.JobCardId == 10 && flag.Resolved {
			found = true
		}
	}
	if !found {
		t.Fatal("resolved flag was deleted by the engine")
	}
}

// Sibling SPLIT_CANDIDATE flags are appended without clearing the sibling's
// previous ones, so re-running the primary card stacks duplicates on the
// sibling. This pins the current behavior.
func TestRunForCard_SiblingFlagsAccumulate(t *testing.T) {
	store := storeWithNovemberOrder()
	incomplete := baseCard(10)
	incomplete.Status = models.JobCardStatusIncomplete
	completed := baseCard(11)
	completed.EmployeeId = utils.NewInt(2)
	store.addCard(incomplete)
	store.addCard(completed)

	engine := NewValidationEngineWithRules(store, []Rule{{Name: "split_candidate", Run: splitCandidateRule}})
	for i := 0; i < 2; i++ {
		if _, err := engine.RunForCard(context.Background(), incomplete); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if got := len(store.unresolvedFlagsFor(10)); got != 1 {
		t.Fatalf("primary flags should replace, got %d", got)
	}
	if got := len(store.unresolvedFlagsFor(11)); got != 2 {
		t.Fatalf("sibling flags accumulate across runs, got %d", got)
	}
}

func TestRunForCard_AllRulesCombine(t *testing.T) {
	store := storeWithNovemberOrder()
	card := baseCard(10)
	card.ActivityCodeId = nil
	card.EntryDate = date(2024, time.December, 1) // outside window
	card.Qty = 150
	store.addCard(card)

	engine := NewValidationEngine(store)
	flags, err := engine.RunForCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []models.FlagType{models.FlagTypeOutsideMsd, models.FlagTypeAwc, models.FlagTypeQtyMismatch} {
		if !hasFlagType(flags, want) {
			t.Fatalf("missing %s in %v", want, flagTypes(flags))
		}
	}
	if hasFlagType(flags, models.FlagTypeDuplication) || hasFlagType(flags, models.FlagTypeSplitCandidate) {
		t.Fatalf("unexpected flags: %v", flagTypes(flags))
	}
}
