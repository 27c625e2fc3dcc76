package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("efficiency-backend")

// RuleStatus distinguishes "nothing wrong" from "could not evaluate".
// A skipped rule emits no flags (fail-open): referential integrity is the
// caller's job, a missing reference mid-rule is not an error here.
type RuleStatus int

const (
	RuleClean RuleStatus = iota
	RuleMatched
	RuleSkipped
)

type RuleOutcome struct {
	Status RuleStatus
	Flags  []*models.ValidationFlag
}

// RuleFunc is a pure read-and-propose function: it reads through the store and
// proposes flags, it never writes.
type RuleFunc func(ctx context.Context, card *models.JobCard, store Store) (RuleOutcome, error)

type Rule struct {
	Name string
	Run  RuleFunc
}

func DefaultRules() []Rule {
	return []Rule{
		{Name: "msd_window", Run: msdWindowRule},
		{Name: "duplication", Run: duplicationRule},
		{Name: "awc", Run: awcRule},
		{Name: "split_candidate", Run: splitCandidateRule},
		{Name: "qty_mismatch", Run: qtyMismatchRule},
	}
}

// ValidationEngine evaluates a fixed set of rules against one job card and
// persists exactly the resulting flag set as the card's unresolved flags.
type ValidationEngine struct {
	store Store
	rules []Rule
}

func NewValidationEngine(store Store) *ValidationEngine {
	return &ValidationEngine{store: store, rules: DefaultRules()}
}

// NewValidationEngineWithRules lets callers (and tests) run a rule subset.
func NewValidationEngineWithRules(store Store, rules []Rule) *ValidationEngine {
	return &ValidationEngine{store: store, rules: rules}
}

// RunForCard evaluates every rule, then replaces the card's unresolved flags
// with the result in one transaction. Running it twice on unchanged data
// yields the same unresolved flag set (idempotent).
//
// Rules are read-only so they run concurrently; only the final delete+insert
// is serialized. Any rule error aborts the run with nothing committed.
//
// Split-candidate flags addressed to sibling cards are appended without
// clearing the siblings' prior flags; repeated runs over cards touching the
// same sibling can therefore accumulate duplicates on it. Known behavior,
// kept until supervisors rely on resolving them instead.
func (e *ValidationEngine) RunForCard(ctx context.Context, card *models.JobCard) ([]*models.ValidationFlag, error) {
	ctx, span := tracer.Start(ctx, "validation.RunForCard")
	defer span.End()

	outcomes := make([]RuleOutcome, len(e.rules))

	g, gctx := errgroup.WithContext(ctx)
	for i := range e.rules {
		i := i
		rule := e.rules[i]
		g.Go(func() error {
			outcome, err := rule.Run(gctx, card, e.store)
			if err != nil {
				return fmt.Errorf("rule %s: %w", rule.Name, err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger := config.GetLogger()
	flags := []*models.ValidationFlag{}
	for i, outcome := range outcomes {
		if outcome.Status == RuleSkipped {
			logger.WithFields(logrus.Fields{
				"rule":      e.rules[i].Name,
				"jobCardId": card.ID,
			}).Debug("rule skipped: missing reference")
			continue
		}
		flags = append(flags, outcome.Flags...)
	}

	if err := e.store.ReplaceUnresolvedFlags(ctx, card.ID, flags); err != nil {
		return nil, err
	}
	return flags, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// msdWindowRule flags entry dates outside the work order's payroll window:
// 25th of the month before msd_month through the 10th of msd_month, inclusive.
// Example: msd_month 2024-11 means the window is 2024-10-25 to 2024-11-10.
func msdWindowRule(ctx context.Context, card *models.JobCard, store Store) (RuleOutcome, error) {
	if card.WorkOrderId == nil {
		return RuleOutcome{Status: RuleSkipped}, nil
	}
	workOrder, err := store.WorkOrderByID(ctx, *card.WorkOrderId)
	if err != nil {
		return RuleOutcome{}, err
	}
	if workOrder == nil {
		return RuleOutcome{Status: RuleSkipped}, nil
	}

	// msd_month format is guaranteed by the work order boundary; a malformed
	// value is a caller contract violation and aborts the run
	msdDate, err := time.Parse("2006-01", workOrder.MsdMonth)
	if err != nil {
		return RuleOutcome{}, fmt.Errorf("invalid msd_month %q on work order %d: %w", workOrder.MsdMonth, workOrder.ID, err)
	}

	prevMonth := msdDate.AddDate(0, -1, 0)
	windowStart := time.Date(prevMonth.Year(), prevMonth.Month(), 25, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(msdDate.Year(), msdDate.Month(), 10, 0, 0, 0, 0, time.UTC)

	entryDate := dateOnly(card.EntryDate)
	if entryDate.Before(windowStart) || entryDate.After(windowEnd) {
		return RuleOutcome{Status: RuleMatched, Flags: []*models.ValidationFlag{{
			JobCardId: card.ID,
			FlagType:  models.FlagTypeOutsideMsd,
			Details: fmt.Sprintf("Entry date %s is outside MSD window %s to %s for month %s",
				entryDate.Format("2006-01-02"),
				windowStart.Format("2006-01-02"),
				windowEnd.Format("2006-01-02"),
				workOrder.MsdMonth),
		}}}, nil
	}
	return RuleOutcome{Status: RuleClean}, nil
}

// duplicationRule flags cards whose (machine, work order, activity) triple is
// repeated on another card within the same MSD month.
func duplicationRule(ctx context.Context, card *models.JobCard, store Store) (RuleOutcome, error) {
	if card.WorkOrderId == nil {
		return RuleOutcome{Status: RuleSkipped}, nil
	}
	workOrder, err := store.WorkOrderByID(ctx, *card.WorkOrderId)
	if err != nil {
		return RuleOutcome{}, err
	}
	if workOrder == nil {
		return RuleOutcome{Status: RuleSkipped}, nil
	}

	monthWorkOrderIds, err := store.WorkOrderIDsInMonth(ctx, workOrder.MsdMonth)
	if err != nil {
		return RuleOutcome{}, err
	}
	duplicates, err := store.CardsSharingTriple(ctx, card, monthWorkOrderIds)
	if err != nil {
		return RuleOutcome{}, err
	}
	if len(duplicates) == 0 {
		return RuleOutcome{Status: RuleClean}, nil
	}

	evidence := make([]string, 0, 3)
	for _, dup := range duplicates {
		if len(evidence) == 3 {
			break
		}
		evidence = append(evidence, fmt.Sprintf("JobCard ID %d (date: %s)", dup.ID, dateOnly(dup.EntryDate).Format("2006-01-02")))
	}
	evidenceStr := strings.Join(evidence, ", ")
	if len(duplicates) > 3 {
		evidenceStr += fmt.Sprintf(" and %d more", len(duplicates)-3)
	}

	return RuleOutcome{Status: RuleMatched, Flags: []*models.ValidationFlag{{
		JobCardId: card.ID,
		FlagType:  models.FlagTypeDuplication,
		Details: fmt.Sprintf("Found %d duplicate(s) in MSD month %s with same machine/WO/activity: %s",
			len(duplicates), workOrder.MsdMonth, evidenceStr),
	}}}, nil
}

// awcRule: no activity code means the hours cannot be standard-credited.
// Unconditional, no other field matters.
func awcRule(ctx context.Context, card *models.JobCard, store Store) (RuleOutcome, error) {
	if card.ActivityCodeId != nil {
		return RuleOutcome{Status: RuleClean}, nil
	}
	return RuleOutcome{Status: RuleMatched, Flags: []*models.ValidationFlag{{
		JobCardId: card.ID,
		FlagType:  models.FlagTypeAwc,
		Details:   fmt.Sprintf("AWC detected: Job card has %g hours but no activity_code_id assigned", card.ActualHours),
	}}}, nil
}

// splitCandidateRule: an Incomplete card whose work order + activity was
// Completed by someone else suggests the work was split. Both the current card
// and each completed sibling get flagged.
func splitCandidateRule(ctx context.Context, card *models.JobCard, store Store) (RuleOutcome, error) {
	if card.Status != models.JobCardStatusIncomplete {
		return RuleOutcome{Status: RuleClean}, nil
	}

	completedByOthers, err := store.CompletedCardsByOtherEmployees(ctx, card)
	if err != nil {
		return RuleOutcome{}, err
	}
	if len(completedByOthers) == 0 {
		return RuleOutcome{Status: RuleClean}, nil
	}

	otherIds := make([]string, 0, 3)
	for _, other := range completedByOthers {
		if len(otherIds) == 3 {
			break
		}
		otherIds = append(otherIds, fmt.Sprint(other.ID))
	}

	flags := []*models.ValidationFlag{{
		JobCardId: card.ID,
		FlagType:  models.FlagTypeSplitCandidate,
		Details: fmt.Sprintf("Status=IC but related job card(s) %s are Complete by different employee(s) - possible work split",
			strings.Join(otherIds, ", ")),
	}}
	for _, other := range completedByOthers {
		flags = append(flags, &models.ValidationFlag{
			JobCardId: other.ID,
			FlagType:  models.FlagTypeSplitCandidate,
			Details: fmt.Sprintf("Status=C but related job card %d is Incomplete by different employee - possible work split",
				card.ID),
		})
	}
	return RuleOutcome{Status: RuleMatched, Flags: flags}, nil
}

// qtyMismatchRule runs two independent checks: the card alone exceeding the
// planned quantity, and the work order's total exceeding plan by more than
// 10%. The second fires on every card of an over-quota work order.
func qtyMismatchRule(ctx context.Context, card *models.JobCard, store Store) (RuleOutcome, error) {
	if card.WorkOrderId == nil {
		return RuleOutcome{Status: RuleSkipped}, nil
	}
	workOrder, err := store.WorkOrderByID(ctx, *card.WorkOrderId)
	if err != nil {
		return RuleOutcome{}, err
	}
	if workOrder == nil {
		return RuleOutcome{Status: RuleSkipped}, nil
	}

	var flags []*models.ValidationFlag

	if card.Qty > workOrder.PlannedQty {
		flags = append(flags, &models.ValidationFlag{
			JobCardId: card.ID,
			FlagType:  models.FlagTypeQtyMismatch,
			Details: fmt.Sprintf("Job card quantity (%g) exceeds work order planned quantity (%g)",
				card.Qty, workOrder.PlannedQty),
		})
	}

	allCards, err := store.CardsForWorkOrder(ctx, *card.WorkOrderId)
	if err != nil {
		return RuleOutcome{}, err
	}
	var totalQty float64
	for _, jc := range allCards {
		totalQty += jc.Qty
	}
	tolerance := workOrder.PlannedQty * 1.1
	if totalQty > tolerance {
		flags = append(flags, &models.ValidationFlag{
			JobCardId: card.ID,
			FlagType:  models.FlagTypeQtyMismatch,
			Details: fmt.Sprintf("Total quantity across all job cards (%g) exceeds planned (%g) by more than 10%%",
				totalQty, workOrder.PlannedQty),
		})
	}

	if len(flags) == 0 {
		return RuleOutcome{Status: RuleClean}, nil
	}
	return RuleOutcome{Status: RuleMatched, Flags: flags}, nil
}
