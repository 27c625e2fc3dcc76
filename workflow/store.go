package workflow

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/models"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// JobCardWithActivity is a job card left-joined to its activity code.
// Activity is nil for AWC cards (no code, or the code no longer exists).
type JobCardWithActivity struct {
	Card     *models.JobCard
	Activity *models.ActivityCode
}

// Store is the read/write surface the engines run against. The gorm
// implementation is the production one; tests substitute an in-memory fake.
type Store interface {
	// reads used by validation rules
	WorkOrderByID(ctx context.Context, id int) (*models.WorkOrder, error) // (nil, nil) when missing
	WorkOrderIDsInMonth(ctx context.Context, msdMonth string) ([]int, error)
	CardsSharingTriple(ctx context.Context, card *models.JobCard, workOrderIDs []int) ([]*models.JobCard, error)
	CompletedCardsByOtherEmployees(ctx context.Context, card *models.JobCard) ([]*models.JobCard, error)
	CardsForWorkOrder(ctx context.Context, workOrderId int) ([]*models.JobCard, error)

	// ReplaceUnresolvedFlags deletes the primary card's unresolved flags and
	// inserts the given set in one transaction. Flags addressed to other cards
	// (split-candidate siblings) are inserted as-is, without clearing theirs.
	ReplaceUnresolvedFlags(ctx context.Context, primaryCardId int, flags []*models.ValidationFlag) error

	// reads/writes used by the efficiency engine
	CardsWithActivityForEmployee(ctx context.Context, employeeId int, start, end time.Time) ([]JobCardWithActivity, error)
	UpsertEfficiencyPeriod(ctx context.Context, rec *models.EfficiencyPeriod) error
	TeamMemberIDs(ctx context.Context, team string) ([]int, error)
	EfficiencyPeriodsBelowAwc(ctx context.Context, employeeIds []int, start, end time.Time, maxAwc float64) ([]*models.EfficiencyPeriod, error)

	// reads used by the split service
	SplitCandidateCards(ctx context.Context, workOrderId int) ([]*models.JobCard, error)
	ActivityCodesByIDs(ctx context.Context, ids []int) (map[int]*models.ActivityCode, error)
}

type GormStore struct{}

func NewGormStore() *GormStore {
	return &GormStore{}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) WorkOrderByID(ctx context.Context, id int) (*models.WorkOrder, error) {
	db := config.GetDB()
	var workOrder models.WorkOrder
	err := db.WithContext(ctx).First(&workOrder, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &workOrder, nil
}

func (s *GormStore) WorkOrderIDsInMonth(ctx context.Context, msdMonth string) ([]int, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&models.WorkOrder{}).
		Where("msd_month = ?", msdMonth).Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// whereNullableInt matches NULL when the value is nil, like the engine's
// triple comparison requires (nil activity == nil activity).
func whereNullableInt(dbCtx *gorm.DB, column string, value *int) *gorm.DB {
	if value == nil {
		return dbCtx.Where(column + " IS NULL")
	}
	return dbCtx.Where(column+" = ?", *value)
}

func (s *GormStore) CardsSharingTriple(ctx context.Context, card *models.JobCard, workOrderIDs []int) ([]*models.JobCard, error) {
	if len(workOrderIDs) == 0 {
		return nil, nil
	}
	db := config.GetDB()
	var results []*models.JobCard

	dbCtx := db.WithContext(ctx).Model(&models.JobCard{}).
		Where("id != ?", card.ID).
		Where("work_order_id IN ?", workOrderIDs)
	dbCtx = whereNullableInt(dbCtx, "machine_id", card.MachineId)
	dbCtx = whereNullableInt(dbCtx, "work_order_id", card.WorkOrderId)
	dbCtx = whereNullableInt(dbCtx, "activity_code_id", card.ActivityCodeId)

	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GormStore) CompletedCardsByOtherEmployees(ctx context.Context, card *models.JobCard) ([]*models.JobCard, error) {
	db := config.GetDB()
	var results []*models.JobCard

	dbCtx := db.WithContext(ctx).Model(&models.JobCard{}).
		Where("id != ?", card.ID).
		Where("status = ?", models.JobCardStatusComplete)
	// an unassigned card counts every credited employee as "someone else"
	if card.EmployeeId == nil {
		dbCtx = dbCtx.Where("employee_id IS NOT NULL")
	} else {
		dbCtx = dbCtx.Where("employee_id IS NOT NULL AND employee_id != ?", *card.EmployeeId)
	}
	dbCtx = whereNullableInt(dbCtx, "work_order_id", card.WorkOrderId)
	dbCtx = whereNullableInt(dbCtx, "activity_code_id", card.ActivityCodeId)

	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GormStore) CardsForWorkOrder(ctx context.Context, workOrderId int) ([]*models.JobCard, error) {
	db := config.GetDB()
	var results []*models.JobCard
	err := db.WithContext(ctx).
		Where("work_order_id = ?", workOrderId).Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GormStore) ReplaceUnresolvedFlags(ctx context.Context, primaryCardId int, flags []*models.ValidationFlag) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockKey := jobCardLockKey(primaryCardId)
		if err := acquireRecomputeLock(tx, lockKey); err != nil {
			return err
		}
		defer releaseRecomputeLock(tx, lockKey)

		if err := tx.Where("job_card_id = ? AND resolved = ?", primaryCardId, false).
			Delete(&models.ValidationFlag{}).Error; err != nil {
			return err
		}
		if len(flags) == 0 {
			return nil
		}
		return tx.Create(&flags).Error
	})
}

func (s *GormStore) CardsWithActivityForEmployee(ctx context.Context, employeeId int, start, end time.Time) ([]JobCardWithActivity, error) {
	db := config.GetDB()

	var cards []*models.JobCard
	err := db.WithContext(ctx).
		Where("employee_id = ? AND entry_date >= ? AND entry_date <= ?", employeeId, start, end).
		Order("id").Find(&cards).Error
	if err != nil {
		return nil, err
	}

	var activityIds []int
	for _, card := range cards {
		if card.ActivityCodeId != nil {
			activityIds = append(activityIds, *card.ActivityCodeId)
		}
	}
	activities, err := s.ActivityCodesByIDs(ctx, activityIds)
	if err != nil {
		return nil, err
	}

	rows := make([]JobCardWithActivity, 0, len(cards))
	for _, card := range cards {
		row := JobCardWithActivity{Card: card}
		if card.ActivityCodeId != nil {
			row.Activity = activities[*card.ActivityCodeId]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *GormStore) UpsertEfficiencyPeriod(ctx context.Context, rec *models.EfficiencyPeriod) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockKey := efficiencyPeriodLockKey(rec.EmployeeId, rec.PeriodStart, rec.PeriodEnd)
		if err := acquireRecomputeLock(tx, lockKey); err != nil {
			return err
		}
		defer releaseRecomputeLock(tx, lockKey)

		var existing []*models.EfficiencyPeriod
		err := tx.Where("employee_id = ? AND period_start = ? AND period_end = ?",
			rec.EmployeeId, rec.PeriodStart, rec.PeriodEnd).
			Order("id").Find(&existing).Error
		if err != nil {
			return err
		}

		// rows that predate the unique constraint: keep the first, drop the rest
		if len(existing) > 1 {
			for _, dup := range existing[1:] {
				if err := tx.Delete(dup).Error; err != nil {
					return err
				}
			}
			existing = existing[:1]
		}

		if len(existing) == 1 {
			return tx.Model(existing[0]).Updates(map[string]interface{}{
				"TimeEfficiency":       rec.TimeEfficiency,
				"TaskEfficiency":       rec.TaskEfficiency,
				"QuantityEfficiency":   rec.QuantityEfficiency,
				"AwcPct":               rec.AwcPct,
				"StandardHoursAllowed": rec.StandardHoursAllowed,
				"ActualHours":          rec.ActualHours,
			}).Error
		}

		// a concurrent writer outside the advisory lock can still race the
		// unique index; fold the insert into an update on 1062
		if err := tx.Create(rec).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return tx.Model(&models.EfficiencyPeriod{}).
					Where("employee_id = ? AND period_start = ? AND period_end = ?",
						rec.EmployeeId, rec.PeriodStart, rec.PeriodEnd).
					Updates(map[string]interface{}{
						"TimeEfficiency":       rec.TimeEfficiency,
						"TaskEfficiency":       rec.TaskEfficiency,
						"QuantityEfficiency":   rec.QuantityEfficiency,
						"AwcPct":               rec.AwcPct,
						"StandardHoursAllowed": rec.StandardHoursAllowed,
						"ActualHours":          rec.ActualHours,
					}).Error
			}
			return err
		}
		return nil
	})
}

func (s *GormStore) TeamMemberIDs(ctx context.Context, team string) ([]int, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&models.Employee{}).
		Where("team = ?", team).Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormStore) EfficiencyPeriodsBelowAwc(ctx context.Context, employeeIds []int, start, end time.Time, maxAwc float64) ([]*models.EfficiencyPeriod, error) {
	if len(employeeIds) == 0 {
		return nil, nil
	}
	db := config.GetDB()
	var results []*models.EfficiencyPeriod
	err := db.WithContext(ctx).
		Where("employee_id IN ? AND period_start = ? AND period_end = ? AND awc_pct <= ?",
			employeeIds, start, end, maxAwc).
		Order("employee_id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GormStore) SplitCandidateCards(ctx context.Context, workOrderId int) ([]*models.JobCard, error) {
	db := config.GetDB()
	var results []*models.JobCard
	err := db.WithContext(ctx).Model(&models.JobCard{}).
		Distinct("job_cards.*").
		Joins("JOIN validation_flags ON validation_flags.job_card_id = job_cards.id").
		Where("job_cards.work_order_id = ?", workOrderId).
		Where("validation_flags.flag_type = ? AND validation_flags.resolved = ?", models.FlagTypeSplitCandidate, false).
		Order("job_cards.id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GormStore) ActivityCodesByIDs(ctx context.Context, ids []int) (map[int]*models.ActivityCode, error) {
	result := make(map[int]*models.ActivityCode)
	if len(ids) == 0 {
		return result, nil
	}
	db := config.GetDB()
	var activities []*models.ActivityCode
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&activities).Error; err != nil {
		return nil, err
	}
	for _, activity := range activities {
		result[activity.ID] = activity
	}
	return result, nil
}
