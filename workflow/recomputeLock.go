package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Advisory locks serialize writers per aggregate key across instances.
// NOTE: GET_LOCK is connection-scoped, so these must be called on the same
// *gorm.DB transaction that performs the write.

func acquireRecomputeLock(tx *gorm.DB, key string) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", key).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire recompute lock %s", key)
	}
	return nil
}

func releaseRecomputeLock(tx *gorm.DB, key string) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", key).Scan(&_ok).Error
}

func jobCardLockKey(jobCardId int) string {
	return fmt.Sprintf("jobcard:%d", jobCardId)
}

func efficiencyPeriodLockKey(employeeId int, start, end time.Time) string {
	return fmt.Sprintf("effperiod:%d:%s:%s", employeeId, start.Format("2006-01-02"), end.Format("2006-01-02"))
}
