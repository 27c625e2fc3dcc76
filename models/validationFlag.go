package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/utils"
	"gorm.io/gorm"
)

// ValidationFlag is created/deleted exclusively by the validation engine while
// unresolved. Once resolved by a supervisor it is immutable to the engine.
type ValidationFlag struct {
	ID         int       `gorm:"primary_key" json:"id"`
	JobCardId  int       `gorm:"index;not null" json:"job_card_id"`
	FlagType   FlagType  `gorm:"size:20;not null" json:"flag_type"`
	Details    string    `gorm:"type:text" json:"details"`
	Resolved   bool      `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedBy *int      `json:"resolved_by"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetValidationFlag(ctx context.Context, id int) (*ValidationFlag, error) {
	db := config.GetDB()
	var flag ValidationFlag
	if err := db.WithContext(ctx).First(&flag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &flag, nil
}

func ListUnresolvedFlags(ctx context.Context, flagType *string) ([]*ValidationFlag, error) {
	db := config.GetDB()
	var results []*ValidationFlag

	dbCtx := db.WithContext(ctx).Where("resolved = ?", false)
	if flagType != nil && len(*flagType) > 0 {
		dbCtx = dbCtx.Where("flag_type = ?", *flagType)
	}
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListFlagsForJobCard(ctx context.Context, jobCardId int) ([]*ValidationFlag, error) {
	db := config.GetDB()
	var results []*ValidationFlag
	if err := db.WithContext(ctx).Where("job_card_id = ?", jobCardId).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveValidationFlag marks a flag resolved. The engine's replace pass skips
// resolved flags from then on.
func ResolveValidationFlag(ctx context.Context, id int) (*ValidationFlag, error) {
	flag, err := GetValidationFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	if flag.Resolved {
		return nil, errors.New("flag already resolved")
	}

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, errors.New("user id is required")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(flag).Updates(map[string]interface{}{
		"Resolved":   true,
		"ResolvedBy": &userId,
	}).Error
	if err != nil {
		return nil, err
	}
	return flag, nil
}
