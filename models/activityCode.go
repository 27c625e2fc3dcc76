package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/utils"
	"gorm.io/gorm"
)

// ActivityCode defines the work standard for an activity.
// StdHoursPerUnit / StdQtyPerHour may be absent; the engines treat absence as 0.
type ActivityCode struct {
	ID              int            `gorm:"primary_key" json:"id"`
	Code            string         `gorm:"size:50;uniqueIndex;not null" json:"code" binding:"required"`
	Description     string         `gorm:"size:200" json:"description"`
	StdHoursPerUnit *float64       `json:"std_hours_per_unit"`
	StdQtyPerHour   *float64       `json:"std_qty_per_hour"`
	EfficiencyType  EfficiencyType `gorm:"size:20;not null" json:"efficiency_type"`
	LastUpdated     time.Time      `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedBy       *int           `json:"created_by"`
}

type NewActivityCode struct {
	Code            string   `json:"code" binding:"required"`
	Description     string   `json:"description"`
	StdHoursPerUnit *float64 `json:"std_hours_per_unit"`
	StdQtyPerHour   *float64 `json:"std_qty_per_hour"`
	EfficiencyType  string   `json:"efficiency_type" binding:"required"`
}

func (input *NewActivityCode) validate(ctx context.Context, id int) error {
	if !IsValidEfficiencyType(input.EfficiencyType) {
		return errors.New("invalid efficiency type")
	}
	if input.StdHoursPerUnit != nil && *input.StdHoursPerUnit < 0 {
		return errors.New("std_hours_per_unit cannot be negative")
	}
	if input.StdQtyPerHour != nil && *input.StdQtyPerHour < 0 {
		return errors.New("std_qty_per_hour cannot be negative")
	}
	return utils.ValidateUnique[ActivityCode](ctx, "code", input.Code, id)
}

func CreateActivityCode(ctx context.Context, input *NewActivityCode) (*ActivityCode, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	activityCode := ActivityCode{
		Code:            input.Code,
		Description:     input.Description,
		StdHoursPerUnit: input.StdHoursPerUnit,
		StdQtyPerHour:   input.StdQtyPerHour,
		EfficiencyType:  EfficiencyType(input.EfficiencyType),
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		activityCode.CreatedBy = &userId
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&activityCode).Error; err != nil {
		return nil, err
	}
	invalidateActivityCodeCache()
	return &activityCode, nil
}

// the import service caches the code->id map; drop it on any mutation
func invalidateActivityCodeCache() {
	if err := config.RemoveRedisKey("importActivityCodeMap"); err != nil {
		config.LogError(config.GetLogger(), "models", "invalidateActivityCodeCache", "redis del failed", nil, err)
	}
}

func UpdateActivityCode(ctx context.Context, id int, input *NewActivityCode) (*ActivityCode, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	activityCode, err := GetActivityCode(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(activityCode).Updates(map[string]interface{}{
		"Code":            input.Code,
		"Description":     input.Description,
		"StdHoursPerUnit": input.StdHoursPerUnit,
		"StdQtyPerHour":   input.StdQtyPerHour,
		"EfficiencyType":  EfficiencyType(input.EfficiencyType),
	}).Error
	if err != nil {
		return nil, err
	}
	invalidateActivityCodeCache()
	return activityCode, nil
}

func DeleteActivityCode(ctx context.Context, id int) (*ActivityCode, error) {
	activityCode, err := GetActivityCode(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&JobCard{}).Where("activity_code_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("activity code has job cards")
	}

	if err := db.WithContext(ctx).Delete(activityCode).Error; err != nil {
		return nil, err
	}
	invalidateActivityCodeCache()
	return activityCode, nil
}

func GetActivityCode(ctx context.Context, id int) (*ActivityCode, error) {
	db := config.GetDB()
	var activityCode ActivityCode
	if err := db.WithContext(ctx).First(&activityCode, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &activityCode, nil
}

func ListActivityCodes(ctx context.Context, efficiencyType *string) ([]*ActivityCode, error) {
	db := config.GetDB()
	var results []*ActivityCode

	dbCtx := db.WithContext(ctx)
	if efficiencyType != nil && len(*efficiencyType) > 0 {
		dbCtx = dbCtx.Where("efficiency_type = ?", *efficiencyType)
	}
	if err := dbCtx.Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
