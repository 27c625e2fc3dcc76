package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/utils"
	"gorm.io/gorm"
)

type Machine struct {
	ID          int       `gorm:"primary_key" json:"id"`
	MachineCode string    `gorm:"size:50;uniqueIndex;not null" json:"machine_code" binding:"required"`
	Description string    `gorm:"size:200" json:"description"`
	WorkCenter  string    `gorm:"size:50;index" json:"work_center"`
	CreatedBy   *int      `json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMachine struct {
	MachineCode string `json:"machine_code" binding:"required"`
	Description string `json:"description"`
	WorkCenter  string `json:"work_center"`
}

func CreateMachine(ctx context.Context, input *NewMachine) (*Machine, error) {
	if err := utils.ValidateUnique[Machine](ctx, "machine_code", input.MachineCode, 0); err != nil {
		return nil, err
	}

	machine := Machine{
		MachineCode: input.MachineCode,
		Description: input.Description,
		WorkCenter:  input.WorkCenter,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		machine.CreatedBy = &userId
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&machine).Error; err != nil {
		return nil, err
	}
	return &machine, nil
}

func UpdateMachine(ctx context.Context, id int, input *NewMachine) (*Machine, error) {
	if err := utils.ValidateUnique[Machine](ctx, "machine_code", input.MachineCode, id); err != nil {
		return nil, err
	}

	machine, err := GetMachine(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(machine).Updates(map[string]interface{}{
		"MachineCode": input.MachineCode,
		"Description": input.Description,
		"WorkCenter":  input.WorkCenter,
	}).Error
	if err != nil {
		return nil, err
	}
	return machine, nil
}

func DeleteMachine(ctx context.Context, id int) (*Machine, error) {
	machine, err := GetMachine(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&JobCard{}).Where("machine_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("machine has job cards")
	}

	if err := db.WithContext(ctx).Delete(machine).Error; err != nil {
		return nil, err
	}
	return machine, nil
}

func GetMachine(ctx context.Context, id int) (*Machine, error) {
	db := config.GetDB()
	var machine Machine
	if err := db.WithContext(ctx).First(&machine, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &machine, nil
}

func ListMachines(ctx context.Context, workCenter *string) ([]*Machine, error) {
	db := config.GetDB()
	var results []*Machine

	dbCtx := db.WithContext(ctx)
	if workCenter != nil && len(*workCenter) > 0 {
		dbCtx = dbCtx.Where("work_center = ?", *workCenter)
	}
	if err := dbCtx.Order("machine_code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
