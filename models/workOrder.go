package models

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/utils"
	"gorm.io/gorm"
)

var msdMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// WorkOrder master. MsdMonth ("YYYY-MM") names the payroll window the
// validation engine checks entry dates against.
type WorkOrder struct {
	ID         int       `gorm:"primary_key" json:"id"`
	WoNumber   string    `gorm:"size:50;uniqueIndex;not null" json:"wo_number" binding:"required"`
	MachineId  int       `gorm:"index;not null" json:"machine_id"`
	PlannedQty float64   `gorm:"not null" json:"planned_qty"`
	MsdMonth   string    `gorm:"size:7;index;not null" json:"msd_month"`
	CreatedBy  *int      `json:"created_by"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWorkOrder struct {
	WoNumber   string  `json:"wo_number" binding:"required"`
	MachineId  int     `json:"machine_id" binding:"required"`
	PlannedQty float64 `json:"planned_qty" binding:"required,gt=0"`
	MsdMonth   string  `json:"msd_month" binding:"required"`
}

func (input *NewWorkOrder) validate(ctx context.Context, id int) error {
	// the engines never re-validate this format; enforce it at the boundary
	if !msdMonthPattern.MatchString(input.MsdMonth) {
		return errors.New("msd_month must be YYYY-MM")
	}
	if err := utils.ValidateResourceId[Machine](ctx, input.MachineId); err != nil {
		return errors.New("machine not found")
	}
	return utils.ValidateUnique[WorkOrder](ctx, "wo_number", input.WoNumber, id)
}

func CreateWorkOrder(ctx context.Context, input *NewWorkOrder) (*WorkOrder, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	workOrder := WorkOrder{
		WoNumber:   input.WoNumber,
		MachineId:  input.MachineId,
		PlannedQty: input.PlannedQty,
		MsdMonth:   input.MsdMonth,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		workOrder.CreatedBy = &userId
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&workOrder).Error; err != nil {
		return nil, err
	}
	return &workOrder, nil
}

func UpdateWorkOrder(ctx context.Context, id int, input *NewWorkOrder) (*WorkOrder, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	workOrder, err := GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(workOrder).Updates(map[string]interface{}{
		"WoNumber":   input.WoNumber,
		"MachineId":  input.MachineId,
		"PlannedQty": input.PlannedQty,
		"MsdMonth":   input.MsdMonth,
	}).Error
	if err != nil {
		return nil, err
	}
	return workOrder, nil
}

func DeleteWorkOrder(ctx context.Context, id int) (*WorkOrder, error) {
	workOrder, err := GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&JobCard{}).Where("work_order_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("work order has job cards")
	}

	if err := db.WithContext(ctx).Delete(workOrder).Error; err != nil {
		return nil, err
	}
	return workOrder, nil
}

func GetWorkOrder(ctx context.Context, id int) (*WorkOrder, error) {
	db := config.GetDB()
	var workOrder WorkOrder
	if err := db.WithContext(ctx).First(&workOrder, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &workOrder, nil
}

func ListWorkOrders(ctx context.Context, msdMonth *string, machineId *int) ([]*WorkOrder, error) {
	db := config.GetDB()
	var results []*WorkOrder

	dbCtx := db.WithContext(ctx)
	if msdMonth != nil && len(*msdMonth) > 0 {
		dbCtx = dbCtx.Where("msd_month = ?", *msdMonth)
	}
	if machineId != nil && *machineId > 0 {
		dbCtx = dbCtx.Where("machine_id = ?", *machineId)
	}
	if err := dbCtx.Order("wo_number").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
