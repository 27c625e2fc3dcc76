package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/utils"
	"gorm.io/gorm"
)

// JobCard is the core transaction record. The validation engine only reads it
// and annotates via flags; mutation happens here, before the engine runs.
type JobCard struct {
	ID                  int            `gorm:"primary_key" json:"id"`
	EmployeeId          *int           `gorm:"index" json:"employee_id"`
	SupervisorId        *int           `gorm:"index" json:"supervisor_id"`
	MachineId           *int           `gorm:"index:ix_jobcard_wo_machine" json:"machine_id"`
	WorkOrderId         *int           `gorm:"index:ix_jobcard_wo_machine" json:"work_order_id"`
	ManualMachineText   *string        `gorm:"size:100" json:"manual_machine_text"`
	ManualWorkOrderText *string        `gorm:"size:100" json:"manual_work_order_text"`
	ActivityCodeId      *int           `gorm:"index" json:"activity_code_id"`
	ActivityDesc        string         `gorm:"size:200" json:"activity_desc"`
	Qty                 float64        `gorm:"not null" json:"qty"`
	ActualHours         float64        `gorm:"not null" json:"actual_hours"`
	Status              JobCardStatus  `gorm:"size:2;not null" json:"status"`
	EntryDate           time.Time      `gorm:"type:date;index" json:"entry_date"`
	Source              SourceType     `gorm:"size:20;not null" json:"source"`
	Shift               *int           `json:"shift"`
	IsAwc               bool           `gorm:"not null;default:false" json:"is_awc"`
	ApprovalStatus      ApprovalStatus `gorm:"size:10;not null;default:PENDING" json:"approval_status"`
	SupervisorRemarks   *string        `gorm:"type:text" json:"supervisor_remarks"`
	ApprovedAt          *time.Time     `json:"approved_at"`
	ApprovedBy          *int           `json:"approved_by"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewJobCard struct {
	EmployeeId          *int    `json:"employee_id"`
	SupervisorId        *int    `json:"supervisor_id"`
	MachineId           *int    `json:"machine_id"`
	WorkOrderId         *int    `json:"work_order_id"`
	ManualMachineText   *string `json:"manual_machine_text"`
	ManualWorkOrderText *string `json:"manual_work_order_text"`
	ActivityCodeId      *int    `json:"activity_code_id"`
	ActivityDesc        string  `json:"activity_desc" binding:"required"`
	Qty                 float64 `json:"qty" binding:"gte=0"`
	ActualHours         float64 `json:"actual_hours" binding:"required,gt=0"`
	Status              string  `json:"status" binding:"required"`
	EntryDate           string  `json:"entry_date" binding:"required"`
	Source              string  `json:"source" binding:"required"`
	Shift               *int    `json:"shift"`
	IsAwc               bool    `json:"is_awc"`
}

// referential checks run here so the validation engine can assume they passed
func (input *NewJobCard) validate(ctx context.Context) error {
	if !IsValidJobCardStatus(input.Status) {
		return errors.New("status must be IC or C")
	}
	if !IsValidSource(input.Source) {
		return errors.New("invalid source")
	}
	if input.Shift != nil && (*input.Shift < 1 || *input.Shift > 3) {
		return errors.New("shift must be 1, 2 or 3")
	}

	if input.MachineId != nil {
		if err := utils.ValidateResourceId[Machine](ctx, *input.MachineId); err != nil {
			return errors.New("machine not found")
		}
	} else if !input.IsAwc {
		return errors.New("machine_id is required for non task-based job cards")
	}

	if input.WorkOrderId != nil {
		if err := utils.ValidateResourceId[WorkOrder](ctx, *input.WorkOrderId); err != nil {
			return errors.New("work order not found")
		}
	} else if !input.IsAwc {
		return errors.New("work_order_id is required for non task-based job cards")
	}

	if input.ActivityCodeId != nil {
		if err := utils.ValidateResourceId[ActivityCode](ctx, *input.ActivityCodeId); err != nil {
			return errors.New("activity code not found")
		}
	}
	if input.EmployeeId != nil {
		if err := utils.ValidateResourceId[Employee](ctx, *input.EmployeeId); err != nil {
			return errors.New("employee not found")
		}
	}
	if input.SupervisorId != nil {
		if err := utils.ValidateResourceId[Employee](ctx, *input.SupervisorId); err != nil {
			return errors.New("supervisor not found")
		}
	}
	return nil
}

func CreateJobCard(ctx context.Context, input *NewJobCard) (*JobCard, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	entryDate, err := time.Parse("2006-01-02", input.EntryDate)
	if err != nil {
		return nil, errors.New("entry_date must be YYYY-MM-DD")
	}

	jobCard := JobCard{
		EmployeeId:          input.EmployeeId,
		SupervisorId:        input.SupervisorId,
		MachineId:           input.MachineId,
		WorkOrderId:         input.WorkOrderId,
		ManualMachineText:   input.ManualMachineText,
		ManualWorkOrderText: input.ManualWorkOrderText,
		ActivityCodeId:      input.ActivityCodeId,
		ActivityDesc:        input.ActivityDesc,
		Qty:                 input.Qty,
		ActualHours:         input.ActualHours,
		Status:              JobCardStatus(input.Status),
		EntryDate:           entryDate,
		Source:              SourceType(input.Source),
		Shift:               input.Shift,
		IsAwc:               input.IsAwc,
		ApprovalStatus:      ApprovalStatusPending,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&jobCard).Error; err != nil {
		return nil, err
	}
	return &jobCard, nil
}

func UpdateJobCard(ctx context.Context, id int, input *NewJobCard) (*JobCard, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	jobCard, err := GetJobCard(ctx, id)
	if err != nil {
		return nil, err
	}

	entryDate, err := time.Parse("2006-01-02", input.EntryDate)
	if err != nil {
		return nil, errors.New("entry_date must be YYYY-MM-DD")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(jobCard).Updates(map[string]interface{}{
		"EmployeeId":          input.EmployeeId,
		"SupervisorId":        input.SupervisorId,
		"MachineId":           input.MachineId,
		"WorkOrderId":         input.WorkOrderId,
		"ManualMachineText":   input.ManualMachineText,
		"ManualWorkOrderText": input.ManualWorkOrderText,
		"ActivityCodeId":      input.ActivityCodeId,
		"ActivityDesc":        input.ActivityDesc,
		"Qty":                 input.Qty,
		"ActualHours":         input.ActualHours,
		"Status":              JobCardStatus(input.Status),
		"EntryDate":           entryDate,
		"Source":              SourceType(input.Source),
		"Shift":               input.Shift,
		"IsAwc":               input.IsAwc,
	}).Error
	if err != nil {
		return nil, err
	}
	return jobCard, nil
}

func DeleteJobCard(ctx context.Context, id int) (*JobCard, error) {
	jobCard, err := GetJobCard(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// flags go with the card, resolved or not
		if err := tx.Where("job_card_id = ?", id).Delete(&ValidationFlag{}).Error; err != nil {
			return err
		}
		return tx.Delete(jobCard).Error
	})
	if err != nil {
		return nil, err
	}
	return jobCard, nil
}

func GetJobCard(ctx context.Context, id int) (*JobCard, error) {
	db := config.GetDB()
	var jobCard JobCard
	if err := db.WithContext(ctx).First(&jobCard, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &jobCard, nil
}

type JobCardFilter struct {
	EmployeeId     *int
	WorkOrderId    *int
	ApprovalStatus *string
	DateFrom       *time.Time
	DateTo         *time.Time
}

func ListJobCards(ctx context.Context, filter JobCardFilter) ([]*JobCard, error) {
	db := config.GetDB()
	var results []*JobCard

	dbCtx := db.WithContext(ctx)
	if filter.EmployeeId != nil {
		dbCtx = dbCtx.Where("employee_id = ?", *filter.EmployeeId)
	}
	if filter.WorkOrderId != nil {
		dbCtx = dbCtx.Where("work_order_id = ?", *filter.WorkOrderId)
	}
	if filter.ApprovalStatus != nil && len(*filter.ApprovalStatus) > 0 {
		dbCtx = dbCtx.Where("approval_status = ?", *filter.ApprovalStatus)
	}
	if filter.DateFrom != nil {
		dbCtx = dbCtx.Where("entry_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		dbCtx = dbCtx.Where("entry_date <= ?", *filter.DateTo)
	}
	if err := dbCtx.Order("entry_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SetJobCardApproval records a supervisor decision on a card.
func SetJobCardApproval(ctx context.Context, id int, approved bool, remarks *string) (*JobCard, error) {
	jobCard, err := GetJobCard(ctx, id)
	if err != nil {
		return nil, err
	}

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, errors.New("user id is required")
	}

	approvalStatus := ApprovalStatusApproved
	if !approved {
		approvalStatus = ApprovalStatusRejected
	}
	now := time.Now().UTC()

	db := config.GetDB()
	err = db.WithContext(ctx).Model(jobCard).Updates(map[string]interface{}{
		"ApprovalStatus":    approvalStatus,
		"SupervisorRemarks": remarks,
		"ApprovedAt":        &now,
		"ApprovedBy":        &userId,
	}).Error
	if err != nil {
		return nil, err
	}
	return jobCard, nil
}
