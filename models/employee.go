package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/utils"
	"gorm.io/gorm"
)

// Employee master for efficiency tracking. EC number is the login identity.
type Employee struct {
	ID             int       `gorm:"primary_key" json:"id"`
	EcNumber       string    `gorm:"size:20;uniqueIndex;not null" json:"ec_number" binding:"required"`
	Name           string    `gorm:"size:100;not null" json:"name" binding:"required"`
	HashedPassword string    `gorm:"size:100;not null" json:"-"`
	Role           RoleType  `gorm:"size:20;not null" json:"role"`
	Team           *string   `gorm:"size:50;index" json:"team"`
	JoinDate       time.Time `gorm:"type:date" json:"join_date"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedBy      *int      `json:"created_by"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEmployee struct {
	EcNumber string  `json:"ec_number" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Password string  `json:"password" binding:"required,min=6"`
	Role     string  `json:"role" binding:"required"`
	Team     *string `json:"team"`
	JoinDate string  `json:"join_date" binding:"required"`
}

func (input *NewEmployee) validate(ctx context.Context, id int) error {
	if !IsValidRole(input.Role) {
		return errors.New("invalid role")
	}
	if err := utils.ValidateUnique[Employee](ctx, "ec_number", input.EcNumber, id); err != nil {
		return err
	}
	return nil
}

func CreateEmployee(ctx context.Context, input *NewEmployee) (*Employee, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	joinDate, err := time.Parse("2006-01-02", input.JoinDate)
	if err != nil {
		return nil, errors.New("join_date must be YYYY-MM-DD")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	employee := Employee{
		EcNumber:       input.EcNumber,
		Name:           input.Name,
		HashedPassword: string(hashed),
		Role:           RoleType(input.Role),
		Team:           input.Team,
		JoinDate:       joinDate,
		IsActive:       utils.NewTrue(),
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		employee.CreatedBy = &userId
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

func UpdateEmployee(ctx context.Context, id int, input *NewEmployee) (*Employee, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	employee, err := GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	joinDate, err := time.Parse("2006-01-02", input.JoinDate)
	if err != nil {
		return nil, errors.New("join_date must be YYYY-MM-DD")
	}

	updates := map[string]interface{}{
		"EcNumber": input.EcNumber,
		"Name":     input.Name,
		"Role":     RoleType(input.Role),
		"Team":     input.Team,
		"JoinDate": joinDate,
	}
	if input.Password != "" {
		hashed, err := utils.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		updates["HashedPassword"] = string(hashed)
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(employee).Updates(updates).Error; err != nil {
		return nil, err
	}
	return employee, nil
}

func DeleteEmployee(ctx context.Context, id int) (*Employee, error) {
	employee, err := GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()

	// employees with job cards are deactivated, not deleted
	var count int64
	if err := db.WithContext(ctx).Model(&JobCard{}).Where("employee_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		if err := db.WithContext(ctx).Model(employee).Update("IsActive", false).Error; err != nil {
			return nil, err
		}
		return employee, nil
	}

	if err := db.WithContext(ctx).Delete(employee).Error; err != nil {
		return nil, err
	}
	return employee, nil
}

func GetEmployee(ctx context.Context, id int) (*Employee, error) {
	db := config.GetDB()
	var employee Employee
	if err := db.WithContext(ctx).First(&employee, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &employee, nil
}

func GetEmployeeByEcNumber(ctx context.Context, ecNumber string) (*Employee, error) {
	db := config.GetDB()
	var employee Employee
	if err := db.WithContext(ctx).Where("ec_number = ?", ecNumber).First(&employee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &employee, nil
}

func ListEmployees(ctx context.Context, team *string, role *string) ([]*Employee, error) {
	db := config.GetDB()
	var results []*Employee

	dbCtx := db.WithContext(ctx)
	if team != nil && len(*team) > 0 {
		dbCtx = dbCtx.Where("team = ?", *team)
	}
	if role != nil && len(*role) > 0 {
		dbCtx = dbCtx.Where("role = ?", *role)
	}
	if err := dbCtx.Order("ec_number").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
