package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
)

type AuditLog struct {
	ID          int       `gorm:"primary_key" json:"id"`
	ActionType  string    `gorm:"size:50;index;not null" json:"action_type"`
	PerformedBy int       `gorm:"index;not null" json:"performed_by"`
	TargetId    *int      `json:"target_id"`
	Details     string    `gorm:"type:text" json:"details"`
	Timestamp   time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

// WriteAuditLog records a supervisor action. details is JSON-marshalled.
func WriteAuditLog(ctx context.Context, actionType string, performedBy int, targetId *int, details any) (*AuditLog, error) {
	detailsInByte, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}

	auditLog := AuditLog{
		ActionType:  actionType,
		PerformedBy: performedBy,
		TargetId:    targetId,
		Details:     string(detailsInByte),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&auditLog).Error; err != nil {
		return nil, err
	}
	return &auditLog, nil
}

func ListAuditLogs(ctx context.Context, actionType *string, limit int) ([]*AuditLog, error) {
	db := config.GetDB()
	var results []*AuditLog

	dbCtx := db.WithContext(ctx)
	if actionType != nil && len(*actionType) > 0 {
		dbCtx = dbCtx.Where("action_type = ?", *actionType)
	}
	if limit <= 0 {
		limit = 100
	}
	if err := dbCtx.Order("id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
