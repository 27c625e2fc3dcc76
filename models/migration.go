package models

import (
	"log"

	"github.com/mmdatafocus/efficiency_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Employee{}, &Machine{}, &ActivityCode{}, &WorkOrder{},
		&JobCard{}, &ValidationFlag{}, &EfficiencyPeriod{},
		&AuditLog{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
