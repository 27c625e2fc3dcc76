// seed-admin creates or updates the admin login (ec_number: ADMIN001).
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// Override credentials with SEED_ADMIN_EC / SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminEc       = "ADMIN001"
	defaultAdminPassword = "admin123"
	adminName            = "System Administrator"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ecNumber := os.Getenv("SEED_ADMIN_EC")
	if ecNumber == "" {
		ecNumber = defaultAdminEc
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.Employee
	err = db.WithContext(ctx).Where("ec_number = ?", ecNumber).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup employee: %v\n", err)
			os.Exit(1)
		}
		admin := models.Employee{
			EcNumber:       ecNumber,
			Name:           adminName,
			HashedPassword: string(hashed),
			Role:           models.RoleAdmin,
			JoinDate:       time.Now().UTC(),
			IsActive:       utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin %s (id=%d)\n", ecNumber, admin.ID)
		return
	}

	err = db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"HashedPassword": string(hashed),
		"Role":           models.RoleAdmin,
		"IsActive":       true,
	}).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("updated admin %s (id=%d)\n", ecNumber, existing.ID)
}
