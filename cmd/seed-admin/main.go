// seed-admin creates or updates the operations console user and the system
// agency that owns imported listings.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// Override the default credentials with SEED_ADMIN_USERNAME / SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "flat2studyAdmin"
	defaultAdminPassword = "Fl@t2studyAdmin"
	adminName            = "Flat2study Admin"
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

	agency, err := models.GetOrCreateSpacestAgency(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to provision import agency: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("import agency ready (id=%d)\n", agency.ID)

	username := os.Getenv("SEED_ADMIN_USERNAME")
	if username == "" {
		username = defaultAdminUsername
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: username,
			Name:     adminName,
			Password: string(hashed),
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
			AgencyId: agency.ID,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("admin user created (username=%s)\n", username)
		return
	}

	updates := map[string]any{
		"password":  string(hashed),
		"is_active": true,
		"role":      models.UserRoleAdmin,
		"agency_id": agency.ID,
	}
	if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("admin user updated (username=%s)\n", username)
}
