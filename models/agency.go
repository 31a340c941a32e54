package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const (
	// SpacestAgencyEmail is the well-known identifying field of the system
	// agency that owns all Spacest-imported listings. The unique constraint
	// on email is what makes get-or-create idempotent under races.
	SpacestAgencyEmail = "imports+spacest@flat2study.com"
	SpacestAgencyName  = "Spacest Imports"
)

type Agency struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100;not null;unique" json:"email" binding:"required"`
	Phone     string    `gorm:"size:30" json:"phone"`
	Website   string    `gorm:"size:255" json:"website"`
	IsSystem  *bool     `gorm:"not null;default:false" json:"is_system"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAgency struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
}

func CreateAgency(ctx context.Context, input *NewAgency) (*Agency, error) {
	db := config.GetDB()

	agency := Agency{
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:    utils.NormalizePhone(input.Phone),
		Website:  strings.TrimSpace(input.Website),
		IsSystem: utils.NewFalse(),
	}
	if !utils.IsValidEmail(agency.Email) {
		return nil, errors.New("invalid agency email")
	}
	if err := db.WithContext(ctx).Create(&agency).Error; err != nil {
		return nil, err
	}
	return &agency, nil
}

func GetAgencyById(ctx context.Context, id int) (*Agency, error) {
	db := config.GetDB()
	var agency Agency
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&agency).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &agency, nil
}

func findAgencyByEmail(ctx context.Context, db *gorm.DB, email string) (*Agency, error) {
	var agency Agency
	err := db.WithContext(ctx).Where("email = ?", email).Take(&agency).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agency, nil
}

// FindSpacestAgency returns the system agency owning imported listings, or
// nil when it has not been provisioned.
func FindSpacestAgency(ctx context.Context) (*Agency, error) {
	return findAgencyByEmail(ctx, config.GetDB(), SpacestAgencyEmail)
}

// GetOrCreateSpacestAgency resolves the system agency owning imported
// listings, creating it on first use. A redis lock narrows the check-then-
// insert window; the unique email constraint closes it, and a concurrent
// creator's duplicate-key error is resolved by re-reading.
func GetOrCreateSpacestAgency(ctx context.Context) (*Agency, error) {
	db := config.GetDB()

	agency, err := findAgencyByEmail(ctx, db, SpacestAgencyEmail)
	if err != nil || agency != nil {
		return agency, err
	}

	// Redis lock is a best-effort optimization; correctness comes from the
	// unique constraint below.
	if locker := config.GetRedisLock(); locker != nil {
		lock, lockErr := locker.Obtain(ctx, "lock:agency:spacest", 10*time.Second, nil)
		if lockErr == nil {
			defer lock.Release(context.Background())
		}
	}

	// Re-check after the lock: another instance may have created it.
	agency, err = findAgencyByEmail(ctx, db, SpacestAgencyEmail)
	if err != nil || agency != nil {
		return agency, err
	}

	created := Agency{
		Name:     SpacestAgencyName,
		Email:    SpacestAgencyEmail,
		IsSystem: utils.NewTrue(),
	}
	if createErr := db.WithContext(ctx).Create(&created).Error; createErr != nil {
		// Duplicate key means we lost the race and the row exists now.
		var mysqlErr *mysql.MySQLError
		if errors.As(createErr, &mysqlErr) && mysqlErr.Number == 1062 {
			return findAgencyByEmail(ctx, db, SpacestAgencyEmail)
		}
		return nil, createErr
	}
	return &created, nil
}
