package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "A"
	UserRoleAgency UserRole = "O"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Phone     string    `gorm:"size:30" json:"phone"`
	// Cached copies of the user travel through redis as JSON, so the hash
	// must survive the round trip or VerifyPassword breaks on cache hits.
	Password  string    `gorm:"size:255;not null" json:"password"`
	AgencyId  int       `gorm:"index;default:0" json:"agency_id"`
	Role      UserRole  `gorm:"type:enum('A','O');default:'O'" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Password string   `json:"password" binding:"required"`
	AgencyId int      `json:"agency_id"`
	Role     UserRole `json:"role"`
}

/*
caches:
	User:$username
*/

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{
		Username: strings.TrimSpace(input.Username),
		Name:     strings.TrimSpace(input.Name),
		Phone:    utils.NormalizePhone(input.Phone),
		Password: string(hashed),
		AgencyId: input.AgencyId,
		Role:     input.Role,
		IsActive: utils.NewTrue(),
	}
	if user.Role == "" {
		user.Role = UserRoleAgency
	}
	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" {
		if !utils.IsValidEmail(email) {
			return nil, errors.New("invalid email")
		}
		user.Email = &email
	}

	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername reads through the redis cache when available.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User

	exists, err := config.GetRedisObject("User:"+username, &user)
	if err == nil && exists {
		return &user, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	_ = config.SetRedisObject("User:"+username, user, time.Hour)
	return &user, nil
}

func (user *User) VerifyPassword(plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(plain))
}
