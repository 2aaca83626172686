package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
)

type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"-"`
	Username    string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email       *string    `gorm:"size:254;uniqueIndex" json:"email"`
	FirstName   string     `gorm:"size:150" json:"first_name"`
	LastName    string     `gorm:"size:150" json:"last_name"`
	Bio         string     `gorm:"type:text" json:"bio"`
	Role        authz.Role `gorm:"size:20;not null;check:chk_users_role,role IN ('', 'user', 'moderator', 'admin')" json:"role"`
	IsSuperuser bool       `gorm:"not null" json:"-"`

	ConfirmationCodeHash  string     `gorm:"size:255" json:"-"`
	ConfirmationExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID, err = uuid.NewV7()
	}
	return
}

// Principal is the authorization view of the user.
func (u *User) Principal() authz.Principal {
	return authz.Principal{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Superuser: u.IsSuperuser,
	}
}

// EmailValue returns the email or "" when unset.
func (u *User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
