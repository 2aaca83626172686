package bootstrap

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/logging"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Category{},
		&entity.Genre{},
		&entity.Title{},
		&entity.Review{},
		&entity.Comment{},
	)
}

// SeedSuperuser creates the bootstrap superuser if it does not exist yet.
// The account signs in through the regular confirmation-code flow.
func SeedSuperuser(db *gorm.DB, username, email string) error {
	if username == "" {
		return nil
	}

	var existing entity.User
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		logging.Info().Str("username", username).Msg("superuser already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user := entity.User{
		Username:    username,
		Role:        authz.RoleAdmin,
		IsSuperuser: true,
	}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		user.Email = &email
	}

	if err := db.Create(&user).Error; err != nil {
		return err
	}

	logging.Info().Str("username", username).Msg("superuser seeded")
	return nil
}
