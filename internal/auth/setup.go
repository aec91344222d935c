package auth

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates the users and sessions tables.
func Migrate(d *gorm.DB) error {
	if err := d.AutoMigrate(&User{}, &Session{}); err != nil {
		return fmt.Errorf("migrate auth tables: %w", err)
	}
	return nil
}
