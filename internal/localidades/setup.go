package localidades

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the basin and locality tables.
func Migrate(d *gorm.DB) error {
	if err := d.AutoMigrate(&RiverBasin{}, &Locality{}); err != nil {
		return fmt.Errorf("auto-migrate localidades: %w", err)
	}
	return nil
}
