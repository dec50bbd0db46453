package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/amirphl/lead-manager/models"
	"github.com/amirphl/lead-manager/utils"
	"gorm.io/gorm"
)

// Early revisions stored a single phone and email directly on the lead row
const (
	legacyPhoneColumn = "phone"
	legacyEmailColumn = "email"
)

type legacyContactRow struct {
	ID    uint
	Phone *string
	Email *string
}

// migrateLegacyContactColumns copies legacy phone/email values into the child
// tables and drops the columns, all in one transaction
func migrateLegacyContactColumns(ctx context.Context, db *gorm.DB) error {
	m := db.WithContext(ctx).Migrator()
	hasPhone := m.HasColumn(&models.Lead{}, legacyPhoneColumn)
	hasEmail := m.HasColumn(&models.Lead{}, legacyEmailColumn)
	if !hasPhone && !hasEmail {
		return nil
	}

	cols := []string{"id"}
	if hasPhone {
		cols = append(cols, legacyPhoneColumn)
	}
	if hasEmail {
		cols = append(cols, legacyEmailColumn)
	}

	var moved, skipped int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []legacyContactRow
		if err := tx.Table("leads").Select(cols).Order("id ASC").Scan(&rows).Error; err != nil {
			return fmt.Errorf("failed to read legacy contact columns: %w", err)
		}

		for _, row := range rows {
			if row.Phone != nil {
				digits := utils.DigitsOnly(*row.Phone)
				if digits == "" {
					skipped++
				} else {
					primary, err := lacksPrimary(tx, &models.LeadPhone{}, row.ID)
					if err != nil {
						return err
					}
					phone := models.LeadPhone{LeadID: row.ID, Digits: digits, IsPrimary: primary}
					if err := tx.Create(&phone).Error; err != nil {
						return fmt.Errorf("failed to move legacy phone of lead %d: %w", row.ID, err)
					}
					moved++
				}
			}
			if row.Email != nil {
				address := strings.TrimSpace(*row.Email)
				if address == "" {
					skipped++
				} else {
					primary, err := lacksPrimary(tx, &models.LeadEmail{}, row.ID)
					if err != nil {
						return err
					}
					email := models.LeadEmail{LeadID: row.ID, Address: address, IsPrimary: primary}
					if err := tx.Create(&email).Error; err != nil {
						return fmt.Errorf("failed to move legacy email of lead %d: %w", row.ID, err)
					}
					moved++
				}
			}
		}

		for _, col := range cols[1:] {
			if err := tx.Exec("ALTER TABLE leads DROP COLUMN " + col).Error; err != nil {
				return fmt.Errorf("failed to drop legacy column %s: %w", col, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Legacy contact columns %v folded into child tables: moved=%d skipped=%d", cols[1:], moved, skipped)
	return nil
}

func lacksPrimary(tx *gorm.DB, model any, leadID uint) (bool, error) {
	var count int64
	if err := tx.Model(model).Where("lead_id = ? AND is_primary = ?", leadID, true).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check primary contact of lead %d: %w", leadID, err)
	}
	return count == 0, nil
}
