package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/lead-manager/models"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestLead inserts a lead with the given children directly through gorm.
// Children keep their order; callers decide which one is primary.
func (tf *TestFixtures) CreateTestLead(name string, emails []models.LeadEmail, phones []models.LeadPhone) (*models.Lead, error) {
	lead := &models.Lead{Name: name}
	if err := tf.DB.DB.Omit("Emails", "Phones").Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create test lead %s: %w", name, err)
	}

	for i := range emails {
		emails[i].LeadID = lead.ID
		if err := tf.DB.DB.Create(&emails[i]).Error; err != nil {
			return nil, fmt.Errorf("failed to create test email for lead %d: %w", lead.ID, err)
		}
	}
	for i := range phones {
		phones[i].LeadID = lead.ID
		if err := tf.DB.DB.Create(&phones[i]).Error; err != nil {
			return nil, fmt.Errorf("failed to create test phone for lead %d: %w", lead.ID, err)
		}
	}

	lead.Emails = emails
	lead.Phones = phones
	return lead, nil
}

// SetCreatedAt rewrites a lead's creation time so ordering tests are deterministic
func (tf *TestFixtures) SetCreatedAt(leadID uint, at time.Time) error {
	return tf.DB.DB.Model(&models.Lead{}).Where("id = ?", leadID).Update("created_at", at.UTC()).Error
}

// CountRows returns the number of rows in a table
func (tf *TestFixtures) CountRows(table string) (int64, error) {
	var n int64
	err := tf.DB.DB.Table(table).Count(&n).Error
	return n, err
}
