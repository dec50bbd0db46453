// Package testing provides test utilities and database setup for testing the lead manager
package testing

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/amirphl/lead-manager/config"
	"github.com/amirphl/lead-manager/database"
	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

// TestDB represents an isolated in-memory test database
type TestDB struct {
	DB   *gorm.DB
	Name string
}

// SetupTestDB creates a new in-memory sqlite database with a unique name and applies the schema
func SetupTestDB() (*TestDB, error) {
	name := fmt.Sprintf("leads_test_%d", testDBSeq.Add(1))

	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open test database %s: %w", name, err)
	}

	if err := database.Migrate(context.Background(), db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate test database %s: %w", name, err)
	}

	return &TestDB{DB: db, Name: name}, nil
}

// TeardownTestDB closes the connection, which discards the in-memory database
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	return database.Close(tdb.DB)
}

// ClearAllTables removes all lead data while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	// Children vanish through the cascade
	if err := tdb.DB.Exec("DELETE FROM leads").Error; err != nil {
		return fmt.Errorf("failed to clear leads: %w", err)
	}
	return nil
}

// TestWithDB is a helper function that sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
