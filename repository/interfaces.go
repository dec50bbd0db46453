// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/lead-manager/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// LeadRepository defines persistence operations for leads and their contacts
type LeadRepository interface {
	// Create stores the lead with its emails and phones atomically and returns the new id
	Create(ctx context.Context, lead *models.Lead) (uint, error)
	// ByID returns the lead with its contacts, or nil when it does not exist
	ByID(ctx context.Context, id uint) (*models.Lead, error)
	List(ctx context.Context, filter models.LeadFilter, sort models.LeadSort) ([]*models.Lead, error)
	// Update rewrites the scalar fields and reconciles both contact sets.
	// It returns false when no lead has the given id.
	Update(ctx context.Context, lead *models.Lead) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
	Stats(ctx context.Context) (*models.LeadStats, error)
}
