// Package models contains domain entities and business logic models for the lead manager
package models

import (
	"time"

	"github.com/amirphl/lead-manager/utils"
	"gorm.io/gorm"
)

// Lead is the root contact record
// Table: leads
// Indices: created_at
// Company, Source and Notes are nullable; Source is a free-form label
// CreatedAt is assigned once by the server and never updated
type Lead struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Company   *string   `gorm:"type:varchar(255)" json:"company"`
	Source    *string   `gorm:"type:varchar(100)" json:"source"`
	Notes     *string   `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	// Relations
	Emails []LeadEmail `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"emails"`
	Phones []LeadPhone `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"phones"`
}

func (Lead) TableName() string { return "leads" }

// BeforeCreate stamps the creation time in UTC
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// LeadEmail is an email address owned by a lead
// Table: lead_emails
// At most one row per lead has IsPrimary set (partial unique index)
type LeadEmail struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	LeadID    uint      `gorm:"not null;index" json:"lead_id"`
	Address   string    `gorm:"type:varchar(255);not null" json:"address"`
	IsPrimary bool      `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (LeadEmail) TableName() string { return "lead_emails" }

func (e *LeadEmail) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.UTCNow()
	}
	return nil
}

// LeadPhone is a phone number owned by a lead
// Table: lead_phones
// Digits holds only 0-9 characters
type LeadPhone struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	LeadID     uint      `gorm:"not null;index" json:"lead_id"`
	Digits     string    `gorm:"type:varchar(20);not null" json:"digits"`
	IsWhatsApp bool      `gorm:"column:is_whatsapp;not null;default:false" json:"is_whatsapp"`
	IsPrimary  bool      `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (LeadPhone) TableName() string { return "lead_phones" }

func (p *LeadPhone) BeforeCreate(tx *gorm.DB) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Sortable lead fields
const (
	LeadSortByName      = "name"
	LeadSortByCompany   = "company"
	LeadSortBySource    = "source"
	LeadSortByCreatedAt = "created_at"

	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"
)

// LeadFilter represents filter criteria for lead queries
type LeadFilter struct {
	ID          *uint   `json:"id,omitempty"`
	Query       *string `json:"q,omitempty"`
	Source      *string `json:"source,omitempty"`
	HasEmail    *bool   `json:"has_email,omitempty"`
	HasCompany  *bool   `json:"has_company,omitempty"`
	HasWhatsApp *bool   `json:"has_whatsapp,omitempty"`
}

// LeadSort selects the ordering of a lead listing
type LeadSort struct {
	Field string `json:"sort_by"`
	Order string `json:"order"`
}

// DefaultLeadSort lists the newest leads first
func DefaultLeadSort() LeadSort {
	return LeadSort{Field: LeadSortByCreatedAt, Order: SortOrderDesc}
}

// IsValidLeadSortField reports whether field is in the sort allow-list
func IsValidLeadSortField(field string) bool {
	switch field {
	case LeadSortByName, LeadSortByCompany, LeadSortBySource, LeadSortByCreatedAt:
		return true
	}
	return false
}

// IsValidSortOrder reports whether order is asc or desc
func IsValidSortOrder(order string) bool {
	return order == SortOrderAsc || order == SortOrderDesc
}

// SourceCount is the number of leads sharing a source label
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// LeadStats aggregates lead counts for dashboards
type LeadStats struct {
	Total         int64         `json:"total"`
	WithEmail     int64         `json:"with_email"`
	WithCompany   int64         `json:"with_company"`
	WithWhatsApp  int64         `json:"with_whatsapp"`
	WithoutSource int64         `json:"without_source"`
	BySource      []SourceCount `json:"by_source"`
}

// TopSource returns the most frequent source, if any lead has one
func (s *LeadStats) TopSource() *string {
	if s == nil || len(s.BySource) == 0 {
		return nil
	}
	top := s.BySource[0].Source
	return &top
}
