package utils

import (
	"time"
)

// Request handling constants
const (
	// RequestTimeout bounds every handler-initiated operation
	RequestTimeout = 30 * time.Second

	// HealthCheckTimeout bounds store and cache pings on the health endpoint
	HealthCheckTimeout = 3 * time.Second
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Lead field limits
const (
	MaxLeadNameLength    = 255
	MaxLeadCompanyLength = 255
	MaxLeadSourceLength  = 100
	MaxLeadNotesLength   = 5000
	MaxEmailLength       = 255
	MaxContactsPerKind   = 20

	// Phone numbers hold exactly 10 or 11 digits once formatting is stripped
	MinPhoneDigits = 10
	MaxPhoneDigits = 11
)
