package dto

// LeadEmailRequest is one email entry of a create/update payload.
// ID is only meaningful on update, where it selects the row to edit in place.
type LeadEmailRequest struct {
	ID        *uint  `json:"id,omitempty" validate:"omitempty,gt=0"`
	Address   string `json:"address" validate:"max=255"`
	IsPrimary bool   `json:"is_primary"`
}

// LeadPhoneRequest is one phone entry; Digits may contain formatting characters
type LeadPhoneRequest struct {
	ID         *uint  `json:"id,omitempty" validate:"omitempty,gt=0"`
	Digits     string `json:"digits" validate:"max=32"`
	IsWhatsApp bool   `json:"is_whatsapp"`
	IsPrimary  bool   `json:"is_primary"`
}

// CreateLeadRequest carries data to create a lead with its contacts
type CreateLeadRequest struct {
	Name    string             `json:"name" validate:"required,max=255"`
	Company *string            `json:"company,omitempty" validate:"omitempty,max=255"`
	Source  *string            `json:"source,omitempty" validate:"omitempty,max=100"`
	Notes   *string            `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Emails  []LeadEmailRequest `json:"emails,omitempty" validate:"omitempty,max=20,dive"`
	Phones  []LeadPhoneRequest `json:"phones" validate:"max=20,dive"`
}

// CreateLeadResponse returns the generated lead id
type CreateLeadResponse struct {
	ID uint `json:"id"`
}

// UpdateLeadRequest replaces a lead's fields and its full contact sets.
// Existing contacts missing from Emails/Phones are removed.
type UpdateLeadRequest struct {
	ID      uint               `json:"-"`
	Name    string             `json:"name" validate:"required,max=255"`
	Company *string            `json:"company,omitempty" validate:"omitempty,max=255"`
	Source  *string            `json:"source,omitempty" validate:"omitempty,max=100"`
	Notes   *string            `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Emails  []LeadEmailRequest `json:"emails,omitempty" validate:"omitempty,max=20,dive"`
	Phones  []LeadPhoneRequest `json:"phones" validate:"max=20,dive"`
}

// UpdateLeadResponse reports a successful update
type UpdateLeadResponse struct {
	Updated bool `json:"updated"`
}

// DeleteLeadResponse reports a successful delete
type DeleteLeadResponse struct {
	Deleted bool `json:"deleted"`
}

// ListLeadsRequest holds search, filter and sort parameters.
// SortBy is one of name, company, source, created_at; Order is asc or desc.
type ListLeadsRequest struct {
	Query       *string `json:"q,omitempty"`
	SortBy      string  `json:"sort_by,omitempty"`
	Order       string  `json:"order,omitempty"`
	Source      *string `json:"source,omitempty"`
	HasEmail    *bool   `json:"has_email,omitempty"`
	HasCompany  *bool   `json:"has_company,omitempty"`
	HasWhatsApp *bool   `json:"has_whatsapp,omitempty"`
}

type LeadEmailDTO struct {
	ID        uint   `json:"id"`
	Address   string `json:"address"`
	IsPrimary bool   `json:"is_primary"`
}

type LeadPhoneDTO struct {
	ID         uint   `json:"id"`
	Digits     string `json:"digits"`
	IsWhatsApp bool   `json:"is_whatsapp"`
	IsPrimary  bool   `json:"is_primary"`
}

// LeadDTO is a lead as returned by the API; contacts are primary first
type LeadDTO struct {
	ID        uint           `json:"id"`
	Name      string         `json:"name"`
	Company   *string        `json:"company"`
	Source    *string        `json:"source"`
	Notes     *string        `json:"notes"`
	CreatedAt string         `json:"created_at"`
	Emails    []LeadEmailDTO `json:"emails"`
	Phones    []LeadPhoneDTO `json:"phones"`
}

// ListLeadsResponse wraps the matching leads
type ListLeadsResponse struct {
	Leads []LeadDTO `json:"leads"`
	Count int       `json:"count"`
}

type SourceCountDTO struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// LeadStatsResponse aggregates lead counts for dashboards
type LeadStatsResponse struct {
	Total         int64            `json:"total"`
	WithEmail     int64            `json:"with_email"`
	WithCompany   int64            `json:"with_company"`
	WithWhatsApp  int64            `json:"with_whatsapp"`
	WithoutSource int64            `json:"without_source"`
	BySource      []SourceCountDTO `json:"by_source"`
	TopSource     *string          `json:"top_source"`
}
