package businessflow

import (
	"github.com/amirphl/lead-manager/app/dto"
	"github.com/amirphl/lead-manager/models"
	"github.com/amirphl/lead-manager/utils"
)

// ClientMetadata holds client information attached to server-side log lines
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func (cm *ClientMetadata) String() string {
	if cm == nil {
		return "-"
	}
	return "request_id=" + cm.RequestID + " ip=" + cm.IPAddress
}

// ToLeadDTO converts a lead model to its API representation
func ToLeadDTO(lead models.Lead) dto.LeadDTO {
	out := dto.LeadDTO{
		ID:        lead.ID,
		Name:      lead.Name,
		Company:   lead.Company,
		Source:    lead.Source,
		Notes:     lead.Notes,
		CreatedAt: utils.FormatTimestamp(lead.CreatedAt),
		Emails:    make([]dto.LeadEmailDTO, 0, len(lead.Emails)),
		Phones:    make([]dto.LeadPhoneDTO, 0, len(lead.Phones)),
	}
	for _, e := range lead.Emails {
		out.Emails = append(out.Emails, dto.LeadEmailDTO{ID: e.ID, Address: e.Address, IsPrimary: e.IsPrimary})
	}
	for _, p := range lead.Phones {
		out.Phones = append(out.Phones, dto.LeadPhoneDTO{ID: p.ID, Digits: p.Digits, IsWhatsApp: p.IsWhatsApp, IsPrimary: p.IsPrimary})
	}
	return out
}

// ToLeadStatsResponse converts aggregated stats to the API representation
func ToLeadStatsResponse(stats models.LeadStats) dto.LeadStatsResponse {
	out := dto.LeadStatsResponse{
		Total:         stats.Total,
		WithEmail:     stats.WithEmail,
		WithCompany:   stats.WithCompany,
		WithWhatsApp:  stats.WithWhatsApp,
		WithoutSource: stats.WithoutSource,
		BySource:      make([]dto.SourceCountDTO, 0, len(stats.BySource)),
		TopSource:     stats.TopSource(),
	}
	for _, s := range stats.BySource {
		out.BySource = append(out.BySource, dto.SourceCountDTO{Source: s.Source, Count: s.Count})
	}
	return out
}
