package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/amirphl/lead-manager/app/dto"
	"github.com/amirphl/lead-manager/config"
	"github.com/amirphl/lead-manager/models"
	"github.com/amirphl/lead-manager/repository"
	"github.com/amirphl/lead-manager/utils"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

// LeadFlow validates lead input and delegates to the lead repository
type LeadFlow interface {
	CreateLead(ctx context.Context, req *dto.CreateLeadRequest, metadata *ClientMetadata) (*dto.CreateLeadResponse, error)
	GetLead(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.LeadDTO, error)
	ListLeads(ctx context.Context, req *dto.ListLeadsRequest, metadata *ClientMetadata) (*dto.ListLeadsResponse, error)
	UpdateLead(ctx context.Context, req *dto.UpdateLeadRequest, metadata *ClientMetadata) (*dto.UpdateLeadResponse, error)
	DeleteLead(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.DeleteLeadResponse, error)
	GetStats(ctx context.Context, metadata *ClientMetadata) (*dto.LeadStatsResponse, error)
	ExportLeads(ctx context.Context, req *dto.ListLeadsRequest, metadata *ClientMetadata) (string, []byte, error)
}

// LeadFlowImpl implements LeadFlow
type LeadFlowImpl struct {
	leadRepo repository.LeadRepository
	cache    *LeadCache
	validate *validator.Validate
}

// NewLeadFlow creates the lead flow; rc may be nil, in which case reads are never cached
func NewLeadFlow(leadRepo repository.LeadRepository, rc *redis.Client, cacheCfg config.CacheConfig) LeadFlow {
	return &LeadFlowImpl{
		leadRepo: leadRepo,
		cache:    NewLeadCache(rc, cacheCfg),
		validate: validator.New(),
	}
}

// leadInput is the part shared by create and update payloads
type leadInput struct {
	Name    string
	Company *string
	Source  *string
	Notes   *string
	Emails  []dto.LeadEmailRequest
	Phones  []dto.LeadPhoneRequest
}

func (f *LeadFlowImpl) CreateLead(ctx context.Context, req *dto.CreateLeadRequest, metadata *ClientMetadata) (*dto.CreateLeadResponse, error) {
	lead, err := f.buildLead(leadInput{
		Name:    req.Name,
		Company: req.Company,
		Source:  req.Source,
		Notes:   req.Notes,
		Emails:  req.Emails,
		Phones:  req.Phones,
	}, false)
	if err != nil {
		return nil, err
	}

	id, err := f.leadRepo.Create(ctx, lead)
	if err != nil {
		log.Printf("Create lead failed (%s): %v", metadata, err)
		return nil, NewBusinessError("LEAD_PERSISTENCE_FAILED", "Failed to create lead", err)
	}

	f.cache.Invalidate(ctx)
	return &dto.CreateLeadResponse{ID: id}, nil
}

func (f *LeadFlowImpl) GetLead(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.LeadDTO, error) {
	key := f.cache.Key(ctx, cacheScopeLead, id)
	var cached dto.LeadDTO
	if f.cache.Load(ctx, cacheScopeLead, key, &cached) {
		return &cached, nil
	}

	lead, err := f.leadRepo.ByID(ctx, id)
	if err != nil {
		log.Printf("Get lead %d failed (%s): %v", id, metadata, err)
		return nil, NewBusinessError("LEAD_PERSISTENCE_FAILED", "Failed to load lead", err)
	}
	if lead == nil {
		return nil, NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}

	out := ToLeadDTO(*lead)
	f.cache.Store(ctx, key, out)
	return &out, nil
}

func (f *LeadFlowImpl) ListLeads(ctx context.Context, req *dto.ListLeadsRequest, metadata *ClientMetadata) (*dto.ListLeadsResponse, error) {
	if req == nil {
		req = &dto.ListLeadsRequest{}
	}

	sort, err := parseLeadSort(req.SortBy, req.Order)
	if err != nil {
		return nil, err
	}
	filter := models.LeadFilter{
		Query:       utils.TrimToNil(req.Query),
		Source:      utils.TrimToNil(req.Source),
		HasEmail:    req.HasEmail,
		HasCompany:  req.HasCompany,
		HasWhatsApp: req.HasWhatsApp,
	}

	key := f.cache.Key(ctx, cacheScopeList, struct {
		Filter models.LeadFilter
		Sort   models.LeadSort
	}{filter, sort})
	var cached dto.ListLeadsResponse
	if f.cache.Load(ctx, cacheScopeList, key, &cached) {
		return &cached, nil
	}

	leads, err := f.leadRepo.List(ctx, filter, sort)
	if err != nil {
		if repository.IsPersistenceError(err) {
			log.Printf("List leads failed (%s): %v", metadata, err)
			return nil, NewBusinessError("LEAD_PERSISTENCE_FAILED", "Failed to list leads", err)
		}
		return nil, NewBusinessError("INVALID_SORT", "Invalid sort field or order", ErrInvalidLeadSort)
	}

	out := dto.ListLeadsResponse{Leads: make([]dto.LeadDTO, 0, len(leads)), Count: len(leads)}
	for _, lead := range leads {
		out.Leads = append(out.Leads, ToLeadDTO(*lead))
	}

	f.cache.Store(ctx, key, out)
	return &out, nil
}

func (f *LeadFlowImpl) UpdateLead(ctx context.Context, req *dto.UpdateLeadRequest, metadata *ClientMetadata) (*dto.UpdateLeadResponse, error) {
	if req.ID == 0 {
		return nil, newValidationError("id", "0", "lead id is required")
	}

	lead, err := f.buildLead(leadInput{
		Name:    req.Name,
		Company: req.Company,
		Source:  req.Source,
		Notes:   req.Notes,
		Emails:  req.Emails,
		Phones:  req.Phones,
	}, true)
	if err != nil {
		return nil, err
	}
	lead.ID = req.ID

	updated, err := f.leadRepo.Update(ctx, lead)
	if err != nil {
		var uce *repository.UnknownContactError
		if errors.As(err, &uce) {
			return nil, newValidationError(uce.Kind+"s.id", strconv.FormatUint(uint64(uce.ID), 10), "does not belong to this lead")
		}
		log.Printf("Update lead %d failed (%s): %v", req.ID, metadata, err)
		return nil, NewBusinessError("LEAD_PERSISTENCE_FAILED", "Failed to update lead", err)
	}
	if !updated {
		return nil, NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}

	f.cache.Invalidate(ctx)
	return &dto.UpdateLeadResponse{Updated: true}, nil
}

func (f *LeadFlowImpl) DeleteLead(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.DeleteLeadResponse, error) {
	deleted, err := f.leadRepo.Delete(ctx, id)
	if err != nil {
		log.Printf("Delete lead %d failed (%s): %v", id, metadata, err)
		return nil, NewBusinessError("LEAD_PERSISTENCE_FAILED", "Failed to delete lead", err)
	}
	if !deleted {
		return nil, NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}

	f.cache.Invalidate(ctx)
	return &dto.DeleteLeadResponse{Deleted: true}, nil
}

func (f *LeadFlowImpl) GetStats(ctx context.Context, metadata *ClientMetadata) (*dto.LeadStatsResponse, error) {
	key := f.cache.Key(ctx, cacheScopeStats, "all")
	var cached dto.LeadStatsResponse
	if f.cache.Load(ctx, cacheScopeStats, key, &cached) {
		return &cached, nil
	}

	stats, err := f.leadRepo.Stats(ctx)
	if err != nil {
		log.Printf("Lead stats failed (%s): %v", metadata, err)
		return nil, NewBusinessError("LEAD_PERSISTENCE_FAILED", "Failed to compute lead stats", err)
	}

	out := ToLeadStatsResponse(*stats)
	f.cache.Store(ctx, key, out)
	return &out, nil
}

// buildLead validates and normalizes input into a model. Blank contact entries are dropped;
// on update a blank entry that carries an id therefore removes that contact.
func (f *LeadFlowImpl) buildLead(in leadInput, keepIDs bool) (*models.Lead, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newValidationError("name", "", "name is required")
	}
	if utf8.RuneCountInString(name) > utils.MaxLeadNameLength {
		return nil, newValidationError("name", "", fmt.Sprintf("must be at most %d characters", utils.MaxLeadNameLength))
	}

	lead := &models.Lead{
		Name:    name,
		Company: utils.TrimToNil(in.Company),
		Source:  utils.TrimToNil(in.Source),
		Notes:   utils.TrimToNil(in.Notes),
		Emails:  []models.LeadEmail{},
		Phones:  []models.LeadPhone{},
	}
	for _, opt := range []struct {
		field string
		value *string
		max   int
	}{
		{"company", lead.Company, utils.MaxLeadCompanyLength},
		{"source", lead.Source, utils.MaxLeadSourceLength},
		{"notes", lead.Notes, utils.MaxLeadNotesLength},
	} {
		if opt.value != nil && utf8.RuneCountInString(*opt.value) > opt.max {
			return nil, newValidationError(opt.field, "", fmt.Sprintf("must be at most %d characters", opt.max))
		}
	}

	if len(in.Emails) > utils.MaxContactsPerKind {
		return nil, newValidationError("emails", "", fmt.Sprintf("at most %d emails are allowed", utils.MaxContactsPerKind))
	}
	for i, e := range in.Emails {
		address := strings.TrimSpace(e.Address)
		if address == "" {
			continue
		}
		if len(address) > utils.MaxEmailLength || f.validate.Var(address, "email") != nil {
			return nil, newValidationError(fmt.Sprintf("emails[%d].address", i), e.Address, "must be a valid email address")
		}
		email := models.LeadEmail{Address: address, IsPrimary: e.IsPrimary}
		if keepIDs && e.ID != nil {
			email.ID = *e.ID
		}
		lead.Emails = append(lead.Emails, email)
	}

	if len(in.Phones) > utils.MaxContactsPerKind {
		return nil, newValidationError("phones", "", fmt.Sprintf("at most %d phones are allowed", utils.MaxContactsPerKind))
	}
	for i, p := range in.Phones {
		if strings.TrimSpace(p.Digits) == "" {
			continue
		}
		digits := utils.DigitsOnly(p.Digits)
		if len(digits) < utils.MinPhoneDigits || len(digits) > utils.MaxPhoneDigits {
			return nil, newValidationError(fmt.Sprintf("phones[%d].digits", i), p.Digits,
				fmt.Sprintf("phone must have %d or %d digits", utils.MinPhoneDigits, utils.MaxPhoneDigits))
		}
		phone := models.LeadPhone{Digits: digits, IsWhatsApp: p.IsWhatsApp, IsPrimary: p.IsPrimary}
		if keepIDs && p.ID != nil {
			phone.ID = *p.ID
		}
		lead.Phones = append(lead.Phones, phone)
	}
	if len(lead.Phones) == 0 {
		return nil, newValidationError("phones", "", "at least one phone is required")
	}

	return lead, nil
}

func parseLeadSort(sortBy, order string) (models.LeadSort, error) {
	sort := models.LeadSort{
		Field: strings.ToLower(strings.TrimSpace(sortBy)),
		Order: strings.ToLower(strings.TrimSpace(order)),
	}
	if sort.Field == "" {
		sort.Field = models.DefaultLeadSort().Field
	}
	if sort.Order == "" {
		sort.Order = models.SortOrderAsc
		if sort.Field == models.LeadSortByCreatedAt {
			sort.Order = models.SortOrderDesc
		}
	}
	if !models.IsValidLeadSortField(sort.Field) || !models.IsValidSortOrder(sort.Order) {
		return sort, NewBusinessErrorf("INVALID_SORT", "Invalid sort %q %q", ErrInvalidLeadSort, sortBy, order)
	}
	return sort, nil
}
