package handlers

import (
	"log"
	"strconv"
	"strings"

	"github.com/amirphl/lead-manager/app/dto"
	businessflow "github.com/amirphl/lead-manager/business_flow"
	"github.com/amirphl/lead-manager/models"
	"github.com/amirphl/lead-manager/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// LeadHandlerInterface defines the contract for lead handlers
type LeadHandlerInterface interface {
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Stats(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// LeadHandler handles lead-related HTTP requests
type LeadHandler struct {
	flow      businessflow.LeadFlow
	validator *validator.Validate
}

func (h *LeadHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *LeadHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(flow businessflow.LeadFlow) *LeadHandler {
	return &LeadHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// Create Lead
// @Summary Create lead
// @Description Create a lead together with its emails and phones in one transaction. At least one phone is required.
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body dto.CreateLeadRequest true "Lead data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateLeadResponse} "Lead created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads [post]
func (h *LeadHandler) Create(c fiber.Ctx) error {
	var req dto.CreateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads", utils.RequestTimeout)
	defer cancel()

	result, err := h.flow.CreateLead(ctx, &req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to create lead")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Lead created successfully", result)
}

// List Leads
// @Summary List leads
// @Description List leads with their contacts. Search matches name, company, source, email and phone digits case-insensitively.
// @Tags Leads
// @Produce json
// @Param q query string false "Search text"
// @Param sort_by query string false "name|company|source|created_at (default created_at)"
// @Param order query string false "asc|desc (default desc for created_at, asc otherwise)"
// @Param source query string false "Exact source, case-insensitive"
// @Param has_email query boolean false "Only leads with (or without) emails"
// @Param has_company query boolean false "Only leads with (or without) a company"
// @Param has_whatsapp query boolean false "Only leads with (or without) a WhatsApp phone"
// @Success 200 {object} dto.APIResponse{data=dto.ListLeadsResponse} "Leads retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid sort or filter"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads [get]
func (h *LeadHandler) List(c fiber.Ctx) error {
	req, err := parseListLeadsQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", "INVALID_FILTER", err.Error())
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads", utils.RequestTimeout)
	defer cancel()

	result, err := h.flow.ListLeads(ctx, req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to list leads")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", result)
}

// Get Lead
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Param id path integer true "Lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadDTO} "Lead retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid lead id"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/{id} [get]
func (h *LeadHandler) Get(c fiber.Ctx) error {
	id, ok := parseLeadID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/:id", utils.RequestTimeout)
	defer cancel()

	result, err := h.flow.GetLead(ctx, id, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to get lead")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead retrieved successfully", result)
}

// Update Lead
// @Summary Update lead
// @Description Replace a lead's fields and contact sets. Entries with an id are edited in place, entries without one are added, and stored contacts missing from the payload are removed.
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path integer true "Lead ID"
// @Param request body dto.UpdateLeadRequest true "Lead data"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateLeadResponse} "Lead updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/{id} [put]
func (h *LeadHandler) Update(c fiber.Ctx) error {
	id, ok := parseLeadID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}

	var req dto.UpdateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	req.ID = id

	ctx, cancel := createRequestContext(c, "/api/v1/leads/:id", utils.RequestTimeout)
	defer cancel()

	result, err := h.flow.UpdateLead(ctx, &req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to update lead")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead updated successfully", result)
}

// Delete Lead
// @Summary Delete lead
// @Description Delete a lead; its emails and phones are removed with it.
// @Tags Leads
// @Produce json
// @Param id path integer true "Lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteLeadResponse} "Lead deleted successfully"
// @Failure 400 {object} dto.APIResponse "Invalid lead id"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/{id} [delete]
func (h *LeadHandler) Delete(c fiber.Ctx) error {
	id, ok := parseLeadID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/:id", utils.RequestTimeout)
	defer cancel()

	result, err := h.flow.DeleteLead(ctx, id, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to delete lead")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead deleted successfully", result)
}

// Lead Stats
// @Summary Lead statistics
// @Tags Leads
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.LeadStatsResponse} "Lead stats retrieved successfully"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/stats [get]
func (h *LeadHandler) Stats(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/leads/stats", utils.RequestTimeout)
	defer cancel()

	result, err := h.flow.GetStats(ctx, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to get lead stats")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead stats retrieved successfully", result)
}

// Export Leads
// @Summary Export leads (Excel)
// @Description Download the filtered lead list as an XLSX workbook. Accepts the same query parameters as the list endpoint.
// @Tags Leads
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param q query string false "Search text"
// @Param sort_by query string false "name|company|source|created_at"
// @Param order query string false "asc|desc"
// @Success 200 {string} string "Excel file"
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/leads/export [get]
func (h *LeadHandler) Export(c fiber.Ctx) error {
	req, err := parseListLeadsQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", "INVALID_FILTER", err.Error())
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/export", utils.RequestTimeout)
	defer cancel()

	filename, data, err := h.flow.ExportLeads(ctx, req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to generate Excel")
	}

	c.Set("Content-Type", businessflow.ExportContentType())
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

func (h *LeadHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))
	return metadata
}

// flowError maps flow errors to responses; store details never reach the client
func (h *LeadHandler) flowError(c fiber.Ctx, err error, message string) error {
	if ve, ok := businessflow.AsValidationError(err); ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", dto.FieldErrorDetail{
			Field:  ve.Field,
			Value:  ve.Value,
			Reason: ve.Reason,
		})
	}
	if businessflow.IsLeadNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
	}
	if businessflow.IsInvalidLeadSort(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid sort field or order", "INVALID_SORT", fiber.Map{
			"sort_by": []string{models.LeadSortByName, models.LeadSortByCompany, models.LeadSortBySource, models.LeadSortByCreatedAt},
			"order":   []string{models.SortOrderAsc, models.SortOrderDesc},
		})
	}

	log.Printf("%s (request_id=%s): %v", message, requestID(c), err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, "INTERNAL_ERROR", nil)
}

func parseLeadID(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func parseListLeadsQuery(c fiber.Ctx) (*dto.ListLeadsRequest, error) {
	req := &dto.ListLeadsRequest{
		SortBy: c.Query("sort_by"),
		Order:  c.Query("order"),
	}
	if q := c.Query("q"); strings.TrimSpace(q) != "" {
		req.Query = &q
	}
	if source := c.Query("source"); strings.TrimSpace(source) != "" {
		req.Source = &source
	}

	for _, f := range []struct {
		name string
		dst  **bool
	}{
		{"has_email", &req.HasEmail},
		{"has_company", &req.HasCompany},
		{"has_whatsapp", &req.HasWhatsApp},
	} {
		raw := c.Query(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &queryParamError{name: f.name, value: raw}
		}
		*f.dst = &v
	}

	return req, nil
}

type queryParamError struct {
	name  string
	value string
}

func (e *queryParamError) Error() string {
	return e.name + " must be a boolean, got " + strconv.Quote(e.value)
}
