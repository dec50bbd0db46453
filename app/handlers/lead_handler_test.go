package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/lead-manager/app/dto"
	"github.com/amirphl/lead-manager/app/handlers"
	businessflow "github.com/amirphl/lead-manager/business_flow"
	"github.com/amirphl/lead-manager/config"
	"github.com/amirphl/lead-manager/repository"
	testingutil "github.com/amirphl/lead-manager/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func newLeadApp(flow businessflow.LeadFlow) *fiber.App {
	h := handlers.NewLeadHandler(flow)
	app := fiber.New()
	app.Post("/leads", h.Create)
	app.Get("/leads", h.List)
	app.Get("/leads/stats", h.Stats)
	app.Get("/leads/export", h.Export)
	app.Get("/leads/:id", h.Get)
	app.Put("/leads/:id", h.Update)
	app.Delete("/leads/:id", h.Delete)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, apiEnvelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var env apiEnvelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func TestLeadHandler(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := businessflow.NewLeadFlow(repository.NewLeadRepository(testDB.DB), nil, config.CacheConfig{})
		app := newLeadApp(flow)

		var leadID uint

		t.Run("CreateAndGet", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodPost, "/leads", `{
				"name": " Ana ",
				"company": "Acme",
				"emails": [{"address": "ana@acme.com"}],
				"phones": [{"digits": "(11) 99999-0000", "is_whatsapp": true}]
			}`)
			require.Equal(t, fiber.StatusCreated, resp.StatusCode)
			require.True(t, env.Success)

			var created dto.CreateLeadResponse
			require.NoError(t, json.Unmarshal(env.Data, &created))
			require.NotZero(t, created.ID)
			leadID = created.ID

			resp, env = doRequest(t, app, http.MethodGet, "/leads/"+itoa(leadID), "")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			var lead dto.LeadDTO
			require.NoError(t, json.Unmarshal(env.Data, &lead))
			assert.Equal(t, "Ana", lead.Name)
			require.Len(t, lead.Phones, 1)
			assert.Equal(t, "11999990000", lead.Phones[0].Digits)
			assert.True(t, lead.Phones[0].IsPrimary)
			require.Len(t, lead.Emails, 1)
			assert.True(t, lead.Emails[0].IsPrimary)
		})

		t.Run("CreateRejectsMalformedBody", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodPost, "/leads", `{"name":`)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
		})

		t.Run("CreateRejectsMissingName", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodPost, "/leads", `{"phones":[{"digits":"11999990000"}]}`)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		})

		t.Run("CreateReportsInvalidField", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodPost, "/leads", `{"name":"Bob","phones":[{"digits":"123"}]}`)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

			var details map[string]string
			require.NoError(t, json.Unmarshal(env.Error.Details, &details))
			assert.Equal(t, "phones[0].digits", details["field"])
			assert.Equal(t, "123", details["value"])
			assert.NotEmpty(t, details["reason"])
		})

		t.Run("InvalidID", func(t *testing.T) {
			for _, id := range []string{"abc", "0", "-1"} {
				resp, env := doRequest(t, app, http.MethodGet, "/leads/"+id, "")
				assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, id)
				assert.Equal(t, "INVALID_LEAD_ID", env.Error.Code, id)
			}
		})

		t.Run("GetNotFound", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodGet, "/leads/999999", "")
			assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "LEAD_NOT_FOUND", env.Error.Code)
		})

		t.Run("ListSearchesAndFilters", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodGet, "/leads?q=ACME&has_whatsapp=true", "")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			var list dto.ListLeadsResponse
			require.NoError(t, json.Unmarshal(env.Data, &list))
			assert.Equal(t, 1, list.Count)

			resp, env = doRequest(t, app, http.MethodGet, "/leads?has_email=false", "")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			require.NoError(t, json.Unmarshal(env.Data, &list))
			assert.Equal(t, 0, list.Count)
			assert.NotNil(t, list.Leads)
		})

		t.Run("ListRejectsBadParameters", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodGet, "/leads?sort_by=email", "")
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_SORT", env.Error.Code)

			resp, env = doRequest(t, app, http.MethodGet, "/leads?order=sideways", "")
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_SORT", env.Error.Code)

			resp, env = doRequest(t, app, http.MethodGet, "/leads?has_email=maybe", "")
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_FILTER", env.Error.Code)
		})

		t.Run("Stats", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodGet, "/leads/stats", "")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			var stats dto.LeadStatsResponse
			require.NoError(t, json.Unmarshal(env.Data, &stats))
			assert.Equal(t, int64(1), stats.Total)
			assert.Equal(t, int64(1), stats.WithWhatsApp)
		})

		t.Run("Export", func(t *testing.T) {
			resp, _ := doRequest(t, app, http.MethodGet, "/leads/export?sort_by=name", "")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, businessflow.ExportContentType(), resp.Header.Get("Content-Type"))
			assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment; filename=leads_")
		})

		t.Run("Update", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodPut, "/leads/"+itoa(leadID), `{
				"name": "Ana Souza",
				"phones": [{"digits": "21 5555 1234"}]
			}`)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			var updated dto.UpdateLeadResponse
			require.NoError(t, json.Unmarshal(env.Data, &updated))
			assert.True(t, updated.Updated)

			_, env = doRequest(t, app, http.MethodGet, "/leads/"+itoa(leadID), "")
			var lead dto.LeadDTO
			require.NoError(t, json.Unmarshal(env.Data, &lead))
			assert.Equal(t, "Ana Souza", lead.Name)
			assert.Empty(t, lead.Emails)
			require.Len(t, lead.Phones, 1)
			assert.Equal(t, "2155551234", lead.Phones[0].Digits)
		})

		t.Run("UpdateNotFound", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodPut, "/leads/999999", `{"name":"X","phones":[{"digits":"11999990000"}]}`)
			assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "LEAD_NOT_FOUND", env.Error.Code)
		})

		t.Run("Delete", func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodDelete, "/leads/"+itoa(leadID), "")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			var deleted dto.DeleteLeadResponse
			require.NoError(t, json.Unmarshal(env.Data, &deleted))
			assert.True(t, deleted.Deleted)

			resp, env = doRequest(t, app, http.MethodDelete, "/leads/"+itoa(leadID), "")
			assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "LEAD_NOT_FOUND", env.Error.Code)
		})

		return nil
	})
	require.NoError(t, err)
}

// brokenLeadFlow fails every call the way a lost database connection would
type brokenLeadFlow struct{}

var errStoreDown = businessflow.NewBusinessError("LEAD_PERSISTENCE_FAILED", "Failed", errors.New("dial tcp 10.0.0.5:5432: connection refused"))

func (brokenLeadFlow) CreateLead(context.Context, *dto.CreateLeadRequest, *businessflow.ClientMetadata) (*dto.CreateLeadResponse, error) {
	return nil, errStoreDown
}

func (brokenLeadFlow) GetLead(context.Context, uint, *businessflow.ClientMetadata) (*dto.LeadDTO, error) {
	return nil, errStoreDown
}

func (brokenLeadFlow) ListLeads(context.Context, *dto.ListLeadsRequest, *businessflow.ClientMetadata) (*dto.ListLeadsResponse, error) {
	return nil, errStoreDown
}

func (brokenLeadFlow) UpdateLead(context.Context, *dto.UpdateLeadRequest, *businessflow.ClientMetadata) (*dto.UpdateLeadResponse, error) {
	return nil, errStoreDown
}

func (brokenLeadFlow) DeleteLead(context.Context, uint, *businessflow.ClientMetadata) (*dto.DeleteLeadResponse, error) {
	return nil, errStoreDown
}

func (brokenLeadFlow) GetStats(context.Context, *businessflow.ClientMetadata) (*dto.LeadStatsResponse, error) {
	return nil, errStoreDown
}

func (brokenLeadFlow) ExportLeads(context.Context, *dto.ListLeadsRequest, *businessflow.ClientMetadata) (string, []byte, error) {
	return "", nil, errStoreDown
}

func TestLeadHandlerInternalErrors(t *testing.T) {
	app := newLeadApp(brokenLeadFlow{})

	cases := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodPost, "/leads", `{"name":"X","phones":[{"digits":"11999990000"}]}`},
		{http.MethodGet, "/leads", ""},
		{http.MethodGet, "/leads/1", ""},
		{http.MethodPut, "/leads/1", `{"name":"X","phones":[{"digits":"11999990000"}]}`},
		{http.MethodDelete, "/leads/1", ""},
		{http.MethodGet, "/leads/stats", ""},
		{http.MethodGet, "/leads/export", ""},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			resp, env := doRequest(t, app, tc.method, tc.target, tc.body)
			assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
			assert.False(t, env.Success)
			assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
			assert.NotContains(t, env.Message, "connection refused")
			assert.Empty(t, env.Error.Details)
		})
	}
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
