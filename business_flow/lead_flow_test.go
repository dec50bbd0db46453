package businessflow_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/lead-manager/app/dto"
	businessflow "github.com/amirphl/lead-manager/business_flow"
	"github.com/amirphl/lead-manager/config"
	"github.com/amirphl/lead-manager/models"
	"github.com/amirphl/lead-manager/repository"
	testingutil "github.com/amirphl/lead-manager/testing"
	"github.com/amirphl/lead-manager/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func validCreateRequest(name string) *dto.CreateLeadRequest {
	return &dto.CreateLeadRequest{
		Name:   name,
		Phones: []dto.LeadPhoneRequest{{Digits: "(11) 99999-0000", IsWhatsApp: true}},
	}
}

func TestLeadFlowCreate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := businessflow.NewLeadFlow(repository.NewLeadRepository(testDB.DB), nil, config.CacheConfig{})
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("NormalizesInput", func(t *testing.T) {
			req := validCreateRequest("  Ana  ")
			req.Company = utils.ToPtr("   ")
			req.Source = utils.ToPtr(" Site ")
			req.Emails = []dto.LeadEmailRequest{{Address: "  "}, {Address: " ana@acme.com "}}

			res, err := flow.CreateLead(ctx, req, nil)
			require.NoError(t, err)
			require.NotZero(t, res.ID)

			lead, err := flow.GetLead(ctx, res.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "Ana", lead.Name)
			assert.Nil(t, lead.Company)
			require.NotNil(t, lead.Source)
			assert.Equal(t, "Site", *lead.Source)
			require.Len(t, lead.Emails, 1)
			assert.Equal(t, "ana@acme.com", lead.Emails[0].Address)
			assert.True(t, lead.Emails[0].IsPrimary)
			require.Len(t, lead.Phones, 1)
			assert.Equal(t, "11999990000", lead.Phones[0].Digits)
			assert.True(t, lead.Phones[0].IsWhatsApp)

			_, err = time.Parse(time.RFC3339Nano, lead.CreatedAt)
			assert.NoError(t, err)
		})

		t.Run("Rejections", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			cases := []struct {
				name  string
				req   *dto.CreateLeadRequest
				field string
				value string
			}{
				{"BlankName", &dto.CreateLeadRequest{Name: "  ", Phones: []dto.LeadPhoneRequest{{Digits: "11999990000"}}}, "name", ""},
				{"ShortPhone", &dto.CreateLeadRequest{Name: "X", Phones: []dto.LeadPhoneRequest{{Digits: "123"}}}, "phones[0].digits", "123"},
				{"LongPhone", &dto.CreateLeadRequest{Name: "X", Phones: []dto.LeadPhoneRequest{{Digits: "+55 (11) 99999-00001"}}}, "phones[0].digits", "+55 (11) 99999-00001"},
				{"NoPhone", &dto.CreateLeadRequest{Name: "X"}, "phones", ""},
				{"OnlyBlankPhones", &dto.CreateLeadRequest{Name: "X", Phones: []dto.LeadPhoneRequest{{Digits: "  "}}}, "phones", ""},
				{"BadEmail", &dto.CreateLeadRequest{
					Name:   "X",
					Emails: []dto.LeadEmailRequest{{Address: "ok@x.io"}, {Address: "not-an-email"}},
					Phones: []dto.LeadPhoneRequest{{Digits: "11999990000"}},
				}, "emails[1].address", "not-an-email"},
			}
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					res, err := flow.CreateLead(ctx, tc.req, nil)
					require.Error(t, err)
					assert.Nil(t, res)

					ve, ok := businessflow.AsValidationError(err)
					require.True(t, ok, "expected validation error, got %v", err)
					assert.Equal(t, tc.field, ve.Field)
					assert.Equal(t, tc.value, ve.Value)
				})
			}

			n, err := fixtures.CountRows("leads")
			require.NoError(t, err)
			assert.Zero(t, n)
		})

		t.Run("TenDigitPhoneAccepted", func(t *testing.T) {
			req := &dto.CreateLeadRequest{Name: "Ten", Phones: []dto.LeadPhoneRequest{{Digits: "11 3333-4444"}}}
			_, err := flow.CreateLead(ctx, req, nil)
			assert.NoError(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLeadFlowUpdateDelete(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := businessflow.NewLeadFlow(repository.NewLeadRepository(testDB.DB), nil, config.CacheConfig{})
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("UpdateReplacesContacts", func(t *testing.T) {
			created, err := flow.CreateLead(ctx, &dto.CreateLeadRequest{
				Name:   "Bia",
				Emails: []dto.LeadEmailRequest{{Address: "a@x.io"}, {Address: "b@x.io"}},
				Phones: []dto.LeadPhoneRequest{{Digits: "11999990000"}},
			}, nil)
			require.NoError(t, err)

			current, err := flow.GetLead(ctx, created.ID, nil)
			require.NoError(t, err)
			emailA := current.Emails[0].ID
			phoneID := current.Phones[0].ID

			res, err := flow.UpdateLead(ctx, &dto.UpdateLeadRequest{
				ID:   created.ID,
				Name: "Bia Lima",
				Emails: []dto.LeadEmailRequest{
					{ID: &emailA, Address: "a2@x.io"},
					{Address: "c@x.io"},
				},
				Phones: []dto.LeadPhoneRequest{{ID: &phoneID, Digits: "11 98888-0000", IsWhatsApp: true}},
			}, nil)
			require.NoError(t, err)
			assert.True(t, res.Updated)

			got, err := flow.GetLead(ctx, created.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "Bia Lima", got.Name)
			require.Len(t, got.Emails, 2)
			assert.Equal(t, emailA, got.Emails[0].ID)
			assert.Equal(t, "a2@x.io", got.Emails[0].Address)
			assert.Equal(t, "c@x.io", got.Emails[1].Address)
			require.Len(t, got.Phones, 1)
			assert.Equal(t, phoneID, got.Phones[0].ID)
			assert.Equal(t, "11988880000", got.Phones[0].Digits)
			assert.True(t, got.Phones[0].IsWhatsApp)
		})

		t.Run("UpdateRejectsInvalidPhone", func(t *testing.T) {
			created, err := flow.CreateLead(ctx, validCreateRequest("Keep"), nil)
			require.NoError(t, err)

			_, err = flow.UpdateLead(ctx, &dto.UpdateLeadRequest{
				ID:     created.ID,
				Name:   "Changed",
				Phones: []dto.LeadPhoneRequest{{Digits: "999"}},
			}, nil)
			assert.True(t, businessflow.IsValidationError(err))

			got, err := flow.GetLead(ctx, created.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "Keep", got.Name)
		})

		t.Run("UpdateForeignContact", func(t *testing.T) {
			owner, err := fixtures.CreateTestLead("Owner", nil, []models.LeadPhone{{Digits: "11999990000", IsPrimary: true}})
			require.NoError(t, err)
			created, err := flow.CreateLead(ctx, validCreateRequest("Other"), nil)
			require.NoError(t, err)

			foreign := owner.Phones[0].ID
			_, err = flow.UpdateLead(ctx, &dto.UpdateLeadRequest{
				ID:     created.ID,
				Name:   "Other",
				Phones: []dto.LeadPhoneRequest{{ID: &foreign, Digits: "11999990000"}},
			}, nil)
			ve, ok := businessflow.AsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, "phones.id", ve.Field)
		})

		t.Run("NotFound", func(t *testing.T) {
			_, err := flow.UpdateLead(ctx, &dto.UpdateLeadRequest{ID: 9999, Name: "Ghost", Phones: []dto.LeadPhoneRequest{{Digits: "11999990000"}}}, nil)
			assert.True(t, businessflow.IsLeadNotFound(err))

			_, err = flow.DeleteLead(ctx, 9999, nil)
			assert.True(t, businessflow.IsLeadNotFound(err))

			_, err = flow.GetLead(ctx, 9999, nil)
			assert.True(t, businessflow.IsLeadNotFound(err))
		})

		t.Run("Delete", func(t *testing.T) {
			created, err := flow.CreateLead(ctx, validCreateRequest("Bye"), nil)
			require.NoError(t, err)

			res, err := flow.DeleteLead(ctx, created.ID, nil)
			require.NoError(t, err)
			assert.True(t, res.Deleted)

			_, err = flow.GetLead(ctx, created.ID, nil)
			assert.True(t, businessflow.IsLeadNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLeadFlowListAndStats(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := businessflow.NewLeadFlow(repository.NewLeadRepository(testDB.DB), nil, config.CacheConfig{})
		ctx := testingutil.CreateTestContext()

		for _, req := range []*dto.CreateLeadRequest{
			{Name: "Acme Buyer", Source: utils.ToPtr("Site"), Phones: []dto.LeadPhoneRequest{{Digits: "11999990000"}}},
			{Name: "Zed", Company: utils.ToPtr("acme ltd"), Phones: []dto.LeadPhoneRequest{{Digits: "11888880000", IsWhatsApp: true}}},
			{Name: "Other", Source: utils.ToPtr("Event"), Phones: []dto.LeadPhoneRequest{{Digits: "21777770000"}}},
		} {
			_, err := flow.CreateLead(ctx, req, nil)
			require.NoError(t, err)
		}

		t.Run("Search", func(t *testing.T) {
			res, err := flow.ListLeads(ctx, &dto.ListLeadsRequest{Query: utils.ToPtr("ACME"), SortBy: "name"}, nil)
			require.NoError(t, err)
			require.Equal(t, 2, res.Count)
			assert.Equal(t, "Acme Buyer", res.Leads[0].Name)
			assert.Equal(t, "Zed", res.Leads[1].Name)
		})

		t.Run("NilRequestListsAll", func(t *testing.T) {
			res, err := flow.ListLeads(ctx, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Count)
			assert.Equal(t, "Other", res.Leads[0].Name)
		})

		t.Run("InvalidSort", func(t *testing.T) {
			_, err := flow.ListLeads(ctx, &dto.ListLeadsRequest{SortBy: "phone"}, nil)
			assert.True(t, businessflow.IsInvalidLeadSort(err))

			_, err = flow.ListLeads(ctx, &dto.ListLeadsRequest{Order: "up"}, nil)
			assert.True(t, businessflow.IsInvalidLeadSort(err))
		})

		t.Run("Stats", func(t *testing.T) {
			stats, err := flow.GetStats(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(3), stats.Total)
			assert.Equal(t, int64(1), stats.WithCompany)
			assert.Equal(t, int64(1), stats.WithWhatsApp)
			assert.Equal(t, int64(1), stats.WithoutSource)
			assert.Len(t, stats.BySource, 2)
			require.NotNil(t, stats.TopSource)
			assert.Equal(t, "Event", *stats.TopSource)
		})

		t.Run("Export", func(t *testing.T) {
			filename, data, err := flow.ExportLeads(ctx, &dto.ListLeadsRequest{SortBy: "name", Order: "asc"}, nil)
			require.NoError(t, err)
			assert.Contains(t, filename, ".xlsx")

			xl, err := excelize.OpenReader(bytes.NewReader(data))
			require.NoError(t, err)
			defer func() { _ = xl.Close() }()

			rows, err := xl.GetRows("Leads")
			require.NoError(t, err)
			require.Len(t, rows, 4)
			assert.Equal(t, "id", rows[0][0])
			assert.Equal(t, "Acme Buyer", rows[1][1])
			assert.Equal(t, "11999990000", rows[1][6])
			assert.Equal(t, "Zed", rows[3][1])
			assert.Equal(t, "true", rows[3][7])
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLeadFlowCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	cacheCfg := config.CacheConfig{Enabled: true, RedisPrefix: "test:", DefaultTTL: time.Minute}

	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := businessflow.NewLeadFlow(repository.NewLeadRepository(testDB.DB), rc, cacheCfg)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		_, err := flow.CreateLead(ctx, validCreateRequest("Cached"), nil)
		require.NoError(t, err)

		first, err := flow.ListLeads(ctx, &dto.ListLeadsRequest{}, nil)
		require.NoError(t, err)
		require.Equal(t, 1, first.Count)

		t.Run("ServesFromCache", func(t *testing.T) {
			// Written behind the flow's back, so only a fresh read would see it
			_, err := fixtures.CreateTestLead("Sneaky", nil, nil)
			require.NoError(t, err)

			res, err := flow.ListLeads(ctx, &dto.ListLeadsRequest{}, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Count)
			assert.True(t, mr.Exists("test:leads:gen"))
		})

		t.Run("WritesInvalidate", func(t *testing.T) {
			_, err := flow.CreateLead(ctx, validCreateRequest("Fresh"), nil)
			require.NoError(t, err)

			res, err := flow.ListLeads(ctx, &dto.ListLeadsRequest{}, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Count)
		})

		t.Run("RedisDownFallsBackToStore", func(t *testing.T) {
			mr.Close()

			res, err := flow.ListLeads(ctx, &dto.ListLeadsRequest{}, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Count)

			_, err = flow.CreateLead(ctx, validCreateRequest("Offline"), nil)
			assert.NoError(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}

type failingLeadRepo struct {
	err error
}

func (r failingLeadRepo) Create(context.Context, *models.Lead) (uint, error) { return 0, r.err }
func (r failingLeadRepo) ByID(context.Context, uint) (*models.Lead, error)  { return nil, r.err }
func (r failingLeadRepo) List(context.Context, models.LeadFilter, models.LeadSort) ([]*models.Lead, error) {
	return nil, r.err
}
func (r failingLeadRepo) Update(context.Context, *models.Lead) (bool, error) { return false, r.err }
func (r failingLeadRepo) Delete(context.Context, uint) (bool, error)         { return false, r.err }
func (r failingLeadRepo) Stats(context.Context) (*models.LeadStats, error)   { return nil, r.err }

func TestLeadFlowPersistenceFailures(t *testing.T) {
	storeErr := &repository.PersistenceError{Op: "create lead", Err: errors.New("database is locked")}
	flow := businessflow.NewLeadFlow(failingLeadRepo{err: storeErr}, nil, config.CacheConfig{})
	ctx := context.Background()

	assertPersistence := func(t *testing.T, err error) {
		t.Helper()
		be, ok := businessflow.AsBusinessError(err)
		require.True(t, ok)
		assert.Equal(t, "LEAD_PERSISTENCE_FAILED", be.Code)
		assert.NotContains(t, be.Message, "database is locked")
		assert.True(t, repository.IsPersistenceError(err))
	}

	_, err := flow.CreateLead(ctx, validCreateRequest("X"), nil)
	assertPersistence(t, err)

	_, err = flow.UpdateLead(ctx, &dto.UpdateLeadRequest{ID: 1, Name: "X", Phones: []dto.LeadPhoneRequest{{Digits: "11999990000"}}}, nil)
	assertPersistence(t, err)

	_, err = flow.DeleteLead(ctx, 1, nil)
	assertPersistence(t, err)

	_, err = flow.GetLead(ctx, 1, nil)
	assertPersistence(t, err)

	_, err = flow.ListLeads(ctx, nil, nil)
	assertPersistence(t, err)

	_, err = flow.GetStats(ctx, nil)
	assertPersistence(t, err)
}
