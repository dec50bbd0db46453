package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadTableNames(t *testing.T) {
	assert.Equal(t, "leads", Lead{}.TableName())
	assert.Equal(t, "lead_emails", LeadEmail{}.TableName())
	assert.Equal(t, "lead_phones", LeadPhone{}.TableName())
}

func TestLeadBeforeCreate(t *testing.T) {
	t.Run("StampsZeroCreatedAt", func(t *testing.T) {
		l := &Lead{Name: "Ada"}
		require.NoError(t, l.BeforeCreate(nil))
		assert.False(t, l.CreatedAt.IsZero())
		assert.Equal(t, time.UTC, l.CreatedAt.Location())
	})

	t.Run("KeepsAssignedCreatedAt", func(t *testing.T) {
		ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		p := &LeadPhone{Digits: "11999990000", CreatedAt: ts}
		require.NoError(t, p.BeforeCreate(nil))
		assert.Equal(t, ts, p.CreatedAt)
	})
}

func TestLeadSortAllowList(t *testing.T) {
	for _, f := range []string{"name", "company", "source", "created_at"} {
		assert.True(t, IsValidLeadSortField(f), f)
	}
	for _, f := range []string{"", "id", "notes", "name; DROP TABLE leads"} {
		assert.False(t, IsValidLeadSortField(f), f)
	}
	assert.True(t, IsValidSortOrder("asc"))
	assert.True(t, IsValidSortOrder("desc"))
	assert.False(t, IsValidSortOrder("DESC"))

	def := DefaultLeadSort()
	assert.Equal(t, LeadSortByCreatedAt, def.Field)
	assert.Equal(t, SortOrderDesc, def.Order)
}

func TestLeadStatsTopSource(t *testing.T) {
	var nilStats *LeadStats
	assert.Nil(t, nilStats.TopSource())
	assert.Nil(t, (&LeadStats{}).TopSource())

	s := &LeadStats{BySource: []SourceCount{{Source: "Referral", Count: 3}, {Source: "Site", Count: 1}}}
	require.NotNil(t, s.TopSource())
	assert.Equal(t, "Referral", *s.TopSource())
}
