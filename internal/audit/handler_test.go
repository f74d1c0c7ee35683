package audit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListParams_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/audit", nil)
	params := parseListParams(r)

	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 20, params.PageSize)
	assert.Empty(t, params.EventType)
	assert.Nil(t, params.From)
	assert.Nil(t, params.To)
}

func TestParseListParams_Full(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/api/v1/audit?event_type=quota.denied&page=3&page_size=50&from=2026-08-01T00:00:00Z&to=2026-08-29T00:00:00Z", nil)
	params := parseListParams(r)

	assert.Equal(t, "quota.denied", params.EventType)
	assert.Equal(t, 3, params.Page)
	assert.Equal(t, 50, params.PageSize)
	require.NotNil(t, params.From)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), *params.From)
	require.NotNil(t, params.To)
}

func TestParseListParams_RejectsBadValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/audit?page=-1&page_size=9999&from=yesterday", nil)
	params := parseListParams(r)

	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 20, params.PageSize)
	assert.Nil(t, params.From)
}
