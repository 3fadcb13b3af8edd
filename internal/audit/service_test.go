package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ddl, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0002_llm_usage.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(ddl))
	require.NoError(t, err)
	return NewService(pool)
}

func TestUsageSummary_PerTenant(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	a, b := tenant.New(), tenant.New()

	for _, rec := range []UsageRecord{
		{TenantID: a, Endpoint: "chat", Outcome: "success", Provider: "openai", Model: "gpt-4o-mini", InputTokens: 100, OutputTokens: 20, CostUSD: 0.002},
		{TenantID: a, Endpoint: "chat", Outcome: "success", Provider: "openai", Model: "gpt-4o-mini", InputTokens: 50, OutputTokens: 10, CostUSD: 0.001},
		{TenantID: b, Endpoint: "chat", Outcome: "success", Provider: "anthropic", Model: "claude", InputTokens: 10, OutputTokens: 10, CostUSD: 0.5},
	} {
		require.NoError(t, s.LogLLMUsage(ctx, rec))
	}

	got, err := s.GetUsageSummary(ctx, a, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gpt-4o-mini", got[0].Model)
	assert.Equal(t, 2, got[0].TotalCalls)
	assert.Equal(t, 180, got[0].TotalTokens)
	assert.InDelta(t, 0.003, got[0].TotalCostUSD, 1e-9)

	future := time.Now().Add(time.Hour)
	got, err = s.GetUsageSummary(ctx, a, &future, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLogLLMUsage_RequiresTenant(t *testing.T) {
	s := &Service{}
	assert.ErrorIs(t, s.LogLLMUsage(context.Background(), UsageRecord{}), tenant.ErrInvalidID)
}
