package tokens

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
)

func certifiedCredit(t *testing.T, registry *credits.Registry) *credits.Credit {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	credit := &credits.Credit{
		ID:               credits.NewCreditID(now),
		ProducerID:       uuid.New(),
		FacilityName:     "Test Plant",
		FacilityLocation: "Hamburg, DE",
		EnergySource:     credits.SourceWind,
		EnergyAmountMWh:  30,
		ProductionDate:   now,
		Status:           credits.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	req := &credits.CreditRequest{ID: uuid.New(), CreditID: credit.ID, ProducerID: credit.ProducerID, SubmittedAt: now}
	require.NoError(t, registry.CreateSubmission(ctx, credit, req))
	require.NoError(t, registry.Transition(ctx, credit.ID, credits.StatusPending, credits.StatusUnderReview))
	require.NoError(t, registry.Certify(ctx, credit.ID, uuid.New(), now))
	return credit
}

func TestLocalMintWhenNoIssuerConfigured(t *testing.T) {
	registry := credits.NewRegistry(credits.NewMemoryRepository(), zap.NewNop())
	credit := certifiedCredit(t, registry)

	issuer := NewIssuer(registry, "", 0, time.Millisecond, zap.NewNop())
	issuer.IssueAsync(credit)
	issuer.Wait()

	reloaded, err := registry.GetCredit(context.Background(), credit.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.TokenID)
	assert.Contains(t, *reloaded.TokenID, "HLT-")
}

func TestRemoteIssuanceWithRetries(t *testing.T) {
	registry := credits.NewRegistry(credits.NewMemoryRepository(), zap.NewNop())
	credit := certifiedCredit(t, registry)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/v1/tokens", r.URL.Path)
		var in issueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, credit.ID, in.CreditID)
		json.NewEncoder(w).Encode(issueResponse{TokenID: "tok-chain-0042"})
	}))
	defer server.Close()

	issuer := NewIssuer(registry, server.URL, 2, time.Millisecond, zap.NewNop())
	issuer.IssueAsync(credit)
	issuer.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	reloaded, err := registry.GetCredit(context.Background(), credit.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.TokenID)
	assert.Equal(t, "tok-chain-0042", *reloaded.TokenID)
}

func TestIssuanceGivesUpAfterRetries(t *testing.T) {
	registry := credits.NewRegistry(credits.NewMemoryRepository(), zap.NewNop())
	credit := certifiedCredit(t, registry)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	issuer := NewIssuer(registry, server.URL, 1, time.Millisecond, zap.NewNop())
	issuer.IssueAsync(credit)
	issuer.Wait()

	// The credit survives without a token; issuance is best-effort.
	reloaded, err := registry.GetCredit(context.Background(), credit.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.TokenID)
}
