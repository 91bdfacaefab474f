package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
)

// Issuer obtains an opaque token identifier for each certified credit from
// an external issuance service and records it on the credit. Issuance is
// asynchronous and best-effort: certification never waits on it and never
// fails because of it.
type Issuer struct {
	registry      *credits.Registry
	client        *http.Client
	issuerURL     string
	maxRetries    int
	retryInterval time.Duration
	logger        *zap.Logger
	wg            sync.WaitGroup
}

// NewIssuer creates a token issuer. An empty issuerURL switches to local
// minting, which keeps development environments working without the
// external service.
func NewIssuer(registry *credits.Registry, issuerURL string, maxRetries int, retryInterval time.Duration, logger *zap.Logger) *Issuer {
	return &Issuer{
		registry:      registry,
		client:        &http.Client{Timeout: 15 * time.Second},
		issuerURL:     strings.TrimRight(issuerURL, "/"),
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		logger:        logger,
	}
}

type issueRequest struct {
	CreditID         string  `json:"credit_id"`
	EnergySource     string  `json:"energy_source"`
	EnergyAmountMWh  float64 `json:"energy_amount_mwh"`
	CO2AvoidedTonnes float64 `json:"co2_avoided_tonnes"`
}

type issueResponse struct {
	TokenID string `json:"token_id"`
}

// IssueAsync starts issuance for a certified credit in the background.
func (i *Issuer) IssueAsync(credit *credits.Credit) {
	snapshot := *credit
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.issue(&snapshot)
	}()
}

// Wait blocks until all in-flight issuances finish. Used on shutdown and in
// tests.
func (i *Issuer) Wait() {
	i.wg.Wait()
}

func (i *Issuer) issue(credit *credits.Credit) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var tokenID string
	var err error
	for attempt := 0; attempt <= i.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(i.retryInterval):
			case <-ctx.Done():
				i.logger.Warn("token issuance abandoned",
					zap.String("credit_id", credit.ID), zap.Error(ctx.Err()))
				return
			}
		}
		tokenID, err = i.mint(ctx, credit)
		if err == nil {
			break
		}
		i.logger.Warn("token issuance attempt failed",
			zap.String("credit_id", credit.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	if err != nil {
		i.logger.Error("token issuance gave up",
			zap.String("credit_id", credit.ID),
			zap.Int("attempts", i.maxRetries+1))
		return
	}

	if err := i.registry.SetTokenID(ctx, credit.ID, tokenID); err != nil {
		i.logger.Error("failed to record token id",
			zap.String("credit_id", credit.ID),
			zap.String("token_id", tokenID),
			zap.Error(err))
		return
	}
	i.logger.Info("token issued",
		zap.String("credit_id", credit.ID),
		zap.String("token_id", tokenID))
}

func (i *Issuer) mint(ctx context.Context, credit *credits.Credit) (string, error) {
	if i.issuerURL == "" {
		short := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:12]
		return fmt.Sprintf("HLT-%s", short), nil
	}

	body, err := json.Marshal(issueRequest{
		CreditID:         credit.ID,
		EnergySource:     string(credit.EnergySource),
		EnergyAmountMWh:  credit.EnergyAmountMWh,
		CO2AvoidedTonnes: credit.CO2AvoidedTonnes,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode issuance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.issuerURL+"/v1/tokens", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build issuance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("issuance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("issuance service returned status %d", resp.StatusCode)
	}

	var out issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode issuance response: %w", err)
	}
	if out.TokenID == "" {
		return "", fmt.Errorf("issuance service returned an empty token id")
	}
	return out.TokenID, nil
}
