// Package fetch implements the remote page sources the ingestion pipeline
// reads from.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bankflow-server/src/models"

	"github.com/google/uuid"
)

// StatementClient talks to a PSD2-style statement API:
// GET {base}/accounts/{accountId}/transactions.
type StatementClient struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewStatementClient(baseURL string, timeout time.Duration) *StatementClient {
	return &StatementClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// FetchPage returns the booked entries of one page. An empty slice means
// there is nothing more to read.
func (c *StatementClient) FetchPage(ctx context.Context, req models.PageRequest, auth models.AuthContext) ([]models.RawTransaction, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/transactions", c.baseURL, url.PathEscape(req.AccountID))
	query := url.Values{}
	query.Set("fromBookingDate", req.From)
	query.Set("toBookingDate", req.To)
	query.Set("limit", strconv.Itoa(req.Limit))
	query.Set("offset", strconv.Itoa(req.Offset))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build statement request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	httpReq.Header.Set("Date", c.now().UTC().Format(http.TimeFormat))
	if auth.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(auth.BearerToken, "Bearer "))
	}
	if auth.PSUID != "" {
		httpReq.Header.Set("PSU-ID", auth.PSUID)
	}
	if auth.ConsentID != "" {
		httpReq.Header.Set("Consent-ID", auth.ConsentID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("statement request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("statement API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page models.TransactionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode statement page: %w", err)
	}
	return page.Booked, nil
}
