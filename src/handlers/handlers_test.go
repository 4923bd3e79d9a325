package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	db "bankflow-server/src/db/sql"
	"bankflow-server/src/ingest"
	"bankflow-server/src/models"
	"bankflow-server/src/override"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeIngester struct {
	accountID string
	from, to  time.Time
	result    ingest.Result
	err       error
}

func (f *fakeIngester) Ingest(ctx context.Context, accountID string, from, to time.Time, auth models.AuthContext) (ingest.Result, error) {
	f.accountID, f.from, f.to = accountID, from, to
	return f.result, f.err
}

type fakeReceiver struct {
	accountID string
	seen      map[string]bool
	err       error
}

func (f *fakeReceiver) IngestRecords(ctx context.Context, accountID string, records []models.RawTransaction) (ingest.Result, error) {
	f.accountID = accountID
	if f.err != nil {
		return ingest.Result{}, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	result := ingest.Result{Fetched: len(records)}
	for _, raw := range records {
		if f.seen[raw.TransactionID] {
			result.Duplicates++
			continue
		}
		f.seen[raw.TransactionID] = true
		result.Inserted++
	}
	return result, nil
}

type fakeSearcher struct {
	accountID string
	from, to  *time.Time
	category  *models.Category
	rows      []models.Transaction
}

func (f *fakeSearcher) Search(ctx context.Context, accountID string, from, to *time.Time, category *models.Category) ([]models.Transaction, error) {
	f.accountID, f.from, f.to, f.category = accountID, from, to, category
	return f.rows, nil
}

type fakeOverrider struct {
	rows map[string]models.Transaction
}

func (f *fakeOverrider) SetManualCategory(ctx context.Context, externalID string, category models.Category) (*models.Transaction, error) {
	if !category.Assignable() {
		return nil, override.ErrInvalidCategory
	}
	t, ok := f.rows[externalID]
	if !ok {
		return nil, override.ErrRecordNotFound
	}
	t.Category, t.ManuallyClassified = category, true
	f.rows[externalID] = t
	return &t, nil
}

func (f *fakeOverrider) ClearManualCategory(ctx context.Context, externalID string) (*models.Transaction, error) {
	t, ok := f.rows[externalID]
	if !ok {
		return nil, override.ErrRecordNotFound
	}
	t.Category, t.ManuallyClassified = models.CategoryUndefined, false
	f.rows[externalID] = t
	return &t, nil
}

type fakeRuleStore struct {
	rules  map[int]models.ClassificationRule
	nextID int
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{rules: map[int]models.ClassificationRule{}, nextID: 1}
}

func (f *fakeRuleStore) CreateRule(ctx context.Context, rule *models.ClassificationRule) (*models.ClassificationRule, error) {
	for _, r := range f.rules {
		if r.Kind == models.RuleKindKeyword && strings.EqualFold(r.Keyword, rule.Keyword) {
			return nil, db.ErrDuplicateKeyword
		}
	}
	rule.ID = f.nextID
	f.nextID++
	f.rules[rule.ID] = *rule
	return rule, nil
}

func (f *fakeRuleStore) GetRuleByID(ctx context.Context, ruleID int) (*models.ClassificationRule, error) {
	r, ok := f.rules[ruleID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRuleStore) ListAllRules(ctx context.Context) ([]models.ClassificationRule, error) {
	var out []models.ClassificationRule
	for id := 1; id < f.nextID; id++ {
		if r, ok := f.rules[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleStore) UpdateRule(ctx context.Context, rule *models.ClassificationRule) (*models.ClassificationRule, error) {
	if _, ok := f.rules[rule.ID]; !ok {
		return nil, models.ErrNotFound
	}
	f.rules[rule.ID] = *rule
	return rule, nil
}

func (f *fakeRuleStore) DeleteRule(ctx context.Context, ruleID int) error {
	if _, ok := f.rules[ruleID]; !ok {
		return models.ErrNotFound
	}
	delete(f.rules, ruleID)
	return nil
}

type countingCache struct {
	invalidations int
}

func (c *countingCache) Invalidate() {
	c.invalidations++
}

func serve(t *testing.T, pattern, method string, h http.HandlerFunc, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestDownloadTransactions(t *testing.T) {
	ing := &fakeIngester{result: ingest.Result{Pages: 1, Fetched: 2, Inserted: 2}}
	h := DownloadTransactions(ing, models.AuthContext{}, "ACC1")

	rec := serve(t, "/download", http.MethodPost, h, "/download?from=2024-01-01&to=2024-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACC1", ing.accountID)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), ing.to)

	var got ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Inserted)
}

func TestDownloadTransactions_BadInput(t *testing.T) {
	h := DownloadTransactions(&fakeIngester{}, models.AuthContext{}, "ACC1")

	for _, target := range []string{
		"/download",
		"/download?from=2024-01-01",
		"/download?from=2024-02-01&to=2024-01-01",
		"/download?from=yesterday&to=2024-01-01",
		"/download?from=2024-01-01&to=2024-01-02&account_id=bad%20id",
	} {
		rec := serve(t, "/download", http.MethodPost, h, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestDownloadTransactions_PartialFailure(t *testing.T) {
	ing := &fakeIngester{
		result: ingest.Result{Pages: 1, Inserted: 100},
		err:    &ingest.IngestError{AccountID: "ACC1", Offset: 100, Err: ingest.ErrRemoteFetch},
	}
	rec := serve(t, "/download", http.MethodPost, DownloadTransactions(ing, models.AuthContext{}, "ACC1"),
		"/download?from=2024-01-01&to=2024-01-31", "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 100, body["offset"])
}

func TestReceiveTransactions_RepostCountsDuplicates(t *testing.T) {
	recv := &fakeReceiver{}
	h := ReceiveTransactions(recv, "ACC1")
	body := `{"booked":[{"transactionId":"TX1","bookingDate":"2024-01-15","extra":true},{"transactionId":"TX2","bookingDate":"2024-01-16"}]}`

	rec := serve(t, "/webhook", http.MethodPost, h, "/webhook?account_id=ACC2", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACC2", recv.accountID)
	var first ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, 2, first.Inserted)

	rec = serve(t, "/webhook", http.MethodPost, h, "/webhook?account_id=ACC2", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var second ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
}

func TestReceiveTransactions_BadInput(t *testing.T) {
	h := ReceiveTransactions(&fakeReceiver{}, "ACC1")

	for _, tc := range []struct {
		target, body string
	}{
		{"/webhook", `{}`},
		{"/webhook", `not json`},
		{"/webhook?account_id=bad%20id", `{"booked":[]}`},
	} {
		rec := serve(t, "/webhook", http.MethodPost, h, tc.target, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
	}
}

func TestReceiveTransactions_StoreFailure(t *testing.T) {
	recv := &fakeReceiver{err: &ingest.IngestError{AccountID: "ACC1", Offset: 1, Err: errors.New("disk full")}}
	rec := serve(t, "/webhook", http.MethodPost, ReceiveTransactions(recv, "ACC1"), "/webhook", `{"booked":[]}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["offset"])
}

func TestSearchTransactions(t *testing.T) {
	s := &fakeSearcher{rows: []models.Transaction{{ExternalID: "TX1", AccountID: "ACC2"}}}
	h := SearchTransactions(s, "ACC1")

	rec := serve(t, "/transactions", http.MethodGet, h, "/transactions?account_id=ACC2&from=2024-01-01&to=2024-01-31&category=cost", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACC2", s.accountID)
	require.NotNil(t, s.category)
	assert.Equal(t, models.CategoryCost, *s.category)
	assert.Contains(t, rec.Body.String(), `"external_id":"TX1"`)

	rec = serve(t, "/transactions", http.MethodGet, h, "/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACC1", s.accountID)
	assert.Nil(t, s.from)
	assert.Nil(t, s.category)
}

func TestSearchTransactions_BadInput(t *testing.T) {
	h := SearchTransactions(&fakeSearcher{}, "ACC1")
	for _, target := range []string{
		"/transactions?from=2024-01-01",
		"/transactions?to=2024-01-01",
		"/transactions?category=OTHER",
	} {
		rec := serve(t, "/transactions", http.MethodGet, h, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSetTransactionCategory(t *testing.T) {
	o := &fakeOverrider{rows: map[string]models.Transaction{"TX1": {ExternalID: "TX1"}}}
	h := SetTransactionCategory(o)
	pattern := "/transactions/{external_id}/category"

	rec := serve(t, pattern, http.MethodPut, h, "/transactions/TX1/category", `{"category":"PROFIT"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, o.rows["TX1"].ManuallyClassified)

	rec = serve(t, pattern, http.MethodPut, h, "/transactions/TX1/category", `{"category":"UNDEFINED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, pattern, http.MethodPut, h, "/transactions/TX9/category", `{"category":"COST"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, pattern, http.MethodPut, h, "/transactions/TX1/category", `{"category":"SOMETHING"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearTransactionCategory(t *testing.T) {
	o := &fakeOverrider{rows: map[string]models.Transaction{"TX1": {ExternalID: "TX1", ManuallyClassified: true}}}
	pattern := "/transactions/{external_id}/category"

	rec := serve(t, pattern, http.MethodDelete, ClearTransactionCategory(o), "/transactions/TX1/category", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, o.rows["TX1"].ManuallyClassified)

	rec = serve(t, pattern, http.MethodDelete, ClearTransactionCategory(o), "/transactions/TX9/category", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClassificationRuleLifecycle(t *testing.T) {
	store := newFakeRuleStore()
	cache := &countingCache{}

	rec := serve(t, "/rules", http.MethodPost, CreateClassificationRule(store, cache), "/rules",
		`{"keyword":"supermercato","category":"COSTO"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.ClassificationRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.RuleKindKeyword, created.Kind)
	assert.Equal(t, models.CategoryCost, created.Category)

	rec = serve(t, "/rules", http.MethodPost, CreateClassificationRule(store, cache), "/rules",
		`{"keyword":"SUPERMERCATO","category":"PROFIT"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, "/rules", http.MethodPost, CreateClassificationRule(store, cache), "/rules",
		`{"conditions":[{"field":"creditorName","keywords":["acme"]}],"category":"PROFIT"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"conditions"`)

	rec = serve(t, "/rules/{rule_id}", http.MethodPut, UpdateClassificationRule(store, cache), "/rules/1",
		`{"keyword":"spesa","category":"COST"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "spesa", store.rules[1].Keyword)

	rec = serve(t, "/rules/{rule_id}", http.MethodGet, GetClassificationRuleByID(store), "/rules/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, "/rules", http.MethodGet, GetAllClassificationRules(store), "/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []models.ClassificationRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = serve(t, "/rules/{rule_id}", http.MethodDelete, DeleteClassificationRule(store, cache), "/rules/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, "/rules/{rule_id}", http.MethodGet, GetClassificationRuleByID(store), "/rules/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 4, cache.invalidations)
}

func TestCreateClassificationRule_Invalid(t *testing.T) {
	store := newFakeRuleStore()
	cache := &countingCache{}
	h := CreateClassificationRule(store, cache)

	for _, body := range []string{
		`{"keyword":"affitto","category":"UNDEFINED"}`,
		`{"keyword":"  ","category":"COST"}`,
		`{"kind":"conditions","conditions":[{"field":"iban","keywords":["x"]}],"category":"COST"}`,
		`{"kind":"regex","keyword":"x","category":"COST"}`,
		`not json`,
	} {
		rec := serve(t, "/rules", http.MethodPost, h, "/rules", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, store.rules)
	assert.Zero(t, cache.invalidations)
}

func TestRuleHandlers_BadID(t *testing.T) {
	rec := serve(t, "/rules/{rule_id}", http.MethodGet, GetClassificationRuleByID(newFakeRuleStore()), "/rules/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeReclassifier struct {
	accountID string
	err       error
}

func (f *fakeReclassifier) ReclassifyAll(ctx context.Context, accountID string) (int, error) {
	f.accountID = accountID
	return 4, f.err
}

func TestReclassifyTransactions(t *testing.T) {
	rc := &fakeReclassifier{}
	rec := serve(t, "/rules/reclassify", http.MethodPost, ReclassifyTransactions(rc), "/rules/reclassify?account_id=ACC1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reclassified":4}`, rec.Body.String())
	assert.Equal(t, "ACC1", rc.accountID)

	rc.err = errors.New("db down")
	rec = serve(t, "/rules/reclassify", http.MethodPost, ReclassifyTransactions(rc), "/rules/reclassify", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func tokenRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIssueToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	secret := []byte("jwt-secret")
	h := IssueToken(TokenConfig{ClientID: "reporting", ClientSecretHash: string(hash), JWTSecret: secret})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, tokenRequest(url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"reporting"},
		"client_secret": {"s3cret"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Bearer", body.TokenType)
	assert.Equal(t, 3600, body.ExpiresIn)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(body.AccessToken, claims, func(*jwt.Token) (interface{}, error) { return secret, nil })
	require.NoError(t, err)
	assert.Equal(t, "reporting", claims["sub"])
}

func TestIssueToken_Rejects(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	h := IssueToken(TokenConfig{ClientID: "reporting", ClientSecretHash: string(hash), JWTSecret: []byte("x")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, tokenRequest(url.Values{"grant_type": {"password"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_grant_type")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, tokenRequest(url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"reporting"},
		"client_secret": {"wrong"},
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_client")
}

type fakeClearer struct{ name string }

func (f *fakeClearer) Clear(name string) bool {
	f.name = name
	return true
}

func TestClearCache(t *testing.T) {
	c := &fakeClearer{}
	rec := serve(t, "/cache/clear/{cache_name}", http.MethodPost, ClearCache(c), "/cache/clear/rules", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "rules", c.name)
}
