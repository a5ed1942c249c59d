package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/codecycle/internal/auth"
	"github.com/example/codecycle/internal/catalog"
	"github.com/example/codecycle/internal/database"
	"github.com/example/codecycle/internal/leetcode"
	"github.com/example/codecycle/internal/review"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var now = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

var validCreds = leetcode.Credentials{SessionCookie: "sess", CSRFToken: "csrf"}

type fakeLeetCode struct{}

func (fakeLeetCode) ValidateCredentials(_ context.Context, username string, creds leetcode.Credentials) error {
	if strings.EqualFold(username, "alice") && creds == validCreds {
		return nil
	}
	return leetcode.ErrInvalidCredentials
}

func (fakeLeetCode) FetchSolvedProblems(context.Context, string, leetcode.Credentials) (*leetcode.SolvedResult, error) {
	solved := now.AddDate(0, 0, -30)
	return &leetcode.SolvedResult{
		Strategy: leetcode.StrategyQuestionList,
		Problems: []leetcode.SolvedProblem{
			{Slug: "two-sum", Title: "Two Sum", Difficulty: "Easy", Tags: []string{"Array"}},
			{Slug: "clone-graph", Title: "Clone Graph", Difficulty: "Medium", Tags: []string{"Graph"}, LastSolvedAt: &solved},
		},
	}, nil
}

func (fakeLeetCode) FetchUserProfile(_ context.Context, username string, creds leetcode.Credentials) (*leetcode.Profile, error) {
	if creds != validCreds {
		return nil, leetcode.ErrInvalidCredentials
	}
	return &leetcode.Profile{Username: username, Solved: []leetcode.DifficultyCount{{Difficulty: "All", Count: 2}}}, nil
}

type testAPI struct {
	t      *testing.T
	server *Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	problems := database.NewProblemRepository(db)
	reviews := database.NewReviewRepository(db)
	users := database.NewUserRepository(db)
	stats := database.NewStatisticsRepository(db)

	sealer, err := auth.NewSealer(testKey)
	require.NoError(t, err)
	lc := fakeLeetCode{}
	authSvc := auth.NewService(users, lc, sealer, auth.NewSessions("test-secret", time.Hour), nil)
	reviewSvc := review.NewService(problems, reviews, users, stats, review.Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})

	srv := New(Services{
		Reviews:  reviewSvc,
		Auth:     authSvc,
		Syncer:   catalog.NewSyncer(lc, problems, authSvc, users, nil),
		Profiles: lc,
		History:  reviews,
	}, Options{CORSOrigins: []string{"chrome-extension://codecycle"}}, nil)
	return &testAPI{t: t, server: srv}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login() string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "Alice", "sessionCookie": "sess", "csrfToken": "csrf",
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(a.t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decode(t, rec)["error"])

	rec = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "sessionCookie": "wrong", "csrfToken": "csrf",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "Alice", "sessionCookie": "sess", "csrfToken": "csrf",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "alice", body["username"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/review/settings", nil)
	req.AddCookie(cookies[0])
	settings := httptest.NewRecorder()
	api.server.Handler().ServeHTTP(settings, req)
	assert.Equal(t, http.StatusOK, settings.Code)

	logout := api.do(http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, logout.Code)
	require.Len(t, logout.Result().Cookies(), 1)
	assert.Equal(t, -1, logout.Result().Cookies()[0].MaxAge)
}

func TestRequiresSession(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/review/today", "/api/review/stats", "/api/problems", "/api/leetcode/solved"} {
		rec := api.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Unauthorized", decode(t, rec)["error"], path)
	}

	rec := api.do(http.MethodGet, "/api/review/today", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReviewFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.login()

	rec := api.do(http.MethodGet, "/api/leetcode/solved", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	synced := decode(t, rec)
	assert.EqualValues(t, 2, synced["count"])
	assert.EqualValues(t, 2, synced["created"])

	rec = api.do(http.MethodGet, "/api/review/today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode(t, rec)
	assert.Equal(t, "2024-06-15", queue["date"])
	assert.EqualValues(t, 5, queue["total"])
	remaining := queue["remaining"].([]interface{})
	require.Len(t, remaining, 2)
	assert.Equal(t, "two-sum", remaining[0].(map[string]interface{})["slug"])
	assert.Equal(t, true, remaining[0].(map[string]interface{})["isNew"])

	rec = api.do(http.MethodPost, "/api/review/submit", token, map[string]string{"slug": "two-sum", "result": "SOLVED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	submitted := decode(t, rec)
	assert.Equal(t, true, submitted["success"])
	assert.EqualValues(t, 2, submitted["nextInterval"])
	assert.Equal(t, "2024-06-17", submitted["nextReviewAt"])

	rec = api.do(http.MethodGet, "/api/review/today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue = decode(t, rec)
	assert.EqualValues(t, 1, queue["completedToday"])

	rec = api.do(http.MethodGet, "/api/review/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.EqualValues(t, 1, stats["tracked"])
	assert.EqualValues(t, 1, stats["reviewedToday"])
	assert.EqualValues(t, 2, stats["catalogSize"])
}

func TestSubmitErrors(t *testing.T) {
	api := newTestAPI(t)
	token := api.login()
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/leetcode/solved", token, nil).Code)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"missing result", map[string]string{"slug": "two-sum"}, http.StatusBadRequest},
		{"missing slug", map[string]string{"result": "SOLVED"}, http.StatusBadRequest},
		{"invalid result", map[string]string{"slug": "two-sum", "result": "MAYBE"}, http.StatusBadRequest},
		{"lowercase result", map[string]string{"slug": "two-sum", "result": "solved"}, http.StatusBadRequest},
		{"unknown slug", map[string]string{"slug": "nope", "result": "SOLVED"}, http.StatusNotFound},
		{"malformed body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/review/submit", token, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestSettings(t *testing.T) {
	api := newTestAPI(t)
	token := api.login()

	rec := api.do(http.MethodGet, "/api/review/settings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, decode(t, rec)["dailyGoal"])

	rec = api.do(http.MethodPut, "/api/review/settings", token, map[string]int{"dailyGoal": 21})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "dailyGoal must be between 1 and 20", decode(t, rec)["error"])

	rec = api.do(http.MethodPut, "/api/review/settings", token, map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/review/settings", token, map[string]int{"dailyGoal": 8, "defaultInterval": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode(t, rec)
	assert.EqualValues(t, 8, updated["dailyGoal"])
	assert.EqualValues(t, 2, updated["maxNewPerDay"])
	assert.EqualValues(t, 3, updated["defaultInterval"])

	rec = api.do(http.MethodGet, "/api/review/settings", token, nil)
	assert.EqualValues(t, 8, decode(t, rec)["dailyGoal"])
}

func TestProblemsProfileAndExport(t *testing.T) {
	api := newTestAPI(t)
	token := api.login()
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/leetcode/solved", token, nil).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/review/submit", token,
		map[string]string{"slug": "clone-graph", "result": "INSTANT"}).Code)

	rec := api.do(http.MethodGet, "/api/problems", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	topics := decode(t, rec)["topics"].([]interface{})
	require.Len(t, topics, 2)
	assert.Equal(t, "Array", topics[0].(map[string]interface{})["topic"])

	rec = api.do(http.MethodGet, "/api/leetcode/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode(t, rec)["username"])

	rec = api.do(http.MethodGet, "/api/review/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("History")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "clone-graph", rows[1][1])
	assert.Equal(t, "INSTANT", rows[1][3])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{review.ErrNotAuthenticated, http.StatusUnauthorized},
		{review.ErrInvalidOutcome, http.StatusBadRequest},
		{review.ErrProblemNotFound, http.StatusNotFound},
		{review.ErrRepositoryUnavailable, http.StatusServiceUnavailable},
		{auth.ErrMissingFields, http.StatusBadRequest},
		{badRequest("nope"), http.StatusBadRequest},
		{leetcode.ErrInvalidCredentials, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, msg := statusFor(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
}
