package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dialin/internal/auth"
	"github.com/Veraticus/dialin/internal/common"
	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/model"
	"github.com/Veraticus/dialin/internal/service"
	"github.com/Veraticus/dialin/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

type analyzerFunc func(ctx context.Context, in llm.AnalysisInput, images []llm.ImagePart) (string, error)

func (f analyzerFunc) Analyze(ctx context.Context, in llm.AnalysisInput, images []llm.ImagePart) (string, error) {
	return f(ctx, in, images)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	local, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, local.Migrate(context.Background()))

	store := storage.NewStore(nil, local, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestServer(t *testing.T, secret string, analyzer Analyzer) (*Server, service.StateStore) {
	t.Helper()
	store := newTestStore(t)
	opts := Options{
		Store:     store,
		JWTSecret: secret,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return time.Date(2025, 4, 1, 7, 30, 0, 0, time.UTC) },
	}
	if analyzer != nil {
		opts.Analyzer = analyzer
	}
	srv, err := New(opts)
	require.NoError(t, err)
	return srv, store
}

func do(t *testing.T, srv *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func bearer(t *testing.T, user string) []string {
	t.Helper()
	token, err := auth.Issue(testSecret, user, time.Hour, time.Now())
	require.NoError(t, err)
	return []string{"Authorization", "Bearer " + token}
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestDiagnose(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodPost, "/api/diagnose", `{"inputs":{"dose":18,"cupYield":36,"clicks":8,"extractionTime":20,"taste":1,"crema":"pale"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[struct {
		Diagnosis struct {
			Kind            string `json:"kind"`
			Ratio           string `json:"ratio"`
			SuggestedClicks int    `json:"suggestedClicks"`
		} `json:"diagnosis"`
	}](t, rec)
	assert.Equal(t, string(model.KindUnderExtracted), resp.Diagnosis.Kind)
	assert.Equal(t, "1:2.0", resp.Diagnosis.Ratio)
	assert.Equal(t, 7, resp.Diagnosis.SuggestedClicks)
}

func TestDiagnose_BadBody(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	rec := do(t, srv, http.MethodPost, "/api/diagnose", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestAnalyze(t *testing.T) {
	var got llm.AnalysisInput
	var gotImages []llm.ImagePart
	srv, _ := newTestServer(t, "", analyzerFunc(func(_ context.Context, in llm.AnalysisInput, images []llm.ImagePart) (string, error) {
		got = in
		gotImages = images
		return "<h3>Grind finer</h3>", nil
	}))

	rec := do(t, srv, http.MethodPost, "/api/analyze", map[string]any{
		"inputs": map[string]any{
			"method":      "espresso",
			"machine":     "Gaggia Classic",
			"accessories": []string{"WDT"},
			"espresso":    map[string]any{"dose": "18", "cupYield": "40", "extractionTime": "40", "taste": "3"},
		},
		"imageParts": []map[string]any{
			{"inlineData": map[string]any{"mimeType": "image/jpeg", "data": "cHVjaw=="}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "<h3>Grind finer</h3>", decodeBody[analyzeResponse](t, rec).Analysis)

	assert.Equal(t, "Gaggia Classic", got.Machine)
	assert.Equal(t, []string{"WDT"}, got.Accessories)
	require.NotNil(t, got.Diagnosis)
	assert.Equal(t, model.KindOverExtracted, got.Diagnosis.Kind)
	require.Len(t, gotImages, 1)
	assert.Equal(t, []byte("puck"), gotImages[0].Data)
}

func TestAnalyze_ExtractionAndActiveSetup(t *testing.T) {
	var got llm.AnalysisInput
	srv, _ := newTestServer(t, "", analyzerFunc(func(_ context.Context, in llm.AnalysisInput, _ []llm.ImagePart) (string, error) {
		got = in
		return "<p>ok</p>", nil
	}))

	rec := do(t, srv, http.MethodPost, "/api/analyze", map[string]any{
		"extraction":  map[string]any{"method": "filter", "dose": 15, "cupYield": 250},
		"activeSetup": map[string]any{"machine": "V60", "grinder": "Comandante", "accessories": []string{"Scale", "Scale"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.MethodFilter, got.Method)
	assert.Equal(t, "250", got.Params.CupYield)
	assert.Equal(t, "V60", got.Machine)
	assert.Equal(t, []string{"Scale"}, got.Accessories)
}

func TestAnalyze_Failures(t *testing.T) {
	tests := []struct {
		err        error
		name       string
		wantStatus int
	}{
		{name: "upstream failure", err: errors.New("connection refused"), wantStatus: http.StatusBadGateway},
		{name: "timeout", err: errors.Join(common.ErrMaxRetries, context.DeadlineExceeded), wantStatus: http.StatusGatewayTimeout},
		{name: "user message", err: common.NewUserError("The AI service rejected the photo", errors.New("400")), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(t, "", analyzerFunc(func(context.Context, llm.AnalysisInput, []llm.ImagePart) (string, error) {
				return "", tt.err
			}))

			rec := do(t, srv, http.MethodPost, "/api/analyze", `{"inputs":{}}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, decodeBody[errorResponse](t, rec).Error)

			_, source, err := store.Load(context.Background(), guestUser)
			require.NoError(t, err)
			assert.Equal(t, service.SourceDefault, source, "AI failure leaves state untouched")
		})
	}
}

func TestAnalyze_UserMessageIsSurfaced(t *testing.T) {
	srv, _ := newTestServer(t, "", analyzerFunc(func(context.Context, llm.AnalysisInput, []llm.ImagePart) (string, error) {
		return "", common.NewUserError("The AI service rejected the photo", errors.New("400"))
	}))
	rec := do(t, srv, http.MethodPost, "/api/analyze", `{"inputs":{}}`)
	assert.Equal(t, "The AI service rejected the photo", decodeBody[errorResponse](t, rec).Error)
}

func TestAnalyze_Unavailable(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	rec := do(t, srv, http.MethodPost, "/api/analyze", `{"inputs":{}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyze_RejectsBadImages(t *testing.T) {
	srv, _ := newTestServer(t, "", analyzerFunc(func(context.Context, llm.AnalysisInput, []llm.ImagePart) (string, error) {
		t.Fatal("analyzer must not be called")
		return "", nil
	}))
	rec := do(t, srv, http.MethodPost, "/api/analyze", map[string]any{
		"inputs":     map[string]any{},
		"imageParts": []map[string]any{{"inlineData": map[string]any{"mimeType": "application/pdf", "data": "eA=="}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_NewerRequestSupersedesOlder(t *testing.T) {
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	srv, _ := newTestServer(t, "", analyzerFunc(func(ctx context.Context, _ llm.AnalysisInput, _ []llm.ImagePart) (string, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n == 1 {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "<p>newer</p>", nil
	}))

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- do(t, srv, http.MethodPost, "/api/analyze", `{"inputs":{}}`, clientIDHeader, "tab-1")
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first analysis never started")
	}

	second := do(t, srv, http.MethodPost, "/api/analyze", `{"inputs":{}}`, clientIDHeader, "tab-1")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "<p>newer</p>", decodeBody[analyzeResponse](t, second).Analysis)

	select {
	case first := <-firstDone:
		assert.Equal(t, http.StatusConflict, first.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("first analysis was not canceled")
	}
	assert.Equal(t, 0, srv.inflight.len())
}

func TestGuestMode_StateRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[stateResponse](t, rec)
	assert.Equal(t, service.SourceDefault, state.Source)
	assert.False(t, state.RemoteAvailable)
	assert.Equal(t, model.CurrentSchemaVersion, state.Document.SchemaVersion)

	rec = do(t, srv, http.MethodPut, "/api/state", `{"machine":"Gaggia","dose":"17","ratio":"1:2","crema":"dark"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.SourceLocal, decodeBody[saveResponse](t, rec).Source)

	rec = do(t, srv, http.MethodGet, "/api/state", nil)
	state = decodeBody[stateResponse](t, rec)
	assert.Equal(t, service.SourceLocal, state.Source)
	assert.Equal(t, "Gaggia", state.Document.Inputs.Machine)
	assert.Equal(t, "34", state.Document.Inputs.Espresso.CupYield)
	assert.Equal(t, "dark", state.Document.Inputs.Espresso.Crema)
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, testSecret, nil)

	rec := do(t, srv, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/state", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/state", nil, bearer(t, "alice")...)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/diagnose", `{"inputs":{}}`)
	assert.Equal(t, http.StatusOK, rec.Code, "diagnose is public")
}

func TestAuth_UsersAreIsolated(t *testing.T) {
	srv, _ := newTestServer(t, testSecret, nil)

	rec := do(t, srv, http.MethodPost, "/api/setups", map[string]any{"name": "Home"}, bearer(t, "alice")...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/state", nil, bearer(t, "bob")...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[stateResponse](t, rec).Document.Setups)
}

func TestSetupAndRecipeLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodPost, "/api/setups", map[string]any{
		"name": "Home bar", "machine": "Gaggia Classic", "grinder": "K6", "method": "espresso",
		"accessories": []string{"WDT", " WDT ", "Scale"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setup := decodeBody[setupResponse](t, rec).Setup
	require.NotEmpty(t, setup.ID)
	assert.Equal(t, []string{"Scale", "WDT"}, setup.Accessories)

	rec = do(t, srv, http.MethodPut, "/api/setups/"+setup.ID+"/active", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Gaggia Classic", decodeBody[activeSetupResponse](t, rec).Inputs.Machine)

	rec = do(t, srv, http.MethodPost, "/api/recipes", map[string]any{"name": "Morning shot"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recipe := decodeBody[recipeResponse](t, rec).Recipe
	assert.Equal(t, setup.ID, recipe.SetupID)
	assert.Equal(t, time.Date(2025, 4, 1, 7, 30, 0, 0, time.UTC), recipe.CreatedAt)
	assert.Equal(t, "18", recipe.Params.Dose)

	rec = do(t, srv, http.MethodGet, "/api/recipes/"+recipe.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[struct {
		Setup model.Setup `json:"setup"`
	}](t, rec)
	assert.Equal(t, "Home bar", detail.Setup.Name)

	rec = do(t, srv, http.MethodDelete, "/api/setups/"+setup.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/recipes/"+recipe.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "recipe is not cascade-deleted and reports its missing setup")

	rec = do(t, srv, http.MethodDelete, "/api/recipes/"+recipe.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/recipes/"+recipe.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetupRecipes(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodPost, "/api/setups", map[string]any{"name": "Home bar", "machine": "Gaggia Classic"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setup := decodeBody[setupResponse](t, rec).Setup

	rec = do(t, srv, http.MethodGet, "/api/setups/"+setup.ID+"/recipes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(decodeBody[map[string]json.RawMessage](t, rec)["recipes"]))

	for _, name := range []string{"Morning", "Evening"} {
		rec = do(t, srv, http.MethodPost, "/api/recipes", map[string]any{"name": name, "setupId": setup.ID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodGet, "/api/setups/"+setup.ID+"/recipes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[setupRecipesResponse](t, rec)
	assert.Equal(t, "Home bar", got.Setup.Name)
	assert.Len(t, got.Recipes, 2)

	rec = do(t, srv, http.MethodGet, "/api/setups/missing/recipes", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveRecipe_EditAfterSetupDeleted(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodPost, "/api/setups", map[string]any{"name": "Home bar"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setup := decodeBody[setupResponse](t, rec).Setup

	rec = do(t, srv, http.MethodPost, "/api/recipes", map[string]any{"name": "Morning", "setupId": setup.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recipe := decodeBody[recipeResponse](t, rec).Recipe

	rec = do(t, srv, http.MethodDelete, "/api/setups/"+setup.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/recipes", map[string]any{"id": recipe.ID, "name": "Morning v2", "setupId": setup.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "setup was deleted")
}

func TestSaveRecipe_Errors(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodPost, "/api/recipes", map[string]any{"name": "orphan", "setupId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/setups", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPut, "/api/setups/nope/active", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeRecipe_CachesDiagnosis(t *testing.T) {
	var got llm.AnalysisInput
	srv, store := newTestServer(t, "", analyzerFunc(func(_ context.Context, in llm.AnalysisInput, _ []llm.ImagePart) (string, error) {
		got = in
		return "<p>cached</p>", nil
	}))

	rec := do(t, srv, http.MethodPost, "/api/setups", map[string]any{"name": "Pour over", "machine": "V60", "method": "filter"})
	setup := decodeBody[setupResponse](t, rec).Setup
	rec = do(t, srv, http.MethodPost, "/api/recipes", map[string]any{
		"name": "Ethiopia", "setupId": setup.ID, "method": "filter",
		"params": map[string]any{"dose": "15", "cupYield": "250", "extractionTime": "170", "taste": "3"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recipe := decodeBody[recipeResponse](t, rec).Recipe

	rec = do(t, srv, http.MethodPost, "/api/recipes/"+recipe.ID+"/analyze", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "<p>cached</p>", decodeBody[recipeAnalysisResponse](t, rec).Analysis)
	assert.Equal(t, "V60", got.Machine)
	assert.Equal(t, model.MethodFilter, got.Method)
	require.NotNil(t, got.Diagnosis)
	assert.Equal(t, model.KindOverExtracted, got.Diagnosis.Kind)

	doc, _, err := store.Load(context.Background(), guestUser)
	require.NoError(t, err)
	stored, ok := doc.FindRecipe(recipe.ID)
	require.True(t, ok)
	assert.Equal(t, "<p>cached</p>", stored.AIDiagnosis)
}

func TestAnalyzeRecipe_DanglingSetup(t *testing.T) {
	srv, _ := newTestServer(t, "", analyzerFunc(func(context.Context, llm.AnalysisInput, []llm.ImagePart) (string, error) {
		t.Fatal("analyzer must not be called")
		return "", nil
	}))

	rec := do(t, srv, http.MethodPut, "/api/state", map[string]any{
		"schemaVersion": 2,
		"setups":        []any{},
		"recipes": []any{
			map[string]any{"id": "r1", "name": "lost", "setupId": "gone", "method": "espresso"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/recipes/r1/analyze", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestClientKey(t *testing.T) {
	newCtx := func(header string, user string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		c.Request.RemoteAddr = "10.0.0.1:1234"
		if header != "" {
			c.Request.Header.Set(clientIDHeader, header)
		}
		if user != "" {
			c.Set(userKey, user)
		}
		return c
	}

	assert.Equal(t, "client:tab", clientKey(newCtx("tab", "alice")))
	assert.Equal(t, "user:alice", clientKey(newCtx("", "alice")))
	assert.Equal(t, "ip:10.0.0.1", clientKey(newCtx("", guestUser)))
}
