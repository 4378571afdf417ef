package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeline/engine/internal/assert/helpers"
	"github.com/hedgeline/engine/internal/pipeline"
	"github.com/hedgeline/engine/internal/server"
	"github.com/hedgeline/engine/pkg/api"
)

func testRouter(t *testing.T, env *helpers.RunEnv) *gin.Engine {
	t.Helper()
	svc, err := pipeline.New(env.Registry, env.Market, env.Chatter, env.Hub)
	require.NoError(t, err)
	return server.NewServer(svc, env.Registry, env.Hub).SetupRoutes()
}

func getJSON(
	t *testing.T, router *gin.Engine, path string, out any,
) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func postRun(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(
		http.MethodPost, "/runs", bytes.NewBufferString(body),
	)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	var res api.HealthResponse
	w := getJSON(t, router, "/health", &res)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hedgeline-engine", res.Service)
	assert.Equal(t, "healthy", res.Status)
	assert.NotEmpty(t, res.Version)
}

func TestListAnalysts(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	var res api.AnalystsListResponse
	w := getJSON(t, router, "/analysts", &res)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, res.Count)
	require.Len(t, res.Analysts, 1)
	assert.Equal(t, api.AnalystKey("warren_buffett"), res.Analysts[0].Key)
	assert.Equal(t, "Warren Buffett", res.Analysts[0].DisplayName)
	assert.Equal(t, 8, res.Analysts[0].Order)
}

func TestListModels(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	var res api.ModelsListResponse
	w := getJSON(t, router, "/models", &res)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, res.Models)
	require.NotEmpty(t, res.OllamaModels)
	for _, m := range res.Models {
		assert.NotEmpty(t, m.ModelName)
		assert.NoError(t, m.Provider.Validate())
	}
	for _, m := range res.OllamaModels {
		assert.Equal(t, api.ProviderOllama, m.Provider)
	}
}

func TestCreateRun(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	w := postRun(router, `{
		"tickers": ["AAPL"],
		"start_date": "2024-01-01",
		"end_date": "2024-06-30"
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res api.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)

	require.Contains(t, res.Decisions, "AAPL")
	assert.Equal(t, api.ActionBuy, res.Decisions["AAPL"].Action)
	assert.Equal(t, int64(10), res.Decisions["AAPL"].Quantity)

	assert.Contains(t, res.AnalystSignals, "warren_buffett_agent")
	assert.Contains(t, res.AnalystSignals, "risk_management_agent")
}

func TestCreateRunInvalidJSON(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	w := postRun(router, "not-json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Error, "invalid JSON request")
}

func TestCreateRunValidationError(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	w := postRun(router, `{"tickers": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Contains(t, res.Error, "at least one ticker")
}

func TestCreateRunBadDate(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	w := postRun(router, `{"tickers": ["AAPL"], "end_date": "June 30th"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRunUnknownAnalyst(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	w := postRun(router, `{
		"tickers": ["AAPL"],
		"selected_analysts": ["nostradamus"]
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Contains(t, res.Error, "unknown analyst")
}

func TestCreateRunPipelineFailure(t *testing.T) {
	env := helpers.NewRunEnv(t)
	env.Market.PricesErr = assert.AnError
	router := testRouter(t, env)

	w := postRun(router, `{"tickers": ["AAPL"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Contains(t, res.Error, "pipeline run failed")
}

func TestCORSHeaders(t *testing.T) {
	router := testRouter(t, helpers.NewRunEnv(t))

	req := httptest.NewRequest(http.MethodOptions, "/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
