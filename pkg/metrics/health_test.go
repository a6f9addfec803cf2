package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func resetHealthChecker(version string) {
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
		version:    version,
	}
}

func TestRegisterComponent(t *testing.T) {
	resetHealthChecker("")

	RegisterComponent("test-component", true, "running")

	assert.Len(t, healthChecker.components, 1)
	comp := healthChecker.components["test-component"]
	assert.True(t, comp.Healthy)
	assert.Equal(t, "running", comp.Message)
}

func TestGetHealth_AllHealthy(t *testing.T) {
	resetHealthChecker("1.0.0")

	RegisterComponent("primary_index", true, "")
	RegisterComponent("storage", true, "")

	health := GetHealth()

	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestGetHealth_OneUnhealthy(t *testing.T) {
	resetHealthChecker("")

	RegisterComponent("primary_index", true, "")
	RegisterComponent("storage", false, "not connected")

	health := GetHealth()

	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: not connected", health.Components["storage"])
}

func TestGetReadiness_AllReady(t *testing.T) {
	resetHealthChecker("")

	RegisterComponent("storage", true, "")
	RegisterComponent("wal", true, "")
	RegisterComponent("primary_index", true, "")
	RegisterComponent("trigram_index", true, "")

	readiness := GetReadiness()

	assert.Equal(t, "ready", readiness.Status)
}

func TestGetReadiness_MissingCriticalComponent(t *testing.T) {
	resetHealthChecker("")

	RegisterComponent("primary_index", true, "")

	readiness := GetReadiness()

	assert.Equal(t, "not_ready", readiness.Status)
	assert.NotEmpty(t, readiness.Message)
}

func TestGetReadiness_CriticalComponentUnhealthy(t *testing.T) {
	resetHealthChecker("")

	RegisterComponent("storage", false, "leader not elected")
	RegisterComponent("wal", true, "")
	RegisterComponent("primary_index", true, "")
	RegisterComponent("trigram_index", true, "")

	readiness := GetReadiness()

	assert.Equal(t, "not_ready", readiness.Status)
}

func TestHealthHandler(t *testing.T) {
	resetHealthChecker("test")
	RegisterComponent("test", true, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	HealthHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health HealthStatus
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	resetHealthChecker("")
	RegisterComponent("test", false, "broken")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	HealthHandler()(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health HealthStatus
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "unhealthy", health.Status)
}

func TestReadyHandler(t *testing.T) {
	resetHealthChecker("")
	RegisterComponent("storage", true, "")
	RegisterComponent("wal", true, "")
	RegisterComponent("primary_index", true, "")
	RegisterComponent("trigram_index", true, "")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	ReadyHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var readiness HealthStatus
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "ready", readiness.Status)
}

func TestReadyHandler_NotReady(t *testing.T) {
	resetHealthChecker("")
	RegisterComponent("primary_index", true, "")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	ReadyHandler()(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var readiness HealthStatus
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "not_ready", readiness.Status)
}

func TestLivenessHandler(t *testing.T) {
	resetHealthChecker("")

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	w := httptest.NewRecorder()

	LivenessHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "alive", response["status"])
	assert.NotEmpty(t, response["uptime"])
}

func TestUpdateComponent(t *testing.T) {
	resetHealthChecker("")
	RegisterComponent("test", true, "ok")
	UpdateComponent("test", false, "error")

	comp := healthChecker.components["test"]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "error", comp.Message)
}
