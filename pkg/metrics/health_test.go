package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func resetHealthChecker() {
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

func TestRegisterComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("record_store", true, "open")

	if len(healthChecker.components) != 1 {
		t.Errorf("expected 1 component, got %d", len(healthChecker.components))
	}

	comp := healthChecker.components["record_store"]
	if !comp.Healthy {
		t.Error("component should be healthy")
	}

	if comp.Message != "open" {
		t.Errorf("expected message 'open', got '%s'", comp.Message)
	}
}

func TestGetHealth_AllHealthy(t *testing.T) {
	resetHealthChecker()
	SetVersion("1.0.0")

	RegisterComponent("record_store", true, "")
	RegisterComponent("engine", true, "")

	health := GetHealth()

	if health.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", health.Status)
	}

	if len(health.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(health.Components))
	}

	if health.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", health.Version)
	}
}

func TestGetHealth_OneUnhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("engine", true, "")
	RegisterComponent("record_store", false, "database closed")

	health := GetHealth()

	if health.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got '%s'", health.Status)
	}

	if health.Components["record_store"] != "unhealthy: database closed" {
		t.Errorf("unexpected record_store status: %s", health.Components["record_store"])
	}
}

func TestGetReadiness_WaitsForCriticalComponents(t *testing.T) {
	resetHealthChecker()

	readiness := GetReadiness()
	if readiness.Status != "not_ready" {
		t.Errorf("expected 'not_ready' before registration, got '%s'", readiness.Status)
	}

	RegisterComponent("record_store", true, "")
	RegisterComponent("engine", true, "")

	readiness = GetReadiness()
	if readiness.Status != "ready" {
		t.Errorf("expected 'ready', got '%s'", readiness.Status)
	}
}

func TestHealthHandler(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("engine", true, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	HealthHandler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected 'healthy', got '%s'", health.Status)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("record_store", false, "database closed")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	HealthHandler()(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
