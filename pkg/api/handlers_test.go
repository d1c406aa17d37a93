package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/device"
	"github.com/fabricfleet/portctl/pkg/fleet"
	"github.com/fabricfleet/portctl/pkg/inventory"
	"github.com/fabricfleet/portctl/pkg/orchestrator"
	"github.com/fabricfleet/portctl/pkg/precheck"
	"github.com/fabricfleet/portctl/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *device.ScriptedExecutor) {
	t.Helper()
	exec := device.NewScriptedExecutor()
	commits, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	orch := orchestrator.New(
		precheck.NewEngine(exec, time.Second),
		change.NewCommandRenderer(),
		commits,
		fleet.NewExecutor(exec, 4, 500*time.Millisecond),
	)
	inv := &inventory.StaticSource{Devices: []*inventory.Device{
		{Name: "leaf-01", Role: "leaf", Site: "dc1", MgmtAddr: "10.0.0.11"},
		{Name: "spine-01", Role: "spine", Site: "dc1", MgmtAddr: "10.0.0.1"},
	}}
	return NewHandler(orch, inv).Router(), exec
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func quietPortScript() *device.Script {
	return &device.Script{
		State: &device.PortState{
			Exists:      true,
			AdminStatus: device.StatusUp,
			OperStatus:  device.StatusDown,
		},
	}
}

func TestConfigureEndpoint_Success(t *testing.T) {
	router, exec := newTestRouter(t)
	exec.SetScript("leaf-01", quietPortScript())

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/port/configure",
		`{"device":"leaf-01","interface":"Eth1/1","mode":"access","vlan":10,"description":"Server Link"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("expected success envelope: %+v", resp)
	}

	data := resp.Data.(map[string]interface{})
	if data["commit_hash"] == "" {
		t.Error("missing commit_hash")
	}
	applied, _ := data["applied_config"].(string)
	if !strings.Contains(applied, "switchport access vlan 10") {
		t.Errorf("applied_config missing vlan line: %q", applied)
	}
}

func TestConfigureEndpoint_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"vlan too high", `{"device":"leaf-01","interface":"Eth1/1","mode":"access","vlan":4095}`},
		{"bad mode", `{"device":"leaf-01","interface":"Eth1/1","mode":"hybrid"}`},
		{"negative vni", `{"device":"leaf-01","interface":"Eth1/1","mode":"access","vni":-5}`},
		{"missing device", `{"interface":"Eth1/1","mode":"access"}`},
		{"not json", `vlan=10`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, router, http.MethodPost, "/api/v1/port/configure", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
			if resp.Error == nil || resp.Error.Code != "INVALID_REQUEST" {
				t.Errorf("error envelope = %+v", resp.Error)
			}
		})
	}
}

func TestConfigureEndpoint_UnsafePort(t *testing.T) {
	router, exec := newTestRouter(t)
	exec.SetScript("leaf-01", &device.Script{
		State: &device.PortState{
			Exists:      true,
			AdminStatus: device.StatusUp,
			OperStatus:  device.StatusUp,
			LearnedMACs: []string{"aa:bb:cc:dd:ee:ff"},
		},
	})

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/port/configure",
		`{"device":"leaf-01","interface":"Eth1/1","mode":"access","vlan":10}`)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != "UNSAFE_TO_CONFIGURE" {
		t.Errorf("error envelope = %+v", resp.Error)
	}
}

func TestPreCheckEndpoint(t *testing.T) {
	router, exec := newTestRouter(t)
	exec.SetScript("leaf-01", quietPortScript())

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/port/pre-check",
		`{"device":"leaf-01","interface":"Eth1/1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["is_safe_to_configure"] != true {
		t.Errorf("expected safe verdict: %+v", data)
	}
}

func TestHistoryAndRollbackEndpoints(t *testing.T) {
	router, exec := newTestRouter(t)
	exec.SetScript("leaf-01", quietPortScript())

	_, resp := doJSON(t, router, http.MethodPost, "/api/v1/port/configure",
		`{"device":"leaf-01","interface":"Eth1/1","mode":"access","vlan":10}`)
	commit := resp.Data.(map[string]interface{})["commit_hash"].(string)

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/history?device=leaf-01", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	hist := resp.Data.(map[string]interface{})["history"].([]interface{})
	if len(hist) != 1 {
		t.Fatalf("history has %d entries, want 1", len(hist))
	}

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/rollback/"+commit, "")
	if w.Code != http.StatusOK {
		t.Errorf("rollback status = %d, body %s", w.Code, w.Body.String())
	}

	w, resp = doJSON(t, router, http.MethodPost, "/api/v1/rollback/0000000", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("rollback unknown status = %d, want 404", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error envelope = %+v", resp.Error)
	}
}

func TestDevicesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	devices := resp.Data.(map[string]interface{})["devices"].([]interface{})
	if len(devices) != 2 {
		t.Errorf("got %d devices, want 2", len(devices))
	}
}

func TestHistoryEndpoint_BadLimit(t *testing.T) {
	router, _ := newTestRouter(t)
	w, _ := doJSON(t, router, http.MethodGet, "/api/v1/history?limit=zero", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthzEnforced(t *testing.T) {
	exec := device.NewScriptedExecutor()
	exec.SetScript("leaf-01", quietPortScript())
	commits, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	orch := orchestrator.New(
		precheck.NewEngine(exec, time.Second),
		change.NewCommandRenderer(),
		commits,
		fleet.NewExecutor(exec, 4, 500*time.Millisecond),
	)
	inv := &inventory.StaticSource{Devices: []*inventory.Device{
		{Name: "leaf-01", Role: "leaf", Site: "dc1", MgmtAddr: "10.0.0.11"},
	}}

	h := NewHandler(orch, inv)
	h.UseAuthz(authz.NewChecker(&authz.Policy{
		Grants: map[string][]authz.Permission{
			"alice": {authz.PermPortConfigure},
		},
	}))
	router := h.Router()

	body := `{"device":"leaf-01","interface":"Eth1/1","mode":"access","vlan":10}`

	// Unknown caller is denied.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/port/configure", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("anonymous configure status = %d, want 403", w.Code)
	}
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != "PERMISSION_DENIED" {
		t.Errorf("error envelope = %+v", resp.Error)
	}

	// Granted caller goes through.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/port/configure", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Remote-User", "alice")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("granted configure status = %d, body %s", w.Code, w.Body.String())
	}

	// The same caller lacks rollback permission.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/rollback/0000000", nil)
	req.Header.Set("X-Remote-User", "alice")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("rollback status = %d, want 403", w.Code)
	}
}
