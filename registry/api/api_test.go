package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-upf/upf/health"
	"github.com/go-upf/upf/manifest"
	"github.com/go-upf/upf/registry"
	thttp "github.com/go-upf/upf/transport/http"
	"github.com/gorilla/websocket"
)

func newTestAPI(t *testing.T) (*registry.Registry, *httptest.Server) {
	t.Helper()
	reg := registry.New(health.ProbeFunc(func(context.Context, string, string) health.Signal {
		return health.SignalServing
	}), registry.WithTrackerOptions(health.Interval(time.Hour), health.Grace(0)))
	t.Cleanup(reg.Close)

	srv := thttp.NewServer()
	New(reg).Route(thttp.NewRouter(srv))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return reg, ts
}

func post(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	rsp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return rsp
}

func decode(t *testing.T, rsp *http.Response, v interface{}) {
	t.Helper()
	defer rsp.Body.Close()
	if err := json.NewDecoder(rsp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func storagePlugin(id, ver string) *manifest.Manifest {
	return &manifest.Manifest{
		ID:      id,
		Version: ver,
		Type:    manifest.TypeInfrastructure,
		Provides: []manifest.Interface{
			{Name: "IStorage", Version: ver},
		},
		Endpoint: "127.0.0.1:50051",
	}
}

func TestRegisterAndGet(t *testing.T) {
	_, ts := newTestAPI(t)

	rsp := post(t, ts.URL+"/v1/plugins", storagePlugin("storage-pg", "1.0.0"))
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	plugin := registry.Plugin{}
	decode(t, rsp, &plugin)
	if plugin.Manifest.ID != "storage-pg" || plugin.Health.State != health.StateUnknown {
		t.Fatalf("plugin = %+v", plugin)
	}

	rsp, err := http.Get(ts.URL + "/v1/plugins/storage-pg")
	if err != nil {
		t.Fatal(err)
	}
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	decode(t, rsp, &plugin)
	if plugin.Manifest.Version != "1.0.0" {
		t.Fatalf("plugin = %+v", plugin)
	}
}

func TestErrorMapping(t *testing.T) {
	_, ts := newTestAPI(t)

	rsp, err := http.Get(ts.URL + "/v1/plugins/ghost")
	if err != nil {
		t.Fatal(err)
	}
	if rsp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	e := struct {
		Reason string `json:"reason"`
	}{}
	decode(t, rsp, &e)
	if e.Reason != "PLUGIN_NOT_FOUND" {
		t.Fatalf("reason = %s", e.Reason)
	}

	rsp = post(t, ts.URL+"/v1/plugins", &manifest.Manifest{ID: "bad"})
	if rsp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	rsp.Body.Close()
}

func TestDuplicateRegisterConflicts(t *testing.T) {
	_, ts := newTestAPI(t)

	rsp := post(t, ts.URL+"/v1/plugins", storagePlugin("storage-pg", "1.0.0"))
	rsp.Body.Close()
	rsp = post(t, ts.URL+"/v1/plugins", storagePlugin("storage-pg", "1.0.0"))
	if rsp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	rsp.Body.Close()
}

func TestResolveEndpoint(t *testing.T) {
	reg, ts := newTestAPI(t)

	post(t, ts.URL+"/v1/plugins", storagePlugin("storage-pg", "1.0.0")).Body.Close()
	reg.Tracker().Apply("storage-pg", health.SignalServing)

	rsp := post(t, ts.URL+"/v1/resolve", manifest.Requirement{Interface: "IStorage", VersionRange: "^1.0.0"})
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	binding := struct {
		Provider string `json:"provider"`
		Version  string `json:"version"`
	}{}
	decode(t, rsp, &binding)
	if binding.Provider != "storage-pg" || binding.Version != "1.0.0" {
		t.Fatalf("binding = %+v", binding)
	}

	rsp = post(t, ts.URL+"/v1/resolve", manifest.Requirement{Interface: "IQueue", VersionRange: "^1.0.0"})
	if rsp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	rsp.Body.Close()
}

func TestListFilterQuery(t *testing.T) {
	_, ts := newTestAPI(t)

	post(t, ts.URL+"/v1/plugins", storagePlugin("storage-pg", "1.0.0")).Body.Close()
	app := &manifest.Manifest{ID: "app", Version: "1.0.0", Type: manifest.TypeBusiness, Endpoint: "127.0.0.1:40001"}
	post(t, ts.URL+"/v1/plugins", app).Body.Close()

	rsp, err := http.Get(ts.URL + "/v1/plugins?type=business")
	if err != nil {
		t.Fatal(err)
	}
	var plugins []registry.Plugin
	decode(t, rsp, &plugins)
	if len(plugins) != 1 || plugins[0].Manifest.ID != "app" {
		t.Fatalf("plugins = %+v", plugins)
	}
}

func TestValidateEndpoint(t *testing.T) {
	_, ts := newTestAPI(t)

	rsp := post(t, ts.URL+"/v1/manifests/validate", &manifest.Manifest{ID: "bad"})
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	v := registry.Validation{}
	decode(t, rsp, &v)
	if v.Valid {
		t.Fatalf("validation = %+v", v)
	}
}

func TestWatchHealthStream(t *testing.T) {
	_, ts := newTestAPI(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/watch/health?plugin=storage-pg"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	post(t, ts.URL+"/v1/plugins", storagePlugin("storage-pg", "1.0.0")).Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	e := registry.Event{}
	if err = json.Unmarshal(payload, &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != registry.EventRegistered || e.PluginID != "storage-pg" {
		t.Fatalf("event = %+v", e)
	}
}
