package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alfredjeanlab/confengine/internal/events"
	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/store"
	"github.com/alfredjeanlab/confengine/internal/store/memory"
)

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func newTestServer(t *testing.T) (*ConfigServer, http.Handler) {
	t.Helper()
	srv := NewConfigServer(memory.New(), &events.NoopPublisher{})
	return srv, srv.NewHTTPHandler(HTTPOptions{Version: "0.1.0"})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, rec.Body.String())
	}
	return v
}

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// createConfig posts body and returns the created record.
func createConfig(t *testing.T, h http.Handler, body map[string]any) *model.Configuration {
	t.Helper()
	rec := doJSON(t, h, "POST", "/api/v1/configurations", body)
	requireStatus(t, rec, http.StatusCreated)
	return decodeJSON[*model.Configuration](t, rec)
}

func colorBody(key string) map[string]any {
	return map[string]any{
		"key":       key,
		"label":     "Color",
		"data_type": "list",
		"validation_rules": []map[string]any{
			{"rule_type": "list_mode", "value": "single"},
			{"rule_type": "list_options", "value": []map[string]string{
				{"label": "Red", "value": "red"},
				{"label": "Blue", "value": "blue"},
			}},
		},
	}
}

func TestHandleRoot(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, "GET", "/", nil)
	requireStatus(t, rec, http.StatusOK)

	body := decodeJSON[map[string]string](t, rec)
	if body["message"] != "Configuration Engine API" || body["version"] != "0.1.0" {
		t.Fatalf("unexpected root body %v", body)
	}
}

func TestHandleHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, "GET", "/health", nil)
	requireStatus(t, rec, http.StatusOK)
	if body := decodeJSON[map[string]string](t, rec); body["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", body)
	}
}

func TestHandleHealth_Unhealthy(t *testing.T) {
	srv := NewConfigServer(&failingPingStore{Store: memory.New()}, nil)
	h := srv.NewHTTPHandler(HTTPOptions{})
	rec := doJSON(t, h, "GET", "/health", nil)
	requireStatus(t, rec, http.StatusServiceUnavailable)
	if body := decodeJSON[map[string]string](t, rec); body["status"] != "unhealthy" {
		t.Fatalf("expected unhealthy, got %v", body)
	}
}

type failingPingStore struct {
	*memory.Store
}

func (*failingPingStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHandleMetrics(t *testing.T) {
	_, h := newTestServer(t)
	requireStatus(t, doJSON(t, h, "GET", "/health", nil), http.StatusOK)

	rec := doJSON(t, h, "GET", "/metrics", nil)
	requireStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "confengine_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestConfigurationCRUD(t *testing.T) {
	pub := &recordingPublisher{}
	srv := NewConfigServer(memory.New(), pub)
	h := srv.NewHTTPHandler(HTTPOptions{})

	created := createConfig(t, h, map[string]any{
		"key":           "app.timeout",
		"label":         "Timeout",
		"description":   "Request timeout in seconds",
		"data_type":     "number",
		"default_value": "30",
		"validation_rules": []map[string]any{
			{"rule_type": "required", "value": true},
			{"rule_type": "min", "value": 1},
			{"rule_type": "max", "value": 120},
		},
		"translations": []map[string]string{
			{"language": "de-de", "label": "Zeitlimit"},
		},
	})
	if created.ID == "" || !created.Active {
		t.Fatalf("expected id and active=true, got %+v", created)
	}
	if created.ParentConfigID != nil {
		t.Fatalf("expected no parent, got %v", *created.ParentConfigID)
	}
	if len(created.Translations) != 1 || created.Translations[0].Language != "de-DE" {
		t.Fatalf("expected canonical language tag, got %+v", created.Translations)
	}
	if len(created.ValidationRules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(created.ValidationRules))
	}

	// Get.
	rec := doJSON(t, h, "GET", "/api/v1/configurations/"+created.ID, nil)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[*model.Configuration](t, rec)
	if got.Key != "app.timeout" || got.DefaultValue != "30" {
		t.Fatalf("unexpected record %+v", got)
	}

	// Partial update; key is ignored.
	rec = doJSON(t, h, "PUT", "/api/v1/configurations/"+created.ID, map[string]any{
		"key":           "renamed",
		"label":         "Request timeout",
		"default_value": "60",
	})
	requireStatus(t, rec, http.StatusOK)
	updated := decodeJSON[*model.Configuration](t, rec)
	if updated.Key != "app.timeout" {
		t.Fatalf("expected key unchanged, got %q", updated.Key)
	}
	if updated.Label != "Request timeout" || updated.DefaultValue != "60" {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if updated.Description != "Request timeout in seconds" {
		t.Fatalf("expected description kept, got %q", updated.Description)
	}

	// Delete.
	rec = doJSON(t, h, "DELETE", "/api/v1/configurations/"+created.ID, nil)
	requireStatus(t, rec, http.StatusNoContent)
	rec = doJSON(t, h, "GET", "/api/v1/configurations/"+created.ID, nil)
	requireStatus(t, rec, http.StatusNotFound)

	want := []string{events.TopicConfigurationCreated, events.TopicConfigurationUpdated, events.TopicConfigurationDeleted}
	got2 := pub.published()
	if strings.Join(got2, ",") != strings.Join(want, ",") {
		t.Fatalf("expected topics %v, got %v", want, got2)
	}
}

func TestCreateConfiguration_ActiveFalse(t *testing.T) {
	_, h := newTestServer(t)
	c := createConfig(t, h, map[string]any{
		"key": "flag", "label": "Flag", "data_type": "string", "active": false,
	})
	if c.Active {
		t.Fatal("expected active=false")
	}
}

func TestCreateConfiguration_DuplicateKey(t *testing.T) {
	_, h := newTestServer(t)
	body := map[string]any{"key": "dup", "label": "Dup", "data_type": "string"}
	createConfig(t, h, body)

	rec := doJSON(t, h, "POST", "/api/v1/configurations", body)
	requireStatus(t, rec, http.StatusBadRequest)
	e := decodeJSON[errorBody](t, rec)
	if e.Error != "Configuration with key 'dup' already exists" {
		t.Fatalf("unexpected message %q", e.Error)
	}
	if e.ErrorCode != codeDuplicateKey {
		t.Fatalf("expected error_code=%s, got %q", codeDuplicateKey, e.ErrorCode)
	}
}

func TestCreateConfiguration_InputErrors(t *testing.T) {
	_, h := newTestServer(t)

	for _, tc := range []struct {
		name string
		body any
		want string
	}{
		{"malformed json", `{"key":`, "invalid JSON body"},
		{"missing key", map[string]any{"label": "L", "data_type": "string"}, "key is required"},
		{"missing label", map[string]any{"key": "k", "data_type": "string"}, "label is required"},
		{"bad data type", map[string]any{"key": "k", "label": "L", "data_type": "bool"}, "data_type must be one of: string, number, date, list"},
		{"long key", map[string]any{"key": strings.Repeat("k", 256), "label": "L", "data_type": "string"}, "key must be at most 255 characters"},
		{"bad parent id", map[string]any{"key": "k", "label": "L", "data_type": "string", "parent_config_id": "nope"}, "parent_config_id must be a UUID"},
		{"blank key", map[string]any{"key": "   ", "label": "L", "data_type": "string"}, "key: is required"},
		{"min above max", map[string]any{
			"key": "n", "label": "N", "data_type": "number",
			"validation_rules": []map[string]any{
				{"rule_type": "min", "value": 10},
				{"rule_type": "max", "value": 5},
			},
		}, "validation_rules: min (10) must not be greater than max (5)"},
		{"rule of wrong type", map[string]any{
			"key": "s", "label": "S", "data_type": "string",
			"validation_rules": []map[string]any{{"rule_type": "min", "value": 1}},
		}, "validation_rules"},
		{"default outside range", map[string]any{
			"key": "n", "label": "N", "data_type": "number", "default_value": "200",
			"validation_rules": []map[string]any{{"rule_type": "max", "value": 100}},
		}, "default_value: 200 is above max 100"},
		{"list without options", map[string]any{"key": "l", "label": "L", "data_type": "list"}, "a list needs at least one option"},
		{"NaN min", map[string]any{
			"key": "n", "label": "N", "data_type": "number",
			"validation_rules": []map[string]any{{"rule_type": "min", "value": "NaN"}},
		}, "finite number"},
		{"infinite max", map[string]any{
			"key": "n", "label": "N", "data_type": "number",
			"validation_rules": []map[string]any{{"rule_type": "max", "value": "-Inf"}},
		}, "finite number"},
		{"comma in option value", map[string]any{
			"key": "l", "label": "L", "data_type": "list",
			"validation_rules": []map[string]any{
				{"rule_type": "list_mode", "value": "multi"},
				{"rule_type": "list_options", "value": []map[string]string{
					{"label": "AB", "value": "a,b"},
					{"label": "C", "value": "c"},
				}},
			},
		}, `option value "a,b" must not contain a comma`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, "POST", "/api/v1/configurations", tc.body)
			requireStatus(t, rec, http.StatusBadRequest)
			e := decodeJSON[errorBody](t, rec)
			if !strings.Contains(e.Error, tc.want) {
				t.Fatalf("expected error containing %q, got %q", tc.want, e.Error)
			}
		})
	}
}

func TestCreateConfiguration_ListDefault(t *testing.T) {
	_, h := newTestServer(t)

	body := colorBody("color")
	body["default_value"] = "blue"
	createConfig(t, h, body)

	body = colorBody("color2")
	body["default_value"] = "green"
	rec := doJSON(t, h, "POST", "/api/v1/configurations", body)
	requireStatus(t, rec, http.StatusBadRequest)
	if e := decodeJSON[errorBody](t, rec); !strings.HasPrefix(e.Error, "default_value:") {
		t.Fatalf("expected default_value section error, got %q", e.Error)
	}
}

func TestCreateConfiguration_NonFiniteRuleKeepsListReadable(t *testing.T) {
	_, h := newTestServer(t)
	createConfig(t, h, map[string]any{"key": "ok", "label": "OK", "data_type": "number"})

	for _, v := range []string{"NaN", "Inf"} {
		rec := doJSON(t, h, "POST", "/api/v1/configurations", map[string]any{
			"key": "bad", "label": "Bad", "data_type": "number",
			"validation_rules": []map[string]any{{"rule_type": "min", "value": v}},
		})
		requireStatus(t, rec, http.StatusBadRequest)
	}

	rec := doJSON(t, h, "GET", "/api/v1/configurations", nil)
	requireStatus(t, rec, http.StatusOK)
	if page := decodeJSON[listResponse](t, rec); page.Total != 1 || page.Items[0].Key != "ok" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestCreateConfiguration_NormalizesListDefault(t *testing.T) {
	_, h := newTestServer(t)
	body := colorBody("color")
	body["default_value"] = " blue "
	c := createConfig(t, h, body)
	if c.DefaultValue != "blue" {
		t.Fatalf("expected trimmed default, got %q", c.DefaultValue)
	}

	rec := doJSON(t, h, "GET", "/api/v1/configurations/"+c.ID, nil)
	requireStatus(t, rec, http.StatusOK)
	if got := decodeJSON[*model.Configuration](t, rec); got.DefaultValue != "blue" {
		t.Fatalf("expected stored default %q, got %q", "blue", got.DefaultValue)
	}
}

// failingEventStore fails every event write made inside a transaction.
type failingEventStore struct {
	*memory.Store
}

func (f *failingEventStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.RunInTransaction(ctx, func(store.Store) error { return fn(f) })
}

func (*failingEventStore) RecordEvent(context.Context, *model.Event) error {
	return errors.New("events table unavailable")
}

func TestCreateConfiguration_EventFailureRollsBack(t *testing.T) {
	mem := memory.New()
	pub := &recordingPublisher{}
	h := NewConfigServer(&failingEventStore{Store: mem}, pub).NewHTTPHandler(HTTPOptions{})

	rec := doJSON(t, h, "POST", "/api/v1/configurations", map[string]any{"key": "k", "label": "K", "data_type": "string"})
	requireStatus(t, rec, http.StatusInternalServerError)

	if _, err := mem.GetConfigurationByKey(context.Background(), "k"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected the record to be rolled back, got %v", err)
	}
	if got := pub.published(); len(got) != 0 {
		t.Fatalf("expected nothing published, got %v", got)
	}
}

func TestGetConfiguration_ByKey(t *testing.T) {
	_, h := newTestServer(t)
	created := createConfig(t, h, map[string]any{"key": "region.vat", "label": "VAT", "data_type": "number"})

	rec := doJSON(t, h, "GET", "/api/v1/configurations/region.vat", nil)
	requireStatus(t, rec, http.StatusOK)
	if got := decodeJSON[*model.Configuration](t, rec); got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}

	requireStatus(t, doJSON(t, h, "GET", "/api/v1/configurations/region.none", nil), http.StatusNotFound)
}

func TestCreateConfiguration_ListParentCondition(t *testing.T) {
	_, h := newTestServer(t)
	parent := createConfig(t, h, colorBody("color"))

	child := createConfig(t, h, map[string]any{
		"key":              "shade",
		"label":            "Shade",
		"data_type":        "string",
		"parent_config_id": parent.ID,
		"parent_conditions": []map[string]any{
			{"operator": "=", "value": []string{"red", "blue"}, "default_value": "dark"},
		},
	})
	if child.ParentID() != parent.ID {
		t.Fatalf("expected parent %s, got %v", parent.ID, child.ParentConfigID)
	}
	if len(child.ParentConditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(child.ParentConditions))
	}
	cond := child.ParentConditions[0]
	if cond.Operator != model.OpIn || cond.Value != "red,blue" {
		t.Fatalf("expected in red,blue, got %s %q", cond.Operator, cond.Value)
	}

	rec := doJSON(t, h, "POST", "/api/v1/configurations", map[string]any{
		"key":              "shade2",
		"label":            "Shade",
		"data_type":        "string",
		"parent_config_id": parent.ID,
		"parent_conditions": []map[string]any{
			{"operator": "in", "value": "green"},
		},
	})
	requireStatus(t, rec, http.StatusBadRequest)
	if e := decodeJSON[errorBody](t, rec); !strings.HasPrefix(e.Error, "parent_conditions:") {
		t.Fatalf("expected parent_conditions section error, got %q", e.Error)
	}
}

func TestCreateConfiguration_UnknownParent(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, "POST", "/api/v1/configurations", map[string]any{
		"key": "orphan", "label": "Orphan", "data_type": "string",
		"parent_config_id": "7d1c2a3e-8f14-4c55-9a1f-0b2c3d4e5f60",
	})
	requireStatus(t, rec, http.StatusBadRequest)
	if e := decodeJSON[errorBody](t, rec); e.Error != errParentNotFound.Error() {
		t.Fatalf("expected %q, got %q", errParentNotFound, e.Error)
	}
}

func TestUpdateConfiguration_ClearParent(t *testing.T) {
	_, h := newTestServer(t)
	parent := createConfig(t, h, colorBody("color"))
	child := createConfig(t, h, map[string]any{
		"key": "shade", "label": "Shade", "data_type": "string",
		"parent_config_id":  parent.ID,
		"parent_conditions": []map[string]any{{"operator": "in", "value": "red"}},
	})

	rec := doJSON(t, h, "PUT", "/api/v1/configurations/"+child.ID, map[string]any{"parent_config_id": ""})
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[*model.Configuration](t, rec)
	if got.ParentConfigID != nil {
		t.Fatalf("expected parent cleared, got %v", *got.ParentConfigID)
	}
	if len(got.ParentConditions) != 0 {
		t.Fatalf("expected conditions dropped, got %+v", got.ParentConditions)
	}
}

func TestUpdateConfiguration_ParentCycle(t *testing.T) {
	_, h := newTestServer(t)
	a := createConfig(t, h, map[string]any{"key": "a", "label": "A", "data_type": "string"})
	b := createConfig(t, h, map[string]any{"key": "b", "label": "B", "data_type": "string", "parent_config_id": a.ID})
	c := createConfig(t, h, map[string]any{"key": "c", "label": "C", "data_type": "string", "parent_config_id": b.ID})

	for _, parentID := range []string{a.ID, c.ID} {
		rec := doJSON(t, h, "PUT", "/api/v1/configurations/"+a.ID, map[string]any{"parent_config_id": parentID})
		requireStatus(t, rec, http.StatusBadRequest)
		if e := decodeJSON[errorBody](t, rec); e.Error != errParentCycle.Error() {
			t.Fatalf("parent %s: expected %q, got %q", parentID, errParentCycle, e.Error)
		}
	}

	// Moving c under a is fine.
	rec := doJSON(t, h, "PUT", "/api/v1/configurations/"+c.ID, map[string]any{"parent_config_id": a.ID})
	requireStatus(t, rec, http.StatusOK)
}

func TestUpdateConfiguration_NotFound(t *testing.T) {
	_, h := newTestServer(t)
	for _, id := range []string{"not-a-uuid", "7d1c2a3e-8f14-4c55-9a1f-0b2c3d4e5f60"} {
		rec := doJSON(t, h, "PUT", "/api/v1/configurations/"+id, map[string]any{"label": "x"})
		requireStatus(t, rec, http.StatusNotFound)
		e := decodeJSON[errorBody](t, rec)
		if e.Error != "configuration not found" || e.ErrorCode != codeNotFound {
			t.Fatalf("unexpected error body %+v", e)
		}
	}
}

func TestDeleteConfiguration_KeepsChildren(t *testing.T) {
	_, h := newTestServer(t)
	parent := createConfig(t, h, map[string]any{"key": "p", "label": "P", "data_type": "string"})
	child := createConfig(t, h, map[string]any{"key": "c", "label": "C", "data_type": "string", "parent_config_id": parent.ID})

	requireStatus(t, doJSON(t, h, "DELETE", "/api/v1/configurations/"+parent.ID, nil), http.StatusNoContent)
	requireStatus(t, doJSON(t, h, "DELETE", "/api/v1/configurations/"+parent.ID, nil), http.StatusNotFound)

	rec := doJSON(t, h, "GET", "/api/v1/configurations/"+child.ID, nil)
	requireStatus(t, rec, http.StatusOK)
	if got := decodeJSON[*model.Configuration](t, rec); got.ParentConfigID != nil {
		t.Fatalf("expected child detached, got parent %v", *got.ParentConfigID)
	}
}

func TestListConfigurations_Pagination(t *testing.T) {
	_, h := newTestServer(t)
	for _, key := range []string{"k1", "k2", "k3"} {
		createConfig(t, h, map[string]any{"key": key, "label": key, "data_type": "string"})
	}

	rec := doJSON(t, h, "GET", "/api/v1/configurations?limit=2", nil)
	requireStatus(t, rec, http.StatusOK)
	page := decodeJSON[listResponse](t, rec)
	if len(page.Items) != 2 || page.Total != 3 || page.Limit != 2 || page.Offset != 0 {
		t.Fatalf("unexpected page %d items total=%d limit=%d offset=%d", len(page.Items), page.Total, page.Limit, page.Offset)
	}

	rec = doJSON(t, h, "GET", "/api/v1/configurations", nil)
	requireStatus(t, rec, http.StatusOK)
	if page := decodeJSON[listResponse](t, rec); page.Limit != model.DefaultPageLimit || len(page.Items) != 3 {
		t.Fatalf("expected default limit and 3 items, got limit=%d items=%d", page.Limit, len(page.Items))
	}

	rec = doJSON(t, h, "GET", "/api/v1/configurations?offset=10", nil)
	requireStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", rec.Body.String())
	}
}

func TestListConfigurations_Filters(t *testing.T) {
	_, h := newTestServer(t)
	createConfig(t, h, map[string]any{"key": "checkout.timeout", "label": "Timeout", "data_type": "number"})
	createConfig(t, h, map[string]any{"key": "search.limit", "label": "Checkout results", "data_type": "number", "active": false})
	createConfig(t, h, map[string]any{"key": "theme", "label": "Theme", "data_type": "string"})

	for _, tc := range []struct {
		query string
		want  []string
	}{
		{"search=CHECKOUT", []string{"checkout.timeout", "search.limit"}},
		{"active=false", []string{"search.limit"}},
		{"active=true&search=checkout", []string{"checkout.timeout"}},
		{"search=nothing", nil},
	} {
		rec := doJSON(t, h, "GET", "/api/v1/configurations?"+tc.query, nil)
		requireStatus(t, rec, http.StatusOK)
		page := decodeJSON[listResponse](t, rec)
		var keys []string
		for _, c := range page.Items {
			keys = append(keys, c.Key)
		}
		if strings.Join(keys, ",") != strings.Join(tc.want, ",") || page.Total != len(tc.want) {
			t.Fatalf("%s: got %v (total %d), want %v", tc.query, keys, page.Total, tc.want)
		}
	}
}

func TestListConfigurations_BadQuery(t *testing.T) {
	_, h := newTestServer(t)
	for _, tc := range []struct {
		query, want string
	}{
		{"limit=0", "limit must be greater than or equal to 1"},
		{"limit=101", "limit must be less than or equal to 100"},
		{"offset=-1", "offset must be greater than or equal to 0"},
		{"limit=ten", "limit must be an integer"},
		{"offset=1.5", "offset must be an integer"},
		{"active=maybe", "active must be true or false"},
	} {
		rec := doJSON(t, h, "GET", "/api/v1/configurations?"+tc.query, nil)
		requireStatus(t, rec, http.StatusBadRequest)
		if e := decodeJSON[errorBody](t, rec); e.Error != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.query, tc.want, e.Error)
		}
	}
}

func TestParentOptions(t *testing.T) {
	_, h := newTestServer(t)
	a := createConfig(t, h, map[string]any{"key": "a", "label": "A", "data_type": "string"})
	b := createConfig(t, h, map[string]any{"key": "b", "label": "B", "data_type": "string", "parent_config_id": a.ID})
	c := createConfig(t, h, map[string]any{"key": "c", "label": "C", "data_type": "string"})

	rec := doJSON(t, h, "GET", "/api/v1/configurations/parent-options", nil)
	requireStatus(t, rec, http.StatusOK)
	if all := decodeJSON[listResponse](t, rec); all.Total != 3 || len(all.Items) != 3 {
		t.Fatalf("expected 3 options, got total=%d items=%d", all.Total, len(all.Items))
	}

	rec = doJSON(t, h, "GET", "/api/v1/configurations/parent-options/by/"+a.ID, nil)
	requireStatus(t, rec, http.StatusOK)
	opts := decodeJSON[listResponse](t, rec)
	if len(opts.Items) != 1 || opts.Items[0].ID != c.ID {
		ids := make([]string, len(opts.Items))
		for i, o := range opts.Items {
			ids[i] = o.Key
		}
		t.Fatalf("expected only %s, got %v", c.Key, ids)
	}

	rec = doJSON(t, h, "GET", "/api/v1/configurations/parent-options/by/"+b.ID, nil)
	requireStatus(t, rec, http.StatusOK)
	if opts := decodeJSON[listResponse](t, rec); len(opts.Items) != 2 {
		t.Fatalf("expected a and c for b, got %d", len(opts.Items))
	}
}

func TestGetEvents(t *testing.T) {
	_, h := newTestServer(t)
	c := createConfig(t, h, map[string]any{"key": "e", "label": "E", "data_type": "string"})

	req := httptest.NewRequest("PUT", "/api/v1/configurations/"+c.ID, strings.NewReader(`{"label":"E2"}`))
	req.Header.Set("X-Actor", "alice")
	req.Header.Set(events.HeaderCorrelationID, "corr-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)

	rec = doJSON(t, h, "GET", "/api/v1/configurations/"+c.ID+"/events", nil)
	requireStatus(t, rec, http.StatusOK)
	body := decodeJSON[struct {
		Events []*model.Event `json:"events"`
	}](t, rec)
	if len(body.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(body.Events))
	}

	var update *model.Event
	for _, e := range body.Events {
		if e.Topic == events.TopicConfigurationUpdated {
			update = e
		}
	}
	if update == nil {
		t.Fatal("expected an update event")
	}
	if update.Actor != "alice" || update.CorrelationID != "corr-test" {
		t.Fatalf("expected actor and correlation id on event, got %+v", update)
	}

	rec = doJSON(t, h, "GET", "/api/v1/configurations/not-a-uuid/events", nil)
	requireStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"events":[]`) {
		t.Fatalf("expected empty events, got %s", rec.Body.String())
	}
}

func TestCorrelationHeader(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(events.HeaderCorrelationID, "corr-fixed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(events.HeaderCorrelationID); got != "corr-fixed" {
		t.Fatalf("expected echoed id, got %q", got)
	}

	rec = doJSON(t, h, "GET", "/health", nil)
	if got := rec.Header().Get(events.HeaderCorrelationID); !strings.HasPrefix(got, "corr-") {
		t.Fatalf("expected generated id, got %q", got)
	}
}

func TestHTTPHandler_Auth(t *testing.T) {
	srv := NewConfigServer(memory.New(), nil)
	h := srv.NewHTTPHandler(HTTPOptions{AuthToken: "secret"})

	requireStatus(t, doJSON(t, h, "GET", "/health", nil), http.StatusOK)
	requireStatus(t, doJSON(t, h, "GET", "/", nil), http.StatusOK)

	rec := doJSON(t, h, "GET", "/api/v1/configurations", nil)
	requireStatus(t, rec, http.StatusUnauthorized)
	if e := decodeJSON[errorBody](t, rec); e.ErrorCode != codeUnauthorized {
		t.Fatalf("expected unauthorized code, got %q", e.ErrorCode)
	}

	req := httptest.NewRequest("GET", "/api/v1/configurations", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)
}

func TestHTTPHandler_CORS(t *testing.T) {
	srv := NewConfigServer(memory.New(), nil)
	h := srv.NewHTTPHandler(HTTPOptions{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest("OPTIONS", "/api/v1/configurations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
}
