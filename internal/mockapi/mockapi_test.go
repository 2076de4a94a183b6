package mockapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/figscale/loadgen/internal/mockapi"
)

type listing struct {
	Data    []map[string]interface{} `json:"data"`
	PerPage int                      `json:"per_page"`
	Total   int                      `json:"total"`
}

func do(t *testing.T, srv *httptest.Server, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+mockapi.DefaultPrefix+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func getListing(t *testing.T, srv *httptest.Server, path string) listing {
	t.Helper()
	status, body := do(t, srv, http.MethodGet, path, nil)
	if status != http.StatusOK {
		t.Fatalf("GET %s = %d", path, status)
	}
	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return l
}

func newServer(t *testing.T, opts mockapi.Options) (*mockapi.Server, *httptest.Server) {
	t.Helper()
	api := mockapi.New(opts)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return api, srv
}

func TestListingsArePaginated(t *testing.T) {
	_, srv := newServer(t, mockapi.Options{Users: 30, Organizations: 3, Files: 25})

	files := getListing(t, srv, "/files?per_page=20")
	if len(files.Data) != 20 || files.Total != 25 || files.PerPage != 20 {
		t.Errorf("files page = %d items, total %d, per_page %d", len(files.Data), files.Total, files.PerPage)
	}
	if files.Data[0]["id"] == "" || files.Data[0]["owner_id"] == "" {
		t.Errorf("file item = %v", files.Data[0])
	}

	if users := getListing(t, srv, "/users?per_page=100"); len(users.Data) != 30 {
		t.Errorf("users = %d, want 30", len(users.Data))
	}
	if orgs := getListing(t, srv, "/organizations"); len(orgs.Data) != 3 {
		t.Errorf("organizations = %d, want 3", len(orgs.Data))
	}
}

func TestPopularFilesSortByViews(t *testing.T) {
	_, srv := newServer(t, mockapi.Options{Users: 2, Organizations: 1, Files: 10, Seed: 3})

	files := getListing(t, srv, "/files?sort_by=view_count")
	for i := 1; i < len(files.Data); i++ {
		if files.Data[i-1]["view_count"].(float64) < files.Data[i]["view_count"].(float64) {
			t.Fatalf("files not sorted by view_count desc at %d", i)
		}
	}
}

func TestViewCountsKnownFilesAndIgnoresUnknown(t *testing.T) {
	api, srv := newServer(t, mockapi.Options{Users: 1, Organizations: 1, Files: 1})
	id := getListing(t, srv, "/files").Data[0]["id"].(string)
	before, _ := api.File(id)

	status, body := do(t, srv, http.MethodPost, "/files/"+id+"/view", map[string]interface{}{"user_id": nil})
	if status != http.StatusOK || !bytes.Contains(body, []byte(`"ok":true`)) {
		t.Errorf("view = %d %s", status, body)
	}
	after, _ := api.File(id)
	if after.ViewCount != before.ViewCount+1 {
		t.Errorf("view_count = %d, want %d", after.ViewCount, before.ViewCount+1)
	}

	status, body = do(t, srv, http.MethodPost, "/files/missing/view", nil)
	if status != http.StatusOK || !bytes.Contains(body, []byte(`"ignored":true`)) {
		t.Errorf("unknown view = %d %s", status, body)
	}
	if got := api.Count("POST /files/{id}/view"); got != 2 {
		t.Errorf("view route count = %d, want 2", got)
	}
}

func TestCreateFileValidatesReferences(t *testing.T) {
	api, srv := newServer(t, mockapi.Options{Users: 1, Organizations: 1})
	user := getListing(t, srv, "/users").Data[0]["id"]
	org := getListing(t, srv, "/organizations").Data[0]["id"]

	status, _ := do(t, srv, http.MethodPost, "/files", map[string]interface{}{
		"name": "Design File 1234", "owner_id": user, "organization_id": org,
		"is_public": true, "metadata": map[string]interface{}{"tags": []string{"ui"}},
	})
	if status != http.StatusCreated {
		t.Fatalf("create = %d, want 201", status)
	}
	if api.FileCount() != 1 {
		t.Errorf("FileCount() = %d, want 1", api.FileCount())
	}

	status, body := do(t, srv, http.MethodPost, "/files", map[string]interface{}{
		"name": "x", "owner_id": "nobody", "organization_id": org,
	})
	if status != http.StatusUnprocessableEntity || !bytes.Contains(body, []byte("owner_id")) {
		t.Errorf("invalid create = %d %s", status, body)
	}
}

func TestUpdateFileRenamesAndBumpsVersion(t *testing.T) {
	api, srv := newServer(t, mockapi.Options{Users: 1, Organizations: 1, Files: 1})
	id := getListing(t, srv, "/files").Data[0]["id"].(string)

	status, _ := do(t, srv, http.MethodPut, "/files/"+id, map[string]string{"name": "Updated Design 4321"})
	if status != http.StatusOK {
		t.Fatalf("update = %d", status)
	}
	f, _ := api.File(id)
	if f.Name != "Updated Design 4321" || f.Version != 2 {
		t.Errorf("file = %+v", f)
	}

	if status, _ := do(t, srv, http.MethodPut, "/files/missing", map[string]string{"name": "x"}); status != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", status)
	}
}

func TestModes(t *testing.T) {
	api, srv := newServer(t, mockapi.Options{Users: 2, Organizations: 2, Files: 2, Mode: mockapi.ModeEmpty})

	if l := getListing(t, srv, "/files"); len(l.Data) != 0 || l.Data == nil {
		t.Errorf("empty mode listing = %+v", l)
	}

	api.SetMode(mockapi.ModeFail)
	if status, _ := do(t, srv, http.MethodGet, "/users", nil); status != http.StatusInternalServerError {
		t.Errorf("fail mode status = %d", status)
	}

	if api.Requests() != 2 {
		t.Errorf("Requests() = %d, want 2", api.Requests())
	}
	routes := api.Routes()
	if routes["GET /files"] != 1 || routes["GET /users"] != 1 {
		t.Errorf("routes = %v", routes)
	}
}

func TestSeedMakesDatasetReproducible(t *testing.T) {
	_, a := newServer(t, mockapi.Options{Users: 3, Organizations: 1, Files: 3, Seed: 9})
	_, b := newServer(t, mockapi.Options{Users: 3, Organizations: 1, Files: 3, Seed: 9})

	if getListing(t, a, "/users").Data[2]["id"] != getListing(t, b, "/users").Data[2]["id"] {
		t.Error("same seed produced different ids")
	}
}
