// Package mockapi is an in-memory stand-in for the file-sharing API the
// load generator targets. It keeps just enough state for every recipe to
// chain, and counts what it served so tests can compare the server's view
// of a run with the client's.
package mockapi

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Mode switches the server between healthy and degenerate behaviour.
type Mode int32

const (
	// ModeNormal serves seeded data.
	ModeNormal Mode = iota
	// ModeEmpty answers every listing with {"data": []}.
	ModeEmpty
	// ModeFail answers every request with a 500.
	ModeFail
)

// DefaultPrefix is where the API is mounted, matching the real deployment.
const DefaultPrefix = "/api/v1"

type Options struct {
	Prefix        string
	Users         int
	Organizations int
	Files         int
	Mode          Mode
	// Latency is added to every response.
	Latency time.Duration
	Seed    int64
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type File struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	OwnerID        string                 `json:"owner_id"`
	OrganizationID string                 `json:"organization_id"`
	IsPublic       bool                   `json:"is_public"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ViewCount      int64                  `json:"view_count"`
	Version        int64                  `json:"version"`
	LastModified   time.Time              `json:"last_modified"`
}

// Server holds the fake dataset and request counters.
type Server struct {
	prefix  string
	latency time.Duration
	mode    atomic.Int32

	mu    sync.Mutex
	users []User
	orgs  []Organization
	files []*File
	byID  map[string]*File

	requests atomic.Int64
	routesMu sync.Mutex
	routes   map[string]int64
}

// New seeds a dataset. Equal seeds give identical datasets.
func New(opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	opts.Prefix = strings.TrimRight(opts.Prefix, "/")

	s := &Server{
		prefix:  opts.Prefix,
		latency: opts.Latency,
		byID:    map[string]*File{},
		routes:  map[string]int64{},
	}
	s.mode.Store(int32(opts.Mode))

	rnd := rand.New(rand.NewSource(opts.Seed))
	newID := func() string {
		id, _ := uuid.NewRandomFromReader(rnd)
		return id.String()
	}

	for i := 0; i < opts.Organizations; i++ {
		s.orgs = append(s.orgs, Organization{ID: newID(), Name: fmt.Sprintf("Organization %d", i+1)})
	}
	for i := 0; i < opts.Users; i++ {
		s.users = append(s.users, User{
			ID:    newID(),
			Name:  fmt.Sprintf("User %d", i+1),
			Email: fmt.Sprintf("user%d@example.com", i+1),
		})
	}
	if len(s.users) > 0 && len(s.orgs) > 0 {
		for i := 0; i < opts.Files; i++ {
			s.addFile(&File{
				ID:             newID(),
				Name:           fmt.Sprintf("Seed File %d", i+1),
				OwnerID:        s.users[rnd.Intn(len(s.users))].ID,
				OrganizationID: s.orgs[rnd.Intn(len(s.orgs))].ID,
				IsPublic:       rnd.Intn(2) == 1,
				ViewCount:      int64(rnd.Intn(1000)),
				Version:        1,
				LastModified:   time.Unix(1700000000+int64(i)*60, 0).UTC(),
			})
		}
	}
	return s
}

func (s *Server) addFile(f *File) {
	s.files = append(s.files, f)
	s.byID[f.ID] = f
}

// SetMode changes the behaviour of subsequent requests.
func (s *Server) SetMode(m Mode) { s.mode.Store(int32(m)) }

// Requests is the number of requests received, in any mode.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Count returns how many requests matched a route such as
// "POST /files/{id}/view". Routes are named without the prefix.
func (s *Server) Count(route string) int64 {
	s.routesMu.Lock()
	defer s.routesMu.Unlock()
	return s.routes[route]
}

// Routes returns a copy of all per-route counters.
func (s *Server) Routes() map[string]int64 {
	s.routesMu.Lock()
	defer s.routesMu.Unlock()
	out := make(map[string]int64, len(s.routes))
	for k, v := range s.routes {
		out[k] = v
	}
	return out
}

// File returns a copy of the stored file.
func (s *Server) File(id string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[id]
	if !ok {
		return File{}, false
	}
	return *f, true
}

func (s *Server) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Handler returns the API mounted under the configured prefix.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "GET /files", s.listFiles)
	s.handle(mux, "POST /files", s.createFile)
	s.handle(mux, "GET /files/{id}", s.showFile)
	s.handle(mux, "PUT /files/{id}", s.updateFile)
	s.handle(mux, "POST /files/{id}/view", s.viewFile)
	s.handle(mux, "GET /users", s.listUsers)
	s.handle(mux, "GET /organizations", s.listOrganizations)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) handle(mux *http.ServeMux, route string, h http.HandlerFunc) {
	method, path, _ := strings.Cut(route, " ")
	mux.HandleFunc(method+" "+s.prefix+path, func(w http.ResponseWriter, r *http.Request) {
		s.routesMu.Lock()
		s.routes[route]++
		s.routesMu.Unlock()

		if Mode(s.mode.Load()) == ModeFail {
			respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Server Error"})
			return
		}
		h(w, r)
	})
}

func (s *Server) empty() bool { return Mode(s.mode.Load()) == ModeEmpty }

// page renders a Laravel-style paginated listing.
func page[T any](w http.ResponseWriter, r *http.Request, items []T, defaultPerPage int) {
	perPage := defaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
		perPage = v
	}
	total := len(items)
	if len(items) > perPage {
		items = items[:perPage]
	}
	if items == nil {
		items = []T{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":         items,
		"current_page": 1,
		"per_page":     perPage,
		"total":        total,
	})
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	if s.empty() {
		page[File](w, r, nil, 20)
		return
	}
	s.mu.Lock()
	files := make([]File, len(s.files))
	for i, f := range s.files {
		files[i] = *f
	}
	s.mu.Unlock()

	if owner := r.URL.Query().Get("owner_id"); owner != "" {
		filtered := files[:0]
		for _, f := range files {
			if f.OwnerID == owner {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	desc := r.URL.Query().Get("sort_order") != "asc"
	switch r.URL.Query().Get("sort_by") {
	case "view_count":
		sort.SliceStable(files, func(i, j int) bool {
			if desc {
				return files[i].ViewCount > files[j].ViewCount
			}
			return files[i].ViewCount < files[j].ViewCount
		})
	default:
		sort.SliceStable(files, func(i, j int) bool {
			if desc {
				return files[i].LastModified.After(files[j].LastModified)
			}
			return files[i].LastModified.Before(files[j].LastModified)
		})
	}
	page(w, r, files, 20)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if s.empty() {
		page[User](w, r, nil, 20)
		return
	}
	s.mu.Lock()
	users := append([]User(nil), s.users...)
	s.mu.Unlock()
	page(w, r, users, 20)
}

func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	if s.empty() {
		page[Organization](w, r, nil, 20)
		return
	}
	s.mu.Lock()
	orgs := append([]Organization(nil), s.orgs...)
	s.mu.Unlock()
	page(w, r, orgs, 20)
}

type createFileRequest struct {
	Name           string                 `json:"name"`
	OwnerID        string                 `json:"owner_id"`
	OrganizationID string                 `json:"organization_id"`
	IsPublic       bool                   `json:"is_public"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (s *Server) createFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "malformed JSON body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	errs := map[string]string{}
	if strings.TrimSpace(req.Name) == "" || len(req.Name) > 500 {
		errs["name"] = "The name field is required."
	}
	if !s.hasUser(req.OwnerID) {
		errs["owner_id"] = "The selected owner id is invalid."
	}
	if !s.hasOrganization(req.OrganizationID) {
		errs["organization_id"] = "The selected organization id is invalid."
	}
	if len(errs) > 0 {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "The given data was invalid.", "errors": errs})
		return
	}

	f := &File{
		ID:             uuid.NewString(),
		Name:           req.Name,
		OwnerID:        req.OwnerID,
		OrganizationID: req.OrganizationID,
		IsPublic:       req.IsPublic,
		Metadata:       req.Metadata,
		Version:        1,
		LastModified:   time.Now().UTC(),
	}
	s.addFile(f)
	respondJSON(w, http.StatusCreated, f)
}

func (s *Server) hasUser(id string) bool {
	for _, u := range s.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) hasOrganization(id string) bool {
	for _, o := range s.orgs {
		if o.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) showFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.File(r.PathValue("id"))
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]any{"message": "No query results for model [File]."})
		return
	}
	respondJSON(w, http.StatusOK, f)
}

type updateFileRequest struct {
	Name     *string                `json:"name"`
	IsPublic *bool                  `json:"is_public"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) updateFile(w http.ResponseWriter, r *http.Request) {
	var req updateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "malformed JSON body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[r.PathValue("id")]
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]any{"message": "No query results for model [File]."})
		return
	}
	if req.Name != nil {
		f.Name = *req.Name
	}
	if req.IsPublic != nil {
		f.IsPublic = *req.IsPublic
	}
	if req.Metadata != nil {
		f.Metadata = req.Metadata
	}
	f.Version++
	f.LastModified = time.Now().UTC()
	respondJSON(w, http.StatusOK, f)
}

// viewFile bumps the view counter. Unknown ids are acknowledged and ignored.
func (s *Server) viewFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f, ok := s.byID[r.PathValue("id")]
	if ok {
		f.ViewCount++
	}
	s.mu.Unlock()

	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"ignored": true})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
