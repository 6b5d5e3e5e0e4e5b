package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// AnonKey is the API key accepted by HTTPBackend.
const AnonKey = "test-anon-key"

var jwtSecret = []byte("storefront-test-secret")

type row = map[string]any

// RecordedRequest captures a request served by HTTPBackend.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type httpUser struct {
	id        string
	email     string
	password  string
	confirmed bool
}

type forcedFailure struct {
	status  int
	payload any
}

// HTTPBackend serves the auth and table endpoints used by the rest client from memory.
type HTTPBackend struct {
	Server *httptest.Server
	// Now stamps issued tokens and inserted rows.
	Now func() time.Time
	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration

	mu        sync.Mutex
	users     map[string]*httpUser
	access    map[string]string
	refresh   map[string]string
	tables    map[string][]row
	orderSeq  int
	failures  map[string]forcedFailure
	requests  []RecordedRequest
	confirmed bool
	autoLogin bool
}

// NewHTTPBackend starts a fake backend seeded with the fixture catalogue. It is
// closed when the test ends.
func NewHTTPBackend(t testing.TB) *HTTPBackend {
	t.Helper()
	b := &HTTPBackend{
		Now:       time.Now,
		TokenTTL:  time.Hour,
		users:     map[string]*httpUser{},
		access:    map[string]string{},
		refresh:   map[string]string{},
		tables:    map[string][]row{},
		failures:  map[string]forcedFailure{},
		confirmed: true,
	}
	b.seedCatalog(MustSeedCatalog())
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the server.
func (b *HTTPBackend) URL() string {
	return b.Server.URL
}

// RequireConfirmation makes new sign-ups unconfirmed.
func (b *HTTPBackend) RequireConfirmation() {
	b.mu.Lock()
	b.confirmed = false
	b.mu.Unlock()
}

// SignInOnSignUp makes sign-up answer with a session for the new account.
func (b *HTTPBackend) SignInOnSignUp() {
	b.mu.Lock()
	b.autoLogin = true
	b.mu.Unlock()
}

// AddUser registers a user directly and returns its id.
func (b *HTTPBackend) AddUser(email, password string, confirmed bool) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := &httpUser{id: uuid.NewString(), email: strings.ToLower(email), password: password, confirmed: confirmed}
	b.users[u.email] = u
	return u.id
}

// PutRow appends a row to table.
func (b *HTTPBackend) PutRow(table string, r map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables[table] = append(b.tables[table], cloneRow(r))
}

// Rows returns a copy of the rows of table.
func (b *HTTPBackend) Rows(table string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0, len(b.tables[table]))
	for _, r := range b.tables[table] {
		out = append(out, cloneRow(r))
	}
	return out
}

// Fail makes the next request to method and path answer with status and payload.
func (b *HTTPBackend) Fail(method, path string, status int, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = forcedFailure{status: status, payload: payload}
}

// ExpireTokens invalidates every issued access token while keeping refresh tokens.
func (b *HTTPBackend) ExpireTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = map[string]string{}
}

// Requests returns the requests served so far.
func (b *HTTPBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// LastRequest returns the most recent request to method and path.
func (b *HTTPBackend) LastRequest(method, path string) (RecordedRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Method == method && b.requests[i].Path == path {
			return b.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

func (b *HTTPBackend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Use(b.forced)
	r.Use(b.requireAPIKey)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/signup", b.handleSignUp)
		r.Post("/token", b.handleToken)
		r.Get("/user", b.handleUser)
		r.Post("/logout", b.handleLogout)
	})
	r.Route("/rest/v1", func(r chi.Router) {
		r.Get("/{table}", b.handleSelect)
		r.Post("/{table}", b.handleInsert)
	})
	return r
}

func (b *HTTPBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		b.mu.Lock()
		b.requests = append(b.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *HTTPBackend) forced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		failure, ok := b.failures[key]
		delete(b.failures, key)
		b.mu.Unlock()
		if ok {
			writeJSON(w, failure.status, failure.payload)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *HTTPBackend) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != AnonKey {
			writeJSON(w, http.StatusUnauthorized, row{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *HTTPBackend) authError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, row{"code": status, "error_code": code, "msg": msg})
}

func (b *HTTPBackend) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		b.authError(w, http.StatusBadRequest, "validation_failed", "invalid body")
		return
	}
	if len(creds.Password) < 6 {
		b.authError(w, http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters.")
		return
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[email]; exists {
		b.authError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	u := &httpUser{id: uuid.NewString(), email: email, password: creds.Password, confirmed: b.confirmed}
	b.users[email] = u
	if b.autoLogin && u.confirmed {
		writeJSON(w, http.StatusOK, b.issue(u))
		return
	}
	writeJSON(w, http.StatusOK, row{"id": u.id, "email": u.email})
}

func (b *HTTPBackend) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		b.authError(w, http.StatusBadRequest, "validation_failed", "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	switch r.URL.Query().Get("grant_type") {
	case "password":
		u, ok := b.users[strings.ToLower(strings.TrimSpace(body.Email))]
		if !ok || u.password != body.Password {
			b.authError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
			return
		}
		if !u.confirmed {
			b.authError(w, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
			return
		}
		writeJSON(w, http.StatusOK, b.issue(u))
	case "refresh_token":
		email, ok := b.refresh[body.RefreshToken]
		if !ok {
			b.authError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		delete(b.refresh, body.RefreshToken)
		writeJSON(w, http.StatusOK, b.issue(b.users[email]))
	default:
		b.authError(w, http.StatusBadRequest, "validation_failed", "unsupported grant_type")
	}
}

// issue mints a session for u. Callers must hold b.mu.
func (b *HTTPBackend) issue(u *httpUser) row {
	now := b.Now().UTC()
	exp := now.Add(b.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.id,
		"email": u.email,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
		"jti":   uuid.NewString(),
	})
	access, err := token.SignedString(jwtSecret)
	if err != nil {
		panic(fmt.Sprintf("testutil: sign token: %v", err))
	}
	refresh := uuid.NewString()
	b.access[access] = u.email
	b.refresh[refresh] = u.email
	return row{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    int64(b.TokenTTL / time.Second),
		"expires_at":    exp.Unix(),
		"refresh_token": refresh,
		"user":          row{"id": u.id, "email": u.email},
	}
}

// caller resolves the bearer token. Callers must hold b.mu.
func (b *HTTPBackend) caller(r *http.Request) (*httpUser, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	email, ok := b.access[token]
	if !ok {
		return nil, false
	}
	return b.users[email], true
}

func (b *HTTPBackend) handleUser(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.caller(r)
	if !ok {
		b.authError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	writeJSON(w, http.StatusOK, row{"id": u.id, "email": u.email})
}

func (b *HTTPBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if _, ok := b.access[token]; !ok {
		b.authError(w, http.StatusForbidden, "session_not_found", "Session from session_id claim in JWT does not exist")
		return
	}
	delete(b.access, token)
	w.WriteHeader(http.StatusNoContent)
}

// authorizeTable rejects bearer tokens that are neither the anon key nor a live access token.
func (b *HTTPBackend) authorizeTable(w http.ResponseWriter, r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == AnonKey {
		return true
	}
	if _, ok := b.access[token]; ok {
		return true
	}
	writeJSON(w, http.StatusUnauthorized, row{"code": "PGRST301", "message": "JWT expired"})
	return false
}

func (b *HTTPBackend) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	query := r.URL.Query()

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.authorizeTable(w, r) {
		return
	}
	rows, ok := b.tables[table]
	if !ok && !knownTable(table) {
		writeJSON(w, http.StatusNotFound, row{"code": "42P01", "message": fmt.Sprintf("relation \"public.%s\" does not exist", table)})
		return
	}

	var out []row
	for _, candidate := range rows {
		if matchesFilters(candidate, query) {
			out = append(out, b.embed(table, candidate, query.Get("select")))
		}
	}
	if order := query.Get("order"); strings.HasPrefix(order, "created_at.desc") {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []row{}
	}
	writeJSON(w, http.StatusOK, out)
}

// embed attaches the related rows named in a select list. Callers must hold b.mu.
func (b *HTTPBackend) embed(table string, r row, sel string) row {
	out := cloneRow(r)
	if table != "orders" {
		return out
	}
	if strings.Contains(sel, "order_items(") {
		var items []row
		for _, item := range b.tables["order_items"] {
			if item["order_id"] == r["id"] {
				items = append(items, cloneRow(item))
			}
		}
		if items == nil {
			items = []row{}
		}
		out["order_items"] = items
	}
	if strings.Contains(sel, "customers(") {
		out["customers"] = nil
		for _, c := range b.tables["customers"] {
			if c["id"] == r["customer_id"] {
				out["customers"] = row{"first_name": c["first_name"], "last_name": c["last_name"], "email": c["email"], "phone": c["phone"]}
			}
		}
	}
	return out
}

func (b *HTTPBackend) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, row{"code": "PGRST102", "message": "Empty or invalid json"})
		return
	}
	var rows []row
	if err := json.Unmarshal(raw, &rows); err != nil {
		var single row
		if err := json.Unmarshal(raw, &single); err != nil {
			writeJSON(w, http.StatusBadRequest, row{"code": "PGRST102", "message": "Empty or invalid json"})
			return
		}
		rows = []row{single}
	}
	prefer := r.Header.Get("Prefer")
	merge := strings.Contains(prefer, "resolution=merge-duplicates")
	conflict := r.URL.Query().Get("on_conflict")

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.authorizeTable(w, r) {
		return
	}
	if !knownTable(table) {
		writeJSON(w, http.StatusNotFound, row{"code": "42P01", "message": fmt.Sprintf("relation \"public.%s\" does not exist", table)})
		return
	}

	var written []row
	for _, incoming := range rows {
		switch table {
		case "orders":
			b.orderSeq++
			incoming["id"] = fmt.Sprintf("ord-%04d", b.orderSeq)
			if _, ok := incoming["created_at"]; !ok {
				incoming["created_at"] = b.Now().UTC().Format(time.RFC3339)
			}
		case "order_items":
			if !b.exists("orders", "id", incoming["order_id"]) {
				writeJSON(w, http.StatusConflict, row{"code": "23503", "message": "insert or update on table \"order_items\" violates foreign key constraint \"order_items_order_id_fkey\""})
				return
			}
		case "customers":
			if _, ok := incoming["created_at"]; !ok {
				incoming["created_at"] = b.Now().UTC().Format(time.RFC3339)
			}
		}

		key := "id"
		if conflict != "" {
			key = conflict
		}
		if idx := b.indexOf(table, key, incoming[key]); idx >= 0 {
			if !merge {
				writeJSON(w, http.StatusConflict, row{"code": "23505", "message": fmt.Sprintf("duplicate key value violates unique constraint \"%s_pkey\"", table)})
				return
			}
			for k, v := range incoming {
				b.tables[table][idx][k] = v
			}
			written = append(written, cloneRow(b.tables[table][idx]))
			continue
		}
		b.tables[table] = append(b.tables[table], incoming)
		written = append(written, cloneRow(incoming))
	}

	if strings.Contains(prefer, "return=representation") {
		writeJSON(w, http.StatusCreated, written)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// indexOf finds the row of table whose key column equals value. Callers must hold b.mu.
func (b *HTTPBackend) indexOf(table, key string, value any) int {
	if value == nil {
		return -1
	}
	for i, r := range b.tables[table] {
		if fmt.Sprint(r[key]) == fmt.Sprint(value) {
			return i
		}
	}
	return -1
}

func (b *HTTPBackend) exists(table, key string, value any) bool {
	return b.indexOf(table, key, value) >= 0
}

func (b *HTTPBackend) seedCatalog(c Catalog) {
	for i, p := range c.Listings {
		b.tables["product_listings"] = append(b.tables["product_listings"], row{
			"id":            string(p.ID),
			"name":          p.Name,
			"description":   p.Description,
			"base_price":    rupees(int64(p.Price)),
			"sale_price":    nil,
			"is_on_sale":    false,
			"images":        p.Images,
			"badge":         p.Badge,
			"category_name": p.Category,
			"rating_avg":    5 - i,
		})
	}
	for _, p := range c.Products {
		b.tables["products"] = append(b.tables["products"], row{
			"id":          string(p.Product.ID),
			"name":        p.Product.Name,
			"description": p.Product.Description,
			"base_price":  rupees(int64(p.Product.Price)),
			"is_on_sale":  false,
			"is_active":   p.Active,
			"images":      p.Product.Images,
			"features":    p.Product.Features,
			"categories":  row{"name": p.Product.Category, "slug": p.Product.Category},
		})
	}
}

func knownTable(table string) bool {
	switch table {
	case "customers", "user_sessions", "products", "product_listings", "orders", "order_items":
		return true
	}
	return false
}

// matchesFilters applies eq.<value> filters; other parameters are ignored.
func matchesFilters(r row, query map[string][]string) bool {
	for column, values := range query {
		switch column {
		case "select", "order", "limit", "on_conflict":
			continue
		}
		for _, v := range values {
			if !strings.HasPrefix(v, "eq.") {
				continue
			}
			if fmt.Sprint(r[column]) != strings.TrimPrefix(v, "eq.") {
				return false
			}
		}
	}
	return true
}

func rupees(paise int64) float64 {
	return float64(paise) / 100
}

func cloneRow(r row) row {
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
