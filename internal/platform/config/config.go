package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile           = ".env"
	defaultHTTPTimeout       = 10 * time.Second
	defaultSessionAttempts   = 3
	defaultSessionBaseDelay  = 100 * time.Millisecond
	defaultGuardRetryCount   = 3
	defaultGuardRetryDelay   = time.Second
	defaultLocalDB           = "storefront.db"
	defaultApplicationName   = "jaya-farms"
	defaultSnapshotBackend   = SnapshotBackendREST
	defaultReloadPolicy      = ReloadEndsSession
	defaultFirestoreDatabase = "(default)"
)

// Snapshot backends selectable for remote cart storage.
const (
	SnapshotBackendREST      = "rest"
	SnapshotBackendFirestore = "firestore"
)

// Reload policies applied when a previous page lifetime left a signed-in marker behind.
const (
	ReloadEndsSession  = "end-session"
	ReloadKeepsSession = "keep-session"
)

// Config is the storefront runtime configuration.
type Config struct {
	Backend   BackendConfig
	Session   SessionConfig
	Guard     GuardConfig
	Storage   StorageConfig
	Firestore FirestoreConfig
}

// BackendConfig locates the hosted backend.
type BackendConfig struct {
	URL             string
	AnonKey         string
	ProjectRef      string
	ApplicationName string
	HTTPTimeout     time.Duration
}

// SessionConfig tunes session retrieval and the reload boundary.
type SessionConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	ReloadPolicy string
}

// GuardConfig sets data-fetch guard retry defaults.
type GuardConfig struct {
	RetryCount int
	RetryDelay time.Duration
}

type StorageConfig struct {
	LocalDB         string
	SnapshotBackend string
}

// FirestoreConfig is only consulted when SnapshotBackend is firestore.
type FirestoreConfig struct {
	ProjectID    string
	DatabaseID   string
	EmulatorHost string
}

// ValidationError lists every setting that is absent or could not be parsed.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config: missing or invalid settings: " + strings.Join(e.fields, ", ")
}

// Fields returns the offending setting names in the order they were checked.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises Load.
type Option func(*loader)

type loader struct {
	envFile   string
	overrides map[string]string
	system    bool
}

// WithEnvFile reads KEY=value lines from path. An empty path or a missing file is ignored.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// WithEnvMap supplies values that win over both the process environment and the env file.
func WithEnvMap(values map[string]string) Option {
	return func(l *loader) { l.overrides = values }
}

// WithoutSystemEnv stops Load from consulting the process environment.
func WithoutSystemEnv() Option {
	return func(l *loader) { l.system = false }
}

// Load resolves configuration from overrides, the process environment and
// the env file, in that order of precedence.
func Load(opts ...Option) (Config, error) {
	l := loader{envFile: defaultEnvFile, system: true}
	for _, opt := range opts {
		opt(&l)
	}

	fileValues, err := readEnvFile(l.envFile)
	if err != nil {
		return Config{}, err
	}
	e := &env{layers: []map[string]string{l.overrides}, fallback: fileValues, system: l.system}

	cfg := Config{
		Backend: BackendConfig{
			URL:             strings.TrimRight(e.str("STOREFRONT_BACKEND_URL", ""), "/"),
			AnonKey:         e.str("STOREFRONT_ANON_KEY", ""),
			ProjectRef:      e.str("STOREFRONT_PROJECT_REF", ""),
			ApplicationName: e.str("STOREFRONT_APPLICATION_NAME", defaultApplicationName),
			HTTPTimeout:     e.duration("STOREFRONT_HTTP_TIMEOUT", "Backend.HTTPTimeout", defaultHTTPTimeout),
		},
		Session: SessionConfig{
			MaxAttempts:  e.integer("STOREFRONT_SESSION_ATTEMPTS", "Session.MaxAttempts", defaultSessionAttempts),
			BaseDelay:    e.duration("STOREFRONT_SESSION_BASE_DELAY", "Session.BaseDelay", defaultSessionBaseDelay),
			ReloadPolicy: strings.ToLower(e.str("STOREFRONT_RELOAD_POLICY", defaultReloadPolicy)),
		},
		Guard: GuardConfig{
			RetryCount: e.integer("STOREFRONT_GUARD_RETRY_COUNT", "Guard.RetryCount", defaultGuardRetryCount),
			RetryDelay: e.duration("STOREFRONT_GUARD_RETRY_DELAY", "Guard.RetryDelay", defaultGuardRetryDelay),
		},
		Storage: StorageConfig{
			LocalDB:         e.str("STOREFRONT_LOCAL_DB", defaultLocalDB),
			SnapshotBackend: strings.ToLower(e.str("STOREFRONT_SNAPSHOT_BACKEND", defaultSnapshotBackend)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    e.str("STOREFRONT_FIRESTORE_PROJECT_ID", ""),
			DatabaseID:   e.str("STOREFRONT_FIRESTORE_DATABASE", defaultFirestoreDatabase),
			EmulatorHost: e.str("STOREFRONT_FIRESTORE_EMULATOR_HOST", ""),
		},
	}

	// The project ref names the auth storage key; derive it from the backend host when unset.
	if cfg.Backend.ProjectRef == "" {
		cfg.Backend.ProjectRef = projectRefFromURL(cfg.Backend.URL)
	}

	if invalid := append(e.invalid, check(cfg)...); len(invalid) > 0 {
		return Config{}, &ValidationError{fields: invalid}
	}
	return cfg, nil
}

func check(cfg Config) []string {
	var bad []string
	flag := func(ok bool, field string) {
		if !ok {
			bad = append(bad, field)
		}
	}

	backendURL, err := url.Parse(cfg.Backend.URL)
	flag(cfg.Backend.URL != "" && err == nil && backendURL.Scheme != "" && backendURL.Host != "", "Backend.URL")
	flag(cfg.Backend.AnonKey != "", "Backend.AnonKey")
	flag(cfg.Backend.HTTPTimeout > 0, "Backend.HTTPTimeout")
	flag(cfg.Session.MaxAttempts > 0, "Session.MaxAttempts")
	flag(cfg.Session.BaseDelay > 0, "Session.BaseDelay")
	flag(cfg.Session.ReloadPolicy == ReloadEndsSession || cfg.Session.ReloadPolicy == ReloadKeepsSession, "Session.ReloadPolicy")
	flag(cfg.Guard.RetryCount >= 0, "Guard.RetryCount")
	flag(cfg.Guard.RetryDelay > 0, "Guard.RetryDelay")
	flag(strings.TrimSpace(cfg.Storage.LocalDB) != "", "Storage.LocalDB")

	switch cfg.Storage.SnapshotBackend {
	case SnapshotBackendREST:
	case SnapshotBackendFirestore:
		flag(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
	default:
		bad = append(bad, "Storage.SnapshotBackend")
	}
	return bad
}

func projectRefFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if raw == "" || err != nil {
		return ""
	}
	host, _, _ := strings.Cut(parsed.Hostname(), ".")
	return host
}

// env resolves keys through explicit layers, then the process environment,
// then the env file. Values that fail to parse are recorded in invalid.
type env struct {
	layers   []map[string]string
	fallback map[string]string
	system   bool
	invalid  []string
}

func (e *env) get(key string) string {
	for _, layer := range e.layers {
		if v, ok := layer[key]; ok {
			return strings.TrimSpace(v)
		}
	}
	if e.system {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(e.fallback[key])
}

func (e *env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *env) duration(key, field string, def time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid = append(e.invalid, field)
		return def
	}
	return d
}

func (e *env) integer(key, field string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.invalid = append(e.invalid, field)
		return def
	}
	return n
}

// readEnvFile parses a dotenv file: comments, blank lines and an optional
// export prefix are allowed, and surrounding quotes are stripped.
func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	values := map[string]string{}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("config: %s:%d: expected KEY=value", path, n)
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}
