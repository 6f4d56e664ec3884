package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

const (
	ExecutorSQL       = "sql"
	ExecutorPostgREST = "postgrest"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	LLM           LLMConfig
	Ollama        OllamaConfig
	OpenAI        OpenAIConfig
	Fallback      FallbackConfig
	Executor      ExecutorConfig
	Database      DatabaseConfig
	PostgREST     PostgRESTConfig
	CORS          CORSConfig
	CrashLog      CrashLogConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name    string
	Version string
}

type HTTPConfig struct {
	Address           string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	DependencyTimeout time.Duration
}

type LLMConfig struct {
	Provider     string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type FallbackConfig struct {
	Enabled bool
	OnError bool
}

type ExecutorConfig struct {
	Kind           string
	RowLimitMode   string
	DefaultMaxRows int
}

type DatabaseConfig struct {
	Driver       string
	DSN          string
	QueryTimeout time.Duration
}

type PostgRESTConfig struct {
	URL      string
	APIKey   string
	Function string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type CrashLogConfig struct {
	Path string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

// legacyAliases maps primary keys to the variable names used by the first
// deployment of the service. The primary key always wins.
var legacyAliases = map[string][]string{
	"SALESQL_LLM_PROVIDER":    {"LLM_PROVIDER"},
	"SALESQL_OLLAMA_BASE_URL": {"OLLAMA_BASE_URL"},
	"SALESQL_OLLAMA_MODEL":    {"OLLAMA_MODEL"},
	"SALESQL_OPENAI_API_KEY":  {"OPENAI_API_KEY"},
	"SALESQL_OPENAI_MODEL":    {"OPENAI_MODEL"},
	"SALESQL_DB_DSN":          {"DATABASE_URL"},
	"SALESQL_POSTGREST_URL":   {"SUPABASE_URL"},
	"SALESQL_POSTGREST_KEY":   {"SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_ANON_KEY"},
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}
	lookup = withAliases(lookup)

	profile := ProfileDev
	if raw, ok := lookup("SALESQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SALESQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyListenAddress(lookup, &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}

	var corsOrigins string
	var hasCORS bool
	if raw, ok := lookup("SALESQL_CORS_ALLOWED_ORIGINS"); ok {
		corsOrigins, hasCORS = raw, true
	}

	steps := []func() error{
		func() error { return applyString(lookup, "SALESQL_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SALESQL_SERVICE_VERSION", &cfg.Service.Version) },
		func() error { return applyDuration(lookup, "SALESQL_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SALESQL_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SALESQL_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyDuration(lookup, "SALESQL_HTTP_DEPENDENCY_TIMEOUT", &cfg.HTTP.DependencyTimeout) },
		func() error { return applyString(lookup, "SALESQL_LLM_PROVIDER", &cfg.LLM.Provider) },
		func() error { return applyFloat(lookup, "SALESQL_LLM_TEMPERATURE", &cfg.LLM.Temperature) },
		func() error { return applyInt(lookup, "SALESQL_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens) },
		func() error { return applyDuration(lookup, "SALESQL_LLM_TIMEOUT", &cfg.LLM.Timeout) },
		func() error { return applyDuration(lookup, "SALESQL_LLM_PROBE_TIMEOUT", &cfg.LLM.ProbeTimeout) },
		func() error { return applyString(lookup, "SALESQL_OLLAMA_BASE_URL", &cfg.Ollama.BaseURL) },
		func() error { return applyString(lookup, "SALESQL_OLLAMA_MODEL", &cfg.Ollama.Model) },
		func() error { return applyString(lookup, "SALESQL_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL) },
		func() error { return applyString(lookup, "SALESQL_OPENAI_API_KEY", &cfg.OpenAI.APIKey) },
		func() error { return applyString(lookup, "SALESQL_OPENAI_MODEL", &cfg.OpenAI.Model) },
		func() error { return applyBool(lookup, "SALESQL_FALLBACK_ENABLED", &cfg.Fallback.Enabled) },
		func() error { return applyBool(lookup, "SALESQL_FALLBACK_ON_ERROR", &cfg.Fallback.OnError) },
		func() error { return applyString(lookup, "SALESQL_EXECUTOR", &cfg.Executor.Kind) },
		func() error { return applyString(lookup, "SALESQL_ROW_LIMIT_MODE", &cfg.Executor.RowLimitMode) },
		func() error { return applyInt(lookup, "SALESQL_DEFAULT_MAX_ROWS", &cfg.Executor.DefaultMaxRows) },
		func() error { return applyString(lookup, "SALESQL_DB_DRIVER", &cfg.Database.Driver) },
		func() error { return applyString(lookup, "SALESQL_DB_DSN", &cfg.Database.DSN) },
		func() error { return applyDuration(lookup, "SALESQL_DB_QUERY_TIMEOUT", &cfg.Database.QueryTimeout) },
		func() error { return applyString(lookup, "SALESQL_POSTGREST_URL", &cfg.PostgREST.URL) },
		func() error { return applyString(lookup, "SALESQL_POSTGREST_KEY", &cfg.PostgREST.APIKey) },
		func() error { return applyString(lookup, "SALESQL_POSTGREST_FUNCTION", &cfg.PostgREST.Function) },
		func() error { return applyString(lookup, "SALESQL_CRASH_LOG_PATH", &cfg.CrashLog.Path) },
		func() error { return applyString(lookup, "SALESQL_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SALESQL_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SALESQL_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "SALESQL_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, "SALESQL_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, "SALESQL_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SALESQL_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "SALESQL_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyBool(lookup, "SALESQL_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SALESQL_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}
	if hasCORS {
		cfg.CORS.AllowedOrigins = splitList(corsOrigins)
	}

	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.Executor.Kind = strings.ToLower(cfg.Executor.Kind)
	cfg.Executor.RowLimitMode = strings.ToLower(cfg.Executor.RowLimitMode)
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	return cfg, nil
}

// Validate reports settings the service cannot start without. Provider
// reachability is not checked here; an unreachable provider degrades to the
// demo fallback instead.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderOllama, ProviderNone:
	default:
		return fmt.Errorf("%w: unsupported llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}

	switch c.Executor.Kind {
	case ExecutorSQL:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("%w: SALESQL_DB_DSN is required for the sql executor", ErrInvalidConfig)
		}
		switch c.Database.Driver {
		case "pgx", "duckdb", "sqlite", "mysql":
		default:
			return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
		}
	case ExecutorPostgREST:
		if strings.TrimSpace(c.PostgREST.URL) == "" || strings.TrimSpace(c.PostgREST.APIKey) == "" {
			return fmt.Errorf("%w: postgrest url and key are required for the postgrest executor", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported executor %q", ErrInvalidConfig, c.Executor.Kind)
	}

	switch c.Executor.RowLimitMode {
	case "", "none", "truncate", "wrap":
	default:
		return fmt.Errorf("%w: unsupported row limit mode %q", ErrInvalidConfig, c.Executor.RowLimitMode)
	}
	if c.Executor.DefaultMaxRows < 0 {
		return fmt.Errorf("%w: SALESQL_DEFAULT_MAX_ROWS must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "salesql-api", Version: "1.0.0"},
		HTTP: HTTPConfig{
			Address:           "0.0.0.0:8000",
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      150 * time.Second,
			IdleTimeout:       60 * time.Second,
			DependencyTimeout: 2 * time.Second,
		},
		LLM: LLMConfig{
			Provider:     ProviderOllama,
			Temperature:  0.1,
			MaxTokens:    500,
			Timeout:      30 * time.Second,
			ProbeTimeout: 2 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com",
			Model:   "gpt-4o-mini",
		},
		Fallback: FallbackConfig{
			Enabled: true,
			OnError: true,
		},
		Executor: ExecutorConfig{
			Kind:           ExecutorSQL,
			DefaultMaxRows: 100,
		},
		Database: DatabaseConfig{
			Driver: "pgx",
		},
		PostgREST: PostgRESTConfig{
			Function: "execute_sql",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		CrashLog: CrashLogConfig{
			Path: "salesql-crash.log",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "salesql",
			AccessKeyID:      "minioadmin",
			SecretAccessKey:  "minioadmin",
			UseSSL:           false,
			Prefix:           "extracts",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = "127.0.0.1:18000"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.AccessKeyID = ""
		cfg.ObjectStore.SecretAccessKey = ""
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func withAliases(lookup LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		if value, ok := lookup(key); ok {
			return value, true
		}
		for _, alias := range legacyAliases[key] {
			if value, ok := lookup(alias); ok && strings.TrimSpace(value) != "" {
				return value, true
			}
		}
		return "", false
	}
}

// applyListenAddress honours SALESQL_HTTP_ADDR first and otherwise composes
// the address from BACKEND_HOST and BACKEND_PORT.
func applyListenAddress(lookup LookupFunc, dst *string) error {
	if raw, ok := lookup("SALESQL_HTTP_ADDR"); ok {
		*dst = strings.TrimSpace(raw)
		return nil
	}
	host, hasHost := lookup("BACKEND_HOST")
	port, hasPort := lookup("BACKEND_PORT")
	if !hasHost && !hasPort {
		return nil
	}
	currentHost, currentPort, err := net.SplitHostPort(*dst)
	if err != nil {
		return fmt.Errorf("invalid default http address %q: %w", *dst, err)
	}
	if hasHost {
		currentHost = strings.TrimSpace(host)
	}
	if hasPort {
		port = strings.TrimSpace(port)
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid BACKEND_PORT: %w", err)
		}
		currentPort = port
	}
	*dst = net.JoinHostPort(currentHost, currentPort)
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
