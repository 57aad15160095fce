package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures configuration of the progress mirror service.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	ProgressStore string // memory | postgres | redis
	MaxBodyBytes  int64
	Log           Log
	Database      DatabaseConfig
	Redis         RedisConfig
}

// Log selects the slog handler.
type Log struct {
	Level  string
	Format string // json | text
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client captures configuration of the declaration engine embedded in the
// portal front end.
type Client struct {
	APIBaseURL     string
	DraftDBPath    string
	RequestTimeout time.Duration
	MirrorDebounce time.Duration
	MirrorSpacing  time.Duration
	MirrorMaxBytes int
	PatchMaxBytes  int
	PatchDebounce  time.Duration
	BiennialWindow Window
	Log            Log
}

// Window is an administrator-configured Biennial declaration window. Zero
// values mean "not configured".
type Window struct {
	Start time.Time
	End   time.Time
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("DIALS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     os.Getenv("JWT_ISSUER"),
		JWTAudience:   os.Getenv("JWT_AUDIENCE"),
		ProgressStore: envOr("PROGRESS_STORE", "memory"),
		MaxBodyBytes:  int64(envInt("PROGRESS_MAX_BODY_BYTES", 1<<20)),
		Log:           logFromEnv(),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(envInt("DATABASE_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

// ClientFromEnv builds the engine configuration. Defaults mirror the limits the
// backend enforces.
func ClientFromEnv() Client {
	return Client{
		APIBaseURL:     envOr("DIALS_API_BASE_URL", "http://localhost:8080/api"),
		DraftDBPath:    envOr("DIALS_DRAFT_DB", "dials-drafts.db"),
		RequestTimeout: envDuration("DIALS_REQUEST_TIMEOUT", 0),
		MirrorDebounce: envDuration("DIALS_MIRROR_DEBOUNCE", 800*time.Millisecond),
		MirrorSpacing:  envDuration("DIALS_MIRROR_SPACING", 2*time.Second),
		MirrorMaxBytes: envInt("DIALS_MIRROR_MAX_BYTES", 250*1024),
		PatchMaxBytes:  envInt("DIALS_PATCH_MAX_BYTES", 40*1024),
		PatchDebounce:  envDuration("DIALS_PATCH_DEBOUNCE", 600*time.Millisecond),
		BiennialWindow: Window{
			Start: envDate("DIALS_BIENNIAL_WINDOW_START"),
			End:   envDate("DIALS_BIENNIAL_WINDOW_END"),
		},
		Log: logFromEnv(),
	}
}

func logFromEnv() Log {
	return Log{
		Level:  envOr("LOG_LEVEL", "info"),
		Format: envOr("LOG_FORMAT", "json"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envDate(key string) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
