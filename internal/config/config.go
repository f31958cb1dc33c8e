package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Sub-configurations for optional collaborators
// (Redis, S3, geocoder, broker) are loaded by their own constructors.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	LogLevel       string // slog level: debug, info, warn, error
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBMigrate      bool   // apply the embedded schema at startup
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	RequestTimeout time.Duration

	Closure  ClosureConfig
	Upload   UploadConfig
	Geocoder GeocoderConfig
	Broker   BrokerConfig
}

// ClosureConfig holds the thresholds that flip an occurrence to inactive.
// A zero threshold disables that rule.
type ClosureConfig struct {
	ClosureThreshold     int
	NonExistingThreshold int
}

// UploadConfig bounds image uploads.
type UploadConfig struct {
	MaxBytes int64
}

// GeocoderConfig points at a Nominatim-compatible details endpoint.
type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// BrokerConfig configures the RabbitMQ event pipeline.  An empty URL turns
// publishing into a no-op and disables the consumer.
type BrokerConfig struct {
	URL   string
	Queue string
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when present.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:            must("APP_ENV"),                        // environment (dev/test/prod)
		Port:           must("APP_PORT"),                       // port to bind the HTTP server
		LogLevel:       envStr("LOG_LEVEL", "info"),            // log verbosity
		DBUser:         must("DB_USER"),                        // database user
		DBPass:         os.Getenv("DB_PASS"),                   // database password (empty allowed)
		DBHost:         must("DB_HOST"),                        // database host
		DBPort:         must("DB_PORT"),                        // database port
		DBName:         must("DB_NAME"),                        // database name
		DBMigrate:      envBool("DB_MIGRATE", true),            // create tables on boot
		JWTSecret:      must("JWT_SECRET"),                     // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),        // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),      // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),                 // bcrypt cost factor
		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second), // per-request DB budget
		Closure: ClosureConfig{
			ClosureThreshold:     envInt("CLOSURE_THRESHOLD", 3),
			NonExistingThreshold: envInt("NON_EXISTING_THRESHOLD", 3),
		},
		Upload: UploadConfig{
			MaxBytes: int64(envInt("UPLOAD_MAX_BYTES", 5<<20)),
		},
		Geocoder: GeocoderConfig{
			BaseURL:   envStr("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: envStr("GEOCODER_USER_AGENT", "cityhelp/1.0"),
			Timeout:   envDur("GEOCODER_TIMEOUT", 5*time.Second),
		},
		Broker: BrokerConfig{
			URL:   brokerURL(),
			Queue: envStr("EVENTS_QUEUE", "occurrence.events"),
		},
	}
}

// brokerURL accepts both RABBITMQ_URL and AMQP_URL.
func brokerURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
