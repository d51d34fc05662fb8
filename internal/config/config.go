// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	IdentityProviderLocal = "local"
	IdentityProviderBaaS  = "baas"

	ProductBackendBaaS     = "baas"
	ProductBackendPostgres = "postgres"
)

type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	AWS         AWSConfig
	BaaS        BaaSConfig
	Identity    IdentityConfig
	Products    ProductsConfig
	GenAI       GenAIConfig
	Classifier  ClassifierConfig
	I18n        I18nConfig
	Frontend    FrontendConfig
}

type FrontendConfig struct {
	AllowedOrigins []string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

// DatabaseConfig is only used when the product backend is "postgres": the
// same products relation the BaaS exposes, reached over a direct connection.
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
	AutoMigrate  bool
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

// RedisConfig is optional. Without an address the record store stays in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
}

type BaaSConfig struct {
	URL            string
	AnonKey        string
	RequestTimeout time.Duration
}

type IdentityConfig struct {
	Provider          string
	AdminKey          string
	MinPasswordLength int
	RestoreTimeout    time.Duration
	WizardIdleTTL     time.Duration
}

type ProductsConfig struct {
	Backend       string
	MaxImages     int
	MaxImageBytes int64
	ContactNumber string
	DraftIdleTTL  time.Duration
	ProductsTable string
}

type GenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type ClassifierConfig struct {
	PatternsFile string
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads the environment after loading envFile. An empty envFile
// loads .env when it exists.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else {
		// Load .env file if it exists
		godotenv.Load()
	}

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "postgres"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24*7),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "marketflow-product-images"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
		},
		BaaS: BaaSConfig{
			URL:            strings.TrimRight(getEnv("BAAS_URL", "https://YOUR_PROJECT_ID.supabase.co"), "/"),
			AnonKey:        getEnv("BAAS_ANON_KEY", "YOUR_ANON_KEY"),
			RequestTimeout: getEnvAsDuration("BAAS_REQUEST_TIMEOUT", 20*time.Second),
		},
		Identity: IdentityConfig{
			Provider:          strings.ToLower(getEnv("IDENTITY_PROVIDER", IdentityProviderLocal)),
			AdminKey:          os.Getenv("ADMIN_KEY"),
			MinPasswordLength: getEnvAsInt("MIN_PASSWORD_LENGTH", 6),
			RestoreTimeout:    getEnvAsDuration("SESSION_RESTORE_TIMEOUT", 5*time.Second),
			WizardIdleTTL:     getEnvAsDuration("WIZARD_IDLE_TTL", 30*time.Minute),
		},
		Products: ProductsConfig{
			Backend:       strings.ToLower(getEnv("PRODUCT_BACKEND", ProductBackendBaaS)),
			MaxImages:     getEnvAsInt("PRODUCT_MAX_IMAGES", 3),
			MaxImageBytes: int64(getEnvAsInt("PRODUCT_MAX_IMAGE_BYTES", 500000)),
			ContactNumber: getEnv("CONTACT_WHATSAPP_NUMBER", ""),
			DraftIdleTTL:  getEnvAsDuration("DRAFT_IDLE_TTL", 2*time.Hour),
			ProductsTable: getEnv("PRODUCTS_TABLE", "products"),
		},
		GenAI: GenAIConfig{
			APIKey:  getEnv("GENAI_API_KEY", os.Getenv("API_KEY")),
			Model:   getEnv("GENAI_MODEL", "gemini-2.5-flash"),
			Timeout: getEnvAsDuration("GENAI_TIMEOUT", 15*time.Second),
		},
		Classifier: ClassifierConfig{
			PatternsFile: getEnv("CLASSIFIER_PATTERNS_FILE", ""),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Frontend: FrontendConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Identity.Provider != IdentityProviderLocal && c.Identity.Provider != IdentityProviderBaaS {
		return fmt.Errorf("unknown identity provider %q", c.Identity.Provider)
	}

	if c.Products.Backend != ProductBackendBaaS && c.Products.Backend != ProductBackendPostgres {
		return fmt.Errorf("unknown product backend %q", c.Products.Backend)
	}

	if c.Products.MaxImages < 1 {
		return fmt.Errorf("PRODUCT_MAX_IMAGES must be at least 1")
	}

	if c.Identity.MinPasswordLength < 6 {
		c.Identity.MinPasswordLength = 6
	}

	if c.Environment == "production" {
		if c.JWT.SecretKey == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT secret key must be changed in production")
		}
		if c.Identity.AdminKey == "" {
			return fmt.Errorf("ADMIN_KEY is required in production")
		}
	}

	return nil
}

// DSN is the key/value connection string for the products database.
// Values are quoted so passwords with spaces survive.
func (d *DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + dsnQuote(d.Host),
		"port=" + dsnQuote(d.Port),
		"user=" + dsnQuote(d.User),
		"dbname=" + dsnQuote(d.Database),
		"sslmode=" + dsnQuote(d.SSLMode),
		"application_name=marketflow",
	}
	if d.Password != "" {
		parts = append(parts, "password="+dsnQuote(d.Password))
	}
	return strings.Join(parts, " ")
}

func dsnQuote(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
