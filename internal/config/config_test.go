package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("IDENTITY_PROVIDER", "")
	t.Setenv("PRODUCT_BACKEND", "")
	t.Setenv("PRODUCT_MAX_IMAGES", "")
	t.Setenv("PRODUCT_MAX_IMAGE_BYTES", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("MIN_PASSWORD_LENGTH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, IdentityProviderLocal, cfg.Identity.Provider)
	assert.Equal(t, ProductBackendBaaS, cfg.Products.Backend)
	assert.Equal(t, 3, cfg.Products.MaxImages)
	assert.Equal(t, int64(500000), cfg.Products.MaxImageBytes)
	assert.Equal(t, 6, cfg.Identity.MinPasswordLength)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Frontend.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", "BaaS")
	t.Setenv("PRODUCT_BACKEND", "postgres")
	t.Setenv("BAAS_URL", "https://proj.example.co/")
	t.Setenv("BAAS_REQUEST_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DB_AUTO_MIGRATE", "TRUE")
	t.Setenv("MIN_PASSWORD_LENGTH", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, IdentityProviderBaaS, cfg.Identity.Provider)
	assert.Equal(t, ProductBackendPostgres, cfg.Products.Backend)
	assert.Equal(t, "https://proj.example.co", cfg.BaaS.URL)
	assert.Equal(t, 3*time.Second, cfg.BaaS.RequestTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Frontend.AllowedOrigins)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 6, cfg.Identity.MinPasswordLength)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CONTACT_WHATSAPP_NUMBER=15550001111\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CONTACT_WHATSAPP_NUMBER") })

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "15550001111", cfg.Products.ContactNumber)

	_, err = LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			JWT:         JWTConfig{SecretKey: "your-secret-key-change-in-production"},
			Identity:    IdentityConfig{Provider: IdentityProviderLocal, MinPasswordLength: 6},
			Products:    ProductsConfig{Backend: ProductBackendBaaS, MaxImages: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Identity.Provider = "ldap" }, true},
		{"unknown backend", func(c *Config) { c.Products.Backend = "mysql" }, true},
		{"no image slots", func(c *Config) { c.Products.MaxImages = 0 }, true},
		{"production default secret", func(c *Config) {
			c.Environment = "production"
			c.Identity.AdminKey = "key"
		}, true},
		{"production without admin key", func(c *Config) {
			c.Environment = "production"
			c.JWT.SecretKey = "real-secret"
		}, true},
		{"production", func(c *Config) {
			c.Environment = "production"
			c.JWT.SecretKey = "real-secret"
			c.Identity.AdminKey = "key"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Database: "mf", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u dbname=mf sslmode=disable application_name=marketflow", d.DSN())

	d.Password = `it's a secret`
	assert.Equal(t, `host=db port=5432 user=u dbname=mf sslmode=disable application_name=marketflow password='it\'s a secret'`, d.DSN())
}
