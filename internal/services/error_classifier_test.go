// internal/services/error_classifier_test.go
package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/marketflow/internal/baas"
	"github.com/javajoker/marketflow/internal/models"
)

func TestErrorClassifier_Classify(t *testing.T) {
	classifier := NewErrorClassifier(nil)

	tests := []struct {
		name    string
		failure models.BackendFailure
		want    models.ErrorCategory
	}{
		{
			name:    "missing relation",
			failure: models.BackendFailure{Kind: models.FailureKindBackend, Message: `relation "public.products" does not exist`, Code: "42P01"},
			want:    models.ErrorCategorySchemaMissing,
		},
		{
			name:    "schema cache miss",
			failure: models.BackendFailure{Kind: models.FailureKindBackend, Message: "Could not find the table 'public.products' in the schema cache"},
			want:    models.ErrorCategorySchemaMissing,
		},
		{
			name:    "code only",
			failure: models.BackendFailure{Kind: models.FailureKindBackend, Code: "PGRST205"},
			want:    models.ErrorCategorySchemaMissing,
		},
		{
			name:    "bad key",
			failure: models.BackendFailure{Kind: models.FailureKindBackend, Message: "Invalid API key", Hint: "Double check your anon key"},
			want:    models.ErrorCategoryConfigInvalid,
		},
		{
			name:    "fetch failure",
			failure: models.BackendFailure{Kind: models.FailureKindUnknown, Message: "TypeError: Failed to fetch"},
			want:    models.ErrorCategoryConfigInvalid,
		},
		{
			name:    "transport without marker",
			failure: models.BackendFailure{Kind: models.FailureKindTransport, Message: "i/o timeout"},
			want:    models.ErrorCategoryConfigInvalid,
		},
		{
			name:    "schema wins over config",
			failure: models.BackendFailure{Kind: models.FailureKindTransport, Message: "network: table does not exist"},
			want:    models.ErrorCategorySchemaMissing,
		},
		{
			name:    "anything else",
			failure: models.BackendFailure{Kind: models.FailureKindBackend, Message: "new row violates row-level security policy"},
			want:    models.ErrorCategoryGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.failure)
			assert.Equal(t, tt.want, got.Category)
			assert.Equal(t, tt.failure.DisplayMessage(), got.Message)
			// deterministic
			assert.Equal(t, got, classifier.Classify(tt.failure))
		})
	}
}

func TestErrorClassifier_Wrap(t *testing.T) {
	classifier := NewErrorClassifier(nil)

	t.Run("baas error", func(t *testing.T) {
		err := fmt.Errorf("list products: %w", &baas.Error{Status: 404, Code: "42P01", Message: `relation "products" does not exist`})
		classified := classifier.Wrap(err)
		assert.Equal(t, models.ErrorCategorySchemaMissing, classified.Category)
		assert.Equal(t, "42P01", classified.Code)
		assert.ErrorIs(t, classified, err)
	})

	t.Run("postgres error", func(t *testing.T) {
		err := &pgconn.PgError{Code: "42P01", Message: `relation "products" does not exist`}
		classified := classifier.Wrap(err)
		assert.Equal(t, models.ErrorCategorySchemaMissing, classified.Category)
		assert.Equal(t, models.FailureKindBackend, classified.Failure.Kind)
	})

	t.Run("transport error", func(t *testing.T) {
		classified := classifier.Wrap(&baas.TransportError{Err: errors.New("context deadline exceeded")})
		assert.Equal(t, models.ErrorCategoryConfigInvalid, classified.Category)
	})

	t.Run("already classified", func(t *testing.T) {
		first := classifier.Wrap(errors.New("boom"))
		assert.Same(t, first, classifier.Wrap(fmt.Errorf("again: %w", first)))
	})
}

func TestParseErrorPatterns(t *testing.T) {
	data := []byte(`
patterns:
  - category: SCHEMA_MISSING
    markers: ["undefined_table"]
  - category: CONFIG_INVALID
    markers: ["  JWT Secret  "]
`)
	patterns, err := ParseErrorPatterns(data)
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	classifier := NewErrorClassifier(patterns)
	assert.Equal(t, models.ErrorCategorySchemaMissing,
		classifier.Classify(models.BackendFailure{Message: "ERROR: undefined_table"}).Category)
	assert.Equal(t, models.ErrorCategoryConfigInvalid,
		classifier.Classify(models.BackendFailure{Message: "bad jwt secret"}).Category)
	// the default markers are replaced, not extended
	assert.Equal(t, models.ErrorCategoryGeneric,
		classifier.Classify(models.BackendFailure{Message: "relation does not exist"}).Category)
}

func TestParseErrorPatterns_Invalid(t *testing.T) {
	_, err := ParseErrorPatterns([]byte("patterns:\n  - category: NOPE\n    markers: [x]\n"))
	assert.Error(t, err)

	_, err = ParseErrorPatterns([]byte("patterns: []\n"))
	assert.Error(t, err)

	_, err = ParseErrorPatterns([]byte("patterns: ["))
	assert.Error(t, err)
}

func TestLoadErrorPatterns(t *testing.T) {
	patterns, err := LoadErrorPatterns("")
	require.NoError(t, err)
	assert.Equal(t, DefaultErrorPatterns, patterns)

	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns:\n  - category: GENERIC\n    markers: [teapot]\n"), 0o600))
	patterns, err = LoadErrorPatterns(path)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, models.ErrorCategoryGeneric, patterns[0].Category)

	_, err = LoadErrorPatterns(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
