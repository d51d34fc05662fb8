// internal/services/error_classifier.go
package services

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gopkg.in/yaml.v3"

	"github.com/javajoker/marketflow/internal/baas"
	"github.com/javajoker/marketflow/internal/models"
)

// ErrorPattern maps a set of markers onto a category. A pattern matches when
// any marker occurs in the failure text, compared case-insensitively.
type ErrorPattern struct {
	Category models.ErrorCategory `yaml:"category" json:"category"`
	Markers  []string             `yaml:"markers" json:"markers"`
}

// DefaultErrorPatterns is evaluated in order; the first match wins.
var DefaultErrorPatterns = []ErrorPattern{
	{
		Category: models.ErrorCategorySchemaMissing,
		Markers: []string{
			"does not exist",
			"could not find the table",
			"42p01",
			"pgrst205",
		},
	},
	{
		Category: models.ErrorCategoryConfigInvalid,
		Markers: []string{
			"failed to fetch",
			"network",
			"apikey",
			"invalid api key",
			"no such host",
			"connection refused",
		},
	},
}

type Classification struct {
	Category models.ErrorCategory `json:"category"`
	Message  string               `json:"message"`
	Code     string               `json:"code,omitempty"`
}

// ClassifiedError is how backend failures leave the services layer.
type ClassifiedError struct {
	Classification
	Failure models.BackendFailure
	Err     error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

type ErrorClassifier struct {
	patterns []ErrorPattern
}

func NewErrorClassifier(patterns []ErrorPattern) *ErrorClassifier {
	if len(patterns) == 0 {
		patterns = DefaultErrorPatterns
	}

	normalized := make([]ErrorPattern, 0, len(patterns))
	for _, p := range patterns {
		markers := make([]string, 0, len(p.Markers))
		for _, m := range p.Markers {
			if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
				markers = append(markers, m)
			}
		}
		normalized = append(normalized, ErrorPattern{Category: p.Category, Markers: markers})
	}
	return &ErrorClassifier{patterns: normalized}
}

type patternFile struct {
	Patterns []ErrorPattern `yaml:"patterns"`
}

// LoadErrorPatterns reads a pattern table from a YAML file. An empty path
// returns the defaults.
func LoadErrorPatterns(path string) ([]ErrorPattern, error) {
	if path == "" {
		return DefaultErrorPatterns, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file %s: %w", path, err)
	}
	return ParseErrorPatterns(data)
}

func ParseErrorPatterns(data []byte) ([]ErrorPattern, error) {
	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file: %w", err)
	}

	for i, p := range file.Patterns {
		switch p.Category {
		case models.ErrorCategorySchemaMissing, models.ErrorCategoryConfigInvalid, models.ErrorCategoryGeneric:
		default:
			return nil, fmt.Errorf("pattern %d: unknown category %q", i, p.Category)
		}
	}
	if len(file.Patterns) == 0 {
		return nil, errors.New("pattern file defines no patterns")
	}
	return file.Patterns, nil
}

// Classify is deterministic: it depends only on the failure and the table.
func (c *ErrorClassifier) Classify(failure models.BackendFailure) Classification {
	result := Classification{
		Category: models.ErrorCategoryGeneric,
		Message:  failure.DisplayMessage(),
		Code:     failure.Code,
	}

	text := strings.ToLower(failure.Text())
	for _, p := range c.patterns {
		for _, marker := range p.Markers {
			if strings.Contains(text, marker) {
				result.Category = p.Category
				return result
			}
		}
	}

	if failure.Kind == models.FailureKindTransport {
		result.Category = models.ErrorCategoryConfigInvalid
	}
	return result
}

// Wrap classifies err and returns it as a *ClassifiedError.
func (c *ErrorClassifier) Wrap(err error) *ClassifiedError {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	failure := DescribeFailure(err)
	return &ClassifiedError{
		Classification: c.Classify(failure),
		Failure:        failure,
		Err:            err,
	}
}

// DescribeFailure turns an error from any product or auth backend into the
// structured form the classifier consumes.
func DescribeFailure(err error) models.BackendFailure {
	var apiErr *baas.Error
	if errors.As(err, &apiErr) {
		return models.BackendFailure{
			Kind:        models.FailureKindBackend,
			Code:        apiErr.Code,
			Message:     apiErr.Message,
			Description: apiErr.Description,
			Detail:      apiErr.Details,
			Hint:        apiErr.Hint,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return models.BackendFailure{
			Kind:    models.FailureKindBackend,
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Detail:  pgErr.Detail,
			Hint:    pgErr.Hint,
		}
	}

	var transportErr *baas.TransportError
	var netErr net.Error
	var opErr *net.OpError
	if errors.As(err, &transportErr) || errors.As(err, &opErr) || errors.As(err, &netErr) {
		return models.BackendFailure{
			Kind:    models.FailureKindTransport,
			Message: err.Error(),
		}
	}

	if err == nil {
		return models.BackendFailure{Kind: models.FailureKindUnknown}
	}
	return models.BackendFailure{
		Kind:    models.FailureKindUnknown,
		Message: err.Error(),
	}
}
