// internal/services/description_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/metrics"
)

const (
	DescriptionFallback = "High quality product available now."
	DescriptionEmpty    = "A fantastic product you will love!"
)

// TextGenerator is the generative-text collaborator.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini models API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// DescriptionService writes marketing copy for a draft. It never fails:
// errors and empty answers are replaced by fixed text.
type DescriptionService struct {
	generator TextGenerator
	timeout   time.Duration
}

func NewDescriptionService(generator TextGenerator, cfg *config.Config) *DescriptionService {
	return &DescriptionService{
		generator: generator,
		timeout:   cfg.GenAI.Timeout,
	}
}

func DescriptionPrompt(title string, price float64) string {
	return fmt.Sprintf(
		"Write a catchy, short, and selling description (max 2 sentences) for a product named \"%s\" that costs $%s. Use emojis.",
		title, strconv.FormatFloat(price, 'f', -1, 64),
	)
}

func (s *DescriptionService) Suggest(ctx context.Context, title string, price float64) string {
	if s.generator == nil {
		metrics.DescriptionRequestsTotal.WithLabelValues("fallback").Inc()
		return DescriptionFallback
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.generator.Generate(ctx, DescriptionPrompt(title, price))
	if err != nil {
		logrus.WithError(err).WithField("title", title).Warn("Description generation failed")
		metrics.DescriptionRequestsTotal.WithLabelValues("fallback").Inc()
		return DescriptionFallback
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.DescriptionRequestsTotal.WithLabelValues("empty").Inc()
		return DescriptionEmpty
	}

	metrics.DescriptionRequestsTotal.WithLabelValues("generated").Inc()
	return text
}
