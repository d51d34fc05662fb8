// internal/services/helpers_test.go
package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/javajoker/marketflow/internal/cache"
	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/models"
)

var (
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10}
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:      "test-secret",
			AccessTokenTTL: 1,
		},
		BaaS: config.BaaSConfig{
			URL:            "http://baas.invalid",
			AnonKey:        "anon-key-1234567890",
			RequestTimeout: time.Second,
		},
		Identity: config.IdentityConfig{
			Provider:          config.IdentityProviderLocal,
			AdminKey:          "ADMIN-123",
			MinPasswordLength: 6,
			RestoreTimeout:    time.Second,
		},
		Products: config.ProductsConfig{
			Backend:       config.ProductBackendBaaS,
			MaxImages:     3,
			MaxImageBytes: 500000,
			ProductsTable: "products",
		},
	}
}

// stubRepository is an in-memory ProductRepository.
type stubRepository struct {
	mu        sync.Mutex
	products  []models.Product
	inserts   []models.ProductInsert
	deleted   []string
	nextID    int
	listErr   error
	createErr error
	deleteErr error
	// listErrAfter fails List once this many calls have succeeded; 0 disables.
	listErrAfter int
	listCalls    int
}

func (r *stubRepository) List(context.Context) ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listCalls++
	if r.listErr != nil && (r.listErrAfter == 0 || r.listCalls > r.listErrAfter) {
		return nil, r.listErr
	}

	out := make([]models.Product, len(r.products))
	for i, p := range r.products {
		p.Images = append([]string(nil), p.Images...)
		out[len(r.products)-1-i] = p
	}
	return out, nil
}

func (r *stubRepository) Create(_ context.Context, insert models.ProductInsert) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	r.inserts = append(r.inserts, insert)
	product := models.Product{
		ID:          strconv.Itoa(r.nextID),
		SellerName:  insert.SellerName,
		Title:       insert.Title,
		Description: insert.Description,
		Price:       insert.Price,
		Images:      append([]string(nil), insert.Images...),
	}
	if insert.VideoURL != nil {
		product.VideoURL = *insert.VideoURL
	}
	r.products = append(r.products, product)
	return &product, nil
}

func (r *stubRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deleted = append(r.deleted, id)
	kept := r.products[:0]
	for _, p := range r.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	r.products = kept
	return nil
}

// stubProvider records calls and answers from canned results.
type stubProvider struct {
	mu          sync.Mutex
	signUpErr   error
	signInErr   error
	pending     bool
	current     *models.Identity
	currentErr  error
	signUps     []models.Identity
	signIns     []string
	signOuts    []string
	signInIdent models.Identity
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) SignUp(_ context.Context, email, _ string, profile models.Identity) (*AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.signUpErr != nil {
		return nil, p.signUpErr
	}
	p.signUps = append(p.signUps, profile)
	profile.Email = email
	return &AuthResult{Identity: profile, AccessToken: "access-" + email, PendingVerification: p.pending}, nil
}

func (p *stubProvider) SignIn(_ context.Context, email, _ string) (*AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.signIns = append(p.signIns, email)
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	identity := p.signInIdent
	identity.Email = email
	return &AuthResult{Identity: identity, AccessToken: "access-" + email}, nil
}

func (p *stubProvider) SignOut(_ context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts = append(p.signOuts, token)
	return nil
}

func (p *stubProvider) CurrentUser(context.Context, string) (*models.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.currentErr
}

// stubGenerator answers every prompt with text or err.
type stubGenerator struct {
	text    string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.text, g.err
}

type upload struct {
	name string
	data []byte
}

// multipartFiles builds file headers the way gin hands them to handlers.
func multipartFiles(t *testing.T, uploads ...upload) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, u := range uploads {
		part, err := writer.CreateFormFile("images", u.name)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["images"]
}

func imageBytes(header []byte, size int) []byte {
	data := make([]byte, size)
	copy(data, header)
	return data
}

func newTestSessions(t *testing.T, provider IdentityProvider) (*SessionService, cache.Store) {
	t.Helper()
	store := cache.NewMemoryStore()
	return NewSessionService(store, provider, testConfig()), store
}

var _ ProductRepository = (*stubRepository)(nil)
var _ IdentityProvider = (*stubProvider)(nil)
var _ TextGenerator = (*stubGenerator)(nil)
