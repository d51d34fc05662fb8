// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/javajoker/marketflow/internal/baas"
	"github.com/javajoker/marketflow/internal/cache"
	"github.com/javajoker/marketflow/internal/models"
	"github.com/javajoker/marketflow/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrAccountExists      = errors.New("User already registered")
)

// AuthResult is what an identity provider answers to a sign-up or sign-in.
// PendingVerification means the account exists but has no session yet.
type AuthResult struct {
	Identity            models.Identity
	AccessToken         string
	PendingVerification bool
}

// IdentityProvider is the strategy behind the wizard: accounts kept by this
// service, or delegated to the BaaS auth API.
type IdentityProvider interface {
	Name() string
	SignUp(ctx context.Context, email, password string, profile models.Identity) (*AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*AuthResult, error)
	SignOut(ctx context.Context, accessToken string) error
	// CurrentUser re-reads the live identity for a stored session. Providers
	// without server-side sessions return nil, nil.
	CurrentUser(ctx context.Context, accessToken string) (*models.Identity, error)
}

// LocalIdentityProvider keeps accounts in the record store with bcrypt
// password hashes. It never requires email verification.
type LocalIdentityProvider struct {
	store cache.Store
}

func NewLocalIdentityProvider(store cache.Store) *LocalIdentityProvider {
	return &LocalIdentityProvider{store: store}
}

func (p *LocalIdentityProvider) Name() string { return "local" }

func accountKey(email string) string {
	return "account:" + utils.HashString(strings.ToLower(strings.TrimSpace(email)))
}

func (p *LocalIdentityProvider) SignUp(ctx context.Context, email, password string, profile models.Identity) (*AuthResult, error) {
	account := &models.LocalAccount{
		Identity:  profile,
		CreatedAt: time.Now(),
	}
	account.Email = email

	// Set password
	if err := account.SetPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Save account unless the email is taken
	if err := cache.CreateJSON(ctx, p.store, accountKey(email), account, 0); err != nil {
		if errors.Is(err, cache.ErrExists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &AuthResult{Identity: account.Identity}, nil
}

func (p *LocalIdentityProvider) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	var account models.LocalAccount
	if err := cache.GetJSON(ctx, p.store, accountKey(email), &account); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	// Verify password
	if err := account.CheckPassword(password); err != nil {
		return nil, ErrInvalidCredentials
	}

	identity := account.Identity
	if identity.Username == "" {
		identity.Username = models.EmailLocalPart(identity.Email)
	}
	if !identity.Role.IsAuthenticated() {
		identity.Role = models.RoleBuyer
	}
	return &AuthResult{Identity: identity}, nil
}

func (p *LocalIdentityProvider) SignOut(context.Context, string) error {
	return nil
}

func (p *LocalIdentityProvider) CurrentUser(context.Context, string) (*models.Identity, error) {
	return nil, nil
}

// BaaSIdentityProvider delegates accounts to the GoTrue auth API. Profile
// fields travel in the account metadata.
type BaaSIdentityProvider struct {
	clients ClientSource
}

func NewBaaSIdentityProvider(clients ClientSource) *BaaSIdentityProvider {
	return &BaaSIdentityProvider{clients: clients}
}

func (p *BaaSIdentityProvider) Name() string { return "baas" }

func (p *BaaSIdentityProvider) SignUp(ctx context.Context, email, password string, profile models.Identity) (*AuthResult, error) {
	client, err := p.clients.Client(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.SignUp(ctx, email, password, profile.Metadata())
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	profile.Email = email
	if session.PendingConfirmation() {
		return &AuthResult{Identity: profile, PendingVerification: true}, nil
	}

	return &AuthResult{
		Identity:    identityFromUser(email, session.User, profile),
		AccessToken: session.AccessToken,
	}, nil
}

func (p *BaaSIdentityProvider) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	client, err := p.clients.Client(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	return &AuthResult{
		Identity:    identityFromUser(email, session.User, models.Identity{}),
		AccessToken: session.AccessToken,
	}, nil
}

func (p *BaaSIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	client, err := p.clients.Client(ctx)
	if err != nil {
		return err
	}
	return client.SignOut(ctx, accessToken)
}

func (p *BaaSIdentityProvider) CurrentUser(ctx context.Context, accessToken string) (*models.Identity, error) {
	if accessToken == "" {
		return nil, errors.New("no access token")
	}
	client, err := p.clients.Client(ctx)
	if err != nil {
		return nil, err
	}

	user, err := client.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	identity := identityFromUser(user.Email, user, models.Identity{})
	return &identity, nil
}

// identityFromUser prefers the metadata the backend returned and falls back
// to the profile submitted by the wizard.
func identityFromUser(email string, user *baas.User, fallback models.Identity) models.Identity {
	meta := models.JSONB{}
	if user != nil {
		if user.Email != "" {
			email = user.Email
		}
		for k, v := range user.UserMetadata {
			meta[k] = v
		}
	}
	if meta.String("username") == "" && fallback.Username != "" {
		meta["username"] = fallback.Username
	}
	if meta.String("role") == "" && fallback.Role != "" {
		meta["role"] = string(fallback.Role)
	}
	if meta.String("avatar") == "" && fallback.Avatar != "" {
		meta["avatar"] = fallback.Avatar
	}
	return models.IdentityFromMetadata(email, meta)
}

// NewIdentityProvider picks the strategy named by IDENTITY_PROVIDER.
func NewIdentityProvider(name string, store cache.Store, clients ClientSource) (IdentityProvider, error) {
	switch name {
	case "", "local":
		return NewLocalIdentityProvider(store), nil
	case "baas":
		return NewBaaSIdentityProvider(clients), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", name)
	}
}
