// internal/services/session_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/marketflow/internal/baas"
	"github.com/javajoker/marketflow/internal/cache"
	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/models"
	"github.com/javajoker/marketflow/internal/utils"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionGrant is handed to the client when a wizard completes.
type SessionGrant struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresIn int             `json:"expires_in"` // in seconds
	Identity  models.Identity `json:"identity"`
}

// RestoreResult never carries an error: a missing or broken session is just
// an unauthenticated client.
type RestoreResult struct {
	Authenticated bool             `json:"authenticated"`
	Identity      *models.Identity `json:"identity,omitempty"`
	SessionID     string           `json:"-"`
}

// LogoutHook resets per-session state held elsewhere (wizard, draft).
type LogoutHook func(ctx context.Context, sessionID string)

// SessionService owns the active identity of every signed-in client.
type SessionService struct {
	store          cache.Store
	provider       IdentityProvider
	ttlHours       int
	restoreTimeout time.Duration

	hooksMu sync.RWMutex
	hooks   []LogoutHook
}

func NewSessionService(store cache.Store, provider IdentityProvider, cfg *config.Config) *SessionService {
	ttl := cfg.JWT.AccessTokenTTL
	if ttl <= 0 {
		ttl = 24 * 7
	}
	return &SessionService{
		store:          store,
		provider:       provider,
		ttlHours:       ttl,
		restoreTimeout: cfg.Identity.RestoreTimeout,
	}
}

func (s *SessionService) OnLogout(hook LogoutHook) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, hook)
	s.hooksMu.Unlock()
}

func sessionKey(id string) string {
	return "session:" + id
}

// Finalize commits a completed wizard result as the active identity for
// sessionID and returns the bearer token for it.
func (s *SessionService) Finalize(ctx context.Context, sessionID string, result *AuthResult) (*SessionGrant, error) {
	if result == nil || !result.Identity.Role.IsAuthenticated() {
		return nil, errors.New("cannot finalize an unauthenticated identity")
	}

	record := models.SessionRecord{
		ID:          sessionID,
		Identity:    result.Identity,
		AccessToken: result.AccessToken,
		CreatedAt:   time.Now(),
	}
	ttl := time.Duration(s.ttlHours) * time.Hour
	if err := cache.SetJSON(ctx, s.store, sessionKey(sessionID), record, ttl); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	token, err := utils.GenerateSessionToken(sessionID, record.Identity.Username, string(record.Identity.Role), s.ttlHours)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session":  sessionID,
		"username": record.Identity.Username,
		"role":     record.Identity.Role,
	}).Info("Session started")

	return &SessionGrant{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: s.ttlHours * 3600,
		Identity:  record.Identity,
	}, nil
}

// Lookup returns the stored record for a session id.
func (s *SessionService) Lookup(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := cache.GetJSON(ctx, s.store, sessionKey(sessionID), &record); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Restore recovers the identity behind token. It is bounded by the restore
// timeout and reports every failure as "not authenticated".
func (s *SessionService) Restore(ctx context.Context, token string) RestoreResult {
	if token == "" {
		return RestoreResult{}
	}

	if s.restoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.restoreTimeout)
		defer cancel()
	}

	claims, err := utils.ValidateSessionToken(token)
	if err != nil {
		return RestoreResult{}
	}

	record, err := s.Lookup(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			logrus.WithError(err).Warn("Session restore failed")
		}
		return RestoreResult{}
	}

	identity := record.Identity
	live, err := s.provider.CurrentUser(ctx, record.AccessToken)
	if err != nil {
		entry := logrus.WithError(err).WithField("session", record.ID)
		if transientFailure(err) {
			entry.Warn("Live session check failed")
			return RestoreResult{}
		}
		entry.Info("Live session no longer valid")
		// the provider already rejected the token, so there is nothing to sign out
		if err := s.end(context.WithoutCancel(ctx), record.ID, nil); err != nil {
			entry.WithError(err).Warn("Failed to end rejected session")
		}
		return RestoreResult{}
	}
	if live != nil {
		identity = *live
	}

	return RestoreResult{
		Authenticated: true,
		Identity:      &identity,
		SessionID:     record.ID,
	}
}

// Logout clears the identity and every piece of per-session state. Signing
// out at the provider is best effort.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	record, err := s.Lookup(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}

	return s.end(ctx, sessionID, record)
}

// end deletes the session record, signs record out at the provider when
// given and runs the logout hooks.
func (s *SessionService) end(ctx context.Context, sessionID string, record *models.SessionRecord) error {
	if err := s.store.Delete(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if record != nil {
		if err := s.provider.SignOut(ctx, record.AccessToken); err != nil {
			logrus.WithError(err).WithField("session", sessionID).Warn("Provider sign-out failed")
		}
	}

	s.hooksMu.RLock()
	hooks := append([]LogoutHook(nil), s.hooks...)
	s.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, sessionID)
	}

	logrus.WithField("session", sessionID).Info("Session ended")
	return nil
}

// transientFailure reports errors that say nothing about the token itself.
func transientFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var transport *baas.TransportError
	if errors.As(err, &transport) {
		return true
	}
	var apiErr *baas.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	return false
}
