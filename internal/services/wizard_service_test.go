// internal/services/wizard_service_test.go
package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/javajoker/marketflow/internal/baas"
	"github.com/javajoker/marketflow/internal/cache"
	"github.com/javajoker/marketflow/internal/models"
	"github.com/javajoker/marketflow/internal/utils"
)

func newTestWizards(t *testing.T, provider *stubProvider) (*WizardService, *SessionService) {
	t.Helper()
	sessions, _ := newTestSessions(t, provider)
	wizards := NewWizardService(testConfig(), provider, sessions, NewErrorClassifier(nil))
	t.Cleanup(wizards.Close)
	return wizards, sessions
}

func TestWizardService_SignupAsSeller(t *testing.T) {
	provider := &stubProvider{}
	wizards, sessions := newTestWizards(t, provider)
	ctx := context.Background()

	view := wizards.Start(models.AuthModeSignup)
	_, err := wizards.SubmitCredentials(ctx, view.ID, "fay@example.com", "secret1")
	require.NoError(t, err)
	_, err = wizards.SubmitUsername(view.ID, "fay", "")
	require.NoError(t, err)

	result, err := wizards.ChooseRole(ctx, view.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.AuthStepAdminGate, result.Wizard.Step)
	assert.Nil(t, result.Session)
	assert.Empty(t, provider.signUps, "no account before the gate is settled")

	result, err = wizards.SubmitAdminKey(ctx, view.ID, "ADMIN-123")
	require.NoError(t, err)
	assert.Equal(t, models.AuthStepComplete, result.Wizard.Step)
	require.NotNil(t, result.Session)
	assert.Equal(t, models.RoleSeller, result.Session.Identity.Role)

	claims, err := utils.ValidateSessionToken(result.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, view.ID, claims.Subject)

	record, err := sessions.Lookup(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "fay", record.Identity.Username)
	assert.Equal(t, "access-fay@example.com", record.AccessToken)
}

func TestWizardService_InvalidAdminKey(t *testing.T) {
	provider := &stubProvider{}
	wizards, _ := newTestWizards(t, provider)
	ctx := context.Background()

	view := wizards.Start(models.AuthModeSignup)
	_, err := wizards.SubmitCredentials(ctx, view.ID, "gus@example.com", "secret1")
	require.NoError(t, err)
	_, err = wizards.SubmitUsername(view.ID, "gus", "")
	require.NoError(t, err)
	_, err = wizards.ChooseRole(ctx, view.ID, true)
	require.NoError(t, err)

	_, err = wizards.SubmitAdminKey(ctx, view.ID, "admin-123")
	var stepErr *WizardStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, models.ErrorCategoryValidation, stepErr.Category)
	assert.Equal(t, "INVALID CODE", stepErr.View.Error)
	assert.Equal(t, models.AuthStepAdminGate, stepErr.View.Step)
	assert.Empty(t, provider.signUps)
}

func TestWizardService_LoginFailureIsClassified(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category models.ErrorCategory
	}{
		{"bad credentials", ErrInvalidCredentials, models.ErrorCategoryGeneric},
		{"unreachable backend", &baas.TransportError{Err: errors.New("dial tcp: connection refused")}, models.ErrorCategoryConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{signInErr: tt.err}
			wizards, _ := newTestWizards(t, provider)

			view := wizards.Start(models.AuthModeLogin)
			_, err := wizards.SubmitCredentials(context.Background(), view.ID, "hal@example.com", "secret1")

			var stepErr *WizardStepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tt.category, stepErr.Category)
			assert.NotEmpty(t, stepErr.View.Error)
			assert.Equal(t, models.AuthStepCredentials, stepErr.View.Step)
		})
	}
}

func TestWizardService_LoginSucceeds(t *testing.T) {
	provider := &stubProvider{signInIdent: models.Identity{Username: "ivy", Role: models.RoleBuyer}}
	wizards, _ := newTestWizards(t, provider)

	view := wizards.Start(models.AuthModeLogin)
	result, err := wizards.SubmitCredentials(context.Background(), view.ID, "ivy@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, models.AuthStepComplete, result.Wizard.Step)
	require.NotNil(t, result.Session)
	assert.Equal(t, "ivy", result.Session.Identity.Username)
	assert.Equal(t, []string{"ivy@example.com"}, provider.signIns)
}

func TestWizardService_PendingVerification(t *testing.T) {
	provider := &stubProvider{pending: true}
	wizards, sessions := newTestWizards(t, provider)
	ctx := context.Background()

	view := wizards.Start(models.AuthModeSignup)
	_, err := wizards.SubmitCredentials(ctx, view.ID, "jo@example.com", "secret1")
	require.NoError(t, err)
	_, err = wizards.SubmitUsername(view.ID, "jo", "")
	require.NoError(t, err)

	result, err := wizards.ChooseRole(ctx, view.ID, false)
	require.NoError(t, err)
	assert.Nil(t, result.Session)
	assert.Equal(t, models.AuthModeLogin, result.Wizard.Mode)
	assert.Equal(t, CheckEmailNotice, result.Wizard.Notice)

	_, err = sessions.Lookup(ctx, view.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// flakyStore fails writes while failWrites is set.
type flakyStore struct {
	*cache.MemoryStore
	failWrites atomic.Bool
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.failWrites.Load() {
		return errors.New("store unavailable")
	}
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func TestWizardService_SessionFailureAfterSignup(t *testing.T) {
	provider := &stubProvider{signInIdent: models.Identity{Username: "lee", Role: models.RoleBuyer}}
	store := &flakyStore{MemoryStore: cache.NewMemoryStore()}
	sessions := NewSessionService(store, provider, testConfig())
	wizards := NewWizardService(testConfig(), provider, sessions, NewErrorClassifier(nil))
	t.Cleanup(wizards.Close)
	ctx := context.Background()

	view := wizards.Start(models.AuthModeSignup)
	_, err := wizards.SubmitCredentials(ctx, view.ID, "lee@example.com", "secret1")
	require.NoError(t, err)
	_, err = wizards.SubmitUsername(view.ID, "lee", "")
	require.NoError(t, err)

	store.failWrites.Store(true)
	_, err = wizards.ChooseRole(ctx, view.ID, false)
	var stepErr *WizardStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, models.ErrorCategoryGeneric, stepErr.Category)
	assert.Equal(t, models.AuthModeLogin, stepErr.View.Mode)
	assert.Equal(t, models.AuthStepCredentials, stepErr.View.Step)
	assert.Equal(t, AccountCreatedNotice, stepErr.View.Notice)
	require.Len(t, provider.signUps, 1)

	// the retry signs in to the account that was already created
	store.failWrites.Store(false)
	result, err := wizards.SubmitCredentials(ctx, view.ID, "lee@example.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	assert.Equal(t, []string{"lee@example.com"}, provider.signIns)
	assert.Len(t, provider.signUps, 1)
}

func TestWizardService_UnknownWizard(t *testing.T) {
	wizards, _ := newTestWizards(t, &stubProvider{})

	_, err := wizards.View("missing")
	assert.ErrorIs(t, err, ErrWizardNotFound)
	_, err = wizards.Back("missing")
	assert.ErrorIs(t, err, ErrWizardNotFound)
}

func TestWizardService_LogoutResetsWizard(t *testing.T) {
	provider := &stubProvider{signInIdent: models.Identity{Username: "kim", Role: models.RoleSeller}}
	wizards, sessions := newTestWizards(t, provider)
	ctx := context.Background()

	view := wizards.Start(models.AuthModeLogin)
	_, err := wizards.SubmitCredentials(ctx, view.ID, "kim@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, sessions.Logout(ctx, view.ID))

	after, err := wizards.View(view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthStepCredentials, after.Step)
	assert.Equal(t, models.AuthModeSignup, after.Mode)
	assert.Nil(t, after.Identity)
	assert.Equal(t, []string{"access-kim@example.com"}, provider.signOuts)
}

func TestWizardService_CloseStopsJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.Identity.WizardIdleTTL = time.Minute
	provider := &stubProvider{}
	sessions, _ := newTestSessions(t, provider)

	wizards := NewWizardService(cfg, provider, sessions, NewErrorClassifier(nil))
	wizards.Start(models.AuthModeSignup)
	wizards.Close()
	wizards.Close()
}
