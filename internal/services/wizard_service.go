// internal/services/wizard_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/metrics"
	"github.com/javajoker/marketflow/internal/models"
)

var ErrWizardNotFound = errors.New("wizard not found")

// CheckEmailNotice is shown when a new account still needs email confirmation.
const CheckEmailNotice = "Account created! Please check your email to confirm your account."

// AccountCreatedNotice is shown when the account exists but its first
// session could not be started.
const AccountCreatedNotice = "Account created. Please log in."

// WizardStepError is returned when an action is rejected. The wizard keeps
// its step and View carries the error string it recorded.
type WizardStepError struct {
	View     WizardView
	Category models.ErrorCategory
	Err      error
}

func (e *WizardStepError) Error() string {
	return e.Err.Error()
}

func (e *WizardStepError) Unwrap() error {
	return e.Err
}

// WizardResult is the state after an accepted action. Session is set once
// the wizard reaches COMPLETE.
type WizardResult struct {
	Wizard  WizardView    `json:"wizard"`
	Session *SessionGrant `json:"session,omitempty"`
}

// WizardService runs one AuthWizard per client. The wizard id is also the
// session id of the session it produces.
type WizardService struct {
	wizards    *registry[*AuthWizard]
	provider   IdentityProvider
	sessions   *SessionService
	classifier *ErrorClassifier
	adminKey   string
	minLength  int
}

func NewWizardService(cfg *config.Config, provider IdentityProvider, sessions *SessionService, classifier *ErrorClassifier) *WizardService {
	s := &WizardService{
		wizards:    newRegistry[*AuthWizard]("wizard", cfg.Identity.WizardIdleTTL),
		provider:   provider,
		sessions:   sessions,
		classifier: classifier,
		adminKey:   cfg.Identity.AdminKey,
		minLength:  cfg.Identity.MinPasswordLength,
	}
	sessions.OnLogout(s.resetForLogout)
	return s
}

// Close stops the idle-wizard janitor.
func (s *WizardService) Close() {
	s.wizards.close()
}

func (s *WizardService) Start(mode models.AuthMode) WizardView {
	id := uuid.New().String()
	wizard := NewAuthWizard(mode, s.minLength)
	s.wizards.put(id, wizard)
	return wizard.View(id)
}

func (s *WizardService) View(id string) (WizardView, error) {
	var view WizardView
	err := s.with(id, func(w *AuthWizard) error {
		view = w.View(id)
		return nil
	})
	return view, err
}

func (s *WizardService) SetMode(id string, mode models.AuthMode) (*WizardResult, error) {
	return s.apply(id, "mode", func(w *AuthWizard) error {
		return w.SetMode(mode)
	})
}

func (s *WizardService) Back(id string) (*WizardResult, error) {
	return s.apply(id, "back", func(w *AuthWizard) error {
		return w.Back()
	})
}

func (s *WizardService) SubmitUsername(id, username, avatar string) (*WizardResult, error) {
	return s.apply(id, "username", func(w *AuthWizard) error {
		return w.SubmitUsername(username, avatar)
	})
}

// SubmitCredentials validates the first step. In login mode it also signs
// in and, on success, completes the wizard.
func (s *WizardService) SubmitCredentials(ctx context.Context, id, email, password string) (*WizardResult, error) {
	return s.applyWithSession(id, "credentials", func(w *AuthWizard) (*SessionGrant, error) {
		if err := w.SubmitCredentials(email, password); err != nil {
			return nil, err
		}
		if !w.LoginReady() {
			return nil, nil
		}
		return s.login(ctx, id, w)
	})
}

func (s *WizardService) ChooseRole(ctx context.Context, id string, seller bool) (*WizardResult, error) {
	return s.applyWithSession(id, "role", func(w *AuthWizard) (*SessionGrant, error) {
		if err := w.ChooseRole(seller); err != nil {
			return nil, err
		}
		if seller {
			return nil, nil
		}
		return s.signUp(ctx, id, w)
	})
}

func (s *WizardService) SubmitAdminKey(ctx context.Context, id, key string) (*WizardResult, error) {
	return s.applyWithSession(id, "admin_key", func(w *AuthWizard) (*SessionGrant, error) {
		if err := w.SubmitAdminKey(key, s.adminKey); err != nil {
			return nil, err
		}
		return s.signUp(ctx, id, w)
	})
}

func (s *WizardService) SkipAdminGate(ctx context.Context, id string) (*WizardResult, error) {
	return s.applyWithSession(id, "skip_admin", func(w *AuthWizard) (*SessionGrant, error) {
		if err := w.SkipAdminGate(); err != nil {
			return nil, err
		}
		return s.signUp(ctx, id, w)
	})
}

// providerError marks failures that came back from the identity provider
// rather than from local validation.
type providerError struct {
	classification Classification
	err            error
}

func (e *providerError) Error() string { return e.classification.Message }
func (e *providerError) Unwrap() error { return e.err }

func (s *WizardService) login(ctx context.Context, id string, w *AuthWizard) (*SessionGrant, error) {
	email, password, _ := w.LoginCredentials()

	result, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, s.providerFailure(w, "signin", err)
	}
	return s.finish(ctx, id, w, result)
}

func (s *WizardService) signUp(ctx context.Context, id string, w *AuthWizard) (*SessionGrant, error) {
	profile, password, ok := w.PendingSignup()
	if !ok {
		return nil, nil
	}

	result, err := s.provider.SignUp(ctx, profile.Email, password, profile)
	if err != nil {
		return nil, s.providerFailure(w, "signup", err)
	}

	if result.PendingVerification {
		w.AwaitVerification(CheckEmailNotice)
		logrus.WithField("wizard", id).Info("Signup pending email verification")
		return nil, nil
	}
	return s.finish(ctx, id, w, result)
}

func (s *WizardService) finish(ctx context.Context, id string, w *AuthWizard, result *AuthResult) (*SessionGrant, error) {
	grant, err := s.sessions.Finalize(ctx, id, result)
	if err != nil {
		logrus.WithError(err).WithField("wizard", id).Error("Failed to finalize session")
		msg := "Could not start your session. Please try again."
		if w.Mode() == models.AuthModeSignup {
			// the account already exists, so a second signup would be refused
			w.AwaitVerification(AccountCreatedNotice)
		} else {
			w.Abort(errors.New(msg))
		}
		return nil, &providerError{
			classification: Classification{Category: models.ErrorCategoryGeneric, Message: msg},
			err:            fmt.Errorf("finalize session: %w", err),
		}
	}
	if err := w.Complete(result.Identity); err != nil {
		return nil, err
	}
	metrics.SessionsStartedTotal.WithLabelValues(string(result.Identity.Role)).Inc()
	return grant, nil
}

func (s *WizardService) providerFailure(w *AuthWizard, operation string, err error) error {
	classified := s.classifier.Wrap(err)
	metrics.BackendErrorsTotal.WithLabelValues(operation, string(classified.Category)).Inc()
	logrus.WithFields(logrus.Fields{
		"operation": operation,
		"category":  classified.Category,
		"code":      classified.Code,
	}).Warn(classified.Message)

	w.Abort(errors.New(classified.Message))
	return &providerError{classification: classified.Classification, err: err}
}

func (s *WizardService) apply(id, action string, fn func(w *AuthWizard) error) (*WizardResult, error) {
	return s.applyWithSession(id, action, func(w *AuthWizard) (*SessionGrant, error) {
		return nil, fn(w)
	})
}

func (s *WizardService) applyWithSession(id, action string, fn func(w *AuthWizard) (*SessionGrant, error)) (*WizardResult, error) {
	var result *WizardResult
	var stepErr *WizardStepError

	err := s.with(id, func(w *AuthWizard) error {
		grant, err := fn(w)
		view := w.View(id)
		if err != nil {
			stepErr = s.stepError(view, err)
			return nil
		}
		result = &WizardResult{Wizard: view, Session: grant}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case stepErr == nil:
		metrics.WizardTransitionsTotal.WithLabelValues(action, "ok").Inc()
		return result, nil
	case stepErr.Category == models.ErrorCategoryValidation:
		metrics.WizardTransitionsTotal.WithLabelValues(action, "invalid").Inc()
	default:
		metrics.WizardTransitionsTotal.WithLabelValues(action, "failed").Inc()
	}
	return nil, stepErr
}

func (s *WizardService) stepError(view WizardView, err error) *WizardStepError {
	stepErr := &WizardStepError{View: view, Category: models.ErrorCategoryValidation, Err: err}

	var pErr *providerError
	if errors.As(err, &pErr) {
		stepErr.Category = pErr.classification.Category
	}
	return stepErr
}

func (s *WizardService) with(id string, fn func(w *AuthWizard) error) error {
	err := s.wizards.with(id, func(w **AuthWizard) error {
		return fn(*w)
	})
	if errors.Is(err, errEntryNotFound) {
		return ErrWizardNotFound
	}
	return err
}

// resetForLogout returns the wizard behind a session to its initial step.
func (s *WizardService) resetForLogout(_ context.Context, sessionID string) {
	_ = s.with(sessionID, func(w *AuthWizard) error {
		w.Reset(models.AuthModeSignup)
		return nil
	})
}
