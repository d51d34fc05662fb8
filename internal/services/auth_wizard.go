// internal/services/auth_wizard.go
package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/javajoker/marketflow/internal/models"
)

var (
	ErrWizardStep       = errors.New("action not allowed at this step")
	ErrInvalidAdminCode = errors.New("INVALID CODE")
)

// WizardView is the read-only state sent to clients. The password is never
// part of it.
type WizardView struct {
	ID       string           `json:"id"`
	Mode     models.AuthMode  `json:"mode"`
	Step     models.AuthStep  `json:"step"`
	Email    string           `json:"email,omitempty"`
	Username string           `json:"username,omitempty"`
	Avatar   string           `json:"avatar,omitempty"`
	Error    string           `json:"error,omitempty"`
	Notice   string           `json:"notice,omitempty"`
	Identity *models.Identity `json:"identity,omitempty"`
}

// AuthWizard is the signup/login step machine. Its fields are unexported so
// a step can only be reached through the transition methods.
type AuthWizard struct {
	mode              models.AuthMode
	step              models.AuthStep
	email             string
	password          string
	username          string
	avatar            string
	pendingRole       models.Role
	credentialsOK     bool
	errMsg            string
	notice            string
	identity          *models.Identity
	minPasswordLength int
}

func NewAuthWizard(mode models.AuthMode, minPasswordLength int) *AuthWizard {
	if mode != models.AuthModeLogin {
		mode = models.AuthModeSignup
	}
	if minPasswordLength < 6 {
		minPasswordLength = 6
	}
	return &AuthWizard{
		mode:              mode,
		step:              models.AuthStepCredentials,
		minPasswordLength: minPasswordLength,
	}
}

func (w *AuthWizard) Mode() models.AuthMode { return w.mode }
func (w *AuthWizard) Step() models.AuthStep { return w.step }
func (w *AuthWizard) Err() string           { return w.errMsg }

func (w *AuthWizard) View(id string) WizardView {
	view := WizardView{
		ID:       id,
		Mode:     w.mode,
		Step:     w.step,
		Email:    w.email,
		Username: w.username,
		Avatar:   w.avatar,
		Error:    w.errMsg,
		Notice:   w.notice,
	}
	if w.identity != nil {
		identity := *w.identity
		view.Identity = &identity
	}
	return view
}

// Reset returns to the first step and discards every draft field.
func (w *AuthWizard) Reset(mode models.AuthMode) {
	*w = *NewAuthWizard(mode, w.minPasswordLength)
}

// SetMode switches between login and signup, which discards the draft.
func (w *AuthWizard) SetMode(mode models.AuthMode) error {
	if w.step == models.AuthStepComplete {
		return w.fail(ErrWizardStep)
	}
	w.Reset(mode)
	return nil
}

func (w *AuthWizard) SubmitCredentials(email, password string) error {
	if w.step != models.AuthStepCredentials {
		return w.fail(ErrWizardStep)
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return w.fail(errors.New("Please fill in email and password."))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return w.fail(errors.New("Please enter a valid email address."))
	}
	if utf8.RuneCountInString(password) < w.minPasswordLength {
		return w.fail(fmt.Errorf("Password should be at least %d characters.", w.minPasswordLength))
	}

	w.email = email
	w.password = password
	w.credentialsOK = true
	w.clearMessages()

	if w.mode == models.AuthModeSignup {
		w.step = models.AuthStepUsername
	}
	return nil
}

// LoginReady reports whether a login attempt may be dispatched.
func (w *AuthWizard) LoginReady() bool {
	return w.mode == models.AuthModeLogin && w.step == models.AuthStepCredentials && w.credentialsOK
}

func (w *AuthWizard) SubmitUsername(username, avatar string) error {
	if w.step != models.AuthStepUsername {
		return w.fail(ErrWizardStep)
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return w.fail(errors.New("Please enter a username."))
	}

	w.username = username
	w.avatar = avatar
	w.clearMessages()
	w.step = models.AuthStepRoleCheck
	return nil
}

// ChooseRole answers the "do you have a seller key" question.
func (w *AuthWizard) ChooseRole(seller bool) error {
	if w.step != models.AuthStepRoleCheck {
		return w.fail(ErrWizardStep)
	}

	w.clearMessages()
	if seller {
		w.step = models.AuthStepAdminGate
		return nil
	}
	w.pendingRole = models.RoleBuyer
	return nil
}

// SubmitAdminKey compares key with secret exactly. An empty secret never
// matches.
func (w *AuthWizard) SubmitAdminKey(key, secret string) error {
	if w.step != models.AuthStepAdminGate {
		return w.fail(ErrWizardStep)
	}

	if secret == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
		return w.fail(ErrInvalidAdminCode)
	}

	w.clearMessages()
	w.pendingRole = models.RoleSeller
	return nil
}

// SkipAdminGate is the "I can't find it" escape: finish as a buyer.
func (w *AuthWizard) SkipAdminGate() error {
	if w.step != models.AuthStepAdminGate {
		return w.fail(ErrWizardStep)
	}
	w.clearMessages()
	w.pendingRole = models.RoleBuyer
	return nil
}

func (w *AuthWizard) Back() error {
	if w.step != models.AuthStepUsername {
		return w.fail(ErrWizardStep)
	}
	w.clearMessages()
	w.step = models.AuthStepCredentials
	return nil
}

// PendingSignup returns the identity a signup would create once a role has
// been settled, or false while the wizard is still collecting input.
func (w *AuthWizard) PendingSignup() (models.Identity, string, bool) {
	if w.mode != models.AuthModeSignup || w.pendingRole == "" || w.username == "" || !w.credentialsOK {
		return models.Identity{}, "", false
	}
	if w.step != models.AuthStepRoleCheck && w.step != models.AuthStepAdminGate {
		return models.Identity{}, "", false
	}
	return models.Identity{
		Email:    w.email,
		Username: w.username,
		Role:     w.pendingRole,
		Avatar:   w.avatar,
	}, w.password, true
}

// LoginCredentials returns what a login attempt needs.
func (w *AuthWizard) LoginCredentials() (string, string, bool) {
	if !w.LoginReady() {
		return "", "", false
	}
	return w.email, w.password, true
}

// Complete finishes the wizard. It is only accepted after a successful
// login validation or once a signup role has been settled.
func (w *AuthWizard) Complete(identity models.Identity) error {
	if !w.LoginReady() {
		if _, _, ok := w.PendingSignup(); !ok {
			return w.fail(ErrWizardStep)
		}
	}

	w.identity = &identity
	w.password = ""
	w.pendingRole = ""
	w.clearMessages()
	w.step = models.AuthStepComplete
	return nil
}

// AwaitVerification sends a fresh signup back to the login form with a notice.
func (w *AuthWizard) AwaitVerification(notice string) {
	email := w.email
	w.Reset(models.AuthModeLogin)
	w.email = email
	w.notice = notice
}

// Abort records a failure from the identity provider and keeps the step.
// A failed signup drops the settled role so the question is asked again.
func (w *AuthWizard) Abort(err error) {
	if w.mode == models.AuthModeLogin {
		w.credentialsOK = false
		w.password = ""
	}
	w.pendingRole = ""
	w.errMsg = err.Error()
}

func (w *AuthWizard) fail(err error) error {
	w.errMsg = err.Error()
	return err
}

func (w *AuthWizard) clearMessages() {
	w.errMsg = ""
	w.notice = ""
}
