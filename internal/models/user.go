// internal/models/user.go
package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Identity is the authenticated user as seen by the rest of the application.
type Identity struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Avatar   string `json:"avatar,omitempty"`
}

func (i Identity) CanSell() bool {
	return i.Role == RoleSeller
}

// Metadata is the blob stored alongside a BaaS account.
func (i Identity) Metadata() JSONB {
	meta := JSONB{
		"username": i.Username,
		"role":     string(i.Role),
	}
	if i.Avatar != "" {
		meta["avatar"] = i.Avatar
	}
	return meta
}

// IdentityFromMetadata rebuilds an identity from account metadata. The
// username falls back to the local part of the email and the role to BUYER.
func IdentityFromMetadata(email string, meta JSONB) Identity {
	username := meta.String("username")
	if username == "" {
		username = EmailLocalPart(email)
	}
	return Identity{
		Email:    email,
		Username: username,
		Role:     ParseRole(meta.String("role")),
		Avatar:   meta.String("avatar"),
	}
}

func EmailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}

// LocalAccount is the persisted record behind the local identity provider.
type LocalAccount struct {
	Identity
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *LocalAccount) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hashedPassword)
	return nil
}

func (a *LocalAccount) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
}

// SessionRecord is what the session store keeps per signed-in client.
type SessionRecord struct {
	ID          string    `json:"id"`
	Identity    Identity  `json:"identity"`
	AccessToken string    `json:"access_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
