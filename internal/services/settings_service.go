// internal/services/settings_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/marketflow/internal/baas"
	"github.com/javajoker/marketflow/internal/cache"
	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/utils"
)

const connectionSettingsKey = "settings:connection"

// ClientSource hands out a BaaS client for the currently effective
// connection settings.
type ClientSource interface {
	Client(ctx context.Context) (*baas.Client, error)
}

type ConnectionSettings struct {
	URL     string `json:"url" validate:"required,http_url"`
	AnonKey string `json:"anon_key" validate:"required,notblank"`
}

// ConnectionView is the read-back form; the key is masked.
type ConnectionView struct {
	URL        string `json:"url"`
	AnonKey    string `json:"anon_key"`
	Overridden bool   `json:"overridden"`
}

// SettingsService resolves the BaaS connection: deployment defaults, replaced
// by overrides persisted in the record store until they are reset.
type SettingsService struct {
	store    cache.Store
	defaults ConnectionSettings
	timeout  time.Duration

	mu       sync.Mutex
	current  ConnectionSettings
	client   *baas.Client
	override bool
	loaded   bool
}

func NewSettingsService(store cache.Store, cfg *config.Config) *SettingsService {
	return &SettingsService{
		store: store,
		defaults: ConnectionSettings{
			URL:     cfg.BaaS.URL,
			AnonKey: cfg.BaaS.AnonKey,
		},
		timeout: cfg.BaaS.RequestTimeout,
	}
}

// Load reads persisted overrides. A missing record leaves the defaults.
func (s *SettingsService) Load(ctx context.Context) error {
	var stored ConnectionSettings
	err := cache.GetJSON(ctx, s.store, connectionSettingsKey, &stored)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true

	switch {
	case errors.Is(err, cache.ErrNotFound):
		s.apply(s.defaults, false)
		return nil
	case err != nil:
		s.apply(s.defaults, false)
		return fmt.Errorf("failed to load connection settings: %w", err)
	}

	s.apply(stored, true)
	return nil
}

func (s *SettingsService) Client(ctx context.Context) (*baas.Client, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()

	if !loaded {
		if err := s.Load(ctx); err != nil {
			logrus.WithError(err).Warn("Using default connection settings")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		s.apply(s.defaults, false)
	}
	return s.client, nil
}

func (s *SettingsService) Get(ctx context.Context) ConnectionView {
	if _, err := s.Client(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to resolve connection settings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return ConnectionView{
		URL:        s.current.URL,
		AnonKey:    utils.MaskSecret(s.current.AnonKey),
		Overridden: s.override,
	}
}

func (s *SettingsService) Update(ctx context.Context, settings ConnectionSettings) (ConnectionView, error) {
	settings.URL = strings.TrimRight(strings.TrimSpace(settings.URL), "/")
	settings.AnonKey = strings.TrimSpace(settings.AnonKey)

	if err := utils.ValidateStruct(&settings); err != nil {
		return ConnectionView{}, err
	}

	if err := cache.SetJSON(ctx, s.store, connectionSettingsKey, settings, 0); err != nil {
		return ConnectionView{}, fmt.Errorf("failed to save connection settings: %w", err)
	}

	s.mu.Lock()
	s.loaded = true
	s.apply(settings, true)
	s.mu.Unlock()

	logrus.WithField("url", settings.URL).Info("Connection settings overridden")
	return s.Get(ctx), nil
}

// Reset removes the overrides and returns to the deployment defaults.
func (s *SettingsService) Reset(ctx context.Context) (ConnectionView, error) {
	if err := s.store.Delete(ctx, connectionSettingsKey); err != nil {
		return ConnectionView{}, fmt.Errorf("failed to reset connection settings: %w", err)
	}

	s.mu.Lock()
	s.loaded = true
	s.apply(s.defaults, false)
	s.mu.Unlock()

	logrus.Info("Connection settings reset to defaults")
	return s.Get(ctx), nil
}

// apply must be called with mu held.
func (s *SettingsService) apply(settings ConnectionSettings, override bool) {
	if s.client != nil && s.current == settings {
		s.override = override
		return
	}
	s.current = settings
	s.override = override
	s.client = baas.NewClient(settings.URL, settings.AnonKey, s.timeout)
}
