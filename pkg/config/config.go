// Package config holds the mutable, persisted settings read by every other
// package: the download/export roots, the API domain, the target image
// format, and the knobs the download engine and library updater consult on
// every request. It loads-or-defaults, merges an unknown-shape file
// against the defaults so an upgrade never wipes a user's settings, and
// saves after every mutation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ApiDomainMode selects which host the remote client talks to.
type ApiDomainMode string

const (
	ApiDomainDefault ApiDomainMode = "Default"
	ApiDomainCustom  ApiDomainMode = "Custom"
)

// DownloadFormat is the page encoding the engine writes to disk.
type DownloadFormat string

const (
	FormatWebp DownloadFormat = "Webp"
	FormatJpeg DownloadFormat = "Jpeg"
)

// Extension returns the on-disk file extension for the format.
func (f DownloadFormat) Extension() string {
	switch f {
	case FormatJpeg:
		return "jpeg"
	default:
		return "webp"
	}
}

const defaultAPIDomain = "api.copy2000.online"

// Config is the full set of recognized options from spec §6.
type Config struct {
	Token                             string         `json:"token"`
	DownloadDir                       string         `json:"downloadDir"`
	ExportDir                         string         `json:"exportDir"`
	ApiDomainMode                     ApiDomainMode  `json:"apiDomainMode"`
	CustomApiDomain                   string         `json:"customApiDomain"`
	DownloadFormat                    DownloadFormat `json:"downloadFormat"`
	EnableFileLogger                  bool           `json:"enableFileLogger"`
	UpdateDownloadedComicsIntervalSec int            `json:"updateDownloadedComicsIntervalSec"`
}

func defaultConfig(appDataDir string) Config {
	return Config{
		Token:                             "",
		DownloadDir:                       filepath.Join(appDataDir, "downloads"),
		ExportDir:                         filepath.Join(appDataDir, "exports"),
		ApiDomainMode:                     ApiDomainDefault,
		CustomApiDomain:                   defaultAPIDomain,
		DownloadFormat:                    FormatWebp,
		EnableFileLogger:                  false,
		UpdateDownloadedComicsIntervalSec: 10,
	}
}

// Store guards a Config behind a multi-reader/single-writer lock, held only
// across plain field access and never across a suspension point (spec §5).
type Store struct {
	mu         sync.RWMutex
	cfg        Config
	path       string
	appDataDir string
}

// Load reads config.json from appDataDir, creating it with defaults if
// absent, and merging it against the defaults if it fails to parse as the
// current Config shape (so new fields added by a later version don't reset
// an existing install).
func Load(appDataDir string) (*Store, error) {
	path := filepath.Join(appDataDir, "config.json")
	s := &Store{path: path, appDataDir: appDataDir}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.cfg = defaultConfig(appDataDir)
	case err != nil:
		return nil, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg := defaultConfig(appDataDir)
		if jsonErr := json.Unmarshal(raw, &cfg); jsonErr == nil {
			s.cfg = cfg
		} else {
			s.cfg = mergeWithDefaults(raw, defaultConfig(appDataDir))
		}
	}

	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// mergeWithDefaults fills any field missing from raw with its default,
// so a config.json from an older version still loads with new keys present.
func mergeWithDefaults(raw []byte, def Config) Config {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return def
	}
	defJSON, err := json.Marshal(def)
	if err != nil {
		return def
	}
	var defMap map[string]json.RawMessage
	if err := json.Unmarshal(defJSON, &defMap); err != nil {
		return def
	}
	for k, v := range defMap {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return def
	}
	var cfg Config
	if err := json.Unmarshal(merged, &cfg); err != nil {
		return def
	}
	return cfg
}

// Get returns a copy of the current config.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Save replaces the config wholesale and persists it.
func (s *Store) Save(cfg Config) error {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return s.save()
}

func (s *Store) save() error {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create app data dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write config %q: %w", s.path, err)
	}
	return nil
}

// Authorization returns the "Token <token>" header value for the primary
// user account, used by every command except get_chapter (spec §4.1).
func (c Config) Authorization() string {
	return "Token " + c.Token
}

// ApiDomain returns the host the remote client should use.
func (c Config) ApiDomain() string {
	if c.ApiDomainMode == ApiDomainCustom && c.CustomApiDomain != "" {
		return c.CustomApiDomain
	}
	return defaultAPIDomain
}
