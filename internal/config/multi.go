package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoConfig = errors.New("no config selected")

const (
	appName      = "sushidl"
	DefaultLabel = "Default"
)

// Store is a directory of named YAML profiles plus the label of the active one.
type Store struct {
	Root string
}

func DefaultStore() Store {
	return Store{Root: ConfigRoot()}
}

func ConfigRoot() string {
	// Windows
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, appName)
	}

	// Linux/macOS XDG
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

func (s Store) ConfigsDir() string {
	return filepath.Join(s.Root, "configs")
}

func (s Store) CurrentLabelFile() string {
	return filepath.Join(s.Root, "current_config")
}

func (s Store) PathFor(label string) string {
	return filepath.Join(s.ConfigsDir(), label+".yaml")
}

func (s Store) ensureDirs() error {
	return os.MkdirAll(s.ConfigsDir(), 0o755)
}

func (s Store) CurrentLabel() (string, error) {
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	b, err := os.ReadFile(s.CurrentLabelFile())
	if os.IsNotExist(err) {
		return "", ErrNoConfig
	}
	if err != nil {
		return "", err
	}

	label := strings.TrimSpace(string(b))
	if label == "" {
		return "", ErrNoConfig
	}
	return label, nil
}

func (s Store) ActivePath() (string, error) {
	label, err := s.CurrentLabel()
	if err != nil {
		return "", err
	}

	return s.PathFor(label), nil
}

type ConfigInfo struct {
	Label  string
	Path   string
	Active bool
}

func (s Store) List() ([]ConfigInfo, error) {
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.ConfigsDir())
	if err != nil {
		return nil, err
	}

	activeLabel, _ := s.CurrentLabel()
	var out []ConfigInfo

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}

		label := strings.TrimSuffix(name, ".yaml")
		out = append(out, ConfigInfo{
			Label:  label,
			Path:   filepath.Join(s.ConfigsDir(), name),
			Active: label == activeLabel,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s Store) Switch(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if err := s.ensureDirs(); err != nil {
		return err
	}

	if _, err := os.Stat(s.PathFor(label)); err != nil {
		return fmt.Errorf("config %q does not exist", label)
	}

	return os.WriteFile(s.CurrentLabelFile(), []byte(label), 0o644)
}

// InitDefault writes the Default profile and makes it active. An existing
// profile is kept and os.ErrExist returned.
func (s Store) InitDefault() (string, error) {
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.PathFor(DefaultLabel)

	if _, err := os.Stat(path); err == nil {
		if err := s.Switch(DefaultLabel); err != nil {
			return path, err
		}
		return path, os.ErrExist
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, s.Switch(DefaultLabel)
}

// Update loads the active profile, applies fn and writes it back.
func (s Store) Update(fn func(*Config)) (string, error) {
	path, err := s.ActivePath()
	if err != nil {
		return "", err
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		return "", fmt.Errorf("failed to load config %s: %w", path, err)
	}

	fn(cfg)

	if err := SaveYAML(cfg, path); err != nil {
		return "", err
	}
	return path, nil
}

// Create writes a new profile with default values.
func (s Store) Create(label string) (string, error) {
	if strings.TrimSpace(label) == "" {
		return "", errors.New("label cannot be empty")
	}
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.PathFor(label)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config %q already exists", label)
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}
	return path, nil
}

func (s Store) Rename(oldLabel, newLabel string) error {
	if strings.TrimSpace(newLabel) == "" {
		return errors.New("new label cannot be empty")
	}
	if err := s.ensureDirs(); err != nil {
		return err
	}

	oldPath, newPath := s.PathFor(oldLabel), s.PathFor(newLabel)

	if _, err := os.Stat(oldPath); err != nil {
		return fmt.Errorf("config %q does not exist", oldLabel)
	}
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("config %q already exists", newLabel)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}

	if active, _ := s.CurrentLabel(); active == oldLabel {
		return os.WriteFile(s.CurrentLabelFile(), []byte(newLabel), 0o644)
	}
	return nil
}

// Remove deletes a profile. Removing the active one falls back to Default.
func (s Store) Remove(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if label == DefaultLabel {
		return errors.New("cannot remove the Default config")
	}

	path := s.PathFor(label)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config %q does not exist", label)
	}

	if active, _ := s.CurrentLabel(); active == label {
		if err := s.Switch(DefaultLabel); err != nil {
			return fmt.Errorf("failed switching to Default: %w", err)
		}
	}

	return os.Remove(path)
}

// Reset restores default settings in the active profile. Stored cookies survive.
func (s Store) Reset() (string, error) {
	return s.Update(func(c *Config) {
		cookies, stamps := c.Cookies, c.CookieUpdatedAt
		*c = *DefaultConfig()
		c.Cookies, c.CookieUpdatedAt = cookies, stamps
	})
}
