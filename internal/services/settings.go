package services

import (
	"context"
	"fmt"
)

// ThemeKey is the preference key of the display theme
const ThemeKey = "lumina_theme"

// Themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// SettingsService holds device-local display settings
type SettingsService struct {
	prefs    PreferenceStore
	notifier Notifier
}

// NewSettingsService creates a new settings service
func NewSettingsService(prefs PreferenceStore, notifier Notifier) *SettingsService {
	return &SettingsService{prefs: prefs, notifier: orNop(notifier)}
}

// Theme returns the stored theme, light when unset
func (s *SettingsService) Theme(ctx context.Context) (string, error) {
	var theme string
	found, err := s.prefs.Get(ctx, ThemeKey, &theme)
	if err != nil {
		return ThemeLight, fmt.Errorf("failed to read theme: %w", err)
	}
	if !found || (theme != ThemeLight && theme != ThemeDark) {
		return ThemeLight, nil
	}
	return theme, nil
}

// SetTheme stores the theme
func (s *SettingsService) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("unknown theme %q", theme)
	}
	if err := s.prefs.Set(ctx, ThemeKey, theme); err != nil {
		return fmt.Errorf("failed to store theme: %w", err)
	}
	s.notifier.Publish(EventThemeChanged, map[string]string{"theme": theme})
	return nil
}

// ToggleTheme switches between light and dark and returns the new theme
func (s *SettingsService) ToggleTheme(ctx context.Context) (string, error) {
	current, err := s.Theme(ctx)
	if err != nil {
		return current, err
	}
	next := ThemeDark
	if current == ThemeDark {
		next = ThemeLight
	}
	return next, s.SetTheme(ctx, next)
}
