package profile

import (
	"maps"
	"time"
)

// Well-known preference keys.
const (
	PrefTheme         = "theme"
	PrefLanguage      = "language"
	PrefNotifications = "notifications"
)

// Preferences holds user preferences. Keys other than the well-known ones are
// application extensions and pass through unchanged.
type Preferences map[string]any

// DefaultPreferences returns the fixed preference defaults.
func DefaultPreferences() Preferences {
	return Preferences{
		PrefTheme:         "system",
		PrefLanguage:      "en",
		PrefNotifications: true,
	}
}

// Theme returns the theme preference, or "".
func (p Preferences) Theme() string {
	s, _ := p[PrefTheme].(string)
	return s
}

// Language returns the language preference, or "".
func (p Preferences) Language() string {
	s, _ := p[PrefLanguage].(string)
	return s
}

// Notifications returns the notifications preference, defaulting to true.
func (p Preferences) Notifications() bool {
	b, ok := p[PrefNotifications].(bool)
	return !ok || b
}

// mergePreferences overlays layers left to right; later keys win.
func mergePreferences(layers ...Preferences) Preferences {
	out := Preferences{}
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// Profile is a user's profile document.
type Profile struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    *string
	CreatedAt   time.Time
	LastLoginAt time.Time
	Preferences Preferences
	Metadata    map[string]any
}

// UpdateParams holds a partial profile update. Nil fields are left unchanged;
// Preferences and Metadata keys are merged into the stored maps.
type UpdateParams struct {
	Email       *string
	DisplayName *string
	// PhotoURL set to an empty string clears the photo.
	PhotoURL    *string
	Preferences Preferences
	Metadata    map[string]any
}

// IsEmpty reports whether the update changes nothing.
func (p UpdateParams) IsEmpty() bool {
	return p.Email == nil && p.DisplayName == nil && p.PhotoURL == nil &&
		len(p.Preferences) == 0 && len(p.Metadata) == 0
}
