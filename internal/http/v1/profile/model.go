package profile

import (
	"github.com/janisto/account-lifecycle/internal/platform/timeutil"
)

// Profile represents a user profile response.
type Profile struct {
	UID         string         `json:"uid"                doc:"User ID"                 example:"user-123"`
	Email       string         `json:"email"              doc:"Email address"           example:"jane@example.com"`
	DisplayName string         `json:"displayName"        doc:"Display name"            example:"Jane Doe"`
	PhotoURL    *string        `json:"photoURL,omitempty" doc:"Photo URL"               example:"https://example.com/jane.png"`
	CreatedAt   timeutil.Time  `json:"createdAt"          doc:"Creation timestamp"      example:"2024-01-15T10:30:00.000Z"`
	LastLoginAt timeutil.Time  `json:"lastLoginAt"        doc:"Last login timestamp"    example:"2024-01-15T10:30:00.000Z"`
	Preferences map[string]any `json:"preferences"        doc:"Resolved preferences"`
	Metadata    map[string]any `json:"metadata"           doc:"Application metadata"`
}
