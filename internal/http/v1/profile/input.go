package profile

// ProfileCreateInput for POST /profile
type ProfileCreateInput struct {
	Body struct {
		DisplayName string `json:"displayName,omitempty" maxLength:"100" doc:"Display name; defaults to the identity provider's" example:"Jane Doe"`
	}
}

// ProfileGetInput for GET /profile (no body needed)
type ProfileGetInput struct{}

// ProfileUpdateInput for PATCH /profile
type ProfileUpdateInput struct {
	Body struct {
		Email       *string        `json:"email,omitempty"       format:"email"   doc:"Email address"                      example:"jane@example.com"`
		DisplayName *string        `json:"displayName,omitempty" maxLength:"100"  doc:"Display name"                       example:"Jane Doe"`
		PhotoURL    *string        `json:"photoURL,omitempty"    maxLength:"2048" doc:"Photo URL; empty string clears it"  example:"https://example.com/jane.png"`
		Preferences map[string]any `json:"preferences,omitempty"                  doc:"Preference keys to set"`
		Metadata    map[string]any `json:"metadata,omitempty"                     doc:"Metadata keys to set"`
	}
}

// ProfileLoginInput for POST /profile/login (no body needed)
type ProfileLoginInput struct{}
