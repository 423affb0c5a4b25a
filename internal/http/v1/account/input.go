package account

// DeleteAccountInput for DELETE /account/{userId}
type DeleteAccountInput struct {
	UserID string `path:"userId" doc:"ID of the account to delete; must be the caller's" example:"user-123"`
	Body   struct {
		Password string `json:"password,omitempty" maxLength:"4096" doc:"Current password. Not needed for guest accounts." example:"hunter2"`
	}
}

// LogoutInput for POST /account/logout (no body needed)
type LogoutInput struct{}
