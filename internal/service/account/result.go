package account

// ResultError describes a failed operation.
type ResultError struct {
	Message string
	Code    string
	// ProviderCode carries the identity provider's own code, when one caused the failure.
	ProviderCode string
}

// DeleteAccountResult is the outcome of DeleteAccount. Expected failures are
// reported here rather than as a returned error.
type DeleteAccountResult struct {
	Success bool
	Error   *ResultError
	// RequiresReauth is set only when the failure happened before any
	// destructive step, so the caller can prompt for credentials again.
	RequiresReauth bool
}

// LogoutResult is the outcome of Logout.
type LogoutResult struct {
	Success bool
	Errors  []ResultError
}

func succeeded() *DeleteAccountResult {
	return &DeleteAccountResult{Success: true}
}

func failed(code, message string) *DeleteAccountResult {
	return &DeleteAccountResult{Error: &ResultError{Message: message, Code: code}}
}

func reauthFailed(code, message, providerCode string) *DeleteAccountResult {
	return &DeleteAccountResult{
		Error:          &ResultError{Message: message, Code: code, ProviderCode: providerCode},
		RequiresReauth: true,
	}
}

// outcome labels a result for metrics and audit logs.
func (r *DeleteAccountResult) outcome() string {
	if r.Success {
		return "success"
	}
	if r.Error != nil {
		return r.Error.Code
	}
	return CodeDeleteFailed
}
