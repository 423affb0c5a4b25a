package account

import (
	"github.com/danielgtaylor/huma/v2"
)

// Problem is an RFC 9457 problem document carrying the account result code.
type Problem struct {
	huma.ErrorModel
	Code           string `json:"code"                     doc:"Machine-readable result code"             example:"WRONG_PASSWORD"`
	ProviderCode   string `json:"providerCode,omitempty"   doc:"Identity provider code, when one applies" example:"auth/wrong-password"`
	RequiresReauth bool   `json:"requiresReauth,omitempty" doc:"Prompt for credentials and retry"         example:"true"`
}

// LogoutError describes one failed logout step.
type LogoutError struct {
	Code    string `json:"code"    doc:"Machine-readable error code" example:"SIGN_OUT_FAILED"`
	Message string `json:"message" doc:"Human-readable message"      example:"Failed to sign out"`
}

// LogoutOutput for POST /account/logout
type LogoutOutput struct {
	Body struct {
		Success bool          `json:"success"          doc:"Whether every logout step succeeded" example:"true"`
		Errors  []LogoutError `json:"errors,omitempty" doc:"Failed steps"`
	}
}
