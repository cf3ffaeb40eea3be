package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// License-specific sentinel errors
var (
	ErrNoLicenseServer        = errors.New("no license server configured")
	ErrNotInstalled           = errors.New("no license installed")
	ErrNoSignature            = errors.New("license has no signature")
	ErrNoPrivateKey           = errors.New("no issuer private key available")
	ErrNoPublicKey            = errors.New("no issuer public key available")
	ErrGracePeriodExceeded    = errors.New("grace period exceeded")
	ErrLicenseKeyUnknown      = errors.New("license key not found on server")
	ErrLicenseRevoked         = errors.New("license revoked by server")
	ErrLicenseExpiredOnServer = errors.New("license expired on server")
)

// IsNotInstalled reports whether err means no license is installed,
// unwrapping through AppError.
func IsNotInstalled(err error) bool {
	return errors.Is(err, ErrNotInstalled)
}

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Additional fields for extensibility
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON custom marshaler to include extensions
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status

	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	for k, v := range pd.Extensions {
		data[k] = v
	}

	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// NewLicenseInvalidProblem builds the response for a request gated on an
// invalid license, carrying the per-condition failure strings.
func NewLicenseInvalidProblem(reasons []string, traceID string) *ProblemDetails {
	problem := NewProblemDetails(
		http.StatusForbidden,
		"/errors/license-invalid",
		"License Invalid",
		"The installed license does not permit this request.",
		fmt.Sprintf("/api/license/status#%s", traceID),
	)
	return problem.WithExtension("reasons", reasons)
}

// NewLicenseNotInstalledProblem builds the response for hosts with no
// license installed at all.
func NewLicenseNotInstalledProblem(traceID string) *ProblemDetails {
	return NewProblemDetails(
		http.StatusForbidden,
		"/errors/license-not-installed",
		"License Not Installed",
		"No license is installed on this instance. Activate one to proceed.",
		fmt.Sprintf("/api/license/activate#%s", traceID),
	)
}

// ProblemFromAppError maps an AppError onto an RFC 7807 response.
func ProblemFromAppError(err *AppError, traceID string) *ProblemDetails {
	status := http.StatusInternalServerError
	title := "Internal Error"

	switch err.Type {
	case ErrTypeConfig:
		status = http.StatusServiceUnavailable
		title = "Configuration Error"
	case ErrTypeDecode:
		status = http.StatusUnprocessableEntity
		title = "Decode Error"
	case ErrTypeCrypto:
		status = http.StatusUnprocessableEntity
		title = "Cryptographic Error"
	case ErrTypeNetwork:
		status = http.StatusBadGateway
		title = "Network Error"
	case ErrTypeRejected:
		status = http.StatusForbidden
		title = "License Rejected"
	case ErrTypeTransient:
		status = http.StatusBadGateway
		title = "License Server Error"
	case ErrTypeStorage:
		status = http.StatusInternalServerError
		title = "Storage Error"
	case ErrTypeNotFound:
		status = http.StatusNotFound
		title = "Not Found"
	}

	return NewProblemDetails(
		status,
		fmt.Sprintf("/errors/%s", err.Type),
		title,
		err.Message,
		fmt.Sprintf("#%s", traceID),
	)
}
