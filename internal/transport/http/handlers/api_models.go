package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
// Mensaje repeats Error for the frontend, which reads that key.
type ErrorResponse struct {
	Error   string `json:"error"`
	Mensaje string `json:"mensaje"`
	Field   string `json:"field,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		Mensaje: errorMsg,
		TraceID: traceIDStr,
	}
}

// NewFieldErrorResponse is NewErrorResponse naming the rejected field.
func NewFieldErrorResponse(c *gin.Context, errorMsg, field string) ErrorResponse {
	resp := NewErrorResponse(c, errorMsg)
	resp.Field = field
	return resp
}

// MessageResponse is the {mensaje} body used by simple confirmations.
type MessageResponse struct {
	Mensaje string `json:"mensaje"`
}

// AccountResponse is the public view of an account. Credentials, reset state
// and the optimistic lock version are never serialised.
type AccountResponse struct {
	ID           string     `json:"_id"`
	Nombre       string     `json:"nombre"`
	Apellidos    string     `json:"apellidos"`
	Apodo        *string    `json:"apodo,omitempty"`
	Email        string     `json:"email"`
	AuthProvider string     `json:"auth_proveedor"`
	Biografia    string     `json:"biografia"`
	FotoPerfil   string     `json:"foto_perfil"`
	UbicacionLat *float64   `json:"ubicacion_lat"`
	UbicacionLon *float64   `json:"ubicacion_lon"`
	Registro     time.Time  `json:"fecha_registro"`
	UltimaConex  *time.Time `json:"ultima_conexion,omitempty"`
	GoogleLinked bool       `json:"google_vinculado"`
}

func newAccountResponse(account *domain.Account) AccountResponse {
	if account == nil {
		return AccountResponse{}
	}
	return AccountResponse{
		ID:           account.ID,
		Nombre:       account.Name,
		Apellidos:    account.Surname,
		Apodo:        account.Nickname,
		Email:        account.Email,
		AuthProvider: string(account.AuthProvider),
		Biografia:    account.Bio,
		FotoPerfil:   account.AvatarURL,
		UbicacionLat: account.Latitude,
		UbicacionLon: account.Longitude,
		Registro:     account.RegisteredAt.UTC(),
		UltimaConex:  account.LastSeenAt,
		GoogleLinked: account.IsLinked(),
	}
}

// RegistrationRequest accepts the Spanish keys sent by the HiFybe frontend as
// well as their English equivalents.
type RegistrationRequest struct {
	Nombre       string   `json:"nombre"`
	Name         string   `json:"name"`
	Apellidos    string   `json:"apellidos"`
	Surname      string   `json:"surname"`
	Apodo        string   `json:"apodo"`
	Nickname     string   `json:"nickname"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Biografia    string   `json:"biografia"`
	FotoPerfil   string   `json:"foto_perfil"`
	UbicacionLat *float64 `json:"ubicacion_lat"`
	UbicacionLon *float64 `json:"ubicacion_lon"`
}

func (r RegistrationRequest) toInput() usecase.RegisterInput {
	return usecase.RegisterInput{
		Name:      firstNonBlank(r.Nombre, r.Name),
		Surname:   firstNonBlank(r.Apellidos, r.Surname),
		Nickname:  firstNonBlank(r.Apodo, r.Nickname),
		Email:     r.Email,
		Password:  r.Password,
		Bio:       r.Biografia,
		AvatarURL: r.FotoPerfil,
		Latitude:  r.UbicacionLat,
		Longitude: r.UbicacionLon,
	}
}

// RegistrationResponse is returned with 201 Created.
type RegistrationResponse struct {
	Mensaje string          `json:"mensaje"`
	Usuario AccountResponse `json:"usuario"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session token for clients that cannot use the cookie.
type LoginResponse struct {
	Mensaje   string          `json:"mensaje"`
	Usuario   AccountResponse `json:"usuario"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ProfileUpdateRequest is a partial edit; absent keys keep their value.
type ProfileUpdateRequest struct {
	Nombre       *string  `json:"nombre"`
	Name         *string  `json:"name"`
	Apellidos    *string  `json:"apellidos"`
	Surname      *string  `json:"surname"`
	Apodo        *string  `json:"apodo"`
	Nickname     *string  `json:"nickname"`
	Biografia    *string  `json:"biografia"`
	FotoPerfil   *string  `json:"foto_perfil"`
	UbicacionLat *float64 `json:"ubicacion_lat"`
	UbicacionLon *float64 `json:"ubicacion_lon"`
}

func (r ProfileUpdateRequest) toInput() usecase.ProfileInput {
	return usecase.ProfileInput{
		Name:      firstSet(r.Nombre, r.Name),
		Surname:   firstSet(r.Apellidos, r.Surname),
		Nickname:  firstSet(r.Apodo, r.Nickname),
		Bio:       r.Biografia,
		AvatarURL: r.FotoPerfil,
		Latitude:  r.UbicacionLat,
		Longitude: r.UbicacionLon,
	}
}

func firstSet(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// ProfileUpdateResponse is returned after a successful edit.
type ProfileUpdateResponse struct {
	Mensaje string          `json:"mensaje"`
	Usuario AccountResponse `json:"usuario"`
}

// MeResponse wraps the authenticated account.
type MeResponse struct {
	Usuario AccountResponse `json:"usuario"`
}

// PasswordResetRequest represents a password reset initiation payload.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetResponse is identical for known and unknown emails unless the
// deployment opts into revealing unknown accounts.
type PasswordResetResponse struct {
	Mensaje string `json:"mensaje"`
	// DevToken is only exposed when auth.echo_reset_token is set.
	DevToken  *string    `json:"dev_token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PasswordRedeemRequest accepts nuevaContrasena or newPassword.
type PasswordRedeemRequest struct {
	NuevaContrasena string `json:"nuevaContrasena"`
	NewPassword     string `json:"newPassword"`
}

func (r PasswordRedeemRequest) password() string {
	if r.NuevaContrasena != "" {
		return r.NuevaContrasena
	}
	return r.NewPassword
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
