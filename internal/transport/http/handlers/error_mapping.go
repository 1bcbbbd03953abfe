package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Maarioo25/HiFybe/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
	Field   string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Unmapped errors are attached to the gin context so the access log records
// them in full while the client only sees fallbackMessage.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewFieldErrorResponse(c, cs.Message, cs.Field))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

const (
	msgInvalidCredentials  = "Credenciales inválidas."
	msgInvalidToken        = "Token inválido o expirado."
	msgInvalidPayload      = "Datos de entrada inválidos."
	msgNotAuthenticated    = "No autenticado."
	msgAccountNotFound     = "Usuario no encontrado."
	msgIdentityConflict    = "La cuenta ya está vinculada a otro proveedor."
	msgEmailTaken          = "Email ya registrado."
	msgNicknameTaken       = "Apodo ya registrado."
	msgIdentityTaken       = "Usuario ya registrado."
	msgInvalidPassword     = "La contraseña no cumple los requisitos."
	msgRegisterFailed      = "Error al registrar usuario."
	msgLoginFailed         = "Error al iniciar sesión."
	msgResetRequestFailed  = "Error al generar el token de reseteo."
	msgResetRedeemFailed   = "Error al actualizar la contraseña."
	msgRegistered          = "Usuario registrado correctamente."
	msgLoggedIn            = "Login exitoso."
	msgLoggedOut           = "Sesión cerrada."
	msgResetRequested      = "Token de reseteo generado."
	msgPasswordUpdated     = "Contraseña actualizada exitosamente."
	msgProfileUpdated      = "Usuario actualizado correctamente."
	msgProfileUpdateFailed = "Error al actualizar el usuario."
	msgServiceUnavailable  = "Servicio no disponible."
	msgProviderUnavailable = "Inicio de sesión con Google no disponible."
)

// identityErrorCases is the shared table for the usecase error taxonomy.
var identityErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: msgInvalidCredentials},
	{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest, Message: msgInvalidToken},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: msgInvalidPayload},
	{Err: usecase.ErrDuplicateIdentity, Status: http.StatusBadRequest, Message: msgIdentityTaken},
	{Err: usecase.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: msgNotAuthenticated},
	{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: msgAccountNotFound},
	{Err: usecase.ErrIdentityConflict, Status: http.StatusConflict, Message: msgIdentityConflict},
}

func respondRegistrationError(c *gin.Context, err error) {
	respondIdentityError(c, err, msgRegisterFailed)
}

// respondIdentityError names the rejected field for duplicates and invalid
// input before falling back to the shared table.
func respondIdentityError(c *gin.Context, err error, fallbackMessage string) {
	var dup *usecase.DuplicateIdentityError
	if errors.As(err, &dup) {
		msg := msgIdentityTaken
		switch dup.Field {
		case "email":
			msg = msgEmailTaken
		case "nickname":
			msg = msgNicknameTaken
		}
		c.JSON(http.StatusBadRequest, NewFieldErrorResponse(c, msg, dup.Field))
		return
	}

	if respondInvalidInput(c, err) {
		return
	}

	RespondWithMappedError(c, err, identityErrorCases, http.StatusInternalServerError, fallbackMessage)
}

func respondInvalidInput(c *gin.Context, err error) bool {
	var invalid *usecase.InvalidInputError
	if !errors.As(err, &invalid) {
		return false
	}

	msg := msgInvalidPayload
	if invalid.Field == "password" {
		msg = msgInvalidPassword
		if invalid.Err != nil {
			msg = msgInvalidPassword + " " + invalid.Err.Error()
		}
	}
	c.JSON(http.StatusBadRequest, NewFieldErrorResponse(c, msg, invalid.Field))
	return true
}
