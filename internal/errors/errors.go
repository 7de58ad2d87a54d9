package errors

import "net/http"

// Custom error types for the URL shortener application

// APIError is a client-facing error carrying a stable message and the HTTP
// status it translates to at the boundary. Handlers match these with
// errors.As; anything that is not an APIError becomes a generic 500.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrInvalidDestination is returned when the destination URL has no allowed scheme
var ErrInvalidDestination = &APIError{http.StatusBadRequest, "URL deve começar com http:// ou https://"}

// ErrForbiddenDestination is returned when the destination matches the forbidden list
var ErrForbiddenDestination = &APIError{http.StatusBadRequest, "URL de destino não permitida"}

// ErrAliasAlreadyExists is returned when a custom alias collides with an existing code
var ErrAliasAlreadyExists = &APIError{http.StatusBadRequest, "Código customizado já utilizado"}

// ErrAliasInvalidCharacters is returned when a custom alias fails the character pattern
var ErrAliasInvalidCharacters = &APIError{http.StatusBadRequest, "Código customizado possui caracteres inválidos"}

// ErrExpirationInPast is returned when the supplied expiration is not in the future
var ErrExpirationInPast = &APIError{http.StatusBadRequest, "Data de expiração deve ser no futuro"}

// ErrCodeNotFound is returned when a code has no matching link
var ErrCodeNotFound = &APIError{http.StatusNotFound, "Código não encontrado"}

// ErrLinkExpired is returned when the link's expiration time has passed
var ErrLinkExpired = &APIError{http.StatusBadRequest, "Link curto expirado"}

// ErrMaxClicksReached is returned when the live click count reached the link's quota
var ErrMaxClicksReached = &APIError{http.StatusBadRequest, "Link curto alcançou o máximo de cliques"}
