package domain

import "errors"

var (
	// ErrGatewayUnavailable marks a prediction that failed in transport or parsing.
	ErrGatewayUnavailable = errors.New("prediction gateway unavailable")

	// ErrStaleResponse marks a prediction superseded by a newer request.
	ErrStaleResponse = errors.New("stale prediction response")

	// ErrChannelDisconnected marks a lost broadcast transport connection.
	ErrChannelDisconnected = errors.New("alert channel disconnected")

	// ErrInvalidCredentials is returned by Authenticator for a failed check.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrEmptyAlert is returned when an alert payload carries no message.
	ErrEmptyAlert = errors.New("alert message is empty")
)
