package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Topic names a logical broadcast channel.
type Topic string

const (
	// TopicAuthorityAlert is where authorities publish. Only the authority role
	// publishes here.
	TopicAuthorityAlert Topic = "authority_alert"

	// TopicLocalsAlert delivers alerts to every connected local viewer.
	TopicLocalsAlert Topic = "locals_alert"
)

// DefaultDangerMessage is published when a prediction enters the high-risk class.
const DefaultDangerMessage = "🚨 DANGER: Kallakkadal conditions detected. Please take caution."

// AlertMessage is an operator-issued broadcast. It is immutable once created.
type AlertMessage struct {
	Text     string
	IssuedAt time.Time
}

// alertPayload is the wire form: a single flat message field.
type alertPayload struct {
	Message string `json:"message"`
}

// NewAlertMessage stamps text with the package clock.
func NewAlertMessage(text string) AlertMessage {
	return AlertMessage{Text: text, IssuedAt: clock.Now()}
}

// EncodeAlert serializes the alert's wire payload.
func EncodeAlert(msg AlertMessage) ([]byte, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, ErrEmptyAlert
	}
	data, err := json.Marshal(alertPayload{Message: msg.Text})
	if err != nil {
		return nil, fmt.Errorf("encode alert: %w", err)
	}
	return data, nil
}

// DecodeAlert parses a wire payload. IssuedAt is not on the wire, so the
// caller supplies the receive time.
func DecodeAlert(data []byte, receivedAt time.Time) (AlertMessage, error) {
	var p alertPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return AlertMessage{}, fmt.Errorf("decode alert: %w", err)
	}
	if strings.TrimSpace(p.Message) == "" {
		return AlertMessage{}, ErrEmptyAlert
	}
	return AlertMessage{Text: p.Message, IssuedAt: receivedAt}, nil
}
