// Package webhook ingests asynchronous lifecycle events from worker servers
// and drives the device-session state machine.
package webhook

import (
	"github.com/mitchellh/mapstructure"
)

// Event kinds emitted by worker servers.
const (
	EventConnectionUpdate = "connection.update"
	EventQR               = "qr"
	EventReady            = "ready"
	EventConnectionOpen   = "connection.open"
	EventConnectionClose  = "connection.close"
	EventAuthFailure      = "auth_failure"
)

// Event is one inbound lifecycle notification. It exists only for the
// duration of ingestion and is never stored.
type Event struct {
	Event     string                 `json:"event"`
	AccountID string                 `json:"accountId"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// ErrorPayload is the structured error workers attach to close events.
// Code carries a protocol status when the worker supports it; Message is
// free text.
type ErrorPayload struct {
	Code    int    `mapstructure:"code"`
	Reason  string `mapstructure:"reason"`
	Message string `mapstructure:"message"`
}

// UpdatePayload is the data object of connection.update events.
type UpdatePayload struct {
	Connection string       `mapstructure:"connection"`
	Error      ErrorPayload `mapstructure:"error"`
}

// ClosePayload is the data object of connection.close events.
type ClosePayload struct {
	Error ErrorPayload `mapstructure:"error"`
}

// QRPayload is the data object of qr events.
type QRPayload struct {
	QR string `mapstructure:"qr"`
}

func decodePayload(data map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
