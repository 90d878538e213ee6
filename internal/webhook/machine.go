package webhook

import (
	"github.com/talkincode/wafleet/internal/domain"
)

// Outcome is the state-machine decision for one event: the status to adopt,
// optional QR material to store or clear, and whether last-seen should be
// stamped. Recognized is false for events that produce no state change.
type Outcome struct {
	Status        string
	QR            *string
	StampLastSeen bool
	Recognized    bool
}

func clearQR() *string {
	empty := ""
	return &empty
}

// Transition applies the device state machine to one event. It is pure:
// payload decoding failures simply yield an unrecognized outcome, which the
// caller acknowledges without a state change.
func Transition(evt Event) Outcome {
	switch evt.Event {
	case EventConnectionUpdate:
		var payload UpdatePayload
		if err := decodePayload(evt.Data, &payload); err != nil {
			return Outcome{}
		}
		switch payload.Connection {
		case "open":
			return Outcome{Status: domain.DeviceStatusConnected, QR: clearQR(), StampLastSeen: true, Recognized: true}
		case "connecting":
			return Outcome{Status: domain.DeviceStatusConnecting, Recognized: true}
		case "close":
			if IsAuthFailure(payload.Error) {
				return Outcome{Status: domain.DeviceStatusAuthenticating, Recognized: true}
			}
			return Outcome{Status: domain.DeviceStatusDisconnected, Recognized: true}
		}
		return Outcome{}

	case EventQR:
		var payload QRPayload
		if err := decodePayload(evt.Data, &payload); err != nil || payload.QR == "" {
			return Outcome{}
		}
		return Outcome{Status: domain.DeviceStatusAuthenticating, QR: &payload.QR, Recognized: true}

	case EventReady, EventConnectionOpen:
		return Outcome{Status: domain.DeviceStatusConnected, QR: clearQR(), StampLastSeen: true, Recognized: true}

	case EventConnectionClose:
		var payload ClosePayload
		if err := decodePayload(evt.Data, &payload); err != nil {
			return Outcome{Status: domain.DeviceStatusDisconnected, Recognized: true}
		}
		if IsAuthFailure(payload.Error) {
			return Outcome{Status: domain.DeviceStatusAuthenticating, Recognized: true}
		}
		return Outcome{Status: domain.DeviceStatusDisconnected, Recognized: true}

	case EventAuthFailure:
		return Outcome{Status: domain.DeviceStatusAuthenticating, QR: clearQR(), Recognized: true}
	}

	return Outcome{}
}
