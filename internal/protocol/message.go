package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type names a message in the host/extension catalogue.
type Type string

const (
	TypeDevices      Type = "typeDevices"
	TypeShare        Type = "typeShare"
	TypeDeviceUpdate Type = "typeDeviceUpdate"
	TypeError        Type = "typeError"
	TypeVersion      Type = "typeVersion"
	TypeStatus       Type = "typeStatus"
	TypeClearStatus  Type = "typeClearStatus"
)

// Status keys used by the bridge.
const (
	StatusKeyConnected = "connected"
	StatusKeyUpdate    = "update"
	StatusKeyHost      = "host"
)

// ErrMalformed reports a known message type whose data does not match its shape.
var ErrMalformed = errors.New("protocol: malformed message data")

// Message is the wire envelope shared by the host and every UI surface.
type Message struct {
	ID   string          `json:"id,omitempty"`
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Share asks the host to send a URL to a device.
type Share struct {
	Target string `json:"target"`
	URL    string `json:"url"`
}

// Status is a transient status line shown by UI surfaces.
type Status struct {
	Type    Type   `json:"type"`
	Key     string `json:"key"`
	Error   string `json:"error,omitempty"`
	Update  string `json:"update,omitempty"`
	Current string `json:"current,omitempty"`
}

// ClearStatus removes a previously shown status.
type ClearStatus struct {
	Key string `json:"key"`
}

// Payload is the decoded form of a Message. The set of implementations is closed.
type Payload interface {
	payloadType() Type
}

// Devices is a full registry snapshot, or a request for one when Request is set.
type Devices struct {
	Devices map[string]Device
	Request bool
}

// DeviceUpdate replaces one device record.
type DeviceUpdate struct {
	Device Device
}

// Version carries the host protocol version, or asks for it when Request is set.
type Version struct {
	Version string
	Request bool
}

// ShareRequest wraps a typeShare message.
type ShareRequest struct {
	Share Share
}

// StatusPayload wraps a typeStatus message.
type StatusPayload struct {
	Status Status
}

// ClearStatusPayload wraps a typeClearStatus message.
type ClearStatusPayload struct {
	Key string
}

// HostError is the legacy generic error report from the host.
type HostError struct {
	Text string
}

// Unknown is any message type this package does not interpret.
type Unknown struct {
	Message Message
}

func (Devices) payloadType() Type            { return TypeDevices }
func (DeviceUpdate) payloadType() Type       { return TypeDeviceUpdate }
func (Version) payloadType() Type            { return TypeVersion }
func (ShareRequest) payloadType() Type       { return TypeShare }
func (StatusPayload) payloadType() Type      { return TypeStatus }
func (ClearStatusPayload) payloadType() Type { return TypeClearStatus }
func (HostError) payloadType() Type          { return TypeError }
func (u Unknown) payloadType() Type          { return u.Message.Type }

// Decode classifies msg. Unrecognised types decode to Unknown so callers can
// forward them unchanged.
func Decode(msg Message) (Payload, error) {
	switch msg.Type {
	case TypeDevices:
		if isEmpty(msg.Data) {
			return Devices{Request: true}, nil
		}
		var devices map[string]Device
		if err := unmarshal(msg, &devices); err != nil {
			return nil, err
		}
		if devices == nil {
			devices = map[string]Device{}
		}
		return Devices{Devices: devices}, nil
	case TypeDeviceUpdate:
		var dev Device
		if err := unmarshal(msg, &dev); err != nil {
			return nil, err
		}
		if dev.ID == "" {
			return nil, fmt.Errorf("%w: %s without id", ErrMalformed, msg.Type)
		}
		return DeviceUpdate{Device: dev}, nil
	case TypeVersion:
		if isEmpty(msg.Data) {
			return Version{Request: true}, nil
		}
		var v string
		if err := unmarshal(msg, &v); err != nil {
			return nil, err
		}
		return Version{Version: v}, nil
	case TypeShare:
		var share Share
		if err := unmarshal(msg, &share); err != nil {
			return nil, err
		}
		return ShareRequest{Share: share}, nil
	case TypeStatus:
		var status Status
		if err := unmarshal(msg, &status); err != nil {
			return nil, err
		}
		return StatusPayload{Status: status}, nil
	case TypeClearStatus:
		var clear ClearStatus
		if err := unmarshal(msg, &clear); err != nil {
			return nil, err
		}
		return ClearStatusPayload{Key: clear.Key}, nil
	case TypeError:
		var text string
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			// Older hosts sent structured errors; keep the raw form.
			text = string(msg.Data)
		}
		return HostError{Text: text}, nil
	default:
		return Unknown{Message: msg}, nil
	}
}

// Request builds a data-less request message such as {type: typeDevices}.
func Request(t Type) Message {
	return Message{Type: t}
}

// NewDevices builds a full registry message.
func NewDevices(devices map[string]Device) Message {
	if devices == nil {
		devices = map[string]Device{}
	}
	return mustMessage(TypeDevices, devices)
}

// NewDeviceUpdate builds a single device update message.
func NewDeviceUpdate(dev Device) Message {
	return mustMessage(TypeDeviceUpdate, dev)
}

// NewVersion builds a version response carrying v.
func NewVersion(v string) Message {
	return mustMessage(TypeVersion, v)
}

// NewShare builds a share request.
func NewShare(target, url string) Message {
	return mustMessage(TypeShare, Share{Target: target, URL: url})
}

// NewStatus builds a status message.
func NewStatus(status Status) Message {
	return mustMessage(TypeStatus, status)
}

// NewClearStatus builds a clear-status message for key.
func NewClearStatus(key string) Message {
	return mustMessage(TypeClearStatus, ClearStatus{Key: key})
}

// ErrorStatus builds the status shown for an error under key.
func ErrorStatus(key, text string) Message {
	return NewStatus(Status{Type: TypeError, Key: key, Error: text})
}

func mustMessage(t Type, v any) Message {
	// Only plain structs, maps and strings reach here, none of which fail to marshal.
	data, _ := json.Marshal(v)
	return Message{Type: t, Data: data}
}

func unmarshal(msg Message, dest any) error {
	if isEmpty(msg.Data) {
		return fmt.Errorf("%w: %s without data", ErrMalformed, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, msg.Type, err)
	}
	return nil
}

func isEmpty(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
