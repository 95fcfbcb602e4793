package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/five82/kdebridge/internal/protocol"
	"github.com/five82/kdebridge/internal/registry"
)

// Origin names the kind of UI surface a message came from.
type Origin string

const (
	OriginPopup    Origin = "popup"
	OriginOptions  Origin = "options"
	OriginCLI      Origin = "cli"
	OriginInternal Origin = "background"
)

// ParseOrigin validates a surface kind.
func ParseOrigin(s string) (Origin, error) {
	switch o := Origin(s); o {
	case OriginPopup, OriginOptions, OriginCLI, OriginInternal:
		return o, nil
	default:
		return "", fmt.Errorf("unknown surface %q", s)
	}
}

var (
	// ErrMissingType rejects a surface message without a type.
	ErrMissingType = errors.New("relay: message without type")
	// ErrInvalidShare rejects a typeShare without target or url.
	ErrInvalidShare = errors.New("relay: share needs target and url")
)

// Sender delivers a message to the host.
type Sender interface {
	Send(msg protocol.Message) error
}

// Negotiator receives version traffic.
type Negotiator interface {
	HandleResponse(ctx context.Context, remote string)
	Rearm(ctx context.Context)
}

// Broadcaster delivers a message to every attached surface.
type Broadcaster interface {
	Broadcast(msg protocol.Message)
}

// Relay routes host messages to the core and out to surfaces, and surface
// messages to the host. It must only be used from the loop goroutine.
type Relay struct {
	out    Broadcaster
	logger *log.Logger

	sender     Sender
	registry   *registry.Registry
	negotiator Negotiator

	lastDevices *protocol.Message
	statusKeys  []string
	statuses    map[string]protocol.Message
}

// New returns a relay broadcasting through out. Attach must be called before
// any host or surface message is handled.
func New(out Broadcaster, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.Default()
	}
	return &Relay{
		out:      out,
		logger:   logger,
		statuses: map[string]protocol.Message{},
	}
}

// Attach wires the relay to the components it routes into.
func (r *Relay) Attach(sender Sender, reg *registry.Registry, neg Negotiator) {
	r.sender = sender
	r.registry = reg
	r.negotiator = neg
}

// HandleHost classifies one inbound host message.
func (r *Relay) HandleHost(ctx context.Context, msg protocol.Message) {
	payload, err := protocol.Decode(msg)
	if err != nil {
		r.logger.Printf("[relay] drop host message: %v", err)
		return
	}

	switch p := payload.(type) {
	case protocol.Devices:
		if p.Request {
			r.Publish(msg)
			return
		}
		r.registry.ApplySnapshot(p.Devices)
	case protocol.DeviceUpdate:
		r.registry.ApplyUpdate(p.Device)
	case protocol.Version:
		r.negotiator.HandleResponse(ctx, p.Version)
	case protocol.HostError:
		r.Publish(protocol.ErrorStatus(protocol.StatusKeyHost, p.Text))
	default:
		r.Publish(msg)
	}
}

// HandleSurface forwards a surface message to the host. Messages from the
// internal page are dropped so the bridge never feeds its own output back.
func (r *Relay) HandleSurface(ctx context.Context, origin Origin, msg protocol.Message) error {
	if origin == OriginInternal {
		return nil
	}
	if msg.Type == "" {
		r.logger.Printf("[relay] %s: %v", origin, ErrMissingType)
		return ErrMissingType
	}

	payload, err := protocol.Decode(msg)
	if err != nil {
		r.logger.Printf("[relay] %s: %v", origin, err)
		return err
	}
	if share, ok := payload.(protocol.ShareRequest); ok {
		if share.Share.Target == "" || share.Share.URL == "" {
			r.logger.Printf("[relay] %s: %v", origin, ErrInvalidShare)
			return ErrInvalidShare
		}
	}

	if err := r.sender.Send(msg); err != nil {
		r.logger.Printf("[relay] forward %s from %s: %v", msg.Type, origin, err)
		return err
	}
	if msg.Type == protocol.TypeVersion {
		r.negotiator.Rearm(ctx)
	}
	return nil
}

// Publish broadcasts msg to every surface and remembers what a late surface
// needs to catch up.
func (r *Relay) Publish(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeStatus, protocol.TypeClearStatus:
		r.track(msg)
	}
	r.out.Broadcast(msg)
}

// PublishDevices broadcasts the full registry. Only this path updates the
// registry a late surface is greeted with; a relayed devices request does not.
func (r *Relay) PublishDevices(devices map[string]protocol.Device) {
	msg := protocol.NewDevices(devices)
	r.lastDevices = &msg
	r.Publish(msg)
}

// Greeting returns what a newly attached surface is sent first: the last
// registry, then the active statuses in the order they were raised.
func (r *Relay) Greeting() []protocol.Message {
	out := make([]protocol.Message, 0, len(r.statusKeys)+1)
	if r.lastDevices != nil {
		out = append(out, *r.lastDevices)
	}
	for _, key := range r.statusKeys {
		out = append(out, r.statuses[key])
	}
	return out
}

// Statuses returns the active statuses, oldest first.
func (r *Relay) Statuses() []protocol.Status {
	out := make([]protocol.Status, 0, len(r.statusKeys))
	for _, key := range r.statusKeys {
		p, err := protocol.Decode(r.statuses[key])
		if err != nil {
			continue
		}
		if sp, ok := p.(protocol.StatusPayload); ok {
			out = append(out, sp.Status)
		}
	}
	return out
}

func (r *Relay) track(msg protocol.Message) {
	payload, err := protocol.Decode(msg)
	if err != nil {
		return
	}
	var key string
	switch p := payload.(type) {
	case protocol.StatusPayload:
		key = p.Status.Key
	case protocol.ClearStatusPayload:
		key = p.Key
	default:
		return
	}

	r.statusKeys = slices.DeleteFunc(r.statusKeys, func(k string) bool { return k == key })
	delete(r.statuses, key)
	if msg.Type == protocol.TypeStatus {
		r.statusKeys = append(r.statusKeys, key)
		r.statuses[key] = msg
	}
}
