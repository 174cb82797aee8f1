// Package ws is the WebSocket transport: it decodes client envelopes into commands
// and encodes room events back into envelopes.
package ws

import (
	"encoding/json"
	"fmt"
	"meet-lab/domain"
	"meet-lab/domain/event"
	"meet-lab/errors"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Client to server events.
const (
	EventJoin             = "join"
	EventLocationUpdate   = "locationUpdate"
	EventSetDestination   = "setDestination"
	EventClearDestination = "clearDestination"
	EventSendMessage      = "sendMessage"
)

// Server to client events.
const (
	EventJoined            = "joined"
	EventUserOffline       = "user-offline"
	EventDestinationUpdate = "destinationUpdate"
	EventDestinationEta    = "destinationEta"
	EventReceiveMessage    = "receiveMessage"
)

const timeLayout = "15:04"

var validate = validator.New()

type Envelope struct {
	Event string          `json:"event" validate:"required,max=32"`
	Data  json.RawMessage `json:"data"`
}

type JoinPayload struct {
	RoomKey    string `json:"roomKey" validate:"required,max=64"`
	Name       string `json:"name" validate:"max=64"`
	Mode       string `json:"mode" validate:"max=16"`
	PreviousID string `json:"previousId" validate:"omitempty,max=64"`
}

// LocationPayload leaves coordinate ranges to the room store, which skips invalid positions
// but still applies the mode and heading of the sample.
type LocationPayload struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Mode    string   `json:"mode" validate:"max=16"`
	Heading *float64 `json:"heading" validate:"omitempty,min=0,max=360"`
}

type DestinationPayload struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

type MessagePayload struct {
	RoomKey string  `json:"roomKey" validate:"max=64"`
	Author  string  `json:"author" validate:"max=64"`
	Message string  `json:"message" validate:"required,max=1000"`
	Time    string  `json:"time" validate:"max=32"`
	ReplyTo *string `json:"replyTo" validate:"omitempty,max=1000"`
}

type JoinedPayload struct {
	UserID  string `json:"userId"`
	RoomKey string `json:"roomKey"`
}

type EtaPayload struct {
	UserID   string `json:"userId"`
	Distance string `json:"distance"`
	Eta      string `json:"eta"`
}

type ChatPayload struct {
	ID      string  `json:"id"`
	RoomKey string  `json:"roomKey"`
	Author  string  `json:"author"`
	Message string  `json:"message"`
	Time    string  `json:"time"`
	ReplyTo *string `json:"replyTo,omitempty"`
	System  bool    `json:"system"`
}

// Decode reads and validates an inbound envelope, returning one of the payload types.
func Decode(raw []byte) (string, any, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if err := validate.Struct(envelope); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	var payload any
	switch envelope.Event {
	case EventJoin:
		payload = &JoinPayload{}
	case EventLocationUpdate:
		payload = &LocationPayload{}
	case EventSetDestination:
		payload = &DestinationPayload{}
	case EventClearDestination:
		return envelope.Event, nil, nil
	case EventSendMessage:
		payload = &MessagePayload{}
	default:
		return envelope.Event, nil, fmt.Errorf("%w: %s", errors.ErrUnknownEvent, envelope.Event)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return envelope.Event, nil, fmt.Errorf("%w: %s without data", errors.ErrInvalidInput, envelope.Event)
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return envelope.Event, nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if err := validate.Struct(payload); err != nil {
		return envelope.Event, nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return envelope.Event, payload, nil
}

func (p LocationPayload) Sample() domain.LocationSample {
	sample := domain.LocationSample{Mode: p.Mode, Heading: p.Heading}
	if p.Lat != nil && p.Lng != nil {
		sample.Position = &domain.Point{Lat: *p.Lat, Lng: *p.Lng}
	}
	return sample
}

// Encode turns a room event into the envelope sent to one client.
func Encode(e event.DomainEvent) ([]byte, error) {
	var name string
	var data any
	switch evt := e.(type) {
	case event.SessionJoined:
		name, data = EventJoined, JoinedPayload{UserID: evt.UserID, RoomKey: string(evt.Room)}
	case event.RoomSnapshot:
		name = EventLocationUpdate
		if evt.Kind == event.KindUserOffline {
			name = EventUserOffline
		}
		data = lo.KeyBy(evt.Views, func(v domain.ParticipantView) string { return v.UserID })
	case event.DestinationUpdated:
		name, data = EventDestinationUpdate, evt.Point
	case event.DestinationEta:
		name, data = EventDestinationEta, EtaPayload{UserID: evt.UserID, Distance: evt.Distance, Eta: evt.Eta}
	case event.MessagePosted:
		m := evt.Message
		name, data = EventReceiveMessage, ChatPayload{
			ID:      m.ID.String(),
			RoomKey: string(m.Room),
			Author:  m.Author,
			Message: m.Content,
			Time:    m.At.Format(timeLayout),
			ReplyTo: m.ReplyTo,
			System:  m.System,
		}
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}
