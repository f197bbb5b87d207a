package models

import (
	"encoding/json"
	"fmt"

	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
)

// Envelope is a single frame on the transport channel
type Envelope struct {
	Event types.ChannelEvent `json:"event"`
	Data  json.RawMessage    `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope for event
func NewEnvelope(event types.ChannelEvent, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Decode unmarshals the envelope payload into dst
func (e Envelope) Decode(dst any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: %w: empty data", e.Event, types.ErrInvalidPayload)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("%s: %w: %v", e.Event, types.ErrInvalidPayload, err)
	}
	return nil
}

// SessionInfo is sent by the relay right after a connection is accepted
type SessionInfo struct {
	ID string `json:"id"`
}

// Websocket message: From participant → send-location
type SendLocation struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	UserName  string  `json:"userName" validate:"max=64"`
}

// Websocket message: To participants ← receive-location
type ReceiveLocation struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	UserName  string  `json:"userName"`
}

func (r ReceiveLocation) Position() Position {
	return Position{Latitude: r.Latitude, Longitude: r.Longitude}
}

// ErrorMessage is returned to a single connection whose payload was rejected
type ErrorMessage struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// RelayEvent travels through the fan-out broker between relay instances.
// Exactly one of Location and DepartedID is set.
type RelayEvent struct {
	Origin     string           `json:"origin"`
	Location   *ReceiveLocation `json:"location,omitempty"`
	DepartedID string           `json:"departed_id,omitempty"`
}

// Envelope converts the broker event into the frame delivered to participants
func (e RelayEvent) Envelope() (Envelope, error) {
	switch {
	case e.Location != nil:
		return NewEnvelope(types.EventReceiveLocation, e.Location)
	case e.DepartedID != "":
		return NewEnvelope(types.EventUserDisconnected, e.DepartedID)
	default:
		return Envelope{}, fmt.Errorf("relay event: %w: neither location nor departure", types.ErrInvalidPayload)
	}
}
