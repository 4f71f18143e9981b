package registry

import (
	"time"

	"github.com/go-upf/upf/health"
	"github.com/go-upf/upf/manifest"
)

type EventType string

const (
	EventRegistered   EventType = "plugin-registered"
	EventUnregistered EventType = "plugin-unregistered"
	EventUpdated      EventType = "manifest-updated"
	EventHealth       EventType = "health-transition"
)

// reasons carried on unregister events
const (
	ReasonRequested = "requested"
	ReasonExhausted = "health-exhausted"
)

type Event struct {
	Type     EventType          `json:"type"`
	PluginID string             `json:"plugin_id"`
	Manifest *manifest.Manifest `json:"manifest,omitempty"`
	Health   *health.Record     `json:"health,omitempty"`
	Reason   string             `json:"reason,omitempty"`
	At       time.Time          `json:"at"`
}
