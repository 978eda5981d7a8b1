// Package push resolves inbound push paths into delivery requests.
package push

import (
	"fmt"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

// MaxSegments is the largest number of positional segments a push path may carry.
const MaxSegments = 3

// ErrTooManySegments is returned for paths with more than MaxSegments segments.
var ErrTooManySegments = fmt.Errorf("push route %w", apperr.ErrNotFound)

// Method is the inbound HTTP method of a push.
type Method string

// Methods.
const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// Source records where a push originated.
type Source string

// Sources.
const (
	SourceOnDemand  Source = "on_demand"
	SourceScheduled Source = "scheduled"
)

// Fields are the semantic fields of a notification.
type Fields struct {
	Category string `json:"category,omitempty"`
	Title    string `json:"title,omitempty"`
	Body     string `json:"body"`
}

// Request is a resolved, validated push ready for delivery.
type Request struct {
	DeviceKey string
	Fields
	Method Method
	Source Source
}

// Input is the raw material of a push before resolution.
type Input struct {
	DeviceKey string
	Method    Method
	// Segments are the positional path segments after the device key.
	Segments []string
	// Encoded reports whether Segments are still percent-encoded.
	Encoded bool
	// Fields carries request-body values. Only consulted for POST.
	Fields Fields
}
