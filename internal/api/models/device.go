package models

import "github.com/pushrelay/pushrelay/internal/device"

// DeviceRegisterRequest is the body (JSON or form) or query of a registration.
type DeviceRegisterRequest struct {
	DeviceKey   string `json:"device_key"`
	DeviceToken string `json:"device_token"`
	Channel     string `json:"channel"`
}

// Device is the registration returned to clients. The token is never echoed in full.
type Device struct {
	Key          string    `json:"key"`
	DeviceKey    string    `json:"device_key"`
	Channel      string    `json:"channel,omitempty"`
	TokenLast4   *string   `json:"tokenLast4,omitempty"`
	RegisteredAt Timestamp `json:"registeredAt"`
}

// DeviceFromDomain converts a registered device.
func DeviceFromDomain(d *device.Device) Device {
	out := Device{
		Key:          d.Key,
		DeviceKey:    d.Key,
		Channel:      d.Channel,
		RegisteredAt: Timestamp(d.RegisteredAt),
	}
	if last4 := d.TokenLast4(); last4 != "" {
		out.TokenLast4 = &last4
	}
	return out
}
