// Package device provides the registry of devices that can receive pushes.
package device

import (
	"fmt"
	"time"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

// Repository errors.
var (
	ErrDeviceNotFound = fmt.Errorf("device %w", apperr.ErrNotFound)
)

// Device represents a registered push target.
// A device is never mutated after registration.
type Device struct {
	Key string
	// Token is the downstream address (APNs/Expo token). May be empty.
	Token string
	// Channel names the downstream channel. Empty means the relay default.
	Channel      string
	RegisteredAt time.Time
}

// TokenLast4 returns the last 4 characters of the token for display purposes.
func (d *Device) TokenLast4() string {
	if len(d.Token) < 4 {
		return d.Token
	}
	return d.Token[len(d.Token)-4:]
}
