// Package idgen generates identifiers for webhook requests that do not
// carry a GitHub delivery ID.
package idgen

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	prefix   = "local-"
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	length   = 16
)

// DeliveryID returns a new random delivery ID.
// If no random ID can be generated, "local-unknown" is returned.
func DeliveryID() string {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return prefix + "unknown"
	}

	return prefix + id
}
