// Package domain contains core concepts of the chat system.
// This file defines the resolved identity behind a connection.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is the resolved user behind an authenticated connection.
// It is immutable for the life of a session.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
