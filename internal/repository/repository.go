package repository

import (
	"context"
	"errors"
)

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (file, postgres) inside this directory.

// ErrNotFound is returned by Get when the key has never been set or was deleted.
var ErrNotFound = errors.New("key not found")

// TokenKey is the durable slot holding the opaque bearer token.
const TokenKey = "token"

// ClientStorage is the durable key-value storage of the client.
// Writes are synchronous: once Set or Delete returns nil the change is durable.
type ClientStorage interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. It returns nil if the key did not exist.
	Delete(ctx context.Context, key string) error
}
