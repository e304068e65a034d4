// Package repository provides the durable string key-value stores the client
// persists its conversation and identity into.
package repository

import (
	"context"
	"errors"
	"sort"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("repository: store is closed")

// KeyValue is a string-valued key-value store. Every write is a full
// overwrite of the key.
type KeyValue interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// MultiGet returns the values of the present keys; missing keys are omitted.
	MultiGet(ctx context.Context, keys ...string) (map[string]string, error)
	// MultiSet writes every pair, all-or-nothing where the backend allows it.
	MultiSet(ctx context.Context, values map[string]string) error
	// MultiRemove deletes the keys. Removing a missing key is not an error.
	MultiRemove(ctx context.Context, keys ...string) error
	Close() error
}

// sortedKeys gives backends a deterministic write order.
func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// uniqueKeys returns keys sorted with duplicates removed.
func uniqueKeys(keys []string) []string {
	set := make(map[string]string, len(keys))
	for _, k := range keys {
		set[k] = ""
	}
	return sortedKeys(set)
}
