// Package repository defines the storage contract the ledger engine relies on.
// Backends live in subpackages.
package repository

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get and Delete when no record has the given ID.
var ErrNotFound = errors.New("record not found")

// SettingsDocumentID is the ID of the organization settings singleton.
const SettingsDocumentID = "global"

// Document is a stored record: its store-assigned ID and JSON body.
type Document struct {
	ID   string
	Data []byte
}

// SnapshotFunc receives the full contents of a collection after a change.
type SnapshotFunc func(docs []Document)

// Collection is the four-operation contract plus change notification.
// List returns documents in insertion order.
type Collection interface {
	List(ctx context.Context) ([]Document, error)
	Get(ctx context.Context, id string) (Document, error)
	// Upsert creates a record when id is empty (or unknown) and replaces it
	// otherwise. It returns the record ID.
	Upsert(ctx context.Context, id string, data []byte) (string, error)
	Delete(ctx context.Context, id string) error
	// Subscribe registers fn for snapshots pushed after every change. The
	// returned func stops the subscription.
	Subscribe(ctx context.Context, fn SnapshotFunc) (func(), error)
}

// Store opens collections by path.
type Store interface {
	Collection(path string) Collection
	Close(ctx context.Context) error
}

// Namespace scopes collections to one application and user.
type Namespace struct {
	AppID  string
	UserID string
}

// CollectionPath renders {appId}/{userId}/{collection}.
func (n Namespace) CollectionPath(collection string) string {
	return strings.Join([]string{n.AppID, n.UserID, collection}, "/")
}

// SettingsPath renders the public settings collection of the application.
// The singleton lives at SettingsPath()/SettingsDocumentID.
func (n Namespace) SettingsPath() string {
	return n.AppID + "/public/data/settings"
}

// Kind returns the last segment of a collection path.
func Kind(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
