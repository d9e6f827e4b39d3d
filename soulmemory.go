// Package soulmemory is a verifiable, append-oriented record store for
// discrete memory facts owned by a cryptographic identity. Every stored
// object is signed over a canonical serialization and hash-chained to its
// predecessor; deletion is a signed soft-delete, so the full audit trail
// stays queryable and verifiable.
//
// A store owns one data directory at a time and is not safe for concurrent
// use; callers must serialize access externally.
package soulmemory

import (
	"github.com/rcliao/soul-memory/internal/model"
	"github.com/rcliao/soul-memory/internal/store"
)

// Core data types.
type (
	MemoryObject = model.MemoryObject
	Identity     = model.Identity
	Manifest     = model.Manifest
	Signature    = model.Signature
)

// Store surface.
type (
	Store           = store.Store
	Option          = store.Option
	Backend         = store.Backend
	FileBackend     = store.FileBackend
	SQLiteBackend   = store.SQLiteBackend
	RememberParams  = store.RememberParams
	RecallParams    = store.RecallParams
	UpdateParams    = store.UpdateParams
	SearchParams    = store.SearchParams
	Bundle          = store.Bundle
	Report          = store.Report
	VerifyError     = store.VerifyError
	Stats           = store.Stats
	ValidationError = store.ValidationError
)

// Open loads or creates the store rooted at dir.
var Open = store.Open

// Store options.
var (
	WithLogger  = store.WithLogger
	WithBackend = store.WithBackend
	WithName    = store.WithName
)

// Backend constructors.
var (
	NewFileBackend   = store.NewFileBackend
	NewSQLiteBackend = store.NewSQLiteBackend
)

// ValidTypes and ValidSources enumerate the accepted memory types and
// sources.
var (
	ValidTypes   = model.ValidTypes
	ValidSources = model.ValidSources
)
