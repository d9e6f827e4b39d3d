package store

import (
	"crypto/ed25519"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/rcliao/soul-memory/internal/codec"
	"github.com/rcliao/soul-memory/internal/model"
)

// SQLiteBackend persists the store in a single SQLite database instead of
// the identity.json/memories.jsonl pair. Memory objects are stored as one
// JSON document per row; rows that fail to parse are skipped on load, same
// as corrupt log lines.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens or creates a SQLite database at the given path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS identity (
		soul        TEXT PRIMARY KEY,
		doc         TEXT NOT NULL,
		signing_key TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memories (
		id  TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_seq ON memories(seq);
	`
	_, err := b.db.Exec(schema)
	return err
}

func (b *SQLiteBackend) LoadIdentity() (*model.Identity, ed25519.PrivateKey, error) {
	var doc, keyStr string
	err := b.db.QueryRow(`SELECT doc, signing_key FROM identity LIMIT 1`).Scan(&doc, &keyStr)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read identity: %w", err)
	}
	var ident model.Identity
	if err := json.Unmarshal([]byte(doc), &ident); err != nil {
		return nil, nil, fmt.Errorf("parse identity: %w", err)
	}
	key, err := codec.Decode(strings.TrimSpace(keyStr))
	if err != nil {
		return nil, nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("signing key: got %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	return &ident, ed25519.PrivateKey(key), nil
}

func (b *SQLiteBackend) SaveIdentity(ident *model.Identity, key ed25519.PrivateKey) error {
	doc, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	_, err = b.db.Exec(
		`INSERT INTO identity (soul, doc, signing_key) VALUES (?, ?, ?)
		 ON CONFLICT(soul) DO UPDATE SET doc = excluded.doc, signing_key = excluded.signing_key`,
		ident.Soul, string(doc), codec.Encode(key))
	if err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) LoadMemories() ([]*model.MemoryObject, []LoadError, error) {
	rows, err := b.db.Query(`SELECT seq, doc FROM memories ORDER BY seq`)
	if err != nil {
		return nil, nil, fmt.Errorf("read memories: %w", err)
	}
	defer rows.Close()

	var objs []*model.MemoryObject
	var skipped []LoadError
	for rows.Next() {
		var seq int
		var doc string
		if err := rows.Scan(&seq, &doc); err != nil {
			return nil, nil, err
		}
		var m model.MemoryObject
		if err := json.Unmarshal([]byte(doc), &m); err != nil {
			skipped = append(skipped, LoadError{Line: seq, Err: err})
			continue
		}
		objs = append(objs, &m)
	}
	return objs, skipped, rows.Err()
}

func (b *SQLiteBackend) SaveMemories(objs []*model.MemoryObject) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Full rewrite, mirroring the wholesale log rewrite of the file layout.
	if _, err := tx.Exec(`DELETE FROM memories`); err != nil {
		return err
	}
	for i, m := range objs {
		doc, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("serialize %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO memories (id, seq, doc) VALUES (?, ?, ?)`,
			m.ID, i, string(doc)); err != nil {
			return fmt.Errorf("insert memory: %w", err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
