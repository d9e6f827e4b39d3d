package store

import (
	"bufio"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rcliao/soul-memory/internal/codec"
	"github.com/rcliao/soul-memory/internal/model"
)

// LoadError describes one persisted record that could not be parsed.
type LoadError struct {
	Line int
	Err  error
}

// Backend persists the identity document, its signing key, and the memory
// log. Loads tolerate individually corrupt records: each comes back in the
// LoadError slice instead of failing the whole load.
type Backend interface {
	// LoadIdentity returns (nil, nil, nil) when no identity exists yet.
	LoadIdentity() (*model.Identity, ed25519.PrivateKey, error)
	SaveIdentity(ident *model.Identity, key ed25519.PrivateKey) error
	LoadMemories() ([]*model.MemoryObject, []LoadError, error)
	// SaveMemories rewrites the full log.
	SaveMemories(objs []*model.MemoryObject) error
	Close() error
}

const (
	identityFile = "identity.json"
	keyFile      = "soul.key"
	memoriesFile = "memories.jsonl"
)

// FileBackend stores the identity as a JSON document, the signing key as a
// mode-0600 multibase string, and the memory log as one JSON object per
// line, all under one directory.
type FileBackend struct {
	dir string
}

// NewFileBackend returns a backend rooted at dir. The directory is created
// on first save.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (f *FileBackend) LoadIdentity() (*model.Identity, ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(filepath.Join(f.dir, identityFile))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read identity: %w", err)
	}
	var ident model.Identity
	if err := json.Unmarshal(raw, &ident); err != nil {
		return nil, nil, fmt.Errorf("parse identity: %w", err)
	}

	keyRaw, err := os.ReadFile(filepath.Join(f.dir, keyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := codec.Decode(strings.TrimSpace(string(keyRaw)))
	if err != nil {
		return nil, nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("signing key: got %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	return &ident, ed25519.PrivateKey(key), nil
}

func (f *FileBackend) SaveIdentity(ident *model.Identity, key ed25519.PrivateKey) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	raw, err := json.MarshalIndent(ident, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(f.dir, identityFile), append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, keyFile), []byte(codec.Encode(key)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write signing key: %w", err)
	}
	return nil
}

func (f *FileBackend) LoadMemories() ([]*model.MemoryObject, []LoadError, error) {
	file, err := os.Open(filepath.Join(f.dir, memoriesFile))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open memory log: %w", err)
	}
	defer file.Close()

	var objs []*model.MemoryObject
	var skipped []LoadError

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var m model.MemoryObject
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			skipped = append(skipped, LoadError{Line: line, Err: err})
			continue
		}
		objs = append(objs, &m)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan memory log: %w", err)
	}
	return objs, skipped, nil
}

func (f *FileBackend) SaveMemories(objs []*model.MemoryObject) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	var buf strings.Builder
	for _, m := range objs {
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("serialize %s: %w", m.ID, err)
		}
		buf.Write(raw)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(f.dir, memoriesFile), []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("write memory log: %w", err)
	}
	return nil
}

func (f *FileBackend) Close() error { return nil }
