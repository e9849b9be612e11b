package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileStore persists cart snapshots as one JSON file per session under a
// directory. It is the durable local-storage option: no network, survives
// process restarts.
type FileStore struct {
	dir string
}

var _ CartStore = (*FileStore)(nil)

type FileStoreConfig struct {
	Dir string `envconfig:"DIR" split_words:"true" default:".partassist"`
}

func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("cart store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cart store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load(ctx context.Context, sessionID string) (CartSnapshot, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return CartSnapshot{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CartSnapshot{}, ErrCartNotFound
		}
		return CartSnapshot{}, fmt.Errorf("read cart file: %w", err)
	}

	cart, err := decodeCart(raw)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("discarding undecodable cart file")
		return CartSnapshot{}, ErrCartNotFound
	}
	return cart, nil
}

// Save writes via a temp file and rename so a crash mid-write never leaves
// a half-written snapshot behind.
func (s *FileStore) Save(ctx context.Context, sessionID string, cart CartSnapshot) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}

	payload, err := encodeCart(cart)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "cart-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cart file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cart file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cart file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cart file: %w", err)
	}
	return nil
}

func (s *FileStore) path(sessionID string) (string, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return "", ErrInvalidSession
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	return filepath.Join(s.dir, "cart-"+id+".json"), nil
}
