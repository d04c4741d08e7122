package keystore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/rs/zerolog"
)

// FileStore is a keystore kept as an age identity file in the age-keygen layout.
type FileStore struct {
	root   string
	name   string
	clock  Clock
	logger zerolog.Logger
}

// Root returns the directory holding the keystore file.
func (s *FileStore) Root() string {
	return s.root
}

// Path returns the keystore file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.root, s.name)
}

// Exists reports whether the keystore file is present.
func (s *FileStore) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && info.Mode().IsRegular()
}

// Init creates the keystore when it is absent. Concurrent callers, including
// other processes, are serialised through an advisory lock next to the file.
func (s *FileStore) Init() (bool, error) {
	if err := os.MkdirAll(s.root, 0700); err != nil {
		return false, fmt.Errorf("failed to create keystore directory %s: %w", s.root, err)
	}

	unlock, err := lockFile(s.Path() + ".lock")
	if err != nil {
		return false, fmt.Errorf("failed to lock keystore %s: %w", s.Path(), err)
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release keystore lock")
		}
	}()

	// Another process may have won the race while we waited for the lock.
	if s.Exists() {
		s.logger.Debug().Msg("keystore already exists")
		return false, nil
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return false, fmt.Errorf("failed to generate keystore identity: %w", err)
	}
	if err := s.write(identity); err != nil {
		return false, err
	}

	s.logger.Info().Str("recipient", identity.Recipient().String()).Msg("keystore created")
	return true, nil
}

// Identity loads the identity stored in the keystore.
func (s *FileStore) Identity() (*age.X25519Identity, error) {
	f, err := os.Open(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Path())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore %s: %w", s.Path(), err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeystore, s.Path(), err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidKeystore, s.Path())
}

// Recipient returns the public half of the stored identity.
func (s *FileStore) Recipient() (*age.X25519Recipient, error) {
	identity, err := s.Identity()
	if err != nil {
		return nil, err
	}
	return identity.Recipient(), nil
}

// write stores the identity through a temp file and a rename so a reader
// never observes a partially written keystore.
func (s *FileStore) write(identity *age.X25519Identity) error {
	tmp, err := os.CreateTemp(s.root, s.name+".tmp_*")
	if err != nil {
		return fmt.Errorf("failed to create temporary keystore file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict keystore permissions: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# created: %s\n", s.clock.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "# public key: %s\n", identity.Recipient())
	fmt.Fprintf(&b, "%s\n", identity)

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync keystore: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close keystore: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("failed to move keystore into place: %w", err)
	}
	return nil
}
