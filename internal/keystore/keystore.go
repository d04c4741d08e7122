// Package keystore provides the on-disk keystore that holds the age identity
// used to encrypt and decrypt configuration passwords.
package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFileName is the keystore file created inside a keystore root.
const DefaultFileName = ".keycrypt.key"

var (
	// ErrNotFound is returned when an operation needs an existing keystore file.
	ErrNotFound = errors.New("keystore not found")
	// ErrInvalidKeystore is returned when the keystore file holds no usable identity.
	ErrInvalidKeystore = errors.New("keystore contains no X25519 identity")
)

// Manager is the capability set of a single keystore.
type Manager interface {
	// Exists reports whether the keystore file is present.
	Exists() bool
	// Init creates the keystore if it is absent. created is false when the
	// keystore already existed; the existing file is left untouched.
	Init() (created bool, err error)
	// Path returns the keystore file path.
	Path() string
}

// Factory produces keystore managers.
type Factory interface {
	// Default returns the keystore at the configured default root.
	Default() (Manager, error)
	// At returns the keystore rooted at the given directory.
	At(root string) (Manager, error)
}

// Clock provides time functions for testability.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Option configures a FileFactory.
type Option func(*FileFactory)

// WithLogger sets the logger handed to every store the factory opens.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *FileFactory) { f.logger = logger }
}

// WithClock overrides the clock used for the created header.
func WithClock(clock Clock) Option {
	return func(f *FileFactory) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// FileFactory opens file-backed keystores.
type FileFactory struct {
	root   string
	name   string
	clock  Clock
	logger zerolog.Logger
}

// NewFileFactory creates a factory whose default keystore lives in root. An
// empty root means the user's home directory; an empty name means
// DefaultFileName.
func NewFileFactory(root, name string, opts ...Option) *FileFactory {
	if name == "" {
		name = DefaultFileName
	}
	f := &FileFactory{
		root:   root,
		name:   name,
		clock:  SystemClock{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Default implements Factory.
func (f *FileFactory) Default() (Manager, error) {
	return f.OpenDefault()
}

// At implements Factory.
func (f *FileFactory) At(root string) (Manager, error) {
	return f.Open(root)
}

// OpenDefault returns the concrete store at the default root.
func (f *FileFactory) OpenDefault() (*FileStore, error) {
	root := f.root
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default keystore root: %w", err)
		}
		root = home
	}
	return f.Open(root)
}

// Open returns the concrete store rooted at root. An empty root is the
// current directory.
func (f *FileFactory) Open(root string) (*FileStore, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve keystore root %s: %w", root, err)
	}
	return &FileStore{
		root:   abs,
		name:   f.name,
		clock:  f.clock,
		logger: f.logger.With().Str("keystore", filepath.Join(abs, f.name)).Logger(),
	}, nil
}
