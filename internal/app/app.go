// Package app implements the keycrypt command dispatcher: it parses the
// argument vector, drives the keystore and crypto collaborators and prints
// line-oriented status to its output sink.
package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"keycrypt/internal/crypto"
	"keycrypt/internal/keystore"
)

// ErrMissingArgument is returned when a command is given without its value.
var ErrMissingArgument = errors.New("missing argument")

const (
	cmdCreateKeyStore  = "-createKeyStore"
	cmdEncryptPassword = "-encryptPassword"
	cmdDecryptPassword = "-decryptPassword"

	// cmdEncryptPasswordStdin reads the password from the input instead of argv.
	cmdEncryptPasswordStdin = "-encryptPasswordStdin"
)

// App dispatches a single command. The output sink is not guarded and must
// not be swapped while Execute runs.
type App struct {
	keystores keystore.Factory
	crypto    crypto.Provider
	out       io.Writer
	in        io.Reader
	prompt    io.Writer
}

// Option configures an App.
type Option func(*App)

// WithOutput sets the sink for status lines.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithInput sets where "-" passwords are read from. The prompt, when the
// input is a terminal, is written to prompt.
func WithInput(in io.Reader, prompt io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.prompt = prompt
	}
}

// New returns an App using the given keystore factory and crypto provider.
func New(keystores keystore.Factory, provider crypto.Provider, opts ...Option) *App {
	a := &App{
		keystores: keystores,
		crypto:    provider,
		out:       os.Stdout,
		in:        os.Stdin,
		prompt:    os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetOutput replaces the output sink.
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

// ResetOutput restores the output sink to standard output.
func (a *App) ResetOutput() {
	a.out = os.Stdout
}

// Execute runs the command named by args[0]. Collaborator failures are
// returned unchanged apart from added context.
func (a *App) Execute(args []string) error {
	if len(args) < 1 {
		return a.showUsage()
	}

	cmd := args[0]
	switch {
	case strings.EqualFold(cmd, cmdCreateKeyStore):
		if len(args) > 1 {
			return a.createKeyStoreAt(args[1])
		}
		return a.createDefaultKeyStore()
	case strings.EqualFold(cmd, cmdEncryptPassword):
		password, err := a.value(args, "password")
		if err != nil {
			return err
		}
		return a.encryptPassword(password)
	case strings.EqualFold(cmd, cmdEncryptPasswordStdin):
		password, err := readSecret(a.in, a.prompt, "password")
		if err != nil {
			return err
		}
		return a.encryptPassword(password)
	case strings.EqualFold(cmd, cmdDecryptPassword):
		value, err := a.value(args, "encrypted value")
		if err != nil {
			return err
		}
		return a.decryptPassword(value)
	default:
		return a.showUsage()
	}
}

// value returns args[1] verbatim.
func (a *App) value(args []string, what string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("%w: %s requires a %s", ErrMissingArgument, args[0], what)
	}
	return args[1], nil
}

func (a *App) createDefaultKeyStore() error {
	ks, err := a.keystores.Default()
	if err != nil {
		return err
	}
	return a.createKeyStore(ks)
}

func (a *App) createKeyStoreAt(root string) error {
	ks, err := a.keystores.At(root)
	if err != nil {
		return err
	}
	return a.createKeyStore(ks)
}

func (a *App) createKeyStore(ks keystore.Manager) error {
	created, err := ks.Init()
	if err != nil {
		return err
	}
	if created {
		return a.status("KeyStore created: " + ks.Path())
	}
	return a.status("KeyStore already exists: " + ks.Path() +
		". You should clean it up manually if you want to re-create.")
}

func (a *App) encryptPassword(password string) error {
	ks, err := a.keystores.Default()
	if err != nil {
		return err
	}
	if !ks.Exists() {
		if err := a.createKeyStore(ks); err != nil {
			return err
		}
	}

	svc, err := a.crypto.Service()
	if err != nil {
		return err
	}
	encrypted, err := svc.Encrypt(password)
	if err != nil {
		return err
	}
	return a.status("Encrypted Password:\n" + crypto.Wrap(encrypted))
}

func (a *App) decryptPassword(value string) error {
	ks, err := a.keystores.Default()
	if err != nil {
		return err
	}
	if !ks.Exists() {
		return fmt.Errorf("%w: %s", keystore.ErrNotFound, ks.Path())
	}

	svc, err := a.crypto.Service()
	if err != nil {
		return err
	}
	ciphertext, _ := crypto.Unwrap(value)
	plain, err := svc.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	return a.status("Decrypted Password:\n" + plain)
}

func (a *App) showUsage() error {
	return a.status(usage)
}

func (a *App) status(msg string) error {
	_, err := fmt.Fprintln(a.out, msg)
	return err
}

const usage = `Usage arguments:

 -createKeyStore [<keyStoreName>]
     Create new key store. Default is used
     if <keyStoreName> directory is not specified
 -encryptPassword <password>
     Encrypt the given password and show the result
 -encryptPasswordStdin
     Like -encryptPassword, reading the password from standard input
 -decryptPassword <ENC(value)>
     Decrypt a value produced by -encryptPassword`
