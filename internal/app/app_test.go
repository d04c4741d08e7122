package app

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keycrypt/internal/crypto"
	"keycrypt/internal/keystore"
)

const wantUsage = "Usage arguments:\n\n" +
	" -createKeyStore [<keyStoreName>]\n" +
	"     Create new key store. Default is used\n" +
	"     if <keyStoreName> directory is not specified\n" +
	" -encryptPassword <password>\n" +
	"     Encrypt the given password and show the result\n" +
	" -encryptPasswordStdin\n" +
	"     Like -encryptPassword, reading the password from standard input\n" +
	" -decryptPassword <ENC(value)>\n" +
	"     Decrypt a value produced by -encryptPassword\n"

type fakeStore struct {
	path    string
	exists  bool
	inits   int
	initErr error
}

func (s *fakeStore) Exists() bool { return s.exists }
func (s *fakeStore) Path() string { return s.path }
func (s *fakeStore) Init() (bool, error) {
	s.inits++
	if s.initErr != nil {
		return false, s.initErr
	}
	if s.exists {
		return false, nil
	}
	s.exists = true
	return true, nil
}

type fakeFactory struct {
	def   *fakeStore
	roots map[string]*fakeStore
	err   error
}

func (f *fakeFactory) Default() (keystore.Manager, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.def, nil
}

func (f *fakeFactory) At(root string) (keystore.Manager, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.roots == nil {
		f.roots = map[string]*fakeStore{}
	}
	s, ok := f.roots[root]
	if !ok {
		s = &fakeStore{path: filepath.Join(root, "ks")}
		f.roots[root] = s
	}
	return s, nil
}

type fakeService struct{ err error }

func (s fakeService) Encrypt(p string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "x" + p, nil
}

func (s fakeService) Decrypt(c string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return strings.TrimPrefix(c, "x"), nil
}

type fakeProvider struct {
	svc   fakeService
	calls int
}

func (p *fakeProvider) Service() (crypto.Service, error) {
	p.calls++
	return p.svc, nil
}

func newTestApp(f *fakeFactory, p *fakeProvider) (*App, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(f, p, WithOutput(&buf)), &buf
}

func TestExecute_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {}, {"-bogus"}, {"createKeyStore"}, {"--help"}} {
		a, out := newTestApp(&fakeFactory{def: &fakeStore{}}, &fakeProvider{})
		require.NoError(t, a.Execute(args))
		assert.Equal(t, wantUsage, out.String(), "args %q", args)
	}
}

func TestExecute_CreateDefaultKeyStoreTwice(t *testing.T) {
	store := &fakeStore{path: "/home/u/.keycrypt.key"}
	a, out := newTestApp(&fakeFactory{def: store}, &fakeProvider{})

	require.NoError(t, a.Execute([]string{"-createKeyStore"}))
	require.NoError(t, a.Execute([]string{"-CREATEKEYSTORE"}))

	assert.Equal(t,
		"KeyStore created: /home/u/.keycrypt.key\n"+
			"KeyStore already exists: /home/u/.keycrypt.key. You should clean it up manually if you want to re-create.\n",
		out.String())
	assert.Equal(t, 2, store.inits)
}

func TestExecute_CreateKeyStoreAtPath(t *testing.T) {
	f := &fakeFactory{def: &fakeStore{}}
	a, out := newTestApp(f, &fakeProvider{})

	require.NoError(t, a.Execute([]string{"-createkeystore", "/tmp/x"}))
	require.Contains(t, f.roots, "/tmp/x")
	assert.Equal(t, "KeyStore created: "+filepath.Join("/tmp/x", "ks")+"\n", out.String())
	assert.Equal(t, 0, f.def.inits)
}

func TestExecute_EncryptCreatesKeyStoreFirst(t *testing.T) {
	store := &fakeStore{path: "/ks"}
	p := &fakeProvider{}
	a, out := newTestApp(&fakeFactory{def: store}, p)

	require.NoError(t, a.Execute([]string{"-encryptPassword", "secret"}))
	assert.Equal(t, "KeyStore created: /ks\nEncrypted Password:\nENC(xsecret)\n", out.String())
	assert.Equal(t, 1, store.inits)

	out.Reset()
	require.NoError(t, a.Execute([]string{"-ENCRYPTpassword", "secret"}))
	assert.Equal(t, "Encrypted Password:\nENC(xsecret)\n", out.String())
	assert.Equal(t, 1, store.inits, "existing keystore is not re-initialised")
}

func TestExecute_MissingValue(t *testing.T) {
	for _, cmd := range []string{"-encryptPassword", "-decryptPassword"} {
		store := &fakeStore{path: "/ks"}
		p := &fakeProvider{}
		a, out := newTestApp(&fakeFactory{def: store}, p)

		err := a.Execute([]string{cmd})
		assert.ErrorIs(t, err, ErrMissingArgument)
		assert.Empty(t, out.String())
		assert.Equal(t, 0, store.inits)
		assert.Equal(t, 0, p.calls)
	}
}

func TestExecute_PropagatesFailures(t *testing.T) {
	boom := errors.New("boom")

	a, out := newTestApp(&fakeFactory{err: boom}, &fakeProvider{})
	assert.ErrorIs(t, a.Execute([]string{"-createKeyStore"}), boom)

	a, _ = newTestApp(&fakeFactory{def: &fakeStore{initErr: boom}}, &fakeProvider{})
	assert.ErrorIs(t, a.Execute([]string{"-encryptPassword", "pw"}), boom)

	a, out = newTestApp(&fakeFactory{def: &fakeStore{exists: true}}, &fakeProvider{svc: fakeService{err: boom}})
	assert.ErrorIs(t, a.Execute([]string{"-encryptPassword", "pw"}), boom)
	assert.Empty(t, out.String())
}

func TestExecute_Decrypt(t *testing.T) {
	a, out := newTestApp(&fakeFactory{def: &fakeStore{exists: true}}, &fakeProvider{})
	require.NoError(t, a.Execute([]string{"-decryptPassword", "ENC(xsecret)"}))
	assert.Equal(t, "Decrypted Password:\nsecret\n", out.String())

	store := &fakeStore{path: "/ks"}
	a, out = newTestApp(&fakeFactory{def: store}, &fakeProvider{})
	err := a.Execute([]string{"-decryptPassword", "ENC(xsecret)"})
	assert.ErrorIs(t, err, keystore.ErrNotFound)
	assert.Empty(t, out.String())
	assert.False(t, store.exists)
}

func TestExecute_DashIsALiteralPassword(t *testing.T) {
	var buf bytes.Buffer
	a := New(&fakeFactory{def: &fakeStore{exists: true}}, &fakeProvider{},
		WithOutput(&buf), WithInput(strings.NewReader(""), &bytes.Buffer{}))

	require.NoError(t, a.Execute([]string{"-encryptPassword", "-"}))
	assert.Equal(t, "Encrypted Password:\nENC(x-)\n", buf.String())
}

func TestExecute_PasswordFromInput(t *testing.T) {
	var buf bytes.Buffer
	a := New(&fakeFactory{def: &fakeStore{exists: true}}, &fakeProvider{},
		WithOutput(&buf), WithInput(strings.NewReader("hunter2\r\nignored\n"), &bytes.Buffer{}))

	require.NoError(t, a.Execute([]string{"-ENCRYPTPASSWORDSTDIN"}))
	assert.Equal(t, "Encrypted Password:\nENC(xhunter2)\n", buf.String())

	for _, in := range []string{"", "\n", "\r\n"} {
		buf.Reset()
		store := &fakeStore{path: "/ks"}
		a = New(&fakeFactory{def: store}, &fakeProvider{},
			WithOutput(&buf), WithInput(strings.NewReader(in), &bytes.Buffer{}))
		assert.ErrorIs(t, a.Execute([]string{"-encryptPasswordStdin"}), ErrMissingArgument, "input %q", in)
		assert.Empty(t, buf.String())
		assert.Equal(t, 0, store.inits)
	}
}

func TestSetOutputAndReset(t *testing.T) {
	a := New(&fakeFactory{def: &fakeStore{}}, &fakeProvider{})
	var buf bytes.Buffer
	a.SetOutput(&buf)
	require.NoError(t, a.Execute(nil))
	assert.Equal(t, wantUsage, buf.String())

	// Capture the process stdout to check ResetOutput really points back at it.
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	a.ResetOutput()
	buf.Reset()
	require.NoError(t, a.Execute(nil))
	os.Stdout = stdout
	require.NoError(t, w.Close())

	captured, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
	assert.Equal(t, wantUsage, string(captured))
}

func TestExecute_RealKeystore(t *testing.T) {
	root := t.TempDir()
	f := keystore.NewFileFactory(root, "")
	var out bytes.Buffer
	a := New(f, crypto.NewKeystoreProvider(f), WithOutput(&out))

	require.NoError(t, a.Execute([]string{"-encryptPassword", "secret"}))
	path := filepath.Join(root, keystore.DefaultFileName)
	m := regexp.MustCompile(`^KeyStore created: (.+)\nEncrypted Password:\n(ENC\(.+\))\n$`).FindStringSubmatch(out.String())
	require.Len(t, m, 3, out.String())
	assert.Equal(t, path, m[1])

	out.Reset()
	require.NoError(t, a.Execute([]string{"-decryptPassword", m[2]}))
	assert.Equal(t, "Decrypted Password:\nsecret\n", out.String())

	other := filepath.Join(root, "custom")
	out.Reset()
	require.NoError(t, a.Execute([]string{"-createKeyStore", other}))
	assert.Equal(t, "KeyStore created: "+filepath.Join(other, keystore.DefaultFileName)+"\n", out.String())
	out.Reset()
	require.NoError(t, a.Execute([]string{"-createKeyStore", other}))
	assert.True(t, strings.HasPrefix(out.String(), "KeyStore already exists: "+filepath.Join(other, keystore.DefaultFileName)))
}
