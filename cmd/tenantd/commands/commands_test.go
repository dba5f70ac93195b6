package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tenantcache/config"
	"github.com/unkn0wn-root/tenantcache/tenant"
)

func newTestCLI(t *testing.T) (*CLI, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenants:
  - id: 11111111-1111-1111-1111-111111111111
    name: Acme
    slug: acme
    domain: acme.example
`), 0o600))

	c := New()
	c.load = func() (config.Config, error) {
		return config.Config{
			Tenant: config.Tenant{Enabled: true, Resolution: tenant.ModeHeader, HeaderName: tenant.DefaultHeaderName},
			Cache: config.Cache{
				Driver:           config.DriverMemory,
				TTL:              time.Minute,
				Capacity:         10,
				NegativeTTL:      time.Second,
				NegativeCapacity: 10,
				Codec:            tenant.CodecJSON,
				KeyPrefix:        "tenant",
			},
			Store: config.Store{Backend: config.StoreYAML, File: path},
			Log:   config.Log{Backend: "zap", Level: "error"},
		}, nil
	}

	out := &bytes.Buffer{}
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(out)
	return c, out
}

func TestResolvePrintsTenant(t *testing.T) {
	for _, args := range [][]string{
		{"resolve", "--slug", "acme"},
		{"resolve", "--host", "ACME.example:443"},
		{"resolve", "--id", "11111111-1111-1111-1111-111111111111"},
		{"resolve", "--identifier", "acme"},
	} {
		c, out := newTestCLI(t)
		c.SetArgs(args)
		require.NoError(t, c.Execute(context.Background()), args)
		assert.Contains(t, out.String(), `"slug": "acme"`, args)
	}
}

func TestResolveNotFound(t *testing.T) {
	c, _ := newTestCLI(t)
	c.SetArgs([]string{"resolve", "--slug", "ghost"})
	require.ErrorIs(t, c.Execute(context.Background()), tenant.ErrNotFound)
}

func TestResolveFlagValidation(t *testing.T) {
	for name, args := range map[string][]string{
		"none":   {"resolve"},
		"two":    {"resolve", "--slug", "acme", "--host", "acme.example"},
		"bad id": {"resolve", "--id", "nope"},
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestCLI(t)
			c.SetArgs(args)
			require.Error(t, c.Execute(context.Background()))
		})
	}
}

type failingCloser struct{ err error }

func (f failingCloser) Close(context.Context) error { return f.err }

func TestCloseJoinedKeepsBothErrors(t *testing.T) {
	closeErr := errors.New("pool close")

	err := tenant.ErrNotFound
	closeJoined(context.Background(), failingCloser{err: closeErr}, &err)
	require.ErrorIs(t, err, tenant.ErrNotFound)
	require.ErrorIs(t, err, closeErr)

	err = nil
	closeJoined(context.Background(), failingCloser{}, &err)
	require.NoError(t, err)
}
