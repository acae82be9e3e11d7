package modules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruteri/quorum-wallet/api/clients/authservertest"
	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/require"
)

func newServerModule(t *testing.T, address string, device Device) *ServerModule {
	t.Helper()
	cfg := configFor("server", TypeServer, 1)
	cfg.Address = address
	cfg.Timeout = 5 * time.Second
	return NewServerModule("server", cfg, device, testOptions())
}

func waitStatus(t *testing.T, m interfaces.Module, status interfaces.ModuleStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State().Status == status
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerEnrollAndAuthorize(t *testing.T) {
	server := authservertest.NewServer()
	defer server.Close()

	device := testDevice()
	share := testShare(2)
	m := newServerModule(t, server.URL, device)

	enrollment, err := m.Enroll(context.Background(), map[string]string{ServerPasswordInput: "correct horse"}, share)
	require.NoError(t, err)
	_, stored := server.Secret(device.WalletUUID.String())
	require.True(t, stored)
	require.NoError(t, m.Load(enrollment.Part))

	resp := m.Advance(context.Background(), map[string]string{ServerPasswordInput: "correct horse"})
	require.Equal(t, interfaces.ResponseOK, resp.Status)

	waitStatus(t, m, interfaces.ModuleAuthorized)
	got, found := m.ShareIfAuthorized()
	require.True(t, found)
	require.Equal(t, share, got)
}

func TestServerWrongPassword(t *testing.T) {
	server := authservertest.NewServer()
	defer server.Close()

	device := testDevice()
	m := newServerModule(t, server.URL, device)
	enrollment, err := m.Enroll(context.Background(), map[string]string{ServerPasswordInput: "right"}, testShare(1))
	require.NoError(t, err)
	require.NoError(t, m.Load(enrollment.Part))

	m.Advance(context.Background(), map[string]string{ServerPasswordInput: "wrong"})
	waitStatus(t, m, interfaces.ModuleFailed)
	require.Equal(t, "wrong password", m.State().Message)
}

func TestServerReenrollOverwritesSecret(t *testing.T) {
	server := authservertest.NewServer()
	defer server.Close()

	device := testDevice()
	m := newServerModule(t, server.URL, device)
	ctx := context.Background()
	input := map[string]string{ServerPasswordInput: "pw"}

	old, err := m.Enroll(ctx, input, testShare(1))
	require.NoError(t, err)
	oldSecret, _ := server.Secret(device.WalletUUID.String())

	_, err = m.Enroll(ctx, input, testShare(1))
	require.NoError(t, err)
	newSecret, _ := server.Secret(device.WalletUUID.String())
	require.NotEqual(t, oldSecret, newSecret)

	// The key part sealed under the old secret no longer opens.
	require.NoError(t, m.Load(old.Part))
	m.Advance(ctx, input)
	waitStatus(t, m, interfaces.ModuleFailed)
	require.Equal(t, "key part unreadable", m.State().Message)
}

func TestServerUnavailable(t *testing.T) {
	server := authservertest.NewServer()
	defer server.Close()

	m := newServerModule(t, server.URL, testDevice())
	enrollment, err := m.Enroll(context.Background(), map[string]string{ServerPasswordInput: "pw"}, testShare(1))
	require.NoError(t, err)
	require.NoError(t, m.Load(enrollment.Part))

	server.SetDown(true)
	m.Advance(context.Background(), map[string]string{ServerPasswordInput: "pw"})
	waitStatus(t, m, interfaces.ModuleFailed)
	require.Equal(t, "authorization server unreachable", m.State().Message)
}

func TestServerNotRegistered(t *testing.T) {
	server := authservertest.NewServer()
	defer server.Close()

	m := newServerModule(t, server.URL, testDevice())
	require.NoError(t, m.Load(interfaces.KeyPart{Module: "server", Index: 1, Payload: []byte("sealed")}))

	m.Advance(context.Background(), map[string]string{ServerPasswordInput: "pw"})
	waitStatus(t, m, interfaces.ModuleFailed)
	require.Equal(t, errNotRegistered.Error(), m.State().Message)
}

func TestServerResetCancelsRequest(t *testing.T) {
	server := authservertest.NewServer()
	defer server.Close()

	m := newServerModule(t, server.URL, testDevice())
	enrollment, err := m.Enroll(context.Background(), map[string]string{ServerPasswordInput: "pw"}, testShare(1))
	require.NoError(t, err)
	require.NoError(t, m.Load(enrollment.Part))

	release := server.Block()
	defer release()

	m.Advance(context.Background(), map[string]string{ServerPasswordInput: "pw"})
	require.Equal(t, interfaces.ModuleWaiting, m.State().Status)
	m.Reset()
	release()

	require.Never(t, func() bool {
		return m.State().Status != interfaces.ModuleReady
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestServerMissingPassword(t *testing.T) {
	m := newServerModule(t, "http://127.0.0.1:1", testDevice())
	require.NoError(t, m.Load(interfaces.KeyPart{Module: "server", Index: 1, Payload: []byte("sealed")}))

	resp := m.Advance(context.Background(), map[string]string{})
	require.Equal(t, interfaces.ResponseFailed, resp.Status)
	require.Equal(t, interfaces.ModuleReady, m.State().Status)
}

type staticResolver struct {
	addr string
	err  error
	got  string
}

func (r *staticResolver) Resolve(ctx context.Context, name string) (string, error) {
	r.got = name
	return r.addr, r.err
}

func TestServerSRVResolution(t *testing.T) {
	cfg := configFor("server", TypeServer, 0)
	cfg.SRV = "_auth._tcp.example.com"
	cfg.Timeout = time.Second
	opts := testOptions()
	resolver := &staticResolver{err: errors.New("no such host")}
	opts.Resolver = resolver

	m := NewServerModule("server", cfg, testDevice(), opts)
	require.NoError(t, m.Load(interfaces.KeyPart{Module: "server", Index: 1, Payload: []byte("sealed")}))

	m.Advance(context.Background(), map[string]string{ServerPasswordInput: "pw"})
	waitStatus(t, m, interfaces.ModuleFailed)
	require.True(t, m.State().PermanentlyFailed())
	require.Equal(t, "_auth._tcp.example.com", resolver.got)
}
