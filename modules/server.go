package modules

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/quorum-wallet/api/clients"
	"github.com/ruteri/quorum-wallet/cryptoutils"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// ServerPasswordInput is the input field carrying the account password.
const ServerPasswordInput = "password"

const serverSecretSize = 32

var (
	errNotRegistered = errors.New("wallet is not registered on the authorization server")
	errNoSecret      = errors.New("authorization server holds no secret for this wallet")
)

// ServerModule authorizes by fetching a secret from a remote authorization
// server. The round trip runs in the background; Advance returns at once.
type ServerModule struct {
	*machine

	id            interfaces.ModuleID
	name          string
	address       string
	srv           string
	sessionLength int
	timeout       time.Duration
	device        Device
	scrypt        cryptoutils.ScryptParams
	httpClient    *http.Client
	resolver      Resolver
	log           *slog.Logger
}

// NewServerModule creates a remote authorization server factor.
func NewServerModule(id interfaces.ModuleID, cfg Config, device Device, opts Options) *ServerModule {
	return &ServerModule{
		machine:       newMachine(cfg.retries()),
		id:            id,
		name:          cfg.displayName("Authorization Server"),
		address:       cfg.Address,
		srv:           cfg.SRV,
		sessionLength: cfg.SessionLength,
		timeout:       cfg.Timeout,
		device:        device,
		scrypt:        opts.Scrypt,
		httpClient:    opts.HTTPClient,
		resolver:      opts.Resolver,
		log:           opts.Log.With("module", id),
	}
}

func (s *ServerModule) ID() interfaces.ModuleID { return s.id }

func (s *ServerModule) Describe() interfaces.Descriptor {
	return interfaces.Descriptor{
		ID:          s.id,
		Name:        s.name,
		Description: "Module that authenticates against a remote authorization server.",
		UI:          `<input type="password" name="password">`,
	}
}

func (s *ServerModule) client(ctx context.Context) (*clients.AuthServerClient, error) {
	if s.address != "" {
		return clients.NewAuthServerClient(s.address, s.httpClient), nil
	}
	addr, err := s.resolver.Resolve(ctx, s.srv)
	if err != nil {
		return nil, err
	}
	return clients.NewAuthServerClient("https://"+addr, s.httpClient), nil
}

func (s *ServerModule) credentials(password string) clients.Credentials {
	return clients.Credentials{WalletUUID: s.device.WalletUUID.String(), Password: password}
}

func (s *ServerModule) Advance(ctx context.Context, input map[string]string) interfaces.Response {
	password := input[ServerPasswordInput]
	if password == "" {
		return failed("enter password")
	}

	gen, err := s.begin("contacting authorization server")
	if err != nil {
		return s.refuse(err, "contacting authorization server")
	}

	watchCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.watch(gen, cancel)

	go func() {
		defer cancel()
		secret, err := s.fetchSecret(watchCtx, s.credentials(password))
		if err != nil {
			s.log.Warn("Authorization server rejected wallet", "err", err)
			s.fail(gen, failureMessage(err))
			return
		}

		share, err := s.unseal(secret)
		if err != nil {
			s.log.Error("Failed to open server key part", "err", err)
			s.fail(gen, "key part unreadable")
			return
		}
		if s.authorize(gen, share) {
			s.log.Info("Authorization server accepted wallet")
		}
	}()

	return ok("contacting authorization server")
}

func failureMessage(err error) string {
	var reqErr *clients.RequestError
	switch {
	case errors.As(err, &reqErr) && (reqErr.StatusCode == http.StatusUnauthorized || reqErr.StatusCode == http.StatusForbidden):
		return "wrong password"
	case errors.Is(err, errNotRegistered), errors.Is(err, errNoSecret):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "authorization server timed out"
	default:
		return "authorization server unreachable"
	}
}

func (s *ServerModule) fetchSecret(ctx context.Context, creds clients.Credentials) (string, error) {
	client, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	registered, err := client.IsRegistered(ctx, creds)
	if err != nil {
		return "", err
	}
	if !registered {
		return "", errNotRegistered
	}

	token, err := client.Login(ctx, creds, s.sessionLength)
	if err != nil {
		return "", err
	}
	defer s.logout(client, creds, token)

	set, err := client.SecretIsSet(ctx, creds, token)
	if err != nil {
		return "", err
	}
	if !set {
		return "", errNoSecret
	}
	return client.GetSecret(ctx, creds, token)
}

func (s *ServerModule) logout(client *clients.AuthServerClient, creds clients.Credentials, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Logout(ctx, creds, token); err != nil {
		s.log.Debug("Logout failed", "err", err)
	}
}

func (s *ServerModule) unseal(secret string) (interfaces.Share, error) {
	part, found := s.keyPart()
	if !found {
		return interfaces.Share{}, errNotProvisioned
	}
	passphrase, err := cryptoutils.FactorKey(s.device.Key, "server", []byte(secret))
	if err != nil {
		return interfaces.Share{}, err
	}
	return openShare(passphrase, part.Payload)
}

// Enroll registers the wallet if needed, stores a fresh secret on the server
// and seals share under it. Any previously stored secret is overwritten.
func (s *ServerModule) Enroll(ctx context.Context, input map[string]string, share interfaces.Share) (*interfaces.Enrollment, error) {
	password := input[ServerPasswordInput]
	if password == "" {
		return nil, errors.New("password is required")
	}
	creds := s.credentials(password)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	registered, err := client.IsRegistered(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !registered {
		if err := client.Register(ctx, creds); err != nil {
			return nil, err
		}
		s.log.Info("Registered wallet on authorization server")
	}

	token, err := client.Login(ctx, creds, s.sessionLength)
	if err != nil {
		return nil, err
	}
	defer s.logout(client, creds, token)

	raw := make([]byte, serverSecretSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate server secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)
	cryptoutils.Wipe(raw)

	if err := client.OverwriteSecret(ctx, creds, token, secret); err != nil {
		return nil, err
	}

	passphrase, err := cryptoutils.FactorKey(s.device.Key, "server", []byte(secret))
	if err != nil {
		return nil, err
	}
	payload, err := sealShare(passphrase, share, s.scrypt)
	if err != nil {
		return nil, err
	}
	return &interfaces.Enrollment{
		Part: interfaces.KeyPart{Module: s.id, Index: share.Index, Payload: payload},
	}, nil
}
