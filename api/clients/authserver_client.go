package clients

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Authorization server endpoints, relative to the server address.
const (
	AuthExistsPath          = "/authorization/exists"
	AuthRegisterPath        = "/authorization/register"
	AuthLoginPath           = "/authorization/login"
	AuthLogoutPath          = "/authorization/logout"
	AuthSecretExistsPath    = "/authorization/secret/exists"
	AuthSecretGetPath       = "/authorization/secret/get"
	AuthSecretOverwritePath = "/authorization/secret/overwrite"
)

// Form fields understood by the authorization server.
const (
	FieldWalletUUID    = "walletUUID"
	FieldPassword      = "password"
	FieldToken         = "token"
	FieldSecret        = "secret"
	FieldSessionLength = "sessionLength"
)

// RequestError is returned for non-success HTTP status codes.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

// Credentials identify the wallet to the authorization server.
type Credentials struct {
	WalletUUID string
	Password   string
}

func (c Credentials) encodedPassword() string {
	return base64.URLEncoding.EncodeToString([]byte(c.Password))
}

// AuthServerClient talks to the remote authorization server that holds the
// secret protecting the server factor's key part.
type AuthServerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAuthServerClient creates a client for the server at baseURL.
// If httpClient is nil a client with a 30 second timeout is used.
func NewAuthServerClient(baseURL string, httpClient *http.Client) *AuthServerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AuthServerClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *AuthServerClient) post(ctx context.Context, path string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func statusError(path string, code int) error {
	return &RequestError{StatusCode: code, Err: fmt.Errorf("%s failed with code %d", path, code)}
}

// exists interprets 200 as true and 404 as false.
func (c *AuthServerClient) exists(ctx context.Context, path string, form url.Values) (bool, error) {
	code, _, err := c.post(ctx, path, form)
	if err != nil {
		return false, err
	}
	switch code {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(path, code)
	}
}

// IsRegistered reports whether the wallet has an account on the server.
func (c *AuthServerClient) IsRegistered(ctx context.Context, creds Credentials) (bool, error) {
	return c.exists(ctx, AuthExistsPath, url.Values{FieldWalletUUID: {creds.WalletUUID}})
}

// Register creates the wallet account.
func (c *AuthServerClient) Register(ctx context.Context, creds Credentials) error {
	code, _, err := c.post(ctx, AuthRegisterPath, url.Values{
		FieldWalletUUID: {creds.WalletUUID},
		FieldPassword:   {creds.encodedPassword()},
	})
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(AuthRegisterPath, code)
	}
	return nil
}

// Login returns a session token valid for sessionLength seconds.
func (c *AuthServerClient) Login(ctx context.Context, creds Credentials, sessionLength int) (string, error) {
	code, body, err := c.post(ctx, AuthLoginPath, url.Values{
		FieldWalletUUID:    {creds.WalletUUID},
		FieldPassword:      {creds.encodedPassword()},
		FieldSessionLength: {strconv.Itoa(sessionLength)},
	})
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", statusError(AuthLoginPath, code)
	}
	return strings.TrimSpace(string(body)), nil
}

// Logout invalidates token.
func (c *AuthServerClient) Logout(ctx context.Context, creds Credentials, token string) error {
	code, _, err := c.post(ctx, AuthLogoutPath, url.Values{
		FieldWalletUUID: {creds.WalletUUID},
		FieldToken:      {token},
	})
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(AuthLogoutPath, code)
	}
	return nil
}

// SecretIsSet reports whether a secret is stored for the wallet.
func (c *AuthServerClient) SecretIsSet(ctx context.Context, creds Credentials, token string) (bool, error) {
	return c.exists(ctx, AuthSecretExistsPath, url.Values{
		FieldWalletUUID: {creds.WalletUUID},
		FieldToken:      {token},
	})
}

// OverwriteSecret replaces the stored secret.
func (c *AuthServerClient) OverwriteSecret(ctx context.Context, creds Credentials, token, secret string) error {
	code, _, err := c.post(ctx, AuthSecretOverwritePath, url.Values{
		FieldWalletUUID: {creds.WalletUUID},
		FieldToken:      {token},
		FieldSecret:     {secret},
	})
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(AuthSecretOverwritePath, code)
	}
	return nil
}

// GetSecret fetches the stored secret.
func (c *AuthServerClient) GetSecret(ctx context.Context, creds Credentials, token string) (string, error) {
	code, body, err := c.post(ctx, AuthSecretGetPath, url.Values{
		FieldWalletUUID: {creds.WalletUUID},
		FieldToken:      {token},
	})
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", statusError(AuthSecretGetPath, code)
	}
	return strings.TrimSpace(string(body)), nil
}
