// Package authservertest provides an in-memory authorization server for tests.
package authservertest

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/quorum-wallet/api/clients"
)

type account struct {
	password string
	secret   string
	hasSet   bool
	tokens   map[string]struct{}
}

// Server mimics the authorization server protocol.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	down     bool
	block    chan struct{}
}

// NewServer starts a fake authorization server. It is closed on test cleanup
// by the caller.
func NewServer() *Server {
	s := &Server{accounts: make(map[string]*account)}

	r := chi.NewRouter()
	r.Use(s.gate)
	r.Post(clients.AuthExistsPath, s.handleExists)
	r.Post(clients.AuthRegisterPath, s.handleRegister)
	r.Post(clients.AuthLoginPath, s.handleLogin)
	r.Post(clients.AuthLogoutPath, s.withSession(s.handleLogout))
	r.Post(clients.AuthSecretExistsPath, s.withSession(s.handleSecretExists))
	r.Post(clients.AuthSecretGetPath, s.withSession(s.handleSecretGet))
	r.Post(clients.AuthSecretOverwritePath, s.withSession(s.handleSecretOverwrite))

	s.Server = httptest.NewServer(r)
	return s
}

// SetDown makes every request fail with 503.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Block holds every request until the returned func is called.
func (s *Server) Block() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.block = nil
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Secret returns the stored secret of a wallet.
func (s *Server) Secret(walletUUID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.accounts[walletUUID]
	if !found || !acc.hasSet {
		return "", false
	}
	return acc.secret, true
}

func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		down, block := s.down, s.block
		s.mu.Unlock()

		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		if down {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, *account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		acc, found := s.accounts[r.FormValue(clients.FieldWalletUUID)]
		if !found {
			http.Error(w, "unknown wallet", http.StatusNotFound)
			return
		}
		if _, valid := acc.tokens[r.FormValue(clients.FieldToken)]; !valid {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		next(w, r, acc)
	}
}

func (s *Server) handleExists(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.accounts[r.FormValue(clients.FieldWalletUUID)]; !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.FormValue(clients.FieldWalletUUID)
	if _, found := s.accounts[id]; found {
		http.Error(w, "already registered", http.StatusConflict)
		return
	}
	s.accounts[id] = &account{
		password: r.FormValue(clients.FieldPassword),
		tokens:   make(map[string]struct{}),
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.accounts[r.FormValue(clients.FieldWalletUUID)]
	if !found {
		http.Error(w, "unknown wallet", http.StatusNotFound)
		return
	}
	if acc.password != r.FormValue(clients.FieldPassword) {
		http.Error(w, "wrong password", http.StatusUnauthorized)
		return
	}

	raw := make([]byte, 16)
	rand.Read(raw)
	token := hex.EncodeToString(raw)
	acc.tokens[token] = struct{}{}
	w.Write([]byte(token))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, acc *account) {
	delete(acc.tokens, r.FormValue(clients.FieldToken))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSecretExists(w http.ResponseWriter, r *http.Request, acc *account) {
	if !acc.hasSet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSecretGet(w http.ResponseWriter, r *http.Request, acc *account) {
	if !acc.hasSet {
		http.Error(w, "no secret", http.StatusNotFound)
		return
	}
	w.Write([]byte(acc.secret))
}

func (s *Server) handleSecretOverwrite(w http.ResponseWriter, r *http.Request, acc *account) {
	acc.secret = r.FormValue(clients.FieldSecret)
	acc.hasSet = true
	w.WriteHeader(http.StatusOK)
}
