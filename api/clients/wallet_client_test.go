package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/quorum-wallet/api"
	"github.com/ruteri/quorum-wallet/api/clients"
	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// fakeDaemon answers the wallet API with canned state.
func fakeDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}
	status := atomic.NewString("ENCRYPTED")

	mux := chi.NewRouter()
	mux.Get("/api/modules", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []interfaces.Descriptor{{ID: "pin", Name: "PIN"}, {ID: "button", Name: "Button"}})
	})
	mux.Get("/api/moduleState/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "pin" {
			http.Error(w, "unknown module", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, api.ModuleStateResponse{State: "READY", RetriesLeft: 3})
	})
	mux.Post("/api/nextStep/{id}", func(w http.ResponseWriter, r *http.Request) {
		var input map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		if input["pin"] == "1234" {
			writeJSON(w, http.StatusOK, api.NextStepResponse{Status: api.StatusOK})
			return
		}
		writeJSON(w, http.StatusOK, api.NextStepResponse{Status: api.StatusFailed, NextPrompt: "wrong PIN"})
	})
	mux.Post("/api/unlock", func(w http.ResponseWriter, r *http.Request) {
		var req api.UnlockRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Modules) < 2 {
			writeJSON(w, http.StatusBadRequest, api.StatusResponse{Status: api.StatusFailed, Reason: "threshold unsatisfiable"})
			return
		}
		status.Store("DECRYPTED")
		writeJSON(w, http.StatusOK, api.StatusResponse{Status: api.StatusOK})
	})
	mux.Post("/api/restore", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.RestoreResponse{
			Status:     api.StatusOK,
			Address:    "0x00000000000000000000000000000000000000aa",
			Enrollment: map[interfaces.ModuleID]map[string]string{"totp": {"url": "otpauth://totp/x"}},
		})
	})
	mux.Get("/api/walletStatus", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.WalletStatusResponse{Status: status.Load()})
	})
	mux.Post("/api/lockWallet", func(w http.ResponseWriter, r *http.Request) {
		status.Store("ENCRYPTED")
		writeJSON(w, http.StatusOK, api.LockResponse{Success: true})
	})
	mux.Post("/api/tap", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Get("/api/events/{topic}", func(w http.ResponseWriter, r *http.Request) {
		topic := interfaces.Topic(chi.URLParam(r, "topic"))
		if topic != interfaces.TopicAutolock {
			http.Error(w, "unknown topic", http.StatusNotFound)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		for _, msg := range []string{"3", "2", "1"} {
			data, _ := json.Marshal(interfaces.Event{Topic: topic, Message: msg, At: time.Now()})
			if err := conn.Write(r.Context(), websocket.MessageText, data); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWalletClient(t *testing.T) {
	srv := fakeDaemon(t)
	client := clients.NewWalletClient(srv.URL+"/", nil)
	ctx := context.Background()

	descriptors, err := client.Modules(ctx)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	require.Equal(t, interfaces.ModuleID("pin"), descriptors[0].ID)

	state, err := client.ModuleState(ctx, "pin")
	require.NoError(t, err)
	require.Equal(t, "READY", state.State)
	require.Equal(t, 3, state.RetriesLeft)

	_, err = client.ModuleState(ctx, "retina")
	var reqErr *clients.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	require.Equal(t, "unknown module", reqErr.Error())

	step, err := client.NextStep(ctx, "pin", map[string]string{"pin": "0000"})
	require.NoError(t, err)
	require.Equal(t, api.StatusFailed, step.Status)
	require.Equal(t, "wrong PIN", step.NextPrompt)

	err = client.Unlock(ctx, api.UnlockRequest{Modules: map[interfaces.ModuleID]map[string]string{"pin": {"pin": "1234"}}})
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	require.Equal(t, "threshold unsatisfiable", reqErr.Error())

	require.NoError(t, client.Unlock(ctx, api.UnlockRequest{Modules: map[interfaces.ModuleID]map[string]string{
		"pin":    {"pin": "1234"},
		"button": {},
	}}))
	status, err := client.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "DECRYPTED", status.Status)

	require.NoError(t, client.Tap(ctx))
	require.NoError(t, client.Lock(ctx))
	status, err = client.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "ENCRYPTED", status.Status)

	restored, err := client.Restore(ctx, api.RestoreRequest{MnemonicWords: []string{"abandon"}, Required: 2})
	require.NoError(t, err)
	require.Equal(t, "otpauth://totp/x", restored.Enrollment["totp"]["url"])
}

func TestWalletClientEvents(t *testing.T) {
	srv := fakeDaemon(t)
	client := clients.NewWalletClient(srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := client.Events(ctx, interfaces.TopicAutolock)
	require.NoError(t, err)

	var messages []string
	for event := range events {
		require.Equal(t, interfaces.TopicAutolock, event.Topic)
		messages = append(messages, event.Message)
	}
	require.Equal(t, []string{"3", "2", "1"}, messages)

	_, err = client.Events(ctx, "weather")
	var reqErr *clients.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusNotFound, reqErr.StatusCode)
}
