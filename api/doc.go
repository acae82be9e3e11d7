// Package api holds the wire types of the wallet HTTP API and the server
// configuration shared by the daemon and its clients.
//
// Endpoints:
//
//	GET  /api/modules              module descriptors
//	GET  /api/moduleState/{id}     ModuleStateResponse
//	POST /api/nextStep/{id}        one module step, NextStepResponse
//	POST /api/unlock               UnlockRequest, StatusResponse
//	POST /api/restore              RestoreRequest, RestoreResponse
//	GET  /api/walletStatus         WalletStatusResponse
//	POST /api/lockWallet           LockResponse
//	POST /api/tap                  204, restarts the auto-lock countdown
//	GET  /api/events/{topic}       websocket stream of interfaces.Event
//
// The clients subpackage contains the Go client for this API and for the
// remote authorization server used by the server factor.
package api
