/*
Package clients provides HTTP clients for the services the wallet talks to.

WalletClient drives the wallet daemon API: listing modules, stepping them,
running unlock attempts, restoring from a mnemonic backup and following the
event streams over websockets. It backs the walletctl command.

AuthServerClient speaks the form-encoded protocol of the remote
authorization server that guards the server factor's key part. The
authservertest package provides an in-memory implementation for tests.

Non-success responses are returned as *RequestError carrying the status code.

# Example Usage

	client := clients.NewWalletClient("http://127.0.0.1:8080", nil)
	err := client.Unlock(ctx, api.UnlockRequest{Modules: inputs})
*/
package clients
