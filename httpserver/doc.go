/*
Package httpserver exposes the wallet over HTTP.

The API lets a local client list the configured authentication modules,
step them individually, run unlock attempts across a quorum of them, restore
the wallet from a mnemonic backup, lock it, and follow progress through
websocket event streams. Route and body formats are documented in package api.

Domain errors map to status codes as follows:

  - 409 an attempt is already running, or the wallet was locked mid-unlock
  - 400 unsatisfiable threshold, invalid mnemonic or malformed body
  - 404 unknown module or topic
  - 412 the wallet has not been provisioned
  - 401 the quorum became unreachable
  - 408 the attempt timed out or the request was cancelled
  - 500 reconstruction integrity failures and storage errors

Health endpoints (/livez, /readyz, /drain, /undrain) and the optional pprof
mount follow the usual service layout. Metrics are served on a separate
listener.
*/
package httpserver
