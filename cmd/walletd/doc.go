// Command walletd runs the quorum wallet daemon.
//
// The daemon loads its configuration (see package config), opens the local
// device state, instantiates the configured authentication modules and serves
// the wallet API. Unlocking requires a threshold of modules to authorize; the
// wallet locks itself again after a period of inactivity.
//
//	walletd --config /etc/quorum-wallet/walletd.yaml --log-json
package main
