/*
Package serviceresolver resolves DNS SRV records to service addresses.

It is used to locate the remote authorization server when a server factor
is configured with an SRV name instead of a fixed address.

	r := serviceresolver.New("")
	addr, err := r.ResolveAddress(ctx, "_auth._tcp.example.com")
*/
package serviceresolver
