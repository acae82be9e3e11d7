package serviceresolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func startDNS(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go server.ActivateAndServe()
	t.Cleanup(func() { server.Shutdown() })

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func srvHandler(records map[string][]*dns.SRV) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		answers, found := records[req.Question[0].Name]
		if !found {
			m.Rcode = dns.RcodeNameError
		}
		for _, srv := range answers {
			rr := *srv
			rr.Hdr = dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 60}
			m.Answer = append(m.Answer, &rr)
		}
		w.WriteMsg(m)
	}
}

func TestLookupSRV(t *testing.T) {
	addr := startDNS(t, srvHandler(map[string][]*dns.SRV{
		"_auth._tcp.example.com.": {
			{Priority: 20, Weight: 5, Port: 9000, Target: "backup.example.com."},
			{Priority: 10, Weight: 1, Port: 8081, Target: "low.example.com."},
			{Priority: 10, Weight: 50, Port: 8080, Target: "auth.example.com."},
		},
		"_empty._tcp.example.com.": {},
	}))
	r := New(addr)
	ctx := context.Background()

	t.Run("ordered by priority and weight", func(t *testing.T) {
		targets, err := r.LookupSRV(ctx, "_auth._tcp.example.com")
		require.NoError(t, err)
		require.Len(t, targets, 3)
		require.Equal(t, "auth.example.com.", targets[0].Host)
		require.Equal(t, "low.example.com.", targets[1].Host)
		require.Equal(t, "backup.example.com.", targets[2].Host)
	})

	t.Run("resolve address", func(t *testing.T) {
		address, err := r.ResolveAddress(ctx, "_auth._tcp.example.com.")
		require.NoError(t, err)
		require.Equal(t, "auth.example.com:8080", address)
	})

	t.Run("no records", func(t *testing.T) {
		_, err := r.LookupSRV(ctx, "_empty._tcp.example.com")
		require.ErrorIs(t, err, ErrNoRecords)
	})

	t.Run("nxdomain", func(t *testing.T) {
		_, err := r.LookupSRV(ctx, "_missing._tcp.example.com")
		require.Error(t, err)
	})
}

func TestDefaultNameserver(t *testing.T) {
	require.Equal(t, DefaultNameserver, New("").Nameserver)
}
