package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// SubjectPrefix is prepended to the topic name for mirrored events.
const SubjectPrefix = "wallet.events."

// MessagePublisher is the subset of *nats.Conn used by the forwarder.
type MessagePublisher interface {
	Publish(subj string, data []byte) error
}

// NATSForwarder mirrors every bus topic to NATS subjects so observers outside
// the device process can follow the same streams.
type NATSForwarder struct {
	conn MessagePublisher
	bus  *Bus
	log  *slog.Logger
}

// NewNATSForwarder creates a forwarder over an established publisher.
func NewNATSForwarder(conn MessagePublisher, bus *Bus, log *slog.Logger) *NATSForwarder {
	return &NATSForwarder{conn: conn, bus: bus, log: log}
}

// ConnectNATS dials a NATS server with reconnect handling.
func ConnectNATS(url string, log *slog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("quorum-wallet"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("Disconnected from NATS", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Run forwards events until ctx is cancelled or the bus is closed.
func (f *NATSForwarder) Run(ctx context.Context) error {
	subs := make([]*Subscription, 0, len(interfaces.AllTopics))
	for _, topic := range interfaces.AllTopics {
		sub, err := f.bus.Subscribe(topic)
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			return err
		}
		subs = append(subs, sub)
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *Subscription) {
			defer wg.Done()
			f.forward(ctx, sub)
		}(sub)
	}

	<-ctx.Done()
	for _, sub := range subs {
		sub.Close()
	}
	wg.Wait()
	return nil
}

func (f *NATSForwarder) forward(ctx context.Context, sub *Subscription) {
	subject := SubjectPrefix + string(sub.Topic())
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				f.log.Error("Failed to encode event", "err", err)
				continue
			}
			if err := f.conn.Publish(subject, data); err != nil {
				f.log.Warn("Failed to forward event to NATS", "subject", subject, "err", err)
			}
		}
	}
}
