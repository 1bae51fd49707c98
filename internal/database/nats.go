package database

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// ConnectNATS establishes a connection to the NATS server at the given
// address. An empty address is allowed and returns a nil connection: the
// realtime fanout treats NATS as an optional leg.
func ConnectNATS(addr string) (*nats.Conn, error) {
	if addr == "" {
		return nil, nil
	}

	conn, err := nats.Connect(addr,
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return conn, nil
}
