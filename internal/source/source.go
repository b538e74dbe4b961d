package source

import (
	"context"
	"errors"
	"time"
)

// ErrNoData reports that the query returned no rows. The poll loop treats it
// as "nothing new this cycle", not as a connection failure.
var ErrNoData = errors.New("source returned no rows")

// Reading is the latest sampled observation.
type Reading struct {
	Value     float64
	Timestamp *time.Time
}

// Conn is an established reading-source connection.
type Conn interface {
	FetchLatest(ctx context.Context) (Reading, error)
	Close(ctx context.Context) error
}

// Dialer establishes connections. The supervisor dials through this interface
// so the connect/backoff lifecycle can be exercised against fakes.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
