package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
)

// PostgresDialer opens single connections for the monitor loop. A pool is
// deliberately not used: the supervisor owns an explicit connect/reconnect
// lifecycle and one connection is all the sequential loop ever needs.
type PostgresDialer struct {
	DSN    string
	Query  string
	Logger zerolog.Logger
}

// Dial connects to PostgreSQL.
func (d *PostgresDialer) Dial(ctx context.Context) (Conn, error) {
	if d.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	conn, err := pgx.Connect(ctx, d.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Postgres{
		conn:   conn,
		query:  d.Query,
		logger: d.Logger.With().Str("component", "pg_source").Logger(),
	}, nil
}

// Postgres fetches the latest reading over a single pgx connection.
type Postgres struct {
	conn   *pgx.Conn
	query  string
	logger zerolog.Logger
}

// FetchLatest runs the configured query and normalises its first row into a
// Reading. Any error other than an empty result is connection-class and the
// caller is expected to discard the connection.
func (p *Postgres) FetchLatest(ctx context.Context) (Reading, error) {
	rows, err := p.conn.Query(ctx, p.query)
	if err != nil {
		return Reading{}, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Reading{}, fmt.Errorf("read query result: %w", err)
		}
		return Reading{}, ErrNoData
	}

	fields := rows.FieldDescriptions()
	values, err := rows.Values()
	if err != nil {
		return Reading{}, fmt.Errorf("decode row: %w", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Reading{}, fmt.Errorf("read query result: %w", err)
	}

	return normalizeRow(fields, values)
}

// Close releases the connection.
func (p *Postgres) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

// normalizeRow maps a result row of any supported shape onto a Reading. The
// value is taken from the first column when it is numeric, otherwise from a
// column named "temperature" or "value"; the timestamp from the second
// column when it is a time, otherwise from "reading_ts" or "timestamp".
// A row without a usable numeric value is an error; a missing timestamp is
// not.
func normalizeRow(fields []pgconn.FieldDescription, values []any) (Reading, error) {
	if len(values) == 0 {
		return Reading{}, fmt.Errorf("query returned a row with no columns")
	}

	value, ok := asFloat(values[0])
	if !ok {
		value, ok = floatByName(fields, values, "temperature", "value")
	}
	if !ok {
		return Reading{}, fmt.Errorf("no numeric value column in result row")
	}

	reading := Reading{Value: value}

	if len(values) > 1 {
		if ts, ok := asTime(values[1]); ok {
			reading.Timestamp = &ts
			return reading, nil
		}
	}
	if ts, ok := timeByName(fields, values, "reading_ts", "timestamp"); ok {
		reading.Timestamp = &ts
	}

	return reading, nil
}

func floatByName(fields []pgconn.FieldDescription, values []any, names ...string) (float64, bool) {
	for _, name := range names {
		for i, fd := range fields {
			if fd.Name == name && i < len(values) {
				if v, ok := asFloat(values[i]); ok {
					return v, true
				}
			}
		}
	}
	return 0, false
}

func timeByName(fields []pgconn.FieldDescription, values []any, names ...string) (time.Time, bool) {
	for _, name := range names {
		for i, fd := range fields {
			if fd.Name == name && i < len(values) {
				if ts, ok := asTime(values[i]); ok {
					return ts, true
				}
			}
		}
	}
	return time.Time{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int16:
		return float64(n), true
	case pgtype.Numeric:
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return f.Float64, true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	ts, ok := v.(time.Time)
	return ts, ok
}

var _ Conn = (*Postgres)(nil)
var _ Dialer = (*PostgresDialer)(nil)
