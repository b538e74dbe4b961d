package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tempwatcher/internal/config"
	"tempwatcher/internal/monitor"
	"tempwatcher/internal/source"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
	onNotify func()
}

func (f *fakeNotifier) Notify(ctx context.Context, message string) error {
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.mu.Unlock()
	if f.onNotify != nil {
		f.onNotify()
	}
	return f.err
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

// scriptedConn replays a fixed sequence of fetch results and then reports a
// connection failure.
type scriptedConn struct {
	mu      sync.Mutex
	results []fetchResult
	closed  bool
}

type fetchResult struct {
	reading source.Reading
	err     error
}

func (c *scriptedConn) FetchLatest(ctx context.Context) (source.Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return source.Reading{}, errors.New("connection lost")
	}
	next := c.results[0]
	c.results = c.results[1:]
	return next.reading, next.err
}

func (c *scriptedConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type scriptedDialer struct {
	mu    sync.Mutex
	conns []*scriptedConn
	errs  []error
	dials int
}

func (d *scriptedDialer) Dial(ctx context.Context) (source.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no more connections scripted")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Monitor: config.MonitorConfig{
			Threshold:        28.5,
			Hysteresis:       0.3,
			PollInterval:     time.Millisecond,
			ReconnectBackoff: time.Millisecond,
			SensorName:       "Server room",
		},
	}
}

func value(v float64) fetchResult {
	return fetchResult{reading: source.Reading{Value: v}}
}

func TestProcessReadingSequence(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := New(testConfig(), nil, notifier, nil, zerolog.Nop())

	for _, v := range []float64{27.0, 29.0, 28.4, 28.1, 30.0} {
		svc.ProcessReading(context.Background(), source.Reading{Value: v})
	}

	sent := notifier.sent()
	if len(sent) != 3 {
		t.Fatalf("expected 3 notifications, got %d: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0], "ABOVE threshold: 29.00°C") {
		t.Fatalf("first message: %q", sent[0])
	}
	if !strings.Contains(sent[1], "RECOVERED: 28.10°C") {
		t.Fatalf("second message: %q", sent[1])
	}
	if !strings.Contains(sent[2], "ABOVE threshold: 30.00°C") {
		t.Fatalf("third message: %q", sent[2])
	}
	if svc.State().Phase != monitor.PhaseAbove {
		t.Fatalf("final phase %s, want ABOVE", svc.State().Phase)
	}
}

func TestFirstReadingNeverNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := New(testConfig(), nil, notifier, nil, zerolog.Nop())

	svc.ProcessReading(context.Background(), source.Reading{Value: 35.0})

	if got := notifier.sent(); len(got) != 0 {
		t.Fatalf("baseline reading must not notify: %v", got)
	}
	if svc.State().Phase != monitor.PhaseAbove {
		t.Fatalf("phase after first reading %s, want ABOVE", svc.State().Phase)
	}
}

func TestDeliveryFailureKeepsTransition(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("webhook down")}
	svc := New(testConfig(), nil, notifier, nil, zerolog.Nop())

	svc.ProcessReading(context.Background(), source.Reading{Value: 27.0})
	svc.ProcessReading(context.Background(), source.Reading{Value: 29.0})

	if svc.State().Phase != monitor.PhaseAbove {
		t.Fatalf("failed delivery must not roll back phase, got %s", svc.State().Phase)
	}
	if len(notifier.sent()) != 1 {
		t.Fatalf("expected one delivery attempt, got %d", len(notifier.sent()))
	}

	// Steady state afterwards: the missed notification does not re-fire.
	svc.ProcessReading(context.Background(), source.Reading{Value: 29.5})
	if len(notifier.sent()) != 1 {
		t.Fatalf("steady state re-fired a notification: %v", notifier.sent())
	}
}

func TestTimestampLabelUsesLocation(t *testing.T) {
	notifier := &fakeNotifier{}
	loc := time.FixedZone("UTC+2", 2*3600)
	svc := New(testConfig(), nil, notifier, loc, zerolog.Nop())

	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.ProcessReading(context.Background(), source.Reading{Value: 27.0})
	svc.ProcessReading(context.Background(), source.Reading{Value: 29.0, Timestamp: &ts})

	sent := notifier.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one notification, got %v", sent)
	}
	if !strings.Contains(sent[0], "2025-06-01T12:00:00+02:00") {
		t.Fatalf("timestamp not converted to display zone: %q", sent[0])
	}
}

func TestMissingTimestampRendersPlaceholder(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := New(testConfig(), nil, notifier, nil, zerolog.Nop())

	svc.ProcessReading(context.Background(), source.Reading{Value: 27.0})
	svc.ProcessReading(context.Background(), source.Reading{Value: 29.0})

	sent := notifier.sent()
	if len(sent) != 1 || !strings.Contains(sent[0], "(no timestamp)") {
		t.Fatalf("expected placeholder timestamp: %v", sent)
	}
}

func TestRunPreservesStateAcrossReconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notifier := &fakeNotifier{onNotify: cancel}

	// First connection establishes the baseline and then drops; the second
	// delivers the crossing reading. Only if the BELOW phase survives the
	// reconnect does the 29.0 reading produce an alert.
	first := &scriptedConn{results: []fetchResult{value(27.0)}}
	second := &scriptedConn{results: []fetchResult{value(29.0), value(29.0), value(29.0)}}
	dialer := &scriptedDialer{conns: []*scriptedConn{first, second}}

	svc := New(testConfig(), dialer, notifier, nil, zerolog.Nop())
	err := svc.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled after notification, got %v", err)
	}

	sent := notifier.sent()
	if len(sent) != 1 || !strings.Contains(sent[0], "ABOVE threshold: 29.00°C") {
		t.Fatalf("expected a single alert after reconnect, got %v", sent)
	}
	if dialer.dials < 2 {
		t.Fatalf("expected a reconnect, dials=%d", dialer.dials)
	}
	if !first.closed {
		t.Fatal("failed connection must be closed")
	}
}

func TestRunRetriesAfterDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notifier := &fakeNotifier{onNotify: cancel}
	conn := &scriptedConn{results: []fetchResult{value(27.0), value(29.0), value(29.0)}}
	dialer := &scriptedDialer{
		errs:  []error{errors.New("connection refused"), nil},
		conns: []*scriptedConn{conn},
	}

	svc := New(testConfig(), dialer, notifier, nil, zerolog.Nop())
	_ = svc.Run(ctx)

	if dialer.dials < 2 {
		t.Fatalf("expected retry after dial failure, dials=%d", dialer.dials)
	}
	if len(notifier.sent()) != 1 {
		t.Fatalf("expected one alert, got %v", notifier.sent())
	}
}

func TestRunSkipsEmptyResults(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notifier := &fakeNotifier{onNotify: cancel}
	conn := &scriptedConn{results: []fetchResult{
		value(27.0),
		{err: source.ErrNoData},
		{err: source.ErrNoData},
		value(29.0),
		value(29.0),
	}}
	dialer := &scriptedDialer{conns: []*scriptedConn{conn}}

	svc := New(testConfig(), dialer, notifier, nil, zerolog.Nop())
	_ = svc.Run(ctx)

	// Empty results are skipped on the same connection, not treated as a
	// connection failure.
	if dialer.dials != 1 {
		t.Fatalf("empty result triggered a reconnect, dials=%d", dialer.dials)
	}
	if len(notifier.sent()) != 1 {
		t.Fatalf("expected one alert, got %v", notifier.sent())
	}
}
