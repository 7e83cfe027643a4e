package occupancy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
)

// Ack is the fixed reply written to every sensor connection.
const Ack = "OK\n"

// Ingest defaults.
const (
	DefaultReadTimeout    = 5 * time.Second
	DefaultMaxPayload     = 1024
	DefaultMaxConnections = 16

	writeTimeout      = 2 * time.Second
	maxAcceptBackoff  = time.Second
	initAcceptBackoff = 5 * time.Millisecond
)

// IngestConfig configures an IngestServer.
type IngestConfig struct {
	// DesignatedSeat is the seat every report applies to.
	DesignatedSeat string

	// Threshold is the ambient level above which an unreachable seat is
	// PRESENT_VIA_AMBIENT.
	Threshold int

	ProbeTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxPayload     int
	MaxConnections int
}

// IngestStats are cumulative counters since start.
type IngestStats struct {
	Connections uint64 `json:"connections"`
	Reports     uint64 `json:"reports"`
	Malformed   uint64 `json:"malformed"`
	Applied     uint64 `json:"applied"`
	Failed      uint64 `json:"failed"`
}

// IngestServer accepts one-shot sensor reports over TCP.
//
// Each connection carries one report, which may span several lines. The
// server reads until it holds a complete JSON value (or a line that can never
// become one), end of stream, MaxPayload bytes or the read deadline, then
// processes the report, writes Ack and closes. At most MaxConnections
// connections are handled at once; further connections wait in the
// listen backlog. A failing connection never stops the listener.
type IngestServer struct {
	store  Store
	prober Prober
	sink   Sink
	cfg    IngestConfig
	logger *logging.Logger

	mu       sync.Mutex
	listener net.Listener

	connections atomic.Uint64
	reports     atomic.Uint64
	malformed   atomic.Uint64
	applied     atomic.Uint64
	failed      atomic.Uint64
}

// NewIngestServer creates an ingest server. Zero config values take the
// defaults, except DesignatedSeat which callers must set.
func NewIngestServer(store Store, prober Prober, cfg IngestConfig, logger *logging.Logger) *IngestServer {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = DefaultMaxPayload
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &IngestServer{
		store:  store,
		prober: prober,
		cfg:    cfg,
		logger: logger,
	}
}

// SetSink sets where committed changes are delivered. Must be called before Serve.
func (s *IngestServer) SetSink(sink Sink) {
	s.sink = sink
}

// Listen binds the TCP listener. Failures wrap ErrListen.
func (s *IngestServer) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListen, addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("ingest listener bound", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *IngestServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener. In-flight connections finish on their own.
func (s *IngestServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed, then waits for in-flight connections. Listen must be called first.
func (s *IngestServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("%w: Serve called before Listen", ErrListen)
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	sem := make(chan struct{}, s.cfg.MaxConnections)
	var wg sync.WaitGroup
	defer wg.Wait()

	backoff := time.Duration(0)
	for {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			<-sem
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}

			if backoff == 0 {
				backoff = initAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			s.logger.Warn("ingest accept failed", "error", err, "retry_in", backoff)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *IngestServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	s.connections.Add(1)
	log := s.logger.With("conn_id", uuid.NewString(), "remote", conn.RemoteAddr().String())

	// Registered before the recover so the sender is acked even after a panic.
	defer func() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write([]byte(Ack)); err != nil {
			log.Debug("ingest ack failed", "error", err)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error("ingest handler panicked", "panic", r)
		}
	}()

	payload, err := s.readReport(conn)
	if err != nil {
		log.Debug("ingest read ended", "error", err, "bytes", len(payload))
	}

	if len(bytes.TrimSpace(payload)) > 0 {
		if _, err := s.Process(ctx, payload); err != nil {
			log.Warn("sensor report not applied", "error", err)
		}
	}
}

// readReport reads one message. It returns whatever was received together
// with the error that ended the read, if any.
//
// A message ends at end of stream, at MaxPayload bytes, once the buffer holds
// a complete JSON value, or at a newline that closes a non-blank line which
// cannot be the start of a JSON value. Newlines inside a pretty-printed object
// and blank leading lines therefore do not cut the message short.
func (s *IngestServer) readReport(conn net.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, min(s.cfg.MaxPayload, 512))
	chunk := make([]byte, 256)
	for len(buf) < s.cfg.MaxPayload {
		n, err := conn.Read(chunk[:min(len(chunk), s.cfg.MaxPayload-len(buf))])
		buf = append(buf, chunk[:n]...)

		if trimmed := bytes.TrimSpace(buf); len(trimmed) > 0 && json.Valid(trimmed) {
			return buf, nil
		}
		if end, ok := messageEnd(buf); ok {
			return buf[:end], nil
		}
		if err != nil {
			return buf, err
		}
	}

	return buf, nil
}

// messageEnd finds the first newline that terminates a message: the text
// before it is non-blank and is either a complete JSON value or something no
// further input could turn into one.
func messageEnd(buf []byte) (int, bool) {
	for i, b := range buf {
		if b != '\n' {
			continue
		}
		head := bytes.TrimSpace(buf[:i])
		if len(head) == 0 {
			continue
		}
		if json.Valid(head) || !isJSONPrefix(head) {
			return i, true
		}
	}
	return 0, false
}

// isJSONPrefix reports whether data is the truncated start of a JSON value.
func isJSONPrefix(data []byte) bool {
	var v any
	err := json.NewDecoder(bytes.NewReader(data)).Decode(&v)
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// ProcessResult describes what a report did.
type ProcessResult struct {
	Seat      Seat
	Reachable bool
	Ambient   *int
}

// Process applies one report payload to the designated seat: parse, look up
// the seat's address, probe it fresh, reconcile and write. Used by the TCP
// listener and by any other transport that delivers sensor reports.
func (s *IngestServer) Process(ctx context.Context, payload []byte) (ProcessResult, error) {
	s.reports.Add(1)

	report, err := ParseReport(payload)
	if err != nil {
		s.malformed.Add(1)
		return ProcessResult{}, err
	}

	address, err := s.store.GetAddress(ctx, s.cfg.DesignatedSeat)
	if err != nil {
		s.failed.Add(1)
		return ProcessResult{}, fmt.Errorf("resolving designated seat %q: %w", s.cfg.DesignatedSeat, err)
	}

	reachable := s.prober.Probe(ctx, address, s.cfg.ProbeTimeout)
	status := Reconcile(reachable, report.Ambient, s.cfg.Threshold)

	seat, err := s.store.WriteStatus(ctx, s.cfg.DesignatedSeat, status, status.IsPresent())
	if err != nil {
		s.failed.Add(1)
		return ProcessResult{}, fmt.Errorf("writing designated seat %q: %w", s.cfg.DesignatedSeat, err)
	}
	s.applied.Add(1)

	attrs := []any{"seat", seat.Name, "status", status.String(), "reachable", reachable}
	if report.Ambient != nil {
		attrs = append(attrs, "ambient", *report.Ambient)
	}
	s.logger.Info("sensor report applied", attrs...)

	if s.sink != nil {
		s.sink.SeatUpdated(ctx, Change{
			Seat:      seat,
			Source:    SourceSensor,
			Reachable: reachable,
			Ambient:   report.Ambient,
			At:        time.Now(),
		})
	}

	return ProcessResult{Seat: seat, Reachable: reachable, Ambient: report.Ambient}, nil
}

// Stats returns the current counters.
func (s *IngestServer) Stats() IngestStats {
	return IngestStats{
		Connections: s.connections.Load(),
		Reports:     s.reports.Load(),
		Malformed:   s.malformed.Load(),
		Applied:     s.applied.Load(),
		Failed:      s.failed.Load(),
	}
}
