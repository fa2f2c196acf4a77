// Package serve runs the scanner as a long-lived NDJSON process: one
// Request per input line, one Response per output line.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/praetorian-inc/fdsec/pkg/scanner"
)

// Version is the server protocol version
const Version = "1.1.0"

// Server answers scan requests read from in and writes responses to out.
// Requests are handled in order; a response is always written before the
// next request is read from the queue.
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder

	// reading is closed once the decoder goroutine of the current Run exits.
	reading chan struct{}
}

// NewServer creates a new streaming server
func NewServer(core *scanner.Core, in io.Reader, out io.Writer) *Server {
	return &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
	}
}

// decoded is one request, or the error that ended the input.
type decoded struct {
	req Request
	err error
}

// Run writes the ready response and serves until the input ends, a
// "close" request arrives, or ctx is cancelled. Requests decoded before
// the input ended are still answered.
func (s *Server) Run(ctx context.Context) error {
	s.respond("ready", ReadyData{Version: Version})

	// The decoder runs ahead on its own goroutine so that cancellation is
	// noticed while a read is blocked. It stops once Run returns, or when
	// a blocked read next completes.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan decoded, 1)
	reading := make(chan struct{})
	s.reading = reading
	go func() {
		defer close(reading)
		defer close(queue)
		for {
			var d decoded
			d.err = s.decoder.Decode(&d.req)
			select {
			case queue <- d:
			case <-ctx.Done():
				return
			}
			if d.err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-queue:
			if !ok {
				return ctx.Err()
			}
			if d.err != nil {
				if !errors.Is(d.err, io.EOF) {
					s.fail("decode", d.err)
				}
				return nil
			}
			if s.dispatch(ctx, d.req) {
				return nil
			}
		}
	}
}

// dispatch handles one request and reports whether the server should stop.
func (s *Server) dispatch(ctx context.Context, req Request) bool {
	switch req.Type {
	case "scan":
		var p ScanPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			s.fail(req.Type, err)
			return false
		}
		result, err := s.core.Scan(ctx, p.Content, p.Source)
		s.reply(req.Type, result, err)
	case "scan_batch":
		var p ScanBatchPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			s.fail(req.Type, err)
			return false
		}
		result, err := s.core.ScanBatch(ctx, p.Items)
		s.reply(req.Type, result, err)
	case "info":
		e := s.core.Engine()
		s.respond(req.Type, InfoData{Version: Version, Engine: e.String(), Summary: e.Summary()})
	case "close":
		return true
	default:
		s.fail("unknown", errors.New("unknown request type: "+req.Type))
	}
	return false
}

func (s *Server) reply(typ string, data any, err error) {
	if err != nil {
		s.fail(typ, err)
		return
	}
	s.respond(typ, data)
}

func (s *Server) respond(typ string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.fail(typ, err)
		return
	}
	s.encoder.Encode(Response{Success: true, Type: typ, Data: raw})
}

func (s *Server) fail(typ string, err error) {
	s.encoder.Encode(Response{Success: false, Type: typ, Error: err.Error()})
}
