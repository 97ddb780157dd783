package realtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
)

var errMalformedFrame = errors.New("malformed stomp frame")

// frameStream turns a message-oriented Conn into the byte stream the stomp
// client reads. Every inbound message is checked on its own first, and
// messages that are not complete frames are dropped, so one bad message
// never desynchronizes the frames after it.
type frameStream struct {
	ctx  context.Context
	conn Conn
	log  *slog.Logger

	pending bytes.Buffer // read side only

	deadOnce sync.Once
	dead     chan struct{}
	err      error
}

func newFrameStream(ctx context.Context, conn Conn, log *slog.Logger) *frameStream {
	return &frameStream{ctx: ctx, conn: conn, log: log, dead: make(chan struct{})}
}

func (s *frameStream) Read(p []byte) (int, error) {
	for s.pending.Len() == 0 {
		data, err := s.conn.Read(s.ctx)
		if err != nil {
			s.fail(err)
			return 0, err
		}
		if err := checkFrames(data); err != nil {
			s.log.Warn("dropping malformed frame", "error", err, "bytes", len(data))
			continue
		}
		s.pending.Write(data)
	}
	return s.pending.Read(p)
}

func (s *frameStream) Write(p []byte) (int, error) {
	if err := s.conn.Write(s.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *frameStream) Close() error {
	return s.conn.Close()
}

// Dead is closed once the transport has failed.
func (s *frameStream) Dead() <-chan struct{} { return s.dead }

// Err is the transport failure; valid after Dead is closed.
func (s *frameStream) Err() error { return s.err }

func (s *frameStream) fail(err error) {
	s.deadOnce.Do(func() {
		s.err = err
		close(s.dead)
	})
}

// endOfMessage is parsed after every inbound message. A message made of
// complete frames leaves it intact; a truncated frame swallows part of it.
const (
	endOfMessageID = "frontdesk-end-of-message"
	endOfMessage   = "\nRECEIPT\nreceipt-id:" + endOfMessageID + "\n\n\x00"
)

// checkFrames accepts a message holding zero or more complete frames and
// heart-beat newlines.
func checkFrames(data []byte) error {
	trimmed := bytes.TrimRight(data, "\r\n")
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[len(trimmed)-1] != 0 {
		return errMalformedFrame
	}

	r := frame.NewReader(io.MultiReader(bytes.NewReader(data), strings.NewReader(endOfMessage)))
	for {
		f, err := r.Read()
		if err != nil {
			return errors.Join(errMalformedFrame, err)
		}
		if f != nil && f.Command == frame.RECEIPT && f.Header.Get("receipt-id") == endOfMessageID {
			return nil
		}
	}
}
