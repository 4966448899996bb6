// Package stream carries frames over a byte stream, such as a TCP connection
// to a radio gateway or the serial device of a radio dongle. Each frame is
// prefixed with its length as an unsigned varint.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-msgio"
	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/transport"
	"github.com/meshsync/go-meshsync/wire"
)

const (
	backend   = "stream"
	tcpPrefix = "tcp://"
)

const defaultBufferSize = 64

// DialFunc opens the underlying stream for an identifier.
type DialFunc func(ctx context.Context, identifier string) (io.ReadWriteCloser, error)

// Dial opens tcp://host:port identifiers as TCP connections and anything
// else as a device file.
func Dial(ctx context.Context, identifier string) (io.ReadWriteCloser, error) {
	if addr, ok := strings.CutPrefix(identifier, tcpPrefix); ok {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
	return os.OpenFile(identifier, os.O_RDWR, 0)
}

type Opt func(*Transport)

func WithLogger(logger *zap.Logger) Opt {
	return func(t *Transport) {
		t.logger = logger
	}
}

func WithDialer(dial DialFunc) Opt {
	return func(t *Transport) {
		t.dial = dial
	}
}

func WithBufferSize(size int) Opt {
	return func(t *Transport) {
		t.bufferSize = size
	}
}

type session struct {
	rwc    io.ReadWriteCloser
	writer msgio.WriteCloser
	inChan chan []byte
	closed chan struct{}
	once   sync.Once
}

func (s *session) close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.rwc.Close()
	})
	return err
}

// Transport is a transport.Transport over a varint delimited stream.
type Transport struct {
	logger     *zap.Logger
	dial       DialFunc
	bufferSize int
	counters   *transport.Counters

	mu      sync.RWMutex
	session *session
	wmu     sync.Mutex
	wg      sync.WaitGroup
}

var _ transport.Transport = (*Transport)(nil)

func New(opts ...Opt) *Transport {
	t := &Transport{
		logger:     zap.NewNop(),
		dial:       Dial,
		bufferSize: defaultBufferSize,
		counters:   transport.NewCounters(backend),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Connect(ctx context.Context, identifier string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		return fmt.Errorf("%w: already connected", transport.ErrConnect)
	}
	rwc, err := t.dial(ctx, identifier)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", transport.ErrConnect, identifier, err)
	}
	s := &session{
		rwc:    rwc,
		writer: msgio.NewVarintWriter(rwc),
		inChan: make(chan []byte, t.bufferSize),
		closed: make(chan struct{}),
	}
	t.session = s
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.readFrom(s)
	}()
	t.logger.Info("stream transport connected", zap.String("identifier", identifier))
	return nil
}

// readFrom reads all frames and sends them down the session channel.
func (t *Transport) readFrom(s *session) {
	defer close(s.inChan)
	reader := msgio.NewVarintReaderSize(s.rwc, wire.MaxFrameSize)
	for {
		msg, err := reader.ReadMsg()
		if err != nil {
			select {
			case <-s.closed:
			default:
				if !errors.Is(err, io.EOF) {
					t.counters.Failed()
					t.logger.Warn("stream read failed", zap.Error(err))
				}
				// a stream that lost framing can not be resynchronized
				s.close()
			}
			return
		}
		frame := make([]byte, len(msg))
		copy(frame, msg)
		reader.ReleaseMsg(msg)
		select {
		case s.inChan <- frame:
		case <-s.closed:
			return
		}
	}
}

func (t *Transport) current() *session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	if len(frame) > wire.MaxFrameSize {
		t.counters.Failed()
		return fmt.Errorf("%w: %d bytes", transport.ErrFrameTooLarge, len(frame))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.current()
	if s == nil {
		return transport.ErrNotConnected
	}
	select {
	case <-s.closed:
		return transport.ErrClosed
	default:
	}
	t.wmu.Lock()
	err := s.writer.WriteMsg(frame)
	t.wmu.Unlock()
	if err != nil {
		t.counters.Failed()
		s.close()
		return fmt.Errorf("%w: %w", transport.ErrClosed, err)
	}
	t.counters.Sent(len(frame))
	return nil
}

func (t *Transport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	s := t.current()
	if s == nil {
		return nil, transport.ErrNotConnected
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-s.inChan:
		if !ok {
			return nil, transport.ErrClosed
		}
		t.counters.Received(len(frame))
		return frame, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	s := t.session
	t.session = nil
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	err := s.close()
	t.wg.Wait()
	return err
}

// IsConnected is false once the stream failed, even before Disconnect.
func (t *Transport) IsConnected() bool {
	s := t.current()
	if s == nil {
		return false
	}
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

func (t *Transport) Stats() transport.Stats {
	return t.counters.Stats()
}
