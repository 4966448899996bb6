// Package udp carries frames as UDP datagrams, one frame per datagram.
// Every frame is sent to each configured peer, which may be a broadcast
// address.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/transport"
	"github.com/meshsync/go-meshsync/wire"
)

const backend = "udp"

const defaultBufferSize = 256

type Opt func(*Transport)

func WithLogger(logger *zap.Logger) Opt {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithPeers sets the host:port addresses frames are sent to.
func WithPeers(peers ...string) Opt {
	return func(t *Transport) {
		t.peers = append(t.peers, peers...)
	}
}

// WithBufferSize sets how many received frames wait for Receive.
func WithBufferSize(size int) Opt {
	return func(t *Transport) {
		t.bufferSize = size
	}
}

// Transport is a transport.Transport over UDP.
type Transport struct {
	logger     *zap.Logger
	peers      []string
	bufferSize int
	counters   *transport.Counters

	mu       sync.RWMutex
	conn     *net.UDPConn
	remotes  []*net.UDPAddr
	msgChan  chan []byte
	shutdown chan struct{}
	eg       sync.WaitGroup
}

var _ transport.Transport = (*Transport)(nil)

func New(opts ...Opt) *Transport {
	t := &Transport{
		logger:     zap.NewNop(),
		bufferSize: defaultBufferSize,
		counters:   transport.NewCounters(backend),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect listens on the identifier address (host:port) and resolves peers.
func (t *Transport) Connect(ctx context.Context, identifier string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return fmt.Errorf("%w: already listening on %s", transport.ErrConnect, t.conn.LocalAddr())
	}
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", identifier)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", transport.ErrConnect, identifier, err)
	}
	conn := pc.(*net.UDPConn)
	remotes := make([]*net.UDPAddr, 0, len(t.peers))
	for _, peer := range t.peers {
		addr, err := net.ResolveUDPAddr("udp", peer)
		if err != nil {
			conn.Close()
			return fmt.Errorf("%w: resolve peer %s: %w", transport.ErrConnect, peer, err)
		}
		remotes = append(remotes, addr)
	}
	t.conn = conn
	t.remotes = remotes
	msgChan := make(chan []byte, t.bufferSize)
	shutdown := make(chan struct{})
	t.msgChan = msgChan
	t.shutdown = shutdown
	t.logger.Info("started udp transport",
		zap.Stringer("addr", conn.LocalAddr()),
		zap.Strings("peers", t.peers),
	)
	t.eg.Add(1)
	go func() {
		defer t.eg.Done()
		t.listen(conn, msgChan, shutdown)
	}()
	return nil
}

// LocalAddr returns the listening address, nil before Connect.
func (t *Transport) LocalAddr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

func (t *Transport) listen(conn *net.UDPConn, msgChan chan<- []byte, shutdown <-chan struct{}) {
	defer close(msgChan)
	// one byte more than allowed to detect oversized datagrams
	buf := make([]byte, wire.MaxFrameSize+1)
	for {
		size, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			t.counters.Failed()
			t.logger.Error("udp read failed, stopping listener", zap.Error(err))
			return
		}
		if size > wire.MaxFrameSize {
			t.counters.Failed()
			t.logger.Debug("dropping oversized datagram",
				zap.Stringer("from", addr),
				zap.Int("size", size),
			)
			continue
		}
		frame := make([]byte, size)
		copy(frame, buf[:size])
		select {
		case msgChan <- frame:
		case <-shutdown:
			return
		default:
			t.logger.Debug("receive buffer full, dropping frame", zap.Stringer("from", addr))
		}
	}
}

// AddPeer adds a destination while connected.
func (t *Transport) AddPeer(peer string) error {
	addr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return fmt.Errorf("resolve peer %s: %w", peer, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return transport.ErrNotConnected
	}
	t.peers = append(t.peers, peer)
	t.remotes = append(t.remotes, addr)
	return nil
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	if len(frame) > wire.MaxFrameSize {
		t.counters.Failed()
		return fmt.Errorf("%w: %d bytes", transport.ErrFrameTooLarge, len(frame))
	}
	t.mu.RLock()
	conn, remotes := t.conn, t.remotes
	t.mu.RUnlock()
	if conn == nil {
		return transport.ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	var errs []error
	for _, remote := range remotes {
		if _, err := conn.WriteToUDP(frame, remote); err != nil {
			t.counters.Failed()
			errs = append(errs, fmt.Errorf("send to %s: %w", remote, err))
			continue
		}
		t.counters.Sent(len(frame))
	}
	return errors.Join(errs...)
}

func (t *Transport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t.mu.RLock()
	msgChan := t.msgChan
	t.mu.RUnlock()
	if msgChan == nil {
		return nil, transport.ErrNotConnected
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-msgChan:
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
	conn := t.conn
	if conn == nil {
		t.mu.Unlock()
		return nil
	}
	close(t.shutdown)
	t.conn = nil
	t.msgChan = nil
	t.mu.Unlock()
	err := conn.Close()
	t.eg.Wait()
	return err
}

func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil
}

func (t *Transport) Stats() transport.Stats {
	return t.counters.Stats()
}
