// Package transport implements the framed transport of spec.md §4.1:
// item-aligned send/receive over a single TCP connection between
// exactly two peers, residue handling for short reads, and (as a
// SPEC_FULL.md domain addition grounded on aistore's own transport
// package) optional LZ4 payload compression and a diagnostic xxhash
// digest.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"

	"github.com/windowrouter/router/internal/nlog"
	"github.com/windowrouter/router/wire"
)

// peer is one endpoint of the transport: a TCP connection plus the
// per-direction mutexes and residue buffer spec.md §5 calls for ("each
// transport's send direction is mutex-guarded; each transport's recv
// direction is mutex-guarded (two distinct mutexes)").
type peer struct {
	conn net.Conn

	sendMu sync.Mutex

	recvMu  sync.Mutex
	residue []byte
}

// Transport is a framed transport as seen by one side (root or
// child); root holds one peer per connected child, child holds
// exactly one peer (its parent).
type Transport struct {
	compression bool
	peers       []*peer
	listener    net.Listener
}

// NewChild constructs a transport with a single, not-yet-connected
// peer slot for the parent.
func NewChild(compression bool) *Transport {
	return &Transport{compression: compression, peers: make([]*peer, 1)}
}

// NewRoot constructs a transport with n not-yet-connected peer slots,
// one per child, indexed by accept order (spec.md §6).
func NewRoot(n int, compression bool) *Transport {
	return &Transport{compression: compression, peers: make([]*peer, n)}
}

// ConnectAsRoot binds the configured port and accepts n inbound
// connections in order, indexed 0..n-1 (spec.md §4.1, §6).
func (t *Transport) ConnectAsRoot(ctx context.Context, port int) error {
	lc := net.ListenConfig{Control: tuneListener}
	ln, err := lc.Listen(ctx, "tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return errors.Wrap(err, "transport: listen")
	}
	t.listener = ln
	nlog.Infof("root listening on :%d for %d children", port, len(t.peers))

	for i := range t.peers {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrapf(err, "transport: accept child %d", i)
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		t.peers[i] = &peer{conn: conn}
		nlog.Infof("root: child %d connected from %s", i, conn.RemoteAddr())
	}
	return nil
}

// ConnectAsChild blocking-connects to (parentHostname, port), retrying
// every second until the root is reachable (spec.md §4.1).
func (t *Transport) ConnectAsChild(ctx context.Context, parentHostname string, port int) error {
	addr := net.JoinHostPort(parentHostname, strconv.Itoa(port))
	dialer := net.Dialer{Control: tuneConn}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			if tc, ok := conn.(*net.TCPConn); ok {
				_ = tc.SetNoDelay(true)
			}
			t.peers[0] = &peer{conn: conn}
			nlog.Infof("child: connected to parent at %s", addr)
			return nil
		}
		nlog.Warningf("child: connect to %s failed (%v), retrying in 1s", addr, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (t *Transport) peerAt(id int) (*peer, error) {
	if id < 0 || id >= len(t.peers) || t.peers[id] == nil {
		return nil, fmt.Errorf("transport: no such connected peer %d", id)
	}
	return t.peers[id], nil
}

// Send writes b in its entirety to peerID, retrying on partial writes
// (spec.md §4.1: "writes until all bytes delivered or fatal error").
func (t *Transport) Send(peerID int, b []byte) (int, error) {
	p, err := t.peerAt(peerID)
	if err != nil {
		return 0, err
	}
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	total := 0
	for total < len(b) {
		n, err := p.conn.Write(b[total:])
		total += n
		if err != nil {
			return total, errors.Wrapf(err, "transport: send to peer %d", peerID)
		}
	}
	return total, nil
}

// RecvItems reads into buf at least one itemSize-aligned item,
// carrying any leftover tail bytes in the peer's residue buffer to the
// next call (spec.md §4.1, scenario 6 of spec.md §8). Returns 0, nil
// only on orderly peer close.
func (t *Transport) RecvItems(peerID int, buf []byte, itemSize int) (int, error) {
	p, err := t.peerAt(peerID)
	if err != nil {
		return 0, err
	}
	p.recvMu.Lock()
	defer p.recvMu.Unlock()

	have := len(p.residue)
	if have > 0 {
		copy(buf, p.residue)
	}
	for have < itemSize {
		n, err := p.conn.Read(buf[have:])
		if n > 0 {
			have += n
		}
		if err != nil {
			if have == 0 && errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, errors.Wrapf(err, "transport: recv from peer %d", peerID)
		}
	}
	items := have / itemSize
	used := items * itemSize
	residueLen := have - used
	if residueLen > 0 {
		p.residue = append(p.residue[:0], buf[used:have]...)
	} else {
		p.residue = p.residue[:0]
	}
	return items, nil
}

// recvExact fills buf completely, looping RecvItems until nItems have
// been collected; used internally for header/payload/footer reads
// where a caller needs a fixed number of units, not "at least one".
func (t *Transport) recvExact(peerID int, buf []byte, itemSize, nItems int) error {
	got := 0
	for got < nItems {
		n, err := t.RecvItems(peerID, buf[got*itemSize:], itemSize)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}
		got += n
	}
	return nil
}

// RecvHeader reads one magic+header frame (1+12 bytes) from peerID.
// Returns io.EOF on orderly peer close before any bytes of a new
// message arrive.
func (t *Transport) RecvHeader(peerID int) (wire.Header, error) {
	buf := make([]byte, 1+wire.HeaderSize)
	if err := t.recvExact(peerID, buf, 1, len(buf)); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return wire.Header{}, io.EOF
		}
		return wire.Header{}, err
	}
	return wire.DecodeHeader(buf)
}

// SendHeader writes h to peerID.
func (t *Transport) SendHeader(peerID int, h wire.Header) error {
	_, err := t.Send(peerID, h.Encode())
	return err
}

// SendPayload writes n items of itemSize bytes each, compressing first
// when the transport has compression enabled (SPEC_FULL.md domain
// addition): a 4-byte length prefix then names the compressed byte
// count, since the wire Size field always carries the item count.
func (t *Transport) SendPayload(peerID int, payload []byte, itemSize int) error {
	digest := xxhash.Checksum64(payload)
	nlog.Debugf("transport: send payload peer=%d bytes=%d xxhash=%x", peerID, len(payload), digest)

	if !t.compression {
		_, err := t.Send(peerID, payload)
		return err
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(payload)))
	n, err := lz4.CompressBlock(payload, compressed, nil)
	if err != nil {
		return errors.Wrap(err, "transport: lz4 compress")
	}
	if n == 0 {
		// incompressible: lz4 signals this by returning n==0; fall back
		// to sending the raw block prefixed with its own length.
		compressed = payload
		n = len(payload)
	}
	var lenBuf bytes.Buffer
	if err := wire.EncodeLen(uint32(n), &lenBuf); err != nil {
		return err
	}
	if _, err := t.Send(peerID, lenBuf.Bytes()); err != nil {
		return err
	}
	_, err = t.Send(peerID, compressed[:n])
	return err
}

// RecvPayload reads nItems*itemSize bytes of payload, reversing
// whatever SendPayload did.
func (t *Transport) RecvPayload(peerID int, nItems, itemSize int) ([]byte, error) {
	total := nItems * itemSize
	if !t.compression {
		buf := make([]byte, total)
		if err := t.recvExact(peerID, buf, itemSize, nItems); err != nil {
			return nil, err
		}
		return buf, nil
	}
	lenBuf := make([]byte, 4)
	if err := t.recvExact(peerID, lenBuf, 1, 4); err != nil {
		return nil, err
	}
	compLen := int(wire.DecodeLen(lenBuf))
	compBuf := make([]byte, compLen)
	if compLen > 0 {
		if err := t.recvExact(peerID, compBuf, 1, compLen); err != nil {
			return nil, err
		}
	}
	if compLen == total {
		// was stored raw (incompressible case in SendPayload)
		return compBuf, nil
	}
	out := make([]byte, total)
	n, err := lz4.UncompressBlock(compBuf, out)
	if err != nil {
		return nil, errors.Wrap(err, "transport: lz4 decompress")
	}
	if n != total {
		return nil, fmt.Errorf("transport: decompressed %d bytes, want %d", n, total)
	}
	return out, nil
}

// RecvWeight reads the 4-byte trailing weight footer of a KindDataReturn message.
func (t *Transport) RecvWeight(peerID int) (uint32, error) {
	buf := make([]byte, wire.FooterSize)
	if err := t.recvExact(peerID, buf, 1, wire.FooterSize); err != nil {
		return 0, err
	}
	return wire.DecodeWeight(buf)
}

func (t *Transport) SendWeight(peerID int, w uint32) error {
	_, err := t.Send(peerID, wire.EncodeWeight(w))
	return err
}

// Close closes all connected peers and, on the root, the listener.
func (t *Transport) Close() error {
	var firstErr error
	if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			firstErr = err
		}
	}
	for i, p := range t.peers {
		if p == nil {
			continue
		}
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "transport: close peer %d", i)
		}
	}
	return firstErr
}

// NumPeers reports the number of peer slots (children, for a root transport).
func (t *Transport) NumPeers() int { return len(t.peers) }
