// Package wire defines the on-the-wire message framing between root
// and child routers (spec.md §6). The source alternately declares
// header fields as floats and ints; per spec.md §9 this is resolved to
// fixed, little-endian unsigned 32-bit integers.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Kind is the wire-level message tag. Distinct from window.Kind: the
// wire additionally distinguishes the two directions of "data"
// (plain vs. weight-bearing return) and the two halves of shutdown.
type Kind uint32

const (
	KindData       Kind = 1 // root -> child: window payload
	_                   = 2 // reserved in the root -> child direction; reused below for child -> root
	KindDataReturn Kind = 2 // child -> root: window payload + weight footer
	KindKill       Kind = 3 // root -> child: orderly shutdown
	KindKillAck    Kind = 4 // child -> root: shutdown acknowledged
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindDataReturn:
		return "DATA_RETURN"
	case KindKill:
		return "KILL"
	case KindKillAck:
		return "KILL_ACK"
	default:
		return fmt.Sprintf("KIND(%d)", uint32(k))
	}
}

// Magic is a one-byte resync sentinel prepended to every message, a
// supplement (see SPEC_FULL.md) to the original's sentinel-float
// length prefix: any reader that ends up desynced on the stream can
// at least fail fast instead of misinterpreting garbage as a header.
const Magic byte = 0xAC

// HeaderSize is the 12-byte (kind, index, size) triple of spec.md §6,
// not counting the one-byte Magic prefix.
const HeaderSize = 12

// FooterSize is the trailing weight footer attached to KindDataReturn.
const FooterSize = 4

type Header struct {
	Kind  Kind
	Index uint32
	Size  uint32
}

func (h Header) Encode() []byte {
	buf := make([]byte, 1+HeaderSize)
	buf[0] = Magic
	binary.LittleEndian.PutUint32(buf[1:5], uint32(h.Kind))
	binary.LittleEndian.PutUint32(buf[5:9], h.Index)
	binary.LittleEndian.PutUint32(buf[9:13], h.Size)
	return buf
}

// DecodeHeader reads the magic byte + 12-byte header from buf (which
// must be exactly 1+HeaderSize bytes, as produced by transport.RecvHeader,
// which reads the whole frame with itemSize=1).
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != 1+HeaderSize {
		return Header{}, fmt.Errorf("wire: short header, got %d bytes", len(buf))
	}
	if buf[0] != Magic {
		return Header{}, fmt.Errorf("wire: bad magic byte 0x%x, want 0x%x", buf[0], Magic)
	}
	return Header{
		Kind:  Kind(binary.LittleEndian.Uint32(buf[1:5])),
		Index: binary.LittleEndian.Uint32(buf[5:9]),
		Size:  binary.LittleEndian.Uint32(buf[9:13]),
	}, nil
}

func EncodeWeight(w uint32) []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(buf, w)
	return buf
}

func DecodeWeight(buf []byte) (uint32, error) {
	if len(buf) != FooterSize {
		return 0, fmt.Errorf("wire: short weight footer, got %d bytes", len(buf))
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// EncodeLen writes a 4-byte little-endian length prefix, used only
// when a transport has compression enabled (SPEC_FULL.md domain
// stack): the wire-level Size field always names the item count, so a
// separate byte-length prefix is needed to size the compressed blob.
func EncodeLen(n uint32, w io.Writer) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	_, err := w.Write(buf[:])
	return err
}

func DecodeLen(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}
