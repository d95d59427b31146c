package transport

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/windowrouter/router/internal/rtest"
	"github.com/windowrouter/router/wire"
)

// connectedPair spins up a root transport (1 child slot) and a child
// transport, connected to each other over real loopback TCP.
func connectedPair(t *testing.T, port int) (root, child *Transport) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	root = NewRoot(1, false)
	child = NewChild(false)

	errc := make(chan error, 1)
	go func() { errc <- root.ConnectAsRoot(ctx, port) }()

	// give the listener a moment to bind before the child dials.
	time.Sleep(20 * time.Millisecond)
	rtest.CheckFatal(t, child.ConnectAsChild(ctx, "127.0.0.1", port))
	rtest.CheckFatal(t, <-errc)

	t.Cleanup(func() {
		_ = root.Close()
		_ = child.Close()
	})
	return root, child
}

func TestHeaderRoundTripOverTCP(t *testing.T) {
	root, child := connectedPair(t, 19421)

	want := wire.Header{Kind: wire.KindData, Index: 3, Size: 2}
	rtest.CheckFatal(t, root.SendHeader(0, want))

	got, err := child.RecvHeader(0)
	rtest.CheckFatal(t, err)
	rtest.Fatalf(t, got == want, "want %+v, got %+v", want, got)
}

// TestRecvItemsResidue reproduces the residue scenario: item_size=4, a
// 13-byte burst yields 3 whole items plus a 1-byte residue, and a
// follow-up 3-byte burst completes a 4th item out of the carried residue.
func TestRecvItemsResidue(t *testing.T) {
	root, child := connectedPair(t, 19422)

	const itemSize = 4
	first := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12} // 13 bytes
	_, err := root.Send(0, first)
	rtest.CheckFatal(t, err)

	buf := make([]byte, 64)
	n, err := child.RecvItems(0, buf, itemSize)
	rtest.CheckFatal(t, err)
	rtest.Fatalf(t, n == 3, "want 3 whole items from a 13-byte burst, got %d", n)

	second := []byte{13, 14, 15} // completes the residue into a 4th item
	_, err = root.Send(0, second)
	rtest.CheckFatal(t, err)

	n, err = child.RecvItems(0, buf, itemSize)
	rtest.CheckFatal(t, err)
	rtest.Fatalf(t, n == 1, "want 1 item completed from carried residue, got %d", n)
	for i := 0; i < itemSize; i++ {
		rtest.Fatalf(t, buf[i] == byte(12+i), "residue-completed item mismatch at byte %d: got %d", i, buf[i])
	}
}

func TestPayloadRoundTripUncompressed(t *testing.T) {
	root, child := connectedPair(t, 19423)

	payload := []byte("abcdefgh") // 2 items of 4 bytes
	rtest.CheckFatal(t, root.SendPayload(0, payload, 4))

	got, err := child.RecvPayload(0, 2, 4)
	rtest.CheckFatal(t, err)
	rtest.Fatalf(t, string(got) == string(payload), "want %q, got %q", payload, got)
}

func TestWeightRoundTripOverTCP(t *testing.T) {
	root, child := connectedPair(t, 19424)

	rtest.CheckFatal(t, child.SendWeight(0, 7))
	got, err := root.RecvWeight(0)
	rtest.CheckFatal(t, err)
	rtest.Fatalf(t, got == 7, "want weight 7, got %d", got)
}

func TestRecvHeaderReturnsEOFOnOrderlyClose(t *testing.T) {
	root, child := connectedPair(t, 19425)
	rtest.CheckFatal(t, root.Close())

	_, err := child.RecvHeader(0)
	rtest.Fatalf(t, err == io.EOF, "want io.EOF after the peer closed the connection, got %v", err)
}
