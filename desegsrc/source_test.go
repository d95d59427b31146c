package desegsrc

import (
	"testing"
	"time"

	"github.com/windowrouter/router/internal/rtest"
	"github.com/windowrouter/router/window"
	"github.com/windowrouter/router/winqueue"
)

func pullUntil(t *testing.T, s *Source, buf []byte, deadline time.Duration) (n int, tags []OutTag, terminal bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		n, tags, terminal = s.Pull(buf)
		if n > 0 || terminal {
			return n, tags, terminal
		}
	}
	return n, tags, terminal
}

func TestPullUnorderedPassesThroughImmediately(t *testing.T) {
	q := winqueue.New(8)
	s, err := New(4, q, false, false, 8)
	rtest.CheckFatal(t, err)
	defer s.Close()

	rtest.Fatalf(t, q.Push(window.NewData(5, []byte("abcd"), 4)), "push should succeed")

	buf := make([]byte, 64)
	n, _, terminal := pullUntil(t, s, buf, time.Second)
	rtest.Fatalf(t, !terminal, "should not be terminal yet")
	rtest.Fatalf(t, n == 4, "want 4 bytes, got %d", n)
	rtest.Fatalf(t, string(buf[:4]) == "abcd", "payload mismatch: %q", buf[:4])
}

func TestPullOrderedWaitsForGap(t *testing.T) {
	q := winqueue.New(8)
	s, err := New(4, q, true, true, 8)
	rtest.CheckFatal(t, err)
	defer s.Close()

	rtest.Fatalf(t, q.Push(window.NewData(1, []byte("bbbb"), 4)), "push index 1 should succeed")

	buf := make([]byte, 64)
	n, _, terminal := s.Pull(buf)
	rtest.Fatalf(t, !terminal && n == 0, "out-of-order record with a gap at 0 must not be emitted yet")

	rtest.Fatalf(t, q.Push(window.NewData(0, []byte("aaaa"), 4)), "push index 0 should succeed")
	n, tags, terminal := pullUntil(t, s, buf, time.Second)
	rtest.Fatalf(t, !terminal, "should not be terminal")
	rtest.Fatalf(t, n == 8, "want 8 bytes once the gap fills, got %d", n)
	rtest.Fatalf(t, string(buf[:8]) == "aaaabbbb", "want in-order payload, got %q", buf[:8])
	rtest.Fatalf(t, len(tags) == 2 && tags[0].Value == 0 && tags[1].Value == 1, "want index tags 0,1, got %+v", tags)
}

func TestPullReportsTerminalOnKill(t *testing.T) {
	q := winqueue.New(8)
	s, err := New(4, q, false, false, 8)
	rtest.CheckFatal(t, err)
	defer s.Close()

	rtest.Fatalf(t, q.Push(window.NewKill()), "push kill should succeed")

	buf := make([]byte, 64)
	_, _, terminal := pullUntil(t, s, buf, time.Second)
	rtest.Fatalf(t, terminal, "expected terminal=true after observing KILL")

	n, _, terminal2 := s.Pull(buf)
	rtest.Fatalf(t, terminal2 && n == 0, "subsequent pulls must keep reporting terminal")
}

func TestPullSplitsAcrossSmallBuffers(t *testing.T) {
	q := winqueue.New(8)
	s, err := New(4, q, false, false, 8)
	rtest.CheckFatal(t, err)
	defer s.Close()

	rtest.Fatalf(t, q.Push(window.NewData(0, []byte("aaaa"), 4)), "push should succeed")
	rtest.Fatalf(t, q.Push(window.NewData(1, []byte("bbbb"), 4)), "push should succeed")

	small := make([]byte, 4) // only room for one window at a time
	n1, _, _ := pullUntil(t, s, small, time.Second)
	rtest.Fatalf(t, n1 == 4, "want 4 bytes on first pull, got %d", n1)

	n2, _, _ := pullUntil(t, s, small, time.Second)
	rtest.Fatalf(t, n2 == 4, "want 4 bytes on second pull, got %d", n2)
}
