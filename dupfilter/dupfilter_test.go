package dupfilter

import (
	"testing"

	"github.com/windowrouter/router/internal/rtest"
)

func TestMarkThenMaybeSeen(t *testing.T) {
	f := New(1024)
	rtest.Fatalf(t, !f.MaybeSeen(5), "index 5 should not be flagged before it's marked")

	f.Mark(5)
	rtest.Fatalf(t, f.MaybeSeen(5), "index 5 should be flagged after Mark")
	rtest.Fatalf(t, !f.MaybeSeen(6), "index 6 should not be flagged")
}

func TestForgetRemovesEntry(t *testing.T) {
	f := New(1024)
	f.Mark(9)
	f.Forget(9)
	rtest.Fatalf(t, !f.MaybeSeen(9), "index 9 should no longer be flagged after Forget")
}
