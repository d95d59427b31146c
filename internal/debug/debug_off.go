//go:build !debug

package debug

const Enabled = false

func Assert(bool, ...any)     {}
func AssertNoErr(error)       {}
func Assertf(bool, string, ...any) {}
