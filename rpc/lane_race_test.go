//go:build race

package rpc

import "testing"

// skipRace skips tests that exercise lfq SPSC lanes, see the exported
// package's helper of the same name.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: SPSC uses cross-variable memory ordering")
}
