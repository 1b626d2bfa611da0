//go:build !race

package rpc_test

import "testing"

func skipRace(testing.TB) {}
