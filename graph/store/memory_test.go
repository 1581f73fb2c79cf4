package store

import "testing"

func TestMemStore(t *testing.T) {
	runStoreSuite(t, NewMemStore[testState](), "mem-run")
}
