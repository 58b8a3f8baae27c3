package sessionmgr

import (
	"testing"

	"scarabd/internal/sessionstore"
)

func newTestStore(t *testing.T, dir string) (*sessionstore.Store, error) {
	t.Helper()
	return sessionstore.Open(dir)
}
