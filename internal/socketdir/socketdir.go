// Package socketdir centralizes the daemon's filesystem and environment
// conventions for its IPC socket and shared-memory region paths
// (spec.md §6, "stable filesystem location (override via environment
// variable)"). It is a single-daemon analogue of the teacher's
// per-agent socket directory: scarabd runs one daemon per host rather
// than one socket per agent, so paths are fixed names under one
// directory instead of a `{type}.{name}.sock` glob.
package socketdir

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

const (
	// EnvDir overrides the base directory everything else nests under.
	EnvDir = "SCARAB_DIR"
	// EnvSocket overrides the IPC socket path outright.
	EnvSocket = "SCARAB_SOCK"
	// EnvShm overrides the shared-memory region path outright.
	EnvShm = "SCARAB_SHM"

	socketFileName = "daemon.sock"
	shmFileName    = "state.shm"
	blobShmSuffix  = ".blobs"
)

// Dir returns the base directory scarabd nests its runtime files under:
// $SCARAB_DIR, or ~/.scarab if unset.
func Dir() string {
	if d := os.Getenv(EnvDir); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".scarab")
}

// SocketPath returns the IPC socket's path: $SCARAB_SOCK, or
// {Dir()}/daemon.sock.
func SocketPath() string {
	if p := os.Getenv(EnvSocket); p != "" {
		return p
	}
	return filepath.Join(Dir(), socketFileName)
}

// ShmPath returns the SharedStateFrame region's path: $SCARAB_SHM, or
// {Dir()}/state.shm.
func ShmPath() string {
	if p := os.Getenv(EnvShm); p != "" {
		return p
	}
	return filepath.Join(Dir(), shmFileName)
}

// BlobShmPath returns the companion image-blob region's path, derived
// from ShmPath by a fixed suffix (spec.md §6).
func BlobShmPath() string {
	return ShmPath() + blobShmSuffix
}

// EnsureDir creates Dir() (and any SCARAB_DIR override) if missing.
func EnsureDir() error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return fmt.Errorf("socketdir: create %s: %w", Dir(), err)
	}
	return nil
}

// ProbeSocket checks whether path refers to a live daemon. If a
// connection succeeds, another instance is already listening and an
// error is returned naming label. If the path exists but nothing
// answers, it's a stale socket left by an unclean shutdown and is
// removed so a fresh Listen can reuse it.
func ProbeSocket(path, label string) error {
	conn, err := net.Dial("unix", path)
	if err == nil {
		conn.Close()
		return fmt.Errorf("socketdir: %s is already running (socket %s is live)", label, path)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if rmErr := os.Remove(path); rmErr != nil {
			return fmt.Errorf("socketdir: remove stale socket %s: %w", path, rmErr)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("socketdir: stat %s: %w", path, statErr)
	}
	return nil
}
