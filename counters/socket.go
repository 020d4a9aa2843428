package counters

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

const staleProbeTimeout = 100 * time.Millisecond

// listen binds a Unix stream socket at path. A leftover socket file that
// nobody accepts on is removed first; a live one is reported as ErrSocketInUse.
// Nothing is left open when an error is returned.
func listen(path string, mode os.FileMode) (*net.UnixListener, error) {

	if path == "" {
		return nil, ErrEmptyPath
	}
	if len(path) > maxSocketPath {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrPathTooLong, len(path), maxSocketPath)
	}

	if err := removeStale(path); err != nil {
		return nil, err
	}

	addr := &net.UnixAddr{Name: path, Net: "unix"}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	ln.SetUnlinkOnClose(true)

	if mode != 0 {
		if err := os.Chmod(path, mode); err != nil {
			ln.Close()
			return nil, fmt.Errorf("failed to chmod %s: %w", path, err)
		}
	}
	return ln, nil
}

func removeStale(path string) error {

	fi, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	if fi.Mode()&os.ModeSocket == 0 {
		// bind reports the conflict with a proper error
		return nil
	}

	conn, err := net.DialTimeout("unix", path, staleProbeTimeout)
	if err == nil {
		conn.Close()
		return fmt.Errorf("%w: %s", ErrSocketInUse, path)
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}
	return nil
}
