//go:build unix

package counters

import "golang.org/x/sys/unix"

// maxSocketPath is the size of sun_path; the kernel also wants room for the
// terminating zero.
var maxSocketPath = len(unix.RawSockaddrUnix{}.Path) - 1
