//go:build linux

package bytebuf

import (
	"golang.org/x/sys/unix"

	"github.com/oxsomi/oxc3core/oxerr"
)

// csprngFill mirrors src/types/container/platforms/unix/ubuffer_random.c:
// getrandom(2) on Linux, non-blocking so it fails rather than stalling if
// the entropy pool isn't seeded yet.
func csprngFill(dst []byte) error {
	n, err := unix.Getrandom(dst, unix.GRND_NONBLOCK)
	if err != nil {
		return oxerr.Wrap(oxerr.PlatformError, "csprngFill", err)
	}
	if n != len(dst) {
		return oxerr.New(oxerr.PlatformError, "csprngFill", "short read from getrandom")
	}
	return nil
}
