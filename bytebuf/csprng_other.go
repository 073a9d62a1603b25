//go:build !linux

package bytebuf

import (
	"crypto/rand"

	"github.com/oxsomi/oxc3core/oxerr"
)

// csprngFill is the non-Linux fallback (darwin, windows, etc). It goes
// through the Go runtime's own platform RNG plumbing, which on darwin calls
// SecRandomCopyBytes-equivalent arc4random buffers and on windows calls
// BCryptGenRandom -- the same two system APIs
// src/types/container/platforms/{unix,windows}/*buffer_random.c target,
// reached here through crypto/rand instead of re-implementing the cgo calls.
func csprngFill(dst []byte) error {
	n, err := rand.Read(dst)
	if err != nil {
		return oxerr.Wrap(oxerr.PlatformError, "csprngFill", err)
	}
	if n != len(dst) {
		return oxerr.New(oxerr.PlatformError, "csprngFill", "short read from OS RNG")
	}
	return nil
}
