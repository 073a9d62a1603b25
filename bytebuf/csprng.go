package bytebuf

import "github.com/oxsomi/oxc3core/oxerr"

// CSPRNG fills the buffer with cryptographically secure random bytes using
// the platform's preferred source (getrandom on Linux, crypto/rand on every
// other platform -- see csprng_unix.go / csprng_other.go). It fails rather than
// blocking indefinitely if the OS source is exhausted or unavailable, and it
// refuses to write through a const reference or an empty buffer.
func (b *Buffer) CSPRNG() error {
	if b.kind == Const {
		return oxerr.Wrap(oxerr.ConstData, "Buffer.CSPRNG", nil)
	}
	if len(b.data) == 0 {
		return oxerr.New(oxerr.InvalidParameter, "Buffer.CSPRNG", "buffer is empty")
	}
	return csprngFill(b.data)
}
