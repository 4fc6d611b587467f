package domain

import "fmt"

// ContentKind distinguishes the two content bundles a session needs.
type ContentKind int

const (
	ContentMap ContentKind = iota
	ContentMod
)

func (k ContentKind) String() string {
	switch k {
	case ContentMap:
		return "map"
	case ContentMod:
		return "mod"
	default:
		return fmt.Sprintf("content(%d)", int(k))
	}
}

// ContentReference names a map or mod, optionally with a checksum negotiated
// out of band. A non-zero TrustedChecksum is authoritative.
type ContentReference struct {
	Name            string
	TrustedChecksum uint32
}

// Trusted reports whether the reference carries an authoritative checksum.
func (r ContentReference) Trusted() bool {
	return r.TrustedChecksum != 0
}
