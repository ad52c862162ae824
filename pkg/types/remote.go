package types

import "context"

// Revision is an opaque token identifying one exact version of a stored
// blob, such as a content hash. The empty Revision means "absent": Put with
// it creates the blob and conflicts if one already exists.
type Revision string

// AbsentRevision is the token for a path that holds no blob.
const AbsentRevision Revision = ""

// IsAbsent reports whether r is the absent token.
func (r Revision) IsAbsent() bool {
	return r == AbsentRevision
}

// String returns a short form suitable for logs.
func (r Revision) String() string {
	if r.IsAbsent() {
		return "<absent>"
	}
	if len(r) > 12 {
		return string(r[:12])
	}
	return string(r)
}

// RemoteStore is a revisioned blob endpoint. It owns no domain state.
//
// Get returns the blob and its revision, or an error wrapping
// ErrPathNotFound when the path is empty.
//
// Put stores content only if the current revision equals expected, and
// returns the new revision. A stale expected revision yields a
// *ConflictError; network or availability failures yield a
// *TransportError. There is no unconditional overwrite.
type RemoteStore interface {
	Get(ctx context.Context, path string) ([]byte, Revision, error)
	Put(ctx context.Context, path string, content []byte, expected Revision) (Revision, error)
}
