package lifecycle

import (
	"errors"

	"github.com/featherline/pigeonhole/internal/store"
)

var (
	// ErrNotFound means the id is absent from the directory an operation
	// expected it in, usually because another actor already transitioned
	// the message. Callers treat it as "not my job", not a failure.
	ErrNotFound = store.ErrNotFound

	// ErrMalformed means a record's content does not parse as JSON.
	// Single-record operations surface it; sweeps skip and log.
	ErrMalformed = errors.New("lifecycle: malformed record")

	// ErrDuplicate means an enqueue hit an id that already exists somewhere
	// in the tree. Ids are producer-generated and globally unique, so a
	// collision is always a producer bug; failing loudly is the safety net.
	ErrDuplicate = errors.New("lifecycle: duplicate id")

	// ErrInvalidReply means a reply failed validation (missing chat_id,
	// empty text, unroutable source).
	ErrInvalidReply = errors.New("lifecycle: invalid reply")
)
