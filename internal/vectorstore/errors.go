package vectorstore

import (
	"fmt"
)

// Kind classifies a vectorstore error so callers can branch on failure mode
// without parsing messages.
type Kind int

const (
	KindConfig Kind = iota
	KindIO
	KindEmbedding
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindEmbedding:
		return "embedding"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the vector store component's single error type. Every exported
// operation that fails returns one of these (or wraps one), carrying the
// operation name and the underlying cause so log lines never show a bare
// library error code.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vectorstore: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("vectorstore: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is comparisons against the package sentinels below by
// matching on Kind rather than identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// Sentinel errors for errors.Is comparisons where callers only care about
// the kind, e.g. errors.Is(err, ErrNotFound).
var (
	ErrConfig    = &Error{Kind: KindConfig}
	ErrIO        = &Error{Kind: KindIO}
	ErrEmbedding = &Error{Kind: KindEmbedding}
	ErrNotFound  = &Error{Kind: KindNotFound}
	ErrInternal  = &Error{Kind: KindInternal}
)

// ErrActorClosed is returned by the Embedded-ANN VSP when a message is sent
// to an actor whose goroutine has already shut down.
var ErrActorClosed = newErr(KindInternal, "actor", "actor closed", nil)
