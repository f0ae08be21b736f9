package depot

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the error type returned across the service boundary. It carries
// enough classification (Kind) and context (Ident) for callers such as the
// HTTP layer to translate it into a status code.
type Error struct {
	// Op is the operation being performed, e.g. "depot.Commit".
	Op Op

	// Kind is the class of failure.
	Kind Kind

	// Ident names the offending object: "owner/repo", a commit id, an object key.
	Ident string

	// Err is the wrapped cause, if any.
	Err error
}

// Op describes the operation being performed.
type Op string

// Kind describes the class of errors encountered.
type Kind int

const (
	Other           Kind = iota // Unclassified.
	InvalidArgument             // Missing or malformed owner, repository or identifier.
	NotFound                    // Commit, staging area or remote prefix does not exist.
	IOError                     // Local filesystem failure.
	RemoteError                 // Object store call failure.
	PartialFailure              // Some items of a multi-item operation failed.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case InvalidArgument:
		return "invalid argument"
	case NotFound:
		return "not found"
	case IOError:
		return "i/o error"
	case RemoteError:
		return "remote error"
	case PartialFailure:
		return "partial failure"
	}
	return "unknown kind"
}

// Sentinels for errors.Is checks; they match any *Error of the same Kind.
var (
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrNotFound        = &Error{Kind: NotFound}
	ErrIO              = &Error{Kind: IOError}
	ErrRemote          = &Error{Kind: RemoteError}
	ErrPartialFailure  = &Error{Kind: PartialFailure}
)

// ErrObjectNotFound is returned by ObjectStore implementations when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

var (
	errMissing   = errors.New("value is required")
	errMalformed = errors.New("value must be a single path segment")
	errReserved  = errors.New("name is reserved for commit metadata")
	errTempName  = errors.New("name uses the temporary file prefix")

	errAllEntriesFailed = errors.New("no archive entry could be fetched")
)

func (e *Error) Error() string {
	b := new(strings.Builder)

	if e.Op != "" {
		b.WriteString(string(e.Op))
	}
	if e.Ident != "" {
		pad(b, ": ")
		b.WriteString(e.Ident)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

func pad(b *strings.Builder, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so that errors.Is(err, ErrNotFound) works for any NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind != Other && e.Kind == t.Kind
}

// E builds an *Error from its arguments. Accepted argument types are Op,
// Kind, error, and string (used as Ident).
func E(args ...any) error {
	if len(args) == 0 {
		panic("depot.E must have at least one argument")
	}

	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case string:
			e.Ident = a
		default:
			panic(fmt.Errorf("unknown type %T for value %v in call to depot.E", a, a))
		}
	}

	// Without an explicit kind, keep the wrapped error's classification.
	if inner, ok := e.Err.(*Error); ok && e.Kind == Other {
		e.Kind = inner.Kind
	}

	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind != Other {
			return e.Kind
		}
		return KindOf(e.Err)
	}
	return Other
}

func repoIdent(owner, repo string) string {
	return owner + "/" + repo
}
