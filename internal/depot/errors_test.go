package depot

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestE(t *testing.T) {
	t.Run("formats op, ident, kind and cause", func(t *testing.T) {
		err := E(Op("depot.Commit"), IOError, "alice/notes", fs.ErrPermission)
		want := "depot.Commit: alice/notes: i/o error: permission denied"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
		if !errors.Is(err, fs.ErrPermission) {
			t.Error("errors.Is(err, fs.ErrPermission) = false")
		}
	})

	t.Run("inherits kind of wrapped error", func(t *testing.T) {
		inner := E(Op("inner"), NotFound, "c1")
		outer := E(Op("outer"), inner)
		if KindOf(outer) != NotFound {
			t.Errorf("KindOf() = %v, want %v", KindOf(outer), NotFound)
		}
	})

	t.Run("panics on unknown argument", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("E() did not panic")
			}
		}()
		_ = E(42)
	})
}

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", E(NotFound, "x"), ErrNotFound, true},
		{"different kind", E(IOError, "x"), ErrNotFound, false},
		{"wrapped by fmt", fmt.Errorf("ctx: %w", E(RemoteError)), ErrRemote, true},
		{"partial", E(PartialFailure, errors.Join(errors.New("a"), errors.New("b"))), ErrPartialFailure, true},
		{"plain error", errors.New("x"), ErrInvalidArgument, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != Other {
		t.Errorf("KindOf(plain) = %v, want Other", got)
	}
	if got := KindOf(E(Op("x"), E(InvalidArgument))); got != InvalidArgument {
		t.Errorf("KindOf(nested) = %v, want InvalidArgument", got)
	}
	if got := KindOf(nil); got != Other {
		t.Errorf("KindOf(nil) = %v, want Other", got)
	}
}
