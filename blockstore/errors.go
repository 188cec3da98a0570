package blockstore

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the class of a StoreError, independent of the
// underlying cause. Callers compare against the exported Is* helpers or
// against Kind directly; they never need to import pkg/errors themselves.
type Kind int

const (
	// KindBlockNotFound: id absent from both tiers.
	KindBlockNotFound Kind = iota
	// KindBlockAlreadyPresent: id present in either tier on insert.
	KindBlockAlreadyPresent
	// KindMissingParent: parent absent and not the root sentinel.
	KindMissingParent
	// KindBranchNotFound: prune target is not a tip.
	KindBranchNotFound
	// KindCannotIterate: distance exceeds chain length.
	KindCannotIterate
	// KindOpen: directory creation or engine open failed.
	KindOpen
	// KindBackend: wraps an underlying engine failure verbatim.
	KindBackend
	// KindInconsistent: a detected invariant violation. Not expected
	// under correct use; see InconsistentKind for the specific subkind.
	KindInconsistent
)

func (k Kind) String() string {
	switch k {
	case KindBlockNotFound:
		return "BlockNotFound"
	case KindBlockAlreadyPresent:
		return "BlockAlreadyPresent"
	case KindMissingParent:
		return "MissingParent"
	case KindBranchNotFound:
		return "BranchNotFound"
	case KindCannotIterate:
		return "CannotIterate"
	case KindOpen:
		return "Open"
	case KindBackend:
		return "Backend"
	case KindInconsistent:
		return "Inconsistent"
	default:
		return "Unknown"
	}
}

// InconsistentKind further classifies a KindInconsistent error.
type InconsistentKind int

const (
	InconsistentBlockInfo InconsistentKind = iota
	InconsistentChainLength
	InconsistentMissingParentBlock
	InconsistentMissingPermanentBlock
	InconsistentTaggedBlock
)

func (k InconsistentKind) String() string {
	switch k {
	case InconsistentBlockInfo:
		return "BlockInfo"
	case InconsistentChainLength:
		return "ChainLength"
	case InconsistentMissingParentBlock:
		return "MissingParentBlock"
	case InconsistentMissingPermanentBlock:
		return "MissingPermanentBlock"
	case InconsistentTaggedBlock:
		return "TaggedBlock"
	default:
		return "Unknown"
	}
}

// StoreError is the only error type this package returns. Kind carries
// the classification spec.md §7 defines; Err (when non-nil) is the
// wrapped underlying error, recoverable with errors.Cause for
// diagnostics.
type StoreError struct {
	Kind             Kind
	InconsistentKind InconsistentKind
	Err              error
}

func (e *StoreError) Error() string {
	if e.Kind == KindInconsistent {
		if e.Err != nil {
			return fmt.Sprintf("blockstore: inconsistent(%s): %v", e.InconsistentKind, e.Err)
		}
		return fmt.Sprintf("blockstore: inconsistent(%s)", e.InconsistentKind)
	}
	if e.Err != nil {
		return fmt.Sprintf("blockstore: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("blockstore: %s", e.Kind)
}

// Unwrap exposes the wrapped error to errors.Is/errors.As.
func (e *StoreError) Unwrap() error { return e.Err }

// Cause exposes the underlying error to github.com/pkg/errors.Cause,
// matching the convention the rest of this codebase's error wrapping
// relies on.
func (e *StoreError) Cause() error { return e.Err }

func newErr(kind Kind, cause error) *StoreError {
	return &StoreError{Kind: kind, Err: cause}
}

func newInconsistent(kind InconsistentKind, cause error) *StoreError {
	return &StoreError{Kind: KindInconsistent, InconsistentKind: kind, Err: cause}
}

// IsKind reports whether err is a *StoreError of the given Kind.
func IsKind(err error, kind Kind) bool {
	se, ok := err.(*StoreError)
	return ok && se.Kind == kind
}

// wrapBackend converts an arbitrary engine/filesystem error into a
// KindBackend StoreError, preserving the cause via pkg/errors so %+v
// formatting still shows a stack trace at the original failure site.
func wrapBackend(err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*StoreError); ok {
		return se
	}
	return newErr(KindBackend, errors.WithStack(err))
}
