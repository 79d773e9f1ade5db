// Package kerr defines the kernel's error taxonomy.
//
// Kinds, not types: allocator exhaustion, verification failures, and
// filesystem errors are each a small enumerated Kind so callers can
// switch on cause instead of parsing strings.
package kerr

import "errors"

// Kind enumerates the kernel's error categories.
type Kind int

const (
	_ Kind = iota
	// OutOfMemory covers allocator exhaustion or alignment-too-large.
	OutOfMemory
	// VerificationFailed covers APIC not present, I/O APIC model
	// mismatch, or missing CPU feature.
	VerificationFailed
	// NotSupported covers operations not implemented by a backend.
	NotSupported
	// SerialFaulty covers loopback byte mismatch at COM1 init.
	SerialFaulty

	// BadPath, NoEntry, NoMount, MissingInode, WrongInode,
	// NotDirectory, Exists, and Unimplemented are the FS variants.
	BadPath
	NoEntry
	NoMount
	MissingInode
	WrongInode
	NotDirectory
	Exists
	Unimplemented
)

var names = map[Kind]string{
	OutOfMemory:         "out of memory",
	VerificationFailed:  "verification failed",
	NotSupported:        "not supported",
	SerialFaulty:        "serial faulty",
	BadPath:             "bad path",
	NoEntry:             "no entry",
	NoMount:             "no mount",
	MissingInode:        "missing inode",
	WrongInode:          "wrong inode",
	NotDirectory:        "not a directory",
	Exists:              "already exists",
	Unimplemented:       "unimplemented",
}

// Error is a kernel error carrying a Kind and optional context.
type Error struct {
	K       Kind
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return names[e.K]
	}
	return names[e.K] + ": " + e.Context
}

// New returns an Error of the given kind with context.
func New(k Kind, context string) *Error {
	return &Error{K: k, Context: context}
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.K == k
	}
	return false
}
