package mailbox

import (
	"errors"
	"fmt"
)

// Op names the transport stage an error came from.
type Op string

const (
	OpConnect Op = "connect"
	OpAuth    Op = "auth"
	OpSelect  Op = "folder-select"
	OpSearch  Op = "search"
	OpFetch   Op = "fetch"
	OpStore   Op = "store"
)

// OpError records which stage of a mailbox operation failed and against
// what target (address, folder, UID or sender).
type OpError struct {
	Op     Op
	Target string
	Err    error
}

func (e *OpError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Target, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// OpOf returns the stage recorded in err's chain, or "" if there is none.
func OpOf(err error) Op {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Op
	}
	return ""
}

// IsAuthError reports whether err (or any error in its chain) is an
// authentication failure.
func IsAuthError(err error) bool {
	return OpOf(err) == OpAuth
}

// Wrap tags err with op unless it already carries a stage, so the
// innermost stage wins when errors cross package boundaries.
func Wrap(op Op, target string, err error) error {
	if err == nil {
		return nil
	}
	if OpOf(err) != "" {
		return err
	}
	return &OpError{Op: op, Target: target, Err: err}
}
