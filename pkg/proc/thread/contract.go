package thread

import (
	"errors"
	"fmt"

	"github.com/go-delve/nativethread/pkg/logflags"
)

var (
	// ErrContractViolation is returned when a caller breaks the event
	// protocol, for example by delivering an unknown event kind.
	ErrContractViolation = errors.New("contract violation")

	// ErrThreadExited is returned by operations on a thread that exited.
	ErrThreadExited = errors.New("thread exited")
)

// contractViolation reports a broken protocol invariant. Builds with the
// nativethread_strict tag panic, other builds log the violation and
// return an error.
func contractViolation(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
	if strictContracts {
		panic(err)
	}
	logflags.ThreadLogger().Error(err)
	return err
}
