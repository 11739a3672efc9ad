package driver

import (
	"github.com/turbofish-org/orga/pkg/txcontext"
	"github.com/turbofish-org/orga/pkg/types"
)

// Application is the pure transition logic the engine drives. Execute must
// be deterministic: no wall-clock reads, no randomness, no goroutine-local
// state.
type Application interface {
	// Execute runs payload against handle, returning the DeliverTx/CheckTx
	// result bytes and response code. A non-nil err aborts the transition:
	// its delta is discarded and code/result still travel back to the
	// caller via the ExecError::Application taxonomy entry.
	Execute(handle *txcontext.Context, kind types.Kind, payload []byte) (result []byte, code uint32, err error)
	// KeyHint returns the a-priori (read, write) key-sets for payload, or
	// nil to run the transition in discovery mode.
	KeyHint(kind types.Kind, payload []byte) *types.KeyHint
}
