// Package ledger is a minimal account-balance Application, the reference
// transition logic cmd/orga drives and the end-to-end scenario tests
// exercise. It is not part of the engine's core subsystems; it exists to
// give them something concrete to run.
package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/turbofish-org/orga/pkg/engineerr"
	"github.com/turbofish-org/orga/pkg/txcontext"
	"github.com/turbofish-org/orga/pkg/types"
)

const balancePrefix = "balance:"

func balanceKey(account string) []byte {
	return []byte(balancePrefix + account)
}

// getter/putter narrow txcontext.Context and store.Store down to the two
// calls the balance helpers need, so they work against either.
type getter interface {
	Get(key []byte) (value []byte, ok bool, err error)
}

type putter interface {
	Put(key, value []byte) error
}

// Transfer is the payload of a types.KindTx transition: move Amount from
// From's balance to To's. Amount may be zero, a legal no-op that still
// claims both accounts in its key-set.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// EncodeTransfer and DecodeTransfer give Transfer a byte-exact round trip:
// encoding/json over a fixed-field struct provides that for free.
func EncodeTransfer(t Transfer) []byte {
	b, _ := json.Marshal(t)
	return b
}

func DecodeTransfer(payload []byte) (Transfer, error) {
	var t Transfer
	if err := json.Unmarshal(payload, &t); err != nil {
		return Transfer{}, fmt.Errorf("ledger: decode transfer: %w", err)
	}
	return t, nil
}

// App implements driver.Application over account balances keyed by name.
// Deliberately the simplest state machine that exercises the scheduling
// axioms transfers can reach: disjoint transfers (A1) and a dependent chain
// through a shared account (A4). Every transfer reads and writes both of
// its accounts, so two transfers sharing an account always overlap on a
// read and never fall under A3.
type App struct{}

// New returns a ledger App. It carries no state of its own; all state lives
// in the store handle Execute is given.
func New() *App { return &App{} }

// Execute runs one transition's logic against handle. BeginBlock and
// EndBlock are no-ops for this application: it has no per-block bookkeeping.
func (a *App) Execute(handle *txcontext.Context, kind types.Kind, payload []byte) ([]byte, uint32, error) {
	switch kind {
	case types.KindBeginBlock, types.KindEndBlock:
		return nil, 0, nil
	case types.KindTx:
		return a.transfer(handle, payload)
	default:
		return nil, 1, fmt.Errorf("ledger: unknown transition kind %q", kind)
	}
}

func (a *App) transfer(handle *txcontext.Context, payload []byte) ([]byte, uint32, error) {
	t, err := DecodeTransfer(payload)
	if err != nil {
		return []byte(err.Error()), 1, err
	}
	if t.From == "" || t.To == "" {
		err := fmt.Errorf("%w: from/to required", engineerr.ErrApplication)
		return []byte(err.Error()), 1, err
	}
	if t.Amount < 0 {
		err := fmt.Errorf("%w: amount must be non-negative", engineerr.ErrApplication)
		return []byte(err.Error()), 1, err
	}

	from, err := getBalance(handle, t.From)
	if err != nil {
		return nil, 1, err
	}
	if from < t.Amount {
		err := fmt.Errorf("%w: %s has %d, needs %d", engineerr.ErrApplication, t.From, from, t.Amount)
		return []byte(err.Error()), 1, err
	}
	to, err := getBalance(handle, t.To)
	if err != nil {
		return nil, 1, err
	}

	if err := putBalance(handle, t.From, from-t.Amount); err != nil {
		return nil, 1, err
	}
	if err := putBalance(handle, t.To, to+t.Amount); err != nil {
		return nil, 1, err
	}
	return []byte(fmt.Sprintf("%s -> %s: %d", t.From, t.To, t.Amount)), 0, nil
}

// KeyHint parses payload itself, since the application always knows its own
// transition shapes, and returns the concrete read/write sets the
// scheduler uses to admit this transition without discovery. A malformed
// payload falls back to discovery mode (nil) rather than guessing.
func (a *App) KeyHint(kind types.Kind, payload []byte) *types.KeyHint {
	switch kind {
	case types.KindBeginBlock, types.KindEndBlock:
		return &types.KeyHint{Reads: types.NewKeySet(), Writes: types.NewKeySet()}
	case types.KindTx:
		t, err := DecodeTransfer(payload)
		if err != nil {
			return nil
		}
		keys := types.NewKeySet(balanceKey(t.From), balanceKey(t.To))
		return &types.KeyHint{Reads: keys, Writes: keys}
	default:
		return nil
	}
}

// Balance reads account's balance directly from any store handle, for
// Query paths and tests.
func Balance(s getter, account string) (int64, error) {
	return getBalance(s, account)
}

func getBalance(h getter, account string) (int64, error) {
	v, ok, err := h.Get(balanceKey(account))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ledger: corrupt balance for %q: %w", account, err)
	}
	return n, nil
}

func putBalance(h putter, account string, amount int64) error {
	return h.Put(balanceKey(account), []byte(strconv.FormatInt(amount, 10)))
}
