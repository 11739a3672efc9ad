package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/turbofish-org/orga/pkg/log"
	"github.com/turbofish-org/orga/pkg/metrics"
	"github.com/turbofish-org/orga/pkg/store"
	"github.com/turbofish-org/orga/pkg/txcontext"
	"github.com/turbofish-org/orga/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Executor runs one transition's application logic against tc. Output and
// code are application-defined DeliverTx result fields; a non-nil err
// aborts the transition and discards its delta.
type Executor func(tc *txcontext.Context, t types.Transition) (output []byte, code uint32, err error)

// Config holds the scheduler's tunables.
type Config struct {
	WorkerCount                int
	EnableAxiomA3              bool
	EnableSpeculativeDiscovery bool
	BloomBits                  uint64
	BloomHashes                uint64

	// OnReschedule, when non-nil, is invoked once per transition whose
	// attempt was discarded and requeued, with the reason it lost its
	// epoch. The driver hangs its event feed off this.
	OnReschedule func(id types.Fingerprint, reason string)
}

// Scheduler is the L3 dispatcher. One Scheduler runs one block at a time;
// RunBlock is not safe to call concurrently on the same Scheduler.
type Scheduler struct {
	cfg    Config
	logger zerolog.Logger
	slots  []*slot
}

// New builds a Scheduler with cfg.WorkerCount virtual workers.
func New(cfg Config) *Scheduler {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &Scheduler{
		cfg:    cfg,
		logger: log.WithComponent("scheduler"),
		slots:  newSlots(cfg.WorkerCount),
	}
}

func (s *Scheduler) idleSlot() *slot {
	for _, sl := range s.slots {
		if !sl.busy {
			return sl
		}
	}
	return nil
}

func (s *Scheduler) releaseAll() {
	for _, sl := range s.slots {
		sl.release()
	}
}

type job struct {
	index       int
	t           types.Transition
	ctx         *txcontext.Context
	out         []byte
	code        uint32
	err         error
	speculative bool
}

// reschedule requeues j for the next epoch. A job whose declared hint was
// wrong (drift, or a speculative job that never had one) is requeued with
// its observed sets so the next sweep admits it against accurate
// information; a job whose hint was accurate but which lost its epoch to an
// earlier rescheduled transition keeps the hint it had.
func (s *Scheduler) reschedule(work []types.Transition, j *job, observedHint bool, reason string, epoch int) {
	j.ctx.Discard()
	hint := j.t.Hint
	if observedHint {
		hint = &types.KeyHint{Reads: j.ctx.ReadSet(), Writes: j.ctx.WriteSet()}
	}
	work[j.index] = types.Transition{
		ID:      j.t.ID,
		Payload: j.t.Payload,
		Kind:    j.t.Kind,
		Gas:     j.t.Gas,
		Hint:    hint,
	}
	s.logger.Warn().
		Str("transition", j.t.ID.String()).
		Int("epoch", epoch).
		Str("reason", reason).
		Msg("discarding delta and rescheduling")
	metrics.ReschedulesTotal.WithLabelValues(reason).Inc()
	if s.cfg.OnReschedule != nil {
		s.cfg.OnReschedule(j.t.ID, reason)
	}
}

// RunBlock executes transitions, already in canonical order, against
// parent, dispatching them across the worker pool under axioms A1-A4. It
// returns one ExecResult per transition, indexed the same as the input
// slice. Deltas are merged into parent strictly in canonical order at each
// epoch boundary; parent is never mutated by more than one goroutine at a
// time.
func (s *Scheduler) RunBlock(ctx context.Context, parent store.Store, transitions []types.Transition, exec Executor) ([]types.ExecResult, error) {
	results := make([]types.ExecResult, len(transitions))
	work := append([]types.Transition(nil), transitions...)

	pending := make([]int, len(transitions))
	for i := range transitions {
		pending[i] = i
	}

	epoch := 0
	for len(pending) > 0 {
		// Cancellation lands only here, between epochs; a dispatched
		// transition always runs to its merge barrier. The caller throws
		// the block's buffered store away on error.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scheduler: batch cancelled before epoch %d: %w", epoch+1, err)
		}
		epoch++
		s.releaseAll()
		timer := metrics.NewTimer()

		var waitQueue []int
		var waitViews []hintView
		var epochJobs []*job

		for _, idx := range pending {
			t := work[idx]
			cand := viewOf(t.Hint)
			keys := cand.reads.Union(cand.writes)

			candFilter, err := buildFilter(s.cfg.BloomBits, s.cfg.BloomHashes, keys)
			if err != nil {
				return nil, fmt.Errorf("scheduler: build bloom filter: %w", err)
			}

			// A wildcard candidate (discovery mode, nil hint) ordinarily
			// conflicts with everything. With speculative discovery
			// enabled it is instead admitted optimistically; the actual
			// observed read/write sets are cross-checked against its
			// epoch-mates once execution completes, below.
			speculative := cand.wildcard && s.cfg.EnableSpeculativeDiscovery

			// A transition already on the wait-queue is canonically
			// earlier than this candidate and will not merge until a later
			// epoch. Admitting a candidate that touches any of its keys
			// would merge them in the wrong order, so the candidate must
			// be fully clear of every waiter. A3 does not apply here:
			// ordered merging cannot span an epoch boundary.
			conflict := false
			for _, wv := range waitViews {
				if classify(cand, wv, false) != verdictClear {
					conflict = true
					break
				}
			}

			if !conflict && !speculative {
				for _, sl := range s.slots {
					if !sl.busy {
						continue
					}
					if !mayIntersect(sl.filter, keys) && !sl.hint.wildcard && !cand.wildcard {
						continue
					}
					if classify(cand, sl.hint, s.cfg.EnableAxiomA3) == verdictConflict {
						conflict = true
						break
					}
				}
			}

			free := s.idleSlot()
			if conflict || free == nil {
				waitQueue = append(waitQueue, idx)
				waitViews = append(waitViews, cand)
				continue
			}

			free.seed(cand, candFilter)
			epochJobs = append(epochJobs, &job{
				index:       idx,
				t:           t,
				ctx:         txcontext.New(parent, t.Hint, t.Gas),
				speculative: speculative,
			})
		}

		if len(epochJobs) == 0 {
			return nil, fmt.Errorf("scheduler: epoch %d deadlocked: %d transitions waiting, no idle workers", epoch, len(waitQueue))
		}

		metrics.BusyWorkers.Set(float64(len(epochJobs)))
		g, _ := errgroup.WithContext(ctx)
		for _, j := range epochJobs {
			j := j
			g.Go(func() error {
				out, code, err := exec(j.ctx, j.t)
				j.out, j.code, j.err = out, code, err
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("scheduler: epoch %d: %w", epoch, err)
		}
		metrics.BusyWorkers.Set(0)

		sort.Slice(epochJobs, func(a, b int) bool { return epochJobs[a].index < epochJobs[b].index })

		// Merge phase: walk the epoch's jobs in canonical order, deciding
		// per job whether its delta may merge. A job is discarded and
		// requeued when (a) it touches keys of a canonically earlier job
		// already discarded this epoch, whose writes now land in a later
		// epoch; (b) it was admitted speculatively (or ran alongside a
		// speculative job) and the observed sets reveal a real overlap the
		// hint check never saw; or (c) its own observed sets escaped its
		// declared hint, invalidating the admission decision made for it.
		type mergedView struct {
			view        hintView
			speculative bool
		}
		var rescheduled []int
		var blocked []hintView
		var merged []mergedView

		for _, j := range epochJobs {
			reads, writes := j.ctx.ReadSet(), j.ctx.WriteSet()
			ov := hintView{reads: reads, writes: writes}

			lost := false
			var reason string
			for _, bv := range blocked {
				if classify(ov, bv, false) != verdictClear {
					lost, reason = true, "ordered_after_rescheduled"
					break
				}
			}
			if !lost {
				for _, mv := range merged {
					if (j.speculative || mv.speculative) && classify(ov, mv.view, false) != verdictClear {
						lost, reason = true, "speculative_conflict"
						break
					}
				}
			}
			drifted := j.ctx.Drift()
			if !lost && drifted {
				lost, reason = true, "key_hint_drift"
			}

			if lost {
				s.reschedule(work, j, drifted || j.speculative, reason, epoch)
				blocked = append(blocked, ov)
				rescheduled = append(rescheduled, j.index)
				continue
			}

			var delta types.WriteSet
			if j.err == nil {
				delta = j.ctx.Delta()
				if err := j.ctx.Commit(); err != nil {
					return nil, fmt.Errorf("scheduler: merge transition %s: %w", j.t.ID, err)
				}
				merged = append(merged, mergedView{view: ov, speculative: j.speculative})
				metrics.TransitionsTotal.WithLabelValues(string(j.t.Kind), "ok").Inc()
			} else {
				j.ctx.Discard()
				metrics.TransitionsTotal.WithLabelValues(string(j.t.Kind), "failed").Inc()
			}
			metrics.GasConsumedTotal.Add(float64(j.ctx.GasUsed()))

			results[j.index] = types.ExecResult{
				ReadSet:  reads,
				WriteSet: writes,
				Observed: j.ctx.ReadObservations(),
				Delta:    delta,
				Output:   j.out,
				Err:      j.err,
				Code:     j.code,
				GasUsed:  j.ctx.GasUsed(),
			}
		}

		s.releaseAll()
		timer.ObserveDuration(metrics.EpochDuration)

		next := append([]int{}, waitQueue...)
		next = append(next, rescheduled...)
		sort.Ints(next)
		pending = next
	}

	return results, nil
}
