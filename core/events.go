package core

// events.go – the Event/Rent Scheduler (§4.F): deterministic, block-height
// indexed callbacks fired inside the block-commit bracket. Adapted from the
// teacher's event_management.go (same JSON-over-StateStore persistence
// shape) but split into the spec's two concrete kinds rather than one
// free-form Event record, since cyclic/one-shot firing order is itself part
// of the chain's determinism contract.

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EventHandler runs a scheduled event's payload against the state of the
// block currently being committed. It must be a pure function of (height,
// payload, state) — handlers mutate state inside the caller's already-open
// savepoint.
type EventHandler func(height uint64, key string, payload []byte, state *StateStore) error

// Scheduler holds the registered handler for each event kind and drives
// firing for a given block height, per §4.F / §5's ordering rule: cyclics
// fire before one-shots, each group ordered (ascending key).
type Scheduler struct {
	handlers map[string]EventHandler
}

// NewScheduler creates an empty Scheduler; RegisterHandler wires each kind
// before use.
func NewScheduler() *Scheduler {
	return &Scheduler{handlers: make(map[string]EventHandler)}
}

// RegisterHandler associates kind (e.g. "rent", "auction_stop") with the
// function that runs when one of its scheduled entries fires.
func (s *Scheduler) RegisterHandler(kind string, h EventHandler) {
	s.handlers[kind] = h
}

type cyclicEntry struct {
	Kind        string `json:"kind"`
	Period      uint64 `json:"period"`
	Key         string `json:"key"`
	StartHeight uint64 `json:"start_height"`
	Payload     []byte `json:"payload"`
}

type oneShotEntry struct {
	Kind    string `json:"kind"`
	Height  uint64 `json:"height"`
	Key     string `json:"key"`
	Payload []byte `json:"payload"`
}

func cyclicKey(period uint64, offset uint64, key string) string {
	return fmt.Sprintf("event_cyclic/%020d/%020d/%s", period, offset, key)
}

func cyclicPrefixForOffset(period, offset uint64) string {
	return fmt.Sprintf("event_cyclic/%020d/%020d/", period, offset)
}

func oneShotKey(height uint64, key string) string {
	return fmt.Sprintf("event_oneshot/%020d/%s", height, key)
}

func oneShotPrefixForHeight(height uint64) string {
	return fmt.Sprintf("event_oneshot/%020d/", height)
}

// ScheduleCyclic installs a recurring event, keyed by (period, offset) where
// offset = startHeight mod period, per §4.F.
func (s *Scheduler) ScheduleCyclic(state *StateStore, kind string, period, startHeight uint64, key string, payload []byte) error {
	if period == 0 {
		return NewErr(ErrInvalidParam, "cyclic event period must be > 0")
	}
	offset := startHeight % period
	e := cyclicEntry{Kind: kind, Period: period, Key: key, StartHeight: startHeight, Payload: payload}
	b, err := json.Marshal(e)
	if err != nil {
		return NewErr(ErrException, "marshal cyclic event: %v", err)
	}
	state.Set(cyclicKey(period, offset, key), b)
	return nil
}

// CancelCyclic removes a previously scheduled cyclic event. Re-arming a
// timer without cancelling the old one first would fire the handler twice,
// per §5's "cancelling a timer before re-arming is required" rule.
func (s *Scheduler) CancelCyclic(state *StateStore, period, startHeight uint64, key string) {
	offset := startHeight % period
	state.Delete(cyclicKey(period, offset, key))
}

// ScheduleOneShot installs a single-fire event at exactly height.
func (s *Scheduler) ScheduleOneShot(state *StateStore, kind string, height uint64, key string, payload []byte) error {
	e := oneShotEntry{Kind: kind, Height: height, Key: key, Payload: payload}
	b, err := json.Marshal(e)
	if err != nil {
		return NewErr(ErrException, "marshal one-shot event: %v", err)
	}
	state.Set(oneShotKey(height, key), b)
	return nil
}

// CancelOneShot removes a previously scheduled one-shot event before it
// fires.
func (s *Scheduler) CancelOneShot(state *StateStore, height uint64, key string) {
	state.Delete(oneShotKey(height, key))
}

// Fire runs every event due at height against state, in (cycle ascending,
// key ascending) order followed by one-shots, per §5. Cyclic entries are
// never deleted (they recur); one-shots are deleted once fired, even if
// their handler errors, since a misfire must be idempotent on retry rather
// than repeat forever.
func (s *Scheduler) Fire(height uint64, state *StateStore) []error {
	var errs []error

	// Cyclic entries: every period that evenly divides into candidate
	// offsets could have an entry due at this height. Rather than iterate
	// every period a priori, cyclic entries are stored under their own
	// (period, offset) prefix and scanned directly — cyclicPeriodsInUse
	// finds the distinct periods in use by scanning the stored keys.
	for _, period := range s.cyclicPeriodsInUse(state) {
		offset := height % period
		prefix := cyclicPrefixForOffset(period, offset)
		keys := state.PrefixKeys(prefix)
		sort.Strings(keys)
		for _, k := range keys {
			raw, ok := state.Get(k)
			if !ok {
				continue
			}
			var e cyclicEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				errs = append(errs, err)
				continue
			}
			h, ok := s.handlers[e.Kind]
			if !ok {
				continue
			}
			if err := h(height, e.Key, e.Payload, state); err != nil {
				errs = append(errs, err)
			}
		}
	}

	oneShotPrefix := oneShotPrefixForHeight(height)
	keys := state.PrefixKeys(oneShotPrefix)
	sort.Strings(keys)
	for _, k := range keys {
		raw, ok := state.Get(k)
		if !ok {
			continue
		}
		var e oneShotEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			errs = append(errs, err)
			continue
		}
		state.Delete(k)
		h, ok := s.handlers[e.Kind]
		if !ok {
			continue
		}
		if err := h(height, e.Key, e.Payload, state); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// cyclicPeriodKeyPrefix is the namespace root under which every cyclic
// event lives, regardless of period.
const cyclicPeriodKeyPrefix = "event_cyclic/"

// cyclicPeriodsInUse discovers the distinct periods currently scheduled by
// scanning key prefixes; kept cheap by the fact that the chain has very few
// distinct periods in practice (rent_cycle, and any custom extension
// periods), not one per scheduled entry.
func (s *Scheduler) cyclicPeriodsInUse(state *StateStore) []uint64 {
	keys := state.PrefixKeys(cyclicPeriodKeyPrefix)
	seen := make(map[uint64]struct{})
	var out []uint64
	for _, k := range keys {
		var period uint64
		if _, err := fmt.Sscanf(k, cyclicPeriodKeyPrefix+"%020d/", &period); err != nil {
			continue
		}
		if _, ok := seen[period]; !ok {
			seen[period] = struct{}{}
			out = append(out, period)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
