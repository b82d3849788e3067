package core

// replay.go – rebuilding a live StateStore from a ChainStore's WAL at
// startup, by re-running VerifyBlock over every sealed block from genesis.
// Grounded on the teacher's ledger.go RebuildChain, which resets and
// replays a block slice after fork recovery; here the same replay serves
// normal node startup, since StateStore itself is never persisted —
// ChainStore's block log is the only durable record.

// RebuildState replays every block held by cs, in height order, against a
// freshly created StateStore seeded with alloc, returning the resulting tip
// state and the hash of the last block applied (the zero Hash if cs is
// empty). It fails closed: any block that does not re-verify under
// group/sched aborts the rebuild, since a divergent replay means the WAL
// itself is corrupt or alloc no longer matches the chain that produced it.
func RebuildState(cs *ChainStore, alloc GenesisAlloc, group MinerGroup, sched *Scheduler) (*StateStore, Hash, error) {
	state := NewStateStore(nil)
	if err := ApplyGenesisAlloc(state, alloc); err != nil {
		return nil, Hash{}, err
	}
	prevHash := Hash{}
	tip := cs.Tip()
	if tip == nil {
		return state, prevHash, nil
	}
	for height := uint64(0); height <= tip.Header.Height; height++ {
		blk, err := cs.ByHeight(height)
		if err != nil {
			return nil, Hash{}, NewErr(ErrException, "replay: missing block %d: %v", height, err)
		}
		next, _, err := VerifyBlock(state, prevHash, blk, group, sched)
		if err != nil {
			return nil, Hash{}, NewErr(ErrException, "replay: block %d: %v", height, err)
		}
		state = next
		prevHash = blk.Header.Hash()
	}
	return state, prevHash, nil
}
