package core

// bft_verify.go – the checks an importing node runs on a block it did not
// itself propose: chain continuity, execution determinism (replay and
// compare state_root/tx_root), and quorum signature verification (§4.G).

// VerifyBlock replays block against a state clone seeded from the node's
// current tip and checks the block's declared roots and miner-group
// signatures. On success it returns the resulting StateStore (not yet
// applied to the live tip — callers decide when to commit it) and the
// block's receipts.
func VerifyBlock(tipState *StateStore, prevHash Hash, block *Block, group MinerGroup, sched *Scheduler) (*StateStore, []*Receipt, error) {
	if block.Header.PrevHash != prevHash {
		return nil, nil, NewErr(ErrBlockVerifyFailed, "prev_hash mismatch")
	}
	threshold := QuorumThreshold(len(group.Addresses))
	if err := MinerGroupSignatureOK(block.Sigs, block.Header.Hash(), group.Addresses, group.Keys, threshold); err != nil {
		return nil, nil, NewErr(ErrBlockVerifyFailed, "%v", err)
	}
	if got := TxRoot(block.Txs); got != block.Header.TxRoot {
		return nil, nil, NewErr(ErrBlockVerifyFailed, "tx_root mismatch")
	}

	work := tipState.Clone()
	ctx := &ExecContext{State: work, Scheduler: sched, Height: block.Header.Height, Now: block.Header.Timestamp, Miners: group.Addresses}
	var receipts []*Receipt
	for _, tx := range block.Txs {
		if err := VerifyTransactionSignature(tx); err != nil {
			return nil, nil, NewErr(ErrBlockVerifyFailed, "tx %s: %v", tx.Hash(), err)
		}
		r, err := Execute(ctx, tx)
		if err != nil {
			return nil, nil, NewErr(ErrBlockVerifyFailed, "execute tx %s: %v", tx.Hash(), err)
		}
		receipts = append(receipts, r)
	}
	for _, err := range sched.Fire(block.Header.Height, work) {
		if err != nil {
			return nil, nil, NewErr(ErrBlockVerifyFailed, "scheduled event: %v", err)
		}
	}

	if got := work.StateHash(); got != block.Header.StateRoot {
		return nil, nil, NewErr(ErrBlockVerifyFailed, "state_root mismatch: got %s want %s", got, block.Header.StateRoot)
	}
	return work, receipts, nil
}

// BuildBlock executes txs against a clone of tipState to compute the
// resulting roots, producing an unsigned block ready for the leader to
// broadcast for endorsement.
func BuildBlock(tipState *StateStore, prevHash Hash, height uint64, now int64, leader Address, txs []*Transaction, sched *Scheduler, miners []Address) (*Block, *StateStore, []*Receipt, error) {
	work := tipState.Clone()
	ctx := &ExecContext{State: work, Scheduler: sched, Height: height, Now: now, Miners: miners}
	var receipts []*Receipt
	var included []*Transaction
	for _, tx := range txs {
		if err := VerifyTransactionSignature(tx); err != nil {
			continue // an unsigned or mis-attributed tx never reaches execution
		}
		r, err := Execute(ctx, tx)
		if err != nil {
			continue // a malformed tx is simply dropped from the proposal, not fatal to block-building
		}
		included = append(included, tx)
		receipts = append(receipts, r)
	}
	for _, err := range sched.Fire(height, work) {
		if err != nil {
			return nil, nil, nil, err
		}
	}
	header := BlockHeader{
		Height:    height,
		Timestamp: now,
		PrevHash:  prevHash,
		StateRoot: work.StateHash(),
		TxRoot:    TxRoot(included),
		Leader:    leader,
	}
	return &Block{Header: header, Txs: included}, work, receipts, nil
}
