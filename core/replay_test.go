package core

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func tmpChainStore(t *testing.T) *ChainStore {
	t.Helper()
	cs, err := OpenChainStore(tmpChainStoreConfig(t), nil)
	if err != nil {
		t.Fatalf("open chain store: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestApplyGenesisAllocSeedsBalances(t *testing.T) {
	state := NewStateStore(nil)
	addr := Address{0x09}
	alloc := GenesisAlloc{"OBJ": {addr.String(): 5000}}
	if err := ApplyGenesisAlloc(state, alloc); err != nil {
		t.Fatalf("apply alloc: %v", err)
	}
	if got := state.Balance("OBJ", addr); got != 5000 {
		t.Fatalf("balance = %d, want 5000", got)
	}
}

func TestRebuildStateReplaysGenesisAndMatchesLiveBuild(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	leader := AddressFromPubkey(pub)
	group := MinerGroup{Addresses: []Address{leader}, Keys: [][]byte{pub}}

	alloc := GenesisAlloc{"OBJ": {leader.String(): 1_000_000}}

	cs := tmpChainStore(t)

	seed := NewStateStore(nil)
	if err := ApplyGenesisAlloc(seed, alloc); err != nil {
		t.Fatalf("apply alloc: %v", err)
	}
	sched := NewScheduler()
	RegisterDefaultHandlers(sched)

	blk, work, _, err := BuildBlock(seed, Hash{}, 0, time.Now().Unix(), leader, nil, sched, group.Addresses)
	if err != nil {
		t.Fatalf("build genesis: %v", err)
	}
	sig, err := SignDescWithKey(priv, blk.Header.Hash(), time.Now().Unix())
	if err != nil {
		t.Fatalf("sign genesis: %v", err)
	}
	sig.Source = SignSource{Kind: SignSourceRefIndex, RefIndex: 0}
	blk.Sigs = []Signature{sig}
	if err := cs.Append(blk); err != nil {
		t.Fatalf("append genesis: %v", err)
	}

	rebuilt, tipHash, err := RebuildState(cs, alloc, group, NewScheduler())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if tipHash != blk.Header.Hash() {
		t.Fatalf("rebuild tip hash mismatch")
	}
	if rebuilt.StateHash() != work.StateHash() {
		t.Fatalf("rebuilt state hash diverges from the block's own build-time state")
	}
	if got := rebuilt.Balance("OBJ", leader); got != 1_000_000 {
		t.Fatalf("rebuilt balance = %d, want 1000000", got)
	}
}

func TestRebuildStateOnEmptyChainReturnsAllocOnlyState(t *testing.T) {
	cs := tmpChainStore(t)
	addr := Address{0x42}
	alloc := GenesisAlloc{"OBJ": {addr.String(): 7}}
	state, tipHash, err := RebuildState(cs, alloc, MinerGroup{}, NewScheduler())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !tipHash.IsZero() {
		t.Fatalf("expected zero tip hash for empty chain")
	}
	if got := state.Balance("OBJ", addr); got != 7 {
		t.Fatalf("balance = %d, want 7", got)
	}
}
