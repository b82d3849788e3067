package core

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestBuildBlockThenVerifyBlockRoundTrip(t *testing.T) {
	minerPriv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	minerPub := crypto.FromECDSAPub(&minerPriv.PublicKey)
	leader := AddressFromPubkey(minerPub)

	group := MinerGroup{Addresses: []Address{leader}, Keys: [][]byte{minerPub}}

	tipState := NewStateStore(nil)
	sched := NewScheduler()
	RegisterDefaultHandlers(sched)

	senderPriv, _ := crypto.GenerateKey()
	senderPub := crypto.FromECDSAPub(&senderPriv.PublicKey)
	sender := AddressFromPubkey(senderPub)
	tipState.SetBalance("OBJ", sender, 1000)

	tx := newSignedTransfer(t, senderPriv, 1, Address{0x42}, 100)

	now := time.Now().Unix()
	blk, workState, receipts, err := BuildBlock(tipState, Hash{}, 1, now, leader, []*Transaction{tx}, sched, group.Addresses)
	if err != nil {
		t.Fatalf("build block: %v", err)
	}
	if len(blk.Txs) != 1 {
		t.Fatalf("expected tx included in block, got %d", len(blk.Txs))
	}
	if len(receipts) != 1 || receipts[0].Result != ErrOK {
		t.Fatalf("expected one ok receipt, got %+v", receipts)
	}

	sig, err := SignDescWithKey(minerPriv, blk.Header.Hash(), now)
	if err != nil {
		t.Fatalf("sign block: %v", err)
	}
	sig.Source = SignSource{Kind: SignSourceRefIndex, RefIndex: 0}
	blk.Sigs = []Signature{sig}

	verifiedState, _, err := VerifyBlock(tipState, Hash{}, blk, group, sched)
	if err != nil {
		t.Fatalf("verify block: %v", err)
	}
	if verifiedState.StateHash() != workState.StateHash() {
		t.Fatalf("verified state hash diverges from build-time state hash")
	}
	if verifiedState.Balance("OBJ", Address{0x42}) != 100 {
		t.Fatalf("verified state missing applied transfer")
	}
}

func TestVerifyBlockRejectsWrongPrevHash(t *testing.T) {
	minerPriv, _ := crypto.GenerateKey()
	minerPub := crypto.FromECDSAPub(&minerPriv.PublicKey)
	leader := AddressFromPubkey(minerPub)
	group := MinerGroup{Addresses: []Address{leader}, Keys: [][]byte{minerPub}}

	state := NewStateStore(nil)
	sched := NewScheduler()
	blk := &Block{Header: BlockHeader{Height: 1, PrevHash: Hash{0x01}}}

	if _, _, err := VerifyBlock(state, Hash{0x02}, blk, group, sched); err == nil {
		t.Fatalf("expected prev_hash mismatch to be rejected")
	}
}
