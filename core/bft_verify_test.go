package core

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func buildSignedSoloBlock(t *testing.T, height uint64, txs []*Transaction) (*Block, *StateStore, MinerGroup, *ecdsa.PrivateKey) {
	t.Helper()
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

	blk, _, _, err := BuildBlock(tipState, Hash{}, height, time.Now().Unix(), leader, txs, sched, group.Addresses)
	if err != nil {
		t.Fatalf("build block: %v", err)
	}
	sig, err := SignDescWithKey(minerPriv, blk.Header.Hash(), time.Now().Unix())
	if err != nil {
		t.Fatalf("sign block: %v", err)
	}
	sig.Source = SignSource{Kind: SignSourceRefIndex, RefIndex: 0}
	blk.Sigs = []Signature{sig}
	return blk, tipState, group, minerPriv
}

func TestVerifyBlockRejectsPrevHashMismatch(t *testing.T) {
	blk, tipState, group, _ := buildSignedSoloBlock(t, 1, nil)
	sched := NewScheduler()
	RegisterDefaultHandlers(sched)

	_, _, err := VerifyBlock(tipState, Hash{0x01}, blk, group, sched)
	if err == nil {
		t.Fatalf("expected prev_hash mismatch to be rejected")
	}
}

func TestVerifyBlockRejectsBelowQuorumSignatures(t *testing.T) {
	blk, tipState, group, _ := buildSignedSoloBlock(t, 1, nil)
	blk.Sigs = nil // drop the only signature; a solo roster of 1 still needs it
	sched := NewScheduler()
	RegisterDefaultHandlers(sched)

	_, _, err := VerifyBlock(tipState, Hash{}, blk, group, sched)
	if err == nil {
		t.Fatalf("expected a block with no signatures to fail quorum verification")
	}
}

func TestVerifyBlockRejectsTamperedTxRoot(t *testing.T) {
	blk, tipState, group, _ := buildSignedSoloBlock(t, 1, nil)
	blk.Header.TxRoot = Hash{0xFF}
	sched := NewScheduler()
	RegisterDefaultHandlers(sched)

	_, _, err := VerifyBlock(tipState, Hash{}, blk, group, sched)
	if err == nil {
		t.Fatalf("expected a tampered tx_root to be rejected")
	}
}
