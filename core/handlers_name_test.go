package core

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func newSignedNameTx(t *testing.T, priv *ecdsa.PrivateKey, nonce int64, body TxBody) *Transaction {
	t.Helper()
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	tx := &Transaction{
		Nonce:    nonce,
		Caller:   AddressFromPubkey(pub),
		GasCoin:  "OBJ",
		GasPrice: 1,
		MaxFee:   100,
		Body:     body,
	}
	sig, err := SignDescWithKey(priv, tx.Hash(), time.Now().Unix())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Sig = sig
	return tx
}

// TestAuctionNameOwnerMayReopenNormalName is the direct regression test for
// the executeAuctionName fix: an owner of a NameNormal name may re-auction
// it themselves (reopening bidding), where anyone else, or an already
// active auction, must still be rejected.
func TestAuctionNameOwnerMayReopenNormalName(t *testing.T) {
	ownerPriv, _ := crypto.GenerateKey()
	ownerPub := crypto.FromECDSAPub(&ownerPriv.PublicKey)
	owner := AddressFromPubkey(ownerPub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", owner, 1000)
	state.SetNameInfo("test", NameInfo{State: NameNormal, Owner: owner})
	if err := state.IndexName("test"); err != nil {
		t.Fatalf("index name: %v", err)
	}

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedNameTx(t, ownerPriv, 1, &AuctionNameBody{Name: "test", StartPrice: 10, Duration: 5})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result != ErrOK {
		t.Fatalf("owner re-auctioning their own NameNormal name should succeed, got %v", receipt.Result)
	}
	info, ok := state.NameInfo("test")
	if !ok || info.State != NameAuction {
		t.Fatalf("expected name under auction, got %+v ok=%v", info, ok)
	}
	if info.Owner != owner {
		t.Fatalf("re-auction should preserve existing owner until settlement, got %s", info.Owner)
	}

	commitment, found, err := state.LookupNameCommitment("test")
	if err != nil {
		t.Fatalf("lookup commitment: %v", err)
	}
	if !found {
		t.Fatalf("expected name index entry after auction re-open")
	}
	if want := nameCommitment(info); commitment != want {
		t.Fatalf("name index commitment stale: got %s want %s", commitment, want)
	}
}

// TestAuctionNameRejectsStrangerOnNormalName confirms the fix does not widen
// the rule beyond the existing owner: a third party still cannot auction a
// name someone else owns.
func TestAuctionNameRejectsStrangerOnNormalName(t *testing.T) {
	ownerPriv, _ := crypto.GenerateKey()
	ownerPub := crypto.FromECDSAPub(&ownerPriv.PublicKey)
	owner := AddressFromPubkey(ownerPub)

	strangerPriv, _ := crypto.GenerateKey()
	strangerPub := crypto.FromECDSAPub(&strangerPriv.PublicKey)
	stranger := AddressFromPubkey(strangerPub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", stranger, 1000)
	state.SetNameInfo("test", NameInfo{State: NameNormal, Owner: owner})

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedNameTx(t, strangerPriv, 1, &AuctionNameBody{Name: "test", StartPrice: 10, Duration: 5})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists for a stranger auctioning someone else's name, got %v", receipt.Result)
	}
}

// TestAuctionNameRejectsActiveAuction confirms a name already under auction
// still cannot be re-auctioned by anyone, owner included.
func TestAuctionNameRejectsActiveAuction(t *testing.T) {
	ownerPriv, _ := crypto.GenerateKey()
	ownerPub := crypto.FromECDSAPub(&ownerPriv.PublicKey)
	owner := AddressFromPubkey(ownerPub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", owner, 1000)
	state.SetNameInfo("test", NameInfo{State: NameAuction, Owner: owner, AuctionBid: 10})

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedNameTx(t, ownerPriv, 1, &AuctionNameBody{Name: "test", StartPrice: 20, Duration: 5})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists for re-auctioning a name already under auction, got %v", receipt.Result)
	}
}

// TestBidNameThenSettleTransfersOwnership exercises seed scenario #3's
// second half: while A's re-opened auction on an owned name is active, B
// outbids and, once the auction-stop timer fires, becomes the new owner.
func TestBidNameThenSettleTransfersOwnership(t *testing.T) {
	ownerPriv, _ := crypto.GenerateKey()
	ownerPub := crypto.FromECDSAPub(&ownerPriv.PublicKey)
	owner := AddressFromPubkey(ownerPub)

	bidderPriv, _ := crypto.GenerateKey()
	bidderPub := crypto.FromECDSAPub(&bidderPriv.PublicKey)
	bidder := AddressFromPubkey(bidderPub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", owner, 1000)
	state.SetBalance("OBJ", bidder, 1000)
	state.SetBalance(RentCoin, bidder, 1000)
	state.SetNameInfo("test", NameInfo{State: NameAuction, Owner: owner, AuctionBid: 10})

	sched := NewScheduler()
	RegisterDefaultHandlers(sched)
	ctx := &ExecContext{State: state, Scheduler: sched, Height: 1}

	bidTx := newSignedNameTx(t, bidderPriv, 1, &BidNameBody{Name: "test", Bid: 150})
	receipt, err := Execute(ctx, bidTx)
	if err != nil {
		t.Fatalf("execute bid: %v", err)
	}
	if receipt.Result != ErrOK {
		t.Fatalf("expected bid to succeed, got %v", receipt.Result)
	}
	info, _ := state.NameInfo("test")
	if info.Bidder != bidder || info.AuctionBid != 150 {
		t.Fatalf("expected high bid recorded for bidder, got %+v", info)
	}

	if err := newAuctionStopHandler()(1, "test", nil, state); err != nil {
		t.Fatalf("settle auction: %v", err)
	}
	settled, ok := state.NameInfo("test")
	if !ok || settled.State != NameNormal || settled.Owner != bidder {
		t.Fatalf("expected name settled to bidder in Normal state, got %+v ok=%v", settled, ok)
	}

	commitment, found, err := state.LookupNameCommitment("test")
	if err != nil || !found {
		t.Fatalf("expected indexed commitment after settlement, found=%v err=%v", found, err)
	}
	if want := nameCommitment(settled); commitment != want {
		t.Fatalf("stale name index commitment after settlement: got %s want %s", commitment, want)
	}
}

func TestCancelAuctionRevertsOwnedNameToOwner(t *testing.T) {
	ownerPriv, _ := crypto.GenerateKey()
	ownerPub := crypto.FromECDSAPub(&ownerPriv.PublicKey)
	owner := AddressFromPubkey(ownerPub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", owner, 1000)
	state.SetNameInfo("test", NameInfo{State: NameAuction, Owner: owner, AuctionBid: 10})

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedNameTx(t, ownerPriv, 1, &CancelAuctionNameBody{Name: "test"})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute cancel: %v", err)
	}
	if receipt.Result != ErrOK {
		t.Fatalf("expected cancel to succeed, got %v", receipt.Result)
	}
	info, ok := state.NameInfo("test")
	if !ok {
		t.Fatalf("cancelling a re-auction of an owned name must not delete it")
	}
	if info.State != NameNormal || info.Owner != owner {
		t.Fatalf("expected name reverted to owner in Normal state, got %+v", info)
	}
}

func TestCancelAuctionDeletesNeverOwnedName(t *testing.T) {
	callerPriv, _ := crypto.GenerateKey()
	callerPub := crypto.FromECDSAPub(&callerPriv.PublicKey)
	caller := AddressFromPubkey(callerPub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", caller, 1000)
	state.SetNameInfo("fresh", NameInfo{State: NameAuction})

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedNameTx(t, callerPriv, 1, &CancelAuctionNameBody{Name: "fresh"})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute cancel: %v", err)
	}
	if receipt.Result != ErrOK {
		t.Fatalf("expected cancel to succeed, got %v", receipt.Result)
	}
	if _, ok := state.NameInfo("fresh"); ok {
		t.Fatalf("cancelling an auction for a name that was never owned should delete it")
	}
}
