package core

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func newSignedEVMTx(t *testing.T, priv *ecdsa.PrivateKey, nonce int64, body TxBody) *Transaction {
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

func TestCreateContractRejectsInsufficientEVMBalance(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	caller := AddressFromPubkey(pub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", caller, 1000)
	// no evm-coin balance seeded, so the guard before evmCreate fires

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedEVMTx(t, priv, 1, &CreateContractBody{Code: []byte{0x00}, Value: 50, Gas: 100000})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result != ErrNoEnoughBalance {
		t.Fatalf("expected ErrNoEnoughBalance for an under-funded deploy, got %v", receipt.Result)
	}
}

func TestCreateContract2RejectsInsufficientEVMBalance(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	caller := AddressFromPubkey(pub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", caller, 1000)

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedEVMTx(t, priv, 1, &CreateContract2Body{Code: []byte{0x00}, Salt: Hash{0x01}, Value: 50, Gas: 100000})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result != ErrNoEnoughBalance {
		t.Fatalf("expected ErrNoEnoughBalance for an under-funded CREATE2, got %v", receipt.Result)
	}
}

func TestCallContractRejectsMissingCode(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	caller := AddressFromPubkey(pub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", caller, 1000)
	state.SetBalance(evmCoin, caller, 1000)

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedEVMTx(t, priv, 1, &CallContractBody{Target: Address{0x77}, Value: 0, Gas: 100000})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result != ErrNotFound {
		t.Fatalf("expected ErrNotFound calling an address with no deployed code, got %v", receipt.Result)
	}
}

func TestCallContractRejectsInsufficientEVMBalance(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	caller := AddressFromPubkey(pub)

	target := Address{0x77}
	state := NewStateStore(nil)
	state.SetBalance("OBJ", caller, 1000)
	state.SetEVMCode(target, []byte{0x00})

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	tx := newSignedEVMTx(t, priv, 1, &CallContractBody{Target: target, Value: 50, Gas: 100000})
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result != ErrNoEnoughBalance {
		t.Fatalf("expected ErrNoEnoughBalance calling with value exceeding evm balance, got %v", receipt.Result)
	}
}
