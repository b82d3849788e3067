package core

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func newSignedTransfer(t *testing.T, priv *ecdsa.PrivateKey, nonce int64, to Address, amount int64) *Transaction {
	t.Helper()
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	tx := &Transaction{
		Nonce:    nonce,
		Caller:   AddressFromPubkey(pub),
		GasCoin:  "OBJ",
		GasPrice: 1,
		MaxFee:   100,
		Body:     &TransBalanceBody{To: to, Coin: "OBJ", Amount: amount},
	}
	sig, err := SignDescWithKey(priv, tx.Hash(), time.Now().Unix())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Sig = sig
	return tx
}

func TestExecuteTransferMovesBalance(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	from := AddressFromPubkey(pub)
	to := Address{0xBB}

	state := NewStateStore(nil)
	state.SetBalance("OBJ", from, 1000)

	tx := newSignedTransfer(t, priv, 1, to, 300)
	if err := VerifyTransactionSignature(tx); err != nil {
		t.Fatalf("signature should verify: %v", err)
	}

	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1, Now: time.Now().Unix()}
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result != ErrOK {
		t.Fatalf("expected ErrOK, got %v", receipt.Result)
	}
	if got := state.Balance("OBJ", to); got != 300 {
		t.Fatalf("recipient balance = %d, want 300", got)
	}
	if got := state.Balance("OBJ", from); got >= 700 {
		t.Fatalf("sender balance %d should be debited below 700 (amount+fee)", got)
	}
	if got := state.AccountNonce(from); got != 1 {
		t.Fatalf("nonce = %d, want 1", got)
	}
}

func TestExecuteRejectsBadNonce(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	from := AddressFromPubkey(pub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", from, 1000)

	tx := newSignedTransfer(t, priv, 5, Address{0xCC}, 10) // wrong nonce, should be 1
	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute should not error on bad nonce: %v", err)
	}
	if receipt.Result != ErrInvalidParam {
		t.Fatalf("expected ErrInvalidParam, got %v", receipt.Result)
	}
}

func TestExecuteInsufficientBalanceStillChargesBaseFee(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	from := AddressFromPubkey(pub)

	state := NewStateStore(nil)
	state.SetBalance("OBJ", from, 50)

	tx := newSignedTransfer(t, priv, 1, Address{0xDD}, 1000) // more than balance
	ctx := &ExecContext{State: state, Scheduler: NewScheduler(), Height: 1}
	receipt, err := Execute(ctx, tx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Result == ErrOK {
		t.Fatalf("expected a failure result for insufficient balance")
	}
	if got := state.AccountNonce(from); got != 1 {
		t.Fatalf("nonce should still bump on rollback, got %d", got)
	}
	if got := state.Balance("OBJ", from); got != 49 {
		t.Fatalf("base fee should still be charged on rollback, balance = %d, want 49", got)
	}
}

func TestVerifyTransactionSignatureRejectsWrongCaller(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	tx := newSignedTransfer(t, priv, 1, Address{0xEE}, 10)
	tx.Caller = Address{0x01} // claim a different caller than the signing key derives
	if err := VerifyTransactionSignature(tx); err == nil {
		t.Fatalf("expected signature/caller mismatch to be rejected")
	}
}
