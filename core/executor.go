package core

// executor.go – the transaction execute protocol (§4.E): nonce check, fee
// deduct, dispatch to the body's handler inside a nested savepoint, then
// either commit or roll back and still charge the base fee. Adapted from
// the teacher's block-apply loop in ledger.go (same "per-tx savepoint,
// roll back on failure, keep going" shape), generalized from single-asset
// transfers to the full tagged-union body set.

import "fmt"

// ExecContext carries everything a body handler needs beyond the
// transaction itself: the state being mutated, the event scheduler it may
// arm/cancel timers against, and the height the enclosing block is being
// built at.
type ExecContext struct {
	State     *StateStore
	Scheduler *Scheduler
	Height    uint64
	Now       int64
	Miners    []Address
}

// Execute runs tx against ctx, returning the resulting Receipt. Execute
// never returns a Go error for an ordinary execution failure (insufficient
// balance, bad nonce, handler rejection) — those are reported via the
// Receipt's Result field so the caller can still include the transaction
// (and its charged fee) in the block. A non-nil error indicates a defect in
// the execution machinery itself (state store misuse), not a rejected
// transaction.
func Execute(ctx *ExecContext, tx *Transaction) (*Receipt, error) {
	wantNonce := ctx.State.AccountNonce(tx.Caller) + 1
	if tx.Nonce != wantNonce {
		return newReceipt(tx, ErrInvalidParam, 0), nil
	}

	fees := NewFeeCounter(tx.GasPrice, tx.MaxFee)
	if err := fees.Charge(baseFeeUnits); err != nil {
		return newReceipt(tx, ErrOutOfLimit, 0), nil
	}
	bal := ctx.State.Balance(tx.GasCoin, tx.Caller)
	if bal < fees.Spent() {
		return newReceipt(tx, ErrNoEnoughBalance, 0), nil
	}

	label := ctx.State.BeginTransaction()
	ctx.State.IncBalance(tx.GasCoin, tx.Caller, -fees.Spent())
	ctx.State.BumpNonce(tx.Caller)

	receipt, err := dispatch(ctx, tx, fees)
	if err != nil {
		if rbErr := ctx.State.Rollback(label); rbErr != nil {
			return nil, rbErr
		}
		// Re-open a savepoint purely to carry the fee/nonce debit that
		// must survive the handler's own rollback.
		label2 := ctx.State.BeginTransaction()
		ctx.State.IncBalance(tx.GasCoin, tx.Caller, -fees.Spent())
		ctx.State.BumpNonce(tx.Caller)
		if cErr := ctx.State.Commit(label2); cErr != nil {
			return nil, cErr
		}
		return newReceipt(tx, ErrKindOf(err), fees.Spent()), nil
	}
	if cErr := ctx.State.Commit(label); cErr != nil {
		return nil, cErr
	}
	receipt.GasUsed = fees.Spent()
	return receipt, nil
}

// dispatch routes tx.Body to its concrete handler. Every TxBodyKind named
// in tx.go has an entry here; an unhandled kind is a wiring bug, not a data
// error, so it panics rather than quietly no-opping.
func dispatch(ctx *ExecContext, tx *Transaction, fees *FeeCounter) (*Receipt, error) {
	switch b := tx.Body.(type) {
	case *TransBalanceBody:
		return executeTransBalance(ctx, tx, b, fees)
	case *CreateUnionBody:
		return executeCreateUnion(ctx, tx, b, fees)
	case *DeviateUnionBody:
		return executeDeviateUnion(ctx, tx, b, fees)
	case *WithdrawFromUnionBody:
		return executeWithdrawFromUnion(ctx, tx, b, fees)
	case *CreateDescBody:
		return executeCreateDesc(ctx, tx, b, fees)
	case *UpdateDescBody:
		return executeUpdateDesc(ctx, tx, b, fees)
	case *RemoveDescBody:
		return executeRemoveDesc(ctx, tx, b, fees)
	case *BidNameBody:
		return executeBidName(ctx, tx, b, fees)
	case *UpdateNameBody:
		return executeUpdateName(ctx, tx, b, fees)
	case *AuctionNameBody:
		return executeAuctionName(ctx, tx, b, fees)
	case *CancelAuctionNameBody:
		return executeCancelAuctionName(ctx, tx, b, fees)
	case *BuyBackNameBody:
		return executeBuyBackName(ctx, tx, b, fees)
	case *SetConfigBody:
		return executeSetConfig(ctx, tx, b, fees)
	case *CreateContractBody:
		return executeCreateContract(ctx, tx, b, fees)
	case *CreateContract2Body:
		return executeCreateContract2(ctx, tx, b, fees)
	case *CallContractBody:
		return executeCallContract(ctx, tx, b, fees)
	case *SetBenefiBody:
		return executeSetBenefi(ctx, tx, b, fees)
	case *NFTRegisterBody:
		return executeNFTRegister(ctx, tx, b, fees)
	case *NFTApplyBuyBody:
		return executeNFTApplyBuy(ctx, tx, b, fees)
	case *NFTAgreeApplyBody:
		return executeNFTAgreeApply(ctx, tx, b, fees)
	case *NFTAuctionBody:
		return executeNFTAuction(ctx, tx, b, fees)
	case *NFTBidBody:
		return executeNFTBid(ctx, tx, b, fees)
	case *genericPayloadBody:
		return executeGenericPayload(ctx, tx, b, fees)
	default:
		panic(fmt.Sprintf("executor: unwired tx body type %T", b))
	}
}
