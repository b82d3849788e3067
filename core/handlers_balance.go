package core

// handlers_balance.go – the plain balance transfer, the simplest tx body
// and the one the teacher's ledger.go applyTransfer was grounded on almost
// unchanged: debit caller, credit recipient, reject on insufficient funds.

// TransBalanceBody moves amount of coin from the caller to To.
type TransBalanceBody struct {
	To     Address
	Coin   string
	Amount int64
}

func (b *TransBalanceBody) Kind() TxBodyKind { return TxTransBalance }
func (b *TransBalanceBody) measure() int     { return 20 + 2 + len(b.Coin) + 8 }
func (b *TransBalanceBody) encode(w *Writer) {
	w.PutRaw(b.To[:])
	w.PutBytes16([]byte(b.Coin))
	w.PutI64(b.Amount)
}

func decodeTransBalance(r *Reader) (*TransBalanceBody, error) {
	to, err := r.GetRaw(20)
	if err != nil {
		return nil, err
	}
	coin, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	amt, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	b := &TransBalanceBody{Coin: string(coin), Amount: amt}
	copy(b.To[:], to)
	return b, nil
}

func executeTransBalance(ctx *ExecContext, tx *Transaction, b *TransBalanceBody, fees *FeeCounter) (*Receipt, error) {
	if b.Amount <= 0 {
		return nil, NewErr(ErrInvalidParam, "trans_balance: amount must be positive")
	}
	if ctx.State.Balance(b.Coin, tx.Caller) < b.Amount {
		return nil, NewErr(ErrNoEnoughBalance, "trans_balance: caller balance too low")
	}
	ctx.State.IncBalance(b.Coin, tx.Caller, -b.Amount)
	ctx.State.IncBalance(b.Coin, b.To, b.Amount)

	// A transfer into the owner account of a locked name whose arrears are
	// already zero returns that name to Normal. The transfer does not pay
	// arrears down: a locked name with arrears outstanding stays locked.
	for _, name := range namesOwnedBy(ctx.State, b.To) {
		extra := ctx.State.NameExtra(name)
		if extra.RentArrears == 0 {
			_ = ClearArrears(ctx.State, name)
		}
	}
	return newReceipt(tx, ErrOK, 0), nil
}

// namesOwnedBy scans the name table for every name owned by addr that is
// currently in NameLock. Rent clearing is rare enough relative to ordinary transfers that a
// full scan here is simpler and more obviously correct than maintaining a
// secondary owner index.
func namesOwnedBy(state *StateStore, addr Address) []string {
	var out []string
	for _, k := range state.PrefixKeys("name/") {
		name := k[len("name/"):]
		info, ok := state.NameInfo(name)
		if ok && info.Owner == addr && info.State == NameLock {
			out = append(out, name)
		}
	}
	return out
}
