package core

// handlers_union.go – the off-chain-channel-style joint balance bodies of
// §3/§4.E: create a union account, record a counter-signed deviation
// against it, and withdraw a side's share. A withdrawal pays out within the
// same transaction: there is no dispute window, and a later deviation
// cannot pre-empt it. Grounded
// on the teacher's UTXO multisig spend path generalized from a single
// cosigned output to a standing joint account with monotone deviations.

// CreateUnionBody opens a new union account between the caller and Peer,
// seeded with an initial split.
type CreateUnionBody struct {
	UnionID string
	Coin    string
	Peer    Address
	Left    int64
	Right   int64
}

func (b *CreateUnionBody) Kind() TxBodyKind { return TxCreateUnion }
func (b *CreateUnionBody) measure() int {
	return 2 + len(b.UnionID) + 2 + len(b.Coin) + 20 + 8 + 8
}
func (b *CreateUnionBody) encode(w *Writer) {
	w.PutBytes16([]byte(b.UnionID))
	w.PutBytes16([]byte(b.Coin))
	w.PutRaw(b.Peer[:])
	w.PutI64(b.Left)
	w.PutI64(b.Right)
}

func decodeCreateUnion(r *Reader) (*CreateUnionBody, error) {
	id, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	coin, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	peer, err := r.GetRaw(20)
	if err != nil {
		return nil, err
	}
	left, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	right, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	b := &CreateUnionBody{UnionID: string(id), Coin: string(coin), Left: left, Right: right}
	copy(b.Peer[:], peer)
	return b, nil
}

func executeCreateUnion(ctx *ExecContext, tx *Transaction, b *CreateUnionBody, fees *FeeCounter) (*Receipt, error) {
	if _, exists := ctx.State.Union(b.Coin, b.UnionID); exists {
		return nil, NewErr(ErrAlreadyExists, "union %s already exists", b.UnionID)
	}
	if ctx.State.Balance(b.Coin, tx.Caller) < b.Left {
		return nil, NewErr(ErrNoEnoughBalance, "create_union: caller side")
	}
	ctx.State.IncBalance(b.Coin, tx.Caller, -b.Left)
	ctx.State.IncBalance(b.Coin, b.Peer, -b.Right)
	ctx.State.SetUnion(b.Coin, b.UnionID, UnionBalance{Left: b.Left, Right: b.Right})
	return newReceipt(tx, ErrOK, 0), nil
}

// DeviateUnionBody records a new, counter-signed split for an existing
// union account. Seq must exceed the account's current sequence number, per
// §3's "strictly increasing sequence number orders deviations" rule.
type DeviateUnionBody struct {
	UnionID    string
	Coin       string
	NewLeft    int64
	NewRight   int64
	Seq        uint64
	CounterSig Signature
}

func (b *DeviateUnionBody) Kind() TxBodyKind { return TxDeviateUnion }
func (b *DeviateUnionBody) measure() int {
	return 2 + len(b.UnionID) + 2 + len(b.Coin) + 8 + 8 + 8 + b.CounterSig.measure()
}
func (b *DeviateUnionBody) encode(w *Writer) {
	w.PutBytes16([]byte(b.UnionID))
	w.PutBytes16([]byte(b.Coin))
	w.PutI64(b.NewLeft)
	w.PutI64(b.NewRight)
	w.PutU64(b.Seq)
	b.CounterSig.encode(w)
}

func decodeDeviateUnion(r *Reader) (*DeviateUnionBody, error) {
	id, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	coin, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	left, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	right, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	seq, err := r.GetU64()
	if err != nil {
		return nil, err
	}
	sig, err := decodeSignature(r)
	if err != nil {
		return nil, err
	}
	return &DeviateUnionBody{UnionID: string(id), Coin: string(coin), NewLeft: left, NewRight: right, Seq: seq, CounterSig: sig}, nil
}

func executeDeviateUnion(ctx *ExecContext, tx *Transaction, b *DeviateUnionBody, fees *FeeCounter) (*Receipt, error) {
	u, ok := ctx.State.Union(b.Coin, b.UnionID)
	if !ok {
		return nil, NewErr(ErrNotFound, "union %s", b.UnionID)
	}
	if b.Seq <= u.Seq {
		return nil, NewErr(ErrInvalidParam, "deviate_union: seq %d not greater than current %d", b.Seq, u.Seq)
	}
	if b.NewLeft+b.NewRight != u.Left+u.Right {
		return nil, NewErr(ErrInvalidParam, "deviate_union: total must be conserved")
	}
	u.Deviation = b.NewLeft - u.Left
	u.Left, u.Right, u.Seq = b.NewLeft, b.NewRight, b.Seq
	ctx.State.SetUnion(b.Coin, b.UnionID, u)
	return newReceipt(tx, ErrOK, 0), nil
}

// WithdrawFromUnionBody closes out one side's share of a union account.
type WithdrawFromUnionBody struct {
	UnionID string
	Coin    string
	Left    bool
}

func (b *WithdrawFromUnionBody) Kind() TxBodyKind { return TxWithdrawFromUnion }
func (b *WithdrawFromUnionBody) measure() int {
	return 2 + len(b.UnionID) + 2 + len(b.Coin) + 1
}
func (b *WithdrawFromUnionBody) encode(w *Writer) {
	w.PutBytes16([]byte(b.UnionID))
	w.PutBytes16([]byte(b.Coin))
	if b.Left {
		w.PutU8(1)
	} else {
		w.PutU8(0)
	}
}

func decodeWithdrawFromUnion(r *Reader) (*WithdrawFromUnionBody, error) {
	id, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	coin, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	side, err := r.GetU8()
	if err != nil {
		return nil, err
	}
	return &WithdrawFromUnionBody{UnionID: string(id), Coin: string(coin), Left: side == 1}, nil
}

func executeWithdrawFromUnion(ctx *ExecContext, tx *Transaction, b *WithdrawFromUnionBody, fees *FeeCounter) (*Receipt, error) {
	u, ok := ctx.State.Union(b.Coin, b.UnionID)
	if !ok {
		return nil, NewErr(ErrNotFound, "union %s", b.UnionID)
	}
	var share int64
	if b.Left {
		share, u.Left = u.Left, 0
	} else {
		share, u.Right = u.Right, 0
	}
	ctx.State.IncBalance(b.Coin, tx.Caller, share)
	if u.Left == 0 && u.Right == 0 {
		ctx.State.SetUnion(b.Coin, b.UnionID, UnionBalance{})
	} else {
		ctx.State.SetUnion(b.Coin, b.UnionID, u)
	}
	return newReceipt(tx, ErrOK, 0), nil
}
