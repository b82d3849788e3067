package core

// handlers_evm.go – the three EVM-facing tx bodies: plain CREATE, CREATE2
// (deterministic address) and CALL, each thin wrappers over evm.go's
// entry points that translate the result into a Receipt.

// CreateContractBody deploys code via CREATE semantics.
type CreateContractBody struct {
	Code  []byte
	Value int64
	Gas   uint64
}

func (b *CreateContractBody) Kind() TxBodyKind { return TxCreateContract }
func (b *CreateContractBody) measure() int     { return 4 + len(b.Code) + 8 + 8 }
func (b *CreateContractBody) encode(w *Writer) {
	w.PutBytes32(b.Code)
	w.PutI64(b.Value)
	w.PutU64(b.Gas)
}

func decodeCreateContract(r *Reader) (*CreateContractBody, error) {
	code, err := r.GetBytes32()
	if err != nil {
		return nil, err
	}
	value, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	gas, err := r.GetU64()
	if err != nil {
		return nil, err
	}
	return &CreateContractBody{Code: code, Value: value, Gas: gas}, nil
}

func executeCreateContract(ctx *ExecContext, tx *Transaction, b *CreateContractBody, fees *FeeCounter) (*Receipt, error) {
	if ctx.State.Balance(evmCoin, tx.Caller) < b.Value {
		return nil, NewErr(ErrNoEnoughBalance, "create_contract: insufficient evm balance")
	}
	addr, ret, used, err := evmCreate(ctx, tx.Caller, b.Code, b.Value, b.Gas)
	if err != nil {
		return nil, err
	}
	if err := fees.Charge(int64(used)); err != nil {
		return nil, err
	}
	receipt := newReceipt(tx, ErrOK, int64(used))
	receipt.Deployed = &addr
	receipt.ReturnValue = ret
	return receipt, nil
}

// CreateContract2Body deploys code via CREATE2 semantics at a salt-derived
// deterministic address.
type CreateContract2Body struct {
	Code  []byte
	Salt  Hash
	Value int64
	Gas   uint64
}

func (b *CreateContract2Body) Kind() TxBodyKind { return TxCreateContract2 }
func (b *CreateContract2Body) measure() int     { return 4 + len(b.Code) + 32 + 8 + 8 }
func (b *CreateContract2Body) encode(w *Writer) {
	w.PutBytes32(b.Code)
	w.PutRaw(b.Salt[:])
	w.PutI64(b.Value)
	w.PutU64(b.Gas)
}

func decodeCreateContract2(r *Reader) (*CreateContract2Body, error) {
	code, err := r.GetBytes32()
	if err != nil {
		return nil, err
	}
	salt, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	value, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	gas, err := r.GetU64()
	if err != nil {
		return nil, err
	}
	b := &CreateContract2Body{Code: code, Value: value, Gas: gas}
	copy(b.Salt[:], salt)
	return b, nil
}

func executeCreateContract2(ctx *ExecContext, tx *Transaction, b *CreateContract2Body, fees *FeeCounter) (*Receipt, error) {
	if ctx.State.Balance(evmCoin, tx.Caller) < b.Value {
		return nil, NewErr(ErrNoEnoughBalance, "create_contract2: insufficient evm balance")
	}
	addr, ret, used, err := evmCreate2(ctx, tx.Caller, b.Code, b.Salt, b.Value, b.Gas)
	if err != nil {
		return nil, err
	}
	if err := fees.Charge(int64(used)); err != nil {
		return nil, err
	}
	receipt := newReceipt(tx, ErrOK, int64(used))
	receipt.Deployed = &addr
	receipt.ReturnValue = ret
	return receipt, nil
}

// CallContractBody invokes an already-deployed contract.
type CallContractBody struct {
	Target Address
	Input  []byte
	Value  int64
	Gas    uint64
}

func (b *CallContractBody) Kind() TxBodyKind { return TxCallContract }
func (b *CallContractBody) measure() int     { return 20 + 4 + len(b.Input) + 8 + 8 }
func (b *CallContractBody) encode(w *Writer) {
	w.PutRaw(b.Target[:])
	w.PutBytes32(b.Input)
	w.PutI64(b.Value)
	w.PutU64(b.Gas)
}

func decodeCallContract(r *Reader) (*CallContractBody, error) {
	target, err := r.GetRaw(20)
	if err != nil {
		return nil, err
	}
	input, err := r.GetBytes32()
	if err != nil {
		return nil, err
	}
	value, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	gas, err := r.GetU64()
	if err != nil {
		return nil, err
	}
	b := &CallContractBody{Input: input, Value: value, Gas: gas}
	copy(b.Target[:], target)
	return b, nil
}

func executeCallContract(ctx *ExecContext, tx *Transaction, b *CallContractBody, fees *FeeCounter) (*Receipt, error) {
	if ctx.State.EVMCode(b.Target) == nil {
		return nil, NewErr(ErrNotFound, "call_contract: %s has no code", b.Target)
	}
	if ctx.State.Balance(evmCoin, tx.Caller) < b.Value {
		return nil, NewErr(ErrNoEnoughBalance, "call_contract: insufficient evm balance")
	}
	ret, used, err := evmCall(ctx, tx.Caller, b.Target, b.Input, b.Value, b.Gas)
	if err != nil {
		return nil, err
	}
	if err := fees.Charge(int64(used)); err != nil {
		return nil, err
	}
	receipt := newReceipt(tx, ErrOK, int64(used))
	receipt.ReturnValue = ret
	receipt.Logs = ctx.State.EVMLogsForAddress(b.Target)
	return receipt, nil
}
