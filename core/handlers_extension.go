package core

// handlers_extension.go – chain configuration and the sub-chain
// bridge/miner-group administration bodies that share genericPayloadBody's
// wire shape (tx.go). Grounded on the teacher's governance-parameter table
// write path, generalized to an arbitrary key/value config store.

// SetConfigBody overwrites a single chain configuration parameter. Neither
// the executor nor block building and verification (BuildBlock,
// VerifyBlock) checks who authored it: any signed transaction may set any
// key.
type SetConfigBody struct {
	Key   string
	Value []byte
}

func (b *SetConfigBody) Kind() TxBodyKind { return TxSetConfig }
func (b *SetConfigBody) measure() int     { return 2 + len(b.Key) + 4 + len(b.Value) }
func (b *SetConfigBody) encode(w *Writer) {
	w.PutBytes16([]byte(b.Key))
	w.PutBytes32(b.Value)
}

func decodeSetConfig(r *Reader) (*SetConfigBody, error) {
	key, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	val, err := r.GetBytes32()
	if err != nil {
		return nil, err
	}
	return &SetConfigBody{Key: string(key), Value: val}, nil
}

func configKey(key string) string { return "config/" + key }

// Config reads a chain configuration parameter.
func (s *StateStore) Config(key string) ([]byte, bool) {
	return s.Get(configKey(key))
}

func executeSetConfig(ctx *ExecContext, tx *Transaction, b *SetConfigBody, fees *FeeCounter) (*Receipt, error) {
	ctx.State.Set(configKey(b.Key), b.Value)
	return newReceipt(tx, ErrOK, 0), nil
}

// SetBenefiBody designates the beneficiary address an EVM contract's
// proceeds (e.g. self-destruct remainder) settle to.
type SetBenefiBody struct {
	Contract    Address
	Beneficiary Address
}

func (b *SetBenefiBody) Kind() TxBodyKind { return TxSetBenefi }
func (b *SetBenefiBody) measure() int     { return 20 + 20 }
func (b *SetBenefiBody) encode(w *Writer) {
	w.PutRaw(b.Contract[:])
	w.PutRaw(b.Beneficiary[:])
}

func decodeSetBenefi(r *Reader) (*SetBenefiBody, error) {
	c, err := r.GetRaw(20)
	if err != nil {
		return nil, err
	}
	benef, err := r.GetRaw(20)
	if err != nil {
		return nil, err
	}
	b := &SetBenefiBody{}
	copy(b.Contract[:], c)
	copy(b.Beneficiary[:], benef)
	return b, nil
}

func executeSetBenefi(ctx *ExecContext, tx *Transaction, b *SetBenefiBody, fees *FeeCounter) (*Receipt, error) {
	owner, ok := ctx.State.EVMBeneficiary(b.Contract)
	if ok && owner != tx.Caller {
		// Beneficiary was already set by someone else; only the current
		// beneficiary may change it. Contract creation records none, so the
		// first caller of SetBenefi sets it.
		return nil, NewErr(ErrAccessDenied, "set_benefi: caller is not the contract's owner")
	}
	ctx.State.SetEVMBeneficiary(b.Contract, b.Beneficiary)
	return newReceipt(tx, ErrOK, 0), nil
}

// executeGenericPayload handles every tx body kind backed by
// genericPayloadBody: the sub-chain bridge's deposit/withdraw coinage
// records and miner-group administration. Each simply records its payload
// under a key namespaced by kind and the transaction's own hash, giving
// external relayers (the sub-chain bridge watcher, miner-group tooling) a
// stable, append-only log to scan without the executor needing to
// understand the payload's internal structure.
func executeGenericPayload(ctx *ExecContext, tx *Transaction, b *genericPayloadBody, fees *FeeCounter) (*Receipt, error) {
	h := tx.Hash()
	ctx.State.Set(genericPayloadKey(b.kind, h), b.Payload)
	return newReceipt(tx, ErrOK, 0), nil
}

func genericPayloadKey(kind TxBodyKind, txHash Hash) string {
	return "ext/" + kind.String() + "/" + txHash.String()
}

func (k TxBodyKind) String() string {
	switch k {
	case TxWithdrawToOwner:
		return "withdraw_to_owner"
	case TxBTCCoinageRecord:
		return "btc_coinage_record"
	case TxCreateMinerGroup:
		return "create_miner_group"
	case TxWithdrawFromSubChain:
		return "withdraw_from_subchain"
	case TxSubChainCoinageRecord:
		return "subchain_coinage_record"
	case TxCreateSubChainAccount:
		return "create_subchain_account"
	case TxUpdateSubChainAccount:
		return "update_subchain_account"
	case TxSubChainWithdraw:
		return "subchain_withdraw"
	case TxExtension:
		return "extension"
	default:
		return "tx_kind"
	}
}
