package core

// handlers_desc.go – the descriptor registry bodies of §4.E: register a
// named object's descriptor on-chain so its ObjectId can be resolved by
// other chain state (name links, NFT records), register a new revision
// under prev-pointer continuity, or remove it. Grounded on the teacher's UTXO
// registration flow, generalized from a single coin-output shape to an
// arbitrary encoded NamedObject blob.

// CreateDescBody registers a new descriptor and records its RentValue in
// DescExtra. No rent event is scheduled for it, so nothing debits that rent.
type CreateDescBody struct {
	Encoded   []byte
	RentValue int64
}

func (b *CreateDescBody) Kind() TxBodyKind { return TxCreateDesc }
func (b *CreateDescBody) measure() int     { return 4 + len(b.Encoded) + 8 }
func (b *CreateDescBody) encode(w *Writer) {
	w.PutBytes32(b.Encoded)
	w.PutI64(b.RentValue)
}

func decodeCreateDesc(r *Reader) (*CreateDescBody, error) {
	enc, err := r.GetBytes32()
	if err != nil {
		return nil, err
	}
	rent, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	return &CreateDescBody{Encoded: enc, RentValue: rent}, nil
}

func executeCreateDesc(ctx *ExecContext, tx *Transaction, b *CreateDescBody, fees *FeeCounter) (*Receipt, error) {
	obj, err := DecodeNamedObject(b.Encoded, ObjTypeAny)
	if err != nil {
		return nil, NewErr(ErrInvalidData, "create_desc: %v", err)
	}
	id := obj.Id()
	if _, exists := ctx.State.AllDescs(id); exists {
		return nil, NewErr(ErrAlreadyExists, "desc %s already registered", id)
	}
	ctx.State.SetAllDescs(id, b.Encoded)
	ctx.State.SetDescExtra(id, DescExtra{RentValue: b.RentValue})
	receipt := newReceipt(tx, ErrOK, 0)
	receipt.ReturnValue = id[:]
	return receipt, nil
}

// UpdateDescBody registers a new revision of a descriptor whose prev
// pointer chains to the current one. The new revision is stored under its
// own id with the old one's DescExtra copied; the old revision stays
// registered.
type UpdateDescBody struct {
	Id      ObjectId
	Encoded []byte
}

func (b *UpdateDescBody) Kind() TxBodyKind { return TxUpdateDesc }
func (b *UpdateDescBody) measure() int     { return 32 + 4 + len(b.Encoded) }
func (b *UpdateDescBody) encode(w *Writer) {
	w.PutRaw(b.Id[:])
	w.PutBytes32(b.Encoded)
}

func decodeUpdateDesc(r *Reader) (*UpdateDescBody, error) {
	id, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	enc, err := r.GetBytes32()
	if err != nil {
		return nil, err
	}
	b := &UpdateDescBody{Encoded: enc}
	copy(b.Id[:], id)
	return b, nil
}

func executeUpdateDesc(ctx *ExecContext, tx *Transaction, b *UpdateDescBody, fees *FeeCounter) (*Receipt, error) {
	old, ok := ctx.State.AllDescs(b.Id)
	if !ok {
		return nil, NewErr(ErrNotFound, "desc %s", b.Id)
	}
	oldObj, err := DecodeNamedObject(old, ObjTypeAny)
	if err != nil {
		return nil, NewErr(ErrInvalidData, "update_desc: decode prior: %v", err)
	}
	newObj, err := DecodeNamedObject(b.Encoded, ObjTypeAny)
	if err != nil {
		return nil, NewErr(ErrInvalidData, "update_desc: decode new: %v", err)
	}
	if newObj.Desc.Prev == nil || *newObj.Desc.Prev != oldObj.Id() {
		return nil, NewErr(ErrInvalidParam, "update_desc: prev pointer must chain to the current revision")
	}
	newID := newObj.Id()
	ctx.State.SetAllDescs(newID, b.Encoded)
	extra := ctx.State.DescExtra(b.Id)
	ctx.State.SetDescExtra(newID, extra)
	return newReceipt(tx, ErrOK, 0), nil
}

// RemoveDescBody deletes a registered descriptor.
type RemoveDescBody struct {
	Id ObjectId
}

func (b *RemoveDescBody) Kind() TxBodyKind { return TxRemoveDesc }
func (b *RemoveDescBody) measure() int     { return 32 }
func (b *RemoveDescBody) encode(w *Writer) { w.PutRaw(b.Id[:]) }

func decodeRemoveDesc(r *Reader) (*RemoveDescBody, error) {
	id, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	b := &RemoveDescBody{}
	copy(b.Id[:], id)
	return b, nil
}

func executeRemoveDesc(ctx *ExecContext, tx *Transaction, b *RemoveDescBody, fees *FeeCounter) (*Receipt, error) {
	if _, ok := ctx.State.AllDescs(b.Id); !ok {
		return nil, NewErr(ErrNotFound, "desc %s", b.Id)
	}
	ctx.State.SetAllDescs(b.Id, nil)
	ctx.State.Delete(descKey(b.Id))
	ctx.State.Delete(descExtraKey(b.Id))
	return newReceipt(tx, ErrOK, 0), nil
}
