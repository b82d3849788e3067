package core

// handlers_nft.go – NFT registration, fixed-price sale (apply/agree) and
// timed auction (§3/§4.E). Mirrors the escrow-a-bid shape of the name
// auction in handlers_name.go. No event settles an NFT auction when its
// AuctionEnd height passes; from then on further bids are refused.
// Grounded on the teacher's marketplace-escrow contract pattern.

// NFTRegisterBody mints a new NFT record bound to an already-registered
// descriptor.
type NFTRegisterBody struct {
	Desc ObjectId
	Name string
}

func (b *NFTRegisterBody) Kind() TxBodyKind { return TxNFTRegister }
func (b *NFTRegisterBody) measure() int     { return 32 + 2 + len(b.Name) }
func (b *NFTRegisterBody) encode(w *Writer) {
	w.PutRaw(b.Desc[:])
	w.PutBytes16([]byte(b.Name))
}

func decodeNFTRegister(r *Reader) (*NFTRegisterBody, error) {
	id, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	name, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	b := &NFTRegisterBody{Name: string(name)}
	copy(b.Desc[:], id)
	return b, nil
}

func executeNFTRegister(ctx *ExecContext, tx *Transaction, b *NFTRegisterBody, fees *FeeCounter) (*Receipt, error) {
	if _, ok := ctx.State.AllDescs(b.Desc); !ok {
		return nil, NewErr(ErrNotFound, "nft_register: desc %s is not registered", b.Desc)
	}
	if _, exists := ctx.State.NFT(b.Desc); exists {
		return nil, NewErr(ErrAlreadyExists, "nft %s already registered", b.Desc)
	}
	ctx.State.SetNFT(b.Desc, NFTRecord{Desc: b.Desc, Name: b.Name, State: NFTNormal, Owner: tx.Caller, Seller: tx.Caller})
	return newReceipt(tx, ErrOK, 0), nil
}

// NFTApplyBuyBody escrows funds for a fixed-price purchase; the seller must
// separately agree via NFTAgreeApplyBody before ownership changes hands.
type NFTApplyBuyBody struct {
	Desc  ObjectId
	Coin  string
	Price int64
}

func (b *NFTApplyBuyBody) Kind() TxBodyKind { return TxNFTApplyBuy }
func (b *NFTApplyBuyBody) measure() int     { return 32 + 2 + len(b.Coin) + 8 }
func (b *NFTApplyBuyBody) encode(w *Writer) {
	w.PutRaw(b.Desc[:])
	w.PutBytes16([]byte(b.Coin))
	w.PutI64(b.Price)
}

func decodeNFTApplyBuy(r *Reader) (*NFTApplyBuyBody, error) {
	id, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	coin, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	price, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	b := &NFTApplyBuyBody{Coin: string(coin), Price: price}
	copy(b.Desc[:], id)
	return b, nil
}

func executeNFTApplyBuy(ctx *ExecContext, tx *Transaction, b *NFTApplyBuyBody, fees *FeeCounter) (*Receipt, error) {
	rec, ok := ctx.State.NFT(b.Desc)
	if !ok || rec.State != NFTNormal {
		return nil, NewErr(ErrInvalidParam, "nft_apply_buy: %s is not for sale", b.Desc)
	}
	if ctx.State.Balance(b.Coin, tx.Caller) < b.Price {
		return nil, NewErr(ErrNoEnoughBalance, "nft_apply_buy: insufficient balance")
	}
	ctx.State.IncBalance(b.Coin, tx.Caller, -b.Price)
	rec.State = NFTSelling
	rec.Coin = b.Coin
	rec.Price = b.Price
	rec.Seller = rec.Owner
	rec.HighBidder = tx.Caller
	ctx.State.SetNFT(b.Desc, rec)
	return newReceipt(tx, ErrOK, 0), nil
}

// NFTAgreeApplyBody lets the seller accept a pending buy application,
// transferring ownership and releasing the escrowed price.
type NFTAgreeApplyBody struct {
	Desc ObjectId
}

func (b *NFTAgreeApplyBody) Kind() TxBodyKind { return TxNFTAgreeApply }
func (b *NFTAgreeApplyBody) measure() int     { return 32 }
func (b *NFTAgreeApplyBody) encode(w *Writer) { w.PutRaw(b.Desc[:]) }

func decodeNFTAgreeApply(r *Reader) (*NFTAgreeApplyBody, error) {
	id, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	b := &NFTAgreeApplyBody{}
	copy(b.Desc[:], id)
	return b, nil
}

func executeNFTAgreeApply(ctx *ExecContext, tx *Transaction, b *NFTAgreeApplyBody, fees *FeeCounter) (*Receipt, error) {
	rec, ok := ctx.State.NFT(b.Desc)
	if !ok || rec.State != NFTSelling {
		return nil, NewErr(ErrInvalidParam, "nft_agree_apply: %s has no pending application", b.Desc)
	}
	if rec.Seller != tx.Caller {
		return nil, NewErr(ErrAccessDenied, "nft_agree_apply: caller is not the seller")
	}
	ctx.State.IncBalance(rec.Coin, rec.Seller, rec.Price)
	rec.Owner = rec.HighBidder
	rec.State = NFTNormal
	rec.Seller = rec.Owner
	rec.HighBidder = Address{}
	rec.Price = 0
	ctx.State.SetNFT(b.Desc, rec)
	return newReceipt(tx, ErrOK, 0), nil
}

// NFTAuctionBody starts a timed ascending auction.
type NFTAuctionBody struct {
	Desc       ObjectId
	Coin       string
	StartPrice int64
	Duration   int64
}

func (b *NFTAuctionBody) Kind() TxBodyKind { return TxNFTAuction }
func (b *NFTAuctionBody) measure() int     { return 32 + 2 + len(b.Coin) + 8 + 8 }
func (b *NFTAuctionBody) encode(w *Writer) {
	w.PutRaw(b.Desc[:])
	w.PutBytes16([]byte(b.Coin))
	w.PutI64(b.StartPrice)
	w.PutI64(b.Duration)
}

func decodeNFTAuction(r *Reader) (*NFTAuctionBody, error) {
	id, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	coin, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	price, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	dur, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	b := &NFTAuctionBody{Coin: string(coin), StartPrice: price, Duration: dur}
	copy(b.Desc[:], id)
	return b, nil
}

func executeNFTAuction(ctx *ExecContext, tx *Transaction, b *NFTAuctionBody, fees *FeeCounter) (*Receipt, error) {
	rec, ok := ctx.State.NFT(b.Desc)
	if !ok || rec.State != NFTNormal {
		return nil, NewErr(ErrInvalidParam, "nft_auction: %s is not available", b.Desc)
	}
	if rec.Owner != tx.Caller {
		return nil, NewErr(ErrAccessDenied, "nft_auction: caller does not own %s", b.Desc)
	}
	rec.State = NFTAuctioning
	rec.Coin = b.Coin
	rec.StartPrice = b.StartPrice
	rec.HighBid = 0
	rec.HighBidder = Address{}
	rec.AuctionEnd = int64(ctx.Height) + b.Duration
	ctx.State.SetNFT(b.Desc, rec)
	return newReceipt(tx, ErrOK, 0), nil
}

// NFTBidBody raises the current high bid in an NFT auction.
type NFTBidBody struct {
	Desc ObjectId
	Bid  int64
}

func (b *NFTBidBody) Kind() TxBodyKind { return TxNFTBid }
func (b *NFTBidBody) measure() int     { return 32 + 8 }
func (b *NFTBidBody) encode(w *Writer) {
	w.PutRaw(b.Desc[:])
	w.PutI64(b.Bid)
}

func decodeNFTBid(r *Reader) (*NFTBidBody, error) {
	id, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	bid, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	b := &NFTBidBody{Bid: bid}
	copy(b.Desc[:], id)
	return b, nil
}

func executeNFTBid(ctx *ExecContext, tx *Transaction, b *NFTBidBody, fees *FeeCounter) (*Receipt, error) {
	rec, ok := ctx.State.NFT(b.Desc)
	if !ok || rec.State != NFTAuctioning {
		return nil, NewErr(ErrInvalidParam, "nft_bid: %s is not under auction", b.Desc)
	}
	if int64(ctx.Height) >= rec.AuctionEnd {
		return nil, NewErr(ErrOutOfLimit, "nft_bid: auction for %s has ended", b.Desc)
	}
	floor := rec.StartPrice
	if rec.HighBid > floor {
		floor = rec.HighBid
	}
	if b.Bid <= floor {
		return nil, NewErr(ErrInvalidParam, "nft_bid: bid %d does not exceed %d", b.Bid, floor)
	}
	if ctx.State.Balance(rec.Coin, tx.Caller) < b.Bid {
		return nil, NewErr(ErrNoEnoughBalance, "nft_bid: insufficient balance")
	}
	if rec.HighBidder != (Address{}) {
		ctx.State.IncBalance(rec.Coin, rec.HighBidder, rec.HighBid)
	}
	ctx.State.IncBalance(rec.Coin, tx.Caller, -b.Bid)
	rec.HighBid = b.Bid
	rec.HighBidder = tx.Caller
	ctx.State.SetNFT(b.Desc, rec)
	return newReceipt(tx, ErrOK, 0), nil
}
