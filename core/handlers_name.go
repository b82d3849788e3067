package core

// handlers_name.go – name auction, bidding, linking and rent-lock recovery
// (§4.E). Adapted from the teacher's UTXO-style timed-auction flow
// (bid/raise/settle), generalized to drive the ObjectMap-backed name table
// instead of a single coin output, and wired to the cyclic rent handler in
// rent.go once an auction settles.

const auctionStopKind = "auction_stop"
const rentKind = "rent"

// RegisterDefaultHandlers wires every built-in event kind this package's tx
// handlers schedule. Callers constructing a Scheduler for block execution
// must call this once before Fire is ever invoked.
func RegisterDefaultHandlers(s *Scheduler) {
	s.RegisterHandler(rentKind, NewRentHandler())
	s.RegisterHandler(auctionStopKind, newAuctionStopHandler())
}

// AuctionNameBody starts a timed auction for an unregistered or
// previously-released name.
type AuctionNameBody struct {
	Name       string
	StartPrice int64
	Duration   uint64 // blocks until settlement
	RentValue  int64
}

func (b *AuctionNameBody) Kind() TxBodyKind { return TxAuctionName }
func (b *AuctionNameBody) measure() int     { return 2 + len(b.Name) + 8 + 8 + 8 }
func (b *AuctionNameBody) encode(w *Writer) {
	w.PutBytes16([]byte(b.Name))
	w.PutI64(b.StartPrice)
	w.PutU64(b.Duration)
	w.PutI64(b.RentValue)
}

func decodeAuctionName(r *Reader) (*AuctionNameBody, error) {
	name, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	price, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	dur, err := r.GetU64()
	if err != nil {
		return nil, err
	}
	rent, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	return &AuctionNameBody{Name: string(name), StartPrice: price, Duration: dur, RentValue: rent}, nil
}

func executeAuctionName(ctx *ExecContext, tx *Transaction, b *AuctionNameBody, fees *FeeCounter) (*Receipt, error) {
	existing, exists := ctx.State.NameInfo(b.Name)
	if exists && existing.State != NameLock {
		// A name already in Normal state may only be re-auctioned by its own
		// owner (reopening bidding on a name they hold); anyone else, or an
		// active auction, is rejected.
		if existing.State != NameNormal || existing.Owner != tx.Caller {
			return nil, NewErr(ErrAlreadyExists, "name %s already registered", b.Name)
		}
	}
	stopHeight := ctx.Height + b.Duration
	next := NameInfo{State: NameAuction, AuctionBid: b.StartPrice}
	if exists {
		// Preserve the current owner/link so a re-auction that draws no
		// higher bid reverts to them instead of deleting an owned name.
		next.Owner = existing.Owner
		next.LinkedDesc = existing.LinkedDesc
	}
	ctx.State.SetNameInfo(b.Name, next)
	ctx.State.SetNameExtra(b.Name, NameExtra{RentValue: b.RentValue})
	if err := ctx.State.IndexName(b.Name); err != nil {
		return nil, err
	}
	if err := ctx.Scheduler.ScheduleOneShot(ctx.State, auctionStopKind, stopHeight, b.Name, nil); err != nil {
		return nil, err
	}
	return newReceipt(tx, ErrOK, 0), nil
}

// BidNameBody raises the current high bid on a name under auction.
type BidNameBody struct {
	Name string
	Bid  int64
}

func (b *BidNameBody) Kind() TxBodyKind { return TxBidName }
func (b *BidNameBody) measure() int     { return 2 + len(b.Name) + 8 }
func (b *BidNameBody) encode(w *Writer) {
	w.PutBytes16([]byte(b.Name))
	w.PutI64(b.Bid)
}

func decodeBidName(r *Reader) (*BidNameBody, error) {
	name, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	bid, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	return &BidNameBody{Name: string(name), Bid: bid}, nil
}

func executeBidName(ctx *ExecContext, tx *Transaction, b *BidNameBody, fees *FeeCounter) (*Receipt, error) {
	info, ok := ctx.State.NameInfo(b.Name)
	if !ok || info.State != NameAuction {
		return nil, NewErr(ErrInvalidParam, "name %s is not under auction", b.Name)
	}
	if b.Bid <= info.AuctionBid {
		return nil, NewErr(ErrInvalidParam, "bid %d does not exceed current high bid %d", b.Bid, info.AuctionBid)
	}
	if ctx.State.Balance(RentCoin, tx.Caller) < b.Bid {
		return nil, NewErr(ErrNoEnoughBalance, "bid_name: insufficient balance to escrow bid")
	}
	prevBidder, prevBid := info.Bidder, info.AuctionBid
	if prevBid > 0 && prevBidder != (Address{}) {
		ctx.State.IncBalance(RentCoin, prevBidder, prevBid)
	}
	ctx.State.IncBalance(RentCoin, tx.Caller, -b.Bid)
	info.AuctionBid = b.Bid
	info.Bidder = tx.Caller
	ctx.State.SetNameInfo(b.Name, info)
	if err := ctx.State.IndexName(b.Name); err != nil {
		return nil, err
	}
	return newReceipt(tx, ErrOK, 0), nil
}

// CancelAuctionNameBody withdraws a name from auction, refunding the high
// bidder, if any bid was ever placed.
type CancelAuctionNameBody struct {
	Name string
}

func (b *CancelAuctionNameBody) Kind() TxBodyKind { return TxCancelAuctionName }
func (b *CancelAuctionNameBody) measure() int     { return 2 + len(b.Name) }
func (b *CancelAuctionNameBody) encode(w *Writer) { w.PutBytes16([]byte(b.Name)) }

func decodeCancelAuctionName(r *Reader) (*CancelAuctionNameBody, error) {
	name, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	return &CancelAuctionNameBody{Name: string(name)}, nil
}

func executeCancelAuctionName(ctx *ExecContext, tx *Transaction, b *CancelAuctionNameBody, fees *FeeCounter) (*Receipt, error) {
	info, ok := ctx.State.NameInfo(b.Name)
	if !ok || info.State != NameAuction {
		return nil, NewErr(ErrInvalidParam, "name %s is not under auction", b.Name)
	}
	if info.Bidder != (Address{}) {
		ctx.State.IncBalance(RentCoin, info.Bidder, info.AuctionBid)
	}
	if info.Owner == (Address{}) {
		// Never owned before this auction: cancelling leaves nothing behind.
		ctx.State.Delete(nameKey(b.Name))
		ctx.State.Delete(nameExtraKey(b.Name))
		if err := ctx.State.RemoveNameIndex(b.Name); err != nil {
			return nil, err
		}
		return newReceipt(tx, ErrOK, 0), nil
	}
	// A re-auction of an owned name: cancelling reverts to the owner rather
	// than destroying the name.
	info.State = NameNormal
	info.AuctionBid = 0
	info.Bidder = Address{}
	ctx.State.SetNameInfo(b.Name, info)
	if err := ctx.State.IndexName(b.Name); err != nil {
		return nil, err
	}
	return newReceipt(tx, ErrOK, 0), nil
}

// newAuctionStopHandler finalizes an auction once its one-shot timer
// fires: the high bidder becomes owner and the name's cyclic rent timer is
// armed.
func newAuctionStopHandler() EventHandler {
	return func(height uint64, key string, payload []byte, state *StateStore) error {
		name := key
		info, ok := state.NameInfo(name)
		if !ok || info.State != NameAuction {
			return nil
		}
		if info.Bidder == (Address{}) {
			if info.Owner == (Address{}) {
				state.Delete(nameKey(name))
				state.Delete(nameExtraKey(name))
				return state.RemoveNameIndex(name)
			}
			// A re-auction of an owned name that drew no bid: revert to the
			// owner instead of deleting their name.
			info.AuctionBid = 0
			info.State = NameNormal
			state.SetNameInfo(name, info)
			return state.IndexName(name)
		}
		info.Owner = info.Bidder
		info.State = NameNormal
		state.SetNameInfo(name, info)
		if err := state.IndexName(name); err != nil {
			return err
		}
		extra := state.NameExtra(name)
		extra.LastRentAt = int64(height)
		state.SetNameExtra(name, extra)
		return (&Scheduler{}).ScheduleCyclic(state, rentKind, rentCyclePeriod, height, name, nil)
	}
}

// rentCyclePeriod is the block interval at which registered names are
// debited rent, per §4.E.
const rentCyclePeriod = 5_760 // ~1 day at one block per 15s

// UpdateNameBody re-points a name's linked descriptor.
type UpdateNameBody struct {
	Name       string
	LinkedDesc ObjectId
}

func (b *UpdateNameBody) Kind() TxBodyKind { return TxUpdateName }
func (b *UpdateNameBody) measure() int     { return 2 + len(b.Name) + 32 }
func (b *UpdateNameBody) encode(w *Writer) {
	w.PutBytes16([]byte(b.Name))
	w.PutRaw(b.LinkedDesc[:])
}

func decodeUpdateName(r *Reader) (*UpdateNameBody, error) {
	name, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	id, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	b := &UpdateNameBody{Name: string(name)}
	copy(b.LinkedDesc[:], id)
	return b, nil
}

func executeUpdateName(ctx *ExecContext, tx *Transaction, b *UpdateNameBody, fees *FeeCounter) (*Receipt, error) {
	info, ok := ctx.State.NameInfo(b.Name)
	if !ok {
		return nil, NewErr(ErrNotFound, "name %s", b.Name)
	}
	if info.Owner != tx.Caller {
		return nil, NewErr(ErrAccessDenied, "update_name: caller does not own %s", b.Name)
	}
	if info.State == NameLock {
		return nil, NewErr(ErrAccessDenied, "update_name: %s is locked for arrears", b.Name)
	}
	info.LinkedDesc = b.LinkedDesc
	ctx.State.SetNameInfo(b.Name, info)
	if err := ctx.State.IndexName(b.Name); err != nil {
		return nil, err
	}
	return newReceipt(tx, ErrOK, 0), nil
}

// BuyBackNameBody lets a locked name's owner clear arrears and regain full
// use of the name without going back through auction.
type BuyBackNameBody struct {
	Name string
}

func (b *BuyBackNameBody) Kind() TxBodyKind { return TxBuyBackName }
func (b *BuyBackNameBody) measure() int     { return 2 + len(b.Name) }
func (b *BuyBackNameBody) encode(w *Writer) { w.PutBytes16([]byte(b.Name)) }

func decodeBuyBackName(r *Reader) (*BuyBackNameBody, error) {
	name, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	return &BuyBackNameBody{Name: string(name)}, nil
}

func executeBuyBackName(ctx *ExecContext, tx *Transaction, b *BuyBackNameBody, fees *FeeCounter) (*Receipt, error) {
	info, ok := ctx.State.NameInfo(b.Name)
	if !ok || info.State != NameLock {
		return nil, NewErr(ErrInvalidParam, "name %s is not locked", b.Name)
	}
	if info.Owner != tx.Caller {
		return nil, NewErr(ErrAccessDenied, "buy_back_name: caller does not own %s", b.Name)
	}
	extra := ctx.State.NameExtra(b.Name)
	if ctx.State.Balance(RentCoin, tx.Caller) < extra.RentArrears {
		return nil, NewErr(ErrNoEnoughBalance, "buy_back_name: insufficient balance to clear arrears")
	}
	ctx.State.IncBalance(RentCoin, tx.Caller, -extra.RentArrears)
	extra.RentArrears = 0
	ctx.State.SetNameExtra(b.Name, extra)
	if err := ClearArrears(ctx.State, b.Name); err != nil {
		return nil, err
	}
	return newReceipt(tx, ErrOK, 0), nil
}
