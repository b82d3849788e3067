package core

// rent.go – the cyclic name-rent handler wired into the Scheduler (§4.E
// "Rent is a cyclic event at period rent_cycle keyed by name"). Adapted
// from the teacher's rental_management.go lease-payment flow: the same
// debit-on-tick, deactivate-on-default shape, generalized from a single
// landlord/tenant lease to the chain's name-ownership rent bracket.

import "fmt"

// RentLockThreshold is the arrears multiple of one rent_value at or above
// which a name transitions to Lock, per §4.E.
const RentLockThreshold = 3

// RentCoin is the coin rent is denominated and debited in.
const RentCoin = "native"

// NewRentHandler returns the EventHandler registered under kind "rent" for
// the cyclic rent-collection event installed by the auction-stop handler
// (newAuctionStopHandler in handlers_name.go). It is a pure function of
// (height, key, payload, state): on each tick it debits the owner,
// accumulates arrears on underflow, and locks the name once arrears reach
// the threshold.
func NewRentHandler() EventHandler {
	return func(height uint64, key string, payload []byte, state *StateStore) error {
		name := key
		info, ok := state.NameInfo(name)
		if !ok || info.State == NameAuction {
			return nil // name not yet settled; nothing to collect
		}
		extra := state.NameExtra(name)
		if extra.RentValue <= 0 {
			return nil
		}
		bal := state.Balance(RentCoin, info.Owner)
		if bal >= extra.RentValue {
			state.IncBalance(RentCoin, info.Owner, -extra.RentValue)
			extra.RentArrears = 0
		} else {
			state.IncBalance(RentCoin, info.Owner, -bal)
			extra.RentArrears += extra.RentValue - bal
			if extra.RentArrears >= extra.RentValue*RentLockThreshold {
				info.State = NameLock
				state.SetNameInfo(name, info)
				if err := state.IndexName(name); err != nil {
					return err
				}
			}
		}
		extra.LastRentAt = int64(height)
		state.SetNameExtra(name, extra)
		return nil
	}
}

// ClearArrears returns a locked name to Normal once its arrears are zero,
// and fails while arrears remain. BuyBackName calls it after debiting the
// arrears; TransBalance calls it for the recipient's locked names whose
// arrears are already zero. A TransBalance does not itself pay arrears.
func ClearArrears(state *StateStore, name string) error {
	info, ok := state.NameInfo(name)
	if !ok {
		return NewErr(ErrNotFound, "name %s", name)
	}
	extra := state.NameExtra(name)
	if extra.RentArrears > 0 {
		return NewErr(ErrInvalidParam, "arrears remain: %d", extra.RentArrears)
	}
	if info.State == NameLock {
		info.State = NameNormal
		state.SetNameInfo(name, info)
		if err := state.IndexName(name); err != nil {
			return err
		}
	}
	return nil
}

func rentEventKey(name string) string { return fmt.Sprintf("rent/%s", name) }
