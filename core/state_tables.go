package core

// state_tables.go – typed accessors over StateStore for each entity class
// named in §3. Values are JSON-encoded (matching the teacher's ledger.go
// persistence style) so state_hash() only ever depends on well-defined
// byte contents, never on Go struct layout.

import (
	"encoding/json"
	"fmt"
)

func balanceKey(coin string, addr Address) string { return fmt.Sprintf("bal/%s/%s", coin, addr) }

// Balance returns the current balance for (coin, account); zero if unset.
func (s *StateStore) Balance(coin string, addr Address) int64 {
	v, ok := s.Get(balanceKey(coin, addr))
	if !ok {
		return 0
	}
	var n int64
	_ = json.Unmarshal(v, &n)
	return n
}

// SetBalance overwrites the balance for (coin, account).
func (s *StateStore) SetBalance(coin string, addr Address, amount int64) {
	b, _ := json.Marshal(amount)
	s.Set(balanceKey(coin, addr), b)
}

// IncBalance adds delta (may be negative) to the balance and returns the
// new total.
func (s *StateStore) IncBalance(coin string, addr Address, delta int64) int64 {
	n := s.Balance(coin, addr) + delta
	s.SetBalance(coin, addr, n)
	return n
}

// UnionBalance is the off-chain-lightning-style joint balance of §3: two
// sides, a signed deviation against the last agreed split, and a
// strictly-increasing sequence number that orders deviations.
type UnionBalance struct {
	Left      int64  `json:"left"`
	Right     int64  `json:"right"`
	Deviation int64  `json:"deviation"`
	Seq       uint64 `json:"seq"`
}

func unionKey(coin, unionID string) string { return fmt.Sprintf("union/%s/%s", coin, unionID) }

// Union returns the union account for (coin, unionID), or the zero value
// and false if it has never been created.
func (s *StateStore) Union(coin, unionID string) (UnionBalance, bool) {
	v, ok := s.Get(unionKey(coin, unionID))
	if !ok {
		return UnionBalance{}, false
	}
	var u UnionBalance
	_ = json.Unmarshal(v, &u)
	return u, true
}

// SetUnion overwrites the union account for (coin, unionID).
func (s *StateStore) SetUnion(coin, unionID string, u UnionBalance) {
	b, _ := json.Marshal(u)
	s.Set(unionKey(coin, unionID), b)
}

func nonceKey(addr Address) string { return "nonce/" + addr.String() }

// AccountNonce returns the account's stored nonce (0 if never set).
func (s *StateStore) AccountNonce(addr Address) int64 {
	v, ok := s.Get(nonceKey(addr))
	if !ok {
		return 0
	}
	var n int64
	_ = json.Unmarshal(v, &n)
	return n
}

// BumpNonce increments the account's nonce by exactly 1 and returns the new
// value, enforcing §3's "strictly monotone increasing by 1" rule.
func (s *StateStore) BumpNonce(addr Address) int64 {
	n := s.AccountNonce(addr) + 1
	b, _ := json.Marshal(n)
	s.Set(nonceKey(addr), b)
	return n
}

// NameState is the lifecycle state of a registered name.
type NameState uint8

const (
	NameAuction NameState = iota
	NameNormal
	NameLock
)

// NameInfo is the public record for a registered name.
type NameInfo struct {
	Owner      Address   `json:"owner"`
	State      NameState `json:"state"`
	AuctionBid int64     `json:"auction_bid"`
	Bidder     Address   `json:"bidder"`
	LinkedDesc ObjectId  `json:"linked_desc"`
}

// NameExtra is rent bookkeeping for a name, per §4.E's rent/arrears rule.
type NameExtra struct {
	RentValue   int64 `json:"rent_value"`
	RentArrears int64 `json:"rent_arrears"`
	LastRentAt  int64 `json:"last_rent_at"`
}

func nameKey(name string) string      { return "name/" + name }
func nameExtraKey(name string) string { return "name_extra/" + name }

func (s *StateStore) NameInfo(name string) (NameInfo, bool) {
	v, ok := s.Get(nameKey(name))
	if !ok {
		return NameInfo{}, false
	}
	var ni NameInfo
	_ = json.Unmarshal(v, &ni)
	return ni, true
}

func (s *StateStore) SetNameInfo(name string, ni NameInfo) {
	b, _ := json.Marshal(ni)
	s.Set(nameKey(name), b)
}

func (s *StateStore) NameExtra(name string) NameExtra {
	v, ok := s.Get(nameExtraKey(name))
	if !ok {
		return NameExtra{}
	}
	var ne NameExtra
	_ = json.Unmarshal(v, &ne)
	return ne
}

func (s *StateStore) SetNameExtra(name string, ne NameExtra) {
	b, _ := json.Marshal(ne)
	s.Set(nameExtraKey(name), b)
}

// DescExtra is rent bookkeeping for a registered descriptor object.
type DescExtra struct {
	RentValue   int64 `json:"rent_value"`
	RentArrears int64 `json:"rent_arrears"`
}

func descExtraKey(id ObjectId) string { return "desc_extra/" + id.String() }
func descKey(id ObjectId) string      { return "desc/" + id.String() }

func (s *StateStore) DescExtra(id ObjectId) DescExtra {
	v, ok := s.Get(descExtraKey(id))
	if !ok {
		return DescExtra{}
	}
	var de DescExtra
	_ = json.Unmarshal(v, &de)
	return de
}

func (s *StateStore) SetDescExtra(id ObjectId, de DescExtra) {
	b, _ := json.Marshal(de)
	s.Set(descExtraKey(id), b)
}

// AllDescs reads the encoded descriptor blob registered for id.
func (s *StateStore) AllDescs(id ObjectId) ([]byte, bool) {
	return s.Get(descKey(id))
}

// SetAllDescs stores the encoded descriptor blob for id.
func (s *StateStore) SetAllDescs(id ObjectId, encoded []byte) {
	s.Set(descKey(id), encoded)
}

// NFTState is the lifecycle state of a registered NFT.
type NFTState uint8

const (
	NFTNormal NFTState = iota
	NFTSelling
	NFTAuctioning
)

// NFTRecord is the chain-state record for one NFT, per §3/§4.E.
type NFTRecord struct {
	Desc   ObjectId `json:"desc"`
	Name   string   `json:"name"`
	State  NFTState `json:"state"`
	Price  int64    `json:"price"`
	Coin   string   `json:"coin"`
	Seller Address  `json:"seller"`
	Owner  Address  `json:"owner"`

	// Selling
	SellDeadline int64 `json:"sell_deadline,omitempty"`

	// Auctioning
	StartPrice   int64   `json:"start_price,omitempty"`
	HighBid      int64   `json:"high_bid,omitempty"`
	HighBidder   Address `json:"high_bidder,omitempty"`
	AuctionEnd   int64   `json:"auction_end,omitempty"`
}

func nftKey(id ObjectId) string { return "nft/" + id.String() }

func (s *StateStore) NFT(id ObjectId) (NFTRecord, bool) {
	v, ok := s.Get(nftKey(id))
	if !ok {
		return NFTRecord{}, false
	}
	var n NFTRecord
	_ = json.Unmarshal(v, &n)
	return n, true
}

func (s *StateStore) SetNFT(id ObjectId, rec NFTRecord) {
	b, _ := json.Marshal(rec)
	s.Set(nftKey(id), b)
}

// EVM storage accessors — see evm_statedb.go for the vm.StateDB adapter
// that drives these during contract execution.

func evmCodeKey(addr Address) string             { return "evm_code/" + addr.String() }
func evmStorageKey(addr Address, slot Hash) string { return fmt.Sprintf("evm_storage/%s/%s", addr, slot) }
func evmBeneficiaryKey(addr Address) string      { return "evm_benef/" + addr.String() }

func (s *StateStore) EVMCode(addr Address) []byte {
	v, _ := s.Get(evmCodeKey(addr))
	return v
}

func (s *StateStore) SetEVMCode(addr Address, code []byte) {
	s.Set(evmCodeKey(addr), code)
}

func (s *StateStore) EVMStorage(addr Address, slot Hash) Hash {
	v, ok := s.Get(evmStorageKey(addr, slot))
	if !ok {
		return Hash{}
	}
	var h Hash
	copy(h[:], v)
	return h
}

func (s *StateStore) SetEVMStorage(addr Address, slot, value Hash) {
	s.Set(evmStorageKey(addr, slot), value[:])
}

func (s *StateStore) EVMBeneficiary(addr Address) (Address, bool) {
	v, ok := s.Get(evmBeneficiaryKey(addr))
	if !ok {
		return Address{}, false
	}
	var a Address
	copy(a[:], v)
	return a, true
}

func (s *StateStore) SetEVMBeneficiary(addr, beneficiary Address) {
	s.Set(evmBeneficiaryKey(addr), beneficiary[:])
}

// EVMLog is a single persisted, topic-indexed EVM log entry (§3 "log(addr,
// block, topics[0..4], data)").
type EVMLog struct {
	Address Address  `json:"address"`
	Block   uint64   `json:"block"`
	Topics  []Hash   `json:"topics"`
	Data    []byte   `json:"data"`
}

func evmLogKey(addr Address, block uint64, idx int) string {
	return fmt.Sprintf("evm_log/%s/%020d/%06d", addr, block, idx)
}

// AppendEVMLog persists an EVM log under a key ordered by (address, block,
// index) so PrefixKeys can page through an address's logs in emission
// order.
func (s *StateStore) AppendEVMLog(l EVMLog, idx int) {
	b, _ := json.Marshal(l)
	s.Set(evmLogKey(l.Address, l.Block, idx), b)
}

// EVMLogsForAddress returns every log emitted by addr, in emission order.
func (s *StateStore) EVMLogsForAddress(addr Address) []EVMLog {
	prefix := fmt.Sprintf("evm_log/%s/", addr)
	var out []EVMLog
	for _, k := range s.PrefixKeys(prefix) {
		v, _ := s.Get(k)
		var l EVMLog
		if err := json.Unmarshal(v, &l); err == nil {
			out = append(out, l)
		}
	}
	return out
}
