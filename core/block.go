package core

// block.go – the chain's block envelope (§4.G): a header carrying height,
// prev hash, state root and tx root, a body carrying the ordered
// transaction list, and the BFT miner-group signatures that make it final.
// Reintroduces the teacher's Block/BlockHeader/BlockBody shape from
// ledger.go, generalized from PoW/PoH sub-blocks to a single BFT-sealed
// block per height, and RLP-encoded for storage exactly as the teacher's
// DecodeBlockRLP already assumed.

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// BlockHeader is the portion of a block that gets hashed and signed by the
// miner group.
type BlockHeader struct {
	Height    uint64
	Timestamp int64
	PrevHash  Hash
	StateRoot Hash
	TxRoot    Hash
	Leader    Address
}

// Block is a sealed unit of chain history: a header, its transactions, and
// the BFT desc-signatures (one per endorsing miner, by RefIndex) proving
// quorum agreement.
type Block struct {
	Header BlockHeader
	Txs    []*Transaction
	Sigs   []Signature
}

// rlpBlockHeader and rlpBlock mirror Block/BlockHeader field-for-field in
// RLP-friendly form: RLP has no notion of a fixed-size byte array type
// alias, so Hash/Address fields cross the boundary as plain byte slices.
type rlpBlockHeader struct {
	Height    uint64
	Timestamp int64
	PrevHash  []byte
	StateRoot []byte
	TxRoot    []byte
	Leader    []byte
}

type rlpSignature struct {
	SourceKind uint8
	SourceKey  []byte
	SourceObj  []byte
	RefIndex   uint8
	Created    int64
	Value      []byte
}

type rlpBlock struct {
	Header rlpBlockHeader
	Txs    [][]byte // each tx's EncodeTop'd wire bytes
	Sigs   []rlpSignature
}

func toRLPHeader(h BlockHeader) rlpBlockHeader {
	return rlpBlockHeader{
		Height:    h.Height,
		Timestamp: h.Timestamp,
		PrevHash:  h.PrevHash[:],
		StateRoot: h.StateRoot[:],
		TxRoot:    h.TxRoot[:],
		Leader:    h.Leader[:],
	}
}

func fromRLPHeader(h rlpBlockHeader) BlockHeader {
	var out BlockHeader
	out.Height = h.Height
	out.Timestamp = h.Timestamp
	copy(out.PrevHash[:], h.PrevHash)
	copy(out.StateRoot[:], h.StateRoot)
	copy(out.TxRoot[:], h.TxRoot)
	copy(out.Leader[:], h.Leader)
	return out
}

func toRLPSig(s Signature) rlpSignature {
	return rlpSignature{
		SourceKind: uint8(s.Source.Kind),
		SourceKey:  s.Source.Key,
		SourceObj:  s.Source.ObjectID[:],
		RefIndex:   s.Source.RefIndex,
		Created:    s.CreatedTime,
		Value:      s.Value,
	}
}

func fromRLPSig(r rlpSignature) Signature {
	src := SignSource{Kind: SignSourceKind(r.SourceKind), Key: r.SourceKey, RefIndex: r.RefIndex}
	copy(src.ObjectID[:], r.SourceObj)
	return Signature{Source: src, CreatedTime: r.Created, Value: r.Value}
}

// EncodeBlockRLP serializes a block for WAL/snapshot storage, matching the
// teacher's rlp.DecodeBytes-based load path.
func EncodeBlockRLP(b *Block) ([]byte, error) {
	rb := rlpBlock{Header: toRLPHeader(b.Header)}
	for _, tx := range b.Txs {
		rb.Txs = append(rb.Txs, EncodeTop(tx, PurposeSerialize))
	}
	for _, s := range b.Sigs {
		rb.Sigs = append(rb.Sigs, toRLPSig(s))
	}
	return rlp.EncodeToBytes(&rb)
}

// DecodeBlockRLP is the inverse of EncodeBlockRLP.
func DecodeBlockRLP(data []byte) (*Block, error) {
	var rb rlpBlock
	if err := rlp.DecodeBytes(data, &rb); err != nil {
		return nil, NewErr(ErrBlockDecodeFailed, "rlp decode block: %v", err)
	}
	b := &Block{Header: fromRLPHeader(rb.Header)}
	for _, raw := range rb.Txs {
		tx, err := DecodeTransaction(raw)
		if err != nil {
			return nil, NewErr(ErrBlockDecodeFailed, "decode block tx: %v", err)
		}
		b.Txs = append(b.Txs, tx)
	}
	for _, rs := range rb.Sigs {
		b.Sigs = append(b.Sigs, fromRLPSig(rs))
	}
	return b, nil
}

// Hash returns the block header's content hash, the value signed by the
// miner group and chained by the next block's PrevHash.
func (h BlockHeader) Hash() Hash {
	rh := toRLPHeader(h)
	enc, err := rlp.EncodeToBytes(&rh)
	if err != nil {
		panic("block header must always rlp-encode: " + err.Error())
	}
	return Hash(computeObjectId(enc, ObjTypeMetaBlock, 0))
}

// TxRoot computes the Merkle root over a block's encoded transactions,
// reusing the package's generic Merkle helper rather than a bespoke tree.
func TxRoot(txs []*Transaction) Hash {
	if len(txs) == 0 {
		return Hash{}
	}
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = EncodeTop(tx, PurposeHash)
	}
	tree, err := BuildMerkleTree(leaves)
	if err != nil {
		return Hash{}
	}
	return Hash(tree[len(tree)-1][0])
}
