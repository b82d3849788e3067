package core

// signature.go – desc-signatures and body-signatures, each an ordered
// sequence tagging the signing key by sign_source per §4.B. Verification
// resolution (Key / Object / RefIndex) is deliberately kept separate from
// encode/decode so the BFT miner can plug in the current miner-group
// roster when resolving RefIndex without this file depending on bft_miner.go.

import (
	"crypto/ecdsa"
	"crypto/elliptic"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignSourceKind discriminates how a Signature's key should be resolved.
type SignSourceKind uint8

const (
	SignSourceKey SignSourceKind = iota
	SignSourceObject
	SignSourceRefIndex
)

// SignSource identifies the signer of a Signature without necessarily
// embedding the key bytes.
type SignSource struct {
	Kind     SignSourceKind
	Key      []byte   // SignSourceKey
	ObjectID ObjectId // SignSourceObject
	RefIndex uint8    // SignSourceRefIndex: position in the miner roster, from 0; no index is reserved for an owner object
}

func (s SignSource) measure() int {
	switch s.Kind {
	case SignSourceKey:
		return 1 + 2 + len(s.Key)
	case SignSourceObject:
		return 1 + 32
	case SignSourceRefIndex:
		return 1 + 1
	default:
		return 1
	}
}

func (s SignSource) encode(w *Writer) {
	w.PutU8(uint8(s.Kind))
	switch s.Kind {
	case SignSourceKey:
		w.PutBytes16(s.Key)
	case SignSourceObject:
		w.PutRaw(s.ObjectID[:])
	case SignSourceRefIndex:
		w.PutU8(s.RefIndex)
	}
}

func decodeSignSource(r *Reader) (SignSource, error) {
	kind, err := r.GetU8()
	if err != nil {
		return SignSource{}, err
	}
	s := SignSource{Kind: SignSourceKind(kind)}
	switch s.Kind {
	case SignSourceKey:
		k, err := r.GetBytes16()
		if err != nil {
			return s, err
		}
		s.Key = k
	case SignSourceObject:
		b, err := r.GetRaw(32)
		if err != nil {
			return s, err
		}
		copy(s.ObjectID[:], b)
	case SignSourceRefIndex:
		idx, err := r.GetU8()
		if err != nil {
			return s, err
		}
		s.RefIndex = idx
	default:
		return s, NewErr(ErrInvalidData, "unknown sign_source kind %d", kind)
	}
	return s, nil
}

// Signature is (sign_source, created_time, raw signature bytes). The spec
// allows a 256-byte RSA output "or equivalent"; this chain's reference
// signer is secp256k1 (via go-ethereum/crypto), so Value holds a compact
// 65-byte [R||S||V] signature rather than a fixed 256-byte blob.
type Signature struct {
	Source      SignSource
	CreatedTime int64
	Value       []byte
}

func (s Signature) measure() int {
	return s.Source.measure() + 8 + 2 + len(s.Value)
}

func (s Signature) encode(w *Writer) {
	s.Source.encode(w)
	w.PutI64(s.CreatedTime)
	w.PutBytes16(s.Value)
}

func decodeSignature(r *Reader) (Signature, error) {
	src, err := decodeSignSource(r)
	if err != nil {
		return Signature{}, err
	}
	ct, err := r.GetI64()
	if err != nil {
		return Signature{}, err
	}
	val, err := r.GetBytes16()
	if err != nil {
		return Signature{}, err
	}
	return Signature{Source: src, CreatedTime: ct, Value: val}, nil
}

// Signatures holds the two ordered sequences a NamedObject carries.
type Signatures struct {
	Desc []Signature
	Body []Signature
}

func (s Signatures) measure(Purpose) int {
	n := 2 + 2
	for _, sig := range s.Desc {
		n += sig.measure()
	}
	for _, sig := range s.Body {
		n += sig.measure()
	}
	return n
}

func (s Signatures) encode(w *Writer, _ Purpose) {
	w.PutU16(uint16(len(s.Desc)))
	for _, sig := range s.Desc {
		sig.encode(w)
	}
	w.PutU16(uint16(len(s.Body)))
	for _, sig := range s.Body {
		sig.encode(w)
	}
}

func decodeSignatures(r *Reader) (Signatures, error) {
	var s Signatures
	n, err := r.GetU16()
	if err != nil {
		return s, err
	}
	for i := uint16(0); i < n; i++ {
		sig, err := decodeSignature(r)
		if err != nil {
			return s, err
		}
		s.Desc = append(s.Desc, sig)
	}
	m, err := r.GetU16()
	if err != nil {
		return s, err
	}
	for i := uint16(0); i < m; i++ {
		sig, err := decodeSignature(r)
		if err != nil {
			return s, err
		}
		s.Body = append(s.Body, sig)
	}
	return s, nil
}

// SignDescWithKey produces a Signature over digest using priv, tagged with
// a SignSourceKey carrying the uncompressed public key.
func SignDescWithKey(priv *ecdsa.PrivateKey, digest Hash, now int64) (Signature, error) {
	sig, err := crypto.Sign(digest[:], priv)
	if err != nil {
		return Signature{}, NewErr(ErrSignatureError, "sign: %v", err)
	}
	pub := elliptic.Marshal(priv.PublicKey.Curve, priv.PublicKey.X, priv.PublicKey.Y)
	return Signature{
		Source:      SignSource{Kind: SignSourceKey, Key: pub},
		CreatedTime: now,
		Value:       sig,
	}, nil
}

// AddressFromPubkey derives the 20-byte address an uncompressed secp256k1
// public key signs for: the low 20 bytes of the Keccak-256 hash of the
// pubkey's X||Y coordinates (the uncompressed-point 0x04 prefix dropped),
// the same derivation go-ethereum uses for account addresses.
func AddressFromPubkey(pub []byte) Address {
	var a Address
	if len(pub) != 65 || pub[0] != 4 {
		return a
	}
	sum := crypto.Keccak256(pub[1:])
	copy(a[:], sum[len(sum)-len(a):])
	return a
}

// VerifyKeySignature resolves and checks a SignSourceKey signature.
func VerifyKeySignature(sig Signature, digest Hash) error {
	if sig.Source.Kind != SignSourceKey {
		return NewErr(ErrInvalidParam, "not a key-sourced signature")
	}
	pub, err := crypto.SigToPub(digest[:], sig.Value)
	if err != nil {
		return NewErr(ErrSignatureError, "recover pubkey: %v", err)
	}
	want := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	if !bytesEqual(want, sig.Source.Key) {
		return NewErr(ErrSignatureError, "signature does not match embedded key")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MinerGroupSignatureOK checks that a block's desc-signatures sequence
// contains at least the required threshold of distinct RefIndex entries,
// each verifying against the ordered miner list's key at that index, per
// §4.B's "≥ ⌈0.7 N⌉ distinct indices, each verifying" rule.
func MinerGroupSignatureOK(sigs []Signature, digest Hash, miners []Address, minerKeys [][]byte, threshold int) error {
	seen := make(map[uint8]struct{})
	valid := 0
	for _, sig := range sigs {
		if sig.Source.Kind != SignSourceRefIndex {
			continue
		}
		idx := sig.Source.RefIndex
		if int(idx) >= len(minerKeys) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		pub, err := crypto.SigToPub(digest[:], sig.Value)
		if err != nil {
			continue
		}
		want := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
		if !bytesEqual(want, minerKeys[idx]) {
			continue
		}
		seen[idx] = struct{}{}
		valid++
	}
	if valid < threshold {
		return NewErr(ErrSignatureError, "only %d/%d required miner signatures verified", valid, threshold)
	}
	return nil
}

// QuorumThreshold returns ⌈0.7 N⌉, the signature/vote threshold used
// throughout §4.B/§4.G.
func QuorumThreshold(n int) int {
	num := n*7 + 9
	return num / 10
}
