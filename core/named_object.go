package core

// named_object.go – the Named Object Model: Descriptor ⊕ optional Body ⊕
// Signatures ⊕ optional Nonce, built only through NewDescBuilder so the
// invariants in §3/§4.B (exactly one public-key variant, well-formed
// ref_objects) hold by construction rather than by convention.

import (
	"time"
)

// PubKeyKind discriminates which public-key variant a descriptor carries,
// if any. A descriptor holds at most one.
type PubKeyKind uint8

const (
	PubKeyNone PubKeyKind = iota
	PubKeySingle
	PubKeyMN
)

// PublicKey is the descriptor's key material: either a single key or an
// m-of-n set. Kind determines which fields are meaningful.
type PublicKey struct {
	Kind      PubKeyKind
	Single    []byte
	Threshold uint8
	MNKeys    [][]byte
}

func (pk *PublicKey) measure() int {
	switch pk.Kind {
	case PubKeySingle:
		return 2 + len(pk.Single)
	case PubKeyMN:
		n := 1 + 2 // threshold + count
		for _, k := range pk.MNKeys {
			n += 2 + len(k)
		}
		return n
	default:
		return 0
	}
}

func (pk *PublicKey) encode(w *Writer) {
	switch pk.Kind {
	case PubKeySingle:
		w.PutBytes16(pk.Single)
	case PubKeyMN:
		w.PutU8(pk.Threshold)
		w.PutU16(uint16(len(pk.MNKeys)))
		for _, k := range pk.MNKeys {
			w.PutBytes16(k)
		}
	}
}

func decodeSingleKey(r *Reader) (*PublicKey, error) {
	b, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	return &PublicKey{Kind: PubKeySingle, Single: b}, nil
}

func decodeMNKey(r *Reader) (*PublicKey, error) {
	th, err := r.GetU8()
	if err != nil {
		return nil, err
	}
	n, err := r.GetU16()
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, 0, n)
	for i := uint16(0); i < n; i++ {
		k, err := r.GetBytes16()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return &PublicKey{Kind: PubKeyMN, Threshold: th, MNKeys: keys}, nil
}

// Desc is the immutable half of a Named Object. Its encoded bytes under
// PurposeHash are exactly what computeObjectId hashes; any field added here
// must also be threaded through measure/encode/decode or identity breaks.
type Desc struct {
	ObjType ObjType

	DecId           *ObjectId
	RefObjects      []RefObject
	Prev            *ObjectId
	CreateTimestamp *Hash
	CreateTime      *int64
	ExpiredTime     *int64
	Owner           *ObjectId
	Area            *[4]byte
	Author          *ObjectId
	PublicKey       *PublicKey

	// DescContent is the type-specific payload (≤ 65,471 bytes encoded,
	// per §3's 64-byte descriptor-overhead reservation against the u16
	// length prefix). Higher-level types (MetaTx, NFT registration, a
	// miner-group roster) encode themselves into this blob and decode it
	// back out through their own Codec implementation.
	DescContent []byte
}

const maxDescContentLen = maxInObjectLen - 64

func (d *Desc) flags() presenceFlags {
	var f presenceFlags
	if d.Owner != nil {
		f |= flagHasOwner
	}
	if d.PublicKey != nil {
		switch d.PublicKey.Kind {
		case PubKeySingle:
			f |= flagHasSingleKey
		case PubKeyMN:
			f |= flagHasMNKey
		}
	}
	if d.Area != nil {
		f |= flagHasArea
	}
	if d.DecId != nil {
		f |= flagHasDecID
	}
	if len(d.RefObjects) > 0 {
		f |= flagHasRefObjects
	}
	if d.Prev != nil {
		f |= flagHasPrev
	}
	if d.CreateTimestamp != nil {
		f |= flagHasCreateTimestamp
	}
	if d.ExpiredTime != nil {
		f |= flagHasExpiredTime
	}
	if d.Author != nil {
		f |= flagHasAuthor
	}
	return f
}

// Measure returns the encoded length of the descriptor for the given
// purpose. PurposeHash and PurposeSerialize measure identically for a
// descriptor: unlike the Body, nothing in Desc is volatile.
func (d *Desc) Measure(p Purpose) int {
	return 4 + d.fieldsLen()
}

func (d *Desc) fieldsLen() int {
	n := 0
	f := d.flags()
	if f.has(flagHasDecID) {
		n += 32
	}
	if f.has(flagHasRefObjects) {
		n += 2
		for _, ro := range d.RefObjects {
			n += ro.measure()
		}
	}
	if f.has(flagHasPrev) {
		n += 32
	}
	if f.has(flagHasCreateTimestamp) {
		n += 32
	}
	n += 8 // create_time always present
	if f.has(flagHasExpiredTime) {
		n += 8
	}
	if f.has(flagHasOwner) {
		n += 32
	}
	if f.has(flagHasArea) {
		n += 4
	}
	if f.has(flagHasAuthor) {
		n += 32
	}
	if d.PublicKey != nil {
		n += d.PublicKey.measure()
	}
	n += 2 // version + format
	n += 2 + len(d.DescContent)
	return n
}

// Encode writes the descriptor as a self-contained unit: its own context
// header (desc-shape flags only) followed by its fields. Used when a
// descriptor is measured/hashed standalone; NamedObject.Encode instead
// writes one combined header for the whole object and calls encodeFields
// directly so body/nonce presence isn't duplicated across two headers.
func (d *Desc) Encode(w *Writer, p Purpose) {
	encodeContextHeader(w, contextHeader{objType: uint16(d.ObjType), flags: d.flags()})
	d.encodeFields(w)
}

func (d *Desc) encodeFields(w *Writer) {
	f := d.flags()
	if f.has(flagHasDecID) {
		w.PutRaw(d.DecId[:])
	}
	if f.has(flagHasRefObjects) {
		w.PutU16(uint16(len(d.RefObjects)))
		for _, ro := range d.RefObjects {
			ro.encode(w)
		}
	}
	if f.has(flagHasPrev) {
		w.PutRaw(d.Prev[:])
	}
	if f.has(flagHasCreateTimestamp) {
		w.PutRaw(d.CreateTimestamp[:])
	}
	ct := int64(0)
	if d.CreateTime != nil {
		ct = *d.CreateTime
	}
	w.PutI64(ct)
	if f.has(flagHasExpiredTime) {
		w.PutI64(*d.ExpiredTime)
	}
	if f.has(flagHasOwner) {
		w.PutRaw(d.Owner[:])
	}
	if f.has(flagHasArea) {
		w.PutRaw(d.Area[:])
	}
	if f.has(flagHasAuthor) {
		w.PutRaw(d.Author[:])
	}
	if d.PublicKey != nil {
		d.PublicKey.encode(w)
	}
	w.PutU8(1) // version
	w.PutU8(0) // format
	w.PutBytes16(d.DescContent)
}

// DecodeDesc decodes a self-contained descriptor (its own context header
// followed by its fields) from r; wantType, unless ObjTypeAny, must match.
func DecodeDesc(r *Reader, wantType ObjType) (*Desc, error) {
	hdr, err := decodeContextHeader(r)
	if err != nil {
		return nil, err
	}
	if wantType != ObjTypeAny && ObjType(hdr.objType) != wantType {
		return nil, NewErr(ErrInvalidData, "object type mismatch: want %d got %d", wantType, hdr.objType)
	}
	return decodeDescFields(r, ObjType(hdr.objType), hdr.flags)
}

// decodeDescFields decodes a descriptor's fields given a context header
// already consumed by the caller (used by NamedObject, whose single
// combined header also carries the body/nonce presence bits).
func decodeDescFields(r *Reader, objType ObjType, f presenceFlags) (*Desc, error) {
	d := &Desc{ObjType: objType}

	if f.has(flagHasDecID) {
		b, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		var id ObjectId
		copy(id[:], b)
		d.DecId = &id
	}
	if f.has(flagHasRefObjects) {
		n, err := r.GetU16()
		if err != nil {
			return nil, err
		}
		d.RefObjects = make([]RefObject, 0, n)
		for i := uint16(0); i < n; i++ {
			ro, err := decodeRefObject(r)
			if err != nil {
				return nil, err
			}
			d.RefObjects = append(d.RefObjects, ro)
		}
	}
	if f.has(flagHasPrev) {
		b, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		var id ObjectId
		copy(id[:], b)
		d.Prev = &id
	}
	if f.has(flagHasCreateTimestamp) {
		b, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		var h Hash
		copy(h[:], b)
		d.CreateTimestamp = &h
	}
	ct, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	d.CreateTime = &ct
	if f.has(flagHasExpiredTime) {
		et, err := r.GetI64()
		if err != nil {
			return nil, err
		}
		d.ExpiredTime = &et
	}
	if f.has(flagHasOwner) {
		b, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		var id ObjectId
		copy(id[:], b)
		d.Owner = &id
	}
	if f.has(flagHasArea) {
		b, err := r.GetRaw(4)
		if err != nil {
			return nil, err
		}
		var a [4]byte
		copy(a[:], b)
		d.Area = &a
	}
	if f.has(flagHasAuthor) {
		b, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		var id ObjectId
		copy(id[:], b)
		d.Author = &id
	}
	switch {
	case f.has(flagHasSingleKey):
		pk, err := decodeSingleKey(r)
		if err != nil {
			return nil, err
		}
		d.PublicKey = pk
	case f.has(flagHasMNKey):
		pk, err := decodeMNKey(r)
		if err != nil {
			return nil, err
		}
		d.PublicKey = pk
	}
	if _, err := r.GetU8(); err != nil { // version
		return nil, err
	}
	if _, err := r.GetU8(); err != nil { // format
		return nil, err
	}
	content, err := r.GetBytes16()
	if err != nil {
		return nil, err
	}
	d.DescContent = content
	return d, nil
}

// CalculateId derives this descriptor's ObjectId from its canonical
// hash-mode bytes. Body changes never affect the result; any descriptor
// field change does.
func (d *Desc) CalculateId() ObjectId {
	body := EncodeTop(d, PurposeHash)
	return computeObjectId(body, d.ObjType, d.flags())
}

// Body is the mutable half of a Named Object: its bytes are covered by
// body-signatures and carry a monotonic UpdateTime, but never affect the
// ObjectId.
type Body struct {
	Content    []byte
	UpdateTime int64
}

func (b *Body) Measure(Purpose) int { return 8 + 4 + len(b.Content) }

func (b *Body) Encode(w *Writer, _ Purpose) {
	w.PutI64(b.UpdateTime)
	w.PutBytes32(b.Content)
}

func decodeBody(r *Reader) (*Body, error) {
	ut, err := r.GetI64()
	if err != nil {
		return nil, err
	}
	c, err := r.GetBytes32()
	if err != nil {
		return nil, err
	}
	return &Body{UpdateTime: ut, Content: c}, nil
}

// DescBuilder mediates NamedObject construction so the "exactly one
// public-key variant" and similarly-shaped invariants hold by construction.
type DescBuilder struct {
	desc Desc
	err  error
}

// NewDescBuilder starts building a descriptor of the given type with
// create_time defaulting to now, matching the spec's default-but-clearable
// rule.
func NewDescBuilder(objType ObjType) *DescBuilder {
	now := time.Now().Unix()
	return &DescBuilder{desc: Desc{ObjType: objType, CreateTime: &now}}
}

func (b *DescBuilder) ClearCreateTime() *DescBuilder {
	b.desc.CreateTime = nil
	return b
}

func (b *DescBuilder) WithOwner(owner ObjectId) *DescBuilder {
	b.desc.Owner = &owner
	return b
}

func (b *DescBuilder) WithPrev(prev ObjectId) *DescBuilder {
	b.desc.Prev = &prev
	return b
}

func (b *DescBuilder) WithDecId(id ObjectId) *DescBuilder {
	b.desc.DecId = &id
	return b
}

func (b *DescBuilder) WithArea(area [4]byte) *DescBuilder {
	b.desc.Area = &area
	return b
}

func (b *DescBuilder) WithAuthor(author ObjectId) *DescBuilder {
	b.desc.Author = &author
	return b
}

func (b *DescBuilder) WithRefObjects(refs []RefObject) *DescBuilder {
	b.desc.RefObjects = refs
	return b
}

func (b *DescBuilder) WithSingleKey(pk []byte) *DescBuilder {
	if b.desc.PublicKey != nil {
		b.err = NewErr(ErrInvalidParam, "descriptor already has a public-key variant")
		return b
	}
	b.desc.PublicKey = &PublicKey{Kind: PubKeySingle, Single: pk}
	return b
}

func (b *DescBuilder) WithMNKey(threshold uint8, keys [][]byte) *DescBuilder {
	if b.desc.PublicKey != nil {
		b.err = NewErr(ErrInvalidParam, "descriptor already has a public-key variant")
		return b
	}
	if int(threshold) > len(keys) {
		b.err = NewErr(ErrInvalidParam, "mn threshold %d exceeds key count %d", threshold, len(keys))
		return b
	}
	b.desc.PublicKey = &PublicKey{Kind: PubKeyMN, Threshold: threshold, MNKeys: keys}
	return b
}

func (b *DescBuilder) WithContent(content []byte) *DescBuilder {
	if len(content) > maxDescContentLen {
		b.err = NewErr(ErrOutOfLimit, "desc_content %d bytes exceeds limit %d", len(content), maxDescContentLen)
		return b
	}
	b.desc.DescContent = content
	return b
}

// Build validates the accumulated invariants and returns the finished
// descriptor.
func (b *DescBuilder) Build() (*Desc, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, ro := range b.desc.RefObjects {
		if ro.Target.IsZero() {
			return nil, NewErr(ErrInvalidParam, "ref_objects entry has zero target")
		}
	}
	d := b.desc
	return &d, nil
}

// NamedObject is Descriptor ⊕ optional Body ⊕ Signatures ⊕ optional Nonce.
type NamedObject struct {
	Desc       *Desc
	Body       *Body
	Signatures Signatures
	Nonce      *uint64
}

// Id returns the object's ObjectId, derived solely from the descriptor.
func (n *NamedObject) Id() ObjectId { return n.Desc.CalculateId() }

func (n *NamedObject) topFlags() presenceFlags {
	f := n.Desc.flags()
	if n.Body != nil {
		f |= flagHasBody
	}
	if n.Nonce != nil {
		f |= flagHasNonce
	}
	return f
}

// Measure returns the encoded size of the full named object: one combined
// context header, the descriptor's fields, optional body, signature
// sequences, optional nonce.
func (n *NamedObject) Measure(p Purpose) int {
	sz := 4 + n.Desc.fieldsLen()
	if n.Body != nil {
		sz += n.Body.Measure(p)
	}
	sz += n.Signatures.measure(p)
	if n.Nonce != nil {
		sz += 8
	}
	return sz
}

func (n *NamedObject) Encode(w *Writer, p Purpose) {
	encodeContextHeader(w, contextHeader{objType: uint16(n.Desc.ObjType), flags: n.topFlags()})
	n.Desc.encodeFields(w)
	if n.Body != nil {
		n.Body.Encode(w, p)
	}
	n.Signatures.encode(w, p)
	if n.Nonce != nil {
		w.PutU64(*n.Nonce)
	}
}

// DecodeNamedObject decodes a full NamedObject, rejecting a type mismatch
// unless wantType is ObjTypeAny.
func DecodeNamedObject(buf []byte, wantType ObjType) (*NamedObject, error) {
	r := NewReader(buf)
	hdr, err := decodeContextHeader(r)
	if err != nil {
		return nil, err
	}
	if wantType != ObjTypeAny && ObjType(hdr.objType) != wantType {
		return nil, NewErr(ErrInvalidData, "object type mismatch: want %d got %d", wantType, hdr.objType)
	}
	desc, err := decodeDescFields(r, ObjType(hdr.objType), hdr.flags)
	if err != nil {
		return nil, err
	}
	n := &NamedObject{Desc: desc}
	if hdr.flags.has(flagHasBody) {
		b, err := decodeBody(r)
		if err != nil {
			return nil, err
		}
		n.Body = b
	}
	sigs, err := decodeSignatures(r)
	if err != nil {
		return nil, err
	}
	n.Signatures = sigs
	if hdr.flags.has(flagHasNonce) {
		nonce, err := r.GetU64()
		if err != nil {
			return nil, err
		}
		n.Nonce = &nonce
	}
	return n, nil
}
