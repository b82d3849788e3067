package core

// codec.go – the canonical binary codec kernel. Every wire and on-disk type
// in this package is built out of the primitives here so that the bytes fed
// into a hash are always produced by the same code path that produces bytes
// for storage or transport: there is exactly one encoding of any value.

import (
	"encoding/binary"
	"fmt"
)

// Purpose distinguishes a measure/encode pass destined for storage or the
// wire (Serialize) from one destined to become hash input (Hash). A Hash
// pass may omit volatile fields such as signatures; callers that need
// byte-identical round-tripping always use Serialize.
type Purpose uint8

const (
	PurposeSerialize Purpose = iota
	PurposeHash
)

// maxInObjectLen bounds any u16 length-prefixed payload embedded inside a
// named object (descriptor content, signature blobs, map entries).
const maxInObjectLen = 1<<16 - 1

// Writer accumulates encoded bytes and does no size checking of its own.
// EncodeTop compares what was written against Measure and panics on a
// mismatch, since that is a codec bug, not a runtime condition — the same
// posture the spec assigns to a measure/emit mismatch.
type Writer struct {
	buf []byte
}

// NewWriter allocates a Writer with capacity pre-sized to the measured
// length of the value about to be encoded.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI64(v int64) { w.PutU64(uint64(v)) }

func (w *Writer) PutRaw(b []byte) { w.buf = append(w.buf, b...) }

// PutBytes16 writes a u16 length prefix followed by b. b must fit in a u16;
// callers validate via Measure before reaching here.
func (w *Writer) PutBytes16(b []byte) {
	w.PutU16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

// PutBytes32 writes a u32 length prefix, used for top-level blobs (whole
// blocks, whole object-map node payloads) rather than in-object fields.
func (w *Writer) PutBytes32(b []byte) {
	w.PutU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader consumes encoded bytes left to right, mirroring Writer exactly.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining returns the unread tail.
func (r *Reader) Remaining() []byte { return r.buf[r.pos:] }

func (r *Reader) need(n int) error {
	if len(r.buf)-r.pos < n {
		return NewErr(ErrUnmatch, "short read: need %d, have %d", n, len(r.buf)-r.pos)
	}
	return nil
}

func (r *Reader) GetU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) GetU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) GetU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) GetI64() (int64, error) {
	v, err := r.GetU64()
	return int64(v), err
}

func (r *Reader) GetRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *Reader) GetBytes16() ([]byte, error) {
	n, err := r.GetU16()
	if err != nil {
		return nil, err
	}
	return r.GetRaw(int(n))
}

func (r *Reader) GetBytes32() ([]byte, error) {
	n, err := r.GetU32()
	if err != nil {
		return nil, err
	}
	return r.GetRaw(int(n))
}

// Skip discards n bytes. Nothing in this package calls it: flagExt is
// defined, but no encoder sets it and no decoder checks it, so trailing ext
// bytes after a context header are not skipped.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Codec is implemented by every wire type in the object model, object map
// and BFT message taxonomy. measure/encode/decode form one closed loop:
// encode never emits more than measure predicted, and decode(encode(v))
// reproduces v exactly for PurposeSerialize. Types whose decode path
// returns a fresh value instead of populating the receiver (Desc,
// NamedObject, Transaction — each has a DecodeXxx free function instead of
// a Decode method, since decoding also resolves a context header the
// caller doesn't yet know the shape of) satisfy only encodable, below.
type Codec interface {
	Measure(p Purpose) int
	Encode(w *Writer, p Purpose)
	Decode(r *Reader) error
}

// encodable is what EncodeTop actually needs: the measure/emit half of the
// closed loop. Decode is deliberately excluded so top-level types that
// decode via a free function (returning a new value rather than
// populating the receiver) can still share EncodeTop's
// measure-then-assert-then-emit logic.
type encodable interface {
	Measure(p Purpose) int
	Encode(w *Writer, p Purpose)
}

// EncodeTop measures then encodes v, asserting the two agree — a mismatch
// is a codec bug per the spec's failure-mode policy, not a recoverable
// runtime error.
func EncodeTop(v encodable, p Purpose) []byte {
	n := v.Measure(p)
	w := NewWriter(n)
	v.Encode(w, p)
	if len(w.Bytes()) != n {
		panic(fmt.Sprintf("codec: measure/emit mismatch: measured %d, emitted %d", n, len(w.Bytes())))
	}
	return w.Bytes()
}

// contextHeader packs obj_type into the low 16 bits and a set of presence
// flags into the high 16 bits of a single u32, per §4.A / §6's on-wire
// layout (obj_type:u16 | obj_flags:u16).
type contextHeader struct {
	objType uint16
	flags   presenceFlags
}

// presenceFlags is the high half of the context header: one bit per
// optional descriptor/body/signature field, computed from shape at encode
// time and checked for consistency at decode time.
type presenceFlags uint16

const (
	flagHasOwner presenceFlags = 1 << iota
	flagHasSingleKey
	flagHasMNKey
	flagHasArea
	flagHasDecID
	flagHasRefObjects
	flagHasPrev
	flagHasCreateTimestamp
	flagHasExpiredTime
	flagHasAuthor
	flagHasBody
	flagHasNonce
	flagExt
)

func (f presenceFlags) has(bit presenceFlags) bool { return f&bit != 0 }

func encodeContextHeader(w *Writer, h contextHeader) {
	w.PutU16(h.objType)
	w.PutU16(uint16(h.flags))
}

func decodeContextHeader(r *Reader) (contextHeader, error) {
	t, err := r.GetU16()
	if err != nil {
		return contextHeader{}, err
	}
	f, err := r.GetU16()
	if err != nil {
		return contextHeader{}, err
	}
	return contextHeader{objType: t, flags: presenceFlags(f)}, nil
}
