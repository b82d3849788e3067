package core

// object_id.go – ObjectId construction: a content hash tagged with the
// object's type code and descriptor-shape flags, all packed into the fixed
// 32-byte ObjectId per §3/§4.B. Two ids are equal iff their canonical
// hash-mode descriptor bytes are equal; the hash function is fixed (blake3)
// rather than left to decoder discretion.

import (
	"encoding/binary"
	"sort"

	"lukechampine.com/blake3"
)

// ObjType enumerates the closed set of named object kinds this chain
// recognizes. Device/People/Group mirror the original network's identity
// objects; the Meta* kinds are specific to the chain's own wire traffic.
type ObjType uint16

const (
	ObjTypeAny ObjType = iota
	ObjTypeDevice
	ObjTypePeople
	ObjTypeGroup
	ObjTypeMetaTx
	ObjTypeMetaProto
	ObjTypeMetaBlock
	ObjTypeMinerGroup
	ObjTypeNFT
)

// objectIdHashLen is the number of leading bytes of the blake3 digest kept
// in an ObjectId; the remaining 4 bytes carry obj_type and obj_flags so the
// full id stays a fixed 32 bytes.
const objectIdHashLen = 28

// computeObjectId hashes canonicalDescBytes (the descriptor encoded under
// PurposeHash) and packs the result with objType and flags into a 32-byte
// ObjectId. Identical logical descriptors always yield identical ids
// because canonicalDescBytes is produced by the same codec path regardless
// of caller.
func computeObjectId(canonicalDescBytes []byte, objType ObjType, flags presenceFlags) ObjectId {
	sum := blake3.Sum256(canonicalDescBytes)
	var id ObjectId
	copy(id[:objectIdHashLen], sum[:objectIdHashLen])
	binary.BigEndian.PutUint16(id[objectIdHashLen:objectIdHashLen+2], uint16(objType))
	binary.BigEndian.PutUint16(id[objectIdHashLen+2:], uint16(flags))
	return id
}

// ObjType extracts the embedded type code without needing the original
// descriptor.
func (id ObjectId) ObjType() ObjType {
	return ObjType(binary.BigEndian.Uint16(id[objectIdHashLen : objectIdHashLen+2]))
}

// Flags extracts the embedded descriptor-shape flags.
func (id ObjectId) Flags() presenceFlags {
	return presenceFlags(binary.BigEndian.Uint16(id[objectIdHashLen+2:]))
}

// Less gives ObjectId the spec's required total lexicographic order.
func (id ObjectId) Less(other ObjectId) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// SortObjectIds sorts ids ascending in place, per the ObjectId total order.
func SortObjectIds(ids []ObjectId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// RefObject is one element of a descriptor's ref_objects sequence: a link
// to another object, optionally tagged with that object's owner.
type RefObject struct {
	Target ObjectId
	Owner  *ObjectId
}

func (r RefObject) measure() int {
	n := 32
	n++ // presence byte for Owner
	if r.Owner != nil {
		n += 32
	}
	return n
}

func (r RefObject) encode(w *Writer) {
	w.PutRaw(r.Target[:])
	if r.Owner != nil {
		w.PutU8(1)
		w.PutRaw(r.Owner[:])
	} else {
		w.PutU8(0)
	}
}

func decodeRefObject(r *Reader) (RefObject, error) {
	var ro RefObject
	b, err := r.GetRaw(32)
	if err != nil {
		return ro, err
	}
	copy(ro.Target[:], b)
	present, err := r.GetU8()
	if err != nil {
		return ro, err
	}
	if present == 1 {
		ob, err := r.GetRaw(32)
		if err != nil {
			return ro, err
		}
		var owner ObjectId
		copy(owner[:], ob)
		ro.Owner = &owner
	}
	return ro, nil
}
