package core

import "testing"

func TestDescRoundTrip(t *testing.T) {
	owner := ObjectId{0x01}
	d, err := NewDescBuilder(ObjTypeDevice).
		WithOwner(owner).
		WithSingleKey([]byte("a-public-key")).
		WithContent([]byte("hello descriptor")).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	enc := EncodeTop(d, PurposeSerialize)
	got, err := DecodeDesc(NewReader(enc), ObjTypeDevice)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got.DescContent) != "hello descriptor" {
		t.Fatalf("content mismatch: %q", got.DescContent)
	}
	if got.Owner == nil || *got.Owner != owner {
		t.Fatalf("owner mismatch")
	}

	if d.CalculateId() != got.CalculateId() {
		t.Fatalf("id must survive round-trip")
	}
}

func TestDescBuilderRejectsDualKeyVariant(t *testing.T) {
	_, err := NewDescBuilder(ObjTypeDevice).
		WithSingleKey([]byte("k1")).
		WithMNKey(1, [][]byte{[]byte("k2")}).
		Build()
	if err == nil {
		t.Fatalf("expected error for dual public-key variant")
	}
}

func TestDescIdentityIgnoresBodyContent(t *testing.T) {
	d, err := NewDescBuilder(ObjTypeDevice).WithContent([]byte("fixed")).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	n1 := &NamedObject{Desc: d, Body: &Body{Content: []byte("v1"), UpdateTime: 1}}
	n2 := &NamedObject{Desc: d, Body: &Body{Content: []byte("v2"), UpdateTime: 2}}
	if n1.Id() != n2.Id() {
		t.Fatalf("body changes must not affect object id")
	}
}

func TestNamedObjectRoundTripWithBodyAndSignatures(t *testing.T) {
	d, err := NewDescBuilder(ObjTypePeople).WithContent([]byte("desc")).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	n := &NamedObject{
		Desc: d,
		Body: &Body{Content: []byte("body"), UpdateTime: 42},
		Signatures: Signatures{
			Desc: []Signature{{Source: SignSource{Kind: SignSourceRefIndex, RefIndex: 3}, CreatedTime: 7, Value: []byte{1, 2, 3}}},
		},
	}
	enc := EncodeTop(n, PurposeSerialize)
	got, err := DecodeNamedObject(enc, ObjTypePeople)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got.Body.Content) != "body" || got.Body.UpdateTime != 42 {
		t.Fatalf("body mismatch")
	}
	if len(got.Signatures.Desc) != 1 || got.Signatures.Desc[0].Source.RefIndex != 3 {
		t.Fatalf("signatures mismatch")
	}
	if n.Id() != got.Id() {
		t.Fatalf("id mismatch after round-trip")
	}
}

func TestObjectIdTotalOrder(t *testing.T) {
	ids := []ObjectId{{0x03}, {0x01}, {0x02}}
	SortObjectIds(ids)
	for i := 1; i < len(ids); i++ {
		if !ids[i-1].Less(ids[i]) {
			t.Fatalf("ids not sorted ascending: %v", ids)
		}
	}
}
