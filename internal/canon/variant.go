package canon

import (
	"bytes"
	"sort"
)

// variantTag identifies a Variant's payload kind on the wire. Values are
// part of the canonical format and must never be renumbered.
type variantTag byte

const (
	tagString variantTag = 1
	tagBytes  variantTag = 2
	tagInt64  variantTag = 3
	tagArray  variantTag = 4
	tagDict   variantTag = 5
)

// Variant is the untyped value used for commit metadata (the a{sv}
// dictionary described in the data model and design notes): a small closed
// sum type over string, []byte, int64, []Variant and map[string]Variant.
// The zero Variant is not a valid value; use one of the V* constructors.
type Variant struct {
	tag  variantTag
	str  string
	byt  []byte
	i64  int64
	arr  []Variant
	dict map[string]Variant
}

// VString builds a string Variant.
func VString(s string) Variant { return Variant{tag: tagString, str: s} }

// VBytes builds a []byte Variant. The slice is copied.
func VBytes(b []byte) Variant {
	return Variant{tag: tagBytes, byt: append([]byte(nil), b...)}
}

// VInt64 builds an int64 Variant.
func VInt64(i int64) Variant { return Variant{tag: tagInt64, i64: i} }

// VArray builds an array-of-Variant Variant.
func VArray(a []Variant) Variant { return Variant{tag: tagArray, arr: a} }

// VDict builds a dictionary Variant.
func VDict(d map[string]Variant) Variant { return Variant{tag: tagDict, dict: d} }

// AsString returns the string payload and whether v actually holds one.
func (v Variant) AsString() (string, bool) { return v.str, v.tag == tagString }

// AsBytes returns the []byte payload and whether v actually holds one.
func (v Variant) AsBytes() ([]byte, bool) { return v.byt, v.tag == tagBytes }

// AsInt64 returns the int64 payload and whether v actually holds one.
func (v Variant) AsInt64() (int64, bool) { return v.i64, v.tag == tagInt64 }

// AsArray returns the []Variant payload and whether v actually holds one.
func (v Variant) AsArray() ([]Variant, bool) { return v.arr, v.tag == tagArray }

// AsDict returns the map[string]Variant payload and whether v actually
// holds one.
func (v Variant) AsDict() (map[string]Variant, bool) { return v.dict, v.tag == tagDict }

func marshalVariant(w *bytes.Buffer, v Variant) {
	w.WriteByte(byte(v.tag))
	switch v.tag {
	case tagString:
		writeString(w, v.str)
	case tagBytes:
		writeBytes(w, v.byt)
	case tagInt64:
		writeInt64(w, v.i64)
	case tagArray:
		writeUint32(w, uint32(len(v.arr)))
		for _, e := range v.arr {
			marshalVariant(w, e)
		}
	case tagDict:
		marshalDict(w, v.dict)
	}
}

// marshalDict writes a dict's entries sorted by key, since Go map iteration
// order is randomized and the encoding must be byte-stable for identical
// logical content.
func marshalDict(w *bytes.Buffer, d map[string]Variant) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeUint32(w, uint32(len(keys)))
	for _, k := range keys {
		writeString(w, k)
		marshalVariant(w, d[k])
	}
}

func unmarshalVariant(r *reader) (Variant, error) {
	tb, err := r.byte()
	if err != nil {
		return Variant{}, err
	}
	tag := variantTag(tb)
	switch tag {
	case tagString:
		s, err := r.stringField()
		if err != nil {
			return Variant{}, err
		}
		return VString(s), nil
	case tagBytes:
		b, err := r.bytesField()
		if err != nil {
			return Variant{}, err
		}
		return VBytes(b), nil
	case tagInt64:
		i, err := r.int64()
		if err != nil {
			return Variant{}, err
		}
		return VInt64(i), nil
	case tagArray:
		n, err := r.uint32()
		if err != nil {
			return Variant{}, err
		}
		arr := make([]Variant, n)
		for i := range arr {
			arr[i], err = unmarshalVariant(r)
			if err != nil {
				return Variant{}, err
			}
		}
		return VArray(arr), nil
	case tagDict:
		d, err := unmarshalDict(r)
		if err != nil {
			return Variant{}, err
		}
		return VDict(d), nil
	default:
		return Variant{}, malformed("unknown variant tag %d", tb)
	}
}

func unmarshalDict(r *reader) (map[string]Variant, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	d := make(map[string]Variant, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.stringField()
		if err != nil {
			return nil, err
		}
		v, err := unmarshalVariant(r)
		if err != nil {
			return nil, err
		}
		d[k] = v
	}
	return d, nil
}
