package wtpage

// Codec is the abstract "archive" capability a DataPage requires of a row
// type: the ability to serialize a row to bytes of deterministic length,
// to deserialize an owned copy back, and to interpret a byte slice in
// place as a borrowed, zero-copy View without deserializing.
//
// Real per-table wrapper types (generated by the out-of-scope codegen
// layer, spec.md §1) supply their own Codec; BytesCodec below is a
// byte-oriented stand-in used by this module's own tests.
type Codec[Row any, View any] interface {
	// Marshal serializes row to a freshly allocated byte slice.
	Marshal(row Row) ([]byte, error)
	// Unmarshal deserializes an owned Row from buf.
	Unmarshal(buf []byte) (Row, error)
	// View interprets buf in place as a read-only archived view. The
	// returned View must not be used once buf's backing page is mutated
	// or the page slot is reused.
	View(buf []byte) View
	// MutableView interprets buf in place as a mutable archived view.
	// Writes through the view must not change len(buf).
	MutableView(buf []byte) View
}

// BytesCodec is the identity Codec over raw []byte rows: Marshal and
// Unmarshal are no-ops (aside from a defensive copy on Unmarshal), and
// View/MutableView expose the slot bytes directly. It exists so the
// pager and its tests can be exercised without a generated per-table
// codec.
type BytesCodec struct{}

func (BytesCodec) Marshal(row []byte) ([]byte, error) {
	return row, nil
}

func (BytesCodec) Unmarshal(buf []byte) ([]byte, error) {
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

func (BytesCodec) View(buf []byte) []byte {
	return buf
}

func (BytesCodec) MutableView(buf []byte) []byte {
	return buf
}
