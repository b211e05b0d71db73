package wtpage

import (
	"github.com/klauspost/compress/snappy"

	"worktable/pkg/bitwise"
)

// compressedBit is the flag byte's bit position recording whether a
// slot's payload was snappy-compressed at write time. The flag byte
// is only one bit wide today; it is packed through bitwise.Set/IsSet
// rather than compared directly so a second per-slot flag (e.g. a
// future tombstone bit) has somewhere to go without changing the slot
// layout.
const compressedBit = 0

// DataPage is a bounded byte container that appends serialized rows and
// retrieves them by Link. It is not internally synchronized; callers
// (the DataPager) are responsible for guarding concurrent access to a
// single page.
type DataPage[Row any, View any] struct {
	pageID uint32
	inner  uint32
	buf    []byte
	length uint32

	codec    Codec[Row, View]
	compress bool
}

// NewDataPage allocates a page of inner bytes of usable capacity.
// compress, when true, attempts snappy compression of each row's
// serialized bytes at save time (grounded on the per-record snappy
// compression used by this pack's storage engines); get_row_ref/
// get_mut_row_ref are then unavailable for slots that compressed
// smaller, since they can no longer be viewed in place.
func NewDataPage[Row any, View any](pageID uint32, inner uint32, codec Codec[Row, View], compress bool) *DataPage[Row, View] {
	return &DataPage[Row, View]{
		pageID:   pageID,
		inner:    inner,
		buf:      make([]byte, inner),
		codec:    codec,
		compress: compress,
	}
}

// PageID returns the page's identity.
func (p *DataPage[Row, View]) PageID() uint32 {
	return p.pageID
}

// Len returns the number of bytes currently written to the page.
func (p *DataPage[Row, View]) Len() uint32 {
	return p.length
}

// Inner returns the page's usable byte capacity.
func (p *DataPage[Row, View]) Inner() uint32 {
	return p.inner
}

// Bytes returns the page's full backing buffer and the length of its used
// prefix, for persistence (spec.md §6: Data page payload is the full
// INNER-byte buffer, DataLength denotes the used prefix).
func (p *DataPage[Row, View]) Bytes() ([]byte, uint32) {
	return p.buf, p.length
}

// LoadBytes restores a page's buffer and write cursor from persisted
// bytes, used when parsing a space back from file.
func (p *DataPage[Row, View]) LoadBytes(buf []byte, length uint32) {
	copy(p.buf, buf)
	p.length = length
}

func (p *DataPage[Row, View]) encodeSlot(row Row) ([]byte, error) {
	raw, err := p.codec.Marshal(row)
	if err != nil {
		return nil, serializeErr(err)
	}

	if p.compress {
		compressed := snappy.Encode(nil, raw)
		if len(compressed) < len(raw) {
			slot := make([]byte, len(compressed)+1)
			slot[0] = byte(bitwise.Set(0, compressedBit))
			copy(slot[1:], compressed)
			return slot, nil
		}
	}

	slot := make([]byte, len(raw)+1)
	slot[0] = 0
	copy(slot[1:], raw)
	return slot, nil
}

func (p *DataPage[Row, View]) decodeSlot(slot []byte) ([]byte, error) {
	if len(slot) == 0 {
		return nil, invalidLinkErr()
	}
	flags, payload := uint64(slot[0]), slot[1:]
	if !bitwise.IsSet(flags, compressedBit) {
		return payload, nil
	}
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, deserializeErr(err)
	}
	return raw, nil
}

// SaveRow serializes row and appends it to the page, returning its Link.
func (p *DataPage[Row, View]) SaveRow(row Row) (Link, error) {
	slot, err := p.encodeSlot(row)
	if err != nil {
		return Link{}, err
	}

	if p.length+uint32(len(slot)) > p.inner {
		return Link{}, pageIsFullErr(p.inner-p.length, uint32(len(slot)))
	}

	offset := p.length
	copy(p.buf[offset:], slot)
	p.length += uint32(len(slot))

	return Link{PageID: p.pageID, Offset: offset, Length: uint32(len(slot))}, nil
}

// SaveRowByLink overwrites the slot at link in place. It requires the
// newly serialized row to occupy exactly link.Length bytes and link to
// refer to this page within its written prefix; otherwise it fails with
// ErrInvalidLink and leaves the page untouched.
func (p *DataPage[Row, View]) SaveRowByLink(row Row, link Link) error {
	if link.PageID != p.pageID || link.End() > p.length {
		return invalidLinkErr()
	}

	slot, err := p.encodeSlot(row)
	if err != nil {
		return err
	}
	if uint32(len(slot)) != link.Length {
		return invalidLinkErr()
	}

	copy(p.buf[link.Offset:link.End()], slot)
	return nil
}

// GetRow bounds-checks link and deserializes an owned copy of the row.
func (p *DataPage[Row, View]) GetRow(link Link) (Row, error) {
	var zero Row
	if link.PageID != p.pageID || link.End() > p.length {
		return zero, invalidLinkErr()
	}

	raw, err := p.decodeSlot(p.buf[link.Offset:link.End()])
	if err != nil {
		return zero, err
	}

	row, err := p.codec.Unmarshal(raw)
	if err != nil {
		return zero, deserializeErr(err)
	}
	return row, nil
}

// GetRowRef returns a borrowed, zero-copy view into the page bytes at
// link. It fails if the slot was stored compressed, since a compressed
// slot cannot be viewed in place.
func (p *DataPage[Row, View]) GetRowRef(link Link) (View, error) {
	var zero View
	if link.PageID != p.pageID || link.End() > p.length {
		return zero, invalidLinkErr()
	}
	slot := p.buf[link.Offset:link.End()]
	if len(slot) == 0 || bitwise.IsSet(uint64(slot[0]), compressedBit) {
		return zero, invalidLinkErr()
	}
	return p.codec.View(slot[1:]), nil
}

// GetMutRowRef is GetRowRef's mutable counterpart. Mutation through the
// returned view must not change the byte length of the slot.
func (p *DataPage[Row, View]) GetMutRowRef(link Link) (View, error) {
	var zero View
	if link.PageID != p.pageID || link.End() > p.length {
		return zero, invalidLinkErr()
	}
	slot := p.buf[link.Offset:link.End()]
	if len(slot) == 0 || bitwise.IsSet(uint64(slot[0]), compressedBit) {
		return zero, invalidLinkErr()
	}
	return p.codec.MutableView(slot[1:]), nil
}
