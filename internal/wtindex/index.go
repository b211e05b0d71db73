// Package wtindex maps an ordered key→link sequence onto fixed-capacity
// index pages and marshals those pages to RawPages, which
// wtpage.MapRawPagesToGeneral then wraps with GeneralHeaders for
// persistence, per spec.md §4.3.
package wtindex

import (
	"encoding/binary"
	"fmt"

	"worktable/internal/wtpage"
)

// Entry is one key→link pair inside an index page.
type Entry[K any] struct {
	Key  K
	Link wtpage.Link
}

// Data is one index page's worth of entries, in key order.
type Data[K any] struct {
	Entries []Entry[K]
}

// MapUniqueTreeIndex consumes an ordered slice of key→link pairs and
// packs them into pages of up to floor(inner/slotSize) entries each,
// preserving key order across pages. It always returns at least one page
// — even for an empty index — so downstream Interval code can rely on
// first/last always existing (spec.md §4.3).
func MapUniqueTreeIndex[K any](entries []Entry[K], inner uint32, slotSize uint32) []Data[K] {
	perPage := inner / slotSize
	if perPage == 0 {
		perPage = 1
	}

	if len(entries) == 0 {
		return []Data[K]{{}}
	}

	pages := make([]Data[K], 0, (len(entries)+int(perPage)-1)/int(perPage))
	for start := 0; start < len(entries); start += int(perPage) {
		end := start + int(perPage)
		if end > len(entries) {
			end = len(entries)
		}
		pages = append(pages, Data[K]{Entries: entries[start:end]})
	}
	return pages
}

// KeyCodec is the abstract archive capability an index key type must
// supply: a fixed on-disk byte size and a marshal/unmarshal pair. Index
// entries are laid out as KeySize() bytes of key followed by a 12-byte
// Link (three big-endian uint32: page id, offset, length).
type KeyCodec[K any] interface {
	KeySize() int
	MarshalKey(key K) ([]byte, error)
	UnmarshalKey(buf []byte) (K, error)
}

const linkSize = 12 // PageID(4) + Offset(4) + Length(4), big-endian

// MarshalPage serializes one index Data page to bytes for persistence:
// each entry is KeySize()+12 bytes, entries concatenated in order.
func MarshalPage[K any](data Data[K], codec KeyCodec[K]) ([]byte, error) {
	slotSize := codec.KeySize() + linkSize
	buf := make([]byte, 0, slotSize*len(data.Entries))
	for _, entry := range data.Entries {
		keyBytes, err := codec.MarshalKey(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("wtindex: marshal key: %w", err)
		}
		if len(keyBytes) != codec.KeySize() {
			return nil, fmt.Errorf("wtindex: marshaled key length %d != KeySize() %d", len(keyBytes), codec.KeySize())
		}
		buf = append(buf, keyBytes...)
		buf = binary.BigEndian.AppendUint32(buf, entry.Link.PageID)
		buf = binary.BigEndian.AppendUint32(buf, entry.Link.Offset)
		buf = binary.BigEndian.AppendUint32(buf, entry.Link.Length)
	}
	return buf, nil
}

// UnmarshalPage is MarshalPage's inverse.
func UnmarshalPage[K any](buf []byte, codec KeyCodec[K]) (Data[K], error) {
	slotSize := codec.KeySize() + linkSize
	if slotSize == 0 || len(buf)%slotSize != 0 {
		return Data[K]{}, fmt.Errorf("wtindex: index page length %d not a multiple of slot size %d", len(buf), slotSize)
	}

	count := len(buf) / slotSize
	entries := make([]Entry[K], count)
	for i := range count {
		slot := buf[i*slotSize : (i+1)*slotSize]
		key, err := codec.UnmarshalKey(slot[:codec.KeySize()])
		if err != nil {
			return Data[K]{}, fmt.Errorf("wtindex: unmarshal key: %w", err)
		}
		linkBytes := slot[codec.KeySize():]
		entries[i] = Entry[K]{
			Key: key,
			Link: wtpage.Link{
				PageID: binary.BigEndian.Uint32(linkBytes[0:4]),
				Offset: binary.BigEndian.Uint32(linkBytes[4:8]),
				Length: binary.BigEndian.Uint32(linkBytes[8:12]),
			},
		}
	}
	return Data[K]{Entries: entries}, nil
}

// MarshalPages is MarshalPage applied to every page, producing the
// wtpage.RawPage slice the space serializer wraps with headers.
func MarshalPages[K any](pages []Data[K], codec KeyCodec[K]) ([]wtpage.RawPage, error) {
	out := make([]wtpage.RawPage, len(pages))
	for i, page := range pages {
		buf, err := MarshalPage(page, codec)
		if err != nil {
			return nil, err
		}
		out[i] = wtpage.RawPage{Bytes: buf, Length: uint32(len(buf))}
	}
	return out, nil
}
