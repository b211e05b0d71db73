package wtpage

import (
	"encoding/binary"
	"fmt"
)

// PageType tags the payload that follows a GeneralHeader on disk.
type PageType uint8

const (
	PageTypeSpaceInfo PageType = iota + 1
	PageTypePrimaryIndex
	PageTypeSecondaryIndex
	PageTypeData
)

func (t PageType) String() string {
	switch t {
	case PageTypeSpaceInfo:
		return "SpaceInfo"
	case PageTypePrimaryIndex:
		return "PrimaryIndex"
	case PageTypeSecondaryIndex:
		return "SecondaryIndex"
	case PageTypeData:
		return "Data"
	default:
		return fmt.Sprintf("PageType(%d)", uint8(t))
	}
}

// DataVersion is the on-disk format version written into every header.
const DataVersion uint16 = 1

// HeaderSize is the fixed, big-endian, on-disk size of a GeneralHeader:
// data_version(2) + space_id(4) + page_id(4) + previous_id(4) + next_id(4)
// + page_type(1) + data_length(4) = 23 bytes.
const HeaderSize = 2 + 4 + 4 + 4 + 4 + 1 + 4

// GeneralHeader prefixes every on-disk page. Headers form a doubly-chained
// sequence across all pages of one space in file order; PreviousID/NextID
// of 0 marks an end of the chain.
type GeneralHeader struct {
	DataVersion uint16
	SpaceID     uint32
	PageID      uint32
	PreviousID  uint32
	NextID      uint32
	PageType    PageType
	DataLength  uint32
}

// Marshal writes the header's big-endian wire form into buf[:HeaderSize].
// buf must have length >= HeaderSize.
func (h GeneralHeader) Marshal(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], h.DataVersion)
	binary.BigEndian.PutUint32(buf[2:6], h.SpaceID)
	binary.BigEndian.PutUint32(buf[6:10], h.PageID)
	binary.BigEndian.PutUint32(buf[10:14], h.PreviousID)
	binary.BigEndian.PutUint32(buf[14:18], h.NextID)
	buf[18] = byte(h.PageType)
	binary.BigEndian.PutUint32(buf[19:23], h.DataLength)
}

// UnmarshalGeneralHeader reads a header from buf[:HeaderSize].
func UnmarshalGeneralHeader(buf []byte) (GeneralHeader, error) {
	if len(buf) < HeaderSize {
		return GeneralHeader{}, fmt.Errorf("wtpage: short buffer for header, got %d want %d", len(buf), HeaderSize)
	}
	h := GeneralHeader{
		DataVersion: binary.BigEndian.Uint16(buf[0:2]),
		SpaceID:     binary.BigEndian.Uint32(buf[2:6]),
		PageID:      binary.BigEndian.Uint32(buf[6:10]),
		PreviousID:  binary.BigEndian.Uint32(buf[10:14]),
		NextID:      binary.BigEndian.Uint32(buf[14:18]),
		PageType:    PageType(buf[18]),
		DataLength:  binary.BigEndian.Uint32(buf[19:23]),
	}
	switch h.PageType {
	case PageTypeSpaceInfo, PageTypePrimaryIndex, PageTypeSecondaryIndex, PageTypeData:
	default:
		return GeneralHeader{}, fmt.Errorf("wtpage: unrecognised page type byte %d", buf[18])
	}
	return h, nil
}
