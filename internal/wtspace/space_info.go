// Package wtspace assembles a Table's pager and indexes into one
// on-disk file — the "Space" — and parses the same file back
// (spec.md §4.4, §4.5, §6).
package wtspace

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"worktable/internal/wtpage"
)

// Interval marks a contiguous run of pages of one kind inside the file.
type Interval struct {
	FirstPageID uint32
	LastPageID  uint32
}

// IndexMeta describes one secondary index's on-disk layout, enough to
// parse its pages back without external schema knowledge.
type IndexMeta struct {
	Unique  bool
	KeySize uint32
}

// SpaceInfoData is the header page's payload: schema-level metadata,
// page count, per-section intervals, and primary-key-generator state
// (spec.md §3 SpaceInfoData).
type SpaceInfoData struct {
	ID                      uuid.UUID
	Name                    string
	PageCount               uint32
	PrimaryKeyIntervals     []Interval
	SecondaryIndexIntervals map[string]Interval
	DataIntervals           []Interval
	PKGenState              uint64
	EmptyLinksList          []wtpage.Link
	SecondaryIndexMap       map[string]IndexMeta
}

func putString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func getString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("wtspace: short buffer reading string length")
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return "", nil, fmt.Errorf("wtspace: short buffer reading string of length %d", n)
	}
	return string(buf[:n]), buf[n:], nil
}

func putInterval(buf []byte, iv Interval) []byte {
	buf = binary.BigEndian.AppendUint32(buf, iv.FirstPageID)
	buf = binary.BigEndian.AppendUint32(buf, iv.LastPageID)
	return buf
}

func getInterval(buf []byte) (Interval, []byte, error) {
	if len(buf) < 8 {
		return Interval{}, nil, fmt.Errorf("wtspace: short buffer reading interval")
	}
	return Interval{
		FirstPageID: binary.BigEndian.Uint32(buf[0:4]),
		LastPageID:  binary.BigEndian.Uint32(buf[4:8]),
	}, buf[8:], nil
}

func putLink(buf []byte, l wtpage.Link) []byte {
	buf = binary.BigEndian.AppendUint32(buf, l.PageID)
	buf = binary.BigEndian.AppendUint32(buf, l.Offset)
	buf = binary.BigEndian.AppendUint32(buf, l.Length)
	return buf
}

func getLink(buf []byte) (wtpage.Link, []byte, error) {
	if len(buf) < 12 {
		return wtpage.Link{}, nil, fmt.Errorf("wtspace: short buffer reading link")
	}
	return wtpage.Link{
		PageID: binary.BigEndian.Uint32(buf[0:4]),
		Offset: binary.BigEndian.Uint32(buf[4:8]),
		Length: binary.BigEndian.Uint32(buf[8:12]),
	}, buf[12:], nil
}

// Marshal serializes the SpaceInfoData payload.
func (s SpaceInfoData) Marshal() ([]byte, error) {
	buf := make([]byte, 0, 256)

	idBytes, err := s.ID.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("wtspace: marshal space id: %w", err)
	}
	buf = append(buf, idBytes...)

	buf = putString(buf, s.Name)
	buf = binary.BigEndian.AppendUint32(buf, s.PageCount)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.PrimaryKeyIntervals)))
	for _, iv := range s.PrimaryKeyIntervals {
		buf = putInterval(buf, iv)
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.SecondaryIndexIntervals)))
	for _, name := range sortedKeys(s.SecondaryIndexIntervals) {
		buf = putString(buf, name)
		buf = putInterval(buf, s.SecondaryIndexIntervals[name])
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.DataIntervals)))
	for _, iv := range s.DataIntervals {
		buf = putInterval(buf, iv)
	}

	buf = binary.BigEndian.AppendUint64(buf, s.PKGenState)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.EmptyLinksList)))
	for _, link := range s.EmptyLinksList {
		buf = putLink(buf, link)
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.SecondaryIndexMap)))
	for _, name := range sortedKeysMeta(s.SecondaryIndexMap) {
		meta := s.SecondaryIndexMap[name]
		buf = putString(buf, name)
		if meta.Unique {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.BigEndian.AppendUint32(buf, meta.KeySize)
	}

	return buf, nil
}

// UnmarshalSpaceInfoData is Marshal's inverse.
func UnmarshalSpaceInfoData(buf []byte) (SpaceInfoData, error) {
	var s SpaceInfoData
	if len(buf) < 16 {
		return s, fmt.Errorf("wtspace: short buffer reading space id")
	}
	if err := s.ID.UnmarshalBinary(buf[:16]); err != nil {
		return s, fmt.Errorf("wtspace: unmarshal space id: %w", err)
	}
	buf = buf[16:]

	var err error
	s.Name, buf, err = getString(buf)
	if err != nil {
		return s, err
	}
	if len(buf) < 4 {
		return s, fmt.Errorf("wtspace: short buffer reading page count")
	}
	s.PageCount = binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]

	if len(buf) < 4 {
		return s, fmt.Errorf("wtspace: short buffer reading primary key interval count")
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	s.PrimaryKeyIntervals = make([]Interval, n)
	for i := range n {
		var iv Interval
		iv, buf, err = getInterval(buf)
		if err != nil {
			return s, err
		}
		s.PrimaryKeyIntervals[i] = iv
	}

	if len(buf) < 4 {
		return s, fmt.Errorf("wtspace: short buffer reading secondary index interval count")
	}
	n = binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	s.SecondaryIndexIntervals = make(map[string]Interval, n)
	for range n {
		var name string
		name, buf, err = getString(buf)
		if err != nil {
			return s, err
		}
		var iv Interval
		iv, buf, err = getInterval(buf)
		if err != nil {
			return s, err
		}
		s.SecondaryIndexIntervals[name] = iv
	}

	if len(buf) < 4 {
		return s, fmt.Errorf("wtspace: short buffer reading data interval count")
	}
	n = binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	s.DataIntervals = make([]Interval, n)
	for i := range n {
		var iv Interval
		iv, buf, err = getInterval(buf)
		if err != nil {
			return s, err
		}
		s.DataIntervals[i] = iv
	}

	if len(buf) < 8 {
		return s, fmt.Errorf("wtspace: short buffer reading pk gen state")
	}
	s.PKGenState = binary.BigEndian.Uint64(buf[:8])
	buf = buf[8:]

	if len(buf) < 4 {
		return s, fmt.Errorf("wtspace: short buffer reading empty links count")
	}
	n = binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	s.EmptyLinksList = make([]wtpage.Link, n)
	for i := range n {
		var link wtpage.Link
		link, buf, err = getLink(buf)
		if err != nil {
			return s, err
		}
		s.EmptyLinksList[i] = link
	}

	if len(buf) < 4 {
		return s, fmt.Errorf("wtspace: short buffer reading secondary index map count")
	}
	n = binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	s.SecondaryIndexMap = make(map[string]IndexMeta, n)
	for range n {
		var name string
		name, buf, err = getString(buf)
		if err != nil {
			return s, err
		}
		if len(buf) < 5 {
			return s, fmt.Errorf("wtspace: short buffer reading index meta")
		}
		meta := IndexMeta{
			Unique:  buf[0] == 1,
			KeySize: binary.BigEndian.Uint32(buf[1:5]),
		}
		buf = buf[5:]
		s.SecondaryIndexMap[name] = meta
	}

	return s, nil
}
