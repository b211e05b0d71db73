package wtspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"worktable/internal/wtpage"
)

// Parse reads {dir}/{name}.wt back into a Space. A missing file is
// reported via ErrNotExist so callers (the table facade's
// load_from_file) can route it to "create an empty table" rather than
// treating it as corruption (spec.md §4.5, §7).
var ErrNotExist = os.ErrNotExist

// Parse reads a Space from {dir}/{name}.wt. inner is the table's
// configured data-page capacity, needed to read each data page's fixed
// INNER-byte payload (spec.md §6) rather than relying on the untrusted
// on-disk DataLength, which only marks the used prefix for that section.
func Parse(dir, name string, inner uint32) (Space, error) {
	filePath := filepath.Join(dir, name+".wt")
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Space{}, fmt.Errorf("wtspace: open %s: %w", filePath, ErrNotExist)
		}
		return Space{}, fmt.Errorf("wtspace: open %s: %w", filePath, err)
	}
	defer f.Close()

	infoHeader, infoPayload, err := readPage(f)
	if err != nil {
		return Space{}, fmt.Errorf("wtspace: read space info page: %w", err)
	}
	if infoHeader.PageType != wtpage.PageTypeSpaceInfo {
		return Space{}, fmt.Errorf("wtspace: expected SpaceInfo page, got %s", infoHeader.PageType)
	}
	info, err := UnmarshalSpaceInfoData(infoPayload)
	if err != nil {
		return Space{}, fmt.Errorf("wtspace: unmarshal space info: %w", err)
	}

	var space Space
	space.Path = dir
	space.Info = info

	space.PrimaryIndex, err = readRun(f, intervalsPageCount(info.PrimaryKeyIntervals), wtpage.PageTypePrimaryIndex)
	if err != nil {
		return Space{}, fmt.Errorf("wtspace: read primary index: %w", err)
	}

	for _, name := range sortedKeys(info.SecondaryIndexIntervals) {
		interval := info.SecondaryIndexIntervals[name]
		count := int(interval.LastPageID-interval.FirstPageID) + 1
		pages, err := readRun(f, count, wtpage.PageTypeSecondaryIndex)
		if err != nil {
			return Space{}, fmt.Errorf("wtspace: read secondary index %q: %w", name, err)
		}
		space.SecondaryIndexes = append(space.SecondaryIndexes, pages...)
	}

	space.Data, err = readDataRun(f, intervalsPageCount(info.DataIntervals), inner)
	if err != nil {
		return Space{}, fmt.Errorf("wtspace: read data pages: %w", err)
	}

	return space, nil
}

func intervalsPageCount(intervals []Interval) int {
	total := 0
	for _, iv := range intervals {
		total += int(iv.LastPageID-iv.FirstPageID) + 1
	}
	return total
}

// readRun reads totalPages contiguous pages of one section, verifying
// each header's declared type matches the section it was read for
// (spec.md §4.5 step 3: a mismatch between header type and expected
// section is fatal).
func readRun(f io.Reader, totalPages int, want wtpage.PageType) ([]wtpage.GeneralRawPage, error) {
	out := make([]wtpage.GeneralRawPage, 0, totalPages)
	for range totalPages {
		header, payload, err := readPage(f)
		if err != nil {
			return nil, err
		}
		if header.PageType != want {
			return nil, fmt.Errorf("wtspace: expected %s page, got %s at page id %d", want, header.PageType, header.PageID)
		}
		out = append(out, wtpage.GeneralRawPage{
			Header: header,
			Page:   wtpage.RawPage{Bytes: payload, Length: header.DataLength},
		})
	}
	return out, nil
}

// readDataRun reads totalPages contiguous data pages, each a fixed
// inner-byte payload rather than a DataLength-sized one: unlike index/
// SpaceInfo pages, a data page's on-disk size is fixed at INNER bytes and
// DataLength only marks its used prefix (spec.md §6).
func readDataRun(f io.Reader, totalPages int, inner uint32) ([]wtpage.GeneralRawPage, error) {
	out := make([]wtpage.GeneralRawPage, 0, totalPages)
	for range totalPages {
		header, payload, err := readDataPage(f, inner)
		if err != nil {
			return nil, err
		}
		if header.PageType != wtpage.PageTypeData {
			return nil, fmt.Errorf("wtspace: expected %s page, got %s at page id %d", wtpage.PageTypeData, header.PageType, header.PageID)
		}
		out = append(out, wtpage.GeneralRawPage{
			Header: header,
			Page:   wtpage.RawPage{Bytes: payload, Length: header.DataLength},
		})
	}
	return out, nil
}

func readDataPage(r io.Reader, inner uint32) (wtpage.GeneralHeader, []byte, error) {
	headerBuf := make([]byte, wtpage.HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return wtpage.GeneralHeader{}, nil, fmt.Errorf("read header: %w", err)
	}
	header, err := wtpage.UnmarshalGeneralHeader(headerBuf)
	if err != nil {
		return wtpage.GeneralHeader{}, nil, err
	}

	payload := make([]byte, inner)
	if _, err := io.ReadFull(r, payload); err != nil {
		return wtpage.GeneralHeader{}, nil, fmt.Errorf("read payload for page %d: %w", header.PageID, err)
	}
	return header, payload, nil
}

func readPage(r io.Reader) (wtpage.GeneralHeader, []byte, error) {
	headerBuf := make([]byte, wtpage.HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return wtpage.GeneralHeader{}, nil, fmt.Errorf("read header: %w", err)
	}
	header, err := wtpage.UnmarshalGeneralHeader(headerBuf)
	if err != nil {
		return wtpage.GeneralHeader{}, nil, err
	}

	payload := make([]byte, header.DataLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return wtpage.GeneralHeader{}, nil, fmt.Errorf("read payload for page %d: %w", header.PageID, err)
	}
	return header, payload, nil
}
