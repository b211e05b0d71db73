package wtspace

import (
	"encoding/binary"

	"github.com/google/uuid"

	"worktable/internal/wtpage"
)

// Space is the on-disk representation of one table: SpaceInfo + primary
// index + secondary indexes + data pages (spec.md GLOSSARY, §4.4).
type Space struct {
	Path             string
	Info             SpaceInfoData
	PrimaryIndex     []wtpage.GeneralRawPage
	SecondaryIndexes []wtpage.GeneralRawPage
	Data             []wtpage.GeneralRawPage
}

// headerSpaceID derives the numeric space id carried in every
// GeneralHeader from the space's stable uuid, so every page written for
// one space shares one small, comparable value without a separate
// counter having to be threaded through from the caller.
func headerSpaceID(id uuid.UUID) uint32 {
	return binary.BigEndian.Uint32(id[:4])
}

// SecondaryIndexInput is one named secondary index's already-marshaled
// pages, supplied in the order they should be written to the file.
type SecondaryIndexInput struct {
	Name  string
	Pages []wtpage.RawPage
	Meta  IndexMeta
}

// BuildOptions carries everything into_space needs beyond what the
// pager already tracks: the table's name, its already-marshaled primary
// and secondary index pages (spec.md §4.2's abstract key codec lives one
// layer up, in the table facade), and primary-key-generator state.
type BuildOptions struct {
	SpaceID           uuid.UUID // zero value requests a freshly generated id
	Name              string
	PrimaryIndexPages []wtpage.RawPage
	SecondaryIndexes  []SecondaryIndexInput
	DataPages         []wtpage.RawPage
	PKGenState        uint64
	EmptyLinks        []wtpage.Link
}

// Build assembles one Space snapshot: SpaceInfo, primary index pages,
// secondary index pages (in declaration order), and data pages, with
// PreviousID/NextID strictly threaded across section boundaries and
// Interval bookkeeping recorded into Info as each section is appended
// (spec.md §4.4 into_space).
func Build(opts BuildOptions) Space {
	spaceID := opts.SpaceID
	if spaceID == uuid.Nil {
		spaceID = uuid.New()
	}
	numericID := headerSpaceID(spaceID)

	info := SpaceInfoData{
		ID:                      spaceID,
		Name:                    opts.Name,
		SecondaryIndexIntervals: make(map[string]Interval, len(opts.SecondaryIndexes)),
		SecondaryIndexMap:       make(map[string]IndexMeta, len(opts.SecondaryIndexes)),
		PKGenState:              opts.PKGenState,
		EmptyLinksList:          opts.EmptyLinks,
	}

	infoHeader := wtpage.GeneralHeader{
		DataVersion: wtpage.DataVersion,
		SpaceID:     numericID,
		PageID:      0,
		PageType:    wtpage.PageTypeSpaceInfo,
	}
	info.PageCount++
	lastHeader := infoHeader

	primary := wtpage.MapRawPagesToGeneral(opts.PrimaryIndexPages, lastHeader, wtpage.PageTypePrimaryIndex, numericID)
	info.PrimaryKeyIntervals = []Interval{{
		FirstPageID: primary[0].Header.PageID,
		LastPageID:  primary[len(primary)-1].Header.PageID,
	}}
	info.PageCount += uint32(len(primary))
	lastHeader = primary[len(primary)-1].Header

	var secondary []wtpage.GeneralRawPage
	for _, input := range opts.SecondaryIndexes {
		pages := wtpage.MapRawPagesToGeneral(input.Pages, lastHeader, wtpage.PageTypeSecondaryIndex, numericID)
		secondary = append(secondary, pages...)

		info.SecondaryIndexIntervals[input.Name] = Interval{
			FirstPageID: pages[0].Header.PageID,
			LastPageID:  pages[len(pages)-1].Header.PageID,
		}
		info.SecondaryIndexMap[input.Name] = input.Meta
		info.PageCount += uint32(len(pages))
		lastHeader = pages[len(pages)-1].Header
	}

	data := wtpage.MapRawPagesToGeneral(opts.DataPages, lastHeader, wtpage.PageTypeData, numericID)
	info.DataIntervals = []Interval{{
		FirstPageID: data[0].Header.PageID,
		LastPageID:  data[len(data)-1].Header.PageID,
	}}
	info.PageCount += uint32(len(data))

	// MapRawPagesToGeneral leaves each run's last NextID at 0. Page ids are
	// consecutive across runs and a data run always follows, so every
	// primary- and secondary-index page points forward to PageID+1; the
	// last data page keeps NextID 0 as the end of the chain.
	for _, run := range [][]wtpage.GeneralRawPage{primary, secondary} {
		for i := range run {
			run[i].Header.NextID = run[i].Header.PageID + 1
		}
	}

	return Space{
		Info:             info,
		PrimaryIndex:     primary,
		SecondaryIndexes: secondary,
		Data:             data,
	}
}
