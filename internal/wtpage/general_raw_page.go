package wtpage

// RawPage is one data page's buffer and used-length, the shape the pager
// exposes via get_bytes() and the shape the space serializer consumes.
type RawPage struct {
	Bytes  []byte
	Length uint32
}

// GeneralRawPage wraps one RawPage with the GeneralHeader that precedes
// it on disk. It is deliberately type-agnostic: the same shape serves
// data pages, primary-index pages, and secondary-index pages, since all
// three are, at the point of persistence, just a header plus a byte
// payload of known length.
type GeneralRawPage struct {
	Header GeneralHeader
	Page   RawPage
}

// MapRawPagesToGeneral wraps each page with a GeneralHeader, assigning
// consecutive page ids starting from prevHeader.PageID+1, threading
// PreviousID within the section, and tagging every page with pageType.
// The last page's NextID is left 0; callers stitching sections together
// patch it once the following section's first page id is known
// (spec.md §4.3, §4.4).
func MapRawPagesToGeneral(pages []RawPage, prevHeader GeneralHeader, pageType PageType, spaceID uint32) []GeneralRawPage {
	out := make([]GeneralRawPage, len(pages))
	prevID := prevHeader.PageID
	for i, page := range pages {
		pageID := prevHeader.PageID + uint32(i) + 1
		out[i] = GeneralRawPage{
			Header: GeneralHeader{
				DataVersion: DataVersion,
				SpaceID:     spaceID,
				PageID:      pageID,
				PreviousID:  prevID,
				NextID:      0,
				PageType:    pageType,
				DataLength:  page.Length,
			},
			Page: page,
		}
		if i > 0 {
			out[i-1].Header.NextID = pageID
		}
		prevID = pageID
	}
	return out
}
