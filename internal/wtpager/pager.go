// Package wtpager implements DataPager: the concurrent owner of a
// growable vector of data pages plus a lock-free stack of reusable
// links. See spec.md §4.2.
package wtpager

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"worktable/internal/wtpage"
	"worktable/pkg/linkstack"
)

// pageEntry pairs a data page with the read/write guard that serializes
// writers to it while letting different pages proceed in parallel.
type pageEntry[Row any, View any] struct {
	mu   sync.RWMutex
	page *wtpage.DataPage[Row, View]
}

// Pager owns a vector of data pages under a single read/write lock plus a
// lock-free stack of recyclable links. The zero value is not usable; use
// New.
type Pager[Row any, View any] struct {
	logger   *zap.Logger
	inner    uint32
	codec    wtpage.Codec[Row, View]
	compress bool

	pagesLock sync.RWMutex
	pages     []*pageEntry[Row, View]

	emptyLinks *linkstack.Stack[wtpage.Link]

	rowCount    atomic.Uint64
	lastPageID  atomic.Uint32
	currentPage atomic.Uint32
}

// New constructs a pager with one empty page already allocated (page id
// 0), matching the invariant pages[i].page_id == i and
// last_page_id == len(pages)-1 holding from the first insert onward.
// inner is the usable byte capacity of every data page; compress enables
// per-row snappy compression in DataPage (see wtpage.NewDataPage).
func New[Row any, View any](logger *zap.Logger, inner uint32, codec wtpage.Codec[Row, View], compress bool) *Pager[Row, View] {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pager[Row, View]{
		logger:     logger,
		inner:      inner,
		codec:      codec,
		compress:   compress,
		emptyLinks: linkstack.New[wtpage.Link](),
	}
	p.pages = append(p.pages, &pageEntry[Row, View]{
		page: wtpage.NewDataPage[Row, View](0, inner, codec, compress),
	})
	return p
}

// RowCount returns the number of successful fresh inserts not followed by
// recycled-link reuse. It is NOT decremented on delete; spec.md §9 Open
// Question (a) — treat it as a fresh-insert counter, not a live-row count.
func (p *Pager[Row, View]) RowCount() uint64 {
	return p.rowCount.Load()
}

// LastPageID returns the highest allocated page id.
func (p *Pager[Row, View]) LastPageID() uint32 {
	return p.lastPageID.Load()
}

// CurrentPage returns the page id inserts currently target first.
func (p *Pager[Row, View]) CurrentPage() uint32 {
	return p.currentPage.Load()
}

// PageCount returns the number of pages in the vector.
func (p *Pager[Row, View]) PageCount() int {
	p.pagesLock.RLock()
	defer p.pagesLock.RUnlock()
	return len(p.pages)
}

func (p *Pager[Row, View]) entryAt(pageID uint32) (*pageEntry[Row, View], error) {
	p.pagesLock.RLock()
	defer p.pagesLock.RUnlock()
	if int(pageID) >= len(p.pages) {
		return nil, &PageNotFoundError{PageID: pageID}
	}
	return p.pages[pageID], nil
}

// addNextPage allocates a new data page and advances current_page, but
// only if triedPage is still current_page under the write lock — a
// double-checked comparison that prevents two threads from both growing
// the store for the same full page (spec.md §4.2 add_next_page).
func (p *Pager[Row, View]) addNextPage(triedPage uint32) {
	p.pagesLock.Lock()
	defer p.pagesLock.Unlock()

	if p.currentPage.Load() != triedPage {
		return
	}

	newID := p.lastPageID.Add(1)
	p.pages = append(p.pages, &pageEntry[Row, View]{
		page: wtpage.NewDataPage[Row, View](newID, p.inner, p.codec, p.compress),
	})
	p.currentPage.Add(1)

	p.logger.Sugar().With(
		"page_id", newID,
	).Debug("allocated new data page")
}

// insertFresh appends row to current_page, growing the page vector and
// retrying exactly once if that page turns out to be full.
func (p *Pager[Row, View]) insertFresh(row Row) (wtpage.Link, error) {
	cp := p.currentPage.Load()
	entry, err := p.entryAt(cp)
	if err != nil {
		return wtpage.Link{}, err
	}

	entry.mu.Lock()
	link, err := entry.page.SaveRow(row)
	entry.mu.Unlock()
	if err == nil {
		p.rowCount.Add(1)
		return link, nil
	}

	var dpErr *wtpage.DataPageError
	if !errors.As(err, &dpErr) || dpErr.Kind != wtpage.KindPageIsFull {
		return wtpage.Link{}, err
	}

	p.addNextPage(cp)

	newCP := p.currentPage.Load()
	entry, err = p.entryAt(newCP)
	if err != nil {
		return wtpage.Link{}, err
	}

	entry.mu.Lock()
	link, err = entry.page.SaveRow(row)
	entry.mu.Unlock()
	if err != nil {
		return wtpage.Link{}, err
	}

	p.rowCount.Add(1)
	return link, nil
}

// Insert stores row and returns its Link. A freed link is reused first
// when one is available and its slot geometry still matches; row_count
// is only incremented for a fresh insert, never for a recycled one
// (spec.md §4.2, §9 Open Question (a)).
func (p *Pager[Row, View]) Insert(row Row) (wtpage.Link, error) {
	if link, ok := p.emptyLinks.Pop(); ok {
		entry, err := p.entryAt(link.PageID)
		if err != nil {
			return wtpage.Link{}, err
		}

		entry.mu.Lock()
		err = entry.page.SaveRowByLink(row, link)
		entry.mu.Unlock()

		switch {
		case err == nil:
			return link, nil
		case errors.Is(err, wtpage.ErrInvalidLink):
			p.logger.Sugar().With("page_id", link.PageID).Warn("recycled link geometry stale, falling back to fresh insert")
			p.emptyLinks.Push(link)
			return p.insertFresh(row)
		default:
			return wtpage.Link{}, err
		}
	}

	return p.insertFresh(row)
}

// Select deserializes and returns an owned copy of the row at link.
func (p *Pager[Row, View]) Select(link wtpage.Link) (Row, error) {
	var zero Row
	entry, err := p.entryAt(link.PageID)
	if err != nil {
		return zero, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.page.GetRow(link)
}

// WithRef invokes fn on a borrowed, zero-copy view of the row at link,
// holding the page's read guard for the duration of fn.
func (p *Pager[Row, View]) WithRef(link wtpage.Link, fn func(View) error) error {
	entry, err := p.entryAt(link.PageID)
	if err != nil {
		return err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()

	view, err := entry.page.GetRowRef(link)
	if err != nil {
		return err
	}
	return fn(view)
}

// WithMutRef invokes fn on a borrowed, mutable, zero-copy view of the row
// at link, holding the page's write guard for the duration of fn. fn must
// not change the byte length of the row through the view.
func (p *Pager[Row, View]) WithMutRef(link wtpage.Link, fn func(View) error) error {
	entry, err := p.entryAt(link.PageID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	view, err := entry.page.GetMutRowRef(link)
	if err != nil {
		return err
	}
	return fn(view)
}

// Update overwrites the row at link in place. Length-changing updates are
// not supported through this path — callers needing one must implement
// it as delete+insert and re-link their indexes (spec.md §4.2 Update).
func (p *Pager[Row, View]) Update(row Row, link wtpage.Link) error {
	entry, err := p.entryAt(link.PageID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.page.SaveRowByLink(row, link)
}

// Delete pushes link onto the empty-links stack for future reuse. The
// slot bytes remain in the page until reused — callers must remove the
// link from every index before, or atomically with, calling Delete.
func (p *Pager[Row, View]) Delete(link wtpage.Link) {
	p.emptyLinks.Push(link)
}

// GetEmptyLinks returns a point-in-time snapshot of the recyclable links,
// for persistence (spec.md §6).
func (p *Pager[Row, View]) GetEmptyLinks() []wtpage.Link {
	return p.emptyLinks.Snapshot()
}

// RestoreEmptyLinks repopulates the empty-link stack, used when loading a
// pager back from a parsed space.
func (p *Pager[Row, View]) RestoreEmptyLinks(links []wtpage.Link) {
	for _, link := range links {
		p.emptyLinks.Push(link)
	}
}

// GetBytes returns every page's backing buffer and used length, in page
// id order, for the space serializer to persist (spec.md §6 get_bytes).
func (p *Pager[Row, View]) GetBytes() []wtpage.RawPage {
	p.pagesLock.RLock()
	defer p.pagesLock.RUnlock()

	out := make([]wtpage.RawPage, len(p.pages))
	for i, entry := range p.pages {
		entry.mu.RLock()
		buf, length := entry.page.Bytes()
		out[i] = wtpage.RawPage{Bytes: buf, Length: length}
		entry.mu.RUnlock()
	}
	return out
}

// LoadPages restores the pager's page vector from persisted bytes, one
// entry per page in page-id order. It is the counterpart to GetBytes used
// when parsing a space back from file.
func (p *Pager[Row, View]) LoadPages(pages []wtpage.RawPage) {
	p.pagesLock.Lock()
	defer p.pagesLock.Unlock()

	p.pages = make([]*pageEntry[Row, View], len(pages))
	for i, pb := range pages {
		page := wtpage.NewDataPage[Row, View](uint32(i), p.inner, p.codec, p.compress)
		page.LoadBytes(pb.Bytes, pb.Length)
		p.pages[i] = &pageEntry[Row, View]{page: page}
	}
	if len(pages) > 0 {
		p.lastPageID.Store(uint32(len(pages) - 1))
		p.currentPage.Store(uint32(len(pages) - 1))
	}
}
