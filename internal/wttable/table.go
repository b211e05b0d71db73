// Package wttable is the thin facade spec.md §2 calls "external": it
// routes insert/select/update/delete to a DataPager, keeps the primary
// and secondary key indexes in sync with it, and delegates persistence
// to wtspace. Schema/query/DSL surfaces and the per-row code generator
// are out of scope (spec.md §1); callers supply a PrimaryKeyFunc and any
// SecondaryIndexSpecs the way generated table code would.
package wttable

import (
	"cmp"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"worktable/internal/pkg/logging"
	"worktable/internal/wtindex"
	"worktable/internal/wtpage"
	"worktable/internal/wtpager"
)

// ManagerConfig is the collaborator interface spec.md §6 says the core
// consumes: just the directory a space's file lives under.
type ManagerConfig struct {
	DatabaseFilesDir string
}

// SecondaryIndexSpec describes one secondary index a table maintains:
// its name, uniqueness, fixed key width, and how to extract a key from a
// row. KeyFunc must always return exactly KeySize bytes.
type SecondaryIndexSpec[Row any] struct {
	Name    string
	Unique  bool
	KeySize int
	KeyFunc func(Row) []byte
}

// Options configures a Table. PK must be ordered so primary-index pages
// can be built from a key-sorted sequence (spec.md §4.3 requires an
// ordered iterator); this is the one place the facade asks more of a key
// type than the spec's abstract "archive capability" strictly requires.
type Options[Row any, View any, PK cmp.Ordered] struct {
	// Logger is used as given if set. Otherwise New builds one via
	// logging.DefaultConfig, applying LogLevel if non-empty.
	Logger           *zap.Logger
	LogLevel         string
	Manager          ManagerConfig
	Name             string
	Inner            uint32
	Compress         bool
	Codec            wtpage.Codec[Row, View]
	PrimaryKeyFunc   func(Row) PK
	PrimaryKeyCodec  wtindex.KeyCodec[PK]
	SecondaryIndexes []SecondaryIndexSpec[Row]
}

type secondaryIndex[Row any] struct {
	spec SecondaryIndexSpec[Row]

	mu      sync.RWMutex
	entries map[string][]wtpage.Link
}

// Table binds one DataPager to its primary and secondary indexes and to
// the Space file they persist to together.
type Table[Row any, View any, PK cmp.Ordered] struct {
	logger *zap.Logger
	opts   Options[Row, View, PK]

	spaceID uuid.UUID
	pager   *wtpager.Pager[Row, View]

	pkMu sync.RWMutex
	pk   map[PK]wtpage.Link

	secondary []*secondaryIndex[Row]

	pkGenState atomic.Uint64
}

// New builds an empty table: one data page, no indexed rows. Use
// LoadFromFile to reconstitute a table from a previously persisted file.
func New[Row any, View any, PK cmp.Ordered](opts Options[Row, View, PK]) *Table[Row, View, PK] {
	logger := opts.Logger
	if logger == nil {
		built, err := logging.NewDefault(opts.LogLevel)
		if err != nil {
			built = zap.NewNop()
		}
		logger = built
	}

	secondary := make([]*secondaryIndex[Row], len(opts.SecondaryIndexes))
	for i, spec := range opts.SecondaryIndexes {
		secondary[i] = &secondaryIndex[Row]{spec: spec, entries: make(map[string][]wtpage.Link)}
	}

	return &Table[Row, View, PK]{
		logger:    logger,
		opts:      opts,
		spaceID:   uuid.New(),
		pager:     wtpager.New(logger, opts.Inner, opts.Codec, opts.Compress),
		pk:        make(map[PK]wtpage.Link),
		secondary: secondary,
	}
}

// Insert stores row, indexing it under its primary key and every
// secondary index's key (spec.md §2 data flow on insert).
func (t *Table[Row, View, PK]) Insert(row Row) (wtpage.Link, error) {
	link, err := t.pager.Insert(row)
	if err != nil {
		return wtpage.Link{}, err
	}

	key := t.opts.PrimaryKeyFunc(row)
	t.pkMu.Lock()
	t.pk[key] = link
	t.pkMu.Unlock()

	for _, idx := range t.secondary {
		t.indexRow(idx, row, link)
	}

	return link, nil
}

func (t *Table[Row, View, PK]) indexRow(idx *secondaryIndex[Row], row Row, link wtpage.Link) {
	skey := string(idx.spec.KeyFunc(row))
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.spec.Unique {
		idx.entries[skey] = []wtpage.Link{link}
	} else {
		idx.entries[skey] = append(idx.entries[skey], link)
	}
}

// Select returns an owned copy of the row at link.
func (t *Table[Row, View, PK]) Select(link wtpage.Link) (Row, error) {
	return t.pager.Select(link)
}

// WithRef invokes fn on a zero-copy view of the row at link.
func (t *Table[Row, View, PK]) WithRef(link wtpage.Link, fn func(View) error) error {
	return t.pager.WithRef(link, fn)
}

// WithMutRef invokes fn on a zero-copy mutable view of the row at link.
func (t *Table[Row, View, PK]) WithMutRef(link wtpage.Link, fn func(View) error) error {
	return t.pager.WithMutRef(link, fn)
}

// Update overwrites the row at link in place. Indexes are left untouched
// since link and the row's keys are assumed unchanged; a key-changing
// update must go through Delete + Insert (spec.md §4.2 Update).
func (t *Table[Row, View, PK]) Update(row Row, link wtpage.Link) error {
	return t.pager.Update(row, link)
}

// Delete removes key from the primary index and every secondary index,
// then frees its link on the pager, in that order, so no index can ever
// point at a link the pager is free to recycle (spec.md §4.2 Delete).
func (t *Table[Row, View, PK]) Delete(key PK) error {
	t.pkMu.Lock()
	link, ok := t.pk[key]
	if !ok {
		t.pkMu.Unlock()
		return ErrKeyNotFound
	}
	delete(t.pk, key)
	t.pkMu.Unlock()

	if len(t.secondary) > 0 {
		row, err := t.pager.Select(link)
		if err == nil {
			for _, idx := range t.secondary {
				t.unindexRow(idx, row, link)
			}
		}
	}

	t.pager.Delete(link)
	return nil
}

func (t *Table[Row, View, PK]) unindexRow(idx *secondaryIndex[Row], row Row, link wtpage.Link) {
	skey := string(idx.spec.KeyFunc(row))
	idx.mu.Lock()
	defer idx.mu.Unlock()
	links := idx.entries[skey]
	for i, l := range links {
		if l == link {
			idx.entries[skey] = append(links[:i], links[i+1:]...)
			break
		}
	}
	if len(idx.entries[skey]) == 0 {
		delete(idx.entries, skey)
	}
}

// SelectByPrimaryKey looks up key in the primary index and returns the
// indexed row.
func (t *Table[Row, View, PK]) SelectByPrimaryKey(key PK) (Row, error) {
	var zero Row
	t.pkMu.RLock()
	link, ok := t.pk[key]
	t.pkMu.RUnlock()
	if !ok {
		return zero, ErrKeyNotFound
	}
	return t.pager.Select(link)
}

// SelectBySecondaryKey returns every row indexed under key in the named
// secondary index, in insertion order.
func (t *Table[Row, View, PK]) SelectBySecondaryKey(name string, key []byte) ([]Row, error) {
	idx := t.secondaryByName(name)
	if idx == nil {
		return nil, ErrKeyNotFound
	}

	idx.mu.RLock()
	links := append([]wtpage.Link(nil), idx.entries[string(key)]...)
	idx.mu.RUnlock()

	rows := make([]Row, 0, len(links))
	for _, link := range links {
		row, err := t.pager.Select(link)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *Table[Row, View, PK]) secondaryByName(name string) *secondaryIndex[Row] {
	for _, idx := range t.secondary {
		if idx.spec.Name == name {
			return idx
		}
	}
	return nil
}

// GetEmptyLinks returns the pager's recyclable-link snapshot.
func (t *Table[Row, View, PK]) GetEmptyLinks() []wtpage.Link {
	return t.pager.GetEmptyLinks()
}

// GetBytes returns every data page's buffer and used length.
func (t *Table[Row, View, PK]) GetBytes() []wtpage.RawPage {
	return t.pager.GetBytes()
}

// RowCount returns the pager's fresh-insert counter (spec.md §9 Open
// Question (a): not a live-row count).
func (t *Table[Row, View, PK]) RowCount() uint64 {
	return t.pager.RowCount()
}

// PKGenState returns the primary-key-generator state last set via
// SetPKGenState, captured into SpaceInfoData on Persist and restored by
// LoadFromFile.
func (t *Table[Row, View, PK]) PKGenState() uint64 {
	return t.pkGenState.Load()
}

// SetPKGenState records the primary-key generator's current state, for
// the next Persist to capture.
func (t *Table[Row, View, PK]) SetPKGenState(v uint64) {
	t.pkGenState.Store(v)
}
