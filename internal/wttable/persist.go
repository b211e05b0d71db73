package wttable

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sort"

	"worktable/internal/wtindex"
	"worktable/internal/wtpage"
	"worktable/internal/wtspace"
)

const linkEntrySize = 12 // PageID(4) + Offset(4) + Length(4), matches wtindex's on-disk slot layout

// Persist snapshots the table into_space and writes it to
// {manager.database_files_dir}/{name}.wt (spec.md §4.4, §4.5).
func (t *Table[Row, View, PK]) Persist() error {
	primaryPages, err := t.marshalPrimaryIndex()
	if err != nil {
		return fmt.Errorf("wttable: marshal primary index: %w", err)
	}

	secondaryInputs, err := t.marshalSecondaryIndexes()
	if err != nil {
		return fmt.Errorf("wttable: marshal secondary indexes: %w", err)
	}

	space := wtspace.Build(wtspace.BuildOptions{
		SpaceID:           t.spaceID,
		Name:              t.opts.Name,
		PrimaryIndexPages: primaryPages,
		SecondaryIndexes:  secondaryInputs,
		DataPages:         t.pager.GetBytes(),
		PKGenState:        t.pkGenState.Load(),
		EmptyLinks:        t.pager.GetEmptyLinks(),
	})
	space.Path = t.opts.Manager.DatabaseFilesDir

	return wtspace.Persist(t.logger, space)
}

func (t *Table[Row, View, PK]) marshalPrimaryIndex() ([]wtpage.RawPage, error) {
	t.pkMu.RLock()
	keys := make([]PK, 0, len(t.pk))
	for k := range t.pk {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b PK) int { return cmp.Compare(a, b) })

	entries := make([]wtindex.Entry[PK], len(keys))
	for i, k := range keys {
		entries[i] = wtindex.Entry[PK]{Key: k, Link: t.pk[k]}
	}
	t.pkMu.RUnlock()

	slotSize := uint32(t.opts.PrimaryKeyCodec.KeySize() + linkEntrySize)
	pages := wtindex.MapUniqueTreeIndex(entries, t.opts.Inner, slotSize)
	return wtindex.MarshalPages(pages, t.opts.PrimaryKeyCodec)
}

func (t *Table[Row, View, PK]) marshalSecondaryIndexes() ([]wtspace.SecondaryIndexInput, error) {
	inputs := make([]wtspace.SecondaryIndexInput, len(t.secondary))
	for i, idx := range t.secondary {
		idx.mu.RLock()
		keys := make([]string, 0, len(idx.entries))
		for k := range idx.entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var entries []wtindex.Entry[[]byte]
		for _, k := range keys {
			for _, link := range idx.entries[k] {
				entries = append(entries, wtindex.Entry[[]byte]{Key: []byte(k), Link: link})
			}
		}
		idx.mu.RUnlock()

		codec := wtindex.FixedBytesCodec{Size: idx.spec.KeySize}
		slotSize := uint32(idx.spec.KeySize + linkEntrySize)
		pages := wtindex.MapUniqueTreeIndex(entries, t.opts.Inner, slotSize)
		raw, err := wtindex.MarshalPages(pages, codec)
		if err != nil {
			return nil, fmt.Errorf("secondary index %q: %w", idx.spec.Name, err)
		}

		inputs[i] = wtspace.SecondaryIndexInput{
			Name:  idx.spec.Name,
			Pages: raw,
			Meta:  wtspace.IndexMeta{Unique: idx.spec.Unique, KeySize: uint32(idx.spec.KeySize)},
		}
	}
	// Written in name order, the order Parse and loadSecondaryIndexes read
	// the runs back in.
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Name < inputs[j].Name })
	return inputs, nil
}

// LoadFromFile reconstitutes a table from {manager.database_files_dir}/
// {name}.wt. A missing file yields a fresh empty table rather than an
// error (spec.md §4.5 step 4, §7).
func LoadFromFile[Row any, View any, PK cmp.Ordered](opts Options[Row, View, PK]) (*Table[Row, View, PK], error) {
	space, err := wtspace.Parse(opts.Manager.DatabaseFilesDir, opts.Name, opts.Inner)
	if errors.Is(err, wtspace.ErrNotExist) {
		return New(opts), nil
	}
	if err != nil {
		return nil, err
	}

	t := New(opts)
	t.spaceID = space.Info.ID
	t.pkGenState.Store(space.Info.PKGenState)

	pages := make([]wtpage.RawPage, len(space.Data))
	for i, p := range space.Data {
		pages[i] = wtpage.RawPage{Bytes: p.Page.Bytes, Length: p.Header.DataLength}
	}
	t.pager.LoadPages(pages)
	t.pager.RestoreEmptyLinks(space.Info.EmptyLinksList)

	if err := t.loadPrimaryIndex(space); err != nil {
		return nil, fmt.Errorf("wttable: load primary index: %w", err)
	}
	if err := t.loadSecondaryIndexes(space); err != nil {
		return nil, fmt.Errorf("wttable: load secondary indexes: %w", err)
	}

	return t, nil
}

func (t *Table[Row, View, PK]) loadPrimaryIndex(space wtspace.Space) error {
	for _, page := range space.PrimaryIndex {
		data, err := wtindex.UnmarshalPage(page.Page.Bytes[:page.Header.DataLength], t.opts.PrimaryKeyCodec)
		if err != nil {
			return err
		}
		for _, entry := range data.Entries {
			t.pk[entry.Key] = entry.Link
		}
	}
	return nil
}

func (t *Table[Row, View, PK]) loadSecondaryIndexes(space wtspace.Space) error {
	names := make([]string, 0, len(space.Info.SecondaryIndexIntervals))
	for name := range space.Info.SecondaryIndexIntervals {
		names = append(names, name)
	}
	sort.Strings(names)

	offset := 0
	for _, name := range names {
		interval := space.Info.SecondaryIndexIntervals[name]
		count := int(interval.LastPageID-interval.FirstPageID) + 1
		if offset+count > len(space.SecondaryIndexes) {
			return fmt.Errorf("secondary index %q: page run out of bounds", name)
		}
		pages := space.SecondaryIndexes[offset : offset+count]
		offset += count

		idx := t.secondaryByName(name)
		if idx == nil {
			// Index declared in the persisted file but not configured on
			// this Options value; skip it rather than failing the load.
			continue
		}

		codec := wtindex.FixedBytesCodec{Size: idx.spec.KeySize}
		for _, page := range pages {
			data, err := wtindex.UnmarshalPage(page.Page.Bytes[:page.Header.DataLength], codec)
			if err != nil {
				return fmt.Errorf("secondary index %q: %w", name, err)
			}
			for _, entry := range data.Entries {
				key := string(entry.Key)
				idx.entries[key] = append(idx.entries[key], entry.Link)
			}
		}
	}
	return nil
}
