package wtpager

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worktable/internal/wtpage"
)

func newTestPager(t *testing.T, inner uint32) *Pager[[]byte, []byte] {
	t.Helper()
	return New[[]byte, []byte](nil, inner, wtpage.BytesCodec{}, false)
}

func TestPager_FreshInsert(t *testing.T) {
	t.Parallel()

	p := newTestPager(t, 24)

	row := make([]byte, 23) // +1 flag byte == 24, fills page 0 exactly
	link, err := p.Insert(row)
	require.NoError(t, err)
	assert.Equal(t, wtpage.Link{PageID: 0, Offset: 0, Length: 24}, link)
	assert.Equal(t, uint64(1), p.RowCount())
}

func TestPager_Select(t *testing.T) {
	t.Parallel()

	p := newTestPager(t, 64)
	row := []byte{10, 20}
	link, err := p.Insert(row)
	require.NoError(t, err)

	got, err := p.Select(link)
	require.NoError(t, err)
	assert.Equal(t, row, got)
}

func TestPager_DeleteAndReuse(t *testing.T) {
	t.Parallel()

	p := newTestPager(t, 64)

	link, err := p.Insert([]byte{10, 20})
	require.NoError(t, err)
	preDeleteCount := p.RowCount()

	p.Delete(link)

	reused, err := p.Insert([]byte{20, 20})
	require.NoError(t, err)
	assert.Equal(t, link, reused)
	assert.Equal(t, preDeleteCount, p.RowCount())
}

func TestPager_PageGrowthOnOverflow(t *testing.T) {
	t.Parallel()

	p := newTestPager(t, 16)

	row := make([]byte, 15) // +1 flag byte == 16, exactly fills a page

	link1, err := p.Insert(row)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), link1.PageID)

	link2, err := p.Insert(row)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), link2.PageID)
	assert.Equal(t, uint32(0), link2.Offset)
	assert.Equal(t, uint32(1), p.LastPageID())
}

func TestPager_ConcurrentInserts(t *testing.T) {
	t.Parallel()

	p := newTestPager(t, 4096)

	const (
		numWorkers      = 10
		insertsPerGoRun = 1000
	)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		links = make(map[wtpage.Link]struct{}, numWorkers*insertsPerGoRun)
	)

	for w := range numWorkers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range insertsPerGoRun {
				row := []byte{byte(worker), byte(i), byte(i >> 8)}
				link, err := p.Insert(row)
				require.NoError(t, err)

				mu.Lock()
				_, dup := links[link]
				links[link] = struct{}{}
				mu.Unlock()
				require.False(t, dup, "duplicate link returned: %+v", link)

				got, err := p.Select(link)
				require.NoError(t, err)
				assert.Equal(t, row, got)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint64(numWorkers*insertsPerGoRun), p.RowCount())
	assert.Len(t, links, numWorkers*insertsPerGoRun)
}

func TestPager_Update_RejectsLengthChange(t *testing.T) {
	t.Parallel()

	p := newTestPager(t, 64)
	link, err := p.Insert([]byte{1, 2, 3})
	require.NoError(t, err)

	err = p.Update([]byte{1, 2, 3, 4}, link)
	assert.ErrorIs(t, err, wtpage.ErrInvalidLink)

	err = p.Update([]byte{9, 9, 9}, link)
	require.NoError(t, err)

	got, err := p.Select(link)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9}, got)
}

func TestPager_SelectUnknownPage(t *testing.T) {
	t.Parallel()

	p := newTestPager(t, 64)

	_, err := p.Select(wtpage.Link{PageID: 7, Offset: 0, Length: 1})
	var notFound *PageNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, uint32(7), notFound.PageID)
}

func TestPager_WithRefAndWithMutRef(t *testing.T) {
	t.Parallel()

	p := newTestPager(t, 64)
	link, err := p.Insert([]byte{1, 2, 3})
	require.NoError(t, err)

	var seen []byte
	err = p.WithRef(link, func(view []byte) error {
		seen = append([]byte{}, view...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, seen)

	err = p.WithMutRef(link, func(view []byte) error {
		view[0] = 42
		return nil
	})
	require.NoError(t, err)

	got, err := p.Select(link)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 2, 3}, got)
}
