package wtpage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingCodec always errors, to exercise DataPageError's
// KindSerializeError/KindDeserializeError paths.
type failingCodec struct{}

var errCodecBoom = errors.New("codec boom")

func (failingCodec) Marshal([]byte) ([]byte, error)   { return nil, errCodecBoom }
func (failingCodec) Unmarshal([]byte) ([]byte, error) { return nil, errCodecBoom }
func (failingCodec) View(buf []byte) []byte           { return buf }
func (failingCodec) MutableView(buf []byte) []byte    { return buf }

func TestDataPage_SaveAndGetRow(t *testing.T) {
	t.Parallel()

	page := NewDataPage[[]byte, []byte](0, 24, BytesCodec{}, false)

	row := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	link, err := page.SaveRow(row)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), link.PageID)
	assert.Equal(t, uint32(0), link.Offset)
	assert.Equal(t, uint32(len(row)+1), link.Length) // +1 for compression flag byte

	got, err := page.GetRow(link)
	require.NoError(t, err)
	assert.Equal(t, row, got)
}

func TestDataPage_SaveRow_PageIsFull(t *testing.T) {
	t.Parallel()

	page := NewDataPage[[]byte, []byte](0, 16, BytesCodec{}, false)

	row := make([]byte, 16) // +1 flag byte pushes it over 16
	_, err := page.SaveRow(row)
	require.Error(t, err)

	var dpErr *DataPageError
	require.ErrorAs(t, err, &dpErr)
	assert.Equal(t, KindPageIsFull, dpErr.Kind)
	assert.Equal(t, uint32(16), dpErr.Free)
	assert.Equal(t, uint32(17), dpErr.Required)
}

func TestDataPage_SaveRow_SerializeError(t *testing.T) {
	t.Parallel()

	page := NewDataPage[[]byte, []byte](0, 64, failingCodec{}, false)

	_, err := page.SaveRow([]byte{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, errCodecBoom)

	var dpErr *DataPageError
	require.ErrorAs(t, err, &dpErr)
	assert.Equal(t, KindSerializeError, dpErr.Kind)
}

func TestDataPage_GetRow_DeserializeError(t *testing.T) {
	t.Parallel()

	page := NewDataPage[[]byte, []byte](0, 64, BytesCodec{}, false)
	link, err := page.SaveRow([]byte{1, 2, 3})
	require.NoError(t, err)

	page.codec = failingCodec{}
	_, err = page.GetRow(link)
	require.Error(t, err)
	assert.ErrorIs(t, err, errCodecBoom)

	var dpErr *DataPageError
	require.ErrorAs(t, err, &dpErr)
	assert.Equal(t, KindDeserializeError, dpErr.Kind)
}

func TestDataPage_SaveRowByLink(t *testing.T) {
	t.Parallel()

	page := NewDataPage[[]byte, []byte](3, 64, BytesCodec{}, false)

	link, err := page.SaveRow([]byte{1, 2, 3})
	require.NoError(t, err)

	err = page.SaveRowByLink([]byte{9, 9, 9}, link)
	require.NoError(t, err)

	got, err := page.GetRow(link)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9}, got)

	// Length-changing update is rejected.
	err = page.SaveRowByLink([]byte{1, 2, 3, 4}, link)
	assert.ErrorIs(t, err, ErrInvalidLink)

	// Wrong page id is rejected.
	wrongPage := link
	wrongPage.PageID = 99
	err = page.SaveRowByLink([]byte{1, 2, 3}, wrongPage)
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestDataPage_GetRow_InvalidLink(t *testing.T) {
	t.Parallel()

	page := NewDataPage[[]byte, []byte](0, 32, BytesCodec{}, false)

	_, err := page.SaveRow([]byte{1, 2, 3})
	require.NoError(t, err)

	_, err = page.GetRow(Link{PageID: 0, Offset: 0, Length: 100})
	assert.ErrorIs(t, err, ErrInvalidLink)

	_, err = page.GetRow(Link{PageID: 1, Offset: 0, Length: 1})
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestDataPage_GetRowRef_ZeroCopy(t *testing.T) {
	t.Parallel()

	page := NewDataPage[[]byte, []byte](0, 32, BytesCodec{}, false)

	link, err := page.SaveRow([]byte{1, 2, 3})
	require.NoError(t, err)

	view, err := page.GetRowRef(link)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, view)

	mutView, err := page.GetMutRowRef(link)
	require.NoError(t, err)
	mutView[0] = 42

	got, err := page.GetRow(link)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 2, 3}, got)
}

func TestDataPage_Compression_DisablesZeroCopy(t *testing.T) {
	t.Parallel()

	page := NewDataPage[[]byte, []byte](0, 256, BytesCodec{}, true)

	// Highly compressible row: snappy will shrink it, so the zero-copy
	// path must refuse it.
	row := make([]byte, 100)
	link, err := page.SaveRow(row)
	require.NoError(t, err)
	assert.Less(t, link.Length, uint32(len(row)))

	got, err := page.GetRow(link)
	require.NoError(t, err)
	assert.Equal(t, row, got)

	_, err = page.GetRowRef(link)
	assert.ErrorIs(t, err, ErrInvalidLink)
}
