package wttable

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// widget is the test row type: a fixed-width 12-byte payload so
// serialized length never varies, matching the pack's "fixed serialized
// length per row type" assumption (spec.md §9 Recycled-link semantics).
type widget struct {
	ID   uint32
	Name [8]byte
}

func newWidget(id uint32, name string) widget {
	var w widget
	w.ID = id
	copy(w.Name[:], name)
	return w
}

type widgetCodec struct{}

func (widgetCodec) Marshal(row widget) ([]byte, error) {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[:4], row.ID)
	copy(buf[4:], row.Name[:])
	return buf, nil
}

func (widgetCodec) Unmarshal(buf []byte) (widget, error) {
	if len(buf) != 12 {
		return widget{}, fmt.Errorf("bad widget length %d", len(buf))
	}
	var w widget
	w.ID = binary.BigEndian.Uint32(buf[:4])
	copy(w.Name[:], buf[4:])
	return w, nil
}

func (widgetCodec) View(buf []byte) []byte        { return buf }
func (widgetCodec) MutableView(buf []byte) []byte { return buf }

type uint32KeyCodec struct{}

func (uint32KeyCodec) KeySize() int { return 4 }

func (uint32KeyCodec) MarshalKey(key uint32) ([]byte, error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, key)
	return buf, nil
}

func (uint32KeyCodec) UnmarshalKey(buf []byte) (uint32, error) {
	if len(buf) != 4 {
		return 0, fmt.Errorf("bad key length %d", len(buf))
	}
	return binary.BigEndian.Uint32(buf), nil
}

func testOptions(dir string) Options[widget, []byte, uint32] {
	return Options[widget, []byte, uint32]{
		Manager:         ManagerConfig{DatabaseFilesDir: dir},
		Name:            "widgets",
		Inner:           4096,
		Codec:           widgetCodec{},
		PrimaryKeyFunc:  func(w widget) uint32 { return w.ID },
		PrimaryKeyCodec: uint32KeyCodec{},
		SecondaryIndexes: []SecondaryIndexSpec[widget]{
			{
				Name:    "by_name",
				Unique:  false,
				KeySize: 8,
				KeyFunc: func(w widget) []byte { return w.Name[:] },
			},
		},
	}
}

func TestTable_InsertSelect(t *testing.T) {
	t.Parallel()

	table := New(testOptions(t.TempDir()))

	link, err := table.Insert(newWidget(1, "alice"))
	require.NoError(t, err)

	got, err := table.Select(link)
	require.NoError(t, err)
	assert.Equal(t, newWidget(1, "alice"), got)

	byPK, err := table.SelectByPrimaryKey(1)
	require.NoError(t, err)
	assert.Equal(t, got, byPK)

	rows, err := table.SelectBySecondaryKey("by_name", newWidget(0, "alice").Name[:])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, got, rows[0])
}

func TestTable_DeleteAndReuse(t *testing.T) {
	t.Parallel()

	table := New(testOptions(t.TempDir()))

	link, err := table.Insert(newWidget(1, "alice"))
	require.NoError(t, err)

	require.NoError(t, table.Delete(1))

	_, err = table.SelectByPrimaryKey(1)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	rows, err := table.SelectBySecondaryKey("by_name", newWidget(0, "alice").Name[:])
	require.NoError(t, err)
	assert.Empty(t, rows)

	link2, err := table.Insert(newWidget(2, "bob"))
	require.NoError(t, err)
	assert.Equal(t, link, link2)
}

func TestTable_PersistLoadFromFile_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	opts := testOptions(dir)

	table := New(opts)
	table.SetPKGenState(7)

	_, err := table.Insert(newWidget(1, "alice"))
	require.NoError(t, err)
	_, err = table.Insert(newWidget(2, "bob"))
	require.NoError(t, err)

	emptyBefore := table.GetEmptyLinks()

	require.NoError(t, table.Persist())

	loaded, err := LoadFromFile(opts)
	require.NoError(t, err)

	row1, err := loaded.SelectByPrimaryKey(1)
	require.NoError(t, err)
	assert.Equal(t, newWidget(1, "alice"), row1)

	row2, err := loaded.SelectByPrimaryKey(2)
	require.NoError(t, err)
	assert.Equal(t, newWidget(2, "bob"), row2)

	rows, err := loaded.SelectBySecondaryKey("by_name", newWidget(0, "bob").Name[:])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, row2, rows[0])

	assert.Equal(t, uint64(7), loaded.PKGenState())
	assert.ElementsMatch(t, emptyBefore, loaded.GetEmptyLinks())
}

func TestTable_DefaultLoggerFromLogLevel(t *testing.T) {
	t.Parallel()

	opts := testOptions(t.TempDir())
	opts.LogLevel = "debug"

	table := New(opts)
	require.NotNil(t, table.logger)

	_, err := table.Insert(newWidget(1, "alice"))
	require.NoError(t, err)
}

func TestTable_DefaultLoggerFromLogLevel_Invalid(t *testing.T) {
	t.Parallel()

	opts := testOptions(t.TempDir())
	opts.LogLevel = "not-a-level"

	// An unparseable level falls back to zap.NewNop() rather than
	// failing New, which has no error return.
	table := New(opts)
	require.NotNil(t, table.logger)
}

func TestTable_LoadFromFile_MissingFileYieldsEmptyTable(t *testing.T) {
	t.Parallel()

	opts := testOptions(t.TempDir())

	loaded, err := LoadFromFile(opts)
	require.NoError(t, err)

	_, err = loaded.SelectByPrimaryKey(1)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	link, err := loaded.Insert(newWidget(1, "carol"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), link.PageID)
}
