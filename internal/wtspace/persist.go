package wtspace

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"worktable/internal/wtpage"
)

// Persist writes space to {space.Path}/{space.Info.Name}.wt: the
// SpaceInfo page, then every primary-index page, then every secondary-
// index page, then every data page, each as header bytes followed by its
// payload: data_length bytes for SpaceInfo and index pages, the full
// page buffer for data pages (spec.md §4.5, §6).
//
// On any I/O error persist aborts immediately and returns a wrapped
// error; a partially written file is left on disk — there is no crash
// recovery guarantee (spec.md §1 Non-goals, §4.5).
func Persist(logger *zap.Logger, space Space) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(space.Path, 0o755); err != nil {
		return fmt.Errorf("wtspace: mkdir %s: %w", space.Path, err)
	}

	filePath := filepath.Join(space.Path, space.Info.Name+".wt")
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("wtspace: create %s: %w", filePath, err)
	}
	defer f.Close()

	infoBytes, err := space.Info.Marshal()
	if err != nil {
		return fmt.Errorf("wtspace: marshal space info: %w", err)
	}
	infoHeader := wtpage.GeneralHeader{
		DataVersion: wtpage.DataVersion,
		SpaceID:     headerSpaceID(space.Info.ID),
		PageID:      0,
		NextID:      space.PrimaryIndex[0].Header.PageID,
		PageType:    wtpage.PageTypeSpaceInfo,
		DataLength:  uint32(len(infoBytes)),
	}
	if err := writePage(f, infoHeader, infoBytes); err != nil {
		return err
	}

	for _, page := range space.PrimaryIndex {
		if err := writePage(f, page.Header, page.Page.Bytes[:page.Page.Length]); err != nil {
			return err
		}
	}
	for _, page := range space.SecondaryIndexes {
		if err := writePage(f, page.Header, page.Page.Bytes[:page.Page.Length]); err != nil {
			return err
		}
	}
	for _, page := range space.Data {
		// Data pages write the full INNER-byte buffer, not just the used
		// prefix (spec.md §6): DataLength marks the used prefix but every
		// data page occupies a fixed on-disk size, unlike index/SpaceInfo
		// pages whose payload length equals DataLength.
		if err := writePage(f, page.Header, page.Page.Bytes); err != nil {
			return err
		}
	}

	logger.Sugar().With(
		"path", filePath,
		"page_count", space.Info.PageCount,
	).Debug("persisted space")

	return nil
}

func writePage(f *os.File, header wtpage.GeneralHeader, payload []byte) error {
	buf := make([]byte, wtpage.HeaderSize)
	header.Marshal(buf)
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("wtspace: write header for page %d: %w", header.PageID, err)
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("wtspace: write payload for page %d: %w", header.PageID, err)
	}
	return nil
}
