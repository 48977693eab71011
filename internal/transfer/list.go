package transfer

import (
	"path"
	"sort"

	"github.com/jlaffaye/ftp"

	"github.com/coursearc/coursearc/internal/models"
)

// List returns the entries directly under root, directories first, each
// group sorted by name.
func (c *Conn) List(root string) ([]models.FileEntry, error) {
	entries, err := c.conn.List(root)
	if err != nil {
		return nil, &TransferError{Op: "list", Path: root, Err: err}
	}

	var out []models.FileEntry
	for _, e := range entries {
		fe, ok := asFileEntry(root, e)
		if !ok {
			continue
		}
		out = append(out, fe)
	}
	sortEntries(out)
	return out, nil
}

// ListTree walks the remote tree under root breadth first with an explicit
// queue and returns every file and directory below it.
func (c *Conn) ListTree(root string) ([]models.FileEntry, error) {
	var out []models.FileEntry
	queue := []string{root}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := c.conn.List(dir)
		if err != nil {
			return nil, &TransferError{Op: "list", Path: dir, Err: err}
		}
		var level []models.FileEntry
		for _, e := range entries {
			fe, ok := asFileEntry(dir, e)
			if !ok {
				continue
			}
			level = append(level, fe)
			if fe.Type == models.FileTypeDir {
				queue = append(queue, fe.Path)
			}
		}
		sortEntries(level)
		out = append(out, level...)
	}
	return out, nil
}

func asFileEntry(dir string, e *ftp.Entry) (models.FileEntry, bool) {
	if e.Name == "." || e.Name == ".." {
		return models.FileEntry{}, false
	}
	fe := models.FileEntry{
		Path:       path.Join(dir, e.Name),
		Name:       e.Name,
		ModifiedAt: e.Time,
	}
	switch e.Type {
	case ftp.EntryTypeFolder:
		fe.Type = models.FileTypeDir
	case ftp.EntryTypeFile:
		fe.Type = models.FileTypeFile
		fe.SizeBytes = int64(e.Size)
	default:
		// Links and unknown types are skipped.
		return models.FileEntry{}, false
	}
	return fe, true
}

func sortEntries(entries []models.FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type == models.FileTypeDir
		}
		return entries[i].Name < entries[j].Name
	})
}
