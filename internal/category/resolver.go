// Package category places restored courses in the hierarchical category
// tree, creating missing levels on demand.
package category

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/coursearc/coursearc/internal/models"
)

// Store is the slice of the category store the resolver needs.
type Store interface {
	ChildCategory(ctx context.Context, parentID int64, name string) (*models.Category, error)
	CreateCategory(ctx context.Context, parentID int64, name string) (*models.Category, error)
}

// Resolver walks category paths against a Store.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// SplitPath breaks a slash-separated category path into clean segments.
// Backslashes count as separators, NUL bytes are stripped, empty and
// dot segments are dropped, and each segment is trimmed and capped at 255
// characters.
func SplitPath(s string) []string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\\", "/")

	var segments []string
	for _, seg := range strings.Split(s, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		if utf8.RuneCountInString(seg) > 255 {
			runes := []rune(seg)
			seg = string(runes[:255])
		}
		segments = append(segments, seg)
	}
	return segments
}

// ResolveOrCreate walks segments downward from rootID, matching each level
// by exact name and creating any level that does not exist. Returns the id
// of the final category. A log line is emitted through logf for every
// category created. Resolving the same path twice is idempotent.
func (r *Resolver) ResolveOrCreate(ctx context.Context, segments []string, rootID int64, logf func(format string, args ...any)) (int64, error) {
	current := rootID
	for _, name := range segments {
		found, err := r.store.ChildCategory(ctx, current, name)
		if err != nil {
			return 0, err
		}
		if found != nil {
			current = found.ID
			continue
		}
		created, err := r.store.CreateCategory(ctx, current, name)
		if err != nil {
			return 0, fmt.Errorf("create category %q: %w", name, err)
		}
		if logf != nil {
			logf("Category created: %s (id %d)", name, created.ID)
		}
		current = created.ID
	}
	return current, nil
}

// UnresolvedID marks a path segment with no existing category.
const UnresolvedID int64 = -1

// PathSegment is one level of a described path.
type PathSegment struct {
	Name string
	ID   int64
}

// PathDescription is the result of a read-only path walk.
type PathDescription struct {
	Segments []PathSegment
	// FinalID is the id of the last segment, or UnresolvedID when any part
	// of the path does not exist yet.
	FinalID int64
}

// String renders the path as a breadcrumb, flagging unresolved levels.
func (d PathDescription) String() string {
	var b strings.Builder
	for i, seg := range d.Segments {
		if i > 0 {
			b.WriteString(" / ")
		}
		b.WriteString(seg.Name)
		if seg.ID == UnresolvedID {
			b.WriteString(" (new)")
		}
	}
	return b.String()
}

// Describe walks segments from rootID without creating anything. After the
// first missing level every remaining segment is marked unresolved and no
// further lookups are made; children of a nonexistent category cannot exist.
func (r *Resolver) Describe(ctx context.Context, segments []string, rootID int64) (PathDescription, error) {
	desc := PathDescription{FinalID: rootID}
	current := rootID
	missing := false

	for _, name := range segments {
		if missing {
			desc.Segments = append(desc.Segments, PathSegment{Name: name, ID: UnresolvedID})
			continue
		}
		found, err := r.store.ChildCategory(ctx, current, name)
		if err != nil {
			return PathDescription{}, err
		}
		if found == nil {
			missing = true
			desc.Segments = append(desc.Segments, PathSegment{Name: name, ID: UnresolvedID})
			continue
		}
		current = found.ID
		desc.Segments = append(desc.Segments, PathSegment{Name: name, ID: found.ID})
	}

	if missing {
		desc.FinalID = UnresolvedID
	} else {
		desc.FinalID = current
	}
	return desc, nil
}
