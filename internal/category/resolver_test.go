package category

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursearc/coursearc/internal/models"
)

// fakeStore is an in-memory category tree keyed by (parent, name).
type fakeStore struct {
	nextID  int64
	byKey   map[string]*models.Category
	lookups int
	creates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 100, byKey: map[string]*models.Category{}}
}

func key(parentID int64, name string) string {
	return fmt.Sprintf("%d/%s", parentID, name)
}

func (f *fakeStore) ChildCategory(_ context.Context, parentID int64, name string) (*models.Category, error) {
	f.lookups++
	return f.byKey[key(parentID, name)], nil
}

func (f *fakeStore) CreateCategory(_ context.Context, parentID int64, name string) (*models.Category, error) {
	f.creates++
	f.nextID++
	c := &models.Category{ID: f.nextID, Name: name, ParentID: parentID, Visible: true}
	f.byKey[key(parentID, name)] = c
	return c, nil
}

func (f *fakeStore) seed(parentID int64, name string) *models.Category {
	f.nextID++
	c := &models.Category{ID: f.nextID, Name: name, ParentID: parentID, Visible: true}
	f.byKey[key(parentID, name)] = c
	return c
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "Science/Physics", []string{"Science", "Physics"}},
		{"backslashes", "Science\\Physics", []string{"Science", "Physics"}},
		{"empty segments dropped", "//Science//Physics/", []string{"Science", "Physics"}},
		{"dot segments dropped", "./Science/../Physics", []string{"Science", "Physics"}},
		{"trimmed", "  Science / Physics  ", []string{"Science", "Physics"}},
		{"nul stripped", "Sci\x00ence", []string{"Science"}},
		{"empty", "", nil},
		{"only separators", "///", nil},
		{"long segment capped", strings.Repeat("a", 300), []string{strings.Repeat("a", 255)}},
		{"cap keeps runes whole", strings.Repeat("é", 300), []string{strings.Repeat("é", 255)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPath(tt.in))
		})
	}
}

func TestResolveOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("reuses existing levels and creates the rest", func(t *testing.T) {
		store := newFakeStore()
		sci := store.seed(1, "Science")
		r := NewResolver(store)

		var logs []string
		logf := func(format string, args ...any) {
			logs = append(logs, fmt.Sprintf(format, args...))
		}

		id, err := r.ResolveOrCreate(ctx, []string{"Science", "Physics"}, 1, logf)
		require.NoError(t, err)
		assert.NotEqual(t, sci.ID, id)
		assert.Equal(t, 1, store.creates)
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0], "Category created: Physics")
	})

	t.Run("idempotent", func(t *testing.T) {
		store := newFakeStore()
		r := NewResolver(store)

		first, err := r.ResolveOrCreate(ctx, []string{"A", "B", "C"}, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, store.creates)

		second, err := r.ResolveOrCreate(ctx, []string{"A", "B", "C"}, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 3, store.creates, "second walk must not create anything")
	})

	t.Run("empty path resolves to root", func(t *testing.T) {
		store := newFakeStore()
		r := NewResolver(store)

		id, err := r.ResolveOrCreate(ctx, nil, 7, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		assert.Equal(t, 0, store.creates)
	})
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()

	t.Run("fully resolved", func(t *testing.T) {
		store := newFakeStore()
		sci := store.seed(1, "Science")
		phy := store.seed(sci.ID, "Physics")
		r := NewResolver(store)

		desc, err := r.Describe(ctx, []string{"Science", "Physics"}, 1)
		require.NoError(t, err)
		assert.Equal(t, phy.ID, desc.FinalID)
		assert.Equal(t, "Science / Physics", desc.String())
	})

	t.Run("stops looking up after first miss", func(t *testing.T) {
		store := newFakeStore()
		store.seed(1, "Science")
		r := NewResolver(store)

		desc, err := r.Describe(ctx, []string{"Science", "Chemistry", "Organic"}, 1)
		require.NoError(t, err)
		assert.Equal(t, UnresolvedID, desc.FinalID)
		assert.Equal(t, "Science / Chemistry (new) / Organic (new)", desc.String())
		// One hit for Science, one miss for Chemistry, none for Organic.
		assert.Equal(t, 2, store.lookups)
		assert.Equal(t, 0, store.creates)
	})
}
