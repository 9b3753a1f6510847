package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/toolbrief/internal/models"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestManualStore(baseURL string) (*ManualStore, *MemoryObjectStore, *testClock) {
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	objects := NewMemoryObjectStore()
	objects.now = clock.now
	store := NewManualStore(objects, baseURL)
	store.now = clock.now
	return store, objects, clock
}

func testManual(slug string) *models.Manual {
	return &models.Manual{
		SchemaVersion: models.SchemaVersion,
		Slug:          slug,
		GeneratedContent: models.GeneratedContent{
			ToolName: "Notion",
			Overview: models.Overview{Description: "d", PrimaryUseCases: []string{"u"}},
		},
		GeneratedAt: time.Date(2025, 6, 1, 11, 58, 0, 0, time.UTC),
		Citations:   []string{"https://a.example"},
	}
}

func TestStoreManualWritesVersionAndLatest(t *testing.T) {
	store, objects, _ := newTestManualStore("https://toolbrief.example")
	ctx := context.Background()

	stored, err := store.StoreManual(ctx, testManual("notion"))
	require.NoError(t, err)
	assert.Equal(t, "https://toolbrief.example/manual/notion", stored.ShareURL)
	assert.NotEmpty(t, stored.Version)
	assert.Equal(t, 2, objects.Len(), "one version object plus the latest pointer")

	versionData, err := objects.Get(ctx, "manuals/notion/"+stored.Version+".json")
	require.NoError(t, err)
	latestData, err := objects.Get(ctx, "manuals/notion/latest.json")
	require.NoError(t, err)
	assert.Equal(t, versionData, latestData, "both objects hold the identical manual")
}

func TestStoreManualInvalidSlug(t *testing.T) {
	store, _, _ := newTestManualStore("")

	for _, slug := range []string{"", "a", "-bad", "Has Spaces"} {
		_, err := store.StoreManual(context.Background(), testManual(slug))
		assert.ErrorIs(t, err, ErrInvalidSlug, "slug %q", slug)
	}
}

func TestRegenerationAppendsVersion(t *testing.T) {
	store, objects, clock := newTestManualStore("")
	ctx := context.Background()

	first, err := store.StoreManual(ctx, testManual("notion"))
	require.NoError(t, err)

	clock.advance(time.Hour)
	updated := testManual("notion")
	updated.Overview.Description = "updated"
	second, err := store.StoreManual(ctx, updated)
	require.NoError(t, err)

	assert.NotEqual(t, first.Version, second.Version)
	assert.Equal(t, 3, objects.Len(), "two versions plus one latest pointer")

	latest := store.GetLatestManual(ctx, "notion")
	require.NotNil(t, latest)
	assert.Equal(t, "updated", latest.Overview.Description)
}

func TestGetLatestManual(t *testing.T) {
	store, objects, _ := newTestManualStore("")
	ctx := context.Background()

	assert.Nil(t, store.GetLatestManual(ctx, "NOT a slug"))
	assert.Nil(t, store.GetLatestManual(ctx, "missing"))

	_, err := store.StoreManual(ctx, testManual("notion"))
	require.NoError(t, err)

	manual := store.GetLatestManual(ctx, "notion")
	require.NotNil(t, manual)
	assert.Equal(t, "notion", manual.Slug)
	assert.Equal(t, "Notion", manual.ToolName)

	// A corrupt stored object degrades to a miss, never an error.
	_, err = objects.Put(ctx, "manuals/broken/latest.json", []byte("{nope"), "application/json", "")
	require.NoError(t, err)
	assert.Nil(t, store.GetLatestManual(ctx, "broken"))
}

func TestGetManualVersions(t *testing.T) {
	store, _, clock := newTestManualStore("")
	ctx := context.Background()

	versions, err := store.GetManualVersions(ctx, "notion")
	require.NoError(t, err)
	assert.Empty(t, versions)

	first, err := store.StoreManual(ctx, testManual("notion"))
	require.NoError(t, err)
	clock.advance(time.Hour)
	second, err := store.StoreManual(ctx, testManual("notion"))
	require.NoError(t, err)

	versions, err = store.GetManualVersions(ctx, "notion")
	require.NoError(t, err)
	require.Len(t, versions, 2, "latest pointer excluded")
	assert.Contains(t, versions[0].Key, second.Version, "newest upload first")
	assert.Contains(t, versions[1].Key, first.Version)

	_, err = store.GetManualVersions(ctx, "bad slug")
	assert.ErrorIs(t, err, ErrInvalidSlug)
}
