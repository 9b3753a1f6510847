package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/toolbrief/internal/models"
	"github.com/raphaelgruber/toolbrief/internal/sanitize"
)

// latestCacheControl lets CDNs cache the latest pointer briefly; manual
// reads tolerate up to a minute of staleness.
const latestCacheControl = "public, max-age=60"

// StoredManual describes where a manual landed.
type StoredManual struct {
	ManualURL string `json:"manualUrl"`
	ShareURL  string `json:"shareUrl"`
	Version   string `json:"version"`
}

// ManualStore writes manuals as an append-only version history per slug
// plus a fixed-key latest pointer for O(1) current lookups.
type ManualStore struct {
	objects       ObjectStore
	publicBaseURL string

	now func() time.Time
}

// NewManualStore creates a manual store over the given object store.
// publicBaseURL prefixes share URLs and may be empty for relative ones.
func NewManualStore(objects ObjectStore, publicBaseURL string) *ManualStore {
	return &ManualStore{
		objects:       objects,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// StoreManual persists the manual twice: once under a timestamped
// version key and once overwriting the latest pointer. Both objects hold
// the identical serialized manual.
func (s *ManualStore) StoreManual(ctx context.Context, manual *models.Manual) (*StoredManual, error) {
	if !sanitize.ValidSlug(manual.Slug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, manual.Slug)
	}

	data, err := json.Marshal(manual)
	if err != nil {
		return nil, fmt.Errorf("serialize manual: %w", err)
	}

	version := s.now().UTC().Format("20060102T150405Z")
	versionKey := versionKey(manual.Slug, version)

	if _, err := s.objects.Put(ctx, versionKey, data, "application/json", ""); err != nil {
		return nil, fmt.Errorf("store manual version: %w", err)
	}
	url, err := s.objects.Put(ctx, latestKey(manual.Slug), data, "application/json", latestCacheControl)
	if err != nil {
		return nil, fmt.Errorf("store latest pointer: %w", err)
	}

	slog.Info("manual stored", "slug", manual.Slug, "version", version, "bytes", len(data))
	return &StoredManual{
		ManualURL: url,
		ShareURL:  s.ShareURL(manual.Slug),
		Version:   version,
	}, nil
}

// GetLatestManual returns the current manual for slug, or nil when the
// slug is invalid, the manual does not exist, or the stored object
// cannot be read or parsed. It never fails the caller.
func (s *ManualStore) GetLatestManual(ctx context.Context, slug string) *models.Manual {
	if !sanitize.ValidSlug(slug) {
		return nil
	}

	data, err := s.objects.Get(ctx, latestKey(slug))
	if err != nil {
		if err != ErrObjectNotFound {
			slog.Warn("failed to fetch latest manual", "slug", slug, "error", err)
		}
		return nil
	}

	var manual models.Manual
	if err := json.Unmarshal(data, &manual); err != nil {
		slog.Warn("stored manual is unreadable", "slug", slug, "error", err)
		return nil
	}
	return &manual
}

// GetManualVersions lists the stored versions for slug, newest upload
// first, excluding the latest pointer.
func (s *ManualStore) GetManualVersions(ctx context.Context, slug string) ([]ObjectInfo, error) {
	if !sanitize.ValidSlug(slug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}

	objects, err := s.objects.List(ctx, "manuals/"+slug+"/")
	if err != nil {
		return nil, fmt.Errorf("list manual versions: %w", err)
	}

	versions := make([]ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == latestKey(slug) {
			continue
		}
		versions = append(versions, obj)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].UploadedAt.After(versions[j].UploadedAt)
	})
	return versions, nil
}

// ShareURL is the public page address for a slug.
func (s *ManualStore) ShareURL(slug string) string {
	return s.publicBaseURL + "/manual/" + slug
}

func latestKey(slug string) string {
	return "manuals/" + slug + "/latest.json"
}

func versionKey(slug, version string) string {
	return "manuals/" + slug + "/" + version + ".json"
}
