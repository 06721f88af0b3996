package resume

import (
	"context"
	"os"
	"path"

	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/models"
	"archivesync/pkg/prefetch"
)

// Destination is the slice of the destination store the filter needs:
// identity for cache scoping and grouped listings for remote kinds.
// ListPrefix takes a directory path relative to the destination root and
// returns objects keyed by their root-relative paths.
type Destination interface {
	Kind() string
	Root() string
	ListPrefix(ctx context.Context, prefix string) (map[string]models.ObjectInfo, error)
}

// Filter drops requests whose destination already holds a non-empty copy,
// making reruns of overlapping date ranges incremental.
type Filter struct {
	dest   Destination
	cache  *prefetch.Cache
	force  bool
	logger *zap.Logger
}

// NewFilter creates a resume filter. force disables all skipping; cache may
// be nil to list on every run.
func NewFilter(dest Destination, cache *prefetch.Cache, force bool, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{dest: dest, cache: cache, force: force, logger: logger}
}

// Apply splits requests into those still needing transfer and skipped
// outcomes for archives already materialized. A destination that cannot be
// listed filters nothing; the transfer engine settles those requests.
func (f *Filter) Apply(ctx context.Context, requests []models.TransferRequest) ([]models.TransferRequest, []models.TransferOutcome) {
	if f.force || len(requests) == 0 {
		return requests, nil
	}

	var sizes map[int]int64
	if f.dest.Kind() == config.DestLocal {
		sizes = f.statLocal(requests)
	} else {
		sizes = f.listRemote(ctx, requests)
	}

	remaining := make([]models.TransferRequest, 0, len(requests))
	var skipped []models.TransferOutcome
	for i, req := range requests {
		size, ok := sizes[i]
		if !ok || size <= 0 {
			remaining = append(remaining, req)
			continue
		}
		skipped = append(skipped, models.TransferOutcome{
			Status:    models.OutcomeSkipped,
			SourceURI: req.SourceURI,
			DestURI:   req.DestURI,
			Bytes:     size,
		})
	}

	if len(skipped) > 0 {
		f.logger.Info("skipping archives already at destination",
			zap.Int("skipped", len(skipped)),
			zap.Int("remaining", len(remaining)))
	}
	return remaining, skipped
}

// statLocal resolves existence with one stat per destination file.
func (f *Filter) statLocal(requests []models.TransferRequest) map[int]int64 {
	sizes := make(map[int]int64)
	for i, req := range requests {
		if info, err := os.Stat(req.DestURI); err == nil && info.Mode().IsRegular() {
			sizes[i] = info.Size()
		}
	}
	return sizes
}

// listRemote resolves existence with one listing per destination directory,
// not one head request per file. Listings are cached across runs.
func (f *Filter) listRemote(ctx context.Context, requests []models.TransferRequest) map[int]int64 {
	groups := make(map[string][]int)
	for i, req := range requests {
		dir := path.Dir(req.DestPath)
		groups[dir] = append(groups[dir], i)
	}

	sizes := make(map[int]int64)
	for dir, indexes := range groups {
		objects, err := f.listDir(ctx, dir)
		if err != nil {
			f.logger.Warn("destination listing failed, transferring unfiltered",
				zap.String("prefix", dir),
				zap.Error(err))
			continue
		}
		for _, i := range indexes {
			if obj, ok := objects[requests[i].DestPath]; ok {
				sizes[i] = obj.Size
			}
		}
	}
	return sizes
}

func (f *Filter) listDir(ctx context.Context, dir string) (map[string]models.ObjectInfo, error) {
	cacheKey := f.dest.Root() + "|" + dir
	if f.cache != nil {
		if listing, ok := f.cache.Get(cacheKey); ok {
			return listing.Objects, nil
		}
	}

	objects, err := f.dest.ListPrefix(ctx, dir)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		f.cache.Set(cacheKey, objects)
	}
	return objects, nil
}
