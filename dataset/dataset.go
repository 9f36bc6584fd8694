package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/colorfulnotion/randomx/log"
	"github.com/colorfulnotion/randomx/rxerrors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// shardItems bounds the work between two cancellation checks.
const shardItems = 1 << 16

// LightDataset computes every line on demand from the cache.
type LightDataset struct {
	cache *Cache
}

func NewLightDataset(cache *Cache) *LightDataset {
	return &LightDataset{cache: cache}
}

func (d *LightDataset) ReadLine(addr uint64) [8]uint64 {
	return d.cache.InitItem(addr / ItemSize)
}

// FullDataset holds all ItemCount items in memory.
type FullDataset struct {
	mem   *Memory
	words []uint64
}

// NewFullDataset expands cache into a full dataset using workers goroutines.
// ctx is checked between shards.
func NewFullDataset(ctx context.Context, cache *Cache, workers int) (*FullDataset, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: %d", rxerrors.ErrCWorkerCount, workers)
	}
	ctx, span := tracer.Start(ctx, "dataset.NewFullDataset")
	defer span.End()
	span.SetAttributes(attribute.Int("workers", workers))

	mem, err := Allocate(ItemCount * ItemSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rxerrors.ErrRDatasetAlloc, err)
	}
	d := &FullDataset{mem: mem, words: mem.Words()}

	start := time.Now()
	if err := buildItems(ctx, cache, d.words, 0, ItemCount, workers); err != nil {
		d.Close()
		return nil, err
	}
	log.Info(log.DatasetMonitoring, "dataset built", "items", ItemCount, "workers", workers, "elapsed", time.Since(start))
	return d, nil
}

// buildItems fills words with items [first, first+count). Each worker takes a
// contiguous range and stops at the next shard boundary once ctx is done.
func buildItems(ctx context.Context, cache *Cache, words []uint64, first, count uint64, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	per := (count + uint64(workers) - 1) / uint64(workers)
	for w := 0; w < workers; w++ {
		lo := first + uint64(w)*per
		hi := min(lo+per, first+count)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for shard := lo; shard < hi; shard += shardItems {
				if err := ctx.Err(); err != nil {
					return err
				}
				end := min(shard+shardItems, hi)
				for item := shard; item < end; item++ {
					rl := cache.InitItem(item)
					copy(words[(item-first)*8:], rl[:])
				}
			}
			log.Debug(log.DatasetMonitoring, "dataset range done", "first", lo, "last", hi-1)
			return nil
		})
	}
	return g.Wait()
}

func (d *FullDataset) ReadLine(addr uint64) (out [8]uint64) {
	off := addr / 8
	copy(out[:], d.words[off:off+8])
	return out
}

// Item returns item i.
func (d *FullDataset) Item(i uint64) [8]uint64 {
	return d.ReadLine(i * ItemSize)
}

func (d *FullDataset) Close() error {
	if d.mem == nil {
		return rxerrors.ErrRClosed
	}
	err := d.mem.Close()
	d.mem = nil
	d.words = nil
	return err
}
