// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"time"

	"github.com/gorse-io/carskit/base"
	"github.com/jellydator/ttlcache/v3"
)

// CacheOptions bounds derived vector caches. Zero capacity or zero TTL means unbounded.
type CacheOptions struct {
	Capacity uint64
	TTL      time.Duration
}

func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		Capacity: 4096,
		TTL:      10 * time.Minute,
	}
}

// VectorCache is a bounded least-recently-used cache of sparse vectors. Missing or
// evicted vectors are rebuilt on demand, so eviction never loses data.
type VectorCache struct {
	cache *ttlcache.Cache[int, *base.SparseVector]
}

// NewVectorCache creates a cache whose misses are filled by build. Built vectors are
// frozen so they can be shared between goroutines.
func NewVectorCache(opts CacheOptions, build func(key int) *base.SparseVector) *VectorCache {
	loader := ttlcache.LoaderFunc[int, *base.SparseVector](
		func(c *ttlcache.Cache[int, *base.SparseVector], key int) *ttlcache.Item[int, *base.SparseVector] {
			return c.Set(key, build(key).Freeze(), ttlcache.DefaultTTL)
		})
	return &VectorCache{
		cache: ttlcache.New[int, *base.SparseVector](
			ttlcache.WithTTL[int, *base.SparseVector](opts.TTL),
			ttlcache.WithCapacity[int, *base.SparseVector](opts.Capacity),
			ttlcache.WithLoader[int, *base.SparseVector](ttlcache.NewSuppressedLoader[int, *base.SparseVector](loader, nil)),
		),
	}
}

// Get returns the vector of key.
func (c *VectorCache) Get(key int) *base.SparseVector {
	return c.cache.Get(key).Value()
}

// Len returns the number of cached vectors.
func (c *VectorCache) Len() int {
	return c.cache.Len()
}

// Metrics returns hit, miss and eviction counters.
func (c *VectorCache) Metrics() ttlcache.Metrics {
	return c.cache.Metrics()
}
