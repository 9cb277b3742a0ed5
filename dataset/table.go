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
	"sort"

	"github.com/gorse-io/carskit/base"
	"github.com/jellydator/ttlcache/v3"
	"github.com/samber/lo"
)

// Entry is one rating keyed by (user-item pair, situation).
type Entry struct {
	UserItem  int
	Situation int
	Rating    float64
}

// RatingTable is an immutable sparse table of ratings keyed by (user-item pair, situation).
// Entries are ordered by pair then situation.
type RatingTable struct {
	registry *Registry
	entries  []Entry
	rowPos   map[int][]int
	colPos   map[int][]int
	userPos  map[int][]int
	itemPos  map[int][]int
	sum      float64
	options  CacheOptions
	rows     *VectorCache
	cols     *VectorCache
}

// NewRatingTable builds a table from entries. Entries must not contain duplicated keys.
func NewRatingTable(registry *Registry, entries []Entry, options CacheOptions) *RatingTable {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UserItem != sorted[j].UserItem {
			return sorted[i].UserItem < sorted[j].UserItem
		}
		return sorted[i].Situation < sorted[j].Situation
	})
	t := &RatingTable{
		registry: registry,
		entries:  sorted,
		rowPos:   make(map[int][]int),
		colPos:   make(map[int][]int),
		userPos:  make(map[int][]int),
		itemPos:  make(map[int][]int),
		options:  options,
	}
	for pos, e := range sorted {
		t.rowPos[e.UserItem] = append(t.rowPos[e.UserItem], pos)
		t.colPos[e.Situation] = append(t.colPos[e.Situation], pos)
		u, i := registry.UserOf(e.UserItem), registry.ItemOf(e.UserItem)
		t.userPos[u] = append(t.userPos[u], pos)
		t.itemPos[i] = append(t.itemPos[i], pos)
		t.sum += e.Rating
	}
	t.rows = NewVectorCache(options, func(ui int) *base.SparseVector {
		vec := base.NewSparseVector()
		for _, pos := range t.rowPos[ui] {
			vec.Add(t.entries[pos].Situation, t.entries[pos].Rating)
		}
		return vec
	})
	t.cols = NewVectorCache(options, func(c int) *base.SparseVector {
		vec := base.NewSparseVector()
		for _, pos := range t.colPos[c] {
			vec.Add(t.entries[pos].UserItem, t.entries[pos].Rating)
		}
		return vec
	})
	return t
}

// Registry returns the shared identifier registry.
func (t *RatingTable) Registry() *Registry {
	return t.registry
}

// Len returns the number of entries.
func (t *RatingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns all entries in row-major order. The slice must not be modified.
func (t *RatingTable) Entries() []Entry {
	return t.entries
}

// Mean returns the mean rating, or 0 for an empty table.
func (t *RatingTable) Mean() float64 {
	if len(t.entries) == 0 {
		return 0
	}
	return t.sum / float64(len(t.entries))
}

// Get returns the rating of (ui, c).
func (t *RatingTable) Get(ui, c int) (float64, bool) {
	positions := t.rowPos[ui]
	k := sort.Search(len(positions), func(k int) bool {
		return t.entries[positions[k]].Situation >= c
	})
	if k < len(positions) && t.entries[positions[k]].Situation == c {
		return t.entries[positions[k]].Rating, true
	}
	return 0, false
}

// Row returns ratings of a user-item pair indexed by situation.
func (t *RatingTable) Row(ui int) *base.SparseVector {
	return t.rows.Get(ui)
}

// Column returns ratings in a situation indexed by user-item pair.
func (t *RatingTable) Column(c int) *base.SparseVector {
	return t.cols.Get(c)
}

// CacheOptions returns the bounds of the table caches. Derived caches reuse them.
func (t *RatingTable) CacheOptions() CacheOptions {
	return t.options
}

// CacheMetrics returns counters of the row and column vector caches.
func (t *RatingTable) CacheMetrics() (rows, cols ttlcache.Metrics) {
	return t.rows.Metrics(), t.cols.Metrics()
}

// Users returns users with at least one entry in ascending order.
func (t *RatingTable) Users() []int {
	users := lo.Keys(t.userPos)
	sort.Ints(users)
	return users
}

// Items returns items with at least one entry in ascending order.
func (t *RatingTable) Items() []int {
	items := lo.Keys(t.itemPos)
	sort.Ints(items)
	return items
}

// Situations returns situations with at least one entry in ascending order.
func (t *RatingTable) Situations() []int {
	situations := lo.Keys(t.colPos)
	sort.Ints(situations)
	return situations
}

// UserEntries returns entries of a user.
func (t *RatingTable) UserEntries(u int) []Entry {
	return lo.Map(t.userPos[u], func(pos int, _ int) Entry { return t.entries[pos] })
}

// ItemEntries returns entries of an item.
func (t *RatingTable) ItemEntries(i int) []Entry {
	return lo.Map(t.itemPos[i], func(pos int, _ int) Entry { return t.entries[pos] })
}

// ItemCount returns the number of entries of an item.
func (t *RatingTable) ItemCount(i int) int {
	return len(t.itemPos[i])
}

// UserSituationItems groups items by user and situation.
func (t *RatingTable) UserSituationItems() map[int]map[int][]int {
	groups := make(map[int]map[int][]int)
	for _, e := range t.entries {
		u, i := t.registry.UserOf(e.UserItem), t.registry.ItemOf(e.UserItem)
		if _, exist := groups[u]; !exist {
			groups[u] = make(map[int][]int)
		}
		groups[u][e.Situation] = append(groups[u][e.Situation], i)
	}
	return groups
}

// Reshape returns a compact table holding the entries accepted by keep.
func (t *RatingTable) Reshape(keep func(pos int, e Entry) bool) *RatingTable {
	kept := make([]Entry, 0, len(t.entries))
	for pos, e := range t.entries {
		if keep(pos, e) {
			kept = append(kept, e)
		}
	}
	return NewRatingTable(t.registry, kept, t.options)
}

// Collapse folds the situations of each user-item pair into their mean rating.
func (t *RatingTable) Collapse() *UserItemTable {
	table := &UserItemTable{
		users: base.NewDenseSparseMatrix(t.registry.CountUsers()),
		items: base.NewDenseSparseMatrix(t.registry.CountItems()),
	}
	for pos := 0; pos < len(t.entries); {
		ui := t.entries[pos].UserItem
		sum, n := 0.0, 0
		for ; pos < len(t.entries) && t.entries[pos].UserItem == ui; pos++ {
			sum += t.entries[pos].Rating
			n++
		}
		u, i := t.registry.UserOf(ui), t.registry.ItemOf(ui)
		rating := sum / float64(n)
		table.users[u].Add(i, rating)
		table.items[i].Add(u, rating)
		table.entries = append(table.entries, UserItemRating{User: u, Item: i, Rating: rating})
		table.sum += rating
	}
	for _, vec := range table.users {
		vec.Freeze()
	}
	for _, vec := range table.items {
		vec.Freeze()
	}
	sort.Slice(table.entries, func(a, b int) bool {
		if table.entries[a].User != table.entries[b].User {
			return table.entries[a].User < table.entries[b].User
		}
		return table.entries[a].Item < table.entries[b].Item
	})
	return table
}

// UserItemRating is one rating of the collapsed two dimensional view.
type UserItemRating struct {
	User   int
	Item   int
	Rating float64
}

// UserItemTable is the traditional user by item rating matrix.
type UserItemTable struct {
	users   []*base.SparseVector
	items   []*base.SparseVector
	entries []UserItemRating
	sum     float64
}

// Len returns the number of ratings.
func (t *UserItemTable) Len() int {
	return len(t.entries)
}

// Entries returns ratings ordered by user then item.
func (t *UserItemTable) Entries() []UserItemRating {
	return t.entries
}

// Mean returns the mean rating, or 0 for an empty table.
func (t *UserItemTable) Mean() float64 {
	if len(t.entries) == 0 {
		return 0
	}
	return t.sum / float64(len(t.entries))
}

// UserVector returns ratings of a user indexed by item.
func (t *UserItemTable) UserVector(u int) *base.SparseVector {
	if u < 0 || u >= len(t.users) {
		return base.NewSparseVector()
	}
	return t.users[u]
}

// ItemVector returns ratings of an item indexed by user.
func (t *UserItemTable) ItemVector(i int) *base.SparseVector {
	if i < 0 || i >= len(t.items) {
		return base.NewSparseVector()
	}
	return t.items[i]
}

// Get returns the rating of (u, i).
func (t *UserItemTable) Get(u, i int) (float64, bool) {
	return t.UserVector(u).Get(i)
}

func (t *UserItemTable) CountUsers() int {
	return len(t.users)
}

func (t *UserItemTable) CountItems() int {
	return len(t.items)
}
