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
	"bufio"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gorse-io/carskit/base"
	"github.com/gorse-io/carskit/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DuplicatePolicy decides what happens to repeated ratings of one (user, item, situation).
type DuplicatePolicy string

const (
	DuplicateReject    DuplicatePolicy = "reject"
	DuplicateOverwrite DuplicatePolicy = "overwrite"
	DuplicateKeepFirst DuplicatePolicy = "keep-first"
)

// ParseDuplicatePolicy resolves a policy by name. An empty name means overwrite.
func ParseDuplicatePolicy(name string) (DuplicatePolicy, error) {
	switch policy := DuplicatePolicy(strings.ToLower(name)); policy {
	case "":
		return DuplicateOverwrite, nil
	case DuplicateReject, DuplicateOverwrite, DuplicateKeepFirst:
		return policy, nil
	default:
		return "", errors.NotValidf("duplicate policy %q", name)
	}
}

// fixedColumns are user, item and rating.
const fixedColumns = 3

type LoadOptions struct {
	Duplicate DuplicatePolicy
	Cache     CacheOptions
}

func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Duplicate: DuplicateOverwrite,
		Cache:     DefaultCacheOptions(),
	}
}

// Loader parses rating files in the binary context format into one shared id space.
// Files loaded by the same loader must declare identical headers. A loader is not safe
// for concurrent use and is consumed by Build.
type Loader struct {
	options  LoadOptions
	registry *Registry
	index    *SituationIndex
	built    bool
}

func NewLoader(options LoadOptions) *Loader {
	if options.Duplicate == "" {
		options.Duplicate = DuplicateOverwrite
	}
	registry := NewRegistry()
	return &Loader{
		options:  options,
		registry: registry,
		index:    NewSituationIndex(registry),
	}
}

// LoadFile loads ratings from a file.
func (l *Loader) LoadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("rating file %s", path)
		}
		return nil, errors.Trace(err)
	}
	defer file.Close()
	entries, err := l.Load(file)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}
	return entries, nil
}

// Load parses ratings from a reader. The first line is the header
// "user,item,rating,dim:cond,...", followed by one rating per line with a 0/1 indicator
// for each context condition.
func (l *Loader) Load(r io.Reader) ([]Entry, error) {
	if l.built {
		return nil, errors.Errorf("loader has been built")
	}
	var (
		entries    []Entry
		positions  = make(map[[2]int]int)
		duplicates int
		columns    int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	err := base.ReadLines(sc, ',', func(line int, fields []string) error {
		if columns == 0 {
			if err := l.parseHeader(fields); err != nil {
				return errors.Annotatef(err, "line %d", line)
			}
			columns = len(fields)
			return nil
		}
		if len(fields) != columns {
			return errors.NotValidf("line %d: expect %d columns but got %d", line, columns, len(fields))
		}
		entry, err := l.parseRow(fields)
		if err != nil {
			return errors.Annotatef(err, "line %d", line)
		}
		key := [2]int{entry.UserItem, entry.Situation}
		pos, exist := positions[key]
		if !exist {
			positions[key] = len(entries)
			entries = append(entries, entry)
			return nil
		}
		duplicates++
		switch l.options.Duplicate {
		case DuplicateReject:
			return errors.NotValidf("line %d: duplicated rating of user %s, item %s in %s", line,
				strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1]), l.index.SituationName(entry.Situation))
		case DuplicateKeepFirst:
		default:
			entries[pos].Rating = entry.Rating
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if columns == 0 {
		return nil, errors.NotValidf("empty rating file")
	}
	if duplicates > 0 {
		log.Logger().Warn("duplicated ratings found",
			zap.Int("duplicates", duplicates),
			zap.String("policy", string(l.options.Duplicate)))
	}
	return entries, nil
}

func (l *Loader) parseHeader(fields []string) error {
	if len(fields) <= fixedColumns {
		return errors.NotValidf("header with %d columns", len(fields))
	}
	columns := lo.Map(fields[fixedColumns:], func(s string, _ int) string { return strings.TrimSpace(s) })
	if l.index.CountConditions() > 0 {
		if !slices.Equal(columns, l.index.Header()) {
			return errors.NotValidf("header mismatched with previous files")
		}
		return nil
	}
	return errors.Trace(l.index.ParseHeader(columns))
}

func (l *Loader) parseRow(fields []string) (Entry, error) {
	userName, itemName := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
	if err := base.ValidateId(userName); err != nil {
		return Entry{}, errors.Annotate(err, "user")
	}
	if err := base.ValidateId(itemName); err != nil {
		return Entry{}, errors.Annotate(err, "item")
	}
	rating, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return Entry{}, errors.NotValidf("rating %q", fields[2])
	}
	c, err := l.index.Situation(fields[fixedColumns:])
	if err != nil {
		return Entry{}, errors.Trace(err)
	}
	u := l.registry.Users.Id(userName)
	i := l.registry.Items.Id(itemName)
	return Entry{
		UserItem:  l.registry.UserItem(u, i),
		Situation: c,
		Rating:    rating,
	}, nil
}

// Build freezes the id space and creates the dataset. The rating scale is taken from
// ratings. Test may be nil when folds are split from ratings.
func (l *Loader) Build(ratings, test []Entry) (*Dataset, error) {
	if l.index.CountConditions() == 0 {
		return nil, errors.NotValidf("dataset without header")
	}
	if len(ratings) == 0 {
		return nil, errors.NotValidf("dataset without ratings")
	}
	l.built = true
	l.registry.freeze()
	d := &Dataset{
		Registry: l.registry,
		Index:    l.index,
		Ratings:  NewRatingTable(l.registry, ratings, l.options.Cache),
		Scale:    ratingScale(ratings),
	}
	if test != nil {
		d.Test = NewRatingTable(l.registry, test, l.options.Cache)
	}
	log.Logger().Info("load dataset",
		zap.Int("n_users", l.registry.CountUsers()),
		zap.Int("n_items", l.registry.CountItems()),
		zap.Int("n_dimensions", l.index.CountDimensions()),
		zap.Int("n_conditions", l.index.CountConditions()),
		zap.Int("n_situations", l.index.CountSituations()),
		zap.Int("n_ratings", d.Ratings.Len()),
		zap.Int("n_test_ratings", d.Test.Len()),
		zap.Float64s("scale", d.Scale))
	return d, nil
}

func ratingScale(entries []Entry) []float64 {
	scale := lo.Uniq(lo.Map(entries, func(e Entry, _ int) float64 { return e.Rating }))
	slices.Sort(scale)
	return scale
}
