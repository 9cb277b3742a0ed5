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
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

// EmptyConditionName marks the neutral condition of a dimension.
const EmptyConditionName = "na"

// NotExist is returned for a dimension without an empty condition.
const NotExist = -1

// SituationIndex maps rows of 0/1 condition indicators to canonical situations.
type SituationIndex struct {
	registry       *Registry
	condDim        []int
	condLabel      []string
	dimConds       [][]int
	emptyConds     []int
	situationConds [][]int
	condSituations [][]int
}

func NewSituationIndex(registry *Registry) *SituationIndex {
	return &SituationIndex{registry: registry}
}

// ParseHeader registers the dimension and condition columns. Columns are formatted as
// "dimension:condition" and the condition id equals the column position.
func (idx *SituationIndex) ParseHeader(columns []string) error {
	if idx.registry.Conditions.Count() > 0 {
		return errors.AlreadyExistsf("context header")
	}
	if len(columns) == 0 {
		return errors.NotValidf("header without context columns")
	}
	for col, column := range columns {
		column = strings.TrimSpace(column)
		dimName, condName, ok := strings.Cut(column, ":")
		if !ok || dimName == "" || condName == "" {
			return errors.NotValidf("context column %q", column)
		}
		if _, exist := idx.registry.Conditions.Get(column); exist {
			return errors.NotValidf("duplicated context column %q", column)
		}
		cond := idx.registry.Conditions.Id(column)
		if cond != col {
			return errors.Errorf("condition %q got id %d at column %d", column, cond, col)
		}
		dim := idx.registry.Dimensions.Id(dimName)
		if dim == len(idx.dimConds) {
			idx.dimConds = append(idx.dimConds, nil)
			idx.emptyConds = append(idx.emptyConds, NotExist)
		}
		idx.dimConds[dim] = append(idx.dimConds[dim], cond)
		idx.condDim = append(idx.condDim, dim)
		idx.condLabel = append(idx.condLabel, column)
		idx.condSituations = append(idx.condSituations, nil)
		if strings.EqualFold(condName, EmptyConditionName) {
			if idx.emptyConds[dim] != NotExist {
				return errors.NotValidf("dimension %q with more than one empty condition", dimName)
			}
			idx.emptyConds[dim] = cond
		}
	}
	return nil
}

// Header returns the context columns in condition id order.
func (idx *SituationIndex) Header() []string {
	return idx.condLabel
}

// Situation interns the situation described by the indicator columns. Exactly one
// condition per dimension must be active.
func (idx *SituationIndex) Situation(indicators []string) (int, error) {
	if len(indicators) != len(idx.condDim) {
		return 0, errors.NotValidf("expect %d context columns but got %d", len(idx.condDim), len(indicators))
	}
	active := make([]int, len(idx.dimConds))
	for i := range active {
		active[i] = NotExist
	}
	for cond, indicator := range indicators {
		on, err := parseIndicator(indicator)
		if err != nil {
			return 0, errors.Annotatef(err, "column %s", idx.condLabel[cond])
		}
		if !on {
			continue
		}
		dim := idx.condDim[cond]
		if active[dim] != NotExist {
			return 0, errors.NotValidf("multiple active conditions (%s, %s) in dimension %s",
				idx.condLabel[active[dim]], idx.condLabel[cond], idx.registry.Dimensions.MustString(dim))
		}
		active[dim] = cond
	}
	for dim, cond := range active {
		if cond == NotExist {
			return 0, errors.NotValidf("no active condition in dimension %s", idx.registry.Dimensions.MustString(dim))
		}
	}
	return idx.intern(active), nil
}

// SituationOf interns a situation from one condition per dimension, ordered by dimension.
func (idx *SituationIndex) SituationOf(conds []int) (int, error) {
	if len(conds) != len(idx.dimConds) {
		return 0, errors.NotValidf("expect %d conditions but got %d", len(idx.dimConds), len(conds))
	}
	for dim, cond := range conds {
		if cond < 0 || cond >= len(idx.condDim) || idx.condDim[cond] != dim {
			return 0, errors.NotValidf("condition %d for dimension %d", cond, dim)
		}
	}
	return idx.intern(append([]int(nil), conds...)), nil
}

func (idx *SituationIndex) intern(conds []int) int {
	sorted := append([]int(nil), conds...)
	sort.Ints(sorted)
	key := strings.Join(lo.Map(sorted, func(c int, _ int) string { return strconv.Itoa(c) }), ",")
	c := idx.registry.Situations.Id(key)
	if c == len(idx.situationConds) {
		idx.situationConds = append(idx.situationConds, conds)
		for _, cond := range conds {
			idx.condSituations[cond] = append(idx.condSituations[cond], c)
		}
	}
	return c
}

func parseIndicator(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "1", "1.0":
		return true, nil
	case "0", "0.0", "":
		return false, nil
	default:
		return false, errors.NotValidf("indicator %q", s)
	}
}

// Conditions returns the conditions of a situation ordered by dimension.
func (idx *SituationIndex) Conditions(c int) []int {
	return idx.situationConds[c]
}

// Situations returns the situations containing a condition.
func (idx *SituationIndex) Situations(cond int) []int {
	return idx.condSituations[cond]
}

// DimensionOf returns the dimension of a condition.
func (idx *SituationIndex) DimensionOf(cond int) int {
	return idx.condDim[cond]
}

// DimensionConditions returns the conditions of a dimension.
func (idx *SituationIndex) DimensionConditions(dim int) []int {
	return idx.dimConds[dim]
}

// EmptyCondition returns the "na" condition of a dimension, or NotExist.
func (idx *SituationIndex) EmptyCondition(dim int) int {
	return idx.emptyConds[dim]
}

// EmptyConditions returns the "na" condition of every dimension. It fails if a
// dimension has no empty condition.
func (idx *SituationIndex) EmptyConditions() ([]int, error) {
	for dim, cond := range idx.emptyConds {
		if cond == NotExist {
			return nil, errors.NotFoundf("empty condition of dimension %s", idx.registry.Dimensions.MustString(dim))
		}
	}
	return idx.emptyConds, nil
}

func (idx *SituationIndex) CountDimensions() int {
	return len(idx.dimConds)
}

func (idx *SituationIndex) CountConditions() int {
	return len(idx.condDim)
}

func (idx *SituationIndex) CountSituations() int {
	return len(idx.situationConds)
}

// ConditionName returns the "dimension:condition" label of a condition.
func (idx *SituationIndex) ConditionName(cond int) string {
	return idx.condLabel[cond]
}

// SituationName renders a situation as its condition labels joined by ";".
func (idx *SituationIndex) SituationName(c int) string {
	return strings.Join(lo.Map(idx.situationConds[c], func(cond int, _ int) string {
		return idx.condLabel[cond]
	}), ";")
}
