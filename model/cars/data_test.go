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

package cars

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gorse-io/carskit/dataset"
	"github.com/stretchr/testify/require"
)

const fourRatings = `user,item,rating,time:morning,time:evening
u1,i1,3,1,0
u1,i2,4,0,1
u2,i1,2,0,1
u2,i2,5,1,0
`

func loadDataset(t *testing.T, train string, test ...string) *dataset.Dataset {
	loader := dataset.NewLoader(dataset.DefaultLoadOptions())
	ratings, err := loader.Load(strings.NewReader(train))
	require.NoError(t, err)
	var testRatings []dataset.Entry
	for _, text := range test {
		entries, err := loader.Load(strings.NewReader(text))
		require.NoError(t, err)
		testRatings = append(testRatings, entries...)
	}
	d, err := loader.Build(ratings, testRatings)
	require.NoError(t, err)
	return d
}

// syntheticDataset has two dimensions, each with an empty condition.
func syntheticDataset(t *testing.T, numUsers, numItems int) *dataset.Dataset {
	var builder strings.Builder
	builder.WriteString("user,item,rating,time:morning,time:evening,time:na,location:home,location:cinema,location:na\n")
	for u := 0; u < numUsers; u++ {
		for i := 0; i < numItems; i++ {
			if (u+i)%4 == 0 {
				continue
			}
			var time, location [3]int
			time[(u*i)%3] = 1
			location[(u+i)%3] = 1
			fmt.Fprintf(&builder, "u%d,i%d,%d,%d,%d,%d,%d,%d,%d\n", u, i, (u+2*i+(u*i)%3)%5+1,
				time[0], time[1], time[2], location[0], location[1], location[2])
		}
	}
	return loadDataset(t, builder.String())
}

func situation(t *testing.T, d *dataset.Dataset, conds ...string) int {
	ids := make([]int, 0, len(conds))
	for _, cond := range conds {
		id, ok := d.Registry.Conditions.Get(cond)
		require.True(t, ok, cond)
		ids = append(ids, id)
	}
	c, err := d.Index.SituationOf(ids)
	require.NoError(t, err)
	return c
}

func userId(t *testing.T, d *dataset.Dataset, name string) int {
	id, ok := d.Registry.Users.Get(name)
	require.True(t, ok, name)
	return id
}

func itemId(t *testing.T, d *dataset.Dataset, name string) int {
	id, ok := d.Registry.Items.Get(name)
	require.True(t, ok, name)
	return id
}
