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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRatings = `user,item,rating,time:morning,time:evening,time:na,location:home,location:cinema
u1,i1,3,1,0,0,1,0
u1,i2,4,0,1,0,1,0
u2,i1,2,1,0,0,0,1
u2,i2,5,0,0,1,1,0
u1,i1,4,0,1,0,0,1
`

func loadSample(t *testing.T, text string) *Dataset {
	loader := NewLoader(DefaultLoadOptions())
	entries, err := loader.Load(strings.NewReader(text))
	require.NoError(t, err)
	d, err := loader.Build(entries, nil)
	require.NoError(t, err)
	return d
}

func TestLoader_Load(t *testing.T) {
	d := loadSample(t, sampleRatings)
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 2, d.CountItems())
	assert.Equal(t, 4, d.Registry.CountUserItems())
	assert.Equal(t, 2, d.Index.CountDimensions())
	assert.Equal(t, 5, d.Index.CountConditions())
	assert.Equal(t, 5, d.CountSituations())
	assert.Equal(t, 5, d.Ratings.Len())
	assert.Nil(t, d.Test)
	assert.Equal(t, []float64{2, 3, 4, 5}, d.Scale)
	assert.Equal(t, 2.0, d.MinRating())
	assert.Equal(t, 5.0, d.MaxRating())
	assert.Equal(t, "u2", d.UserName(1))
	assert.Equal(t, "i2", d.ItemName(1))
	// every situation has one condition per dimension
	for c := 0; c < d.CountSituations(); c++ {
		assert.Len(t, d.Index.Conditions(c), d.Index.CountDimensions())
	}
	// registries are frozen
	assert.Panics(t, func() { d.Registry.Users.Id("u3") })
}

func TestLoader_DuplicatePolicy(t *testing.T) {
	text := sampleRatings + "u1,i1,1,1,0,0,1,0\n"
	// overwrite keeps the last value
	d := loadSample(t, text)
	assert.Equal(t, 5, d.Ratings.Len())
	rating, ok := d.Ratings.Get(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 1.0, rating)
	// keep-first keeps the first value
	loader := NewLoader(LoadOptions{Duplicate: DuplicateKeepFirst})
	entries, err := loader.Load(strings.NewReader(text))
	require.NoError(t, err)
	d, err = loader.Build(entries, nil)
	require.NoError(t, err)
	rating, ok = d.Ratings.Get(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 3.0, rating)
	// reject fails the load
	loader = NewLoader(LoadOptions{Duplicate: DuplicateReject})
	_, err = loader.Load(strings.NewReader(text))
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "line 7")
}

func TestParseDuplicatePolicy(t *testing.T) {
	policy, err := ParseDuplicatePolicy("")
	assert.NoError(t, err)
	assert.Equal(t, DuplicateOverwrite, policy)
	policy, err = ParseDuplicatePolicy("Reject")
	assert.NoError(t, err)
	assert.Equal(t, DuplicateReject, policy)
	_, err = ParseDuplicatePolicy("merge")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestLoader_MalformedRows(t *testing.T) {
	header := "user,item,rating,time:morning,time:evening,location:home\n"
	for name, row := range map[string]string{
		"multiple active": "u1,i1,3,1,1,1\n",
		"none active":     "u1,i1,3,0,0,1\n",
		"bad indicator":   "u1,i1,3,yes,0,1\n",
		"bad rating":      "u1,i1,x,1,0,1\n",
		"empty user":      " ,i1,3,1,0,1\n",
		"missing column":  "u1,i1,3,1,0\n",
	} {
		t.Run(name, func(t *testing.T) {
			loader := NewLoader(DefaultLoadOptions())
			_, err := loader.Load(strings.NewReader(header + "u0,i0,4,0,1,1\n" + row))
			assert.True(t, errors.Is(err, errors.NotValid))
			assert.Contains(t, err.Error(), "line 3")
		})
	}
}

func TestLoader_MalformedHeader(t *testing.T) {
	for name, header := range map[string]string{
		"no context":      "user,item,rating\n",
		"no separator":    "user,item,rating,morning\n",
		"duplicated":      "user,item,rating,time:morning,time:morning\n",
		"two empty":       "user,item,rating,time:na,time:NA\n",
		"empty dataset":   "",
		"empty condition": "user,item,rating,time:\n",
	} {
		t.Run(name, func(t *testing.T) {
			loader := NewLoader(DefaultLoadOptions())
			_, err := loader.Load(strings.NewReader(header))
			assert.True(t, errors.Is(err, errors.NotValid))
		})
	}
}

func TestLoader_TestSet(t *testing.T) {
	loader := NewLoader(DefaultLoadOptions())
	train, err := loader.Load(strings.NewReader(sampleRatings))
	require.NoError(t, err)
	test, err := loader.Load(strings.NewReader(
		"user,item,rating,time:morning,time:evening,time:na,location:home,location:cinema\n" +
			"u3,i1,1,0,0,1,0,1\n" +
			"u1,i1,2,1,0,0,1,0\n"))
	require.NoError(t, err)
	d, err := loader.Build(train, test)
	require.NoError(t, err)
	// test set extends the shared id space
	assert.Equal(t, 3, d.CountUsers())
	assert.Equal(t, 6, d.CountSituations())
	assert.Equal(t, 2, d.Test.Len())
	assert.Equal(t, 5, d.Ratings.Len())
	// scale comes from training ratings
	assert.Equal(t, []float64{2, 3, 4, 5}, d.Scale)
	// header must match
	_, err = loader.Load(strings.NewReader(sampleRatings))
	assert.Error(t, err)

	loader = NewLoader(DefaultLoadOptions())
	_, err = loader.Load(strings.NewReader(sampleRatings))
	require.NoError(t, err)
	_, err = loader.Load(strings.NewReader("user,item,rating,time:morning\n"))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestLoader_LoadFile(t *testing.T) {
	loader := NewLoader(DefaultLoadOptions())
	_, err := loader.LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.Is(err, errors.NotFound))

	path := filepath.Join(t.TempDir(), "ratings.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleRatings), 0o644))
	entries, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestLoader_Build(t *testing.T) {
	loader := NewLoader(DefaultLoadOptions())
	_, err := loader.Build(nil, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = loader.Load(strings.NewReader("user,item,rating,time:morning\n"))
	require.NoError(t, err)
	_, err = loader.Build(nil, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestDataset_Round(t *testing.T) {
	d := loadSample(t, sampleRatings)
	assert.Equal(t, 2.0, d.Round(1))
	assert.Equal(t, 3.0, d.Round(3.4))
	assert.Equal(t, 3.0, d.Round(3.5))
	assert.Equal(t, 4.0, d.Round(3.6))
	assert.Equal(t, 5.0, d.Round(7))
	assert.Equal(t, 2.0, d.Clip(-1))
	assert.Equal(t, 5.0, d.Clip(5.5))
	assert.Equal(t, 3.3, d.Clip(3.3))
}
