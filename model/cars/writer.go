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
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gorse-io/carskit/common/heap"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// PredictionWriter writes one tab separated line per rating prediction:
// userId, itemId, contexts, rating and prediction.
type PredictionWriter struct {
	mu     sync.Mutex
	w      *bufio.Writer
	header bool
}

func NewPredictionWriter(w io.Writer) *PredictionWriter {
	return &PredictionWriter{w: bufio.NewWriter(w)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (pw *PredictionWriter) writeLine(fields ...string) error {
	if _, err := pw.w.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Write appends a prediction. The header is written before the first line.
func (pw *PredictionWriter) Write(user, item, contexts string, rating, prediction float64) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if !pw.header {
		if err := pw.writeLine("userId", "itemId", "contexts", "rating", "prediction"); err != nil {
			return err
		}
		pw.header = true
	}
	return pw.writeLine(user, item, contexts, formatFloat(rating), formatFloat(prediction))
}

// Flush writes buffered lines to the underlying writer.
func (pw *PredictionWriter) Flush() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return errors.Trace(pw.w.Flush())
}

// RecommendationWriter writes the top-N list of every evaluated user and situation as
// userId, contexts and item:score pairs separated by commas.
type RecommendationWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewRecommendationWriter(w io.Writer) *RecommendationWriter {
	return &RecommendationWriter{w: bufio.NewWriter(w)}
}

// Write appends a ranked list.
func (rw *RecommendationWriter) Write(user, contexts string, items []heap.Elem[string, float64]) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	ranked := strings.Join(lo.Map(items, func(e heap.Elem[string, float64], _ int) string {
		return e.Value + ":" + formatFloat(e.Weight)
	}), ",")
	if _, err := rw.w.WriteString(user + "\t" + contexts + "\t" + ranked + "\n"); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Flush writes buffered lines to the underlying writer.
func (rw *RecommendationWriter) Flush() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return errors.Trace(rw.w.Flush())
}
