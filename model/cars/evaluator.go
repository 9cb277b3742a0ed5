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
	"context"
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/carskit/base"
	"github.com/gorse-io/carskit/base/log"
	"github.com/gorse-io/carskit/base/progress"
	"github.com/gorse-io/carskit/common/heap"
	"github.com/gorse-io/carskit/common/parallel"
	"github.com/gorse-io/carskit/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RatingScore holds rating prediction errors.
type RatingScore struct {
	MAE  float64
	RMSE float64
	// NMAE is MAE normalized by the range of the rating scale.
	NMAE float64
	// RMAE and RRMSE are computed on predictions rounded to the rating scale.
	RMAE  float64
	RRMSE float64
	// MPE is the fraction of rounded predictions that miss the rating.
	MPE float64
	// Count is the number of scored ratings and Skipped the number of non-finite
	// predictions left out.
	Count   int
	Skipped int
}

// EvaluateRating predicts every test rating. Predictions are clipped to the rating
// scale. Non-finite predictions are skipped and counted. writer may be nil.
func EvaluateRating(ctx context.Context, rec Recommender, d *dataset.Dataset, test *dataset.RatingTable, writer *PredictionWriter) (RatingScore, error) {
	var score RatingScore
	var sumAE, sumSE, sumRAE, sumRSE, sumPE float64
	registry := test.Registry()
	_, span := progress.Start(ctx, "EvaluateRating", test.Len())
	for k, e := range test.Entries() {
		if k%1024 == 0 {
			if err := ctx.Err(); err != nil {
				span.Fail(err)
				return score, errors.Trace(err)
			}
		}
		u, i := registry.UserOf(e.UserItem), registry.ItemOf(e.UserItem)
		pred := rec.Predict(u, i, e.Situation)
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			score.Skipped++
			continue
		}
		pred = d.Clip(pred)
		rounded := d.Round(pred)
		ae, rae := math.Abs(e.Rating-pred), math.Abs(e.Rating-rounded)
		sumAE += ae
		sumSE += ae * ae
		sumRAE += rae
		sumRSE += rae * rae
		if rae > 1e-5 {
			sumPE++
		}
		score.Count++
		if writer != nil {
			if err := writer.Write(d.UserName(u), d.ItemName(i), d.Index.SituationName(e.Situation), e.Rating, pred); err != nil {
				span.Fail(err)
				return score, errors.Trace(err)
			}
		}
		span.Add(1)
	}
	span.End()
	if score.Skipped > 0 {
		log.Logger().Warn("skip non-finite predictions", zap.Int("skipped", score.Skipped), zap.Int("count", score.Count))
	}
	if score.Count == 0 {
		return score, nil
	}
	n := float64(score.Count)
	score.MAE = sumAE / n
	score.RMSE = math.Sqrt(sumSE / n)
	if scale := d.MaxRating() - d.MinRating(); scale > 0 {
		score.NMAE = score.MAE / scale
	}
	score.RMAE = sumRAE / n
	score.RRMSE = math.Sqrt(sumRSE / n)
	score.MPE = sumPE / n
	return score, nil
}

// RatedFilter selects the training items removed from the candidates of a user.
type RatedFilter string

const (
	FilterNone        RatedFilter = "none"
	FilterUser        RatedFilter = "user"
	FilterUserContext RatedFilter = "user-context"
)

// ParseRatedFilter parses a filter name. An empty name means FilterUser.
func ParseRatedFilter(name string) (RatedFilter, error) {
	switch RatedFilter(name) {
	case "":
		return FilterUser, nil
	case FilterNone, FilterUser, FilterUserContext:
		return RatedFilter(name), nil
	default:
		return "", errors.NotValidf("rated item filter %q", name)
	}
}

// RankConfig configures ranking evaluation.
type RankConfig struct {
	// TopN is the length of recommendation lists.
	TopN int
	// Ignore removes the most popular training items from candidates.
	Ignore int
	Filter RatedFilter
	Jobs   int
	// Negatives ranks the ground truth of each situation against this many sampled
	// candidates instead of every candidate. Zero ranks every candidate.
	Negatives int
	// Seed seeds the negative sampler of each user.
	Seed int64
}

func NewRankConfig() RankConfig {
	return RankConfig{TopN: 10, Filter: FilterUser, Jobs: 1}
}

// Cutoffs returns the list lengths at which metrics are reported: 5, 10 and TopN.
func (config RankConfig) Cutoffs() []int {
	cutoffs := lo.Uniq([]int{5, 10, config.TopN})
	sort.Ints(cutoffs)
	return lo.Filter(cutoffs, func(n int, _ int) bool { return n > 0 })
}

// RankingMetrics are ranking metrics at one cutoff.
type RankingMetrics struct {
	Precision float64
	Recall    float64
	MAP       float64
	NDCG      float64
	MRR       float64
	AUC       float64
}

func (m RankingMetrics) add(o RankingMetrics) RankingMetrics {
	return RankingMetrics{
		Precision: m.Precision + o.Precision,
		Recall:    m.Recall + o.Recall,
		MAP:       m.MAP + o.MAP,
		NDCG:      m.NDCG + o.NDCG,
		MRR:       m.MRR + o.MRR,
		AUC:       m.AUC + o.AUC,
	}
}

func (m RankingMetrics) scale(s float64) RankingMetrics {
	return RankingMetrics{
		Precision: m.Precision * s,
		Recall:    m.Recall * s,
		MAP:       m.MAP * s,
		NDCG:      m.NDCG * s,
		MRR:       m.MRR * s,
		AUC:       m.AUC * s,
	}
}

// RankingScore holds ranking metrics per cutoff averaged over evaluated users.
type RankingScore struct {
	Cutoffs []int
	At      map[int]RankingMetrics
	// Users is the number of users with at least one evaluated situation.
	Users int
}

// RankingAt evaluates one ranked list at a cutoff. numDropped counts candidates
// beyond the full ranked list.
func RankingAt(ranked []int, truth mapset.Set[int], numDropped, n int) RankingMetrics {
	top := Top(ranked, n)
	return RankingMetrics{
		Precision: Precision(top, truth, n),
		Recall:    Recall(top, truth),
		MAP:       AP(top, truth),
		NDCG:      NDCG(top, truth),
		MRR:       RR(top, truth),
		AUC:       AUC(top, truth, numDropped+len(ranked)-len(top)),
	}
}

// candidateItems returns training items minus the ignore most popular ones.
func candidateItems(train *dataset.RatingTable, ignore int) []int {
	items := train.Items()
	if ignore <= 0 {
		return items
	}
	popular := append([]int(nil), items...)
	sort.SliceStable(popular, func(a, b int) bool {
		return train.ItemCount(popular[a]) > train.ItemCount(popular[b])
	})
	ignored := mapset.NewThreadUnsafeSet(Top(popular, ignore)...)
	return lo.Filter(items, func(i int, _ int) bool { return !ignored.Contains(i) })
}

// EvaluateRanking ranks candidate items for every test user and situation. Metrics
// are averaged over the situations of a user, then over users. Situations with empty
// ground truth or no candidates are left out. writer may be nil.
func EvaluateRanking(ctx context.Context, rec Recommender, d *dataset.Dataset, train, test *dataset.RatingTable,
	config RankConfig, writer *RecommendationWriter) (RankingScore, error) {
	cutoffs := config.Cutoffs()
	candidates := candidateItems(train, config.Ignore)
	candidateSet := mapset.NewThreadUnsafeSet(candidates...)
	excluded := mapset.NewThreadUnsafeSet[int]()
	for i := 0; i < d.CountItems(); i++ {
		if !candidateSet.Contains(i) {
			excluded.Add(i)
		}
	}
	trainGroups := train.UserSituationItems()
	testGroups := test.UserSituationItems()
	users := lo.Keys(testGroups)
	sort.Ints(users)
	jobs := max(config.Jobs, 1)

	sums := make([]map[int]RankingMetrics, jobs)
	counts := make([]int, jobs)
	for w := range sums {
		sums[w] = make(map[int]RankingMetrics, len(cutoffs))
	}
	_, span := progress.Start(ctx, "EvaluateRanking", len(users))
	err := parallel.Parallel(ctx, len(users), jobs, func(workerId, jobId int) error {
		defer span.Add(1)
		u := users[jobId]
		situations := lo.Keys(testGroups[u])
		sort.Ints(situations)
		userSum := make(map[int]RankingMetrics, len(cutoffs))
		evaluated := 0
		userRated := mapset.NewThreadUnsafeSet[int]()
		if config.Filter == FilterUser {
			for _, items := range trainGroups[u] {
				userRated.Append(items...)
			}
		}
		rng := base.NewRandomGenerator(config.Seed + int64(u))
		for _, c := range situations {
			rated := userRated
			if config.Filter == FilterUserContext {
				rated = mapset.NewThreadUnsafeSet(trainGroups[u][c]...)
			}
			truth := mapset.NewThreadUnsafeSet(testGroups[u][c]...).Intersect(candidateSet).Difference(rated)
			if truth.Cardinality() == 0 {
				continue
			}
			items := candidates
			if config.Negatives > 0 {
				items = append(truth.ToSlice(), rng.Sample(0, d.CountItems(), config.Negatives, excluded, rated, truth)...)
				sort.Ints(items)
			}
			numCands := 0
			filter := heap.NewTopKFilter[int, float64](config.TopN)
			for _, i := range items {
				if rated.Contains(i) {
					continue
				}
				numCands++
				score := rec.Predict(u, i, c)
				if math.IsNaN(score) {
					continue
				}
				filter.Push(i, score)
			}
			elems := filter.PopAll()
			if len(elems) == 0 {
				continue
			}
			ranked := lo.Map(elems, func(e heap.Elem[int, float64], _ int) int { return e.Value })
			numDropped := numCands - len(ranked)
			for _, n := range cutoffs {
				userSum[n] = userSum[n].add(RankingAt(ranked, truth, numDropped, n))
			}
			evaluated++
			if writer != nil {
				named := lo.Map(elems, func(e heap.Elem[int, float64], _ int) heap.Elem[string, float64] {
					return heap.Elem[string, float64]{Value: d.ItemName(e.Value), Weight: e.Weight}
				})
				if err := writer.Write(d.UserName(u), d.Index.SituationName(c), named); err != nil {
					return errors.Trace(err)
				}
			}
		}
		if evaluated == 0 {
			return nil
		}
		for _, n := range cutoffs {
			sums[workerId][n] = sums[workerId][n].add(userSum[n].scale(1 / float64(evaluated)))
		}
		counts[workerId]++
		return nil
	})
	if err != nil {
		span.Fail(err)
		return RankingScore{}, errors.Trace(err)
	}
	span.End()

	score := RankingScore{Cutoffs: cutoffs, At: make(map[int]RankingMetrics, len(cutoffs))}
	for w := range sums {
		score.Users += counts[w]
		for _, n := range cutoffs {
			score.At[n] = score.At[n].add(sums[w][n])
		}
	}
	if score.Users > 0 {
		for _, n := range cutoffs {
			score.At[n] = score.At[n].scale(1 / float64(score.Users))
		}
	}
	log.Logger().Debug("evaluate ranking",
		zap.Int("n_users", len(users)),
		zap.Int("n_evaluated", score.Users),
		zap.Int("n_candidates", len(candidates)))
	return score, nil
}
