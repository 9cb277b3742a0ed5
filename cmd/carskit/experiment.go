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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorse-io/carskit/base"
	"github.com/gorse-io/carskit/base/log"
	"github.com/gorse-io/carskit/base/progress"
	"github.com/gorse-io/carskit/config"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model/cars"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// split is one train/test partition. Fold is 1-based.
type split struct {
	fold  int
	train *dataset.RatingTable
	test  *dataset.RatingTable
}

// foldResult holds the scores of one fold.
type foldResult struct {
	fold    int
	train   cars.TrainResult
	rating  cars.RatingScore
	ranking cars.RankingScore
	elapsed time.Duration
}

func loadDataset(conf *config.Config) (*dataset.Dataset, error) {
	options, err := conf.Data.LoadOptions()
	if err != nil {
		return nil, errors.Trace(err)
	}
	loader := dataset.NewLoader(options)
	ratings, err := loader.LoadFile(conf.Data.TrainPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var test []dataset.Entry
	if conf.Evaluation.Setup == config.SetupTestSet {
		if test, err = loader.LoadFile(conf.Data.TestPath); err != nil {
			return nil, errors.Trace(err)
		}
	}
	d, err := loader.Build(ratings, test)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return d, nil
}

func makeSplits(conf *config.Config, d *dataset.Dataset) ([]split, error) {
	rng := base.NewRandomGenerator(conf.Evaluation.Seed)
	switch conf.Evaluation.Setup {
	case config.SetupCrossValidation:
		splitter, err := dataset.NewKFoldSplitter(d.Ratings, conf.Evaluation.Folds, rng)
		if err != nil {
			return nil, errors.Trace(err)
		}
		splits := make([]split, 0, splitter.NumFolds())
		for k := 1; k <= splitter.NumFolds(); k++ {
			train, test, err := splitter.Fold(k)
			if err != nil {
				return nil, errors.Trace(err)
			}
			splits = append(splits, split{fold: k, train: train, test: test})
		}
		return splits, nil
	case config.SetupTestSet:
		return []split{{fold: 1, train: d.Ratings, test: d.Test}}, nil
	case config.SetupGivenRatio:
		train, test, err := dataset.SplitRatio(d.Ratings, conf.Evaluation.Ratio, rng)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return []split{{fold: 1, train: train, test: test}}, nil
	default:
		return nil, errors.NotValidf("evaluation setup %q", conf.Evaluation.Setup)
	}
}

func createDump(conf *config.Config, name string) (*os.File, error) {
	path := filepath.Join(conf.Evaluation.ResultsDir, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Annotatef(err, "create %s", path)
	}
	return file, nil
}

func runFold(ctx context.Context, conf *config.Config, d *dataset.Dataset, s split) (foldResult, error) {
	logger := log.FoldLogger(s.fold)
	start := time.Now()
	result := foldResult{fold: s.fold}
	rec, err := conf.Recommender()
	if err != nil {
		return result, errors.Trace(err)
	}
	logger.Info("fit recommender",
		zap.String("model", conf.Model.Tag),
		zap.Int("n_train", s.train.Len()),
		zap.Int("n_test", s.test.Len()))
	if result.train, err = rec.Fit(ctx, d, s.train); err != nil {
		return result, errors.Annotatef(err, "fold %d", s.fold)
	}

	var predictions *cars.PredictionWriter
	if conf.Evaluation.SavePredictions {
		file, err := createDump(conf, fmt.Sprintf("%s-fold%d-predictions.txt", conf.Model.Tag, s.fold))
		if err != nil {
			return result, errors.Trace(err)
		}
		defer file.Close()
		predictions = cars.NewPredictionWriter(file)
	}
	if result.rating, err = cars.EvaluateRating(ctx, rec, d, s.test, predictions); err != nil {
		return result, errors.Annotatef(err, "fold %d", s.fold)
	}
	if predictions != nil {
		if err = predictions.Flush(); err != nil {
			return result, errors.Trace(err)
		}
	}

	if conf.Evaluation.Ranking {
		rankConfig, err := conf.Evaluation.RankConfig()
		if err != nil {
			return result, errors.Trace(err)
		}
		var recommendations *cars.RecommendationWriter
		if conf.Evaluation.SavePredictions {
			file, err := createDump(conf, fmt.Sprintf("%s-fold%d-top%d.txt", conf.Model.Tag, s.fold, rankConfig.TopN))
			if err != nil {
				return result, errors.Trace(err)
			}
			defer file.Close()
			recommendations = cars.NewRecommendationWriter(file)
		}
		if result.ranking, err = cars.EvaluateRanking(ctx, rec, d, s.train, s.test, rankConfig, recommendations); err != nil {
			return result, errors.Annotatef(err, "fold %d", s.fold)
		}
		if recommendations != nil {
			if err = recommendations.Flush(); err != nil {
				return result, errors.Trace(err)
			}
		}
	}
	result.elapsed = time.Since(start)
	logger.Info("complete fold",
		zap.Float64("mae", result.rating.MAE),
		zap.Float64("rmse", result.rating.RMSE),
		zap.Int("epochs", result.train.Epochs),
		zap.Bool("converged", result.train.Converged),
		zap.Duration("elapsed", result.elapsed))
	return result, nil
}

// runExperiment evaluates the configured recommender on every split. Folds run
// concurrently when parallel folds are enabled.
func runExperiment(ctx context.Context, conf *config.Config, d *dataset.Dataset, out io.Writer) ([]foldResult, error) {
	splits, err := makeSplits(conf, d)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if conf.Evaluation.SavePredictions {
		if err = os.MkdirAll(conf.Evaluation.ResultsDir, os.ModePerm); err != nil {
			return nil, errors.Trace(err)
		}
	}
	tracer := progress.NewTracer(conf.Model.Tag)
	bar := progressbar.NewOptions(len(splits),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("evaluate "+conf.Model.Tag))
	completed := atomic.NewInt32(0)
	results := make([]foldResult, len(splits))
	evaluate := func(ctx context.Context, k int) error {
		ctx, span := tracer.Start(ctx, fmt.Sprintf("fold-%d", splits[k].fold), 1)
		result, err := runFold(ctx, conf, d, splits[k])
		if err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		span.End()
		results[k] = result
		log.Logger().Debug("fold progress",
			zap.Int32("completed", completed.Inc()),
			zap.Int("total", len(splits)))
		return errors.Trace(bar.Add(1))
	}
	if conf.Evaluation.ParallelFolds {
		group, groupCtx := errgroup.WithContext(ctx)
		for k := range splits {
			group.Go(func() error {
				return evaluate(groupCtx, k)
			})
		}
		err = group.Wait()
	} else {
		for k := range splits {
			if err = evaluate(ctx, k); err != nil {
				break
			}
		}
	}
	for _, p := range tracer.List() {
		log.Logger().Debug("fold span", zap.String("name", p.Name), zap.String("status", string(p.Status)))
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = bar.Finish(); err != nil {
		return nil, errors.Trace(err)
	}
	return results, nil
}

// meanResult averages scores over folds.
func meanResult(results []foldResult) foldResult {
	mean := func(value func(foldResult) float64) float64 {
		return stat.Mean(lo.Map(results, func(r foldResult, _ int) float64 { return value(r) }), nil)
	}
	m := foldResult{
		rating: cars.RatingScore{
			MAE:   mean(func(r foldResult) float64 { return r.rating.MAE }),
			RMSE:  mean(func(r foldResult) float64 { return r.rating.RMSE }),
			NMAE:  mean(func(r foldResult) float64 { return r.rating.NMAE }),
			RMAE:  mean(func(r foldResult) float64 { return r.rating.RMAE }),
			RRMSE: mean(func(r foldResult) float64 { return r.rating.RRMSE }),
			MPE:   mean(func(r foldResult) float64 { return r.rating.MPE }),
			Count: lo.SumBy(results, func(r foldResult) int { return r.rating.Count }),
		},
	}
	if len(results) == 0 || results[0].ranking.At == nil {
		return m
	}
	m.ranking = cars.RankingScore{
		Cutoffs: results[0].ranking.Cutoffs,
		At:      make(map[int]cars.RankingMetrics),
		Users:   lo.SumBy(results, func(r foldResult) int { return r.ranking.Users }),
	}
	for _, n := range m.ranking.Cutoffs {
		m.ranking.At[n] = cars.RankingMetrics{
			Precision: mean(func(r foldResult) float64 { return r.ranking.At[n].Precision }),
			Recall:    mean(func(r foldResult) float64 { return r.ranking.At[n].Recall }),
			MAP:       mean(func(r foldResult) float64 { return r.ranking.At[n].MAP }),
			NDCG:      mean(func(r foldResult) float64 { return r.ranking.At[n].NDCG }),
			MRR:       mean(func(r foldResult) float64 { return r.ranking.At[n].MRR }),
			AUC:       mean(func(r foldResult) float64 { return r.ranking.At[n].AUC }),
		}
	}
	return m
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

func foldName(fold int) string {
	if fold == 0 {
		return "mean"
	}
	return fmt.Sprint(fold)
}

// renderResults prints rating and ranking tables with a final row averaged over folds.
func renderResults(w io.Writer, tag string, results []foldResult) error {
	rows := append(append([]foldResult(nil), results...), meanResult(results))
	fmt.Fprintf(w, "%s: rating prediction\n", tag)
	table := newTable(w)
	table.Header("Fold", "MAE", "RMSE", "NMAE", "RMAE", "RRMSE", "MPE", "Epochs")
	for _, r := range rows {
		if err := table.Append([]string{
			foldName(r.fold),
			formatScore(r.rating.MAE),
			formatScore(r.rating.RMSE),
			formatScore(r.rating.NMAE),
			formatScore(r.rating.RMAE),
			formatScore(r.rating.RRMSE),
			formatScore(r.rating.MPE),
			fmt.Sprint(r.train.Epochs),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Render(); err != nil {
		return errors.Trace(err)
	}
	if len(results) == 0 || results[0].ranking.At == nil {
		return nil
	}
	fmt.Fprintf(w, "%s: top-N recommendation\n", tag)
	table = newTable(w)
	table.Header("Fold", "Cutoff", "Precision", "Recall", "MAP", "NDCG", "MRR", "AUC")
	for _, r := range rows {
		for _, n := range r.ranking.Cutoffs {
			at := r.ranking.At[n]
			if err := table.Append([]string{
				foldName(r.fold),
				fmt.Sprint(n),
				formatScore(at.Precision),
				formatScore(at.Recall),
				formatScore(at.MAP),
				formatScore(at.NDCG),
				formatScore(at.MRR),
				formatScore(at.AUC),
			}); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(table.Render())
}

// resultsSummary is the one line log summary of averaged scores.
func resultsSummary(results []foldResult) string {
	m := meanResult(results)
	fields := []string{
		"MAE: " + formatScore(m.rating.MAE),
		"RMSE: " + formatScore(m.rating.RMSE),
	}
	for _, n := range m.ranking.Cutoffs {
		fields = append(fields, fmt.Sprintf("NDCG@%d: %s", n, formatScore(m.ranking.At[n].NDCG)))
	}
	return strings.Join(fields, ", ")
}
