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

package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/gorse-io/carskit/model/cars"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Evaluation setups.
const (
	SetupCrossValidation = "cv"
	SetupTestSet         = "test-set"
	SetupGivenRatio      = "given-ratio"
)

// Config is the configuration of an evaluation run.
type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Model      ModelConfig      `mapstructure:"model"`
	Search     SearchConfig     `mapstructure:"search"`
}

// DataConfig is the configuration of input files.
type DataConfig struct {
	TrainPath     string        `mapstructure:"train_path" validate:"required"`
	TestPath      string        `mapstructure:"test_path"`
	Duplicate     string        `mapstructure:"duplicate" validate:"oneof=reject overwrite keep-first"`
	CacheCapacity uint64        `mapstructure:"cache_capacity"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// EvaluationConfig is the configuration of the evaluation protocol.
type EvaluationConfig struct {
	Setup           string  `mapstructure:"setup" validate:"oneof=cv test-set given-ratio"`
	Folds           int     `mapstructure:"folds" validate:"gte=2"`
	Ratio           float64 `mapstructure:"ratio" validate:"gt=0,lt=1"`
	ParallelFolds   bool    `mapstructure:"parallel_folds"`
	Ranking         bool    `mapstructure:"ranking"`
	TopN            int     `mapstructure:"top_n" validate:"gt=0"`
	Ignore          int     `mapstructure:"ignore" validate:"gte=0"`
	Filter          string  `mapstructure:"filter" validate:"oneof=none user user-context"`
	Jobs            int     `mapstructure:"jobs" validate:"gt=0"`
	Negatives       int     `mapstructure:"negatives" validate:"gte=0"`
	Seed            int64   `mapstructure:"seed"`
	ResultsDir      string  `mapstructure:"results_dir"`
	SavePredictions bool    `mapstructure:"save_predictions"`
}

// ModelConfig selects the algorithm and its hyper-parameters.
type ModelConfig struct {
	Tag    string                 `mapstructure:"tag" validate:"required"`
	Params map[string]interface{} `mapstructure:"params"`
}

// Search methods.
const (
	SearchTPE  = "tpe"
	SearchGrid = "grid"
)

// SearchConfig is the configuration of hyper-parameter search.
type SearchConfig struct {
	Method   string   `mapstructure:"method" validate:"oneof=tpe grid"`
	Trials   int      `mapstructure:"trials" validate:"gt=0"`
	WithSize bool     `mapstructure:"with_size"`
	Models   []string `mapstructure:"models"`
}

func setDefault(v *viper.Viper) {
	defaultCache := dataset.DefaultCacheOptions()
	defaultRank := cars.NewRankConfig()
	// [data]
	v.SetDefault("data.train_path", "")
	v.SetDefault("data.test_path", "")
	v.SetDefault("data.duplicate", string(dataset.DuplicateOverwrite))
	v.SetDefault("data.cache_capacity", defaultCache.Capacity)
	v.SetDefault("data.cache_ttl", defaultCache.TTL)
	// [evaluation]
	v.SetDefault("evaluation.setup", SetupCrossValidation)
	v.SetDefault("evaluation.folds", 5)
	v.SetDefault("evaluation.ratio", 0.8)
	v.SetDefault("evaluation.parallel_folds", false)
	v.SetDefault("evaluation.ranking", false)
	v.SetDefault("evaluation.top_n", defaultRank.TopN)
	v.SetDefault("evaluation.ignore", 0)
	v.SetDefault("evaluation.filter", string(defaultRank.Filter))
	v.SetDefault("evaluation.jobs", defaultRank.Jobs)
	v.SetDefault("evaluation.negatives", 0)
	v.SetDefault("evaluation.seed", 0)
	v.SetDefault("evaluation.results_dir", "results")
	v.SetDefault("evaluation.save_predictions", false)
	// [model]
	v.SetDefault("model.tag", "camf_cu")
	// [search]
	v.SetDefault("search.method", SearchTPE)
	v.SetDefault("search.trials", 20)
	v.SetDefault("search.with_size", false)
	v.SetDefault("search.models", []string{})
}

// LoadConfig reads a TOML file. Every key can be overridden by an environment variable
// such as CARSKIT_DATA_TRAIN_PATH. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("carskit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NotFoundf("config file %s", path)
			}
			return nil, errors.Trace(err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config file %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks field constraints and the requirements of the chosen setup.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.NotValidf("config (%v)", err)
	}
	if config.Evaluation.Setup == SetupTestSet && config.Data.TestPath == "" {
		return errors.NotValidf("test-set setup without data.test_path")
	}
	if _, err := cars.DefaultRegistry().New(config.Model.Tag, nil); err != nil {
		return errors.Trace(err)
	}
	if _, err := config.Model.GetParams(); err != nil {
		return errors.Trace(err)
	}
	if _, err := cars.DefaultRegistry().Subset(config.Search.Models...); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// LoadOptions returns the options of the dataset loader.
func (config *DataConfig) LoadOptions() (dataset.LoadOptions, error) {
	duplicate, err := dataset.ParseDuplicatePolicy(config.Duplicate)
	if err != nil {
		return dataset.LoadOptions{}, errors.Trace(err)
	}
	return dataset.LoadOptions{
		Duplicate: duplicate,
		Cache:     dataset.CacheOptions{Capacity: config.CacheCapacity, TTL: config.CacheTTL},
	}, nil
}

// RankConfig returns the options of ranking evaluation.
func (config *EvaluationConfig) RankConfig() (cars.RankConfig, error) {
	filter, err := cars.ParseRatedFilter(config.Filter)
	if err != nil {
		return cars.RankConfig{}, errors.Trace(err)
	}
	return cars.RankConfig{
		TopN:      config.TopN,
		Ignore:    config.Ignore,
		Filter:    filter,
		Jobs:      config.Jobs,
		Negatives: config.Negatives,
		Seed:      config.Seed,
	}, nil
}

// GetParams converts configured hyper-parameters. Names match case-insensitively and
// underscores are ignored.
func (config *ModelConfig) GetParams() (model.Params, error) {
	params := make(model.Params, len(config.Params))
	for key, value := range config.Params {
		name, ok := model.ParseParamName(key)
		if !ok {
			return nil, errors.NotValidf("hyper-parameter %q", key)
		}
		params[name] = value
	}
	return params, nil
}

// Recommender creates the configured recommender. The evaluation seed is the random
// state unless one is configured.
func (config *Config) Recommender() (cars.Recommender, error) {
	params, err := config.Model.GetParams()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, exist := params[model.RandomState]; !exist {
		params[model.RandomState] = config.Evaluation.Seed
	}
	rec, err := cars.DefaultRegistry().New(config.Model.Tag, params)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return rec, nil
}

// SearchRegistry returns the recommenders explored by search. No models means all.
func (config *Config) SearchRegistry() (cars.Registry, error) {
	if len(config.Search.Models) == 0 {
		return cars.DefaultRegistry(), nil
	}
	return cars.DefaultRegistry().Subset(config.Search.Models...)
}

// ToMap flattens the effective configuration for logging.
func (config *Config) ToMap() (map[string]interface{}, error) {
	var values map[string]interface{}
	if err := mapstructure.Decode(config, &values); err != nil {
		return nil, errors.Trace(err)
	}
	return values, nil
}
