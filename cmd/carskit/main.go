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
	"os/signal"

	"github.com/google/uuid"
	"github.com/gorse-io/carskit/base/log"
	"github.com/gorse-io/carskit/cmd/version"
	"github.com/gorse-io/carskit/config"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "carskit",
	Short: "Context-aware recommender evaluation toolkit.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Evaluate the configured recommender.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		conf := loadConfig(cmd)
		d, err := loadDataset(conf)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		results, err := runExperiment(ctx, conf, d, os.Stderr)
		if err != nil {
			log.Logger().Fatal("failed to evaluate", zap.Error(err))
		}
		if err = renderResults(os.Stdout, conf.Model.Tag, results); err != nil {
			log.Logger().Fatal("failed to render results", zap.Error(err))
		}
		log.Logger().Info("complete evaluation",
			zap.String("model", conf.Model.Tag),
			zap.String("summary", resultsSummary(results)))
	},
}

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search algorithms and hyper-parameters on a validation split.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		conf := loadConfig(cmd)
		if cmd.Flags().Changed("trials") {
			conf.Search.Trials, _ = cmd.Flags().GetInt("trials")
		}
		if cmd.Flags().Changed("grid") {
			conf.Search.Method = config.SearchGrid
		}
		d, err := loadDataset(conf)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		result, err := runSearch(ctx, conf, d)
		if err != nil {
			log.Logger().Fatal("failed to search", zap.Error(err))
		}
		if err = renderSearch(os.Stdout, result); err != nil {
			log.Logger().Fatal("failed to render results", zap.Error(err))
		}
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show version information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func loadConfig(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	runId := uuid.NewString()
	log.Logger().Info("load config", zap.String("config", configPath), zap.String("run_id", runId))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	values, err := conf.ToMap()
	if err != nil {
		log.Logger().Fatal("failed to export config", zap.Error(err))
	}
	log.Logger().Debug("effective config", zap.String("run_id", runId), zap.Any("config", values))
	return conf
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewWriter(w)
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	tuneCommand.Flags().Int("trials", 0, "number of search trials")
	tuneCommand.Flags().Bool("grid", false, "search the hyper-parameter grid exhaustively")
	rootCommand.AddCommand(runCommand, tuneCommand, versionCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
