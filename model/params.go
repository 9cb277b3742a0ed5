// Copyright 2020 gorse Project Authors
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

package model

import (
	"reflect"
	"strings"

	"github.com/gorse-io/carskit/base/log"
	"go.uber.org/zap"
)

/* ParamName */

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Lr                ParamName = "Lr"                // learning rate
	MaxLr             ParamName = "MaxLr"             // upper bound of learning rate
	Reg               ParamName = "Reg"               // regularization strength
	RegB              ParamName = "RegB"              // regularization strength of biases
	RegU              ParamName = "RegU"              // regularization strength of user factors
	RegI              ParamName = "RegI"              // regularization strength of item factors
	RegC              ParamName = "RegC"              // regularization strength of context parameters
	NEpochs           ParamName = "NEpochs"           // number of epochs
	NFactors          ParamName = "NFactors"          // number of factors
	NConditionFactors ParamName = "NConditionFactors" // number of latent factors of conditions
	RandomState       ParamName = "RandomState"       // random state (seed)
	InitMean          ParamName = "InitMean"          // mean of gaussian initial parameter
	InitStdDev        ParamName = "InitStdDev"        // standard deviation of gaussian initial parameter
	BoldDriver        ParamName = "BoldDriver"        // adapt learning rate by bold driver
	Decay             ParamName = "Decay"             // learning rate decay per epoch
	NNeighbors        ParamName = "NNeighbors"        // number of neighbors
	Similarity        ParamName = "Similarity"        // similarity metric
	Shrinkage         ParamName = "Shrinkage"         // shrinkage of similarity by support
)

var paramNames = []ParamName{
	Lr, MaxLr, Reg, RegB, RegU, RegI, RegC, NEpochs, NFactors, NConditionFactors,
	RandomState, InitMean, InitStdDev, BoldDriver, Decay, NNeighbors, Similarity, Shrinkage,
}

// ParseParamName resolves a hyper-parameter name case-insensitively. Underscores are
// ignored, so "n_factors" resolves to NFactors.
func ParseParamName(name string) (ParamName, bool) {
	key := strings.ReplaceAll(strings.ToLower(name), "_", "")
	for _, paramName := range paramNames {
		if strings.ToLower(string(paramName)) == key {
			return paramName, true
		}
	}
	return "", false
}

// Params stores hyper-parameters for an model. It is a map between strings
// (names) and interface{}s (values). For example, hyper-parameters for CAMF_C
// is given by:
//
//	model.Params{
//		model.Lr:       0.02,
//		model.NEpochs:  100,
//		model.NFactors: 10,
//		model.Reg:      0.0001,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
// Floats suggested by hyper-parameter search are truncated.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int64:
			return int(val)
		case float64:
			return int(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int64"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetBool gets a bool parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "bool"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetFloat64 gets a float parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetFloat64(name ParamName, _default float64) float64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float64:
			return val
		case float32:
			return float64(val)
		case int:
			return float64(val)
		case int64:
			return float64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "float64"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetString gets a string parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "string"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

func (parameters Params) Overwrite(params Params) Params {
	merged := make(Params)
	for k, v := range parameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// ParamsGrid contains candidate for grid search.
type ParamsGrid map[ParamName][]interface{}

// Len returns the number of hyper-parameters in the grid.
func (grid ParamsGrid) Len() int {
	return len(grid)
}

// NumCombinations returns the number of parameter combinations in the grid.
func (grid ParamsGrid) NumCombinations() int {
	count := 1
	for _, values := range grid {
		count *= len(values)
	}
	return count
}
