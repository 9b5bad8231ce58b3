// Copyright 2019 The go-ultiledger Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sim

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/spf13/viper"

	"github.com/ultiledger/go-qba/codec"
	"github.com/ultiledger/go-qba/consensus"
	"github.com/ultiledger/go-qba/crypto"
	"github.com/ultiledger/go-qba/entangle"
)

const (
	TransportMemory = "memory"
	TransportGRPC   = "grpc"
)

// Parameters a sweep can vary.
const (
	SweepM         = "m"
	SweepTraitors  = "traitors"
	SweepNoise     = "noise"
	SweepTolerance = "tolerance"
)

// Defaults returns every configuration key with its default value.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"commander_name":       "Alice",
		"lieutenant_names":     []string{"Bob", "Charlie", "David"},
		"m":                    50,
		"tolerance":            -1,
		"traitor_indices":      []int{},
		"commander_is_traitor": false,
		"loyal_order":          true,
		"commander_orders":     []bool{},
		"commander_corrupt":    []int{},
		"traitor_strategy":     string(consensus.StrategyRandom),
		"source":               "random",
		"seed":                 1,
		"noise":                0.0,
		"transport":            TransportMemory,
		"latency":              "0s",
		"grpc_host":            "127.0.0.1",
		"grpc_base_port":       19700,
		"deadline":             "10s",
		"db_backend":           "boltdb",
		"db_path":              "qba.db",
		"experiment":           "",
		"shots":                1,
		"sweep_parameter":      SweepM,
		"sweep_values":         []float64{},
		"workers":              4,
	}
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}
}

// Config holds the simulation settings.
type Config struct {
	// protocol level settings shared by all players
	Protocol consensus.Config

	TraitorIndices     []int
	CommanderIsTraitor bool
	LoyalOrder         bool
	// explicit orders of a traitor commander, random when empty
	CommanderOrders []bool
	// lieutenants receiving a corrupted command vector
	CommanderCorrupt []int
	TraitorStrategy  consensus.Strategy

	// correlated randomness
	Source string
	Seed   uint64
	Noise  float64

	Transport    string
	Latency      time.Duration
	GRPCHost     string
	GRPCBasePort int
	// time after which a run counts as stalled
	Deadline time.Duration

	DBBackend string
	DBPath    string

	// experiment and sweep settings
	Experiment     string
	Shots          int
	SweepParameter string
	SweepValues    []float64
	Workers        int
}

func NewConfig(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	m := v.GetInt("m")
	tol := v.GetInt("tolerance")
	if tol < 0 {
		tol = consensus.DefaultTolerance(m)
	}
	protocol, err := consensus.NewConfig(v.GetString("commander_name"), v.GetStringSlice("lieutenant_names"), m, tol)
	if err != nil {
		return nil, err
	}
	lts := protocol.Lieutenants()

	traitors, err := parseIndices("traitor_indices", v.GetIntSlice("traitor_indices"), lts)
	if err != nil {
		return nil, err
	}
	corrupt, err := parseIndices("commander_corrupt", v.GetIntSlice("commander_corrupt"), lts)
	if err != nil {
		return nil, err
	}
	isTraitor := v.GetBool("commander_is_traitor")
	if len(corrupt) > 0 && !isTraitor {
		return nil, errors.New("commander corruption requires a traitor commander")
	}

	orders, err := parseOrders(v.Get("commander_orders"))
	if err != nil {
		return nil, err
	}
	if len(orders) > 0 {
		if !isTraitor {
			return nil, errors.New("explicit commander orders require a traitor commander")
		}
		if len(orders) != lts {
			return nil, fmt.Errorf("%d commander orders for %d lieutenants", len(orders), lts)
		}
	}

	strategy, err := consensus.ParseStrategy(v.GetString("traitor_strategy"))
	if err != nil {
		return nil, err
	}

	seed := v.GetUint64("seed")
	noise := v.GetFloat64("noise")
	if _, err := entangle.New(v.GetString("source"), seed, noise); err != nil {
		return nil, err
	}

	transport := v.GetString("transport")
	if transport != TransportMemory && transport != TransportGRPC {
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
	deadline := v.GetDuration("deadline")
	if deadline <= 0 {
		return nil, errors.New("deadline must be positive")
	}
	if v.GetString("db_backend") == "" {
		return nil, errors.New("db backend is empty")
	}
	if v.GetString("db_path") == "" {
		return nil, errors.New("db path is empty")
	}
	if v.GetInt("shots") < 1 {
		return nil, errors.New("shots must be positive")
	}
	if v.GetInt("workers") < 1 {
		return nil, errors.New("workers must be positive")
	}

	var sweepValues []float64
	for _, s := range v.GetStringSlice("sweep_values") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse sweep value %q failed: %v", s, err)
		}
		sweepValues = append(sweepValues, f)
	}
	param := v.GetString("sweep_parameter")
	switch param {
	case SweepM, SweepTraitors, SweepNoise, SweepTolerance:
	default:
		return nil, fmt.Errorf("unknown sweep parameter %q", param)
	}

	c := &Config{
		Protocol:           protocol,
		TraitorIndices:     traitors,
		CommanderIsTraitor: isTraitor,
		LoyalOrder:         v.GetBool("loyal_order"),
		CommanderOrders:    orders,
		CommanderCorrupt:   corrupt,
		TraitorStrategy:    strategy,
		Source:             v.GetString("source"),
		Seed:               seed,
		Noise:              noise,
		Transport:          transport,
		Latency:            v.GetDuration("latency"),
		GRPCHost:           v.GetString("grpc_host"),
		GRPCBasePort:       v.GetInt("grpc_base_port"),
		Deadline:           deadline,
		DBBackend:          v.GetString("db_backend"),
		DBPath:             v.GetString("db_path"),
		Experiment:         v.GetString("experiment"),
		Shots:              v.GetInt("shots"),
		SweepParameter:     param,
		SweepValues:        sweepValues,
		Workers:            v.GetInt("workers"),
	}
	return c, nil
}

// parseIndices checks that every index names a lieutenant and
// appears once.
func parseIndices(key string, indices []int, lts int) ([]int, error) {
	seen := mapset.NewSet()
	for _, i := range indices {
		if i < 0 || i >= lts {
			return nil, fmt.Errorf("%s: index %d out of range [0,%d)", key, i, lts)
		}
		if !seen.Add(i) {
			return nil, fmt.Errorf("%s: duplicate index %d", key, i)
		}
	}
	return append([]int(nil), indices...), nil
}

// parseOrders accepts a list of booleans from code or a config file.
func parseOrders(raw interface{}) ([]bool, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []bool:
		return append([]bool(nil), v...), nil
	case []interface{}:
		orders := make([]bool, 0, len(v))
		for _, o := range v {
			switch b := o.(type) {
			case bool:
				orders = append(orders, b)
			case string:
				pb, err := strconv.ParseBool(b)
				if err != nil {
					return nil, fmt.Errorf("parse commander order %q failed: %v", b, err)
				}
				orders = append(orders, pb)
			default:
				return nil, fmt.Errorf("invalid commander order %v", o)
			}
		}
		return orders, nil
	default:
		return nil, fmt.Errorf("invalid commander orders %v", raw)
	}
}

// IsTraitor reports whether lieutenant i is configured as a traitor.
func (c *Config) IsTraitor(i int) bool {
	for _, t := range c.TraitorIndices {
		if t == i {
			return true
		}
	}
	return false
}

// ExperimentName returns the configured experiment name, or one
// derived from the settings that shape the results.
func (c *Config) ExperimentName() string {
	if c.Experiment != "" {
		return c.Experiment
	}
	key := struct {
		Lieutenants []string
		M           int
		Tolerance   int
		Traitors    []int
		Commander   bool
		Strategy    string
		Source      string
		Seed        uint64
		Noise       float64
		Parameter   string
		Values      []float64
	}{
		c.Protocol.LieutenantNames(), c.Protocol.Tuples(), c.Protocol.Tolerance(),
		c.TraitorIndices, c.CommanderIsTraitor, string(c.TraitorStrategy),
		c.Source, c.Seed, c.Noise, c.SweepParameter, c.SweepValues,
	}
	b, err := codec.Encode(key)
	if err != nil {
		return "experiment"
	}
	return "exp-" + crypto.ShortHash(b)
}

// clone copies c so that a sweep can vary one parameter per shot.
func (c *Config) clone() *Config {
	cc := *c
	cc.TraitorIndices = append([]int(nil), c.TraitorIndices...)
	cc.CommanderOrders = append([]bool(nil), c.CommanderOrders...)
	cc.CommanderCorrupt = append([]int(nil), c.CommanderCorrupt...)
	cc.SweepValues = append([]float64(nil), c.SweepValues...)
	return &cc
}
