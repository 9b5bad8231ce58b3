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
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ultiledger/go-qba/consensus"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/results"
	"github.com/ultiledger/go-qba/util"
)

// Sweep runs a number of shots for every value of one parameter and
// stores a record per shot.
type Sweep struct {
	cfg    *Config
	opts   []Option
	logger *zap.SugaredLogger
}

type job struct {
	shot  int
	value float64
	cfg   *Config
}

func NewSweep(cfg *Config, opts ...Option) *Sweep {
	return &Sweep{
		cfg:    cfg,
		opts:   opts,
		logger: log.Named("sweep"),
	}
}

// configFor derives the configuration of one shot. Sweeping m resets
// the tolerance to its default for that m, sweeping noise switches to
// the random source and sweeping traitors draws a fresh traitor set
// for every shot.
func (s *Sweep) configFor(value float64, shot int) (*Config, error) {
	c := s.cfg.clone()
	c.Seed = s.cfg.Seed + uint64(shot)
	p := c.Protocol
	switch c.SweepParameter {
	case SweepM:
		m := int(value)
		protocol, err := consensus.NewConfig(p.CommanderName(), p.LieutenantNames(), m, consensus.DefaultTolerance(m))
		if err != nil {
			return nil, err
		}
		c.Protocol = protocol
	case SweepTolerance:
		protocol, err := consensus.NewConfig(p.CommanderName(), p.LieutenantNames(), p.Tuples(), int(value))
		if err != nil {
			return nil, err
		}
		c.Protocol = protocol
	case SweepNoise:
		if value < 0 || value > 1 {
			return nil, fmt.Errorf("noise %v out of range [0,1]", value)
		}
		c.Source = "random"
		c.Noise = value
	case SweepTraitors:
		n := int(value)
		if n < 0 || n > p.Lieutenants() {
			return nil, fmt.Errorf("cannot pick %d traitors among %d lieutenants", n, p.Lieutenants())
		}
		rng := rand.New(rand.NewPCG(c.Seed, uint64(n)))
		c.TraitorIndices = rng.Perm(p.Lieutenants())[:n]
		sort.Ints(c.TraitorIndices)
	}
	// parallel grpc games must not share ports
	c.GRPCBasePort = s.cfg.GRPCBasePort + shot*c.Protocol.Players()
	return c, nil
}

func (s *Sweep) jobs() ([]job, error) {
	values := s.cfg.SweepValues
	param := s.cfg.SweepParameter
	if len(values) == 0 {
		// a plain batch of shots
		values = []float64{0}
		param = ""
	}
	var jobs []job
	for _, v := range values {
		for i := 0; i < s.cfg.Shots; i++ {
			shot := len(jobs)
			var c *Config
			if param == "" {
				c = s.cfg.clone()
				c.Seed = s.cfg.Seed + uint64(shot)
				c.GRPCBasePort = s.cfg.GRPCBasePort + shot*c.Protocol.Players()
			} else {
				var err error
				if c, err = s.configFor(v, shot); err != nil {
					return nil, err
				}
			}
			jobs = append(jobs, job{shot: shot, value: v, cfg: c})
		}
	}
	return jobs, nil
}

// Run plays every shot with at most Workers games at a time and saves
// all records in one transaction. Stalled shots are recorded with the
// decisions reached so far.
func (s *Sweep) Run(ctx context.Context, mgr *results.Manager) ([]*results.Record, error) {
	jobs, err := s.jobs()
	if err != nil {
		return nil, err
	}
	param := s.cfg.SweepParameter
	if len(s.cfg.SweepValues) == 0 {
		param = ""
	}

	experiment := s.cfg.ExperimentName()
	records := make([]*results.Record, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(util.MinInt(s.cfg.Workers, len(jobs)))
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			out, err := NewSimulation(j.cfg, s.opts...).Run(gctx)
			if err != nil && !errors.Is(err, ErrStalled) {
				return fmt.Errorf("shot %d failed: %w", j.shot, err)
			}
			if err != nil {
				s.logger.Warnw("shot stalled", "shot", j.shot, "err", err)
			}
			records[j.shot] = out.Record(experiment, j.shot, param, j.value)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := mgr.SaveAll(records); err != nil {
		return nil, err
	}
	s.logger.Infow("sweep finished", "experiment", experiment, "shots", len(records), "parameter", param)
	return records, nil
}
