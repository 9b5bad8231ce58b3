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

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ultiledger/go-qba/db"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/results"
	"github.com/ultiledger/go-qba/sim"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a parameter sweep",
	Long: `Run the configured number of shots for every value of the swept
parameter (m, traitors, noise or tolerance), store every shot in the
results database and print the summary of the experiment.`,
	Run: func(cmd *cobra.Command, args []string) {
		c, err := loadConfig()
		if err != nil {
			log.Fatal(err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		database, err := db.Open(c.DBBackend, c.DBPath)
		if err != nil {
			log.Fatalf("open database failed: %v", err)
		}
		defer database.Close()
		rm := results.NewManager(database)

		recs, err := sim.NewSweep(c).Run(ctx, rm)
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		if err := printSweep(c, recs); err != nil {
			log.Fatalf("print sweep failed: %v", err)
		}
	},
}

// printSweep prints one row per swept value.
func printSweep(c *sim.Config, recs []*results.Record) error {
	var values []float64
	groups := make(map[float64][]*results.Record)
	for _, r := range recs {
		if _, ok := groups[r.SweptValue]; !ok {
			values = append(values, r.SweptValue)
		}
		groups[r.SweptValue] = append(groups[r.SweptValue], r)
	}
	data := pterm.TableData{{c.SweepParameter, "Shots", "Agreement", "Validity", "Abstain"}}
	for _, v := range values {
		s := results.Summarize(c.ExperimentName(), groups[v])
		data = append(data, []string{
			fmt.Sprint(v),
			fmt.Sprint(s.Shots),
			fmt.Sprintf("%.2f", s.AgreementRate),
			fmt.Sprintf("%.2f", s.ValidityRate),
			fmt.Sprintf("%.2f", s.AbstainRate),
		})
	}
	pterm.DefaultSection.Println(c.ExperimentName())
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func init() {
	sweepCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "simulation config file")
	sweepCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(sweepCmd)
}
