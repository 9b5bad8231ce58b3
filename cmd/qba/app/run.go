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
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ultiledger/go-qba/db"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/results"
	"github.com/ultiledger/go-qba/sim"
	"github.com/ultiledger/go-qba/types"
)

var save bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a single game",
	Long: `Play one game with the players described in the config file and print
the decisions of every lieutenant. With --save the shot is stored in the
configured results database.`,
	Run: func(cmd *cobra.Command, args []string) {
		c, err := loadConfig()
		if err != nil {
			log.Fatal(err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out, err := sim.NewSimulation(c).Run(ctx)
		if err != nil && !errors.Is(err, sim.ErrStalled) {
			log.Fatalf("run game failed: %v", err)
		}
		if err != nil {
			log.Warn(err)
		}
		if err := printOutcome(c, out); err != nil {
			log.Fatalf("print outcome failed: %v", err)
		}
		if !save {
			return
		}
		database, err := db.Open(c.DBBackend, c.DBPath)
		if err != nil {
			log.Fatalf("open database failed: %v", err)
		}
		defer database.Close()
		rm := results.NewManager(database)
		experiment := c.ExperimentName()
		shot := 0
		if recs, err := rm.List(database, experiment); err == nil && len(recs) > 0 {
			shot = recs[len(recs)-1].ShotID + 1
		}
		if err := rm.Save(database, out.Record(experiment, shot, "", 0)); err != nil {
			log.Fatalf("save record failed: %v", err)
		}
		log.Infow("saved shot", "experiment", experiment, "shot", shot)
	},
}

func colorDecision(d types.Decision) string {
	switch d {
	case types.AcceptTrue:
		return pterm.LightGreen(d.String())
	case types.AcceptFalse:
		return pterm.LightRed(d.String())
	default:
		return pterm.Gray(d.String())
	}
}

// printOutcome shows the orders and every lieutenant's decisions.
func printOutcome(c *sim.Config, out *sim.Outcome) error {
	traitor := "loyal"
	if out.CommanderIsTraitor {
		traitor = pterm.LightRed("TRAITOR")
	}
	pterm.DefaultBox.WithTitle(pterm.LightYellow("|GAME|")).WithTitleTopCenter().Println(
		fmt.Sprintf("commander %s is %s\nM=%d N=%d tolerance=%d",
			c.Protocol.CommanderName(), traitor, out.M, out.N, c.Protocol.Tolerance()))

	data := pterm.TableData{{"Lieutenant", "Traitor", "Order", "Initial", "Intermediate", "Final", "Round"}}
	for i, r := range out.Reports {
		isTraitor := "no"
		if r.IsTraitor {
			isTraitor = pterm.LightRed("yes")
		}
		data = append(data, []string{
			r.Name,
			isTraitor,
			fmt.Sprint(out.Orders[i]),
			colorDecision(r.InitialDecision),
			colorDecision(r.IntermediateDecision),
			colorDecision(r.FinalDecision),
			r.Round,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	valid, applicable := out.Validity()
	validity := "n/a"
	if applicable {
		validity = fmt.Sprint(valid)
	}
	fp, err := out.Fingerprint()
	if err != nil {
		return err
	}
	pterm.Printfln("agreement: %v  validity: %s  fingerprint: %s", out.Agreement(), validity, fp)
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "simulation config file")
	runCmd.MarkFlagRequired("config")
	runCmd.Flags().BoolVarP(&save, "save", "s", false, "store the shot in the results database")
	rootCmd.AddCommand(runCmd)
}
