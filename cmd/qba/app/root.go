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
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/ultiledger/go-qba/db/boltdb"
	_ "github.com/ultiledger/go-qba/db/memdb"
	_ "github.com/ultiledger/go-qba/db/sqlitedb"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/sim"
)

var rootCmd = &cobra.Command{
	Use:   "qba",
	Short: "Byzantine agreement from correlated random bits",
	Long: `qba simulates a commander and its lieutenants reaching agreement with
evidence taken from pre-shared correlated bits instead of signatures.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("debug") {
			log.OpenDebug()
		}
		if path := viper.GetString("log_file"); path != "" {
			if err := log.Initialize(path); err != nil {
				log.Fatalf("open log file failed: %v", err)
			}
		}
	},
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "log rule firings")
	rootCmd.PersistentFlags().StringP("log_file", "", "", "also write the log to this file")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log_file"))
}

// Execute runs the root command.
func Execute() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the simulation config from the --config file.
func loadConfig() (*sim.Config, error) {
	if cfgFile == "" {
		return nil, errors.New("config file not provided")
	}
	v := viper.New()
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return sim.NewConfig(v)
}
