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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/sim"
)

var output string

var genconfigCmd = &cobra.Command{
	Use:   "genconfig",
	Short: "Generate a sample config file",
	Long: `Generate a config file holding every key with its default value. A
negative tolerance means M/10.`,
	Run: func(cmd *cobra.Command, args []string) {
		b, err := yaml.Marshal(sim.Defaults())
		if err != nil {
			log.Fatalf("encode config failed: %v", err)
		}
		if output == "" {
			fmt.Print(string(b))
			return
		}
		if err := os.WriteFile(output, b, 0644); err != nil {
			log.Fatalf("write config to %s failed: %v", output, err)
		}
	},
}

func init() {
	genconfigCmd.Flags().StringVarP(&output, "output", "o", "", "write the config to this file instead of stdout")
	rootCmd.AddCommand(genconfigCmd)
}
