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
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ultiledger/go-qba/cmd/qba/service"
	"github.com/ultiledger/go-qba/db"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/results"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored results over http",
	Long:  `Serve a http server answering queries about stored experiments`,
	Run: func(cmd *cobra.Command, args []string) {
		database, err := db.Open(viper.GetString("db_backend"), viper.GetString("db_path"))
		if err != nil {
			log.Fatalf("open database failed: %v", err)
		}
		defer database.Close()
		handler := service.NewHandler(database, results.NewManager(database))
		server := &http.Server{
			Addr:    viper.GetString("addr"),
			Handler: handler,
		}
		log.Infof("start to serve http server on %s", server.Addr)
		log.Fatal(server.ListenAndServe())
	},
}

func init() {
	serveCmd.Flags().StringP("addr", "", ":8080", "network address")
	serveCmd.Flags().StringP("db_backend", "", "boltdb", "results database backend")
	serveCmd.Flags().StringP("db_path", "", "qba.db", "results database path")
	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("db_backend", serveCmd.Flags().Lookup("db_backend"))
	viper.BindPFlag("db_path", serveCmd.Flags().Lookup("db_path"))

	rootCmd.AddCommand(serveCmd)
}
