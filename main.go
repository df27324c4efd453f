// This file is part of Sheet Server.
//
// Sheet Server is free software: you can redistribute it and/or modify it under the
// terms of the GNU Affero General Public License as published by the Free Software Foundation,
// either version 3 of the License, or (at your option) any later version.
//
// Sheet Server is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU General Public License along with Sheet Server.
// If not, see https://www.gnu.org/licenses/agpl-3.0.html
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"acb/sheet-server/cellvalue"
	"acb/sheet-server/files"
	"acb/sheet-server/formulas"
	"acb/sheet-server/users"
	"acb/sheet-server/workbook"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sheet-server",
		Short:        "Spreadsheet backend: IF formulas, aggregates, user files and random datasets",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd(), newEvalCmd(), newAggregateCmd(), newGenerateCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	var cfg config
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	}
	cfg.bindFlags(cmd.Flags())
	return cmd
}

func serve(cfg config) error {
	s := &server{files: files.NewStore(cfg.DataDir)}
	if cfg.DatabaseURL != "" {
		db, err := users.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		users.InitUsersTable(db)
		s.users = users.NewStore(db)
	} else {
		log.Println("No DATABASE_URL, account routes are disabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Listening on %s", cfg.Addr)
	return httpServer.ListenAndServe()
}

func newEvalCmd() *cobra.Command {
	var cellsJSON string
	cmd := &cobra.Command{
		Use:     "eval FORMULA",
		Short:   "Evaluate an IF formula",
		Example: `  sheet-server eval '=IF(A1>10,"High","Low")' --cells '{"A1": 15}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet := cellvalue.Sheet{}
			if cellsJSON != "" {
				if err := json.Unmarshal([]byte(cellsJSON), &sheet); err != nil {
					return err
				}
			}
			result, err := formulas.EvaluateFormula(args[0], sheet)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&cellsJSON, "cells", "", "Cell values as a JSON object")
	return cmd
}

func newAggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "aggregate OPERATION VALUE...",
		Short:   "Aggregate values with sum, average, min, max, count, round, abs or product",
		Example: `  sheet-server aggregate average 2 4 '{"value": 6}'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]cellvalue.Value, len(args)-1)
			for i, arg := range args[1:] {
				var raw any
				if err := json.Unmarshal([]byte(arg), &raw); err != nil {
					raw = arg
				}
				values[i] = cellvalue.FromAny(raw)
			}
			result, err := formulas.Aggregate(formulas.Operation(args[0]), values)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cellvalue.FormatNumber(result))
			return nil
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var rows int
	var outputPath string
	cmd := &cobra.Command{
		Use:   "generate SAMPLE.xlsx",
		Short: "Generate a random dataset from the numeric column ranges of a sample workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer sample.Close()

			f, err := workbook.Generate(sample, rows, newRand())
			if err != nil {
				return err
			}
			defer f.Close()
			if err := f.SaveAs(outputPath); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outputPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 10, fmt.Sprintf("Number of rows (at most %d)", workbook.MaxRows))
	cmd.Flags().StringVarP(&outputPath, "output", "o", "RandomDataset.xlsx", "Output file path")
	return cmd
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
