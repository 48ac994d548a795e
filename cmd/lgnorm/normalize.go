// Copyright (C) 2025 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/osrg/lookingglass/internal/pkg/metrics"
	"github.com/osrg/lookingglass/internal/pkg/table"
	"github.com/osrg/lookingglass/pkg/log"
	"github.com/osrg/lookingglass/pkg/normalizer"
)

var normalizeOpts struct {
	MetricsFile string
}

func readRawTables(path string, stdin io.Reader) ([]*table.RawTable, error) {
	if path == "-" {
		return table.DecodeRawTables(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l, err := table.DecodeRawTables(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func showRouteTable(w io.Writer, t *table.RouteTable) {
	fmt.Fprintf(w, "VRF: %s, Routes: %d, Winning weight: %s\n\n", t.VRF, t.Count, t.WinningWeight)

	maxPrefixLen := len("Network")
	maxNexthopLen := len("Next Hop")
	maxAsPathLen := len("AS_PATH")
	for _, r := range t.Routes {
		if len(r.Prefix) > maxPrefixLen {
			maxPrefixLen = len(r.Prefix)
		}
		if len(r.NextHop) > maxNexthopLen {
			maxNexthopLen = len(r.NextHop)
		}
		if l := len(formatAsPath(r.AsPath)); l > maxAsPathLen {
			maxAsPathLen = l
		}
	}

	format := fmt.Sprintf("%%-3s %%-%ds %%-%ds %%-%ds %%-12s %%-7s %%-7s %%-7s %%-11s %%s\n", maxPrefixLen, maxNexthopLen, maxAsPathLen)
	fmt.Fprintf(w, format, "", "Network", "Next Hop", "AS_PATH", "Age", "LocPrf", "MED", "Weight", "RPKI", "Communities")
	for _, r := range t.Routes {
		best := "*"
		if r.Active {
			best = "*>"
		}
		fmt.Fprintf(w, format, best, r.Prefix, r.NextHop, formatAsPath(r.AsPath), formatAge(r.Age),
			fmt.Sprint(r.LocalPreference), fmt.Sprint(r.Med), fmt.Sprint(r.Weight), r.RpkiState.String(),
			strings.Join(r.Communities, " "))
	}
}

func writeMetrics(path string, rec *metrics.Recorder) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics.NewCollector(rec)); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, registry)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	conf, err := readConfig(logger)
	if err != nil {
		return err
	}

	raws := make([]*table.RawTable, 0, len(args))
	for _, path := range args {
		l, err := readRawTables(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		raws = append(raws, l...)
	}

	rec := metrics.NewRecorder()
	n, err := normalizer.New(conf, normalizer.LoggerOption(logger), normalizer.MetricsOption(rec))
	if err != nil {
		return err
	}
	defer n.Close()

	t, err := n.Normalize(cmd.Context(), raws)
	if normalizeOpts.MetricsFile != "" {
		if merr := writeMetrics(normalizeOpts.MetricsFile, rec); merr != nil {
			logger.Warn("failed to write metrics",
				log.Fields{
					"Topic": "normalizer",
					"File":  normalizeOpts.MetricsFile,
					"Error": merr,
				})
		}
	}
	if err != nil {
		return err
	}

	if globalOpts.Json {
		return printJSON(cmd.OutOrStdout(), t)
	}
	showRouteTable(cmd.OutOrStdout(), t)
	return nil
}

func newNormalizeCmd() *cobra.Command {
	normalizeCmd := &cobra.Command{
		Use:   cmdNormalize + " FILE...",
		Short: "validate, filter and merge raw route tables",
		Long:  "Each FILE holds one raw route table or a list of them, - reads stdin. All tables are merged into one.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runNormalize,
	}
	normalizeCmd.Flags().StringVarP(&normalizeOpts.MetricsFile, "metrics-file", "", "", "write prometheus metrics to this file")
	return normalizeCmd
}
