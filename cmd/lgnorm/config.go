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

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/osrg/lookingglass/internal/pkg/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   cmdConfig,
		Short: "show configuration",
	}

	exampleCmd := &cobra.Command{
		Use:   cmdExample,
		Short: "print an example configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Example()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), s)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   cmdShow,
		Short: "print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			c, err := readConfig(logger)
			if err != nil {
				return err
			}
			if globalOpts.Json {
				return printJSON(cmd.OutOrStdout(), c)
			}
			pretty.Fprintf(cmd.OutOrStdout(), "%# v\n", c)
			return nil
		},
	}

	configCmd.AddCommand(exampleCmd, showCmd)
	return configCmd
}
