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

	"github.com/spf13/cobra"

	"github.com/osrg/lookingglass/internal/pkg/config"
	"github.com/osrg/lookingglass/pkg/log"
)

var globalOpts struct {
	ConfigFile string
	ConfigType string
	Json       bool
	LogLevel   string
	LogPlain   bool
}

func newRootCmd() *cobra.Command {
	cobra.EnablePrefixMatching = true

	rootCmd := &cobra.Command{
		Use:           "lgnorm",
		Short:         "normalize looking glass bgp route responses",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.HelpFunc()(cmd, args)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalOpts.ConfigFile, "config-file", "f", "", "specifying a config file")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.ConfigType, "config-type", "t", "toml", "specifying config type (toml, yaml, json)")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Json, "json", "j", false, "use json format to output format")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.LogLevel, "log-level", "l", "warn", "specifying log level")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.LogPlain, "log-plain", "p", false, "use plain format for logging")

	rootCmd.AddCommand(newNormalizeCmd(), newRPKICmd(), newConfigCmd(), newVersionCmd())
	return rootCmd
}

func newLogger(cmd *cobra.Command) (log.Logger, error) {
	level, err := log.ParseLevel(globalOpts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", globalOpts.LogLevel, err)
	}
	logger := log.NewDefaultLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetPlain(globalOpts.LogPlain)
	logger.SetLevel(level)
	return logger, nil
}

func readConfig(logger log.Logger) (*config.Config, error) {
	if globalOpts.ConfigFile == "" {
		return config.Default(), nil
	}
	c, err := config.ReadConfigFile(globalOpts.ConfigFile, globalOpts.ConfigType)
	if err != nil {
		return nil, err
	}
	logger.Info("finished reading the config file",
		log.Fields{
			"Topic": "config",
			"File":  globalOpts.ConfigFile,
		})
	return c, nil
}
