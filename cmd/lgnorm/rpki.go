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

	"github.com/osrg/lookingglass/pkg/normalizer"
	"github.com/osrg/lookingglass/pkg/rpki"
)

func validateOrigin(cmd *cobra.Command, args []string) error {
	asn, err := parseASN(args[1])
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	conf, err := readConfig(logger)
	if err != nil {
		return err
	}
	v, err := normalizer.NewValidator(conf, normalizer.LoggerOption(logger))
	if err != nil {
		return err
	}
	defer v.Close()

	state := v.Validate(cmd.Context(), args[0], asn)
	if globalOpts.Json {
		return printJSON(cmd.OutOrStdout(), struct {
			Prefix    string               `json:"prefix"`
			Asn       int                  `json:"asn"`
			RpkiState rpki.ValidationState `json:"rpki_state"`
			State     string               `json:"state"`
		}{args[0], asn, state, state.String()})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s AS%d: %s\n", args[0], asn, state)
	return nil
}

func newRPKICmd() *cobra.Command {
	rpkiCmd := &cobra.Command{
		Use:   cmdRPKI,
		Short: "query the configured rpki backend",
	}
	validateCmd := &cobra.Command{
		Use:   cmdValidate + " PREFIX ASN",
		Short: "validate the origin of a prefix",
		Args:  cobra.ExactArgs(2),
		RunE:  validateOrigin,
	}
	rpkiCmd.AddCommand(validateCmd)
	return rpkiCmd
}
