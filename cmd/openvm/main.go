// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osrm/openvm/pkg/continuation"
	"github.com/osrm/openvm/pkg/memory"
	"github.com/osrm/openvm/pkg/schema"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	//
	traceCmd.Flags().Uint("word-size", 4, "field elements per word")
	traceCmd.Flags().Uint("chunk-size", 8, "words per equipartition chunk")
	traceCmd.Flags().Bool("persistent", false, "enable Merkle-committed memory")
	traceCmd.Flags().Uint("segments", 1, "number of continuation segments")
	traceCmd.Flags().Uint("ops", 256, "memory operations per segment")
	traceCmd.Flags().Int64("seed", 0, "workload seed")
	//
	rootCmd.AddCommand(traceCmd)
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "openvm",
	Short: "Memory-consistency trace driver for the openvm proving stack.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Execute a demo workload and report the generated traces.",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			wordSize, _   = cmd.Flags().GetUint("word-size")
			chunkSize, _  = cmd.Flags().GetUint("chunk-size")
			persistent, _ = cmd.Flags().GetBool("persistent")
			segments, _   = cmd.Flags().GetUint("segments")
			ops, _        = cmd.Flags().GetUint("ops")
			seed, _       = cmd.Flags().GetInt64("seed")
		)
		//
		cfg := memory.Config{
			WordSize:      wordSize,
			SpaceBits:     3,
			AddressBits:   16,
			TimestampBits: 29,
			Persistent:    persistent,
			ChunkSize:     chunkSize,
		}
		//
		if err := runTrace(cfg, segments, ops, seed); err != nil {
			log.Fatal(err)
		}
	},
}

func runTrace(cfg memory.Config, segments uint, ops uint, seed int64) error {
	machine, err := continuation.NewMachine(cfg, 16)
	if err != nil {
		return err
	}
	//
	var prev *continuation.Result
	//
	for s := uint(0); s < segments; s++ {
		executor := newDemoExecutor(machine.Controller(), ops, seed+int64(s))
		//
		if err := machine.Register(schema.Executor, executor); err != nil {
			return err
		}
		//
		if err := executor.Execute(); err != nil {
			return err
		}
		//
		traces, err := machine.BuildTraces()
		if err != nil {
			return err
		}
		//
		for name, matrix := range traces {
			log.Infof("segment %d: chip %s emitted %d x %d trace", s, name, matrix.Height(), matrix.Width())
		}
		//
		result, err := machine.NextSegment()
		if err != nil {
			return err
		}
		//
		if prev != nil {
			if err := continuation.VerifyLink(prev, result); err != nil {
				return err
			}
		}
		//
		if cfg.Persistent {
			fmt.Printf("segment %d digest: %s\n", s, result.FinalDigest.String())
		} else {
			fmt.Printf("segment %d boundary commitment: %x\n", s, result.Commitment)
		}
		//
		prev = result
	}
	//
	return nil
}
