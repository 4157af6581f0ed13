// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v7"
	"github.com/spf13/cobra"

	"github.com/lindb/zenith/config"
)

const (
	nodeCfgName        = "node.toml"
	defaultNodeCfgFile = currentDir + nodeCfgName
)

// newNodeCmd returns the node subcommand: run a node or write out a
// default config file.
func newNodeCmd() *cobra.Command {
	nodeCmd := &cobra.Command{
		Use:   "node",
		Short: "Run as a single cluster node",
	}
	nodeCmd.PersistentFlags().StringVar(&cfg, "config", "",
		fmt.Sprintf("node config file path, default is %s", defaultNodeCfgFile))
	nodeCmd.AddCommand(runNodeCmd, initializeNodeConfigCmd)
	return nodeCmd
}

var runNodeCmd = &cobra.Command{
	Use:   "run",
	Short: "starts a node",
	RunE:  serveNode,
}

var initializeNodeConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "create a new default node config",
	RunE: func(_ *cobra.Command, _ []string) error {
		path := cfg
		if path == "" {
			path = defaultNodeCfgFile
		}
		if err := checkExistenceOf(path); err != nil {
			return err
		}
		return os.WriteFile(path, []byte(config.NewDefaultNode().TOML()), 0o644)
	},
}

// loadNodeConfig reads path (or defaultNodeCfgFile) as TOML, then
// overlays any LINDB_* environment variables on top.
func loadNodeConfig(path string) (*config.Node, error) {
	nodeCfg := config.NewDefaultNode()
	if path == "" {
		path = defaultNodeCfgFile
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, nodeCfg); err != nil {
			return nil, fmt.Errorf("decode node config %s: %w", path, err)
		}
	}
	if err := env.Parse(nodeCfg); err != nil {
		return nil, fmt.Errorf("parse node config env overrides: %w", err)
	}
	if err := nodeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate node config: %w", err)
	}
	return nodeCfg, nil
}

func serveNode(_ *cobra.Command, _ []string) error {
	nodeCfg, err := loadNodeConfig(cfg)
	if err != nil {
		return err
	}

	ctx := newCtxWithSignals()
	runtime := NewRuntime(nodeCfg)
	return run(ctx, runtime)
}
