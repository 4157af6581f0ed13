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

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lindb/common/pkg/ltoml"
)

var defaultParentDir = "/tmp/zenith"

// Paths represents the filesystem layout a node is constructed from once
// at startup: home, data, logs, repo and shared-data directories plus the
// pidfile path. The core never interprets these beyond passing them to
// the collaborators that own persistence/logging.
type Paths struct {
	Home       string   `env:"HOME" toml:"home"`
	Data       []string `env:"DATA" toml:"data"`
	Logs       string   `env:"LOGS" toml:"logs"`
	Repo       []string `env:"REPO" toml:"repo"`
	SharedData string   `env:"SHARED_DATA" toml:"shared-data"`
	PIDFile    string   `env:"PIDFILE" toml:"pidfile"`
}

// NewDefaultPaths returns a node's default paths rooted under defaultParentDir.
func NewDefaultPaths() *Paths {
	return &Paths{
		Home:       defaultParentDir,
		Data:       []string{filepath.Join(defaultParentDir, "data")},
		Logs:       filepath.Join(defaultParentDir, "logs"),
		SharedData: "",
		PIDFile:    filepath.Join(defaultParentDir, "zenith.pid"),
	}
}

// TOML returns Paths's toml config string.
func (p *Paths) TOML() string {
	return fmt.Sprintf(`
## Path settings.
[paths]
## the node's root working directory.
## Default: %s
## Env: LINDB_PATH_HOME
home = "%s"
## directories data is written under.
## Default: %s
## Env: LINDB_PATH_DATA
data = [%s]
## directory log files are written under.
## Default: %s
## Env: LINDB_PATH_LOGS
logs = "%s"`,
		p.Home, p.Home,
		strings.Join(p.Data, ","), quoteAll(p.Data),
		p.Logs, p.Logs,
	)
}

// Validate returns an error if home is unset, defaulting other blank
// fields that derive from it.
func (p *Paths) Validate() error {
	if p.Home == "" {
		return fmt.Errorf("path.home cannot be empty")
	}
	if len(p.Data) == 0 {
		p.Data = []string{filepath.Join(p.Home, "data")}
	}
	if p.Logs == "" {
		p.Logs = filepath.Join(p.Home, "logs")
	}
	return nil
}

// RepoState represents the durable coordinator KV endpoint configuration
// backing pkg/state.Repository, the persisted per-index metadata store.
type RepoState struct {
	Endpoints []string       `env:"ENDPOINTS" toml:"endpoints"`
	Timeout   ltoml.Duration `env:"TIMEOUT" toml:"timeout"`
	Namespace string         `env:"NAMESPACE" toml:"namespace"`
}

// TOML returns RepoState's toml config string.
func (r *RepoState) TOML() string {
	return fmt.Sprintf(`
## Coordinator related configuration.
[coordinator]
## endpoints of the durable repository backing cluster-state persistence.
## Default: %s
## Env: LINDB_COORDINATOR_ENDPOINTS
endpoints = [%s]
## request timeout talking to the repository.
## Default: %s
## Env: LINDB_COORDINATOR_TIMEOUT
timeout = "%s"
## namespace all keys are prefixed with.
## Default: %s
## Env: LINDB_COORDINATOR_NAMESPACE
namespace = "%s"`,
		strings.Join(r.Endpoints, ","), quoteAll(r.Endpoints),
		r.Timeout, r.Timeout,
		r.Namespace, r.Namespace,
	)
}

func quoteAll(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ",")
}

// NewDefaultRepoState returns a default RepoState.
func NewDefaultRepoState() *RepoState {
	return &RepoState{
		Endpoints: []string{"127.0.0.1:2379"},
		Timeout:   ltoml.Duration(time.Second * 5),
		Namespace: "/zenith",
	}
}

// Transport carries the local node's advertised address for the
// grpc-backed join/join-validate/leave endpoints.
type Transport struct {
	HostIP   string `env:"HOST_IP" toml:"host-ip"`
	GRPCPort uint32 `env:"GRPC_PORT" toml:"grpc-port"`
}

// TOML returns Transport's toml config string.
func (t *Transport) TOML() string {
	return fmt.Sprintf(`
## Membership transport configuration.
[transport]
## address other nodes dial this node at.
## Default: %s
## Env: LINDB_TRANSPORT_HOST_IP
host-ip = "%s"
## grpc port the membership server listens on.
## Default: %d
## Env: LINDB_TRANSPORT_GRPC_PORT
grpc-port = %d`,
		t.HostIP, t.HostIP,
		t.GRPCPort, t.GRPCPort,
	)
}

// NewDefaultTransport returns a default Transport config.
func NewDefaultTransport() *Transport {
	return &Transport{HostIP: "127.0.0.1", GRPCPort: 9500}
}

// Election carries the timeout and quorum size governing the
// accumulating master election.
type Election struct {
	MasterElectionTimeout ltoml.Duration `env:"MASTER_ELECTION_TIMEOUT" toml:"master-election-timeout"`
	RequiredMasterJoins   int            `env:"REQUIRED_MASTER_JOINS" toml:"required-master-joins"`
}

// TOML returns Election's toml config string.
func (e *Election) TOML() string {
	return fmt.Sprintf(`
## Master election related configuration.
[election]
## how long a master-eligible node waits to accumulate required-master-joins.
## Default: %s
## Env: LINDB_ELECTION_MASTER_ELECTION_TIMEOUT
master-election-timeout = "%s"
## number of distinct master-eligible joins needed before promotion.
## Default: %d
## Env: LINDB_ELECTION_REQUIRED_MASTER_JOINS
required-master-joins = %d`,
		e.MasterElectionTimeout, e.MasterElectionTimeout,
		e.RequiredMasterJoins, e.RequiredMasterJoins,
	)
}

// NewDefaultElection returns a default Election config.
func NewDefaultElection() *Election {
	return &Election{
		MasterElectionTimeout: ltoml.Duration(time.Second * 30),
		RequiredMasterJoins:   1,
	}
}

// Write carries the timeouts/limits governing bulk primary/replica
// execution and mapping publication.
type Write struct {
	MappingUpdateTimeout ltoml.Duration `env:"MAPPING_UPDATE_TIMEOUT" toml:"mapping-update-timeout"`
	MappingAckTimeout    ltoml.Duration `env:"MAPPING_ACK_TIMEOUT" toml:"mapping-ack-timeout"`
	TransportTimeout     ltoml.Duration `env:"TRANSPORT_TIMEOUT" toml:"transport-timeout"`
	DefaultRetryOnConflict int          `env:"DEFAULT_RETRY_ON_CONFLICT" toml:"default-retry-on-conflict"`
}

// TOML returns Write's toml config string.
func (w *Write) TOML() string {
	return fmt.Sprintf(`
## Bulk write related configuration.
[write]
## how long a mapping update may take to propagate before the item fails.
## Default: %s
## Env: LINDB_WRITE_MAPPING_UPDATE_TIMEOUT
mapping-update-timeout = "%s"
## how long a mapping publication waits for every node to ack.
## Default: %s
## Env: LINDB_WRITE_MAPPING_ACK_TIMEOUT
mapping-ack-timeout = "%s"
## timeout applied to inter-node transport calls.
## Default: %s
## Env: LINDB_WRITE_TRANSPORT_TIMEOUT
transport-timeout = "%s"
## default number of conflict retries when an item does not set its own.
## Default: %d
## Env: LINDB_WRITE_DEFAULT_RETRY_ON_CONFLICT
default-retry-on-conflict = %d`,
		w.MappingUpdateTimeout, w.MappingUpdateTimeout,
		w.MappingAckTimeout, w.MappingAckTimeout,
		w.TransportTimeout, w.TransportTimeout,
		w.DefaultRetryOnConflict, w.DefaultRetryOnConflict,
	)
}

// NewDefaultWrite returns a default Write config.
func NewDefaultWrite() *Write {
	return &Write{
		MappingUpdateTimeout:   ltoml.Duration(time.Second * 30),
		MappingAckTimeout:      ltoml.Duration(time.Second * 30),
		TransportTimeout:       ltoml.Duration(time.Second * 10),
		DefaultRetryOnConflict: 0,
	}
}

// Node is the root configuration a zenith process loads at startup,
// combining path layout, repository endpoints, transport, election and
// write settings. It carries no logging settings.
type Node struct {
	Paths       Paths     `envPrefix:"LINDB_PATH_" toml:"paths"`
	Coordinator RepoState `envPrefix:"LINDB_COORDINATOR_" toml:"coordinator"`
	Transport   Transport `envPrefix:"LINDB_TRANSPORT_" toml:"transport"`
	Election    Election  `envPrefix:"LINDB_ELECTION_" toml:"election"`
	Write       Write     `envPrefix:"LINDB_WRITE_" toml:"write"`
}

// TOML returns Node's full toml config string, concatenating each
// section's own TOML() into one document.
func (n *Node) TOML() string {
	return n.Paths.TOML() + n.Coordinator.TOML() + n.Transport.TOML() + n.Election.TOML() + n.Write.TOML()
}

// NewDefaultNode returns the default node configuration.
func NewDefaultNode() *Node {
	return &Node{
		Paths:       *NewDefaultPaths(),
		Coordinator: *NewDefaultRepoState(),
		Transport:   *NewDefaultTransport(),
		Election:    *NewDefaultElection(),
		Write:       *NewDefaultWrite(),
	}
}

// Validate validates and fills in defaults for the node configuration,
// defaulting any blank or zero section to its default value.
func (n *Node) Validate() error {
	if err := n.Paths.Validate(); err != nil {
		return err
	}
	defaults := NewDefaultNode()
	if len(n.Coordinator.Endpoints) == 0 {
		n.Coordinator.Endpoints = defaults.Coordinator.Endpoints
	}
	if n.Coordinator.Timeout <= 0 {
		n.Coordinator.Timeout = defaults.Coordinator.Timeout
	}
	if n.Election.MasterElectionTimeout <= 0 {
		n.Election.MasterElectionTimeout = defaults.Election.MasterElectionTimeout
	}
	if n.Election.RequiredMasterJoins <= 0 {
		n.Election.RequiredMasterJoins = defaults.Election.RequiredMasterJoins
	}
	if n.Write.MappingUpdateTimeout <= 0 {
		n.Write.MappingUpdateTimeout = defaults.Write.MappingUpdateTimeout
	}
	if n.Write.MappingAckTimeout <= 0 {
		n.Write.MappingAckTimeout = defaults.Write.MappingAckTimeout
	}
	if n.Write.TransportTimeout <= 0 {
		n.Write.TransportTimeout = defaults.Write.TransportTimeout
	}
	if n.Transport.HostIP == "" {
		n.Transport.HostIP = defaults.Transport.HostIP
	}
	if n.Transport.GRPCPort == 0 {
		n.Transport.GRPCPort = defaults.Transport.GRPCPort
	}
	return nil
}
