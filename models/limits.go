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

package models

import (
	"fmt"
	"sync"
)

var (
	globalLimits  sync.Map
	defaultLimits = NewDefaultLimits()
)

// GetIndexLimits returns the limits in effect for the given index name,
// falling back to the cluster-wide default when no per-index override
// has been set.
func GetIndexLimits(index string) *Limits {
	limits, ok := globalLimits.Load(index)
	if ok {
		return limits.(*Limits)
	}
	return defaultLimits
}

// SetIndexLimits installs a per-index override, replacing any previous one.
func SetIndexLimits(index string, limits *Limits) {
	globalLimits.Store(index, limits)
}

// Limits bounds the shape of an index's mapping and the requests it will
// accept; can describe either the cluster-wide default or a per-index
// override loaded from toml config.
type Limits struct {
	MaxIndexNameLength  int `toml:"max-index-name-length"`
	MaxFieldNameLength  int `toml:"max-field-name-length"`
	MaxFieldsPerMapping int `toml:"max-fields-per-mapping"`
	MaxShardsPerIndex   int `toml:"max-shards-per-index"`
	MaxBulkActions      int `toml:"max-bulk-actions"`
	MaxBulkSizeBytes    int `toml:"max-bulk-size-bytes"`
	MaxRetryOnConflict  int `toml:"max-retry-on-conflict"`
}

// NewDefaultLimits creates the cluster-wide default limits.
func NewDefaultLimits() *Limits {
	return &Limits{
		MaxIndexNameLength:  255,
		MaxFieldNameLength:  255,
		MaxFieldsPerMapping: 1000,
		MaxShardsPerIndex:   1024,
		MaxBulkActions:      10000,
		MaxBulkSizeBytes:    100 << 20, // 100MB
		MaxRetryOnConflict:  10,
	}
}

// EnableFieldsCheck returns if the mapping field-count limit is active.
func (l *Limits) EnableFieldsCheck() bool {
	return l.MaxFieldsPerMapping > 0
}

// EnableBulkActionsCheck returns if the bulk item-count limit is active.
func (l *Limits) EnableBulkActionsCheck() bool {
	return l.MaxBulkActions > 0
}

// TOML returns limits' configuration string as toml format.
func (l *Limits) TOML() string {
	return fmt.Sprintf(`
## 0 to disable the limit.
## It is a per-index limit unless otherwise noted.

## Maximum length accepted for an index name.
## Default: %d
max-index-name-length = %d
## Maximum length accepted for a field name.
## Default: %d
max-field-name-length = %d
## Maximum number of fields an index's mapping may hold.
## Default: %d
max-fields-per-mapping = %d
## Maximum number of shards a single index may be split into.
## Default: %d
max-shards-per-index = %d
## Maximum number of actions accepted in a single bulk request.
## Default: %d
max-bulk-actions = %d
## Maximum size, in bytes, accepted for a single bulk request body.
## Default: %d
max-bulk-size-bytes = %d
## Maximum retry_on_conflict a single update request may request.
## Default: %d
max-retry-on-conflict = %d
`,
		l.MaxIndexNameLength, l.MaxIndexNameLength,
		l.MaxFieldNameLength, l.MaxFieldNameLength,
		l.MaxFieldsPerMapping, l.MaxFieldsPerMapping,
		l.MaxShardsPerIndex, l.MaxShardsPerIndex,
		l.MaxBulkActions, l.MaxBulkActions,
		l.MaxBulkSizeBytes, l.MaxBulkSizeBytes,
		l.MaxRetryOnConflict, l.MaxRetryOnConflict,
	)
}
