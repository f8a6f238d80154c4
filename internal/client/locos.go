// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Thermoquad/z21stat/pkg/z21"
)

// LocoTable keeps the most recent LAN_X_LOCO_INFO per address. The least
// recently updated loco is evicted when the table is full.
type LocoTable struct {
	cache *lru.Cache[uint16, z21.LocoInfo]
}

// NewLocoTable creates a table holding up to size locos
func NewLocoTable(size int) (*LocoTable, error) {
	cache, err := lru.New[uint16, z21.LocoInfo](size)
	if err != nil {
		return nil, fmt.Errorf("loco table: %w", err)
	}
	return &LocoTable{cache: cache}, nil
}

// Update stores info under its address
func (t *LocoTable) Update(info z21.LocoInfo) {
	t.cache.Add(info.Address, info)
}

// Get returns the last known state of addr
func (t *LocoTable) Get(addr uint16) (z21.LocoInfo, bool) {
	return t.cache.Peek(addr)
}

// Len returns the number of locos held
func (t *LocoTable) Len() int {
	return t.cache.Len()
}

// Snapshot returns every loco ordered by address
func (t *LocoTable) Snapshot() []z21.LocoInfo {
	locos := t.cache.Values()
	sort.Slice(locos, func(i, j int) bool {
		return locos[i].Address < locos[j].Address
	})
	return locos
}
