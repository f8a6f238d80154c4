// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import (
	"testing"

	"github.com/Thermoquad/z21stat/pkg/z21"
)

func TestLocoTable_UpdateAndSnapshot(t *testing.T) {
	table, err := NewLocoTable(4)
	if err != nil {
		t.Fatalf("NewLocoTable() error: %v", err)
	}

	for _, addr := range []uint16{300, 3, 42} {
		table.Update(z21.LocoInfo{Address: addr, SpeedSteps: z21.SpeedSteps128})
	}
	table.Update(z21.LocoInfo{Address: 3, SpeedSteps: z21.SpeedSteps128, Speed: 20})

	if table.Len() != 3 {
		t.Errorf("Len() = %d, want 3", table.Len())
	}
	if got, _ := table.Get(3); got.Speed != 20 {
		t.Errorf("Get(3).Speed = %d, want 20", got.Speed)
	}

	snap := table.Snapshot()
	for i, want := range []uint16{3, 42, 300} {
		if snap[i].Address != want {
			t.Errorf("Snapshot()[%d].Address = %d, want %d", i, snap[i].Address, want)
		}
	}
}

func TestLocoTable_EvictsOldest(t *testing.T) {
	table, _ := NewLocoTable(2)
	table.Update(z21.LocoInfo{Address: 1})
	table.Update(z21.LocoInfo{Address: 2})
	table.Update(z21.LocoInfo{Address: 3})

	if _, ok := table.Get(1); ok {
		t.Error("oldest loco not evicted")
	}
	if _, ok := table.Get(3); !ok {
		t.Error("newest loco missing")
	}
}

func TestLocoTable_BadSize(t *testing.T) {
	if _, err := NewLocoTable(0); err == nil {
		t.Error("NewLocoTable(0) succeeded")
	}
}

func TestExpect(t *testing.T) {
	tests := []struct {
		name  string
		match func(z21.Event) bool
		ev    z21.Event
		want  bool
	}{
		{"type hit", Expect[z21.SerialNumber], z21.SerialNumber{Value: 1}, true},
		{"type miss", Expect[z21.SerialNumber], z21.TrackPowerOn{}, false},
		{"loco hit", ExpectLoco(5), z21.LocoInfo{Address: 5}, true},
		{"loco other address", ExpectLoco(5), z21.LocoInfo{Address: 6}, false},
		{"turnout hit", ExpectTurnout(9), z21.TurnoutInfo{Address: 9}, true},
		{"rmbus other group", ExpectRMBus(1), z21.RMBusDataChanged{Group: 0}, false},
		{"power stopped", ExpectTrackPower, z21.Stopped{}, true},
		{"power loco", ExpectTrackPower, z21.LocoInfo{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.match(tt.ev); got != tt.want {
				t.Errorf("match(%s) = %v, want %v", tt.ev.Name(), got, tt.want)
			}
		})
	}
}
