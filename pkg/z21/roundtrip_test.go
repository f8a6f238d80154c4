// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"errors"
	"reflect"
	"testing"
)

// allCommands returns one instance of every command variant.
func allCommands() []Command {
	return []Command{
		GetSerialNumber{},
		LogOff{},
		GetVersion{},
		GetStatus{},
		SetTrackPowerOff{},
		SetTrackPowerOn{},
		SetStop{},
		GetFirmwareVersion{},
		NewSetBroadcastFlags(BroadcastDriving | BroadcastRMBus),
		GetBroadcastFlags{},
		GetSystemState{},
		GetHwInfo{},
		GetCode{},
		must(NewGetLocoInfo(9999)),
		must(NewSetLocoDrive(128, SpeedSteps14, Forward, 14)),
		must(NewSetLocoDrive(5, SpeedSteps28, Reverse, 17)),
		must(NewLocoEmergencyStop(77, SpeedSteps128, Forward)),
		must(NewSetLocoFunction(1000, 31, FunctionToggle)),
		must(NewGetTurnoutInfo(2048)),
		must(NewSetTurnout(12, TurnoutOutput2, true, true)),
		must(NewGetRMBusData(0)),
	}
}

func TestParseCommand_RoundTrip(t *testing.T) {
	for _, c := range allCommands() {
		t.Run(c.Name(), func(t *testing.T) {
			raw, err := Encode(c)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			got, err := ParseCommand(raw)
			if err != nil {
				t.Fatalf("ParseCommand() error: %v", err)
			}
			if !reflect.DeepEqual(got, c) {
				t.Errorf("ParseCommand() = %#v, want %#v", got, c)
			}
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"broadcast is not a command", []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x00, 0x61}, ErrUnknownCommand},
		{"serial number reply", []byte{0x08, 0x00, 0x10, 0x00, 0x01, 0x02, 0x00, 0x00}, ErrPayloadLength},
		{"unknown header", []byte{0x04, 0x00, 0x99, 0x00}, ErrUnknownCommand},
		{"bad checksum", []byte{0x07, 0x00, 0x40, 0x00, 0x21, 0x81, 0x00}, ErrChecksumMismatch},
		{"truncated", []byte{0x07, 0x00}, ErrTruncatedFrame},
		{"rmbus group out of range", []byte{0x05, 0x00, 0x81, 0x00, 0x02}, ErrInvalidCommand},
		{"loco address zero", EncodeEnvelope(HeaderXBus, EncodeXBus(XHeaderGetLocoInfo, DB0GetLocoInfo, 0x00, 0x00)), ErrInvalidCommand},
		{"drive unknown step code", EncodeEnvelope(HeaderXBus, EncodeXBus(XHeaderSetLoco, 0x11, 0x00, 0x03, 0x80)), ErrFieldValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseCommand() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// allEvents returns one instance of every catalog event variant.
func allEvents() []Event {
	return []Event{
		SerialNumber{Value: 0xDEADBEEF},
		VersionInfo{XBusVersion: 0x30, CommandStationID: CommandStationZ21Small},
		TrackPowerOff{},
		TrackPowerOn{},
		ProgrammingMode{},
		ShortCircuit{},
		UnknownCommand{},
		Stopped{},
		StatusChanged{CentralState: CentralEmergencyStop | CentralShortCircuit},
		FirmwareVersion{Major: 1, Minor: 42},
		BroadcastFlags{Flags: DefaultBroadcastFlags},
		SystemStateChanged{MainCurrent: -12, ProgCurrent: 3, FilteredMainCurrent: 400, Temperature: -2,
			SupplyVoltage: 18500, VCCVoltage: 17900, CentralState: CentralProgrammingMode,
			CentralStateEx: CentralExPowerLost, Capabilities: 0x7F},
		HwInfo{HardwareType: HwZ21XL, FirmwareMajor: 1, FirmwareMinor: 43},
		Code{Code: CodeStartLocked},
		LocoInfo{Address: 4000, Busy: true, SpeedSteps: SpeedSteps28, Direction: Forward, Speed: 28,
			DoubleTraction: true, SmartSearch: true, Functions: 0xFFFFFFFF},
		LocoInfo{Address: 3, SpeedSteps: SpeedSteps14, Direction: Reverse, EmergencyStop: true},
		TurnoutInfo{Address: 2048, State: TurnoutInvalid},
		RMBusDataChanged{Group: 1, Feedback: [10]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}
}

func TestEncodeEvent_RoundTrip(t *testing.T) {
	for _, e := range allEvents() {
		t.Run(e.Name(), func(t *testing.T) {
			raw, err := EncodeEvent(e)
			if err != nil {
				t.Fatalf("EncodeEvent() error: %v", err)
			}
			if got := Dispatch(raw); !reflect.DeepEqual(got, e) {
				t.Errorf("Dispatch(EncodeEvent()) = %#v, want %#v", got, e)
			}
		})
	}
}

func TestEncodeEvent_RawPassthrough(t *testing.T) {
	raw := []byte{0x06, 0x00, 0x99, 0x00, 0x01, 0x02}
	got, err := EncodeEvent(UnrecognizedMessage{Raw: raw})
	if err != nil || !reflect.DeepEqual(got, raw) {
		t.Errorf("EncodeEvent(UnrecognizedMessage) = % X, %v", got, err)
	}
	if _, err := EncodeEvent(TurnoutInfo{Address: 0}); !errors.Is(err, ErrFieldValue) {
		t.Errorf("EncodeEvent(turnout 0) error = %v", err)
	}
	if _, err := EncodeEvent(TurnoutInfo{Address: 1, State: 4}); !errors.Is(err, ErrFieldValue) {
		t.Errorf("EncodeEvent(turnout state 4) error = %v", err)
	}
}

// A command station answers a command with the event that reflects it.
// The fields that determine that event must survive the trip.
func TestCommandToEvent_FieldsSurvive(t *testing.T) {
	t.Run("loco drive", func(t *testing.T) {
		for _, c := range []SetLocoDrive{
			must(NewSetLocoDrive(3, SpeedSteps128, Forward, 126)),
			must(NewSetLocoDrive(200, SpeedSteps28, Reverse, 13)),
			must(NewLocoEmergencyStop(9999, SpeedSteps14, Reverse)),
		} {
			raw := MustEncode(c)
			parsed, err := ParseCommand(raw)
			if err != nil {
				t.Fatalf("ParseCommand() error: %v", err)
			}
			drive := parsed.(SetLocoDrive)

			reply, err := EncodeEvent(LocoInfo{
				Address:       drive.Address(),
				SpeedSteps:    drive.SpeedSteps(),
				Direction:     drive.Direction(),
				Speed:         drive.Speed(),
				EmergencyStop: drive.EmergencyStop(),
			})
			if err != nil {
				t.Fatalf("EncodeEvent() error: %v", err)
			}
			info := Dispatch(reply).(LocoInfo)
			if info.Address != c.Address() || info.SpeedSteps != c.SpeedSteps() ||
				info.Direction != c.Direction() || info.Speed != c.Speed() ||
				info.EmergencyStop != c.EmergencyStop() {
				t.Errorf("LocoInfo %+v does not reflect %s", info, FormatCommand(c))
			}

			// The speed byte itself is shared between both messages
			if raw[8] != reply[8] {
				t.Errorf("speed byte 0x%02X != 0x%02X", raw[8], reply[8])
			}
		}
	})

	t.Run("turnout", func(t *testing.T) {
		c := must(NewSetTurnout(513, TurnoutOutput2, true, false))
		raw := MustEncode(c)
		reply, err := EncodeEvent(TurnoutInfo{Address: c.Address(), State: TurnoutOutput2On})
		if err != nil {
			t.Fatalf("EncodeEvent() error: %v", err)
		}
		info := Dispatch(reply).(TurnoutInfo)
		if info.Address != c.Address() {
			t.Errorf("Address = %d, want %d", info.Address, c.Address())
		}
		// Address bytes are identical on both sides
		if raw[5] != reply[5] || raw[6] != reply[6] {
			t.Errorf("address bytes % X != % X", raw[5:7], reply[5:7])
		}
	})

	t.Run("rmbus", func(t *testing.T) {
		c := must(NewGetRMBusData(1))
		raw := MustEncode(c)
		reply, err := EncodeEvent(RMBusDataChanged{Group: c.Group()})
		if err != nil {
			t.Fatalf("EncodeEvent() error: %v", err)
		}
		if got := Dispatch(reply).(RMBusDataChanged).Group; got != c.Group() || raw[4] != reply[4] {
			t.Errorf("Group = %d, want %d", got, c.Group())
		}
	})

	t.Run("broadcast flags", func(t *testing.T) {
		c := NewSetBroadcastFlags(DefaultBroadcastFlags)
		raw := MustEncode(c)
		reply, err := EncodeEvent(BroadcastFlags{Flags: c.Flags()})
		if err != nil {
			t.Fatalf("EncodeEvent() error: %v", err)
		}
		if got := Dispatch(reply).(BroadcastFlags).Flags; got != c.Flags() {
			t.Errorf("Flags = 0x%08X, want 0x%08X", got, c.Flags())
		}
		if !reflect.DeepEqual(raw[4:], reply[4:]) {
			t.Errorf("flag bytes % X != % X", raw[4:], reply[4:])
		}
	})
}
