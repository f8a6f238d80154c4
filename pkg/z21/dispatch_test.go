// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

// ============================================================
// Scenarios
// ============================================================

func TestDispatch_TrackPowerOffBroadcast(t *testing.T) {
	ev := Dispatch([]byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x00, 0x61})
	if _, ok := ev.(TrackPowerOff); !ok {
		t.Fatalf("Dispatch() = %#v, want TrackPowerOff", ev)
	}
}

func TestDispatch_CorruptedChecksum(t *testing.T) {
	raw := []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x01, 0x61} // valid checksum is 0x60
	ev := Dispatch(raw)

	inv, ok := ev.(InvalidMessage)
	if !ok {
		t.Fatalf("Dispatch() = %#v, want InvalidMessage", ev)
	}
	if !errors.Is(inv.Reason, ErrChecksumMismatch) {
		t.Errorf("Reason = %v, want checksum mismatch", inv.Reason)
	}
	if !errors.Is(inv, ErrChecksumMismatch) {
		t.Error("InvalidMessage does not unwrap to its reason")
	}
	if !bytes.Equal(inv.Raw, raw) {
		t.Errorf("Raw = % X, want % X", inv.Raw, raw)
	}
}

func TestDispatch_UnknownHeader(t *testing.T) {
	raw := []byte{0x06, 0x00, 0x99, 0x00, 0x01, 0x02}
	ev := Dispatch(raw)

	un, ok := ev.(UnrecognizedMessage)
	if !ok {
		t.Fatalf("Dispatch() = %#v, want UnrecognizedMessage", ev)
	}
	if !bytes.Equal(un.Raw, raw) {
		t.Errorf("Raw = % X, want % X", un.Raw, raw)
	}

	// The event must not alias the caller's buffer
	raw[4] = 0xFF
	if un.Raw[4] != 0x01 {
		t.Error("UnrecognizedMessage.Raw aliases the input")
	}
}

// ============================================================
// Catalog
// ============================================================

func TestDispatch_Catalog(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want Event
	}{
		{"track power on", []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x01, 0x60}, TrackPowerOn{}},
		{"programming mode", []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x02, 0x63}, ProgrammingMode{}},
		{"short circuit", []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x08, 0x69}, ShortCircuit{}},
		{"unknown command", []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x82, 0xE3}, UnknownCommand{}},
		{"stopped", []byte{0x07, 0x00, 0x40, 0x00, 0x81, 0x00, 0x81}, Stopped{}},
		{"status changed", []byte{0x08, 0x00, 0x40, 0x00, 0x62, 0x22, 0x02, 0x42}, StatusChanged{CentralState: CentralTrackVoltageOff}},
		{"version", []byte{0x09, 0x00, 0x40, 0x00, 0x63, 0x21, 0x30, 0x12, 0x60},
			VersionInfo{XBusVersion: 0x30, CommandStationID: CommandStationZ21}},
		{"firmware version", []byte{0x09, 0x00, 0x40, 0x00, 0xF3, 0x0A, 0x01, 0x43, 0xBB},
			FirmwareVersion{Major: 1, Minor: 43}},
		{"serial number", []byte{0x08, 0x00, 0x10, 0x00, 0x01, 0x02, 0x00, 0x00}, SerialNumber{Value: 513}},
		{"code", []byte{0x05, 0x00, 0x18, 0x00, 0x02}, Code{Code: CodeStartUnlocked}},
		{"hwinfo", []byte{0x0C, 0x00, 0x1A, 0x00, 0x01, 0x02, 0x00, 0x00, 0x20, 0x01, 0x00, 0x00},
			HwInfo{HardwareType: HwZ21New, FirmwareMajor: 1, FirmwareMinor: 20}},
		{"broadcast flags", []byte{0x08, 0x00, 0x51, 0x00, 0x01, 0x01, 0x01, 0x00},
			BroadcastFlags{Flags: DefaultBroadcastFlags}},
		{"turnout info", []byte{0x09, 0x00, 0x40, 0x00, 0x43, 0x00, 0x05, 0x02, 0x44},
			TurnoutInfo{Address: 6, State: TurnoutOutput2On}},
		{"rmbus data", []byte{0x0F, 0x00, 0x80, 0x00, 0x01,
			0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80},
			RMBusDataChanged{Group: 1, Feedback: [10]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0x80}}},
		{"system state", []byte{0x14, 0x00, 0x84, 0x00,
			0xE8, 0x03, // main 1000 mA
			0xFB, 0xFF, // prog -5 mA
			0xB6, 0x03, // filtered 950 mA
			0x23, 0x00, // 35 C
			0x20, 0x4E, // supply 20000 mV
			0x50, 0x46, // vcc 18000 mV
			0x02, 0x01, 0x00, 0x3F},
			SystemStateChanged{
				MainCurrent: 1000, ProgCurrent: -5, FilteredMainCurrent: 950, Temperature: 35,
				SupplyVoltage: 20000, VCCVoltage: 18000,
				CentralState: CentralTrackVoltageOff, CentralStateEx: CentralExHighTemperature, Capabilities: 0x3F,
			}},
		{"loco info", []byte{0x0F, 0x00, 0x40, 0x00, 0xEF, 0x00, 0x03, 0x04, 0xB3, 0x11, 0x01, 0x00, 0x00, 0x01, 0x4A},
			LocoInfo{
				Address: 3, SpeedSteps: SpeedSteps128, Direction: Forward, Speed: 50,
				Functions: 1<<0 | 1<<1 | 1<<5 | 1<<29,
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dispatch(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dispatch() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDispatch_LocoInfoWithoutF29Byte(t *testing.T) {
	raw := EncodeEnvelope(HeaderXBus, EncodeXBus(XHeaderLocoInfo,
		0xC4, 0xD2, 0x08|0x02, 0x13, 0x4F, 0xFF, 0x00, 0x80))

	ev, ok := Dispatch(raw).(LocoInfo)
	if !ok {
		t.Fatalf("Dispatch() = %#v, want LocoInfo", Dispatch(raw))
	}
	if ev.Address != 1234 || !ev.Busy || ev.SpeedSteps != SpeedSteps28 {
		t.Errorf("header fields = %+v", ev)
	}
	if ev.Direction != Reverse || ev.Speed != 4 {
		t.Errorf("direction/speed = %s/%d, want reverse/4", ev.Direction, ev.Speed)
	}
	if !ev.DoubleTraction || ev.SmartSearch {
		t.Errorf("flags = %+v", ev)
	}
	for _, f := range []int{1, 2, 3, 4, 5, 12, 28} {
		if !ev.Function(f) {
			t.Errorf("F%d off, want on", f)
		}
	}
	for _, f := range []int{0, 13, 20, 29, 31} {
		if ev.Function(f) {
			t.Errorf("F%d on, want off", f)
		}
	}
}

// ============================================================
// Classification
// ============================================================

func TestDispatch_InvalidMessages(t *testing.T) {
	xbus := func(xh byte, data ...byte) []byte { return EncodeEnvelope(HeaderXBus, EncodeXBus(xh, data...)) }

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"empty", nil, ErrTruncatedFrame},
		{"short envelope", []byte{0x07, 0x00, 0x40}, ErrTruncatedFrame},
		{"truncated datagram", []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x00}, ErrTruncatedFrame},
		{"oversized datagram", []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x00, 0x61, 0x00}, ErrLengthMismatch},
		{"x-bus without checksum", []byte{0x05, 0x00, 0x40, 0x00, 0x61}, ErrTruncatedFrame},
		{"broadcast with extra byte", xbus(XHeaderBroadcast, DB0BcTrackPowerOn, 0x00), ErrPayloadLength},
		{"status changed without state", xbus(XHeaderStatusChanged, DB0StatusChanged), ErrPayloadLength},
		{"version short", xbus(XHeaderVersion, DB0GetVersion, 0x30), ErrPayloadLength},
		{"firmware short", xbus(XHeaderFirmwareVersion, DB0Firmware, 0x01), ErrPayloadLength},
		{"turnout info request shape", xbus(XHeaderTurnoutInfo, 0x00, 0x05), ErrPayloadLength},
		{"turnout info bad state", xbus(XHeaderTurnoutInfo, 0x00, 0x05, 0xFD), ErrFieldValue},
		{"loco info short", xbus(XHeaderLocoInfo, 0x00, 0x03, 0x04, 0x80), ErrPayloadLength},
		{"loco info bad speed steps", xbus(XHeaderLocoInfo, 0x00, 0x03, 0x03, 0x80, 0, 0, 0, 0), ErrFieldValue},
		{"serial number short", EncodeEnvelope(HeaderGetSerialNumber, nil), ErrPayloadLength},
		{"system state short", EncodeEnvelope(HeaderSystemStateChanged, make([]byte, 14)), ErrPayloadLength},
		{"rmbus short", EncodeEnvelope(HeaderRMBusDataChanged, []byte{0x00}), ErrPayloadLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := Dispatch(tt.raw).(InvalidMessage)
			if !ok {
				t.Fatalf("Dispatch() = %#v, want InvalidMessage", Dispatch(tt.raw))
			}
			if !errors.Is(inv.Reason, tt.want) {
				t.Errorf("Reason = %v, want %v", inv.Reason, tt.want)
			}
			if !bytes.Equal(inv.Raw, tt.raw) {
				t.Errorf("Raw = % X, want % X", inv.Raw, tt.raw)
			}
		})
	}
}

func TestDispatch_UnrecognizedMarkers(t *testing.T) {
	xbus := func(xh byte, data ...byte) []byte { return EncodeEnvelope(HeaderXBus, EncodeXBus(xh, data...)) }

	tests := []struct {
		name string
		raw  []byte
	}{
		{"unknown x-header", xbus(0xAA, 0x01)},
		{"unknown broadcast", xbus(XHeaderBroadcast, 0x05)},
		{"broadcast without db0", xbus(XHeaderBroadcast)},
		{"status changed wrong db0", xbus(XHeaderStatusChanged, 0x99, 0x00)},
		{"version wrong db0", xbus(XHeaderVersion, 0x22, 0x30, 0x12)},
		{"stopped wrong db0", xbus(XHeaderStopped, 0x01)},
		{"outbound track power on", MustEncode(SetTrackPowerOn{})},
		{"unknown header", EncodeEnvelope(0x00A0, []byte{0x01, 0x02})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			un, ok := Dispatch(tt.raw).(UnrecognizedMessage)
			if !ok {
				t.Fatalf("Dispatch() = %#v, want UnrecognizedMessage", Dispatch(tt.raw))
			}
			if !bytes.Equal(un.Raw, tt.raw) {
				t.Errorf("Raw = % X, want % X", un.Raw, tt.raw)
			}
		})
	}
}

func TestDispatch_Idempotent(t *testing.T) {
	inputs := [][]byte{
		{0x07, 0x00, 0x40, 0x00, 0x61, 0x00, 0x61},
		{0x07, 0x00, 0x40, 0x00, 0x61, 0x01, 0x61},
		{0x06, 0x00, 0x99, 0x00, 0x01, 0x02},
		{0x0F, 0x00, 0x40, 0x00, 0xEF, 0x00, 0x03, 0x04, 0xB3, 0x11, 0x01, 0x00, 0x00, 0x01, 0x4A},
		{0x01},
	}

	for _, raw := range inputs {
		first := Dispatch(raw)
		second := Dispatch(raw)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Dispatch(% X) not idempotent: %#v vs %#v", raw, first, second)
		}
	}
}
