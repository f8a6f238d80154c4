// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"bytes"
	"errors"
	"testing"
)

func concat(records ...[]byte) []byte {
	var out []byte
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

// ============================================================
// SplitRecords
// ============================================================

func TestSplitRecords(t *testing.T) {
	a := MustEncode(SetTrackPowerOn{})
	b := MustEncode(GetSerialNumber{})
	c := MustEncode(must(NewGetRMBusData(1)))

	records, err := SplitRecords(concat(a, b, c))
	if err != nil {
		t.Fatalf("SplitRecords() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, want := range [][]byte{a, b, c} {
		if !bytes.Equal(records[i], want) {
			t.Errorf("record %d = % X, want % X", i, records[i], want)
		}
	}
}

func TestSplitRecords_SingleRecord(t *testing.T) {
	raw := []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x00, 0x61}
	records, err := SplitRecords(raw)
	if err != nil || len(records) != 1 || !bytes.Equal(records[0], raw) {
		t.Errorf("SplitRecords() = %v, %v", records, err)
	}
}

func TestSplitRecords_MalformedTail(t *testing.T) {
	good := MustEncode(SetTrackPowerOff{})

	tests := []struct {
		name string
		tail []byte
		want error
	}{
		{"short tail", []byte{0x07, 0x00}, ErrTruncatedFrame},
		{"declared past end", []byte{0x09, 0x00, 0x40, 0x00, 0x61}, ErrTruncatedFrame},
		{"declared below header", []byte{0x02, 0x00, 0x40, 0x00}, ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := SplitRecords(concat(good, tt.tail))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if len(records) != 2 {
				t.Fatalf("got %d records, want 2", len(records))
			}
			if !bytes.Equal(records[1], tt.tail) {
				t.Errorf("tail = % X, want % X", records[1], tt.tail)
			}
			if _, ok := Dispatch(records[1]).(InvalidMessage); !ok {
				t.Errorf("tail dispatched to %#v, want InvalidMessage", Dispatch(records[1]))
			}
		})
	}
}

func TestSplitRecords_Empty(t *testing.T) {
	if _, err := SplitRecords(nil); !errors.Is(err, ErrTruncatedFrame) {
		t.Errorf("SplitRecords(nil) error = %v", err)
	}
}

// ============================================================
// StreamDecoder
// ============================================================

func TestStreamDecoder_ByteByByte(t *testing.T) {
	a := MustEncode(SetTrackPowerOn{})
	b := MustEncode(must(NewSetLocoDrive(3, SpeedSteps128, Forward, 10)))

	d := NewStreamDecoder()
	var got [][]byte
	for _, v := range concat(a, b) {
		record, err := d.DecodeByte(v)
		if err != nil {
			t.Fatalf("DecodeByte() error: %v", err)
		}
		if record != nil {
			got = append(got, record)
		}
	}

	if len(got) != 2 || !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
		t.Errorf("records = % X", got)
	}
	if len(d.Buffered()) != 0 {
		t.Errorf("Buffered() = % X after complete records", d.Buffered())
	}
}

func TestStreamDecoder_SplitAcrossReads(t *testing.T) {
	raw := MustEncode(GetStatus{})
	d := NewStreamDecoder()

	records, errs := d.Decode(raw[:3])
	if len(records) != 0 || len(errs) != 0 {
		t.Fatalf("partial read produced %v / %v", records, errs)
	}
	if !bytes.Equal(d.Buffered(), raw[:3]) {
		t.Errorf("Buffered() = % X, want % X", d.Buffered(), raw[:3])
	}

	records, errs = d.Decode(raw[3:])
	if len(errs) != 0 || len(records) != 1 || !bytes.Equal(records[0], raw) {
		t.Errorf("records = % X, errs = %v", records, errs)
	}
}

func TestStreamDecoder_BadLength(t *testing.T) {
	d := NewStreamDecoder()

	// Length 2 is below the envelope header size, then a good record follows
	input := concat([]byte{0x02, 0x00}, MustEncode(LogOff{}))
	records, errs := d.Decode(input)

	if len(errs) != 1 || !errors.Is(errs[0], ErrLengthMismatch) {
		t.Errorf("errs = %v, want one length mismatch", errs)
	}
	if len(records) != 1 || !bytes.Equal(records[0], MustEncode(LogOff{})) {
		t.Errorf("records = % X", records)
	}
}

func TestStreamDecoder_Oversized(t *testing.T) {
	d := NewStreamDecoder()
	_, errs := d.Decode([]byte{0xFF, 0xFF})
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want one", errs)
	}

	var streamErr *StreamError
	if !errors.As(errs[0], &streamErr) {
		t.Fatalf("error %T is not a *StreamError", errs[0])
	}
	if !bytes.Equal(streamErr.Discarded, []byte{0xFF, 0xFF}) {
		t.Errorf("Discarded = % X, want FF FF", streamErr.Discarded)
	}
	if !errors.Is(streamErr, ErrLengthMismatch) {
		t.Errorf("StreamError does not unwrap to ErrLengthMismatch")
	}

	d.Decode([]byte{0x07, 0x00})
	d.Reset()
	if len(d.Buffered()) != 0 {
		t.Error("Reset() kept buffered bytes")
	}
}
