package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseSendDate(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int64
		wantOK bool
	}{
		{name: "epoch millis", raw: `1700000000000`, want: 1700000000000, wantOK: true},
		{name: "epoch seconds", raw: `1700000000`, want: 1700000000000, wantOK: true},
		{name: "numeric string", raw: `"1700000000000"`, want: 1700000000000, wantOK: true},
		{name: "numeric seconds string", raw: `"1700000000"`, want: 1700000000000, wantOK: true},
		{
			name:   "humanized",
			raw:    `"2024-1-15@13h45m30s"`,
			want:   time.Date(2024, 1, 15, 13, 45, 30, 0, time.Local).UnixMilli(),
			wantOK: true,
		},
		{
			name:   "humanized with millis",
			raw:    `"2024-01-15 @13h 45m 30s 250ms"`,
			want:   time.Date(2024, 1, 15, 13, 45, 30, 250*int(time.Millisecond), time.Local).UnixMilli(),
			wantOK: true,
		},
		{
			name:   "display format",
			raw:    `"January 2, 2024 3:04pm"`,
			want:   time.Date(2024, 1, 2, 15, 4, 0, 0, time.Local).UnixMilli(),
			wantOK: true,
		},
		{
			name:   "RFC 3339",
			raw:    `"2024-01-15T13:45:30Z"`,
			want:   time.Date(2024, 1, 15, 13, 45, 30, 0, time.UTC).UnixMilli(),
			wantOK: true,
		},
		{name: "garbage string", raw: `"not a date"`, wantOK: false},
		{name: "empty string", raw: `""`, wantOK: false},
		{name: "boolean", raw: `true`, wantOK: false},
		{name: "null", raw: `null`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSendDate(json.RawMessage(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("ParseSendDate(%s) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseSendDate(%s) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatHumanized_RoundTrip(t *testing.T) {
	ts := time.Date(2023, 11, 14, 22, 13, 20, 7*int(time.Millisecond), time.Local)
	s := FormatHumanized(ts)

	if s != "2023-11-14@22h13m20s7ms" {
		t.Errorf("FormatHumanized() = %q", s)
	}

	got, ok := ParseDateString(s)
	if !ok {
		t.Fatalf("ParseDateString(%q) failed", s)
	}
	if got != ts.UnixMilli() {
		t.Errorf("ParseDateString(%q) = %d, want %d", s, got, ts.UnixMilli())
	}
}
