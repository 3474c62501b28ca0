package timenorm

import (
	"math"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	want := time.Date(2024, 7, 7, 12, 30, 0, 0, time.UTC)
	secs := float64(want.Unix())
	nilFloat := (*float64)(nil)
	iso := "2024-07-07T12:30:00Z"

	tests := []struct {
		name   string
		raw    any
		offset int
		want   time.Time
		wantOK bool
	}{
		{name: "epoch seconds", raw: secs, want: want, wantOK: true},
		{name: "epoch seconds int64", raw: want.Unix(), want: want, wantOK: true},
		{name: "epoch milliseconds", raw: secs * 1e3, want: want, wantOK: true},
		{name: "epoch microseconds", raw: secs * 1e6, want: want, wantOK: true},
		{name: "numeric string", raw: "1720355400000", want: want, wantOK: true},
		{name: "iso with Z", raw: "2024-07-07T12:30:00Z", want: want, wantOK: true},
		{name: "iso with fraction and Z", raw: "2024-07-07T12:30:00.000Z", want: want, wantOK: true},
		{name: "iso with offset", raw: "2024-07-07T14:30:00+02:00", want: want, wantOK: true},
		{name: "iso with basic offset", raw: "2024-07-07T14:30:00.000+0200", want: want, wantOK: true},
		{name: "iso with hour offset", raw: "2024-07-07T14:30:00+02", want: want, wantOK: true},
		{name: "iso with negative basic offset", raw: "2024-07-07T07:30:00-0500", want: want, wantOK: true},
		{name: "space separated basic offset", raw: "2024-07-07 14:30:00+0200", want: want, wantOK: true},
		{name: "space separated hour offset", raw: "2024-07-07 14:30:00+02", want: want, wantOK: true},
		{name: "iso naive treated as utc", raw: "2024-07-07 12:30:00", want: want, wantOK: true},
		{name: "string pointer", raw: &iso, want: want, wantOK: true},
		{name: "offset applied after parsing", raw: "2024-07-07T10:30:00Z", offset: 120, want: want, wantOK: true},
		{name: "negative offset", raw: "2024-07-07T13:30:00Z", offset: -60, want: want, wantOK: true},
		{name: "nil", raw: nil, wantOK: false},
		{name: "nil pointer", raw: nilFloat, wantOK: false},
		{name: "empty string", raw: "   ", wantOK: false},
		{name: "garbage", raw: "yesterday-ish", wantOK: false},
		{name: "negative epoch", raw: -5.0, wantOK: false},
		{name: "out of range", raw: 1e18, wantOK: false},
		{name: "nan", raw: math.NaN(), wantOK: false},
		{name: "unsupported type", raw: struct{}{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw, tt.offset)
			if ok != tt.wantOK {
				t.Fatalf("Normalize(%v) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("Normalize(%v) location = %v, want UTC", tt.raw, got.Location())
			}
		})
	}
}

func TestFromNumber_Thresholds(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want int64
	}{
		{name: "just below milli threshold is seconds", v: 1e10, want: 1e10},
		{name: "just above milli threshold is milliseconds", v: 1e10 + 1000, want: 1e7 + 1},
		{name: "current millisecond epoch", v: 1.7e12, want: 1.7e9},
		{name: "just above micro threshold is microseconds", v: 2e14, want: 2e8},
		{name: "current microsecond epoch", v: 1.7e15, want: 1.7e9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromNumber(tt.v)
			if !ok {
				t.Fatalf("FromNumber(%v) failed", tt.v)
			}
			if got.Unix() != tt.want {
				t.Errorf("FromNumber(%v) = %d, want %d", tt.v, got.Unix(), tt.want)
			}
		})
	}
}

func TestFirst_FallsBack(t *testing.T) {
	got, ok := First(0, nil, "not a time", "2024-01-02T03:04:05Z")
	if !ok {
		t.Fatal("First() failed, want fallback to third candidate")
	}
	if want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC); !got.Equal(want) {
		t.Errorf("First() = %v, want %v", got, want)
	}

	if _, ok := First(0, nil, ""); ok {
		t.Error("First() with no parseable candidates should fail")
	}
}

func TestTruncateHourAndWeekday(t *testing.T) {
	ts := time.Date(2024, 7, 7, 12, 59, 59, 999, time.UTC) // Sunday
	if got := TruncateHour(ts); !got.Equal(time.Date(2024, 7, 7, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("TruncateHour() = %v", got)
	}
	if got := MondayWeekday(ts); got != 6 {
		t.Errorf("MondayWeekday(Sunday) = %d, want 6", got)
	}
	if got := MondayWeekday(ts.AddDate(0, 0, 1)); got != 0 {
		t.Errorf("MondayWeekday(Monday) = %d, want 0", got)
	}
}
