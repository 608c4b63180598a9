package config

import (
	"testing"
	"time"
)

func TestDurationField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		def  time.Duration
		want time.Duration
		ok   bool
	}{
		{"empty uses default", "", time.Minute, time.Minute, true},
		{"zero uses default", "0s", time.Minute, time.Minute, true},
		{"explicit value", "250ms", time.Minute, 250 * time.Millisecond, true},
		{"padded", " 2h ", 0, 2 * time.Hour, true},
		{"negative rejected", "-1s", 0, 0, false},
		{"garbage rejected", "soon", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DurationField("wake.sweep_every", tc.raw, tc.def)
			if (err == nil) != tc.ok {
				t.Fatalf("err = %v, want ok=%v", err, tc.ok)
			}
			if err == nil && got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
