package metadata

import (
	"testing"
	"time"
)

func TestParseExifDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024:03:15 10:20:30", time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC), true},
		{"2024-03-15 10:20:30", time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC), true},
		{"  2024:03:15 10:20:30  ", time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC), true},
		// Timezone suffixes are truncated, not parsed.
		{"2024:03:15 10:20:30+08:00", time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC), true},
		{"0000:00:00 00:00:00", time.Time{}, false},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}

	for _, c := range cases {
		got, ok := parseExifDate(c.in)
		if ok != c.ok {
			t.Errorf("parseExifDate(%q) ok=%v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && !got.Equal(c.want) {
			t.Errorf("parseExifDate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestExifDateTime_NonImageFile(t *testing.T) {
	if _, ok := exifDateTime("/nonexistent/file.jpg"); ok {
		t.Error("expected failure for missing file")
	}
}
