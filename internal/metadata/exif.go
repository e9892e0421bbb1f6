package metadata

import (
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifDateTime reads the capture time from embedded EXIF tags.
// Returns false on any failure; the probe cascade moves on.
func exifDateTime(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}

	if t, err := x.DateTime(); err == nil {
		return t, true
	}

	if tag, err := x.Get(exif.DateTimeDigitized); err == nil {
		if s, err := tag.StringVal(); err == nil {
			if t, ok := parseExifDate(s); ok {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

// exifDevice reads "Make Model" from embedded EXIF tags.
func exifDevice(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return ""
	}

	var make, model string
	if tag, err := x.Get(exif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			make = strings.TrimSpace(s)
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			model = strings.TrimSpace(s)
		}
	}

	return strings.TrimSpace(make + " " + model)
}

// exifDimensions reads pixel dimensions from embedded EXIF tags.
func exifDimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return 0, 0, false
	}

	wTag, err := x.Get(exif.PixelXDimension)
	if err != nil {
		return 0, 0, false
	}
	hTag, err := x.Get(exif.PixelYDimension)
	if err != nil {
		return 0, 0, false
	}

	w, errW := wTag.Int(0)
	h, errH := hTag.Int(0)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// parseExifDate parses the "2006:01:02 15:04:05" EXIF date form,
// tolerating dash-separated variants.
func parseExifDate(s string) (time.Time, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", ":")
	if len(s) > 19 {
		s = s[:19]
	}
	t, err := time.Parse("2006:01:02 15:04:05", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
