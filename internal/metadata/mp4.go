package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	mp4 "github.com/abema/go-mp4"
)

// appleEpochOffset is the number of seconds between the Apple/Mac epoch
// (1904-01-01 UTC) used by ISO BMFF containers and the Unix epoch.
const appleEpochOffset = 2082844800

// isoBMFFExtensions are container formats whose moov box we can parse.
var isoBMFFExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".3gp": true, ".m4a": true,
}

func isISOBMFF(path string) bool {
	return isoBMFFExtensions[strings.ToLower(filepath.Ext(path))]
}

// mp4CreationTime reads the mvhd creation time of an ISO BMFF container.
func mp4CreationTime(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxesWithPayload(f, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()},
	})
	if err != nil {
		return time.Time{}, false
	}

	for _, box := range boxes {
		mvhd, ok := box.Payload.(*mp4.Mvhd)
		if !ok {
			continue
		}
		created := mvhd.GetCreationTime()
		if created == 0 {
			continue
		}
		t := time.Unix(int64(created)-appleEpochOffset, 0).UTC()
		if t.Year() < 1970 {
			continue
		}
		return t, true
	}

	return time.Time{}, false
}

// mp4Dimensions reads track width/height from the first tkhd box with a
// nonzero size. tkhd stores 16.16 fixed-point values.
func mp4Dimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxesWithPayload(f, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeTkhd()},
	})
	if err != nil {
		return 0, 0, false
	}

	for _, box := range boxes {
		tkhd, ok := box.Payload.(*mp4.Tkhd)
		if !ok {
			continue
		}
		w := int(tkhd.Width >> 16)
		h := int(tkhd.Height >> 16)
		if w > 0 && h > 0 {
			return w, h, true
		}
	}

	return 0, 0, false
}

// mp4FrameRate derives the video track frame rate from sample timing:
// samples * timescale / total delta, using the mdhd/stts pair of the
// track whose handler is "vide".
func mp4FrameRate(path string) (float64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxesWithPayload(f, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(), mp4.BoxTypeHdlr()},
		{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(), mp4.BoxTypeMdhd()},
		{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl(), mp4.BoxTypeStts()},
	})
	if err != nil {
		return 0, false
	}

	// Each trak carries exactly one hdlr, mdhd and stts, and extraction
	// preserves file order, so index i across the three lists is track i.
	var hdlrs []*mp4.Hdlr
	var mdhds []*mp4.Mdhd
	var sttss []*mp4.Stts
	for _, box := range boxes {
		switch payload := box.Payload.(type) {
		case *mp4.Hdlr:
			hdlrs = append(hdlrs, payload)
		case *mp4.Mdhd:
			mdhds = append(mdhds, payload)
		case *mp4.Stts:
			sttss = append(sttss, payload)
		}
	}
	if len(hdlrs) != len(mdhds) || len(mdhds) != len(sttss) {
		return 0, false
	}

	for i, hdlr := range hdlrs {
		if string(hdlr.HandlerType[:]) != "vide" {
			continue
		}
		var samples, delta uint64
		for _, e := range sttss[i].Entries {
			samples += uint64(e.SampleCount)
			delta += uint64(e.SampleCount) * uint64(e.SampleDelta)
		}
		if samples == 0 || delta == 0 || mdhds[i].Timescale == 0 {
			return 0, false
		}
		fps := float64(samples) * float64(mdhds[i].Timescale) / float64(delta)
		if fps <= 0 || fps > 1000 {
			return 0, false
		}
		return fps, true
	}

	return 0, false
}
