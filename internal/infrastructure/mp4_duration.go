package infrastructure

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

var (
	mvhdType = []byte("mvhd")

	errMovieHeaderNotFound = errors.New("mvhd box not found")
	errMovieHeaderInvalid  = errors.New("mvhd box malformed")
)

// mp4Duration scans an ISO BMFF fragment for the movie header box and
// returns duration/timescale in seconds. The fragment may start anywhere in
// the file; only the mvhd box itself must be complete.
func mp4Duration(data []byte) (float64, error) {
	offset := 0
	for {
		idx := bytes.Index(data[offset:], mvhdType)
		if idx < 0 {
			return 0, errMovieHeaderNotFound
		}
		start := offset + idx
		offset = start + len(mvhdType)

		// box header is size(4) followed by the type
		if start < 4 {
			continue
		}
		size := binary.BigEndian.Uint32(data[start-4 : start])
		if size < 8 {
			continue
		}

		seconds, err := parseMovieHeader(data[start+len(mvhdType):])
		if errors.Is(err, errMovieHeaderInvalid) {
			continue
		}
		return seconds, err
	}
}

// parseMovieHeader reads the version-dependent fields of an mvhd body.
// An all-ones duration means unknown and is reported as invalid.
func parseMovieHeader(body []byte) (float64, error) {
	if len(body) < 4 {
		return 0, errMovieHeaderNotFound
	}
	version := body[0]
	fields := body[4:]

	var timescale uint32
	var duration uint64
	switch version {
	case 0:
		// creation(4) modification(4) timescale(4) duration(4)
		if len(fields) < 16 {
			return 0, errMovieHeaderNotFound
		}
		timescale = binary.BigEndian.Uint32(fields[8:12])
		raw := binary.BigEndian.Uint32(fields[12:16])
		if raw == math.MaxUint32 {
			return 0, errMovieHeaderInvalid
		}
		duration = uint64(raw)
	case 1:
		// creation(8) modification(8) timescale(4) duration(8)
		if len(fields) < 28 {
			return 0, errMovieHeaderNotFound
		}
		timescale = binary.BigEndian.Uint32(fields[16:20])
		duration = binary.BigEndian.Uint64(fields[20:28])
		if duration == math.MaxUint64 {
			return 0, errMovieHeaderInvalid
		}
	default:
		return 0, errMovieHeaderInvalid
	}

	if timescale == 0 {
		return 0, errMovieHeaderInvalid
	}
	return float64(duration) / float64(timescale), nil
}
