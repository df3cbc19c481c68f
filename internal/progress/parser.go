package progress

import (
	"strconv"
	"strings"
)

// ParseLine decodes a single protocol line into an Event. The second return
// is false for unrecognized or malformed lines, which callers must skip for
// forward compatibility.
func ParseLine(line string) (Event, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}

	switch fields[0] {
	case "READY":
		total, ok := parseUint(fields, 1)
		if !ok {
			return nil, false
		}
		return Ready{TotalBytes: total}, true
	case "PROGRESS":
		done, okDone := parseUint(fields, 1)
		bps, okBPS := parseUint(fields, 2)
		if !okDone || !okBPS {
			return nil, false
		}
		return WriteProgress{BytesDone: done, BytesPerSecond: bps}, true
	case "DONE":
		return WriteDone{}, true
	case "VERIFY_START":
		total, ok := parseUint(fields, 1)
		if !ok {
			return nil, false
		}
		return VerifyReady{TotalBytes: total}, true
	case "VERIFY_PROGRESS":
		done, okDone := parseUint(fields, 1)
		bps, okBPS := parseUint(fields, 2)
		if !okDone || !okBPS {
			return nil, false
		}
		return VerifyProgress{BytesDone: done, BytesPerSecond: bps}, true
	case "VERIFY_DONE":
		return VerifyDone{}, true
	case "METRICS":
		return parseMetrics(fields[1:]), true
	case "ERROR":
		message := ""
		if idx := strings.Index(line, " "); idx >= 0 {
			message = strings.TrimSpace(line[idx+1:])
		}
		return Failure{Message: message}, true
	default:
		return nil, false
	}
}

func parseMetrics(tokens []string) Metrics {
	var m Metrics
	for _, token := range tokens {
		key, value, found := strings.Cut(token, "=")
		if !found {
			continue
		}
		switch key {
		case "total_time":
			value = strings.TrimSuffix(value, "s")
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				m.ElapsedSeconds = f
			}
		case "avg_speed":
			value = strings.TrimSuffix(value, "MB/s")
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				m.AvgMBps = f
			}
		case "total_bytes":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				m.TotalBytes = n
			}
		case "version":
			m.Version = value
		}
	}
	return m
}

func parseUint(fields []string, index int) (uint64, bool) {
	if index >= len(fields) {
		return 0, false
	}
	n, err := strconv.ParseUint(fields[index], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
