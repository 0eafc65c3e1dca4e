package annotate

import "strings"

// IsSentinel reports whether v is one of the reserved failure markers.
func IsSentinel(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == Unavailable || v == NoData
}

// NormalizeLabel maps a raw classification to one of Categories by
// case-insensitive containment, else "other". Empty values and sentinels
// are returned unchanged so they remain eligible for a rerun.
func NormalizeLabel(raw string) string {
	if strings.TrimSpace(raw) == "" || IsSentinel(raw) {
		return raw
	}
	lower := strings.ToLower(raw)
	for _, c := range Categories {
		if strings.Contains(lower, c) {
			return c
		}
	}
	return "other"
}

// NormalizeAttitude keeps the first whitespace-delimited token, lowercased.
func NormalizeAttitude(raw string) string {
	if IsSentinel(raw) {
		return raw
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return raw
	}
	return strings.ToLower(fields[0])
}
