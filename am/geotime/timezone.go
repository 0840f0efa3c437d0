// Package geotime resolves the engine's configured timezone.
//
// Accepts canonical IANA names, miscapitalized names, common abbreviations,
// and city/country keywords ("toronto", "PST", "europe/berlin").
package geotime

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zoneinfo for hosts without /usr/share/zoneinfo

	"github.com/teranos/tempo/errors"
)

var locationKeywordTimezones = map[string]string{
	"toronto":       "America/Toronto",
	"montreal":      "America/Toronto",
	"ottawa":        "America/Toronto",
	"canada":        "America/Toronto",
	"vancouver":     "America/Vancouver",
	"new york":      "America/New_York",
	"boston":        "America/New_York",
	"chicago":       "America/Chicago",
	"denver":        "America/Denver",
	"los angeles":   "America/Los_Angeles",
	"san francisco": "America/Los_Angeles",
	"seattle":       "America/Los_Angeles",
	"mexico city":   "America/Mexico_City",
	"sao paulo":     "America/Sao_Paulo",
	"london":        "Europe/London",
	"dublin":        "Europe/Dublin",
	"amsterdam":     "Europe/Amsterdam",
	"berlin":        "Europe/Berlin",
	"paris":         "Europe/Paris",
	"madrid":        "Europe/Madrid",
	"rome":          "Europe/Rome",
	"stockholm":     "Europe/Stockholm",
	"oslo":          "Europe/Oslo",
	"helsinki":      "Europe/Helsinki",
	"dubai":         "Asia/Dubai",
	"india":         "Asia/Kolkata",
	"singapore":     "Asia/Singapore",
	"hong kong":     "Asia/Hong_Kong",
	"tokyo":         "Asia/Tokyo",
	"sydney":        "Australia/Sydney",
	"auckland":      "Pacific/Auckland",
}

var timezoneByAbbreviation = map[string]string{
	"pst":  "America/Los_Angeles",
	"pdt":  "America/Los_Angeles",
	"est":  "America/New_York",
	"edt":  "America/New_York",
	"cst":  "America/Chicago",
	"cdt":  "America/Chicago",
	"mst":  "America/Denver",
	"mdt":  "America/Denver",
	"bst":  "Europe/London",
	"cet":  "Europe/Berlin",
	"cest": "Europe/Berlin",
	"ist":  "Asia/Kolkata",
	"jst":  "Asia/Tokyo",
	"aest": "Australia/Sydney",
}

// NormalizeTimezone attempts to resolve user input into a valid IANA timezone.
func NormalizeTimezone(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("timezone cannot be empty")
	}

	if isValidTimezone(trimmed) {
		if canonical := canonicalizeValidTimezone(trimmed); canonical != "" {
			return canonical, nil
		}
		return trimmed, nil
	}

	if candidate := sanitizeTimezone(trimmed); isValidTimezone(candidate) {
		return candidate, nil
	}

	lower := strings.ToLower(trimmed)
	if tz, ok := timezoneByAbbreviation[lower]; ok {
		return tz, nil
	}
	if tz, ok := locationKeywordTimezones[lower]; ok {
		return tz, nil
	}

	return "", errors.Newf("unknown timezone: %s", input)
}

// LocalKeyword selects the host timezone.
const LocalKeyword = "local"

func isLocal(input string) bool {
	trimmed := strings.TrimSpace(input)
	return trimmed == "" || strings.EqualFold(trimmed, LocalKeyword)
}

// ResolveTimezone returns the IANA name for input. Empty input and
// "local" resolve to the host timezone.
func ResolveTimezone(input string) (string, error) {
	if isLocal(input) {
		return DetectLocalTimezone()
	}
	return NormalizeTimezone(input)
}

// LoadLocation resolves input via ResolveTimezone and loads the location.
func LoadLocation(input string) (*time.Location, error) {
	name, err := ResolveTimezone(input)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load timezone %s", name)
	}
	return loc, nil
}

// DetectLocalTimezone attempts to determine the host operating system timezone.
func DetectLocalTimezone() (string, error) {
	if tz := os.Getenv("TZ"); tz != "" && isValidTimezone(tz) {
		return tz, nil
	}

	if name := time.Now().Location().String(); name != "" && name != "Local" && isValidTimezone(name) {
		return name, nil
	}

	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		if tz := sanitizeTimezone(string(data)); isValidTimezone(tz) {
			return tz, nil
		}
	}

	if tz, err := readZoneinfoSymlink("/etc/localtime"); err == nil && tz != "" {
		return tz, nil
	}

	return "", errors.New("could not detect local timezone: tried TZ, time.Local, /etc/timezone, /etc/localtime")
}

func readZoneinfoSymlink(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	idx := strings.Index(resolved, "zoneinfo")
	if idx == -1 {
		return "", errors.New("zoneinfo segment not found")
	}
	candidate := strings.TrimPrefix(resolved[idx+len("zoneinfo"):], string(filepath.Separator))
	candidate = filepath.ToSlash(candidate)
	if isValidTimezone(candidate) {
		return candidate, nil
	}
	return "", errors.Newf("invalid timezone: %q (from %s)", candidate, path)
}

func sanitizeTimezone(tz string) string {
	trimmed := strings.Trim(strings.TrimSpace(tz), "\"'")
	trimmed = strings.ReplaceAll(trimmed, " ", "_")
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		parts[i] = titleSegments(part)
	}
	return strings.Join(parts, "/")
}

// titleSegments capitalizes each underscore-separated word: new_york -> New_York
func titleSegments(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		words[i] = title(w)
	}
	return strings.Join(words, "_")
}

func title(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func isValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// canonicalizeValidTimezone fixes case for names like "america/toronto".
// Returns "" when tz is already well formed ("America/Port_of_Spain").
func canonicalizeValidTimezone(tz string) string {
	if !hasIncorrectCapitalization(tz) {
		return ""
	}
	candidate := sanitizeTimezone(tz)
	if isValidTimezone(candidate) && candidate != tz {
		return candidate
	}
	return ""
}

func hasIncorrectCapitalization(tz string) bool {
	if strings.ToLower(tz) == tz {
		return true
	}
	for _, part := range strings.Split(tz, "/") {
		if len(part) > 0 && part[0] >= 'a' && part[0] <= 'z' {
			return true
		}
	}
	return false
}

// ValidateTimezone checks a configured timezone without loading it.
// "local" and empty are accepted and resolved at startup.
func ValidateTimezone(tz string) error {
	if isLocal(tz) {
		return nil
	}
	_, err := NormalizeTimezone(tz)
	return err
}
