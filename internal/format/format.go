// Package format renders and parses byte sizes the way the Spark UI shows
// them. Display sizes use 1024-based units with two decimals ("512.00 MB");
// configuration sizes use Spark's suffix notation ("4g", "512m").
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

var displayUnits = []string{"KB", "MB", "GB", "TB", "PB", "EB"}

var configUnits = []string{"k", "m", "g", "t", "p"}

// HumanFileSize renders a non-negative byte count for display.
// Values below 1 KB are shown as whole bytes.
func HumanFileSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	v := float64(bytes)
	u := -1
	for v >= 1024 && u < len(displayUnits)-1 {
		v /= 1024
		u++
	}
	return fmt.Sprintf("%.2f %s", v, displayUnits[u])
}

// SparkConfigSize renders a byte count in the notation accepted by
// spark.executor.memory and friends, keeping at most two decimals.
func SparkConfigSize(bytes float64) string {
	if bytes < 1024 {
		return strconv.FormatInt(int64(math.Round(bytes)), 10) + "b"
	}
	v := bytes
	u := -1
	for v >= 1024 && u < len(configUnits)-1 {
		v /= 1024
		u++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + configUnits[u]
}

// ParseSparkSize parses a Spark memory setting into bytes. Suffixes are
// binary ("1g" is 1 GiB, "gb" is accepted too); a bare number is read as
// MiB, which is how Spark interprets unsuffixed memory settings.
func ParseSparkSize(s string) (int64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("format: empty size")
	}
	num := strings.TrimRightFunc(v, unicode.IsLetter)
	suffix := v[len(num):]
	if num == "" {
		return 0, fmt.Errorf("format: invalid size %q", s)
	}

	var normalized string
	switch unit := strings.TrimSuffix(suffix, "b"); unit {
	case "":
		if suffix == "b" {
			normalized = num
		} else {
			normalized = num + "mi"
		}
	case "k", "m", "g", "t", "p":
		normalized = num + unit + "i"
	default:
		return 0, fmt.Errorf("format: unknown size unit %q in %q", suffix, s)
	}

	n, err := humanize.ParseBytes(normalized)
	if err != nil {
		return 0, fmt.Errorf("format: parse size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("format: size %q overflows", s)
	}
	return int64(n), nil
}

// Percentage returns value as a percentage of total, or 0 when total is 0.
func Percentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return value / total * 100
}
