package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultNotBeforeDays  = 7.0
	DefaultExpirationDays = 14.0
	DefaultWaitDays       = 7.0

	// MinValidityDays is the minimum gap between a trigger token's notBefore and expiresAt.
	MinValidityDays = 1.0

	// MaxWaitDays bounds notBefore and waiting periods; larger values are treated as 0.
	MaxWaitDays = 365.0
	// MaxExpirationDays bounds expirations; larger values are treated as 0.
	MaxExpirationDays = 3650.0
)

const day = 24 * time.Hour

// SanitizeDays returns v unless it is NaN, infinite, negative or above ceiling, in which case it returns 0.
// A 0 result means "use the default" and must never be scheduled as-is.
func SanitizeDays(v, ceiling float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > ceiling {
		return 0
	}
	return v
}

// ParseDays parses a floating-point day count and sanitizes it against ceiling.
// Unparseable input yields 0.
func ParseDays(raw string, ceiling float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return SanitizeDays(v, ceiling)
}

// DaysOrDefault sanitizes v and substitutes def for a 0 result.
func DaysOrDefault(v, ceiling, def float64) float64 {
	if s := SanitizeDays(v, ceiling); s > 0 {
		return s
	}
	return def
}

// DaysToDuration converts a day count to a duration, rounded to the millisecond.
func DaysToDuration(days float64) time.Duration {
	return time.Duration(math.Round(days*float64(day)/float64(time.Millisecond))) * time.Millisecond
}
