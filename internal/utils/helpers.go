package utils

import (
	"strings"
)

// Numeric comparison operators used by threshold kinds
const (
	OpLessThan    = "less_than"
	OpGreaterThan = "greater_than"
	OpEquals      = "equals"
)

// ParseDeviceID parses the device segment of a devices/{id}/... topic
func ParseDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) > 1 {
		return parts[1]
	}
	return ""
}

// Compare applies a threshold operator to actual and expected.
// Unknown operators compare false.
func Compare(actual int, op string, expected int) bool {
	switch op {
	case OpLessThan, "<":
		return actual < expected
	case OpGreaterThan, ">":
		return actual > expected
	case OpEquals, "==":
		return actual == expected
	}
	return false
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
