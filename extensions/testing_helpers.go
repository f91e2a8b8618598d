package extensions

import (
	"math"
	"testing"
)

func AssertAreEqual[T comparable](t *testing.T, name string, expected T, actual T) {
	t.Helper()
	if expected != actual {
		t.Fatalf("value mismatch for %s, expected %v, got %v", name, expected, actual)
	}
}

func AssertInDelta(t *testing.T, name string, expected, actual, delta float64) {
	t.Helper()
	if math.IsNaN(actual) || math.Abs(expected-actual) > delta {
		t.Fatalf("value mismatch for %s, expected %v +/- %v, got %v", name, expected, delta, actual)
	}
}

func AssertNillability[T any](t *testing.T, name string, expected bool, actual *T) {
	t.Helper()
	if (actual == nil) != expected {
		t.Fatalf("nil mismatch for %s, expected nil=%v, got nil=%v", name, expected, (actual == nil))
	}
}
