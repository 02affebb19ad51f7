// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := Fake(start)

	if !fake.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", fake.Now(), start)
	}

	fake.Advance(90 * time.Second)
	if !fake.Now().Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v", fake.Now())
	}
}

func TestFakeAfter(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := fake.After(10 * time.Second)

	select {
	case <-fired:
		t.Fatal("After channel fired before Advance")
	default:
	}

	fake.Advance(5 * time.Second)
	select {
	case <-fired:
		t.Fatal("After channel fired before its deadline")
	default:
	}

	fake.Advance(5 * time.Second)
	select {
	case <-fired:
	default:
		t.Fatal("After channel did not fire at its deadline")
	}
}

func TestFakeAfterImmediate(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}
