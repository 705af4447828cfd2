// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvance(t *testing.T) {
	c := Fake(epoch)
	if !c.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", c.Now(), epoch)
	}

	c.Advance(90 * time.Second)
	want := epoch.Add(90 * time.Second)
	if !c.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", c.Now(), want)
	}
}

func TestFakeAfterFiresInOrder(t *testing.T) {
	c := Fake(epoch)

	early := c.After(time.Second)
	late := c.After(time.Minute)

	c.Advance(time.Second)
	select {
	case fired := <-early:
		if !fired.Equal(epoch.Add(time.Second)) {
			t.Errorf("early fired at %v", fired)
		}
	default:
		t.Fatal("early waiter did not fire")
	}
	select {
	case <-late:
		t.Fatal("late waiter fired too soon")
	default:
	}

	c.Advance(time.Minute)
	select {
	case <-late:
	default:
		t.Fatal("late waiter never fired")
	}
}

func TestFakeTicker(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)

	for i := 1; i <= 3; i++ {
		c.Advance(time.Second)
		select {
		case tick := <-ticker.C:
			want := epoch.Add(time.Duration(i) * time.Second)
			if !tick.Equal(want) {
				t.Errorf("tick %d at %v, want %v", i, tick, want)
			}
		default:
			t.Fatalf("missing tick %d", i)
		}
	}

	ticker.Stop()
	c.Advance(time.Minute)
	select {
	case <-ticker.C:
		t.Error("stopped ticker still ticking")
	default:
	}
}

func TestFakeSleepUnblocksOnAdvance(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})

	go func() {
		c.Sleep(5 * time.Second)
		close(done)
	}()

	// Wait for the sleeper to register before advancing.
	for c.WaiterCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	c.Advance(5 * time.Second)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}
