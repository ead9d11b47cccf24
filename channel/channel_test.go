package channel

import (
	"context"
	"testing"
	"time"
)

// Test_Or verifies Or closes its combined done channel once any one
// of its input channels closes.
func Test_Or(t *testing.T) {
	a := make(chan struct{})
	b := make(chan struct{})
	c := make(chan struct{})

	done := Or(a, b, c)

	// nothing has closed yet, so done should stay open briefly
	select {
	case <-done:
		t.Fatal("done should not be closed yet")
	case <-time.After(10 * time.Second):
		// OK
	}

	// closes once any input closes
	close(c)
	select {
	case <-done:
		// OK
		close(a)
		close(b)
		t.Logf("done closed after closing c")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for done to close after closing an input")
	}
}

// Test_OrDone verifies OrDone forwards values correctly and handles
// context cancellation.
func Test_OrDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan int)
	out := OrDone[int](ctx, in)

	// 1) values forward in order
	go func() {
		in <- 1
		in <- 2
		// 2) in is left open here so the stall case below can be set up
	}()

	select {
	case v := <-out:
		if v != 1 {
			t.Fatalf("expected 1, got %d", v)
		}

		t.Logf("first value received")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout: expected first value")
	}

	select {
	case v := <-out:
		if v != 2 {
			t.Fatalf("expected 2, got %d", v)
		}
		t.Logf("second value received")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout: expected second value")
	}

	// 3) a send on in with nobody reading out can stall OrDone inside its
	//    internal forwarding send. Confirm ctx cancel still unblocks it.
	go func() { in <- 999 }()

	// give the send a chance to stall
	time.Sleep(1 * time.Second)

	// 4) ctx cancel closes out
	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected out to be closed after ctx cancel")
		}
		t.Logf("out closed after ctx cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout: expected out to close after ctx cancel")
	}
}

// TestTee_minimumCoverage verifies Tee fans an input out to two output
// channels and closes both correctly.
func TestTee_minimumCoverage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan int)
	out1, out2 := Tee[int](ctx, in)

	// send then close the input
	go func() {
		defer close(in)
		in <- 10
		in <- 20
		in <- 30
	}()

	// out1/out2 should each receive the same sequence (fan-out)
	expectedAddNum := 3
	got1 := make([]int, 0, expectedAddNum)
	got2 := make([]int, 0, expectedAddNum)

	deadline := time.After(10 * time.Second)
	for len(got1) < 3 || len(got2) < 3 {
		select {
		case v, ok := <-out1:
			if !ok {
				// closing before all values are drained is a failure
				if len(got1) < expectedAddNum {
					t.Fatalf("out1 closed early: got=%v", got1)
				}
			} else {
				got1 = append(got1, v)
			}
		case v, ok := <-out2:
			if !ok {
				if len(got2) < expectedAddNum {
					t.Fatalf("out2 closed early: got=%v", got2)
				}
			} else {
				got2 = append(got2, v)
			}
		case <-deadline:
			t.Fatalf("timeout: got1=%v got2=%v", got1, got2)
		}
	}

	want := []int{10, 20, 30}
	for i := range want {
		if got1[i] != want[i] {
			t.Fatalf("out1[%d]: want %d, got %d (got1=%v)", i, want[i], got1[i], got1)
		}
		if got2[i] != want[i] {
			t.Fatalf("out2[%d]: want %d, got %d (got2=%v)", i, want[i], got2[i], got2)
		}
	}

	// both outputs should close once the input closes
	// drain any buffered values while waiting for close
	waitClosed := func(ch <-chan int, name string) {
		t.Helper()
		select {
		case _, ok := <-ch:
			if ok {
				// a value could still appear here, though this test already drained all 3
				// if one appears, drain until close
				for range ch {
				}
			}
		case <-time.After(200 * time.Millisecond):
			// nothing pending, fall through to waiting for close
		}

		select {
		case _, ok := <-ch:
			if ok {
				// still open, drain it
				for range ch {
				}
			}
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("timeout: %s should close after input closes", name)
		}
	}

	waitClosed(out1, "out1")
	waitClosed(out2, "out2")
}
