package sched

import (
	"context"
	"testing"
	"time"
)

func TestFake_AfterFiresInOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	a := f.After(1 * time.Second)
	b := f.After(3 * time.Second)

	f.Advance(2 * time.Second)
	select {
	case <-a:
	default:
		t.Fatal("first waiter should have fired")
	}
	select {
	case <-b:
		t.Fatal("second waiter fired early")
	default:
	}

	f.Advance(2 * time.Second)
	select {
	case <-b:
	default:
		t.Fatal("second waiter should have fired")
	}
}

func TestFake_SleepCancellable(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- f.Sleep(ctx, time.Hour)
	}()
	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Sleep returned %v, want context.Canceled", err)
	}
}

func TestFake_NonPositiveAfterFiresImmediately(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	select {
	case <-f.After(0):
	default:
		t.Fatal("zero-duration wait should be ready immediately")
	}
}
