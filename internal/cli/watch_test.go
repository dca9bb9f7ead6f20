package cli

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchFileDebouncesWrites(t *testing.T) {
	input := writeInput(t, "deps.txt", chainTxt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, input, 50*time.Millisecond, func() { calls.Add(1) }, nil)
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(input, []byte(chainTxt+"C D\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("onChange called %d times, want 1", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("watchFile = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watchFile did not stop on cancel")
	}
}

func TestWatchFileIgnoresOtherFiles(t *testing.T) {
	input := writeInput(t, "deps.txt", chainTxt)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(input+".bak", []byte("x"), 0o644)
	}()
	_ = watchFile(ctx, input, 20*time.Millisecond, func() { calls.Add(1) }, nil)

	if got := calls.Load(); got != 0 {
		t.Errorf("onChange called %d times for a sibling file, want 0", got)
	}
}

func TestWatchFileMissingDirectory(t *testing.T) {
	err := watchFile(context.Background(), "/nonexistent/dir/deps.txt", time.Millisecond, func() {}, nil)
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
