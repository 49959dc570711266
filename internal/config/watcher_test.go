package config

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, "[controls]\nled = \"1\"\n")

	received := make(chan Options, 4)
	w := NewWatcher(path, Load, newTestLogger(), WithDebounce[Options](20*time.Millisecond))
	w.OnReload(func(o Options) { received <- o })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[controls]\nled = \"3\"\ntilt = -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case o := <-received:
		if o.Led != "3" || o.Tilt != "-5" {
			t.Errorf("reloaded led, tilt = %q, %q, want 3, -5", o.Led, o.Tilt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := writeConfig(t, "")

	first := make(chan Options, 4)
	second := make(chan Options, 4)
	w := NewWatcher(path, Load, newTestLogger(), WithDebounce[Options](20*time.Millisecond))
	unsubscribe := w.OnReload(func(o Options) { first <- o })
	w.OnReload(func(o Options) { second <- o })
	unsubscribe()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[server]\nmetrics = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case o := <-second:
		if o.Metrics {
			t.Error("Metrics = true, want false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	select {
	case <-first:
		t.Error("unsubscribed handler was called")
	default:
	}
}

func TestWatcherReloadError(t *testing.T) {
	path := writeConfig(t, "")

	errs := make(chan error, 4)
	loader := func(string) (Options, error) { return Options{}, errors.New("bad config") }
	w := NewWatcher(path, loader, newTestLogger(),
		WithDebounce[Options](20*time.Millisecond),
		WithErrorHandler[Options](func(err error) { errs <- err }))
	w.OnReload(func(Options) { t.Error("handler called after a failed reload") })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w := NewWatcher("unused.toml", Load, newTestLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
