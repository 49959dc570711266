package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kinect.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testConfig = `
[device]
startup_init = true
free_led = true

[stream]
frame_pool_size = 5
color_format = "yuyv"

[controls]
brightness = 40000
led = "2"
tilt = 10

[server]
listen = "127.0.0.1:9000"

[logging]
level = "debug"

[logging.modules]
transfers = "warn"
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts, err := Load(writeConfig(t, testConfig))
	if err != nil {
		t.Fatal(err)
	}

	if !opts.StartupInit || !opts.FreeLed || opts.FreeMotor {
		t.Errorf("device options = %+v", opts)
	}
	if opts.FramePoolSize != 5 {
		t.Errorf("FramePoolSize = %d, want 5", opts.FramePoolSize)
	}
	if opts.ImageSlots != 2 {
		t.Errorf("ImageSlots = %d, want default 2", opts.ImageSlots)
	}
	if opts.ColorFormat != "yuyv" {
		t.Errorf("ColorFormat = %q, want yuyv", opts.ColorFormat)
	}
	if opts.Brightness != 40000 {
		t.Errorf("Brightness = %d, want 40000", opts.Brightness)
	}
	if opts.Led != "2" || opts.Tilt != "10" {
		t.Errorf("Led, Tilt = %q, %q, want 2, 10", opts.Led, opts.Tilt)
	}
	if opts.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q, want 127.0.0.1:9000", opts.Listen)
	}
	if opts.LoggingLevel != "debug" {
		t.Errorf("LoggingLevel = %q, want debug", opts.LoggingLevel)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	want := Defaults()
	want.Config = opts.Config
	if opts != want {
		t.Errorf("Load() = %+v, want defaults %+v", opts, want)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	if _, err := Load(writeConfig(t, "[stream\n")); err == nil {
		t.Error("Load() with broken TOML error = nil, want error")
	}
	if _, err := Load(writeConfig(t, "[stream]\nframe_pool_size = \"many\"\n")); err == nil {
		t.Error("Load() with a string for an int error = nil, want error")
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	t.Setenv("KINECT_FRAME_POOL_SIZE", "7")
	t.Setenv("KINECT_FREE_LED", "false")
	t.Setenv("KINECT_BRIGHTNESS", "0xff00")

	opts, err := Load(writeConfig(t, testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if opts.FramePoolSize != 7 {
		t.Errorf("FramePoolSize = %d, want 7", opts.FramePoolSize)
	}
	if opts.FreeLed {
		t.Error("FreeLed = true, want false from env")
	}
	if opts.Brightness != 0xff00 {
		t.Errorf("Brightness = %#x, want 0xff00", opts.Brightness)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Setenv("KINECT_LISTEN", ":1234")

	opts := Defaults()
	opts.Config = writeConfig(t, testConfig)
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Listen, "listen", opts.Listen, "")
	cmd.Flags().IntVar(&opts.FramePoolSize, "frame-pool-size", opts.FramePoolSize, "")
	if err := cmd.Flags().Parse([]string{"--listen", ":5555", "--frame-pool-size", "4"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(&opts, cmd); err != nil {
		t.Fatal(err)
	}
	if opts.Listen != ":5555" {
		t.Errorf("Listen = %q, want :5555 from flag", opts.Listen)
	}
	if opts.FramePoolSize != 4 {
		t.Errorf("FramePoolSize = %d, want 4 from flag", opts.FramePoolSize)
	}
	if opts.ColorFormat != "yuyv" {
		t.Errorf("ColorFormat = %q, want yuyv from file", opts.ColorFormat)
	}
}

func TestLoadConfigNotAStruct(t *testing.T) {
	var n int
	if err := LoadConfig(&n, nil); err == nil {
		t.Error("LoadConfig(*int) error = nil, want error")
	}
}

func TestFlagName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Listen", "listen"},
		{"FreeLed", "free-led"},
		{"FramePoolSize", "frame-pool-size"},
		{"StartupInit", "startup-init"},
	}
	for _, tt := range tests {
		if got := FlagName(tt.in); got != tt.want {
			t.Errorf("FlagName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	cfg := LoadLoggingConfig(writeConfig(t, testConfig))
	if cfg.Level != "debug" || cfg.Format != "text" {
		t.Errorf("level, format = %q, %q, want debug, text", cfg.Level, cfg.Format)
	}
	if got := cfg.Modules["transfers"]; got != "warn" {
		t.Errorf("transfers level = %q, want warn", got)
	}

	opts := Options{LoggingFormat: "json"}
	if got := opts.Logging(cfg); got.Format != "json" || got.Level != "debug" {
		t.Errorf("Logging() = %+v, want json format and debug level", got)
	}
}
