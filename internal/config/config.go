// Package config loads kinectd options from a TOML file, KINECT_ environment
// variables and command line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/kevmo314/go-kinect/internal/logging"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const EnvPrefix = "KINECT_"

// Options is the flat configuration of kinectd. Field names map to flags
// ("FramePoolSize" is --frame-pool-size), toml tags to dotted keys and env
// tags to KINECT_-prefixed variables.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"kinectd.toml"`

	// Device settings
	Device      string `help:"usbfs path of the camera, the first camera on the bus if empty" toml:"device.path" env:"DEVICE"`
	Motor       string `help:"usbfs path of the motor, the first motor on the bus if empty" toml:"device.motor" env:"MOTOR"`
	StartupInit bool   `help:"Replay the power-up command sequence at open" toml:"device.startup_init" env:"STARTUP_INIT"`
	FreeLed     bool   `help:"Leave the LED alone instead of showing stream activity" toml:"device.free_led" env:"FREE_LED"`
	FreeMotor   bool   `help:"Leave the tilt where it is at open" toml:"device.free_motor" env:"FREE_MOTOR"`

	// Stream settings
	FramePoolSize int    `help:"Raw frame buffers per stream" default:"3" toml:"stream.frame_pool_size" env:"FRAME_POOL_SIZE"`
	ImageSlots    int    `help:"Decoded image slots per stream" default:"2" toml:"stream.image_slots" env:"IMAGE_SLOTS"`
	ColorFormat   string `help:"Initial color pixel format" default:"rgb24" toml:"stream.color_format" env:"COLOR_FORMAT"`
	DepthFormat   string `help:"Initial depth pixel format" default:"depth-rgb24" toml:"stream.depth_format" env:"DEPTH_FORMAT"`

	// Brightness, Led and Tilt are applied at startup and on reload. An
	// empty Led or Tilt leaves the motor alone.
	Brightness int    `help:"Color brightness, 0 to 65280 in steps of 256; 32512 leaves images unchanged" default:"32512" toml:"controls.brightness" env:"BRIGHTNESS"`
	Led        string `help:"LED value 0-6" toml:"controls.led" env:"LED"`
	Tilt       string `help:"Tilt in degrees" toml:"controls.tilt" env:"TILT"`

	// Server settings
	Listen  string `help:"Address to listen on" short:"p" default:":8090" toml:"server.listen" env:"LISTEN"`
	Metrics bool   `help:"Serve Prometheus metrics" default:"true" toml:"server.metrics" env:"METRICS"`
	Watch   bool   `help:"Reload controls when the configuration file changes" toml:"server.watch" env:"WATCH"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func Defaults() Options {
	return Options{
		FramePoolSize: 3,
		ImageSlots:    2,
		ColorFormat:   "rgb24",
		DepthFormat:   "depth-rgb24",
		Brightness:    0x7f00,
		Listen:        ":8090",
		Metrics:       true,
		LoggingLevel:  "info",
		LoggingFormat: "text",
	}
}

// Load reads the defaults overlaid with the file at path and the
// environment. It is the loader used for reloads.
func Load(path string) (Options, error) {
	opts := Defaults()
	opts.Config = path
	if err := LoadConfig(&opts, nil); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// LoadConfig fills opts, a pointer to a struct, from its Config file and the
// environment. Flags explicitly set on cmd are left alone.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: %T is not a pointer to a struct", opts)
	}
	v = v.Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	var file map[string]any
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String && f.String() != "" {
		data, err := os.ReadFile(f.String())
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse %s: %w", f.String(), err)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to read %s: %w", f.String(), err)
		}
	}

	for i := 0; i < v.NumField(); i++ {
		field, sf := v.Field(i), t.Field(i)
		if changed[FlagName(sf.Name)] {
			continue
		}
		if key := sf.Tag.Get("toml"); key != "" && file != nil {
			if value := lookup(file, key); value != nil {
				if err := setValue(field, value); err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
			}
		}
		if key := sf.Tag.Get("env"); key != "" {
			if value, ok := os.LookupEnv(EnvPrefix + key); ok && value != "" {
				if err := setString(field, value); err != nil {
					return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
				}
			}
		}
	}
	return nil
}

// FlagName converts a field name to its flag name: "FreeLed" is "free-led".
func FlagName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func lookup(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := data[part].(map[string]any)
		if !ok {
			return nil
		}
		data = next
	}
	return data[parts[len(parts)-1]]
}

func setValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		switch x := value.(type) {
		case string:
			field.SetString(x)
		case int64:
			field.SetString(strconv.FormatInt(x, 10))
		default:
			return fmt.Errorf("want a string, got %T", value)
		}
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("want a bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int:
		i, ok := value.(int64)
		if !ok {
			return fmt.Errorf("want an integer, got %T", value)
		}
		field.SetInt(i)
	}
	return nil
}

func setString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int:
		i, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table of the file at path, module
// levels included. A missing or unreadable file gives the defaults.
func LoadLoggingConfig(path string) logging.Config {
	cfg := logging.Config{Level: "info", Format: "text", Modules: map[string]string{}}
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var raw struct {
		Logging logging.Config `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}
	if raw.Logging.Level != "" {
		cfg.Level = raw.Logging.Level
	}
	if raw.Logging.Format != "" {
		cfg.Format = raw.Logging.Format
	}
	for module, level := range raw.Logging.Modules {
		cfg.Modules[module] = level
	}
	return cfg
}

// Logging merges the logging options into the module levels of base.
func (o *Options) Logging(base logging.Config) logging.Config {
	if o.LoggingLevel != "" {
		base.Level = o.LoggingLevel
	}
	if o.LoggingFormat != "" {
		base.Format = o.LoggingFormat
	}
	return base
}
