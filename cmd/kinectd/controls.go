package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	kinect "github.com/kevmo314/go-kinect"
	"github.com/kevmo314/go-kinect/internal/config"
	"github.com/kevmo314/go-kinect/pkg/formats"
)

// deviceOptions maps the daemon options onto the driver's.
func deviceOptions(opts *config.Options) (kinect.Options, error) {
	color, err := formats.ParsePixelFormat(opts.ColorFormat)
	if err != nil {
		return kinect.Options{}, fmt.Errorf("color format: %w", err)
	}
	depth, err := formats.ParsePixelFormat(opts.DepthFormat)
	if err != nil {
		return kinect.Options{}, fmt.Errorf("depth format: %w", err)
	}
	return kinect.Options{
		StartupInit:   opts.StartupInit,
		FreeLED:       opts.FreeLed,
		FreeMotor:     opts.FreeMotor,
		FramePoolSize: opts.FramePoolSize,
		ImageSlots:    opts.ImageSlots,
		ColorFormat:   color,
		DepthFormat:   depth,
		Metrics:       opts.Metrics,
	}, nil
}

func openDevice(opts *config.Options, kopts kinect.Options) (*kinect.Device, error) {
	if opts.Device != "" {
		return kinect.OpenPath(opts.Device, opts.Motor, kopts)
	}
	devices, err := kinect.OpenDevices(kopts)
	if len(devices) == 0 {
		return nil, err
	}
	for _, d := range devices[1:] {
		d.Close()
	}
	return devices[0], nil
}

// applyControls sets the brightness of both streams, then the LED and tilt
// when they are configured. Every control is attempted.
func applyControls(dev *kinect.Device, opts *config.Options) error {
	for _, kind := range []kinect.StreamKind{kinect.StreamColor, kinect.StreamDepth} {
		dev.Stream(kind).SetBrightness(opts.Brightness)
	}

	var errs error
	if led := strings.TrimSpace(opts.Led); led != "" {
		l, err := kinect.ParseLED([]byte(led))
		if err == nil {
			err = dev.SetLED(l)
		}
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("led %q: %w", led, err))
		}
	}
	if tilt := strings.TrimSpace(opts.Tilt); tilt != "" {
		degrees, err := strconv.Atoi(tilt)
		if err != nil {
			err = kinect.ErrInvalidTilt
		} else {
			err = dev.SetTilt(degrees)
		}
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("tilt %q: %w", tilt, err))
		}
	}
	return errs
}
