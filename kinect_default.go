//go:build !android

package kinect

import (
	"errors"
	"fmt"

	usb "github.com/kevmo314/go-usb"
)

// OpenDevices opens every Kinect camera on the bus. Motors are added to
// opts.Registry first so each camera is paired with a motor in discovery
// order. A camera that fails to open is skipped and its error returned
// along with the devices that did open.
func OpenDevices(opts Options) ([]*Device, error) {
	list, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("failed to list usb devices: %w", err)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	logger := opts.logger()

	var cameras []int
	for i, dev := range list {
		if dev.Descriptor.VendorID != VendorID {
			continue
		}
		switch dev.Descriptor.ProductID {
		case MotorProductID:
			handle, err := dev.Open()
			if err != nil {
				logger.Warn("failed to open motor", "path", dev.Path, "error", err)
				continue
			}
			opts.Registry.AddMotor(handle, handle)
		case CameraProductID:
			cameras = append(cameras, i)
		}
	}

	var devices []*Device
	var errs error
	for _, i := range cameras {
		dev := list[i]
		handle, err := dev.Open()
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to open camera %s: %w", dev.Path, err))
			continue
		}
		d, err := newUSBDevice(handle, opts)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("camera %s: %w", dev.Path, err))
			continue
		}
		devices = append(devices, d)
	}
	if len(cameras) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no camera %04x:%04x found", VendorID, CameraProductID))
	}
	return devices, errs
}

// OpenPath opens the camera at cameraPath, a usbfs path such as
// /dev/bus/usb/001/005. The motor at motorPath is paired with it; with an
// empty motorPath the first motor on the bus is used, if any.
func OpenPath(cameraPath, motorPath string, opts Options) (*Device, error) {
	list, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("failed to list usb devices: %w", err)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	camera, motor := -1, -1
	for i, dev := range list {
		switch {
		case dev.Path == cameraPath:
			camera = i
		case motorPath != "" && dev.Path == motorPath:
			motor = i
		case motorPath == "" && motor < 0 &&
			dev.Descriptor.VendorID == VendorID && dev.Descriptor.ProductID == MotorProductID:
			motor = i
		}
	}
	if camera < 0 {
		return nil, fmt.Errorf("no usb device at %s", cameraPath)
	}
	if motor < 0 && motorPath != "" {
		return nil, fmt.Errorf("no usb device at %s", motorPath)
	}

	if motor >= 0 {
		handle, err := list[motor].Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open motor %s: %w", list[motor].Path, err)
		}
		opts.Registry.AddMotor(handle, handle)
	}
	handle, err := list[camera].Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", cameraPath, err)
	}
	return newUSBDevice(handle, opts)
}
