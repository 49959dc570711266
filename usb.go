package kinect

import (
	"fmt"
	"io"

	"github.com/kevmo314/go-kinect/pkg/transfers"
	usb "github.com/kevmo314/go-usb"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewDeviceFromFD opens the camera behind an open usbfs file descriptor.
// A motor is claimed from opts.Registry if one was added.
func NewDeviceFromFD(fd uintptr, opts Options) (*Device, error) {
	handle, err := usb.WrapSysDevice(int(fd))
	if err != nil {
		return nil, fmt.Errorf("failed to wrap usb device: %w", err)
	}
	return newUSBDevice(handle, opts)
}

// AddMotorFromFD offers the motor behind an open usbfs file descriptor to
// registry.
func AddMotorFromFD(registry *Registry, fd uintptr) error {
	handle, err := usb.WrapSysDevice(int(fd))
	if err != nil {
		return fmt.Errorf("failed to wrap usb motor: %w", err)
	}
	registry.AddMotor(handle, handle)
	return nil
}

func newUSBDevice(camera *usb.DeviceHandle, opts Options) (*Device, error) {
	if err := camera.DetachKernelDriver(cameraInterface); err != nil {
		opts.logger().Debug("no kernel driver to detach", "error", err)
	}
	if err := camera.ClaimInterface(cameraInterface); err != nil {
		camera.Close()
		return nil, fmt.Errorf("failed to claim camera interface: %w", err)
	}
	closers := []io.Closer{
		closerFunc(func() error { return camera.ReleaseInterface(cameraInterface) }),
		camera,
	}
	d, err := NewDevice(camera, transfers.WrapHandle(camera), nil, opts, closers...)
	if err != nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}
	return d, nil
}
