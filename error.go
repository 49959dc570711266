package kinect

import (
	"errors"
	"syscall"
)

var (
	ErrBusy          = errors.New("stream is already open")
	ErrWouldBlock    = errors.New("no frame ready")
	ErrNotOpen       = errors.New("stream is not open")
	ErrClosed        = errors.New("device is closed")
	ErrDisconnected  = errors.New("device disconnected")
	ErrInvalidFormat = errors.New("invalid pixel format")
	ErrNoMotor       = errors.New("no motor device")
	ErrInvalidLED    = errors.New("invalid led value")
	ErrInvalidTilt   = errors.New("invalid tilt value")
	ErrInvalidBuffer = errors.New("invalid buffer index")
	ErrStopped       = errors.New("stream stopped")
)

// isDisconnect reports whether a transfer error means the device is gone
// rather than a transient bus error.
func isDisconnect(err error) bool {
	return errors.Is(err, syscall.ENODEV) || errors.Is(err, syscall.ESHUTDOWN) || errors.Is(err, ErrDisconnected)
}
