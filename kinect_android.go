//go:build android

package kinect

import "errors"

// OpenDevices is not available on Android, where apps get file
// descriptors from UsbManager; use NewDeviceFromFD and AddMotorFromFD.
func OpenDevices(opts Options) ([]*Device, error) {
	return nil, errors.New("usb device discovery is not supported on android")
}

func OpenPath(cameraPath, motorPath string, opts Options) (*Device, error) {
	return nil, errors.New("usb device discovery is not supported on android")
}
