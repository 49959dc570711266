//go:build !linux

package kinect

import "os"

func pageSize() int {
	return os.Getpagesize()
}

func allocImages(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}
