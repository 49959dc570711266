package kinect

import "golang.org/x/sys/unix"

func pageSize() int {
	return unix.Getpagesize()
}

// allocImages maps anonymous memory so the slots are page aligned.
func allocImages(size int) ([]byte, func([]byte) error, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return mem, unix.Munmap, nil
}
