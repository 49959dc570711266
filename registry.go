package kinect

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/kevmo314/go-kinect/internal/logging"
	"github.com/kevmo314/go-kinect/pkg/requests"
)

type motorHandle struct {
	handle requests.ControlTransferer
	closer io.Closer
}

// Registry tracks the devices of a process. It hands out device indexes
// and pairs each camera with the first unclaimed motor, since the two show
// up as separate USB devices. Close tears down everything registered.
type Registry struct {
	mu      sync.Mutex
	next    int
	motors  []motorHandle
	devices map[int]*Device
	logger  *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[int]*Device),
		logger:  logging.GetLogger("device"),
	}
}

// AddMotor offers a motor device for pairing. closer, if not nil, is
// closed with the device that claims the motor or with the registry.
func (r *Registry) AddMotor(handle requests.ControlTransferer, closer io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.motors = append(r.motors, motorHandle{handle, closer})
	r.logger.Debug("motor registered", "unclaimed", len(r.motors))
}

func (r *Registry) claimMotor() (motorHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.motors) == 0 {
		return motorHandle{}, false
	}
	m := r.motors[0]
	r.motors = r.motors[1:]
	return m, true
}

// UnclaimedMotors is the number of motors waiting for a camera.
func (r *Registry) UnclaimedMotors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.motors)
}

func (r *Registry) add(d *Device) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.next
	r.next++
	r.devices[i] = d
	return i
}

func (r *Registry) remove(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.devices[d.index] == d {
		delete(r.devices, d.index)
	}
}

// Device returns the device registered with index i.
func (r *Registry) Device(i int) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[i]
	return d, ok
}

// Devices returns the registered devices in index order.
func (r *Registry) Devices() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices := make([]*Device, 0, len(r.devices))
	for i := 0; i < r.next; i++ {
		if d, ok := r.devices[i]; ok {
			devices = append(devices, d)
		}
	}
	return devices
}

// Close closes every registered device and unclaimed motor.
func (r *Registry) Close() error {
	var err error
	for _, d := range r.Devices() {
		err = errors.Join(err, d.Close())
	}
	r.mu.Lock()
	motors := r.motors
	r.motors = nil
	r.mu.Unlock()
	for _, m := range motors {
		if m.closer != nil {
			err = errors.Join(err, m.closer.Close())
		}
	}
	return err
}
