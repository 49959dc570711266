package kinect

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kevmo314/go-kinect/internal/logging"
	"github.com/kevmo314/go-kinect/pkg/requests"
)

// LED is a front panel LED state.
type LED uint8

const (
	LEDOff LED = iota
	LEDGreen
	LEDRed
	LEDYellow
	LEDBlinkYellow
	LEDBlinkGreen
	LEDBlinkRedYellow
)

var ledNames = [...]string{"off", "green", "red", "yellow", "blink yellow", "blink green", "blink red yellow"}

func (l LED) Valid() bool {
	return int(l) < len(ledNames)
}

func (l LED) String() string {
	if !l.Valid() {
		return fmt.Sprintf("LED(%d)", uint8(l))
	}
	return ledNames[l]
}

const (
	MinTilt = -31
	MaxTilt = 31

	// AccelCountsPerG is the accelerometer reading for 1 g.
	AccelCountsPerG = 819
	// StandardGravity in m/s².
	StandardGravity = 9.80665

	accelReplySize = 10
)

// Motor drives the tilt motor, the LED and the accelerometer, which live
// on a separate USB device from the camera.
type Motor struct {
	mu     sync.Mutex
	handle requests.ControlTransferer
	led    LED
	tilt   int
	logger *slog.Logger
}

func NewMotor(handle requests.ControlTransferer, logger *slog.Logger) *Motor {
	if logger == nil {
		logger = logging.GetLogger("motor")
	}
	return &Motor{handle: handle, logger: logger}
}

func (m *Motor) SetLED(led LED) error {
	if m == nil {
		return ErrNoMotor
	}
	if !led.Valid() {
		return fmt.Errorf("%d: %w", uint8(led), ErrInvalidLED)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.handle.ControlTransfer(
		uint8(requests.RequestTypeVendorSetRequest),
		uint8(requests.RequestCodeSetLED),
		uint16(led), 0, nil, controlTimeout); err != nil {
		return fmt.Errorf("failed to set led to %v: %w", led, err)
	}
	m.led = led
	m.logger.Debug("led set", "led", led)
	return nil
}

// LED is the last LED state set.
func (m *Motor) LED() LED {
	if m == nil {
		return LEDOff
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.led
}

// SetTilt moves the sensor to degrees from horizontal, clamped to
// [MinTilt, MaxTilt].
func (m *Motor) SetTilt(degrees int) error {
	if m == nil {
		return ErrNoMotor
	}
	degrees = min(max(degrees, MinTilt), MaxTilt)
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.handle.ControlTransfer(
		uint8(requests.RequestTypeVendorSetRequest),
		uint8(requests.RequestCodeSetTilt),
		uint16(int16(degrees*2)), 0, nil, controlTimeout); err != nil {
		return fmt.Errorf("failed to set tilt to %d: %w", degrees, err)
	}
	m.tilt = degrees
	m.logger.Debug("tilt set", "degrees", degrees)
	return nil
}

// Tilt is the last tilt set, in degrees.
func (m *Motor) Tilt() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tilt
}

// Accelerometer returns the raw accelerometer axes.
func (m *Motor) Accelerometer() (x, y, z int16, err error) {
	if m == nil {
		return 0, 0, 0, ErrNoMotor
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, accelReplySize)
	n, err := m.handle.ControlTransfer(
		uint8(requests.RequestTypeVendorGetRequest),
		uint8(requests.RequestCodeGetTiltState),
		0, 0, buf, controlTimeout)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to read accelerometer: %w", err)
	}
	if n < accelReplySize {
		return 0, 0, 0, fmt.Errorf("accelerometer reply is %d bytes, want %d", n, accelReplySize)
	}
	x = int16(binary.BigEndian.Uint16(buf[2:4]))
	y = int16(binary.BigEndian.Uint16(buf[4:6]))
	z = int16(binary.BigEndian.Uint16(buf[6:8]))
	return x, y, z, nil
}

// AccelerometerMKS returns the accelerometer axes in m/s².
func (m *Motor) AccelerometerMKS() (x, y, z float64, err error) {
	ix, iy, iz, err := m.Accelerometer()
	if err != nil {
		return 0, 0, 0, err
	}
	scale := StandardGravity / AccelCountsPerG
	return float64(ix) * scale, float64(iy) * scale, float64(iz) * scale, nil
}
