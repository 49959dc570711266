// Package kinect drives the camera and motor of a Kinect sensor over USB:
// it reassembles the color and depth isochronous streams into frames,
// decodes them into the requested pixel format and exposes the LED, tilt
// motor and accelerometer.
package kinect

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kevmo314/go-kinect/internal/events"
	"github.com/kevmo314/go-kinect/internal/logging"
	"github.com/kevmo314/go-kinect/internal/metrics"
	"github.com/kevmo314/go-kinect/pkg/formats"
	"github.com/kevmo314/go-kinect/pkg/requests"
	"github.com/kevmo314/go-kinect/pkg/transfers"
)

type Options struct {
	// Name identifies the device in logs, metrics and events. It defaults
	// to "kinect<index>".
	Name string
	// StartupInit replays the power-up command sequence at open. The
	// per-stream start and stop commands are then skipped.
	StartupInit bool
	// FreeLED leaves the LED alone instead of signalling stream activity.
	FreeLED bool
	// FreeMotor leaves the tilt where it is at open.
	FreeMotor bool

	FramePoolSize int
	ImageSlots    int
	NumTransfers  int
	NumPackets    int

	// ColorFormat and DepthFormat are selected when a stream is opened.
	ColorFormat formats.PixelFormat
	DepthFormat formats.PixelFormat

	Metrics  bool
	Bus      *events.Bus
	Registry *Registry
	Logger   *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.GetLogger("device")
}

func (o *Options) setDefaults() {
	if o.FramePoolSize < 1 {
		o.FramePoolSize = DefaultFramePoolSize
	}
	if o.ImageSlots < 1 {
		o.ImageSlots = DefaultImageSlots
	}
	if o.NumTransfers < 1 {
		o.NumTransfers = transfers.DefaultNumTransfers
	}
	if o.NumPackets < 1 {
		o.NumPackets = transfers.DefaultNumPackets
	}
	if o.ColorFormat == formats.PixelFormatUnknown {
		o.ColorFormat = streamConfigs[StreamColor].format
	}
	if o.DepthFormat == formats.PixelFormatUnknown {
		o.DepthFormat = streamConfigs[StreamDepth].format
	}
	if o.Registry == nil {
		o.Registry = NewRegistry()
	}
	o.Logger = o.logger()
}

// Device is an opened sensor: the camera, its two streams and, when one
// is paired, the motor.
type Device struct {
	name      string
	index     int
	opts      Options
	logger    *slog.Logger
	bus       *events.Bus
	registry  *Registry
	camera    *Camera
	motor     *Motor
	transfers transfers.TransferFactory
	streams   [2]*Stream
	closers   []io.Closer

	mu          sync.Mutex
	openStreams int
	closed      bool
}

// NewDevice builds a device on a camera control channel and a source of
// isochronous transfers. If motor is nil a motor is claimed from
// opts.Registry, and without one the motor controls return ErrNoMotor.
// closers are closed, in order, by Close.
func NewDevice(camera requests.ControlTransferer, factory transfers.TransferFactory, motor requests.ControlTransferer, opts Options, closers ...io.Closer) (*Device, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()
	d := &Device{
		opts:      opts,
		bus:       opts.Bus,
		registry:  opts.Registry,
		transfers: factory,
		closers:   closers,
	}
	if motor == nil {
		if m, ok := d.registry.claimMotor(); ok {
			motor = m.handle
			if m.closer != nil {
				d.closers = append(d.closers, m.closer)
			}
		}
	}

	d.index = d.registry.add(d)
	d.name = opts.Name
	if d.name == "" {
		d.name = fmt.Sprintf("kinect%d", d.index)
	}
	d.logger = opts.Logger.With("device", d.name)
	d.camera = NewCamera(camera, d.logger.With("module", "camera"))
	if motor != nil {
		d.motor = NewMotor(motor, d.logger.With("module", "motor"))
	}
	for i := range d.streams {
		d.streams[i] = newStream(d, &streamConfigs[i])
	}

	d.init()
	d.logger.Info("device opened", "motor", d.motor != nil, "startup_init", opts.StartupInit)
	d.bus.Publish(events.DeviceEvent{Device: d.name, Action: "opened", Motor: d.motor != nil})
	return d, nil
}

func (o *Options) validate() error {
	if o.ColorFormat != formats.PixelFormatUnknown && (!o.ColorFormat.Valid() || o.ColorFormat.IsDepth()) {
		return fmt.Errorf("color format %v: %w", o.ColorFormat, ErrInvalidFormat)
	}
	if o.DepthFormat != formats.PixelFormatUnknown && !o.DepthFormat.IsDepth() {
		return fmt.Errorf("depth format %v: %w", o.DepthFormat, ErrInvalidFormat)
	}
	return nil
}

// init sets the LED and tilt and runs the startup sequence. Failures are
// logged; the device stays usable.
func (d *Device) init() {
	if d.motor != nil {
		if !d.opts.FreeLED {
			d.setLED(LEDGreen)
		}
		if !d.opts.FreeMotor {
			if err := d.motor.SetTilt(0); err != nil {
				d.controlError("motor", "failed to reset tilt", err)
			}
		}
	}
	if !d.opts.StartupInit {
		return
	}
	d.logger.Info("initializing sensor")
	if d.motor != nil && !d.opts.FreeLED {
		d.setLED(LEDBlinkRedYellow)
	}
	if err := d.camera.StartupInit(); err != nil {
		d.controlError("camera", "startup init failed", err)
	}
	if d.motor != nil && !d.opts.FreeLED {
		d.setLED(LEDGreen)
	}
}

func (d *Device) setLED(led LED) {
	if err := d.motor.SetLED(led); err != nil {
		d.controlError("motor", "failed to set led", err)
	}
}

func (d *Device) controlError(target, msg string, err error) {
	d.logger.Warn(msg, "error", err)
	if d.opts.Metrics {
		metrics.ControlError(d.name, target)
	}
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) Index() int {
	return d.index
}

func (d *Device) Stream(kind StreamKind) *Stream {
	return d.streams[kind]
}

func (d *Device) Color() *Stream {
	return d.streams[StreamColor]
}

func (d *Device) Depth() *Stream {
	return d.streams[StreamDepth]
}

func (d *Device) Camera() *Camera {
	return d.camera
}

// Motor is nil when no motor is paired with the camera.
func (d *Device) Motor() *Motor {
	return d.motor
}

func (d *Device) HasMotor() bool {
	return d.motor != nil
}

func (d *Device) SetLED(led LED) error {
	if err := d.motor.SetLED(led); err != nil {
		return err
	}
	d.publishMotor()
	return nil
}

func (d *Device) SetTilt(degrees int) error {
	if err := d.motor.SetTilt(degrees); err != nil {
		return err
	}
	d.publishMotor()
	return nil
}

func (d *Device) Accelerometer() (x, y, z int16, err error) {
	return d.motor.Accelerometer()
}

func (d *Device) publishMotor() {
	d.bus.Publish(events.MotorEvent{Device: d.name, LED: d.motor.LED().String(), Tilt: d.motor.Tilt()})
}

func (d *Device) defaultFormat(kind StreamKind) formats.PixelFormat {
	if kind == StreamDepth {
		return d.opts.DepthFormat
	}
	return d.opts.ColorFormat
}

func (d *Device) startSensor(cfg *streamConfig) error {
	if d.opts.StartupInit {
		return nil
	}
	if err := d.camera.writeRegisters(cfg.start); err != nil {
		d.controlError("camera", "failed to start sensor stream", err)
		return err
	}
	return nil
}

func (d *Device) stopSensor(cfg *streamConfig) error {
	if d.opts.StartupInit {
		return nil
	}
	if err := d.camera.writeRegisters(cfg.stop); err != nil {
		d.controlError("camera", "failed to stop sensor stream", err)
		return err
	}
	return nil
}

func (d *Device) streamOpened() {
	d.mu.Lock()
	d.openStreams++
	d.mu.Unlock()
	if d.motor != nil && !d.opts.FreeLED {
		d.setLED(LEDRed)
	}
}

func (d *Device) streamClosed() {
	d.mu.Lock()
	d.openStreams--
	idle := d.openStreams == 0
	closed := d.closed
	d.mu.Unlock()
	if idle && !closed && d.motor != nil && !d.opts.FreeLED {
		d.setLED(LEDGreen)
	}
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Disconnect marks the device as gone. Open streams fail with
// ErrDisconnected until they are closed.
func (d *Device) Disconnect() {
	d.logger.Warn("device disconnected")
	for _, s := range d.streams {
		s.fail(ErrDisconnected)
	}
	d.bus.Publish(events.DeviceEvent{Device: d.name, Action: "disconnected", Motor: d.motor != nil})
}

// Close closes both streams, releases the USB handles and removes the
// device from its registry.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	var err error
	for _, s := range d.streams {
		if cerr := s.Close(); cerr != nil && !errors.Is(cerr, ErrNotOpen) {
			err = errors.Join(err, cerr)
		}
	}
	for _, c := range d.closers {
		err = errors.Join(err, c.Close())
	}
	d.registry.remove(d)
	d.logger.Info("device closed")
	d.bus.Publish(events.DeviceEvent{Device: d.name, Action: "closed", Motor: d.motor != nil})
	return err
}
