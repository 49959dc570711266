package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeFrame uint32 = iota + 1
	TypeStreamState
	TypeStreamError
	TypeDevice
	TypeMotor
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameEvent is published for every reassembled raw frame.
type FrameEvent struct {
	Device    string    `json:"device" doc:"Device identifier"`
	Stream    string    `json:"stream" example:"rgb" doc:"Stream name"`
	Session   string    `json:"session" doc:"Stream session identifier"`
	Sequence  uint32    `json:"sequence" doc:"Frame sequence number since the stream started"`
	Timestamp uint32    `json:"timestamp" doc:"Sensor timestamp of the frame"`
	Dropped   bool      `json:"dropped" doc:"Whether an undelivered frame was overwritten"`
	Time      time.Time `json:"time" doc:"Host time of completion"`
}

func (e FrameEvent) Type() uint32 { return TypeFrame }

// StreamState values.
const (
	StateOpened    = "opened"
	StateStreaming = "streaming"
	StateStopped   = "stopped"
	StateClosed    = "closed"
)

// StreamStateEvent reports stream lifecycle changes.
type StreamStateEvent struct {
	Device  string `json:"device" doc:"Device identifier"`
	Stream  string `json:"stream" example:"depth" doc:"Stream name"`
	Session string `json:"session" doc:"Stream session identifier"`
	State   string `json:"state" example:"streaming" doc:"New state"`
	Format  string `json:"format" example:"RGB24" doc:"Pixel format"`
}

func (e StreamStateEvent) Type() uint32 { return TypeStreamState }

// StreamErrorEvent reports an error latched on a stream.
type StreamErrorEvent struct {
	Device  string `json:"device" doc:"Device identifier"`
	Stream  string `json:"stream" doc:"Stream name"`
	Session string `json:"session" doc:"Stream session identifier"`
	Error   string `json:"error" doc:"Error description"`
}

func (e StreamErrorEvent) Type() uint32 { return TypeStreamError }

// DeviceEvent reports devices being opened, disconnected and closed.
type DeviceEvent struct {
	Device string `json:"device" doc:"Device identifier"`
	Action string `json:"action" example:"opened" doc:"Action: opened, disconnected, closed"`
	Motor  bool   `json:"motor" doc:"Whether a motor device is paired"`
}

func (e DeviceEvent) Type() uint32 { return TypeDevice }

// MotorEvent reports LED and tilt changes.
type MotorEvent struct {
	Device string `json:"device" doc:"Device identifier"`
	LED    string `json:"led" example:"green" doc:"LED state"`
	Tilt   int    `json:"tilt" example:"0" doc:"Tilt in degrees"`
}

func (e MotorEvent) Type() uint32 { return TypeMotor }
