package kinect

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kevmo314/go-kinect/internal/logging"
	"github.com/kevmo314/go-kinect/pkg/requests"
)

const (
	controlTimeout = time.Second

	cmdWriteRegister = 0x03

	descriptorValue = 0x3ee
	descriptorSize  = 0x12
)

// maxReplyPolls bounds how long SendCommand waits for a non-empty reply.
const maxReplyPolls = 1000

// Camera is the command channel of the camera device. Commands are
// serialized and tagged; every reply is checked against the command that
// caused it.
type Camera struct {
	mu     sync.Mutex
	handle requests.ControlTransferer
	tag    uint16
	logger *slog.Logger
}

func NewCamera(handle requests.ControlTransferer, logger *slog.Logger) *Camera {
	if logger == nil {
		logger = logging.GetLogger("camera")
	}
	return &Camera{handle: handle, logger: logger}
}

// SendCommand sends cmd with payload and returns the reply payload.
func (c *Camera) SendCommand(cmd uint16, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command(cmd, payload)
}

// command sends cmd with the next tag. The caller holds c.mu.
func (c *Camera) command(cmd uint16, payload []byte) ([]byte, error) {
	if c.tag == 0 {
		desc := make([]byte, descriptorSize)
		if _, err := c.handle.ControlTransfer(
			uint8(requests.RequestTypeStandardGetRequest),
			uint8(requests.RequestCodeGetDescriptor),
			descriptorValue, 0, desc, controlTimeout); err != nil {
			c.logger.Debug("descriptor read failed", "error", err)
		}
	}
	data, err := c.exchange(cmd, c.tag, payload)
	if err != nil {
		return nil, err
	}
	c.tag++
	return data, nil
}

func (c *Camera) exchange(cmd, tag uint16, payload []byte) ([]byte, error) {
	buf, err := requests.EncodeCommand(cmd, tag, payload)
	if err != nil {
		return nil, err
	}

	if _, err := c.handle.ControlTransfer(
		uint8(requests.RequestTypeVendorSetRequest),
		uint8(requests.RequestCodeCommand),
		0, 0, buf, controlTimeout); err != nil {
		return nil, fmt.Errorf("failed to send command 0x%04x: %w", cmd, err)
	}

	reply := make([]byte, requests.MaxReplySize)
	n := 0
	for polls := 0; n == 0; polls++ {
		if polls == maxReplyPolls {
			return nil, fmt.Errorf("no reply to command 0x%04x", cmd)
		}
		n, err = c.handle.ControlTransfer(
			uint8(requests.RequestTypeVendorGetRequest),
			uint8(requests.RequestCodeCommand),
			0, 0, reply, controlTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to read reply to command 0x%04x: %w", cmd, err)
		}
	}

	data, err := requests.DecodeReply(reply[:n], cmd, tag)
	if err != nil {
		return nil, fmt.Errorf("command 0x%04x tag 0x%04x: %w", cmd, tag, err)
	}
	return data, nil
}

// WriteRegister sets a sensor register.
func (c *Camera) WriteRegister(reg, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeRegister(reg, value)
}

func (c *Camera) writeRegister(reg, value uint16) error {
	payload := []byte{byte(reg), byte(reg >> 8), byte(value), byte(value >> 8)}
	reply, err := c.command(cmdWriteRegister, payload)
	if err != nil {
		return fmt.Errorf("failed to write register 0x%04x: %w", reg, err)
	}
	if len(reply) != 2 {
		c.logger.Warn("unexpected register write reply", "register", reg, "value", value, "reply", reply)
	}
	return nil
}

func (c *Camera) writeRegisters(regs []register) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range regs {
		if err := c.writeRegister(r.reg, r.value); err != nil {
			return err
		}
	}
	return nil
}

type initCommand struct {
	tag        uint16
	reg, value uint16
}

// startupCommands is the register sequence the sensor expects after power
// up. Each one is a register write carrying its own tag.
var startupCommands = []initCommand{
	{0x1267, 0x0006, 0x0000},
	{0x1268, 0x0012, 0x0003},
	{0x1269, 0x0013, 0x0001},
	{0x126a, 0x0014, 0x001e},
	{0x126b, 0x0006, 0x0002},
	{0x126e, 0x0006, 0x0000},
	{0x126f, 0x0012, 0x0003},
	{0x1270, 0x0013, 0x0001},
	{0x1271, 0x0014, 0x001e},
	{0x1272, 0x0016, 0x0001},
	{0x1273, 0x0018, 0x0000},
	{0x1274, 0x0002, 0x0000},
	{0x1275, 0x0105, 0x0000},
	{0x1276, 0x0024, 0x0001},
	{0x1277, 0x002d, 0x0001},
	{0x1278, 0x0006, 0x0002},
	{0x1279, 0x0005, 0x0000},
	{0x127a, 0x000c, 0x0001},
	{0x127b, 0x000d, 0x0001},
	{0x127c, 0x000e, 0x001e},
	{0x127d, 0x0005, 0x0001},
	{0x127e, 0x0047, 0x0000},
	{0x127f, 0x000c, 0x0000},
	{0x1280, 0x0005, 0x0000},
	{0x1281, 0x000d, 0x0001},
	{0x1282, 0x000e, 0x001e},
	{0x1283, 0x0005, 0x0001},
	{0x1284, 0x0047, 0x0000},
}

// StartupInit replays the power-up sequence. The commands carry fixed tags
// and leave the command tag alone. A command that fails or gets an
// unexpected reply is logged and skipped.
func (c *Camera) StartupInit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := 0
	for _, ic := range startupCommands {
		payload := []byte{byte(ic.reg), byte(ic.reg >> 8), byte(ic.value), byte(ic.value >> 8)}
		reply, err := c.exchange(cmdWriteRegister, ic.tag, payload)
		if err != nil {
			failed++
			c.logger.Warn("startup command failed", "tag", fmt.Sprintf("0x%04x", ic.tag), "error", err)
			continue
		}
		if len(reply) != 2 || reply[0] != 0 || reply[1] != 0 {
			c.logger.Warn("startup command reply mismatch", "tag", fmt.Sprintf("0x%04x", ic.tag), "reply", reply)
		}
	}
	if failed == len(startupCommands) {
		return fmt.Errorf("startup init: all %d commands failed", failed)
	}
	c.logger.Info("startup init done", "commands", len(startupCommands), "failed", failed)
	return nil
}

// Tag is the tag of the next command.
func (c *Camera) Tag() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tag
}
