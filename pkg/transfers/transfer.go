package transfers

import (
	"errors"
	"fmt"

	usb "github.com/kevmo314/go-usb"
)

var ErrPacketStatus = errors.New("isochronous packet failed")

// Transfer is one isochronous transfer request that can be submitted,
// waited on and resubmitted.
type Transfer interface {
	Submit() error
	Wait() error
	Cancel()
	NumPackets() int
	// Packet returns the data received in packet i. An empty packet
	// returns no data and no error.
	Packet(i int) ([]byte, error)
}

// TransferFactory allocates isochronous transfers on an endpoint.
type TransferFactory interface {
	NewIsochronousTransfer(endpoint uint8, packets, packetSize int) (Transfer, error)
}

// WrapHandle adapts a go-usb device handle into a TransferFactory.
func WrapHandle(handle *usb.DeviceHandle) TransferFactory {
	return handleFactory{handle}
}

type handleFactory struct {
	handle *usb.DeviceHandle
}

func (f handleFactory) NewIsochronousTransfer(endpoint uint8, packets, packetSize int) (Transfer, error) {
	tx, err := f.handle.NewIsochronousTransfer(endpoint, packets, packetSize)
	if err != nil {
		return nil, err
	}
	return &usbTransfer{tx: tx, packets: packets}, nil
}

type usbTransfer struct {
	tx      *usb.IsochronousTransfer
	packets int
}

func (t *usbTransfer) Submit() error { return t.tx.Submit() }

func (t *usbTransfer) Wait() error { return t.tx.Wait() }

func (t *usbTransfer) Cancel() { t.tx.Cancel() }

func (t *usbTransfer) NumPackets() int { return t.packets }

func (t *usbTransfer) Packet(i int) ([]byte, error) {
	pkt := t.tx.Packets()[i]
	if pkt.Status != 0 {
		return nil, fmt.Errorf("packet %d status %d: %w", i, pkt.Status, ErrPacketStatus)
	}
	n := int(pkt.ActualLength)
	if n == 0 {
		return nil, nil
	}
	data, err := t.tx.IsoPacketBuffer(i)
	if err != nil {
		return nil, err
	}
	if len(data) > n {
		data = data[:n]
	}
	return data, nil
}
