package kinect

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kevmo314/go-kinect/pkg/requests"
)

func TestSendCommandTags(t *testing.T) {
	f := &fakeControl{}
	cam := NewCamera(f, nil)

	for i := 0; i < 3; i++ {
		reply, err := cam.SendCommand(0x03, []byte{0x05, 0x00, 0x00, 0x00})
		if err != nil {
			t.Fatalf("SendCommand() #%d error = %v", i, err)
		}
		if !bytes.Equal(reply, []byte{0, 0}) {
			t.Errorf("SendCommand() #%d reply = % x, want 00 00", i, reply)
		}
	}
	for i, h := range f.commands() {
		if h.Tag != uint16(i) {
			t.Errorf("command %d tag = %d, want %d", i, h.Tag, i)
		}
		if h.Magic != requests.CommandMagic {
			t.Errorf("command %d magic = %q, want GM", i, h.Magic[:])
		}
	}
	if got := cam.Tag(); got != 3 {
		t.Errorf("Tag() = %d, want 3", got)
	}

	descriptors := 0
	for _, r := range f.Requests() {
		if r.requestType == 0x80 && r.request == 0x06 {
			descriptors++
			if r.value != descriptorValue {
				t.Errorf("descriptor read value = 0x%x, want 0x%x", r.value, descriptorValue)
			}
		}
	}
	if descriptors != 1 {
		t.Errorf("descriptor reads = %d, want 1", descriptors)
	}
}

func TestWriteRegisterPayload(t *testing.T) {
	f := &fakeControl{}
	cam := NewCamera(f, nil)

	if err := cam.WriteRegister(0x05, 0x01); err != nil {
		t.Fatal(err)
	}
	var data []byte
	for _, r := range f.Requests() {
		if r.requestType == 0x40 && r.request == 0x00 {
			data = r.data
		}
	}
	want := []byte{'G', 'M', 0x02, 0x00, 0x03, 0x00, 0x00, 0x00, 0x05, 0x00, 0x01, 0x00}
	if !bytes.Equal(data, want) {
		t.Errorf("command = % x, want % x", data, want)
	}
}

func TestSendCommandPollsEmptyReplies(t *testing.T) {
	f := &fakeControl{emptyReplies: 3}
	cam := NewCamera(f, nil)

	if _, err := cam.SendCommand(0x03, []byte{0, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	reads := 0
	for _, r := range f.Requests() {
		if r.requestType == 0xc0 && r.request == 0x00 {
			reads++
		}
	}
	if reads != 4 {
		t.Errorf("reply reads = %d, want 4", reads)
	}
}

func TestSendCommandNoReply(t *testing.T) {
	f := &fakeControl{emptyReplies: maxReplyPolls}
	cam := NewCamera(f, nil)

	if _, err := cam.SendCommand(0x03, []byte{0, 0, 0, 0}); err == nil {
		t.Fatal("SendCommand() error = nil, want error")
	}
	if got := cam.Tag(); got != 0 {
		t.Errorf("Tag() = %d, want 0", got)
	}
}

func TestSendCommandBadReply(t *testing.T) {
	tests := []struct {
		name  string
		reply func(h requests.CommandHeader, payload []byte) []byte
		want  error
	}{
		{
			name: "magic",
			reply: func(h requests.CommandHeader, _ []byte) []byte {
				buf := commandReply(h.Cmd, h.Tag, 0, 0)
				buf[0] = 'G'
				return buf
			},
			want: requests.ErrBadMagic,
		},
		{
			name: "command",
			reply: func(h requests.CommandHeader, _ []byte) []byte {
				return commandReply(h.Cmd+1, h.Tag, 0, 0)
			},
			want: requests.ErrBadCommand,
		},
		{
			name: "tag",
			reply: func(h requests.CommandHeader, _ []byte) []byte {
				return commandReply(h.Cmd, h.Tag+1, 0, 0)
			},
			want: requests.ErrBadTag,
		},
		{
			name: "length",
			reply: func(h requests.CommandHeader, _ []byte) []byte {
				return append(commandReply(h.Cmd, h.Tag, 0, 0), 0, 0)
			},
			want: requests.ErrBadLength,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(&fakeControl{reply: tt.reply}, nil)
			if _, err := cam.SendCommand(0x03, []byte{0, 0, 0, 0}); !errors.Is(err, tt.want) {
				t.Errorf("SendCommand() error = %v, want %v", err, tt.want)
			}
			if got := cam.Tag(); got != 0 {
				t.Errorf("Tag() = %d, want 0", got)
			}
		})
	}
}

func TestStartupInit(t *testing.T) {
	f := &fakeControl{}
	cam := NewCamera(f, nil)

	if err := cam.StartupInit(); err != nil {
		t.Fatal(err)
	}
	hs := f.commands()
	if len(hs) != len(startupCommands) {
		t.Fatalf("sent %d commands, want %d", len(hs), len(startupCommands))
	}
	for i, h := range hs {
		if h.Tag != startupCommands[i].tag {
			t.Errorf("command %d tag = 0x%04x, want 0x%04x", i, h.Tag, startupCommands[i].tag)
		}
		if h.Cmd != cmdWriteRegister || h.Len != 2 {
			t.Errorf("command %d = cmd 0x%x len %d, want cmd 0x3 len 2", i, h.Cmd, h.Len)
		}
	}
	regs := f.registerWrites()
	if regs[2] != (register{0x0013, 0x0001}) {
		t.Errorf("third register write = %+v, want {0x13 0x1}", regs[2])
	}
	for _, r := range f.Requests() {
		if r.requestType == 0x80 {
			t.Errorf("startup init read a descriptor")
		}
	}
	if got := cam.Tag(); got != 0 {
		t.Errorf("Tag() = %d, want 0", got)
	}
}

func TestStartupInitFailures(t *testing.T) {
	bad := startupCommands[4].tag
	f := &fakeControl{reply: func(h requests.CommandHeader, _ []byte) []byte {
		if h.Tag == bad {
			return commandReply(h.Cmd, h.Tag+1, 0, 0)
		}
		return commandReply(h.Cmd, h.Tag, 0x01, 0x00)
	}}
	if err := NewCamera(f, nil).StartupInit(); err != nil {
		t.Errorf("StartupInit() with one failure error = %v, want nil", err)
	}

	f = &fakeControl{err: errors.New("pipe error")}
	if err := NewCamera(f, nil).StartupInit(); err == nil {
		t.Error("StartupInit() with every command failing error = nil, want error")
	}
}
