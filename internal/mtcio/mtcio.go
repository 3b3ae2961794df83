// Package mtcio adapts the internal/mtc codec to real MIDI ports via
// gitlab.com/gomidi/midi/v2, using its rtmididrv backend for port
// enumeration and callback-driven input.
package mtcio

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/fiverecords/SuperTimecodeConverter/internal/mtc"
)

func init() {
	drv, err := rtmididrv.New()
	if err != nil {
		return
	}
	drivers.Register(drv)
}

// ListInputs returns the names of available MIDI input ports.
func ListInputs() []string {
	ins := midi.InPorts()
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}

// ListOutputs returns the names of available MIDI output ports.
func ListOutputs() []string {
	outs := midi.OutPorts()
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names
}

// Input is an open MIDI input port feeding an mtc.Decoder.
type Input struct {
	port drivers.In
	stop func()
}

// OpenInput opens the named MIDI input port and routes every
// quarter-frame and full-frame SysEx message it receives into dec.
func OpenInput(name string, dec *mtc.Decoder) (*Input, error) {
	port, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("open midi input %q: %w", name, err)
	}

	stop, err := midi.ListenTo(port, func(msg midi.Message, _ int32) {
		route(dec, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("listen on midi input %q: %w", name, err)
	}

	return &Input{port: port, stop: stop}, nil
}

func route(dec *mtc.Decoder, msg midi.Message) {
	raw := []byte(msg)
	if len(raw) == 0 {
		return
	}
	switch {
	case raw[0] == 0xF1 && len(raw) >= 2:
		dec.QuarterFrame(raw[1])
	case raw[0] == 0xF0 && len(raw) >= 10 &&
		raw[1] == 0x7F && raw[2] == 0x7F && raw[3] == 0x01 && raw[4] == 0x01:
		dec.FullFrame(raw[5], raw[6], raw[7], raw[8])
	}
}

// Close stops listening and releases the port.
func (p *Input) Close() error {
	if p.stop != nil {
		p.stop()
	}
	return p.port.Close()
}

// Output is an open MIDI output port for sending encoder messages.
type Output struct {
	port drivers.Out
	send func(midi.Message) error
}

// OpenOutput opens the named MIDI output port.
func OpenOutput(name string) (*Output, error) {
	port, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("open midi output %q: %w", name, err)
	}
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("bind midi output %q: %w", name, err)
	}
	return &Output{port: port, send: send}, nil
}

// Send transmits a raw MIDI message (quarter-frame or Full-Frame
// SysEx bytes, as produced by internal/mtc.Encoder).
func (p *Output) Send(raw []byte) error {
	if err := p.send(midi.Message(raw)); err != nil {
		return fmt.Errorf("send midi message: %w", err)
	}
	return nil
}

// Close releases the port.
func (p *Output) Close() error {
	return p.port.Close()
}
