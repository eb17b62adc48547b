package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kstaniek/spa-control/internal/control"
	"github.com/kstaniek/spa-control/internal/metrics"
	"github.com/kstaniek/spa-control/internal/pod"
	"github.com/kstaniek/spa-control/internal/transport"
)

// buildDemoFormat constructs a small video format descriptor: an
// OBJECT with two PROPs (a Rectangle size and a Fraction frame rate),
// the same shape exercised by scenario S4 in spec.md §8.
func buildDemoFormat() []byte {
	b := pod.NewBuilder()
	b.PushObject(1, 1)
	b.PushProp(1, pod.PropRangeNone)
	b.Rectangle(pod.Rectangle{Width: 1920, Height: 1080})
	_ = b.Pop()
	b.PushProp(2, pod.PropRangeNone)
	b.Fraction(pod.Fraction{Num: 30, Denom: 1})
	_ = b.Pop()
	_ = b.Pop()
	return b.Bytes()
}

// buildDemoProps constructs a small property bag: a STRUCT holding one
// Int, used as NodeUpdate's Props argument.
func buildDemoProps() []byte {
	b := pod.NewBuilder()
	b.PushStruct()
	b.Int(1)
	_ = b.Pop()
	return b.Bytes()
}

// runSend builds the demo command sequence described in SPEC_FULL.md
// §11 (NODE_UPDATE, PORT_UPDATE with a POD format, SET_FORMAT, ADD_MEM
// with a real FD, USE_BUFFERS, PROCESS_BUFFER) and writes it to the
// configured socket in one buffer, exercising the FD-table and
// transport paths end to end.
func runSend(cfg *appConfig, logger *slog.Logger) error {
	sockType := transport.SockSeqpacket()
	if cfg.sockType == "stream" {
		sockType = transport.SockStream()
	}
	sock, err := transport.Dial(cfg.socketPath, sockType)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.socketPath, err)
	}
	defer sock.Close()

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("open demo pipe: %w", err)
	}
	defer r.Close()
	defer w.Close()

	var buf control.Buffer
	b := control.NewBuilder(&buf)

	props := buildDemoProps()
	if err := b.NodeUpdate(control.NodeUpdateMaxInputPorts|control.NodeUpdateMaxOutputPorts|control.NodeUpdateProps, 1, 1, props); err != nil {
		return fmt.Errorf("NodeUpdate: %w", err)
	}
	metrics.IncCommandsBuilt(control.TagNodeUpdate)

	format := buildDemoFormat()
	if err := b.PortUpdate(0, control.DirectionOutput, control.PortUpdatePossibleFormats|control.PortUpdateFormat, [][]byte{format}, format, nil, nil); err != nil {
		return fmt.Errorf("PortUpdate: %w", err)
	}
	metrics.IncCommandsBuilt(control.TagPortUpdate)

	if err := b.SetFormat(0, control.DirectionOutput, format); err != nil {
		return fmt.Errorf("SetFormat: %w", err)
	}
	metrics.IncCommandsBuilt(control.TagSetFormat)

	fdIndex := b.AddFd(int(w.Fd()), true)
	if err := b.AddMem(0, control.DirectionOutput, 1, 1, fdIndex, 0); err != nil {
		return fmt.Errorf("AddMem: %w", err)
	}
	metrics.IncCommandsBuilt(control.TagAddMem)

	specs := []control.BufferSpec{{MemID: 1, Offset: 0, Size: 4096}}
	if err := b.UseBuffers(0, control.DirectionOutput, specs); err != nil {
		return fmt.Errorf("UseBuffers: %w", err)
	}
	metrics.IncCommandsBuilt(control.TagUseBuffers)

	if err := b.ProcessBuffer(0); err != nil {
		return fmt.Errorf("ProcessBuffer: %w", err)
	}
	metrics.IncCommandsBuilt(control.TagProcessBuffer)

	data := b.Finalize()
	fds := buf.Fds.All()
	if err := sock.Write(data, fds); err != nil {
		metrics.IncError(metrics.ErrTransportWrite)
		return fmt.Errorf("write: %w", err)
	}
	metrics.AddTransportBytesTx(len(data))
	metrics.AddTransportFdsTx(len(fds))
	logger.Info("demo_sent", "bytes", len(data), "fds", len(fds))
	return nil
}
