// Package devices holds reference Device implementations for the port
// gateway. The core package treats devices as external collaborators;
// these exist so the gateway contract is actually exercised end to end.
package devices

import (
	"bufio"
	"os"
	"sync"

	"duskvm/vm"
)

const (
	consolePortRead  = 0x2
	consolePortWrite = 0x8
	consolePortError = 0x9
)

// Console is a byte-oriented terminal device. Writes to port 0x8/0x9 go
// to stdout/stderr; reads from port 0x2 drain one buffered input byte,
// never blocking the CPU. Grounded in the teacher's consoleIO device
// (vm/devices.go in KTStephano-GVM): a background goroutine feeds a
// queue so a pending read never stalls the caller.
type Console struct {
	mu     sync.Mutex
	out    *bufio.Writer
	errOut *bufio.Writer
	input  chan byte
	closed chan struct{}
}

func NewConsole() *Console {
	return &Console{
		out:    bufio.NewWriter(os.Stdout),
		errOut: bufio.NewWriter(os.Stderr),
		input:  make(chan byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *Console) Init(cpu *vm.CPU) {
	go c.pump()
}

func (c *Console) pump() {
	reader := bufio.NewReader(os.Stdin)
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return
		}
		select {
		case c.input <- b:
		case <-c.closed:
			return
		}
	}
}

func (c *Console) Cycle(cpu *vm.CPU) {}

func (c *Console) Read(cpu *vm.CPU, portLow byte) byte {
	if portLow != consolePortRead {
		return 0
	}
	select {
	case b := <-c.input:
		return b
	default:
		return 0
	}
}

func (c *Console) WriteByte(cpu *vm.CPU, portLow byte, value byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch portLow {
	case consolePortWrite:
		c.out.WriteByte(value)
		c.out.Flush()
	case consolePortError:
		c.errOut.WriteByte(value)
		c.errOut.Flush()
	}
}

func (c *Console) WriteShort(cpu *vm.CPU, portLow byte, value uint16) {
	c.WriteByte(cpu, portLow, byte(value))
}

// Close stops the background input pump. Safe to call more than once.
func (c *Console) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}
