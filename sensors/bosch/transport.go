package bosch

import (
	"sync"

	i2c "github.com/d2r2/go-i2c"
	"github.com/kidoman/embd"
)

// Transport is the register level view of one device on the bus. Each call is
// a blocking request/response; nothing is retried. Words are SMBus words, least
// significant byte first. ReadRegBytes returns the bytes actually delivered and
// their count, which may be less than n on adapters that support partial reads.
//
// The method set matches github.com/d2r2/go-i2c, so an *i2c.I2C can be used
// directly.
type Transport interface {
	ReadRegU8(reg byte) (byte, error)
	ReadRegU16LE(reg byte) (uint16, error)
	ReadRegBytes(reg byte, n int) ([]byte, int, error)
	WriteRegU8(reg byte, value byte) error
	WriteRegU16LE(reg byte, value uint16) error
}

// Static cast to verify at compile time
// that type implement interface.
var (
	_ Transport = &i2c.I2C{}
	_ Transport = &BusTransport{}
)

// OpenI2C opens /dev/i2c-<bus> for the device at addr. The returned
// connection owns its own file descriptor, so its slave address can not be
// changed by other devices on the same bus. Close it to release the bus.
func OpenI2C(addr byte, bus int) (*i2c.I2C, error) {
	return i2c.NewI2C(addr, bus)
}

// Bus shares one embd I2C bus between several devices. embd addresses every
// transfer explicitly, and the mutex keeps a transfer for one address from
// interleaving with another.
type Bus struct {
	mu  sync.Mutex
	bus embd.I2CBus
}

func NewBus(bus embd.I2CBus) *Bus {
	return &Bus{bus: bus}
}

// Transport returns the register view of the device at addr.
func (b *Bus) Transport(addr byte) *BusTransport {
	return &BusTransport{bus: b, addr: addr}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Close()
}

// BusTransport is a Transport bound to one address of a shared Bus.
type BusTransport struct {
	bus  *Bus
	addr byte
}

func (t *BusTransport) Address() byte { return t.addr }

func (t *BusTransport) ReadRegU8(reg byte) (byte, error) {
	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	return t.bus.bus.ReadByteFromReg(t.addr, reg)
}

// ReadRegU16LE reads two consecutive registers. embd's own word read is big
// endian, so the bytes are assembled here.
func (t *BusTransport) ReadRegU16LE(reg byte) (uint16, error) {
	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	buf := make([]byte, 2)
	if err := t.bus.bus.ReadFromReg(t.addr, reg, buf); err != nil {
		return 0, err
	}
	return uint16(buf[1])<<8 | uint16(buf[0]), nil
}

func (t *BusTransport) ReadRegBytes(reg byte, n int) ([]byte, int, error) {
	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	buf := make([]byte, n)
	if err := t.bus.bus.ReadFromReg(t.addr, reg, buf); err != nil {
		return nil, 0, err
	}
	return buf, n, nil
}

func (t *BusTransport) WriteRegU8(reg byte, value byte) error {
	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	return t.bus.bus.WriteByteToReg(t.addr, reg, value)
}

func (t *BusTransport) WriteRegU16LE(reg byte, value uint16) error {
	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	return t.bus.bus.WriteToReg(t.addr, reg, []byte{byte(value), byte(value >> 8)})
}

// readExact is the all-or-nothing block read used for calibration and sample
// registers.
func readExact(t Transport, reg byte, n int) ([]byte, error) {
	buf, got, err := t.ReadRegBytes(reg, n)
	if err != nil {
		return nil, transportErr("read block", reg, err)
	}
	if got < n || len(buf) < n {
		return nil, transportErr("read block", reg, ErrShortRead)
	}
	return buf[:n], nil
}
