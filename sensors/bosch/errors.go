package bosch

import (
	"errors"
	"fmt"
)

var (
	ErrTransport         = errors.New("bosch: bus transfer failed")
	ErrUnexpectedChipID  = errors.New("bosch: unexpected chip id")
	ErrFIFOConfig        = errors.New("bosch: fifo configuration error")
	ErrShortRead         = errors.New("bosch: short read")
	ErrFIFOUnsupported   = errors.New("bosch: fifo not available on this sensor generation")
	ErrUnknownFIFOHeader = errors.New("bosch: unknown fifo frame header")
	ErrUnsupported       = errors.New("bosch: setting not available on this sensor generation")
)

// TransportError records a failed register access. It matches ErrTransport
// with errors.Is and unwraps to the underlying bus error.
type TransportError struct {
	Op  string
	Reg byte
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bosch: %s register %#02x: %v", e.Op, e.Reg, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ChipIDError is returned by New when the identity register holds something
// other than the generation's chip id.
type ChipIDError struct {
	Generation string
	Got        byte
	Want       []byte
}

func (e *ChipIDError) Error() string {
	return fmt.Sprintf("bosch: found unknown chip id %#02x, expected %s id % #x", e.Got, e.Generation, e.Want)
}

func (e *ChipIDError) Is(target error) bool { return target == ErrUnexpectedChipID }

// ConfigError is the decoded error register of a BMP388.
type ConfigError struct {
	Fatal   bool
	Command bool
	Config  bool
}

func (e ConfigError) Any() bool { return e.Fatal || e.Command || e.Config }

func (e ConfigError) Error() string {
	switch {
	case e.Fatal:
		return "bosch: sensor reported a fatal error"
	case e.Config:
		return "bosch: there is a problem with the configuration, try reducing ODR"
	case e.Command:
		return "bosch: sensor rejected the last command"
	}
	return "bosch: no error"
}

func transportErr(op string, reg byte, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Reg: reg, Err: err}
}
