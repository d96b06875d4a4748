package bosch

// Extraction helpers for the coefficient and data blocks. Multi-byte
// coefficients are stored least significant byte first.

func u8At(b []byte, off int) uint8 { return b[off] }

func s8At(b []byte, off int) int8 { return int8(b[off]) }

func u16At(b []byte, off int) uint16 {
	return uint16(b[off+1])<<8 | uint16(b[off])
}

func s16At(b []byte, off int) int16 { return int16(u16At(b, off)) }

// s12At reassembles the BME280 H4/H5 coefficients: a signed byte holding bits
// 11:4 and one nibble of the shared byte holding bits 3:0. The low nibble
// belongs to the field stored before the shared byte (H4), the high nibble to
// the field stored after it (H5).
func s12At(b []byte, msb, shared int, highNibble bool) int16 {
	v := int16(int8(b[msb])) * 16
	if highNibble {
		return v | int16(b[shared]>>4)
	}
	return v | int16(b[shared]&0x0F)
}

// u24At assembles a BMP388 data triple, xlsb first.
func u24At(b []byte, off int) uint32 {
	return uint32(b[off+2])<<16 | uint32(b[off+1])<<8 | uint32(b[off])
}

// u20At assembles a BMP280 data triple, msb first with the xlsb contributing
// its high nibble.
func u20At(b []byte, off int) uint32 {
	return uint32(b[off])<<12 | uint32(b[off+1])<<4 | uint32(b[off+2])>>4
}
