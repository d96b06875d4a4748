package bosch

// Calibration holds the factory trimming coefficients, already sign extended
// and scaled. It is decoded once by New and never changes afterwards; Device
// hands out copies.
//
// For the BMP388 family the values are the datasheet's floating point PAR_x
// coefficients. The BMP280 family's double precision formulas carry their own
// divisors, so its coefficients are the plain dig_x integers.
type Calibration struct {
	T1, T2, T3                                  float64
	P1, P2, P3, P4, P5, P6, P7, P8, P9, P10, P11 float64
	H1, H2, H3, H4, H5, H6                      float64

	Humidity bool // H1..H6 are valid
}

type fieldKind int

const (
	fieldU8 fieldKind = iota
	fieldS8
	fieldU16
	fieldS16
	fieldS12Low  // nibble packed, low nibble of off+1
	fieldS12High // nibble packed, high nibble of off-1
)

// coefficient describes where one coefficient lives in a block read and how it
// is scaled. value = (raw - bias) * scale.
type coefficient struct {
	name  string
	block int
	off   int
	kind  fieldKind
	bias  float64
	scale float64
	dst   func(c *Calibration) *float64
}

func (f coefficient) raw(b []byte) float64 {
	switch f.kind {
	case fieldU8:
		return float64(u8At(b, f.off))
	case fieldS8:
		return float64(s8At(b, f.off))
	case fieldU16:
		return float64(u16At(b, f.off))
	case fieldS16:
		return float64(s16At(b, f.off))
	case fieldS12Low:
		return float64(s12At(b, f.off, f.off+1, false))
	case fieldS12High:
		return float64(s12At(b, f.off, f.off-1, true))
	}
	panic("bosch: unknown coefficient kind")
}

// block is one contiguous coefficient read.
type block struct {
	reg byte
	len int
}

type layout struct {
	blocks []block
	fields []coefficient
}

// decode slices the blocks into coefficients. blocks must match l.blocks in
// count and length.
func (l layout) decode(blocks [][]byte) Calibration {
	var c Calibration
	for _, f := range l.fields {
		*f.dst(&c) = (f.raw(blocks[f.block]) - f.bias) * f.scale
	}
	return c
}

func (l layout) read(t Transport) ([][]byte, error) {
	out := make([][]byte, len(l.blocks))
	for i, b := range l.blocks {
		buf, err := readExact(t, b.reg, b.len)
		if err != nil {
			return nil, err
		}
		out[i] = buf
	}
	return out, nil
}

func t1(c *Calibration) *float64  { return &c.T1 }
func t2(c *Calibration) *float64  { return &c.T2 }
func t3(c *Calibration) *float64  { return &c.T3 }
func p1(c *Calibration) *float64  { return &c.P1 }
func p2(c *Calibration) *float64  { return &c.P2 }
func p3(c *Calibration) *float64  { return &c.P3 }
func p4(c *Calibration) *float64  { return &c.P4 }
func p5(c *Calibration) *float64  { return &c.P5 }
func p6(c *Calibration) *float64  { return &c.P6 }
func p7(c *Calibration) *float64  { return &c.P7 }
func p8(c *Calibration) *float64  { return &c.P8 }
func p9(c *Calibration) *float64  { return &c.P9 }
func p10(c *Calibration) *float64 { return &c.P10 }
func p11(c *Calibration) *float64 { return &c.P11 }
func h1(c *Calibration) *float64  { return &c.H1 }
func h2(c *Calibration) *float64  { return &c.H2 }
func h3(c *Calibration) *float64  { return &c.H3 }
func h4(c *Calibration) *float64  { return &c.H4 }
func h5(c *Calibration) *float64  { return &c.H5 }
func h6(c *Calibration) *float64  { return &c.H6 }

// BMP388 trimming coefficients, 21 bytes at 0x31. Each scale is the reciprocal
// of the datasheet divisor.
var layout388 = layout{
	blocks: []block{{reg388Cali, 21}},
	fields: []coefficient{
		{"par_t1", 0, 0, fieldU16, 0, 1.0 / 0.00390625, t1},
		{"par_t2", 0, 2, fieldU16, 0, 1.0 / (1 << 30), t2},
		{"par_t3", 0, 4, fieldS8, 0, 1.0 / (1 << 48), t3},
		{"par_p1", 0, 5, fieldS16, 16384, 1.0 / (1 << 20), p1},
		{"par_p2", 0, 7, fieldS16, 16384, 1.0 / (1 << 29), p2},
		{"par_p3", 0, 9, fieldS8, 0, 1.0 / (1 << 32), p3},
		{"par_p4", 0, 10, fieldS8, 0, 1.0 / (1 << 37), p4},
		{"par_p5", 0, 11, fieldU16, 0, 1.0 / 0.125, p5},
		{"par_p6", 0, 13, fieldU16, 0, 1.0 / (1 << 6), p6},
		{"par_p7", 0, 15, fieldS8, 0, 1.0 / (1 << 8), p7},
		{"par_p8", 0, 16, fieldS8, 0, 1.0 / (1 << 15), p8},
		{"par_p9", 0, 17, fieldS16, 0, 1.0 / (1 << 48), p9},
		{"par_p10", 0, 19, fieldS8, 0, 1.0 / (1 << 48), p10},
		{"par_p11", 0, 20, fieldS8, 0, 1.0 / (1 << 65), p11},
	},
}

var fields280 = []coefficient{
	{"dig_t1", 0, 0, fieldU16, 0, 1, t1},
	{"dig_t2", 0, 2, fieldS16, 0, 1, t2},
	{"dig_t3", 0, 4, fieldS16, 0, 1, t3},
	{"dig_p1", 0, 6, fieldU16, 0, 1, p1},
	{"dig_p2", 0, 8, fieldS16, 0, 1, p2},
	{"dig_p3", 0, 10, fieldS16, 0, 1, p3},
	{"dig_p4", 0, 12, fieldS16, 0, 1, p4},
	{"dig_p5", 0, 14, fieldS16, 0, 1, p5},
	{"dig_p6", 0, 16, fieldS16, 0, 1, p6},
	{"dig_p7", 0, 18, fieldS16, 0, 1, p7},
	{"dig_p8", 0, 20, fieldS16, 0, 1, p8},
	{"dig_p9", 0, 22, fieldS16, 0, 1, p9},
}

// BMP280 coefficients, 24 bytes at 0x88.
var layout280 = layout{
	blocks: []block{{reg280Cali, 24}},
	fields: fields280,
}

// BME280 adds H1 at 0xA1 (offset 25 of the first block) and a second block of
// 7 bytes at 0xE1 in which H4 and H5 share the byte at 0xE5.
var layoutBME = layout{
	blocks: []block{{reg280Cali, 26}, {reg280CaliHum, 7}},
	fields: append(append([]coefficient{}, fields280...),
		coefficient{"dig_h1", 0, 25, fieldU8, 0, 1, h1},
		coefficient{"dig_h2", 1, 0, fieldS16, 0, 1, h2},
		coefficient{"dig_h3", 1, 2, fieldU8, 0, 1, h3},
		coefficient{"dig_h4", 1, 3, fieldS12Low, 0, 1, h4},
		coefficient{"dig_h5", 1, 5, fieldS12High, 0, 1, h5},
		coefficient{"dig_h6", 1, 6, fieldS8, 0, 1, h6},
	),
}
