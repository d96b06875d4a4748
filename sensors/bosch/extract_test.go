package bosch

import "testing"

func TestExtract(t *testing.T) {
	b := []byte{0xFE, 0x7F, 0x01, 0x80, 0x40, 0xB5, 0x64}

	if got := u8At(b, 0); got != 0xFE {
		t.Errorf("u8At = %d", got)
	}
	if got := s8At(b, 0); got != -2 {
		t.Errorf("s8At = %d", got)
	}
	if got := u16At(b, 0); got != 0x7FFE {
		t.Errorf("u16At = %#x", got)
	}
	if got := s16At(b, 2); got != -32767 {
		t.Errorf("s16At = %d", got)
	}
	if got := u24At(b, 4); got != 6600000 {
		t.Errorf("u24At = %d", got)
	}
}

func TestU20At(t *testing.T) {
	for _, tc := range []struct {
		b    []byte
		want uint32
	}{
		{[]byte{0x65, 0x5A, 0xC0}, 415148},
		{[]byte{0x7E, 0xED, 0x00}, 519888},
		{[]byte{0xFF, 0xFF, 0xFF}, 0xFFFFF},
		{[]byte{0x80, 0x00, 0x0F}, 0x80000},
	} {
		if got := u20At(tc.b, 0); got != tc.want {
			t.Errorf("u20At(% x) = %d, want %d", tc.b, got, tc.want)
		}
	}
}

func TestS12At(t *testing.T) {
	for _, tc := range []struct {
		b      []byte
		h4, h5 int16
	}{
		{[]byte{0x13, 0x29, 0x03}, 313, 50},
		{[]byte{0xF9, 0x5C, 0xFE}, -100, -27},
		{[]byte{0x80, 0x00, 0x80}, -2048, -2048},
		{[]byte{0x7F, 0xFF, 0x7F}, 2047, 2047},
	} {
		if got := s12At(tc.b, 0, 1, false); got != tc.h4 {
			t.Errorf("H4 from % x = %d, want %d", tc.b, got, tc.h4)
		}
		if got := s12At(tc.b, 2, 1, true); got != tc.h5 {
			t.Errorf("H5 from % x = %d, want %d", tc.b, got, tc.h5)
		}
	}
}
