package wasmtest

import (
	"bytes"
	"testing"
)

func TestEncode_Header(t *testing.T) {
	b := (&Module{}).Encode()
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(b, want) {
		t.Errorf("empty module = %x, want %x", b, want)
	}
}

func TestEncode_Unreachable(t *testing.T) {
	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type () -> ()
		0x03, 0x02, 0x01, 0x00, // func 0: type 0
		0x07, 0x08, 0x01, 0x04, 'm', 'a', 'i', 'n', 0x00, 0x00, // export "main"
		0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b, // body: unreachable end
	}
	if got := Unreachable(); !bytes.Equal(got, want) {
		t.Errorf("Unreachable() =\n%x\nwant\n%x", got, want)
	}
}

func TestI32Const(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{OpI32Const, 0x00}},
		{1, []byte{OpI32Const, 0x01}},
		{-1, []byte{OpI32Const, 0x7f}},
		{64, []byte{OpI32Const, 0xc0, 0x00}},
		{65536, []byte{OpI32Const, 0x80, 0x80, 0x04}},
	}
	for _, tt := range tests {
		if got := I32Const(tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("I32Const(%d) = %x, want %x", tt.v, got, tt.want)
		}
	}
}
