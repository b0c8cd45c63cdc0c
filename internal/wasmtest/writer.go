package wasmtest

import (
	"bytes"
)

// writer provides buffered writing utilities for WASM binary encoding.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

func (w *writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteU32 writes an unsigned LEB128 encoded uint32.
func (w *writer) WriteU32(v uint32) {
	w.buf.Write(appendU32(nil, v))
}

// WriteName writes a UTF-8 encoded name (length-prefixed).
func (w *writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
}

// WriteSection writes a section header followed by its payload.
func (w *writer) WriteSection(id byte, payload []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(payload)))
	w.WriteBytes(payload)
}

func appendU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func appendS64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}
