// Package scale implements the subset of the SCALE codec needed for block
// headers and their digest payloads: little-endian fixed-width integers,
// compact integers, and length-prefixed byte strings.
package scale

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

var (
	ErrCompactTooLarge = errors.New("compact integer exceeds 64 bits")
	ErrUnexpectedEOF   = errors.New("unexpected end of input")
)

// EncodeCompact returns the SCALE compact encoding of v.
func EncodeCompact(v uint64) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v) << 2}
	case v < 1<<14:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v)<<2|0b01)
		return buf
	case v < 1<<30:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v)<<2|0b10)
		return buf
	default:
		n := (bits.Len64(v) + 7) / 8
		buf := make([]byte, 1+n)
		buf[0] = 0b11 | byte(n-4)<<2
		for i := 0; i < n; i++ {
			buf[1+i] = byte(v >> (8 * i))
		}
		return buf
	}
}

// DecodeCompact reads a SCALE compact integer from r.
func DecodeCompact(r io.Reader) (uint64, error) {
	b0, err := ReadByte(r)
	if err != nil {
		return 0, err
	}

	switch b0 & 0b11 {
	case 0b00:
		return uint64(b0 >> 2), nil
	case 0b01:
		b1, err := ReadByte(r)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16([]byte{b0, b1})) >> 2, nil
	case 0b10:
		rest, err := ReadBytes(r, 3)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(append([]byte{b0}, rest...))) >> 2, nil
	default:
		n := int(b0>>2) + 4
		if n > 8 {
			return 0, fmt.Errorf("%w: %d-byte big-integer mode", ErrCompactTooLarge, n)
		}
		raw, err := ReadBytes(r, n)
		if err != nil {
			return 0, err
		}
		var v uint64
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(raw[i])
		}
		return v, nil
	}
}

// ReadByte reads a single byte from r.
func ReadByte(r io.Reader) (byte, error) {
	buf, err := ReadBytes(r, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadBytes reads exactly n bytes from r.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: want %d bytes", ErrUnexpectedEOF, n)
	}
	return buf, nil
}

// Read32Bytes reads a 32-byte array from r.
func Read32Bytes(r io.Reader) ([32]byte, error) {
	var out [32]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, fmt.Errorf("%w: want 32 bytes", ErrUnexpectedEOF)
	}
	return out, nil
}

// Read64Bytes reads a 64-byte array from r.
func Read64Bytes(r io.Reader) ([64]byte, error) {
	var out [64]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, fmt.Errorf("%w: want 64 bytes", ErrUnexpectedEOF)
	}
	return out, nil
}

// ReadUint32 reads a little-endian uint32 from r.
func ReadUint32(r io.Reader) (uint32, error) {
	buf, err := ReadBytes(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadUint64 reads a little-endian uint64 from r.
func ReadUint64(r io.Reader) (uint64, error) {
	buf, err := ReadBytes(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// AppendUint32 appends the little-endian encoding of v to dst.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// AppendUint64 appends the little-endian encoding of v to dst.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}
