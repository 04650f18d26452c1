// Package codec implements the binary reader and writer used by the
// discovery wire protocol. All integers are little-endian. Strings come in
// a short form (u8 length prefix) and a long form (u16 length prefix), plus
// a variable form that tolerates the deflate-compressed encoding peers may
// use when string compression is permitted.
package codec

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxPacketSize is the maximum allowed size for a single datagram payload.
const MaxPacketSize = 1500

// compressedMarker in the length byte position signals that the string that
// follows is a u16-prefixed DEFLATE payload rather than plain short-form
// bytes. Plain short strings never carry a length of 255 (the protocol caps
// every short string well below that), so the marker is unambiguous.
const compressedMarker = 0xFF

// Writer builds a packet payload. The zero value is ready to use.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates a new packet writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Reset clears the writer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

// WriteU16 writes a uint16 in little-endian order.
func (w *Writer) WriteU16(v uint16) *Writer {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return w
}

// WriteU32 writes a uint32 in little-endian order.
func (w *Writer) WriteU32(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

// WriteBool writes a bool as a single byte (0 or 1).
func (w *Writer) WriteBool(v bool) *Writer {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
	return w
}

// WriteBytes writes raw bytes with no prefix.
func (w *Writer) WriteBytes(data []byte) *Writer {
	w.buf.Write(data)
	return w
}

// WriteString writes a short string: u8 length followed by the bytes, no
// terminator. Strings longer than 254 bytes are truncated (255 is reserved
// as the compressed-form marker).
func (w *Writer) WriteString(s string) *Writer {
	data := []byte(s)
	if len(data) > 254 {
		data = data[:254]
	}
	w.buf.WriteByte(byte(len(data)))
	w.buf.Write(data)
	return w
}

// WriteLongString writes a long string: u16 length followed by the bytes.
func (w *Writer) WriteLongString(s string) *Writer {
	data := []byte(s)
	if len(data) > 65535 {
		data = data[:65535]
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(len(data)))
	w.buf.Write(b[:])
	w.buf.Write(data)
	return w
}

// WriteCompressedString writes the compressed string form: the 0xFF marker,
// a u16 compressed length, and the DEFLATE stream. Falls back to the plain
// short form when compression does not shrink the payload.
func (w *Writer) WriteCompressedString(s string) *Writer {
	var comp bytes.Buffer
	fw, err := flate.NewWriter(&comp, flate.BestCompression)
	if err == nil {
		fw.Write([]byte(s))
		fw.Close()
	}
	if err != nil || comp.Len() >= len(s) || comp.Len() > 65535 {
		return w.WriteString(s)
	}
	w.buf.WriteByte(compressedMarker)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(comp.Len()))
	w.buf.Write(b[:])
	w.buf.Write(comp.Bytes())
	return w
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the current payload size.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Reader consumes a packet payload. It fails with io.ErrUnexpectedEOF when
// the buffer is exhausted mid-field.
type Reader struct {
	r *bytes.Reader
}

// NewReader creates a reader over a received payload.
func NewReader(data []byte) *Reader {
	return &Reader{r: bytes.NewReader(data)}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.r.Len()
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, io.ErrUnexpectedEOF
	}
	return b, nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadBool reads a single byte as a bool (nonzero = true).
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	return b != 0, err
}

// ReadString reads a short string (u8 length prefix).
func (r *Reader) ReadString() (string, error) {
	length, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", io.ErrUnexpectedEOF
	}
	return string(buf), nil
}

// ReadLongString reads a long string (u16 length prefix).
func (r *Reader) ReadLongString() (string, error) {
	length, err := r.ReadU16()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", io.ErrUnexpectedEOF
	}
	return string(buf), nil
}

// ReadVarString reads a string that may be in either the plain short form
// or the compressed form. Requesters use this wherever the protocol lets a
// responder pick the encoding.
func (r *Reader) ReadVarString() (string, error) {
	length, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	if length != compressedMarker {
		if length == 0 {
			return "", nil
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return "", io.ErrUnexpectedEOF
		}
		return string(buf), nil
	}
	compLen, err := r.ReadU16()
	if err != nil {
		return "", err
	}
	comp := make([]byte, compLen)
	if _, err := io.ReadFull(r.r, comp); err != nil {
		return "", io.ErrUnexpectedEOF
	}
	fr := flate.NewReader(bytes.NewReader(comp))
	defer fr.Close()
	plain, err := io.ReadAll(io.LimitReader(fr, MaxPacketSize*4))
	if err != nil {
		return "", fmt.Errorf("bad compressed string: %w", err)
	}
	return string(plain), nil
}
