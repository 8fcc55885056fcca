// Package encoding includes implementations of encoding.TextMarshaler and encoding.TextUnmarshaler
// to encode and decode binary program images. It is based on Intel Hex file-encoding.
//
// Each data line is composed of a prefix, length, address, type, data and a checksum. In shorthand:
//
//	:LLAAAATT[DD...]CC
//	0123456789
//
// See [Grammar] for a formal grammar.
//
// # Bugs
//
// This is not a complete implementation of Intel Hex encoding; it is for internal use, only. It
// supports the data, end-of-file and extended linear address record types, which is enough to carry
// byte-addressed program images up to 4GiB.
package encoding

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const Grammar = `
file  = { line } ;
line  = ':' len addr kind data check nl ;
len   = byte ;
addr  = byte byte ;
kind  = byte ;
data  = { byte }
byte  = hex hex ;
hex   = '0' | '1' | '2' | '3' | '4' | '5' | '6' | '7' | '8' | '9'
      | 'a' | 'b' | 'c' | 'd' | 'e' | 'f' | 'A' | 'B' | 'C' | 'D' | 'E' | 'F' ;
nl    = '\n' ;
`

// maxRecordBytes bounds how many data bytes one line carries; Intel Hex
// record lengths are a single byte, so this must not exceed 255.
const maxRecordBytes = 32

// Image is a contiguous block of bytes destined for a single global address
// range, the unit the loader writes into global memory with one call to
// board.HostCallbacks.WriteBytes.
type Image struct {
	Base  uint64
	Bytes []byte
}

// HexEncoding implements marshalling and unmarshalling of program images as
// Intel Hex text. A file may carry more than one non-contiguous image.
type HexEncoding struct {
	images []Image
}

// Images returns the collected program images.
func (h HexEncoding) Images() []Image {
	return h.images
}

// SetImages replaces the collected program images, for marshalling.
func (h *HexEncoding) SetImages(images []Image) {
	h.images = images
}

func (h *HexEncoding) MarshalText() ([]byte, error) {
	var buf bytes.Buffer

	// The decoder starts with upper address bits 0, so no extended-address
	// record is written until an image lies at or above 64KiB.
	var upper uint16

	for _, img := range h.images {
		if err := marshalImage(&buf, img, &upper); err != nil {
			return buf.Bytes(), err
		}
	}

	buf.WriteString(":00000001ff\n")

	return buf.Bytes(), nil
}

func marshalImage(buf *bytes.Buffer, img Image, lastUpper *uint16) error {
	for offset := 0; offset < len(img.Bytes); offset += maxRecordBytes {
		addr := img.Base + uint64(offset)
		upper := uint16(addr >> 16)

		if upper != *lastUpper {
			if err := writeRecord(buf, 2, 0, kindExtendedAddr, []byte{byte(upper >> 8), byte(upper)}); err != nil {
				return err
			}

			*lastUpper = upper
		}

		end := offset + maxRecordBytes
		if end > len(img.Bytes) {
			end = len(img.Bytes)
		}

		chunk := img.Bytes[offset:end]
		if err := writeRecord(buf, byte(len(chunk)), uint16(addr), kindData, chunk); err != nil {
			return err
		}
	}

	return nil
}

func writeRecord(buf *bytes.Buffer, length byte, addr uint16, recKind kind, data []byte) error {
	var check byte

	buf.WriteByte(':')

	enc := hex.NewEncoder(buf)

	if _, err := enc.Write([]byte{length}); err != nil {
		return err
	}
	check += length

	addrBytes := []byte{byte(addr >> 8), byte(addr)}
	if _, err := enc.Write(addrBytes); err != nil {
		return err
	}
	check += addrBytes[0] + addrBytes[1]

	if _, err := enc.Write([]byte{byte(recKind)}); err != nil {
		return err
	}
	check += byte(recKind)

	if len(data) > 0 {
		if _, err := enc.Write(data); err != nil {
			return err
		}

		for _, b := range data {
			check += b
		}
	}

	check = 1 + ^check
	if _, err := enc.Write([]byte{check}); err != nil {
		return err
	}

	buf.WriteByte('\n')

	return nil
}

func (h *HexEncoding) UnmarshalText(bs []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(bs))

	var (
		upperAddr uint64
		cur       *Image
	)

	flush := func() {
		if cur != nil && len(cur.Bytes) > 0 {
			h.images = append(h.images, *cur)
		}
		cur = nil
	}

	for scanner.Scan() {
		rec := scanner.Bytes()

		if len(rec) == 0 {
			continue
		}

		if rec[0] != ':' {
			return fmt.Errorf("%w: line does not start with ':'", errInvalidHex)
		}

		if len(rec) < 11 {
			return fmt.Errorf("%w: line too short", errInvalidHex)
		}

		var dec [4]byte

		if _, err := hex.Decode(dec[:1], rec[1:3]); err != nil {
			return fmt.Errorf("%w: len: %s", errInvalidHex, err.Error())
		}
		recLen := dec[0]
		check := dec[0]

		if _, err := hex.Decode(dec[:2], rec[3:7]); err != nil {
			return fmt.Errorf("%w: addr: %s", errInvalidHex, err.Error())
		}
		recAddr := binary.BigEndian.Uint16(dec[:2])
		check += dec[0] + dec[1]

		if _, err := hex.Decode(dec[:1], rec[7:9]); err != nil {
			return fmt.Errorf("%w: type: %s", errInvalidHex, err.Error())
		}
		recKind := kind(dec[0])
		check += dec[0]

		if _, err := hex.Decode(dec[:1], rec[len(rec)-2:]); err != nil {
			return fmt.Errorf("%w: check: %s", errInvalidHex, err.Error())
		}
		recCheck := dec[0]

		if want := 11 + int(recLen)*2; len(rec) < want {
			return fmt.Errorf("%w: line too short for declared length", errInvalidHex)
		}

		switch recKind {
		case kindData:
			data := make([]byte, recLen)
			if recLen > 0 {
				if _, err := hex.Decode(data, rec[9:9+int(recLen)*2]); err != nil {
					return fmt.Errorf("%w: data: %s", errInvalidHex, err.Error())
				}

				for _, b := range data {
					check += b
				}
			}

			check = 1 + ^check
			if check != recCheck {
				return fmt.Errorf("%w: checksum invalid: %02x != %02x", errInvalidHex, check, recCheck)
			}

			base := upperAddr<<16 | uint64(recAddr)

			if cur != nil && cur.Base+uint64(len(cur.Bytes)) == base {
				cur.Bytes = append(cur.Bytes, data...)
			} else {
				flush()
				cur = &Image{Base: base, Bytes: append([]byte(nil), data...)}
			}

		case kindExtendedAddr:
			if recLen != 2 {
				return fmt.Errorf("%w: extended address record must carry 2 bytes", errInvalidHex)
			}

			data := make([]byte, 2)
			if _, err := hex.Decode(data, rec[9:13]); err != nil {
				return fmt.Errorf("%w: extended address: %s", errInvalidHex, err.Error())
			}

			check += data[0] + data[1]
			check = 1 + ^check
			if check != recCheck {
				return fmt.Errorf("%w: checksum invalid: %02x != %02x", errInvalidHex, check, recCheck)
			}

			upperAddr = uint64(binary.BigEndian.Uint16(data))
			flush()

		case kindEOF:
			check = 1 + ^check
			if check != recCheck {
				return fmt.Errorf("%w: checksum invalid: %02x != %02x", errInvalidHex, check, recCheck)
			}

			flush()

			if len(h.images) == 0 {
				return errEmpty
			}

			return nil

		default:
			return fmt.Errorf("%w: unexpected record type: %d", errInvalidHex, recKind)
		}
	}

	flush()

	if len(h.images) == 0 {
		return errEmpty
	}

	return nil
}

// kind represents the type of encoded record. Only the subset of record
// types supported by the encoder are supported.
type kind byte

const (
	kindData         kind = 0
	kindEOF          kind = 1
	kindExtendedAddr kind = 4
)

type decodingError struct{}

func (decodingError) Error() string {
	return "decoding error"
}

func (de *decodingError) Is(err error) bool {
	if de == err {
		return true
	} else if _, ok := err.(*decodingError); ok {
		return true
	} else {
		return false
	}
}

var (
	// ErrDecode is a wrapped error that is returned when decoding fails.
	ErrDecode = &decodingError{}

	errEmpty      = fmt.Errorf("%w: no data decoded", ErrDecode)
	errInvalidHex = fmt.Errorf("%w: invalid encoding", ErrDecode)
)
