package manifest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"time"
)

const (
	binaryMagic   = 0x504C4341 // "PLCA"
	binaryVersion = 1

	headerSize = 24
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// imageHeader is the fixed-size prefix of a catalog image:
//
//	magic u32 | format u16 | compression u8 | pad u8 |
//	crc u32 | metaLen u32 | rawLen u32 | bodyLen u32
//
// The checksum covers everything after the header.
type imageHeader struct {
	format      uint16
	compression Compression
	crc         uint32
	metaLen     uint32
	rawLen      uint32
	bodyLen     uint32
}

func (h imageHeader) encode() []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[0:], binaryMagic)
	binary.LittleEndian.PutUint16(b[4:], h.format)
	b[6] = byte(h.compression)
	binary.LittleEndian.PutUint32(b[8:], h.crc)
	binary.LittleEndian.PutUint32(b[12:], h.metaLen)
	binary.LittleEndian.PutUint32(b[16:], h.rawLen)
	binary.LittleEndian.PutUint32(b[20:], h.bodyLen)
	return b
}

func decodeHeader(b []byte) (imageHeader, error) {
	if magic := binary.LittleEndian.Uint32(b[0:]); magic != binaryMagic {
		return imageHeader{}, fmt.Errorf("invalid magic: %x", magic)
	}
	h := imageHeader{
		format:      binary.LittleEndian.Uint16(b[4:]),
		compression: Compression(b[6]),
		crc:         binary.LittleEndian.Uint32(b[8:]),
		metaLen:     binary.LittleEndian.Uint32(b[12:]),
		rawLen:      binary.LittleEndian.Uint32(b[16:]),
		bodyLen:     binary.LittleEndian.Uint32(b[20:]),
	}
	if h.format != binaryVersion {
		return imageHeader{}, fmt.Errorf("%w: %d", ErrIncompatibleVersion, h.format)
	}
	return h, nil
}

// WriteBinary writes the manifest as a catalog image, compressing the body
// with m.Compression. Bodies that do not shrink are stored uncompressed.
func (m *Manifest) WriteBinary(w io.Writer) error {
	if len(m.Codec) > math.MaxUint16 {
		return fmt.Errorf("codec name too long: %d", len(m.Codec))
	}
	if len(m.Body) > math.MaxUint32 {
		return fmt.Errorf("manifest body too large: %d bytes", len(m.Body))
	}

	comp := m.Compression
	body, err := compress(m.Body, comp)
	if errors.Is(err, errIncompressible) {
		comp, body, err = CompressionNone, m.Body, nil
	}
	if err != nil {
		return err
	}

	meta := make([]byte, 0, 18+len(m.Codec))
	meta = binary.LittleEndian.AppendUint64(meta, m.ID)
	meta = binary.LittleEndian.AppendUint64(meta, uint64(m.CreatedAt.UnixNano()))
	meta = binary.LittleEndian.AppendUint16(meta, uint16(len(m.Codec)))
	meta = append(meta, m.Codec...)

	crc := crc32.Update(crc32.Checksum(meta, castagnoli), castagnoli, body)
	h := imageHeader{
		format:      binaryVersion,
		compression: comp,
		crc:         crc,
		metaLen:     uint32(len(meta)),
		rawLen:      uint32(len(m.Body)),
		bodyLen:     uint32(len(body)),
	}
	for _, part := range [][]byte{h.encode(), meta, body} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// ReadBinary reads an image written by WriteBinary. The returned Body is
// decompressed.
func ReadBinary(r io.Reader) (*Manifest, error) {
	hb := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hb); err != nil {
		return nil, err
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return nil, err
	}

	rest := make([]byte, int(h.metaLen)+int(h.bodyLen))
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	if crc32.Checksum(rest, castagnoli) != h.crc {
		return nil, ErrChecksumMismatch
	}
	meta, body := rest[:h.metaLen], rest[h.metaLen:]

	if len(meta) < 18 {
		return nil, io.ErrUnexpectedEOF
	}
	m := &Manifest{
		Version:     int(h.format),
		ID:          binary.LittleEndian.Uint64(meta[0:]),
		CreatedAt:   time.Unix(0, int64(binary.LittleEndian.Uint64(meta[8:]))),
		Compression: h.compression,
	}
	n := int(binary.LittleEndian.Uint16(meta[16:]))
	if len(meta) < 18+n {
		return nil, io.ErrUnexpectedEOF
	}
	m.Codec = string(meta[18 : 18+n])

	if m.Body, err = decompress(body, h.compression, int(h.rawLen)); err != nil {
		return nil, fmt.Errorf("manifest %d: %w", m.ID, err)
	}
	return m, nil
}
