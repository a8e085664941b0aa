package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

const (
	xpakStart   = "XPAKPACK"
	xpakEnd     = "XPAKSTOP"
	xpakTrailer = "STOP"
)

// ErrNoXPAK reports that a file carries no XPAK segment.
var ErrNoXPAK = errors.New("no xpak segment")

// EncodeXPAK builds an XPAK segment from metadata, keys in sorted order.
func EncodeXPAK(metadata map[string][]byte) []byte {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var index, data bytes.Buffer
	for _, key := range keys {
		value := metadata[key]
		writeU32(&index, uint32(len(key)))
		index.WriteString(key)
		writeU32(&index, uint32(data.Len()))
		writeU32(&index, uint32(len(value)))
		data.Write(value)
	}

	var out bytes.Buffer
	out.Grow(len(xpakStart) + 8 + index.Len() + data.Len() + len(xpakEnd))
	out.WriteString(xpakStart)
	writeU32(&out, uint32(index.Len()))
	writeU32(&out, uint32(data.Len()))
	out.Write(index.Bytes())
	out.Write(data.Bytes())
	out.WriteString(xpakEnd)
	return out.Bytes()
}

// DecodeXPAK parses a segment produced by EncodeXPAK.
func DecodeXPAK(segment []byte) (map[string][]byte, error) {
	if len(segment) < len(xpakStart)+8+len(xpakEnd) ||
		string(segment[:len(xpakStart)]) != xpakStart ||
		string(segment[len(segment)-len(xpakEnd):]) != xpakEnd {
		return nil, fmt.Errorf("decode xpak: bad magic")
	}
	body := segment[len(xpakStart):]
	indexLen := binary.BigEndian.Uint32(body[0:4])
	dataLen := binary.BigEndian.Uint32(body[4:8])
	body = body[8:]
	if uint64(indexLen)+uint64(dataLen)+uint64(len(xpakEnd)) != uint64(len(body)) {
		return nil, fmt.Errorf("decode xpak: length mismatch")
	}
	index := body[:indexLen]
	data := body[indexLen : indexLen+dataLen]

	out := map[string][]byte{}
	for len(index) > 0 {
		if len(index) < 4 {
			return nil, fmt.Errorf("decode xpak: truncated index")
		}
		nameLen := binary.BigEndian.Uint32(index[:4])
		index = index[4:]
		if uint64(len(index)) < uint64(nameLen)+8 {
			return nil, fmt.Errorf("decode xpak: truncated index entry")
		}
		name := string(index[:nameLen])
		offset := binary.BigEndian.Uint32(index[nameLen : nameLen+4])
		length := binary.BigEndian.Uint32(index[nameLen+4 : nameLen+8])
		index = index[nameLen+8:]
		if uint64(offset)+uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("decode xpak: entry %q out of range", name)
		}
		out[name] = append([]byte(nil), data[offset:offset+length]...)
	}
	return out, nil
}

// AppendXPAK appends segment and its "<u32 length>STOP" trailer to f.
func AppendXPAK(f *os.File, segment []byte) error {
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	var trailer bytes.Buffer
	writeU32(&trailer, uint32(len(segment)))
	trailer.WriteString(xpakTrailer)
	if _, err := f.Write(segment); err != nil {
		return fmt.Errorf("write xpak segment: %w", err)
	}
	if _, err := f.Write(trailer.Bytes()); err != nil {
		return fmt.Errorf("write xpak trailer: %w", err)
	}
	return nil
}

// ReadXPAK extracts the metadata segment from the end of an xpak package.
func ReadXPAK(path string) (map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < 8 {
		return nil, ErrNoXPAK
	}
	trailer := make([]byte, 8)
	if _, err := f.ReadAt(trailer, info.Size()-8); err != nil {
		return nil, fmt.Errorf("read xpak trailer: %w", err)
	}
	if string(trailer[4:]) != xpakTrailer {
		return nil, ErrNoXPAK
	}
	segLen := int64(binary.BigEndian.Uint32(trailer[:4]))
	if segLen > info.Size()-8 {
		return nil, fmt.Errorf("read xpak: segment length %d exceeds file", segLen)
	}
	segment := make([]byte, segLen)
	if _, err := f.ReadAt(segment, info.Size()-8-segLen); err != nil {
		return nil, fmt.Errorf("read xpak segment: %w", err)
	}
	return DecodeXPAK(segment)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
