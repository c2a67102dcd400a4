// Package pngmeta reads and writes iTXt metadata chunks inside PNG byte
// streams. It is deliberately small: no decoding of image data, just chunk
// traversal, splicing and CRC bookkeeping.
package pngmeta

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

const (
	chunkHeaderSize = 8 // 4-byte length + 4-byte type
	chunkCRCSize    = 4
	typeIEND        = "IEND"
	typeITXT        = "iTXt"
)

// Embed returns a copy of png with one new iTXt chunk carrying keyword/text
// spliced immediately before the IEND trailer. The chunk layout is
// keyword NUL, compression flag 0, compression method 0, empty language tag
// NUL, empty translated keyword NUL, then UTF-8 text.
//
// Embed returns nil when the input is not a well-formed PNG or the trailer
// cannot be located. Callers must treat nil as "use the unmodified bytes",
// never as a fatal condition.
func Embed(png []byte, keyword, text string) []byte {
	trailer, ok := findTrailer(png)
	if !ok {
		return nil
	}
	chunk := encodeITXT(keyword, text)
	out := make([]byte, 0, len(png)+len(chunk))
	out = append(out, png[:trailer]...)
	out = append(out, chunk...)
	out = append(out, png[trailer:]...)
	return out
}

// Extract scans png for an iTXt chunk with the given keyword and returns its
// text payload. The second return is false when no such chunk exists or the
// input is not a PNG.
func Extract(png []byte, keyword string) (string, bool) {
	if !bytes.HasPrefix(png, pngSignature) {
		return "", false
	}
	offset := len(pngSignature)
	for offset+chunkHeaderSize <= len(png) {
		length := int(binary.BigEndian.Uint32(png[offset : offset+4]))
		ctype := string(png[offset+4 : offset+chunkHeaderSize])
		dataStart := offset + chunkHeaderSize
		dataEnd := dataStart + length
		if length < 0 || dataEnd+chunkCRCSize > len(png) {
			return "", false
		}
		if ctype == typeITXT {
			if kw, text, ok := decodeITXT(png[dataStart:dataEnd]); ok && kw == keyword {
				return text, true
			}
		}
		if ctype == typeIEND {
			return "", false
		}
		offset = dataEnd + chunkCRCSize
	}
	return "", false
}

// findTrailer returns the byte offset of the IEND chunk header.
func findTrailer(png []byte) (int, bool) {
	if !bytes.HasPrefix(png, pngSignature) {
		return 0, false
	}
	offset := len(pngSignature)
	for offset+chunkHeaderSize <= len(png) {
		length := int(binary.BigEndian.Uint32(png[offset : offset+4]))
		ctype := string(png[offset+4 : offset+chunkHeaderSize])
		if ctype == typeIEND {
			return offset, true
		}
		next := offset + chunkHeaderSize + length + chunkCRCSize
		if length < 0 || next > len(png) || next <= offset {
			return 0, false
		}
		offset = next
	}
	return 0, false
}

func encodeITXT(keyword, text string) []byte {
	data := make([]byte, 0, len(keyword)+5+len(text))
	data = append(data, keyword...)
	// keyword NUL, compression flag, compression method, language tag NUL,
	// translated keyword NUL
	data = append(data, 0, 0, 0, 0, 0)
	data = append(data, text...)

	chunk := make([]byte, 0, chunkHeaderSize+len(data)+chunkCRCSize)
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(data)))
	chunk = append(chunk, typeITXT...)
	chunk = append(chunk, data...)

	// CRC covers the chunk type and data, not the length field. hash/crc32's
	// IEEE table is the reflected 0xEDB88320 polynomial PNG specifies.
	crc := crc32.ChecksumIEEE(chunk[4:])
	chunk = binary.BigEndian.AppendUint32(chunk, crc)
	return chunk
}

func decodeITXT(data []byte) (keyword, text string, ok bool) {
	nul := bytes.IndexByte(data, 0)
	if nul < 0 {
		return "", "", false
	}
	keyword = string(data[:nul])
	rest := data[nul+1:]
	// compression flag + compression method
	if len(rest) < 2 {
		return "", "", false
	}
	rest = rest[2:]
	// language tag
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[i+1:]
	} else {
		return "", "", false
	}
	// translated keyword
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[i+1:]
	} else {
		return "", "", false
	}
	return keyword, string(rest), true
}
