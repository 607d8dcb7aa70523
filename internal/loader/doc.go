package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Word 97-2003 binary layout.
const (
	wordMagic      = 0xA5EC
	fibFlagsOffset = 0x000A
	fibFcClx       = 0x01A2
	fibLcbClx      = 0x01A6

	flagEncrypted = 0x0100
	flagWhichTbl  = 0x0200

	fcCompressed = 0x40000000
	fcMask       = 0x3FFFFFFF
)

// ErrNotWordDocument is returned for compound files without a readable Word stream.
var ErrNotWordDocument = errors.New("not a Word 97-2003 document")

// loadDoc extracts the text of a legacy .doc file by walking its piece table.
func loadDoc(path string) ([]*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfb, err := mscfb.New(f)
	if err != nil {
		return nil, fmt.Errorf("open compound file: %w", err)
	}

	streams := make(map[string][]byte)
	for {
		entry, err := cfb.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read compound file: %w", err)
		}
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			data, err := io.ReadAll(entry)
			if err != nil {
				return nil, fmt.Errorf("read %s stream: %w", entry.Name, err)
			}
			streams[entry.Name] = data
		}
	}

	text, err := wordText(streams)
	if err != nil {
		return nil, err
	}
	return []*schema.Document{{Content: text}}, nil
}

// wordText decodes every piece of the document's piece table in CP order.
func wordText(streams map[string][]byte) (string, error) {
	word := streams["WordDocument"]
	if len(word) < fibLcbClx+4 || binary.LittleEndian.Uint16(word) != wordMagic {
		return "", ErrNotWordDocument
	}
	flags := binary.LittleEndian.Uint16(word[fibFlagsOffset:])
	if flags&flagEncrypted != 0 {
		return "", fmt.Errorf("encrypted Word document")
	}
	tableName := "0Table"
	if flags&flagWhichTbl != 0 {
		tableName = "1Table"
	}
	table, ok := streams[tableName]
	if !ok {
		return "", fmt.Errorf("%w: missing %s stream", ErrNotWordDocument, tableName)
	}

	fcClx := int(binary.LittleEndian.Uint32(word[fibFcClx:]))
	lcbClx := int(binary.LittleEndian.Uint32(word[fibLcbClx:]))
	if fcClx < 0 || lcbClx <= 0 || fcClx+lcbClx > len(table) {
		return "", fmt.Errorf("%w: piece table out of range", ErrNotWordDocument)
	}
	plc, err := piecePLC(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}

	n := (len(plc) - 4) / 12
	var sb strings.Builder
	for i := 0; i < n; i++ {
		start := binary.LittleEndian.Uint32(plc[i*4:])
		end := binary.LittleEndian.Uint32(plc[(i+1)*4:])
		if end < start {
			return "", fmt.Errorf("%w: piece %d has negative length", ErrNotWordDocument, i)
		}
		count := int(end - start)
		fc := binary.LittleEndian.Uint32(plc[(n+1)*4+i*8+2:])

		var (
			raw []byte
			dec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		)
		off := int(fc & fcMask)
		if fc&fcCompressed != 0 {
			off /= 2
			if off+count > len(word) {
				return "", fmt.Errorf("%w: piece %d out of range", ErrNotWordDocument, i)
			}
			raw = word[off : off+count]
			dec = charmap.Windows1252.NewDecoder()
		} else {
			if off+2*count > len(word) {
				return "", fmt.Errorf("%w: piece %d out of range", ErrNotWordDocument, i)
			}
			raw = word[off : off+2*count]
		}
		text, err := dec.Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decode piece %d: %w", i, err)
		}
		sb.Write(text)
	}
	return cleanWordText(sb.String()), nil
}

// piecePLC skips the Prc entries of a Clx and returns its PlcPcd.
func piecePLC(clx []byte) ([]byte, error) {
	i := 0
	for i < len(clx) && clx[i] == 0x01 {
		if i+3 > len(clx) {
			return nil, fmt.Errorf("%w: truncated Prc", ErrNotWordDocument)
		}
		i += 3 + int(int16(binary.LittleEndian.Uint16(clx[i+1:])))
	}
	if i+5 > len(clx) || clx[i] != 0x02 {
		return nil, fmt.Errorf("%w: no piece table", ErrNotWordDocument)
	}
	lcb := int(binary.LittleEndian.Uint32(clx[i+1:]))
	plc := clx[i+5:]
	if lcb < 16 || lcb > len(plc) || (lcb-4)%12 != 0 {
		return nil, fmt.Errorf("%w: bad piece table size %d", ErrNotWordDocument, lcb)
	}
	return plc[:lcb], nil
}

// cleanWordText maps Word's control characters to plain text and drops
// field instructions, keeping field results.
func cleanWordText(s string) string {
	var (
		sb     strings.Builder
		fields []bool // per open field: still inside the instruction part
	)
	inInstruction := func() bool {
		for _, instr := range fields {
			if instr {
				return true
			}
		}
		return false
	}

	for _, r := range s {
		switch r {
		case 0x13:
			fields = append(fields, true)
			continue
		case 0x14:
			if len(fields) > 0 {
				fields[len(fields)-1] = false
			}
			continue
		case 0x15:
			if len(fields) > 0 {
				fields = fields[:len(fields)-1]
			}
			continue
		}
		if inInstruction() {
			continue
		}
		switch {
		case r == '\r' || r == 0x0B || r == 0x0C:
			sb.WriteByte('\n')
		case r == 0x07:
			sb.WriteByte('\t')
		case r == 0x1E:
			sb.WriteByte('-')
		case r == '\t' || r == '\n':
			sb.WriteRune(r)
		case r < 0x20:
			// remaining control characters carry no text
		default:
			sb.WriteRune(r)
		}
	}
	return strings.TrimRight(sb.String(), "\n\t ")
}
