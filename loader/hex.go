package loader

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseHex reads one instruction word per line. Words may carry a 0x
// prefix; blank lines and text after '#' are ignored.
func ParseHex(r io.Reader) ([]uint32, error) {
	var words []uint32

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
		w, err := strconv.ParseUint(text, 16, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		words = append(words, uint32(w))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read hex listing")
	}

	return words, nil
}

// LoadHex reads a hex listing and places it at DefaultTextBase.
func LoadHex(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open hex file")
	}
	defer func() { _ = f.Close() }()

	words, err := ParseHex(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	return FromWords(DefaultTextBase, words), nil
}

// FromWords wraps words as an executable program at base.
func FromWords(base uint32, words []uint32) *Program {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[4*i:], w)
	}

	return &Program{
		EntryPoint: base,
		InitialSP:  DefaultStackTop,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     data,
			MemSize:  uint32(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagExecute,
		}},
	}
}

// LoadFile picks the ELF or hex loader by extension. Anything other than
// .hex or .txt is read as ELF.
func LoadFile(path string) (*Program, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".txt":
		return LoadHex(path)
	}
	return Load(path)
}
