package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// String list errors.
var (
	ErrTruncatedStringList = errors.New("truncated string list")
	ErrStringTooLong       = errors.New("string list entry too long")
)

const maxStringLength = 1 << 20

// WriteStringList writes list as [uint32 count] then [uint32 len][bytes][0]
// per entry.
func WriteStringList(w io.Writer, list []string) error {
	if err := binary.Write(w, byteOrder, uint32(len(list))); err != nil {
		return err
	}
	for _, s := range list {
		if err := binary.Write(w, byteOrder, uint32(len(s))); err != nil {
			return err
		}
		buf := make([]byte, len(s)+1)
		copy(buf, s)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// ReadStringList reads a list written by WriteStringList.
func ReadStringList(r io.Reader) ([]string, error) {
	var count uint32
	if err := binary.Read(r, byteOrder, &count); err != nil {
		return nil, fmt.Errorf("reading count: %w", errors.Join(ErrTruncatedStringList, err))
	}

	list := make([]string, 0, min(count, 4096))
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, byteOrder, &n); err != nil {
			return nil, fmt.Errorf("reading length of entry %d: %w", i, errors.Join(ErrTruncatedStringList, err))
		}
		if n > maxStringLength {
			return nil, fmt.Errorf("%w: entry %d has %d bytes", ErrStringTooLong, i, n)
		}
		buf := make([]byte, n+1)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, errors.Join(ErrTruncatedStringList, err))
		}
		list = append(list, string(buf[:n]))
	}
	return list, nil
}
