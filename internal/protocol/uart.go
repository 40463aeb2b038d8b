package protocol

import (
	"errors"
	"math"
	"strconv"
)

// Wire format on the UART link: "<decimal-id>-<decimal-data>\n".
const (
	Separator  = '-'
	Terminator = '\n'

	maxIDDigits   = 3 // uint8
	maxDataDigits = 5 // uint16

	// MaxFrameLen is the longest composed frame, terminator included.
	MaxFrameLen = maxIDDigits + 1 + maxDataDigits + 1
)

var (
	// ErrSecondSeparator is returned when a line holds more than one '-'.
	ErrSecondSeparator = errors.New("protocol: more than one separator")
	// ErrInvalidCharacter is returned for anything other than digits and '-'.
	ErrInvalidCharacter = errors.New("protocol: invalid character")
	// ErrFieldRange is returned when a field does not fit its type.
	ErrFieldRange = errors.New("protocol: field out of range")
)

// Parse decodes one UART line, terminator excluded. Digits accumulate into
// the id until the first '-', then into the data. Empty fields decode as 0,
// so "5" is (5, 0) and "-7" is (0, 7).
func Parse(line []byte) (Frame, error) {
	var acc [2]uint32
	field := 0
	for _, c := range line {
		switch {
		case c >= '0' && c <= '9':
			acc[field] = acc[field]*10 + uint32(c-'0')
			if acc[field] > math.MaxUint16 {
				return Frame{}, ErrFieldRange
			}
		case c == Separator:
			if field == 1 {
				return Frame{}, ErrSecondSeparator
			}
			field = 1
		default:
			return Frame{}, ErrInvalidCharacter
		}
	}
	if acc[0] > math.MaxUint8 {
		return Frame{}, ErrFieldRange
	}
	return Frame{ID: uint8(acc[0]), Data: uint16(acc[1])}, nil
}

// AppendFrame appends the wire rendering of (id, data) to dst.
func AppendFrame(dst []byte, id uint8, data uint16) []byte {
	dst = strconv.AppendUint(dst, uint64(id), 10)
	dst = append(dst, Separator)
	dst = strconv.AppendUint(dst, uint64(data), 10)
	return append(dst, Terminator)
}

// Compose renders (id, data) as a complete UART frame.
func Compose(id uint8, data uint16) []byte {
	return AppendFrame(make([]byte, 0, MaxFrameLen), id, data)
}
