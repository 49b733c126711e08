package fs

import (
	"github.com/pkg/errors"
)

// Mode is a parsed file open mode.
type Mode struct {
	Reading   bool // open for reading
	Writing   bool // open for writing
	Appending bool // writes go to the end of the file
	Creating  bool // create the file if it doesn't exist
	Exclusive bool // fail if the file already exists
	Truncate  bool // discard any existing content
}

// ParseMode parses an open mode string in the usual "r", "w", "a",
// "x" form with optional "+" and "b" suffixes.  Text mode ("t") is
// rejected - all files are binary.
func ParseMode(mode string) (Mode, error) {
	var m Mode
	if mode == "" {
		return m, errors.New("empty mode string")
	}
	for _, c := range mode {
		switch c {
		case 'r':
			m.Reading = true
		case 'w':
			m.Writing = true
			m.Creating = true
			m.Truncate = true
		case 'a':
			m.Writing = true
			m.Creating = true
			m.Appending = true
		case 'x':
			m.Writing = true
			m.Creating = true
			m.Exclusive = true
		case '+':
			m.Reading = true
			m.Writing = true
		case 'b':
			// binary is the only supported representation
		case 't':
			return Mode{}, errors.New("text mode is not supported")
		default:
			return Mode{}, errors.Errorf("invalid character %q in mode %q", c, mode)
		}
	}
	if !m.Reading && !m.Writing {
		return Mode{}, errors.Errorf("mode %q is neither readable nor writable", mode)
	}
	return m, nil
}

// String reconstructs a canonical mode string.
func (m Mode) String() string {
	out := ""
	switch {
	case m.Exclusive:
		out = "x"
	case m.Appending:
		out = "a"
	case m.Truncate:
		out = "w"
	default:
		out = "r"
	}
	if m.Reading && m.Writing {
		out += "+"
	}
	return out
}
