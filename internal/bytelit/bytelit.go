// Package bytelit converts between raw bytes and the textual byte-string
// literal stored in chunk files (for example b'\x00\x01ab'). Hex strings with
// a 0x prefix are accepted on input as well.
package bytelit

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Parse decodes a stored byte literal into raw bytes.
func Parse(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hexutil.Decode("0x" + s[2:])
		if err != nil {
			return nil, fmt.Errorf("parse hex literal %q: %w", s, err)
		}
		return b, nil
	}

	if len(s) < 3 || (s[0] != 'b' && s[0] != 'B') {
		return nil, fmt.Errorf("parse byte literal %q: missing b prefix", s)
	}
	quote := s[1]
	if (quote != '\'' && quote != '"') || s[len(s)-1] != quote {
		return nil, fmt.Errorf("parse byte literal %q: unbalanced quotes", s)
	}
	body := s[2 : len(s)-1]

	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == quote {
			return nil, fmt.Errorf("parse byte literal %q: unescaped quote at %d", s, i+2)
		}
		if c >= 0x80 {
			return nil, fmt.Errorf("parse byte literal %q: non-ascii byte at %d", s, i+2)
		}
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(body) {
			return nil, fmt.Errorf("parse byte literal %q: trailing backslash", s)
		}
		switch e := body[i]; e {
		case '\\', '\'', '"':
			out = append(out, e)
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'a':
			out = append(out, 0x07)
		case 'b':
			out = append(out, 0x08)
		case 'f':
			out = append(out, 0x0c)
		case 'v':
			out = append(out, 0x0b)
		case 'x':
			if i+2 >= len(body) {
				return nil, fmt.Errorf("parse byte literal %q: short \\x escape", s)
			}
			hi, ok1 := unhex(body[i+1])
			lo, ok2 := unhex(body[i+2])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("parse byte literal %q: bad \\x escape at %d", s, i+1)
			}
			out = append(out, hi<<4|lo)
			i += 2
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := int(e - '0')
			for n := 0; n < 2 && i+1 < len(body) && body[i+1] >= '0' && body[i+1] <= '7'; n++ {
				i++
				v = v*8 + int(body[i]-'0')
			}
			if v > 0xff {
				return nil, fmt.Errorf("parse byte literal %q: octal escape out of range", s)
			}
			out = append(out, byte(v))
		default:
			// unknown escapes keep the backslash
			out = append(out, '\\', e)
		}
	}
	return out, nil
}

// Format renders raw bytes as a byte literal. Printable ASCII is kept as is,
// everything else is written as \xHH. Double quotes are used only when the
// data holds a single quote and no double quote.
func Format(b []byte) string {
	quote := byte('\'')
	if strings.IndexByte(string(b), '\'') >= 0 && strings.IndexByte(string(b), '"') < 0 {
		quote = '"'
	}

	var sb strings.Builder
	sb.Grow(len(b)*4 + 3)
	sb.WriteByte('b')
	sb.WriteByte(quote)
	for _, c := range b {
		switch {
		case c == quote || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

// ToHex parses a stored literal and re-encodes it as 0x-prefixed lowercase hex.
func ToHex(s string) (string, error) {
	b, err := Parse(s)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
