package barcode

import "fmt"

// base45 transport encoding. Field decoders depend on this exact alphabet and
// chunking, so it is implemented here rather than behind a library boundary.
const base45Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

var base45Reverse = func() [256]int16 {
	var table [256]int16
	for i := range table {
		table[i] = -1
	}
	for i, c := range []byte(base45Alphabet) {
		table[c] = int16(i)
	}
	return table
}()

// base45Encode encodes bytes two at a time into three alphabet characters,
// with a two-character tail for an odd trailing byte.
func base45Encode(data []byte) string {
	out := make([]byte, 0, (len(data)*3+1)/2)
	for i := 0; i+1 < len(data); i += 2 {
		n := int(data[i])<<8 | int(data[i+1])
		out = append(out,
			base45Alphabet[n%45],
			base45Alphabet[n/45%45],
			base45Alphabet[n/45/45],
		)
	}
	if len(data)%2 == 1 {
		n := int(data[len(data)-1])
		out = append(out, base45Alphabet[n%45], base45Alphabet[n/45])
	}
	return string(out)
}

// base45Decode reverses base45Encode. Used by the round-trip tests and by any
// caller that needs to inspect issued tokens.
func base45Decode(s string) ([]byte, error) {
	switch len(s) % 3 {
	case 0, 2:
	default:
		return nil, fmt.Errorf("base45: invalid length %d", len(s))
	}
	out := make([]byte, 0, len(s)/3*2+1)
	for i := 0; i < len(s); i += 3 {
		rest := len(s) - i
		c := base45Reverse[s[i]]
		d := base45Reverse[s[i+1]]
		if c < 0 || d < 0 {
			return nil, fmt.Errorf("base45: invalid character at %d", i)
		}
		if rest == 2 {
			n := int(c) + int(d)*45
			if n > 0xFF {
				return nil, fmt.Errorf("base45: overflow in tail chunk")
			}
			out = append(out, byte(n))
			break
		}
		e := base45Reverse[s[i+2]]
		if e < 0 {
			return nil, fmt.Errorf("base45: invalid character at %d", i+2)
		}
		n := int(c) + int(d)*45 + int(e)*45*45
		if n > 0xFFFF {
			return nil, fmt.Errorf("base45: overflow in chunk at %d", i)
		}
		out = append(out, byte(n>>8), byte(n))
	}
	return out, nil
}
