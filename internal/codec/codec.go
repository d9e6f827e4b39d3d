// Package codec implements multibase-framed base58btc encoding.
package codec

import "fmt"

// multibasePrefix identifies the base58btc alphabet per the multibase table.
const multibasePrefix = 'z'

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// alphabetIndex maps an ASCII byte to its base58 digit, or -1.
var alphabetIndex [256]int8

func init() {
	for i := range alphabetIndex {
		alphabetIndex[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		alphabetIndex[alphabet[i]] = int8(i)
	}
}

// EncodingError reports a malformed multibase string passed to Decode.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "codec: " + e.Reason
}

// Encode returns the multibase base58btc encoding of b.
// Leading zero bytes are preserved as a run of '1'.
func Encode(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	// log(256)/log(58) ≈ 1.37, so the output never exceeds this size.
	size := (len(b)-zeros)*138/100 + 1
	buf := make([]byte, size)
	high := size - 1

	for _, c := range b[zeros:] {
		carry := int(c)
		i := size - 1
		for ; i > high || carry != 0; i-- {
			carry += 256 * int(buf[i])
			buf[i] = byte(carry % 58)
			carry /= 58
		}
		high = i
	}

	start := 0
	for start < size && buf[start] == 0 {
		start++
	}
	// Treat the all-zero-digit buffer of a non-empty input as a single digit.
	if start == size && len(b) > zeros {
		start = size - 1
	}

	out := make([]byte, 0, 1+zeros+size-start)
	out = append(out, multibasePrefix)
	for i := 0; i < zeros; i++ {
		out = append(out, alphabet[0])
	}
	for _, d := range buf[start:] {
		out = append(out, alphabet[d])
	}
	return string(out)
}

// Decode reverses Encode. It fails with an *EncodingError when s lacks the
// multibase prefix or contains a byte outside the base58btc alphabet.
func Decode(s string) ([]byte, error) {
	if len(s) == 0 || s[0] != multibasePrefix {
		return nil, &EncodingError{Reason: fmt.Sprintf("missing multibase prefix %q", multibasePrefix)}
	}
	s = s[1:]

	zeros := 0
	for zeros < len(s) && s[zeros] == alphabet[0] {
		zeros++
	}

	size := len(s)*733/1000 + 1 // log(58)/log(256) ≈ 0.733
	buf := make([]byte, size)
	high := size - 1

	for i := zeros; i < len(s); i++ {
		digit := alphabetIndex[s[i]]
		if digit < 0 {
			return nil, &EncodingError{Reason: fmt.Sprintf("invalid base58 character %q", s[i])}
		}
		carry := int(digit)
		j := size - 1
		for ; j > high || carry != 0; j-- {
			carry += 58 * int(buf[j])
			buf[j] = byte(carry % 256)
			carry /= 256
		}
		high = j
	}

	start := 0
	for start < size && buf[start] == 0 {
		start++
	}

	out := make([]byte, 0, zeros+size-start)
	out = append(out, make([]byte, zeros)...)
	out = append(out, buf[start:]...)
	return out, nil
}
