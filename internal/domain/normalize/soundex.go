package normalize

// soundexTable holds the American Soundex digit for A..Z; '0' marks letters without a code.
const soundexTable = "01230120022455012623010202"

const soundexLength = 4

// Soundex returns the four character American Soundex code of an ASCII token.
// Non-letters are ignored; a token without letters yields "".
// H and W do not separate consonants with the same code; vowels do.
func Soundex(token string) string {
	out := make([]byte, 0, soundexLength)
	var prev byte
	for i := 0; i < len(token) && len(out) < soundexLength; i++ {
		c := token[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			continue
		}
		code := soundexTable[c-'A']
		if len(out) == 0 {
			out = append(out, c)
			prev = code
			continue
		}
		switch {
		case c == 'H' || c == 'W':
		case code == '0':
			prev = '0'
		case code != prev:
			out = append(out, code)
			prev = code
		}
	}
	if len(out) == 0 {
		return ""
	}
	for len(out) < soundexLength {
		out = append(out, '0')
	}
	return string(out)
}
