package httpcodec

import (
	"iter"
	"strconv"
	"strings"
)

// Params iterates over a semicolon-delimited parameter list such as a Cookie
// field value: "a=1; b=2; c". Quoted values are unquoted. A parameter without
// "=" yields an empty value. Segments that do not parse are skipped.
func Params(s string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for seg := range strings.SplitSeq(s, ";") {
			name, value, ok := parseParam(seg)
			if !ok {
				continue
			}
			if !yield(name, value) {
				return
			}
		}
	}
}

func parseParam(seg string) (string, string, bool) {
	seg = strings.Trim(seg, " \t")
	if seg == "" {
		return "", "", false
	}

	name, value, _ := strings.Cut(seg, "=")
	name = strings.Trim(name, " \t")
	value = strings.Trim(value, " \t")
	if !isToken(name) {
		return "", "", false
	}

	if strings.HasPrefix(value, `"`) {
		unquoted, err := strconv.Unquote(value)
		if err != nil {
			return "", "", false
		}
		return name, unquoted, true
	}

	for i := 0; i < len(value); i++ {
		if c := value[i]; c < 0x20 || c == 0x7f || c == '"' {
			return "", "", false
		}
	}
	return name, value, true
}
