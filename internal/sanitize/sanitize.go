// Package sanitize neutralizes unsafe or malformed content in candidate
// records. Every function here is idempotent: applying it to its own output
// returns that output unchanged.
package sanitize

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxTextLen is the maximum length of a sanitized text field, in runes.
const MaxTextLen = 10000

// MaxNumber is the largest numeric field value accepted.
const MaxNumber = 1_000_000_000

const maxPasses = 4

var (
	scriptRe      = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)
	styleRe       = regexp.MustCompile(`(?is)<style[^>]*>.*?</style\s*>`)
	tagRe         = regexp.MustCompile(`(?s)<[^<>]*>`)
	schemeTokenRe = regexp.MustCompile(`(?i)(?:javascript|vbscript)\s*:|data\s*:\s*[a-z]+/[a-z0-9.+-]+`)
	spaceRunRe    = regexp.MustCompile(`[ ]{2,}`)
	lineEdgeRe    = regexp.MustCompile(` *\n *`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
)

// Text strips markup, script-like tokens, and control characters, normalizes
// to NFC, collapses whitespace, and truncates to MaxTextLen runes. Newlines
// are preserved; tabs become spaces.
func Text(s string) string {
	out := s
	for i := 0; i < maxPasses; i++ {
		next := cleanText(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// Line is Text for single-line fields: newlines become spaces.
func Line(s string) string {
	return Text(strings.ReplaceAll(Text(s), "\n", " "))
}

func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\r':
			return -1
		case r == '\t', unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), r == '\u200b', r == '\ufeff':
			return -1
		}
		return r
	}, s)
	s = norm.NFC.String(s)

	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	for {
		next := schemeTokenRe.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}

	s = spaceRunRe.ReplaceAllString(s, " ")
	s = lineEdgeRe.ReplaceAllString(s, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) > MaxTextLen {
		s = strings.TrimSpace(string([]rune(s)[:MaxTextLen]))
	}
	return s
}

var dangerousSchemes = []string{"javascript:", "vbscript:", "data:"}

var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"mkt_tok": true,
	"_hsenc":  true,
	"_hsmi":   true,
}

// URL returns the canonical absolute form of raw, or false if raw is not a
// safe http(s) URL with a host. Canonical form has a lower-case scheme and
// host, no credentials, no fragment, no tracking parameters, and sorted
// query parameters.
func URL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	squashed := strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw))
	for _, scheme := range dangerousSchemes {
		if strings.HasPrefix(squashed, scheme) {
			return "", false
		}
	}
	if !strings.HasPrefix(squashed, "http://") && !strings.HasPrefix(squashed, "https://") {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	if u.Hostname() == "" {
		return "", false
	}
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(k)
		}
	}
	if strings.HasSuffix(u.Hostname(), "linkedin.com") {
		keep := url.Values{}
		if v := q.Get("currentJobId"); v != "" {
			keep.Set("currentJobId", v)
		}
		q = keep
	}
	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()

	return u.String(), true
}

// Phone keeps only digits and '+'. It returns false when the result is not
// between 10 and 15 characters long.
func Phone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) < 10 || len(out) > 15 {
		return "", false
	}
	return out, true
}

// Number coerces v to an integer. Strings may carry currency symbols and
// thousands separators. Negative values, values above MaxNumber, and
// non-numeric input are rejected.
func Number(v any) (int64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		cleaned := strings.Map(func(r rune) rune {
			switch r {
			case '$', ',', ' ', '\u00a0', '\u20ac', '\u00a3':
				return -1
			}
			return r
		}, strings.TrimSpace(n))
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > MaxNumber {
		return 0, false
	}
	return int64(f), true
}
