// Package scan turns scanned or typed text into an order identifier.
package scan

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUnrecognized is returned when no matcher accepts the input.
var ErrUnrecognized = errors.New("unrecognized order identifier")

type Kind string

const (
	// KindID is an Admin API global id, gid://shopify/Order/<n>.
	KindID Kind = "id"
	// KindName is an order name such as #1001.
	KindName Kind = "name"
)

// orderIDDigits is the length from which a bare number is read as an order
// id rather than an order number.
const orderIDDigits = 10

const gidPrefix = "gid://shopify/Order/"

// Identifier is the normalized result of a successful match.
type Identifier struct {
	Kind   Kind   `json:"kind"`
	Value  string `json:"value"`
	Raw    string `json:"raw"`
	Source string `json:"source"`
}

// Matcher inspects trimmed input and reports whether it recognised it.
type Matcher struct {
	Name  string
	Match func(p *Parser, input string) (Identifier, bool)
}

// Parser tries its matchers in order and returns the first match.
type Parser struct {
	matchers []Matcher
}

// NewParser returns a parser with the given matchers, or the default list.
func NewParser(matchers ...Matcher) *Parser {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Parser{matchers: matchers}
}

// DefaultMatchers lists the built-in matchers in priority order.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Name: "json", Match: matchJSON},
		{Name: "gid", Match: matchGID},
		{Name: "url", Match: matchURL},
		{Name: "hash", Match: matchHash},
		{Name: "numeric", Match: matchNumeric},
	}
}

// Parse normalizes input into an Identifier.
func (p *Parser) Parse(input string) (Identifier, error) {
	raw := input
	input = strings.TrimSpace(input)
	if input == "" {
		return Identifier{}, ErrUnrecognized
	}
	for _, m := range p.matchers {
		if id, ok := m.Match(p, input); ok {
			id.Raw = raw
			if id.Source == "" {
				id.Source = m.Name
			}
			return id, nil
		}
	}
	return Identifier{}, ErrUnrecognized
}

// Parse uses the default matcher list.
func Parse(input string) (Identifier, error) {
	return NewParser().Parse(input)
}

// GID returns the global id for a numeric order id.
func GID(numeric string) string { return gidPrefix + numeric }

// NumericID strips the gid prefix, returning "" for anything else.
func NumericID(gid string) string {
	if m := gidPattern.FindStringSubmatch(gid); m != nil {
		return m[1]
	}
	return ""
}

var (
	gidPattern     = regexp.MustCompile(`(?i)^gid://shopify/order/(\d+)(?:\?.*)?$`)
	urlPathPattern = regexp.MustCompile(`(?i)/orders/(\d+)(?:[/?#.]|$)`)
	hashPattern    = regexp.MustCompile(`^#\s*([A-Za-z0-9][A-Za-z0-9_-]*)$`)
	digitsPattern  = regexp.MustCompile(`^\d+$`)
)

var jsonKeys = []string{"orderId", "order_id", "id", "orderNumber", "order_number", "name", "url"}

// matchJSON reads the first known key from a JSON object and runs the value
// back through the non-JSON matchers.
func matchJSON(p *Parser, input string) (Identifier, bool) {
	if !strings.HasPrefix(input, "{") || !gjson.Valid(input) {
		return Identifier{}, false
	}
	doc := gjson.Parse(input)
	for _, key := range jsonKeys {
		v := doc.Get(key)
		if !v.Exists() {
			continue
		}
		val := strings.TrimSpace(v.String())
		if val == "" {
			continue
		}
		if key == "orderNumber" || key == "order_number" {
			if digitsPattern.MatchString(val) {
				return Identifier{Kind: KindName, Value: "#" + val, Source: "json"}, true
			}
		}
		for _, m := range p.matchers {
			if m.Name == "json" {
				continue
			}
			if id, ok := m.Match(p, val); ok {
				id.Source = "json"
				return id, true
			}
		}
	}
	return Identifier{}, false
}

func matchGID(_ *Parser, input string) (Identifier, bool) {
	m := gidPattern.FindStringSubmatch(input)
	if m == nil {
		return Identifier{}, false
	}
	return Identifier{Kind: KindID, Value: GID(m[1])}, true
}

// matchURL accepts admin and storefront links carrying an order id in the
// path (/orders/<n>) or the query (order_id=<n>, id=<n>).
func matchURL(_ *Parser, input string) (Identifier, bool) {
	u, err := url.Parse(input)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Identifier{}, false
	}
	if m := urlPathPattern.FindStringSubmatch(u.Path); m != nil {
		return Identifier{Kind: KindID, Value: GID(m[1])}, true
	}
	q := u.Query()
	for _, key := range []string{"order_id", "orderId", "id"} {
		if v := q.Get(key); digitsPattern.MatchString(v) {
			return Identifier{Kind: KindID, Value: GID(v)}, true
		}
		if v := q.Get(key); gidPattern.MatchString(v) {
			return Identifier{Kind: KindID, Value: GID(NumericID(v))}, true
		}
	}
	return Identifier{}, false
}

func matchHash(_ *Parser, input string) (Identifier, bool) {
	m := hashPattern.FindStringSubmatch(input)
	if m == nil {
		return Identifier{}, false
	}
	return Identifier{Kind: KindName, Value: "#" + m[1]}, true
}

func matchNumeric(_ *Parser, input string) (Identifier, bool) {
	if !digitsPattern.MatchString(input) {
		return Identifier{}, false
	}
	if len(input) >= orderIDDigits {
		return Identifier{Kind: KindID, Value: GID(input)}, true
	}
	n := strings.TrimLeft(input, "0")
	if n == "" {
		return Identifier{}, false
	}
	return Identifier{Kind: KindName, Value: "#" + n}, true
}
