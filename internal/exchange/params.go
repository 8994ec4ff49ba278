package exchange

import (
	"net/url"
	"sort"
	"strings"
)

type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list. Methods never modify the receiver's
// backing array; With and Sorted return fresh slices.
type Params []Param

func NewParams(kv ...string) Params {
	p := make(Params, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		p = append(p, Param{Key: kv[i], Value: kv[i+1]})
	}
	return p
}

func (p Params) With(key, value string) Params {
	out := make(Params, len(p), len(p)+1)
	copy(out, p)
	return append(out, Param{Key: key, Value: value})
}

func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Encode url-encodes the parameters in their current order.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

// Sorted returns a copy ordered lexicographically by key.
func (p Params) Sorted() Params {
	out := make(Params, len(p))
	copy(out, p)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
