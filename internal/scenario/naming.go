package scenario

import (
	"regexp"
	"strconv"
)

var (
	derivedNameRe = regexp.MustCompile(`route_([^_.]+)((?:_[A-Za-z]+-?\d+(?:\.\d+)?)+)`)
	bindingRe     = regexp.MustCompile(`_([A-Za-z]+)(-?\d+(?:\.\d+)?)`)
)

// Param is one (attribute, value) pair recovered from a filename. Text holds
// the value exactly as written.
type Param struct {
	Attribute string
	Value     float64
	Text      string
}

// ParsedName is the entity id and parameters encoded in a derived name.
type ParsedName struct {
	EntityID string
	Params   []Param
}

// Lookup returns the value text for an attribute, or "" if absent.
func (p ParsedName) Lookup(attr string) string {
	for _, q := range p.Params {
		if q.Attribute == attr {
			return q.Text
		}
	}
	return ""
}

// ParseDerivedName recovers the entity id and parameters from any filename
// containing a derived route name, such as
// collisions_route_1_tau0.8_lcSigma0.5.rou.xml. The entity id is the
// segment after "route_" up to the next underscore.
func ParseDerivedName(name string) (ParsedName, bool) {
	m := derivedNameRe.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, false
	}
	out := ParsedName{EntityID: m[1]}
	for _, b := range bindingRe.FindAllStringSubmatch(m[2], -1) {
		v, err := strconv.ParseFloat(b[2], 64)
		if err != nil {
			continue
		}
		out.Params = append(out.Params, Param{Attribute: b[1], Value: v, Text: b[2]})
	}
	return out, true
}
