// Package analyzer runs an indicator through a Cortex analyzer and turns the
// report into an HTML attribute on the indicator.
//
// The flow is Catalog check -> Submit -> Poll -> Render -> Publish. Every stage
// returns an *Error with a Kind; the pipeline stops on the first fatal one.
package analyzer

import (
	"errors"
	"fmt"
	"strings"
)

// IndicatorKind is the IOC kind; its value doubles as the Cortex dataType.
type IndicatorKind string

const (
	IndicatorDomain IndicatorKind = "domain"
	IndicatorIP     IndicatorKind = "ip"
	IndicatorHash   IndicatorKind = "hash"
)

// AllIndicatorKinds lists the kinds the pipeline submits.
var AllIndicatorKinds = []IndicatorKind{IndicatorDomain, IndicatorIP, IndicatorHash}

// ErrUnsupportedKind is returned by ParseKind for host types with no Cortex data type.
var ErrUnsupportedKind = errors.New("unsupported indicator type")

// Valid reports whether k is one of AllIndicatorKinds.
func (k IndicatorKind) Valid() bool {
	for _, v := range AllIndicatorKinds {
		if k == v {
			return true
		}
	}
	return false
}

// ParseKind maps a host IOC type name onto an IndicatorKind.
func ParseKind(hostType string) (IndicatorKind, error) {
	t := strings.ToLower(strings.TrimSpace(hostType))
	switch t {
	case "domain", "hostname", "fqdn", "domain-name":
		return IndicatorDomain, nil
	case "ip", "ip-src", "ip-dst", "ip-any", "ipv4", "ipv6", "ip-addr":
		return IndicatorIP, nil
	case "hash", "md5", "sha1", "sha224", "sha256", "sha384", "sha512", "ssdeep", "imphash", "tlsh":
		return IndicatorHash, nil
	}
	// composite host types such as "filename|sha256" carry the hash after the pipe
	if i := strings.LastIndex(t, "|"); i >= 0 {
		if k, err := ParseKind(t[i+1:]); err == nil && k == IndicatorHash {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, hostType)
}

// Indicator is the IOC under analysis. It is owned by the host and never mutated here.
type Indicator struct {
	ID    string
	Value string
	Kind  IndicatorKind
}

func (i Indicator) String() string {
	return fmt.Sprintf("%s:%s", i.Kind, i.Value)
}

func (i Indicator) validate() error {
	if strings.TrimSpace(i.Value) == "" {
		return errors.New("indicator value is empty")
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, string(i.Kind))
	}
	return nil
}
