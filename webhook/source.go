package webhook

import (
	"fmt"
	"strings"
)

// Source identifies the partner system that sent a webhook
type Source int

const (
	Customs Source = iota + 1
	Carrier
	Port
	Warehouse
	Client
	Tracking
	Financial
)

var sourceNames = map[Source]string{
	Customs:   "customs",
	Carrier:   "carrier",
	Port:      "port",
	Warehouse: "warehouse",
	Client:    "client",
	Tracking:  "tracking",
	Financial: "financial",
}

// Sources lists every known source in declaration order
func Sources() []Source {
	return []Source{Customs, Carrier, Port, Warehouse, Client, Tracking, Financial}
}

// String returns the string representation of the source
func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSource creates a Source from its name, case-insensitively
func ParseSource(str string) (Source, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	for src, name := range sourceNames {
		if name == str {
			return src, nil
		}
	}
	return 0, fmt.Errorf("unknown source: %q", str)
}

// Validate checks if the source is valid
func (s Source) Validate() error {
	if _, ok := sourceNames[s]; !ok {
		return fmt.Errorf("invalid source: %d", s)
	}
	return nil
}

// MarshalText encodes the source by name
func (s Source) MarshalText() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a source name
func (s *Source) UnmarshalText(text []byte) error {
	src, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = src
	return nil
}
