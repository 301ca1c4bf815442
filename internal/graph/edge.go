package graph

import (
	"fmt"
	"strings"
)

// Endpoint addresses one port on one node.
type Endpoint struct {
	Node string `json:"node"`
	Port string `json:"port"`
}

func (e Endpoint) String() string {
	return e.Node + ":" + e.Port
}

// ParseEndpoint parses "node:port". The port is taken after the last colon
// so node ids may contain colons.
func ParseEndpoint(s string) (Endpoint, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return Endpoint{}, fmt.Errorf("malformed endpoint %q, want node:port", s)
	}
	return Endpoint{Node: s[:i], Port: s[i+1:]}, nil
}

// Edge is a directed connection from an output port to an input port.
type Edge struct {
	ID   string   `json:"id"`
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}
