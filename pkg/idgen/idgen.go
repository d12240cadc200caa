package idgen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sony/sonyflake"
)

// Generator issues order ids: a class prefix followed by a sonyflake id in base 36.
type Generator struct {
	node *sonyflake.Sonyflake
}

// NewGenerator creates a Generator for the given machine id.
func NewGenerator(machineID uint16) (*Generator, error) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: start,
		MachineID: func() (uint16, error) {
			return machineID, nil
		},
	})
	if sf == nil {
		return nil, fmt.Errorf("sonyflake not created")
	}
	return &Generator{node: sf}, nil
}

// NextID returns a new id with the given prefix, e.g. "MAVL3F9K2A1B".
func (g *Generator) NextID(prefix string) (string, error) {
	n, err := g.node.NextID()
	if err != nil {
		return "", fmt.Errorf("NextID: %w", err)
	}
	return prefix + strings.ToUpper(strconv.FormatUint(n, 36)), nil
}
