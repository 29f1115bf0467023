package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator hands out snowflake IDs from a single node, so IDs generated
// within the same millisecond still differ by sequence.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given node (0-1023).
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &IDGenerator{node: node}, nil
}

// NodeFromEnv reads SNOWFLAKE_NODE, defaulting to node 1 when unset or malformed.
func NodeFromEnv() int64 {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return 1
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return 1
	}
	return nodeID
}

// NextID returns a new snowflake ID.
func (g *IDGenerator) NextID() int64 {
	return g.node.Generate().Int64()
}
