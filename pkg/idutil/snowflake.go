package idutil

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Generator issues time ordered string ids. Ids from one node sort in
// creation order when compared by length first, then lexically.
type Generator struct {
	node *snowflake.Node
}

func NewGenerator(node int64) (*Generator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}

	return &Generator{node: n}, nil
}

func (g *Generator) Next() string {
	return g.node.Generate().String()
}

// Time returns the moment the id was generated.
func Time(id string) (time.Time, error) {
	sID, err := snowflake.ParseString(id)
	if err != nil {
		return time.Time{}, err
	}

	return time.UnixMilli(sID.Time()).UTC(), nil
}
