package gen

import (
	"fmt"

	"rewardvault/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake", fx.Provide(NewNode))

// NewNode returns the id generator for this process. Each replica needs its
// own NODE_ID or ids will collide.
func NewNode(cfg *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("gen: snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
