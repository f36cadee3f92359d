package rediskey

import "fmt"

const (
	InventoryPrefix = "rewardvault:inventory"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// InventoryStatsKey returns "rewardvault:inventory:stats"
func InventoryStatsKey() string {
	return NamespaceKey(InventoryPrefix, "stats")
}
