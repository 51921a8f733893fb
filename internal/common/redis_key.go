package common

import "fmt"

func RedisKeyTyping(channelID string) string {
	return fmt.Sprintf("typing:%s", channelID)
}
