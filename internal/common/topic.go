package common

import "fmt"

// Topic names label subscriptions on the change feed. Routing is done by
// table filters, the name only identifies the subscription owner.

func TopicMessages(channelID string) string {
	return fmt.Sprintf("messages:%s", channelID)
}

func TopicMembers(channelID string) string {
	return fmt.Sprintf("members:%s", channelID)
}

func TopicModeration(channelID string) string {
	return fmt.Sprintf("moderation:%s", channelID)
}

func TopicReceipts(channelID string) string {
	return fmt.Sprintf("receipts:%s", channelID)
}

func TopicUnread(userID string) string {
	return fmt.Sprintf("unread:%s", userID)
}

func TopicChannels(userID string) string {
	return fmt.Sprintf("channels:%s", userID)
}

func TopicNotifications(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

func TopicPresence(channelID string) string {
	return fmt.Sprintf("presence:%s", channelID)
}
