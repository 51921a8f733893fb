package pubsub

// Pack is a keyed message. Messages with the same key keep their relative
// order inside one topic.
type Pack struct {
	Key []byte
	Msg []byte
}
