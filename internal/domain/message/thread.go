package message

import (
	"context"
	"sort"
	"sync"

	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
)

// Thread holds the replies of one parent message, oldest first. It is fed by
// the window of the parent's channel.
type Thread struct {
	parentID string
	window   *Window

	mutex   sync.Mutex
	parent  entity.Message
	replies []entity.Message
	signal  *common.Signal
}

// OpenThread loads the replies of parentID and keeps them in sync until the
// thread is closed. Opening the same parent twice returns the same thread.
func (w *Window) OpenThread(ctx context.Context, parentID string) (*Thread, error) {
	w.mutex.Lock()
	t, ok := w.threads[parentID]
	if !ok {
		t = &Thread{parentID: parentID, window: w, signal: common.NewSignal()}
		w.threads[parentID] = t
	}
	w.mutex.Unlock()

	if ok {
		return t, nil
	}

	if err := t.Load(ctx); err != nil {
		t.Close()
		return nil, err
	}

	return t, nil
}

func (t *Thread) Load(ctx context.Context) error {
	resp, err := t.window.caller.GetThread(ctx, &model.GetThreadRequest{ParentID: t.parentID})
	if err != nil {
		return err
	}

	t.mutex.Lock()
	t.parent = resp.Parent
	t.replies = t.replies[:0]
	for _, reply := range resp.Replies {
		if reply.ThreadID != nil && *reply.ThreadID == t.parentID {
			t.replies = append(t.replies, reply)
		}
	}
	t.mutex.Unlock()

	t.signal.Notify()
	return nil
}

func (t *Thread) handle(ev eventbus.Event) {
	msg, err := decodeMessage(ev)
	if err != nil {
		return
	}

	t.mutex.Lock()
	changed := false
	switch {
	case msg.ID == t.parentID && ev.Op == eventbus.OpUpdate:
		if !msg.UpdatedAt.Before(t.parent.UpdatedAt) {
			t.parent = msg
			changed = true
		}

	case msg.ThreadID != nil && *msg.ThreadID == t.parentID:
		changed = t.applyReply(ev.Op, msg)
	}
	t.mutex.Unlock()

	if changed {
		t.signal.Notify()
	}
}

func (t *Thread) applyReply(op eventbus.Op, msg entity.Message) bool {
	i := t.find(msg.ID)
	switch op {
	case eventbus.OpInsert:
		if i >= 0 {
			return false
		}

		j := sort.Search(len(t.replies), func(j int) bool {
			return t.replies[j].CreatedAt.After(msg.CreatedAt)
		})
		t.replies = append(t.replies, entity.Message{})
		copy(t.replies[j+1:], t.replies[j:])
		t.replies[j] = msg
		return true

	case eventbus.OpUpdate:
		if i < 0 || msg.UpdatedAt.Before(t.replies[i].UpdatedAt) {
			return false
		}

		t.replies[i] = msg
		return true

	case eventbus.OpDelete:
		if i < 0 {
			return false
		}

		t.replies = append(t.replies[:i], t.replies[i+1:]...)
		return true
	}

	return false
}

func (t *Thread) find(id string) int {
	for i := range t.replies {
		if t.replies[i].ID == id {
			return i
		}
	}

	return -1
}

// Reply posts a message in the thread.
func (t *Thread) Reply(ctx context.Context, body string, mentions []string) (*entity.Message, error) {
	parentID := t.parentID
	resp, err := t.window.caller.SendMessage(ctx, &model.SendMessageRequest{
		ChannelID: t.window.channelID,
		Body:      body,
		Kind:      string(entity.MessageText),
		ThreadID:  &parentID,
		Mentions:  mentions,
	})
	if err != nil {
		return nil, err
	}

	msg := resp.Message
	t.mutex.Lock()
	changed := t.applyReply(eventbus.OpInsert, msg)
	t.mutex.Unlock()

	if changed {
		t.signal.Notify()
	}

	return &msg, nil
}

func (t *Thread) Parent() entity.Message {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.parent.Clone()
}

func (t *Thread) Replies() []entity.Message {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	result := make([]entity.Message, 0, len(t.replies))
	for _, reply := range t.replies {
		result = append(result, reply.Clone())
	}

	return result
}

func (t *Thread) Updates() <-chan struct{} {
	return t.signal.C()
}

// Close stops feeding the thread.
func (t *Thread) Close() {
	t.window.mutex.Lock()
	defer t.window.mutex.Unlock()

	if t.window.threads[t.parentID] == t {
		delete(t.window.threads, t.parentID)
	}
}
