package message

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

const TableMessages = "messages"

type Snapshot struct {
	Messages []entity.Message
	Pinned   []entity.Message

	// Cursor is the creation time of the oldest fetched message.
	Cursor  *time.Time
	HasMore bool
	Loaded  bool
}

// Window holds the newest pages of top-level messages of one channel, oldest
// first. Thread replies never enter the window, they are forwarded to the
// open threads instead.
type Window struct {
	channelID string
	userID    string
	pageSize  int
	caller    client.MessageCaller

	mutex        sync.Mutex
	messages     []entity.Message
	cursor       *time.Time
	hasMore      bool
	loaded       bool
	loadingOlder bool

	// generation counts applied initial loads. An older page fetched for a
	// previous generation is discarded.
	generation int

	// While an initial load is in flight, live events are journaled and
	// replayed on top of the fetched page.
	loading int
	journal []eventbus.Event

	// replyDeleted marks parents whose reply count may legitimately drop.
	replyDeleted map[string]bool
	threads      map[string]*Thread

	signal *common.Signal
}

func NewWindow(ctx context.Context, channelID, userID string, caller client.MessageCaller) *Window {
	pageSize := xcontext.Configs(ctx).Sync.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	return &Window{
		channelID:    channelID,
		userID:       userID,
		pageSize:     pageSize,
		caller:       caller,
		replyDeleted: make(map[string]bool),
		threads:      make(map[string]*Thread),
		signal:       common.NewSignal(),
	}
}

func (w *Window) Filters() []eventbus.Filter {
	return []eventbus.Filter{{Table: TableMessages, Column: "channel_id", Value: w.channelID}}
}

// Updates receives a value whenever the snapshot may have changed.
func (w *Window) Updates() <-chan struct{} {
	return w.signal.C()
}

func (w *Window) Snapshot() Snapshot {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	s := Snapshot{
		Messages: make([]entity.Message, 0, len(w.messages)),
		HasMore:  w.hasMore,
		Loaded:   w.loaded,
	}

	if w.cursor != nil {
		cursor := *w.cursor
		s.Cursor = &cursor
	}

	for _, msg := range w.messages {
		s.Messages = append(s.Messages, msg.Clone())
		if msg.Pinned {
			s.Pinned = append(s.Pinned, msg.Clone())
		}
	}

	return s
}

// Pinned lists the pinned messages of the window, oldest first.
func (w *Window) Pinned() []entity.Message {
	return w.Snapshot().Pinned
}

// LoadInitial replaces the window by the newest page of the channel.
func (w *Window) LoadInitial(ctx context.Context) error {
	w.mutex.Lock()
	w.loading++
	w.mutex.Unlock()

	resp, err := w.caller.GetMessages(ctx, &model.GetMessagesRequest{
		ChannelID: w.channelID,
		Limit:     w.pageSize,
	})

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.loading--
	journal := w.journal
	if w.loading == 0 {
		w.journal = nil
	}

	if err != nil {
		return err
	}

	w.generation++
	w.messages = w.messages[:0]
	w.cursor = nil
	page := topLevel(resp.Messages)
	for i := len(page) - 1; i >= 0; i-- {
		w.messages = append(w.messages, page[i])
	}
	w.hasMore = len(resp.Messages) >= w.pageSize
	w.loaded = true
	w.moveCursor(resp.Messages)

	for _, ev := range journal {
		_, _ = w.apply(ev)
	}

	w.signal.Notify()
	return nil
}

// LoadOlder prepends the page strictly older than the cursor. Once a page
// shorter than the page size is returned, HasMore becomes false and further
// calls do nothing.
func (w *Window) LoadOlder(ctx context.Context) error {
	w.mutex.Lock()
	if !w.loaded || !w.hasMore || w.cursor == nil || w.loadingOlder {
		w.mutex.Unlock()
		return nil
	}

	w.loadingOlder = true
	before := *w.cursor
	generation := w.generation
	w.mutex.Unlock()

	resp, err := w.caller.GetMessages(ctx, &model.GetMessagesRequest{
		ChannelID: w.channelID,
		Before:    &before,
		Limit:     w.pageSize,
	})

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.loadingOlder = false
	if err != nil {
		return err
	}

	if generation != w.generation {
		return nil
	}

	var older []entity.Message
	page := topLevel(resp.Messages)
	for i := len(page) - 1; i >= 0; i-- {
		if w.find(page[i].ID) < 0 {
			older = append(older, page[i])
		}
	}

	w.messages = append(older, w.messages...)
	if len(resp.Messages) < w.pageSize {
		w.hasMore = false
	}
	w.moveCursor(resp.Messages)

	w.signal.Notify()
	return nil
}

func (w *Window) HandleEvent(ctx context.Context, ev eventbus.Event) {
	if ev.Table != TableMessages {
		return
	}

	w.mutex.Lock()
	if w.loading > 0 {
		w.journal = append(w.journal, ev)
	}
	changed, err := w.apply(ev)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot decode message row: %v", err)
	}
	threads := make([]*Thread, 0, len(w.threads))
	for _, t := range w.threads {
		threads = append(threads, t)
	}
	w.mutex.Unlock()

	for _, t := range threads {
		t.handle(ev)
	}

	if changed {
		w.signal.Notify()
	}
}

func (w *Window) HandleGap(ctx context.Context) {
	if err := w.LoadInitial(ctx); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to reload messages of %s: %v", w.channelID, err)
	}

	w.mutex.Lock()
	threads := make([]*Thread, 0, len(w.threads))
	for _, t := range w.threads {
		threads = append(threads, t)
	}
	w.mutex.Unlock()

	for _, t := range threads {
		if err := t.Load(ctx); err != nil {
			xcontext.Logger(ctx).Warnf("Unable to reload thread %s: %v", t.parentID, err)
		}
	}
}

// apply reconciles one change with the window. It must be called with the
// mutex held.
func (w *Window) apply(ev eventbus.Event) (bool, error) {
	msg, err := decodeMessage(ev)
	if err != nil {
		return false, err
	}

	switch ev.Op {
	case eventbus.OpInsert:
		if msg.IsReply() || w.find(msg.ID) >= 0 {
			return false, nil
		}

		return w.insert(msg), nil

	case eventbus.OpUpdate:
		if msg.IsReply() {
			return false, nil
		}

		i := w.find(msg.ID)
		if i < 0 {
			return false, nil
		}

		current := w.messages[i]
		if msg.UpdatedAt.Before(current.UpdatedAt) {
			return false, nil
		}

		if msg.ReplyCount < current.ReplyCount && !w.replyDeleted[msg.ID] {
			msg.ReplyCount = current.ReplyCount
		}
		delete(w.replyDeleted, msg.ID)

		w.messages[i] = msg
		return true, nil

	case eventbus.OpDelete:
		if msg.IsReply() {
			w.replyDeleted[*msg.ThreadID] = true
			return false, nil
		}

		i := w.find(msg.ID)
		if i < 0 {
			return false, nil
		}

		w.messages = append(w.messages[:i], w.messages[i+1:]...)
		return true, nil
	}

	return false, nil
}

func (w *Window) find(id string) int {
	for i := range w.messages {
		if w.messages[i].ID == id {
			return i
		}
	}

	return -1
}

// insert places msg by creation time. A message older than the cursor is
// left to LoadOlder while older pages remain.
func (w *Window) insert(msg entity.Message) bool {
	if w.hasMore && w.cursor != nil && msg.CreatedAt.Before(*w.cursor) {
		return false
	}

	i := sort.Search(len(w.messages), func(i int) bool {
		return w.messages[i].CreatedAt.After(msg.CreatedAt)
	})

	w.messages = append(w.messages, entity.Message{})
	copy(w.messages[i+1:], w.messages[i:])
	w.messages[i] = msg
	return true
}

// moveCursor sets the cursor to the oldest message of a fetched page. Only
// loads move the cursor, so live changes never skip a page.
func (w *Window) moveCursor(page []entity.Message) {
	for _, msg := range page {
		if w.cursor == nil || msg.CreatedAt.Before(*w.cursor) {
			oldest := msg.CreatedAt
			w.cursor = &oldest
		}
	}
}

// Send posts a top-level message. The returned message is inserted right
// away; the matching insert event is then ignored as a duplicate.
func (w *Window) Send(ctx context.Context, body string, mentions []string) (*entity.Message, error) {
	resp, err := w.caller.SendMessage(ctx, &model.SendMessageRequest{
		ChannelID: w.channelID,
		Body:      body,
		Kind:      string(entity.MessageText),
		Mentions:  mentions,
	})
	if err != nil {
		return nil, err
	}

	msg := resp.Message
	w.mutex.Lock()
	if !msg.IsReply() && w.find(msg.ID) < 0 {
		w.insert(msg)
	}
	w.mutex.Unlock()

	w.signal.Notify()
	return &msg, nil
}

// React toggles the reaction of the current user. The change is applied
// immediately and reverted to the exact previous reaction map if the store
// rejects it.
func (w *Window) React(ctx context.Context, messageID, emoji string) error {
	var before, after entity.Reactions
	err := w.mutate(messageID, func(msg *entity.Message) {
		before = msg.Reactions.Clone()
		msg.Reactions = msg.Reactions.Toggle(emoji, w.userID)
		after = msg.Reactions.Clone()
	})
	if err != nil {
		return err
	}

	_, err = w.caller.ToggleReaction(ctx, &model.ToggleReactionRequest{MessageID: messageID, Emoji: emoji})
	if err != nil {
		w.revert(ctx, "reaction", messageID, func(msg *entity.Message) bool {
			if !sameReactions(msg.Reactions, after) {
				return false
			}
			msg.Reactions = before
			return true
		})
		return err
	}

	return nil
}

// Pin toggles the pinned flag with the same optimistic policy as React.
func (w *Window) Pin(ctx context.Context, messageID string) error {
	var pinned bool
	err := w.mutate(messageID, func(msg *entity.Message) {
		msg.Pinned = !msg.Pinned
		pinned = msg.Pinned
	})
	if err != nil {
		return err
	}

	_, err = w.caller.PinMessage(ctx, &model.PinMessageRequest{MessageID: messageID, Pinned: pinned})
	if err != nil {
		w.revert(ctx, "pin", messageID, func(msg *entity.Message) bool {
			if msg.Pinned != pinned {
				return false
			}
			msg.Pinned = !pinned
			return true
		})
		return err
	}

	return nil
}

// Edit replaces the body of one of the current user's messages.
func (w *Window) Edit(ctx context.Context, messageID, body string) error {
	var previous entity.Message
	err := w.mutate(messageID, func(msg *entity.Message) {
		previous = msg.Clone()
		msg.Body = body
		msg.Edited = true
	})
	if err != nil {
		return err
	}

	_, err = w.caller.EditMessage(ctx, &model.EditMessageRequest{MessageID: messageID, Body: body})
	if err != nil {
		w.revert(ctx, "edit", messageID, func(msg *entity.Message) bool {
			if msg.Body != body {
				return false
			}
			msg.Body = previous.Body
			msg.Edited = previous.Edited
			return true
		})
		return err
	}

	return nil
}

// Delete removes a message from the window before asking the store to delete
// it. On failure the message is put back in place.
func (w *Window) Delete(ctx context.Context, messageID string) error {
	w.mutex.Lock()
	i := w.find(messageID)
	if i < 0 {
		w.mutex.Unlock()
		return errorx.New(errorx.NotFound, "Message is not loaded")
	}

	removed := w.messages[i]
	w.messages = append(w.messages[:i], w.messages[i+1:]...)
	w.mutex.Unlock()
	w.signal.Notify()

	_, err := w.caller.DeleteMessage(ctx, &model.DeleteMessageRequest{MessageID: messageID})
	if err != nil {
		w.mutex.Lock()
		if w.find(messageID) < 0 {
			w.insert(removed)
		}
		w.mutex.Unlock()

		common.PromCounters[common.OptimisticReverts].WithLabelValues("delete").Inc()
		xcontext.Logger(ctx).Warnf("Delete of message %s reverted: %v", messageID, err)
		w.signal.Notify()
		return err
	}

	return nil
}

// Message returns a copy of a loaded message.
func (w *Window) Message(id string) (entity.Message, bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	i := w.find(id)
	if i < 0 {
		return entity.Message{}, false
	}

	return w.messages[i].Clone(), true
}

func (w *Window) mutate(messageID string, fn func(msg *entity.Message)) error {
	w.mutex.Lock()
	i := w.find(messageID)
	if i < 0 {
		w.mutex.Unlock()
		return errorx.New(errorx.NotFound, "Message is not loaded")
	}

	fn(&w.messages[i])
	w.mutex.Unlock()

	w.signal.Notify()
	return nil
}

// revert restores a message after a failed mutation. restore reports whether
// the optimistic value was still in place; a newer change from the store is
// kept as is.
func (w *Window) revert(ctx context.Context, kind, messageID string, restore func(msg *entity.Message) bool) {
	w.mutex.Lock()
	reverted := false
	if i := w.find(messageID); i >= 0 {
		reverted = restore(&w.messages[i])
	}
	w.mutex.Unlock()

	if reverted {
		common.PromCounters[common.OptimisticReverts].WithLabelValues(kind).Inc()
		xcontext.Logger(ctx).Warnf("Optimistic %s on message %s reverted", kind, messageID)
		w.signal.Notify()
	}
}

func decodeMessage(ev eventbus.Event) (entity.Message, error) {
	row := ev.Row
	if ev.Op == eventbus.OpDelete && ev.Old != nil {
		row = ev.Old
	}

	var msg entity.Message
	if err := row.Decode(&msg); err != nil {
		return entity.Message{}, err
	}

	if msg.ID == "" {
		return entity.Message{}, errorx.New(errorx.BadResponse, "Message row without id")
	}

	return msg, nil
}

func topLevel(messages []entity.Message) []entity.Message {
	result := make([]entity.Message, 0, len(messages))
	for _, msg := range messages {
		if !msg.IsReply() {
			result = append(result, msg)
		}
	}

	return result
}

func sameReactions(a, b entity.Reactions) bool {
	if len(a) != len(b) {
		return false
	}

	for emoji, users := range a {
		other, ok := b[emoji]
		if !ok || len(other) != len(users) {
			return false
		}

		for i := range users {
			if users[i] != other[i] {
				return false
			}
		}
	}

	return true
}
