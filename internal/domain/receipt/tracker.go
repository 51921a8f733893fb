package receipt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"golang.org/x/exp/maps"
)

const TableReadReceipts = "read_receipts"

// Tracker keeps the reader sets of the messages displayed in one channel.
// Receipts are only fetched for the messages that were asked for.
type Tracker struct {
	channelID string
	self      model.Identity
	caller    client.ReceiptCaller

	mutex   sync.Mutex
	readers map[string][]entity.ReadReceipt
	loaded  map[string]bool
	signal  *common.Signal
}

func NewTracker(channelID string, self model.Identity, caller client.ReceiptCaller) *Tracker {
	return &Tracker{
		channelID: channelID,
		self:      self,
		caller:    caller,
		readers:   make(map[string][]entity.ReadReceipt),
		loaded:    make(map[string]bool),
		signal:    common.NewSignal(),
	}
}

func (t *Tracker) Filters() []eventbus.Filter {
	return []eventbus.Filter{{Table: TableReadReceipts, Column: "channel_id", Value: t.channelID}}
}

func (t *Tracker) Updates() <-chan struct{} {
	return t.signal.C()
}

// LoadVisible fetches the receipts of the given messages which are not
// loaded yet.
func (t *Tracker) LoadVisible(ctx context.Context, messageIDs []string) error {
	t.mutex.Lock()
	missing := []string{}
	seen := map[string]bool{}
	for _, id := range messageIDs {
		if id == "" || t.loaded[id] || seen[id] {
			continue
		}
		seen[id] = true
		missing = append(missing, id)
	}
	t.mutex.Unlock()

	if len(missing) == 0 {
		return nil
	}

	resp, err := t.caller.GetReceipts(ctx, &model.GetReceiptsRequest{MessageIDs: missing})
	if err != nil {
		return err
	}

	t.mutex.Lock()
	for _, id := range missing {
		t.loaded[id] = true
	}
	for _, receipt := range resp.Receipts {
		t.add(receipt)
	}
	t.mutex.Unlock()

	t.signal.Notify()
	return nil
}

func (t *Tracker) HandleEvent(ctx context.Context, ev eventbus.Event) {
	if ev.Table != TableReadReceipts {
		return
	}

	row := ev.Row
	if ev.Op == eventbus.OpDelete && ev.Old != nil {
		row = ev.Old
	}

	var receipt entity.ReadReceipt
	if err := row.Decode(&receipt); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot decode receipt row: %v", err)
		return
	}

	t.mutex.Lock()
	changed := false
	if ev.Op == eventbus.OpDelete {
		changed = t.remove(receipt)
	} else {
		changed = t.add(receipt)
	}
	t.mutex.Unlock()

	if changed {
		t.signal.Notify()
	}
}

// HandleGap refetches the receipts of every loaded message.
func (t *Tracker) HandleGap(ctx context.Context) {
	t.mutex.Lock()
	ids := maps.Keys(t.loaded)
	t.loaded = make(map[string]bool)
	t.readers = make(map[string][]entity.ReadReceipt)
	t.mutex.Unlock()

	if err := t.LoadVisible(ctx, ids); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to reload receipts of %s: %v", t.channelID, err)
	}
}

// add inserts receipt unless its reader is already recorded for the message.
// It must be called with the mutex held.
func (t *Tracker) add(receipt entity.ReadReceipt) bool {
	if receipt.MessageID == "" || receipt.ReaderID == "" {
		return false
	}

	readers := t.readers[receipt.MessageID]
	for _, r := range readers {
		if r.ReaderID == receipt.ReaderID {
			return false
		}
	}

	i := sort.Search(len(readers), func(i int) bool {
		return readers[i].ReadAt.After(receipt.ReadAt)
	})
	readers = append(readers, entity.ReadReceipt{})
	copy(readers[i+1:], readers[i:])
	readers[i] = receipt
	t.readers[receipt.MessageID] = readers
	return true
}

func (t *Tracker) remove(receipt entity.ReadReceipt) bool {
	readers := t.readers[receipt.MessageID]
	for i, r := range readers {
		if r.ReaderID == receipt.ReaderID {
			t.readers[receipt.MessageID] = append(readers[:i:i], readers[i+1:]...)
			return true
		}
	}

	return false
}

func (t *Tracker) MarkAsRead(ctx context.Context, messageID string) error {
	return t.MarkMultipleAsRead(ctx, []string{messageID})
}

// MarkMultipleAsRead records the current user as a reader of the messages
// not read yet.
func (t *Tracker) MarkMultipleAsRead(ctx context.Context, messageIDs []string) error {
	t.mutex.Lock()
	unread := []string{}
	for _, id := range messageIDs {
		if !t.hasReader(id, t.self.UserID) {
			unread = append(unread, id)
		}
	}
	t.mutex.Unlock()

	if len(unread) == 0 {
		return nil
	}

	_, err := t.caller.MarkMessagesRead(ctx, &model.MarkMessagesReadRequest{
		ChannelID:  t.channelID,
		MessageIDs: unread,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	t.mutex.Lock()
	for _, id := range unread {
		t.add(entity.ReadReceipt{
			MessageID:  id,
			ReaderID:   t.self.UserID,
			ReaderName: t.self.DisplayName,
			ChannelID:  t.channelID,
			ReadAt:     now,
		})
	}
	t.mutex.Unlock()

	t.signal.Notify()
	return nil
}

func (t *Tracker) hasReader(messageID, readerID string) bool {
	for _, r := range t.readers[messageID] {
		if r.ReaderID == readerID {
			return true
		}
	}

	return false
}

// Readers returns the readers of a message, earliest first.
func (t *Tracker) Readers(messageID string) []entity.ReadReceipt {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return append([]entity.ReadReceipt{}, t.readers[messageID]...)
}

// ReadStatusText describes who read a message, leaving out its sender. It
// returns false when nobody else read it.
func (t *Tracker) ReadStatusText(messageID, senderID string) (string, bool) {
	names := []string{}
	for _, r := range t.Readers(messageID) {
		if r.ReaderID == senderID {
			continue
		}

		name := r.ReaderName
		if name == "" {
			name = r.ReaderID
		}
		names = append(names, name)
	}

	switch len(names) {
	case 0:
		return "", false
	case 1:
		return fmt.Sprintf("Read by %s", names[0]), true
	case 2:
		return fmt.Sprintf("Read by %s and %s", names[0], names[1]), true
	}

	return fmt.Sprintf("Read by %s and %d others", names[0], len(names)-1), true
}
