package unread

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/throttle"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"golang.org/x/exp/maps"
)

const TableUnreadStatus = "unread_status"

type Summary struct {
	Channels map[string]entity.UnreadStatus
	Total    int

	// Version increases by one on every recomputation.
	Version int
}

type pendingRow struct {
	status  entity.UnreadStatus
	deleted bool
}

// Ledger caches the unread counters of one user. Change rows are coalesced
// per channel and applied together on a trailing-edge throttle.
type Ledger struct {
	userID string
	caller client.UnreadCaller

	mutex    sync.Mutex
	statuses map[string]entity.UnreadStatus
	total    int
	version  int

	// readMarks holds, per channel marked as read locally, the last_read_at
	// known before the mark. Rows not newer than it predate the mark.
	readMarks map[string]time.Time

	batch  *throttle.Batch[string, pendingRow]
	signal *common.Signal
}

func NewLedger(ctx context.Context, userID string, caller client.UnreadCaller) *Ledger {
	window := xcontext.Configs(ctx).Sync.UnreadThrottle.Duration
	if window <= 0 {
		window = 150 * time.Millisecond
	}

	l := &Ledger{
		userID:    userID,
		caller:    caller,
		statuses:  make(map[string]entity.UnreadStatus),
		readMarks: make(map[string]time.Time),
		signal:    common.NewSignal(),
	}

	l.batch = throttle.NewBatch(window, func(pending map[string]pendingRow) {
		l.flush(ctx, pending)
	})

	return l
}

func (l *Ledger) Filters() []eventbus.Filter {
	return []eventbus.Filter{{Table: TableUnreadStatus, Column: "user_id", Value: l.userID}}
}

func (l *Ledger) Updates() <-chan struct{} {
	return l.signal.C()
}

// Reload replaces every counter with the state of the store.
func (l *Ledger) Reload(ctx context.Context) error {
	resp, err := l.caller.GetUnread(ctx, &model.GetUnreadRequest{})
	if err != nil {
		return err
	}

	l.mutex.Lock()
	l.statuses = make(map[string]entity.UnreadStatus, len(resp.Statuses))
	for _, status := range resp.Statuses {
		if status.UserID == "" || status.UserID == l.userID {
			l.statuses[status.ChannelID] = status
		}
	}
	l.readMarks = make(map[string]time.Time)
	l.recompute()
	l.mutex.Unlock()

	l.signal.Notify()
	return nil
}

func (l *Ledger) HandleEvent(ctx context.Context, ev eventbus.Event) {
	if ev.Table != TableUnreadStatus {
		return
	}

	row := ev.Row
	if ev.Op == eventbus.OpDelete && ev.Old != nil {
		row = ev.Old
	}

	var status entity.UnreadStatus
	if err := row.Decode(&status); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot decode unread row: %v", err)
		return
	}

	if status.ChannelID == "" || status.UserID != l.userID {
		return
	}

	l.batch.Put(status.ChannelID, pendingRow{status: status, deleted: ev.Op == eventbus.OpDelete})
}

func (l *Ledger) HandleGap(ctx context.Context) {
	if err := l.Reload(ctx); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to reload unread state: %v", err)
	}
}

func (l *Ledger) flush(ctx context.Context, pending map[string]pendingRow) {
	l.mutex.Lock()
	for channelID, p := range pending {
		if p.deleted {
			delete(l.statuses, channelID)
			delete(l.readMarks, channelID)
			continue
		}

		l.apply(p.status)
	}
	l.recompute()
	l.mutex.Unlock()

	common.PromCounters[common.UnreadFlushes].WithLabelValues().Inc()
	xcontext.Logger(ctx).Debugf("Flushed %d unread rows", len(pending))
	l.signal.Notify()
}

// apply must be called with the mutex held.
func (l *Ledger) apply(status entity.UnreadStatus) {
	if mark, ok := l.readMarks[status.ChannelID]; ok {
		if !status.LastReadAt.After(mark) {
			return
		}
		delete(l.readMarks, status.ChannelID)
		l.statuses[status.ChannelID] = status
		return
	}

	current, ok := l.statuses[status.ChannelID]
	switch {
	case !ok, status.LastReadAt.After(current.LastReadAt):
		l.statuses[status.ChannelID] = status
	case status.LastReadAt.Equal(current.LastReadAt) && status.Count >= current.Count:
		l.statuses[status.ChannelID] = status
	}
}

// recompute must be called with the mutex held.
func (l *Ledger) recompute() {
	total := 0
	for _, status := range l.statuses {
		total += status.Count
	}

	l.total = total
	l.version++
}

// MarkChannelRead zeroes the counter of channelID right away. If the store
// rejects the mark, the whole ledger is reloaded.
func (l *Ledger) MarkChannelRead(ctx context.Context, channelID string) error {
	l.mutex.Lock()
	status, ok := l.statuses[channelID]
	if !ok {
		status = entity.UnreadStatus{UserID: l.userID, ChannelID: channelID}
	}
	l.readMarks[channelID] = status.LastReadAt
	status.Count = 0
	status.HasMentions = false
	l.statuses[channelID] = status
	l.recompute()
	l.mutex.Unlock()
	l.signal.Notify()

	_, err := l.caller.MarkChannelRead(ctx, &model.MarkChannelReadRequest{ChannelID: channelID})
	if err != nil {
		xcontext.Logger(ctx).Warnf("Unable to mark %s as read, reloading: %v", channelID, err)
		if reloadErr := l.Reload(ctx); reloadErr != nil {
			xcontext.Logger(ctx).Warnf("Unable to reload unread state: %v", reloadErr)
		}
		return err
	}

	return nil
}

func (l *Ledger) Status(channelID string) entity.UnreadStatus {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	status, ok := l.statuses[channelID]
	if !ok {
		return entity.UnreadStatus{UserID: l.userID, ChannelID: channelID}
	}

	return status
}

func (l *Ledger) Total() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.total
}

func (l *Ledger) Summary() Summary {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return Summary{
		Channels: maps.Clone(l.statuses),
		Total:    l.total,
		Version:  l.version,
	}
}

// Close cancels the pending flush.
func (l *Ledger) Close() {
	l.batch.Stop()
}

// Badge renders a counter the way the channel list shows it.
func Badge(count int) string {
	switch {
	case count <= 0:
		return ""
	case count > 99:
		return "99+"
	}

	return strconv.Itoa(count)
}
