package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/throttle"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"golang.org/x/time/rate"
)

// Announcements received within this window are applied together.
const peerFlushWindow = 100 * time.Millisecond

type peer struct {
	presence entity.TypingPresence
	seenAt   time.Time
}

// Tracker aggregates the typing state of the participants of one channel and
// announces the state of the current user. Local timers decide when a state
// ends: the current user stops typing after a period of inactivity, and a
// peer is dropped when it has not announced itself for a while.
type Tracker struct {
	channelID   string
	self        model.Identity
	broadcaster Broadcaster
	limiter     *rate.Limiter

	typingTimeout   time.Duration
	presenceTimeout time.Duration

	mutex       sync.Mutex
	typing      bool
	revertTimer *time.Timer
	revertGen   uint64
	peers       map[string]peer
	sweepTimer  *time.Timer
	closed      bool
	unsubscribe func()

	inbound *throttle.Batch[string, entity.TypingPresence]
	signal  *common.Signal
}

func NewTracker(ctx context.Context, channelID string, self model.Identity, broadcaster Broadcaster) *Tracker {
	cfg := xcontext.Configs(ctx).Sync

	throttleWindow := cfg.TypingThrottle.Duration
	if throttleWindow <= 0 {
		throttleWindow = time.Second
	}

	t := &Tracker{
		channelID:       channelID,
		self:            self,
		broadcaster:     broadcaster,
		limiter:         rate.NewLimiter(rate.Every(throttleWindow), 1),
		typingTimeout:   orDefault(cfg.TypingTimeout.Duration, 3*time.Second),
		presenceTimeout: orDefault(cfg.PresenceTimeout.Duration, 3*time.Second),
		peers:           make(map[string]peer),
		signal:          common.NewSignal(),
	}

	t.inbound = throttle.NewBatch(peerFlushWindow, func(pending map[string]entity.TypingPresence) {
		t.applyPeers(pending)
	})

	return t
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}

	return d
}

// Start listens to the announcements of the other participants.
func (t *Tracker) Start(ctx context.Context) error {
	unsubscribe, err := t.broadcaster.Subscribe(ctx, t.channelID, func(payload []byte) {
		t.receive(ctx, payload)
	})
	if err != nil {
		return err
	}

	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		unsubscribe()
		return nil
	}
	t.unsubscribe = unsubscribe
	t.mutex.Unlock()

	return nil
}

func (t *Tracker) Updates() <-chan struct{} {
	return t.signal.C()
}

// StartTyping marks the current user as typing and postpones the automatic
// revert. Outbound announcements are limited to one per throttle window.
func (t *Tracker) StartTyping(ctx context.Context) {
	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return
	}

	wasTyping := t.typing
	t.typing = true
	if t.revertTimer != nil {
		t.revertTimer.Stop()
	}
	t.revertGen++
	generation := t.revertGen
	t.revertTimer = time.AfterFunc(t.typingTimeout, func() {
		t.stop(ctx, generation)
	})
	t.mutex.Unlock()

	if !wasTyping {
		t.signal.Notify()
	}

	if t.limiter.Allow() {
		t.announce(ctx, true)
	}
}

// StopTyping cancels the pending revert and announces the stop right away.
func (t *Tracker) StopTyping(ctx context.Context) {
	t.stop(ctx, 0)
}

// stop ends typing. A non-zero generation identifies a revert timer; it is
// ignored once a later keystroke has re-armed the revert.
func (t *Tracker) stop(ctx context.Context, generation uint64) {
	t.mutex.Lock()
	if generation != 0 && generation != t.revertGen {
		t.mutex.Unlock()
		return
	}

	if t.revertTimer != nil {
		t.revertTimer.Stop()
		t.revertTimer = nil
	}
	wasTyping := t.typing
	t.typing = false
	closed := t.closed
	t.mutex.Unlock()

	if !wasTyping {
		return
	}

	if generation != 0 {
		xcontext.Logger(ctx).Debugf("Typing in %s expired", t.channelID)
	}

	if !closed {
		t.signal.Notify()
	}
	t.announce(ctx, false)
}

func (t *Tracker) IsTyping() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.typing
}

func (t *Tracker) announce(ctx context.Context, isTyping bool) {
	payload, err := json.Marshal(entity.TypingPresence{
		ChannelID:   t.channelID,
		UserID:      t.self.UserID,
		DisplayName: t.self.DisplayName,
		IsTyping:    isTyping,
		Heartbeat:   time.Now(),
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot encode presence: %v", err)
		return
	}

	if err := t.broadcaster.Publish(ctx, t.channelID, payload); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to announce typing in %s: %v", t.channelID, err)
	}
}

func (t *Tracker) receive(ctx context.Context, payload []byte) {
	var p entity.TypingPresence
	if err := json.Unmarshal(payload, &p); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot decode presence: %v", err)
		return
	}

	if p.UserID == "" || p.UserID == t.self.UserID || p.ChannelID != t.channelID {
		return
	}

	t.inbound.Put(p.UserID, p)
}

func (t *Tracker) applyPeers(pending map[string]entity.TypingPresence) {
	now := time.Now()

	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return
	}

	for userID, p := range pending {
		if p.IsTyping {
			t.peers[userID] = peer{presence: p, seenAt: now}
		} else {
			delete(t.peers, userID)
		}
	}
	t.scheduleSweep(now)
	t.mutex.Unlock()

	t.signal.Notify()
}

// scheduleSweep arms the timer for the earliest peer expiry. It must be
// called with the mutex held.
func (t *Tracker) scheduleSweep(now time.Time) {
	if t.sweepTimer != nil {
		t.sweepTimer.Stop()
		t.sweepTimer = nil
	}

	if len(t.peers) == 0 {
		return
	}

	earliest := time.Time{}
	for _, p := range t.peers {
		if earliest.IsZero() || p.seenAt.Before(earliest) {
			earliest = p.seenAt
		}
	}

	t.sweepTimer = time.AfterFunc(earliest.Add(t.presenceTimeout).Sub(now), t.sweep)
}

func (t *Tracker) sweep() {
	now := time.Now()

	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return
	}

	removed := false
	for userID, p := range t.peers {
		if !now.Before(p.seenAt.Add(t.presenceTimeout)) {
			delete(t.peers, userID)
			removed = true
		}
	}
	t.scheduleSweep(now)
	t.mutex.Unlock()

	if removed {
		t.signal.Notify()
	}
}

// TypingUsers lists the other participants currently typing, ordered by
// display name.
func (t *Tracker) TypingUsers() []entity.TypingPresence {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	result := make([]entity.TypingPresence, 0, len(t.peers))
	for _, p := range t.peers {
		result = append(result, p.presence)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayName != result[j].DisplayName {
			return result[i].DisplayName < result[j].DisplayName
		}
		return result[i].UserID < result[j].UserID
	})

	return result
}

func (t *Tracker) TypingText() string {
	users := t.TypingUsers()
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.DisplayName)
	}

	return TypingText(names)
}

// Close stops every timer and the subscription. If the current user was
// typing, the stop is announced.
func (t *Tracker) Close(ctx context.Context) {
	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return
	}
	t.closed = true
	if t.sweepTimer != nil {
		t.sweepTimer.Stop()
	}
	unsubscribe := t.unsubscribe
	t.mutex.Unlock()

	// The stop is announced while still subscribed, some broadcasters only
	// relay for members of the topic.
	t.stop(ctx, 0)

	t.inbound.Stop()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// TypingText renders the names of the typing users: one name, two names
// joined by "and", or the first name followed by the count of the others.
func TypingText(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return fmt.Sprintf("%s and %s", names[0], names[1])
	}

	return fmt.Sprintf("%s and %d others", names[0], len(names)-1)
}
