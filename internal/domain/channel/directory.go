package channel

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/enum"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

const (
	TableChannels = "channels"

	maxNameLength = 80
)

type Caller interface {
	client.ChannelCaller
	AddMember(ctx context.Context, req *model.AddMemberRequest) (*model.AddMemberResponse, error)
}

// Directory caches the channels visible to the current user, archived ones
// included.
type Directory struct {
	self   model.Identity
	caller Caller

	mutex    sync.Mutex
	channels map[string]entity.Channel
	signal   *common.Signal
}

func NewDirectory(self model.Identity, caller Caller) *Directory {
	return &Directory{
		self:     self,
		caller:   caller,
		channels: make(map[string]entity.Channel),
		signal:   common.NewSignal(),
	}
}

func (d *Directory) Filters() []eventbus.Filter {
	return []eventbus.Filter{{Table: TableChannels}}
}

func (d *Directory) Updates() <-chan struct{} {
	return d.signal.C()
}

func (d *Directory) Load(ctx context.Context) error {
	resp, err := d.caller.GetChannels(ctx, &model.GetChannelsRequest{IncludeArchived: true})
	if err != nil {
		return err
	}

	channels := make(map[string]entity.Channel, len(resp.Channels))
	for _, c := range resp.Channels {
		if c.IsMember(d.self.UserID) {
			channels[c.ID] = c
		}
	}

	d.mutex.Lock()
	d.channels = channels
	d.mutex.Unlock()

	d.signal.Notify()
	return nil
}

func (d *Directory) HandleEvent(ctx context.Context, ev eventbus.Event) {
	if ev.Table != TableChannels {
		return
	}

	row := ev.Row
	if ev.Op == eventbus.OpDelete && ev.Old != nil {
		row = ev.Old
	}

	var c entity.Channel
	if err := row.Decode(&c); err != nil || c.ID == "" {
		xcontext.Logger(ctx).Errorf("Cannot decode channel row: %v", err)
		return
	}

	d.mutex.Lock()
	changed := d.apply(ev.Op, c)
	d.mutex.Unlock()

	if changed {
		d.signal.Notify()
	}
}

func (d *Directory) HandleGap(ctx context.Context) {
	if err := d.Load(ctx); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to reload channels: %v", err)
	}
}

func (d *Directory) apply(op eventbus.Op, c entity.Channel) bool {
	current, exists := d.channels[c.ID]

	switch {
	case op == eventbus.OpDelete:
		delete(d.channels, c.ID)
		return exists
	case !c.IsMember(d.self.UserID):
		// The user has left or was removed from the channel.
		delete(d.channels, c.ID)
		return exists
	case exists && c.UpdatedAt.Before(current.UpdatedAt):
		return false
	}

	d.channels[c.ID] = c
	return true
}

func (d *Directory) Get(id string) (entity.Channel, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	c, ok := d.channels[id]
	return c, ok
}

// Channels returns the active channels, most recently active first.
func (d *Directory) Channels() []entity.Channel {
	return d.list(false)
}

func (d *Directory) Archived() []entity.Channel {
	return d.list(true)
}

func (d *Directory) list(archived bool) []entity.Channel {
	d.mutex.Lock()
	result := []entity.Channel{}
	for _, c := range d.channels {
		if c.Archived == archived {
			result = append(result, c)
		}
	}
	d.mutex.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastActivityAt.Equal(result[j].LastActivityAt) {
			return result[i].LastActivityAt.After(result[j].LastActivityAt)
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// Touch moves a channel up the list when one of its messages arrives.
func (d *Directory) Touch(msg entity.Message) {
	d.mutex.Lock()
	c, ok := d.channels[msg.ChannelID]
	if !ok || !msg.CreatedAt.After(c.LastActivityAt) {
		d.mutex.Unlock()
		return
	}
	c.LastActivityAt = msg.CreatedAt
	d.channels[c.ID] = c
	d.mutex.Unlock()

	d.signal.Notify()
}

func (d *Directory) Create(
	ctx context.Context, name string, kind entity.ChannelKind, description string, members []string,
) (entity.Channel, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return entity.Channel{}, err
	}

	if _, err := enum.ToEnum[entity.ChannelKind](string(kind)); err != nil || kind == entity.ChannelDirect {
		return entity.Channel{}, errorx.New(errorx.BadRequest, "Invalid channel kind %s", kind)
	}

	resp, err := d.caller.CreateChannel(ctx, &model.CreateChannelRequest{
		Name:        name,
		Kind:        string(kind),
		Description: description,
		Members:     members,
	})
	if err != nil {
		return entity.Channel{}, err
	}

	d.upsert(resp.Channel)
	return resp.Channel, nil
}

// CreateDirect opens the direct channel with peer, reusing the cached one if
// it exists.
func (d *Directory) CreateDirect(ctx context.Context, peer model.Identity) (entity.Channel, error) {
	if peer.UserID == "" || peer.UserID == d.self.UserID {
		return entity.Channel{}, errorx.New(errorx.BadRequest, "Invalid direct message recipient")
	}

	d.mutex.Lock()
	for _, c := range d.channels {
		if c.Kind == entity.ChannelDirect && len(c.Members) == 2 && c.IsMember(peer.UserID) {
			d.mutex.Unlock()
			return c, nil
		}
	}
	d.mutex.Unlock()

	resp, err := d.caller.CreateDirectChannel(ctx, &model.CreateDirectChannelRequest{
		UserID:      peer.UserID,
		DisplayName: peer.DisplayName,
	})
	if err != nil {
		return entity.Channel{}, err
	}

	d.upsert(resp.Channel)
	return resp.Channel, nil
}

func (d *Directory) Update(ctx context.Context, id, name, description string) error {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}

	_, err := d.caller.UpdateChannel(ctx, &model.UpdateChannelRequest{
		ChannelID:   id,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return err
	}

	d.modify(id, func(c *entity.Channel) {
		c.Name = name
		c.Description = description
	})
	return nil
}

// Archive soft-removes a channel from the active list, or restores it.
func (d *Directory) Archive(ctx context.Context, id string, archived bool) error {
	_, err := d.caller.ArchiveChannel(ctx, &model.ArchiveChannelRequest{ChannelID: id, Archived: archived})
	if err != nil {
		return err
	}

	d.modify(id, func(c *entity.Channel) { c.Archived = archived })
	return nil
}

func (d *Directory) Delete(ctx context.Context, id string) error {
	if _, err := d.caller.DeleteChannel(ctx, &model.DeleteChannelRequest{ChannelID: id}); err != nil {
		return err
	}

	d.mutex.Lock()
	delete(d.channels, id)
	d.mutex.Unlock()

	d.signal.Notify()
	return nil
}

func (d *Directory) AddMember(ctx context.Context, id string, user model.Identity) error {
	c, ok := d.Get(id)
	if !ok {
		return errorx.New(errorx.NotFound, "Not found channel")
	}

	if c.Kind == entity.ChannelDirect {
		return errorx.New(errorx.BadRequest, "Cannot add members to a direct message")
	}

	_, err := d.caller.AddMember(ctx, &model.AddMemberRequest{
		ChannelID:   id,
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
	})
	if err != nil {
		return err
	}

	if c.Kind != entity.ChannelPublic {
		d.modify(id, func(c *entity.Channel) {
			if !c.IsMember(user.UserID) {
				c.Members = append(c.Members.Clone(), user.UserID)
			}
		})
	}

	return nil
}

func (d *Directory) upsert(c entity.Channel) {
	d.mutex.Lock()
	d.channels[c.ID] = c
	d.mutex.Unlock()

	d.signal.Notify()
}

func (d *Directory) modify(id string, fn func(c *entity.Channel)) {
	d.mutex.Lock()
	c, ok := d.channels[id]
	if ok {
		fn(&c)
		d.channels[id] = c
	}
	d.mutex.Unlock()

	if ok {
		d.signal.Notify()
	}
}

func validateName(name string) error {
	if name == "" {
		return errorx.New(errorx.BadRequest, "Channel name is required")
	}

	if len([]rune(name)) > maxNameLength {
		return errorx.New(errorx.BadRequest, "Channel name must be at most %d characters", maxNameLength)
	}

	return nil
}
