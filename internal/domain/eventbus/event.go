package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/questx-lab/chatsync/pkg/enum"
)

type Op string

var (
	OpInsert = enum.New(Op("insert"))
	OpUpdate = enum.New(Op("update"))
	OpDelete = enum.New(Op("delete"))

	// OpBroadcast marks an ephemeral payload relayed on a topic. It never
	// carries a row.
	OpBroadcast = enum.New(Op("broadcast"))
)

// Row is a changed record as it travels on the feed.
type Row map[string]any

// NewRow converts a record into its feed representation.
func NewRow(v any) (Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var row Row
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, err
	}

	return row, nil
}

// Decode copies the row into v, matching keys with json tag names.
func (r Row) Decode(v any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           v,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return err
	}

	return decoder.Decode(map[string]any(r))
}

func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

type Event struct {
	Topic string `json:"topic"`
	Table string `json:"table"`
	Op    Op     `json:"op"`
	Row   Row    `json:"row,omitempty"`

	// Old holds the previous version of the row for updates and deletes when
	// the store provides it.
	Old Row `json:"old,omitempty"`

	Payload json.RawMessage `json:"payload,omitempty"`
}

// Filter selects the rows of a table delivered to a topic. An empty Column
// selects every row of the table.
type Filter struct {
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
}

func (f Filter) Match(table string, row Row) bool {
	if f.Table != table {
		return false
	}

	if f.Column == "" {
		return true
	}

	return row.String(f.Column) == f.Value
}

// MatchAny reports whether any filter selects the row. For deletes the old
// row is consulted too, because the new row may be reduced to its key.
func MatchAny(filters []Filter, ev Event) bool {
	for _, f := range filters {
		if f.Match(ev.Table, ev.Row) || (ev.Old != nil && f.Match(ev.Table, ev.Old)) {
			return true
		}
	}

	return false
}

type EnvelopeKind string

var (
	EnvelopeChange    = enum.New(EnvelopeKind("change"))
	EnvelopeError     = enum.New(EnvelopeKind("error"))
	EnvelopeBroadcast = enum.New(EnvelopeKind("broadcast"))
)

// Envelope is the unit received from a feed.
type Envelope struct {
	Kind    EnvelopeKind    `json:"kind"`
	Topic   string          `json:"topic"`
	Event   *Event          `json:"event,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
