package datarecording

import (
	"context"
	"slices"

	"github.com/spacegame/netsync/netsync"
	"github.com/spacegame/netsync/sim"
)

// TrafficTable is the table written by TrafficRecorder.
const TrafficTable = "traffic"

// TrafficEntry is a row of the traffic table.
type TrafficEntry struct {
	Tick    uint64
	Context string
	Side    string
	Event   string
	Kind    uint16
	Name    string
	Channel uint8
	Conn    uint64
	Dest    string
	Bytes   int
	Reason  string
}

// TrafficRecorder is a hook that records the message and connection events
// of a netsync Context.
type TrafficRecorder struct {
	recorder DataRecorder
}

// NewTrafficRecorder creates the traffic table and returns a hook that fills
// it.
func NewTrafficRecorder(recorder DataRecorder) *TrafficRecorder {
	recorder.CreateTable(TrafficTable, TrafficEntry{})

	return &TrafficRecorder{recorder: recorder}
}

// Func records one event.
func (r *TrafficRecorder) Func(ctx sim.HookCtx) {
	info, ok := ctx.Item.(netsync.MsgInfo)
	if !ok {
		return
	}

	name := ""
	if domain, ok := ctx.Domain.(*netsync.Context); ok {
		name = domain.Name()
	}

	r.recorder.InsertData(TrafficTable, TrafficEntry{
		Tick:    info.Tick,
		Context: name,
		Side:    info.Side.String(),
		Event:   ctx.Pos.Name,
		Kind:    uint16(info.Kind),
		Name:    info.Name,
		Channel: uint8(info.Channel),
		Conn:    uint64(info.Conn),
		Dest:    info.Dest.String(),
		Bytes:   info.Bytes,
		Reason:  info.Reason,
	})
}

// KindStats summarizes the traffic of one message type.
type KindStats struct {
	Name      string
	Sent      int
	Dropped   int
	Received  int
	Discarded int
	Bytes     int
}

// SummarizeTraffic reads a traffic table and aggregates it per message type,
// ordered by name.
func SummarizeTraffic(
	ctx context.Context,
	reader DataReader,
) ([]KindStats, error) {
	reader.MapTable(TrafficTable, TrafficEntry{})

	rows, _, err := reader.Query(ctx, TrafficTable, QueryParams{
		Where: "Name != ''",
	})
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*KindStats)

	for _, row := range rows {
		e := row.(TrafficEntry)

		stats, found := byName[e.Name]
		if !found {
			stats = &KindStats{Name: e.Name}
			byName[e.Name] = stats
		}

		switch e.Event {
		case netsync.HookPosMsgSend.Name:
			stats.Sent++
			stats.Bytes += e.Bytes
		case netsync.HookPosMsgDropped.Name:
			stats.Dropped++
		case netsync.HookPosMsgRecvd.Name:
			stats.Received++
			stats.Bytes += e.Bytes
		case netsync.HookPosMsgDiscarded.Name:
			stats.Discarded++
		}
	}

	summary := make([]KindStats, 0, len(byName))
	for _, stats := range byName {
		summary = append(summary, *stats)
	}

	slices.SortFunc(summary, func(a, b KindStats) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})

	return summary, nil
}
