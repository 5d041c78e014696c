package netsync

import (
	"log"

	"github.com/spacegame/netsync/sim"
)

// TrafficLogger is a hook that logs the messages and connection events of a
// Context.
type TrafficLogger struct {
	sim.LogHookBase
}

// NewTrafficLogger returns a new TrafficLogger which will write into the
// logger. A nil logger writes into the standard logger.
func NewTrafficLogger(logger *log.Logger) *TrafficLogger {
	return &TrafficLogger{LogHookBase: sim.MakeLogHookBase(logger)}
}

// Func writes the message information into the logger.
func (h *TrafficLogger) Func(ctx sim.HookCtx) {
	info, ok := ctx.Item.(MsgInfo)
	if !ok {
		return
	}

	domain, ok := ctx.Domain.(*Context)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosConnect, HookPosDisconnect:
		h.Logger.Printf("%d,%s,%s,%s\n",
			info.Tick, domain.Name(), ctx.Pos.Name, info.Conn)
	case HookPosProtocolViolation:
		h.Logger.Printf("%d,%s,%s,%s,%q\n",
			info.Tick, domain.Name(), ctx.Pos.Name, info.Conn, info.Reason)
	default:
		h.Logger.Printf("%d,%s,%s,%s,%d,%d,%s,%d\n",
			info.Tick, domain.Name(), ctx.Pos.Name,
			info.Name, info.Kind, info.Channel, info.Dest, info.Bytes)
	}
}
