package ws

// MessageHeartbeat lets a client refresh its presence record over the open
// socket instead of the HTTP endpoint. Failures are swallowed; the next
// beat or the hub's own ping-tick refresh covers the gap.
type MessageHeartbeat struct {
}

func (msg *MessageHeartbeat) GetType() string {
	return "heartbeat"
}

func (msg *MessageHeartbeat) Process(ctx *MessageContext) error {
	if ctx.Hub.presence == nil {
		return nil
	}
	return ctx.Hub.presence.Heartbeat(ctx.UserID)
}
