package chat

import "context"

// Router sends private-chat events to Private and group events to Group.
type Router struct {
	Private Handler
	Group   Handler
}

func (r Router) Handle(ctx context.Context, ev Event) []Effect {
	h := r.Group
	if ev.IsPrivate {
		h = r.Private
	}
	if h == nil {
		return nil
	}
	return h.Handle(ctx, ev)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) []Effect

func (f HandlerFunc) Handle(ctx context.Context, ev Event) []Effect {
	return f(ctx, ev)
}
