package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/logging"
)

// Linker records the delivered staff message for a request.
type Linker interface {
	AttachStaffMessage(requestID, chatID int64, messageID int) error
}

// Executor applies effects through a transport. Delivery is best effort:
// failures are logged and never reverse the state change that produced them.
type Executor struct {
	transport Transport
	linker    Linker
	logger    *zap.Logger
}

func NewExecutor(transport Transport, linker Linker, logger *zap.Logger) *Executor {
	return &Executor{transport: transport, linker: linker, logger: logger.Named("chat")}
}

// Run applies effects in order. It returns how many failed.
func (x *Executor) Run(ctx context.Context, effects []Effect) int {
	failed := 0
	for _, e := range effects {
		if err := x.apply(ctx, e); err != nil {
			failed++
			x.logger.Warn("delivery failed",
				logging.ChatID(e.ChatID),
				zap.Int("kind", int(e.Kind)),
				zap.Error(err),
			)
		}
	}
	return failed
}

func (x *Executor) apply(ctx context.Context, e Effect) error {
	switch e.Kind {
	case EffectSend:
		id, err := x.transport.Send(ctx, e)
		if err != nil {
			return err
		}
		if e.TrackRequest != 0 && x.linker != nil {
			if err := x.linker.AttachStaffMessage(e.TrackRequest, e.ChatID, id); err != nil {
				x.logger.Error("link staff message",
					logging.RequestID(e.TrackRequest),
					zap.Int("message_id", id),
					zap.Error(err),
				)
			}
		}
		return nil
	case EffectEditMarkup:
		return x.transport.EditMarkup(ctx, e)
	case EffectEditText:
		return x.transport.EditText(ctx, e)
	case EffectAnswerCallback:
		return x.transport.AnswerCallback(ctx, e)
	default:
		return nil
	}
}
