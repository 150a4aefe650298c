// Package routing turns verified platform events into exactly one reply each.
package routing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soyeahso/linegpt/internal/agent"
	"github.com/soyeahso/linegpt/internal/audit"
	"github.com/soyeahso/linegpt/internal/domain"
	"github.com/soyeahso/linegpt/internal/line"
	"github.com/soyeahso/linegpt/internal/logging"
	"github.com/soyeahso/linegpt/internal/memory"
	"github.com/soyeahso/linegpt/internal/metrics"
)

// DefaultApology is sent when the agent cannot answer.
const DefaultApology = "大変申し訳ありません。エラーが発生したため、回答できません。"

var errEmptyAnswer = errors.New("agent returned an empty answer")

// Invoker answers one message given the conversation so far.
type Invoker interface {
	Invoke(ctx context.Context, window []memory.Turn, input string) agent.Result
}

// Memory is the per-session, per-day conversation window.
type Memory interface {
	Load(ctx context.Context, sessionID, partition string) ([]memory.Turn, error)
	Record(ctx context.Context, sessionID, partition, input, reply string) error
}

// Replier sends one text message back through the platform.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// LengthLimiter is implemented by repliers whose platform caps the text of a
// message, in characters.
type LengthLimiter interface {
	MaxLength() int
}

// Options shape the failure reply.
type Options struct {
	Apology            string
	IncludeErrorDetail bool // append ": " + error text to the apology
	// MaxReplyLength cuts replies to this many characters before they are
	// recorded, sent and audited. Zero takes the replier's limit, if any.
	MaxReplyLength int
}

// Deps are the collaborators of a Router. Metrics and Clock are optional.
type Deps struct {
	Agent   Invoker
	Memory  Memory
	Replier Replier
	Audit   audit.Sink
	Options Options
	Clock   func() time.Time
	Log     *logging.Logger
	Metrics *metrics.Metrics
}

// Outcome reports what happened to one event.
type Outcome struct {
	SessionID domain.SessionID
	Kind      agent.Kind
	Reply     string
	Err       error // why the apology was sent; nil unless Kind is Failed
}

// Router runs the response pipeline for inbound events.
type Router struct {
	deps Deps
	log  *logging.Logger
}

// NewRouter creates a router. Deps must carry an agent, memory, replier and
// audit sink.
func NewRouter(deps Deps) *Router {
	if deps.Options.Apology == "" {
		deps.Options.Apology = DefaultApology
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Audit == nil {
		deps.Audit = audit.Discard{}
	}
	if deps.Options.MaxReplyLength == 0 {
		if l, ok := deps.Replier.(LengthLimiter); ok {
			deps.Options.MaxReplyLength = l.MaxLength()
		}
	}
	return &Router{deps: deps, log: deps.Log.Sub("routing")}
}

// HandleEvents processes the events of one delivery sequentially, in order.
func (r *Router) HandleEvents(ctx context.Context, events []domain.InboundEvent) []Outcome {
	outcomes := make([]Outcome, 0, len(events))
	for _, ev := range events {
		outcomes = append(outcomes, r.HandleEvent(ctx, ev))
	}
	return outcomes
}

// HandleEvent answers one text event. Whatever the agent or the collaborators
// do, the user is sent exactly one reply and one audit entry is written.
func (r *Router) HandleEvent(ctx context.Context, ev domain.InboundEvent) Outcome {
	sessionID := ResolveSessionID(ev.Source)
	partition := memory.PartitionFor(r.deps.Clock())
	sid := sessionID.String()

	log := r.log.With("sessionId", sid)
	log.Info().
		Str("source", ev.Source.Kind.String()).
		Str("eventId", ev.ID).
		Bool("redelivery", ev.Redelivery).
		Msg("handling message")
	log.Debug().Str("text", ev.Text).Msg("message text")

	out := Outcome{SessionID: sessionID}

	window, err := r.deps.Memory.Load(ctx, sid, partition)
	if err != nil {
		r.collaboratorError("memory_load", err)
		out.Kind, out.Err = agent.Failed, err
	} else {
		res := r.deps.Agent.Invoke(ctx, window, ev.Text)
		if r.deps.Metrics != nil {
			r.deps.Metrics.AgentDuration.Observe(res.Duration.Seconds())
		}
		out.Kind, out.Reply, out.Err = res.Kind, res.Text, res.Err
		if res.Kind == agent.ParseSalvage {
			log.Warn().Err(res.Err).Msg("salvaged unparsed model output")
			out.Err = nil
		}
		if out.Kind != agent.Failed && strings.TrimSpace(out.Reply) == "" {
			out.Kind, out.Err = agent.Failed, errEmptyAnswer
		}
	}

	if out.Kind == agent.Failed {
		out.Reply = r.apology(out.Err)
		log.Error().Err(out.Err).Msg("agent failed, sending apology")
	}

	out.Reply = r.fit(out.Reply)

	// Memory shows what the user was sent, apology included. A store that
	// can't take the turn turns an answer into an apology.
	if err := r.deps.Memory.Record(ctx, sid, partition, ev.Text, out.Reply); err != nil {
		r.collaboratorError("memory_append", err)
		if out.Kind != agent.Failed {
			out.Kind, out.Err = agent.Failed, err
			out.Reply = r.fit(r.apology(err))
		}
	}

	if err := r.deps.Replier.Reply(ctx, ev.ReplyToken, out.Reply); err != nil {
		r.collaboratorError("reply", err)
	}

	entry := audit.Entry{UserID: ev.Source.UserID, Message: ev.Text, Response: out.Reply}
	if entry.UserID == "" {
		entry.UserID = sid
	}
	if err := r.deps.Audit.Write(ctx, entry); err != nil {
		r.collaboratorError("audit", err)
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.RepliesTotal.WithLabelValues(out.Kind.String()).Inc()
	}
	log.Info().Str("outcome", out.Kind.String()).Int("replyLength", len([]rune(out.Reply))).Msg("replied")
	return out
}

// fit cuts text to the reply limit.
func (r *Router) fit(text string) string {
	if n := r.deps.Options.MaxReplyLength; n > 0 {
		return line.Truncate(text, n)
	}
	return text
}

func (r *Router) apology(err error) string {
	if r.deps.Options.IncludeErrorDetail && err != nil {
		return r.deps.Options.Apology + ": " + err.Error()
	}
	return r.deps.Options.Apology
}

func (r *Router) collaboratorError(component string, err error) {
	ev := r.log.Error().Err(err).Str("component", component)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		ev = ev.Bool("contextDone", true)
	}
	ev.Msg("collaborator failed")
	if r.deps.Metrics != nil {
		r.deps.Metrics.CollaboratorErrors.WithLabelValues(component).Inc()
	}
}
