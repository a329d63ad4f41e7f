// Package eventbus fans a pipeline run's Event stream out over Redis
// pub/sub, so a UI process that isn't hosting the engine itself can still
// observe a run's progress. Grounded on the teacher's registry package,
// which coordinates tool-result delivery across gateway nodes via Redis
// (result_stream.go); the concern here is simpler — broadcast, not
// point-to-point delivery — so it is built directly against go-redis
// pub/sub rather than the teacher's Pulse-stream abstraction (Pulse itself
// is dropped, see DESIGN.md).
package eventbus

import (
	"context"
	"encoding/json"

	goredis "github.com/redis/go-redis/v9"

	coreerrors "stencilacore/errors"
	"stencilacore/pipeline"
)

const channelPrefix = "stencila.pipeline.events."

// wireEvent is the JSON shape published to Redis: enough to reconstruct the
// fields every Event exposes, plus a discriminator so a subscriber can
// switch on Type without needing the concrete Go type that produced it.
type wireEvent struct {
	Type    pipeline.EventType `json:"type"`
	RunID   string             `json:"run_id"`
	StageID string             `json:"stage_id,omitempty"`
	Payload json.RawMessage    `json:"payload,omitempty"`
}

// Publisher forwards events from a local channel to a Redis pub/sub channel
// scoped to one run, so any number of remote subscribers can observe it.
type Publisher struct {
	rdb *goredis.Client
}

// NewPublisher constructs a Publisher against an existing Redis client.
func NewPublisher(rdb *goredis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Forward reads events from src until it is closed or ctx is done,
// publishing each one to the run's channel. It is meant to run in its own
// goroutine, fed by the same channel passed as RunStartRequest.Events.
func (p *Publisher) Forward(ctx context.Context, runID string, src <-chan pipeline.Event) error {
	channel := channelName(runID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-src:
			if !ok {
				return nil
			}
			data, err := json.Marshal(toWireEvent(ev))
			if err != nil {
				return coreerrors.Wrap(coreerrors.KindJSON, err, "marshal pipeline event")
			}
			if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
				return coreerrors.Wrap(coreerrors.KindIO, err, "publish pipeline event")
			}
		}
	}
}

// Subscriber receives events for one run's channel from Redis.
type Subscriber struct {
	sub *goredis.PubSub
}

// Subscribe opens a subscription to runID's event channel. Callers must
// call Close when done.
func Subscribe(ctx context.Context, rdb *goredis.Client, runID string) *Subscriber {
	return &Subscriber{sub: rdb.Subscribe(ctx, channelName(runID))}
}

// Recv blocks for the next event, decoding it from its wire form. A receive
// failure, including ctx being done before a message arrives, is returned
// as an IO-kind CoreError wrapping the underlying error.
func (s *Subscriber) Recv(ctx context.Context) (*DecodedEvent, error) {
	msg, err := s.sub.ReceiveMessage(ctx)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, err, "receive pipeline event")
	}
	var we wireEvent
	if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindJSON, err, "unmarshal pipeline event")
	}
	return &DecodedEvent{Type: we.Type, RunID: we.RunID, StageID: we.StageID, Payload: we.Payload}, nil
}

// Close releases the underlying Redis subscription.
func (s *Subscriber) Close() error { return s.sub.Close() }

// DecodedEvent is what a remote subscriber observes: the event's
// discriminator and ids, with the kind-specific fields left as raw JSON
// since a subscriber typically only needs a handful of kinds (e.g.
// StageSessionEvent's streamed text) and can decode Payload itself.
type DecodedEvent struct {
	Type    pipeline.EventType
	RunID   string
	StageID string
	Payload json.RawMessage
}

func channelName(runID string) string {
	return channelPrefix + runID
}

func toWireEvent(ev pipeline.Event) wireEvent {
	payload, _ := json.Marshal(ev)
	return wireEvent{
		Type:    ev.Type(),
		RunID:   ev.RunID(),
		StageID: string(ev.StageID()),
		Payload: payload,
	}
}
