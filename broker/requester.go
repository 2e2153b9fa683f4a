package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/expression"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/messaging"
)

// chunkBuffer bounds the per-request reply channel.
const chunkBuffer = 16

// pendingRequest is the state of one outstanding request: OPEN until a
// terminal reply, expiry or cancellation completes it.
type pendingRequest struct {
	replyTopic   string
	completeExpr string
	chunks       chan component.StreamChunk
	expiry       *time.Timer

	mu        sync.Mutex
	completed bool
}

// Requester is the broker request/reply state machine. It publishes a
// request with a per-request reply topic written into a reserved user
// property, subscribes a dedicated reply queue, and correlates replies
// back to callers, in broker receive order.
type Requester struct {
	cfg    *config.BrokerConfig
	msging messaging.Messaging
	logger *slog.Logger

	queueID string

	mu          sync.Mutex
	outstanding map[string]*pendingRequest

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewRequester creates a request/reply requester over its own broker
// connection.
func NewRequester(cfg *config.BrokerConfig, logger *slog.Logger) (*Requester, error) {
	if logger == nil {
		logger = slog.Default()
	}
	msging, err := messaging.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Requester{
		cfg:         cfg,
		msging:      msging,
		logger:      logger,
		queueID:     fmt.Sprintf("%s-%s", cfg.ResponseQueuePrefix, uuid.NewString()),
		outstanding: map[string]*pendingRequest{},
	}, nil
}

// Start connects to the broker and launches the reply dispatcher.
func (r *Requester) Start(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	if r.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Requester", "Start", "state check")
	}
	if err := r.msging.Connect(ctx); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = true
	go r.dispatch(runCtx)
	return nil
}

// Stop cancels all outstanding requests with a terminal error and
// disconnects.
func (r *Requester) Stop() {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	if !r.started {
		return
	}
	r.cancel()
	<-r.done

	r.mu.Lock()
	pending := make([]*pendingRequest, 0, len(r.outstanding))
	for _, p := range r.outstanding {
		pending = append(pending, p)
	}
	r.mu.Unlock()
	for _, p := range pending {
		r.finish(p, component.StreamChunk{Err: errors.ErrRequestCancelled})
	}

	if err := r.msging.Disconnect(); err != nil {
		r.logger.Warn("Requester disconnect failed", "error", err)
	}
	r.started = false
}

// DoRequest publishes the message and blocks for a single correlated
// reply, or fails with RequestTimeout at expiry.
func (r *Requester) DoRequest(ctx context.Context, msg *message.Message) (*message.Message, error) {
	chunks, cancel, err := r.DoRequestStream(ctx, msg, "")
	if err != nil {
		return nil, err
	}
	defer cancel()

	select {
	case chunk, ok := <-chunks:
		if !ok {
			return nil, errors.WrapTransient(errors.ErrRequestCancelled, "Requester", "DoRequest", "reply wait")
		}
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		return chunk.Message, nil
	case <-ctx.Done():
		return nil, errors.WrapTransient(errors.ErrRequestCancelled, "Requester", "DoRequest", "caller cancelled")
	}
}

// DoRequestStream publishes the message and returns a channel of reply
// chunks. A chunk is last when the completion expression evaluates truthy
// against the reply (an empty expression completes on the first reply).
// The cancel function tears down the reply subscription early; after the
// last chunk or expiry the subscription is torn down automatically.
func (r *Requester) DoRequestStream(
	_ context.Context, msg *message.Message, completeExpression string,
) (<-chan component.StreamChunk, func(), error) {
	correlation := uuid.NewString()
	replyTopic := fmt.Sprintf("%s/%s", r.cfg.ResponseTopicPrefix, correlation)
	if r.cfg.ResponseTopicSuffix != "" {
		replyTopic = fmt.Sprintf("%s/%s", replyTopic, r.cfg.ResponseTopicSuffix)
	}

	if err := r.msging.Subscribe(replyTopic, r.queueID); err != nil {
		return nil, nil, errors.Wrap(err, "Requester", "DoRequestStream", "reply subscription")
	}

	p := &pendingRequest{
		replyTopic:   replyTopic,
		completeExpr: completeExpression,
		chunks:       make(chan component.StreamChunk, chunkBuffer),
	}
	r.mu.Lock()
	r.outstanding[replyTopic] = p
	r.mu.Unlock()

	expiry := time.Duration(r.cfg.RequestExpiryMS) * time.Millisecond
	p.expiry = time.AfterFunc(expiry, func() {
		r.finish(p, component.StreamChunk{Err: errors.ErrRequestTimeout})
	})

	props := map[string]any{}
	for k, v := range msg.GetUserProperties() {
		props[k] = v
	}
	props[r.cfg.ReplyTopicKey] = replyTopic
	props[r.cfg.ReplyMetadataKey] = map[string]any{"request_id": correlation}

	encoded, err := EncodePayload(msg.GetPayload(), r.cfg.PayloadEncoding, r.cfg.PayloadFormat)
	if err != nil {
		r.finish(p, component.StreamChunk{})
		return nil, nil, err
	}
	if err := r.msging.Send(msg.GetTopic(), encoded, props); err != nil {
		r.finish(p, component.StreamChunk{})
		return nil, nil, errors.Wrap(err, "Requester", "DoRequestStream", "publish")
	}

	cancel := func() {
		r.finish(p, component.StreamChunk{Err: errors.ErrRequestCancelled})
	}
	return p.chunks, cancel, nil
}

// dispatch consumes the shared reply queue and routes each reply to its
// outstanding request. Replies to completed or unknown correlations are
// dropped.
func (r *Requester) dispatch(ctx context.Context) {
	defer close(r.done)
	for {
		if ctx.Err() != nil {
			return
		}
		im, err := r.msging.Receive(ctx, r.queueID, receivePoll)
		if err != nil {
			r.logger.Warn("Reply receive failed", "error", err)
			continue
		}
		if im == nil {
			continue
		}

		r.mu.Lock()
		p := r.outstanding[im.Topic]
		r.mu.Unlock()
		if p == nil {
			r.logger.Warn("Dropping reply with unknown correlation", "topic", im.Topic)
			continue
		}

		payload, err := DecodePayload(im.Payload, r.cfg.PayloadEncoding, r.cfg.PayloadFormat)
		if err != nil {
			r.logger.Warn("Reply decode failed", "topic", im.Topic, "error", err)
			continue
		}
		reply := message.New(payload, im.Topic, im.UserProperties)

		isLast := p.completeExpr == "" ||
			expression.Truthy(expression.Evaluate(expression.NewContext(reply), p.completeExpr))

		p.mu.Lock()
		completed := p.completed
		p.mu.Unlock()
		if completed {
			continue
		}

		select {
		case p.chunks <- component.StreamChunk{Message: reply, IsLast: isLast}:
		case <-ctx.Done():
			return
		}
		if isLast {
			r.finish(p, component.StreamChunk{})
		}
	}
}

// finish completes a request exactly once: stops its expiry timer, tears
// down the reply subscription, delivers the terminal chunk (when one is
// given) and closes the channel.
func (r *Requester) finish(p *pendingRequest, terminal component.StreamChunk) {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return
	}
	p.completed = true
	p.mu.Unlock()

	if p.expiry != nil {
		p.expiry.Stop()
	}
	r.mu.Lock()
	delete(r.outstanding, p.replyTopic)
	r.mu.Unlock()
	if err := r.msging.Unsubscribe(p.replyTopic, r.queueID); err != nil {
		r.logger.Warn("Reply unsubscribe failed", "topic", p.replyTopic, "error", err)
	}
	if terminal.Err != nil {
		select {
		case p.chunks <- terminal:
		default:
		}
	}
	close(p.chunks)
}
