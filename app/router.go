package app

import (
	"regexp"
	"sync"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/messaging"
)

// RouterInfo is the subscription router's module metadata.
var RouterInfo = component.Info{
	ClassName: "SubscriptionRouter",
	Description: "Route each incoming message to the first component " +
		"whose subscription list matches the topic",
}

// route binds one user component's compiled subscription patterns to its
// input queue.
type route struct {
	componentName string
	patterns      []*regexp.Regexp
	target        *component.Group
}

// Router is the synthetic stage between a simplified app's broker input
// and its user components. Patterns compile at construction; on each
// message the components are walked in declared order and the message is
// delivered to the first match. At most one component receives a given
// message; an unroutable message is logged, acknowledged and dropped.
type Router struct {
	*component.Base
	mu     sync.RWMutex
	routes []route
}

// NewRouter is the subscription_router factory. Routes are bound by the
// app after flow construction.
func NewRouter(base *component.Base) (component.Invoker, error) {
	return &Router{Base: base}, nil
}

// bindRoutes compiles the subscription lists of the app's user components
// in declared order.
func (r *Router) bindRoutes(entries []routeEntry) error {
	routes := make([]route, 0, len(entries))
	for _, entry := range entries {
		patterns := make([]*regexp.Regexp, 0, len(entry.subscriptions))
		for _, sub := range entry.subscriptions {
			pattern, err := messaging.CompileSubscription(sub)
			if err != nil {
				return err
			}
			patterns = append(patterns, pattern)
		}
		routes = append(routes, route{
			componentName: entry.componentName,
			patterns:      patterns,
			target:        entry.target,
		})
	}
	r.mu.Lock()
	r.routes = routes
	r.mu.Unlock()
	return nil
}

type routeEntry struct {
	componentName string
	subscriptions []string
	target        *component.Group
}

// Invoke delivers the message to the first component whose subscription
// matches its topic. The router never duplicates a message.
func (r *Router) Invoke(msg *message.Message, _ any) (any, error) {
	topic := msg.GetTopic()

	r.mu.RLock()
	routes := r.routes
	r.mu.RUnlock()

	for _, rt := range routes {
		for _, pattern := range rt.patterns {
			if !pattern.MatchString(topic) {
				continue
			}
			ev := message.NewMessageEvent(msg)
			if err := rt.target.Enqueue(rt.target.RunContext(), ev); err != nil {
				return nil, err
			}
			return component.HandedOff, nil
		}
	}

	r.Logger().Warn("No component subscription matches topic, dropping message", "topic", topic)
	msg.CallAcknowledgements()
	return component.HandedOff, nil
}
