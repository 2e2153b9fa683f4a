package config

import (
	"fmt"
	"strings"

	"github.com/SolaceDev/solace-ai-connector/errors"
)

// Validate checks static invariants. Any violation is fatal: the connector
// refuses to start.
func (c *Config) Validate() error {
	if len(c.Apps) == 0 {
		return configError("no apps or flows defined in configuration")
	}
	seen := map[string]bool{}
	for _, app := range c.Apps {
		if app.Name == "" {
			return configError("app name cannot be empty")
		}
		if seen[app.Name] {
			return configError(fmt.Sprintf("duplicate app name %q", app.Name))
		}
		seen[app.Name] = true
		if err := app.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks one app's invariants.
func (a *AppConfig) Validate() error {
	if a.NumInstances < 1 {
		return configError(fmt.Sprintf("app %s: num_instances must be >= 1", a.Name))
	}

	standard := len(a.Flows) > 0
	simplified := a.Broker != nil || len(a.Components) > 0
	if standard && simplified {
		return configError(fmt.Sprintf("app %s: declare either flows or broker+components, not both", a.Name))
	}
	if !standard && !simplified {
		return configError(fmt.Sprintf("app %s: no flows or components defined", a.Name))
	}

	if simplified {
		return a.validateSimplified()
	}

	for _, flow := range a.Flows {
		if err := flow.Validate(a.Name); err != nil {
			return err
		}
	}
	return nil
}

func (a *AppConfig) validateSimplified() error {
	if a.Broker == nil {
		return configError(fmt.Sprintf("app %s: components require a broker section", a.Name))
	}
	if len(a.Components) == 0 {
		return configError(fmt.Sprintf("app %s: simplified app has no components", a.Name))
	}
	if err := a.Broker.Validate(a.Name); err != nil {
		return err
	}
	for i, comp := range a.Components {
		if err := comp.Validate(a.Name, i, false); err != nil {
			return err
		}
		if a.Broker.InputEnabled && len(comp.Subscriptions) == 0 && !comp.Disabled {
			return configError(fmt.Sprintf(
				"app %s component %s: subscriptions are required when input_enabled is true",
				a.Name, comp.Name))
		}
	}
	return nil
}

// Validate checks one flow's invariants.
func (f *FlowConfig) Validate(appName string) error {
	if f.Name == "" {
		return configError(fmt.Sprintf("app %s: flow name cannot be empty", appName))
	}
	if len(f.Components) == 0 {
		return configError(fmt.Sprintf("flow %s: components list is empty", f.Name))
	}
	for i, comp := range f.Components {
		if err := comp.Validate(f.Name, i, i == 0); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks one component's invariants. A first component may not
// select its input from the previous plane: it has no upstream.
func (cc *ComponentConfig) Validate(scope string, index int, first bool) error {
	if cc.Name == "" {
		return configError(fmt.Sprintf("%s: component_name not provided for component %d", scope, index))
	}
	if cc.Module == "" {
		return configError(fmt.Sprintf("%s component %s: component_module not provided", scope, cc.Name))
	}
	if cc.NumInstances < 1 {
		return configError(fmt.Sprintf("%s component %s: num_instances must be >= 1", scope, cc.Name))
	}
	if cc.QueueDepth < 1 {
		return configError(fmt.Sprintf("%s component %s: queue_depth must be >= 1", scope, cc.Name))
	}
	if first && cc.InputSelection != nil && !cc.InputSelection.HasValue {
		expr := cc.InputSelection.SourceExpression
		if expr == "previous" || strings.HasPrefix(expr, "previous:") {
			return configError(fmt.Sprintf(
				"%s component %s: first component cannot select input from previous",
				scope, cc.Name))
		}
	}
	return nil
}

// Validate checks the broker section's invariants.
func (b *BrokerConfig) Validate(appName string) error {
	if b.InputEnabled && b.QueueName == "" {
		return configError(fmt.Sprintf("app %s: queue_name is required when input_enabled is true", appName))
	}
	if b.RequestReplyEnabled {
		if b.RequestExpiryMS <= 0 {
			return configError(fmt.Sprintf("app %s: request_expiry_ms must be positive", appName))
		}
		if b.ResponseTopicPrefix == "" || b.ResponseQueuePrefix == "" {
			return configError(fmt.Sprintf(
				"app %s: response_topic_prefix and response_queue_prefix are required for request/reply", appName))
		}
	}
	switch b.PayloadEncoding {
	case "utf-8", "base64", "none":
	default:
		return configError(fmt.Sprintf("app %s: unknown payload_encoding %q", appName, b.PayloadEncoding))
	}
	switch b.PayloadFormat {
	case "text", "json", "yaml":
	default:
		return configError(fmt.Sprintf("app %s: unknown payload_format %q", appName, b.PayloadFormat))
	}
	return nil
}

func configError(msg string) error {
	return errors.WrapFatal(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg),
		"config", "Validate", "static invariant check")
}
