// Package componentregistry wires all built-in component modules into a
// component registry. The connector calls RegisterAll once at startup;
// code-defined apps may register additional modules on the same registry
// before the connector starts.
package componentregistry

import (
	"github.com/SolaceDev/solace-ai-connector/app"
	"github.com/SolaceDev/solace-ai-connector/broker"
	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/input/errorinput"
	"github.com/SolaceDev/solace-ai-connector/input/stdin"
	"github.com/SolaceDev/solace-ai-connector/output/file"
	"github.com/SolaceDev/solace-ai-connector/output/stdout"
	"github.com/SolaceDev/solace-ai-connector/processor/aggregate"
	"github.com/SolaceDev/solace-ai-connector/processor/delay"
	"github.com/SolaceDev/solace-ai-connector/processor/iterate"
	"github.com/SolaceDev/solace-ai-connector/processor/passthrough"
)

// RegisterAll registers every built-in component module by its
// component_module name.
func RegisterAll(registry *component.Registry) error {
	registrations := []*component.Registration{
		{Name: "broker_input", Info: broker.InputInfo, Factory: broker.NewInput},
		{Name: "broker_output", Info: broker.OutputInfo, Factory: broker.NewOutput},
		{Name: "subscription_router", Info: app.RouterInfo, Factory: app.NewRouter},
		{Name: "stdin_input", Info: stdin.Info, Factory: stdin.New},
		{Name: "error_input", Info: errorinput.Info, Factory: errorinput.New},
		{Name: "stdout_output", Info: stdout.Info, Factory: stdout.New},
		{Name: "file_output", Info: file.Info, Factory: file.New},
		{Name: "pass_through", Info: passthrough.Info, Factory: passthrough.New},
		{Name: "iterate", Info: iterate.Info, Factory: iterate.New},
		{Name: "aggregate", Info: aggregate.Info, Factory: aggregate.New},
		{Name: "delay", Info: delay.Info, Factory: delay.New},
	}
	for _, reg := range registrations {
		if err := registry.Register(reg); err != nil {
			return errors.Wrap(err, "componentregistry", "RegisterAll", "module registration")
		}
	}
	return nil
}

// NewRegistry creates a registry with all built-in modules registered.
func NewRegistry() (*component.Registry, error) {
	registry := component.NewRegistry()
	if err := RegisterAll(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
