package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolaceDev/solace-ai-connector/expression"
	"github.com/SolaceDev/solace-ai-connector/message"
)

const minimalFlow = `
flows:
  - name: main
    components:
      - component_name: pass
        component_module: pass_through
`

func TestLoadDocuments_Minimal(t *testing.T) {
	cfg, err := LoadDocuments([]byte(minimalFlow))
	require.NoError(t, err)

	// Top-level flows become one synthetic app.
	require.Len(t, cfg.Apps, 1)
	app := cfg.Apps[0]
	assert.Equal(t, DefaultInstanceName, app.Name)
	require.Len(t, app.Flows, 1)
	require.Len(t, app.Flows[0].Components, 1)

	comp := app.Flows[0].Components[0]
	assert.Equal(t, "pass", comp.Name)
	assert.Equal(t, "pass_through", comp.Module)
	assert.Equal(t, DefaultNumInstances, comp.NumInstances)
	assert.Equal(t, DefaultQueueDepth, comp.QueueDepth)
}

func TestLoadDocuments_MergeOverrides(t *testing.T) {
	base := `
log:
  stdout_log_level: INFO
  log_file: base.log
apps:
  - name: a
    flows:
      - name: f
        components:
          - component_name: c
            component_module: pass_through
`
	override := `
log:
  stdout_log_level: DEBUG
`
	cfg, err := LoadDocuments([]byte(base), []byte(override))
	require.NoError(t, err)

	// Mappings merge key-wise: the override wins where present, the
	// base survives elsewhere.
	assert.Equal(t, "DEBUG", cfg.Log.StdoutLogLevel)
	assert.Equal(t, "base.log", cfg.Log.LogFile)
	require.Len(t, cfg.Apps, 1)
}

func TestLoadDocuments_SequencesReplaced(t *testing.T) {
	base := `
apps:
  - name: a
    flows:
      - name: f1
        components:
          - component_name: c1
            component_module: pass_through
      - name: f2
        components:
          - component_name: c2
            component_module: pass_through
`
	override := `
apps:
  - name: a
    flows:
      - name: only
        components:
          - component_name: c3
            component_module: pass_through
`
	cfg, err := LoadDocuments([]byte(base), []byte(override))
	require.NoError(t, err)
	require.Len(t, cfg.Apps, 1)
	require.Len(t, cfg.Apps[0].Flows, 1)
	assert.Equal(t, "only", cfg.Apps[0].Flows[0].Name)
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("SAI_TEST_LEVEL", "WARN")

	doc := `
log:
  stdout_log_level: ${SAI_TEST_LEVEL}
  log_file: ${SAI_TEST_UNSET_FILE, fallback.log}
` + minimalFlow
	cfg, err := LoadDocuments([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.Log.StdoutLogLevel)
	assert.Equal(t, "fallback.log", cfg.Log.LogFile)
}

func TestEnvSubstitution_MissingWithoutDefaultFails(t *testing.T) {
	doc := `
log:
  log_file: ${SAI_DEFINITELY_NOT_SET_ANYWHERE}
` + minimalFlow
	_, err := LoadDocuments([]byte(doc))
	assert.Error(t, err)
}

func TestInvokeResolution_Static(t *testing.T) {
	doc := `
flows:
  - name: main
    components:
      - component_name: pass
        component_module: pass_through
        component_config:
          computed:
            invoke:
              module: invoke_functions
              function: add
              params:
                positional: [2, 3]
`
	cfg, err := LoadDocuments([]byte(doc))
	require.NoError(t, err)

	comp := cfg.Apps[0].Flows[0].Components[0]
	assert.Equal(t, float64(5), comp.ComponentConfig["computed"])
}

func TestInvokeResolution_Deferred(t *testing.T) {
	doc := `
flows:
  - name: main
    components:
      - component_name: pass
        component_module: pass_through
        component_config:
          greeting:
            invoke:
              module: invoke_functions
              function: concat
              params:
                positional:
                  - "hello "
                  - evaluate_expression(input.payload:name)
`
	cfg, err := LoadDocuments([]byte(doc))
	require.NoError(t, err)

	val := cfg.Apps[0].Flows[0].Components[0].ComponentConfig["greeting"]
	deferred, ok := val.(*DeferredInvoke)
	require.True(t, ok, "invoke with deferred params must stay deferred, got %T", val)

	msg := message.New(map[string]any{"name": "world"}, "", nil)
	result, err := deferred.Call(expression.NewContext(msg))
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)
}

func TestDeferredExpression_TypedCapture(t *testing.T) {
	resolved, err := ResolveValues("evaluate_expression(input.payload:count, int)")
	require.NoError(t, err)
	deferred, ok := resolved.(*DeferredExpression)
	require.True(t, ok)
	assert.Equal(t, "input.payload:count", deferred.Expression)
	assert.Equal(t, "int", deferred.Type)

	msg := message.New(map[string]any{"count": "7"}, "", nil)
	val, err := deferred.Resolve(expression.NewContext(msg))
	require.NoError(t, err)
	assert.Equal(t, 7, val)
}

func TestValidation_NumInstancesZeroRejected(t *testing.T) {
	doc := `
flows:
  - name: main
    components:
      - component_name: pass
        component_module: pass_through
        num_instances: 0
`
	_, err := LoadDocuments([]byte(doc))
	assert.Error(t, err)
}

func TestValidation_FirstComponentPreviousRejected(t *testing.T) {
	doc := `
flows:
  - name: main
    components:
      - component_name: first
        component_module: pass_through
        input_selection:
          source_expression: previous
`
	_, err := LoadDocuments([]byte(doc))
	assert.Error(t, err)
}

func TestValidation_SimplifiedRequiresSubscriptions(t *testing.T) {
	doc := `
apps:
  - name: a
    broker:
      broker_type: dev
      input_enabled: true
      queue_name: q
    components:
      - name: c
        component_module: pass_through
`
	_, err := LoadDocuments([]byte(doc))
	assert.Error(t, err)
}

func TestValidation_InputRequiresQueueName(t *testing.T) {
	doc := `
apps:
  - name: a
    broker:
      broker_type: dev
      input_enabled: true
    components:
      - name: c
        component_module: pass_through
        subscriptions:
          - topic: x/>
`
	_, err := LoadDocuments([]byte(doc))
	assert.Error(t, err)
}

func TestDecodeBroker_Defaults(t *testing.T) {
	b := DecodeBroker(map[string]any{"broker_type": "dev"})
	assert.Equal(t, "utf-8", b.PayloadEncoding)
	assert.Equal(t, "json", b.PayloadFormat)
	assert.Equal(t, DefaultRequestExpiryMS, b.RequestExpiryMS)
	assert.Equal(t, DefaultResponseTopic, b.ResponseTopicPrefix)
	assert.Equal(t, DefaultResponseQueue, b.ResponseQueuePrefix)
	assert.True(t, b.CreateQueueOnStart)
	assert.True(t, b.PropagateAcknowledgments)
	assert.Equal(t, "forever_retry", b.ReconnectionStrategy)
}

func TestSimplifiedAppDecoding(t *testing.T) {
	doc := `
apps:
  - name: router_app
    num_instances: 2
    broker:
      broker_type: dev
      input_enabled: true
      output_enabled: true
      request_reply_enabled: true
      queue_name: q1
    config:
      greeting: hi
    components:
      - name: a
        component_module: pass_through
        subscriptions:
          - topic: orders/new/>
      - name: b
        component_module: pass_through
        subscriptions:
          - topic: orders/updates/>
            qos: 2
`
	cfg, err := LoadDocuments([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cfg.Apps, 1)

	app := cfg.Apps[0]
	assert.True(t, app.Simplified())
	assert.Equal(t, 2, app.NumInstances)
	assert.Equal(t, "hi", app.Config["greeting"])
	require.Len(t, app.Components, 2)
	assert.Equal(t, []Subscription{{Topic: "orders/new/>", QOS: 1}}, app.Components[0].Subscriptions)
	assert.Equal(t, 2, app.Components[1].Subscriptions[0].QOS)
}

func TestDeepMergeHelper(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1, "y": 2}, "b": 1}
	override := map[string]any{"a": map[string]any{"y": 3}}
	merged := DeepMerge(base, override)
	assert.Equal(t, 1, merged["a"].(map[string]any)["x"])
	assert.Equal(t, 3, merged["a"].(map[string]any)["y"])
	assert.Equal(t, 1, merged["b"])
}
