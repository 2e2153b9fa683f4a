package config

import (
	"fmt"

	"github.com/SolaceDev/solace-ai-connector/errors"
)

// decode converts the resolved configuration map into the typed Config.
// Component configs keep their raw maps (they may hold deferred values
// that are not representable in plain YAML types).
func decode(root map[string]any) (*Config, error) {
	cfg := &Config{
		InstanceName: GetString(root, "instance_name", DefaultInstanceName),
		SharedConfig: GetList(root, "shared_config"),
	}

	logMap := GetMap(root, "log")
	cfg.Log = LogConfig{
		StdoutLogLevel: GetString(logMap, "stdout_log_level", "INFO"),
		LogFileLevel:   GetString(logMap, "log_file_level", "INFO"),
		LogFile:        GetString(logMap, "log_file", ""),
		LogFormat:      GetString(logMap, "log_format", "json"),
	}

	traceMap := GetMap(root, "trace")
	cfg.Trace = TraceConfig{
		TraceFile:   GetString(traceMap, "trace_file", ""),
		EnableTrace: GetBool(traceMap, "enable_trace", false),
	}

	cacheMap := GetMap(root, "cache")
	cfg.Cache = CacheConfig{
		Backend: GetString(cacheMap, "backend", "memory"),
		Path:    GetString(cacheMap, "path", ""),
	}

	for i, rawApp := range GetList(root, "apps") {
		appMap, ok := rawApp.(map[string]any)
		if !ok {
			return nil, errors.WrapFatal(
				fmt.Errorf("apps[%d] is not a mapping", i),
				"config", "decode", "app shape check")
		}
		app, err := decodeApp(appMap, i)
		if err != nil {
			return nil, err
		}
		cfg.Apps = append(cfg.Apps, app)
	}

	// Backward compatibility: a top-level flows list becomes one
	// synthetic app named after the connector instance.
	if flows := GetList(root, "flows"); len(flows) > 0 {
		app, err := decodeApp(map[string]any{
			"name":  cfg.InstanceName,
			"flows": flows,
		}, len(cfg.Apps))
		if err != nil {
			return nil, err
		}
		cfg.Apps = append(cfg.Apps, app)
	}

	return cfg, nil
}

func decodeApp(appMap map[string]any, index int) (*AppConfig, error) {
	app := &AppConfig{
		Name:         GetString(appMap, "name", fmt.Sprintf("app_%d", index)),
		NumInstances: GetInt(appMap, "num_instances", DefaultNumInstances),
		Config:       GetMap(appMap, "config"),
	}

	if brokerMap := GetMap(appMap, "broker"); len(brokerMap) > 0 {
		app.Broker = DecodeBroker(brokerMap)
	}

	for i, rawFlow := range GetList(appMap, "flows") {
		flowMap, ok := rawFlow.(map[string]any)
		if !ok {
			return nil, errors.WrapFatal(
				fmt.Errorf("app %s flows[%d] is not a mapping", app.Name, i),
				"config", "decodeApp", "flow shape check")
		}
		flow, err := decodeFlow(flowMap, i)
		if err != nil {
			return nil, err
		}
		app.Flows = append(app.Flows, flow)
	}

	for i, rawComp := range GetList(appMap, "components") {
		compMap, ok := rawComp.(map[string]any)
		if !ok {
			return nil, errors.WrapFatal(
				fmt.Errorf("app %s components[%d] is not a mapping", app.Name, i),
				"config", "decodeApp", "component shape check")
		}
		comp, err := decodeComponent(compMap)
		if err != nil {
			return nil, err
		}
		app.Components = append(app.Components, comp)
	}

	return app, nil
}

func decodeFlow(flowMap map[string]any, index int) (*FlowConfig, error) {
	flow := &FlowConfig{
		Name:                  GetString(flowMap, "name", fmt.Sprintf("flow_%d", index)),
		NumInstances:          GetInt(flowMap, "num_instances", DefaultNumInstances),
		TraceLevel:            GetString(flowMap, "trace_level", ""),
		PutErrorsInErrorQueue: GetBool(flowMap, "put_errors_in_error_queue", true),
	}
	for i, rawComp := range GetList(flowMap, "components") {
		compMap, ok := rawComp.(map[string]any)
		if !ok {
			return nil, errors.WrapFatal(
				fmt.Errorf("flow %s components[%d] is not a mapping", flow.Name, i),
				"config", "decodeFlow", "component shape check")
		}
		comp, err := decodeComponent(compMap)
		if err != nil {
			return nil, err
		}
		flow.Components = append(flow.Components, comp)
	}
	return flow, nil
}

func decodeComponent(compMap map[string]any) (*ComponentConfig, error) {
	comp := &ComponentConfig{
		Name:            GetString(compMap, "component_name", GetString(compMap, "name", "")),
		Module:          GetString(compMap, "component_module", GetString(compMap, "component_class", "")),
		NumInstances:    GetInt(compMap, "num_instances", DefaultNumInstances),
		QueueDepth:      GetInt(compMap, "queue_depth", GetInt(compMap, "component_queue_max_depth", DefaultQueueDepth)),
		Disabled:        GetBool(compMap, "disabled", false),
		ComponentConfig: GetMap(compMap, "component_config"),
	}

	for _, rawTransform := range GetList(compMap, "input_transforms") {
		if tm, ok := rawTransform.(map[string]any); ok {
			comp.InputTransforms = append(comp.InputTransforms, tm)
		}
	}

	selMap := GetMap(compMap, "input_selection")
	if len(selMap) == 0 {
		selMap = GetMap(compMap, "component_input")
	}
	if len(selMap) > 0 {
		sel := &Selection{}
		if expr := GetString(selMap, "source_expression", ""); expr != "" {
			sel.SourceExpression = expr
		}
		if v, ok := selMap["source_value"]; ok {
			sel.SourceValue = v
			sel.HasValue = true
		}
		comp.InputSelection = sel
	}

	for _, rawSub := range GetList(compMap, "subscriptions") {
		subMap, ok := rawSub.(map[string]any)
		if !ok {
			continue
		}
		comp.Subscriptions = append(comp.Subscriptions, Subscription{
			Topic: GetString(subMap, "topic", ""),
			QOS:   GetInt(subMap, "qos", 1),
		})
	}

	return comp, nil
}

// DecodeBroker converts a broker section map into a typed BrokerConfig
// with defaults applied. It is exported for the broker components, which
// accept the same settings in their component_config.
func DecodeBroker(m map[string]any) *BrokerConfig {
	return &BrokerConfig{
		BrokerType:     GetString(m, "broker_type", "dev"),
		BrokerURL:      GetString(m, "broker_url", ""),
		BrokerUsername: GetString(m, "broker_username", ""),
		BrokerPassword: GetString(m, "broker_password", ""),
		BrokerVPN:      GetString(m, "broker_vpn", ""),
		TrustStorePath: GetString(m, "trust_store_path", ""),

		ReconnectionStrategy: GetString(m, "reconnection_strategy", "forever_retry"),
		RetryIntervalMS:      GetInt(m, "retry_interval", 3000),
		RetryCount:           GetInt(m, "retry_count", 10),

		InputEnabled:        GetBool(m, "input_enabled", false),
		OutputEnabled:       GetBool(m, "output_enabled", false),
		RequestReplyEnabled: GetBool(m, "request_reply_enabled", false),

		QueueName:          GetString(m, "queue_name", GetString(m, "broker_queue_name", "")),
		CreateQueueOnStart: GetBool(m, "create_queue_on_start", true),
		PayloadEncoding:    GetString(m, "payload_encoding", DefaultPayloadEncoding),
		PayloadFormat:      GetString(m, "payload_format", DefaultPayloadFormat),
		MaxRedeliveryCount: GetInt(m, "max_redelivery_count", 0),

		RequestExpiryMS:     GetInt(m, "request_expiry_ms", DefaultRequestExpiryMS),
		ResponseTopicPrefix: GetString(m, "response_topic_prefix", DefaultResponseTopic),
		ResponseTopicSuffix: GetString(m, "response_topic_suffix", ""),
		ResponseQueuePrefix: GetString(m, "response_queue_prefix", DefaultResponseQueue),
		ReplyTopicKey:       GetString(m, "user_properties_reply_topic_key", DefaultReplyTopicKey),
		ReplyMetadataKey:    GetString(m, "user_properties_reply_metadata_key", DefaultReplyMetadataKey),

		CopyUserProperties:       GetBool(m, "copy_user_properties", false),
		PropagateAcknowledgments: GetBool(m, "propagate_acknowledgements", true),
	}
}
