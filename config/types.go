// Package config loads, merges and resolves the connector's declarative
// configuration. One or more YAML documents are merged by deep union
// (mappings merged key-wise, sequences replaced, later documents override
// earlier ones), environment variables are substituted before structural
// interpretation, and invoke blocks are resolved recursively at load time.
package config

// Defaults applied during decoding.
const (
	DefaultQueueDepth      = 5
	DefaultNumInstances    = 1
	DefaultPayloadEncoding = "utf-8"
	DefaultPayloadFormat   = "json"
	DefaultRequestExpiryMS = 60000
	DefaultResponseTopic   = "reply"
	DefaultResponseQueue   = "reply-queue"
	DefaultInstanceName    = "solace_ai_connector"

	// Reserved user-property keys for broker request/reply correlation.
	DefaultReplyTopicKey    = "__solace_ai_connector_broker_request_reply_topic__"
	DefaultReplyMetadataKey = "__solace_ai_connector_broker_request_reply_metadata__"
)

// Config is the fully merged and resolved connector configuration.
type Config struct {
	InstanceName string
	Log          LogConfig
	Trace        TraceConfig
	Cache        CacheConfig
	SharedConfig []any
	Apps         []*AppConfig
}

// LogConfig controls the runtime's structured logging sinks.
type LogConfig struct {
	StdoutLogLevel string
	LogFileLevel   string
	LogFile        string
	LogFormat      string
}

// TraceConfig controls the optional message trace file.
type TraceConfig struct {
	TraceFile   string
	EnableTrace bool
}

// CacheConfig selects the cache service backend.
type CacheConfig struct {
	Backend string // "memory" (default) or "pebble"
	Path    string // pebble database directory
}

// AppConfig describes one application: either a standard app holding
// explicit flows, or a simplified app holding a broker section plus a set
// of components from which one implicit flow is synthesized.
type AppConfig struct {
	Name         string
	NumInstances int
	Config       map[string]any
	Broker       *BrokerConfig
	Flows        []*FlowConfig
	Components   []*ComponentConfig
}

// Simplified reports whether the app uses broker+components synthesis.
func (a *AppConfig) Simplified() bool {
	return a.Broker != nil
}

// FlowConfig describes an ordered chain of component groups.
type FlowConfig struct {
	Name                  string
	NumInstances          int
	TraceLevel            string
	PutErrorsInErrorQueue bool
	Components            []*ComponentConfig
}

// Selection is a component's input_selection: a single expression or a
// literal value.
type Selection struct {
	SourceExpression string
	SourceValue      any
	HasValue         bool
}

// Subscription is one topic subscription with quality of service.
type Subscription struct {
	Topic string
	QOS   int
}

// ComponentConfig is the resolved configuration of a single component.
type ComponentConfig struct {
	Name            string
	Module          string
	NumInstances    int
	QueueDepth      int
	Disabled        bool
	ComponentConfig map[string]any
	InputTransforms []map[string]any
	InputSelection  *Selection
	Subscriptions   []Subscription
}

// BrokerConfig holds the connection and behavior settings of a simplified
// app's broker section, and of broker input/output components.
type BrokerConfig struct {
	BrokerType     string
	BrokerURL      string
	BrokerUsername string
	BrokerPassword string
	BrokerVPN      string
	TrustStorePath string

	ReconnectionStrategy string // "forever_retry" (default) or "parametrized_retry"
	RetryIntervalMS      int
	RetryCount           int

	InputEnabled        bool
	OutputEnabled       bool
	RequestReplyEnabled bool

	QueueName          string
	CreateQueueOnStart bool
	PayloadEncoding    string // utf-8 | base64 | none
	PayloadFormat      string // text | json | yaml
	MaxRedeliveryCount int

	RequestExpiryMS     int
	ResponseTopicPrefix string
	ResponseTopicSuffix string
	ResponseQueuePrefix string
	ReplyTopicKey       string
	ReplyMetadataKey    string

	CopyUserProperties       bool
	PropagateAcknowledgments bool
}
