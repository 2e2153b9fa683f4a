package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolaceDev/solace-ai-connector/message"
)

func testMessage() *message.Message {
	return message.New(
		map[string]any{
			"a": 1,
			"b": []any{2, 3},
			"nested": map[string]any{
				"deep": "value",
			},
		},
		"orders/new/42",
		map[string]any{"origin": "test"},
	)
}

func TestEvaluate_InputPlanes(t *testing.T) {
	ctx := NewContext(testMessage())

	tests := []struct {
		name     string
		expr     string
		expected any
	}{
		{"payload alias", "input.payload:a", 1},
		{"input alias", "input:a", 1},
		{"nested path", "input.payload:nested.deep", "value"},
		{"sequence index", "input.payload:b.1", 3},
		{"topic", "input.topic", "orders/new/42"},
		{"topic level", "input.topic_levels:2", "42"},
		{"user properties", "input.user_properties:origin", "test"},
		{"static literal", "static:hello", "hello"},
		{"missing key", "input.payload:absent", nil},
		{"missing deep path", "input.payload:absent.also.absent", nil},
		{"index out of range", "input.payload:b.9", nil},
		{"unknown plane", "bogus:thing", nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Evaluate(ctx, test.expr))
		})
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	ctx := NewContext(testMessage())
	first := Evaluate(ctx, "input.payload:nested.deep")
	second := Evaluate(ctx, "input.payload:nested.deep")
	assert.Equal(t, first, second)
}

func TestSet_UserDataRoundTrip(t *testing.T) {
	ctx := NewContext(testMessage())

	require.NoError(t, Set(ctx, "user_data.scratch:result.items.2", "third"))
	assert.Equal(t, "third", Evaluate(ctx, "user_data.scratch:result.items.2"))

	// Intermediate containers were created on demand: a map for
	// "result", a sequence grown to index 2 for "items".
	items := Evaluate(ctx, "user_data.scratch:result.items")
	require.IsType(t, []any{}, items)
	assert.Len(t, items, 3)
	assert.Nil(t, items.([]any)[0])
}

func TestSet_PreviousPlane(t *testing.T) {
	ctx := NewContext(testMessage())
	require.NoError(t, Set(ctx, "previous:outcome", "done"))
	assert.Equal(t, "done", Evaluate(ctx, "previous:outcome"))
}

func TestSet_ReadOnlyPlanesRejected(t *testing.T) {
	ctx := NewContext(testMessage())
	assert.Error(t, Set(ctx, "input.payload:a", 2))
	assert.Error(t, Set(ctx, "input.topic", "nope"))
}

func TestEvaluate_Locals(t *testing.T) {
	ctx := NewContext(testMessage()).WithLocals(map[string]any{
		LocalItem:  map[string]any{"x": 10},
		LocalIndex: 4,
		LocalKeywordArgs: map[string]any{
			"current_value": 7,
		},
	})

	assert.Equal(t, 10, Evaluate(ctx, "item:x"))
	assert.Equal(t, 4, Evaluate(ctx, "index"))
	assert.Equal(t, 7, Evaluate(ctx, "keyword_args.current_value"))
	assert.Equal(t, 7, Evaluate(ctx, "keyword_args:current_value"))
}

func TestEvaluateTyped(t *testing.T) {
	msg := message.New(map[string]any{"n": "42", "f": "2.5", "b": "true"}, "", nil)
	ctx := NewContext(msg)

	n, err := EvaluateTyped(ctx, "input.payload:n", "int")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	f, err := EvaluateTyped(ctx, "input.payload:f", "float")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	b, err := EvaluateTyped(ctx, "input.payload:b", "bool")
	require.NoError(t, err)
	assert.Equal(t, true, b)

	s, err := EvaluateTyped(ctx, "input.payload:n", "string")
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	missing, err := EvaluateTyped(ctx, "input.payload:absent", "int")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRender_Template(t *testing.T) {
	msg := message.New(map[string]any{"a": 1, "b": []any{2, 3}}, "t/1", nil)
	ctx := NewContext(msg)

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"identity text", "{{text://input.topic}}", "t/1"},
		{"default encoding", "{{input.topic}}", "t/1"},
		{"embedded json", "X={{json://input.payload}}", `X={"a":1,"b":[2,3]}`},
		{"absent renders empty", "[{{text://input.payload:missing}}]", "[]"},
		{"surrounding text", "a {{text://input.topic}} z", "a t/1 z"},
		{"two placeholders", "{{text://input.topic}}|{{text://input.topic}}", "t/1|t/1"},
		{"base64", "{{base64://static:hi}}", "aGk="},
		{"datauri", "{{datauri:text/plain://static:hi}}", "data:text/plain;base64,aGk="},
		{"unclosed passes through", "x {{text://oops", "x {{text://oops"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Render(ctx, test.template))
		})
	}
}

func TestEvaluate_TemplatePlane(t *testing.T) {
	msg := message.New(map[string]any{"who": "world"}, "", nil)
	ctx := NewContext(msg)
	assert.Equal(t, "hello world", Evaluate(ctx, "template:hello {{text://input.payload:who}}"))
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("yes"))
	assert.True(t, Truthy(1))
	assert.True(t, Truthy([]any{1}))
}
