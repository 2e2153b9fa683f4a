package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/expression"
	"github.com/SolaceDev/solace-ai-connector/message"
)

func apply(t *testing.T, msg *message.Message, raw []map[string]any) *expression.Context {
	t.Helper()
	set, err := NewSet(raw)
	require.NoError(t, err)
	ctx := expression.NewContext(msg)
	require.NoError(t, set.Apply(ctx))
	return ctx
}

func TestEmptySetIsIdentity(t *testing.T) {
	msg := message.New(map[string]any{"a": 1}, "t", nil)
	msg.SetPrevious("prior")
	apply(t, msg, nil)

	assert.Equal(t, map[string]any{"a": 1}, msg.GetPayload())
	assert.Equal(t, "prior", msg.GetPrevious())
	assert.Empty(t, msg.GetUserData())
}

func TestCopy(t *testing.T) {
	msg := message.New(map[string]any{"text": "hello"}, "t", nil)
	ctx := apply(t, msg, []map[string]any{
		{
			"type":              "copy",
			"source_expression": "input.payload:text",
			"dest_expression":   "user_data.out:copied",
		},
		{
			"type":            "copy",
			"source_value":    42,
			"dest_expression": "user_data.out:constant",
		},
	})

	assert.Equal(t, "hello", expression.Evaluate(ctx, "user_data.out:copied"))
	assert.Equal(t, 42, expression.Evaluate(ctx, "user_data.out:constant"))
}

func TestCopyChainEquivalence(t *testing.T) {
	// copy S->D then D->D' must equal a single copy S->D'.
	chained := message.New(map[string]any{"v": "x"}, "", nil)
	ctxChained := apply(t, chained, []map[string]any{
		{"type": "copy", "source_expression": "input.payload:v", "dest_expression": "user_data.d:val"},
		{"type": "copy", "source_expression": "user_data.d:val", "dest_expression": "user_data.d2:val"},
	})

	direct := message.New(map[string]any{"v": "x"}, "", nil)
	ctxDirect := apply(t, direct, []map[string]any{
		{"type": "copy", "source_expression": "input.payload:v", "dest_expression": "user_data.d2:val"},
	})

	assert.Equal(t,
		expression.Evaluate(ctxDirect, "user_data.d2:val"),
		expression.Evaluate(ctxChained, "user_data.d2:val"))
}

func TestCopyRequiresExactlyOneSource(t *testing.T) {
	_, err := NewSet([]map[string]any{
		{"type": "copy", "dest_expression": "user_data.x"},
	})
	assert.Error(t, err)

	_, err = NewSet([]map[string]any{
		{
			"type":              "copy",
			"source_expression": "previous",
			"source_value":      1,
			"dest_expression":   "user_data.x",
		},
	})
	assert.Error(t, err)
}

func TestAppend(t *testing.T) {
	msg := message.New(map[string]any{"v": "second"}, "", nil)
	ctx := apply(t, msg, []map[string]any{
		{"type": "append", "source_value": "first", "dest_expression": "user_data.list:items"},
		{"type": "append", "source_expression": "input.payload:v", "dest_expression": "user_data.list:items"},
	})

	assert.Equal(t, []any{"first", "second"}, expression.Evaluate(ctx, "user_data.list:items"))
}

func TestMap(t *testing.T) {
	msg := message.New(map[string]any{
		"rows": []any{
			map[string]any{"n": 1},
			map[string]any{"n": 2},
		},
	}, "", nil)
	ctx := apply(t, msg, []map[string]any{
		{
			"type":                   "map",
			"source_list_expression": "input.payload:rows",
			"source_expression":      "item:n",
			"dest_list_expression":   "user_data.out:ns",
		},
	})

	assert.Equal(t, []any{1, 2}, expression.Evaluate(ctx, "user_data.out:ns"))
}

func TestMapWithProcessingFunction(t *testing.T) {
	msg := message.New(map[string]any{"words": []any{"a", "b"}}, "", nil)
	ctx := apply(t, msg, []map[string]any{
		{
			"type":                   "map",
			"source_list_expression": "input.payload:words",
			"processing_function": &config.DeferredInvoke{
				Module:   "invoke_functions",
				Function: "uppercase",
				Positional: []any{
					&config.DeferredExpression{Expression: "item"},
				},
			},
			"dest_list_expression": "user_data.out:upper",
		},
	})

	assert.Equal(t, []any{"A", "B"}, expression.Evaluate(ctx, "user_data.out:upper"))
}

func TestReduce(t *testing.T) {
	msg := message.New(map[string]any{"ns": []any{1, 2, 3}}, "", nil)
	ctx := apply(t, msg, []map[string]any{
		{
			"type":                   "reduce",
			"source_list_expression": "input.payload:ns",
			"initial_value":          0,
			"accumulator_function": &config.DeferredInvoke{
				Module:   "invoke_functions",
				Function: "add",
				Positional: []any{
					&config.DeferredExpression{Expression: "keyword_args:accumulated_value"},
					&config.DeferredExpression{Expression: "keyword_args:current_value"},
				},
			},
			"dest_expression": "user_data.out:sum",
		},
	})

	assert.Equal(t, float64(6), expression.Evaluate(ctx, "user_data.out:sum"))
}

func TestReduceEmptyListReturnsInitialValue(t *testing.T) {
	msg := message.New(map[string]any{"ns": []any{}}, "", nil)
	ctx := apply(t, msg, []map[string]any{
		{
			"type":                   "reduce",
			"source_list_expression": "input.payload:ns",
			"initial_value":          "seed",
			"accumulator_function": &config.DeferredInvoke{
				Module:     "invoke_functions",
				Function:   "concat",
				Positional: []any{&config.DeferredExpression{Expression: "keyword_args:current_value"}},
			},
			"dest_expression": "user_data.out:acc",
		},
	})

	assert.Equal(t, "seed", expression.Evaluate(ctx, "user_data.out:acc"))
}

func TestFilter(t *testing.T) {
	msg := message.New(map[string]any{"words": []any{"keep", "drop", "keep"}}, "", nil)
	ctx := apply(t, msg, []map[string]any{
		{
			"type":                   "filter",
			"source_list_expression": "input.payload:words",
			"filter_function": &config.DeferredInvoke{
				Module:   "invoke_functions",
				Function: "equal",
				Positional: []any{
					&config.DeferredExpression{Expression: "keyword_args:current_value"},
					"keep",
				},
			},
			"dest_list_expression": "user_data.out:kept",
		},
	})

	assert.Equal(t, []any{"keep", "keep"}, expression.Evaluate(ctx, "user_data.out:kept"))
}

func TestListOperatorsTreatMissingSourceAsEmpty(t *testing.T) {
	msg := message.New(map[string]any{}, "", nil)
	ctx := apply(t, msg, []map[string]any{
		{
			"type":                   "map",
			"source_list_expression": "input.payload:absent",
			"source_expression":      "item",
			"dest_list_expression":   "user_data.out:mapped",
		},
		{
			"type":                   "filter",
			"source_list_expression": "input.payload:absent",
			"filter_function":        &config.DeferredExpression{Expression: "keyword_args:current_value"},
			"dest_list_expression":   "user_data.out:filtered",
		},
	})

	assert.Equal(t, []any{}, expression.Evaluate(ctx, "user_data.out:mapped"))
	assert.Equal(t, []any{}, expression.Evaluate(ctx, "user_data.out:filtered"))
}

func TestUnknownTypeRejected(t *testing.T) {
	_, err := NewSet([]map[string]any{{"type": "mangle"}})
	assert.Error(t, err)
}
