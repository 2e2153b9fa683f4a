// Package transform applies ordered, declarative mutations to a message
// before a component's invoke. Five operators are supported: copy, append,
// map, reduce and filter. All operators write into a destination
// expression; destination paths are created on demand.
//
// List operators treat a missing source as empty: an empty source list
// yields an empty destination list, and reduce returns its initial value.
package transform

import (
	"fmt"

	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/expression"
)

// descriptor is one parsed transform.
type descriptor struct {
	typ string

	sourceExpression     string
	sourceValue          any
	hasSourceValue       bool
	sourceListExpression string
	destExpression       string
	destListExpression   string

	processingFunction  any
	accumulatorFunction any
	filterFunction      any
	initialValue        any
}

// Set is an ordered list of transforms parsed from a component's
// input_transforms configuration.
type Set struct {
	transforms []*descriptor
}

// NewSet parses the raw transform descriptors. Shape errors are
// configuration errors and fail component construction.
func NewSet(raw []map[string]any) (*Set, error) {
	s := &Set{}
	for i, tm := range raw {
		d, err := parseDescriptor(tm)
		if err != nil {
			return nil, errors.WrapFatal(err, "transform", "NewSet", fmt.Sprintf("parse transform %d", i))
		}
		s.transforms = append(s.transforms, d)
	}
	return s, nil
}

// Len returns the number of transforms in the set.
func (s *Set) Len() int { return len(s.transforms) }

// Apply runs each transform in order against the message bound in ctx.
// An empty set is the identity.
func (s *Set) Apply(ctx *expression.Context) error {
	for i, d := range s.transforms {
		if err := d.apply(ctx); err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: transform %d (%s): %w", errors.ErrTransformFailed, i, d.typ, err),
				"transform", "Apply", "transform application")
		}
	}
	return nil
}

func parseDescriptor(tm map[string]any) (*descriptor, error) {
	d := &descriptor{
		typ:                  config.GetString(tm, "type", ""),
		sourceExpression:     config.GetString(tm, "source_expression", ""),
		sourceListExpression: config.GetString(tm, "source_list_expression", ""),
		destExpression:       config.GetString(tm, "dest_expression", ""),
		destListExpression:   config.GetString(tm, "dest_list_expression", ""),
		processingFunction:   tm["processing_function"],
		accumulatorFunction:  tm["accumulator_function"],
		filterFunction:       tm["filter_function"],
		initialValue:         tm["initial_value"],
	}
	if v, ok := tm["source_value"]; ok {
		d.sourceValue = v
		d.hasSourceValue = true
	}

	switch d.typ {
	case "copy", "append":
		if d.hasSourceValue == (d.sourceExpression != "") {
			return nil, fmt.Errorf("%s requires exactly one of source_expression or source_value", d.typ)
		}
		if d.destExpression == "" && d.destListExpression == "" {
			return nil, fmt.Errorf("%s requires dest_expression", d.typ)
		}
	case "map":
		if d.sourceListExpression == "" {
			return nil, fmt.Errorf("map requires source_list_expression")
		}
		if d.destListExpression == "" {
			return nil, fmt.Errorf("map requires dest_list_expression")
		}
	case "reduce":
		if d.sourceListExpression == "" || d.destExpression == "" {
			return nil, fmt.Errorf("reduce requires source_list_expression and dest_expression")
		}
		if d.accumulatorFunction == nil {
			return nil, fmt.Errorf("reduce requires accumulator_function")
		}
	case "filter":
		if d.sourceListExpression == "" || d.destListExpression == "" {
			return nil, fmt.Errorf("filter requires source_list_expression and dest_list_expression")
		}
		if d.filterFunction == nil {
			return nil, fmt.Errorf("filter requires filter_function")
		}
	default:
		return nil, fmt.Errorf("unknown transform type %q", d.typ)
	}
	return d, nil
}

func (d *descriptor) apply(ctx *expression.Context) error {
	switch d.typ {
	case "copy":
		return d.applyCopy(ctx)
	case "append":
		return d.applyAppend(ctx)
	case "map":
		return d.applyMap(ctx)
	case "reduce":
		return d.applyReduce(ctx)
	case "filter":
		return d.applyFilter(ctx)
	}
	return fmt.Errorf("unknown transform type %q", d.typ)
}

func (d *descriptor) source(ctx *expression.Context) any {
	if d.hasSourceValue {
		return d.sourceValue
	}
	return expression.Evaluate(ctx, d.sourceExpression)
}

func (d *descriptor) dest() string {
	if d.destExpression != "" {
		return d.destExpression
	}
	return d.destListExpression
}

func (d *descriptor) applyCopy(ctx *expression.Context) error {
	return expression.Set(ctx, d.dest(), d.source(ctx))
}

func (d *descriptor) applyAppend(ctx *expression.Context) error {
	dest := d.dest()
	existing := expression.Evaluate(ctx, dest)
	var list []any
	switch e := existing.(type) {
	case nil:
		list = []any{}
	case []any:
		list = e
	default:
		list = []any{e}
	}
	list = append(list, d.source(ctx))
	return expression.Set(ctx, dest, list)
}

func (d *descriptor) applyMap(ctx *expression.Context) error {
	items := sourceList(ctx, d.sourceListExpression)
	result := make([]any, len(items))
	for i, item := range items {
		local := ctx.WithLocals(map[string]any{
			expression.LocalItem:  item,
			expression.LocalIndex: i,
		})
		var value any
		if d.sourceExpression != "" {
			value = expression.Evaluate(local, d.sourceExpression)
		} else {
			value = item
		}
		if d.processingFunction != nil {
			processed, err := callFunction(d.processingFunction, local.WithLocals(map[string]any{
				expression.LocalInvokeData: value,
			}))
			if err != nil {
				return err
			}
			value = processed
		}
		result[i] = value
	}
	return expression.Set(ctx, d.destListExpression, result)
}

func (d *descriptor) applyReduce(ctx *expression.Context) error {
	items := sourceList(ctx, d.sourceListExpression)
	acc := d.initialValue
	for i, item := range items {
		local := ctx.WithLocals(map[string]any{
			expression.LocalKeywordArgs: map[string]any{
				"accumulated_value": acc,
				"current_value":     item,
				"index":             i,
			},
		})
		next, err := callFunction(d.accumulatorFunction, local)
		if err != nil {
			return err
		}
		acc = next
	}
	return expression.Set(ctx, d.destExpression, acc)
}

func (d *descriptor) applyFilter(ctx *expression.Context) error {
	items := sourceList(ctx, d.sourceListExpression)
	result := []any{}
	for i, item := range items {
		local := ctx.WithLocals(map[string]any{
			expression.LocalKeywordArgs: map[string]any{
				"current_value": item,
				"index":         i,
			},
		})
		keep, err := callFunction(d.filterFunction, local)
		if err != nil {
			return err
		}
		if expression.Truthy(keep) {
			result = append(result, item)
		}
	}
	return expression.Set(ctx, d.destListExpression, result)
}

// sourceList evaluates a list source. A missing plane evaluates to nil and
// is treated as empty.
func sourceList(ctx *expression.Context, expr string) []any {
	value := expression.Evaluate(ctx, expr)
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

// callFunction executes a transform function value. Deferred invokes and
// expressions resolve against the element-local context; any other value
// is a constant.
func callFunction(fn any, ctx *expression.Context) (any, error) {
	return config.ResolveValue(fn, ctx)
}
