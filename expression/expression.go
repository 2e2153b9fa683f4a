// Package expression implements the data-access expression language used
// throughout the connector configuration. An expression addresses one of a
// Message's data planes with the syntax "<plane>[:<path>]", where the path
// is a dot-delimited navigation of structured content. Integer segments
// index sequences, other segments index mappings.
//
// Readable planes: input (and its payload/topic/topic_levels/
// user_properties aliases), previous, user_data.<name>, static:<literal>,
// template:<text>, plus the transform-local planes item, index,
// keyword_args, invoke_data and self. Writable planes are restricted to
// user_data.<name> and, during a transform, previous.
//
// Missing lookups never fail; they evaluate to nil.
package expression

import (
	"strconv"
	"strings"

	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Local plane names bound by the transform engine and invoke parameters.
const (
	LocalItem        = "item"
	LocalIndex       = "index"
	LocalKeywordArgs = "keyword_args"
	LocalInvokeData  = "invoke_data"
	LocalSelf        = "self"
)

// Context binds a Message, and optionally a set of transform-local values,
// for expression evaluation.
type Context struct {
	msg    *message.Message
	locals map[string]any
}

// NewContext creates an evaluation context for a message.
func NewContext(m *message.Message) *Context {
	return &Context{msg: m}
}

// Message returns the bound message, which may be nil in static contexts.
func (c *Context) Message() *message.Message { return c.msg }

// WithLocals returns a derived context layering transform-local planes over
// the receiver. The receiver is not modified.
func (c *Context) WithLocals(locals map[string]any) *Context {
	merged := make(map[string]any, len(c.locals)+len(locals))
	for k, v := range c.locals {
		merged[k] = v
	}
	for k, v := range locals {
		merged[k] = v
	}
	return &Context{msg: c.msg, locals: merged}
}

// Evaluate resolves an expression against the context. Missing
// intermediate steps yield nil rather than an error.
func Evaluate(ctx *Context, expr string) any {
	if ctx == nil || expr == "" {
		return nil
	}
	if lit, ok := strings.CutPrefix(expr, "static:"); ok {
		return lit
	}
	if tmpl, ok := strings.CutPrefix(expr, "template:"); ok {
		return Render(ctx, tmpl)
	}

	plane, path := splitExpression(expr)
	root, ok := ctx.resolvePlane(plane)
	if !ok {
		return nil
	}
	return navigate(root, path)
}

// EvaluateTyped resolves an expression and coerces the result to the named
// type (one of int, float, bool, string). An empty type name disables
// coercion.
func EvaluateTyped(ctx *Context, expr, typeName string) (any, error) {
	v := Evaluate(ctx, expr)
	if typeName == "" {
		return v, nil
	}
	return Coerce(v, typeName)
}

// Set writes a value to a writable plane: user_data.<name>[:<path>] or
// previous[:<path>]. Intermediate containers are created on demand: a
// missing map node becomes a map, an integer segment with a missing
// sequence creates a sequence grown to that index.
func Set(ctx *Context, expr string, value any) error {
	if ctx == nil || ctx.msg == nil {
		return errors.WrapInvalid(errors.ErrNoMessageContext, "expression", "Set", "context check")
	}
	plane, path := splitExpression(expr)

	switch {
	case plane == "previous":
		if len(path) == 0 {
			ctx.msg.SetPrevious(value)
			return nil
		}
		root, err := setPath(ctx.msg.GetPrevious(), path, value)
		if err != nil {
			return err
		}
		ctx.msg.SetPrevious(root)
		return nil

	case strings.HasPrefix(plane, "user_data."):
		name := strings.TrimPrefix(plane, "user_data.")
		if name == "" {
			return errors.WrapInvalid(errors.ErrBadExpression, "expression", "Set", "user_data name check")
		}
		if len(path) == 0 {
			ctx.msg.SetUserData(name, value)
			return nil
		}
		root, err := setPath(ctx.msg.GetUserData()[name], path, value)
		if err != nil {
			return err
		}
		ctx.msg.SetUserData(name, root)
		return nil

	default:
		return errors.WrapInvalid(errors.ErrNotWritable, "expression", "Set", "plane check")
	}
}

// splitExpression separates the plane specifier from the optional path.
// The path delimiter is the first ":".
func splitExpression(expr string) (plane string, path []string) {
	plane, rest, found := strings.Cut(expr, ":")
	if !found || rest == "" {
		return plane, nil
	}
	return plane, strings.Split(rest, ".")
}

// resolvePlane returns the root value of a plane, and whether the plane is
// known. Transform-local planes shadow nothing; they only exist when bound.
func (c *Context) resolvePlane(plane string) (any, bool) {
	if c.locals != nil {
		if v, ok := c.locals[plane]; ok {
			return v, true
		}
		// keyword_args.<name> style nesting inside the plane specifier
		if name, found := strings.CutPrefix(plane, LocalKeywordArgs+"."); found {
			if kw, ok := c.locals[LocalKeywordArgs].(map[string]any); ok {
				v, ok := kw[name]
				return v, ok
			}
			return nil, false
		}
	}

	m := c.msg
	if m == nil {
		return nil, false
	}

	switch plane {
	case "input", "input.payload":
		return m.GetPayload(), true
	case "input.topic":
		return m.GetTopic(), true
	case "input.topic_levels":
		return toAnySlice(m.GetTopicLevels()), true
	case "input.user_properties":
		return m.GetUserProperties(), true
	case "previous":
		return m.GetPrevious(), true
	case LocalSelf:
		return map[string]any{
			"payload":         m.GetPayload(),
			"topic":           m.GetTopic(),
			"user_properties": m.GetUserProperties(),
			"user_data":       m.GetUserData(),
			"previous":        m.GetPrevious(),
		}, true
	}

	if name, found := strings.CutPrefix(plane, "user_data."); found {
		v, ok := m.GetUserData()[name]
		if !ok {
			return nil, true // plane exists; region absent evaluates to nil
		}
		return v, true
	}

	return nil, false
}

// navigate walks a dot path through mappings and sequences. Any missing
// step yields nil.
func navigate(cur any, path []string) any {
	for _, seg := range path {
		if cur == nil {
			return nil
		}
		if idx, err := strconv.Atoi(seg); err == nil {
			cur = indexSequence(cur, idx)
			continue
		}
		cur = indexMapping(cur, seg)
	}
	return cur
}

func indexSequence(cur any, idx int) any {
	switch s := cur.(type) {
	case []any:
		if idx < 0 || idx >= len(s) {
			return nil
		}
		return s[idx]
	case []string:
		if idx < 0 || idx >= len(s) {
			return nil
		}
		return s[idx]
	default:
		return nil
	}
}

func indexMapping(cur any, key string) any {
	switch mp := cur.(type) {
	case map[string]any:
		return mp[key]
	case map[any]any:
		return mp[key]
	default:
		return nil
	}
}

// setPath writes value at path under root, creating intermediate
// containers on demand, and returns the (possibly replaced) root.
func setPath(root any, path []string, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	seg := path[0]

	if idx, err := strconv.Atoi(seg); err == nil {
		if idx < 0 {
			return nil, errors.WrapInvalid(errors.ErrBadExpression, "expression", "setPath", "negative index check")
		}
		seq, _ := root.([]any)
		for len(seq) <= idx {
			seq = append(seq, nil)
		}
		child, err := setPath(seq[idx], path[1:], value)
		if err != nil {
			return nil, err
		}
		seq[idx] = child
		return seq, nil
	}

	mp, ok := root.(map[string]any)
	if !ok {
		mp = map[string]any{}
	}
	child, err := setPath(mp[seg], path[1:], value)
	if err != nil {
		return nil, err
	}
	mp[seg] = child
	return mp, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
