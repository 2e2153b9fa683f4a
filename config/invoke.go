package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/expression"
)

// InvokeParams carries the evaluated arguments of an invoke function call.
type InvokeParams struct {
	Positional []any
	Keyword    map[string]any
}

// InvokeFunc is a function callable from configuration invoke blocks.
type InvokeFunc func(params InvokeParams) (any, error)

// invokeRegistry maps module name -> function name -> implementation.
// It is the typed replacement for the original's dynamic module import.
var (
	invokeMu       sync.RWMutex
	invokeRegistry = map[string]map[string]InvokeFunc{}
)

// RegisterInvokeFunction makes a function available to configuration
// invoke blocks under the given module and function name.
func RegisterInvokeFunction(module, function string, fn InvokeFunc) error {
	if module == "" || function == "" || fn == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "RegisterInvokeFunction", "argument check")
	}
	invokeMu.Lock()
	defer invokeMu.Unlock()
	if invokeRegistry[module] == nil {
		invokeRegistry[module] = map[string]InvokeFunc{}
	}
	if _, exists := invokeRegistry[module][function]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("function '%s.%s' is already registered", module, function),
			"config", "RegisterInvokeFunction", "duplicate check")
	}
	invokeRegistry[module][function] = fn
	return nil
}

func lookupInvokeFunction(module, function string) (InvokeFunc, error) {
	invokeMu.RLock()
	defer invokeMu.RUnlock()
	fns, ok := invokeRegistry[module]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: module %q", errors.ErrUnknownFunction, module),
			"config", "lookupInvokeFunction", "module lookup")
	}
	fn, ok := fns[function]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s.%s", errors.ErrUnknownFunction, module, function),
			"config", "lookupInvokeFunction", "function lookup")
	}
	return fn, nil
}

// DeferredExpression is an evaluate_expression("expr"[, type]) parameter
// captured at load time and evaluated against the current Message at the
// call site.
type DeferredExpression struct {
	Expression string
	Type       string
}

// Resolve evaluates the captured expression against a message context.
func (d *DeferredExpression) Resolve(ctx *expression.Context) (any, error) {
	if ctx == nil || ctx.Message() == nil {
		return nil, errors.WrapInvalid(errors.ErrNoMessageContext, "config", "DeferredExpression.Resolve", "context check")
	}
	return expression.EvaluateTyped(ctx, d.Expression, d.Type)
}

// DeferredInvoke is an invoke block whose parameters contain deferred
// expressions. It is called per message at the point of config access or
// transform application.
type DeferredInvoke struct {
	Module     string
	Function   string
	Attribute  string
	Object     any
	Positional []any
	Keyword    map[string]any
}

// Call materializes the parameters against the message context and
// executes the invoke.
func (d *DeferredInvoke) Call(ctx *expression.Context) (any, error) {
	positional := make([]any, len(d.Positional))
	for i, p := range d.Positional {
		v, err := ResolveValue(p, ctx)
		if err != nil {
			return nil, err
		}
		positional[i] = v
	}
	keyword := make(map[string]any, len(d.Keyword))
	for k, p := range d.Keyword {
		v, err := ResolveValue(p, ctx)
		if err != nil {
			return nil, err
		}
		keyword[k] = v
	}

	if d.Attribute != "" {
		obj, err := ResolveValue(d.Object, ctx)
		if err != nil {
			return nil, err
		}
		return readAttribute(obj, d.Attribute)
	}

	fn, err := lookupInvokeFunction(d.Module, d.Function)
	if err != nil {
		return nil, err
	}
	return fn(InvokeParams{Positional: positional, Keyword: keyword})
}

// deferredExprPattern matches evaluate_expression(expr) and
// evaluate_expression(expr, type) leaves, plus the legacy
// source_expression spelling.
var deferredExprPattern = regexp.MustCompile(
	`^\s*(?:evaluate_expression|source_expression)\(\s*(.+?)\s*(?:,\s*(int|float|bool|string)\s*)?\)\s*$`)

// ResolveValues resolves all invoke blocks and deferred-expression leaves
// in a configuration tree. Invoke blocks whose parameters are fully static
// are executed immediately; blocks containing deferred expressions become
// DeferredInvoke values called per message.
func ResolveValues(value any) (any, error) {
	return resolveTree(value)
}

func resolveTree(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if spec, ok := v["invoke"]; ok && len(v) == 1 {
			if specMap, ok := spec.(map[string]any); ok {
				return resolveInvoke(specMap)
			}
		}
		out := make(map[string]any, len(v))
		for k, child := range v {
			resolved, err := resolveTree(child)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			resolved, err := resolveTree(child)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		if groups := deferredExprPattern.FindStringSubmatch(v); groups != nil {
			return &DeferredExpression{Expression: groups[1], Type: groups[2]}, nil
		}
		return v, nil
	default:
		return value, nil
	}
}

// resolveInvoke resolves one invoke block. The object is resolved first
// (nested invoke or shared-config anchor content), else the module name is
// looked up in the invoke registry.
func resolveInvoke(spec map[string]any) (any, error) {
	module, _ := spec["module"].(string)
	function, _ := spec["function"].(string)
	attribute, _ := spec["attribute"].(string)

	var object any
	var err error
	if rawObject, ok := spec["object"]; ok {
		object, err = resolveTree(rawObject)
		if err != nil {
			return nil, err
		}
	}

	var positional []any
	keyword := map[string]any{}
	if params, ok := spec["params"].(map[string]any); ok {
		if rawPos, ok := params["positional"].([]any); ok {
			resolved, err := resolveTree(rawPos)
			if err != nil {
				return nil, err
			}
			positional = resolved.([]any)
		}
		if rawKw, ok := params["keyword"].(map[string]any); ok {
			resolved, err := resolveTree(rawKw)
			if err != nil {
				return nil, err
			}
			keyword = resolved.(map[string]any)
		}
	}

	deferred := containsDeferred(object) || containsDeferred(positional) || containsDeferred(keyword)

	if attribute != "" {
		if deferred {
			return &DeferredInvoke{Object: object, Attribute: attribute}, nil
		}
		return readAttribute(object, attribute)
	}

	if function == "" {
		// An invoke with neither function nor attribute yields the
		// resolved object itself.
		if object != nil {
			return object, nil
		}
		return nil, errors.WrapInvalid(
			fmt.Errorf("invoke block has no function or attribute"),
			"config", "resolveInvoke", "shape check")
	}

	if deferred {
		return &DeferredInvoke{
			Module:     module,
			Function:   function,
			Object:     object,
			Positional: positional,
			Keyword:    keyword,
		}, nil
	}

	fn, err := lookupInvokeFunction(module, function)
	if err != nil {
		return nil, err
	}
	return fn(InvokeParams{Positional: positional, Keyword: keyword})
}

func containsDeferred(value any) bool {
	switch v := value.(type) {
	case *DeferredExpression, *DeferredInvoke:
		return true
	case map[string]any:
		for _, child := range v {
			if containsDeferred(child) {
				return true
			}
		}
	case []any:
		for _, child := range v {
			if containsDeferred(child) {
				return true
			}
		}
	}
	return false
}

func readAttribute(obj any, attribute string) (any, error) {
	switch o := obj.(type) {
	case map[string]any:
		return o[attribute], nil
	case map[any]any:
		return o[attribute], nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cannot read attribute %q from %T", attribute, obj),
			"config", "readAttribute", "attribute access")
	}
}

// ResolveValue resolves a single configuration value at access time.
// Deferred expressions and invokes are evaluated against the message
// context; mappings are resolved recursively; literals pass through.
func ResolveValue(value any, ctx *expression.Context) (any, error) {
	switch v := value.(type) {
	case *DeferredExpression:
		return v.Resolve(ctx)
	case *DeferredInvoke:
		return v.Call(ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			resolved, err := ResolveValue(child, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			resolved, err := ResolveValue(child, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// IsDeferred reports whether a configuration value requires a message
// context to resolve.
func IsDeferred(value any) bool {
	return containsDeferred(value)
}

func init() {
	// Baseline invoke functions available to all configurations, in the
	// spirit of the original's invoke_functions module.
	fns := map[string]InvokeFunc{
		"add": func(p InvokeParams) (any, error) {
			return arith(p, func(a, b float64) float64 { return a + b })
		},
		"subtract": func(p InvokeParams) (any, error) {
			return arith(p, func(a, b float64) float64 { return a - b })
		},
		"multiply": func(p InvokeParams) (any, error) {
			return arith(p, func(a, b float64) float64 { return a * b })
		},
		"uppercase": func(p InvokeParams) (any, error) {
			return strings.ToUpper(expression.Textualize(first(p))), nil
		},
		"lowercase": func(p InvokeParams) (any, error) {
			return strings.ToLower(expression.Textualize(first(p))), nil
		},
		"concat": func(p InvokeParams) (any, error) {
			var b strings.Builder
			for _, v := range p.Positional {
				b.WriteString(expression.Textualize(v))
			}
			return b.String(), nil
		},
		"equal": func(p InvokeParams) (any, error) {
			if len(p.Positional) < 2 {
				return false, nil
			}
			return expression.Textualize(p.Positional[0]) == expression.Textualize(p.Positional[1]), nil
		},
		"if_else": func(p InvokeParams) (any, error) {
			if len(p.Positional) < 3 {
				return nil, fmt.Errorf("if_else requires condition, then, else")
			}
			if expression.Truthy(p.Positional[0]) {
				return p.Positional[1], nil
			}
			return p.Positional[2], nil
		},
	}
	for name, fn := range fns {
		if err := RegisterInvokeFunction("invoke_functions", name, fn); err != nil {
			panic(err)
		}
	}
}

func first(p InvokeParams) any {
	if len(p.Positional) > 0 {
		return p.Positional[0]
	}
	return nil
}

func arith(p InvokeParams, op func(a, b float64) float64) (any, error) {
	if len(p.Positional) < 2 {
		return nil, fmt.Errorf("arithmetic invoke requires two arguments")
	}
	a, err := expression.Coerce(p.Positional[0], "float")
	if err != nil {
		return nil, err
	}
	b, err := expression.Coerce(p.Positional[1], "float")
	if err != nil {
		return nil, err
	}
	return op(a.(float64), b.(float64)), nil
}
