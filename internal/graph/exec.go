package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

// ResolverRoot gives access to the per-operation resolvers.
type ResolverRoot interface {
	Query() QueryResolver
	Mutation() MutationResolver
	Subscription() SubscriptionResolver
}

type QueryResolver interface {
	Search(ctx context.Context, query string, limit *int) ([]Document, error)
	ServerStats(ctx context.Context) (*ServerStats, error)
	TypingUsers(ctx context.Context, sessionID string) ([]string, error)
}

type MutationResolver interface {
	Chat(ctx context.Context, message string, sessionID *string) (*ChatResponse, error)
	UploadKnowledgeBase(ctx context.Context, content string, title string) (*UploadResult, error)
	SetTyping(ctx context.Context, sessionID string, userID string, isTyping bool) (*TypingStatus, error)
}

type SubscriptionResolver interface {
	ChatStream(ctx context.Context, sessionID string) (<-chan *ChatResponse, error)
	TypingIndicator(ctx context.Context, sessionID string) (<-chan *TypingStatus, error)
}

// Config configures the executable schema.
type Config struct {
	Resolvers ResolverRoot
}

// NewExecutableSchema creates an ExecutableSchema served by gqlgen's handler.
// Parsing, validation and variable coercion happen in gqlgen; this type
// resolves the validated operation and shapes the result by its selection
// sets.
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	return &executableSchema{resolvers: cfg.Resolvers}
}

type executableSchema struct {
	resolvers ResolverRoot
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Complexity(ctx context.Context, typeName, field string, childComplexity int, rawArgs map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	ec := &executionContext{
		resolvers: e.resolvers,
		variables: opCtx.Variables,
	}

	switch opCtx.Operation.Operation {
	case ast.Query, ast.Mutation:
		typeName := "Query"
		if opCtx.Operation.Operation == ast.Mutation {
			typeName = "Mutation"
		}
		first := true
		return func(ctx context.Context) *graphql.Response {
			if !first {
				return nil
			}
			first = false
			return ec.execRoot(ctx, typeName, opCtx.Operation.SelectionSet)
		}
	case ast.Subscription:
		return ec.execSubscription(ctx, opCtx.Operation.SelectionSet)
	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}
}

type executionContext struct {
	resolvers ResolverRoot
	variables map[string]any
}

// execRoot resolves the root fields one after another, which gives
// mutations their required serial execution.
func (ec *executionContext) execRoot(ctx context.Context, typeName string, set ast.SelectionSet) *graphql.Response {
	out := newObjectWriter()
	var errs gqlerror.List
	nullData := false

	for _, f := range ec.collectFields(set, typeName) {
		if f.Name == "__typename" {
			out.field(f.Alias, mustJSON(typeName))
			continue
		}

		path := ast.Path{ast.PathName(f.Alias)}
		value, err := ec.resolveField(ctx, typeName, f)
		if err == nil {
			var raw []byte
			raw, err = ec.complete(f, value)
			if err == nil {
				out.field(f.Alias, raw)
				continue
			}
		}

		errs = append(errs, presentError(ctx, path, err))
		if f.Definition.Type.NonNull {
			nullData = true
		}
		out.field(f.Alias, []byte("null"))
	}

	resp := &graphql.Response{Errors: errs, Data: out.bytes()}
	if nullData {
		resp.Data = []byte("null")
	}
	return resp
}

func (ec *executionContext) resolveField(ctx context.Context, typeName string, f *ast.Field) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in %s.%s: %v", errInternal, typeName, f.Name, r)
		}
	}()

	args := f.ArgumentMap(ec.variables)

	switch typeName + "." + f.Name {
	case "Query.search":
		return ec.resolvers.Query().Search(ctx, argString(args, "query"), argIntPtr(args, "limit"))
	case "Query.serverStats":
		return ec.resolvers.Query().ServerStats(ctx)
	case "Query.typingUsers":
		return ec.resolvers.Query().TypingUsers(ctx, argString(args, "sessionId"))
	case "Mutation.chat":
		return ec.resolvers.Mutation().Chat(ctx, argString(args, "message"), argStringPtr(args, "sessionId"))
	case "Mutation.uploadKnowledgeBase":
		return ec.resolvers.Mutation().UploadKnowledgeBase(ctx, argString(args, "content"), argString(args, "title"))
	case "Mutation.setTyping":
		return ec.resolvers.Mutation().SetTyping(ctx, argString(args, "sessionId"), argString(args, "userId"), argBool(args, "isTyping"))
	case "Query.__schema":
		if graphql.GetOperationContext(ctx).DisableIntrospection {
			return nil, errIntrospectionDisabled
		}
		return introspection.WrapSchema(parsedSchema), nil
	case "Query.__type":
		if graphql.GetOperationContext(ctx).DisableIntrospection {
			return nil, errIntrospectionDisabled
		}
		def := parsedSchema.Types[argString(args, "name")]
		if def == nil {
			return nil, nil
		}
		return introspection.WrapTypeFromDef(parsedSchema, def), nil
	default:
		return nil, fmt.Errorf("%w: unknown field %s.%s", errInternal, typeName, f.Name)
	}
}

// subscribe starts the subscription for f and returns a function that
// blocks for its next event. The function reports false once the stream
// has ended.
func (ec *executionContext) subscribe(ctx context.Context, f *ast.Field) (next func(context.Context) (any, bool), err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in Subscription.%s: %v", errInternal, f.Name, r)
		}
	}()

	args := f.ArgumentMap(ec.variables)

	switch f.Name {
	case "chatStream":
		ch, err := ec.resolvers.Subscription().ChatStream(ctx, argString(args, "sessionId"))
		if err != nil {
			return nil, err
		}
		return receive(ch), nil
	case "typingIndicator":
		ch, err := ec.resolvers.Subscription().TypingIndicator(ctx, argString(args, "sessionId"))
		if err != nil {
			return nil, err
		}
		return receive(ch), nil
	default:
		return nil, fmt.Errorf("%w: unknown field Subscription.%s", errInternal, f.Name)
	}
}

func receive[T any](ch <-chan T) func(context.Context) (any, bool) {
	return func(ctx context.Context) (any, bool) {
		select {
		case v, ok := <-ch:
			return v, ok
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (ec *executionContext) execSubscription(ctx context.Context, set ast.SelectionSet) graphql.ResponseHandler {
	fields := ec.collectFields(set, "Subscription")
	if len(fields) != 1 {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "must subscribe to exactly one stream"))
	}
	f := fields[0]
	path := ast.Path{ast.PathName(f.Alias)}

	next, err := ec.subscribe(ctx, f)
	if err != nil {
		return graphql.OneShot(&graphql.Response{Errors: gqlerror.List{presentError(ctx, path, err)}})
	}

	return func(ctx context.Context) *graphql.Response {
		value, ok := next(ctx)
		if !ok {
			return nil
		}

		raw, err := ec.complete(f, value)
		if err != nil {
			return &graphql.Response{Errors: gqlerror.List{presentError(ctx, path, err)}, Data: []byte("null")}
		}
		out := newObjectWriter()
		out.field(f.Alias, raw)
		return &graphql.Response{Data: out.bytes()}
	}
}

// collectFields flattens fragments and applies @skip and @include for an
// object of type typeName. Fields sharing a response key are merged.
func (ec *executionContext) collectFields(set ast.SelectionSet, typeName string) []*ast.Field {
	var fields []*ast.Field
	byKey := map[string]*ast.Field{}

	var walk func(set ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *ast.Field:
				if !ec.included(sel.Directives) {
					continue
				}
				key := sel.Alias
				if key == "" {
					key = sel.Name
				}
				if existing, ok := byKey[key]; ok {
					merged := *existing
					merged.SelectionSet = append(append(ast.SelectionSet{}, existing.SelectionSet...), sel.SelectionSet...)
					*existing = merged
					continue
				}
				field := *sel
				field.Alias = key
				byKey[key] = &field
				fields = append(fields, &field)
			case *ast.InlineFragment:
				if !ec.included(sel.Directives) || (sel.TypeCondition != "" && sel.TypeCondition != typeName) {
					continue
				}
				walk(sel.SelectionSet)
			case *ast.FragmentSpread:
				if !ec.included(sel.Directives) || sel.Definition == nil || sel.Definition.TypeCondition != typeName {
					continue
				}
				walk(sel.Definition.SelectionSet)
			}
		}
	}
	walk(set)
	return fields
}

func (ec *executionContext) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil && argBool(d.ArgumentMap(ec.variables), "if") {
		return false
	}
	if d := directives.ForName("include"); d != nil && !argBool(d.ArgumentMap(ec.variables), "if") {
		return false
	}
	return true
}

// complete renders a resolved Go value as JSON shaped by the field's
// selection set. Values go through their json tags first, so the tags must
// match the schema field names.
func (ec *executionContext) complete(f *ast.Field, value any) ([]byte, error) {
	if f.Name == "__schema" || f.Name == "__type" {
		return ec.completeIntrospection(f, value)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s: %w", errInternal, f.Name, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", errInternal, f.Name, err)
	}

	var buf bytes.Buffer
	if err := ec.write(&buf, f.Definition.Type, f.SelectionSet, decoded); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errInternal, f.Name, err)
	}
	return buf.Bytes(), nil
}

func (ec *executionContext) write(buf *bytes.Buffer, typ *ast.Type, set ast.SelectionSet, value any) error {
	if value == nil {
		if typ.NonNull {
			return fmt.Errorf("null value for non-null type %s", typ.String())
		}
		buf.WriteString("null")
		return nil
	}

	if typ.Elem != nil {
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected list for %s", typ.String())
		}
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := ec.write(buf, typ.Elem, set, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}

	def := parsedSchema.Types[typ.NamedType]
	if def == nil || def.Kind != ast.Object {
		buf.Write(mustJSON(value))
		return nil
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("expected object for %s", typ.String())
	}
	out := newObjectWriter()
	for _, f := range ec.collectFields(set, def.Name) {
		if f.Name == "__typename" {
			out.field(f.Alias, mustJSON(def.Name))
			continue
		}
		var child bytes.Buffer
		if err := ec.write(&child, f.Definition.Type, f.SelectionSet, obj[f.Name]); err != nil {
			return fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		out.field(f.Alias, child.Bytes())
	}
	buf.Write(out.bytes())
	return nil
}

// objectWriter writes a JSON object with keys in insertion order.
type objectWriter struct {
	buf bytes.Buffer
	n   int
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, raw []byte) {
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.n++
	w.buf.Write(mustJSON(key))
	w.buf.WriteByte(':')
	w.buf.Write(raw)
}

func (w *objectWriter) bytes() []byte {
	return append(bytes.Clone(w.buf.Bytes()), '}')
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
