package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"

	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/pubsub"
	"github.com/raphaelgruber/ragchat/internal/service"
)

type fakeChatService struct {
	chatErr    error
	lastQuery  string
	lastLimit  int
	lastSessID string
	panicOn    string
}

func (f *fakeChatService) Chat(_ context.Context, message, sessionID string) (*models.ChatResult, error) {
	if f.panicOn == "chat" {
		panic("boom")
	}
	f.lastSessID = sessionID
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &models.ChatResult{
		ID:        "r1",
		SessionID: sessionID,
		Response:  "echo: " + message,
		Sources:   []models.Document{{ID: "1", Title: "Hours", Content: "9 to 5", Score: 0.9}},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (f *fakeChatService) Upload(_ context.Context, content, title string) models.UploadResult {
	if content == "" {
		return models.UploadResult{Message: "Upload failed: content is empty"}
	}
	id := "doc-1"
	return models.UploadResult{Success: true, DocumentID: &id, Message: "Successfully uploaded 2 document chunks", DocumentsCreated: 2}
}

func (f *fakeChatService) Search(_ context.Context, query string, limit int) []models.Document {
	f.lastQuery = query
	f.lastLimit = limit
	return []models.Document{{ID: "7", Title: "Pricing", Content: "10 EUR", Score: 0.5}}
}

type fakeSessions int

func (f fakeSessions) Len() int { return int(f) }

type fakeDocuments struct {
	n   uint64
	err error
}

func (f fakeDocuments) Count(context.Context) (uint64, error) { return f.n, f.err }

func newTestServer(t *testing.T, chat *fakeChatService, hub *pubsub.Hub, exts ...graphql.HandlerExtension) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, NewResolver(chat, hub, fakeSessions(3), fakeDocuments{n: 42}, metrics.NewCollector()), exts...)
}

func newTestServerWith(t *testing.T, resolver *Resolver, exts ...graphql.HandlerExtension) *httptest.Server {
	t.Helper()
	srv := handler.New(NewExecutableSchema(Config{Resolvers: resolver}))
	srv.AddTransport(transport.POST{})
	for _, ext := range exts {
		srv.Use(ext)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Path       []any          `json:"path"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func post(t *testing.T, ts *httptest.Server, query string, variables map[string]any) gqlResponse {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSearchQuery(t *testing.T) {
	chat := &fakeChatService{}
	ts := newTestServer(t, chat, pubsub.NewHub())

	resp := post(t, ts, `query($q: String!) { search(query: $q, limit: 3) { id title score __typename } }`, map[string]any{"q": "price"})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `[{"id":"7","title":"Pricing","score":0.5,"__typename":"Document"}]`, string(resp.Data["search"]))
	assert.Equal(t, "price", chat.lastQuery)
	assert.Equal(t, 3, chat.lastLimit)

	post(t, ts, `{ search(query: "x") { id } }`, nil)
	assert.Equal(t, 0, chat.lastLimit, "missing limit is passed as zero")
}

func TestChatMutation(t *testing.T) {
	chat := &fakeChatService{}
	ts := newTestServer(t, chat, pubsub.NewHub())

	resp := post(t, ts, `mutation {
		answer: chat(message: "hi", sessionId: "s1") {
			id
			response
			...on ChatResponse { timestamp }
			sources { title content }
		}
	}`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t,
		`{"id":"r1","response":"echo: hi","timestamp":"2026-01-02T03:04:05Z","sources":[{"title":"Hours","content":"9 to 5"}]}`,
		string(resp.Data["answer"]))
	assert.Equal(t, "s1", chat.lastSessID)

	post(t, ts, `mutation { chat(message: "hi") { id } }`, nil)
	assert.Equal(t, "", chat.lastSessID)
}

func TestChatMutationErrors(t *testing.T) {
	tests := []struct {
		name        string
		chat        *fakeChatService
		wantCode    string
		wantMessage string
	}{
		{"empty message", &fakeChatService{chatErr: service.ErrEmptyMessage}, CodeEmptyMessage, "Message must not be empty."},
		{"embedding", &fakeChatService{chatErr: fmt.Errorf("%w: timeout", service.ErrEmbeddingFailed)}, CodeEmbeddingFailed, FallbackMessage},
		{"search", &fakeChatService{chatErr: fmt.Errorf("%w: down", service.ErrSearchFailed)}, CodeSearchFailed, FallbackMessage},
		{"generation", &fakeChatService{chatErr: fmt.Errorf("%w: quota", service.ErrGenerationFailed)}, CodeGenerationFailed, FallbackMessage},
		{"unknown", &fakeChatService{chatErr: errors.New("secret internals")}, CodeInternal, FallbackMessage},
		{"panic", &fakeChatService{panicOn: "chat"}, CodeInternal, FallbackMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.chat, pubsub.NewHub())

			resp := post(t, ts, `mutation { chat(message: "hi", sessionId: "s1") { id } }`, nil)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, tt.wantMessage, resp.Errors[0].Message)
			assert.Equal(t, tt.wantCode, resp.Errors[0].Extensions["code"])
			assert.Equal(t, []any{"chat"}, resp.Errors[0].Path)
			assert.NotContains(t, resp.Errors[0].Message, "secret")
		})
	}
}

func TestUploadAndTypingMutations(t *testing.T) {
	hub := pubsub.NewHub()
	ts := newTestServer(t, &fakeChatService{}, hub)

	resp := post(t, ts, `mutation { uploadKnowledgeBase(content: "text", title: "t") { success documentId message documentsCreated } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"success":true,"documentId":"doc-1","message":"Successfully uploaded 2 document chunks","documentsCreated":2}`,
		string(resp.Data["uploadKnowledgeBase"]))

	resp = post(t, ts, `mutation { uploadKnowledgeBase(content: "", title: "t") { success documentId } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"success":false,"documentId":null}`, string(resp.Data["uploadKnowledgeBase"]))

	resp = post(t, ts, `mutation { setTyping(sessionId: "s1", userId: "u1", isTyping: true) { userId isTyping } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"userId":"u1","isTyping":true}`, string(resp.Data["setTyping"]))
	assert.Equal(t, []string{"u1"}, hub.TypingUsers("s1"))
}

func TestServerStatsQuery(t *testing.T) {
	ts := newTestServer(t, &fakeChatService{}, pubsub.NewHub())

	resp := post(t, ts, `{ serverStats { sessions documents chatSubscribers operations { operation } } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"sessions":3,"documents":42,"chatSubscribers":0,"operations":[]}`, string(resp.Data["serverStats"]))
}

func TestServerStatsDocumentsUnavailable(t *testing.T) {
	resolver := NewResolver(&fakeChatService{}, pubsub.NewHub(), nil, fakeDocuments{err: errors.New("qdrant down")}, nil)
	ts := newTestServerWith(t, resolver)

	resp := post(t, ts, `{ serverStats { sessions documents } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"sessions":0,"documents":null}`, string(resp.Data["serverStats"]))
}

func TestTypingUsersQuery(t *testing.T) {
	hub := pubsub.NewHub()
	ts := newTestServer(t, &fakeChatService{}, hub)

	hub.SetTyping("s1", "bob", true)
	hub.SetTyping("s1", "alice", true)
	hub.SetTyping("s2", "carol", true)

	resp := post(t, ts, `query($s: String!) { typingUsers(sessionId: $s) }`, map[string]any{"s": "s1"})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `["alice","bob"]`, string(resp.Data["typingUsers"]))

	resp = post(t, ts, `{ typingUsers(sessionId: "empty") }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `[]`, string(resp.Data["typingUsers"]))
}

func TestIntrospection(t *testing.T) {
	ts := newTestServer(t, &fakeChatService{}, pubsub.NewHub(), extension.Introspection{})

	resp := post(t, ts, `{
		__schema { queryType { name } subscriptionType { name } }
		doc: __type(name: "Document") { kind name fields { name type { kind ofType { name } } } }
		missing: __type(name: "Nope") { name }
	}`, nil)
	require.Empty(t, resp.Errors)

	assert.JSONEq(t, `{"queryType":{"name":"Query"},"subscriptionType":{"name":"Subscription"}}`, string(resp.Data["__schema"]))
	assert.JSONEq(t, `{"kind":"OBJECT","name":"Document","fields":[
		{"name":"id","type":{"kind":"NON_NULL","ofType":{"name":"ID"}}},
		{"name":"title","type":{"kind":"NON_NULL","ofType":{"name":"String"}}},
		{"name":"content","type":{"kind":"NON_NULL","ofType":{"name":"String"}}},
		{"name":"score","type":{"kind":"NON_NULL","ofType":{"name":"Float"}}}
	]}`, string(resp.Data["doc"]))
	assert.JSONEq(t, `null`, string(resp.Data["missing"]))
}

func TestIntrospectionListsSchemaTypes(t *testing.T) {
	ts := newTestServer(t, &fakeChatService{}, pubsub.NewHub(), extension.Introspection{})

	resp := post(t, ts, `{ __schema { types { name kind } } }`, nil)
	require.Empty(t, resp.Errors)

	var schema struct {
		Types []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal(resp.Data["__schema"], &schema))

	kinds := map[string]string{}
	for _, typ := range schema.Types {
		kinds[typ.Name] = typ.Kind
	}
	assert.Equal(t, "OBJECT", kinds["ChatResponse"])
	assert.Equal(t, "SCALAR", kinds["Time"])
	assert.Equal(t, "ENUM", kinds["__TypeKind"])
}

func TestIntrospectionDisabled(t *testing.T) {
	ts := newTestServer(t, &fakeChatService{}, pubsub.NewHub())

	resp := post(t, ts, `{ __schema { queryType { name } } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeIntrospectionDisabled, resp.Errors[0].Extensions["code"])
	assert.Equal(t, "Introspection is disabled.", resp.Errors[0].Message)
	assert.NotEqual(t, FallbackMessage, resp.Errors[0].Message)
}

func execSubscription(t *testing.T, ctx context.Context, es graphql.ExecutableSchema, query string) graphql.ResponseHandler {
	t.Helper()
	doc, errs := gqlparser.LoadQuery(parsedSchema, query)
	require.Empty(t, errs)

	ctx = graphql.WithOperationContext(ctx, &graphql.OperationContext{
		RawQuery:  query,
		Doc:       doc,
		Operation: doc.Operations[0],
		Variables: map[string]any{},
	})
	return es.Exec(ctx)
}

func TestChatStreamFiltersBySession(t *testing.T) {
	hub := pubsub.NewHub()
	es := NewExecutableSchema(Config{Resolvers: NewResolver(&fakeChatService{}, hub, nil, nil, nil)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	next := execSubscription(t, ctx, es, `subscription { chatStream(sessionId: "s1") { id response } }`)
	require.Eventually(t, func() bool { c, _ := hub.Subscribers(); return c == 1 }, time.Second, 10*time.Millisecond)

	hub.PublishChat("s2", models.ChatResult{ID: "other", SessionID: "s2", Response: "not for you"})
	hub.PublishChat("s1", models.ChatResult{ID: "mine", SessionID: "s1", Response: "hello"})

	resp := next(ctx)
	require.NotNil(t, resp)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"chatStream":{"id":"mine","response":"hello"}}`, string(resp.Data))

	cancel()
	assert.Nil(t, next(context.Background()), "stream ends once the subscription is cancelled")
}

func TestTypingIndicatorSubscription(t *testing.T) {
	hub := pubsub.NewHub()
	es := NewExecutableSchema(Config{Resolvers: NewResolver(&fakeChatService{}, hub, nil, nil, nil)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	next := execSubscription(t, ctx, es, `subscription { typingIndicator(sessionId: "s1") { userId isTyping } }`)

	hub.SetTyping("s9", "u9", true)
	hub.SetTyping("s1", "assistant", true)

	resp := next(ctx)
	require.NotNil(t, resp)
	assert.JSONEq(t, `{"typingIndicator":{"userId":"assistant","isTyping":true}}`, string(resp.Data))
}
