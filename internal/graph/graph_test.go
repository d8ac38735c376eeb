package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"github.com/nailerHeum/AjouNICE/internal/database"
	"github.com/nailerHeum/AjouNICE/internal/mailer"
	"github.com/nailerHeum/AjouNICE/internal/middleware"
	"github.com/nailerHeum/AjouNICE/internal/models"
	"github.com/nailerHeum/AjouNICE/internal/pubsub"
	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/resolver"
	"github.com/nailerHeum/AjouNICE/internal/service"
	"github.com/nailerHeum/AjouNICE/internal/storage"
)

// =============================================================================
// Fakes
// =============================================================================

type discardMailer struct{}

func (discardMailer) Enqueue(mailer.Message) error { return nil }

type staticLookup struct{}

func (staticLookup) Schedule(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[{"title":"midterm"}]`), nil
}

func (staticLookup) Notice(ctx context.Context, code string) (json.RawMessage, error) {
	return json.RawMessage(`{"code":"` + code + `"}`), nil
}

// stalledLookup never answers before the caller gives up.
type stalledLookup struct{}

func (stalledLookup) Schedule(ctx context.Context) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledLookup) Notice(ctx context.Context, code string) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingUploader struct {
	uploads []storage.Upload
	bodies  []string
}

func (u *recordingUploader) Store(ctx context.Context, up storage.Upload) (*storage.Stored, error) {
	body, err := io.ReadAll(up.Body)
	if err != nil {
		return nil, err
	}
	u.uploads = append(u.uploads, up)
	u.bodies = append(u.bodies, string(body))
	key := up.Folder + "/" + up.Filename
	return &storage.Stored{Key: key, Locator: "https://cdn.test/files/" + key, Size: int64(len(body))}, nil
}

func (u *recordingUploader) Remove(ctx context.Context, key string) error { return nil }

// =============================================================================
// Test Helpers
// =============================================================================

const testSecret = "test-secret-key-at-least-32-chars"

type testServer struct {
	db       *gorm.DB
	bus      *pubsub.Bus
	resolver *resolver.Resolver
	uploads  *recordingUploader
	handler  http.Handler
}

// identityHeader stands in for the HTTP auth middleware in these tests.
const identityHeader = "X-Test-User"

func newTestServer(t *testing.T, cfg ServerConfig) *testServer {
	t.Helper()
	return newTestServerWithLookup(t, cfg, staticLookup{})
}

func newTestServerWithLookup(t *testing.T, cfg ServerConfig, lookup resolver.Lookup) *testServer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graph.db")
	db, err := gorm.Open(sqlite.Open(database.SQLiteDSN(path)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	bus := pubsub.New(pubsub.WithBuffer(16))
	t.Cleanup(bus.Close)

	uploads := &recordingUploader{}
	auth := service.NewAuthService(service.NewJWTService(testSecret, time.Hour))
	r := resolver.New(resolver.Deps{
		Stores:   repository.NewStores(db),
		Bus:      bus,
		Uploads:  uploads,
		Mail:     discardMailer{},
		Composer: mailer.NewComposer("https://ajounice.com", "admin@ajounice.com"),
		Lookup:   lookup,
		Auth:     auth,
	})

	schema, err := LoadSchema()
	require.NoError(t, err)

	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = storage.DefaultMaxBytes
	}
	srv := NewServer(NewExecutableSchema(schema, r, nil, nil), cfg, auth, nil)

	h := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if v := req.Header.Get(identityHeader); v != "" {
			idx, _ := strconv.ParseInt(v, 10, 64)
			req = req.WithContext(service.WithIdentity(req.Context(), &service.Identity{UserIdx: idx}))
		}
		srv.ServeHTTP(w, req)
	})

	return &testServer{db: db, bus: bus, resolver: r, uploads: uploads, handler: h}
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, s.db.Create(&models.User{UserIdx: 42, UserID: "alice", NickNm: "al", Email: "alice@ajou.ac.kr"}).Error)
	require.NoError(t, s.db.Create(&models.User{UserIdx: 43, UserID: "bob", NickNm: "bo", Email: "bob@ajou.ac.kr"}).Error)
	category := models.Category{CategoryNm: "free"}
	require.NoError(t, s.db.Create(&category).Error)
	require.NoError(t, s.db.Create(&models.Post{PostIdx: 7, CategoryIdx: category.CategoryIdx, UserIdx: 43, Title: "Welcome", Body: "first post"}).Error)
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Path       []any          `json:"path"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func (s *testServer) post(t *testing.T, query string, vars map[string]any, userIdx int64) gqlResponse {
	t.Helper()

	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userIdx != 0 {
		req.Header.Set(identityHeader, strconv.FormatInt(userIdx, 10))
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func codeOf(resp gqlResponse, i int) any {
	if i >= len(resp.Errors) {
		return nil
	}
	return resp.Errors[i].Extensions["code"]
}

// =============================================================================
// Query Tests
// =============================================================================

func TestQuery_RendersOnlySelectedFieldsUnderAliases(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})
	s.seed(t)

	resp := s.post(t, `{ p: post(post_idx: 7) { title author: user { user_id } __typename } }`, nil, 0)

	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"p":{"title":"Welcome","author":{"user_id":"bob"},"__typename":"Post"}}`, string(resp.Data))
}

func TestQuery_MissingRecordIsNull(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})

	resp := s.post(t, `query($idx: Int!) { post(post_idx: $idx) { title } }`, map[string]any{"idx": 999}, 0)

	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"post":null}`, string(resp.Data))
}

func TestQuery_EmptyListsRenderAsArrays(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})

	resp := s.post(t, `{ boards { category_nm } paginatedPosts { totalCount edges { title } } }`, nil, 0)

	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"boards":[],"paginatedPosts":{"totalCount":0,"edges":[]}}`, string(resp.Data))
}

func TestQuery_FailedRootFieldDoesNotHideOthers(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})
	s.seed(t)

	resp := s.post(t, `{ post(post_idx: 7) { title } users { user_id } }`, nil, 0)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeUnauthenticated, codeOf(resp, 0))
	assert.Equal(t, []any{"users"}, resp.Errors[0].Path)
	assert.JSONEq(t, `{"post":{"title":"Welcome"},"users":null}`, string(resp.Data))
}

func TestQuery_JSONScalarPassesThrough(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})

	resp := s.post(t, `{ schedule notice(code: "NO01") }`, nil, 0)

	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"schedule":[{"title":"midterm"}],"notice":{"code":"NO01"}}`, string(resp.Data))
}

func TestQuery_DeadlineMapsToTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestServerWithLookup(t, ServerConfig{MaxDepth: 5}, stalledLookup{})

	router := gin.New()
	router.Use(middleware.Timeout(50 * time.Millisecond))
	router.POST("/graphql", gin.WrapH(s.handler))

	body, err := json.Marshal(map[string]any{"query": `{ schedule notice(code: "NO01") }`})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "request outlived its deadline")

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.Len(t, resp.Errors, 2)
	for i := range resp.Errors {
		assert.Equal(t, CodeTimeout, codeOf(resp, i))
	}
	assert.JSONEq(t, `{"schedule":null,"notice":null}`, string(resp.Data))
}

func TestClassify_DeadlineAndTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "context deadline", err: context.DeadlineExceeded},
		{name: "wrapped deadline", err: fmt.Errorf("failed to fetch schedule: %w", context.DeadlineExceeded)},
		{name: "upstream timeout", err: &apperrors.UpstreamServiceError{Endpoint: "/schedule", Attempts: 3, Err: apperrors.ErrTimeout}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := classify(tt.err)
			assert.Equal(t, CodeTimeout, code)
		})
	}
}

func TestQuery_FragmentsAndTypename(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})
	s.seed(t)

	resp := s.post(t, `
		query { __typename user(user_id: "alice") { ...who } }
		fragment who on User { user_idx nick_nm }
	`, nil, 0)

	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"__typename":"Query","user":{"user_idx":42,"nick_nm":"al"}}`, string(resp.Data))
}

func TestQuery_UserWithoutFilterIsInvalidInput(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})

	resp := s.post(t, `{ user { user_id } }`, nil, 0)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeInvalidInput, codeOf(resp, 0))
}

// =============================================================================
// Mutation Tests
// =============================================================================

func TestMutation_AnonymousWriteIsUnauthenticated(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})
	s.seed(t)

	resp := s.post(t, `mutation { writeReply(post_idx: 7, text: "hi") { cmt_idx } }`, nil, 0)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeUnauthenticated, codeOf(resp, 0))
	assert.Equal(t, "writeReply", resp.Errors[0].Extensions["operation"])

	var count int64
	require.NoError(t, s.db.Model(&models.Comment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMutation_WriteReplyReturnsCommenter(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})
	s.seed(t)

	resp := s.post(t, `mutation { writeReply(post_idx: 7, text: "hi") { text post_idx commenter { user_id } } }`, nil, 42)

	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"writeReply":{"text":"hi","post_idx":7,"commenter":{"user_id":"alice"}}}`, string(resp.Data))
}

func TestMutation_UploadThroughMultipart(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("operations",
		`{"query":"mutation($f: Upload!) { uploadedProfileImage(file: $f) }","variables":{"f":null}}`))
	require.NoError(t, mw.WriteField("map", `{"0":["variables.f"]}`))
	part, err := mw.CreateFormFile("0", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/graphql", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"uploadedProfileImage":"https://cdn.test/files/user/profile/me.png"}`, string(resp.Data))

	require.Len(t, s.uploads.uploads, 1)
	assert.Equal(t, storage.FolderProfile, s.uploads.uploads[0].Folder)
	assert.Equal(t, "png-bytes", s.uploads.bodies[0])
}

func TestMutation_UploadArgumentMustBeAFile(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})

	resp := s.post(t, `mutation($f: Upload!) { uploadedProfileImage(file: $f) }`, map[string]any{"f": "not-a-file"}, 0)

	require.NotEmpty(t, resp.Errors)
	assert.Empty(t, s.uploads.uploads)
}

// =============================================================================
// Limit Tests
// =============================================================================

func TestDepthLimit(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 3})
	s.seed(t)

	tests := []struct {
		name     string
		query    string
		rejected bool
	}{
		{"at limit", `{ post(post_idx: 7) { comments { commenter { user_id } } } }`, false},
		{"over limit", `{ post(post_idx: 7) { comments { commenter { articles { title } } } } }`, true},
		{"over limit through fragment", `{ post(post_idx: 7) { ...deep } } fragment deep on Post { user { articles { user { user_id } } } }`, true},
		{"introspection not counted", `{ __schema { types { fields { type { name } } } } }`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.post(t, tt.query, nil, 0)
			if tt.rejected {
				require.NotEmpty(t, resp.Errors)
				assert.Equal(t, CodeDepthExceeded, codeOf(resp, 0))
				return
			}
			for _, e := range resp.Errors {
				assert.NotEqual(t, CodeDepthExceeded, e.Extensions["code"])
			}
		})
	}
}

func TestSelectionDepth(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{`{ a }`, 0},
		{`{ a { b } d }`, 1},
		{`{ a { b { c } } d { e } }`, 2},
		{`{ ... on Query { a { b } } }`, 1},
		{`{ a { ...f } } fragment f on A { b { c } }`, 2},
		{`{ a { __type { name } } }`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			doc, err := parser.ParseQuery(&ast.Source{Input: tt.query})
			if err != nil {
				t.Fatal(err)
			}
			linkFragments(doc)
			assert.Equal(t, tt.want, selectionDepth(doc.Operations[0].SelectionSet, map[string]bool{}))
		})
	}
}

// linkFragments does the fragment binding normally done by validation.
func linkFragments(doc *ast.QueryDocument) {
	var walk func(sel ast.SelectionSet)
	walk = func(sel ast.SelectionSet) {
		for _, s := range sel {
			switch s := s.(type) {
			case *ast.Field:
				walk(s.SelectionSet)
			case *ast.InlineFragment:
				walk(s.SelectionSet)
			case *ast.FragmentSpread:
				s.Definition = doc.Fragments.ForName(s.Name)
			}
		}
	}
	for _, op := range doc.Operations {
		walk(op.SelectionSet)
	}
	for _, f := range doc.Fragments {
		walk(f.SelectionSet)
	}
}

// =============================================================================
// Introspection Tests
// =============================================================================

func TestIntrospection(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5, EnableIntrospection: true})

	resp := s.post(t, `{ __type(name: "Comment") { name kind fields { name type { kind ofType { name } } } } }`, nil, 0)
	require.Empty(t, resp.Errors)

	var data struct {
		Type struct {
			Name   string `json:"name"`
			Kind   string `json:"kind"`
			Fields []struct {
				Name string `json:"name"`
				Type struct {
					Kind   string `json:"kind"`
					OfType *struct {
						Name string `json:"name"`
					} `json:"ofType"`
				} `json:"type"`
			} `json:"fields"`
		} `json:"__type"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))

	assert.Equal(t, "Comment", data.Type.Name)
	assert.Equal(t, "OBJECT", data.Type.Kind)
	names := make([]string, 0, len(data.Type.Fields))
	for _, f := range data.Type.Fields {
		names = append(names, f.Name)
		if f.Name == "cmt_idx" {
			assert.Equal(t, "NON_NULL", f.Type.Kind)
			require.NotNil(t, f.Type.OfType)
			assert.Equal(t, "Int", f.Type.OfType.Name)
		}
	}
	want := []string{"cmt_idx", "post_idx", "user_idx", "text", "reg_dt", "commenter"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Comment fields mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospection_SchemaRootsAndAliases(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5, EnableIntrospection: true})

	resp := s.post(t, `{
		__schema {
			__typename
			q: queryType { name }
			mutationType { name }
			subscriptionType { name fields { name } }
			types { name }
		}
		missing: __type(name: "Nope") { name }
	}`, nil, 0)
	require.Empty(t, resp.Errors)

	var data struct {
		Schema struct {
			Typename string `json:"__typename"`
			Q        struct {
				Name string `json:"name"`
			} `json:"q"`
			MutationType struct {
				Name string `json:"name"`
			} `json:"mutationType"`
			SubscriptionType struct {
				Name   string `json:"name"`
				Fields []struct {
					Name string `json:"name"`
				} `json:"fields"`
			} `json:"subscriptionType"`
			Types []struct {
				Name string `json:"name"`
			} `json:"types"`
		} `json:"__schema"`
		Missing *struct{} `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))

	assert.Equal(t, "__Schema", data.Schema.Typename)
	assert.Equal(t, "Query", data.Schema.Q.Name)
	assert.Equal(t, "Mutation", data.Schema.MutationType.Name)
	assert.Equal(t, "Subscription", data.Schema.SubscriptionType.Name)
	subs := make([]string, 0, len(data.Schema.SubscriptionType.Fields))
	for _, f := range data.Schema.SubscriptionType.Fields {
		subs = append(subs, f.Name)
	}
	assert.ElementsMatch(t, []string{"replyWritten", "replyRemoved", "replyModified"}, subs)

	types := make([]string, 0, len(data.Schema.Types))
	for _, typ := range data.Schema.Types {
		types = append(types, typ.Name)
	}
	assert.Contains(t, types, "Post")
	assert.Contains(t, types, "Upload")
	assert.Nil(t, data.Missing)
}

func TestIntrospectionDisabled(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})

	resp := s.post(t, `{ __schema { queryType { name } } }`, nil, 0)

	assert.NotEmpty(t, resp.Errors)
}

// =============================================================================
// Subscription Tests
// =============================================================================

func TestSubscription_OverWebsocket(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxDepth: 5})
	s.seed(t)

	httpSrv := httptest.NewServer(s.handler)
	defer httpSrv.Close()

	dialer := websocket.Dialer{Subprotocols: []string{"graphql-transport-ws"}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(httpSrv.URL, "http")+"/graphql", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "connection_init", "payload": map[string]any{}}))
	ack := readMessage(t, conn, "connection_ack")
	assert.Equal(t, "connection_ack", ack.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"id":      "1",
		"type":    "subscribe",
		"payload": map[string]any{"query": `subscription { c: replyWritten(post_idx: 7) { text commenter { user_id } } }`},
	}))
	require.Eventually(t, func() bool {
		return s.bus.ListenerCount("REPLY_WRITTEN") == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx := service.WithIdentity(context.Background(), &service.Identity{UserIdx: 42})
	_, err = s.resolver.WriteReply(ctx, 7, "over the wire")
	require.NoError(t, err)

	msg := readMessage(t, conn, "next")
	assert.Equal(t, "1", msg.ID)
	assert.JSONEq(t, `{"data":{"c":{"text":"over the wire","commenter":{"user_id":"alice"}}}}`, string(msg.Payload))
}

type wsMessage struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readMessage skips keep-alive traffic until a message of the wanted type.
func readMessage(t *testing.T, conn *websocket.Conn, want string) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return msg
		}
		require.NotEqual(t, "error", msg.Type, string(msg.Payload))
	}
}
