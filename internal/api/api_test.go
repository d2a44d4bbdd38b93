package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/notely/internal/apperr"
	"github.com/starford/notely/internal/generator"
	"github.com/starford/notely/internal/identity"
	"github.com/starford/notely/internal/models"
	"github.com/starford/notely/internal/noteservice"
	"github.com/starford/notely/internal/tagservice"
	"github.com/starford/notely/internal/testutil"
)

const testSecret = "test-jwt-secret"

type stubGenerator struct {
	available bool
	tags      []string
	err       error
}

func (g stubGenerator) Available() bool { return g.available }

func (g stubGenerator) Summarize(context.Context, string) (string, error) {
	if !g.available {
		return "", apperr.ErrGeneratorUnavailable
	}
	return "short summary", g.err
}

func (g stubGenerator) Tags(context.Context, string) ([]string, error) {
	if !g.available {
		return nil, apperr.ErrGeneratorUnavailable
	}
	return g.tags, g.err
}

type stubSender struct {
	err   error
	email string
}

func (s *stubSender) SendMagicLink(_ context.Context, email string) error {
	s.email = email
	return s.err
}

type env struct {
	router http.Handler
	alice  string
	bob    string
}

// testEnv wires a temp SQLite store, the services and a JWT-protected router.
func testEnv(t *testing.T, gen generator.Generator) *env {
	t.Helper()
	return testEnvWith(t, gen, identity.NewJWTVerifier(testSecret, ""), &stubSender{})
}

func testEnvWith(t *testing.T, gen generator.Generator, v identity.Verifier, sender identity.MagicLinkSender) *env {
	t.Helper()
	db := testutil.TestDB(t)
	logger := testutil.Logger()
	notes := noteservice.NewService(db, gen, noteservice.DefaultConfig(), logger)
	tags := tagservice.NewService(db, gen, logger)
	return &env{
		router: NewRouter(notes, tags, sender, v, nil),
		alice:  testutil.SignToken(t, testSecret, "alice"),
		bob:    testutil.SignToken(t, testSecret, "bob"),
	}
}

func (e *env) do(t *testing.T, token, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) create(t *testing.T, token, title, content string, tags ...string) models.Note {
	t.Helper()
	w := e.do(t, token, http.MethodPost, "/notes", map[string]any{"title": title, "content": content, "tags": tags})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatal(err)
	}
	return n
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) models.NoteList {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", w.Code, w.Body.String())
	}
	var list models.NoteList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	return list
}

func TestCreateAndGetNote(t *testing.T) {
	e := testEnv(t, stubGenerator{})

	created := e.create(t, e.alice, "Hello", "World")
	if created.ID == "" || created.UserID != "alice" {
		t.Fatalf("created = %+v", created)
	}
	if created.Tags == nil {
		t.Error("tags should default to an empty list")
	}

	w := e.do(t, e.alice, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag header")
	}
	var got models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "Hello" || got.Content != "World" {
		t.Errorf("got = %+v", got)
	}
	if !strings.Contains(w.Body.String(), `"tags":[]`) {
		t.Errorf("tags should serialize as []: %s", w.Body.String())
	}
}

func TestCreateNote_Validation(t *testing.T) {
	e := testEnv(t, stubGenerator{})

	for _, body := range []map[string]any{
		{"title": "", "content": "x"},
		{"title": "x", "content": ""},
		{"content": "x"},
	} {
		w := e.do(t, e.alice, http.MethodPost, "/notes", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("create %v = %d, want 400", body, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+e.alice)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", w.Code)
	}
}

func TestCreateNote_SummaryForLongContent(t *testing.T) {
	e := testEnv(t, stubGenerator{available: true})

	short := e.create(t, e.alice, "short", strings.Repeat("a", 200))
	if short.Summary != "" {
		t.Errorf("200 chars should not be summarized, got %q", short.Summary)
	}
	long := e.create(t, e.alice, "long", strings.Repeat("a", 201))
	if long.Summary != "short summary" {
		t.Errorf("201 chars summary = %q", long.Summary)
	}
}

func TestListNotes_PaginationMeta(t *testing.T) {
	e := testEnv(t, stubGenerator{})
	for i := 0; i < 12; i++ {
		e.create(t, e.alice, fmt.Sprintf("note %d", i), "body")
	}

	list := decodeList(t, e.do(t, e.alice, http.MethodGet, "/notes?page=3&limit=5", nil))
	if len(list.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(list.Data))
	}
	if list.Meta.Total != 12 || list.Meta.Page != 3 || list.Meta.Limit != 5 || list.Meta.TotalPages != 3 {
		t.Errorf("meta = %+v", list.Meta)
	}

	list = decodeList(t, e.do(t, e.alice, http.MethodGet, "/notes", nil))
	if list.Meta.Limit != 10 || list.Meta.Page != 1 || len(list.Data) != 10 {
		t.Errorf("defaults: meta = %+v, len = %d", list.Meta, len(list.Data))
	}
	if list.Data[0].Title != "note 11" {
		t.Errorf("newest first: got %q", list.Data[0].Title)
	}
}

func TestListNotes_Empty(t *testing.T) {
	e := testEnv(t, stubGenerator{})

	w := e.do(t, e.alice, http.MethodGet, "/notes", nil)
	list := decodeList(t, w)
	if list.Meta.Total != 0 || list.Meta.TotalPages != 0 {
		t.Errorf("meta = %+v", list.Meta)
	}
	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Errorf("data should serialize as []: %s", w.Body.String())
	}
}

func TestListNotes_BadPaging(t *testing.T) {
	e := testEnv(t, stubGenerator{})

	for _, q := range []string{"page=0", "page=-1", "page=abc", "limit=0", "limit=x", "limit=101"} {
		w := e.do(t, e.alice, http.MethodGet, "/notes?"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", q, w.Code)
		}
	}
}

func TestListNotes_SearchAndTags(t *testing.T) {
	e := testEnv(t, stubGenerator{})
	e.create(t, e.alice, "Project plan", "milestones", "work")
	e.create(t, e.alice, "Groceries", "buy PROJECT supplies", "home")
	e.create(t, e.alice, "Holiday", "beach", "travel")

	list := decodeList(t, e.do(t, e.alice, http.MethodGet, "/notes?search=project", nil))
	if list.Meta.Total != 2 {
		t.Errorf("search total = %d, want 2", list.Meta.Total)
	}

	for _, q := range []string{
		"tags=work&tags=travel",
		"tags=" + url.QueryEscape(`["work","travel"]`),
		"tags=" + url.QueryEscape("work, travel"),
	} {
		list = decodeList(t, e.do(t, e.alice, http.MethodGet, "/notes?"+q, nil))
		if list.Meta.Total != 2 {
			t.Errorf("%s: total = %d, want 2", q, list.Meta.Total)
		}
	}

	list = decodeList(t, e.do(t, e.alice, http.MethodGet, "/notes?search=project&tags=home", nil))
	if list.Meta.Total != 1 || list.Data[0].Title != "Groceries" {
		t.Errorf("search+tags = %+v", list)
	}
}

func TestListNotes_SearchKeepsSpaces(t *testing.T) {
	e := testEnv(t, stubGenerator{})
	e.create(t, e.alice, "Project plan", "milestones", "work")
	e.create(t, e.alice, "Slides", "projections", "work")

	tests := []struct {
		search string
		want   int
	}{
		{"project", 2},
		{"project ", 1},
		{" ", 1},
	}
	for _, tt := range tests {
		list := decodeList(t, e.do(t, e.alice, http.MethodGet, "/notes?search="+url.QueryEscape(tt.search), nil))
		if list.Meta.Total != tt.want {
			t.Errorf("search %q: total = %d, want %d", tt.search, list.Meta.Total, tt.want)
		}
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{"a"}, []string{"a"}},
		{[]string{"a", "b"}, []string{"a", "b"}},
		{[]string{"a, b,,"}, []string{"a", "b"}},
		{[]string{`["a","b c"]`}, []string{"a", "b c"}},
		{[]string{"[a,b]"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := parseTags(tt.in)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("parseTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOwnerIsolation(t *testing.T) {
	e := testEnv(t, stubGenerator{})
	n := e.create(t, e.alice, "private", "alice only", "secret")

	if w := e.do(t, e.bob, http.MethodGet, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("foreign get = %d, want 404", w.Code)
	}
	if w := e.do(t, e.bob, http.MethodPatch, "/notes/"+n.ID, map[string]any{"title": "hijack"}); w.Code != http.StatusNotFound {
		t.Errorf("foreign patch = %d, want 404", w.Code)
	}
	if w := e.do(t, e.bob, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("foreign delete = %d, want 404", w.Code)
	}
	if list := decodeList(t, e.do(t, e.bob, http.MethodGet, "/notes", nil)); list.Meta.Total != 0 {
		t.Errorf("bob sees %d notes", list.Meta.Total)
	}

	w := e.do(t, e.bob, http.MethodGet, "/tags", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("bob tags = %s", w.Body.String())
	}

	w = e.do(t, e.alice, http.MethodGet, "/notes/"+n.ID, nil)
	var got models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "private" {
		t.Errorf("note was modified by foreign patch: %+v", got)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	e := testEnv(t, stubGenerator{})
	n := e.create(t, e.alice, "v1", "body")

	w := e.do(t, e.alice, http.MethodGet, "/notes/"+n.ID, nil)
	tag := w.Header().Get("ETag")

	w = e.do(t, e.alice, http.MethodPatch, "/notes/"+n.ID, map[string]any{"title": "v2"}, "If-Match", tag)
	if w.Code != http.StatusOK {
		t.Fatalf("update with current etag = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == tag {
		t.Error("ETag should change after update")
	}

	w = e.do(t, e.alice, http.MethodPatch, "/notes/"+n.ID, map[string]any{"title": "v3"}, "If-Match", tag)
	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("update with stale etag = %d, want 412", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	e := testEnv(t, stubGenerator{})
	n := e.create(t, e.alice, "title", "body", "a")

	w := e.do(t, e.alice, http.MethodPatch, "/notes/"+n.ID, map[string]any{"tags": []string{"b"}})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	var got models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "title" || got.Content != "body" {
		t.Errorf("unpatched fields changed: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "b" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("updatedAt %v before createdAt %v", got.UpdatedAt, got.CreatedAt)
	}

	if w := e.do(t, e.alice, http.MethodPatch, "/notes/"+n.ID, map[string]any{"title": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("blank title = %d, want 400", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	e := testEnv(t, stubGenerator{})

	w := e.do(t, e.alice, http.MethodPatch, "/notes/ghost", map[string]any{"title": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	e := testEnv(t, stubGenerator{})
	n := e.create(t, e.alice, "bye", "gone")

	w := e.do(t, e.alice, http.MethodDelete, "/notes/"+n.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d, want 200", w.Code)
	}
	var deleted models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &deleted)
	if deleted.ID != n.ID {
		t.Errorf("deleted id = %q", deleted.ID)
	}

	if w := e.do(t, e.alice, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	if w := e.do(t, e.alice, http.MethodGet, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListTags(t *testing.T) {
	e := testEnv(t, stubGenerator{})
	e.create(t, e.alice, "a", "x", "work", "idea")
	e.create(t, e.alice, "b", "x", "work")

	w := e.do(t, e.alice, http.MethodGet, "/tags", nil)
	var tags []string
	_ = json.Unmarshal(w.Body.Bytes(), &tags)
	if fmt.Sprint(tags) != "[idea work]" {
		t.Errorf("tags = %v", tags)
	}
}

func TestGenerateTags(t *testing.T) {
	long := strings.Repeat("content ", 10)

	tests := []struct {
		name    string
		gen     stubGenerator
		content string
		status  int
		body    string
	}{
		{"missing content", stubGenerator{available: true}, "", http.StatusBadRequest, "content is required"},
		{"too short", stubGenerator{available: true}, strings.Repeat("a", 49), http.StatusBadRequest, "at least 50 characters"},
		{"unavailable", stubGenerator{}, long, http.StatusOK, "[]"},
		{"failure", stubGenerator{available: true, err: errors.New("boom")}, long, http.StatusInternalServerError, "failed to generate tags"},
		{"ok", stubGenerator{available: true, tags: []string{"go", "notes", "extra"}}, long, http.StatusOK, `["go","notes"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEnv(t, tt.gen)
			w := e.do(t, e.alice, http.MethodPost, "/tags/generate", map[string]string{"content": tt.content})
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body = %s, want to contain %s", w.Body.String(), tt.body)
			}
		})
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, stubGenerator{})

	w := e.do(t, "", http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unauthorized") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, stubGenerator{})

	forged := testutil.SignToken(t, "other-secret", "alice")
	for _, tok := range []string{"garbage", forged} {
		if w := e.do(t, tok, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("token %q = %d, want 401", tok, w.Code)
		}
	}
}

func TestAuthMiddleware_StaticToken(t *testing.T) {
	e := testEnvWith(t, stubGenerator{}, identity.StaticToken{Token: "secret123", Owner: "me"}, &stubSender{})

	w := e.do(t, "secret123", http.MethodPost, "/notes", map[string]string{"title": "t", "content": "c"})
	if w.Code != http.StatusCreated {
		t.Fatalf("authed create = %d, want 201", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"userId":"me"`) {
		t.Errorf("owner not taken from static token: %s", w.Body.String())
	}
	if w := e.do(t, "wrong", http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong static token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnvWith(t, stubGenerator{}, identity.FixedOwner{Owner: "dev"}, &stubSender{})

	if w := e.do(t, "", http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestSendToken(t *testing.T) {
	sender := &stubSender{}
	e := testEnvWith(t, stubGenerator{}, identity.FixedOwner{Owner: "dev"}, sender)

	w := e.do(t, "", http.MethodPost, "/auth/send-token", map[string]string{"email": " me@example.com "})
	if w.Code != http.StatusOK {
		t.Fatalf("send-token = %d", w.Code)
	}
	var resp SendTokenResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || sender.email != "me@example.com" {
		t.Errorf("resp = %+v, email = %q", resp, sender.email)
	}

	sender.err = &identity.ProviderError{Status: 429, Message: "rate limited"}
	w = e.do(t, "", http.MethodPost, "/auth/send-token", map[string]string{"email": "me@example.com"})
	resp = SendTokenResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Success || resp.Message != "rate limited" {
		t.Errorf("provider error resp = %+v", resp)
	}

	if w := e.do(t, "", http.MethodPost, "/auth/send-token", map[string]string{"email": "not-an-email"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid email = %d, want 400", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	db := testutil.TestDB(t)
	logger := testutil.Logger()
	notes := noteservice.NewService(db, nil, noteservice.DefaultConfig(), logger)
	tags := tagservice.NewService(db, nil, logger)

	var sawOwner string
	sse := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawOwner = identity.OwnerFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	router := NewRouter(notes, tags, nil, identity.NewJWTVerifier(testSecret, ""), sse)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req = httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+testutil.SignToken(t, testSecret, "alice"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || sawOwner != "alice" {
		t.Errorf("SSE with token = %d, owner %q", w.Code, sawOwner)
	}
}
