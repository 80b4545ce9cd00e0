package rule_test

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/urlmatch"
)

func newRequest(t *testing.T, method, raw string, body []byte) *rule.Request {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return &rule.Request{Method: method, URL: u, Header: make(http.Header), Body: body}
}

func build(t *testing.T, b *rule.Builder) *rule.Rule {
	t.Helper()
	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func bodyOf(t *testing.T, r *rule.Rule, req *rule.Request) string {
	t.Helper()
	resp, err := r.Produce(req)
	require.NoError(t, err)
	return string(resp.Body)
}

func TestRule_SuccessiveBundlesStickOnLast(t *testing.T) {
	b := rule.NewBuilder(http.MethodGet)
	for _, body := range []string{"R1", "R2", "R3"} {
		b.AddActionBundle(rule.SetBody([]byte(body)))
	}
	r := build(t, b)
	req := newRequest(t, "GET", "http://localhost/foo", nil)

	var got []string
	for range 5 {
		got = append(got, bodyOf(t, r, req))
	}
	assert.Equal(t, []string{"R1", "R2", "R3", "R3", "R3"}, got)
	assert.Equal(t, 1, r.Pending())
}

func TestRule_SingleBundleAlwaysReturned(t *testing.T) {
	r := build(t, rule.NewBuilder("GET").AddActionBundle(rule.SetBody([]byte("only")), rule.SetStatus(201)))
	req := newRequest(t, "GET", "http://localhost/", nil)

	for range 3 {
		resp, err := r.Produce(req)
		require.NoError(t, err)
		assert.Equal(t, 201, resp.Status)
		assert.Equal(t, "only", string(resp.Body))
	}
}

func TestRule_NoBundlesDefaultsTo200(t *testing.T) {
	r := build(t, rule.NewBuilder("GET"))

	resp, err := r.Produce(newRequest(t, "GET", "http://localhost/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, resp.Body)
	assert.Empty(t, resp.Header)
}

func TestRule_FailBundleIsPerCall(t *testing.T) {
	boom := errors.New("boom")
	b := rule.NewBuilder("GET").
		AddActionBundle(rule.SetBody([]byte("bar"))).
		AddActionBundle(rule.SetStatus(300)).
		AddActionBundle(rule.Fail(boom))
	r := build(t, b)
	req := newRequest(t, "GET", "http://localhost/", nil)

	assert.Equal(t, "bar", bodyOf(t, r, req))

	resp, err := r.Produce(req)
	require.NoError(t, err)
	assert.Equal(t, 300, resp.Status)

	for range 2 {
		_, err = r.Produce(req)
		assert.Same(t, boom, err)
	}
}

func TestRule_ActionsApplyInOrder(t *testing.T) {
	b := rule.NewBuilder("GET").
		AddActionBundle(rule.SetBody([]byte("a"))).
		AddAction(rule.SetHeader("X-Seq", "1")).
		AddAction(rule.AddHeader("X-Seq", "2")).
		AddAction(rule.SetStatus(202)).
		AddActionBundle(rule.SetBody([]byte("b"))).
		AddAction(rule.SetHeader("X-Other", "y"))
	r := build(t, b)
	req := newRequest(t, "GET", "http://localhost/", nil)

	first, err := r.Produce(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, first.Header.Values("X-Seq"))
	assert.Equal(t, 202, first.Status)

	second, err := r.Produce(req)
	require.NoError(t, err)
	assert.Equal(t, "b", string(second.Body))
	assert.Empty(t, second.Header.Get("X-Seq"))
	assert.Equal(t, "y", second.Header.Get("X-Other"))
	assert.Equal(t, http.StatusOK, second.Status)
}

func TestBuilder_AddActionWithoutBundleStartsOne(t *testing.T) {
	b := rule.NewBuilder("GET").AddAction(rule.SetStatus(404))
	assert.Equal(t, 1, b.Bundles())

	resp, err := build(t, b).Produce(newRequest(t, "GET", "http://h/", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
}

func TestBuilder_BuildIsIndependent(t *testing.T) {
	b := rule.NewBuilder("GET").AddActionBundle(rule.SetBody([]byte("one")))
	r := build(t, b)
	b.AddActionBundle(rule.SetBody([]byte("two")))

	assert.Equal(t, 1, r.Pending())
}

func TestBuilder_RecordsFirstError(t *testing.T) {
	b := rule.NewBuilder("GET").AddURLPattern("not a url").AddHostCondition("")

	require.Error(t, b.Err())
	assert.ErrorIs(t, b.Err(), urlmatch.ErrMalformedPattern)
	var mpe *urlmatch.MalformedPatternError
	require.ErrorAs(t, b.Err(), &mpe)
	assert.Equal(t, "not a url", mpe.Pattern)

	_, err := b.Build()
	assert.ErrorIs(t, err, urlmatch.ErrMalformedPattern)
}

func TestRule_Matches(t *testing.T) {
	b := rule.NewBuilder("POST").
		AddURLPattern("http://localhost/login").
		AddParameterCondition("user", match.InAnyOrder("john")).
		AddCondition(rule.Header("content-type", match.HasPrefix("application/json"))).
		AddCondition(rule.Body(match.Contains(`"pass"`)))
	r := build(t, b)

	ok := newRequest(t, "POST", "http://localhost/login?user=john", []byte(`{"pass":"x"}`))
	ok.Header.Add("Content-Type", "text/plain")
	ok.Header.Add("Content-Type", "application/json; charset=UTF-8")
	assert.True(t, r.Matches(ok))

	wrongMethod := newRequest(t, "GET", "http://localhost/login?user=john", []byte(`{"pass":"x"}`))
	wrongMethod.Header = ok.Header
	assert.False(t, r.Matches(wrongMethod))

	noBody := newRequest(t, "POST", "http://localhost/login?user=john", nil)
	noBody.Header = ok.Header
	assert.False(t, r.Matches(noBody))

	noHeader := newRequest(t, "POST", "http://localhost/login?user=john", []byte(`{"pass":"x"}`))
	assert.False(t, r.Matches(noHeader))
}

func TestRule_Report(t *testing.T) {
	r := build(t, rule.NewBuilder("GET").SetID("users").AddURLPattern("/users"))
	report := r.Report(2, newRequest(t, "POST", "http://localhost/users", nil))

	assert.Equal(t, 2, report.Index)
	assert.Equal(t, "users", report.ID)
	assert.False(t, report.Matched)
	require.Len(t, report.Conditions, 1)
	assert.Equal(t, "HTTP method is GET", report.Conditions[0].Description)
	assert.False(t, report.Conditions[0].Matched)
	require.Len(t, report.URL, 5)
	for _, c := range report.URL {
		assert.True(t, c.Matched, c.Description)
	}
}

func TestConditions(t *testing.T) {
	req := newRequest(t, "get", "http://h/", []byte("caf\xe9"))
	req.Header.Set("X-Token", "abc")

	assert.True(t, rule.Method("GET").Matches(req))
	assert.Equal(t, "HTTP method is PUT", rule.Method("put").Describe())

	h := rule.Header("x-token", match.Equal("abc"))
	assert.True(t, h.Matches(req))
	assert.Equal(t, `header X-Token is "abc"`, h.Describe())

	assert.True(t, rule.Body(match.HasPrefix("caf")).Matches(req))
	assert.True(t, rule.Body(match.Empty()).Matches(newRequest(t, "GET", "http://h/", nil)))
	assert.False(t, rule.Body(match.Equal("")).Matches(newRequest(t, "GET", "http://h/", nil)))
	assert.True(t, rule.Body(match.Equal("")).Matches(newRequest(t, "GET", "http://h/", []byte{})))

	custom := rule.Func("", func(r *rule.Request) bool { return strings.HasSuffix(r.URL.Host, "h") })
	assert.True(t, custom.Matches(req))
	assert.Equal(t, "custom condition", custom.Describe())
	assert.False(t, rule.Func("nil", nil).Matches(req))
}

type stubRenderer struct {
	got rule.RenderContext
}

func (s *stubRenderer) Render(ctx rule.RenderContext) ([]byte, error) {
	s.got = ctx
	return []byte("rendered " + ctx.QueryParams["id"]), nil
}

func TestRenderBody(t *testing.T) {
	stub := &stubRenderer{}
	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	r := build(t, rule.NewBuilder("GET").AddActionBundle(rule.RenderBody(stub, func() time.Time { return now })))

	req := newRequest(t, "GET", "http://h/items?id=7", nil)
	req.Header.Set("x-mode", "debug")

	assert.Equal(t, "rendered 7", bodyOf(t, r, req))
	assert.Equal(t, "/items", stub.got.Path)
	assert.Equal(t, "debug", stub.got.Headers["X-Mode"])
	assert.Equal(t, "2025-01-15T10:30:00Z", stub.got.Now)
}

func TestFail_Nil(t *testing.T) {
	r := build(t, rule.NewBuilder("GET").AddActionBundle(rule.Fail(nil)))
	_, err := r.Produce(newRequest(t, "GET", "http://h/", nil))
	assert.ErrorIs(t, err, rule.ErrNilConfiguredError)
}
