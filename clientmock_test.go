package clientmock_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sophialabs/clientmock"
)

func get(t *testing.T, m *clientmock.Mock, url string) *http.Response {
	t.Helper()
	resp, err := m.Client().Get(url)
	require.NoError(t, err)
	return resp
}

func bodyOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func post(t *testing.T, m *clientmock.Mock, url, contentType, body string) (*http.Response, error) {
	t.Helper()
	return m.Client().Post(url, contentType, strings.NewReader(body))
}

func TestMock_SuccessiveResponses(t *testing.T) {
	m := clientmock.New()
	m.OnGet("http://localhost/foo").
		DoReturn("first").
		DoReturn("second").
		DoReturn("third")

	var got []string
	for range 5 {
		got = append(got, bodyOf(t, get(t, m, "http://localhost/foo")))
	}
	assert.Equal(t, []string{"first", "second", "third", "third", "third"}, got)
}

func TestMock_LastRegisteredRuleWins(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/foo").DoReturn("first rule")
	m.OnGet("").DoReturn("catch all")
	m.OnGet("/foo").DoReturn("last rule")

	assert.Equal(t, "last rule", bodyOf(t, get(t, m, "http://localhost/foo")))
	assert.Equal(t, "catch all", bodyOf(t, get(t, m, "http://localhost/bar")))
}

func TestMock_ParameterSets(t *testing.T) {
	m := clientmock.New(clientmock.WithDefaultHost("http://localhost"))
	m.OnPost("/login?a=1").DoReturnStatus(400)
	m.OnPost("/login?a=1&b=2").DoReturnStatus(200)

	resp, err := post(t, m, "http://localhost/login?a=1", "text/plain", "")
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	resp, err = post(t, m, "http://localhost/login?b=2&a=1", "text/plain", "")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	_, err = post(t, m, "http://localhost/login", "text/plain", "")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)
}

func TestMock_ParameterConditions(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/search").
		WithParameter("tag", "b", "a").
		WithParameterMatching("page", clientmock.MustRegex(`^\d+$`)).
		DoReturn("found")

	assert.Equal(t, "found", bodyOf(t, get(t, m, "http://h/search?tag=a&tag=b&page=3")))

	_, err := m.Client().Get("http://h/search?tag=a&page=3")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)

	_, err = m.Client().Get("http://h/search?tag=a&tag=b&page=3&extra=1")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule, "unlisted parameters do not match")
}

func TestMock_NoMatchingRule(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/foo").DoReturn("foo")

	_, err := m.Client().Get("http://localhost/bar?x=1")
	require.Error(t, err)
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)

	var nmr *clientmock.NoMatchingRuleError
	require.ErrorAs(t, err, &nmr)
	assert.Equal(t, http.MethodGet, nmr.Method)
	assert.Equal(t, "http://localhost/bar?x=1", nmr.URL)
}

func TestMock_DoThrowReturnsConfiguredError(t *testing.T) {
	boom := errors.New("connection reset")
	m := clientmock.New()
	m.OnGet("/flaky").DoThrow(boom).DoReturn("recovered")

	_, err := m.Client().Get("http://localhost/flaky")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, clientmock.ErrNoMatchingRule)

	assert.Equal(t, "recovered", bodyOf(t, get(t, m, "http://localhost/flaky")))
}

func TestMock_RoundTripReturnsErrorUnwrapped(t *testing.T) {
	boom := errors.New("boom")
	m := clientmock.New()
	m.OnGet("").DoThrow(boom)

	req, err := http.NewRequest(http.MethodGet, "http://localhost/x", nil)
	require.NoError(t, err)
	_, err = m.RoundTrip(req)
	assert.Same(t, boom, err)
}

func TestMock_Reset(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/foo").DoReturn("one").DoReturn("two")
	assert.Equal(t, "one", bodyOf(t, get(t, m, "http://localhost/foo")))

	m.Reset()

	assert.Empty(t, m.Requests())
	_, err := m.Client().Get("http://localhost/foo")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)

	m.OnGet("/foo").DoReturn("one").DoReturn("two")
	assert.Equal(t, "one", bodyOf(t, get(t, m, "http://localhost/foo")), "consumption starts over")
}

func TestMock_DefaultHost(t *testing.T) {
	m := clientmock.New(clientmock.WithDefaultHost("http://localhost:8080"))
	m.OnGet("/login").DoReturn("default host")
	m.OnGet("http://other.example.com/login").DoReturn("explicit host")

	assert.Equal(t, "default host", bodyOf(t, get(t, m, "http://localhost:8080/login")))
	assert.Equal(t, "explicit host", bodyOf(t, get(t, m, "http://other.example.com/login")))

	_, err := m.Client().Get("http://localhost:9090/login")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)
}

func TestMock_HostAndPathConditions(t *testing.T) {
	m := clientmock.New()
	m.OnGet("").WithHost("localhost").WithPath("/login").DoReturn("joined")
	m.OnGet("").WithHost("https://secure.example.com").WithPathRegex(`^/v\d+/`).DoReturn("secure")

	assert.Equal(t, "joined", bodyOf(t, get(t, m, "http://localhost/login")))
	assert.Equal(t, "secure", bodyOf(t, get(t, m, "https://secure.example.com/v2/users")))

	_, err := m.Client().Get("http://otherhost/login")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)
}

func TestMock_Reference(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/doc").WithReference("section").DoReturn("section")

	req, err := http.NewRequest(http.MethodGet, "http://localhost/doc#section", nil)
	require.NoError(t, err)
	resp, err := m.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "section", bodyOf(t, resp))
}

func TestMock_Headers(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/me").
		WithHeader("Accept", "application/json").
		WithHeaderMatching("authorization", clientmock.HasPrefix("Bearer ")).
		DoReturnJSON(`{"user":"john"}`)

	req, err := http.NewRequest(http.MethodGet, "http://localhost/me", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer token")

	resp, err := m.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, clientmock.ContentTypeJSON, resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"user":"john"}`, bodyOf(t, resp))

	req.Header.Set("Authorization", "Basic abc")
	_, err = m.Client().Do(req)
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)
}

func TestMock_BodyConditions(t *testing.T) {
	m := clientmock.New()
	m.OnPost("/users").WithBodyJSONPath("$.name", clientmock.Equal("Alice")).DoReturn("jsonpath")
	m.OnPost("/orders").WithBodyXPath("//order/id", clientmock.Equal("42")).DoReturnXML("<ok/>")
	m.OnPost("/items").WithBodyJSONField("item.count", clientmock.Equal("3")).DoReturn("gjson")
	m.OnPost("/typed").WithBodySchema(`{"type":"object","required":["id"]}`).DoReturn("schema")
	m.OnPost("/expr").WithExpr(`json.amount > 100 && header("X-Tenant") == "acme"`).DoReturn("expr")
	m.OnPost("/text").WithBody(clientmock.Contains("hello")).DoReturn("text")
	require.NoError(t, m.Err())

	cases := []struct {
		url, body, want string
	}{
		{"http://h/users", `{"name":"Alice"}`, "jsonpath"},
		{"http://h/orders", `<order><id>42</id></order>`, "<ok/>"},
		{"http://h/items", `{"item":{"count":3}}`, "gjson"},
		{"http://h/typed", `{"id":1}`, "schema"},
		{"http://h/text", `say hello`, "text"},
	}
	for _, tc := range cases {
		resp, err := post(t, m, tc.url, "application/json", tc.body)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.want, bodyOf(t, resp), tc.url)
	}

	req, err := http.NewRequest(http.MethodPost, "http://h/expr", strings.NewReader(`{"amount":150}`))
	require.NoError(t, err)
	req.Header.Set("X-Tenant", "acme")
	resp, err := m.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, "expr", bodyOf(t, resp))

	for _, tc := range []struct{ url, body string }{
		{"http://h/users", `{"name":"Bob"}`},
		{"http://h/orders", `not xml`},
		{"http://h/items", `{"item":{}}`},
		{"http://h/typed", `{"name":"x"}`},
		{"http://h/text", `goodbye`},
	} {
		_, err := post(t, m, tc.url, "application/json", tc.body)
		assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule, tc.url)
	}
}

func TestMock_AbsentAndEmptyBody(t *testing.T) {
	m := clientmock.New()
	m.OnPost("/empty").WithBody(clientmock.Equal("")).DoReturn("empty")

	resp, err := post(t, m, "http://h/empty", "text/plain", "")
	require.NoError(t, err)
	assert.Equal(t, "empty", bodyOf(t, resp))

	req, err := http.NewRequest(http.MethodPost, "http://h/empty", nil)
	require.NoError(t, err)
	_, err = m.RoundTrip(req)
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule, "an absent body is not an empty one")

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.True(t, reqs[0].HasBody())
	assert.False(t, reqs[1].HasBody())
}

func TestMock_CustomCondition(t *testing.T) {
	m := clientmock.New()
	m.OnPost("").
		With(clientmock.Custom("has token", func(r *clientmock.Request) bool {
			return r.Header.Get("X-Token") != ""
		})).
		DoReturn("ok")

	req, err := http.NewRequest(http.MethodPost, "http://h/any", nil)
	require.NoError(t, err)
	_, err = m.Client().Do(req)
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)

	req.Header.Set("X-Token", "t")
	resp, err := m.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, "ok", bodyOf(t, resp))
}

func TestMock_ResponseDecorations(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/decorated").
		DoReturnWithStatus(201, `{"id":1}`).
		WithHeader("X-Trace", "abc").
		WithJSONField("name", "john").
		DoReturnStatus(200).
		WithStatus(204)

	resp := get(t, m, "http://h/decorated")
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "201 Created", resp.Status)
	assert.Equal(t, "abc", resp.Header.Get("X-Trace"))
	assert.JSONEq(t, `{"id":1,"name":"john"}`, bodyOf(t, resp))

	resp = get(t, m, "http://h/decorated")
	assert.Equal(t, 204, resp.StatusCode)
	assert.Empty(t, bodyOf(t, resp))
}

func TestMock_DoAction(t *testing.T) {
	m := clientmock.New()
	m.OnPost("/echo").DoAction(clientmock.ActionFunc(func(d *clientmock.ResponseDraft) error {
		d.Body = append([]byte("echo: "), d.Request.Body...)
		return nil
	}))

	resp, err := post(t, m, "http://h/echo", "text/plain", "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", bodyOf(t, resp))
}

func TestMock_DoReturnCharset(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/latin").DoReturnCharset("zażółć ü", "ISO-8859-2")
	require.NoError(t, m.Err())

	body := bodyOf(t, get(t, m, "http://h/latin"))
	assert.Equal(t, []byte{'z', 'a', 0xBF, 0xF3, 0xB3, 0xE6, ' ', 0xFC}, []byte(body))
}

func TestMock_DoReturnCharset_Unknown(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/bad").DoReturnCharset("x", "no-such-charset")

	assert.Error(t, m.Err())
	_, err := m.Client().Get("http://h/bad")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)
}

func TestMock_DoReturnJSONCharset(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/user").DoReturnJSONCharset(`{"name":"Łukasz"}`, "ISO-8859-2")
	require.NoError(t, m.Err())

	resp := get(t, m, "http://h/user")
	assert.Equal(t, "application/json; charset=ISO-8859-2", resp.Header.Get("Content-Type"))
	assert.Equal(t, append([]byte(`{"name":"`), 0xA3, 'u', 'k', 'a', 's', 'z', '"', '}'), []byte(bodyOf(t, resp)))
}

func TestMock_DoReturnXMLCharset(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/doc").
		DoReturnXMLCharset("<p>ü</p>", "ISO-8859-1").
		DoReturnXMLCharset("<p>ü</p>", "UTF-8")
	require.NoError(t, m.Err())

	first := get(t, m, "http://h/doc")
	assert.Equal(t, "application/xml; charset=ISO-8859-1", first.Header.Get("Content-Type"))
	assert.Equal(t, []byte{'<', 'p', '>', 0xFC, '<', '/', 'p', '>'}, []byte(bodyOf(t, first)))

	second := get(t, m, "http://h/doc")
	assert.Equal(t, "application/xml; charset=UTF-8", second.Header.Get("Content-Type"))
	assert.Equal(t, "<p>ü</p>", bodyOf(t, second))
}

func TestMock_DoReturnJSONCharset_Unknown(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/bad").DoReturnJSONCharset("{}", "no-such-charset")

	assert.Error(t, m.Err())
}

func TestMock_DoTemplate(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := clientmock.New(clientmock.WithClock(func() time.Time { return fixed }))
	m.OnGet("/hello").DoTemplate("expr", `hello ${queryParam("name")} at ${now()}`)
	m.OnGet("/jinja").DoTemplate("jinja2", `{{ method }} {{ path }}`)
	require.NoError(t, m.Err())

	assert.Equal(t, "hello john at 2024-01-02T03:04:05Z", bodyOf(t, get(t, m, "http://h/hello?name=john")))
	assert.Equal(t, "GET /jinja", bodyOf(t, get(t, m, "http://h/jinja")))
}

func TestMock_DoTemplate_UnknownEngine(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/x").DoTemplate("mustache", "{{x}}")
	assert.Error(t, m.Err())
}

func TestMock_MalformedPattern(t *testing.T) {
	m := clientmock.New()
	m.OnGet("no-slash").DoReturn("never")
	m.OnGet("/ok").DoReturn("ok")
	m.OnGet("/bad-regex").WithHeaderRegex("X", "(").DoReturn("never")

	err := m.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, clientmock.ErrMalformedPattern)

	var mpe *clientmock.MalformedPatternError
	require.ErrorAs(t, err, &mpe)
	assert.Equal(t, "no-slash", mpe.Pattern)

	assert.Equal(t, "ok", bodyOf(t, get(t, m, "http://h/ok")))
	_, err = m.Client().Get("http://h/bad-regex")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)
}

func TestMock_NoResponsesDefaultsTo200(t *testing.T) {
	m := clientmock.New()
	m.OnDelete("/thing")

	req, err := http.NewRequest(http.MethodDelete, "http://h/thing", nil)
	require.NoError(t, err)
	resp, err := m.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, bodyOf(t, resp))
}

func TestMock_MethodShortcuts(t *testing.T) {
	m := clientmock.New()
	m.OnPut("/r").DoReturn("put")
	m.OnPatch("/r").DoReturn("patch")
	m.OnOptions("/r").DoReturn("options")
	m.OnHead("/r").DoReturnStatus(204)
	m.On("PURGE", "/r").DoReturn("purge")

	for _, method := range []string{"PUT", "PATCH", "OPTIONS", "PURGE"} {
		req, err := http.NewRequest(method, "http://h/r", nil)
		require.NoError(t, err)
		resp, err := m.Client().Do(req)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(method), bodyOf(t, resp))
	}
	resp, err := m.Client().Head("http://h/r")
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestMock_SendAsync(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/async").DoReturn("async")

	req, err := http.NewRequest(http.MethodGet, "http://h/async", nil)
	require.NoError(t, err)

	res, ok := <-m.SendAsync(req)
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, "async", bodyOf(t, res.Response))

	req, err = http.NewRequest(http.MethodGet, "http://h/missing", nil)
	require.NoError(t, err)
	res = <-m.SendAsync(req)
	assert.ErrorIs(t, res.Err, clientmock.ErrNoMatchingRule)
}

func TestMock_DebugWriter(t *testing.T) {
	var sb strings.Builder
	m := clientmock.New(clientmock.WithDebugWriter(&sb))
	m.OnGet("/foo").Named("foo").DoReturn("foo")

	_ = get(t, m, "http://localhost/foo")
	assert.Empty(t, sb.String(), "matched requests are not reported outside debug mode")

	_, _ = m.Client().Get("http://localhost/bar")
	assert.Contains(t, sb.String(), "Request: GET http://localhost/bar")
	assert.Contains(t, sb.String(), "Rule 1 (foo):")

	sb.Reset()
	m.DebugOn()
	_ = get(t, m, "http://localhost/foo")
	assert.Contains(t, sb.String(), "Request: GET http://localhost/foo")

	sb.Reset()
	m.DebugOff()
	_ = get(t, m, "http://localhost/foo")
	assert.Empty(t, sb.String())
}

func TestMock_DebugOnWithoutObserver(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/foo").DoReturn("ok")

	m.DebugOn()
	assert.Equal(t, "ok", bodyOf(t, get(t, m, "http://h/foo")))
	_, err := m.Client().Get("http://h/missing")
	assert.ErrorIs(t, err, clientmock.ErrNoMatchingRule)
}

func TestMock_DebuggerFunc(t *testing.T) {
	var entries []clientmock.DebugEntry
	m := clientmock.New(clientmock.WithDebugger(clientmock.DebuggerFunc(func(e clientmock.DebugEntry) {
		entries = append(entries, e)
	})))
	m.OnGet("/foo").DoReturn("foo")

	_, _ = m.Client().Get("http://localhost/nope")
	require.Len(t, entries, 1)
	assert.False(t, entries[0].HasMatch())
	assert.Equal(t, "http://localhost/nope", entries[0].URL)
}

func TestMock_Concurrent(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/seq").DoReturnStatus(201).DoReturnStatus(202)

	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := map[int]int{}
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := m.Client().Get("http://h/seq")
			if err != nil {
				return
			}
			resp.Body.Close()
			mu.Lock()
			counts[resp.StatusCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[int]int{201: 1, 202: 9}, counts)
	assert.NoError(t, m.Verify().Get("/seq").CalledTimes(10))
}

func TestMock_RegisterWhileDispatching(t *testing.T) {
	m := clientmock.New()
	m.OnGet("/x").DoReturn("base")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			req, err := http.NewRequest(http.MethodGet, "http://h/x", nil)
			if !assert.NoError(t, err) {
				return
			}
			resp, err := m.RoundTrip(req)
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}
	}()

	for range 2000 {
		m.OnGet("/x").DoReturn("a").WithHeader("X-Step", "1").DoReturn("b")
	}
	close(done)
	wg.Wait()

	require.NoError(t, m.Err())
	m.OnGet("/x").DoReturn("a").DoReturn("b")
	assert.Equal(t, "a", bodyOf(t, get(t, m, "http://h/x")))
	assert.Equal(t, "b", bodyOf(t, get(t, m, "http://h/x")))
}
