package clientmock

import (
	"net/http"

	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/infrastructure/services"
)

// Content types set by DoReturnJSON and DoReturnXML.
const (
	ContentTypeJSON = services.ContentTypeJSON
	ContentTypeXML  = services.ContentTypeXML
)

// ResponseBuilder configures the successive responses of a rule. Every Do
// call appends a response; the last one is repeated once the others have
// been consumed. With calls decorate the most recent response.
type ResponseBuilder struct {
	b    *rule.Builder
	mock *Mock
}

// DoReturn appends a 200 response with body.
func (r *ResponseBuilder) DoReturn(body string) *ResponseBuilder {
	return r.DoReturnWithStatus(http.StatusOK, body)
}

// DoReturnWithStatus appends a response with status and body.
func (r *ResponseBuilder) DoReturnWithStatus(status int, body string) *ResponseBuilder {
	r.b.AddActionBundle(rule.SetBody([]byte(body)), rule.SetStatus(status))
	return r
}

// DoReturnCharset appends a 200 response whose body is body encoded in the
// named IANA charset. An unknown charset is recorded as a registration error.
func (r *ResponseBuilder) DoReturnCharset(body, charset string) *ResponseBuilder {
	encoded, err := services.EncodeCharset([]byte(body), charset)
	if err != nil {
		r.b.Fail(err)
		return r
	}
	r.b.AddActionBundle(rule.SetBody(encoded), rule.SetStatus(http.StatusOK))
	return r
}

// DoReturnStatus appends an empty-bodied response with status.
func (r *ResponseBuilder) DoReturnStatus(status int) *ResponseBuilder {
	r.b.AddActionBundle(rule.SetStatus(status))
	return r
}

// DoReturnJSON appends a 200 response with a JSON body.
func (r *ResponseBuilder) DoReturnJSON(body string) *ResponseBuilder {
	return r.doReturnTyped(body, "", ContentTypeJSON)
}

// DoReturnJSONCharset appends a 200 response with a JSON body encoded in
// charset. The Content-Type header names the same charset.
func (r *ResponseBuilder) DoReturnJSONCharset(body, charset string) *ResponseBuilder {
	return r.doReturnTyped(body, charset, ContentTypeJSON)
}

// DoReturnXML appends a 200 response with an XML body.
func (r *ResponseBuilder) DoReturnXML(body string) *ResponseBuilder {
	return r.doReturnTyped(body, "", ContentTypeXML)
}

// DoReturnXMLCharset appends a 200 response with an XML body encoded in
// charset. The Content-Type header names the same charset.
func (r *ResponseBuilder) DoReturnXMLCharset(body, charset string) *ResponseBuilder {
	return r.doReturnTyped(body, charset, ContentTypeXML)
}

func (r *ResponseBuilder) doReturnTyped(body, charset, contentType string) *ResponseBuilder {
	encoded, err := services.EncodeCharset([]byte(body), charset)
	if err != nil {
		r.b.Fail(err)
		return r
	}
	r.b.AddActionBundle(
		rule.SetBody(encoded),
		rule.SetStatus(http.StatusOK),
		rule.SetHeader("Content-Type", services.WithCharset(contentType, charset)),
	)
	return r
}

// DoThrow appends a response that fails the request with err. The error
// reaches the caller unchanged, wrapped by http.Client in a *url.Error.
func (r *ResponseBuilder) DoThrow(err error) *ResponseBuilder {
	r.b.AddActionBundle(rule.Fail(err))
	return r
}

// DoAction appends a response built by a custom action.
func (r *ResponseBuilder) DoAction(a Action) *ResponseBuilder {
	r.b.AddActionBundle(a)
	return r
}

// DoTemplate appends a 200 response whose body is rendered per request by
// the named template engine ("expr" or "jinja2"). A template that fails to
// compile is recorded as a registration error.
func (r *ResponseBuilder) DoTemplate(engine, source string) *ResponseBuilder {
	renderer, err := r.mock.templates.Compile(engine, r.b.ID(), source)
	if err != nil {
		r.b.Fail(err)
		return r
	}
	r.b.AddActionBundle(rule.RenderBody(renderer, r.mock.now))
	return r
}

// WithHeader sets a header on the most recent response.
func (r *ResponseBuilder) WithHeader(name, value string) *ResponseBuilder {
	r.b.AddAction(rule.SetHeader(name, value))
	return r
}

// WithStatus overrides the status of the most recent response.
func (r *ResponseBuilder) WithStatus(status int) *ResponseBuilder {
	r.b.AddAction(rule.SetStatus(status))
	return r
}

// WithJSONField sets the value at the sjson path in the most recent
// response's body, starting from an empty object when the body is empty.
func (r *ResponseBuilder) WithJSONField(path string, value any) *ResponseBuilder {
	r.b.AddAction(services.SetJSONField(path, value))
	return r
}

// WithAction adds a custom action to the most recent response.
func (r *ResponseBuilder) WithAction(a Action) *ResponseBuilder {
	r.b.AddAction(a)
	return r
}

// DoReturn appends a 200 response with body.
func (r *RuleBuilder) DoReturn(body string) *ResponseBuilder {
	return r.responses().DoReturn(body)
}

// DoReturnWithStatus appends a response with status and body.
func (r *RuleBuilder) DoReturnWithStatus(status int, body string) *ResponseBuilder {
	return r.responses().DoReturnWithStatus(status, body)
}

// DoReturnCharset appends a 200 response with body encoded in charset.
func (r *RuleBuilder) DoReturnCharset(body, charset string) *ResponseBuilder {
	return r.responses().DoReturnCharset(body, charset)
}

// DoReturnStatus appends an empty-bodied response with status.
func (r *RuleBuilder) DoReturnStatus(status int) *ResponseBuilder {
	return r.responses().DoReturnStatus(status)
}

// DoReturnJSON appends a 200 response with a JSON body.
func (r *RuleBuilder) DoReturnJSON(body string) *ResponseBuilder {
	return r.responses().DoReturnJSON(body)
}

// DoReturnJSONCharset appends a 200 response with a JSON body encoded in charset.
func (r *RuleBuilder) DoReturnJSONCharset(body, charset string) *ResponseBuilder {
	return r.responses().DoReturnJSONCharset(body, charset)
}

// DoReturnXML appends a 200 response with an XML body.
func (r *RuleBuilder) DoReturnXML(body string) *ResponseBuilder {
	return r.responses().DoReturnXML(body)
}

// DoReturnXMLCharset appends a 200 response with an XML body encoded in charset.
func (r *RuleBuilder) DoReturnXMLCharset(body, charset string) *ResponseBuilder {
	return r.responses().DoReturnXMLCharset(body, charset)
}

// DoThrow appends a response that fails the request with err.
func (r *RuleBuilder) DoThrow(err error) *ResponseBuilder {
	return r.responses().DoThrow(err)
}

// DoAction appends a response built by a custom action.
func (r *RuleBuilder) DoAction(a Action) *ResponseBuilder {
	return r.responses().DoAction(a)
}

// DoTemplate appends a response rendered by a template engine.
func (r *RuleBuilder) DoTemplate(engine, source string) *ResponseBuilder {
	return r.responses().DoTemplate(engine, source)
}
