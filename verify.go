package clientmock

import (
	"net/http"

	"github.com/sophialabs/clientmock/internal/domain/engine"
)

// Verifier starts call-count verifications over the recorded requests.
type Verifier struct {
	mock *Mock
}

// Verify returns a Verifier for m's request log.
func (m *Mock) Verify() *Verifier {
	return &Verifier{mock: m}
}

// Request verifies requests with method and url. Empty values accept any.
func (v *Verifier) Request(method, url string) *VerifyBuilder {
	vb := &VerifyBuilder{mock: v.mock}
	vb.conditions = conditions[*VerifyBuilder]{b: v.mock.registry.Expect(method, url), owner: vb}
	return vb
}

// Get verifies GET requests to url.
func (v *Verifier) Get(url string) *VerifyBuilder { return v.Request(http.MethodGet, url) }

// Post verifies POST requests to url.
func (v *Verifier) Post(url string) *VerifyBuilder { return v.Request(http.MethodPost, url) }

// Put verifies PUT requests to url.
func (v *Verifier) Put(url string) *VerifyBuilder { return v.Request(http.MethodPut, url) }

// Delete verifies DELETE requests to url.
func (v *Verifier) Delete(url string) *VerifyBuilder { return v.Request(http.MethodDelete, url) }

// Head verifies HEAD requests to url.
func (v *Verifier) Head(url string) *VerifyBuilder { return v.Request(http.MethodHead, url) }

// Options verifies OPTIONS requests to url.
func (v *Verifier) Options(url string) *VerifyBuilder { return v.Request(http.MethodOptions, url) }

// Patch verifies PATCH requests to url.
func (v *Verifier) Patch(url string) *VerifyBuilder { return v.Request(http.MethodPatch, url) }

// VerifyBuilder accepts the same conditions as RuleBuilder and ends with a
// call-count assertion. Assertions return nil or a *VerificationMismatchError;
// a malformed url or condition returns its registration error instead.
type VerifyBuilder struct {
	conditions[*VerifyBuilder]
	mock *Mock
}

// Called fails unless exactly one request matched.
func (v *VerifyBuilder) Called() error {
	return v.CalledTimes(1)
}

// CalledTimes fails unless exactly n requests matched.
func (v *VerifyBuilder) CalledTimes(n int) error {
	return v.count().Exactly(n)
}

// NotCalled fails if any request matched.
func (v *VerifyBuilder) NotCalled() error {
	return v.count().Never()
}

// CalledAtLeast fails unless n or more requests matched.
func (v *VerifyBuilder) CalledAtLeast(n int) error {
	return v.count().AtLeast(n)
}

// CalledAtMost fails unless at most n requests matched.
func (v *VerifyBuilder) CalledAtMost(n int) error {
	return v.count().AtMost(n)
}

// Count returns the number of recorded requests that matched.
func (v *VerifyBuilder) Count() (int, error) {
	c := v.count()
	return c.Actual, c.Err()
}

func (v *VerifyBuilder) count() engine.Verification {
	return v.mock.registry.Verify(v.b)
}

// Matching returns the recorded requests that matched, in dispatch order.
func (v *VerifyBuilder) Matching() ([]*Request, error) {
	built, err := v.b.Build()
	if err != nil {
		return nil, err
	}
	var out []*Request
	for _, req := range v.mock.registry.Requests() {
		if built.Matches(req) {
			out = append(out, req)
		}
	}
	return out, nil
}
