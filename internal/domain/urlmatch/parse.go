package urlmatch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sophialabs/clientmock/internal/domain/match"
)

// ErrMalformedPattern is matched by every URL pattern decomposition failure.
var ErrMalformedPattern = errors.New("malformed URL pattern")

// MalformedPatternError reports a URL pattern that cannot be decomposed.
type MalformedPatternError struct {
	Pattern string
	Err     error
}

func (e *MalformedPatternError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed URL pattern %q", e.Pattern)
	}
	return fmt.Sprintf("malformed URL pattern %q: %v", e.Pattern, e.Err)
}

func (e *MalformedPatternError) Unwrap() error { return e.Err }

func (e *MalformedPatternError) Is(target error) bool {
	return target == ErrMalformedPattern
}

var errNotAbsolute = errors.New("pattern must be an absolute URL or start with /")

// rootPath is what an absolute pattern without a path expects: "" or "/".
func rootPath() match.Matcher {
	return match.AnyOf(match.Empty(), match.Equal("/"))
}

// Parse decomposes pattern.
//
// An absolute pattern ("https://host:8080/p?q=1#f") constrains every component;
// missing port, path and fragment are required to be empty. A relative pattern
// ("/p?q=1") constrains the path, the parameters and, when present, the fragment.
// The empty pattern accepts every URL.
func Parse(pattern string) (Conditions, error) {
	if pattern == "" {
		return Conditions{}, nil
	}

	u, err := url.Parse(pattern)
	if err != nil {
		return Conditions{}, &MalformedPatternError{Pattern: pattern, Err: err}
	}
	if u.Opaque != "" {
		return Conditions{}, &MalformedPatternError{Pattern: pattern, Err: errNotAbsolute}
	}

	var c Conditions
	switch {
	case u.Scheme != "" && u.Host != "":
		c.scheme = setTo(match.Equal(strings.ToLower(u.Scheme)))
		c.host = setTo(match.Equal(strings.ToLower(u.Hostname())))
		c.port = setOrEmpty(u.Port())
		if u.Path == "" || u.Path == "/" {
			c.path = setTo(rootPath())
		} else {
			c.path = setTo(match.Equal(u.Path))
		}
		c.fragment = setOrEmpty(u.Fragment)
	case u.Scheme == "" && u.Host == "" && strings.HasPrefix(u.Path, "/"):
		c.path = setTo(match.Equal(u.Path))
		if u.Fragment != "" {
			c.fragment = setTo(match.Equal(u.Fragment))
		}
	default:
		return Conditions{}, &MalformedPatternError{Pattern: pattern, Err: errNotAbsolute}
	}

	if u.RawQuery != "" {
		query, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return Conditions{}, &MalformedPatternError{Pattern: pattern, Err: err}
		}
		c.params = make(map[string]match.ValuesMatcher, len(query))
		for name, values := range query {
			c.params[name] = match.InAnyOrder(values...)
		}
	}

	return c, nil
}

// Host constrains the host. An origin such as "https://api.example.com:8443"
// also constrains the scheme and port; a bare host name constrains only the host.
func Host(host string) (Conditions, error) {
	if host == "" {
		return Conditions{}, &MalformedPatternError{Pattern: host, Err: errors.New("empty host")}
	}
	if !strings.Contains(host, "://") {
		return Conditions{host: setTo(match.Equal(strings.ToLower(host)))}, nil
	}

	u, err := url.Parse(host)
	if err != nil {
		return Conditions{}, &MalformedPatternError{Pattern: host, Err: err}
	}
	if u.Host == "" {
		return Conditions{}, &MalformedPatternError{Pattern: host, Err: errNotAbsolute}
	}
	return Conditions{
		scheme: setTo(match.Equal(strings.ToLower(u.Scheme))),
		host:   setTo(match.Equal(strings.ToLower(u.Hostname()))),
		port:   setOrEmpty(u.Port()),
	}, nil
}

func setOrEmpty(v string) component {
	if v == "" {
		return setTo(match.Empty())
	}
	return setTo(match.Equal(v))
}
