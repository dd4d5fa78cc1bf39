package h2io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestHasExpectContinue(t *testing.T) {
	m := NewMessage("POST", &fasthttp.URI{})
	assert.False(t, m.HasExpectContinue())

	m.RequestHeader.Set("Expect", "100-continue")
	assert.True(t, m.HasExpectContinue())

	m.RequestHeader.Set("Expect", "100-CONTINUE")
	assert.True(t, m.HasExpectContinue())

	m.RequestHeader.Set("Expect", "something-else")
	assert.False(t, m.HasExpectContinue())
}

func TestHasBody(t *testing.T) {
	m := NewMessage("GET", &fasthttp.URI{})
	assert.False(t, m.HasBody())

	m.Pollable = &staticPollable{data: []byte("x")}
	assert.True(t, m.HasBody())
}

func TestIsHopByHop(t *testing.T) {
	cases := map[string]bool{
		"Connection":        true,
		"connection":        true,
		"KEEP-ALIVE":        true,
		"Proxy-Connection":  true,
		"Transfer-Encoding": true,
		"Upgrade":           true,
		"Content-Type":      false,
		"Authorization":     false,
	}
	for name, want := range cases {
		if got := isHopByHop([]byte(name)); got != want {
			t.Errorf("isHopByHop(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestBuildPath(t *testing.T) {
	assert.Equal(t, "/", buildPath("", ""))
	assert.Equal(t, "/x", buildPath("/x", ""))
	assert.Equal(t, "/x?a=1", buildPath("/x", "a=1"))
	assert.Equal(t, "/?a=1", buildPath("", "a=1"))
}

func TestBuildAuthority(t *testing.T) {
	assert.Equal(t, "example.org", buildAuthority("https", "example.org:443"))
	assert.Equal(t, "example.org:8443", buildAuthority("https", "example.org:8443"))
	assert.Equal(t, "example.org", buildAuthority("http", "example.org:80"))
	assert.Equal(t, "example.org:8080", buildAuthority("http", "example.org:8080"))
	assert.Equal(t, "example.org", buildAuthority("https", "example.org"))
}

func TestAppendAndResponseBody(t *testing.T) {
	m := NewMessage("GET", &fasthttp.URI{})
	m.AppendResponseBody([]byte("hel"))
	m.AppendResponseBody([]byte("lo"))
	assert.Equal(t, "hello", string(m.ResponseBody()))
}
