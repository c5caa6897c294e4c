package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatform_AccountRoot(t *testing.T) {
	p := NewPlatform("", "")
	cases := map[string]string{
		"https://github.com/janedoe":                   "https://github.com/janedoe",
		"https://github.com/janedoe/some-repo/tree/x":  "https://github.com/janedoe",
		"http://www.github.com/JaneDoe?tab=repos":      "https://github.com/JaneDoe",
		"see https://github.com/jd#readme for details": "https://github.com/jd",
	}
	for in, want := range cases {
		got, ok := p.AccountRoot(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"https://gitlab.com/jane", "https://github.com/", "https://jane.example.com"} {
		_, ok := p.AccountRoot(in)
		assert.False(t, ok, in)
	}
}

func TestPlatform_LoginAndLinks(t *testing.T) {
	p := NewPlatform("github.com", "https://github.com/")
	login, ok := p.Login("https://github.com/janedoe")
	assert.True(t, ok)
	assert.Equal(t, "janedoe", login)
	assert.Equal(t, "https://github.com/acme/tool/blob/abc123/src/app.py", p.Permalink("acme", "tool", "abc123", "/src/app.py"))
	assert.Equal(t, "https://github.com/acme/tool.git", p.CloneURL("acme", "tool"))
}
