package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolution_Variants(t *testing.T) {
	hc := HighConfidence("https://a.example")
	v, ok := hc.Get()
	require.True(t, ok)
	assert.Equal(t, "https://a.example", v)
	assert.Equal(t, TierHighConfidence, hc.Tier())

	nf := NotFound[string]()
	v, ok = nf.Get()
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.True(t, nf.IsSet())

	// a value that looks like the old sentinel text is still a value
	bg := BestGuess("Not Found")
	v, ok = bg.Get()
	assert.True(t, ok)
	assert.Equal(t, "Not Found", v)

	f := Failed[string]("timeout")
	assert.False(t, f.Found())
	assert.Equal(t, "timeout", f.Reason())
}

func TestResolution_SetOnce(t *testing.T) {
	e := NewEntity("1", " Jane Doe ", "")
	assert.Equal(t, "Jane Doe", e.Name)
	assert.False(t, e.Homepage.IsSet())

	assert.True(t, e.SetHomepage(BestGuess("https://jane.example.com")))
	assert.False(t, e.SetHomepage(HighConfidence("https://other.example.com")))
	v, _ := e.Homepage.Get()
	assert.Equal(t, "https://jane.example.com", v)

	var unset Resolution[string]
	assert.False(t, e.SetAccount(unset), "unset value must not count as a resolution")
	assert.True(t, e.SetAccount(NotFound[string]()))
	assert.Equal(t, TierNotFound, e.Account.Tier())
}

func TestResolution_Cap(t *testing.T) {
	assert.Equal(t, TierBestGuess, HighConfidence(1).Cap().Tier())
	assert.Equal(t, TierNotFound, NotFound[int]().Cap().Tier())
	assert.Equal(t, "best-guess(x)", HighConfidence("x").Cap().String())
}
