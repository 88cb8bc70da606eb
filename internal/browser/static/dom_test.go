package static

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/actuate/api/schemas"
)

func TestQueryNodes(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<ul id="main"><li class="nav a">one</li><li>two</li></ul><a href="#">Go  on</a>`))
	require.NoError(t, err)

	tests := []struct {
		loc  schemas.Locator
		want int
	}{
		{schemas.CSS("ul > li"), 2},
		{schemas.CSS("li.nav"), 1},
		{schemas.CSS("li:first-child"), 1},
		{schemas.ByID("main"), 1},
		{schemas.LinkText("Go on"), 1},
		{schemas.XPath("//li[text()='two']"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.loc.String(), func(t *testing.T) {
			nodes, err := queryNodes(doc, tt.loc)
			require.NoError(t, err)
			assert.Len(t, nodes, tt.want)
		})
	}

	_, err = queryNodes(doc, schemas.CSS("li["))
	assert.Error(t, err)
	_, err = queryNodes(doc, schemas.Locator{Strategy: "tag", Query: "li"})
	assert.Error(t, err)
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", xpathLiteral("plain"))
	assert.Equal(t, `"it's"`, xpathLiteral("it's"))
	assert.Equal(t, `concat('say "it', "'", 's"')`, xpathLiteral(`say "it's"`))
}

func TestDecodeDataURL(t *testing.T) {
	b, err := decodeDataURL("data:text/html;base64,PHA+aGk8L3A+")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(b))

	b, err = decodeDataURL("data:text/html,%3Cp%3Ehi%3C%2Fp%3E")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(b))

	b, err = decodeDataURL("data:text/html,<p>100%</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>100%</p>", string(b))

	_, err = decodeDataURL("data:text/html")
	assert.Error(t, err)
}
