package workspace

import (
	"context"
	"strings"
	"testing"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/complete"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURI = "file:///tmp/scripts/Test.groovy"

const geoYAML = `types:
  - name: com.example.geo.Square
    constructors:
      - params: [{type: double, name: side}]
`

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	e, err := complete.NewEngine(catalog.Builtin())
	require.NoError(t, err)
	return New(NewHandle(e))
}

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "Test.groovy", documentName(testURI))
	assert.Equal(t, "My Script.groovy", documentName("file:///tmp/My%20Script.groovy"))
	assert.Equal(t, "untitled", documentName("untitled"))
}

func TestUpdate(t *testing.T) {
	ws := newTestWorkspace(t)

	doc, err := ws.Update(testURI, "Frob f = null", 1)
	require.NoError(t, err)
	assert.Equal(t, "Test.groovy", doc.Name)
	require.Len(t, doc.Unit.Errors, 1)

	doc, err = ws.Update(testURI, "String s = null", 2)
	require.NoError(t, err)
	assert.Empty(t, doc.Unit.Errors)

	// an older version arriving late does not replace the newer one
	doc, err = ws.Update(testURI, "Frob f = null", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), doc.Version)

	got, ok := ws.Document(testURI)
	require.True(t, ok)
	assert.Equal(t, "String s = null", got.Text)

	ws.Close(testURI)
	_, ok = ws.Document(testURI)
	assert.False(t, ok)
}

func TestComplete(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.Update(testURI, "\"abc\".con", 1)
	require.NoError(t, err)

	cands, err := ws.Complete(context.Background(), testURI, 0, 9, complete.StickyBefore)
	require.NoError(t, err)
	var displayed []string
	for _, c := range cands {
		displayed = append(displayed, c.Displayed)
	}
	assert.Contains(t, displayed, "concat(String str1) - String")

	_, err = ws.Complete(context.Background(), "file:///nope.groovy", 0, 0, complete.StickyBefore)
	assert.True(t, errors.Is(err, ErrUnknownDocument))
}

func TestReanalyzeUsesSwappedEngine(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.Update(testURI, "import com.example.geo.Square", 3)
	require.NoError(t, err)
	doc, _ := ws.Document(testURI)
	require.Len(t, doc.Unit.Errors, 1)

	cat, err := catalog.LoadYAML(strings.NewReader(geoYAML))
	require.NoError(t, err)
	e, err := complete.NewEngine(catalog.Union(cat, catalog.Builtin()))
	require.NoError(t, err)
	ws.Handle().Swap(e)

	docs := ws.Reanalyze()
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].Unit.Errors)
	assert.Equal(t, int32(3), docs[0].Version)
}
