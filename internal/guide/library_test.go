package guide

import (
	"context"
	"io/fs"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredraw-server/internal/core"
)

const houseSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
  <rect x="0" y="0" width="50" height="50" fill="#ff0000"/>
  <circle cx="75" cy="75" r="20" fill="#0000ff"/>
  <rect x="50" y="0" width="50" height="20" fill="#ff0000"/>
</svg>`

const emptySVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><title>nothing</title></svg>`

func testLibrary() *Library {
	return NewLibraryFS(fstest.MapFS{
		"house.svg": {Data: []byte(houseSVG)},
		"empty.svg": {Data: []byte(emptySVG)},
		"notes.txt": {Data: []byte("ignored")},
	}, nil)
}

func TestParse_GroupsByColorInOrder(t *testing.T) {
	ref, err := Parse("house", strings.NewReader(houseSVG))
	require.NoError(t, err)

	require.Equal(t, 2, ref.StepCount())
	assert.Equal(t, "#ff0000", ref.Steps[0].Fill)
	assert.Equal(t, 2, ref.Steps[0].Paths)
	assert.Equal(t, "#0000ff", ref.Steps[1].Fill)
	assert.Equal(t, 1, ref.Steps[1].Paths)
}

func TestParse_NoDrawableContent(t *testing.T) {
	_, err := Parse("empty", strings.NewReader(emptySVG))
	assert.ErrorIs(t, err, core.ErrNoDrawableContent)
}

func TestReference_RenderStepOnlyDrawsItsShapes(t *testing.T) {
	ref, err := Parse("house", strings.NewReader(houseSVG))
	require.NoError(t, err)

	red, err := ref.RenderStep(0, 200, 1)
	require.NoError(t, err)
	px := red.NRGBAAt(40, 40)
	assert.Equal(t, uint8(0xff), px.R)
	assert.Equal(t, uint8(0xff), px.A)
	assert.Equal(t, uint8(0), red.NRGBAAt(150, 150).A, "circle belongs to the next step")

	blue, err := ref.RenderStep(1, 200, SuggestionOpacity)
	require.NoError(t, err)
	px = blue.NRGBAAt(150, 150)
	assert.Greater(t, px.B, uint8(200))
	assert.Less(t, px.A, uint8(0xff))

	_, err = ref.RenderStep(2, 200, 1)
	assert.Error(t, err)
}

func TestLibrary_StepCount(t *testing.T) {
	lib := testLibrary()
	ctx := context.Background()

	n, err := lib.StepCount(ctx, "house")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = lib.StepCount(ctx, "empty")
	assert.ErrorIs(t, err, core.ErrNoDrawableContent)

	_, err = lib.StepCount(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lib.StepCount(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestLibrary_CachesParsedReferences(t *testing.T) {
	lib := testLibrary()
	ctx := context.Background()

	a, err := lib.Load(ctx, "house")
	require.NoError(t, err)
	b, err := lib.Load(ctx, "house")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, houseSVG, string(b.Raw()))
}

func TestLibrary_List(t *testing.T) {
	ids, err := testLibrary().List()
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "house"}, ids)
}

type countingFS struct {
	fs.FS
	opens atomic.Int32
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens.Add(1)
	return c.FS.Open(name)
}

func TestLibrary_PreloadedResolverDoesNoIO(t *testing.T) {
	fsys := &countingFS{FS: fstest.MapFS{
		"house.svg": {Data: []byte(houseSVG)},
		"empty.svg": {Data: []byte(emptySVG)},
	}}
	lib := NewLibraryFS(fsys, nil)
	ctx := context.Background()

	n, err := lib.Preload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "empty.svg has nothing to draw")

	opens := fsys.opens.Load()
	resolver := lib.Preloaded()

	steps, err := resolver.StepCount(ctx, "house")
	require.NoError(t, err)
	assert.Equal(t, 2, steps)

	_, err = resolver.StepCount(ctx, "empty")
	assert.ErrorIs(t, err, core.ErrNoDrawableContent)

	_, err = resolver.StepCount(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, opens, fsys.opens.Load(), "resolver must not touch the filesystem")
}
