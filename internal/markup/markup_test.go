package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mapPage = `<html><body>
<div id="app">
  <div class="leaflet-container leaflet-touch">
    <div class="leaflet-pane"></div>
  </div>
  <span class="distance-display">0.00 km</span>
  <button type="button">Simulate Run</button>
</div>
</body></html>`

func TestParseTextAndCount(t *testing.T) {
	snap, err := Parse(mapPage)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Count(".leaflet-container"))
	assert.Equal(t, "Simulate Run", snap.Text("button"))
	assert.Equal(t, "", snap.Text(".no-such-thing"))
}

func TestSignaturesCountsClassesOrderIndependent(t *testing.T) {
	sigs, err := Signatures(`<div class="b a"></div><div class="a b"></div>`)
	require.NoError(t, err)
	assert.Equal(t, 2, sigs["div.a.b"])
}

func TestSupersetHoldsWhenNodesAdded(t *testing.T) {
	after := `<html><body>
<div id="app">
  <div class="leaflet-container leaflet-touch">
    <div class="leaflet-pane"><div class="leaflet-marker-pane"></div></div>
  </div>
  <span class="distance-display">5.21 km</span>
  <button type="button">Simulate Run</button>
</div>
</body></html>`

	ok, missing, err := Superset(mapPage, after)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestSupersetFailsWhenNodesDropped(t *testing.T) {
	blanked := `<html><body><div id="app"></div></body></html>`

	ok, missing, err := Superset(mapPage, blanked)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, missing, "div.leaflet-container.leaflet-touch")
	assert.Contains(t, missing, "span.distance-display")
}

func TestSupersetIdentity(t *testing.T) {
	ok, missing, err := Superset(mapPage, mapPage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, missing)
}
