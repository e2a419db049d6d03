package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/compai/assets"
	"github.com/doeshing/compai/internal/domain"
)

func TestWhitelistFromEmbeddedCatalog(t *testing.T) {
	w, err := NewWhitelist(assets.CatalogYAML)
	require.NoError(t, err)

	assert.True(t, w.IsAuthorized("addCompMarker"))
	assert.False(t, w.IsAuthorized("deleteProject"))
	assert.False(t, w.IsAuthorized("addcompmarker"), "names are case sensitive")
	assert.False(t, w.IsAuthorized(""))

	desc, ok := w.Describe("setTextContent")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryLayer, desc.Category)
	assert.Equal(t, domain.LayerTypeText, desc.LayerTypeConstraint)
	assert.True(t, desc.RequiresExistingLayer)

	_, ok = w.Describe("deleteProject")
	assert.False(t, ok)
}

func TestWhitelistRejectsDuplicates(t *testing.T) {
	_, err := FromCatalog(domain.Catalog{Actions: []domain.ActionDescriptor{
		{Name: "addCompMarker"},
		{Name: "addCompMarker"},
	}})
	assert.Error(t, err)

	_, err = FromCatalog(domain.Catalog{})
	assert.Error(t, err)
}

func TestWhitelistPrefixLookup(t *testing.T) {
	w, err := NewWhitelist(assets.CatalogYAML)
	require.NoError(t, err)

	var names []string
	for _, desc := range w.WithPrefix("add") {
		names = append(names, desc.Name)
	}
	assert.Equal(t, []string{
		"addCompMarker", "addLayerMarker", "addMarkersFromArray",
		"addNullLayer", "addSolidLayer", "addTextLayer",
	}, names)
	assert.Len(t, w.Names(), w.Len())
}

func TestVerifyAgainstHostRegistry(t *testing.T) {
	w, err := FromCatalog(domain.Catalog{Actions: []domain.ActionDescriptor{
		{Name: "addCompMarker"}, {Name: "listCompMarkers"},
	}})
	require.NoError(t, err)

	assert.NoError(t, w.VerifyAgainst([]string{"listCompMarkers", "addCompMarker"}))

	err = w.VerifyAgainst([]string{"addCompMarker", "renderQueue"})
	var drift *DriftError
	require.True(t, errors.As(err, &drift))
	assert.Equal(t, []string{"renderQueue"}, drift.Unreachable)
	assert.Equal(t, []string{"listCompMarkers"}, drift.Dead)

	assert.Error(t, w.VerifyAgainst([]string{"addCompMarker"}))
}
