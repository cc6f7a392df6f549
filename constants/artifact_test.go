package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, "jpg", NormalizeExt(".JPG"))
	assert.Equal(t, "png", NormalizeExt("png"))
	assert.Equal(t, "", NormalizeExt(""))
}

func TestExtAllowed(t *testing.T) {
	for _, ext := range []string{".png", ".JPEG", "webp", ".pdf", "txt"} {
		assert.True(t, ExtAllowed(ext), ext)
	}
	for _, ext := range []string{".exe", "docx", ".zip", ".gif"} {
		assert.False(t, ExtAllowed(ext), ext)
	}
}

func TestKindForMIME(t *testing.T) {
	kind, ok := KindForMIME("application/pdf")
	assert.True(t, ok)
	assert.Equal(t, ArtifactPDF, kind)

	kind, ok = KindForMIME("Image/JPEG ")
	assert.True(t, ok)
	assert.Equal(t, ArtifactImage, kind)

	_, ok = KindForMIME("application/zip")
	assert.False(t, ok)
}
