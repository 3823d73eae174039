package texture

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
)

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.Set(i%4, i/4, c)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoadGLTF(t *testing.T) {
	dir := t.TempDir()
	albedo := pngBytes(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	normal := pngBytes(t, color.NRGBA{R: 128, G: 128, B: 255, A: 255})
	if err := os.WriteFile(filepath.Join(dir, "normal.png"), normal, 0o644); err != nil {
		t.Fatal(err)
	}

	doc := gltf.NewDocument()
	doc.Images = []*gltf.Image{
		{Name: "albedo", URI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(albedo)},
		{Name: "normal", URI: "normal.png"},
	}
	doc.Textures = []*gltf.Texture{
		{Source: gltf.Index(0)},
		{Source: gltf.Index(1)},
	}
	doc.Materials = []*gltf.Material{{
		Name:          "rock",
		NormalTexture: &gltf.NormalTexture{Index: gltf.Index(1)},
	}}
	path := filepath.Join(dir, "rock.gltf")
	if err := gltf.Save(doc, path); err != nil {
		t.Fatal(err)
	}

	bufs, err := LoadGLTF(path, DefaultLoadOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(bufs) != 2 {
		t.Fatalf("LoadGLTF: expected 2 images, got %d", len(bufs))
	}
	if bufs[0].Name != "albedo" || bufs[0].Flags.Has(FlagNormal) {
		t.Errorf("LoadGLTF: expected plain albedo, got %q flags %b", bufs[0].Name, bufs[0].Flags)
	}
	if bufs[1].Name != "normal" || !bufs[1].Flags.Has(FlagNormal) {
		t.Errorf("LoadGLTF: expected flagged normal map, got %q flags %b", bufs[1].Name, bufs[1].Flags)
	}
	if bufs[0].Hash != Hash(albedo) || bufs[1].Hash != Hash(normal)+"-n" {
		t.Error("LoadGLTF: expected keys from the encoded image bytes")
	}
}
