package texture

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"texcache/core"
)

// LoadGLTF opens a .glb or .gltf file and decodes every texture it
// references. Images used as a material's normal texture are flagged as
// normal maps. Images that fail to decode are logged and skipped.
func LoadGLTF(path string, opts LoadOptions) ([]*Buffer, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	dir := filepath.Dir(path)
	log := core.Logger()

	normals := make(map[int]bool)
	for _, m := range doc.Materials {
		if m.NormalTexture != nil && m.NormalTexture.Index != nil {
			normals[*m.NormalTexture.Index] = true
		}
	}

	var out []*Buffer
	seen := make(map[int]bool)
	for i, gt := range doc.Textures {
		if gt.Source == nil || seen[*gt.Source] {
			continue
		}
		src := *gt.Source
		if src < 0 || src >= len(doc.Images) {
			continue
		}
		seen[src] = true
		img := doc.Images[src]

		name := img.Name
		if name == "" {
			name = fmt.Sprintf("%s#image%d", filepath.Base(path), src)
		}

		raw, err := readGLTFImage(doc, img, dir)
		if err != nil {
			log.Warn("gltf: image unreadable", "file", path, "image", src, "err", err)
			continue
		}
		if raw == nil {
			continue
		}

		texOpts := opts
		texOpts.Normal = opts.Normal || normals[i]
		buf, err := Decode(name, raw, texOpts)
		if err != nil {
			log.Warn("gltf: image decode failed", "file", path, "image", src, "err", err)
			continue
		}
		out = append(out, buf)
	}
	return out, nil
}

// readGLTFImage returns the encoded bytes of img from a buffer view, a data
// URI or an external file next to the document.
func readGLTFImage(doc *gltf.Document, img *gltf.Image, dir string) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		return modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
	case img.IsEmbeddedResource():
		return img.MarshalData()
	case img.URI != "":
		return os.ReadFile(filepath.Join(dir, img.URI))
	}
	return nil, nil
}
