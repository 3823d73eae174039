package format

import (
	"bytes"
	"errors"
	"testing"

	"texcache/texture"
)

var (
	allCaps  = NewCapabilitySet(CapS3TC, CapRGTC, CapBPTC)
	legacy   = NewCapabilitySet(CapS3TC)
	noCaps   = NewCapabilitySet()
	rgtcOnly = NewCapabilitySet(CapRGTC)
)

func rgba(w, h int) *texture.Buffer {
	b := texture.NewBuffer("rgba", make([]byte, w*h*4), w, h, texture.FormatRGBA)
	b.Flags = texture.FlagDisk
	return b
}

func TestIDNames(t *testing.T) {
	if RGBA_S3TC_DXT5.String() != "RGBA_S3TC_DXT5" {
		t.Errorf("String: expected RGBA_S3TC_DXT5, got %s", RGBA_S3TC_DXT5)
	}
	if ID(0x1234).String() != "0x1234" {
		t.Errorf("String: expected 0x1234, got %s", ID(0x1234))
	}
	if RED_RGTC1.BlockSize() != 8 || RGBA_S3TC_DXT5.BlockSize() != 16 || RGBA.BlockSize() != 0 {
		t.Error("BlockSize: unexpected values")
	}
	if !RGBA_BPTC_UNORM.Compressed() || RG8.Compressed() {
		t.Error("Compressed: unexpected values")
	}
}

func TestSupported(t *testing.T) {
	if !Supported(RGBA, noCaps) {
		t.Error("Supported: raw formats need no capability")
	}
	if Supported(RGBA_S3TC_DXT1, rgtcOnly) {
		t.Error("Supported: DXT1 without S3TC")
	}
	if !Supported(RED_GREEN_RGTC2, rgtcOnly) {
		t.Error("Supported: RGTC2 with RGTC")
	}
	if Supported(ID(0xDEAD), allCaps) {
		t.Error("Supported: unknown format")
	}
}

func TestNegotiatePrefersBPTC(t *testing.T) {
	q, err := Negotiate(rgba(4, 4), allCaps, true)
	if err != nil {
		t.Fatal(err)
	}
	if q.Target != RGBA_BPTC_UNORM || q.Layout != LayoutRGBA {
		t.Errorf("Negotiate: expected BPTC from RGBA, got %v", q)
	}
}

func TestNegotiateS3TC(t *testing.T) {
	q, err := Negotiate(rgba(4, 4), legacy, true)
	if err != nil {
		t.Fatal(err)
	}
	if q.Target != RGBA_S3TC_DXT5 {
		t.Errorf("Negotiate: expected DXT5, got %v", q.Target)
	}

	b := texture.NewBuffer("rgb", make([]byte, 4*4*3), 4, 4, texture.FormatRGB)
	q, err = Negotiate(b, legacy, true)
	if err != nil {
		t.Fatal(err)
	}
	if q.Target != RGBA_S3TC_DXT1 || q.Layout != LayoutRGB {
		t.Errorf("Negotiate: expected DXT1 from RGB, got %v", q)
	}
}

func TestNegotiateReordersBGRA(t *testing.T) {
	b := texture.NewBuffer("bgra", []byte{1, 2, 3, 4}, 1, 1, texture.FormatBGRA)
	q, err := Negotiate(b, legacy, true)
	if err != nil {
		t.Fatal(err)
	}
	if b.Format != texture.FormatRGBA || !bytes.Equal(b.Data, []byte{3, 2, 1, 4}) {
		t.Errorf("Negotiate: expected RGBA {3 2 1 4}, got %v %v", b.Format, b.Data)
	}
	if q.Target != RGBA_S3TC_DXT5 {
		t.Errorf("Negotiate: expected DXT5, got %v", q.Target)
	}

	// raw uploads keep the native order
	b = texture.NewBuffer("bgra", []byte{1, 2, 3, 4}, 1, 1, texture.FormatBGRA)
	q, err = Negotiate(b, noCaps, true)
	if err != nil {
		t.Fatal(err)
	}
	if b.Format != texture.FormatBGRA || q.Layout != LayoutBGRA || q.Target != RGBA {
		t.Errorf("Negotiate: expected raw BGRA, got %v %v", b.Format, q)
	}
}

func TestNegotiateNormalAndGrey(t *testing.T) {
	n := rgba(4, 4)
	n.Flags |= texture.FlagNormal
	q, err := Negotiate(n, allCaps, true)
	if err != nil {
		t.Fatal(err)
	}
	if n.Format != texture.FormatRG || q.Target != RED_GREEN_RGTC2 {
		t.Errorf("Negotiate: expected RG / RGTC2, got %v / %v", n.Format, q.Target)
	}

	// RG without RGTC falls back to raw even though S3TC exists
	n = rgba(4, 4)
	n.Flags |= texture.FlagNormal
	q, err = Negotiate(n, legacy, true)
	if err != nil {
		t.Fatal(err)
	}
	if q.Target != RG8 || q.Layout != LayoutRG {
		t.Errorf("Negotiate: expected RG8, got %v", q)
	}

	g := rgba(4, 4)
	g.Flags |= texture.FlagGrey
	q, err = Negotiate(g, allCaps, true)
	if err != nil {
		t.Fatal(err)
	}
	if g.Format != texture.FormatLuminance || q.Target != RED_RGTC1 || q.Layout != LayoutRED {
		t.Errorf("Negotiate: expected luminance / RGTC1, got %v / %v", g.Format, q)
	}
}

func TestNegotiateRawFallback(t *testing.T) {
	cases := []struct {
		name     string
		caps     Capabilities
		compress bool
		flags    texture.Flags
	}{
		{"no capabilities", noCaps, true, 0},
		{"compression off", allCaps, false, 0},
		{"per-texture opt out", allCaps, true, texture.FlagNoCompress},
	}
	for _, c := range cases {
		b := rgba(4, 4)
		b.Flags |= c.flags
		q, err := Negotiate(b, c.caps, c.compress)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		expected := Query{Layout: LayoutRGBA, DataType: UnsignedInt8888Rev, Target: RGBA}
		if q != expected {
			t.Errorf("%s: expected %v, got %v", c.name, expected, q)
		}
	}
}

func TestNegotiateCompressedOnDisk(t *testing.T) {
	b := &texture.Buffer{Name: "disk.dds", Data: make([]byte, 8), Width: 4, Height: 4,
		Format: texture.FormatDXT1, Flags: texture.FlagDisk | texture.FlagCompressed, Mips: 1}
	q, err := Negotiate(b, legacy, true)
	if err != nil {
		t.Fatal(err)
	}
	if q.Target != RGBA_S3TC_DXT1 {
		t.Errorf("Negotiate: expected DXT1, got %v", q.Target)
	}

	// the per-texture opt out cannot turn compressed data into raw pixels
	b.Flags |= texture.FlagNoCompress
	if _, err := Negotiate(b, rgtcOnly, false); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Negotiate: expected ErrUnsupported, got %v", err)
	}

	b.Format = texture.FormatBC5U
	q, err = Negotiate(b, rgtcOnly, true)
	if err != nil {
		t.Fatal(err)
	}
	if q.Target != RED_GREEN_RGTC2 {
		t.Errorf("Negotiate: expected RGTC2, got %v", q.Target)
	}
}

func TestNegotiateIsDeterministic(t *testing.T) {
	for _, caps := range []Capabilities{allCaps, legacy, rgtcOnly, noCaps} {
		for _, f := range []texture.Flags{0, texture.FlagNormal, texture.FlagGrey, texture.FlagNoCompress} {
			first, err := Negotiate(withFlags(f), caps, true)
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i < 3; i++ {
				q, err := Negotiate(withFlags(f), caps, true)
				if err != nil {
					t.Fatal(err)
				}
				if q != first {
					t.Errorf("Negotiate: expected %v, got %v", first, q)
				}
			}
		}
	}
}

func withFlags(f texture.Flags) *texture.Buffer {
	b := texture.NewBuffer("bgr", make([]byte, 8*8*3), 8, 8, texture.FormatBGR)
	b.Flags = texture.FlagDisk | f
	return b
}

func TestBlockKind(t *testing.T) {
	if _, ok := RGBA_S3TC_DXT1.BlockKind(); !ok {
		t.Error("BlockKind: DXT1 should be encodable")
	}
	if _, ok := RED_RGTC1.BlockKind(); ok {
		t.Error("BlockKind: RGTC1 is not encodable in software")
	}
}
