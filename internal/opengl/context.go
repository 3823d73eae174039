package opengl

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// ContextConfig describes the offscreen GL context used for driver-side
// texture compression and upload.
type ContextConfig struct {
	Width  int
	Height int
	Title  string
	// Major and Minor select the requested core-profile version.
	Major int
	Minor int
	Debug bool
}

func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		Width:  64,
		Height: 64,
		Title:  "texcache",
		Major:  4,
		Minor:  1,
	}
}

// Context owns an invisible GLFW window whose GL context is current on the
// calling goroutine's OS thread.
type Context struct {
	Handle *glfw.Window
	config ContextConfig
}

// NewContext creates the window and makes its context current. The calling
// goroutine stays locked to its OS thread until Destroy.
func NewContext(config ContextConfig) (*Context, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, config.Major)
	glfw.WindowHint(glfw.ContextVersionMinor, config.Minor)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLDebugContext, boolToInt(config.Debug))

	handle, err := glfw.CreateWindow(config.Width, config.Height, config.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to create GL context: %w", err)
	}
	handle.MakeContextCurrent()

	return &Context{Handle: handle, config: config}, nil
}

// Destroy releases the window and terminates GLFW. Safe to call twice.
func (c *Context) Destroy() {
	if c.Handle == nil {
		return
	}
	glfw.DetachCurrentContext()
	c.Handle.Destroy()
	c.Handle = nil
	glfw.Terminate()
	runtime.UnlockOSThread()
}

func boolToInt(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}
