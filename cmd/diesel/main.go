// Command diesel renders a few spinning textured meshes.
//
// Textures and raw meshes are read from the -assets directory; without
// one a checkerboard cube is drawn.
package main

import (
	"flag"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/andewx/diesel/asset"
	"github.com/andewx/diesel/render"
	"github.com/andewx/diesel/resource"
	"github.com/andewx/diesel/shader"
	"github.com/andewx/diesel/vulkan"
	"github.com/andewx/diesel/window"
	"golang.org/x/image/math/f32"
)

func init() {
	// glfw event handling must run on the main thread.
	runtime.LockOSThread()
}

var (
	configPath = flag.String("config", "", "JSON backend config file")
	debug      = flag.Bool("debug", false, "enable validation layers")
	width      = flag.Int("width", 1280, "window width")
	height     = flag.Int("height", 720, "window height")
	assetDir   = flag.String("assets", "", "directory of textures and .mesh files")
)

func main() {
	flag.Parse()
	log := render.NewLogger(os.Stderr)
	ctx := &render.Context{Log: log}

	cfg := render.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = render.LoadConfig(*configPath)
		ctx.Fatal(err)
	}

	win, err := window.Open("diesel", *width, *height)
	ctx.Fatal(err)
	ctx.Fatal(vulkan.Init(window.ProcAddr()), win.Close)
	dev, err := vulkan.Open(vulkan.Options{
		AppName: "diesel",
		Debug:   *debug,
		Window:  win,
		Log:     log.Info,
		Timeout: cfg.WaitTimeout,
	})
	ctx.Fatal(err, win.Close)
	ctx.Device, ctx.Window = dev, win

	b, err := render.New(ctx, render.WithConfig(cfg))
	ctx.Fatal(err, dev.Close, win.Close)

	s, err := newScene(b, log)
	ctx.Fatal(err, b.Close, dev.Close, win.Close)

	start := time.Now()
	for !win.ShouldClose() {
		win.Poll()
		b.SubmitFrame(win.Resized(), s.frame(time.Since(start), b.Extent().Width, b.Extent().Height))
	}

	b.WaitIdle()
	s.release()
	stats := b.Stats()
	log.Info.Printf("%d frames, %d presented, %d skipped, %d rebuilds",
		stats.Frames, stats.Presented, stats.PresentsSkipped, stats.Rebuilds)
	b.Close()
	dev.Close()
	win.Close()
}

type scene struct {
	pipeline  *resource.Pipeline
	textures  []*resource.ImageView
	materials []*render.Material
	meshes    []*render.Mesh
	data      render.DrawData
}

func newScene(b *render.Backend, log *render.Logger) (*scene, error) {
	spirv, err := shader.Compile(shader.MeshWGSL)
	if err != nil {
		return nil, err
	}
	s := &scene{}
	s.pipeline, err = b.CreatePipeline(spirv, spirv,
		render.WithEntryPoints("vs_main", "fs_main"), render.WithLabel("mesh"))
	if err != nil {
		return nil, err
	}

	var textures [][]byte
	var meshes []*asset.Mesh
	if *assetDir != "" {
		c, err := loadContent(*assetDir, runtime.NumCPU())
		if err != nil {
			return nil, err
		}
		for _, err := range c.errs {
			log.Warn.Printf("skipping asset: %v", err)
		}
		for _, t := range c.textures {
			textures = append(textures, asset.EncodeTexture(t.Width, t.Height, t.Pixels))
		}
		meshes = c.meshes
	}
	if len(textures) == 0 {
		textures = append(textures, checkerboard(256, 32, [4]byte{230, 120, 40, 255}, [4]byte{40, 40, 48, 255}))
	}
	if len(meshes) == 0 {
		v, i := cube()
		meshes = append(meshes, &asset.Mesh{Vertices: v, Indices: i})
	}

	fallback, err := s.material(b, checkerboard(4, 4, [4]byte{128, 128, 128, 255}, [4]byte{128, 128, 128, 255}))
	if err != nil {
		return nil, err
	}
	b.SetFallbackMaterial(fallback)
	for _, raw := range textures {
		if _, err := s.material(b, raw); err != nil {
			return nil, err
		}
	}
	for _, m := range meshes {
		mesh, err := b.CreateMesh(m.Vertices, m.Indices)
		if err != nil {
			return nil, err
		}
		s.meshes = append(s.meshes, mesh)
	}
	s.data.Light = f32.Vec3{2, 3, 2}
	s.data.View = render.LookAt(f32.Vec3{0, 1.5, 4}, f32.Vec3{0, 0, 0}, f32.Vec3{0, 1, 0})
	return s, nil
}

func (s *scene) material(b *render.Backend, raw []byte) (*render.Material, error) {
	tex, err := b.CreateTexture(raw, true)
	if err != nil {
		return nil, err
	}
	s.textures = append(s.textures, tex)
	m, err := b.CreateMaterial(s.pipeline, tex)
	if err != nil {
		return nil, err
	}
	s.materials = append(s.materials, m)
	return m, nil
}

// frame lays the meshes out on a circle, each spinning at its own pace,
// cycling through the materials after the fallback.
func (s *scene) frame(t time.Duration, width, height uint32) *render.DrawData {
	if width == 0 || height == 0 {
		width, height = 1, 1
	}
	s.data.Proj = render.Perspective(math.Pi/3, float32(width)/float32(height), 0.1, 100)
	s.data.Entries = s.data.Entries[:0]
	secs := float32(t.Seconds())
	n := len(s.meshes)
	for i, m := range s.meshes {
		angle := 2 * math.Pi * float64(i) / float64(n)
		radius := float32(0)
		if n > 1 {
			radius = 1.5
		}
		x, z := radius*float32(math.Cos(angle)), radius*float32(math.Sin(angle))
		world := render.Mul(render.Translate(x, 0, z),
			render.Mul(render.RotateY(secs*(0.6+0.2*float32(i))), render.RotateX(secs*0.3)))
		mat := s.materials[1+i%(len(s.materials)-1)]
		s.data.Entries = append(s.data.Entries, render.DrawEntry{World: world, Mesh: m, Material: mat})
	}
	return &s.data
}

// release hands every scene resource back to the backend. Destruction
// waits for the device to finish with them.
func (s *scene) release() {
	for _, m := range s.meshes {
		m.Release()
	}
	for _, m := range s.materials {
		m.Release()
	}
	for _, t := range s.textures {
		t.Release()
	}
	s.pipeline.Release()
}
