package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/andewx/diesel/asset"
)

// maxTextureSize bounds decoded textures on either side.
const maxTextureSize = 2048

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// content is the decoded content of an asset directory, in file name order.
type content struct {
	textures []*asset.Texture
	meshes   []*asset.Mesh
	errs     []error
}

type decoded struct {
	index   int
	texture *asset.Texture
	mesh    *asset.Mesh
	err     error
}

// loadContent decodes every image and raw mesh (.mesh) file in dir on
// a pool of workers. Files that fail to decode are reported in errs.
// Device uploads stay on the caller's goroutine.
func loadContent(dir string, workers int) (*content, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || !(imageExts[ext] || ext == ".mesh") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	pool := worker.NewDynamicWorkerPool(max(workers, 1), 256, time.Second)
	results := make([]decoded, len(files))
	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				results[i] = decodeFile(i, path)
				return nil, results[i].err
			},
		})
	}
	wg.Wait()

	c := &content{}
	for _, r := range results {
		switch {
		case r.err != nil:
			c.errs = append(c.errs, r.err)
		case r.texture != nil:
			c.textures = append(c.textures, r.texture)
		case r.mesh != nil:
			c.meshes = append(c.meshes, r.mesh)
		}
	}
	return c, nil
}

func decodeFile(i int, path string) decoded {
	data, err := os.ReadFile(path)
	if err != nil {
		return decoded{index: i, err: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".mesh") {
		m, err := asset.ParseMesh(data)
		if err != nil {
			return decoded{index: i, err: fmt.Errorf("%s: %w", path, err)}
		}
		return decoded{index: i, mesh: m}
	}
	tex, err := asset.Decode(bytes.NewReader(data), maxTextureSize)
	if err != nil {
		return decoded{index: i, err: fmt.Errorf("%s: %w", path, err)}
	}
	return decoded{index: i, texture: tex}
}
