package pipeline

import (
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/worldforge/internal/stage"
)

func loadLandmaskForTest(planetDir string) (mask []bool, w, h int, err error) {
	f, err := os.Open(filepath.Join(planetDir, stage.WorldgenDir, stage.LandmaskFile))
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	w, h = b.Dx(), b.Dy()
	mask = make([]bool, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gr, _, _, _ := img.At(x, y).RGBA()
			mask[i] = gr>>8 >= 128
			i++
		}
	}
	return mask, w, h, nil
}

func loadJSONForTest(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
