package raster

import "testing"

func TestIdxWrap(t *testing.T) {
	g := Grid{W: 8, H: 4}
	i1, ok1 := g.Idx(3, 1)
	i2, ok2 := g.Idx(3+8, 1)
	if !ok1 || !ok2 {
		t.Fatalf("expected both in range")
	}
	if i1 != i2 {
		t.Errorf("idx(x,y) != idx(x+W,y): %d vs %d", i1, i2)
	}
}

func TestIdxYClamp(t *testing.T) {
	g := Grid{W: 8, H: 4}
	if _, ok := g.Idx(0, -1); ok {
		t.Errorf("y=-1 should be out of range")
	}
	if _, ok := g.Idx(0, 4); ok {
		t.Errorf("y=H should be out of range")
	}
}

func TestNeighbors8Count(t *testing.T) {
	g := Grid{W: 8, H: 4}
	// interior pixel has all 8 neighbors (x wraps so even x=0 is interior).
	n := g.Neighbors8(0, 1, nil)
	if len(n) != 8 {
		t.Errorf("interior pixel should have 8 neighbors, got %d", len(n))
	}
	// top row has no neighbors above: 8 - 3 = 5.
	top := g.Neighbors8(0, 0, nil)
	if len(top) != 5 {
		t.Errorf("top-row pixel should have 5 neighbors, got %d", len(top))
	}
}

func TestBoxBlurUniform(t *testing.T) {
	g := Grid{W: 16, H: 8}
	src := make([]float32, g.Len())
	for i := range src {
		src[i] = 5
	}
	dst := make([]float32, g.Len())
	g.BoxBlur(src, 3, dst)
	for i, v := range dst {
		if v != 5 {
			t.Fatalf("uniform input should blur to itself, idx %d got %v", i, v)
		}
	}
}

func TestGaussianRadiusMatchesFormula(t *testing.T) {
	if GaussianRadius(0) != 0 {
		t.Errorf("sigma=0 should yield radius 0")
	}
	if r := GaussianRadius(5); r <= 0 {
		t.Errorf("sigma=5 should yield a positive radius, got %d", r)
	}
	if r := GaussianRadius(60); r != 104 {
		t.Errorf("sigma=60 should yield radius round(60*sqrt(3))=104, got %d", r)
	}
}

func TestChamferDistanceZeroAtSeeds(t *testing.T) {
	g := Grid{W: 8, H: 8}
	mask := make([]bool, g.Len())
	mask[0] = true
	d := g.ChamferDistance(mask, nil)
	if d[0] != 0 {
		t.Errorf("seed pixel should have distance 0, got %v", d[0])
	}
	far, _ := g.Idx(7, 7)
	if d[far] <= 0 {
		t.Errorf("far pixel should have positive distance")
	}
}
