package stage

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/MeKo-Tech/worldforge/internal/types"
)

// RunPartition implements stage 8 (spec §4.9): multi-source Dijkstra region
// growing from the seed set, weighted by slope/river-crossing/ridge cost.
func RunPartition(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	land, w, h, err := loadLandmask(planetDir)
	if err != nil {
		return fmt.Errorf("stage partition: landmask.png missing: %w", err)
	}
	height, _, _, err := loadHeight16(planetDir)
	if err != nil {
		return fmt.Errorf("stage partition: height16.png missing: %w", err)
	}
	riverMask, _, _, err := loadGray8(worldgenPath(planetDir, RiverMaskFile))
	if err != nil {
		return fmt.Errorf("stage partition: river_mask.png missing: %w", err)
	}
	var seeds []types.Seed
	if err := loadJSON(worldgenPath(planetDir, SeedsFile), &seeds); err != nil {
		return fmt.Errorf("stage partition: seeds.json missing: %w", err)
	}
	grid := gridOf(w, h)
	n := w * h
	progress(10)

	labels := make([]uint32, n)
	for i := range labels {
		labels[i] = types.UnlabeledProvince
	}
	if len(seeds) == 0 {
		if err := savePNG(worldgenPath(planetDir, ProvinceIDFile), packIDImage(labels, w, h)); err != nil {
			return fmt.Errorf("stage partition: writing province_id.png: %w", err)
		}
		progress(100)
		return nil
	}

	bestCost := make([]float64, n)
	for i := range bestCost {
		bestCost[i] = math.Inf(1)
	}

	pq := &pqueue{}
	heap.Init(pq)
	for _, s := range seeds {
		idx, ok := grid.Idx(int(s.X), int(s.Y))
		if !ok || !land[idx] {
			continue
		}
		bestCost[idx] = 0
		labels[idx] = s.ID
		heap.Push(pq, &pqItem{cost: 0, idx: idx, seedID: s.ID})
	}

	processed := 0
	landCount := 0
	for _, v := range land {
		if v {
			landCount++
		}
	}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		if item.cost > bestCost[item.idx] {
			continue // stale entry
		}
		processed++
		if processed%2048 == 0 && landCount > 0 {
			progress(10 + int(80*float64(processed)/float64(landCount)))
		}

		x, y := grid.XY(item.idx)
		for _, c := range grid.Neighbors8Coords(x, y) {
			ni, _ := grid.Idx(c[0], c[1])
			if !land[ni] {
				continue
			}
			diagonal := c[0] != x && c[1] != y
			step := stepCost(cfg, height[item.idx], height[ni], riverMask[item.idx] > 0 || riverMask[ni] > 0, diagonal)
			newCost := bestCost[item.idx] + step
			if newCost < bestCost[ni] {
				bestCost[ni] = newCost
				labels[ni] = item.seedID
				heap.Push(pq, &pqItem{cost: newCost, idx: ni, seedID: item.seedID})
			}
		}
	}
	progress(95)

	if err := savePNG(worldgenPath(planetDir, ProvinceIDFile), packIDImage(labels, w, h)); err != nil {
		return fmt.Errorf("stage partition: writing province_id.png: %w", err)
	}
	progress(100)
	return nil
}

func stepCost(cfg Config, hFrom, hTo uint16, riverCrossing, diagonal bool) float64 {
	dh := math.Abs(float64(int(hTo) - int(hFrom)))
	dhNorm := dh / 65535
	cost := 1 + 100*dhNorm*cfg.CostSlope
	if riverCrossing {
		cost += cfg.CostRiver
	}
	if hTo > hFrom {
		cost += 50 * dhNorm * cfg.CostRidge
	}
	if diagonal {
		cost *= math.Sqrt2
	}
	return cost
}

// pqItem is one Dijkstra frontier entry; stale entries (cost > recorded
// bestCost at pop time) are skipped, the standard lazy-deletion idiom.
type pqItem struct {
	cost   float64
	idx    int
	seedID uint32
}

type pqueue []*pqItem

func (pq pqueue) Len() int            { return len(pq) }
func (pq pqueue) Less(i, j int) bool  { return pq[i].cost < pq[j].cost }
func (pq pqueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *pqueue) Push(x interface{}) { *pq = append(*pq, x.(*pqItem)) }
func (pq *pqueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
