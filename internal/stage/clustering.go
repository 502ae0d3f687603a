package stage

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/worldforge/internal/prng"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

// RunClustering implements stage 11 (spec §4.12): greedy agglomerative
// growth of provinces into duchies, then duchies into kingdoms.
func RunClustering(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	img, err := loadPNG(worldgenPath(planetDir, ProvinceIDFile))
	if err != nil {
		return fmt.Errorf("stage clustering: province_id.png missing: %w", err)
	}
	labels, w, h := unpackIDImage(img)
	biome, _, _, err := loadGray8(worldgenPath(planetDir, BiomeFile))
	if err != nil {
		return fmt.Errorf("stage clustering: biome.png missing: %w", err)
	}
	var adjacency []types.ProvinceAdjacencyEntry
	if err := loadJSON(worldgenPath(planetDir, AdjacencyFile), &adjacency); err != nil {
		return fmt.Errorf("stage clustering: adjacency.json missing: %w", err)
	}
	progress(10)

	area := make(map[uint32]int)
	biomeCounts := make(map[uint32]map[uint8]int)
	for i, l := range labels {
		if l == types.UnlabeledProvince {
			continue
		}
		area[l]++
		m, ok := biomeCounts[l]
		if !ok {
			m = make(map[uint8]int)
			biomeCounts[l] = m
		}
		m[biome[i]]++
	}
	dominantBiome := make(map[uint32]uint8, len(area))
	for pid, counts := range biomeCounts {
		dominantBiome[pid] = pickDominantBiome(counts)
	}
	progress(20)

	neighborsOf := make(map[uint32][]types.NeighborEdge, len(adjacency))
	for _, e := range adjacency {
		neighborsOf[e.ProvinceID] = e.Neighbors
	}

	var provinceIDs []uint32
	for pid := range area {
		provinceIDs = append(provinceIDs, pid)
	}
	sort.Slice(provinceIDs, func(i, j int) bool {
		if area[provinceIDs[i]] != area[provinceIDs[j]] {
			return area[provinceIDs[i]] > area[provinceIDs[j]]
		}
		return provinceIDs[i] < provinceIDs[j]
	})

	duchyOf := make(map[uint32]uint32, len(provinceIDs))
	assigned := make(map[uint32]bool, len(provinceIDs))
	var duchies []types.DuchyRecord
	var nextDuchyID uint32

	for _, pid := range provinceIDs {
		if assigned[pid] {
			continue
		}
		members := []uint32{pid}
		assigned[pid] = true
		for len(members) < cfg.DuchySizeMax {
			best, ok := bestUnassignedNeighbor(members, assigned, neighborsOf, dominantBiome)
			if !ok {
				break
			}
			members = append(members, best)
			assigned[best] = true
		}
		for _, m := range members {
			duchyOf[m] = nextDuchyID
		}
		duchies = append(duchies, types.DuchyRecord{ID: nextDuchyID, MemberIDs: members})
		nextDuchyID++
	}
	progress(55)

	// Induced duchy adjacency, from province adjacency.
	duchyNeighbors := make(map[uint32]map[uint32]bool)
	for _, e := range adjacency {
		da := duchyOf[e.ProvinceID]
		for _, nb := range e.Neighbors {
			db := duchyOf[nb.NeighborID]
			if da == db {
				continue
			}
			if duchyNeighbors[da] == nil {
				duchyNeighbors[da] = make(map[uint32]bool)
			}
			duchyNeighbors[da][db] = true
		}
	}

	duchyArea := make(map[uint32]int, len(duchies))
	for _, d := range duchies {
		total := 0
		for _, pid := range d.MemberIDs {
			total += area[pid]
		}
		duchyArea[d.ID] = total
	}

	var duchyIDsSorted []uint32
	for _, d := range duchies {
		duchyIDsSorted = append(duchyIDsSorted, d.ID)
	}
	sort.Slice(duchyIDsSorted, func(i, j int) bool {
		if duchyArea[duchyIDsSorted[i]] != duchyArea[duchyIDsSorted[j]] {
			return duchyArea[duchyIDsSorted[i]] > duchyArea[duchyIDsSorted[j]]
		}
		return duchyIDsSorted[i] < duchyIDsSorted[j]
	})

	kingdomOf := make(map[uint32]uint32, len(duchies))
	duchyAssigned := make(map[uint32]bool, len(duchies))
	var kingdoms []types.KingdomRecord
	var nextKingdomID uint32

	for _, did := range duchyIDsSorted {
		if duchyAssigned[did] {
			continue
		}
		members := []uint32{did}
		duchyAssigned[did] = true
		for len(members) < cfg.KingdomSizeMax {
			candidate, ok := anyUnassignedAdjacentDuchy(members, duchyAssigned, duchyNeighbors)
			if !ok {
				break
			}
			members = append(members, candidate)
			duchyAssigned[candidate] = true
		}
		for _, m := range members {
			kingdomOf[m] = nextKingdomID
		}
		kingdoms = append(kingdoms, types.KingdomRecord{ID: nextKingdomID, MemberIDs: members})
		nextKingdomID++
	}
	progress(75)

	stream := prng.NewHashStream(cfg.Seed, 0xDEC0DE)
	dominantBiomeForDuchy := func(members []uint32) uint8 {
		counts := make(map[uint8]int)
		for _, pid := range members {
			counts[dominantBiome[pid]]++
		}
		return pickDominantBiome(counts)
	}
	for i := range duchies {
		b := dominantBiomeForDuchy(duchies[i].MemberIDs)
		duchies[i].Name = pickName(stream, biomeDuchyNames, b)
		duchies[i].KingdomID = kingdomOf[duchies[i].ID]
	}
	for i := range kingdoms {
		var allMembers []uint32
		for _, did := range kingdoms[i].MemberIDs {
			for _, d := range duchies {
				if d.ID == did {
					allMembers = append(allMembers, d.MemberIDs...)
				}
			}
		}
		b := dominantBiomeForDuchy(allMembers)
		kingdoms[i].Name = pickName(stream, biomeKingdomNames, b)
	}
	progress(85)

	var provinces []types.ProvinceRecord
	for _, pid := range provinceIDs {
		provinces = append(provinces, types.ProvinceRecord{
			ID: pid, AreaPx: uint32(area[pid]), DuchyID: duchyOf[pid],
		})
	}

	if err := saveJSON(worldgenPath(planetDir, ProvincesFile), provinces); err != nil {
		return fmt.Errorf("stage clustering: writing provinces.json: %w", err)
	}
	if err := saveJSON(worldgenPath(planetDir, DuchiesFile), duchies); err != nil {
		return fmt.Errorf("stage clustering: writing duchies.json: %w", err)
	}
	if err := saveJSON(worldgenPath(planetDir, KingdomsFile), kingdoms); err != nil {
		return fmt.Errorf("stage clustering: writing kingdoms.json: %w", err)
	}

	duchyLabels := make([]uint32, w*h)
	kingdomLabels := make([]uint32, w*h)
	for i, pid := range labels {
		if pid == types.UnlabeledProvince {
			duchyLabels[i] = types.UnlabeledProvince
			kingdomLabels[i] = types.UnlabeledProvince
			continue
		}
		d := duchyOf[pid]
		duchyLabels[i] = d
		kingdomLabels[i] = kingdomOf[d]
	}
	if err := savePNG(worldgenPath(planetDir, DuchyIDFile), packIDImage(duchyLabels, w, h)); err != nil {
		return fmt.Errorf("stage clustering: writing duchy_id.png: %w", err)
	}
	if err := savePNG(worldgenPath(planetDir, KingdomIDFile), packIDImage(kingdomLabels, w, h)); err != nil {
		return fmt.Errorf("stage clustering: writing kingdom_id.png: %w", err)
	}
	progress(100)
	return nil
}

func bestUnassignedNeighbor(members []uint32, assigned map[uint32]bool, neighborsOf map[uint32][]types.NeighborEdge, dominantBiome map[uint32]uint8) (uint32, bool) {
	var best uint32
	bestScore := -1.0
	found := false
	for _, m := range members {
		for _, nb := range neighborsOf[m] {
			if assigned[nb.NeighborID] {
				continue
			}
			score := float64(nb.SharedBorderLen)
			if dominantBiome[nb.NeighborID] == dominantBiome[m] {
				score += 50
			}
			if score > bestScore {
				bestScore = score
				best = nb.NeighborID
				found = true
			}
		}
	}
	return best, found
}

// pickDominantBiome returns the biome with the highest count, breaking ties
// by the lowest biome id so the result is stable regardless of the Go map
// iteration order counts was built from.
func pickDominantBiome(counts map[uint8]int) uint8 {
	var best uint8
	bestCount := -1
	for b, c := range counts {
		if c > bestCount || (c == bestCount && b < best) {
			bestCount = c
			best = b
		}
	}
	return best
}

func anyUnassignedAdjacentDuchy(members []uint32, assigned map[uint32]bool, duchyNeighbors map[uint32]map[uint32]bool) (uint32, bool) {
	var candidates []uint32
	for _, m := range members {
		for candidate := range duchyNeighbors[m] {
			if !assigned[candidate] {
				candidates = append(candidates, candidate)
			}
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c < best {
			best = c
		}
	}
	return best, true
}
