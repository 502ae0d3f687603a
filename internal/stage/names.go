package stage

import (
	"github.com/MeKo-Tech/worldforge/internal/prng"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

// biomeDuchyNames and biomeKingdomNames are small deterministic word banks
// keyed by dominant biome, used by Clustering to give each duchy/kingdom a
// stable display name. This supplements the distilled stage set (the
// Naming stage itself stays the placeholder spec §4.13 describes) with a
// detail present in the original system: political units get a name at
// the point they're formed, not as a separate pass.
var biomeDuchyNames = map[uint8][]string{
	types.BiomeOcean:      {"Tideholm", "Saltmere", "Brinewick"},
	types.BiomeMountain:   {"Stonereach", "Ironpeak", "Graspire"},
	types.BiomeIceTundra:  {"Frosthollow", "Rimegate", "Palecrest"},
	types.BiomeTaiga:      {"Pinemarch", "Duskwood", "Needlefen"},
	types.BiomeDesert:     {"Dunecourt", "Sandhold", "Ashreach"},
	types.BiomeTropical:   {"Greenveil", "Canopymere", "Palmreach"},
	types.BiomeSavanna:    {"Goldenfield", "Drywind", "Tallgrass"},
	types.BiomeTemperate:  {"Oakmere", "Millbrook", "Fairhaven"},
	types.BiomeGrassland:  {"Windmere", "Broadmeadow", "Clearford"},
}

var biomeKingdomNames = map[uint8][]string{
	types.BiomeOcean:      {"Tidereach", "Saltcrown"},
	types.BiomeMountain:   {"Ironcrown", "Highreach"},
	types.BiomeIceTundra:  {"Frostcrown", "Winterreach"},
	types.BiomeTaiga:      {"Duskrealm", "Pinecrown"},
	types.BiomeDesert:     {"Sunthrone", "Dunereach"},
	types.BiomeTropical:   {"Verdant Crown", "Emeraldreach"},
	types.BiomeSavanna:    {"Goldcrown", "Widereach"},
	types.BiomeTemperate:  {"Oakcrown", "Fairreach"},
	types.BiomeGrassland:  {"Meadowcrown", "Greatreach"},
}

func pickName(stream *prng.PCG32, table map[uint8][]string, biome uint8) string {
	names, ok := table[biome]
	if !ok || len(names) == 0 {
		names = []string{"Unnamed Realm"}
	}
	return names[stream.IntN(len(names))]
}
