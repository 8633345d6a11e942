package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"floracraft.ai/internal/sim/flora/model"
)

type Catalogs struct {
	Items  ItemCatalog
	Plants PlantCatalog
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // "MATERIAL","FOOD","SEED","HERB"
}

type PlantCatalog struct {
	IDs    []string
	ByID   map[string]SpeciesDef
	Digest string
}

// SpeciesDef is a plant template. Part quantities in the template are the spawn state.
type SpeciesDef struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Properties model.Properties `json:"properties"`
}

// Load reads items.json and plants.json from configDir. plants.json is checked against
// schemas/plants.schema.json when that file exists.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	schemaPath := filepath.Join(configDir, "schemas", "plants.schema.json")
	if _, err := os.Stat(schemaPath); err != nil {
		schemaPath = ""
	}
	if err := loadPlants(filepath.Join(configDir, "plants.json"), schemaPath, &c.Items, &c.Plants); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadPlants(path, schemaPath string, items *ItemCatalog, out *PlantCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if schemaPath != "" {
		schema, err := jsonschema.Compile(schemaPath)
		if err != nil {
			return fmt.Errorf("plants schema: %w", err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("plants.json: %w", err)
		}
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("plants.json: %w", err)
		}
	}

	var defs []SpeciesDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("plants.json: %w", err)
	}
	out.ByID = make(map[string]SpeciesDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("plants.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("plants.json: duplicate id %q", d.ID)
		}
		if err := model.Validate(model.Plant{ID: d.ID, Name: d.Name, Species: d.ID, Properties: d.Properties}); err != nil {
			return fmt.Errorf("plants.json: %w", err)
		}
		if err := checkLootItems(d, items); err != nil {
			return fmt.Errorf("plants.json: %w", err)
		}
		out.ByID[d.ID] = d
		out.IDs = append(out.IDs, d.ID)
	}
	sort.Strings(out.IDs)
	return nil
}

var ErrUnknownItem = errors.New("unknown item")

func checkLootItems(d SpeciesDef, items *ItemCatalog) error {
	for _, part := range d.Properties.Parts {
		for _, table := range [][]model.LootEntry{part.Loot, part.DroppedLoot} {
			for _, l := range table {
				if _, ok := items.Defs[l.Item]; ok {
					continue
				}
				msg := fmt.Sprintf("species %s part %s: %q", d.ID, part.Name, l.Item)
				if s := items.Suggest(l.Item); s != "" {
					msg += fmt.Sprintf(" (did you mean %q?)", s)
				}
				return fmt.Errorf("%w: %s", ErrUnknownItem, msg)
			}
		}
	}
	return nil
}

// Suggest returns the closest known item id, or "" when nothing is within a few edits.
func (c *ItemCatalog) Suggest(id string) string {
	best, bestDist := "", -1
	for _, cand := range c.Palette {
		d := levenshtein.ComputeDistance(id, cand)
		if bestDist < 0 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	if bestDist < 0 || bestDist > 3 || bestDist >= len(id) {
		return ""
	}
	return best
}

// Suggest returns the closest species id for a typo in a layout file.
func (c *PlantCatalog) Suggest(id string) string {
	best, bestDist := "", -1
	for _, cand := range c.IDs {
		d := levenshtein.ComputeDistance(id, cand)
		if bestDist < 0 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	if bestDist < 0 || bestDist > 3 || bestDist >= len(id) {
		return ""
	}
	return best
}

// Spawn instantiates a plant from the template. Ungated parts declared empty start at
// InitialVegetationRatio of their capacity.
func (s SpeciesDef) Spawn(id string) model.Plant {
	p := model.Plant{ID: id, Name: s.Name, Species: s.ID, Properties: s.Properties}
	p = p.Clone()
	ratio := s.Properties.InitialVegetationRatio
	if ratio <= 0 {
		return p
	}
	if ratio > 1 {
		ratio = 1
	}
	for i := range p.Properties.Parts {
		part := &p.Properties.Parts[i]
		if part.Qty != 0 || part.TriggerFrom != "" {
			continue
		}
		part.Qty = int(math.Round(float64(part.MaxQty) * ratio))
	}
	return p
}
