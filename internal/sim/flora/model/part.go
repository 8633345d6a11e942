package model

type Category string

const (
	CategoryLeaf   Category = "LEAF"
	CategoryFlower Category = "FLOWER"
	CategoryFruit  Category = "FRUIT"
	CategorySeed   Category = "SEED"
	CategoryStem   Category = "STEM"
	CategoryTrunk  Category = "TRUNK"
	CategoryRoot   Category = "ROOT"
	CategoryTuber  Category = "TUBER"
)

func (c Category) Known() bool {
	switch c {
	case CategoryLeaf, CategoryFlower, CategoryFruit, CategorySeed,
		CategoryStem, CategoryTrunk, CategoryRoot, CategoryTuber:
		return true
	}
	return false
}

// Structural parts regenerate far slower and rarely drop.
func (c Category) Structural() bool {
	return c == CategoryTrunk || c == CategoryRoot || c == CategoryStem
}

// Hidden parts are off the default harvest surface and need a special action.
func (c Category) Hidden() bool {
	return c == CategoryRoot || c == CategoryTuber
}

func (c Category) BlocksLight() bool {
	return c == CategoryLeaf
}

type LootEntry struct {
	Item   string  `json:"item"`
	Chance float64 `json:"chance"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// Prefs are optional environment preferences. Nil fields fall back to the next level
// (part -> plant -> tuning defaults).
type Prefs struct {
	Water       *float64    `json:"water_preference,omitempty"`
	Light       *float64    `json:"light_preference,omitempty"`
	Temperature *[2]float64 `json:"temperature_range,omitempty"`
}

// Over returns p with unset fields taken from base.
func (p Prefs) Over(base Prefs) Prefs {
	out := base
	if p.Water != nil {
		out.Water = p.Water
	}
	if p.Light != nil {
		out.Light = p.Light
	}
	if p.Temperature != nil {
		out.Temperature = p.Temperature
	}
	return out
}

type Part struct {
	Name        string      `json:"name"`
	Category    Category    `json:"category"`
	MaxQty      int         `json:"max_qty"`
	Qty         int         `json:"qty"`
	GrowProb    float64     `json:"grow_prob"`
	DropProb    float64     `json:"drop_prob"`
	Loot        []LootEntry `json:"loot,omitempty"`
	DroppedLoot []LootEntry `json:"dropped_loot,omitempty"`
	TriggerFrom string      `json:"trigger_from,omitempty"`
	StaminaCost int         `json:"stamina_cost,omitempty"`
	Prefs       Prefs       `json:"prefs,omitempty"`
}

func (p Part) Structural() bool { return p.Category.Structural() }
func (p Part) Hidden() bool     { return p.Category.Hidden() }

// Fraction is Qty/MaxQty in [0,1]; parts without capacity report 0.
func (p Part) Fraction() float64 {
	if p.MaxQty <= 0 {
		return 0
	}
	return float64(p.Qty) / float64(p.MaxQty)
}

type Properties struct {
	VegetationContribution float64 `json:"vegetation_contribution"`
	InitialVegetationRatio float64 `json:"initial_vegetation_ratio"`
	Prefs                  Prefs   `json:"prefs,omitempty"`
	Parts                  []Part  `json:"parts"`
}

type Plant struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Species    string     `json:"species"`
	Properties Properties `json:"properties"`
}

// Clone deep-copies the mutable part slice; loot tables are shared since nothing writes them.
func (p Plant) Clone() Plant {
	out := p
	if p.Properties.Parts != nil {
		out.Properties.Parts = make([]Part, len(p.Properties.Parts))
		copy(out.Properties.Parts, p.Properties.Parts)
	}
	return out
}

func (p Plant) PartIndex(name string) int {
	for i := range p.Properties.Parts {
		if p.Properties.Parts[i].Name == name {
			return i
		}
	}
	return -1
}

// Dead reports whether every part is at zero. A plant without parts is not dead; it is
// simply inert.
func (p Plant) Dead() bool {
	if len(p.Properties.Parts) == 0 {
		return false
	}
	for _, part := range p.Properties.Parts {
		if part.Qty > 0 {
			return false
		}
	}
	return true
}

func F(v float64) *float64 { return &v }
