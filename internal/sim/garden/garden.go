package garden

import (
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"floracraft.ai/internal/persistence/snapshot"
	"floracraft.ai/internal/sim/catalogs"
	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/tuning"
)

var plantNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://floracraft.ai/plants"))

type Config struct {
	ID     string
	Seed   string
	Tuning tuning.Tuning

	// Workers bounds the per-chunk fan-out of a step. <= 0 means 4.
	Workers int
}

type ChunkKey struct {
	CX int
	CZ int
}

func (k ChunkKey) String() string { return fmt.Sprintf("%d,%d", k.CX, k.CZ) }

type chunkState struct {
	key  ChunkKey
	base model.Chunk
	// overlay is the summed standing feedback of the chunk's plants as of the last step.
	overlay model.EnvUpdates
	plants  []model.Plant
	ground  map[string]int
}

type Garden struct {
	cfg  Config
	cats *catalogs.Catalogs
	log  *log.Logger

	tick      atomic.Uint64
	nextPlant atomic.Uint64

	plantCount atomic.Int64
	stepNanos  atomic.Int64

	chunks map[ChunkKey]*chunkState
	keys   []ChunkKey

	harvest       chan harvestReq
	inspect       chan inspectReq
	bootstrap     chan bootstrapReq
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	snapshotReq   chan chan snapshotReply
	stop          chan struct{}
	// halted is closed when Run returns.
	halted   chan struct{}
	haltOnce sync.Once

	observers map[string]*observerClient

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

func New(cfg Config, cats *catalogs.Catalogs, logger *log.Logger) (*Garden, error) {
	if cats == nil {
		return nil, fmt.Errorf("garden: nil catalogs")
	}
	if cfg.ID == "" {
		cfg.ID = "GARDEN"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("garden: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[garden] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Garden{
		cfg:           cfg,
		cats:          cats,
		log:           logger,
		chunks:        map[ChunkKey]*chunkState{},
		harvest:       make(chan harvestReq, 64),
		inspect:       make(chan inspectReq, 64),
		bootstrap:     make(chan bootstrapReq, 16),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		snapshotReq:   make(chan chan snapshotReply, 4),
		stop:          make(chan struct{}),
		halted:        make(chan struct{}),
		observers:     map[string]*observerClient{},
	}, nil
}

func (g *Garden) ID() string                   { return g.cfg.ID }
func (g *Garden) Seed() string                 { return g.cfg.Seed }
func (g *Garden) Tuning() tuning.Tuning        { return g.cfg.Tuning }
func (g *Garden) Catalogs() *catalogs.Catalogs { return g.cats }
func (g *Garden) CurrentTick() uint64          { return g.tick.Load() }

func (g *Garden) SetTickLogger(l TickLogger)                    { g.tickLogger = l }
func (g *Garden) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { g.snapshotSink = ch }

// Layout is the garden.yaml shape: chunks with a base environment and species plantings.
type Layout struct {
	Seed   string        `yaml:"seed"`
	Chunks []ChunkLayout `yaml:"chunks"`
}

type ChunkLayout struct {
	CX     int        `yaml:"cx"`
	CZ     int        `yaml:"cz"`
	Env    EnvLayout  `yaml:"env"`
	Plants []Planting `yaml:"plants"`
}

type EnvLayout struct {
	Moisture          float64 `yaml:"moisture"`
	LightLevel        float64 `yaml:"light_level"`
	Temperature       float64 `yaml:"temperature"`
	WindLevel         float64 `yaml:"wind_level"`
	VegetationDensity float64 `yaml:"vegetation_density"`
}

type Planting struct {
	Species string `yaml:"species"`
	Count   int    `yaml:"count"`
}

func LoadLayout(path string) (Layout, error) {
	var l Layout
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("garden.yaml: %w", err)
	}
	return l, nil
}

// Plant lays out the garden from a layout. Plant ids are derived from the garden seed and
// spawn order, so the same layout always yields the same garden.
func (g *Garden) Plant(l Layout) error {
	for _, cl := range l.Chunks {
		key := ChunkKey{CX: cl.CX, CZ: cl.CZ}
		base := model.Chunk{
			Moisture:          cl.Env.Moisture,
			LightLevel:        cl.Env.LightLevel,
			Temperature:       cl.Env.Temperature,
			WindLevel:         cl.Env.WindLevel,
			VegetationDensity: cl.Env.VegetationDensity,
		}
		if err := checkEnv(key, base); err != nil {
			return err
		}
		g.ensureChunk(key, base)
		for _, pl := range cl.Plants {
			for i := 0; i < pl.Count; i++ {
				if _, err := g.Spawn(key, pl.Species); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Spawn adds one plant of species to chunk key. The chunk must exist.
func (g *Garden) Spawn(key ChunkKey, species string) (model.Plant, error) {
	c := g.chunks[key]
	if c == nil {
		return model.Plant{}, fmt.Errorf("garden: unknown chunk %s", key)
	}
	def, ok := g.cats.Plants.ByID[species]
	if !ok {
		msg := fmt.Sprintf("garden: unknown species %q", species)
		if s := g.cats.Plants.Suggest(species); s != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", s)
		}
		return model.Plant{}, fmt.Errorf("%s", msg)
	}
	n := g.nextPlant.Add(1)
	id := uuid.NewSHA1(plantNamespace, []byte(fmt.Sprintf("%s:%d:%d:%d", g.cfg.Seed, key.CX, key.CZ, n))).String()
	p := def.Spawn(id)
	c.plants = append(c.plants, p)
	g.plantCount.Add(1)
	return p, nil
}

func (g *Garden) ensureChunk(key ChunkKey, base model.Chunk) *chunkState {
	if c := g.chunks[key]; c != nil {
		c.base = base
		return c
	}
	c := &chunkState{key: key, base: base, ground: map[string]int{}}
	g.chunks[key] = c
	g.keys = append(g.keys, key)
	sort.Slice(g.keys, func(i, j int) bool {
		if g.keys[i].CX != g.keys[j].CX {
			return g.keys[i].CX < g.keys[j].CX
		}
		return g.keys[i].CZ < g.keys[j].CZ
	})
	return c
}

func checkEnv(key ChunkKey, c model.Chunk) error {
	for name, v := range map[string]float64{
		"moisture":           c.Moisture,
		"light_level":        c.LightLevel,
		"temperature":        c.Temperature,
		"wind_level":         c.WindLevel,
		"vegetation_density": c.VegetationDensity,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("garden: chunk %s %s is not finite", key, name)
		}
	}
	return nil
}

// effective overlays the plants' standing feedback on the base environment and stamps the
// season for tick.
func (c *chunkState) effective(season model.Season) model.Chunk {
	e := c.base
	e.LightLevel = clamp01(e.LightLevel + c.overlay.LightLevelDelta)
	e.VegetationDensity = clamp01(e.VegetationDensity + c.overlay.VegetationDensityDelta)
	e.Season = season
	return e
}

func (g *Garden) findPlant(id string) (*chunkState, int) {
	for _, k := range g.keys {
		c := g.chunks[k]
		for i := range c.plants {
			if c.plants[i].ID == id {
				return c, i
			}
		}
	}
	return nil, -1
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
