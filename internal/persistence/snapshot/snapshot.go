package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	GardenID string `json:"garden_id"`
	Tick     uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed   string        `json:"seed"`
	Tuning tuning.Tuning `json:"tuning"`

	// Catalog digests at capture time; a resume against different catalogs is allowed but
	// logged.
	PlantsDigest string `json:"plants_digest,omitempty"`
	ItemsDigest  string `json:"items_digest,omitempty"`

	Chunks   []ChunkV1  `json:"chunks"`
	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextPlant uint64 `json:"next_plant"`
}

type ChunkV1 struct {
	CX      int              `json:"cx"`
	CZ      int              `json:"cz"`
	Base    model.Chunk      `json:"base"`
	Overlay model.EnvUpdates `json:"overlay"`
	Plants  []model.Plant    `json:"plants"`
	Ground  map[string]int   `json:"ground,omitempty"`
}

// Path is the canonical location of the snapshot for tick under gardenDir.
func Path(gardenDir string, tick uint64) string {
	return filepath.Join(gardenDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the JSON header line, for listing snapshots cheaply.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// Latest returns the snapshot path with the highest tick under gardenDir, or "" if none.
func Latest(gardenDir string) (string, uint64, error) {
	matches, err := filepath.Glob(filepath.Join(gardenDir, "snapshots", "*.snap.zst"))
	if err != nil {
		return "", 0, err
	}
	var best string
	var bestTick uint64
	for _, p := range matches {
		var tick uint64
		if _, err := fmt.Sscanf(filepath.Base(p), "%d.snap.zst", &tick); err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best, bestTick = p, tick
		}
	}
	return best, bestTick, nil
}
