package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"floracraft.ai/internal/protocol"
)

// The bot is a toy gardener: it reads the garden from /v1/bootstrap and harvests a random
// visible, non-empty part over /v1/ws every -every.
func main() {
	var (
		base    = flag.String("url", "http://localhost:8080", "server base url")
		every   = flag.Duration("every", 2*time.Second, "harvest interval")
		special = flag.Bool("special", false, "request special harvests")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	httpBase := strings.TrimRight(*base, "/")
	wsURL := "ws" + strings.TrimPrefix(httpBase, "http") + "/v1/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	go readLoop(conn, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	t := time.NewTicker(*every)
	defer t.Stop()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var n int
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}

		boot, err := fetchBootstrap(httpBase)
		if err != nil {
			logger.Printf("bootstrap: %v", err)
			continue
		}
		plantID, part, ok := pickTarget(r, boot)
		if !ok {
			logger.Printf("tick=%d nothing to harvest", boot.Tick)
			continue
		}
		n++
		msg := protocol.HarvestMsg{
			Type:            protocol.TypeHarvest,
			ProtocolVersion: protocol.Version,
			Ref:             fmt.Sprintf("H_%d", n),
			PlantID:         plantID,
			Part:            part,
			Special:         *special,
		}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Printf("send HARVEST: %v", err)
			return
		}
	}
}

func readLoop(conn *websocket.Conn, logger *log.Logger) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeHarvest:
			var h protocol.HarvestResponse
			if err := json.Unmarshal(msg, &h); err != nil {
				continue
			}
			logger.Printf("HARVEST ref=%s tick=%d plant=%s part=%s items=%v", h.Ref, h.Tick, h.PlantID, h.Part, h.Items)
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			logger.Printf("ERROR ref=%s code=%s msg=%s", e.Ref, e.Code, e.Message)
		}
	}
}

func fetchBootstrap(base string) (protocol.BootstrapResponse, error) {
	var boot protocol.BootstrapResponse
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(base + "/v1/bootstrap")
	if err != nil {
		return boot, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return boot, fmt.Errorf("status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&boot)
	return boot, err
}

// pickTarget chooses uniformly among visible parts with something on them.
func pickTarget(r *rand.Rand, boot protocol.BootstrapResponse) (plantID, part string, ok bool) {
	type target struct{ plant, part string }
	var targets []target
	for _, c := range boot.Chunks {
		for _, p := range c.Plants {
			for _, ps := range p.Parts {
				if ps.Qty > 0 && !ps.Category.Hidden() {
					targets = append(targets, target{p.ID, ps.Name})
				}
			}
		}
	}
	if len(targets) == 0 {
		return "", "", false
	}
	t := targets[r.Intn(len(targets))]
	return t.plant, t.part, true
}
