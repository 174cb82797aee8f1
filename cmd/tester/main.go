package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"meet-lab/infrastructure/ws"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// walker is one simulated participant converging on the center point.
type walker struct {
	name   string
	mode   string
	conn   *websocket.Conn
	mu     sync.Mutex
	userID string
	counts map[string]int
	views  map[string]map[string]any
	eta    *ws.EtaPayload
}

func main() {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if config.Room == "" {
		config.Room = "tester-" + lo.RandomString(6, lo.LowerCaseLettersCharset)
	}

	header(config, fmt.Sprintf("Room %s, %d walkers, %d steps", config.Room, config.Walkers, config.Steps))
	walkers := make([]*walker, 0, config.Walkers)
	var readers sync.WaitGroup
	for i := 0; i < config.Walkers; i++ {
		w, err := connect(config, i)
		if err != nil {
			log.Fatalf("Walker %d can't connect: %v", i, err)
		}
		walkers = append(walkers, w)
		readers.Add(1)
		go func() {
			defer readers.Done()
			w.listen()
		}()
	}

	center := map[string]float64{"lat": config.Lat, "lng": config.Lng}
	send(walkers[0], ws.EventSetDestination, center)

	for step := 0; step < config.Steps; step++ {
		for i, w := range walkers {
			lat, lng := position(config, i, step)
			send(w, ws.EventLocationUpdate, ws.LocationPayload{Lat: &lat, Lng: &lng, Mode: w.mode})
		}
		time.Sleep(config.Interval)
	}
	send(walkers[len(walkers)-1], ws.EventSendMessage, ws.MessagePayload{
		RoomKey: config.Room,
		Author:  walkers[len(walkers)-1].name,
		Message: "almost there",
	})
	time.Sleep(config.Interval)

	header(config, "Summary")
	render(walkers)

	for _, w := range walkers {
		_ = w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = w.conn.Close()
	}
	readers.Wait()
}

func connect(config Config, i int) (*walker, error) {
	conn, _, err := websocket.DefaultDialer.Dial(config.URL, nil)
	if err != nil {
		return nil, err
	}
	w := &walker{
		name:   "walker-" + strconv.Itoa(i),
		mode:   lo.Ternary(i%2 == 0, "walk", "car"),
		conn:   conn,
		counts: make(map[string]int),
	}
	send(w, ws.EventJoin, ws.JoinPayload{RoomKey: config.Room, Name: w.name, Mode: w.mode})
	return w, nil
}

// position places walker i on a circle shrinking towards the center.
func position(config Config, i, step int) (float64, float64) {
	radius := 0.01 * float64(config.Steps-step) / float64(config.Steps)
	angle := float64(i) * 2.4
	return config.Lat + radius*math.Cos(angle), config.Lng + radius*math.Sin(angle)
}

func send(w *walker, name string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Fatal(err)
	}
	if err := w.conn.WriteJSON(ws.Envelope{Event: name, Data: raw}); err != nil {
		log.Printf("%s: %s not sent: %v", w.name, name, err)
	}
}

func (w *walker) listen() {
	for {
		var envelope ws.Envelope
		if err := w.conn.ReadJSON(&envelope); err != nil {
			return
		}
		w.mu.Lock()
		w.counts[envelope.Event]++
		switch envelope.Event {
		case ws.EventJoined:
			var joined ws.JoinedPayload
			if json.Unmarshal(envelope.Data, &joined) == nil {
				w.userID = joined.UserID
			}
		case ws.EventLocationUpdate, ws.EventUserOffline:
			var views map[string]map[string]any
			if json.Unmarshal(envelope.Data, &views) == nil {
				w.views = views
			}
		case ws.EventDestinationEta:
			var eta ws.EtaPayload
			if json.Unmarshal(envelope.Data, &eta) == nil {
				w.eta = &eta
			}
		}
		w.mu.Unlock()
	}
}

func render(walkers []*walker) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Walker", "Mode", "Snapshots", "Messages", "Seen", "Last meeting ETA"})
	table.SetBorder(false)
	for _, w := range walkers {
		w.mu.Lock()
		eta := "-"
		if w.eta != nil {
			eta = fmt.Sprintf("%s / %s (from %s)", w.eta.Distance, w.eta.Eta, shortID(w.eta.UserID))
		}
		table.Append([]string{
			w.name + " " + shortID(w.userID),
			w.mode,
			strconv.Itoa(w.counts[ws.EventLocationUpdate]),
			strconv.Itoa(w.counts[ws.EventReceiveMessage]),
			strconv.Itoa(len(w.views)),
			eta,
		})
		w.mu.Unlock()
	}
	table.Render()
}

func header(config Config, text string) {
	text = fmt.Sprintf("  ====== %s ======", text)
	if config.Colours {
		text = color.New(color.BgBlack, color.FgGreen).Render(text)
	}
	fmt.Println(text)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
