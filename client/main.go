package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// send encodes an event and writes it as a text frame.
func send(c *websocket.Conn, event string, payload interface{}) error {
	env := envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Data = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, frame)
}

// parseCommand turns a stdin line into an outbound event.
func parseCommand(line string) (string, interface{}, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, nil
	}
	switch fields[0] {
	case "start":
		return "start-round", nil, nil
	case "claim":
		if len(fields) != 3 {
			return "", nil, fmt.Errorf("usage: claim <x> <y>")
		}
		x, errX := strconv.Atoi(fields[1])
		y, errY := strconv.Atoi(fields[2])
		if errX != nil || errY != nil {
			return "", nil, fmt.Errorf("coordinates must be integers")
		}
		return "claim-cell", map[string]int{"x": x, "y": y}, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

func main() {
	addr := flag.String("addr", "localhost:3000", "server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			var env envelope
			if err := json.Unmarshal(message, &env); err != nil {
				log.Printf("Received invalid frame: %s", message)
				continue
			}
			if env.Event == "initial-state" || env.Event == "game-state-reset" {
				log.Printf("<- RECV %s (%d bytes)", env.Event, len(env.Data))
				continue
			}
			log.Printf("<- RECV %s: %s", env.Event, env.Data)
		}
	}()

	log.Println("Client started. Commands: 'start', 'claim <x> <y>'.")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			event, payload, err := parseCommand(line)
			if err != nil {
				log.Println(err)
				continue
			}
			if event == "" {
				continue
			}
			if err := send(c, event, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT %s", event)
		}
	}
}
