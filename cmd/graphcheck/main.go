// Command graphcheck loads a graph file, evaluates it for a number of frames
// on a manual clock and prints every event as a JSON line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/AaronLay10/Cadence/internal/config"
	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/logging"
	"github.com/AaronLay10/Cadence/internal/nodes"
	"github.com/AaronLay10/Cadence/internal/playhead"
	"github.com/AaronLay10/Cadence/internal/studio"
)

type LogLine struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func logEvent(level, event, msg string, fields map[string]interface{}) {
	line := LogLine{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Event:     event,
		Message:   msg,
		Fields:    fields,
	}
	b, _ := json.Marshal(line)
	fmt.Println(string(b))
}

func printEvent(e events.Event) {
	b, _ := json.Marshal(e)
	fmt.Println(string(b))
}

func main() {
	ticks := flag.Int("ticks", 60, "frames to evaluate")
	fps := flag.Int("fps", 60, "simulated frames per second")
	play := flag.Bool("play", false, "start the playhead before the first frame")
	configPath := flag.String("config", "", "studio.yaml supplying timeline blocks")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: graphcheck [flags] <graph.yaml|graph.json|graph.hcl>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 || *ticks <= 0 || *fps <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := check(flag.Arg(0), *configPath, *ticks, *fps, *play); err != nil {
		logEvent("error", "graphcheck.failed", err.Error(), map[string]interface{}{
			"path": flag.Arg(0),
		})
		os.Exit(1)
	}
}

func check(graphPath, configPath string, ticks, fps int, play bool) error {
	path, err := config.ExpandPath(graphPath)
	if err != nil {
		return err
	}

	var blocks []playhead.Block
	if configPath != "" {
		cfg, err := config.LoadStudioConfig(configPath)
		if err != nil {
			return err
		}
		blocks = cfg.Timeline.Blocks
	}

	sub := events.Subscribe()
	defer events.Unsubscribe(sub)

	start := time.Now().UTC()
	clock := playhead.NewManualClock(start)
	s, err := studio.New(studio.Options{
		Registry: nodes.Default(&nodes.Env{ResolvePath: config.ExpandPath}),
		Blocks:   blocks,
		Clock:    clock,
		Logger:   logging.New("error", "text", io.Discard),
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.LoadFile(path); err != nil {
		drain(sub)
		return err
	}
	if play {
		s.Start()
	}
	drain(sub)

	step := time.Second / time.Duration(fps)
	ctx := context.Background()
	for i := 0; i < ticks; i++ {
		clock.Advance(step)
		s.Step(ctx, clock.Now())
		drain(sub)
	}

	outputs := s.Outputs()
	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		logEvent("info", "graphcheck.outputs", "", map[string]interface{}{
			"node_id": id,
			"outputs": outputs[id],
		})
	}

	st := s.PlayheadState()
	logEvent("info", "graphcheck.summary", "graph evaluated", map[string]interface{}{
		"path":     path,
		"nodes":    s.NodeCount(),
		"frames":   s.Frames(),
		"playhead": st.Time,
	})
	return nil
}

// drain prints the events emitted so far without blocking.
func drain(sub events.Subscriber) {
	for {
		select {
		case e := <-sub:
			printEvent(e)
		default:
			return
		}
	}
}
