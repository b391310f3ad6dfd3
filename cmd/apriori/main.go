// Command apriori runs the temporal-trajectory simulation core as a
// standalone process: it owns the durable store and the orchestrator,
// drives the per-frame loop on a wall-clock ticker, and accepts a
// minimal line-oriented subset of the command grammar of §6 over
// stdin. The full grammar (duration syntax, reply channels, session
// listing) is owned by an external front-end that is not built here;
// this binary exists to make the core runnable end to end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/apriori/internal/config"
	"github.com/banshee-data/apriori/internal/engine"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/simcontext"
	"github.com/banshee-data/apriori/internal/store"
	"github.com/banshee-data/apriori/internal/timeutil"
	"github.com/banshee-data/apriori/internal/version"
)

var (
	dbPathFlag   = flag.String("db-path", "apriori.db", "path to sqlite database file")
	configFile   = flag.String("config", config.DefaultConfigPath, "path to JSON tuning configuration file")
	sessionName  = flag.String("session", "", "session to load on startup; a fresh session is created if empty")
	frameRate    = flag.Duration("frame-interval", 33*time.Millisecond, "wall-clock interval between frames")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	log.Printf("apriori v%s (git SHA: %s)", version.Version, version.GitSHA)

	tuningCfg, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		log.Printf("using default tuning config: %v", err)
		tuningCfg = config.EmptyTuningConfig()
	}

	db, err := store.Open(*dbPathFlag)
	if err != nil {
		log.Printf("failed to open store: %v", err)
		return 1
	}
	defer db.Close()

	clock := timeutil.RealClock{}
	eng := engine.New(db, tuningCfg, clock, renderToStdout)

	if *sessionName == "" {
		if _, err := eng.NewSession(nil, clock.Now().Unix()); err != nil {
			log.Printf("failed to create session: %v", err)
			return 1
		}
	} else if err := eng.LoadSession(*sessionName, clock.Now().Unix()); err != nil {
		log.Printf("failed to load session %q: %v", *sessionName, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	exitCode := make(chan int, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		runFrameLoop(ctx, eng, *frameRate)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		exitCode <- runCommandLoop(ctx, eng, stop)
	}()

	wg.Wait()

	select {
	case code := <-exitCode:
		return code
	default:
		return 0
	}
}

// runFrameLoop advances the engine on a wall-clock ticker until ctx is
// cancelled (§4.8 "Per-frame operations").
func runFrameLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := eng.Frame(interval); err != nil {
				log.Printf("frame error: %v", err)
				return
			}
		}
	}
}

// renderToStdout is the default RenderFunc: it prints each live body's
// position once per frame. A real front-end would supply its own
// renderer instead (§2).
func renderToStdout(results []simcontext.LocationResult) {
	for _, r := range results {
		if r.Status != simcontext.StatusLive {
			continue
		}
		fmt.Printf("body=%d x=%.3f y=%.3f z=%.3f\n", r.Body, r.Position.X, r.Position.Y, r.Position.Z)
	}
}

// runCommandLoop reads the minimal command subset from stdin, one
// command per line, until stdin closes, ctx is cancelled (e.g. by a
// signal), or shutdown is requested. Reading happens on a separate
// goroutine since bufio.Scanner.Scan has no way to observe ctx itself.
func runCommandLoop(ctx context.Context, eng *engine.Engine, stop context.CancelFunc) int {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if err := eng.Shutdown(); err != nil {
				log.Printf("shutdown: %v", err)
				return 1
			}
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "shutdown" {
				if err := eng.Shutdown(); err != nil {
					log.Printf("shutdown: %v", err)
					stop()
					return 1
				}
				stop()
				return 0
			}
			if err := dispatch(eng, line); err != nil {
				log.Printf("[input] %v", err)
			}
		}
	}
}

// dispatch handles one line of the command subset relevant to the
// core (§6): vt, vtstep, add-obj, rename-obj, new-session,
// save-session-as, load-session, new-layer, select-layer. Everything
// else (list-objects, tracks, names, the full duration grammar) is the
// external front-end's responsibility.
func dispatch(eng *engine.Engine, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := parseFlags(fields[1:])

	switch fields[0] {
	case "vt":
		t, err := strconv.ParseFloat(args["time"], 64)
		if err != nil {
			return fmt.Errorf("vt --time: %w", err)
		}
		eng.SetVirtualTime(t)
	case "vtstep":
		step, err := strconv.ParseFloat(args["step"], 64)
		if err != nil {
			return fmt.Errorf("vtstep --step: %w", err)
		}
		eng.SetVirtualStep(step)
	case "add-obj":
		position, err := parseVector(args["l"])
		if err != nil {
			return fmt.Errorf("add-obj -l: %w", err)
		}
		velocity, err := parseVector(args["v"])
		if err != nil {
			return fmt.Errorf("add-obj -v: %w", err)
		}
		radius, mass, computeStep := 1.0, 1.0, 0.1
		if v, ok := args["r"]; ok {
			radius, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := args["m"]; ok {
			mass, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := args["s"]; ok {
			computeStep, _ = strconv.ParseFloat(v, 64)
		}
		var color uint32
		if v, ok := args["c"]; ok {
			c, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("add-obj -c: %w", err)
			}
			color = uint32(c)
		}
		id, err := eng.AddObject(args["n"], position, velocity, color, radius, mass, computeStep)
		if err != nil {
			return err
		}
		fmt.Printf("object %d created\n", id)
	case "rename-obj":
		id, err := strconv.ParseInt(args["old-name"], 10, 64)
		if err != nil {
			return fmt.Errorf("rename-obj --old-name must be a body id: %w", err)
		}
		return eng.RenameObject(simcontext.BodyID(id), args["new-name"])
	case "new-session":
		var name *string
		if v, ok := args["n"]; ok {
			name = &v
		}
		_, err := eng.NewSession(name, time.Now().Unix())
		return err
	case "save-session-as":
		return eng.SaveSessionAs(args["n"])
	case "load-session":
		return eng.LoadSession(args["n"], time.Now().Unix())
	case "new-layer":
		start, _ := strconv.ParseFloat(args["start"], 64)
		_, err := eng.NewLayer(args["n"], nil, start)
		return err
	case "select-layer":
		id, err := strconv.ParseInt(args["id"], 10, 64)
		if err != nil {
			return fmt.Errorf("select-layer --id must be a layer id: %w", err)
		}
		window := simcontext.Window{Start: eng.VirtualTime() - 5, End: eng.VirtualTime() + 5}
		eng.SelectLayer(simcontext.LayerID(id), window)
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

// parseFlags turns `-n NAME -l 1,2,3` / `--old-name X` style tokens
// into a flag-name → value map. Boolean switches (--reverse,
// --origin, --all) are recorded with an empty value.
func parseFlags(tokens []string) map[string]string {
	out := make(map[string]string)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "-") {
			continue
		}
		name := strings.TrimLeft(tok, "-")
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
			out[name] = tokens[i+1]
			i++
		} else {
			out[name] = ""
		}
	}
	return out
}

// parseVector parses the "X,Y,Z" syntax used by add-obj's -l/-v flags.
func parseVector(s string) (kernel.Vector, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return kernel.Vector{}, fmt.Errorf("expected X,Y,Z, got %q", s)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return kernel.Vector{}, err
		}
		vals[i] = v
	}
	return kernel.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
