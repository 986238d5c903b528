// Command groundmeas runs earthing measurement analytics against a
// Postgres measurement store, either as one-shot CLI queries or as an
// HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Ce1ectric/groundmeas"
	"github.com/Ce1ectric/groundmeas/pkg/analytics"
	"github.com/Ce1ectric/groundmeas/pkg/config"
	"github.com/Ce1ectric/groundmeas/pkg/export"
	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/server"
	"github.com/Ce1ectric/groundmeas/pkg/store"
)

// measurementStore is the read surface the CLI needs from a store.
type measurementStore interface {
	store.ItemReader
	store.MeasurementReader
}

// openStore connects to Postgres when a database is configured and
// falls back to the in-memory demo store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (measurementStore, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Printf("WARNING: no database configured; using the in-memory demo store")
		return store.NewMemory(), func() error { return nil }, nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

type cliFlags struct {
	mode      string
	db        string
	backend   string
	id        int64
	ids       string
	typ       string
	algorithm string
	window    int
	method    string
	kind      string
	layers    int
	engine    string
	frequency float64
	fault     int64
	shields   string
	format    string
	out       string
}

func main() {
	var f cliFlags

	flag.StringVar(&f.mode, "mode", "serve", "Mode: serve|impedance|rhof|profile|soil|invert|split|epr|export")
	flag.StringVar(&f.db, "db", "", "Postgres URL (overrides GROUNDMEAS_DB)")
	flag.StringVar(&f.backend, "backend", "", "Least-squares backend (overrides GROUNDMEAS_BACKEND)")
	flag.Int64Var(&f.id, "id", 0, "Measurement id")
	flag.StringVar(&f.ids, "ids", "", "Comma-separated measurement ids")
	flag.StringVar(&f.typ, "type", "earth_potential_rise", "Measurement type for profile mode")
	flag.StringVar(&f.algorithm, "algorithm", "maximum", "Profile reduction algorithm")
	flag.IntVar(&f.window, "window", 0, "Window size for minimum_stddev reduction")
	flag.StringVar(&f.method, "method", "wenner", "Sounding array: wenner|schlumberger")
	flag.StringVar(&f.kind, "kind", "resistivity", "Stored value kind: resistance|resistivity")
	flag.IntVar(&f.layers, "layers", 2, "Number of earth layers to invert")
	flag.StringVar(&f.engine, "engine", "", "Inversion engine: gauss-newton|lm")
	flag.Float64Var(&f.frequency, "frequency", 50, "Frequency of interest (Hz)")
	flag.Int64Var(&f.fault, "fault", 0, "Earth fault current item id for split mode")
	flag.StringVar(&f.shields, "shields", "", "Comma-separated shield current item ids")
	flag.StringVar(&f.format, "format", "json", "Export format: json|csv|xlsx")
	flag.StringVar(&f.out, "out", "", "Export output file (default STDOUT)")
	flag.Parse()

	cfg := config.Load()
	if f.db != "" {
		cfg.DatabaseURL = f.db
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}

	backend, warning := groundmeas.ResolveBackend(cfg.Backend)
	if warning != "" {
		log.Printf("WARNING: %s", warning)
	}

	ctx := context.Background()

	db, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open measurement store: %v", err)
	}
	defer closeStore()

	service := analytics.New(analytics.Options{
		Items:        db,
		Measurements: db,
		Backend:      backend,
	})

	switch f.mode {
	case "serve":
		runServer(cfg, service, db)
	case "impedance":
		result, err := service.ImpedanceOverFrequencyMulti(ctx, parseIDs(f))
		exitOn(err)
		printJSON(result)
	case "rhof":
		result, err := service.RhoFModel(ctx, parseIDs(f))
		exitOn(err)
		printJSON(result)
	case "profile":
		algorithm, err := groundmeas.ParseReductionAlgorithm(f.algorithm)
		exitOn(err)
		result, err := service.DistanceProfileValue(ctx, requireID(f), models.MeasurementType(f.typ), algorithm,
			analytics.ProfileOptions{Window: f.window})
		exitOn(err)
		printJSON(result)
	case "soil":
		method, kind := arrayArgs(f)
		result, err := service.SoilResistivityProfile(ctx, requireID(f), method, kind)
		exitOn(err)
		printJSON(result)
	case "invert":
		method, kind := arrayArgs(f)
		engine, err := groundmeas.ParseInversionEngine(f.engine)
		exitOn(err)
		result, err := service.InvertSoilResistivityLayers(ctx, requireID(f), analytics.InvertOptions{
			Method: method,
			Kind:   kind,
			Layers: f.layers,
			Engine: engine,
		})
		exitOn(err)
		printJSON(result)
	case "split":
		if f.fault == 0 {
			log.Fatal("-fault is required in split mode")
		}
		result, err := service.CalculateSplitFactor(ctx, f.fault, splitIDs(f.shields))
		exitOn(err)
		printJSON(result)
	case "epr":
		result, err := service.VoltageVtEPR(ctx, parseIDs(f), f.frequency)
		exitOn(err)
		printJSON(result)
	case "export":
		runExport(ctx, db, f)
	default:
		log.Fatalf("unknown mode %q", f.mode)
	}
}

func runServer(cfg *config.Config, service *analytics.Service, db store.MeasurementReader) {
	srv := server.New(server.Options{
		Config:       cfg,
		Service:      service,
		Measurements: db,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

func runExport(ctx context.Context, db store.MeasurementReader, f cliFlags) {
	exporter := export.New(db)

	out := os.Stdout
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			log.Fatalf("failed to create output file: %v", err)
		}
		defer file.Close()
		out = file
	}

	filters := store.Filters{}
	if f.id != 0 {
		filters["id"] = f.id
	}

	var err error
	switch f.format {
	case "json":
		err = exporter.JSON(ctx, out, filters)
	case "csv":
		err = exporter.CSV(ctx, out, filters)
	case "xlsx":
		err = exporter.XLSX(ctx, out, filters)
	default:
		log.Fatalf("unknown export format %q", f.format)
	}
	exitOn(err)
}

func parseIDs(f cliFlags) []int64 {
	if f.ids != "" {
		return splitIDs(f.ids)
	}
	if f.id != 0 {
		return []int64{f.id}
	}
	log.Fatal("-id or -ids is required")
	return nil
}

func requireID(f cliFlags) int64 {
	if f.id == 0 {
		log.Fatal("-id is required")
	}
	return f.id
}

func splitIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			log.Fatalf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids
}

func arrayArgs(f cliFlags) (groundmeas.ArrayMethod, groundmeas.ValueKind) {
	method, err := groundmeas.ParseArrayMethod(f.method)
	exitOn(err)
	kind, err := groundmeas.ParseValueKind(f.kind)
	exitOn(err)
	return method, kind
}

func exitOn(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal(err)
	}
}
