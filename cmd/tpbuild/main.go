// Command tpbuild drives the three build-time/query-time operations spec
// §6 names as the system's CLI surface: build (produce one chunk or every
// chunk of a transfer-pattern build), merge (fold chunks into the
// query-ready graph file) and query (answer one findJourneys request
// against a merged graph). Grounded on cmd/main.go's cobra root + flag
// layout.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextstop-transit/transferpatterns/build"
	"github.com/nextstop-transit/transferpatterns/delayscenario"
	"github.com/nextstop-transit/transferpatterns/gtfsimport"
	"github.com/nextstop-transit/transferpatterns/query"
	"github.com/nextstop-transit/transferpatterns/streetrouter"
	"github.com/nextstop-transit/transferpatterns/timetable"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
)

var rootCmd = &cobra.Command{
	Use:          "tpbuild",
	Short:        "Transfer-pattern build and query tool",
	Long:         "Builds, merges and queries precomputed transit transfer-pattern graphs",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(buildCmd, mergeCmd, queryCmd)
}

func parseServiceDay(yyyymmdd string) (timetable.ServiceDay, error) {
	t, err := time.Parse("20060102", yyyymmdd)
	if err != nil {
		return timetable.ServiceDay{}, fmt.Errorf("parsing --day %q: %w", yyyymmdd, err)
	}
	return timetable.ServiceDay{Label: yyyymmdd, Midnight: t}, nil
}

var (
	buildFeedPath    string
	buildDayFlag     string
	buildOutDir      string
	buildNumChunks   int
	buildChunkIndex  int // 0 means "build every chunk"
	buildMaxTransfer int
	buildMaxWalkM    float64
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build one or all chunks of a transfer-pattern graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(buildFeedPath)
		if err != nil {
			return fmt.Errorf("reading feed %s: %w", buildFeedPath, err)
		}
		feed, err := gtfsimport.Load(raw)
		if err != nil {
			return fmt.Errorf("loading feed: %w", err)
		}

		day, err := parseServiceDay(buildDayFlag)
		if err != nil {
			return err
		}

		view := timetable.NewMemoryView(feed.Stops, feed.Patterns)
		router := streetrouter.NewHaversineRouter(buildMaxWalkM)

		cfg := build.DefaultConfig()
		cfg.MaxTransfers = buildMaxTransfer
		cfg.MaxWalkDistanceMeters = buildMaxWalkM
		cfg.DelayPolicy = delayscenario.Simple{}

		orch := build.NewOrchestrator(view, router, cfg, day)

		if err := os.MkdirAll(buildOutDir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}

		if buildChunkIndex != 0 {
			chunk, err := orch.BuildChunk(buildChunkIndex, buildNumChunks)
			if err != nil {
				return fmt.Errorf("building chunk %d/%d: %w", buildChunkIndex, buildNumChunks, err)
			}
			path := filepath.Join(buildOutDir, tpgraph.ChunkFileName(buildChunkIndex, buildNumChunks))
			return tpgraph.WriteChunk(path, chunk)
		}

		return orch.BuildAndWriteChunks(context.Background(), buildNumChunks, buildOutDir)
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildFeedPath, "feed", "", "path to a GTFS static .zip")
	buildCmd.Flags().StringVar(&buildDayFlag, "day", "", "service day, YYYYMMDD")
	buildCmd.Flags().StringVar(&buildOutDir, "out", ".", "output directory for chunk files")
	buildCmd.Flags().IntVar(&buildNumChunks, "chunks", 1, "total number of chunks")
	buildCmd.Flags().IntVar(&buildChunkIndex, "chunk", 0, "1-based chunk to build; 0 builds all chunks")
	buildCmd.Flags().IntVar(&buildMaxTransfer, "max-transfers", build.DefaultConfig().MaxTransfers, "max transfers per journey")
	buildCmd.Flags().Float64Var(&buildMaxWalkM, "max-walk-meters", build.DefaultConfig().MaxWalkDistanceMeters, "max walking distance in meters")
	buildCmd.MarkFlagRequired("feed")
	buildCmd.MarkFlagRequired("day")
}

var (
	mergeDir       string
	mergeNumChunks int
	mergeOutPath   string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge every chunk_n_of_m file in a directory into one graph file",
	RunE: func(cmd *cobra.Command, args []string) error {
		acc, err := build.MergeChunks(mergeDir, mergeNumChunks)
		if err != nil {
			return err
		}

		out := mergeOutPath
		if out == "" {
			mergedDir := filepath.Join(mergeDir, "merged")
			if err := os.MkdirAll(mergedDir, 0o755); err != nil {
				return fmt.Errorf("creating merged dir: %w", err)
			}
			out = filepath.Join(mergedDir, tpgraph.MergedFileName)
		}
		return tpgraph.WriteMerged(out, acc.Stops(), acc.TripPatterns(), acc.Index())
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeDir, "dir", ".", "directory holding chunk_n_of_m files")
	mergeCmd.Flags().IntVar(&mergeNumChunks, "chunks", 1, "total number of chunks")
	mergeCmd.Flags().StringVar(&mergeOutPath, "out", "", "merged graph output path (default: <dir>/merged/graph.tp)")
}

var (
	queryGraphPath string
	queryFrom      string
	queryTo        string
	queryDepart    string
	queryDay       string
	queryMaxWalkM  float64
)

// parseEndpoint accepts either "stop:<label>" or "<lat>,<lon>".
func parseEndpoint(raw string) (query.Endpoint, error) {
	if label, ok := strings.CutPrefix(raw, "stop:"); ok {
		return query.Endpoint{StopLabel: label}, nil
	}

	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return query.Endpoint{}, fmt.Errorf("%q is neither stop:<label> nor <lat>,<lon>", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return query.Endpoint{}, fmt.Errorf("parsing latitude in %q: %w", raw, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return query.Endpoint{}, fmt.Errorf("parsing longitude in %q: %w", raw, err)
	}
	return query.Endpoint{Lat: lat, Lon: lon}, nil
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Answer one findJourneys request against a merged graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		mf, err := tpgraph.ReadMerged(queryGraphPath)
		if err != nil {
			return err
		}
		idx := mf.Rehydrate()
		view := timetable.NewMemoryView(mf.Stops, mf.TripPatterns)

		day, err := parseServiceDay(queryDay)
		if err != nil {
			return err
		}

		departTime, err := time.Parse("15:04", queryDepart)
		if err != nil {
			return fmt.Errorf("parsing --depart %q: %w", queryDepart, err)
		}
		departSecs := day.Midnight.Add(time.Duration(departTime.Hour())*time.Hour + time.Duration(departTime.Minute())*time.Minute).Unix()

		from, err := parseEndpoint(queryFrom)
		if err != nil {
			return err
		}
		to, err := parseEndpoint(queryTo)
		if err != nil {
			return err
		}

		router := streetrouter.NewHaversineRouter(queryMaxWalkM)
		engine := query.NewEngine(idx, view, router, day)

		journeys, err := engine.FindJourneys(query.Request{
			From:                  from,
			To:                    to,
			DepartAtEpochSecs:     departSecs,
			MaxWalkDistanceMeters: queryMaxWalkM,
		})
		if err != nil {
			return err
		}

		if len(journeys) == 0 {
			fmt.Println("no journeys found")
			return nil
		}
		for i, j := range journeys {
			fmt.Printf("journey %d: depart %s arrive %s, %d leg(s)\n",
				i+1, j.DepartureTime().Format("15:04:05"), j.ArrivalTime().Format("15:04:05"), j.LegCount())
			for _, leg := range j.Legs {
				kind := "transit"
				if leg.Walking {
					kind = "walk"
				}
				fmt.Printf("  %s: %s -> %s (%s - %s)\n",
					kind, leg.From.Label, leg.To.Label,
					day.Time(leg.DepartSecs).Format("15:04:05"), day.Time(leg.ArriveSecs).Format("15:04:05"))
			}
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryGraphPath, "graph", "", "path to a merged graph file (graph.tp)")
	queryCmd.Flags().StringVar(&queryFrom, "from", "", "stop:<label> or <lat>,<lon>")
	queryCmd.Flags().StringVar(&queryTo, "to", "", "stop:<label> or <lat>,<lon>")
	queryCmd.Flags().StringVar(&queryDepart, "depart", "", "departure time, HH:MM")
	queryCmd.Flags().StringVar(&queryDay, "day", "", "service day, YYYYMMDD")
	queryCmd.Flags().Float64Var(&queryMaxWalkM, "max-walk-meters", 500, "max walking distance in meters")
	queryCmd.MarkFlagRequired("graph")
	queryCmd.MarkFlagRequired("from")
	queryCmd.MarkFlagRequired("to")
	queryCmd.MarkFlagRequired("depart")
	queryCmd.MarkFlagRequired("day")
}
