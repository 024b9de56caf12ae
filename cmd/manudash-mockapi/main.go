// manudash-mockapi serves a seeded manuscript corpus over the same HTTP
// surface the real review API exposes, for developing the dashboard
// against a predictable localhost backend.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/currax/manudash/internal/mockdata"
	"github.com/currax/manudash/internal/server"
)

func main() {
	addr := flag.String("addr", "localhost:4040", "address to listen on")
	seed := flag.Int64("seed", 42, "corpus generation seed")
	count := flag.Int("count", 25, "number of manuscripts to generate")
	throttle := flag.Duration("throttle", 300*time.Millisecond, "per-file delay while bundling, 0 to disable")
	flag.Parse()

	h := tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.Kitchen})
	slog.SetDefault(slog.New(h))

	s := server.New(*addr, mockdata.NewCorpus(*seed, *count))
	s.Throttle = *throttle
	if err := s.Start(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
