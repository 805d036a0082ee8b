package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/pkg/client"
	"github.com/chess-vn/courtsync/pkg/logging"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080", "match server address")
	matchId := flag.String("match", "", "match id to follow")
	fps := flag.Int("fps", 10, "frames per second")
	flag.Parse()
	if *matchId == "" || *fps < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := logging.Init("warn"); err != nil {
		logging.Fatal("failed to init logger", zap.Error(err))
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	c := client.New(client.DefaultConfig(strings.TrimSuffix(*addr, "/")+"/match/"+*matchId), clock)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Run(gctx)
	})
	g.Go(func() error {
		return c.Projector().Run(gctx, time.Second/time.Duration(*fps), func(v client.View) {
			render(v, c.Synchronizer().Quality())
		})
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logging.Fatal("viewer exited", zap.Error(err))
	}
}

func render(v client.View, quality client.Quality) {
	left, right := v.TeamA, v.TeamB
	if v.LeftSideTeam == entities.TeamB {
		left, right = right, left
	}
	fmt.Printf("\r%-20s %3d [%s]  %s  sub %s  [%s] %3d %20s  sync:%-7s",
		left.Name, left.Score, doOrDie(left),
		clockText(v.Timer), clockText(v.SubTimer),
		doOrDie(right), right.Score, right.Name,
		quality,
	)
}

func clockText(t client.TimerView) string {
	state := " "
	switch {
	case t.IsRunning:
		state = ">"
	case t.IsPaused:
		state = "="
	}
	return fmt.Sprintf("%s%02d:%02d", state, t.Display/60, t.Display%60)
}

func doOrDie(team entities.TeamState) string {
	return strings.Repeat("*", team.DoOrDieCount) + strings.Repeat(".", entities.MaxDoOrDieCount-team.DoOrDieCount)
}
