package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/spacegame/netsync/game"
	"github.com/spacegame/netsync/netsync"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/transport/ws"
	"github.com/spacegame/netsync/world"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run a game server.",
	Long: "`server` accepts websocket clients and runs the authoritative " +
		"game until interrupted.",
	Run: func(cmd *cobra.Command, _ []string) {
		cfg := loadConfig(cmd)

		fingerprint := game.NewRegistry().Fingerprint()

		wsServer := ws.NewServer(fingerprint, cfg.Transport())
		if err := wsServer.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}

		w := world.NewECS()
		server := netsync.MakeServerBuilder().
			WithTransport(wsServer).
			WithWorld(w).
			WithFreq(cfg.Freq()).
			WithQueueCapacity(cfg.QueueCapacity).
			Build("Server")
		g := game.NewServer(server, w)

		server.OnConnect(func(conn transport.ConnID) {
			fmt.Fprintf(os.Stderr, "%s joined\n", conn)
		})
		server.OnDisconnect(func(conn transport.ConnID) {
			fmt.Fprintf(os.Stderr, "%s left\n", conn)
		})

		if flagBool(cmd, "starter-ship") {
			g.SpawnShip(game.Transform{X: 10}, []game.Block{
				{Pos: game.BlockPos{X: 0, Y: -1}, Type: game.Thruster},
				{Pos: game.BlockPos{X: 0, Y: 0}, Type: game.Cockpit},
				{Pos: game.BlockPos{X: 0, Y: 1}, Type: game.Hull},
			})
		}

		release := observe(server.Context, cfg)

		fmt.Fprintf(os.Stderr, "Serving protocol %s on %s at %.0f ticks/s\n",
			fingerprint[:12], wsServer.Addr(), cfg.TickRate)

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)

		err := server.Run(ctx)
		stop()

		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("Error running server: %v", err)
		}

		release()

		if err := wsServer.Close(); err != nil {
			log.Printf("Error closing server: %v", err)
		}

		fmt.Fprintf(os.Stderr, "Stopped after %d ticks\n", server.CurrentTick())
		atexit.Exit(0)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().String("listen", "", "address to listen on")
	serverCmd.Flags().Bool("starter-ship", true,
		"spawn a ship at startup so that players have something to fly")
}
