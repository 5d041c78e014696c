package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/spacegame/netsync/game"
	"github.com/spacegame/netsync/netsync"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport/ws"
	"github.com/spacegame/netsync/world"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run a headless game client.",
	Long: "`client` connects to a game server and plays until interrupted " +
		"or disconnected. The player walks in circles and, with --pilot, " +
		"takes the first free ship for a spin.",
	Run: func(cmd *cobra.Command, _ []string) {
		cfg := loadConfig(cmd)
		wander := flagBool(cmd, "wander")
		pilot := flagBool(cmd, "pilot")

		fingerprint := game.NewRegistry().Fingerprint()

		dialCtx, cancelDial := context.WithTimeout(context.Background(),
			10*time.Second)
		wsClient, err := ws.Dial(dialCtx, cfg.ServerURL, fingerprint,
			cfg.Transport())
		cancelDial()

		if err != nil {
			log.Fatalf("Error connecting: %v", err)
		}

		w := world.NewECS()
		client := netsync.MakeClientBuilder().
			WithTransport(wsClient).
			WithWorld(w).
			WithFreq(cfg.Freq()).
			WithQueueCapacity(cfg.QueueCapacity).
			Build(cfg.PlayerName)
		g := game.NewClient(client, w)

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)

		client.OnConnect(func() {
			fmt.Fprintf(os.Stderr, "%s connected as %s\n",
				cfg.PlayerName, client.ConnID())
		})
		client.OnDisconnect(func() {
			fmt.Fprintf(os.Stderr, "%s disconnected\n", cfg.PlayerName)
			stop()
		})

		if wander {
			client.AddSystem(walkInCircles(client, g))
		}

		if pilot {
			client.AddSystem(flyFirstShip(client, g))
		}

		release := observe(client.Context, cfg)

		err = client.Run(ctx)
		stop()

		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("Error running client: %v", err)
		}

		release()
		wsClient.Close()

		fmt.Fprintf(os.Stderr, "Stopped after %d ticks\n", client.CurrentTick())
		atexit.Exit(0)
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.Flags().String("server", "", "websocket URL of the server")
	clientCmd.Flags().String("name", "", "name of the player")
	clientCmd.Flags().Bool("wander", true, "walk in circles")
	clientCmd.Flags().Bool("pilot", false, "fly the first free ship")
}

// walkInCircles moves the player around the spawn point, one full circle
// every six seconds.
func walkInCircles(client *netsync.Client, g *game.Client) sim.Middleware {
	dt := client.Driver().Freq().Seconds()

	return sim.MiddlewareFunc(func() bool {
		if _, found := g.Self(); !found {
			return false
		}

		angle := float64(client.CurrentTick()) * dt * math.Pi / 3
		g.Move(game.Transform{
			X:     game.SpawnPoint.X + 2*math.Cos(angle),
			Y:     game.SpawnPoint.Y + 2*math.Sin(angle),
			Angle: angle,
		})

		return true
	})
}

// flyFirstShip asks for the first free ship once, then keeps it turning.
func flyFirstShip(client *netsync.Client, g *game.Client) sim.Middleware {
	asked := false

	return sim.MiddlewareFunc(func() bool {
		ships := g.Ships()
		if len(ships) == 0 {
			return false
		}

		ship := ships[0]
		pilot, piloted := g.Pilot(ship)

		switch {
		case piloted && pilot == client.ConnID():
			g.Thrust(ship, game.Force{X: 1, Torque: 0.5})
			return true
		case !piloted && !asked:
			g.EnterShip(ship)
			asked = true

			return true
		default:
			return false
		}
	})
}
