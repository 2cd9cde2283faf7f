package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ruteri/lit-quorum-client/cmd/flags"
	"github.com/ruteri/lit-quorum-client/devnet"
	"github.com/ruteri/lit-quorum-client/httpserver"
	"github.com/urfave/cli/v2"
)

var cliFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "nodes",
		Value: 5,
		Usage: "number of nodes to run",
	},
	&cli.IntFlag{
		Name:  "threshold",
		Value: 3,
		Usage: "number of shares needed to combine signatures",
	},
	&cli.StringFlag{
		Name:  "listen-host",
		Value: "127.0.0.1",
		Usage: "host the nodes listen on",
	},
	&cli.IntFlag{
		Name:  "base-port",
		Value: 7470,
		Usage: "port of the first node, the others use the following ports",
	},
	&cli.Uint64Flag{
		Name:  "epoch",
		Value: 1,
		Usage: "epoch the nodes report",
	},
	&cli.BoolFlag{
		Name:  "echo-actions",
		Value: false,
		Usage: "answer lit actions with their js params instead of rejecting them",
	},
}

func main() {
	allFlags := append([]cli.Flag{}, cliFlags...)
	allFlags = append(allFlags, flags.LogFlags...)
	allFlags = append(allFlags, flags.LogServiceFlagFn("lit-devnet"))
	allFlags = append(allFlags, flags.ServerFlags...)

	app := &cli.App{
		Name:  "devnet",
		Usage: "Run a local threshold network for development and testing",
		Flags: allFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			host := cCtx.String("listen-host")
			basePort := cCtx.Int("base-port")

			opts := devnet.Options{
				Nodes:     cCtx.Int("nodes"),
				Threshold: cCtx.Int("threshold"),
				Epoch:     cCtx.Uint64("epoch"),
				Log:       logger,
			}
			if cCtx.Bool("echo-actions") {
				opts.Actions = devnet.EchoActions
			}

			keys, nodes, err := devnet.NewNodes(opts)
			if err != nil {
				logger.Error("Failed to create nodes", "err", err)
				return err
			}

			servers := make([]*httpserver.Server, 0, len(nodes))
			bootstrap := make([]string, 0, len(nodes))
			for i, node := range nodes {
				addr := net.JoinHostPort(host, strconv.Itoa(basePort+i))
				url := "http://" + addr
				node.SetURL(url)

				nodeLog := logger.With(slog.Int("node", i))
				server := httpserver.New(flags.ConfigureServer(cCtx, nodeLog, addr), node)
				server.RunInBackground()

				servers = append(servers, server)
				bootstrap = append(bootstrap, url)
			}

			info, _ := json.MarshalIndent(map[string]any{
				"bootstrapUrls":    bootstrap,
				"threshold":        opts.Threshold,
				"epoch":            opts.Epoch,
				"networkPublicKey": keys.NetworkPublicKeyHex(),
				"pkpPublicKey":     keys.PKPPublicKeyHex(),
			}, "", "  ")
			fmt.Println(string(info))

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Devnet is running, press Ctrl+C to stop", slog.Int("nodes", len(nodes)))
			<-exit
			logger.Info("Shutdown signal received")

			for _, server := range servers {
				server.Shutdown()
			}
			logger.Info("Devnet shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
