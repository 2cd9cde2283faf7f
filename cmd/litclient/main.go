package main

import (
	"log"
	"os"

	"github.com/ruteri/lit-quorum-client/cmd/flags"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/urfave/cli/v2"
)

var flagSessionStore = &cli.StringSliceFlag{
	Name:    "session-store",
	Usage:   "session store URI (file://, vault://, s3://), repeatable to mirror sessions",
	EnvVars: []string{"LIT_SESSION_STORE"},
}
var flagSession = &cli.StringFlag{
	Name:  "session",
	Value: "default",
	Usage: "name of the stored session to authenticate with",
}
var flagConditions = &cli.StringFlag{
	Name:  "conditions",
	Usage: "unified access control conditions as JSON, or @file",
}
var flagConditionsHash = &cli.StringFlag{
	Name:  "conditions-hash",
	Usage: "hex sha256 of the canonical access control conditions, instead of --conditions",
}
var flagIpfsAPI = &cli.StringFlag{
	Name:    "ipfs-api",
	Value:   "localhost:5001",
	Usage:   "IPFS HTTP API address",
	EnvVars: []string{"IPFS_API"},
}
var flagCode = &cli.StringFlag{
	Name:  "code",
	Usage: "lit action source, or @file",
}
var flagIpfsID = &cli.StringFlag{
	Name:  "ipfs-id",
	Usage: "CID of a published lit action",
}
var flagJsParams = &cli.StringFlag{
	Name:  "js-params",
	Usage: "lit action parameters as JSON, or @file",
}

const usage = `Client for Lit threshold networks: encrypt and decrypt under access control
conditions, sign with PKPs, run Lit Actions and manage session keys.`

func main() {
	globalFlags := append([]cli.Flag{}, flags.LogFlags...)
	globalFlags = append(globalFlags, flags.LogServiceFlagFn(common.PackageName))
	globalFlags = append(globalFlags, flags.NetworkFlags...)
	globalFlags = append(globalFlags, flagSessionStore, flagSession)

	app := &cli.App{
		Name:  "litclient",
		Usage: usage,
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:   "handshake",
				Usage:  "handshake with the network and print the resolved node set",
				Action: runHandshake,
			},
			{
				Name:  "encrypt",
				Usage: "encrypt data locally under access control conditions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Required: true, Usage: "data to encrypt, or @file"},
					flagConditions,
					flagConditionsHash,
				},
				Action: runEncrypt,
			},
			{
				Name:  "decrypt",
				Usage: "decrypt a ciphertext with decryption shares from the network",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ciphertext", Required: true, Usage: "base64 ciphertext, or @file"},
					&cli.StringFlag{Name: "data-hash", Required: true, Usage: "hex sha256 of the plaintext"},
					&cli.StringFlag{Name: "chain", Value: "ethereum", Usage: "chain the conditions are checked on"},
					flagConditions,
					flagConditionsHash,
				},
				Action: runDecrypt,
			},
			{
				Name:  "pkp-sign",
				Usage: "sign a message with a PKP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pubkey", Required: true, Usage: "PKP public key, hex"},
					&cli.StringFlag{Name: "message", Usage: "message to sign, utf-8"},
					&cli.StringFlag{Name: "message-hex", Usage: "message to sign, hex"},
					&cli.StringFlag{Name: "chain", Value: "ethereum", Usage: "ethereum, bitcoin or cosmos"},
					&cli.StringFlag{Name: "scheme", Value: "EcdsaK256Sha256", Usage: "signing scheme"},
					&cli.BoolFlag{Name: "bypass-hashing", Usage: "sign the message bytes without pre-hashing"},
				},
				Action: runPkpSign,
			},
			{
				Name:  "execute",
				Usage: "run a lit action",
				Flags: []cli.Flag{
					flagCode,
					flagIpfsID,
					flagJsParams,
					&cli.StringFlag{Name: "strategy", Value: "leastCommon", Usage: "response strategy: leastCommon or mostCommon"},
					&cli.BoolFlag{Name: "single-node", Usage: "run on a single node"},
				},
				Action: runExecute,
			},
			{
				Name:  "session",
				Usage: "manage stored sessions",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "have the network delegate a PKP to a new session key and store it",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "pkp-public-key", Required: true, Usage: "PKP public key, hex"},
							&cli.UintFlag{Name: "auth-method-type", Usage: "auth method type"},
							&cli.StringFlag{Name: "access-token", Usage: "auth method access token"},
							&cli.DurationFlag{Name: "ttl", Value: defaultSessionTTL, Usage: "session lifetime"},
							flagCode,
							flagIpfsID,
							flagJsParams,
						},
						Action: runSessionCreate,
					},
					{
						Name:   "show",
						Usage:  "print the public parts of a stored session",
						Action: runSessionShow,
					},
				},
			},
			{
				Name:  "action",
				Usage: "publish and fetch lit action code on IPFS",
				Flags: []cli.Flag{flagIpfsAPI},
				Subcommands: []*cli.Command{
					{
						Name:   "publish",
						Usage:  "pin lit action code and print its CID",
						Flags:  []cli.Flag{flagCode},
						Action: runActionPublish,
					},
					{
						Name:   "fetch",
						Usage:  "print the code stored under a CID",
						Flags:  []cli.Flag{flagIpfsID},
						Action: runActionFetch,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
