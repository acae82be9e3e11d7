// Command walletctl drives a running walletd from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ruteri/quorum-wallet/api"
	"github.com/ruteri/quorum-wallet/api/clients"
	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/ruteri/quorum-wallet/wallet"
	"github.com/urfave/cli/v2"
)

var flagAddr = &cli.StringFlag{
	Name:    "addr",
	Value:   "http://127.0.0.1:8080",
	EnvVars: []string{"WALLET_ADDR"},
	Usage:   "wallet daemon API address",
}

var flagModule = &cli.StringSliceFlag{
	Name:  "module",
	Usage: "module taking part without input, e.g. --module button",
}

var flagInput = &cli.StringSliceFlag{
	Name:  "input",
	Usage: "module input as module.field=value, e.g. --input pin.pin=1234",
}

var flagRequired = &cli.IntFlag{
	Name:  "required",
	Usage: "number of modules required; the daemon default applies when 0",
}

var flagMnemonicFile = &cli.StringFlag{
	Name:  "mnemonic-file",
	Usage: "file holding the backup phrase; read from WALLET_MNEMONIC when omitted",
}

func main() {
	app := &cli.App{
		Name:  "walletctl",
		Usage: "Control a quorum wallet daemon",
		Flags: []cli.Flag{flagAddr},
		Commands: []*cli.Command{
			{
				Name:  "modules",
				Usage: "List configured modules",
				Action: func(cCtx *cli.Context) error {
					descriptors, err := client(cCtx).Modules(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(descriptors)
				},
			},
			{
				Name:      "state",
				Usage:     "Show the state of a module",
				ArgsUsage: "<module>",
				Action: func(cCtx *cli.Context) error {
					id, err := moduleArg(cCtx)
					if err != nil {
						return err
					}
					state, err := client(cCtx).ModuleState(cCtx.Context, id)
					if err != nil {
						return err
					}
					return printJSON(state)
				},
			},
			{
				Name:      "step",
				Usage:     "Advance a module with input",
				ArgsUsage: "<module>",
				Flags:     []cli.Flag{flagInput},
				Action: func(cCtx *cli.Context) error {
					id, err := moduleArg(cCtx)
					if err != nil {
						return err
					}
					inputs, err := parseInputs(nil, cCtx.StringSlice(flagInput.Name))
					if err != nil {
						return err
					}
					step, err := client(cCtx).NextStep(cCtx.Context, id, inputs[id])
					if err != nil {
						return err
					}
					return printJSON(step)
				},
			},
			{
				Name:  "unlock",
				Usage: "Run an unlock attempt",
				Flags: []cli.Flag{flagModule, flagInput, flagRequired},
				Action: func(cCtx *cli.Context) error {
					inputs, err := parseInputs(cCtx.StringSlice(flagModule.Name), cCtx.StringSlice(flagInput.Name))
					if err != nil {
						return err
					}
					if err := client(cCtx).Unlock(cCtx.Context, api.UnlockRequest{
						Modules:  inputs,
						Required: cCtx.Int(flagRequired.Name),
					}); err != nil {
						return err
					}
					fmt.Println("wallet unlocked")
					return nil
				},
			},
			{
				Name:  "restore",
				Usage: "Re-provision the wallet from a backup phrase",
				Flags: []cli.Flag{flagModule, flagInput, flagRequired, flagMnemonicFile},
				Action: func(cCtx *cli.Context) error {
					words, err := readMnemonic(cCtx.String(flagMnemonicFile.Name))
					if err != nil {
						return err
					}
					inputs, err := parseInputs(cCtx.StringSlice(flagModule.Name), cCtx.StringSlice(flagInput.Name))
					if err != nil {
						return err
					}
					resp, err := client(cCtx).Restore(cCtx.Context, api.RestoreRequest{
						MnemonicWords: words,
						Modules:       inputs,
						Required:      cCtx.Int(flagRequired.Name),
					})
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "new-mnemonic",
				Usage: "Generate a fresh 24 word backup phrase locally",
				Action: func(cCtx *cli.Context) error {
					words, err := wallet.NewMnemonic()
					if err != nil {
						return err
					}
					fmt.Println(strings.Join(words, " "))
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show the wallet status",
				Action: func(cCtx *cli.Context) error {
					status, err := client(cCtx).Status(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(status)
				},
			},
			{
				Name:  "lock",
				Usage: "Lock the wallet",
				Action: func(cCtx *cli.Context) error {
					return client(cCtx).Lock(cCtx.Context)
				},
			},
			{
				Name:  "tap",
				Usage: "Reset the auto-lock countdown",
				Action: func(cCtx *cli.Context) error {
					return client(cCtx).Tap(cCtx.Context)
				},
			},
			{
				Name:      "events",
				Usage:     "Follow an event topic until interrupted",
				ArgsUsage: "<topic>",
				Action: func(cCtx *cli.Context) error {
					topic := cCtx.Args().First()
					if topic == "" {
						return errors.New("topic argument is required")
					}
					ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					events, err := client(cCtx).Events(ctx, interfaces.Topic(topic))
					if err != nil {
						return err
					}
					for event := range events {
						fmt.Printf("%s [%s] %s\n", event.At.Format("15:04:05"), event.Topic, event.Message)
					}
					return nil
				},
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func client(cCtx *cli.Context) *clients.WalletClient {
	return clients.NewWalletClient(cCtx.String(flagAddr.Name), nil)
}

func moduleArg(cCtx *cli.Context) (interfaces.ModuleID, error) {
	id := cCtx.Args().First()
	if id == "" {
		return "", errors.New("module argument is required")
	}
	return interfaces.ModuleID(id), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseInputs builds per-module inputs from bare module ids and
// module.field=value assignments.
func parseInputs(ids []string, assignments []string) (map[interfaces.ModuleID]map[string]string, error) {
	inputs := make(map[interfaces.ModuleID]map[string]string)
	for _, id := range ids {
		if id == "" {
			return nil, errors.New("empty module id")
		}
		if _, found := inputs[interfaces.ModuleID(id)]; !found {
			inputs[interfaces.ModuleID(id)] = map[string]string{}
		}
	}
	for _, a := range assignments {
		key, value, found := strings.Cut(a, "=")
		if !found {
			return nil, fmt.Errorf("input %q is not of the form module.field=value", a)
		}
		module, field, found := strings.Cut(key, ".")
		if !found || module == "" || field == "" {
			return nil, fmt.Errorf("input %q is not of the form module.field=value", a)
		}
		id := interfaces.ModuleID(module)
		if inputs[id] == nil {
			inputs[id] = map[string]string{}
		}
		inputs[id][field] = value
	}
	return inputs, nil
}

func readMnemonic(path string) ([]string, error) {
	var phrase string
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read mnemonic file: %w", err)
		}
		phrase = string(data)
	} else {
		phrase = os.Getenv("WALLET_MNEMONIC")
	}
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return nil, errors.New("no backup phrase given, use --mnemonic-file or WALLET_MNEMONIC")
	}
	return words, nil
}
