// Command cmxctl manages participant keys and talks to a cmx gateway: it
// signs and submits marketplace invocations and runs queries.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"carbonex.market/cmx/internal/identity"
	"carbonex.market/cmx/internal/types"
)

type globalOptions struct {
	KeyFile string `short:"k" long:"keyfile" default:"cmx_participant.pem" description:"Participant key file"`
	Node    string `short:"n" long:"node" default:"http://localhost:8080" description:"cmx gateway URL"`
}

var global globalOptions

type keygenCommand struct{}

func (keygenCommand) Execute([]string) error {
	id, err := identity.LoadOrCreateIdentity(global.KeyFile)
	if err != nil {
		return err
	}
	fmt.Println(id.ID())
	return nil
}

type invokeCommand struct {
	Args struct {
		Method string `positional-arg-name:"method" required:"yes"`
		JSON   string `positional-arg-name:"args"`
	} `positional-args:"yes"`
}

func (c *invokeCommand) Execute([]string) error {
	signer, err := identity.LoadIdentity(global.KeyFile)
	if err != nil {
		return fmt.Errorf("load key (run keygen first): %w", err)
	}
	args, err := rawArgs(c.Args.JSON)
	if err != nil {
		return err
	}
	res, err := newClient(global.Node).submit(context.Background(), signer, types.Method(c.Args.Method), args)
	if err != nil {
		return err
	}
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("rejected with code %d: %s", res.Code, res.Log)
	}
	return nil
}

type queryCommand struct {
	Args struct {
		Method string `positional-arg-name:"method" required:"yes"`
		JSON   string `positional-arg-name:"args"`
	} `positional-args:"yes"`
}

func (c *queryCommand) Execute([]string) error {
	args, err := rawArgs(c.Args.JSON)
	if err != nil {
		return err
	}
	method := types.Method(c.Args.Method)
	// Balance queries default to the holder of the key file.
	if (method == types.MethodGetCreditBalance || method == types.MethodGetProceeds) && len(args) == 0 {
		id, err := identity.LoadIdentity(global.KeyFile)
		if err != nil {
			return err
		}
		args, _ = json.Marshal(types.AccountRef{Identity: id.ID()})
	}
	out, err := newClient(global.Node).query(context.Background(), method, args)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

type listCommand struct {
	Open bool `long:"open" description:"Only list records that are still open"`
	Args struct {
		Kind string `positional-arg-name:"kind" choice:"proposals" choice:"auctions" choice:"sales" required:"yes"`
	} `positional-args:"yes"`
}

func (c *listCommand) Execute([]string) error {
	out, err := newClient(global.Node).list(context.Background(), c.Args.Kind, c.Open)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func rawArgs(s string) (json.RawMessage, error) {
	if s == "" {
		return nil, nil
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("arguments are not valid JSON: %s", s)
	}
	return json.RawMessage(s), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	parser := flags.NewParser(&global, flags.Default)
	parser.AddCommand("keygen", "Create a participant key",
		"Creates the key file if it does not exist and prints the participant identity.",
		&keygenCommand{})
	parser.AddCommand("invoke", "Sign and submit an invocation",
		`Signs METHOD with the JSON ARGS, e.g. invoke PlaceBid '{"auction_id":"...","amount":10}'.`,
		&invokeCommand{})
	parser.AddCommand("query", "Run a read-only query",
		`Runs METHOD with the JSON ARGS, e.g. query GetSale '{"sale_id":"..."}'.`,
		&queryCommand{})
	parser.AddCommand("list", "List proposals, auctions or sales",
		"Lists every record of KIND, or only open ones with --open.",
		&listCommand{})

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
