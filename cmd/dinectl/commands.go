package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go-dine-api/apiclient"
	"go-dine-api/config"
	"go-dine-api/dineapi"
	"go-dine-api/logger"
	"go-dine-api/model"
	"go-dine-api/tokenstore"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const usage = `usage: dinectl [flags] <command> [args]

commands:
  register              create an account and sign in
  login                 sign in and store the session
  me                    show the signed-in user
  orders                list orders
  order ID [ID...]      show orders, fetched concurrently
  place NAME:QTY:PRICE  place an order, one argument per item
  status ID STATUS      move an order to STATUS (admin)
  logout [--all]        end the session, or every session with --all
`

// maxParallel bounds concurrent requests for the order command.
const maxParallel = 4

func run(ctx context.Context, args []string, con *console) error {
	fs := pflag.NewFlagSet("dinectl", pflag.ContinueOnError)
	fs.SetOutput(con.err)
	fs.Usage = func() {
		fmt.Fprint(con.err, usage+"\nflags:\n")
		fs.PrintDefaults()
	}

	configDir := fs.String("config", ".", "directory holding config.yml")
	baseURL := fs.String("base-url", "", "API base URL (overrides client.base_url)")
	apiKey := fs.String("api-key", "", "X-API-KEY value (overrides api.key)")
	storeDriver := fs.String("store", "", "token store: memory, file, redis, postgres or dynamodb")
	storePath := fs.String("store-path", "", "token file for the file store")
	verbose := fs.BoolP("verbose", "v", false, "log requests and refreshes")
	fs.SetInterspersed(false)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
		cfg.Client.AuthURL = *baseURL
	}
	if *apiKey != "" {
		cfg.API.Key = *apiKey
	}
	if *storeDriver != "" {
		cfg.Client.TokenStore.Driver = *storeDriver
	}
	if *storePath != "" {
		cfg.Client.TokenStore.Path = *storePath
	}

	logger.Log.SetOutput(con.err)
	logger.Log.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.Log.SetLevel(logrus.DebugLevel)
	}

	store, closeStore, err := tokenstore.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}
	defer closeStore()

	client, err := apiclient.New(apiclient.ConfigFrom(cfg), store,
		apiclient.WithLogoutHandler(func(_ context.Context, reason error) {
			if reason != nil {
				fmt.Fprintln(con.err, "Session expired, please log in again.")
			}
		}))
	if err != nil {
		return err
	}

	api := dineapi.New(client)
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "register":
		return cmdRegister(ctx, api, con)
	case "login":
		return cmdLogin(ctx, api, con)
	case "me":
		return cmdMe(ctx, api, con)
	case "orders":
		return cmdOrders(ctx, api, con)
	case "order":
		return cmdOrder(ctx, api, con, rest)
	case "place":
		return cmdPlace(ctx, api, con, rest)
	case "status":
		return cmdStatus(ctx, api, con, rest)
	case "logout":
		return cmdLogout(ctx, api, rest)
	}

	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func credentials(con *console) (string, string, error) {
	email, err := con.prompt("Email")
	if err != nil {
		return "", "", err
	}
	password, err := con.password()
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

func cmdRegister(ctx context.Context, api *dineapi.API, con *console) error {
	username, err := con.prompt("Username")
	if err != nil {
		return err
	}
	email, password, err := credentials(con)
	if err != nil {
		return err
	}

	user, err := api.Register(ctx, model.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return err
	}
	if err := api.Login(ctx, email, password); err != nil {
		return err
	}
	return con.printJSON(user)
}

func cmdLogin(ctx context.Context, api *dineapi.API, con *console) error {
	email, password, err := credentials(con)
	if err != nil {
		return err
	}
	if err := api.Login(ctx, email, password); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return errors.New("invalid email or password")
		}
		return err
	}
	fmt.Fprintln(con.err, "Logged in.")
	return nil
}

func cmdMe(ctx context.Context, api *dineapi.API, con *console) error {
	user, err := api.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return con.printJSON(user)
}

func cmdOrders(ctx context.Context, api *dineapi.API, con *console) error {
	orders, err := api.ListOrders(ctx)
	if err != nil {
		return err
	}
	return con.printJSON(orders)
}

// cmdOrder fetches every requested order concurrently and prints them in
// argument order.
func cmdOrder(ctx context.Context, api *dineapi.API, con *console, args []string) error {
	if len(args) == 0 {
		return errors.New("order needs at least one ID")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	orders := make([]*model.Order, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, id := range ids {
		g.Go(func() error {
			order, err := api.GetOrder(gctx, id)
			if err != nil {
				return fmt.Errorf("order %d: %w", id, err)
			}
			orders[i] = order
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(orders) == 1 {
		return con.printJSON(orders[0])
	}
	return con.printJSON(orders)
}

func cmdPlace(ctx context.Context, api *dineapi.API, con *console, args []string) error {
	if len(args) == 0 {
		return errors.New("place needs at least one NAME:QTY:PRICE item")
	}
	items := make([]model.OrderItem, 0, len(args))
	for _, arg := range args {
		item, err := parseItem(arg)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	order, err := api.CreateOrder(ctx, items)
	if err != nil {
		return err
	}
	return con.printJSON(order)
}

func cmdStatus(ctx context.Context, api *dineapi.API, con *console, args []string) error {
	if len(args) != 2 {
		return errors.New("status needs an order ID and a status")
	}
	ids, err := parseIDs(args[:1])
	if err != nil {
		return err
	}

	order, err := api.UpdateOrderStatus(ctx, ids[0], model.OrderStatus(args[1]))
	if err != nil {
		return err
	}
	return con.printJSON(order)
}

func cmdLogout(ctx context.Context, api *dineapi.API, args []string) error {
	fs := pflag.NewFlagSet("logout", pflag.ContinueOnError)
	all := fs.Bool("all", false, "revoke every session of the account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *all {
		return api.LogoutEverywhere(ctx)
	}
	return api.Logout(ctx)
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid order ID %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseItem reads NAME:QTY:PRICE.
func parseItem(arg string) (model.OrderItem, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 3 {
		return model.OrderItem{}, fmt.Errorf("invalid item %q, want NAME:QTY:PRICE", arg)
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil {
		return model.OrderItem{}, fmt.Errorf("invalid quantity in %q", arg)
	}
	price, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return model.OrderItem{}, fmt.Errorf("invalid price in %q", arg)
	}
	return model.OrderItem{Name: parts[0], Quantity: qty, Price: price}, nil
}
