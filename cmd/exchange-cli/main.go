// exchange-cli is a one-shot REST client for the exchange.
//
// Usage:
//
//	exchange-cli [-addr URL] [-key APIKEY] <command> [args]
//
// Commands:
//
//	register <name>                 register a new user, prints the api key
//	instruments                     list tradeable instruments
//	depth <ticker> [levels]         show aggregated order book depth
//	trades <ticker> [limit]         show recent trades
//	balance                         show own balances
//	orders                          list own orders
//	buy <ticker> <qty> [price]      submit a buy order (no price = market)
//	sell <ticker> <qty> [price]     submit a sell order (no price = market)
//	cancel <order-id>               cancel an open limit order
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/voodoo-o/toy-exchange/pkg/api"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "exchange base URL")
	key := flag.String("key", os.Getenv("EXCHANGE_API_KEY"), "api key")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c := &client{base: *addr, key: *key}

	var err error
	switch cmd := args[0]; cmd {
	case "register":
		err = c.register(args[1:])
	case "instruments":
		err = c.instruments()
	case "depth":
		err = c.depth(args[1:])
	case "trades":
		err = c.trades(args[1:])
	case "balance":
		err = c.balance()
	case "orders":
		err = c.orders()
	case "buy":
		err = c.submit("BUY", args[1:])
	case "sell":
		err = c.submit("SELL", args[1:])
	case "cancel":
		err = c.cancel(args[1:])
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	key  string
}

func (c *client) do(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.base+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "TOKEN "+c.key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return fmt.Errorf("%s: %s (%s)", resp.Status, apiErr.Error, apiErr.Message)
			}
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) register(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: register <name>")
	}

	var u api.UserInfo
	if err := c.do("POST", "/api/v1/public/register", api.RegisterRequest{Name: args[0]}, &u); err != nil {
		return err
	}

	fmt.Printf("id:      %s\n", u.ID)
	fmt.Printf("name:    %s\n", u.Name)
	fmt.Printf("role:    %s\n", u.Role)
	fmt.Printf("api key: %s\n", u.APIKey)
	return nil
}

func (c *client) instruments() error {
	var insts []api.InstrumentInfo
	if err := c.do("GET", "/api/v1/public/instrument", nil, &insts); err != nil {
		return err
	}

	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"ticker", "name"})
	for _, inst := range insts {
		writer.Append([]string{inst.Ticker, inst.Name})
	}
	writer.SetCaption(true, "instruments")
	writer.Render()
	return nil
}

func (c *client) depth(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: depth <ticker> [levels]")
	}
	path := "/api/v1/public/orderbook/" + args[0]
	if len(args) > 1 {
		path += "?limit=" + args[1]
	}

	var book api.L2OrderBook
	if err := c.do("GET", path, nil, &book); err != nil {
		return err
	}

	// Render asks on top, best prices in the middle.
	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"side", "price", "qty"})
	for i := len(book.AskLevels) - 1; i >= 0; i-- {
		l := book.AskLevels[i]
		writer.Append([]string{"ASK", formatInt(l.Price), formatInt(l.Qty)})
	}
	for _, l := range book.BidLevels {
		writer.Append([]string{"BID", formatInt(l.Price), formatInt(l.Qty)})
	}
	writer.SetCaption(true, args[0])
	writer.Render()
	return nil
}

func (c *client) trades(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: trades <ticker> [limit]")
	}
	path := "/api/v1/public/transactions/" + args[0]
	if len(args) > 1 {
		path += "?limit=" + args[1]
	}

	var txs []api.TransactionInfo
	if err := c.do("GET", path, nil, &txs); err != nil {
		return err
	}

	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"time", "qty", "price", "total"})
	for _, tx := range txs {
		ts := time.UnixMilli(tx.Timestamp).Format(time.RFC3339)
		writer.Append([]string{ts, formatInt(tx.Amount), formatInt(tx.Price), formatInt(tx.Amount * tx.Price)})
	}
	writer.SetCaption(true, "trades "+args[0])
	writer.Render()
	return nil
}

func (c *client) balance() error {
	var balances map[string]int64
	if err := c.do("GET", "/api/v1/balance", nil, &balances); err != nil {
		return err
	}

	assets := make([]string, 0, len(balances))
	for asset := range balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"asset", "amount"})
	for _, asset := range assets {
		writer.Append([]string{asset, formatInt(balances[asset])})
	}
	writer.SetCaption(true, "balances")
	writer.Render()
	return nil
}

func (c *client) orders() error {
	var orders []api.OrderInfo
	if err := c.do("GET", "/api/v1/order", nil, &orders); err != nil {
		return err
	}

	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"id", "ticker", "side", "price", "qty", "filled", "status", "time"})
	for _, o := range orders {
		price := "MARKET"
		if o.Body.Price != nil {
			price = formatInt(*o.Body.Price)
		}
		ts := time.UnixMilli(o.Timestamp).Format(time.RFC3339)
		writer.Append([]string{o.ID, o.Body.Ticker, o.Body.Direction, price,
			formatInt(o.Body.Qty), formatInt(o.Filled), o.Status, ts})
	}
	writer.SetCaption(true, "orders")
	writer.Render()
	return nil
}

func (c *client) submit(direction string, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: %s <ticker> <qty> [price]", map[string]string{"BUY": "buy", "SELL": "sell"}[direction])
	}

	qty, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid qty: %s", args[1])
	}

	req := api.CreateOrderRequest{Direction: direction, Ticker: args[0], Qty: qty}
	if len(args) == 3 {
		price, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid price: %s", args[2])
		}
		req.Price = &price
	}

	var resp api.CreateOrderResponse
	if err := c.do("POST", "/api/v1/order", req, &resp); err != nil {
		return err
	}

	fmt.Printf("order id: %s\n", resp.OrderID)
	return nil
}

func (c *client) cancel(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cancel <order-id>")
	}
	if err := c.do("DELETE", "/api/v1/order/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Println("cancelled")
	return nil
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
