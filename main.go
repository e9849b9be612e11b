package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	cartx "github.com/partassist/client-go/client/cart"
	gatewayx "github.com/partassist/client-go/client/gateway"
	sessionx "github.com/partassist/client-go/client/session"
	statex "github.com/partassist/client-go/client/state"
	configx "github.com/partassist/client-go/pkg/config"
	_ "github.com/partassist/client-go/pkg/logger/autoload"
)

type AppConfig struct {
	SessionID string `envconfig:"SESSION_ID"`
	CartStore string `envconfig:"CART_STORE" default:"file"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("PARTASSIST")

	gatewayCfg := configx.MustNew[gatewayx.Config]("ASSISTANT")
	gw := gatewayx.MustNew(*gatewayCfg)

	store := buildStore(appCfg.CartStore)

	orch, err := sessionx.New(gw, store, sessionx.Config{SessionID: appCfg.SessionID})
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	orch.Start(ctx)

	fmt.Println("PartAssist - ask about appliance parts. Commands: /cart /add <n> /qty <line> <n> /rm <line> /checkout /dismiss /quit")
	repl(ctx, orch)
}

func buildStore(kind string) statex.CartStore {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "redis", "upstash":
		cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*cfg)
		if err != nil {
			panic(err)
		}
		return store
	default:
		cfg := configx.MustNew[statex.FileStoreConfig]("CART_STORE")
		store, err := statex.NewFileStore(*cfg)
		if err != nil {
			panic(err)
		}
		return store
	}
}

func repl(ctx context.Context, orch *sessionx.Orchestrator) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if err := orch.SubmitMessage(ctx, line); err != nil {
				fmt.Println("!", err)
				continue
			}
			printLastReply(orch.Snapshot())
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/quit", "/exit":
			return
		case "/cart":
			printCart(orch.Snapshot())
		case "/add":
			handleAdd(ctx, orch, fields[1:])
		case "/qty":
			handleQty(ctx, orch, fields[1:])
		case "/rm":
			handleRemove(ctx, orch, fields[1:])
		case "/checkout":
			if err := orch.Checkout(ctx); err != nil {
				fmt.Println("!", err)
				continue
			}
			snap := orch.Snapshot()
			fmt.Printf("Order %s placed. Thank you!\n", snap.LastOrderID)
		case "/dismiss":
			orch.DismissOrderComplete()
		default:
			fmt.Println("! unknown command:", fields[0])
		}
	}
}

func handleAdd(ctx context.Context, orch *sessionx.Orchestrator, args []string) {
	idx, ok := parseIndex(args, 0)
	if !ok {
		fmt.Println("! usage: /add <product number from the last reply>")
		return
	}
	products := lastProducts(orch.Snapshot())
	if idx < 1 || idx > len(products) {
		fmt.Printf("! no product %d in the last reply\n", idx)
		return
	}
	p := products[idx-1]
	if err := orch.AddToCart(ctx, p, 1); err != nil {
		fmt.Println("! could not add to cart:", err)
		return
	}
	fmt.Printf("Added %s (%s) to cart.\n", p.Name, p.PartNumber)
	printCart(orch.Snapshot())
}

func handleQty(ctx context.Context, orch *sessionx.Orchestrator, args []string) {
	lineNo, ok1 := parseIndex(args, 0)
	qty, ok2 := parseIndex(args, 1)
	if !ok1 || !ok2 {
		fmt.Println("! usage: /qty <line> <quantity>")
		return
	}
	if err := orch.UpdateQuantity(ctx, lineNo-1, qty); err != nil {
		fmt.Println("!", err)
		return
	}
	printCart(orch.Snapshot())
}

func handleRemove(ctx context.Context, orch *sessionx.Orchestrator, args []string) {
	lineNo, ok := parseIndex(args, 0)
	if !ok {
		fmt.Println("! usage: /rm <line>")
		return
	}
	if err := orch.RemoveLine(ctx, lineNo-1); err != nil {
		fmt.Println("!", err)
		return
	}
	printCart(orch.Snapshot())
}

func parseIndex(args []string, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// lastProducts returns the product cards of the most recent assistant
// reply, the set /add indexes into.
func lastProducts(snap sessionx.Snapshot) []statex.Product {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		m := snap.Messages[i]
		if m.Role == statex.RoleAssistant && len(m.Products) > 0 {
			return m.Products
		}
	}
	return nil
}

func printLastReply(snap sessionx.Snapshot) {
	if len(snap.Messages) == 0 {
		return
	}
	m := snap.Messages[len(snap.Messages)-1]
	if m.Role != statex.RoleAssistant {
		return
	}
	fmt.Println(m.Content)
	for i, p := range m.Products {
		stock := "in stock"
		if !p.InStock {
			stock = "out of stock"
		}
		fmt.Printf("  [%d] %s - %s ($%.2f, %s)\n", i+1, p.PartNumber, p.Name, p.Price, stock)
	}
}

func printCart(snap sessionx.Snapshot) {
	if snap.Cart.Empty() {
		fmt.Println("Cart is empty.")
		return
	}
	for i, ln := range snap.Cart.Lines {
		fmt.Printf("  %d. %s - %s  x%d  @ $%.2f\n", i+1, ln.Product.PartNumber, ln.Product.Name, ln.Quantity, ln.Product.Price)
	}
	t := cartx.Compute(snap.Cart).Rounded()
	fmt.Printf("  subtotal $%.2f  shipping $%.2f  tax $%.2f  total $%.2f\n", t.Subtotal, t.Shipping, t.Tax, t.Total)
}
