package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	cartapp "github.com/dwikikusuma/shoping-storefront/internal/cart/app"
	cartdomain "github.com/dwikikusuma/shoping-storefront/internal/cart/domain"
	cartapi "github.com/dwikikusuma/shoping-storefront/internal/cart/infra/httpapi"
	catalogapp "github.com/dwikikusuma/shoping-storefront/internal/catalog/app"
	catalogapi "github.com/dwikikusuma/shoping-storefront/internal/catalog/infra/httpapi"
	checkoutapp "github.com/dwikikusuma/shoping-storefront/internal/checkout/app"
	checkoutadapter "github.com/dwikikusuma/shoping-storefront/internal/checkout/infra/adapter"
	"github.com/dwikikusuma/shoping-storefront/internal/gateway"
	orderapp "github.com/dwikikusuma/shoping-storefront/internal/order/app"
	orderdomain "github.com/dwikikusuma/shoping-storefront/internal/order/domain"
	orderapi "github.com/dwikikusuma/shoping-storefront/internal/order/infra/httpapi"
	sessionapp "github.com/dwikikusuma/shoping-storefront/internal/session/app"
	sessionapi "github.com/dwikikusuma/shoping-storefront/internal/session/infra/httpapi"
	"github.com/dwikikusuma/shoping-storefront/internal/storage"
	"github.com/dwikikusuma/shoping-storefront/pkg/config"
)

type cli struct {
	cfg    config.Config
	log    *slog.Logger
	http   *http.Client
	stdin  io.Reader
	stdout io.Writer
}

// services is everything one command may touch, wired over one storage
// handle and one gateway.
type services struct {
	kv       storage.KV
	session  *sessionapp.Store
	catalog  *catalogapp.Service
	cart     *cartapp.Synchronizer
	orders   *orderapp.Lifecycle
	checkout *checkoutapp.Service
}

func (c *cli) wire(ctx context.Context) (*services, error) {
	kv, err := storage.Open(ctx, c.cfg.Storage)
	if err != nil {
		return nil, err
	}

	session, err := sessionapp.NewStore(ctx, kv, sessionapi.NewTokenClient(c.cfg.BackendURL, c.http), c.log)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	gw := gateway.New(c.cfg.BackendURL, c.http, session, gateway.WithLogger(c.log))

	catalog := catalogapp.NewService(catalogapi.NewProductAPI(gw))
	cart := cartapp.NewSynchronizer(cartapi.NewCartAPI(gw), session, cartapp.WithLogger(c.log))
	orders := orderapp.NewLifecycle(orderapi.NewOrderAPI(gw), session, c.log)
	checkout := checkoutapp.NewService(
		checkoutadapter.NewCartServiceReader(cart),
		checkoutadapter.NewCatalogServiceReader(catalog),
		orders, kv, c.log, 10,
	)

	return &services{
		kv:       kv,
		session:  session,
		catalog:  catalog,
		cart:     cart,
		orders:   orders,
		checkout: checkout,
	}, nil
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	svc, err := c.wire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.kv.Close(); err != nil {
			c.log.Warn("closing storage failed", slog.Any("err", err))
		}
	}()

	switch cmd {
	case "login":
		return c.cmdLogin(ctx, svc, args)
	case "logout":
		return c.cmdLogout(ctx, svc)
	case "register":
		return c.cmdRegister(ctx, svc, args)
	case "whoami":
		return c.cmdWhoami(svc)
	case "products":
		return c.cmdProducts(ctx, svc, args)
	case "product":
		return c.cmdProduct(ctx, svc, args)
	case "cart":
		return c.cmdCart(ctx, svc)
	case "add":
		return c.cmdAdd(ctx, svc, args)
	case "set":
		return c.cmdSet(ctx, svc, args)
	case "remove":
		return c.cmdRemove(ctx, svc, args)
	case "checkout":
		return c.cmdCheckout(ctx, svc, args)
	case "orders":
		return c.cmdOrders(ctx, svc, args)
	case "track":
		return c.cmdTrack(ctx, svc, args)
	case "cancel":
		return c.cmdCancel(ctx, svc, args)
	default:
		return apperr.Validation("storefront", "unknown command %q (see storefront help)", cmd)
	}
}

func usageErr(usage string) error {
	return apperr.Validation("storefront", "usage: storefront %s", usage)
}

// credentials takes the password from args or, failing that, one line of
// stdin.
func (c *cli) credentials(args []string, usage string) (string, string, error) {
	switch len(args) {
	case 2:
		return args[0], args[1], nil
	case 1:
		fmt.Fprint(c.stdout, "Password: ")
		line, err := bufio.NewReader(c.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", err
		}
		fmt.Fprintln(c.stdout)
		return args[0], strings.TrimRight(line, "\r\n"), nil
	default:
		return "", "", usageErr(usage)
	}
}

func (c *cli) cmdLogin(ctx context.Context, svc *services, args []string) error {
	user, pass, err := c.credentials(args, "login <username> [password]")
	if err != nil {
		return err
	}
	sess, err := svc.session.Login(ctx, user, pass)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Logged in as %s.\n", sess.Username)
	return nil
}

func (c *cli) cmdLogout(ctx context.Context, svc *services) error {
	if err := svc.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "Logged out.")
	return nil
}

func (c *cli) cmdRegister(ctx context.Context, svc *services, args []string) error {
	user, pass, err := c.credentials(args, "register <username> [password]")
	if err != nil {
		return err
	}
	if err := svc.session.Register(ctx, user, pass); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Account %s created. You can now log in.\n", user)
	return nil
}

func (c *cli) cmdWhoami(svc *services) error {
	st := svc.session.Status()
	if !st.LoggedIn {
		return apperr.Unauthenticated("whoami")
	}
	name := st.Username
	if name == "" {
		name = "(unknown user)"
	}
	fmt.Fprintf(c.stdout, "Logged in as %s.\n", name)
	if !st.AccessExpiresAt.IsZero() {
		fmt.Fprintf(c.stdout, "Access token expires %s.\n", st.AccessExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func (c *cli) cmdProducts(ctx context.Context, svc *services, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	category := fs.String("category", "", "only this category")
	if err := fs.Parse(args); err != nil {
		return usageErr("products [-category c] [query]")
	}

	products, err := svc.catalog.ListProducts(ctx, strings.Join(fs.Args(), " "), *category)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(c.stdout, "No products found.")
		return nil
	}

	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.Stock)
	}
	return w.Flush()
}

func (c *cli) cmdProduct(ctx context.Context, svc *services, args []string) error {
	if len(args) != 1 {
		return usageErr("product <id>")
	}
	p, err := svc.catalog.GetProduct(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s (#%s)\n", p.Name, p.ID)
	fmt.Fprintf(c.stdout, "Category: %s\nPrice: %s\nIn stock: %d\n", p.Category, p.Price.StringFixed(2), p.Stock)
	if p.Description != "" {
		fmt.Fprintf(c.stdout, "\n%s\n", p.Description)
	}
	return nil
}

func (c *cli) printCart(cart cartdomain.Cart) error {
	if cart.IsEmpty() {
		fmt.Fprintln(c.stdout, "Your cart is empty.")
		return nil
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tPRODUCT\tQTY\tPRICE\tLINE")
	for _, it := range cart.Items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", it.ID, it.Product.Name, it.Quantity,
			it.Product.Price.StringFixed(2), it.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t%d\t\t%s\n", cart.Count(), cart.Subtotal().StringFixed(2))
	return w.Flush()
}

func (c *cli) cmdCart(ctx context.Context, svc *services) error {
	cart := svc.cart.Load(ctx)
	if err := svc.cart.Err(); err != nil {
		return err
	}
	return c.printCart(cart)
}

// reportMutation prints the reconciled cart and returns the mutation's
// error, falling back to the reload error when the mutation succeeded.
func (c *cli) reportMutation(svc *services, cart cartdomain.Cart, err error) error {
	if err != nil {
		return err
	}
	if loadErr := svc.cart.Err(); loadErr != nil {
		return loadErr
	}
	return c.printCart(cart)
}

func (c *cli) cmdAdd(ctx context.Context, svc *services, args []string) error {
	if len(args) != 1 {
		return usageErr("add <product-id>")
	}
	cart, err := svc.cart.Add(ctx, args[0])
	return c.reportMutation(svc, cart, err)
}

func (c *cli) cmdSet(ctx context.Context, svc *services, args []string) error {
	if len(args) != 2 {
		return usageErr("set <item-id> <quantity>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return apperr.Validation("cart.set_quantity", "quantity must be a whole number, got %q", args[1])
	}
	cart, err := svc.cart.SetQuantity(ctx, args[0], n)
	return c.reportMutation(svc, cart, err)
}

func (c *cli) cmdRemove(ctx context.Context, svc *services, args []string) error {
	if len(args) != 1 {
		return usageErr("remove <item-id>")
	}
	cart, err := svc.cart.Remove(ctx, args[0])
	return c.reportMutation(svc, cart, err)
}

func (c *cli) cmdCheckout(ctx context.Context, svc *services, args []string) error {
	if len(args) == 0 {
		return usageErr("checkout stage|quote|place")
	}
	switch args[0] {
	case "stage":
		snap, err := svc.checkout.Stage(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Staged %d line(s) for payment.\n", len(snap.Lines))
		return nil
	case "quote":
		return c.cmdQuote(ctx, svc, args[1:])
	case "place":
		return c.cmdPlace(ctx, svc, args[1:])
	default:
		return usageErr("checkout stage|quote|place")
	}
}

func (c *cli) cmdQuote(ctx context.Context, svc *services, args []string) error {
	fs := flag.NewFlagSet("checkout quote", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	delivery := fs.Bool("delivery", false, "add the delivery fee")
	if err := fs.Parse(args); err != nil {
		return usageErr("checkout quote [-delivery]")
	}

	q, err := svc.checkout.Quote(ctx, *delivery)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tQTY\tPRICE\tLINE")
	for _, ln := range q.Lines {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", ln.Name, ln.Quantity, ln.UnitPrice.StringFixed(2), ln.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(w, "Subtotal\t\t\t%s\n", q.Subtotal.StringFixed(2))
	if q.Delivery {
		fmt.Fprintf(w, "Delivery\t\t\t%s\n", q.DeliveryFee.StringFixed(2))
	}
	fmt.Fprintf(w, "Total\t\t\t%s\n", q.Total.StringFixed(2))
	return w.Flush()
}

func (c *cli) cmdPlace(ctx context.Context, svc *services, args []string) error {
	fs := flag.NewFlagSet("checkout place", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	var cust orderdomain.Customer
	fs.StringVar(&cust.FirstName, "first", "", "first name")
	fs.StringVar(&cust.LastName, "last", "", "last name")
	fs.IntVar(&cust.Age, "age", 0, "age")
	fs.StringVar(&cust.Phone, "phone", "", "phone number")
	fs.StringVar(&cust.Email, "email", "", "email")
	fs.StringVar(&cust.Gender, "gender", "", "gender")
	fs.StringVar(&cust.Location, "location", "", "delivery or pickup location")
	ref := fs.String("mpesa", "", "payment transaction code")
	delivery := fs.Bool("delivery", false, "deliver instead of pickup")
	if err := fs.Parse(args); err != nil {
		return usageErr("checkout place -mpesa <code> -first <name> -last <name> -age <n> -phone <p> -email <e> -gender <g> -location <l> [-delivery]")
	}

	o, err := svc.checkout.Place(ctx, cust, *delivery, *ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Order %s placed (#%s), total %s.\n", o.Code, o.ID, o.TotalAmount.StringFixed(2))
	if o.Delivery {
		fmt.Fprintln(c.stdout, "Delivery in 1 to 4 working days.")
	} else {
		fmt.Fprintln(c.stdout, "Ready for pickup in 2 hours.")
	}
	return nil
}

func (c *cli) cmdOrders(ctx context.Context, svc *services, args []string) error {
	orders, err := svc.orders.List(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(c.stdout, "No orders.")
		return nil
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tSTATUS\tITEMS\tTOTAL\tPLACED")
	for _, o := range orders {
		placed := ""
		if !o.CreatedAt.IsZero() {
			placed = o.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", o.ID, o.Code, o.Status, len(o.Items), o.TotalAmount.StringFixed(2), placed)
	}
	return w.Flush()
}

func (c *cli) cmdTrack(ctx context.Context, svc *services, args []string) error {
	if len(args) != 1 {
		return usageErr("track <order-id>")
	}
	st, err := svc.orders.Track(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Order #%s is %s.\n", args[0], st)
	return nil
}

func (c *cli) cmdCancel(ctx context.Context, svc *services, args []string) error {
	if len(args) != 1 {
		return usageErr("cancel <order-id>")
	}
	st, err := svc.orders.Cancel(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Order #%s is %s.\n", args[0], st)
	return nil
}
