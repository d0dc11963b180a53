package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"localmart/internal/app/api"
	"localmart/internal/app/chat"
	"localmart/internal/app/session"
	"localmart/internal/app/user"
	"localmart/internal/pkg/errs"
)

// passwordEnv is read when --password is not given, so secrets stay out of shell history.
const passwordEnv = "LOCALMART_PASSWORD"

func password(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(passwordEnv)
}

func describeUser(u *user.User) string {
	if u == nil {
		return "unknown user"
	}
	return fmt.Sprintf("%s <%s> (id %d)", u.DisplayName(), u.Email, u.ID)
}

func requireSession(a *app) error {
	if !a.session.State().IsAuthenticated() {
		return errs.NewLocalError(errs.ErrNotAuthenticated)
	}
	return nil
}

func loginCommand(fs *pflag.FlagSet) func(ctx context.Context, a *app) error {
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "account password (default $"+passwordEnv+")")

	return func(ctx context.Context, a *app) error {
		if err := a.session.Login(ctx, *email, password(*pass)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Logged in as %s.\n", describeUser(a.session.State().User))
		return nil
	}
}

func registerCommand(fs *pflag.FlagSet) func(ctx context.Context, a *app) error {
	var in session.RegisterInput
	pass := fs.String("password", "", "account password (default $"+passwordEnv+")")
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.FirstName, "first-name", "", "first name")
	fs.StringVar(&in.LastName, "last-name", "", "last name")
	fs.StringVar(&in.PhoneNumber, "phone", "", "phone number")
	fs.StringVar(&in.Location, "location", "", "town or neighbourhood")

	return func(ctx context.Context, a *app) error {
		in.Password = password(*pass)
		created, err := a.session.Register(ctx, in)
		if created != nil {
			fmt.Fprintf(a.out, "Registered %s.\n", describeUser(created))
		}
		if err != nil {
			return err
		}

		if a.session.State().IsAuthenticated() {
			fmt.Fprintln(a.out, "You are now logged in.")
		} else {
			fmt.Fprintln(a.out, "Run 'localmart login' to sign in.")
		}
		return nil
	}
}

func logoutCommand(fs *pflag.FlagSet) func(ctx context.Context, a *app) error {
	return func(ctx context.Context, a *app) error {
		if !a.session.State().IsAuthenticated() {
			fmt.Fprintln(a.out, "Not logged in.")
			return nil
		}
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out.")
		return nil
	}
}

func whoamiCommand(fs *pflag.FlagSet) func(ctx context.Context, a *app) error {
	offline := fs.Bool("offline", false, "skip checking the token with the server")

	return func(ctx context.Context, a *app) error {
		if !a.session.State().IsAuthenticated() {
			fmt.Fprintln(a.out, "Not logged in.")
			return nil
		}
		if !*offline {
			if err := a.session.ValidateToken(ctx); err != nil {
				return err
			}
		}

		st := a.session.State()
		if !st.IsAuthenticated() {
			fmt.Fprintln(a.out, "Your session has expired. Please log in again.")
			return nil
		}
		fmt.Fprintln(a.out, describeUser(st.User))
		return nil
	}
}

func productsCommand(fs *pflag.FlagSet) func(ctx context.Context, a *app) error {
	var filter api.ProductFilter
	fs.StringVar(&filter.Search, "search", "", "text to look for in title and description")
	fs.StringVar(&filter.Location, "location", "", "location to match")
	fs.StringVar(&filter.MinPrice, "min-price", "", "lowest price")
	fs.StringVar(&filter.MaxPrice, "max-price", "", "highest price")
	fs.Int64Var(&filter.Category, "category", 0, "category id")
	mine := fs.Bool("mine", false, "list your own listings")
	wishlist := fs.Bool("wishlist", false, "list your wishlist")

	return func(ctx context.Context, a *app) error {
		var products []api.Product
		var err error

		switch {
		case *mine:
			if err = requireSession(a); err != nil {
				return err
			}
			products, err = a.api.MyProducts(ctx)
		case *wishlist:
			if err = requireSession(a); err != nil {
				return err
			}
			products, err = a.api.Wishlist(ctx)
		default:
			products, err = a.api.ListProducts(ctx, filter)
		}
		if err != nil {
			return err
		}

		if len(products) == 0 {
			fmt.Fprintln(a.out, "No products found.")
			return nil
		}

		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tLOCATION\tSELLER")
		for _, p := range products {
			title := p.Title
			if p.IsUrgent {
				title += " (urgent)"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, title, p.Price, p.Location, p.SellerName)
		}
		return tw.Flush()
	}
}

func formatTrend(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

func statsCommand(fs *pflag.FlagSet) func(ctx context.Context, a *app) error {
	timeframe := fs.String("timeframe", api.TimeframeWeek, "week, month or year")
	productID := fs.Int64("product", 0, "show one listing instead of the summary")

	return func(ctx context.Context, a *app) error {
		if err := requireSession(a); err != nil {
			return err
		}

		if *productID != 0 {
			p, err := a.api.ProductAnalytics(ctx, *productID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Listing %d: %d views, %d wishlisted, %d chats, %d messages\n",
				p.ProductID, p.ViewsCount, p.WishlistCount, p.ChatRooms, p.MessagesCount)
			return nil
		}

		stats, err := a.api.UserStats(ctx)
		if err != nil {
			return err
		}
		summary, err := a.api.Analytics(ctx, *timeframe)
		if err != nil {
			return err
		}

		fmt.Fprintf(a.out, "Listings: %d (%d active), wishlist: %d, chats: %d, unread: %d\n",
			stats.TotalListings, stats.ActiveListings, stats.WishlistCount, stats.ChatRooms, stats.UnreadMessages)

		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "THIS %s\tVALUE\tTREND\n", strings.ToUpper(summary.Timeframe))
		fmt.Fprintf(tw, "sales\t%s\t%s\n", summary.TotalSales, formatTrend(summary.SalesTrend))
		fmt.Fprintf(tw, "active listings\t%d\t%s\n", summary.ActiveListings, formatTrend(summary.ListingsTrend))
		fmt.Fprintf(tw, "views\t%d\t%s\n", summary.TotalViews, formatTrend(summary.ViewsTrend))
		fmt.Fprintf(tw, "messages\t%d\t%s\n", summary.TotalMessages, formatTrend(summary.MessagesTrend))
		return tw.Flush()
	}
}

// console serializes writes from listener goroutines and the input loop.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

func chatCommand(fs *pflag.FlagSet) func(ctx context.Context, a *app) error {
	roomFlag := fs.String("room", "", "chat room id")
	productID := fs.Int64("product", 0, "product id, to open the room with its seller")
	sellerID := fs.Int64("seller", 0, "seller id, with --product")
	history := fs.Bool("history", true, "print earlier messages before joining")

	return func(ctx context.Context, a *app) error {
		if err := requireSession(a); err != nil {
			return err
		}

		roomID := *roomFlag
		if roomID == "" {
			if *productID == 0 || *sellerID == 0 {
				return errs.NewLocalError(errs.ErrValidation, "Pass --room, or --product together with --seller.")
			}
			room, err := a.api.CreateOrGetRoom(ctx, *productID, *sellerID)
			if err != nil {
				return err
			}
			roomID = strconv.FormatInt(room.ID, 10)
		}

		out := &console{w: a.out}
		if *history {
			messages, err := a.api.ListMessages(ctx, roomID)
			if err != nil {
				return err
			}
			for _, m := range messages {
				name := "?"
				if m.Sender != nil {
					name = m.Sender.DisplayName()
				}
				out.printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), name, m.Content)
			}
		}

		t, err := a.transport()
		if err != nil {
			return err
		}
		defer t.Disconnect()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		unsubscribe := a.session.Subscribe(func(st session.State) {
			if st.Status == session.Unauthenticated {
				out.printf("Your session has ended.\n")
				cancel()
			}
		})
		defer unsubscribe()

		// The chat can outlive a revoked token, so recheck it while the room is open.
		validatorDone := make(chan struct{})
		go func() {
			defer close(validatorDone)
			a.session.RunValidator(ctx)
		}()
		defer func() {
			cancel()
			<-validatorDone
		}()

		subscribeChatEvents(t, out)

		if err := t.Connect(ctx, roomID); err != nil {
			return err
		}
		out.printf("Joined room %s. Type a message, /typing, /read or /quit.\n", roomID)

		return chatLoop(ctx, t, a.stdin, out)
	}
}

func subscribeChatEvents(t chat.Transport, out *console) {
	t.AddListener(chat.EventMessage, func(ev chat.Event) {
		out.printf("[%s] %s: %s\n", ev.Message.Timestamp, ev.Message.SenderName, ev.Message.Content)
	})
	t.AddListener(chat.EventTyping, func(ev chat.Event) {
		if ev.IsTyping {
			out.printf("* user %d is typing\n", ev.UserID)
		}
	})
	t.AddListener(chat.EventStatus, func(ev chat.Event) {
		out.printf("* user %d is %s\n", ev.UserID, ev.Status)
	})
	t.AddListener(chat.EventReadReceipt, func(ev chat.Event) {
		out.printf("* user %d read the conversation\n", ev.UserID)
	})
	t.AddListener(chat.EventError, func(ev chat.Event) {
		out.printf("! %s\n", ev.Error)
	})
}

// chatLoop sends each input line until /quit, end of input or cancellation.
func chatLoop(ctx context.Context, t chat.Transport, in io.Reader, out *console) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			var frame chat.Frame
			switch text := strings.TrimSpace(line); text {
			case "":
				continue
			case "/quit":
				return nil
			case "/typing":
				frame = chat.TypingFrame(true)
			case "/read":
				frame = chat.ReadFrame()
			default:
				frame = chat.MessageFrame(text)
			}

			if err := t.Send(frame); err != nil {
				out.printf("! %s\n", errs.Message(err))
			}
		}
	}
}
