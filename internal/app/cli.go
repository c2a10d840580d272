package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/storyshelf/internal/bookmark"
	"github.com/MrSnakeDoc/storyshelf/internal/config"
	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
	"github.com/MrSnakeDoc/storyshelf/internal/push"
	"github.com/MrSnakeDoc/storyshelf/internal/push/device"
	"github.com/MrSnakeDoc/storyshelf/internal/push/remote"
	"github.com/MrSnakeDoc/storyshelf/internal/utils"
)

// Exit codes
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

const usage = `usage:
  storyshelf serve
  storyshelf bookmark list [query]
  storyshelf bookmark add|save <id> [-name N] [-description D] [-photo URL] [-lat LAT -lon LON]
  storyshelf bookmark remove|check <id>
  storyshelf push register|unregister|status|subscribe|unsubscribe
  storyshelf push permission [granted|denied|default]
  storyshelf version
`

var errUsage = errors.New("invalid usage")

// CLI runs the client commands against the configured storage, the local
// device registration and the remote subscription endpoint.
type CLI struct {
	cfg    *config.Config
	logger logger.Logger
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func NewCLI(cfg *config.Config, log logger.Logger, in io.Reader, out, errOut io.Writer) *CLI {
	return &CLI{cfg: cfg, logger: log, in: in, out: out, errOut: errOut}
}

// Run dispatches args (without the program name) and returns the exit code.
func (c *CLI) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.errOut, usage)
		return ExitUsage
	}

	var err error
	switch args[0] {
	case "bookmark":
		err = c.bookmark(ctx, args[1:])
	case "push":
		err = c.push(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return ExitOK
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(c.errOut, "❌ %v\n\n%s", err, usage)
		return ExitUsage
	default:
		fmt.Fprintf(c.errOut, "❌ %v\n", err)
		return ExitError
	}
}

// ─────────────────────────────────────────────────────────────────
// bookmark
// ─────────────────────────────────────────────────────────────────

func (c *CLI) bookmark(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: bookmark needs a subcommand", errUsage)
	}

	st, err := openStorage(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer utils.MustClose(st, "storage", c.logger)
	store := bookmark.NewStore(st, c.logger)

	switch args[0] {
	case "list":
		return c.printBookmarks(store.Search(ctx, strings.Join(args[1:], " ")))

	case "add", "save":
		b, err := parseBookmark(args[1:])
		if err != nil {
			return err
		}
		if args[0] == "save" {
			if err := store.Save(ctx, b); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "✅ saved %s\n", b.ID)
		} else {
			added, err := store.Add(ctx, b)
			if err != nil {
				return err
			}
			if added {
				fmt.Fprintf(c.out, "✅ added %s\n", b.ID)
			} else {
				fmt.Fprintf(c.out, "%s is already bookmarked\n", b.ID)
			}
		}
		return c.printBookmarks(store.GetAll(ctx))

	case "remove":
		id, err := singleID(args[1:])
		if err != nil {
			return err
		}
		if err := store.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "✅ removed %s\n", id)
		return c.printBookmarks(store.GetAll(ctx))

	case "check":
		id, err := singleID(args[1:])
		if err != nil {
			return err
		}
		if store.IsBookmarked(ctx, id) {
			fmt.Fprintf(c.out, "%s is bookmarked\n", id)
		} else {
			fmt.Fprintf(c.out, "%s is not bookmarked\n", id)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown bookmark command %q", errUsage, args[0])
}

func (c *CLI) printBookmarks(bookmarks []domain.Bookmark) error {
	if len(bookmarks) == 0 {
		_, err := fmt.Fprintln(c.out, "no bookmarks")
		return err
	}
	for _, b := range bookmarks {
		line := b.ID
		if b.Name != "" {
			line += "\t" + b.Name
		}
		if b.HasLocation() {
			line += fmt.Sprintf("\t(%s, %s)", formatCoord(*b.Lat), formatCoord(*b.Lon))
		}
		if _, err := fmt.Fprintln(c.out, line); err != nil {
			return err
		}
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func singleID(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: expected exactly one bookmark id", errUsage)
	}
	return args[0], nil
}

// parseBookmark reads `<id> [flags]`.
func parseBookmark(args []string) (domain.Bookmark, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return domain.Bookmark{}, fmt.Errorf("%w: bookmark id is required", errUsage)
	}

	fs := flag.NewFlagSet("bookmark", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "story name")
	description := fs.String("description", "", "story description")
	photo := fs.String("photo", "", "photo URL")
	lat := fs.String("lat", "", "latitude")
	lon := fs.String("lon", "", "longitude")
	if err := fs.Parse(args[1:]); err != nil {
		return domain.Bookmark{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	now := time.Now().UTC()
	b := domain.Bookmark{
		ID:          args[0],
		Name:        *name,
		Description: *description,
		PhotoURL:    *photo,
		CreatedAt:   &now,
	}

	if (*lat == "") != (*lon == "") {
		return domain.Bookmark{}, fmt.Errorf("%w: -lat and -lon go together", errUsage)
	}
	if *lat != "" {
		la, err := strconv.ParseFloat(*lat, 64)
		if err != nil {
			return domain.Bookmark{}, fmt.Errorf("%w: invalid -lat %q", errUsage, *lat)
		}
		lo, err := strconv.ParseFloat(*lon, 64)
		if err != nil {
			return domain.Bookmark{}, fmt.Errorf("%w: invalid -lon %q", errUsage, *lon)
		}
		b.Lat, b.Lon = domain.Coordinate(la), domain.Coordinate(lo)
	}
	return b, nil
}

// ─────────────────────────────────────────────────────────────────
// push
// ─────────────────────────────────────────────────────────────────

func (c *CLI) push(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: push needs a subcommand", errUsage)
	}

	dev := device.New(c.cfg.DeviceDir, c.cfg.PushServiceURL, c.in, c.out)

	switch args[0] {
	case "register":
		id, err := dev.Register()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "✅ device registered (%s)\n", id)
		return nil

	case "unregister":
		if err := dev.Unregister(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "✅ device registration removed")
		return nil

	case "permission":
		return c.permission(ctx, dev, args[1:])

	case "status", "subscribe", "unsubscribe":
		manager, err := c.manager(dev)
		if err != nil {
			return err
		}
		return c.transition(ctx, manager, args[0])
	}
	return fmt.Errorf("%w: unknown push command %q", errUsage, args[0])
}

func (c *CLI) manager(dev *device.Device) (*push.Manager, error) {
	key, err := c.cfg.RequireVAPIDKey()
	if err != nil {
		return nil, err
	}
	client := remote.New(c.cfg.ServerURL, c.cfg.RemoteTimeout)
	return push.NewManager(dev, dev, client, key, c.logger)
}

func (c *CLI) transition(ctx context.Context, m *push.Manager, cmd string) error {
	var (
		op     push.Op
		result push.Result
		err    error
	)

	switch cmd {
	case "status":
		fmt.Fprintf(c.out, "push notifications: %s\n", m.State(ctx))
		return nil
	case "subscribe":
		op = push.OpSubscribe
		result, err = m.Subscribe(ctx)
	case "unsubscribe":
		op = push.OpUnsubscribe
		result, err = m.Unsubscribe(ctx)
	}

	msg := push.Describe(op, result, err)
	if err != nil {
		c.logger.Debug("push transition failed",
			logger.String("op", cmd),
			logger.Error(err))
		return errors.New(msg)
	}
	fmt.Fprintf(c.out, "✅ %s\n", msg)
	return nil
}

func (c *CLI) permission(ctx context.Context, dev *device.Device, args []string) error {
	switch len(args) {
	case 0:
		perm, err := dev.Permission(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "notification permission: %s\n", perm)
		return nil
	case 1:
		perm := domain.Permission(args[0])
		if domain.ParsePermission(args[0]) != perm {
			return fmt.Errorf("%w: permission must be granted, denied or default", errUsage)
		}
		if err := dev.SetPermission(perm); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "✅ notification permission set to %s\n", perm)
		return nil
	}
	return fmt.Errorf("%w: permission takes at most one argument", errUsage)
}
