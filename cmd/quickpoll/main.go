package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quickpoll/quickpoll-go/internal/adapters/cache"
	"github.com/quickpoll/quickpoll-go/internal/adapters/realtime"
	"github.com/quickpoll/quickpoll-go/internal/adapters/storage"
	"github.com/quickpoll/quickpoll-go/internal/adapters/transport"
	"github.com/quickpoll/quickpoll-go/internal/config"
	"github.com/quickpoll/quickpoll-go/internal/core/domain"
	"github.com/quickpoll/quickpoll-go/internal/core/ports"
	"github.com/quickpoll/quickpoll-go/internal/core/services"
	"github.com/quickpoll/quickpoll-go/internal/view"
)

const usage = `usage: quickpoll <command> [flags]

commands:
  feed      list polls
  show      show one poll
  watch     show one poll and follow live updates
  vote      vote for an option
  unvote    remove this session's vote
  like      like a poll
  unlike    remove this session's like
  create    create a poll
  history   list this session's votes
`

type app struct {
	cfg   config.Config
	log   *logrus.Logger
	cache *cache.Memory
	polls ports.PollService
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	if os.Getenv("QUICKPOLL_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}

	api, err := transport.NewClient(cfg.APIBaseURL, &http.Client{Timeout: 10 * time.Second}, log)
	if err != nil {
		log.WithError(err).Fatal("invalid API url")
	}

	var store ports.SessionStore
	if fileStore, err := storage.NewFileStore("quickpoll"); err != nil {
		log.WithError(err).Warn("no durable session storage, session is ephemeral")
	} else {
		store = fileStore
	}
	services.NewSessionService(store, api, log).GetOrCreate()

	memory := cache.NewMemory()
	a := &app{
		cfg:   cfg,
		log:   log,
		cache: memory,
		polls: services.NewPollService(api, memory, log),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "feed":
		return a.feed(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	case "vote":
		return a.vote(ctx, args)
	case "unvote":
		return a.unvote(ctx, args)
	case "like":
		return a.like(ctx, args)
	case "unlike":
		return a.unlike(ctx, args)
	case "create":
		return a.create(ctx, args)
	case "history":
		return a.history(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) feed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	var filters domain.PollFilters
	fs.StringVar(&filters.CategoryID, "category", "", "filter by category id")
	fs.StringVar(&filters.TagID, "tag", "", "filter by tag id")
	fs.StringVar(&filters.Search, "search", "", "search term")
	fs.StringVar(&filters.SortBy, "sort", domain.SortNewest, "sort order")
	fs.IntVar(&filters.Page, "page", 1, "page number")
	fs.IntVar(&filters.Limit, "limit", 20, "page size")
	fs.Parse(args)

	page, err := a.polls.ListPolls(ctx, filters)
	if err != nil {
		return err
	}
	view.Feed(os.Stdout, page)
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	pollID, err := requireID("show", args)
	if err != nil {
		return err
	}
	poll, err := a.polls.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	view.Poll(os.Stdout, poll)
	return nil
}

// watch renders the poll and re-renders on every reconciled push event until
// interrupted or the poll is deleted.
func (a *app) watch(ctx context.Context, args []string) error {
	pollID, err := requireID("watch", args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := services.NewReconciler(a.cache, a.log)
	rec.OnApply = func(id string) {
		if id != pollID {
			return
		}
		if poll, ok := a.cache.GetPoll(pollID); ok {
			fmt.Println()
			view.Poll(os.Stdout, &poll)
		}
	}
	rec.OnPollDeleted = func(id string) {
		if id == pollID {
			fmt.Println("poll was deleted")
			cancel()
		}
	}

	rt := realtime.NewClient(a.cfg.SocketURL, rec, a.log)
	if err := rt.Connect(ctx); err != nil {
		return err
	}
	defer rt.Close()
	rt.Subscribe(pollID)

	poll, err := a.polls.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	view.Poll(os.Stdout, poll)
	fmt.Println("watching for updates, ctrl-c to stop")

	<-ctx.Done()
	rt.Unsubscribe(pollID)
	return nil
}

func (a *app) vote(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: quickpoll vote <poll-id> <option-id>")
	}
	poll, err := a.polls.Vote(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	view.Poll(os.Stdout, poll)
	return nil
}

func (a *app) unvote(ctx context.Context, args []string) error {
	pollID, err := requireID("unvote", args)
	if err != nil {
		return err
	}
	poll, err := a.polls.RemoveVote(ctx, pollID)
	if err != nil {
		return err
	}
	view.Poll(os.Stdout, poll)
	return nil
}

func (a *app) like(ctx context.Context, args []string) error {
	pollID, err := requireID("like", args)
	if err != nil {
		return err
	}
	poll, err := a.polls.Like(ctx, pollID)
	if err != nil {
		return err
	}
	view.Poll(os.Stdout, poll)
	return nil
}

func (a *app) unlike(ctx context.Context, args []string) error {
	pollID, err := requireID("unlike", args)
	if err != nil {
		return err
	}
	poll, err := a.polls.Unlike(ctx, pollID)
	if err != nil {
		return err
	}
	view.Poll(os.Stdout, poll)
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	var input ports.CreatePollInput
	var options, tags string
	fs.StringVar(&input.Title, "title", "", "poll title (required)")
	fs.StringVar(&input.Description, "description", "", "poll description")
	fs.StringVar(&options, "options", "", "comma-separated options, 2 to 10 (required)")
	fs.StringVar(&tags, "tags", "", "comma-separated tags")
	fs.BoolVar(&input.AllowMultipleVotes, "multi", false, "allow multiple votes")
	fs.Parse(args)

	input.Options = splitList(options)
	input.Tags = splitList(tags)
	if input.Title == "" {
		return fmt.Errorf("-title is required")
	}

	poll, err := a.polls.CreatePoll(ctx, input)
	if err != nil {
		return err
	}
	fmt.Println("created", poll.PollID)
	view.Poll(os.Stdout, poll)
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 20, "page size")
	fs.Parse(args)

	votes, _, err := a.polls.SessionVotes(ctx, *page, *limit)
	if err != nil {
		return err
	}
	view.Votes(os.Stdout, votes)
	return nil
}

func requireID(command string, args []string) (string, error) {
	if len(args) < 1 || args[0] == "" {
		return "", fmt.Errorf("usage: quickpoll %s <poll-id>", command)
	}
	return args[0], nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
