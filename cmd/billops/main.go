package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"billops/internal"
	"billops/internal/auth"
	"billops/internal/bills"
	"billops/internal/config"
	"billops/internal/connectors"
	"billops/internal/expense"
	"billops/internal/httpapi"
	"billops/internal/listener"
	"billops/internal/log"
	"billops/internal/pipeline"
	"billops/internal/queue"
	"billops/internal/storage"
	"billops/internal/tasks"
	"billops/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(cfg.Validate())

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		withListener := fs.Bool("listen", false, "also poll the bill mailbox")
		_ = fs.Parse(os.Args[2:])
		must(serve(ctx, cfg, logger, *withListener))
	case "worker":
		must(cfg.Require("AMQP_URL", cfg.AMQPURL))
		a, err := newApp(ctx, cfg, logger)
		must(err)
		defer a.Close()
		client, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		must(err)
		defer client.Close()
		w := tasks.NewWorker(a.runner, a.processor, logger)
		logger.Info("worker started", "queue", cfg.AMQPQueue)
		if err := client.ConsumeJobs(ctx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
			must(err)
		}
	case "bills:listen":
		a, err := newApp(ctx, cfg, logger)
		must(err)
		defer a.Close()
		s := listener.NewService(a.db, cfg, a.bills, nil, logger)
		must(s.Run(ctx))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.BillMailProvider, "gmail|imap")
		label := fs.String("label", cfg.BillMailLabel, "mailbox/label")
		max := fs.Int("max", cfg.BillMailFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		conn, err := makeConnector(ctx, cfg, *provider)
		must(err)
		result, err := connectors.NewFetchService(db, cfg.RawMailDir, conn).FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "migrate":
		must(storage.Migrate(cfg.DBPath))
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		version, err := db.SchemaVersion()
		must(err)
		fmt.Printf("schema version %d\n", version)
	case "depts:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() != 1 {
			must(fmt.Errorf("one department code sheet (csv|xls|xlsx) is required"))
		}
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		n, err := pipeline.ImportDeptCodes(db, fs.Arg(0), time.Now())
		must(err)
		logger.Info("department codes imported", "file", filepath.Base(fs.Arg(0)), "count", n)
		fmt.Printf("dept codes imported=%d\n", n)
	case "admin:create":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "employee id")
		name := fs.String("name", "", "display name")
		position := fs.String("position", "", "position")
		role := fs.String("role", auth.RoleOperator, "admin|operator")
		password := fs.String("password", "", "password")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" || *password == "" {
			must(fmt.Errorf("--id and --password are required"))
		}
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		svc := auth.NewService(db, logger)
		must(svc.CreateUser(internal.AdminUser{EmployeeID: *id, Name: *name, Position: *position, Role: *role}, *password))
		fmt.Printf("admin user %s saved\n", *id)
	case "collect":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		company := fs.String("company", "", "company name")
		start := fs.String("start", "", "YYYY-MM-DD, default first day of previous month")
		end := fs.String("end", "", "YYYY-MM-DD, default last day of previous month")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*company) == "" {
			must(fmt.Errorf("--company is required"))
		}
		if *start == "" || *end == "" {
			from, to := util.PreviousMonth(time.Now())
			*start, *end = from.Format(util.DateLayout), to.Format(util.DateLayout)
		}
		a, err := newApp(ctx, cfg, logger)
		must(err)
		defer a.Close()
		task, err := a.tasks.Create(*company, *start, *end)
		must(err)
		must(a.runner.Run(ctx, task.ID))
		task, err = a.tasks.Get(task.ID)
		must(err)
		fmt.Printf("collect %s status=%s files=%d\n", *company, task.Status, len(task.Files))
		for _, line := range task.Logs {
			fmt.Println("  " + line)
		}
	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		company := fs.String("company", "", "company name")
		date := fs.String("date", "", "collection date YYYY-MM-DD, default today")
		licenses := fs.Int("licenses", 0, "W컨셉 license count")
		enqueue := fs.Bool("enqueue", false, "publish a job for billops worker instead of running here")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*company) == "" {
			must(fmt.Errorf("--company is required"))
		}
		if *date == "" {
			*date = time.Now().Format(util.DateLayout)
		}
		collected, err := util.ParseDate(*date)
		must(err)
		if *enqueue {
			must(cfg.Require("AMQP_URL", cfg.AMQPURL))
			client, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			must(err)
			defer client.Close()
			must(client.PublishJob(ctx, queue.JobMessage{
				Kind:           queue.JobPreprocess,
				Company:        *company,
				CollectionDate: *date,
				LicenseCount:   *licenses,
				Timestamp:      time.Now().UTC(),
			}))
			fmt.Printf("preprocess job queued for %s\n", *company)
			return
		}
		a, err := newApp(ctx, cfg, logger)
		must(err)
		defer a.Close()
		res, err := a.processor.Process(ctx, pipeline.Request{Company: *company, CollectionDate: collected, LicenseCount: *licenses})
		must(err)
		fmt.Printf("processed %s files=%d\n", res.Company, len(res.Files))
		for _, f := range res.Files {
			fmt.Println("  " + f)
		}
	case "bills:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() == 0 {
			must(fmt.Errorf("at least one bill file is required"))
		}
		a, err := newApp(ctx, cfg, logger)
		must(err)
		defer a.Close()
		var uploads []bills.Upload
		for _, path := range fs.Args() {
			data, err := os.ReadFile(path)
			must(err)
			uploads = append(uploads, bills.Upload{Name: filepath.Base(path), Data: data})
		}
		amounts, err := a.bills.Ingest(ctx, uploads)
		must(err)
		for company, amt := range amounts {
			fmt.Printf("%s %s\n", company, amt.Amount)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger, withListener bool) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	authz, err := newAuthorizer(cfg)
	if err != nil {
		return err
	}

	var dispatcher tasks.Dispatcher
	var local *tasks.LocalDispatcher
	if cfg.AMQPURL != "" {
		client, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		dispatcher = tasks.NewAMQPDispatcher(client)
	} else {
		local = tasks.NewLocalDispatcher(ctx, a.runner)
		dispatcher = local
	}

	srv := httpapi.NewServer(cfg, httpapi.Deps{
		DB:         a.db,
		Workspace:  a.ws,
		Catalog:    a.catalog,
		Tasks:      a.tasks,
		Dispatcher: dispatcher,
		Processor:  a.processor,
		Bills:      a.bills,
		Expense: expense.NewGroupwareClient(expense.GroupwareOptions{
			BaseURL: cfg.GroupwareBaseURL,
			Timeout: time.Duration(cfg.GroupwareTimeoutMs) * time.Millisecond,
			Logger:  logger,
		}),
		Auth:     auth.NewService(a.db, logger),
		Sessions: auth.NewSessions(a.db, time.Duration(cfg.SessionTTLHours)*time.Hour),
		Authz:    authz,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(gctx)
	})
	if withListener {
		g.Go(func() error {
			err := listener.NewService(a.db, cfg, a.bills, nil, logger).Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	if local != nil {
		local.Wait()
	}
	return err
}

func usage() {
	fmt.Println("usage: billops <command>")
	fmt.Println("commands:")
	fmt.Println("  serve [--listen]")
	fmt.Println("  worker")
	fmt.Println("  bills:listen")
	fmt.Println("  bills:import <file>...")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=20")
	fmt.Println("  migrate")
	fmt.Println("  depts:import <csv|xls|xlsx>")
	fmt.Println("  admin:create --id=... --password=... [--name=...] [--position=...] [--role=admin|operator]")
	fmt.Println("  collect --company=... [--start=YYYY-MM-DD --end=YYYY-MM-DD]")
	fmt.Println("  process --company=... [--date=YYYY-MM-DD] [--licenses=40] [--enqueue]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
