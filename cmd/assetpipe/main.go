package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/spachava753/assetpipe/internal/config"
	"github.com/spachava753/assetpipe/internal/executor"
	"github.com/spachava753/assetpipe/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#50C878"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func main() {
	configPath := flag.String("config", config.DefaultConfigFile, "project config file")
	production := flag.Bool("production", false, "force production mode")
	verbose := flag.Bool("v", false, "debug logging")
	list := flag.Bool("list", false, "list registered tasks and exit")
	reportPath := flag.String("report", "", "write a JSON run report to this path")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: assetpipe [flags] [task]")
		flag.PrintDefaults()
	}
	flag.Parse()

	task := executor.TaskDefault
	if flag.NArg() > 0 {
		task = flag.Arg(0)
	}

	cfg, err := config.LoadProjectConfig(*configPath)
	if err != nil {
		slog.Error("loading config failed", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	opts := executor.Options{Production: *production, ReportPath: *reportPath}

	if *list {
		o, err := executor.NewOrchestrator(cfg, executor.Deps{}, opts)
		if err != nil {
			slog.Error("registering tasks failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(titleStyle.Render("Tasks"))
		for _, id := range o.Graph().IDs() {
			kind, _ := o.Graph().Kind(id)
			fmt.Printf("  %s %s\n", id, labelStyle.Render(kind.String()))
		}
		return
	}

	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		sig := <-sigChan
		slog.Info("interrupt received, shutting down gracefully...", "signal", sig)
		cancel()
	}()

	report, err := executor.RunProject(ctx, cfg, task, opts)
	if report != nil {
		fmt.Println(summary(report))
	}
	if err != nil {
		var cfgErr *models.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			slog.Error("invalid configuration", "field", cfgErr.Field, "error", cfgErr.Msg)
		case errors.Is(err, models.ErrUnknownTask):
			slog.Error("unknown task", "task", task, "hint", "run with -list")
		default:
			slog.Error("task failed", "task", models.FailedTask(err), "error", err)
		}
		os.Exit(1)
	}
}

func summary(r *executor.Report) string {
	status := okStyle.Render("ok")
	if r.FailedTask != "" {
		status = failStyle.Render("failed in " + r.FailedTask)
	}

	lines := []string{
		titleStyle.Render(r.Task) + " " + labelStyle.Render("("+r.Mode+")"),
		fmt.Sprintf("%s %s", labelStyle.Render("status:  "), status),
		fmt.Sprintf("%s %d", labelStyle.Render("groups:  "), len(r.Groups)),
		fmt.Sprintf("%s %d", labelStyle.Render("files:   "), r.FilesWritten),
		fmt.Sprintf("%s %.2fs", labelStyle.Render("duration:"), r.DurationSec),
	}
	for _, g := range r.Groups {
		if g.Failures > 0 {
			lines = append(lines, failStyle.Render(fmt.Sprintf("  %s: %d failed files", g.Task, g.Failures)))
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
