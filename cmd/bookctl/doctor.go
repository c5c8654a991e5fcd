package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Anilcodes01/proto-book/internal/app"
	"github.com/Anilcodes01/proto-book/internal/config"
	"github.com/Anilcodes01/proto-book/internal/templates"
)

const (
	statusOK   = "ok"
	statusWarn = "warning"
	statusFail = "error"

	checkTimeout = 10 * time.Second
)

var errChecksFailed = errors.New("doctor found problems")

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type doctorReport struct {
	Status string        `json:"status"`
	Checks []checkResult `json:"checks"`
}

func (c *cli) doctorCmd() *cobra.Command {
	var jsonOutput, offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the renderer, templates and backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := c.runDoctor(cmd.Context(), offline)
			if jsonOutput {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				c.printReport(report)
			}
			if report.Status == statusFail {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the storage and database checks")
	return cmd
}

func (c *cli) runDoctor(ctx context.Context, offline bool) doctorReport {
	checks := []checkResult{c.checkRenderer(ctx)}
	if sandbox := c.checkSandbox(); sandbox != nil {
		checks = append(checks, *sandbox)
	}
	checks = append(checks, c.checkTemplates())
	if !offline {
		checks = append(checks, c.checkDatabase(ctx), c.checkStorage(ctx))
	}

	report := doctorReport{Status: statusOK, Checks: checks}
	for _, check := range checks {
		switch check.Status {
		case statusFail:
			report.Status = statusFail
		case statusWarn:
			if report.Status == statusOK {
				report.Status = statusWarn
			}
		}
	}
	return report
}

func (c *cli) checkRenderer(ctx context.Context) checkResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	result := checkResult{Name: "renderer (" + c.cfg.Renderer.Mode + ")"}
	path, err := c.newLocator(c.cfg.Renderer).Locate(ctx)
	if err != nil {
		result.Status = statusFail
		result.Detail = err.Error()
		return result
	}
	result.Status = statusOK
	result.Detail = path
	return result
}

// checkSandbox flags containers where Chromium's sandbox usually cannot start.
func (c *cli) checkSandbox() *checkResult {
	if c.cfg.Renderer.NoSandbox {
		return nil
	}
	hint, ok := containerHint()
	if !ok {
		return nil
	}
	return &checkResult{
		Name:   "sandbox",
		Status: statusWarn,
		Detail: "container detected (" + hint + ") but renderer.no_sandbox is off",
	}
}

func containerHint() (string, bool) {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "/.dockerenv", true
	}
	if v := os.Getenv("container"); v != "" {
		return "container=" + v, true
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "KUBERNETES_SERVICE_HOST", true
	}
	return "", false
}

func (c *cli) checkTemplates() checkResult {
	result := checkResult{Name: "templates"}
	cache, err := app.NewTemplateCache(c.cfg.Templates, c.logger)
	if err != nil {
		result.Status = statusFail
		result.Detail = err.Error()
		return result
	}

	var errs []error
	for _, name := range templates.Names {
		if _, err := cache.Resolve(name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		result.Status = statusFail
		result.Detail = errors.Join(errs...).Error()
		return result
	}

	result.Status = statusOK
	result.Detail = fmt.Sprintf("%d styles compiled", len(templates.Names))
	if c.cfg.Templates.Dir != "" {
		result.Detail += " from " + c.cfg.Templates.Dir
	}
	return result
}

func (c *cli) checkDatabase(ctx context.Context) checkResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	result := checkResult{Name: "database (" + c.cfg.Database.Backend + ")"}
	records, err := c.openRecords(ctx, c.cfg.Database)
	if err == nil {
		err = records.Ping(ctx)
		_ = records.Close()
	}
	return finishCheck(result, err, c.cfg.Database.Backend == config.DatabaseBackendMemory)
}

func (c *cli) checkStorage(ctx context.Context) checkResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	result := checkResult{Name: "storage (" + c.cfg.Storage.Backend + ")"}
	artifacts, err := c.openArtifacts(ctx, c.cfg.Storage, false)
	if err == nil {
		err = artifacts.Ping(ctx)
		_ = artifacts.Close()
	}
	return finishCheck(result, err, false)
}

func finishCheck(result checkResult, err error, ephemeral bool) checkResult {
	switch {
	case err != nil:
		result.Status = statusFail
		result.Detail = err.Error()
	case ephemeral:
		result.Status = statusWarn
		result.Detail = "records are kept in memory and lost on restart"
	default:
		result.Status = statusOK
		result.Detail = "reachable"
	}
	return result
}

func (c *cli) printReport(report doctorReport) {
	p := c.printer()
	for _, check := range report.Checks {
		switch check.Status {
		case statusOK:
			p.success("%s", check.Name)
		case statusWarn:
			p.warning("%s", check.Name)
		default:
			p.failure("%s", check.Name)
		}
		if check.Detail != "" {
			p.detail("%s", check.Detail)
		}
	}
	fmt.Fprintln(c.stdout)
	switch report.Status {
	case statusOK:
		p.success("ready")
	case statusWarn:
		p.warning("ready with warnings")
	default:
		p.failure("not ready")
	}
}
