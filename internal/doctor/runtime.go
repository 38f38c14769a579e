package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/lock"
	"github.com/rileyhilliard/ramwatch/internal/responder"
	"github.com/rileyhilliard/ramwatch/internal/sampler"
)

// probeTimeout bounds network and sampling probes.
const probeTimeout = 5 * time.Second

// SourceCheck takes one sample from the configured memory source.
type SourceCheck struct {
	Source sampler.Source
}

func (c *SourceCheck) Name() string     { return "memory_source" }
func (c *SourceCheck) Category() string { return "SAMPLER" }
func (c *SourceCheck) Fix() error       { return nil }

func (c *SourceCheck) Run(ctx context.Context) CheckResult {
	if c.Source == nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    "No memory source available",
			Suggestion: "Set sampler.source to auto, procfs or runtime",
		}
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	u, err := c.Source.Read(ctx)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Sampling failed: %v", firstLine(err)),
			Suggestion: "Try sampler.source: runtime if /proc isn't readable",
		}
	}
	msg := fmt.Sprintf("RAM at %.1f%%, sampled in %s", u.RAMPercent, time.Since(start).Round(time.Millisecond))
	if len(u.TopProcesses) > 0 {
		msg += "; top: " + responder.FormatProcesses(u.TopProcesses)
	}
	return CheckResult{Status: StatusPass, Message: msg}
}

// DialFunc opens a TCP connection; net.DialTimeout in production.
type DialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)

// SMTPCheck verifies credentials are present and the server is reachable.
type SMTPCheck struct {
	Email config.EmailConfig
	Dial  DialFunc
}

func (c *SMTPCheck) Name() string     { return "smtp" }
func (c *SMTPCheck) Category() string { return "EMAIL" }
func (c *SMTPCheck) Fix() error       { return nil }

func (c *SMTPCheck) Run(context.Context) CheckResult {
	if !c.Email.Enabled {
		return CheckResult{Status: StatusPass, Message: "Email alerts disabled"}
	}
	if c.Email.Username == "" || c.Email.Password == "" {
		return CheckResult{
			Status:     StatusFail,
			Message:    "SMTP credentials not set",
			Suggestion: "Export RAMWATCH_EMAIL_USERNAME and RAMWATCH_EMAIL_PASSWORD",
		}
	}

	dial := c.Dial
	if dial == nil {
		dial = net.DialTimeout
	}
	addr := net.JoinHostPort(c.Email.Host, strconv.Itoa(c.Email.Port))
	conn, err := dial("tcp", addr, probeTimeout)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Can't reach %s: %v", addr, err),
			Suggestion: "Check email.host, email.port and your network",
		}
	}
	conn.Close()
	return CheckResult{Status: StatusPass, Message: "SMTP server reachable at " + addr}
}

// RestartCheck verifies the restart command can run.
type RestartCheck struct {
	Restart  config.RestartConfig
	LookPath func(string) (string, error)
}

func (c *RestartCheck) Name() string     { return "restart_command" }
func (c *RestartCheck) Category() string { return "RESTART" }
func (c *RestartCheck) Fix() error       { return nil }

func (c *RestartCheck) Run(context.Context) CheckResult {
	if !c.Restart.Enabled {
		return CheckResult{Status: StatusPass, Message: "Restart responder disabled"}
	}
	fields := strings.Fields(c.Restart.Command)
	if len(fields) == 0 {
		return CheckResult{
			Status:     StatusFail,
			Message:    "restart.command is empty",
			Suggestion: "Set it to the command that restarts this machine",
		}
	}
	if c.Restart.DryRun {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("Dry run: would run %q after %s", c.Restart.Command, c.Restart.Grace),
		}
	}

	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath(fields[0]); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("'%s' not found in PATH", fields[0]),
			Suggestion: "Fix restart.command or enable restart.dry_run",
		}
	}
	return CheckResult{
		Status:  StatusWarn,
		Message: fmt.Sprintf("Live restarts enabled: %q runs %s after the restart request", c.Restart.Command, c.Restart.Grace),
	}
}

// CSVLogCheck verifies the CSV log directory is writable.
type CSVLogCheck struct {
	CSV config.CSVLogConfig
}

func (c *CSVLogCheck) Name() string     { return "csv_log" }
func (c *CSVLogCheck) Category() string { return "CSVLOG" }
func (c *CSVLogCheck) Fix() error {
	return os.MkdirAll(filepath.Dir(c.CSV.Path), 0o755)
}

func (c *CSVLogCheck) Run(context.Context) CheckResult {
	if !c.CSV.Enabled {
		return CheckResult{Status: StatusPass, Message: "CSV log disabled"}
	}
	dir := filepath.Dir(c.CSV.Path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Log directory doesn't exist yet: " + dir,
			Suggestion: "It's created on start, or run 'ramwatch doctor --fix'",
			Fixable:    true,
		}
	}
	f, err := os.CreateTemp(dir, ".ramwatch-doctor-*")
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Can't write to " + dir,
			Suggestion: "Fix permissions or change csvlog.path",
		}
	}
	f.Close()
	os.Remove(f.Name())

	msg := "Writing to " + c.CSV.Path
	if info, err := os.Stat(c.CSV.Path); err == nil {
		msg += " (" + humanize.Bytes(uint64(info.Size())) + ")"
	}
	return CheckResult{Status: StatusPass, Message: msg}
}

// DashboardCheck verifies the dashboard address can be bound.
type DashboardCheck struct {
	Dashboard config.DashboardConfig
}

func (c *DashboardCheck) Name() string     { return "dashboard_addr" }
func (c *DashboardCheck) Category() string { return "DASHBOARD" }
func (c *DashboardCheck) Fix() error       { return nil }

func (c *DashboardCheck) Run(context.Context) CheckResult {
	if !c.Dashboard.Enabled {
		return CheckResult{Status: StatusPass, Message: "Dashboard disabled"}
	}
	ln, err := net.Listen("tcp", c.Dashboard.Addr)
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Can't bind %s: %v", c.Dashboard.Addr, err),
			Suggestion: "Another ramwatch may be running, or change dashboard.addr",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: "Dashboard can listen on " + c.Dashboard.Addr}
}

// LockCheck reports whether another instance holds the lock.
type LockCheck struct {
	Path string
}

func (c *LockCheck) Name() string     { return "instance_lock" }
func (c *LockCheck) Category() string { return "LOCK" }
func (c *LockCheck) Fix() error       { return nil }

func (c *LockCheck) Run(context.Context) CheckResult {
	if holder := lock.Holder(c.Path); holder != "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Lock held by " + holder,
			Suggestion: "If that process is gone, the next start clears the lock",
		}
	}
	return CheckResult{Status: StatusPass, Message: "No other ramwatch running"}
}

// Checks builds the standard check list for cfg. src may be nil if the
// configured source couldn't be created.
func Checks(cfg *config.Config, configPath string, src sampler.Source, lockPath string) []Check {
	return []Check{
		&ConfigFileCheck{ConfigPath: configPath},
		&ConfigValidCheck{ConfigPath: configPath},
		&SourceCheck{Source: src},
		&SMTPCheck{Email: cfg.Email},
		&RestartCheck{Restart: cfg.Restart},
		&CSVLogCheck{CSV: cfg.CSVLog},
		&DashboardCheck{Dashboard: cfg.Dashboard},
		&LockCheck{Path: lockPath},
	}
}
