package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hreinecke/nvme-discd-go/internal/cli/health"
	"github.com/hreinecke/nvme-discd-go/internal/cli/output"
	"github.com/hreinecke/nvme-discd-go/internal/cli/timeutil"
)

var (
	statusOutput   string
	statusPidFile  string
	statusHealthPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show discovery controller status",
	Long: `Display the current status of the discovery controller.

Checks the controller's health endpoint and prints its status, uptime,
bound port count, and active session count.

Examples:
  # Check status
  nvme-discd status

  # Check status on a non-default health port
  nvme-discd status --health-port 9080

  # Output as JSON
  nvme-discd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/nvme-discd/nvme-discd.pid)")
	statusCmd.Flags().IntVar(&statusHealthPort, "health-port", 8080, "Health endpoint port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ControllerStatus is the status command's rendered result.
type ControllerStatus struct {
	Running        bool   `json:"running" yaml:"running"`
	PID            int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message        string `json:"message" yaml:"message"`
	StartedAt      string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime         string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Healthy        bool   `json:"healthy" yaml:"healthy"`
	BoundPorts     int    `json:"bound_ports,omitempty" yaml:"bound_ports,omitempty"`
	ActiveSessions int    `json:"active_sessions,omitempty" yaml:"active_sessions,omitempty"`
	DatabaseBackend string `json:"database_backend,omitempty" yaml:"database_backend,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ControllerStatus{
		Running: false,
		Healthy: false,
		Message: "Discovery controller is not running",
	}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if pidData, err := os.ReadFile(pidPath); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(pidData))); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	healthURL := fmt.Sprintf("http://localhost:%d/health", statusHealthPort)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(healthURL)
	if err == nil {
		defer func() { _ = resp.Body.Close() }()

		var healthResp health.Response
		if err := json.NewDecoder(resp.Body).Decode(&healthResp); err == nil {
			status.Running = true
			status.Healthy = healthResp.Status == "healthy"
			status.StartedAt = healthResp.Data.StartedAt
			status.Uptime = healthResp.Data.Uptime
			status.BoundPorts = healthResp.Data.BoundPorts
			status.ActiveSessions = healthResp.Data.ActiveSessions
			status.DatabaseBackend = healthResp.Data.DatabaseBackend
			if status.Healthy {
				status.Message = "Discovery controller is running and healthy"
			} else {
				status.Message = fmt.Sprintf("Discovery controller is running but unhealthy: %s", healthResp.Error)
			}
		} else {
			status.Running = true
			status.Message = "Discovery controller is running but health response invalid"
		}
	} else if status.Running {
		status.Message = "Discovery controller process exists but health check failed"
	}

	printer := output.DefaultPrinter()

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(printer, status)
	}

	return nil
}

// printStatusTable renders status as a key/value table via
// output.TableData/PrintTable, with the headline rendered through the
// printer's colored Success/Warning/Error helpers.
func printStatusTable(p *output.Printer, status ControllerStatus) {
	p.Println()
	p.Println("Discovery Controller Status")
	p.Println("============================")
	p.Println()

	switch {
	case status.Running && status.Healthy:
		p.Success("  ● Running")
	case status.Running:
		p.Warning("  ● Running (unhealthy)")
	default:
		p.Error("  ○ Stopped")
	}
	p.Println()

	table := output.NewTableData("FIELD", "VALUE")
	if status.Running {
		table.AddRow("PID", strconv.Itoa(status.PID))
		if status.StartedAt != "" {
			table.AddRow("Started", timeutil.FormatTime(status.StartedAt))
		}
		if status.Uptime != "" {
			table.AddRow("Uptime", timeutil.FormatUptime(status.Uptime))
		}
		table.AddRow("Bound ports", strconv.Itoa(status.BoundPorts))
		table.AddRow("Active sessions", strconv.Itoa(status.ActiveSessions))
		if status.DatabaseBackend != "" {
			table.AddRow("Database backend", status.DatabaseBackend)
		}
	}
	_ = output.PrintTable(p.Writer(), table)

	p.Println()
	p.Println(" ", status.Message)
	p.Println()
}
