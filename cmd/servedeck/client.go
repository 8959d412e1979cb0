package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/servedeck/internal/http"
	"github.com/fyrsmithlabs/servedeck/internal/project"
)

// serverURL is the base URL of a running servedeck HTTP API.
var serverURL string

func init() {
	for _, c := range []*cobra.Command{healthCmd, projectsCmd, messagesCmd} {
		c.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:7420", "servedeck server URL")
		rootCmd.AddCommand(c)
	}
	projectsCmd.AddCommand(projectsAddCmd, projectsRemoveCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check servedeck server health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp httpserver.HealthResponse
		if err := newAPIClient().do(http.MethodGet, "/health", nil, &resp); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Server Status: %s\n", resp.Status)
		fmt.Fprintf(out, "Projects:      %d\n", resp.Counts.Projects)
		statuses := make([]string, 0, len(resp.Counts.ByStatus))
		for s := range resp.Counts.ByStatus {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			fmt.Fprintf(out, "  %-11s  %d\n", s, resp.Counts.ByStatus[s])
		}
		fmt.Fprintf(out, "Messages:      %d\n", resp.Counts.Notifications)
		return nil
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List registered projects",
	Long: `List, add or remove projects on a running servedeck.

Examples:
  servedeck projects
  servedeck projects add site ~/src/site
  servedeck projects remove 3f9a...`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp httpserver.ProjectsResponse
		if err := newAPIClient().do(http.MethodGet, "/api/v1/projects", nil, &resp); err != nil {
			return err
		}
		printProjects(cmd, resp.Projects)
		return nil
	},
}

var projectsAddCmd = &cobra.Command{
	Use:   "add NAME PATH",
	Short: "Register a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", args[1], err)
		}
		var p project.Project
		req := httpserver.CreateProjectRequest{Name: args[0], Path: path}
		if err := newAPIClient().do(http.MethodPost, "/api/v1/projects", req, &p); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return nil
	},
}

var projectsRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Unregister a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAPIClient().do(http.MethodDelete, "/api/v1/projects/"+args[0], nil, nil)
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Show the notification log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp httpserver.MessagesResponse
		if err := newAPIClient().do(http.MethodGet, "/api/v1/messages", nil, &resp); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range resp.Messages {
			fmt.Fprintf(out, "%s [%s] %s\n", m.At.Format(time.RFC3339), m.Type, m.Text)
		}
		return nil
	},
}

func printProjects(cmd *cobra.Command, projects []*project.Project) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tREPOSITORY\tPATH")
	for _, p := range projects {
		status := string(p.Status)
		if status == "" {
			status = "-"
		}
		repo := p.Settings.Repository
		if repo == "" {
			repo = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, status, repo, p.Path)
	}
	_ = w.Flush()
}

type apiClient struct {
	base   string
	client *http.Client
}

func newAPIClient() *apiClient {
	return &apiClient{
		base:   strings.TrimRight(serverURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// do sends body as JSON and decodes a successful response into out.
func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.base + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
