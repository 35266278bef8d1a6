package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/yourusername/nowatermark-go/internal/app"
	"github.com/yourusername/nowatermark-go/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "nowatermark",
		Short: "nowatermark CLI - watermark-free video extraction",
		Long:  `A command-line interface for resolving share links into watermark-free videos, saving them locally and browsing the extraction history.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(materializeCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configCmd)

	historyCmd.AddCommand(historyListCmd, historyGetCmd, historyDeleteCmd, historyDownloadCmd, historySaveCmd)
	configCmd.AddCommand(configInitCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// call sends a JSON request and decodes a successful response into out.
// Non-2xx responses print the server's error and exit.
func call(method, path string, payload, out interface{}) {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		exitWith(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		exitWith(err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			exitWith(fmt.Errorf("%s", apiErr.Error))
		}
		exitWith(fmt.Errorf("%s", string(data)))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			exitWith(fmt.Errorf("unexpected response: %w", err))
		}
	}
}

func exitWith(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printProgress(p domain.Progress) {
	fmt.Printf("Run:     %d\n", p.RunID)
	fmt.Printf("Phase:   %s (%d/%d)\n", p.Phase, p.CompletedSteps, p.TotalSteps)
	fmt.Printf("Status:  %s\n", p.StatusText)
	if p.Link != "" {
		fmt.Printf("Link:    %s\n", p.Link)
	}
	if p.Video != nil {
		fmt.Printf("Video:   %s\n", p.Video.VideoURL)
	}
	if p.Metadata.FileSizeBytes != nil {
		fmt.Printf("Size:    %s\n", humanize.Bytes(uint64(*p.Metadata.FileSizeBytes)))
	}
	if p.Metadata.DurationSeconds != nil {
		fmt.Printf("Length:  %s\n", (time.Duration(*p.Metadata.DurationSeconds * float64(time.Second))).Round(time.Second))
	}
	if p.LocalFile != nil {
		fmt.Printf("File:    %s\n", p.LocalFile.Path)
	}
	if p.RecordID != "" {
		fmt.Printf("Record:  %s\n", p.RecordID)
	}
	if p.Warning != "" {
		fmt.Printf("Warning: %s\n", p.Warning)
	}
}

var extractCmd = &cobra.Command{
	Use:   "extract [url]",
	Short: "Resolve a share link into a watermark-free video",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		consent, _ := cmd.Flags().GetBool("consent")
		wait, _ := cmd.Flags().GetBool("wait")

		var progress domain.Progress
		call(http.MethodPost, "/api/v1/extractions", map[string]interface{}{
			"url":     args[0],
			"consent": consent,
		}, &progress)

		if wait {
			call(http.MethodGet, "/api/v1/extractions/current?wait=true", nil, &progress)
		}
		printProgress(progress)
		if progress.Phase == domain.PhaseFailed {
			os.Exit(1)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current extraction",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		wait, _ := cmd.Flags().GetBool("wait")

		path := "/api/v1/extractions/current"
		if wait {
			path += "?wait=true"
		}
		var progress domain.Progress
		call(http.MethodGet, path, nil, &progress)
		printProgress(progress)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the current extraction",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var result struct {
			Cancelled bool `json:"cancelled"`
		}
		call(http.MethodPost, "/api/v1/extractions/current/cancel", nil, &result)
		if result.Cancelled {
			fmt.Println("Extraction cancelled")
		} else {
			fmt.Println("Nothing to cancel")
		}
	},
}

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Download the current video into local storage",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var file domain.LocalFile
		call(http.MethodPost, "/api/v1/extractions/current/materialize", nil, &file)
		printLocalFile(file)
	},
}

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Print a shareable location for the current video",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var target domain.ShareTarget
		call(http.MethodPost, "/api/v1/extractions/current/share", nil, &target)
		if !target.Local {
			fmt.Fprintln(os.Stderr, "Local copy unavailable, sharing remote URL")
		}
		fmt.Println(target.Location)
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current video to the media library",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var result struct {
			Location string `json:"location"`
		}
		call(http.MethodPost, "/api/v1/extractions/current/save", nil, &result)
		fmt.Printf("Saved to %s\n", result.Location)
	},
}

func printLocalFile(file domain.LocalFile) {
	state := "downloaded"
	if file.Reused {
		state = "already downloaded"
	}
	fmt.Printf("%s (%s, %s)\n", file.Path, humanize.Bytes(uint64(file.SizeBytes)), state)
}

type historyItem struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	SourceLink     string    `json:"source_link"`
	RemoteVideoURL string    `json:"remote_video_url"`
	LocalVideoPath *string   `json:"local_video_path"`
	CreatedAt      time.Time `json:"created_at"`
	DurationText   string    `json:"duration_text"`
	SizeText       string    `json:"size_text"`
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse extraction history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List history records, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")

		var result struct {
			Records []historyItem `json:"records"`
		}
		call(http.MethodGet, fmt.Sprintf("/api/v1/history?limit=%d", limit), nil, &result)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tDURATION\tSIZE\tLOCAL\tCREATED")
		for _, r := range result.Records {
			local := "-"
			if r.LocalVideoPath != nil {
				local = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(r.ID, 8),
				truncate(r.Title, 40),
				r.DurationText,
				r.SizeText,
				local,
				humanize.Time(r.CreatedAt))
		}
		w.Flush()
	},
}

var historyGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a history record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var r historyItem
		call(http.MethodGet, "/api/v1/history/"+url.PathEscape(args[0]), nil, &r)

		fmt.Printf("History Record:\n")
		fmt.Printf("  ID:       %s\n", r.ID)
		fmt.Printf("  Title:    %s\n", r.Title)
		fmt.Printf("  Source:   %s\n", r.SourceLink)
		fmt.Printf("  Video:    %s\n", r.RemoteVideoURL)
		fmt.Printf("  Duration: %s\n", r.DurationText)
		fmt.Printf("  Size:     %s\n", r.SizeText)
		fmt.Printf("  Created:  %s\n", r.CreatedAt.Local().Format(time.DateTime))
		if r.LocalVideoPath != nil {
			fmt.Printf("  File:     %s\n", *r.LocalVideoPath)
		}
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a history record (the local file is kept)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		call(http.MethodDelete, "/api/v1/history/"+url.PathEscape(args[0]), nil, nil)
		fmt.Println("History record deleted")
	},
}

var historyDownloadCmd = &cobra.Command{
	Use:   "download [id]",
	Short: "Make sure a history record has a local file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var file domain.LocalFile
		call(http.MethodPost, "/api/v1/history/"+url.PathEscape(args[0])+"/materialize", nil, &file)
		printLocalFile(file)
	},
}

var historySaveCmd = &cobra.Command{
	Use:   "save [id]",
	Short: "Save a history record's video to the media library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var result struct {
			Location string `json:"location"`
		}
		call(http.MethodPost, "/api/v1/history/"+url.PathEscape(args[0])+"/save", nil, &result)
		fmt.Printf("Saved to %s\n", result.Location)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View categorized server logs (pipeline, error)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		date, _ := cmd.Flags().GetString("date")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		query := url.Values{}
		query.Set("limit", fmt.Sprint(limit))
		if date != "" {
			query.Set("date", date)
		}
		path := "/api/v1/logs/" + url.PathEscape(args[0])
		if search != "" {
			path += "/search"
			query.Set("q", search)
		}

		var result struct {
			Entries []struct {
				Timestamp string                 `json:"timestamp"`
				Level     string                 `json:"level"`
				Message   string                 `json:"message"`
				Fields    map[string]interface{} `json:"fields"`
			} `json:"entries"`
		}
		call(http.MethodGet, path+"?"+query.Encode(), nil, &result)

		if jsonOutput {
			prettyJSON, _ := json.MarshalIndent(result.Entries, "", "  ")
			fmt.Println(string(prettyJSON))
			return
		}
		for _, e := range result.Entries {
			fields, _ := json.Marshal(e.Fields)
			fmt.Printf("%s %-5s %s %s\n", e.Timestamp, e.Level, e.Message, fields)
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")

		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				exitWith(err)
			}
			path = filepath.Join(home, ".nowatermark", "config.yaml")
		}
		if _, err := os.Stat(path); err == nil && !force {
			exitWith(fmt.Errorf("%s already exists, use --force to overwrite", path))
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			exitWith(err)
		}
		fmt.Printf("Config written to %s\n", path)
	},
}

func init() {
	extractCmd.Flags().Bool("consent", false, "Confirm you are authorized to use this video")
	extractCmd.Flags().BoolP("wait", "w", false, "Wait until the extraction settles")
	statusCmd.Flags().BoolP("wait", "w", false, "Wait until the extraction settles")
	historyListCmd.Flags().IntP("limit", "n", 50, "Maximum number of records")
	logsCmd.Flags().StringP("search", "s", "", "Only show entries containing this text")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum number of entries")
	logsCmd.Flags().String("date", "", "Log date (YYYY-MM-DD), defaults to today")
	logsCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	configInitCmd.Flags().String("path", "", "Config file path (default ~/.nowatermark/config.yaml)")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
