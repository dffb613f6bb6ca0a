package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"minimg/internal/log"
	"minimg/internal/scan"
)

type scanEntry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	MIME    string    `json:"mime"`
}

type scanOutput struct {
	Root    string      `json:"root,omitempty"`
	Roots   []string    `json:"roots"`
	Start   int         `json:"start"`
	Total   int64       `json:"total_size"`
	Entries []scanEntry `json:"entries"`
}

func newScanCmd(o *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		recursive  bool
		sniff      bool
	)

	cmd := &cobra.Command{
		Use:   "scan [path]...",
		Short: "List the images the viewer would open",
		Long: `Scan a directory (or the directory of a file) with the configured filters
and print the images in viewing order, with their sizes and content types.
Several paths are listed one after the other, as the viewer would show them.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.configureLogging(cmd.ErrOrStderr())
			defer log.Close()

			opts := scan.OptionsFrom(o.cfg.Scan)
			if cmd.Flags().Changed("recursive") {
				opts.Recursive = recursive
			}
			if cmd.Flags().Changed("sniff") {
				opts.Sniff = sniff
			}
			res, err := scan.All(args, opts)
			if err != nil {
				return err
			}
			out := toScanOutput(res)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printScan(newPrinter(cmd.OutOrStdout(), o.cfg.Theme), out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output results in JSON format")
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "descend into subdirectories")
	cmd.Flags().BoolVar(&sniff, "sniff", false, "select files by content instead of extension")
	return cmd
}

// toScanOutput fills in the content type of entries the scan did not sniff
func toScanOutput(res *scan.Result) scanOutput {
	out := scanOutput{
		Root:    res.Root,
		Roots:   res.Roots,
		Start:   res.Start,
		Total:   res.TotalSize(),
		Entries: make([]scanEntry, len(res.Entries)),
	}
	for i, e := range res.Entries {
		if e.MIME == "" {
			if probed, err := scan.Probe(e.Path); err == nil {
				e.MIME = probed.MIME
			} else {
				log.LogWithError(err).Debug("Cannot probe file")
			}
		}
		out.Entries[i] = scanEntry{Path: e.Path, Size: e.Size, ModTime: e.ModTime, MIME: e.MIME}
	}
	return out
}

func printScan(p *printer, out scanOutput) {
	if out.Root != "" {
		p.Header(fmt.Sprintf("%d images in %s", len(out.Entries), out.Root))
	} else {
		p.Header(fmt.Sprintf("%d images from %d paths", len(out.Entries), len(out.Roots)))
	}
	width := len(strconv.Itoa(len(out.Entries)))
	for i, e := range out.Entries {
		marker := " "
		if i == out.Start {
			marker = p.emphasis.Render(">")
		}
		name := e.Path
		if out.Root != "" {
			if rel, err := filepath.Rel(out.Root, e.Path); err == nil {
				name = rel
			}
		}
		mime := e.MIME
		if mime == "" {
			mime = "-"
		}
		p.Printf("%s %*d  %9s  %-12s  %s\n", marker, width, i+1, humanize.Bytes(uint64(e.Size)), mime, name)
	}
	p.Dim("total " + humanize.Bytes(uint64(out.Total)))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
