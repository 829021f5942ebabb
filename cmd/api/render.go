package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bijbelzoek/api/internal/export"
)

type renderOpts struct {
	format string // "pdf" or "docx"
	in     string // request JSON, "-" for stdin
	out    string // output path; derived from the theme when empty
}

func newRenderCmd(state *cliState) *cobra.Command {
	opts := renderOpts{format: string(export.FormatPDF), in: "-"}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Export a request file without running the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := state.logger

			req, err := readRequest(cmd.InOrStdin(), opts.in)
			if err != nil {
				return err
			}

			p, err := buildPipeline(ctx, state.cfg, logger, false)
			if err != nil {
				return err
			}
			defer p.Close()

			started := time.Now()
			res, err := p.exports.Export(ctx, opts.format, req)
			if err != nil {
				return err
			}

			out := opts.out
			if out == "" {
				out = res.Filename
			}
			if err := os.WriteFile(out, res.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			logger.Info("export written", "path", out, "bytes", len(res.Data), "duration", time.Since(started))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: pdf or docx")
	cmd.Flags().StringVarP(&opts.in, "in", "i", opts.in, "request JSON file (- for stdin)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default: derived filename)")
	return cmd
}

func readRequest(stdin io.Reader, path string) (export.Request, error) {
	var req export.Request

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil && err != io.EOF {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}
