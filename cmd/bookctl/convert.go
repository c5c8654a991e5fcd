package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Anilcodes01/proto-book/internal/app"
	"github.com/Anilcodes01/proto-book/internal/domain"
	"github.com/Anilcodes01/proto-book/internal/extract"
	"github.com/Anilcodes01/proto-book/internal/render"
	"github.com/Anilcodes01/proto-book/internal/templates"
)

type convertOptions struct {
	output   string
	template string
	htmlOnly bool
}

func (c *cli) convertCmd() *cobra.Command {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert <file.docx>",
		Short: "Format a manuscript into a PDF on this machine",
		Long: `Convert runs the same extraction, template and rendering steps as the
service, but writes the result to disk instead of object storage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default: input name with .pdf)")
	cmd.Flags().StringVarP(&opts.template, "template", "t", templates.DefaultName,
		"page style: "+strings.Join(templates.Names, ", "))
	cmd.Flags().BoolVar(&opts.htmlOnly, "html", false, "write the templated HTML and skip PDF rendering")
	return cmd
}

func (c *cli) runConvert(ctx context.Context, input string, opts convertOptions) error {
	p := c.printer()

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	sub := domain.Submission{
		Present:      true,
		Filename:     filepath.Base(input),
		ContentType:  contentTypeFor(input),
		Size:         int64(len(data)),
		Data:         data,
		TemplateName: opts.template,
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	content, err := extract.Docx{}.Extract(data)
	if err != nil {
		return err
	}

	cache, err := app.NewTemplateCache(c.cfg.Templates, c.logger)
	if err != nil {
		return err
	}
	tmpl, err := cache.Resolve(opts.template)
	if err != nil {
		return err
	}
	page, err := tmpl.Execute(sub.Title(), content)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		ext := ".pdf"
		if opts.htmlOnly {
			ext = ".html"
		}
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ext
	}

	if opts.htmlOnly {
		if err := os.WriteFile(output, []byte(page), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		p.success("wrote %s (%s template, %d bytes)", output, tmpl.Name(), len(page))
		return nil
	}

	pdf, err := c.newRenderer(c.cfg.Renderer, c.logger).Render(ctx, page)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, pdf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	p.success("wrote %s (%s template, %d bytes)", output, tmpl.Name(), len(pdf))
	if pages, err := render.PageCount(pdf); err == nil {
		p.detail("%d pages", pages)
	} else {
		p.warning("could not read page count: %v", err)
	}
	return nil
}

// contentTypeFor stands in for the browser-reported type the service sees.
func contentTypeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return domain.DocxContentType
	}
	return "application/octet-stream"
}
