package cli

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vburojevic/dedicated/internal/bootstrap"
	"github.com/vburojevic/dedicated/internal/content/archive"
	"github.com/vburojevic/dedicated/internal/filter"
)

// BundlesCmd lists the maps and mods visible in the data directories
type BundlesCmd struct {
	Pattern   string   `short:"p" help:"Regex the display name must match"`
	Exclude   []string `short:"x" sep:"none" help:"Regex of display names to drop (can be repeated)"`
	Where     []string `short:"w" sep:"none" help:"Field condition such as kind=map or name~^Desert (can be repeated)"`
	Checksums bool     `help:"Compute each bundle's checksum (extracts zipped bundles)"`
}

// bundleOutput is one NDJSON line of the bundles command.
type bundleOutput struct {
	Type     string   `json:"type"`
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Display  string   `json:"display"`
	Path     string   `json:"path"`
	Zipped   bool     `json:"zipped"`
	Depends  []string `json:"depends,omitempty"`
	Checksum string   `json:"checksum,omitempty"`
}

// Run executes the bundles command
func (c *BundlesCmd) Run(globals *Globals) error {
	pipeline, err := c.pipeline()
	if err != nil {
		return exitWith(globals, int(bootstrap.ExitUsage), "INVALID_FILTER", err.Error(), "fields: "+strings.Join(filter.Fields, ", "))
	}

	logger, err := NewLogger(globals)
	if err != nil {
		return exitWith(globals, int(bootstrap.ExitUsage), "INVALID_LEVEL", err.Error())
	}
	defer func() { _ = logger.Sync() }()

	idx, err := openContentIndex(globals.Config, logger.Named("content"))
	if err != nil {
		return exitWith(globals, int(bootstrap.ExitContentUnavailable), "CONTENT_UNAVAILABLE", err.Error())
	}
	defer idx.Close()

	bundles := pipeline.Apply(idx.Bundles())
	rows := lo.Map(bundles, func(b archive.Bundle, _ int) bundleOutput {
		out := bundleOutput{
			Type:    "bundle",
			ID:      b.ID,
			Kind:    b.Kind.String(),
			Display: b.DisplayName(),
			Path:    b.Path,
			Zipped:  b.Zipped,
			Depends: b.Depends,
		}
		if c.Checksums {
			sum, err := idx.ChecksumOfBundle(b.ID)
			if err != nil {
				logger.Warn("checksum failed", zap.String("bundle", b.ID), zap.Error(err))
			} else {
				out.Checksum = fmt.Sprintf("%08x", sum)
			}
		}
		return out
	})

	if globals.Format == "json" {
		enc := json.NewEncoder(globals.Stdout)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	table := tablewriter.NewWriter(globals.Stdout)
	header := []any{"ID", "KIND", "NAME", "DEPENDS"}
	if c.Checksums {
		header = append(header, "CHECKSUM")
	}
	table.Header(header...)
	for _, row := range rows {
		cells := []string{row.ID, row.Kind, row.Display, strings.Join(row.Depends, ", ")}
		if c.Checksums {
			cells = append(cells, row.Checksum)
		}
		if err := table.Append(cells); err != nil {
			return err
		}
	}
	return table.Render()
}

func (c *BundlesCmd) pipeline() (*filter.Pipeline, error) {
	var pattern *regexp.Regexp
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		pattern = re
	}
	excludes := make([]*regexp.Regexp, 0, len(c.Exclude))
	for _, ex := range c.Exclude {
		re, err := regexp.Compile(ex)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
		excludes = append(excludes, re)
	}
	where, err := filter.NewWhereFilter(c.Where)
	if err != nil {
		return nil, err
	}
	return filter.NewPipeline(pattern, excludes, where), nil
}
