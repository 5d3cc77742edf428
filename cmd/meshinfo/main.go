// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Command meshinfo loads glTF/GLB files and prints a
// summary of their geometry.
package main

import (
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gviegas/meshgeom/geometry"
	"github.com/gviegas/meshgeom/loader"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		level string
		json  bool
	)
	cmd := &cobra.Command{
		Use:           "meshinfo file...",
		Short:         "Print the geometry of glTF and GLB files",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cmd.ErrOrStderr(), level, json)
			if err != nil {
				return err
			}
			var failed int
			for _, name := range args {
				log.Debug("loading", "file", name)
				m, err := loader.LoadFile(name)
				if err != nil {
					log.Error("load failed", "file", name, "err", err)
					failed++
					continue
				}
				report(cmd.OutOrStdout(), name, m)
				log.Info("loaded", "file", name, "meshes", len(m.Meshes))
			}
			if failed > 0 {
				return fmt.Errorf("meshinfo: %d of %d files failed to load", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&json, "json", false, "log in JSON format")
	return cmd
}

func newLogger(w io.Writer, level string, json bool) (*charmlog.Logger, error) {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("meshinfo: %w", err)
	}
	log := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           lvl,
	})
	if json {
		log.SetFormatter(charmlog.JSONFormatter)
	}
	return log, nil
}

// report writes one line per primitive of m to w.
func report(w io.Writer, name string, m *loader.Model) {
	fmt.Fprintf(w, "%s: %d mesh(es)\n", name, len(m.Meshes))
	for i, mesh := range m.Meshes {
		for j, p := range mesh.Primitives {
			fmt.Fprintf(w, "  mesh %d %q primitive %d: %v, %d attribute(s), %d index(es)",
				i, mesh.Name, j, p.Mode, len(p.Geometry.Attributes()), len(p.Geometry.Index()))
			if b, ok := p.Geometry.(*geometry.Buffer); ok {
				fmt.Fprintf(w, ", %d vertices", b.VertexCount())
				if min, max, ok := b.Bounds(); ok {
					fmt.Fprintf(w, ", bounds (%g, %g, %g) (%g, %g, %g)",
						min.X(), min.Y(), min.Z(), max.X(), max.Y(), max.Z())
				}
			}
			fmt.Fprintln(w)
		}
	}
}
