package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"

	"parkrep/core/internal/drawing"
	"parkrep/core/internal/g1"
)

func newSpriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprite",
		Short: "Inspect and build G1 sprite tables",
		Long: `Read, export and extend G1 sprite files.

Examples:
  parkrep sprite details objects.dat
  parkrep sprite details objects.dat 12
  parkrep sprite export objects.dat 12 guest.png
  parkrep sprite create custom.dat
  parkrep sprite append custom.dat banner.png -- -16 -8
  parkrep sprite build custom.dat sprites.json`,
	}
	cmd.AddCommand(
		newSpriteDetailsCmd(),
		newSpriteExportCmd(),
		newSpriteExportAllCmd(),
		newSpriteCreateCmd(),
		newSpriteAppendCmd(),
		newSpriteBuildCmd(),
	)
	return cmd
}

func newSpriteDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details <spritefile> [idx]",
		Short: "Print the table header or one element record",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := g1.Open(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				fmt.Fprintf(out, "sprites: %d\n", table.Len())
				fmt.Fprintf(out, "data size: %d\n", len(table.Data))
				return nil
			}
			index, err := spriteIndex(args[1])
			if err != nil {
				return err
			}
			e, err := table.Element(index)
			if err != nil {
				return err
			}
			size, err := table.DataSize(index)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "width: %d\n", e.Width)
			fmt.Fprintf(out, "height: %d\n", e.Height)
			fmt.Fprintf(out, "x offset: %d\n", e.XOffset)
			fmt.Fprintf(out, "y offset: %d\n", e.YOffset)
			fmt.Fprintf(out, "data offset: %d\n", e.Offset)
			fmt.Fprintf(out, "data size: %d\n", size)
			fmt.Fprintf(out, "flags: %s\n", describeFlags(e.Flags))
			return nil
		},
	}
}

func newSpriteExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <spritefile> <idx> <output>",
		Short: "Render one element to a PNG or BMP file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := g1.Open(args[0])
			if err != nil {
				return err
			}
			index, err := spriteIndex(args[1])
			if err != nil {
				return err
			}
			return exportSprite(table, index, args[2])
		},
	}
}

func newSpriteExportAllCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "exportall <spritefile> <output directory>",
		Short: "Render every drawable element into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := g1.Open(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(args[1], 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			//1.- Palettes and empty records have nothing to render and are skipped.
			exported := 0
			for i, e := range table.Elements {
				if e.IsPalette() || e.Width <= 0 || e.Height <= 0 {
					continue
				}
				if err := exportSprite(table, i, filepath.Join(args[1], fmt.Sprintf("%d.%s", i, format))); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
				exported++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d of %d sprites\n", exported, table.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "png", "Image format: png or bmp")
	return cmd
}

func newSpriteCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <spritefile>",
		Short: "Write an empty sprite table",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return (&g1.Table{}).Save(args[0])
		},
	}
}

func newSpriteAppendCmd() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "append <spritefile> <input> [<x offset> <y offset>]",
		Short: "Import an image and append it to a sprite table",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 && len(args) != 4 {
				return fmt.Errorf("expected 2 or 4 arguments, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := g1.ImportOptions{KeepPalette: keep}
			if len(args) == 4 {
				x, err := strconv.ParseInt(args[2], 10, 16)
				if err != nil {
					return fmt.Errorf("x offset must be an integer: %w", err)
				}
				y, err := strconv.ParseInt(args[3], 10, 16)
				if err != nil {
					return fmt.Errorf("y offset must be an integer: %w", err)
				}
				opts.XOffset, opts.YOffset = int16(x), int16(y)
			}
			table, err := g1.Open(args[0])
			if err != nil {
				return err
			}
			index, err := appendImage(table, args[1], opts)
			if err != nil {
				return err
			}
			if err := table.Save(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appended %s as sprite %d\n", args[1], index)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep-palette", false, "Copy indices from an indexed image instead of matching colours")
	return cmd
}

// spriteDescription is one entry of a build description file.
type spriteDescription struct {
	Path    string `json:"path"`
	XOffset int16  `json:"x_offset"`
	YOffset int16  `json:"y_offset"`
	Palette string `json:"palette"`
}

func newSpriteBuildCmd() *cobra.Command {
	var silent bool
	cmd := &cobra.Command{
		Use:   "build <spritefile> <sprite description file>",
		Short: "Build a sprite table from a JSON list of images",
		Long: `Build a new sprite table from a JSON array of objects:

  [{"path": "guest.png", "x_offset": -8, "y_offset": -24, "palette": "keep"}]

Image paths are resolved relative to the description file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var descriptions []spriteDescription
			if err := json.Unmarshal(raw, &descriptions); err != nil {
				return fmt.Errorf("parse sprite description file: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Building: %s\n", args[0])
			base := filepath.Dir(args[1])
			table := &g1.Table{}
			for i, d := range descriptions {
				if d.Path == "" {
					return fmt.Errorf("sprite %d: no path provided", i)
				}
				path := d.Path
				if !filepath.IsAbs(path) {
					path = filepath.Join(base, path)
				}
				opts := g1.ImportOptions{XOffset: d.XOffset, YOffset: d.YOffset, KeepPalette: strings.HasPrefix(d.Palette, "keep")}
				if _, err := appendImage(table, path, opts); err != nil {
					return fmt.Errorf("sprite %d: %w", i, err)
				}
				if !silent {
					fmt.Fprintf(out, "Added: %s\n", path)
				}
			}
			//1.- The table is written once so a failed import leaves no partial file.
			if err := table.Save(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(out, "Finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&silent, "silent", false, "Do not list each added image")
	return cmd
}

func spriteIndex(raw string) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("sprite index must be a non-negative integer, got %q", raw)
	}
	return index, nil
}

func describeFlags(f g1.Flags) string {
	names := []struct {
		flag g1.Flags
		name string
	}{
		{g1.FlagHasTransparency, "transparent"},
		{g1.FlagNoDraw, "no_draw"},
		{g1.FlagRLE, "rle"},
		{g1.FlagPalette, "palette"},
		{g1.FlagHasZoomSprite, "zoom_sprite"},
		{g1.FlagNoZoomDraw, "no_zoom_draw"},
	}
	var parts []string
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

func gamePalette() color.Palette {
	colours := drawing.DefaultPalette()
	out := make(color.Palette, len(colours))
	for i, c := range colours {
		out[i] = c
	}
	return out
}

// exportSprite renders element index and writes it as BMP when path ends in .bmp and
// as PNG otherwise.
func exportSprite(table *g1.Table, index int, path string) (err error) {
	dpi, err := drawing.RenderElement(table, index)
	if err != nil {
		return err
	}
	img := dpi.Image(drawing.DefaultPalette())
	if img == nil {
		return fmt.Errorf("element %d did not render", index)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	return encodeImage(f, img, path)
}

func encodeImage(w io.Writer, img image.Image, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".bmp") {
		return bmp.Encode(w, img)
	}
	return png.Encode(w, img)
}

// appendImage decodes a PNG or BMP file and appends it to table.
func appendImage(table *g1.Table, path string, opts g1.ImportOptions) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	e, data, err := g1.Import(img, gamePalette(), opts)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	return table.Append(e, data), nil
}
