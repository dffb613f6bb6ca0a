package cmd

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"minimg/internal/decode"
	"minimg/internal/log"
)

func newInfoCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Decode one image and print what is known about it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.configureLogging(cmd.ErrOrStderr())
			defer log.Close()

			img, err := decode.NewFileDecoder().Decode(args[0])
			if err != nil {
				return err
			}
			printInfo(newPrinter(cmd.OutOrStdout(), o.cfg.Theme), img)
			return nil
		},
	}
}

func printInfo(p *printer, img *decode.Image) {
	p.Header(img.Name())
	p.Field("Path", img.Path)
	p.Field("Format", img.Format)
	p.Field("MIME", img.MIME)
	p.Field("Dimensions", fmt.Sprintf("%dx%d", img.Width(), img.Height()))
	p.Field("File size", humanize.Bytes(uint64(img.Size)))
	p.Field("Decoded", humanize.Bytes(uint64(img.Bytes())))

	if len(img.Meta) == 0 {
		p.Dim("  no EXIF metadata")
		return
	}
	keys := make([]string, 0, len(img.Meta))
	for k := range img.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Field(k, img.Meta[k])
	}
}
