package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrlens/internal/pdf"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

func newPDFCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf <file.pdf>...",
		Short: "Decode the QR codes in the images of PDF documents",
		Long: `Extract the embedded images of each PDF and decode every QR code in them.

Page ranges use pdfcpu syntax: "1-3", "2,5", "4-".

Examples:
  qrlens pdf invoice.pdf
  qrlens pdf scan.pdf --pages 1-2 --format json
  qrlens pdf secret.pdf --password hunter2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if err := applyOutputFlags(cmd, &cfg); err != nil {
				return err
			}
			p, err := newPipeline(cmd, &cfg)
			if err != nil {
				return err
			}

			pages, _ := cmd.Flags().GetString("pages")
			creds := credentialsFromFlags(cmd)

			docs := make([]*pipeline.PDFResult, 0, len(args))
			var images []*pipeline.ImageResult
			for _, file := range args {
				res, err := p.ProcessPDF(cmd.Context(), file, pages, creds)
				if err != nil {
					if errors.Is(err, pdf.ErrEncrypted) {
						return fmt.Errorf("%s: %w (use --password)", file, err)
					}
					return fmt.Errorf("%s: %w", file, err)
				}
				for _, ir := range res.Images() {
					ir.Source = file
					images = append(images, ir)
				}
				docs = append(docs, res)
			}

			var structured any = docs
			if len(docs) == 1 {
				structured = docs[0]
			}
			return emit(cmd, &cfg, structured, images)
		},
	}
	addOutputFlags(cmd)
	cmd.Flags().String("pages", "", "page range to scan (default all pages)")
	cmd.Flags().String("password", "", "user password for encrypted documents")
	cmd.Flags().String("owner-password", "", "owner password for encrypted documents")
	return cmd
}

func credentialsFromFlags(cmd *cobra.Command) *pdf.Credentials {
	user, _ := cmd.Flags().GetString("password")
	owner, _ := cmd.Flags().GetString("owner-password")
	if user == "" && owner == "" {
		return nil
	}
	return &pdf.Credentials{UserPassword: user, OwnerPassword: owner}
}
