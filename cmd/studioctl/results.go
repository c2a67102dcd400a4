package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"studio/internal/domain"
	"studio/internal/provenance"
	"studio/internal/results"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir     string
		sign       bool
		secretPath string
		model      string
	)

	cmd := &cobra.Command{
		Use:   "results <job-id>",
		Short: "Download and unpack a succeeded job's result file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			if err := reg.Load(cmd.Context()); err != nil {
				return err
			}
			location, err := reg.ResultLocation(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			rc, contentType, err := client.Download(cmd.Context(), location)
			if err != nil {
				return err
			}
			defer rc.Close()

			var signer *provenance.Builder
			if sign {
				secret, err := provenance.LoadOrCreateSecret(secretPath)
				if err != nil {
					return err
				}
				signer = provenance.NewBuilder(secret)
			}
			if model == "" {
				if job, ok := reg.Get(args[0]); ok {
					model = job.Model
				}
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			logger := ctx.logger()
			parser := results.NewParser(&logger)
			total := 0
			err = parser.ParseResponse(cmd.Context(), rc, contentType, func(items []domain.ExtractedItem) error {
				for _, item := range items {
					var data []byte
					if item.Type == domain.ItemTypeImage {
						decoded, err := base64.StdEncoding.DecodeString(item.Data)
						if err != nil {
							return fmt.Errorf("decode %s: %w", item.Name, err)
						}
						data = decoded
					} else {
						data = []byte(item.Data)
					}
					if signer != nil && item.Type == domain.ItemTypeImage && strings.HasSuffix(item.Name, ".png") {
						signed, err := signImage(signer, model, data)
						if err != nil {
							return err
						}
						data = signed
					}
					dest := filepath.Join(outDir, item.Name)
					if err := os.WriteFile(dest, data, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", dest, err)
					}
					total++
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s\n", total, outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory results are written into")
	cmd.Flags().BoolVar(&sign, "sign", false, "Embed a signed provenance record into PNG outputs")
	cmd.Flags().StringVar(&secretPath, "secret", defaultSecretPath(), "Provenance signing secret file")
	cmd.Flags().StringVar(&model, "model", "", "Model id recorded in provenance (defaults to the job's model)")

	return cmd
}

// signImage embeds a signed provenance record into PNG bytes. The codec
// returns nil for anything it cannot parse as a PNG; such inputs come back
// unchanged, since an unsigned output beats a destroyed one.
func signImage(signer *provenance.Builder, model string, data []byte) ([]byte, error) {
	rec, err := signer.Build(data, provenance.Metadata{Model: model})
	if err != nil {
		return nil, err
	}
	if embedded := provenance.EmbedInPNG(data, rec); embedded != nil {
		return embedded, nil
	}
	return data, nil
}

func defaultSecretPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "provenance.secret"
	}
	return filepath.Join(home, ".studio", "provenance.secret")
}
