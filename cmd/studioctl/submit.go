package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"studio/internal/batch"
	"studio/internal/domain"
	"studio/internal/gemini"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		mode            string
		model           string
		prompt          string
		promptsFile     string
		system          string
		aspect          string
		resolution      string
		temperature     float64
		generations     int
		filesPerRequest int
		streamed        bool
		label           string
	)

	cmd := &cobra.Command{
		Use:   "submit [files...]",
		Short: "Build a manifest from prompts and input files and submit batch jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := batch.Config{
				Model:           model,
				Mode:            batch.Mode(mode),
				SystemPrompt:    system,
				UserPrompt:      prompt,
				AspectRatio:     aspect,
				Resolution:      resolution,
				Temperature:     temperature,
				Generations:     generations,
				FilesPerRequest: filesPerRequest,
				Streamed:        streamed,
			}
			if promptsFile != "" {
				block, err := os.ReadFile(promptsFile)
				if err != nil {
					return fmt.Errorf("read prompts file: %w", err)
				}
				cfg.PromptBlock = string(block)
			}
			if cfg.Mode != batch.ModeImage && cfg.Mode != batch.ModeText {
				return fmt.Errorf("unknown mode %q: want image or text", mode)
			}
			if len(batch.SplitPrompts(cfg.PromptBlock, cfg.UserPrompt)) == 0 && cfg.Mode == batch.ModeText {
				return fmt.Errorf("text mode needs at least one prompt")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			store, err := ctx.store()
			if err != nil {
				return err
			}

			resources, err := loadResources(cmd, ctx, client, cfg.Mode, args)
			if err != nil {
				return err
			}

			records := batch.Build(cfg, resources)
			if len(records) == 0 {
				return fmt.Errorf("nothing to submit: no prompts and no input files")
			}

			var created []domain.BatchJob
			for i, part := range batch.Split(records, cfg.Ceiling()) {
				name := label
				if name == "" {
					name = "studioctl batch"
				}
				if i > 0 {
					name = fmt.Sprintf("%s (%d)", name, i+1)
				}
				manifest, err := batch.EncodeManifest(part)
				if err != nil {
					return err
				}
				fileName, err := client.UploadManifest(cmd.Context(), name+".jsonl", manifest)
				if err != nil {
					return err
				}
				job, err := client.CreateBatch(cmd.Context(), fileName, gemini.CreateOptions{
					Model:       cfg.Model,
					DisplayName: name,
				})
				if err != nil {
					return err
				}
				created = append(created, job)
			}

			if _, err := store.Save(cmd.Context(), created); err != nil {
				return fmt.Errorf("jobs submitted but registry update failed: %w", err)
			}

			rows := make([][]string, 0, len(created))
			for _, job := range created {
				rows = append(rows, []string{job.ID, job.DisplayID, string(job.Status), job.Model})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "LABEL", "STATE", "MODEL"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "image", "Processing mode: image or text")
	cmd.Flags().StringVar(&model, "model", "gemini-2.5-flash-image", "Model id")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Single prompt")
	cmd.Flags().StringVar(&promptsFile, "prompts-file", "", "File with prompts, one per line or separated by --- lines")
	cmd.Flags().StringVar(&system, "system", "", "System prompt prepended to every request")
	cmd.Flags().StringVar(&aspect, "aspect", batch.AspectRatioAuto, "Aspect ratio, Auto lets the model decide")
	cmd.Flags().StringVar(&resolution, "resolution", "1K", "Image size for pro models")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature (0 uses the model default)")
	cmd.Flags().IntVar(&generations, "generations", 1, "Copies per resource and prompt")
	cmd.Flags().IntVar(&filesPerRequest, "files-per-request", batch.DefaultFilesPerRequest, "Text files grouped into one request")
	cmd.Flags().BoolVar(&streamed, "streamed", false, "Allow larger manifests for streamed result handling")
	cmd.Flags().StringVar(&label, "label", "", "Display name for the batch")

	return cmd
}

// loadResources turns local paths into batch resources. Image inputs are
// pushed through the Files API first; text inputs travel inline in the
// manifest.
func loadResources(cmd *cobra.Command, ctx *commandContext, client uploader, mode batch.Mode, paths []string) ([]batch.Resource, error) {
	var resources []batch.Resource
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input %s: %w", path, err)
		}
		name := filepath.Base(path)
		if mode == batch.ModeText {
			resources = append(resources, batch.Resource{Name: name, Text: string(data)})
			continue
		}
		mimeType := imageMIME(name)
		_, uri, err := client.UploadFile(cmd.Context(), name, mimeType, data)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", path, err)
		}
		logger := ctx.logger()
		logger.Debug().Str("file", name).Str("uri", uri).Msg("input uploaded")
		resources = append(resources, batch.Resource{Name: name, URI: uri, MimeType: mimeType})
	}
	return resources, nil
}

type uploader interface {
	UploadFile(ctx context.Context, displayName, mimeType string, data []byte) (string, string, error)
}

func imageMIME(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
