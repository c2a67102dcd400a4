package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		serverFlag  string
		tokenFlag   string
		userFlag    string
		apiKeyFlag  string
		baseURLFlag string
		dataFlag    string
		verboseFlag bool
	)

	ctx := &commandContext{
		serverFlag:  &serverFlag,
		tokenFlag:   &tokenFlag,
		userFlag:    &userFlag,
		apiKeyFlag:  &apiKeyFlag,
		baseURLFlag: &baseURLFlag,
		dataFlag:    &dataFlag,
		verboseFlag: &verboseFlag,
	}

	rootCmd := &cobra.Command{
		Use:           "studioctl",
		Short:         "Batch generation workflow CLI for the studio backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Studio server base URL (local registry file when empty)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Session token for the studio server")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User id owning the job registry")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Gemini API base URL override")
	rootCmd.PersistentFlags().StringVar(&dataFlag, "data", "", "Local data directory (default ./data)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newResultsCommand(ctx))
	rootCmd.AddCommand(newProvenanceCommand(ctx))

	return rootCmd
}
