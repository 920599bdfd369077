package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitfetch/packages/cookies"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage the session cookie jar",
}

var cookiesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the cookie jar as JSON to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			data, err := s.jar.Serialize()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), data)
				return err
			}
			return os.WriteFile(args[0], []byte(data), 0o600)
		})
	},
}

var cookiesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the cookie jar with one exported earlier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		jar, err := cookies.Deserialize(string(data))
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		return withSession(func(s *session) error {
			s.jar = jar
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cookie(s)\n", jar.Len())
			return nil
		})
	},
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cookie from the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			s.jar.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared cookies")
			return nil
		})
	},
}

func init() {
	cookiesCmd.AddCommand(cookiesExportCmd, cookiesImportCmd, cookiesClearCmd)
}
