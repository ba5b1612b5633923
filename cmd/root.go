package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "account",
	Short: "Account and cover letter microservice",
	Long:  `A backend service providing user registration, email verification, login, CV storage and AI-assisted cover letter generation over HTTP.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
