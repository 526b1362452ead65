// Package main is the entry point for the ebdeploy CLI.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Set at build time.
var version = "dev"

// Global flags.
var (
	configFile string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ebdeploy",
		Short: "Deploy application bundles to AWS Elastic Beanstalk",
		Long: `ebdeploy bundles a service, uploads it to S3 and drives the Elastic
Beanstalk application version and environment until the new version is live.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "serverless.yml", "Path to the service file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newDeployCmd())
	root.AddCommand(newReleasesCmd())
	root.AddCommand(newUnlockCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ebdeploy version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
