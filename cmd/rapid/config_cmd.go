package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{"version": version, "commit": commit}
			return a.render(info, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "rapid version %s (commit: %s)\n", version, commit)
			})
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration profiles",
	}

	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigSetProfileCmd(a))
	cmd.AddCommand(newConfigUseProfileCmd(a))

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			if !reveal {
				cfg = maskConfig(cfg)
			}

			if a.settings.output == "json" {
				return printJSON(a.stdout, cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show secrets unmasked")

	return cmd
}

// maskConfig returns a copy of cfg with secrets masked.
func maskConfig(cfg *UserConfig) *UserConfig {
	masked := &UserConfig{
		CurrentProfile: cfg.CurrentProfile,
		Profiles:       make(map[string]Profile, len(cfg.Profiles)),
	}
	for name, p := range cfg.Profiles {
		p.ClientSecret = maskSecret(p.ClientSecret)
		p.AWSSecretAccessKey = maskSecret(p.AWSSecretAccessKey)
		masked.Profiles[name] = p
	}
	return masked
}

// maskSecret shows the first and last four characters of long secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 10 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// newConfigSetProfileCmd stores the connection flags given on the command
// line into a named profile.
func newConfigSetProfileCmd(a *app) *cobra.Command {
	var use bool

	cmd := &cobra.Command{
		Use:   "set-profile <name>",
		Short: "Create or update a profile from the connection flags",
		Example: `  rapid config set-profile dev --url https://rapid.dev.example.gov.uk/api --client-id abc --client-secret xyz
  rapid config set-profile prod --ssm-prefix /rapid/prod --region eu-west-2 --use`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			s := a.settings

			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}

			p := cfg.Profiles[name]
			flags := cmd.Flags()
			if flags.Changed("client-id") {
				p.ClientID = s.clientID
			}
			if flags.Changed("client-secret") {
				p.ClientSecret = s.clientSecret
			}
			if flags.Changed("url") {
				p.URL = s.url
			}
			if flags.Changed("ssm-prefix") {
				p.SSMPrefix = s.ssmPrefix
			}
			if flags.Changed("region") {
				p.Region = s.region
			}
			if flags.Changed("aws-profile") {
				p.AWSProfile = s.awsProfile
			}
			if flags.Changed("output") {
				p.Output = s.output
			}
			cfg.Profiles[name] = p

			if use || cfg.CurrentProfile == "" {
				cfg.CurrentProfile = name
			}

			if err := SaveUserConfig(cfg); err != nil {
				return err
			}

			return a.render(map[string]string{"status": "ok", "profile": name, "path": ConfigPath()}, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Profile %q saved to %s\n", name, ConfigPath())
			})
		},
	}

	cmd.Flags().BoolVar(&use, "use", false, "Also make this the current profile")

	return cmd
}

func newConfigUseProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			if _, ok := cfg.Profiles[args[0]]; !ok {
				return fmt.Errorf("profile %q not found", args[0])
			}

			cfg.CurrentProfile = args[0]
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}

			return a.render(map[string]string{"status": "ok", "current-profile": args[0]}, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Switched to profile %q\n", args[0])
			})
		},
	}
}
