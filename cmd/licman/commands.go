package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"licman/internal/app"
	"licman/internal/cache"
	"licman/internal/config"
	"licman/internal/license"
	"licman/internal/services"
	"licman/internal/store"
)

// cliDeps is the engine wiring used by the one-shot commands. The serve
// command goes through app.New instead, which adds the HTTP server,
// metrics, and scheduler.
type cliDeps struct {
	cfg     *config.Config
	manager *license.Manager
	service services.LicenseService
}

func newCLIDeps() (*cliDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	kv, err := store.NewFileKV(cfg.License.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("LICMAN_VERBOSE") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	manager := license.NewManager(cfg.License, kv, cache.New(time.Minute), logger, nil)
	return &cliDeps{
		cfg:     cfg,
		manager: manager,
		service: services.NewLicenseService(manager, logger),
	}, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the license daemon with the HTTP API and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New()
			if err != nil {
				return err
			}
			return application.Run()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the installed license status",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := newCLIDeps()
			if err != nil {
				return err
			}
			resp, err := deps.service.GetStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func newActivateCmd() *cobra.Command {
	var artifactFile string

	cmd := &cobra.Command{
		Use:   "activate [license-key]",
		Short: "Activate a license by key, or from an exported artifact file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := newCLIDeps()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			switch {
			case artifactFile != "":
				data, err := os.ReadFile(artifactFile)
				if err != nil {
					return fmt.Errorf("failed to read artifact file: %w", err)
				}
				resp, err := deps.service.ActivateArtifact(ctx, strings.TrimSpace(string(data)))
				if err != nil {
					return err
				}
				return printJSON(resp)
			case len(args) == 1:
				resp, err := deps.service.Activate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(resp)
			default:
				return fmt.Errorf("provide a license key or --artifact-file")
			}
		},
	}

	cmd.Flags().StringVar(&artifactFile, "artifact-file", "", "path to an exported license artifact")
	return cmd
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Revalidate against the license server using the stored key",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := newCLIDeps()
			if err != nil {
				return err
			}
			resp, err := deps.service.Pull(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the installed license",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := newCLIDeps()
			if err != nil {
				return err
			}
			if err := deps.service.Uninstall(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("license uninstalled")
			return nil
		},
	}
}

func newIssueCmd() *cobra.Command {
	var (
		name       string
		issuer     string
		whitelabel string
		domains    []string
		instance   string
		ocspURL    string
		validFor   time.Duration
		export     bool
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue and install a self-signed license using the local issuer key",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := newCLIDeps()
			if err != nil {
				return err
			}

			var expiresAt int64
			if validFor > 0 {
				expiresAt = time.Now().Add(validFor).Unix()
			}

			l, err := deps.manager.Issue(cmd.Context(), license.IssueRequest{
				Name:       name,
				Issuer:     issuer,
				Whitelabel: whitelabel,
				Domains:    domains,
				Instance:   instance,
				OCSP:       ocspURL,
				ExpiresAt:  expiresAt,
			})
			if err != nil {
				return err
			}

			if export {
				artifact, err := license.Export(l)
				if err != nil {
					return err
				}
				fmt.Println(artifact)
				return nil
			}

			fmt.Printf("issued license %s\n", l.UUID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "licensee name")
	cmd.Flags().StringVar(&issuer, "issuer", "", "issuer name")
	cmd.Flags().StringVar(&whitelabel, "whitelabel", "", "whitelabel branding")
	cmd.Flags().StringSliceVar(&domains, "domain", nil, "allowed domain glob (repeatable)")
	cmd.Flags().StringVar(&instance, "instance", "", "pin the license to an instance identifier")
	cmd.Flags().StringVar(&ocspURL, "ocsp-url", "", "soft-revocation check URL template")
	cmd.Flags().DurationVar(&validFor, "valid-for", 0, "validity window (0 means never expires)")
	cmd.Flags().BoolVar(&export, "export", false, "print the portable artifact instead of installing only")
	return cmd
}

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage the issuer keypair",
	}

	var bits int
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a fresh issuer keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := newCLIDeps()
			if err != nil {
				return err
			}
			if err := deps.manager.GenerateIssuer(cmd.Context(), bits); err != nil {
				return err
			}
			fmt.Println("issuer keypair generated")
			return nil
		},
	}
	generate.Flags().IntVar(&bits, "bits", license.DefaultKeyBits, "RSA key size")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the issuer public key PEM",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := newCLIDeps()
			if err != nil {
				return err
			}
			pemStr, err := deps.manager.Keys().PublicKeyPEM()
			if err != nil {
				return err
			}
			fmt.Print(pemStr)
			return nil
		},
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete the issuer keypair",
		Long:  "Delete both issuer keys. Unlike uninstall, this removes the private key too, so re-signing requires generating a fresh keypair.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the issuer keypair without --yes")
			}
			deps, err := newCLIDeps()
			if err != nil {
				return err
			}
			if err := deps.manager.DeleteKeys(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("issuer keypair deleted")
			return nil
		},
	}
	del.Flags().BoolVar(&yes, "yes", false, "confirm deletion")

	keys.AddCommand(generate, show, del)
	return keys
}
