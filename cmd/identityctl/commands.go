package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	identity "github.com/jrsteele09/go-identity-client"
	"github.com/jrsteele09/go-identity-client/deviceauth"
	"github.com/jrsteele09/go-identity-client/internal/config"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// runtimeState is shared by every command through the root's persistent hooks.
type runtimeState struct {
	config   config.Config
	discover bool
	quiet    bool
	hub      *identity.Hub
}

func newRootCommand(c config.Config) *cobra.Command {
	rt := &runtimeState{config: c}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Identity client for an OAuth2/OIDC identity server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !rt.quiet {
				displayAppname(appName)
			}
			hub, err := rt.buildHub(cmd.Context())
			if err != nil {
				return err
			}
			rt.hub = hub
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&rt.discover, "discover", false, "Resolve endpoints from the OpenID discovery document")
	root.PersistentFlags().BoolVarP(&rt.quiet, "quiet", "q", false, "Do not print the banner")

	root.AddCommand(
		newLoginCommand(rt),
		newRegisterCommand(rt),
		newRefreshCommand(rt),
		newRevokeCommand(rt),
		newAuthURLCommand(rt),
		newEndSessionURLCommand(rt),
		newDevicesCommand(rt),
		newDeviceIDCommand(rt),
	)
	return root
}

// buildHub keeps secrets in the OS keyring and everything else in a JSON file.
func (rt *runtimeState) buildHub(ctx context.Context) (*identity.Hub, error) {
	c := rt.config
	service := c.GetKeyringService()
	options := []identity.Option{
		identity.WithStorage(storage.NewKeyring(service), storage.NewFile(filepath.Join(c.GetDataFolder(), "identity.json"))),
		identity.WithKeyStore(keystore.NewKeyring(service, keystore.WithKeyBits(c.GetKeyBits()))),
	}
	if rt.discover {
		endpoints, err := config.Discover(ctx, c.GetBaseURL(), c.GetAPIBaseURL())
		if err != nil {
			return nil, err
		}
		options = append(options, identity.WithEndpoints(endpoints))
	}
	return identity.FromConfig(c, options...)
}

func newLoginCommand(rt *runtimeState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session tokens",
	}

	var username, password string
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Log in with username and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = prompt(cmd, "Password: "); err != nil {
					return err
				}
			}
			service, err := rt.hub.Authorization()
			if err != nil {
				return err
			}
			if err := service.LoginPassword(cmd.Context(), username, password); err != nil {
				return err
			}
			return printClaims(cmd.OutOrStdout(), rt)
		},
	}
	passwordCmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	passwordCmd.Flags().StringVarP(&password, "password", "p", "", "Password, prompted for when empty")
	_ = passwordCmd.MarkFlagRequired("username")

	var pin string
	pinCmd := &cobra.Command{
		Use:   "pin",
		Short: "Log in with the device PIN registered on this machine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pin == "" {
				var err error
				if pin, err = prompt(cmd, "PIN: "); err != nil {
					return err
				}
			}
			service, err := rt.hub.Authorization()
			if err != nil {
				return err
			}
			if err := service.LoginPin(cmd.Context(), pin); err != nil {
				return err
			}
			return printClaims(cmd.OutOrStdout(), rt)
		},
	}
	pinCmd.Flags().StringVar(&pin, "pin", "", "Device PIN, prompted for when empty")

	cmd.AddCommand(passwordCmd, pinCmd)
	return cmd
}

func newRegisterCommand(rt *runtimeState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a quick login method for this device",
	}

	var pin, otp, channel string
	pinCmd := &cobra.Command{
		Use:   "pin",
		Short: "Register a device PIN, confirmed with a one time password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pin == "" {
				var err error
				if pin, err = prompt(cmd, "New PIN: "); err != nil {
					return err
				}
			}
			devicesService, err := rt.hub.Devices()
			if err != nil {
				return err
			}
			reg, err := devicesService.RegisterDevicePin(cmd.Context(), pin, oauth2.TotpDeliveryChannel(channel))
			if err != nil {
				return err
			}

			answer := deviceauth.SubmitOtp(otp)
			if otp == "" {
				value, err := prompt(cmd, "One time password (empty to abort): ")
				if err != nil {
					return err
				}
				answer = deviceauth.SubmitOtp(value)
				if value == "" {
					answer = deviceauth.AbortOtp()
				}
			}
			outcome, err := reg.Complete(cmd.Context(), answer)
			if err != nil {
				return err
			}
			if outcome.Aborted {
				fmt.Fprintln(cmd.OutOrStdout(), "Registration aborted")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered PIN login (registration %s)\n", outcome.RegistrationID)
			return nil
		},
	}
	pinCmd.Flags().StringVar(&pin, "pin", "", "Device PIN, prompted for when empty")
	pinCmd.Flags().StringVar(&otp, "otp", "", "One time password, prompted for when empty")
	pinCmd.Flags().StringVar(&channel, "channel", string(oauth2.ChannelSms), "One time password delivery channel")

	cmd.AddCommand(pinCmd)
	return cmd
}

func newRefreshCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Redeem the stored refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := rt.hub.Authorization()
			if err != nil {
				return err
			}
			if err := service.RefreshTokens(cmd.Context()); err != nil {
				return err
			}
			return printClaims(cmd.OutOrStdout(), rt)
		},
	}
}

func newRevokeCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke",
		Short: "Log out and revoke the stored tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := rt.hub.Authorization()
			if err != nil {
				return err
			}
			service.RevokeTokens(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newAuthURLCommand(rt *runtimeState) *cobra.Command {
	var promptType string
	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print a PKCE authorization URL and its code verifier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := rt.hub.Authorization()
			if err != nil {
				return err
			}
			pkce, verifier, err := oauth2.GeneratePKCE()
			if err != nil {
				return err
			}
			u, err := service.AuthorizationURL(pkce, oauth2.PromptType(promptType))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			fmt.Fprintf(cmd.OutOrStdout(), "code_verifier: %s\n", verifier)
			return nil
		},
	}
	cmd.Flags().StringVar(&promptType, "prompt", string(oauth2.PromptLogin), "OIDC prompt value")
	return cmd
}

func newEndSessionURLCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "end-session-url",
		Short: "Print the browser logout URL for the stored id token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := rt.hub.Authorization()
			if err != nil {
				return err
			}
			u, err := service.EndSessionURL()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func newDevicesCommand(rt *runtimeState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage the devices of the logged in account",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the account's devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			devicesService, err := rt.hub.Devices()
			if err != nil {
				return err
			}
			if err := devicesService.RefreshDevices(cmd.Context()); err != nil {
				return err
			}
			list, _ := devicesService.Devices()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		},
	})
	return cmd
}

func newDeviceIDCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "device-id",
		Short: "Print this device's ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			device, err := rt.hub.ThisDevice()
			if err != nil {
				return err
			}
			ids, err := device.IDs()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "device:       %s\nregistration: %s\n", ids.Device, ids.Registration)
			return nil
		},
	}
}

func printClaims(w io.Writer, rt *runtimeState) error {
	tokens, err := rt.hub.Tokens()
	if err != nil {
		return err
	}
	claims, err := tokens.Claims()
	if err != nil {
		return errors.Wrap(err, "read access token claims")
	}
	fmt.Fprintf(w, "Logged in as %s\n", claims.Subject)
	if claims.ExpiresAt != nil {
		fmt.Fprintf(w, "Access token expires %s\n", claims.ExpiresAt.Time.Format("15:04:05"))
	}
	fmt.Fprintf(w, "Scopes: %s\n", strings.Join(claims.Scopes(), " "))
	return nil
}

func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "read input")
	}
	return strings.TrimSpace(line), nil
}
