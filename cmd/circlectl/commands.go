package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/circles/internal/rpc"
)

type cli struct {
	addr    string
	token   string
	timeout time.Duration
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	rootCmd := &cobra.Command{
		Use:           "circlectl",
		Short:         "circlectl - create, find and join circles",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.addr, "addr", envOr("CIRCLES_ADDR", "http://localhost:8080"), "Server base URL")
	rootCmd.PersistentFlags().StringVar(&c.token, "token", os.Getenv("CIRCLES_TOKEN"), "Session token from login or register")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(c.registerCmd())
	rootCmd.AddCommand(c.loginCmd())
	rootCmd.AddCommand(c.logoutCmd())
	rootCmd.AddCommand(c.profileCmd())
	rootCmd.AddCommand(c.createCmd())
	rootCmd.AddCommand(c.findCmd())
	rootCmd.AddCommand(c.joinCmd())
	rootCmd.AddCommand(c.listCmd())
	rootCmd.AddCommand(c.passcodeCmd())

	return rootCmd
}

func (c *cli) registerCmd() *cobra.Command {
	var req rpc.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and print its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			resp, err := c.accounts().Register(ctx, &req)
			if err != nil {
				return err
			}
			return c.print(resp)
		},
	}

	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number (digits)")
	cmd.Flags().StringVar(&req.Address, "address", "", "Postal address")
	cmd.Flags().IntVar(&req.Age, "age", 0, "Age in years")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (at least 8 characters)")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm-password", "", "Password again")

	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var req rpc.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			resp, err := c.accounts().Login(ctx, &req)
			if err != nil {
				return err
			}
			return c.print(resp)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password")

	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			if err := c.accounts().Logout(ctx); err != nil {
				return err
			}
			return c.print(map[string]bool{"logged_out": true})
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	var (
		name, phone, address, image string
		age                         int
	)
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in profile, or edit it with flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			var upd rpc.UpdateProfileRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				upd.FullName = &name
			}
			if flags.Changed("phone") {
				upd.Phone = &phone
			}
			if flags.Changed("address") {
				upd.Address = &address
			}
			if flags.Changed("age") {
				upd.Age = &age
			}
			if flags.Changed("image") {
				upd.Image = &image
			}

			if upd == (rpc.UpdateProfileRequest{}) {
				resp, err := c.accounts().GetProfile(ctx)
				if err != nil {
					return err
				}
				return c.print(resp)
			}

			resp, err := c.accounts().UpdateProfile(ctx, &upd)
			if err != nil {
				return err
			}
			return c.print(resp)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New full name")
	cmd.Flags().StringVar(&phone, "phone", "", "New phone number")
	cmd.Flags().StringVar(&address, "address", "", "New address")
	cmd.Flags().IntVar(&age, "age", 0, "New age")
	cmd.Flags().StringVar(&image, "image", "", "New profile image URL (empty resets)")

	return cmd
}

func (c *cli) createCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a circle and print its passcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			circle, err := c.circles().CreateCircleWithPasscode(ctx, args[0], code)
			if err != nil {
				return err
			}
			return c.print(circle)
		},
	}

	cmd.Flags().StringVar(&code, "passcode", "", "Passcode from the passcode command (optional)")

	return cmd
}

func (c *cli) findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find [passcode]",
		Short: "Look up a circle by passcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			circle, err := c.circles().FindCircle(ctx, args[0])
			if err != nil {
				return err
			}
			return c.print(circle)
		},
	}
}

func (c *cli) joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join [passcode]",
		Short: "Join a circle by passcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			circle, err := c.circles().JoinCircle(ctx, args[0])
			if err != nil {
				return err
			}
			return c.print(circle)
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the circles you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			circles, err := c.circles().ListMyCircles(ctx)
			if err != nil {
				return err
			}
			return c.print(circles)
		},
	}
}

func (c *cli) passcodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passcode",
		Short: "Generate a passcode preview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			code, err := c.circles().GeneratePasscode(ctx)
			if err != nil {
				return err
			}
			return c.print(map[string]string{"passcode": code})
		},
	}
}

func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

func (c *cli) accounts() *rpc.AccountClient {
	return rpc.NewAccountClient(http.DefaultClient, c.addr, rpc.WithBearerToken(c.token))
}

func (c *cli) circles() *rpc.CircleClient {
	return rpc.NewCircleClient(http.DefaultClient, c.addr, rpc.WithBearerToken(c.token))
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
