package main

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/auth"
	"github.com/md-rashed-zaman/apptslot/libs/config"
	"github.com/md-rashed-zaman/apptslot/libs/grpcx"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/grpcserver"
	"github.com/spf13/cobra"
)

// probeCmd asks a running instance for the next free slot over gRPC. The
// token is minted locally from JWT_SECRET for a synthetic caller.
func probeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Query a running instance for the next available slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			secret, err := config.RequiredString("JWT_SECRET")
			if err != nil {
				return err
			}
			issuer, err := auth.NewIssuer(secret, time.Minute)
			if err != nil {
				return err
			}
			token, _, err := issuer.Sign(auth.Claims{UserID: "probe", Email: "probe@localhost"})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: timeout})
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer conn.Close()

			slot, err := grpcserver.NewClient(conn, token).FindNextAvailableSlot(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), slot.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("addr", "localhost:9090", "gRPC address of the scheduling service")
	cmd.Flags().Duration("timeout", 5*time.Second, "Deadline for the whole probe")
	return cmd
}
