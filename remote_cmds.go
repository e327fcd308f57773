package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	rpc "parkrep/core/internal/grpc"
	"parkrep/core/internal/replay"
)

// remoteFlags select and authenticate the gRPC endpoint.
type remoteFlags struct {
	addr     string
	secret   string
	caPath   string
	certPath string
	keyPath  string
}

func newRemoteCmd(flags *globalFlags) *cobra.Command {
	rf := &remoteFlags{}
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Query a running parkrep server over gRPC",
		Long: `Call the ReplayService of a running "parkrep serve".

The address and shared secret default to grpc_addr and grpc_shared_secret from the
configuration. Pass --ca, --cert and --key together to dial with mutual TLS.`,
	}
	cmd.PersistentFlags().StringVar(&rf.addr, "addr", "", "Server address (default from config)")
	cmd.PersistentFlags().StringVar(&rf.secret, "secret", "", "Shared secret (default from config)")
	cmd.PersistentFlags().StringVar(&rf.caPath, "ca", "", "CA bundle used to verify the server")
	cmd.PersistentFlags().StringVar(&rf.certPath, "cert", "", "Client certificate for mutual TLS")
	cmd.PersistentFlags().StringVar(&rf.keyPath, "key", "", "Client key for mutual TLS")

	cmd.AddCommand(
		newRemoteInspectCmd(flags, rf),
		newRemoteListCmd(flags, rf),
		newRemoteWatchCmd(flags, rf),
		newRemoteFetchCmd(flags, rf),
	)
	return cmd
}

// dial connects with the flag values, falling back to the configuration.
func (rf *remoteFlags) dial(cmd *cobra.Command, flags *globalFlags) (*rpc.Client, error) {
	e, err := flags.load(cmd)
	if err != nil {
		return nil, err
	}
	addr, secret := rf.addr, rf.secret
	if addr == "" {
		addr = advertisedHost(e.cfg.GRPCAddr)
	}
	if secret == "" {
		secret = e.cfg.GRPCSharedSecret
	}
	var opts []grpc.DialOption
	if rf.caPath != "" || rf.certPath != "" || rf.keyPath != "" {
		creds, err := clientTLS(rf.caPath, rf.certPath, rf.keyPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	}
	return rpc.Dial(addr, secret, opts...)
}

func clientTLS(caPath, certPath, keyPath string) (credentials.TransportCredentials, error) {
	if caPath == "" || certPath == "" || keyPath == "" {
		return nil, errors.New("mutual TLS needs --ca, --cert and --key together")
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("CA bundle %s holds no certificates", caPath)
	}
	return credentials.NewTLS(&tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
}

func newRemoteInspectCmd(flags *globalFlags, rf *remoteFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Print the header of a replay on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rf.dial(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeInfoJSON(cmd.OutOrStdout(), info)
			}
			writeInfoText(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the header as JSON")
	return cmd
}

func newRemoteListCmd(flags *globalFlags, rf *remoteFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the replays indexed by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := rf.dial(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()
			entries, err := client.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeEntries(cmd.OutOrStdout(), entries, asJSON)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newRemoteWatchCmd(flags *globalFlags, rf *remoteFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream replay notifications as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := rf.dial(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()
			enc := json.NewEncoder(cmd.OutOrStdout())
			err = client.Watch(cmd.Context(), nil, func(n replay.Notification) {
				_ = enc.Encode(n)
			})
			//1.- An interrupt ends the stream with Canceled, which is the normal exit.
			if status.Code(err) == codes.Canceled && cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newRemoteFetchCmd(flags *globalFlags, rf *remoteFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <name> <output>",
		Short: "Download a replay file from the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rf.dial(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			n, err := client.Fetch(cmd.Context(), args[0], out)
			if err = errors.Join(err, out.Close()); err != nil {
				_ = os.Remove(args[1])
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %s (%d bytes)\n", args[1], n)
			return nil
		},
	}
}
