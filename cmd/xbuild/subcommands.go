package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	core "github.com/3cpo-dev/xbuild/internal/core"
	gssh "github.com/3cpo-dev/xbuild/internal/ssh"
	"github.com/3cpo-dev/xbuild/pkg/api"
)

// List the targets the toolchain supports
func newTargetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the platform/architecture pairs the installed toolchain supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			m, err := core.NewOrchestrator(core.DefaultConfig(), core.ExecRunner{}).Matrix(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				specs := make([]api.TargetSpec, 0, m.Len())
				for _, t := range m.Targets() {
					specs = append(specs, api.TargetSpec{Platform: t.Platform, Arch: t.Arch})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(specs)
			}
			for _, p := range m.Platforms() {
				fmt.Fprintf(out, "%s\t%s\n", p, strings.Join(m.ArchitecturesFor(p), " "))
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print JSON instead of one line per platform")
	return cmd
}

// Show past runs
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs, or the outcomes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := core.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			path := cfg.History.Path
			if p, _ := cmd.Flags().GetString("history-db"); p != "" {
				path = p
			}
			store, err := core.NewStore(path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				outcomes, err := store.RunOutcomes(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(outcomes) == 0 {
					return fmt.Errorf("no outcomes recorded for run %s", args[0])
				}
				printOutcomes(out, outcomes)
				return nil
			}
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(out, runs)
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "number of runs to show")
	return cmd
}

// Generate a key for SFTP publishing
func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 key and known_hosts file for SFTP publishing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPath, _ := cmd.Flags().GetString("key")
			knownHosts, _ := cmd.Flags().GetString("known-hosts")
			host, _ := cmd.Flags().GetString("host")
			port, _ := cmd.Flags().GetInt("port")
			hostKey, _ := cmd.Flags().GetString("host-key")

			pub, err := gssh.GenerateEd25519Keypair(keyPath)
			if err != nil {
				return err
			}
			if err := gssh.EnsureKnownHostsFile(knownHosts); err != nil {
				return err
			}
			if host != "" && hostKey != "" {
				if err := gssh.AppendKnownHost(knownHosts, gssh.Address(host, port), hostKey); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "private key: %s\n", keyPath)
			fmt.Fprintf(out, "known_hosts: %s\n", knownHosts)
			fmt.Fprintf(out, "public key:  %s", pub)
			return nil
		},
	}
	dir := filepath.Join(xdg.ConfigHome, "xbuild")
	cmd.Flags().String("key", filepath.Join(dir, "id_ed25519"), "private key path")
	cmd.Flags().String("known-hosts", filepath.Join(dir, "known_hosts"), "known_hosts path")
	cmd.Flags().String("host", "", "artifact host to trust")
	cmd.Flags().Int("port", 22, "artifact host SSH port")
	cmd.Flags().String("host-key", "", "the host's public key in authorized_keys format")
	return cmd
}
