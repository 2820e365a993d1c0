package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shotdetect/internal/config"
	"shotdetect/internal/preflight"
	"shotdetect/internal/store"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, and services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := newCheckPrinter(cmd.OutOrStdout())

			p.section("Configuration")
			configDetail := ctx.configPath
			if !ctx.configSeen {
				configDetail += " (not found, using defaults)"
			}
			p.line("Config", checkInfo, configDetail)
			p.blank()

			p.section("Dependencies")
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				switch {
				case status.Available:
					p.line(status.Name, checkOK, status.Version)
				case status.Optional:
					p.line(status.Name, checkWarn, status.Detail)
				default:
					p.line(status.Name, checkFail, fmt.Sprintf("%s (%s)", status.Detail, status.Description))
				}
			}
			p.blank()

			p.section("Paths & Services")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				state := checkOK
				if !result.Passed {
					state = checkFail
				}
				p.line(result.Name, state, result.Detail)
			}
			checkDatabase(cmd, ctx, p)
			reportToggles(p, cfg)

			if p.failed {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

func checkDatabase(cmd *cobra.Command, ctx *commandContext, p *checkPrinter) {
	err := ctx.withStore(func(st *store.Store) error {
		version, err := st.SchemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		p.line("Database", checkOK, fmt.Sprintf("%s (schema v%d)", st.Path(), version))
		return nil
	})
	if err != nil {
		p.line("Database", checkFail, err.Error())
	}
}

func reportToggles(p *checkPrinter, cfg *config.Config) {
	if !cfg.Live.Enabled {
		p.line("Live server", checkInfo, "disabled")
	}
	p.line("Notifications", checkInfo, "enabled: "+yesNo(cfg.Notifications.NtfyTopic != ""))
	p.line("Audio envelope", checkInfo, "enabled: "+yesNo(cfg.Audio.Enabled))
}
