package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/shooters"
)

func newShootersCommand(cc *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "shooters",
		Short: "List the professional shooter reference table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			var table *shooters.Table
			if cfg.ShootersFile != "" {
				table, err = shooters.LoadFile(cfg.ShootersFile)
			} else {
				table, err = shooters.Default()
			}
			if err != nil {
				return err
			}
			list := table.All()
			if wantJSON(cmd, jsonOut) {
				return writeJSON(cmd, list)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderShooters(list))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderShooters(list []shooters.Profile) string {
	headers := []string{"Name", "Team", "Pos", "Height", "Wingspan", "3PT%", "Elbow", "Release", "Style"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, []string{
			p.Name,
			p.Team,
			p.Position,
			formatFloat(p.HeightInches),
			formatFloat(p.WingspanInches),
			formatFloat(p.Career3PtPct),
			idealCell(p, angles.Elbow),
			idealCell(p, angles.Release),
			p.ShootingStyle,
		})
	}
	return renderTable(headers, rows, aligns)
}

func idealCell(p shooters.Profile, name angles.Name) string {
	v, ok := p.IdealAngles[string(name)]
	if !ok {
		return "-"
	}
	return formatFloat(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
