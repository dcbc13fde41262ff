package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	app "github.com/okian/shotlab/internal/app"
	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/report"
	"github.com/okian/shotlab/internal/domain/vision"
	"github.com/okian/shotlab/pkg/logger"
)

var errNoInput = errors.New("either --input or --image is required")

func newAnalyzeCommand(cc *commandContext) *cobra.Command {
	var inputPath, imagePath string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one shooting image locally",
		Example: "  shotlab analyze --input job.json\n" +
			"  shotlab analyze --input job.json --image shot.jpg --json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			req, err := loadJob(inputPath, imagePath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts, err := serviceOptions(cfg, logger.Get())
			if err != nil {
				return err
			}
			// Single jobs need no batch workers.
			svc := app.New(append(opts, app.WithWorkerCount(1), app.WithQueueSize(1))...)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			rep, err := svc.Analyze(ctx, req)
			if err != nil {
				return err
			}
			if wantJSON(cmd, jsonOut) {
				return writeJSON(cmd, rep)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderReport(rep, isTerminal(cmd.OutOrStdout())))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Job file (JSON, same shape as the HTTP request body)")
	cmd.Flags().StringVar(&imagePath, "image", "", "Image file; replaces any inline image in the job")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	return cmd
}

// loadJob reads the job file and attaches the image file, if given. The job
// file has the same shape as the POST /v1/analyses body.
func loadJob(inputPath, imagePath string) (app.AnalysisRequest, error) {
	if inputPath == "" && imagePath == "" {
		return app.AnalysisRequest{}, errNoInput
	}

	var job app.AnalysisJob
	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return app.AnalysisRequest{}, fmt.Errorf("read job: %w", err)
		}
		if err := json.Unmarshal(data, &job); err != nil {
			return app.AnalysisRequest{}, fmt.Errorf("parse job %s: %w", inputPath, err)
		}
	}

	var image []byte
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return app.AnalysisRequest{}, fmt.Errorf("read image: %w", err)
		}
		image = data
		job.Image = ""
	}

	req, err := job.Request()
	if err != nil {
		return app.AnalysisRequest{}, err
	}
	if image != nil {
		req = job.WithImage(req, image, imagePath)
	}
	return req, nil
}

func renderReport(rep report.Report, color bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Image:     %s\n", orDash(rep.ImageID()))
	fmt.Fprintf(&b, "Phase:     %s\n", rep.Phase())
	fmt.Fprintf(&b, "Overall:   %s\n", formatFloat(rep.OverallScore()))
	fmt.Fprintf(&b, "Mechanics: %s\n", formatFloat(rep.MechanicsScore()))

	if ms := rep.Angles(); len(ms) > 0 {
		b.WriteString("\n")
		b.WriteString(renderAngles(ms, color))
		b.WriteString("\n")
	}

	if v := rep.Vision(); v != nil {
		b.WriteString("\n")
		writeVision(&b, v)
	} else if msg := rep.VisionError(); msg != "" {
		fmt.Fprintf(&b, "\nVision:    %s\n", paint(color, "unavailable: "+msg, text.FgRed))
	}

	if matches := rep.SimilarityMatches(); len(matches) > 0 {
		rows := make([][]string, 0, len(matches))
		for i, m := range matches {
			rows = append(rows, []string{fmt.Sprint(i + 1), m.ShooterName, m.Team, formatFloat(m.Score)})
		}
		b.WriteString("\n")
		b.WriteString(renderTable(
			[]string{"#", "Shooter", "Team", "Score"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
		))
		b.WriteString("\n")
	}
	return b.String()
}

func renderAngles(ms []angles.Measurement, color bool) string {
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		if !m.Available() {
			reason := m.Reason
			if reason == "" {
				reason = string(m.Status)
			}
			rows = append(rows, []string{string(m.Name), "-", idealRange(m), "-", paint(color, reason, text.Faint)})
			continue
		}
		rows = append(rows, []string{
			string(m.Name),
			formatFloat(*m.Value),
			idealRange(m),
			formatFloat(m.Deviation),
			paint(color, string(m.Tier), tierColor(m.Tier)),
		})
	}
	return renderTable(
		[]string{"Angle", "Value", "Ideal", "Deviation", "Tier"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func idealRange(m angles.Measurement) string {
	return formatFloat(m.IdealMin) + "-" + formatFloat(m.IdealMax)
}

func tierColor(t angles.Tier) text.Color {
	switch t {
	case angles.Optimal:
		return text.FgGreen
	case angles.Minor:
		return text.FgYellow
	default:
		return text.FgRed
	}
}

func writeVision(b *strings.Builder, v *vision.Result) {
	source := v.ProviderName
	if v.Model != "" {
		source += " (" + v.Model + ")"
	}
	if v.FallbackUsed {
		source += ", fallback"
	}
	fmt.Fprintf(b, "Vision:    %s\n", source)
	if v.Rating != "" {
		fmt.Fprintf(b, "Rating:    %s\n", v.Rating)
	}
	if v.FormAssessment != "" {
		fmt.Fprintf(b, "\n%s\n", v.FormAssessment)
	}
	writeList(b, "Good habits", v.GoodHabits)
	writeList(b, "To improve", v.ImprovementHabits)
	writeList(b, "Recommendations", v.Recommendations)
	if v.ProfessionalComparison != "" {
		fmt.Fprintf(b, "\nComparison: %s\n", v.ProfessionalComparison)
	}
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
