package commands

import (
	"fmt"
	"os"

	"github.com/asisten-gizi/server/internal/app"
	"github.com/asisten-gizi/server/internal/core"
	"github.com/spf13/cobra"
)

type programFlags struct {
	goal          string
	duration      string
	age           int
	weight        string
	height        string
	eatingPattern string
	allergies     string
	dislikes      string
	exercise      string
	sleep         string
	output        string
}

func (f programFlags) profile() core.UserProfile {
	return core.UserProfile{
		Goal:              f.goal,
		Duration:          f.duration,
		Age:               f.age,
		Weight:            core.ParseMeasurement(f.weight),
		Height:            core.ParseMeasurement(f.height),
		EatingPattern:     f.eatingPattern,
		Allergies:         f.allergies,
		Dislikes:          f.dislikes,
		ExerciseFrequency: f.exercise,
		SleepQuality:      f.sleep,
	}
}

func NewProgramCmd() *cobra.Command {
	var f programFlags

	cmd := &cobra.Command{
		Use:   "program",
		Short: "Generate a week-by-week diet program",
		Long: `Generate a personalised Indonesian diet program in Markdown.

Weight (kg) and height (cm) are required to compute BMI. Every other field
falls back to a neutral default.`,
		Example: `  asisten-gizi program --weight 80 --height 170 --duration "2 minggu" \
    --goal "menurunkan berat badan" --allergies kacang -o program.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			rt, err := app.BootstrapPrograms(cmd.Context(), cfg, log, app.Options{})
			if err != nil {
				return err
			}
			defer rt.Close()

			program, err := rt.Programs.Generate(cmd.Context(), f.profile())
			if err != nil {
				return err
			}

			if f.output == "" {
				fmt.Fprint(cmd.OutOrStdout(), program.Markdown())
				return nil
			}
			if err := os.WriteFile(f.output, []byte(program.Markdown()), 0o644); err != nil {
				return fmt.Errorf("failed to write program: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Program %d minggu disimpan ke %s\n", program.TotalWeeks, f.output)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.goal, "goal", "", "program goal")
	cmd.Flags().StringVar(&f.duration, "duration", "1 minggu", `duration, e.g. "3 minggu" or "2 bulan"`)
	cmd.Flags().IntVar(&f.age, "age", 0, "age in years")
	cmd.Flags().StringVar(&f.weight, "weight", "", "weight in kg")
	cmd.Flags().StringVar(&f.height, "height", "", "height in cm")
	cmd.Flags().StringVar(&f.eatingPattern, "eating-pattern", "", "current eating pattern")
	cmd.Flags().StringVar(&f.allergies, "allergies", "", "food allergies")
	cmd.Flags().StringVar(&f.dislikes, "dislikes", "", "disliked foods")
	cmd.Flags().StringVar(&f.exercise, "exercise", "", "exercise frequency")
	cmd.Flags().StringVar(&f.sleep, "sleep", "", "sleep quality")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the Markdown to a file instead of stdout")
	return cmd
}
