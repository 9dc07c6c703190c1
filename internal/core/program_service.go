package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/asisten-gizi/server/internal/llm"
	"go.uber.org/zap"
)

const DefaultMaxProgramWeeks = 52

type WeekSection struct {
	Window WeekWindow
	Text   string
}

// Program is a finished diet program. It is only ever returned complete.
type Program struct {
	Profile    UserProfile
	Metrics    HealthMetrics
	TotalWeeks int
	Weeks      []WeekSection
}

func (p *Program) Header() string {
	goal, duration := p.Profile.Goal, p.Profile.Duration
	lines := []string{
		fmt.Sprintf("# Program %s %s - Fokus Sehat", goal, duration),
		"",
		"## Tujuan",
		fmt.Sprintf("Program ini dirancang untuk membantu Anda mencapai tujuan '%s' secara sehat dan berkelanjutan selama %s. "+
			"Program ini mempertimbangkan alergi makanan (%s) dan makanan yang tidak disukai (%s).",
			goal, duration, p.Profile.Allergies, p.Profile.Dislikes),
		"",
		"## BMI dan Kategori",
		fmt.Sprintf("**BMI:** %s (%s)", p.Metrics.FormattedBMI(), p.Metrics.Category.Label()),
		"",
		"## Durasi",
		fmt.Sprintf("%s (%d hari)", duration, p.TotalWeeks*7),
		"",
		"## Jadwal Harian",
	}
	return strings.Join(lines, "\n")
}

// Markdown renders the header followed by every week, separated by blank
// lines.
func (p *Program) Markdown() string {
	parts := make([]string, 0, len(p.Weeks)+1)
	parts = append(parts, p.Header())
	for _, w := range p.Weeks {
		parts = append(parts, w.Window.Heading()+"\n"+w.Text)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

type programState int

const (
	stateResolveDuration programState = iota
	stateComputeMetrics
	stateGenerateWeek
	stateDone
	stateFailed
)

// programRun is the state of one Generate call.
type programRun struct {
	state   programState
	week    int
	program *Program
	err     error
}

type ProgramService struct {
	generator llm.Generator
	template  llm.ChatTemplate
	maxWeeks  int
	logger    *zap.Logger
}

func NewProgramService(generator llm.Generator, template llm.ChatTemplate, maxWeeks int, logger *zap.Logger) *ProgramService {
	if maxWeeks <= 0 {
		maxWeeks = DefaultMaxProgramWeeks
	}
	if template == "" {
		template = llm.TemplateMistral
	}
	return &ProgramService{generator: generator, template: template, maxWeeks: maxWeeks, logger: logger.Named("program")}
}

// Generate validates the profile and then generates one section per week,
// in order. Any failure discards the weeks generated so far.
func (s *ProgramService) Generate(ctx context.Context, profile UserProfile) (*Program, error) {
	run := &programRun{
		state:   stateResolveDuration,
		program: &Program{Profile: profile.WithDefaults()},
	}
	for {
		switch run.state {
		case stateResolveDuration:
			s.resolveDuration(run)
		case stateComputeMetrics:
			s.computeMetrics(run)
		case stateGenerateWeek:
			s.generateWeek(ctx, run)
		case stateDone:
			s.logger.Info("program generated",
				zap.Int("weeks", run.program.TotalWeeks),
				zap.String("category", run.program.Metrics.Category.String()),
			)
			return run.program, nil
		case stateFailed:
			return nil, run.err
		}
	}
}

func (s *ProgramService) resolveDuration(run *programRun) {
	weeks, err := ResolveDuration(run.program.Profile.Duration)
	if err != nil {
		run.fail(err)
		return
	}
	if weeks > s.maxWeeks {
		run.fail(&ValidationError{
			Field:   "duration",
			Message: "Durasi program maksimal " + strconv.Itoa(s.maxWeeks) + " minggu.",
		})
		return
	}
	run.program.TotalWeeks = weeks
	run.state = stateComputeMetrics
}

func (s *ProgramService) computeMetrics(run *programRun) {
	p := run.program.Profile
	metrics := ComputeHealthMetrics(p.Weight, p.Height)
	if !metrics.Category.Usable() {
		field := "weight"
		if metrics.Category == CategoryUnknown {
			field = "height"
		}
		run.fail(&ValidationError{Field: field, Message: metrics.Suggestion})
		return
	}
	run.program.Metrics = metrics
	run.week = 1
	run.state = stateGenerateWeek
}

func (s *ProgramService) generateWeek(ctx context.Context, run *programRun) {
	p := run.program
	window := NewWeekWindow(run.week)
	prompt := s.template.Render([]llm.Message{
		{Role: llm.RoleSystem, Content: ProgramSystemMessage},
		{Role: llm.RoleUser, Content: ComposeWeekPrompt(p.Profile, p.Metrics, p.TotalWeeks, window)},
	})

	if err := ctx.Err(); err != nil {
		run.fail(fmt.Errorf("stopped before week %d: %w", window.Week, err))
		return
	}

	s.logger.Debug("generating week", zap.Int("week", window.Week), zap.Int("total", p.TotalWeeks))
	text, err := s.generator.Generate(ctx, prompt, llm.ProgramSampling)
	if err != nil {
		run.fail(fmt.Errorf("failed to generate week %d: %w", window.Week, err))
		return
	}

	p.Weeks = append(p.Weeks, WeekSection{Window: window, Text: strings.TrimSpace(text)})
	if run.week == p.TotalWeeks {
		run.state = stateDone
		return
	}
	run.week++
}

func (r *programRun) fail(err error) {
	r.err = err
	r.program = nil
	r.state = stateFailed
}
