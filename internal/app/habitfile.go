// Package app provides application-layer orchestration services.
// It wires domain logic with infrastructure, never the reverse.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/habitforge/habitforge/internal/domain"
)

// ParseHabitfile parses a Habitfile from a reader.
//
//	# morning routine
//	HABIT "Morning run"
//	CATEGORY Fitness
//	FREQUENCY daily
//	GOAL 1
//
// HABIT opens a block; CATEGORY, FREQUENCY and GOAL apply to the open block.
// Frequency defaults to DAILY and goal to 1.
func ParseHabitfile(r io.Reader) ([]domain.NewHabit, error) {
	var habits []domain.NewHabit
	var cur *domain.NewHabit

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: %s needs a value", lineNo, parts[0])
		}
		directive := strings.ToUpper(parts[0])
		value := unquote(strings.TrimSpace(parts[1]))

		if directive == "HABIT" {
			habits = append(habits, domain.NewHabit{Name: value, Frequency: domain.Daily, Goal: 1})
			cur = &habits[len(habits)-1]
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("line %d: %s before any HABIT", lineNo, directive)
		}

		switch directive {
		case "CATEGORY":
			cur.Category = value

		case "FREQUENCY":
			f, err := domain.ParseFrequency(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur.Frequency = f

		case "GOAL":
			goal, err := strconv.Atoi(value)
			if err != nil || goal < 1 {
				return nil, fmt.Errorf("line %d: %w", lineNo, domain.ErrInvalidGoal)
			}
			cur.Goal = goal

		default:
			// Unknown directives are ignored for forward compatibility
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read Habitfile: %w", err)
	}
	if len(habits) == 0 {
		return nil, domain.ErrNoHabits
	}
	for _, h := range habits {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("habit %q: %w", h.Name, err)
		}
	}
	return habits, nil
}

// HabitCreator is the slice of the tracker ApplyHabitfile needs.
type HabitCreator interface {
	ListHabits(ctx context.Context) ([]domain.Habit, error)
	CreateHabit(ctx context.Context, in domain.NewHabit) (domain.Habit, error)
}

// ApplyResult lists what ApplyHabitfile did.
type ApplyResult struct {
	Created []domain.Habit
	Skipped []string // names that already exist
}

// ApplyHabitfile creates every declared habit whose name (case-insensitive)
// is not already tracked. Existing habits are left untouched.
func ApplyHabitfile(ctx context.Context, c HabitCreator, habits []domain.NewHabit) (ApplyResult, error) {
	var res ApplyResult

	existing, err := c.ListHabits(ctx)
	if err != nil {
		return res, fmt.Errorf("list habits: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, h := range existing {
		seen[strings.ToLower(h.Name)] = true
	}

	for _, in := range habits {
		key := strings.ToLower(in.Name)
		if seen[key] {
			res.Skipped = append(res.Skipped, in.Name)
			continue
		}
		h, err := c.CreateHabit(ctx, in)
		if err != nil {
			return res, fmt.Errorf("create %q: %w", in.Name, err)
		}
		seen[key] = true
		res.Created = append(res.Created, h)
	}
	return res, nil
}

// unquote removes surrounding double quotes if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
