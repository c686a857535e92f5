package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/voicebook/internal/availability"
	"github.com/wolfman30/voicebook/internal/highlevel"
	"github.com/wolfman30/voicebook/internal/planner"
)

// speakError converts any failure into a sentence safe for TTS. Upstream
// error bodies, status codes, and IDs never reach the caller's ear.
func speakError(err error) string {
	var notFound *availability.NotFoundError
	if errors.As(err, &notFound) {
		if notFound.Suggestion != "" {
			return fmt.Sprintf("I couldn't find a %s named %s. Did you mean %s?",
				notFound.Kind, notFound.Name, notFound.Suggestion)
		}
		return fmt.Sprintf("I couldn't find a %s named %s. Could you say that again?",
			notFound.Kind, notFound.Name)
	}

	var noGender *availability.NoStaffOfGenderError
	if errors.As(err, &noGender) {
		return fmt.Sprintf("I'm sorry, we don't have any %s providers available for that service.",
			noGender.Gender)
	}

	var unsched *planner.UnschedulableServiceError
	if errors.As(err, &unsched) {
		return fmt.Sprintf("I'm sorry, %s isn't bookable online right now. Our team can set that up for you over text.",
			unsched.Service)
	}

	if errors.Is(err, availability.ErrNoCalendarConfigured) {
		return "I'm sorry, online booking isn't set up for this location yet."
	}

	var apiErr *highlevel.APIError
	if errors.As(err, &apiErr) && apiErr.Transient() {
		return "I'm having a little trouble reaching the calendar. Give me just a moment and ask again."
	}

	return "I'm sorry, something went wrong on my end. Could you try that again?"
}

// speakSlots phrases up to a handful of openings. Same-day slots collapse
// to times only; slots across days carry the day name.
func speakSlots(slots []availability.Slot, serviceName string) string {
	if len(slots) == 0 {
		if serviceName != "" {
			return fmt.Sprintf("I don't see any openings for %s in that window. Would another day work?", serviceName)
		}
		return "I don't see any openings in that window. Would another day work?"
	}

	sameDay := true
	for _, s := range slots[1:] {
		if s.Start.YearDay() != slots[0].Start.YearDay() || s.Start.Year() != slots[0].Start.Year() {
			sameDay = false
			break
		}
	}

	phrases := make([]string, 0, len(slots))
	for _, s := range slots {
		if sameDay {
			phrases = append(phrases, s.Start.Format("3:04 PM"))
		} else {
			phrases = append(phrases, s.Start.Format("Monday at 3:04 PM"))
		}
	}

	intro := "I have"
	if serviceName != "" {
		intro = fmt.Sprintf("For %s I have", serviceName)
	}
	if sameDay && len(slots) > 0 {
		return fmt.Sprintf("%s %s openings on %s. Which works best?",
			intro, joinOr(phrases), slots[0].Start.Format("Monday, January 2"))
	}
	return fmt.Sprintf("%s %s. Which works best?", intro, joinOr(phrases))
}

// speakPlans phrases package day-fit previews as whole days.
func speakPlans(plans []planner.Plan, packageName string) string {
	if len(plans) == 0 {
		return fmt.Sprintf("I couldn't fit the whole %s package on one day in the next two weeks. Would you like the services on separate days?", packageName)
	}

	days := make([]string, 0, len(plans))
	for _, p := range plans {
		first := p.Steps[0].Start
		days = append(days, fmt.Sprintf("%s starting at %s",
			first.Format("Monday, January 2"), first.Format("3:04 PM")))
	}
	return fmt.Sprintf("I can fit the whole %s package on %s. Which day works best?",
		packageName, joinOr(days))
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
	}
}
