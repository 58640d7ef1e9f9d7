package recommend

import "github.com/danielpatrickdp/intervene/internal/signals"

// #region template-types

// variant is one message/steps rendering of a strategy. RequiresFlag
// narrows a variant to contexts carrying that flag; flagged variants are
// preferred over generic ones when their flag is present.
type variant struct {
	RequiresFlag   string
	Message        string
	ActionSteps    []ActionStep
	SuccessMetrics []string
}

// #endregion template-types

// #region template-bank

// templateBank maps strategy name → candidate variants. Wording follows
// the coaching corpus's nudge bank: suggestion-phrased, concrete, small.
var templateBank = map[string][]variant{
	"micro_break": {
		{
			RequiresFlag: signals.FlagCognitiveOverload,
			Message:      "Your cognitive load is peaking. How about a 5-minute break to reset?",
			ActionSteps: []ActionStep{
				{Description: "Step away from the screen", Timeframe: "now", Difficulty: 1},
				{Description: "Walk or stretch away from your desk", Timeframe: "5 minutes", Difficulty: 1},
			},
			SuccessMetrics: []string{"break taken within 10 minutes", "self-reported load lower on return"},
		},
		{
			Message: "Want to try a 5-minute break to reset? A short pause now protects the next hour.",
			ActionSteps: []ActionStep{
				{Description: "Pause current task at a natural boundary", Timeframe: "2 minutes", Difficulty: 1},
				{Description: "Take a 5-minute break off-screen", Timeframe: "5 minutes", Difficulty: 1},
			},
			SuccessMetrics: []string{"break taken within 10 minutes"},
		},
	},
	"breathing_reset": {
		{
			Message: "Stress is running high. A 2-minute breathing reset can bring it down fast.",
			ActionSteps: []ActionStep{
				{Description: "Sit back and close your eyes", Timeframe: "now", Difficulty: 1},
				{Description: "Breathe in for 4, hold for 4, out for 6 — ten rounds", Timeframe: "2 minutes", Difficulty: 1},
			},
			SuccessMetrics: []string{"exercise completed", "stress self-rating drops by one level"},
		},
	},
	"deep_work_block": {
		{
			Message: "Perfect window for deep work. Want to try a focused 90-minute session?",
			ActionSteps: []ActionStep{
				{Description: "Pick the single most important task", Timeframe: "5 minutes", Difficulty: 2},
				{Description: "Silence notifications and close chat", Timeframe: "2 minutes", Difficulty: 1},
				{Description: "Work the task without switching", Timeframe: "90 minutes", Difficulty: 3},
			},
			SuccessMetrics: []string{"90 uninterrupted minutes logged", "chosen task advanced to next milestone"},
		},
	},
	"tab_triage": {
		{
			RequiresFlag: signals.FlagHighTabCount,
			Message:      "Lots of context switching detected. Want to try closing most of those tabs for a focused sprint?",
			ActionSteps: []ActionStep{
				{Description: "Bookmark anything worth keeping", Timeframe: "3 minutes", Difficulty: 1},
				{Description: "Close every tab not needed for the current task", Timeframe: "2 minutes", Difficulty: 1},
			},
			SuccessMetrics: []string{"open tab count at or below 3"},
		},
		{
			Message: "High window switching detected. Want to try focus mode for better flow?",
			ActionSteps: []ActionStep{
				{Description: "Keep only the current task's windows open", Timeframe: "3 minutes", Difficulty: 1},
				{Description: "Stay in one window for the next 25 minutes", Timeframe: "25 minutes", Difficulty: 2},
			},
			SuccessMetrics: []string{"window switches under 5 in the next 25 minutes"},
		},
	},
	"time_blocking": {
		{
			Message: "Want to try time-blocking? Setting aside 30 minutes for core work could cut the context switching.",
			ActionSteps: []ActionStep{
				{Description: "Block 30 minutes on your calendar for core work", Timeframe: "2 minutes", Difficulty: 1},
				{Description: "Defer interruptions until the block ends", Timeframe: "30 minutes", Difficulty: 2},
			},
			SuccessMetrics: []string{"block completed without interruptions", "core task progressed"},
		},
	},
	"email_batching": {
		{
			Message: "Want to try email batching? Checking email just 3x daily could free up 90 minutes for your core work.",
			ActionSteps: []ActionStep{
				{Description: "Close the email tab and disable new-mail alerts", Timeframe: "2 minutes", Difficulty: 1},
				{Description: "Schedule three 15-minute email slots for today", Timeframe: "5 minutes", Difficulty: 2},
			},
			SuccessMetrics: []string{"email checked at most 3 times today"},
		},
	},
	"stretch_hydrate": {
		{
			RequiresFlag: signals.FlagNoBreaks,
			Message:      "No breaks detected today. A quick walk could boost your afternoon productivity.",
			ActionSteps: []ActionStep{
				{Description: "Stand up and stretch", Timeframe: "2 minutes", Difficulty: 1},
				{Description: "Refill water and take a short walk", Timeframe: "5 minutes", Difficulty: 1},
			},
			SuccessMetrics: []string{"at least one 5-minute break before end of day"},
		},
		{
			Message: "You've been at it for hours. Time to stretch and hydrate?",
			ActionSteps: []ActionStep{
				{Description: "Stand up and stretch", Timeframe: "2 minutes", Difficulty: 1},
				{Description: "Drink a glass of water", Timeframe: "1 minute", Difficulty: 1},
			},
			SuccessMetrics: []string{"stretch and hydration done within 10 minutes"},
		},
	},
}

// #endregion template-bank

// #region fallback

// fallbackVariant is the deterministic generic intervention used when no
// valid payload can be produced for a strategy.
var fallbackVariant = variant{
	Message: "Take a 5-minute break, then pick one small task to finish next.",
	ActionSteps: []ActionStep{
		{Description: "Take a 5-minute break", Timeframe: "5 minutes", Difficulty: 1},
		{Description: "Pick one small task and finish it", Timeframe: "25 minutes", Difficulty: 2},
	},
	SuccessMetrics: []string{"break taken", "one task completed"},
}

// #endregion fallback
