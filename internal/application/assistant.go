package application

import (
	"context"
	"log/slog"
	"maps"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"station-assistant/internal/domain"
)

// Assistant turns free text into station commands and spoken replies.
type Assistant struct {
	dispatcher Dispatcher
	rules      []IntentRule
	logger     *slog.Logger
}

func NewAssistant(dispatcher Dispatcher, rules []IntentRule, logger *slog.Logger) *Assistant {
	return &Assistant{
		dispatcher: dispatcher,
		rules:      rules,
		logger:     logger,
	}
}

// Normalize trims and lowercases text.
func Normalize(text string) string {
	return cases.Lower(language.Russian).String(strings.TrimSpace(text))
}

// Match returns the intent of the first matching rule, or the not-understood
// intent. It does not dispatch anything.
func (a *Assistant) Match(text string) Intent {
	normalized := Normalize(text)

	for _, rule := range a.rules {
		if rule.Match(normalized) {
			intent := rule.Build(normalized)
			intent.Rule = rule.Name
			return intent
		}
	}

	return Intent{Rule: "unknown", Reply: NotUnderstoodReply}
}

// Resolve answers an utterance. Any failure while resolving degrades to an
// apology instead of propagating.
func (a *Assistant) Resolve(ctx context.Context, text string) (res domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("resolving intent", "text", text, "panic", r)
			res = domain.Result{
				Status:  domain.StatusError,
				Message: ApologyReply,
				Speech:  ApologyReply,
				Code:    domain.KindHandlerFailure,
			}
		}
	}()

	intent := a.Match(text)
	a.logger.Info("parsed intent", "text", text, "rule", intent.Rule, "command", intent.Command)

	if intent.Command == "" {
		res = domain.Success(intent.Reply)
		res.Data = map[string]any{"intent": intent.Rule}
		return res
	}

	res = a.dispatcher.Dispatch(ctx, intent.Command, intent.Params)
	if res.Speech == "" {
		res.Speech = intent.Fallback
	}

	data := maps.Clone(res.Data)
	if data == nil {
		data = make(map[string]any)
	}
	data["intent"] = intent.Rule
	data["command"] = intent.Command
	res.Data = data

	return res
}
