package application

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"station-assistant/internal/domain"
)

// Dispatcher executes a named command.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, params domain.Params) domain.Result
}

// Intent is the outcome of matching an utterance. Either Command is set and
// the intent is dispatched, or Reply holds the complete answer.
type Intent struct {
	Rule     string
	Command  string
	Params   domain.Params
	Reply    string
	Fallback string
}

// IntentRule matches normalized text. Rules are evaluated in order and the
// first match wins.
type IntentRule struct {
	Name  string
	Match func(text string) bool
	Build func(text string) Intent
}

const defaultTemperature = 22

const (
	HelpReply = "Я умею:\n" +
		"- включать музыку: «включи рок музыку»\n" +
		"- останавливать музыку: «выключи музыку» или «стоп»\n" +
		"- менять температуру: «поставь температуру 20 градусов»\n" +
		"- называть время: «сколько время»\n" +
		"- рассказывать о погоде: «какая погода»"
	NotUnderstoodReply = "Извините, я не поняла команду. Скажите «помощь», чтобы узнать, что я умею."
	ApologyReply       = "Извините, что-то пошло не так. Попробуйте ещё раз."

	playFallback    = "Включаю музыку"
	stopFallback    = "Останавливаю музыку"
	climateFallback = "Не получилось изменить температуру"
	timeFallback    = "Не могу определить время"
	weatherFallback = "Не могу узнать погоду"
)

type genre struct {
	keyword string
	id      string
}

var genres = []genre{
	{keyword: "рок", id: "rock"},
	{keyword: "джаз", id: "jazz"},
	{keyword: "классика", id: "classical"},
}

var digits = regexp.MustCompile(`[0-9]+`)

// DefaultRules returns the keyword rules in priority order. The catch-all is
// not part of the list.
func DefaultRules(d Defaults) []IntentRule {
	return []IntentRule{
		{
			Name: "play_music",
			Match: func(text string) bool {
				return containsAny(text, "включи музыку", "включить музыку") ||
					nearestVerb(text, "музыку", "включи", "выключи")
			},
			Build: func(text string) Intent {
				query, id := d.Genre, "pop"
				for _, g := range genres {
					if strings.Contains(text, g.keyword) {
						query, id = g.keyword, g.id
						break
					}
				}
				return Intent{
					Command:  domain.CommandPlay,
					Params:   domain.Params{"query": query, "genre": id},
					Fallback: playFallback,
				}
			},
		},
		{
			Name: "stop_music",
			Match: func(text string) bool {
				return containsAny(text, "выключи музыку", "стоп") ||
					nearestVerb(text, "музыку", "выключи", "включи")
			},
			Build: func(string) Intent {
				return Intent{Command: domain.CommandStop, Params: domain.Params{}, Fallback: stopFallback}
			},
		},
		{
			Name:  "set_temperature",
			Match: func(text string) bool { return strings.Contains(text, "температур") },
			Build: func(text string) Intent {
				return Intent{
					Command: domain.CommandClimate,
					Params: domain.Params{
						"action":      "set_temp",
						"temperature": firstNumber(text, defaultTemperature),
						"room":        d.Room,
					},
					Fallback: climateFallback,
				}
			},
		},
		{
			Name:  "time",
			Match: func(text string) bool { return strings.Contains(text, "время") },
			Build: func(string) Intent {
				return Intent{Command: domain.CommandTime, Params: domain.Params{}, Fallback: timeFallback}
			},
		},
		{
			Name:  "weather",
			Match: func(text string) bool { return strings.Contains(text, "погода") },
			Build: func(string) Intent {
				return Intent{Command: domain.CommandWeather, Params: domain.Params{}, Fallback: weatherFallback}
			},
		},
		{
			Name:  "help",
			Match: func(text string) bool { return containsAny(text, "помощь", "что умеешь") },
			Build: func(string) Intent { return Intent{Reply: HelpReply} },
		},
	}
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// nearestVerb reports whether some occurrence of word is preceded by verb
// with no later occurrence of other in between. Verbs match as prefixes, so
// "включи" also covers "включить".
func nearestVerb(text, word, verb, other string) bool {
	for offset := 0; ; {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		before := text[:offset+i]
		if v := strings.LastIndex(before, verb); v >= 0 && v > strings.LastIndex(before, other) {
			return true
		}
		offset += i + len(word)
	}
}

// firstNumber returns the leftmost run of decimal digits in text, or def.
// Runs too long for an int saturate at math.MaxInt.
func firstNumber(text string, def int) int {
	m := digits.FindString(text)
	if m == "" {
		return def
	}
	n, err := strconv.Atoi(m)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt
	}
	if err != nil {
		return def
	}
	return n
}
