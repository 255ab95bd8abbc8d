package application

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"station-assistant/internal/domain"
)

// Defaults holds the parameter values handlers fall back to.
type Defaults struct {
	Room         string
	LightsRoom   string
	Genre        string
	City         string
	NewsCategory string
}

func DefaultDefaults() Defaults {
	return Defaults{
		Room:         "дом",
		LightsRoom:   "вся квартира",
		Genre:        "популярная музыка",
		City:         "вашем городе",
		NewsCategory: "главные",
	}
}

// RegisterDefaultCommands installs the domain handlers every station ships with.
func RegisterDefaultCommands(r *Registry, d Defaults, now func() time.Time) {
	if now == nil {
		now = time.Now
	}

	r.RegisterCommand(Command{Name: domain.CommandLights, Description: "Управление светом", Handler: lightsHandler(d)})
	r.RegisterCommand(Command{Name: domain.CommandClimate, Description: "Управление климатом", Handler: climateHandler(d)})
	r.RegisterCommand(Command{Name: domain.CommandSecurity, Description: "Система безопасности", Handler: securityHandler})
	r.RegisterCommand(Command{Name: domain.CommandWeather, Description: "Прогноз погоды", Handler: weatherHandler(d)})
	r.RegisterCommand(Command{Name: domain.CommandNews, Description: "Новости", Handler: newsHandler(d)})
	r.RegisterCommand(Command{Name: domain.CommandTime, Description: "Текущее время", Handler: timeHandler(now)})
}

func lightsHandler(d Defaults) Handler {
	return func(params domain.Params) (domain.Result, error) {
		room := params.String("room", d.LightsRoom)

		switch params.String("action", "toggle") {
		case "on":
			return domain.Success(fmt.Sprintf("Включаю свет в %s", room)), nil
		case "off":
			return domain.Success(fmt.Sprintf("Выключаю свет в %s", room)), nil
		default:
			return domain.Success(fmt.Sprintf("Переключаю свет в %s", room)), nil
		}
	}
}

func climateHandler(d Defaults) Handler {
	return func(params domain.Params) (domain.Result, error) {
		var temperature any = defaultTemperature
		if v, ok := params["temperature"]; ok && v != nil {
			temperature = v
		}
		room := params.String("room", d.Room)

		res := domain.Success(fmt.Sprintf("Устанавливаю температуру %v°C в %s", temperature, room))
		res.Data = map[string]any{"temperature": temperature, "room": room}
		return res, nil
	}
}

func securityHandler(params domain.Params) (domain.Result, error) {
	switch params.String("action", "status") {
	case "arm":
		return domain.Success("Включаю охрану. Система активна."), nil
	case "disarm":
		return domain.Success("Отключаю охрану. Дом в безопасности."), nil
	default:
		return domain.Success("Система безопасности в норме."), nil
	}
}

func weatherHandler(d Defaults) Handler {
	return func(params domain.Params) (domain.Result, error) {
		city := params.String("city", d.City)
		return domain.Success(fmt.Sprintf("Погода в %s: солнечно, плюс 20 градусов", city)), nil
	}
}

func newsHandler(d Defaults) Handler {
	return func(params domain.Params) (domain.Result, error) {
		category := params.String("category", d.NewsCategory)
		return domain.Success(fmt.Sprintf("Последние %s новости загружаются...", category)), nil
	}
}

func timeHandler(now func() time.Time) Handler {
	return func(_ domain.Params) (domain.Result, error) {
		return domain.Success(fmt.Sprintf("Сейчас %s", now().Format("15:04"))), nil
	}
}

// StringHandler adapts a function returning plain text into a Handler whose
// successful result speaks that text.
func StringHandler(fn func(params domain.Params) (string, error)) Handler {
	return func(params domain.Params) (domain.Result, error) {
		text, err := fn(params)
		if err != nil {
			return domain.Result{}, err
		}
		return domain.Success(text), nil
	}
}

// AddCustomCommand registers a text-returning command with a description.
func AddCustomCommand(r *Registry, name, description string, fn func(params domain.Params) (string, error)) {
	r.RegisterCommand(Command{Name: name, Description: description, Handler: StringHandler(fn)})
	r.logger.Info("added custom command", "command", name, "description", description)
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// SimpleCommand answers with template, substituting {key} placeholders from
// the parameters. A placeholder without a matching parameter fails the command.
func SimpleCommand(template string) Handler {
	return func(params domain.Params) (domain.Result, error) {
		message, err := expand(template, params)
		if err != nil {
			return domain.Result{}, err
		}
		return domain.Success(message), nil
	}
}

// DeviceCommand answers with the template registered for params["action"]
// (default "toggle"). Templates may reference {device} and any parameter.
func DeviceCommand(device string, actions map[string]string) Handler {
	return func(params domain.Params) (domain.Result, error) {
		action := strings.ToLower(params.String("action", "toggle"))

		template, ok := actions[action]
		if !ok {
			available := make([]string, 0, len(actions))
			for name := range actions {
				available = append(available, name)
			}
			sort.Strings(available)
			return domain.Success(fmt.Sprintf("Неизвестное действие для %s. Доступные: %s",
				device, strings.Join(available, ", "))), nil
		}

		values := params.Clone()
		values["device"] = device
		message, err := expand(template, values)
		if err != nil {
			return domain.Result{}, err
		}
		return domain.Success(message), nil
	}
}

func expand(template string, params domain.Params) (string, error) {
	var missing string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if _, ok := params[key]; !ok {
			if missing == "" {
				missing = key
			}
			return m
		}
		return params.String(key, "")
	})
	if missing != "" {
		return "", fmt.Errorf("missing parameter %q", missing)
	}
	return out, nil
}
